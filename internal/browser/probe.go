package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

// VersionInfo is the subset of Browser.getVersion the suite logs.
type VersionInfo struct {
	Product         string `json:"product"`
	ProtocolVersion string `json:"protocolVersion"`
	UserAgent       string `json:"userAgent"`
}

// ResolveDebuggerURL turns an http(s) DevTools endpoint into the browser
// websocket URL advertised at /json/version. ws(s) URLs pass through.
func ResolveDebuggerURL(ctx context.Context, raw string) (string, error) {
	if strings.HasPrefix(raw, "ws://") || strings.HasPrefix(raw, "wss://") {
		return raw, nil
	}
	endpoint := strings.TrimSuffix(raw, "/") + "/json/version"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("build version request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: %s returned %d", ErrUnavailable, endpoint, resp.StatusCode)
	}
	var v struct {
		WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		return "", fmt.Errorf("decode %s: %w", endpoint, err)
	}
	if v.WebSocketDebuggerURL == "" {
		return "", fmt.Errorf("%w: %s has no webSocketDebuggerUrl", ErrUnavailable, endpoint)
	}
	return v.WebSocketDebuggerURL, nil
}

// Probe opens the DevTools websocket, asks for the browser version and
// closes it again. It fails fast when a remote browser is configured but not
// reachable, before any scenario context is built.
func Probe(ctx context.Context, wsURL string, timeout time.Duration) (*VersionInfo, error) {
	dialer := ws.Dialer{Timeout: timeout}
	conn, br, _, err := dialer.Dial(ctx, wsURL)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %v", ErrUnavailable, wsURL, err)
	}
	defer func() { _ = conn.Close() }()

	if timeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(timeout))
	}

	var rd io.Reader = conn
	if br != nil {
		rd = io.MultiReader(br, conn)
		defer ws.PutReader(br)
	}
	rw := struct {
		io.Reader
		io.Writer
	}{rd, conn}

	req := []byte(`{"id":1,"method":"Browser.getVersion"}`)
	if err := wsutil.WriteClientText(conn, req); err != nil {
		return nil, fmt.Errorf("probe write: %w", err)
	}
	for {
		msg, err := wsutil.ReadServerText(rw)
		if err != nil {
			return nil, fmt.Errorf("probe read: %w", err)
		}
		var reply struct {
			ID     int          `json:"id"`
			Result *VersionInfo `json:"result"`
			Error  *struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.Unmarshal(msg, &reply); err != nil {
			return nil, fmt.Errorf("probe decode: %w", err)
		}
		if reply.ID != 1 {
			continue
		}
		if reply.Error != nil {
			return nil, fmt.Errorf("%w: %s", ErrUnavailable, reply.Error.Message)
		}
		if reply.Result == nil {
			return nil, fmt.Errorf("%w: empty version reply", ErrUnavailable)
		}
		return reply.Result, nil
	}
}
