// Package session holds the authenticated browser state captured by the
// setup project and replayed into every dependent scenario.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// ErrNoState is returned by Load when no artifact exists at the path.
var ErrNoState = errors.New("session state not found")

type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"`
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"sameSite,omitempty"`
}

// Session reports whether the cookie has no expiry.
func (c Cookie) Session() bool { return c.Expires <= 0 }

type StorageItem struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type Origin struct {
	Origin       string        `json:"origin"`
	LocalStorage []StorageItem `json:"localStorage"`
}

// State is the serialized form of an authenticated browsing context. The
// layout matches the storage-state files written by other browser harnesses
// so existing artifacts can be reused.
type State struct {
	Cookies []Cookie `json:"cookies"`
	Origins []Origin `json:"origins"`
}

func (s *State) Empty() bool {
	return s == nil || (len(s.Cookies) == 0 && len(s.Origins) == 0)
}

// LocalStorageFor returns the seeded local storage for origin, if any.
func (s *State) LocalStorageFor(origin string) []StorageItem {
	if s == nil {
		return nil
	}
	origin = strings.TrimSuffix(origin, "/")
	for _, o := range s.Origins {
		if strings.TrimSuffix(o.Origin, "/") == origin {
			return o.LocalStorage
		}
	}
	return nil
}

// Load reads the artifact at path. A missing file yields ErrNoState.
func Load(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w at %s", ErrNoState, path)
		}
		return nil, fmt.Errorf("read session state: %w", err)
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("decode session state %s: %w", path, err)
	}
	return &st, nil
}

// Save writes the artifact atomically: a reader never observes a partially
// written file.
func Save(path string, st *State) error {
	if st == nil {
		return errors.New("save session state: nil state")
	}
	if st.Cookies == nil {
		st.Cookies = []Cookie{}
	}
	if st.Origins == nil {
		st.Origins = []Origin{}
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encode session state: %w", err)
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create session state dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".state-*.json")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write session state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close session state: %w", err)
	}
	if err := os.Chmod(tmpName, 0600); err != nil {
		slog.Debug("chmod session state", "err", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("commit session state: %w", err)
	}
	slog.Info("saved session state", "path", path, "cookies", len(st.Cookies), "origins", len(st.Origins))
	return nil
}
