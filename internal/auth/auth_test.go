package auth

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/Venallanaj/QA-Task/internal/browser"
	"github.com/Venallanaj/QA-Task/internal/browser/browsertest"
	"github.com/Venallanaj/QA-Task/internal/config"
	"github.com/Venallanaj/QA-Task/internal/expect"
	"github.com/Venallanaj/QA-Task/internal/pages"
	"github.com/Venallanaj/QA-Task/internal/session"
)

func init() {
	expect.PollInterval = 5 * time.Millisecond
}

const base = "https://app.test/demo/da"

func testConfig(t *testing.T) *config.RuntimeConfig {
	t.Helper()
	cfg := config.Defaults()
	cfg.BaseURL = base
	cfg.Username = "admin"
	cfg.Password = "s3cret-password"
	cfg.ExpectedIdentity = "Laconics-Admin"
	cfg.StatePath = filepath.Join(t.TempDir(), ".auth", "state.json")
	cfg.ReadinessTimeout = 150 * time.Millisecond
	cfg.BlockedTimeout = 40 * time.Millisecond
	cfg.LoginTimeout = 150 * time.Millisecond
	return cfg
}

var sampleState = &session.State{
	Cookies: []session.Cookie{{Name: "JSESSIONID", Value: "abc", Domain: "app.test", Path: "/", Expires: -1, HTTPOnly: true}},
	Origins: []session.Origin{{Origin: "https://app.test", LocalStorage: []session.StorageItem{{Name: "token", Value: "t"}}}},
}

// loginForm wires a fake page whose login button redirects to a view and
// reveals user as the current user.
func loginForm(page *browsertest.Page, user string) {
	page.El(usernameSel).Show("")
	page.El(passwordSel).Show("")
	page.El(loginButtonSel).Show("Login").OnClick = func() {
		page.SetURL(base + "/#/views/12")
		page.El(currentUserSel).Show("  " + user + "\n")
	}
	page.State = sampleState
}

type fakeSource struct {
	page   *browsertest.Page
	opened int
	closed int
}

func (f *fakeSource) NewPage(ctx context.Context, st *session.State) (browser.Page, func(), error) {
	f.opened++
	return f.page, func() { f.closed++ }, nil
}

func TestRunWritesState(t *testing.T) {
	cfg := testConfig(t)
	page := browsertest.NewPage(cfg.NormalizedBaseURL())
	loginForm(page, "Laconics-Admin")
	src := &fakeSource{page: page}

	st, err := NewBootstrapper(cfg, src, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if diff := cmp.Diff(sampleState, st); diff != "" {
		t.Errorf("state (-want +got):\n%s", diff)
	}
	saved, err := session.Load(cfg.StatePath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(sampleState, saved); diff != "" {
		t.Errorf("saved state (-want +got):\n%s", diff)
	}
	if src.opened != 1 || src.closed != 1 {
		t.Errorf("page opened %d, closed %d", src.opened, src.closed)
	}
	if got := page.El(usernameSel).Fills(); len(got) != 1 || got[0] != "admin" {
		t.Errorf("username fills = %v", got)
	}
	if calls := page.Calls(); calls[0] != "goto "+LoginRoute {
		t.Errorf("first call = %q", calls[0])
	}
}

func TestRunMissingCredentials(t *testing.T) {
	cfg := testConfig(t)
	cfg.Password = ""
	src := &fakeSource{page: browsertest.NewPage(cfg.NormalizedBaseURL())}

	_, err := NewBootstrapper(cfg, src, nil).Run(context.Background())
	var ce *config.Error
	if !errors.As(err, &ce) || !errors.Is(err, config.ErrMissing) {
		t.Fatalf("expected missing config error, got %v", err)
	}
	if src.opened != 0 {
		t.Error("page opened despite invalid configuration")
	}
}

func TestRunFailuresWriteNothing(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*browsertest.Page)
		check func(error) bool
	}{
		{
			name: "http error",
			setup: func(p *browsertest.Page) {
				p.GotoFunc = func(target string) (*browser.Response, error) {
					return &browser.Response{URL: target, Status: 503}, nil
				}
			},
			check: browser.IsStatusError,
		},
		{
			name: "forbidden",
			setup: func(p *browsertest.Page) {
				p.El(pages.BlockedMarkers[1].Target).Show("Forbidden")
			},
			check: pages.IsBlocked,
		},
		{
			name: "no redirect",
			setup: func(p *browsertest.Page) {
				p.El(usernameSel).Show("")
				p.El(passwordSel).Show("")
				p.El(loginButtonSel).Show("Login")
			},
			check: expect.IsTimeout,
		},
		{
			name: "wrong identity",
			setup: func(p *browsertest.Page) {
				loginForm(p, "Laconics-Admin-2")
			},
			check: expect.IsTimeout,
		},
		{
			name:  "form never renders",
			setup: func(*browsertest.Page) {},
			check: expect.IsTimeout,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			page := browsertest.NewPage(cfg.NormalizedBaseURL())
			tt.setup(page)

			_, err := NewBootstrapper(cfg, &fakeSource{page: page}, nil).Run(context.Background())
			if err == nil || !tt.check(err) {
				t.Fatalf("unexpected error: %v", err)
			}
			if _, statErr := os.Stat(cfg.StatePath); !errors.Is(statErr, os.ErrNotExist) {
				t.Errorf("state file written on failure: %v", statErr)
			}
		})
	}
}

func TestLoginClickFailure(t *testing.T) {
	cfg := testConfig(t)
	page := browsertest.NewPage(cfg.NormalizedBaseURL())
	loginForm(page, "Laconics-Admin")
	boom := errors.New("button detached")
	page.El(loginButtonSel).ClickErr = boom

	err := Login(context.Background(), page, Credentials{"admin", "pw"}, time.Second)
	if !errors.Is(err, boom) {
		t.Fatalf("expected click error, got %v", err)
	}
}

func TestLoginCleanSession(t *testing.T) {
	cfg := testConfig(t)
	page := browsertest.NewPage(cfg.NormalizedBaseURL())
	loginForm(page, "Laconics-Admin")

	if err := LoginCleanSession(context.Background(), page, cfg); err != nil {
		t.Fatalf("LoginCleanSession: %v", err)
	}
	calls := page.Calls()
	if calls[0] != "clear-cookies" || calls[1] != "goto "+LoginRoute {
		t.Errorf("calls = %v", calls[:2])
	}
	if _, err := os.Stat(cfg.StatePath); !errors.Is(err, os.ErrNotExist) {
		t.Error("clean-session login must not write state")
	}
}

func TestPostLoginURL(t *testing.T) {
	tests := map[string]bool{
		base + "/#/views/12":  true,
		base + "/#/views/":    false,
		base + "/auth.html#/": false,
		base + "#/views/3":    false,
		base + "/#/views/9/x": true,
	}
	for u, want := range tests {
		if got := PostLoginURL.MatchString(u); got != want {
			t.Errorf("match %q = %v, want %v", u, got, want)
		}
	}
}

func TestCredentialsLogValueMasksPassword(t *testing.T) {
	v := Credentials{Username: "admin", Password: "s3cret-password"}.LogValue().String()
	if !strings.Contains(v, "password=***") || strings.Contains(v, "s3") {
		t.Errorf("LogValue = %s", v)
	}
}
