package browser

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/Venallanaj/QA-Task/internal/config"
)

func TestResolveURL(t *testing.T) {
	base, _ := url.Parse("https://app.test/demo/api/kic/da/")
	tests := []struct {
		ref, want string
	}{
		{"auth.html#/", "https://app.test/demo/api/kic/da/auth.html#/"},
		{"./#/organisation/shifts?date=2026-02-15", "https://app.test/demo/api/kic/da/#/organisation/shifts?date=2026-02-15"},
		{"./#/", "https://app.test/demo/api/kic/da/#/"},
		{"index.html#/", "https://app.test/demo/api/kic/da/index.html#/"},
		{"https://other.test/x", "https://other.test/x"},
	}
	for _, tt := range tests {
		got, err := ResolveURL(base, tt.ref)
		if err != nil {
			t.Fatalf("ResolveURL(%q): %v", tt.ref, err)
		}
		if got != tt.want {
			t.Errorf("ResolveURL(%q) = %q, want %q", tt.ref, got, tt.want)
		}
	}
}

func TestResolveURLWithoutTrailingSlash(t *testing.T) {
	// Without normalization the last path segment is replaced.
	base, _ := url.Parse("https://app.test/demo/da")
	got, _ := ResolveURL(base, "auth.html#/")
	if got != "https://app.test/demo/auth.html#/" {
		t.Errorf("got %q", got)
	}
}

func TestCheckStatus(t *testing.T) {
	if err := CheckStatus(nil); err != nil {
		t.Errorf("nil response: %v", err)
	}
	if err := CheckStatus(&Response{Status: 0}); err != nil {
		t.Errorf("same-document navigation: %v", err)
	}
	if err := CheckStatus(&Response{Status: 302}); err != nil {
		t.Errorf("302: %v", err)
	}
	err := CheckStatus(&Response{URL: "https://app.test/x", Status: 403})
	var se *StatusError
	if !errors.As(err, &se) || se.Status != 403 {
		t.Fatalf("expected *StatusError 403, got %v", err)
	}
	if !IsStatusError(fmt.Errorf("wrapped: %w", err)) {
		t.Error("IsStatusError should see through wrapping")
	}
}

func TestIsTransient(t *testing.T) {
	if !isTransient(errors.New("exception: Execution context was destroyed.")) {
		t.Error("destroyed context should be transient")
	}
	if isTransient(errors.New("SyntaxError")) || isTransient(nil) {
		t.Error("unexpected transient classification")
	}
}

func TestParseExtraFlags(t *testing.T) {
	if got := len(parseExtraFlags("--lang=de --disable-gpu  --proxy-server=http://p:1")); got != 3 {
		t.Errorf("got %d flags, want 3", got)
	}
	if got := len(parseExtraFlags("")); got != 0 {
		t.Errorf("empty input produced %d flags", got)
	}
}

func TestAllocatorOptions(t *testing.T) {
	cfg := config.Defaults()
	headed := len(allocatorOptions(cfg))
	cfg.ChromeBinary = "/usr/bin/chromium"
	cfg.ChromeExtraFlags = "--lang=de"
	if got := len(allocatorOptions(cfg)); got != headed+2 {
		t.Errorf("got %d options, want %d", got, headed+2)
	}
}

func TestBindFollowsCallerCancellation(t *testing.T) {
	p := &chromePage{ctx: context.Background()}
	caller, cancel := context.WithCancel(context.Background())
	runCtx, done := p.bind(caller)
	defer done()

	cancel()
	select {
	case <-runCtx.Done():
	case <-time.After(time.Second):
		t.Fatal("bound context not cancelled with caller")
	}
}

func TestBindCarriesDeadline(t *testing.T) {
	p := &chromePage{ctx: context.Background()}
	caller, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	runCtx, done := p.bind(caller)
	defer done()

	want, _ := caller.Deadline()
	got, ok := runCtx.Deadline()
	if !ok || !got.Equal(want) {
		t.Errorf("deadline = %v (%v), want %v", got, ok, want)
	}
}

func TestNewPageAfterClose(t *testing.T) {
	b := &Browser{closed: true}
	if _, _, err := b.NewPage(context.Background(), nil); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}
