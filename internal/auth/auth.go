// Package auth logs into the application once and persists the resulting
// session so later scenarios start authenticated.
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Venallanaj/QA-Task/internal/browser"
	"github.com/Venallanaj/QA-Task/internal/config"
	"github.com/Venallanaj/QA-Task/internal/expect"
	"github.com/Venallanaj/QA-Task/internal/pages"
	"github.com/Venallanaj/QA-Task/internal/session"
	"github.com/Venallanaj/QA-Task/internal/tracing"
)

// LoginRoute is the login form, relative to the base URL.
const LoginRoute = "auth.html#/"

// PostLoginURL matches the landing view the application redirects to after
// a successful login.
var PostLoginURL = regexp.MustCompile(`/#/views/\d+`)

var (
	usernameSel    = browser.TestID("LoginView.username-text-field")
	passwordSel    = browser.TestID("PasswordTextField.password-text-field")
	loginButtonSel = browser.TestID("LoginView.login-button")
	currentUserSel = browser.TestID("NavItems.CurrentUser.Name")
)

type Credentials struct {
	Username string
	Password string
}

func (c Credentials) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("username", c.Username),
		slog.String("password", config.MaskSecret(c.Password)),
	)
}

// Login submits the login form on page. The click and the wait for the
// post-login URL run concurrently so a fast redirect cannot be missed.
func Login(ctx context.Context, page browser.Page, creds Credentials, timeout time.Duration) (err error) {
	ctx, span := tracing.Start(ctx, "auth.login")
	defer func() { tracing.End(span, err) }()

	if err := page.Locate(usernameSel).Fill(ctx, creds.Username); err != nil {
		return fmt.Errorf("fill username: %w", err)
	}
	if err := page.Locate(passwordSel).Fill(ctx, creds.Password); err != nil {
		return fmt.Errorf("fill password: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return expect.ToHaveURL(gctx, page, PostLoginURL, timeout)
	})
	g.Go(func() error {
		if err := page.Locate(loginButtonSel).Click(gctx); err != nil {
			return fmt.Errorf("submit login: %w", err)
		}
		return nil
	})
	return g.Wait()
}

// PageSource opens isolated pages. *browser.Browser implements it.
type PageSource interface {
	NewPage(ctx context.Context, st *session.State) (browser.Page, func(), error)
}

// Bootstrapper performs the authenticated setup step and is the only
// writer of the session artifact.
type Bootstrapper struct {
	cfg    *config.RuntimeConfig
	pages  PageSource
	oracle *pages.Oracle
	log    *slog.Logger
}

func NewBootstrapper(cfg *config.RuntimeConfig, src PageSource, log *slog.Logger) *Bootstrapper {
	if log == nil {
		log = slog.Default()
	}
	return &Bootstrapper{cfg: cfg, pages: src, oracle: pages.NewOracle(cfg, log), log: log}
}

// Run validates configuration, logs in on a fresh page and writes the
// session artifact. Configuration errors are returned before a page is
// opened.
func (b *Bootstrapper) Run(ctx context.Context) (*session.State, error) {
	if err := b.cfg.ValidateSetup(); err != nil {
		return nil, err
	}
	if b.pages == nil {
		return nil, fmt.Errorf("bootstrap: no page source")
	}
	page, release, err := b.pages.NewPage(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer release()
	return b.RunOn(ctx, page)
}

// RunOn is Run on a page the caller already owns.
func (b *Bootstrapper) RunOn(ctx context.Context, page browser.Page) (*session.State, error) {
	if err := b.cfg.ValidateSetup(); err != nil {
		return nil, err
	}
	st, err := b.Authenticate(ctx, page)
	if err != nil {
		return nil, err
	}
	path := b.cfg.StateAbsPath()
	if err := session.Save(path, st); err != nil {
		return nil, err
	}
	return st, nil
}

// Authenticate logs in and returns the captured session state without
// writing it.
func (b *Bootstrapper) Authenticate(ctx context.Context, page browser.Page) (st *session.State, err error) {
	ctx, span := tracing.Start(ctx, "auth.bootstrap", tracing.AttrURL.String(LoginRoute))
	defer func() { tracing.End(span, err) }()

	creds := Credentials{Username: b.cfg.Username, Password: b.cfg.Password}
	b.log.Info("authenticating", "creds", creds, "base", b.cfg.NormalizedBaseURL())

	resp, err := page.Goto(ctx, LoginRoute)
	if err != nil {
		return nil, err
	}
	if err := browser.CheckStatus(resp); err != nil {
		return nil, err
	}
	if err := b.oracle.FailFastIfBlocked(ctx, page); err != nil {
		return nil, err
	}
	if err := expect.ToBeVisible(ctx, page.Locate(usernameSel), b.cfg.ReadinessTimeout); err != nil {
		return nil, err
	}
	if err := Login(ctx, page, creds, b.cfg.LoginTimeout); err != nil {
		return nil, err
	}
	if err := b.VerifyIdentity(ctx, page); err != nil {
		return nil, err
	}

	st, err = page.StorageState(ctx)
	if err != nil {
		return nil, fmt.Errorf("capture session state: %w", err)
	}
	b.log.Info("authenticated", "user", b.cfg.ExpectedIdentity, "cookies", len(st.Cookies))
	return st, nil
}

// VerifyIdentity waits for the navigation's user label to equal the
// expected identity exactly, ignoring surrounding whitespace.
func (b *Bootstrapper) VerifyIdentity(ctx context.Context, page browser.Page) error {
	want := strings.TrimSpace(b.cfg.ExpectedIdentity)
	return expect.ToHaveExactText(ctx, page.Locate(currentUserSel), want, b.cfg.ReadinessTimeout)
}

// LoginCleanSession clears cookies and logs in from scratch, asserting only
// the post-login redirect. Nothing is persisted.
func LoginCleanSession(ctx context.Context, page browser.Page, cfg *config.RuntimeConfig) error {
	if err := page.ClearCookies(ctx); err != nil {
		return fmt.Errorf("clear cookies: %w", err)
	}
	resp, err := page.Goto(ctx, LoginRoute)
	if err != nil {
		return err
	}
	if err := browser.CheckStatus(resp); err != nil {
		return err
	}
	creds := Credentials{Username: cfg.Username, Password: cfg.Password}
	if err := Login(ctx, page, creds, cfg.LoginTimeout); err != nil {
		return err
	}
	return expect.ToHaveURL(ctx, page, PostLoginURL, cfg.LoginTimeout)
}
