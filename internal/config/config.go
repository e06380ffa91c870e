package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultStatePath is where the setup project writes the session artifact.
const DefaultStatePath = ".auth/state.json"

type RuntimeConfig struct {
	BaseURL          string
	Username         string
	Password         string
	ExpectedIdentity string

	StatePath  string
	ResultsDir string
	ConfigPath string

	Headless         bool
	SlowMo           time.Duration
	ViewportWidth    int
	ViewportHeight   int
	ChromeBinary     string
	ChromeExtraFlags string
	CdpURL           string
	NoAnimations     bool

	Workers              int
	Trace                bool
	ScreenshotOnFailure  bool
	LogLevel             string
	TestTimeout          time.Duration
	ExpectTimeout        time.Duration
	NavigationTimeout    time.Duration
	ActionTimeout        time.Duration
	ReadinessTimeout     time.Duration
	BlockedTimeout       time.Duration
	LoginTimeout         time.Duration
	ChromeStartTimeout   time.Duration
	NetworkIdleQuietTime time.Duration
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func envBoolOr(key string, fallback bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

// envDurationOr accepts Go durations ("1m30s") or bare milliseconds ("15000").
func envDurationOr(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	if ms, err := strconv.Atoi(v); err == nil {
		if ms < 0 {
			return fallback
		}
		return time.Duration(ms) * time.Millisecond
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}

func isSet(key string) bool {
	_, ok := os.LookupEnv(key)
	return ok
}

// FileConfig is the on-disk overlay. Environment variables always win.
type FileConfig struct {
	BaseURL          string `yaml:"baseURL,omitempty"`
	ExpectedIdentity string `yaml:"expectedIdentity,omitempty"`
	StatePath        string `yaml:"statePath,omitempty"`
	ResultsDir       string `yaml:"resultsDir,omitempty"`
	Headless         *bool  `yaml:"headless,omitempty"`
	SlowMoMs         *int   `yaml:"slowMoMs,omitempty"`
	Viewport         *struct {
		Width  int `yaml:"width"`
		Height int `yaml:"height"`
	} `yaml:"viewport,omitempty"`
	ChromeBinary string `yaml:"chromeBinary,omitempty"`
	CdpURL       string `yaml:"cdpUrl,omitempty"`
	Workers      *int   `yaml:"workers,omitempty"`
	Trace        *bool  `yaml:"trace,omitempty"`
	Timeouts     struct {
		TestSec       int `yaml:"testSec,omitempty"`
		ExpectSec     int `yaml:"expectSec,omitempty"`
		NavigationSec int `yaml:"navigationSec,omitempty"`
		ActionSec     int `yaml:"actionSec,omitempty"`
		ReadinessSec  int `yaml:"readinessSec,omitempty"`
		BlockedSec    int `yaml:"blockedSec,omitempty"`
	} `yaml:"timeouts,omitempty"`
}

func Defaults() *RuntimeConfig {
	return &RuntimeConfig{
		ExpectedIdentity:     "Laconics-Admin",
		StatePath:            DefaultStatePath,
		ResultsDir:           "test-results",
		ConfigPath:           "shiftcheck.yaml",
		Headless:             false,
		SlowMo:               200 * time.Millisecond,
		ViewportWidth:        1440,
		ViewportHeight:       900,
		Workers:              2,
		Trace:                true,
		ScreenshotOnFailure:  true,
		LogLevel:             "info",
		TestTimeout:          60 * time.Second,
		ExpectTimeout:        15 * time.Second,
		NavigationTimeout:    60 * time.Second,
		ActionTimeout:        20 * time.Second,
		ReadinessTimeout:     60 * time.Second,
		BlockedTimeout:       10 * time.Second,
		LoginTimeout:         60 * time.Second,
		ChromeStartTimeout:   15 * time.Second,
		NetworkIdleQuietTime: 500 * time.Millisecond,
	}
}

func Load() *RuntimeConfig {
	d := Defaults()
	cfg := &RuntimeConfig{
		BaseURL:              os.Getenv("BASE_URL"),
		Username:             os.Getenv("DA_USERNAME"),
		Password:             os.Getenv("DA_PASSWORD"),
		ExpectedIdentity:     envOr("DA_EXPECTED_USER", d.ExpectedIdentity),
		StatePath:            envOr("SHIFTCHECK_STATE", d.StatePath),
		ResultsDir:           envOr("SHIFTCHECK_RESULTS_DIR", d.ResultsDir),
		ConfigPath:           envOr("SHIFTCHECK_CONFIG", d.ConfigPath),
		Headless:             envBoolOr("SHIFTCHECK_HEADLESS", d.Headless),
		SlowMo:               envDurationOr("SHIFTCHECK_SLOWMO", d.SlowMo),
		ViewportWidth:        envIntOr("SHIFTCHECK_VIEWPORT_WIDTH", d.ViewportWidth),
		ViewportHeight:       envIntOr("SHIFTCHECK_VIEWPORT_HEIGHT", d.ViewportHeight),
		ChromeBinary:         os.Getenv("CHROME_BINARY"),
		ChromeExtraFlags:     os.Getenv("CHROME_FLAGS"),
		CdpURL:               os.Getenv("SHIFTCHECK_CDP_URL"),
		NoAnimations:         envBoolOr("SHIFTCHECK_NO_ANIMATIONS", false),
		Workers:              envIntOr("SHIFTCHECK_WORKERS", d.Workers),
		Trace:                envBoolOr("SHIFTCHECK_TRACE", d.Trace),
		ScreenshotOnFailure:  envBoolOr("SHIFTCHECK_SCREENSHOTS", d.ScreenshotOnFailure),
		LogLevel:             envOr("SHIFTCHECK_LOG_LEVEL", d.LogLevel),
		TestTimeout:          envDurationOr("SHIFTCHECK_TEST_TIMEOUT", d.TestTimeout),
		ExpectTimeout:        envDurationOr("SHIFTCHECK_EXPECT_TIMEOUT", d.ExpectTimeout),
		NavigationTimeout:    envDurationOr("SHIFTCHECK_NAV_TIMEOUT", d.NavigationTimeout),
		ActionTimeout:        envDurationOr("SHIFTCHECK_ACTION_TIMEOUT", d.ActionTimeout),
		ReadinessTimeout:     envDurationOr("SHIFTCHECK_READY_TIMEOUT", d.ReadinessTimeout),
		BlockedTimeout:       envDurationOr("SHIFTCHECK_BLOCKED_TIMEOUT", d.BlockedTimeout),
		LoginTimeout:         envDurationOr("SHIFTCHECK_LOGIN_TIMEOUT", d.LoginTimeout),
		ChromeStartTimeout:   d.ChromeStartTimeout,
		NetworkIdleQuietTime: d.NetworkIdleQuietTime,
	}

	data, err := os.ReadFile(cfg.ConfigPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			slog.Warn("config file unreadable, using environment only", "path", cfg.ConfigPath, "err", err)
		}
		return cfg
	}
	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		slog.Warn("config file malformed, using environment only", "path", cfg.ConfigPath, "err", err)
		return cfg
	}
	cfg.applyFile(&fc)
	return cfg
}

func (c *RuntimeConfig) applyFile(fc *FileConfig) {
	if fc.BaseURL != "" && !isSet("BASE_URL") {
		c.BaseURL = fc.BaseURL
	}
	if fc.ExpectedIdentity != "" && !isSet("DA_EXPECTED_USER") {
		c.ExpectedIdentity = fc.ExpectedIdentity
	}
	if fc.StatePath != "" && !isSet("SHIFTCHECK_STATE") {
		c.StatePath = fc.StatePath
	}
	if fc.ResultsDir != "" && !isSet("SHIFTCHECK_RESULTS_DIR") {
		c.ResultsDir = fc.ResultsDir
	}
	if fc.Headless != nil && !isSet("SHIFTCHECK_HEADLESS") {
		c.Headless = *fc.Headless
	}
	if fc.SlowMoMs != nil && *fc.SlowMoMs >= 0 && !isSet("SHIFTCHECK_SLOWMO") {
		c.SlowMo = time.Duration(*fc.SlowMoMs) * time.Millisecond
	}
	if fc.Viewport != nil && fc.Viewport.Width > 0 && fc.Viewport.Height > 0 &&
		!isSet("SHIFTCHECK_VIEWPORT_WIDTH") && !isSet("SHIFTCHECK_VIEWPORT_HEIGHT") {
		c.ViewportWidth = fc.Viewport.Width
		c.ViewportHeight = fc.Viewport.Height
	}
	if fc.ChromeBinary != "" && !isSet("CHROME_BINARY") {
		c.ChromeBinary = fc.ChromeBinary
	}
	if fc.CdpURL != "" && !isSet("SHIFTCHECK_CDP_URL") {
		c.CdpURL = fc.CdpURL
	}
	if fc.Workers != nil && *fc.Workers > 0 && !isSet("SHIFTCHECK_WORKERS") {
		c.Workers = *fc.Workers
	}
	if fc.Trace != nil && !isSet("SHIFTCHECK_TRACE") {
		c.Trace = *fc.Trace
	}
	t := fc.Timeouts
	if t.TestSec > 0 && !isSet("SHIFTCHECK_TEST_TIMEOUT") {
		c.TestTimeout = time.Duration(t.TestSec) * time.Second
	}
	if t.ExpectSec > 0 && !isSet("SHIFTCHECK_EXPECT_TIMEOUT") {
		c.ExpectTimeout = time.Duration(t.ExpectSec) * time.Second
	}
	if t.NavigationSec > 0 && !isSet("SHIFTCHECK_NAV_TIMEOUT") {
		c.NavigationTimeout = time.Duration(t.NavigationSec) * time.Second
	}
	if t.ActionSec > 0 && !isSet("SHIFTCHECK_ACTION_TIMEOUT") {
		c.ActionTimeout = time.Duration(t.ActionSec) * time.Second
	}
	if t.ReadinessSec > 0 && !isSet("SHIFTCHECK_READY_TIMEOUT") {
		c.ReadinessTimeout = time.Duration(t.ReadinessSec) * time.Second
	}
	if t.BlockedSec > 0 && !isSet("SHIFTCHECK_BLOCKED_TIMEOUT") {
		c.BlockedTimeout = time.Duration(t.BlockedSec) * time.Second
	}
}

// ErrMissing marks a required setting that was not provided.
var ErrMissing = errors.New("missing required configuration")

// Error is a configuration problem detected before any browser or network
// activity starts.
type Error struct {
	Field string
	Env   string
	Err   error
}

func (e *Error) Error() string {
	if e.Env != "" {
		return fmt.Sprintf("config %s (%s): %v", e.Field, e.Env, e.Err)
	}
	return fmt.Sprintf("config %s: %v", e.Field, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Validate checks what every scenario needs: a usable base URL.
func (c *RuntimeConfig) Validate() error {
	if strings.TrimSpace(c.BaseURL) == "" {
		return &Error{Field: "baseURL", Env: "BASE_URL", Err: fmt.Errorf("baseURL is missing: %w", ErrMissing)}
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return &Error{Field: "baseURL", Env: "BASE_URL", Err: err}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return &Error{Field: "baseURL", Env: "BASE_URL", Err: fmt.Errorf("unsupported scheme %q", u.Scheme)}
	}
	if c.StatePath == "" {
		return &Error{Field: "statePath", Env: "SHIFTCHECK_STATE", Err: ErrMissing}
	}
	return nil
}

// ValidateSetup additionally requires the login credentials.
func (c *RuntimeConfig) ValidateSetup() error {
	if err := c.Validate(); err != nil {
		return err
	}
	var missing []string
	if c.Username == "" {
		missing = append(missing, "DA_USERNAME")
	}
	if c.Password == "" {
		missing = append(missing, "DA_PASSWORD")
	}
	if len(missing) > 0 {
		return &Error{
			Field: "credentials",
			Env:   strings.Join(missing, ", "),
			Err:   fmt.Errorf("missing %s in environment: %w", strings.Join(missing, " or "), ErrMissing),
		}
	}
	if c.ExpectedIdentity == "" {
		return &Error{Field: "expectedIdentity", Env: "DA_EXPECTED_USER", Err: ErrMissing}
	}
	return nil
}

// NormalizedBaseURL returns the base URL with a trailing slash so that
// relative references resolve inside the application's scope.
func (c *RuntimeConfig) NormalizedBaseURL() string {
	if strings.HasSuffix(c.BaseURL, "/") {
		return c.BaseURL
	}
	return c.BaseURL + "/"
}

func (c *RuntimeConfig) StateAbsPath() string {
	if filepath.IsAbs(c.StatePath) {
		return c.StatePath
	}
	wd, err := os.Getwd()
	if err != nil {
		return c.StatePath
	}
	return filepath.Join(wd, c.StatePath)
}

func DefaultFileConfig() FileConfig {
	h := false
	slow := 200
	workers := 2
	tr := true
	fc := FileConfig{
		BaseURL:          "https://example.invalid/app/",
		ExpectedIdentity: "Laconics-Admin",
		StatePath:        DefaultStatePath,
		ResultsDir:       "test-results",
		Headless:         &h,
		SlowMoMs:         &slow,
		Workers:          &workers,
		Trace:            &tr,
	}
	fc.Timeouts.TestSec = 60
	fc.Timeouts.ExpectSec = 15
	fc.Timeouts.NavigationSec = 60
	fc.Timeouts.ActionSec = 20
	fc.Timeouts.ReadinessSec = 60
	fc.Timeouts.BlockedSec = 10
	return fc
}

// WriteDefaultFile writes DefaultFileConfig to path. Existing files are kept
// unless overwrite is set.
func WriteDefaultFile(path string, overwrite bool) error {
	if _, err := os.Stat(path); err == nil && !overwrite {
		return fmt.Errorf("config file already exists at %s", path)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
	}
	data, err := yaml.Marshal(DefaultFileConfig())
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// MaskSecret hides a password entirely; only its presence is reported.
func MaskSecret(s string) string {
	if s == "" {
		return "(none)"
	}
	return "***"
}
