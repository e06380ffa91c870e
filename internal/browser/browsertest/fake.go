// Package browsertest provides an in-memory browser.Page for exercising page
// objects and scenarios without Chrome.
package browsertest

import (
	"context"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Venallanaj/QA-Task/internal/browser"
	"github.com/Venallanaj/QA-Task/internal/session"
)

// Page is a scriptable fake. Elements are keyed by their selector string
// and spring into existence, unmatched, on first lookup.
type Page struct {
	mu       sync.Mutex
	base     *url.URL
	url      string
	elements map[string]*Element
	calls    []string

	// GotoFunc, when set, decides the response for a navigation.
	GotoFunc func(target string) (*browser.Response, error)
	IdleErr  error
	// IdleBlocks makes WaitNetworkIdle wait until its context ends.
	IdleBlocks     bool
	State          *session.State
	StateErr       error
	URLErr         error
	ScreenshotFunc func(path string) error
}

func NewPage(base string) *Page {
	u, err := url.Parse(base)
	if err != nil {
		panic(err)
	}
	return &Page{base: u, url: "about:blank", elements: make(map[string]*Element)}
}

func (p *Page) record(call string) {
	p.mu.Lock()
	p.calls = append(p.calls, call)
	p.mu.Unlock()
}

// Calls returns the recorded operations in order, e.g. "goto ./#/",
// "count h1 >> has-text=\"Forbidden\"", "click [data-testid=\"x\"]".
func (p *Page) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

func (p *Page) SetURL(u string) {
	p.mu.Lock()
	p.url = u
	p.mu.Unlock()
}

// El returns the fake element for sel, creating it unmatched.
func (p *Page) El(sel browser.Selector) *Element {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := sel.String()
	el, ok := p.elements[key]
	if !ok {
		el = &Element{page: p, sel: sel, attrs: map[string]string{}, classes: map[string]bool{}}
		p.elements[key] = el
	}
	return el
}

func (p *Page) Goto(ctx context.Context, ref string) (*browser.Response, error) {
	p.record("goto " + ref)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	target, err := browser.ResolveURL(p.base, ref)
	if err != nil {
		return nil, err
	}
	resp := &browser.Response{URL: target, Status: 200}
	if p.GotoFunc != nil {
		resp, err = p.GotoFunc(target)
		if err != nil {
			return nil, err
		}
	}
	p.SetURL(target)
	return resp, nil
}

func (p *Page) URL(ctx context.Context) (string, error) {
	if p.URLErr != nil {
		return "", p.URLErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url, ctx.Err()
}

func (p *Page) Locate(sel browser.Selector) browser.Element { return p.El(sel) }

func (p *Page) WaitNetworkIdle(ctx context.Context, quiet time.Duration) error {
	p.record("networkidle")
	if p.IdleErr != nil {
		return p.IdleErr
	}
	if p.IdleBlocks {
		<-ctx.Done()
	}
	return ctx.Err()
}

func (p *Page) Screenshot(ctx context.Context, path string) error {
	p.record("screenshot")
	if p.ScreenshotFunc != nil {
		return p.ScreenshotFunc(path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte("\x89PNG"), 0644)
}

func (p *Page) ClearCookies(ctx context.Context) error {
	p.record("clear-cookies")
	return ctx.Err()
}

func (p *Page) StorageState(ctx context.Context) (*session.State, error) {
	p.record("storage-state")
	if p.StateErr != nil {
		return nil, p.StateErr
	}
	if p.State == nil {
		return &session.State{}, nil
	}
	return p.State, nil
}

// Element is a fake match set. Its first match is what reads observe.
type Element struct {
	page *Page
	sel  browser.Selector

	mu      sync.Mutex
	count   int
	visible bool
	text    string
	attrs   map[string]string
	classes map[string]bool
	clicks  int
	hovers  int
	fills   []string

	// OnClick runs after a successful click, e.g. to advance other elements.
	OnClick  func()
	ClickErr error
	HoverErr error
	FillErr  error
	ReadErr  error
}

// Show makes the element a single visible match with text.
func (e *Element) Show(text string) *Element {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.count, e.visible, e.text = 1, true, text
	return e
}

func (e *Element) Hide() *Element {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.visible = false
	return e
}

func (e *Element) SetCount(n int) *Element {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.count = n
	return e
}

func (e *Element) SetText(t string) *Element {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.text = t
	return e
}

func (e *Element) SetAttr(name, value string) *Element {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.attrs[name] = value
	return e
}

func (e *Element) SetClass(class string, on bool) *Element {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.classes[class] = on
	return e
}

func (e *Element) Clicks() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clicks
}

func (e *Element) Hovers() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hovers
}

func (e *Element) Fills() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.fills...)
}

func (e *Element) Selector() browser.Selector { return e.sel }

func (e *Element) actionable(action string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.count == 0 || !e.visible {
		return &browser.ActionError{Action: action, Selector: e.sel.String(), Reason: "not visible"}
	}
	return nil
}

func (e *Element) Click(ctx context.Context) error {
	e.page.record("click " + e.sel.String())
	if e.ClickErr != nil {
		return e.ClickErr
	}
	if err := e.actionable("click"); err != nil {
		return err
	}
	e.mu.Lock()
	e.clicks++
	hook := e.OnClick
	e.mu.Unlock()
	if hook != nil {
		hook()
	}
	return ctx.Err()
}

func (e *Element) Hover(ctx context.Context) error {
	e.page.record("hover " + e.sel.String())
	if e.HoverErr != nil {
		return e.HoverErr
	}
	if err := e.actionable("hover"); err != nil {
		return err
	}
	e.mu.Lock()
	e.hovers++
	e.mu.Unlock()
	return ctx.Err()
}

func (e *Element) Fill(ctx context.Context, value string) error {
	e.page.record("fill " + e.sel.String())
	if e.FillErr != nil {
		return e.FillErr
	}
	if err := e.actionable("fill"); err != nil {
		return err
	}
	e.mu.Lock()
	e.fills = append(e.fills, value)
	e.mu.Unlock()
	return ctx.Err()
}

func (e *Element) Visible(ctx context.Context) (bool, error) {
	e.page.record("visible " + e.sel.String())
	if e.ReadErr != nil {
		return false, e.ReadErr
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.count > 0 && e.visible, nil
}

func (e *Element) Text(ctx context.Context) (string, error) {
	e.page.record("text " + e.sel.String())
	if e.ReadErr != nil {
		return "", e.ReadErr
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.count == 0 {
		return "", browser.ErrNotFound
	}
	return e.text, nil
}

func (e *Element) Count(ctx context.Context) (int, error) {
	e.page.record("count " + e.sel.String())
	if e.ReadErr != nil {
		return 0, e.ReadErr
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.count, nil
}

func (e *Element) Attribute(ctx context.Context, name string) (string, bool, error) {
	e.page.record("attr " + e.sel.String())
	if e.ReadErr != nil {
		return "", false, e.ReadErr
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.count == 0 {
		return "", false, browser.ErrNotFound
	}
	v, ok := e.attrs[name]
	return v, ok, nil
}

func (e *Element) HasClass(ctx context.Context, class string) (bool, error) {
	e.page.record("hasclass " + e.sel.String())
	if e.ReadErr != nil {
		return false, e.ReadErr
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.count > 0 && e.classes[class], nil
}

var (
	_ browser.Page    = (*Page)(nil)
	_ browser.Element = (*Element)(nil)
)
