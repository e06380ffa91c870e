package browser

import (
	"context"
	"errors"
	"time"

	"github.com/Venallanaj/QA-Task/internal/session"
)

// ErrNotFound is returned by element reads when nothing matches the selector.
var ErrNotFound = errors.New("no element matches selector")

// Response describes the document response of a navigation. Status is zero
// for same-document navigations that never reach the network.
type Response struct {
	URL    string
	Status int
}

// Page is a single tab inside an isolated browsing context.
type Page interface {
	// Goto resolves ref against the base URL and waits for DOMContentLoaded.
	Goto(ctx context.Context, ref string) (*Response, error)
	URL(ctx context.Context) (string, error)
	Locate(sel Selector) Element
	// WaitNetworkIdle returns once no request has been in flight for quiet.
	WaitNetworkIdle(ctx context.Context, quiet time.Duration) error
	Screenshot(ctx context.Context, path string) error
	ClearCookies(ctx context.Context) error
	StorageState(ctx context.Context) (*session.State, error)
}

// Element is a lazy handle: every call re-resolves its selector. Reads are
// immediate snapshots; actions wait for the first match to become visible.
type Element interface {
	Selector() Selector
	Click(ctx context.Context) error
	Hover(ctx context.Context) error
	Fill(ctx context.Context, value string) error
	Visible(ctx context.Context) (bool, error)
	Text(ctx context.Context) (string, error)
	Count(ctx context.Context) (int, error)
	Attribute(ctx context.Context, name string) (value string, ok bool, err error)
	HasClass(ctx context.Context, class string) (bool, error)
}
