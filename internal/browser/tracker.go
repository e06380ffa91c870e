package browser

import (
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
)

type document struct {
	url      string
	status   int
	domReady bool
}

// netTracker follows CDP events for one page: document responses keyed by
// loader, DOMContentLoaded lifecycle events, and in-flight requests for the
// network-idle wait. Waiters block on changed(), which is closed and replaced
// on every update.
type netTracker struct {
	mu           sync.Mutex
	docs         map[cdp.LoaderID]*document
	inflight     map[network.RequestID]struct{}
	lastActivity time.Time
	notify       chan struct{}
	now          func() time.Time
}

func newNetTracker() *netTracker {
	return &netTracker{
		docs:         make(map[cdp.LoaderID]*document),
		inflight:     make(map[network.RequestID]struct{}),
		lastActivity: time.Now(),
		notify:       make(chan struct{}),
		now:          time.Now,
	}
}

func (t *netTracker) bumpLocked() {
	close(t.notify)
	t.notify = make(chan struct{})
}

func (t *netTracker) docLocked(id cdp.LoaderID) *document {
	d, ok := t.docs[id]
	if !ok {
		d = &document{}
		t.docs[id] = d
	}
	return d
}

// handle is registered with chromedp.ListenTarget and must not block.
func (t *netTracker) handle(ev any) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch e := ev.(type) {
	case *network.EventRequestWillBeSent:
		t.inflight[e.RequestID] = struct{}{}
		t.lastActivity = t.now()
	case *network.EventLoadingFinished:
		delete(t.inflight, e.RequestID)
		t.lastActivity = t.now()
	case *network.EventLoadingFailed:
		delete(t.inflight, e.RequestID)
		t.lastActivity = t.now()
	case *network.EventResponseReceived:
		if e.Type != network.ResourceTypeDocument || e.Response == nil {
			return
		}
		d := t.docLocked(e.LoaderID)
		d.status = int(e.Response.Status)
		d.url = e.Response.URL
	case *page.EventLifecycleEvent:
		if e.Name != "DOMContentLoaded" {
			return
		}
		t.docLocked(e.LoaderID).domReady = true
	default:
		return
	}
	t.bumpLocked()
}

func (t *netTracker) changed() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.notify
}

func (t *netTracker) document(id cdp.LoaderID) (document, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	d, ok := t.docs[id]
	if !ok {
		return document{}, false
	}
	return *d, true
}

// quietFor reports the number of in-flight requests and how long the
// network has been without activity.
func (t *netTracker) quietFor() (int, time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.inflight), t.now().Sub(t.lastActivity)
}
