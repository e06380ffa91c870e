package human

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/chromedp/cdproto/input"
)

type recorder struct {
	events []*input.DispatchMouseEventParams
	failOn input.MouseType
}

func (r *recorder) dispatch(_ context.Context, ev *input.DispatchMouseEventParams) error {
	if r.failOn != "" && ev.Type == r.failOn {
		return errors.New("dispatch failed")
	}
	r.events = append(r.events, ev)
	return nil
}

func newTestPacer(r *recorder) *Pacer {
	p := New(0).WithDispatch(r.dispatch).WithSeed(1)
	p.StepDelay = 0
	return p
}

func TestPathEndsAtTarget(t *testing.T) {
	p := New(0).WithSeed(42)
	to := Point{X: 640, Y: 410}
	path := p.Path(Point{}, to)

	if len(path) < 3 || len(path) > 20 {
		t.Fatalf("path has %d points, want 3..20", len(path))
	}
	if path[len(path)-1] != to {
		t.Errorf("path ends at %+v, want %+v", path[len(path)-1], to)
	}
}

func TestPathShortDistance(t *testing.T) {
	p := New(0).WithSeed(7)
	path := p.Path(Point{X: 10, Y: 10}, Point{X: 11, Y: 10})
	if len(path) != 3 {
		t.Errorf("expected minimum of 3 steps, got %d", len(path))
	}
}

func TestClickSequence(t *testing.T) {
	r := &recorder{}
	p := newTestPacer(r)

	if err := p.Click(context.Background(), 100, 200); err != nil {
		t.Fatalf("Click: %v", err)
	}
	n := len(r.events)
	if n < 5 {
		t.Fatalf("expected moves plus press/release, got %d events", n)
	}
	press, release := r.events[n-2], r.events[n-1]
	if press.Type != input.MousePressed || release.Type != input.MouseReleased {
		t.Errorf("last events = %s, %s", press.Type, release.Type)
	}
	if press.X != 100 || press.Y != 200 || press.Button != input.Left {
		t.Errorf("press at (%v,%v) button %s", press.X, press.Y, press.Button)
	}
	for _, ev := range r.events[:n-2] {
		if ev.Type != input.MouseMoved {
			t.Errorf("unexpected event before press: %s", ev.Type)
		}
	}
}

func TestMoveToRemembersPosition(t *testing.T) {
	r := &recorder{}
	p := newTestPacer(r)
	ctx := context.Background()

	if err := p.MoveTo(ctx, 50, 50); err != nil {
		t.Fatal(err)
	}
	r.events = nil
	if err := p.MoveTo(ctx, 50, 50); err != nil {
		t.Fatal(err)
	}
	for _, ev := range r.events {
		if ev.X != 50 || ev.Y != 50 {
			t.Errorf("zero-length move wandered to (%v,%v)", ev.X, ev.Y)
		}
	}
}

func TestPathZeroLength(t *testing.T) {
	p := New(0).WithSeed(7)
	got := p.Path(Point{X: 50, Y: 50}, Point{X: 50, Y: 50})
	if len(got) != 1 || got[0] != (Point{X: 50, Y: 50}) {
		t.Errorf("Path = %v, want single destination point", got)
	}
}

func TestClickDispatchError(t *testing.T) {
	r := &recorder{failOn: input.MousePressed}
	p := newTestPacer(r)
	if err := p.Click(context.Background(), 1, 1); err == nil {
		t.Error("expected dispatch error to surface")
	}
}

func TestPauseHonoursContext(t *testing.T) {
	p := New(time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	if err := p.Pause(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Pause err = %v, want context.Canceled", err)
	}
	if time.Since(start) > time.Second {
		t.Error("Pause did not return promptly on cancelled context")
	}
}

func TestPauseZero(t *testing.T) {
	if err := New(0).Pause(context.Background()); err != nil {
		t.Errorf("Pause with no slow-mo: %v", err)
	}
}
