// Package human paces pointer input so scenarios can be watched in a headed
// browser: every action moves the mouse along a short curve and is followed
// by a fixed slow-motion pause.
package human

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/chromedp"
)

type Point struct {
	X, Y float64
}

// DispatchFunc sends one mouse event to the page.
type DispatchFunc func(ctx context.Context, ev *input.DispatchMouseEventParams) error

func chromeDispatch(ctx context.Context, ev *input.DispatchMouseEventParams) error {
	return chromedp.Run(ctx, ev)
}

// Pacer is bound to a single page and remembers the last pointer position.
type Pacer struct {
	SlowMo time.Duration
	// StepDelay is the pause between intermediate pointer moves.
	StepDelay time.Duration

	rng      *rand.Rand
	dispatch DispatchFunc

	mu   sync.Mutex
	last Point
}

func New(slowMo time.Duration) *Pacer {
	return &Pacer{
		SlowMo:    slowMo,
		StepDelay: 8 * time.Millisecond,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		dispatch:  chromeDispatch,
	}
}

// WithDispatch replaces the event sink; tests use it to record input.
func (p *Pacer) WithDispatch(fn DispatchFunc) *Pacer {
	p.dispatch = fn
	return p
}

// WithSeed makes the generated paths reproducible.
func (p *Pacer) WithSeed(seed int64) *Pacer {
	p.rng = rand.New(rand.NewSource(seed))
	return p
}

// Pause blocks for the slow-motion delay or until ctx is done.
func (p *Pacer) Pause(ctx context.Context) error {
	return sleep(ctx, p.SlowMo)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Path returns the intermediate points of a cubic Bezier from one point to
// another. The last point is always exactly the destination.
func (p *Pacer) Path(from, to Point) []Point {
	distance := math.Hypot(to.X-from.X, to.Y-from.Y)
	if distance == 0 {
		return []Point{to}
	}
	steps := int(distance / 40)
	if steps < 3 {
		steps = 3
	}
	if steps > 20 {
		steps = 20
	}

	bend := math.Min(distance/8, 25)
	c1 := Point{
		X: from.X + (to.X-from.X)*0.3 + (p.rng.Float64()-0.5)*bend,
		Y: from.Y + (to.Y-from.Y)*0.3 + (p.rng.Float64()-0.5)*bend,
	}
	c2 := Point{
		X: from.X + (to.X-from.X)*0.7 + (p.rng.Float64()-0.5)*bend,
		Y: from.Y + (to.Y-from.Y)*0.7 + (p.rng.Float64()-0.5)*bend,
	}

	out := make([]Point, 0, steps)
	for i := 1; i <= steps; i++ {
		t := float64(i) / float64(steps)
		u := 1 - t
		out = append(out, Point{
			X: u*u*u*from.X + 3*u*u*t*c1.X + 3*u*t*t*c2.X + t*t*t*to.X,
			Y: u*u*u*from.Y + 3*u*u*t*c1.Y + 3*u*t*t*c2.Y + t*t*t*to.Y,
		})
	}
	out[len(out)-1] = to
	return out
}

// MoveTo glides the pointer to (x, y).
func (p *Pacer) MoveTo(ctx context.Context, x, y float64) error {
	p.mu.Lock()
	from := p.last
	p.mu.Unlock()

	to := Point{X: x, Y: y}
	for _, pt := range p.Path(from, to) {
		if err := p.dispatch(ctx, input.DispatchMouseEvent(input.MouseMoved, pt.X, pt.Y)); err != nil {
			return err
		}
		if err := sleep(ctx, p.StepDelay); err != nil {
			return err
		}
	}

	p.mu.Lock()
	p.last = to
	p.mu.Unlock()
	return nil
}

// Hover moves to (x, y) and applies the slow-motion pause.
func (p *Pacer) Hover(ctx context.Context, x, y float64) error {
	if err := p.MoveTo(ctx, x, y); err != nil {
		return err
	}
	return p.Pause(ctx)
}

// Click moves to (x, y), presses and releases the left button there, then
// applies the slow-motion pause.
func (p *Pacer) Click(ctx context.Context, x, y float64) error {
	if err := p.MoveTo(ctx, x, y); err != nil {
		return err
	}
	press := input.DispatchMouseEvent(input.MousePressed, x, y).
		WithButton(input.Left).
		WithClickCount(1)
	if err := p.dispatch(ctx, press); err != nil {
		return err
	}
	release := input.DispatchMouseEvent(input.MouseReleased, x, y).
		WithButton(input.Left).
		WithClickCount(1)
	if err := p.dispatch(ctx, release); err != nil {
		return err
	}
	return p.Pause(ctx)
}
