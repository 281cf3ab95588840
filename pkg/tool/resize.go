package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/feedback"
	"github.com/aretw0/lattice/pkg/ports"
)

// KindChangeBounds asks the remote peer to move or resize an element.
const KindChangeBounds = "changeBounds"

// MinSize is the smallest width or height a resize can produce.
const MinSize = 1.0

// Point is a position in diagram coordinates.
type Point struct {
	X float64 `json:"x" mapstructure:"x"`
	Y float64 `json:"y" mapstructure:"y"`
}

// Bounds is the box of an element in diagram coordinates.
type Bounds struct {
	X      float64 `json:"x" mapstructure:"x"`
	Y      float64 `json:"y" mapstructure:"y"`
	Width  float64 `json:"width" mapstructure:"width"`
	Height float64 `json:"height" mapstructure:"height"`
}

// ChangeBounds is emitted when a resize is released.
type ChangeBounds struct {
	ElementID string `json:"elementId" mapstructure:"elementId"`
	Bounds    Bounds `json:"newBounds" mapstructure:"newBounds"`
}

func (ChangeBounds) Kind() string { return KindChangeBounds }

// State of the resize tool.
type State int

const (
	Idle State = iota
	Selected
	Resizing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Selected:
		return "selected"
	case Resizing:
		return "resizing"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Event is a discrete input for the tool.
type Event interface{ isEvent() }

// MouseDown presses on an element, a handle (by handle ID) or, with an empty ID, the background.
type MouseDown struct {
	ElementID string
	At        Point
}

// MouseMove moves the pointer.
type MouseMove struct{ At Point }

// MouseUp releases the pointer.
type MouseUp struct{ At Point }

// Escape cancels a resize or clears the selection.
type Escape struct{}

func (MouseDown) isEvent() {}
func (MouseMove) isEvent() {}
func (MouseUp) isEvent()   {}
func (Escape) isEvent()    {}

// FeedbackRegistry is the part of feedback.Registry the tool needs.
type FeedbackRegistry interface {
	Register(emitter any, actions ...domain.Action) error
	Deregister(ctx context.Context, emitter any, undo ...domain.Action) error
}

// Resize is the resize tool. Idle -> Selected on press, Selected -> Resizing on a
// handle press, Resizing -> Selected on release. Deselection resets to Idle.
type Resize struct {
	mu sync.Mutex

	state   State
	target  string
	handle  string
	origin  Point
	start   Bounds
	current Bounds

	feedback   FeedbackRegistry
	dispatcher ports.ActionDispatcher
	model      func() *domain.Element
}

// NewResize creates an idle resize tool. model returns the published model, used
// to read element bounds when a resize starts.
func NewResize(reg FeedbackRegistry, dispatcher ports.ActionDispatcher, model func() *domain.Element) *Resize {
	return &Resize{feedback: reg, dispatcher: dispatcher, model: model}
}

// State returns the current state and target.
func (r *Resize) State() (State, string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state, r.target
}

// Current returns the bounds of the resize in progress.
func (r *Resize) Current() Bounds {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Handle advances the state machine.
func (r *Resize) Handle(ctx context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch e := ev.(type) {
	case MouseDown:
		return r.press(ctx, e)
	case MouseMove:
		if r.state == Resizing {
			r.current = resize(r.start, r.handle, e.At.X-r.origin.X, e.At.Y-r.origin.Y)
		}
		return nil
	case MouseUp:
		if r.state != Resizing {
			return nil
		}
		r.current = resize(r.start, r.handle, e.At.X-r.origin.X, e.At.Y-r.origin.Y)
		change := ChangeBounds{ElementID: r.target, Bounds: r.current}
		r.state, r.handle = Selected, ""
		if err := r.show(); err != nil {
			return err
		}
		return r.dispatcher.Dispatch(ctx, change)
	case Escape:
		if r.state == Resizing {
			r.state, r.handle, r.current = Selected, "", r.start
			return r.show()
		}
		return r.reset(ctx)
	}
	return fmt.Errorf("%w: unsupported tool event %T", domain.ErrInvalidPayload, ev)
}

func (r *Resize) press(ctx context.Context, e MouseDown) error {
	if e.ElementID == "" {
		return r.reset(ctx)
	}
	if owner, pos, ok := feedback.ParseHandleID(e.ElementID); ok {
		if r.state != Selected || owner != r.target {
			return nil
		}
		b, ok := r.boundsOf(owner)
		if !ok {
			return fmt.Errorf("%w: element %s has no bounds", domain.ErrInvalidPayload, owner)
		}
		r.state, r.handle, r.origin, r.start, r.current = Resizing, pos, e.At, b, b
		return r.show()
	}
	if r.state == Resizing {
		return nil
	}
	r.state, r.target = Selected, e.ElementID
	return r.show()
}

// show registers the overlay of the current state. Must hold mu.
func (r *Resize) show() error {
	cursor := "move"
	if r.state == Resizing {
		cursor = cursorFor(r.handle)
	}
	return r.feedback.Register(r,
		feedback.NewShowHandles(r.target),
		feedback.NewSetCursor(r.target, cursor),
	)
}

// reset returns to Idle and removes the overlay immediately. Must hold mu.
func (r *Resize) reset(ctx context.Context) error {
	if r.state == Idle {
		return nil
	}
	target := r.target
	r.state, r.target, r.handle = Idle, "", ""
	r.origin, r.start, r.current = Point{}, Bounds{}, Bounds{}
	return r.feedback.Deregister(ctx, r,
		feedback.NewHideHandles(target),
		feedback.NewSetCursor(target, ""),
	)
}

func (r *Resize) boundsOf(id string) (Bounds, bool) {
	if r.model == nil {
		return Bounds{}, false
	}
	el := r.model().Find(id)
	if el == nil {
		return Bounds{}, false
	}
	var b Bounds
	var ok bool
	if b.X, ok = number(el.Attributes["x"]); !ok {
		return Bounds{}, false
	}
	if b.Y, ok = number(el.Attributes["y"]); !ok {
		return Bounds{}, false
	}
	if b.Width, ok = number(el.Attributes["width"]); !ok {
		return Bounds{}, false
	}
	if b.Height, ok = number(el.Attributes["height"]); !ok {
		return Bounds{}, false
	}
	return b, true
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func resize(b Bounds, handle string, dx, dy float64) Bounds {
	switch handle {
	case "nw":
		b.X, b.Y, b.Width, b.Height = b.X+dx, b.Y+dy, b.Width-dx, b.Height-dy
	case "ne":
		b.Y, b.Width, b.Height = b.Y+dy, b.Width+dx, b.Height-dy
	case "se":
		b.Width, b.Height = b.Width+dx, b.Height+dy
	case "sw":
		b.X, b.Width, b.Height = b.X+dx, b.Width-dx, b.Height+dy
	}
	if b.Width < MinSize {
		b.Width = MinSize
	}
	if b.Height < MinSize {
		b.Height = MinSize
	}
	return b
}

func cursorFor(handle string) string {
	switch handle {
	case "nw", "se":
		return "nwse-resize"
	case "ne", "sw":
		return "nesw-resize"
	}
	return "move"
}
