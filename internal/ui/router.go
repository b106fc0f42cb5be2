package ui

import (
	"context"
	"log/slog"
	"sync"

	"github.com/victornm/quizdesk/internal/errors"
	"github.com/victornm/quizdesk/internal/event"
)

type ActionType string

const (
	ActionInput ActionType = "input"
	ActionClick ActionType = "click"
)

// Action is a user interaction with the element under Key of the current page.
type Action struct {
	Type  ActionType `json:"type" binding:"required,oneof=input click"`
	Key   string     `json:"key" binding:"required"`
	Value string     `json:"value"`
}

// Router owns the pages of one session. It shows one controller at a time on
// its surface and runs every action on its own event loop, one at a time.
type Router struct {
	state       *State
	surface     Surface
	loop        *event.Loop
	controllers map[string]*Controller

	mu      sync.Mutex
	current string
}

func NewRouter(state *State, surface Surface) *Router {
	return &Router{
		state:       state,
		surface:     surface,
		loop:        event.NewLoop(),
		controllers: make(map[string]*Controller),
	}
}

// Register adds a page under name. Pages are registered before the router is started.
func (r *Router) Register(name string, c *Controller) error {
	if c == nil {
		return errors.Preconditionf("router: nil controller for %q", name)
	}
	if _, dup := r.controllers[name]; dup {
		return errors.Preconditionf("router: %q already registered", name)
	}

	r.controllers[name] = c
	return nil
}

func (r *Router) State() *State { return r.state }

// Current returns the name of the page shown last.
func (r *Router) Current() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.current
}

// Go shows the page registered under name, clearing the surface once. It must
// run on the router's loop, that is from a handler or a link hook.
func (r *Router) Go(ctx context.Context, name string) error {
	c, ok := r.controllers[name]
	if !ok {
		return errors.New(errors.CodeNotFound, errors.WithMessagef("page %q not found", name))
	}

	if err := c.Show(ctx, r); err != nil {
		return err
	}

	r.mu.Lock()
	r.current = name
	r.mu.Unlock()

	return nil
}

// Start shows the first page.
func (r *Router) Start(ctx context.Context, name string) error {
	return r.loop.Do(ctx, func(ctx context.Context) error {
		return r.Go(ctx, name)
	})
}

// Dispatch runs a on the loop, waits for it and repaints the current page.
func (r *Router) Dispatch(ctx context.Context, a Action) error {
	return r.loop.Do(ctx, func(ctx context.Context) error {
		c := r.controllers[r.Current()]
		if c == nil || c.View() == nil {
			return errors.Preconditionf("router: no page shown")
		}

		w, ok := c.View().Get(a.Key)
		if !ok {
			return errors.New(errors.CodeInvalidArgument, errors.WithMessagef("unknown element %q", a.Key))
		}

		err := r.apply(ctx, a, w)
		if err != nil && !errors.HasCode(err, errors.CodeInvalidArgument) {
			slog.ErrorContext(ctx, "router: action failed",
				"page", c.Name(), "type", a.Type, "key", a.Key, "error", err)
		}

		r.repaint()
		return err
	})
}

func (r *Router) apply(ctx context.Context, a Action, w Widget) error {
	switch a.Type {
	case ActionInput:
		e, ok := w.(Editable)
		if !ok {
			return errors.New(errors.CodeInvalidArgument, errors.WithMessagef("element %q is not an input", a.Key))
		}
		return e.Edit(a.Value)

	case ActionClick:
		b, ok := w.(*Button)
		if !ok {
			return errors.New(errors.CodeInvalidArgument, errors.WithMessagef("element %q is not a button", a.Key))
		}
		return b.Click(ctx)

	default:
		return errors.New(errors.CodeInvalidArgument, errors.WithMessagef("unknown action type %q", a.Type))
	}
}

// repaint displays the current page again, after a handler changed its widgets.
func (r *Router) repaint() {
	if c := r.controllers[r.Current()]; c != nil && c.View() != nil {
		r.surface.Display(c.View().Render())
	}
}

// Close stops the loop and the state bindings of every page.
func (r *Router) Close() {
	r.loop.Stop()
	for _, c := range r.controllers {
		if c.View() != nil {
			c.View().Close()
		}
	}
}
