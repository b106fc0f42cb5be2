package ui

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/victornm/quizdesk/internal/errors"
)

// Event is passed to a handler when its button is clicked.
type Event struct {
	Router *Router
	View   *View
	Source *Button
}

type Handler func(ctx context.Context, ev *Event) error

// Handlers maps a button key of a template to the function run on click.
type Handlers map[string]Handler

// Controller drives one page: it builds a fresh view from its template on
// every Show and wires the handlers to the view's buttons.
type Controller struct {
	tmpl     *Template
	handlers Handlers
	view     *View
}

// NewController fails if a handler key is not a button declared in tmpl.
// Declared buttons without a handler stay inert.
func NewController(tmpl *Template, h Handlers) (*Controller, error) {
	if tmpl == nil {
		return nil, errors.Preconditionf("controller has no template")
	}

	for key, fn := range h {
		kind, ok := tmpl.Kind(key)
		if !ok {
			return nil, errors.Preconditionf("template %q: handler for undeclared element %q", tmpl.Name(), key)
		}
		if kind != KindButton {
			return nil, errors.Preconditionf("template %q: handler for %q which is a %s", tmpl.Name(), key, kind)
		}
		if fn == nil {
			return nil, errors.Preconditionf("template %q: nil handler for %q", tmpl.Name(), key)
		}
	}

	hs := make(Handlers, len(h))
	for k, fn := range h {
		hs[k] = fn
	}

	return &Controller{tmpl: tmpl, handlers: hs}, nil
}

func MustController(tmpl *Template, h Handlers) *Controller {
	c, err := NewController(tmpl, h)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Controller) Name() string { return c.tmpl.Name() }

// View returns the view of the last Show, or nil.
func (c *Controller) View() *View { return c.view }

// Show builds a fresh view, binds events, replaces the previous view and
// displays the render on the router's surface.
func (c *Controller) Show(ctx context.Context, r *Router) error {
	v, err := c.tmpl.NewView(ctx, r.state)
	if err != nil {
		return err
	}

	c.bind(r, v)

	if c.view != nil {
		c.view.Close()
	}
	c.view = v

	r.surface.Clear()
	r.surface.Display(v.Render())

	return nil
}

func (c *Controller) bind(r *Router, v *View) {
	for key, h := range c.handlers {
		b := Lookup[*Button](v, key)
		ev := &Event{Router: r, View: v, Source: b}
		b.OnClick(Guard(b, func(ctx context.Context) error {
			return h(ctx, ev)
		}))
	}
}

// Guard disables b while fn runs. b is re-enabled when fn returns an error or
// panics; a panic is returned as an internal error.
func Guard(b *Button, fn ClickFunc) ClickFunc {
	return func(ctx context.Context) (err error) {
		b.SetDisabled(true)
		defer func() {
			if r := recover(); r != nil {
				err = errors.Internal(fmt.Errorf("handler panic: %v, stack: %s", r, debug.Stack()))
			}
			b.SetDisabled(false)
		}()

		return fn(ctx)
	}
}
