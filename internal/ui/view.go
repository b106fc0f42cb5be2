package ui

import (
	"fmt"

	"github.com/victornm/quizdesk/internal/errors"
)

// View is one activation of a template: its own widgets, render list and state bindings.
type View struct {
	name    string
	state   *State
	els     map[string]Widget
	render  []Widget
	cancels []func()
}

func (v *View) Name() string { return v.name }

func (v *View) State() *State { return v.state }

func (v *View) Get(key string) (Widget, bool) {
	w, ok := v.els[key]
	return w, ok
}

// Lookup returns the widget under key as a T. It panics if there is none,
// which only happens when a page refers to a key its template does not declare.
func Lookup[T Widget](v *View, key string) T {
	w, ok := v.els[key]
	if !ok {
		panic(fmt.Sprintf("ui: view %q has no element %q", v.name, key))
	}
	t, ok := w.(T)
	if !ok {
		panic(fmt.Sprintf("ui: element %q of view %q is a %s", key, v.name, w.Kind()))
	}
	return t
}

// Append adds runtime widgets to the end of the render list. Keyed widgets and
// keyed descendants become reachable by actions.
func (v *View) Append(ws ...Widget) error {
	for _, w := range ws {
		err := walk(w, func(d Widget) error {
			if d.Key() == "" {
				return nil
			}
			if prev, ok := v.els[d.Key()]; ok && prev != d {
				return errors.Preconditionf("view %q: duplicate element key %q", v.name, d.Key())
			}
			v.els[d.Key()] = d
			return nil
		})
		if err != nil {
			return err
		}
		v.render = append(v.render, w)
	}

	return nil
}

// Bind keeps w's value equal to transform(state[field]), or to the raw value
// when transform is nil. The current value is pushed immediately.
func (v *View) Bind(w Widget, field string, transform func(string) string) error {
	vw, ok := w.(Valuer)
	if !ok {
		return errors.Preconditionf("view %q: cannot bind %T to %q: not a value widget", v.name, w, field)
	}

	push := func(s string) {
		if transform != nil {
			s = transform(s)
		}
		vw.SetValue(s)
	}

	cancel, ok := v.state.Observe(field, push)
	if !ok {
		return errors.Preconditionf("view %q: state has no field %q", v.name, field)
	}
	v.cancels = append(v.cancels, cancel)
	push(v.state.Get(field))

	return nil
}

// Render lays out the render list vertically, centered, at full width.
func (v *View) Render() Node {
	return Styled(VBox(v.render...), "align_items", "center", "max_width", "100%").Node()
}

// Close cancels the view's state bindings. A closed view no longer follows state.
func (v *View) Close() {
	for _, cancel := range v.cancels {
		cancel()
	}
	v.cancels = nil
}
