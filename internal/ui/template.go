package ui

import (
	"context"
	"fmt"
	"iter"
	"slices"

	"github.com/victornm/quizdesk/internal/errors"
)

type defKind int

const (
	defElement defKind = iota
	defList
	defSeq
)

// Def declares one named entry of a template: a single element, a list of n
// elements or a sequence of elements.
type Def struct {
	key     string
	kind    defKind
	n       int
	ignored bool

	element func(e *Elements) Widget
	list    func(i int, e *Elements) Widget
	seq     func(e *Elements) iter.Seq[Widget]
}

type DefOption func(*Def)

// Ignored keeps an element out of the render list. It is still registered, so
// it can be looked up, bound, or embedded into a later composite.
func Ignored() DefOption {
	return func(d *Def) { d.ignored = true }
}

func Element(key string, build func(e *Elements) Widget, opts ...DefOption) Def {
	return newDef(Def{key: key, kind: defElement, element: build}, opts)
}

// List declares n widgets of the same kind. Member i is keyed key_index_i.
func List(key string, n int, build func(i int, e *Elements) Widget, opts ...DefOption) Def {
	return newDef(Def{key: key, kind: defList, n: n, list: build}, opts)
}

// Seq declares a lazily produced run of widgets of the same kind. It is fully
// materialized on build and keyed like a List.
func Seq(key string, build func(e *Elements) iter.Seq[Widget], opts ...DefOption) Def {
	return newDef(Def{key: key, kind: defSeq, seq: build}, opts)
}

func newDef(d Def, opts []DefOption) Def {
	for _, opt := range opts {
		opt(&d)
	}
	return d
}

func indexKey(key string, i int) string {
	return fmt.Sprintf("%s_index_%d", key, i)
}

// Elements are the widgets built so far for one view instance.
type Elements struct {
	byKey   map[string]Widget
	lists   map[string][]Widget
	order   []string
	missing []string
}

func newElements() *Elements {
	return &Elements{
		byKey: make(map[string]Widget),
		lists: make(map[string][]Widget),
	}
}

// Get returns the widget declared under key. Referencing a key that is not
// declared before the caller is a template error.
func (e *Elements) Get(key string) Widget {
	w, ok := e.byKey[key]
	if !ok {
		e.missing = append(e.missing, key)
	}
	return w
}

// List returns the members of a List or Seq definition.
func (e *Elements) List(key string) []Widget {
	ws, ok := e.lists[key]
	if !ok {
		e.missing = append(e.missing, key)
	}
	return slices.Clone(ws)
}

// index registers w under key together with its keyed descendants.
func (e *Elements) index(key string, w Widget) error {
	if key == "" {
		return errors.Preconditionf("empty element key")
	}
	if _, dup := e.byKey[key]; dup {
		return errors.Preconditionf("duplicate element key %q", key)
	}
	w.base().key = key
	e.byKey[key] = w
	e.order = append(e.order, key)

	return walk(w, func(d Widget) error {
		if d == w || d.Key() == "" {
			return nil
		}
		if prev, ok := e.byKey[d.Key()]; ok {
			if prev != d {
				return errors.Preconditionf("duplicate element key %q", d.Key())
			}
			return nil
		}
		e.byKey[d.Key()] = d
		e.order = append(e.order, d.Key())
		return nil
	})
}

// Template is the immutable descriptor of one page. Every view built from it
// gets its own widgets.
type Template struct {
	name  string
	defs  []Def
	kinds map[string]Kind
	keys  []string
	link  func(ctx context.Context, v *View) error
}

type Option func(*Template)

// WithLink sets a hook run on every new view, after its declared elements are
// built. It typically appends runtime elements and binds state.
func WithLink(fn func(ctx context.Context, v *View) error) Option {
	return func(t *Template) { t.link = fn }
}

// NewTemplate checks defs by building them twice and records the key set and
// the kind of every key.
func NewTemplate(name string, defs []Def, opts ...Option) (*Template, error) {
	t := &Template{name: name, defs: slices.Clone(defs)}
	for _, opt := range opts {
		opt(t)
	}

	first, _, err := t.build()
	if err != nil {
		return nil, err
	}
	second, _, err := t.build()
	if err != nil {
		return nil, err
	}

	t.kinds = make(map[string]Kind, len(first.order))
	for _, k := range first.order {
		w := first.byKey[k]
		if second.byKey[k] == w {
			return nil, errors.Preconditionf("template %q: element %q is shared between views", name, k)
		}
		t.kinds[k] = w.Kind()
	}
	t.keys = first.order

	return t, nil
}

func MustTemplate(name string, defs []Def, opts ...Option) *Template {
	t, err := NewTemplate(name, defs, opts...)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Template) Name() string { return t.name }

// Keys returns every registered key in declaration order.
func (t *Template) Keys() []string { return slices.Clone(t.keys) }

func (t *Template) Kind(key string) (Kind, bool) {
	k, ok := t.kinds[key]
	return k, ok
}

func (t *Template) build() (*Elements, []Widget, error) {
	els := newElements()
	var render []Widget

	add := func(key string, w Widget, ignored bool) error {
		if w == nil {
			return errors.Preconditionf("template %q: element %q is nil", t.name, key)
		}
		if err := els.index(key, w); err != nil {
			return errors.Preconditionf("template %q: %s", t.name, errors.Convert(err).Message)
		}
		if !ignored {
			render = append(render, w)
		}
		return nil
	}

	addMembers := func(d Def, members []Widget) error {
		if _, dup := els.lists[d.key]; dup || d.key == "" {
			return errors.Preconditionf("template %q: invalid list key %q", t.name, d.key)
		}
		for i, w := range members {
			if w == nil {
				return errors.Preconditionf("template %q: element %q is nil", t.name, indexKey(d.key, i))
			}
			if w.Kind() != members[0].Kind() {
				return errors.Preconditionf("template %q: list %q mixes %s and %s", t.name, d.key, members[0].Kind(), w.Kind())
			}
		}
		for i, w := range members {
			if err := add(indexKey(d.key, i), w, d.ignored); err != nil {
				return err
			}
		}
		els.lists[d.key] = members
		return nil
	}

	for _, d := range t.defs {
		var members []Widget
		switch d.kind {
		case defElement:
			if d.element == nil {
				return nil, nil, errors.Preconditionf("template %q: element %q has no builder", t.name, d.key)
			}
			members = []Widget{d.element(els)}
		case defList:
			if d.list == nil {
				return nil, nil, errors.Preconditionf("template %q: list %q has no builder", t.name, d.key)
			}
			for i := 0; i < d.n; i++ {
				members = append(members, d.list(i, els))
			}
		case defSeq:
			if d.seq == nil {
				return nil, nil, errors.Preconditionf("template %q: sequence %q has no builder", t.name, d.key)
			}
			members = slices.Collect(d.seq(els))
		}

		if len(els.missing) > 0 {
			return nil, nil, errors.Preconditionf("template %q: %q references undeclared %q", t.name, d.key, els.missing[0])
		}

		var err error
		if d.kind == defElement {
			err = add(d.key, members[0], d.ignored)
		} else {
			err = addMembers(d, members)
		}
		if err != nil {
			return nil, nil, err
		}
	}

	return els, render, nil
}

// NewView builds fresh widgets and runs the link hook.
func (t *Template) NewView(ctx context.Context, state *State) (*View, error) {
	els, render, err := t.build()
	if err != nil {
		return nil, err
	}

	v := &View{
		name:   t.name,
		state:  state,
		els:    els.byKey,
		render: render,
	}

	if t.link != nil {
		if err := t.link(ctx, v); err != nil {
			v.Close()
			return nil, err
		}
	}

	return v, nil
}
