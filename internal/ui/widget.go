package ui

import (
	"context"
	"slices"

	"github.com/victornm/quizdesk/internal/errors"
)

type Kind string

const (
	KindButton   Kind = "button"
	KindText     Kind = "text"
	KindPassword Kind = "password"
	KindHTML     Kind = "html"
	KindSelect   Kind = "select"
	KindHBox     Kind = "hbox"
	KindVBox     Kind = "vbox"
)

// Widget is a UI element. Widgets are owned by the event loop of the router
// that displays them and are not safe for concurrent use.
type Widget interface {
	Kind() Kind
	Key() string
	Node() Node

	base() *widgetBase
}

// Valuer is a widget with a displayable string value. Only valuers can be bound to state.
type Valuer interface {
	Widget
	Value() string
	SetValue(v string)
}

// Editable is a widget whose value the user can change through an input action.
type Editable interface {
	Valuer
	Edit(v string) error
}

type widgetBase struct {
	key   string
	style map[string]string
}

func (b *widgetBase) base() *widgetBase { return b }

func (b *widgetBase) Key() string { return b.key }

func (b *widgetBase) Hidden() bool { return b.style["display"] == "none" }

func (b *widgetBase) Hide() { b.set("display", "none") }

func (b *widgetBase) Show() { delete(b.style, "display") }

func (b *widgetBase) set(k, v string) {
	if b.style == nil {
		b.style = make(map[string]string)
	}
	b.style[k] = v
}

func (b *widgetBase) node(k Kind, props map[string]any) Node {
	n := Node{Kind: k, Key: b.key, Props: props}
	if len(b.style) > 0 {
		n.Style = make(map[string]string, len(b.style))
		for k, v := range b.style {
			n.Style[k] = v
		}
	}

	return n
}

// Keyed sets the key of a widget that is not declared in a template, so that
// actions can reach it once it is appended to a view.
func Keyed[W Widget](key string, w W) W {
	w.base().key = key
	return w
}

// Styled sets layout properties as key/value pairs, e.g. Styled(box, "border", "3px solid").
func Styled[W Widget](w W, kv ...string) W {
	for i := 0; i+1 < len(kv); i += 2 {
		w.base().set(kv[i], kv[i+1])
	}
	return w
}

// Hidden returns w with display set to none.
func Hidden[W interface {
	Widget
	Hide()
}](w W) W {
	w.Hide()
	return w
}

// ClickFunc is run when a button is clicked.
type ClickFunc func(ctx context.Context) error

type Button struct {
	widgetBase
	Description string
	ButtonStyle string
	disabled    bool
	onClick     ClickFunc
}

func NewButton(description, style string) *Button {
	return &Button{Description: description, ButtonStyle: style}
}

func (*Button) Kind() Kind { return KindButton }

func (b *Button) Disabled() bool { return b.disabled }

func (b *Button) SetDisabled(d bool) { b.disabled = d }

// OnClick replaces the click function. A nil fn makes the button inert.
func (b *Button) OnClick(fn ClickFunc) { b.onClick = fn }

// Click runs the click function. Clicking a disabled, hidden or inert button does nothing.
func (b *Button) Click(ctx context.Context) error {
	if b.disabled || b.Hidden() || b.onClick == nil {
		return nil
	}

	return b.onClick(ctx)
}

func (b *Button) Node() Node {
	return b.node(KindButton, map[string]any{
		"description":  b.Description,
		"button_style": b.ButtonStyle,
		"disabled":     b.disabled,
	})
}

// Text is a single line input. Password inputs are Text widgets of KindPassword
// whose value is never rendered back.
type Text struct {
	widgetBase
	kind        Kind
	Description string
	Placeholder string
	value       string
	disabled    bool
}

func NewText(description, placeholder string) *Text {
	return &Text{kind: KindText, Description: description, Placeholder: placeholder}
}

func NewPassword(description string) *Text {
	return &Text{kind: KindPassword, Description: description}
}

func (t *Text) Kind() Kind { return t.kind }

func (t *Text) Value() string { return t.value }

func (t *Text) SetValue(v string) { t.value = v }

func (t *Text) SetDisabled(d bool) { t.disabled = d }

func (t *Text) Edit(v string) error {
	if t.disabled {
		return errors.New(errors.CodeInvalidArgument, errors.WithMessagef("input %q is disabled", t.key))
	}
	t.value = v
	return nil
}

func (t *Text) Node() Node {
	props := map[string]any{
		"description": t.Description,
		"placeholder": t.Placeholder,
		"disabled":    t.disabled,
	}
	if t.kind != KindPassword {
		props["value"] = t.value
	}

	return t.node(t.kind, props)
}

// HTML displays a trusted HTML fragment. Callers escape user data before setting it.
type HTML struct {
	widgetBase
	value string
}

func NewHTML(value string) *HTML {
	return &HTML{value: value}
}

func (*HTML) Kind() Kind { return KindHTML }

func (h *HTML) Value() string { return h.value }

func (h *HTML) SetValue(v string) { h.value = v }

func (h *HTML) Node() Node {
	return h.node(KindHTML, map[string]any{"value": h.value})
}

// Select picks one of a fixed list of options. It starts on the first option.
type Select struct {
	widgetBase
	Description string
	options     []string
	value       string
}

func NewSelect(description string, options []string) *Select {
	s := &Select{Description: description, options: slices.Clone(options)}
	if len(options) > 0 {
		s.value = options[0]
	}
	return s
}

func (*Select) Kind() Kind { return KindSelect }

func (s *Select) Options() []string { return slices.Clone(s.options) }

func (s *Select) Value() string { return s.value }

func (s *Select) SetValue(v string) { s.value = v }

func (s *Select) Edit(v string) error {
	if !slices.Contains(s.options, v) {
		return errors.New(errors.CodeInvalidArgument, errors.WithMessagef("%q is not an option of %q", v, s.key))
	}
	s.value = v
	return nil
}

func (s *Select) Node() Node {
	return s.node(KindSelect, map[string]any{
		"description": s.Description,
		"options":     s.Options(),
		"value":       s.value,
	})
}

// Box lays out its children horizontally or vertically.
type Box struct {
	widgetBase
	kind     Kind
	children []Widget
}

func HBox(children ...Widget) *Box {
	return &Box{kind: KindHBox, children: children}
}

func VBox(children ...Widget) *Box {
	return &Box{kind: KindVBox, children: children}
}

func (b *Box) Kind() Kind { return b.kind }

func (b *Box) Children() []Widget { return slices.Clone(b.children) }

func (b *Box) Node() Node {
	n := b.node(b.kind, nil)
	for _, c := range b.children {
		n.Children = append(n.Children, c.Node())
	}
	return n
}

var errNilWidget = errors.Preconditionf("nil widget")

// walk visits w and all its descendants depth first.
func walk(w Widget, fn func(Widget) error) error {
	if w == nil {
		return errNilWidget
	}

	if err := fn(w); err != nil {
		return err
	}

	if b, ok := w.(*Box); ok {
		for _, c := range b.children {
			if err := walk(c, fn); err != nil {
				return err
			}
		}
	}

	return nil
}
