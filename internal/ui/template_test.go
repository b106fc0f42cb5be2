package ui_test

import (
	"context"
	"iter"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/quizdesk/internal/errors"
	"github.com/victornm/quizdesk/internal/ui"
)

func TestNewTemplate_Rejects(t *testing.T) {
	shared := ui.NewButton("shared", "")

	tests := map[string]struct {
		defs    []ui.Def
		wantMsg string
	}{
		"duplicate keys": {
			defs: []ui.Def{
				ui.Element("title", func(*ui.Elements) ui.Widget { return ui.NewHTML("a") }),
				ui.Element("title", func(*ui.Elements) ui.Widget { return ui.NewHTML("b") }),
			},
			wantMsg: `duplicate element key "title"`,
		},

		"empty key": {
			defs: []ui.Def{
				ui.Element("", func(*ui.Elements) ui.Widget { return ui.NewHTML("a") }),
			},
			wantMsg: "empty element key",
		},

		"nil widget": {
			defs: []ui.Def{
				ui.Element("title", func(*ui.Elements) ui.Widget { return nil }),
			},
			wantMsg: `element "title" is nil`,
		},

		"mixed list": {
			defs: []ui.Def{
				ui.List("row", 2, func(i int, _ *ui.Elements) ui.Widget {
					if i == 0 {
						return ui.NewButton("b", "")
					}
					return ui.NewHTML("h")
				}),
			},
			wantMsg: `list "row" mixes button and html`,
		},

		"mixed sequence": {
			defs: []ui.Def{
				ui.Seq("row", func(*ui.Elements) iter.Seq[ui.Widget] {
					return func(yield func(ui.Widget) bool) {
						_ = yield(ui.NewText("t", "")) && yield(ui.NewPassword("p"))
					}
				}),
			},
			wantMsg: `list "row" mixes text and password`,
		},

		"reference to undeclared element": {
			defs: []ui.Def{
				ui.Element("box", func(e *ui.Elements) ui.Widget { return ui.HBox(e.Get("later")) }),
				ui.Element("later", func(*ui.Elements) ui.Widget { return ui.NewButton("b", "") }),
			},
			wantMsg: `"box" references undeclared "later"`,
		},

		"widget shared between views": {
			defs: []ui.Def{
				ui.Element("shared", func(*ui.Elements) ui.Widget { return shared }),
			},
			wantMsg: `element "shared" is shared between views`,
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			_, err := ui.NewTemplate("page", tt.defs)
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, errors.CodeFailedPrecondition))
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestTemplate_KeysAndRender(t *testing.T) {
	tmpl, err := ui.NewTemplate("page", []ui.Def{
		ui.Element("title", func(*ui.Elements) ui.Widget { return ui.NewHTML("<h1>Hi</h1>") }),
		ui.Element("ok", func(*ui.Elements) ui.Widget { return ui.NewButton("OK", "") }, ui.Ignored()),
		ui.Element("cancel", func(*ui.Elements) ui.Widget { return ui.NewButton("Cancel", "") }, ui.Ignored()),
		ui.Element("buttons", func(e *ui.Elements) ui.Widget { return ui.HBox(e.Get("ok"), e.Get("cancel")) }),
		ui.List("opt", 2, func(i int, _ *ui.Elements) ui.Widget { return ui.NewText("opt", "") }),
		ui.Seq("line", func(*ui.Elements) iter.Seq[ui.Widget] {
			return func(yield func(ui.Widget) bool) {
				for _, s := range []string{"a", "b", "c"} {
					if !yield(ui.NewHTML(s)) {
						return
					}
				}
			}
		}),
		ui.Element("hint", func(*ui.Elements) ui.Widget { return ui.NewHTML("hint") }, ui.Ignored()),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"title", "ok", "cancel", "buttons",
		"opt_index_0", "opt_index_1",
		"line_index_0", "line_index_1", "line_index_2",
		"hint",
	}, tmpl.Keys())

	kind, ok := tmpl.Kind("ok")
	assert.True(t, ok)
	assert.Equal(t, ui.KindButton, kind)

	v, err := tmpl.NewView(context.Background(), ui.NewState())
	require.NoError(t, err)

	root := v.Render()
	assert.Equal(t, ui.KindVBox, root.Kind)
	assert.Equal(t, map[string]string{"align_items": "center", "max_width": "100%"}, root.Style)

	var keys []string
	for _, c := range root.Children {
		keys = append(keys, c.Key)
	}
	// Ignored elements are registered but only rendered where a composite embeds them.
	assert.Equal(t, []string{
		"title", "buttons",
		"opt_index_0", "opt_index_1",
		"line_index_0", "line_index_1", "line_index_2",
	}, keys)
	assert.Equal(t, "ok", root.Children[1].Children[0].Key)

	_, ok = v.Get("hint")
	assert.True(t, ok)
}

func TestTemplate_ViewsDoNotShareWidgets(t *testing.T) {
	tmpl := ui.MustTemplate("page", []ui.Def{
		ui.Element("name", func(*ui.Elements) ui.Widget { return ui.NewText("Name", "") }),
	})

	v1, err := tmpl.NewView(context.Background(), ui.NewState())
	require.NoError(t, err)
	v2, err := tmpl.NewView(context.Background(), ui.NewState())
	require.NoError(t, err)

	require.NoError(t, ui.Lookup[*ui.Text](v1, "name").Edit("alice"))

	assert.NotSame(t, ui.Lookup[*ui.Text](v1, "name"), ui.Lookup[*ui.Text](v2, "name"))
	assert.Equal(t, "", ui.Lookup[*ui.Text](v2, "name").Value())
}

func TestView_LinkAppendAndBind(t *testing.T) {
	state := ui.NewState("name")
	state.Set("name", "alice")

	tmpl := ui.MustTemplate("dashboard", []ui.Def{
		ui.Element("welcome", func(*ui.Elements) ui.Widget { return ui.NewHTML("") }),
	}, ui.WithLink(func(ctx context.Context, v *ui.View) error {
		if err := v.Bind(ui.Lookup[*ui.HTML](v, "welcome"), "name", func(s string) string { return "Hello " + s }); err != nil {
			return err
		}
		return v.Append(ui.VBox(ui.Keyed("extra", ui.NewButton("Extra", ""))))
	}))

	v, err := tmpl.NewView(context.Background(), state)
	require.NoError(t, err)

	welcome := ui.Lookup[*ui.HTML](v, "welcome")
	assert.Equal(t, "Hello alice", welcome.Value(), "initial value is pushed on bind")

	state.Set("name", "bob")
	assert.Equal(t, "Hello bob", welcome.Value())

	_, ok := v.Get("extra")
	assert.True(t, ok, "keyed descendants of appended widgets are indexed")
	assert.Len(t, v.Render().Children, 2)

	v.Close()
	state.Set("name", "carol")
	assert.Equal(t, "Hello bob", welcome.Value(), "a closed view no longer follows state")
}

func TestView_BindRejects(t *testing.T) {
	tmpl := ui.MustTemplate("page", []ui.Def{
		ui.Element("label", func(*ui.Elements) ui.Widget { return ui.NewHTML("") }),
		ui.Element("go", func(*ui.Elements) ui.Widget { return ui.NewButton("Go", "") }),
	})
	v, err := tmpl.NewView(context.Background(), ui.NewState("name"))
	require.NoError(t, err)

	tests := map[string]struct {
		widget ui.Widget
		field  string
	}{
		"unknown field": {widget: ui.Lookup[*ui.HTML](v, "label"), field: "email"},
		"no value":      {widget: ui.Lookup[*ui.Button](v, "go"), field: "name"},
		"nil widget":    {widget: nil, field: "name"},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			err := v.Bind(tt.widget, tt.field, nil)
			assert.True(t, errors.HasCode(err, errors.CodeFailedPrecondition), "got %v", err)
		})
	}
}

func TestView_AppendDuplicateKey(t *testing.T) {
	tmpl := ui.MustTemplate("page", []ui.Def{
		ui.Element("go", func(*ui.Elements) ui.Widget { return ui.NewButton("Go", "") }),
	})
	v, err := tmpl.NewView(context.Background(), ui.NewState())
	require.NoError(t, err)

	err = v.Append(ui.Keyed("go", ui.NewButton("Other", "")))
	assert.True(t, errors.HasCode(err, errors.CodeFailedPrecondition))
}
