package app

import (
	"context"
	stderrors "errors"
	"fmt"
	"html"
	"slices"
	"strings"

	"github.com/victornm/quizdesk/internal/account"
	"github.com/victornm/quizdesk/internal/errors"
	"github.com/victornm/quizdesk/internal/quiz"
	"github.com/victornm/quizdesk/internal/ui"
)

func title(text string) *ui.HTML {
	return ui.Styled(ui.NewHTML(titleHTML(text)), "text_align", "center")
}

func titleHTML(text string) string {
	return fmt.Sprintf("<h1 style='color: teal'>%s</h1>", html.EscapeString(text))
}

func message(color, text string) *ui.HTML {
	return ui.Hidden(ui.NewHTML(fmt.Sprintf("<strong style='color:%s'>%s</strong>", color, text)))
}

func goTo(name string) ui.Handler {
	return func(ctx context.Context, ev *ui.Event) error {
		return ev.Router.Go(ctx, name)
	}
}

func (a *App) mainMenu() (page, error) {
	tmpl, err := ui.NewTemplate(PageMainMenu, []ui.Def{
		ui.Element("title", func(*ui.Elements) ui.Widget { return title("Main Menu") }),
		ui.Element("btn_login", func(*ui.Elements) ui.Widget { return ui.NewButton("Login", "primary") }),
		ui.Element("btn_register", func(*ui.Elements) ui.Widget { return ui.NewButton("Register", "primary") }),
		ui.Element("btn_exit", func(*ui.Elements) ui.Widget { return ui.NewButton("Exit", "danger") }),
	})
	if err != nil {
		return page{}, err
	}

	return page{
		name: PageMainMenu,
		tmpl: tmpl,
		handlers: ui.Handlers{
			"btn_login":    goTo(PageLogin),
			"btn_register": goTo(PageRegister),
			"btn_exit": func(ctx context.Context, ev *ui.Event) error {
				ev.Router.State().Reset()
				return ev.Router.Go(ctx, PageMainMenu)
			},
		},
	}, nil
}

func (a *App) register() (page, error) {
	field := func(w ui.Widget) ui.Widget { return ui.Styled(w, "description_width", "140px") }

	tmpl, err := ui.NewTemplate(PageRegister, []ui.Def{
		ui.Element("title", func(*ui.Elements) ui.Widget { return title("Register Page") }),
		ui.Element("name", func(*ui.Elements) ui.Widget { return field(ui.NewText("Name: ", "Enter your name")) }),
		ui.Element("username", func(*ui.Elements) ui.Widget {
			return field(ui.NewText("Username: ", "Enter your username"))
		}),
		ui.Element("password", func(*ui.Elements) ui.Widget { return field(ui.NewPassword("Password:")) }),
		ui.Element("confirmed_password", func(*ui.Elements) ui.Widget {
			return field(ui.NewPassword("Confirmed Password:"))
		}),
		ui.Element("error_text_password_not_match", func(*ui.Elements) ui.Widget {
			return message("red", account.ErrPasswordMismatch.Message)
		}),
		ui.Element("error_text_password_length", func(*ui.Elements) ui.Widget {
			return message("red", account.ErrPasswordTooShort.Message)
		}),
		ui.Element("error_text_password_too_long", func(*ui.Elements) ui.Widget {
			return message("red", account.ErrPasswordTooLong.Message)
		}),
		ui.Element("error_text_username_required", func(*ui.Elements) ui.Widget {
			return message("red", account.ErrUsernameRequired.Message)
		}),
		ui.Element("error_text_username", func(*ui.Elements) ui.Widget {
			return message("red", account.ErrUsernameTaken.Message)
		}),
		ui.Element("btn_exit", func(*ui.Elements) ui.Widget { return ui.NewButton("Exit", "danger") }, ui.Ignored()),
		ui.Element("btn_register", func(*ui.Elements) ui.Widget { return ui.NewButton("Register", "primary") }, ui.Ignored()),
		ui.Element("box", func(e *ui.Elements) ui.Widget {
			return ui.Styled(ui.HBox(e.Get("btn_exit"), e.Get("btn_register")),
				"justify_content", "space-between",
				"grid_gap", "1.5em",
			)
		}),
		ui.Element("succeeded", func(*ui.Elements) ui.Widget {
			return message("green", "Successfully registered an account! Click 'exit' to return back.")
		}),
	})
	if err != nil {
		return page{}, err
	}

	return page{
		name: PageRegister,
		tmpl: tmpl,
		handlers: ui.Handlers{
			"btn_exit":     goTo(PageMainMenu),
			"btn_register": a.onRegister,
		},
	}, nil
}

// registerErrors maps a validation failure to the element displaying it.
var registerErrors = []struct {
	err error
	key string
}{
	{account.ErrPasswordMismatch, "error_text_password_not_match"},
	{account.ErrPasswordTooShort, "error_text_password_length"},
	{account.ErrPasswordTooLong, "error_text_password_too_long"},
	{account.ErrUsernameRequired, "error_text_username_required"},
	{account.ErrUsernameTaken, "error_text_username"},
}

func (a *App) onRegister(ctx context.Context, ev *ui.Event) error {
	v := ev.View
	for _, re := range registerErrors {
		ui.Lookup[*ui.HTML](v, re.key).Hide()
	}
	succeeded := ui.Lookup[*ui.HTML](v, "succeeded")
	succeeded.Hide()

	_, err := a.d.Accounts.Register(ctx, account.RegisterRequest{
		Name:         ui.Lookup[*ui.Text](v, "name").Value(),
		Username:     ui.Lookup[*ui.Text](v, "username").Value(),
		Password:     ui.Lookup[*ui.Text](v, "password").Value(),
		Confirmation: ui.Lookup[*ui.Text](v, "confirmed_password").Value(),
	})
	for _, re := range registerErrors {
		if stderrors.Is(err, re.err) {
			ui.Lookup[*ui.HTML](v, re.key).Show()
			return nil
		}
	}
	if err != nil {
		return err
	}

	succeeded.Show()
	return nil
}

func (a *App) login() (page, error) {
	tmpl, err := ui.NewTemplate(PageLogin, []ui.Def{
		ui.Element("title", func(*ui.Elements) ui.Widget { return title("Login Page") }),
		ui.Element("username", func(*ui.Elements) ui.Widget { return ui.NewText("Username: ", "Enter your username") }),
		ui.Element("password", func(*ui.Elements) ui.Widget { return ui.NewPassword("Password:") }),
		ui.Element("error_text", func(*ui.Elements) ui.Widget {
			return message("red", account.ErrInvalidCredentials.Message)
		}),
		ui.Element("btn_exit", func(*ui.Elements) ui.Widget { return ui.NewButton("Exit", "danger") }, ui.Ignored()),
		ui.Element("btn_login", func(*ui.Elements) ui.Widget { return ui.NewButton("Login", "primary") }, ui.Ignored()),
		ui.Element("box", func(e *ui.Elements) ui.Widget {
			return ui.Styled(ui.HBox(e.Get("btn_exit"), e.Get("btn_login")),
				"justify_content", "space-between",
				"grid_gap", "1.5em",
			)
		}),
	})
	if err != nil {
		return page{}, err
	}

	return page{
		name: PageLogin,
		tmpl: tmpl,
		handlers: ui.Handlers{
			"btn_exit":  goTo(PageMainMenu),
			"btn_login": a.onLogin,
		},
	}, nil
}

func (a *App) onLogin(ctx context.Context, ev *ui.Event) error {
	v := ev.View
	errText := ui.Lookup[*ui.HTML](v, "error_text")
	errText.Hide()

	u, err := a.d.Accounts.Login(ctx,
		ui.Lookup[*ui.Text](v, "username").Value(),
		ui.Lookup[*ui.Text](v, "password").Value(),
	)
	if stderrors.Is(err, account.ErrInvalidCredentials) {
		errText.Show()
		return nil
	}
	if err != nil {
		return err
	}

	s := ev.Router.State()
	s.Set(FieldName, u.Name)
	s.Set(FieldUserID, u.ID)

	return ev.Router.Go(ctx, PageDashboard)
}

func (a *App) dashboard() (page, error) {
	topics := a.d.Topics.Titles()

	tmpl, err := ui.NewTemplate(PageDashboard, []ui.Def{
		ui.Element("title", func(*ui.Elements) ui.Widget { return title("Dashboard") }, ui.Ignored()),
		ui.Element("btn_sign_out", func(*ui.Elements) ui.Widget { return ui.NewButton("Sign Out", "danger") }, ui.Ignored()),
		ui.Element("header", func(e *ui.Elements) ui.Widget {
			return ui.Styled(ui.HBox(e.Get("title"), e.Get("btn_sign_out")),
				"justify_content", "space-between",
				"align_items", "center",
				"width", "auto",
			)
		}, ui.Ignored()),
		ui.Element("welcome_msg", func(*ui.Elements) ui.Widget { return ui.NewHTML("") }, ui.Ignored()),
		ui.Element("options", func(*ui.Elements) ui.Widget {
			return ui.Styled(ui.NewSelect("Topics: ", topics), "description_width", "initial")
		}, ui.Ignored()),
		ui.Element("btn_proceed", func(*ui.Elements) ui.Widget { return ui.NewButton("Proceed", "info") }, ui.Ignored()),
		ui.Element("container_options", func(e *ui.Elements) ui.Widget {
			return ui.Styled(ui.VBox(e.Get("options"), e.Get("btn_proceed")),
				"align_items", "center",
				"width", "30em",
			)
		}, ui.Ignored()),
		ui.Element("scores", func(*ui.Elements) ui.Widget { return ui.NewHTML("") }, ui.Ignored()),
		ui.Element("center", func(e *ui.Elements) ui.Widget {
			return ui.Styled(ui.HBox(e.Get("welcome_msg"), e.Get("container_options")),
				"margin", "1px 0",
				"width", "auto",
				"display", "grid",
			)
		}, ui.Ignored()),
		ui.Element("layout", func(e *ui.Elements) ui.Widget {
			return ui.Styled(ui.VBox(e.Get("header"), e.Get("center"), e.Get("scores")),
				"width", "100%",
				"padding", "1em",
			)
		}),
	}, ui.WithLink(a.linkDashboard))
	if err != nil {
		return page{}, err
	}

	return page{
		name: PageDashboard,
		tmpl: tmpl,
		handlers: ui.Handlers{
			"btn_sign_out": func(ctx context.Context, ev *ui.Event) error {
				s := ev.Router.State()
				s.Set(FieldUserID, "")
				s.Set(FieldName, "")
				s.Set(FieldTopic, "")
				return ev.Router.Go(ctx, PageMainMenu)
			},
			"btn_proceed": func(ctx context.Context, ev *ui.Event) error {
				ev.Router.State().Set(FieldTopic, ui.Lookup[*ui.Select](ev.View, "options").Value())
				return ev.Router.Go(ctx, PageQuiz)
			},
		},
	}, nil
}

func welcome(name string) string {
	return fmt.Sprintf("<strong>Welcome back! How are you, <span style='color:green'>%s</span>?</strong>", html.EscapeString(name))
}

func (a *App) linkDashboard(ctx context.Context, v *ui.View) error {
	if err := v.Bind(ui.Lookup[*ui.HTML](v, "welcome_msg"), FieldName, welcome); err != nil {
		return err
	}

	options := ui.Lookup[*ui.Select](v, "options")
	// A topic no longer offered keeps the first option.
	if topic := v.State().Get(FieldTopic); slices.Contains(options.Options(), topic) {
		options.SetValue(topic)
	}

	scores := ui.Lookup[*ui.HTML](v, "scores")
	if a.d.Leaderboard == nil {
		scores.Hide()
		return nil
	}

	l, err := a.d.Leaderboard.Top(ctx, options.Value(), topScorers)
	if err != nil {
		return fmt.Errorf("dashboard: top scorers: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<strong>Top scorers in %s</strong>", html.EscapeString(l.Topic))
	if len(l.Entries) == 0 {
		b.WriteString("<p>No correct answers yet.</p>")
	} else {
		b.WriteString("<ol>")
		for _, e := range l.Entries {
			fmt.Fprintf(&b, "<li>%s: %g</li>", html.EscapeString(e.Name), e.Score)
		}
		b.WriteString("</ol>")
	}
	scores.SetValue(b.String())

	return nil
}

func (a *App) quiz() (page, error) {
	tmpl, err := ui.NewTemplate(PageQuiz, []ui.Def{
		ui.Element("title", func(*ui.Elements) ui.Widget { return title("") }),
		ui.Element("instruction", func(*ui.Elements) ui.Widget { return ui.NewHTML("") }),
		ui.Element("exit_btn", func(*ui.Elements) ui.Widget { return ui.NewButton("Exit", "danger") }),
	}, ui.WithLink(a.linkQuiz))
	if err != nil {
		return page{}, err
	}

	return page{
		name: PageQuiz,
		tmpl: tmpl,
		handlers: ui.Handlers{
			"exit_btn": goTo(PageDashboard),
		},
	}, nil
}

func (a *App) linkQuiz(ctx context.Context, v *ui.View) error {
	s := v.State()
	topic, ok := a.d.Topics.Get(s.Get(FieldTopic))
	if !ok {
		return errors.New(errors.CodeNotFound, errors.WithMessagef("topic %q not found", s.Get(FieldTopic)))
	}

	err := v.Bind(ui.Lookup[*ui.HTML](v, "title"), FieldTopic, func(t string) string {
		return titleHTML(t + " Quiz")
	})
	if err != nil {
		return err
	}
	ui.Lookup[*ui.HTML](v, "instruction").SetValue(fmt.Sprintf("<strong>%s</strong>", html.EscapeString(topic.Instruction)))

	blocks, err := a.d.Builder.Build(ctx, quiz.BuildRequest{
		UserID:   s.Get(FieldUserID),
		UserName: s.Get(FieldName),
		Title:    topic.Title,
		Source:   topic.Source,
		Count:    a.d.QuestionsPerSession,
	})
	if errors.HasCode(err, errors.CodeResourceExhausted) {
		return v.Append(ui.Keyed("quiz_error", ui.NewHTML(
			"<strong style='color:red'>No new questions are available for this topic. Please try another one.</strong>",
		)))
	}
	if err != nil {
		return err
	}

	return v.Append(blocks...)
}
