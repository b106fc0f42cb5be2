// Package app defines the pages of quizdesk and starts client sessions on them.
package app

import (
	"context"
	"fmt"

	"github.com/victornm/quizdesk/internal/account"
	"github.com/victornm/quizdesk/internal/generator"
	"github.com/victornm/quizdesk/internal/leaderboard"
	"github.com/victornm/quizdesk/internal/quiz"
	"github.com/victornm/quizdesk/internal/ui"
)

// Fields of the shared state of a session.
const (
	FieldUserID = "user_id"
	FieldName   = "name"
	FieldTopic  = "topic"
)

// Page names.
const (
	PageMainMenu  = "main_menu"
	PageRegister  = "register"
	PageLogin     = "login"
	PageDashboard = "dashboard"
	PageQuiz      = "quiz"
)

const (
	defaultQuestionsPerSession = 5
	topScorers                 = 5
)

type Deps struct {
	Accounts *account.Service
	Builder  *quiz.Builder
	Topics   *generator.Topics
	// Leaderboard is optional. Without it the dashboard shows no scores.
	Leaderboard *leaderboard.Service

	QuestionsPerSession int
}

type page struct {
	name     string
	tmpl     *ui.Template
	handlers ui.Handlers
}

// App holds the page templates, built once and shared by every session.
type App struct {
	d     Deps
	pages []page
}

func New(d Deps) (*App, error) {
	if d.Accounts == nil || d.Builder == nil || d.Topics == nil {
		return nil, fmt.Errorf("app: accounts, builder and topics are required")
	}
	if len(d.Topics.Titles()) == 0 {
		return nil, fmt.Errorf("app: no topics")
	}
	if d.QuestionsPerSession <= 0 {
		d.QuestionsPerSession = defaultQuestionsPerSession
	}

	a := &App{d: d}

	for _, newPage := range []func() (page, error){
		a.mainMenu,
		a.register,
		a.login,
		a.dashboard,
		a.quiz,
	} {
		p, err := newPage()
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		a.pages = append(a.pages, p)
	}

	return a, nil
}

// NewSession starts a session rendering on surface and shows the main menu.
// The caller closes the returned router when the session ends.
func (a *App) NewSession(ctx context.Context, surface ui.Surface) (*ui.Router, error) {
	state := ui.NewState(FieldUserID, FieldName, FieldTopic)
	r := ui.NewRouter(state, surface)

	for _, p := range a.pages {
		c, err := ui.NewController(p.tmpl, p.handlers)
		if err != nil {
			r.Close()
			return nil, err
		}
		if err := r.Register(p.name, c); err != nil {
			r.Close()
			return nil, err
		}
	}

	if err := r.Start(ctx, PageMainMenu); err != nil {
		r.Close()
		return nil, err
	}

	return r, nil
}
