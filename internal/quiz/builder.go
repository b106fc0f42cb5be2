// Package quiz builds the interactive question blocks of a quiz session.
package quiz

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	"github.com/victornm/quizdesk/internal/domain"
	"github.com/victornm/quizdesk/internal/errors"
	"github.com/victornm/quizdesk/internal/event"
	"github.com/victornm/quizdesk/internal/store"
	"github.com/victornm/quizdesk/internal/ui"
)

const defaultMaxRetries = 1000

// Source produces a fresh question/answer/solution triple on every call.
type Source func() (domain.Quiz, error)

type Config struct {
	Store    store.Store
	EventBus *event.Bus
	// MaxRetries bounds the number of generated questions tried per block.
	MaxRetries int
	Now        func() time.Time
}

type Builder struct {
	store      store.Store
	eb         *event.Bus
	maxRetries int
	now        func() time.Time
}

func NewBuilder(c Config) *Builder {
	b := &Builder{
		store:      c.Store,
		eb:         c.EventBus,
		maxRetries: c.MaxRetries,
		now:        c.Now,
	}
	if b.maxRetries <= 0 {
		b.maxRetries = defaultMaxRetries
	}
	if b.now == nil {
		b.now = time.Now
	}

	return b
}

type BuildRequest struct {
	UserID   string
	UserName string
	Title    string
	Source   Source
	Count    int
}

// Build stores Count new questions from req.Source and returns one block per
// question. Blocks are keyed quiz_<n> with n starting at 1.
func (b *Builder) Build(ctx context.Context, req BuildRequest) ([]ui.Widget, error) {
	if req.Source == nil {
		return nil, errors.Preconditionf("quiz %q has no source", req.Title)
	}

	blocks := make([]ui.Widget, 0, req.Count)
	for n := 1; n <= req.Count; n++ {
		q, err := b.createQuestion(ctx, req)
		if err != nil {
			return nil, err
		}

		blocks = append(blocks, b.block(n, q, req))
	}

	return blocks, nil
}

// createQuestion regenerates on a question text that is already stored.
func (b *Builder) createQuestion(ctx context.Context, req BuildRequest) (*domain.Question, error) {
	for i := 0; i < b.maxRetries; i++ {
		qz, err := req.Source()
		if err != nil {
			return nil, fmt.Errorf("generate question: %w", err)
		}

		q := &domain.Question{
			Question:   qz.Question,
			Solution:   qz.Solution,
			Answer:     qz.Answer,
			Title:      req.Title,
			CreateTime: b.now(),
		}
		err = b.store.CreateQuestion(ctx, q)
		if store.IsConflict(err) {
			continue
		}
		if err != nil {
			return nil, err
		}

		return q, nil
	}

	slog.WarnContext(ctx, "quiz: question source exhausted", "title", req.Title, "tries", b.maxRetries)
	return nil, errors.New(errors.CodeResourceExhausted,
		errors.WithMessagef("no new %s question after %d tries", req.Title, b.maxRetries))
}

func (b *Builder) block(n int, q *domain.Question, req BuildRequest) ui.Widget {
	key := func(name string) string { return fmt.Sprintf("quiz_%d_%s", n, name) }

	prompt := ui.Keyed(key("prompt"), ui.NewHTML(fmt.Sprintf("<strong>%s</strong>", html.EscapeString(q.Question))))
	answer := ui.Keyed(key("answer"), ui.NewText(fmt.Sprintf("Question %d:", n), "Enter your answer"))
	solution := ui.Keyed(key("solution"), ui.Hidden(ui.NewHTML(fmt.Sprintf("<strong>%s</strong>", html.EscapeString(q.Solution)))))
	correct := ui.Keyed(key("correct"), ui.Hidden(ui.NewHTML("<strong style='color:green'>Correct!</strong>")))
	incorrect := ui.Keyed(key("incorrect"), ui.Hidden(ui.NewHTML("<strong style='color:red'>Incorrect! Try again or show the solution</strong>")))
	submit := ui.Keyed(key("submit"), ui.NewButton("Submit", "info"))
	showSolution := ui.Keyed(key("show_solution"), ui.Hidden(ui.NewButton("Show Solution", "warning")))

	showSolution.OnClick(ui.Guard(showSolution, func(context.Context) error {
		solution.Show()
		return nil
	}))

	// attempt is nil until the first submission, then saved in place.
	var attempt *domain.Attempt
	submit.OnClick(ui.Guard(submit, func(ctx context.Context) error {
		ok := strings.TrimSpace(answer.Value()) == q.Answer

		correct.Hide()
		incorrect.Hide()
		showSolution.Hide()
		if ok {
			correct.Show()
		} else {
			incorrect.Show()
			showSolution.Show()
		}

		var firstCorrect bool
		if attempt == nil {
			a := domain.NewAttempt(req.UserID, q.ID, ok, b.now())
			if err := b.store.CreateAttempt(ctx, a); err != nil {
				return fmt.Errorf("insert attempt: %w", err)
			}
			attempt = a
			firstCorrect = ok
		} else {
			firstCorrect = attempt.Record(ok)
			if err := b.store.SaveAttempt(ctx, attempt); err != nil {
				return fmt.Errorf("save attempt: %w", err)
			}
		}

		b.eb.Publish(ctx, domain.EventAttemptRecorded{
			Attempt:      *attempt,
			Title:        req.Title,
			UserName:     req.UserName,
			FirstCorrect: firstCorrect,
		})

		return nil
	}))

	buttons := ui.Keyed(key("buttons"), ui.HBox(submit, showSolution))

	return ui.Keyed(fmt.Sprintf("quiz_%d", n), ui.Styled(
		ui.VBox(prompt, answer, solution, buttons, correct, incorrect),
		"border", "3px solid",
		"padding", "1em",
		"margin", "1em 0",
	))
}
