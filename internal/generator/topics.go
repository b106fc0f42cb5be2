package generator

import (
	"github.com/victornm/quizdesk/internal/errors"
	"github.com/victornm/quizdesk/internal/quiz"
)

const TopicQuadratic = "Quadratic Equation"

type Topic struct {
	Title       string
	Instruction string
	Source      quiz.Source
}

// Topics is an ordered registry of quiz topics by title.
type Topics struct {
	list []Topic
}

func (t *Topics) Add(topic Topic) error {
	if topic.Title == "" || topic.Source == nil {
		return errors.Preconditionf("topic %q needs a title and a source", topic.Title)
	}
	if _, ok := t.Get(topic.Title); ok {
		return errors.Preconditionf("topic %q already registered", topic.Title)
	}

	t.list = append(t.list, topic)
	return nil
}

func (t *Topics) Get(title string) (Topic, bool) {
	for _, topic := range t.list {
		if topic.Title == title {
			return topic, true
		}
	}
	return Topic{}, false
}

// Titles returns the titles in registration order.
func (t *Topics) Titles() []string {
	titles := make([]string, 0, len(t.list))
	for _, topic := range t.list {
		titles = append(titles, topic.Title)
	}
	return titles
}

// DefaultTopics registers the quadratic equation topic.
func DefaultTopics(r *Rand) *Topics {
	t := &Topics{}
	_ = t.Add(Topic{
		Title:       TopicQuadratic,
		Instruction: "Solve for x for each question",
		Source:      Quadratic(r),
	})
	return t
}
