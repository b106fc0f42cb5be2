package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/victornm/quizdesk/internal/domain"
)

func TestAttempt_Record(t *testing.T) {
	type step struct {
		correct          bool
		wantCorrect      bool
		wantTimes        int
		wantFirstCorrect bool
	}

	tests := map[string]struct {
		first bool
		steps []step
	}{
		"correct on first submission should never count further submissions": {
			first: true,
			steps: []step{
				{correct: false, wantCorrect: true, wantTimes: 1},
				{correct: true, wantCorrect: true, wantTimes: 1},
			},
		},
		"counter should stop exactly at the first correct submission": {
			first: false,
			steps: []step{
				{correct: false, wantCorrect: false, wantTimes: 2},
				{correct: true, wantCorrect: true, wantTimes: 3, wantFirstCorrect: true},
				{correct: false, wantCorrect: true, wantTimes: 3},
				{correct: true, wantCorrect: true, wantTimes: 3},
			},
		},
		"never correct should count every submission": {
			first: false,
			steps: []step{
				{correct: false, wantCorrect: false, wantTimes: 2},
				{correct: false, wantCorrect: false, wantTimes: 3},
			},
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			a := domain.NewAttempt("u1", "q1", tt.first, time.Now())
			assert.Equal(t, 1, a.TimesOfAnswering)

			for i, s := range tt.steps {
				first := a.Record(s.correct)
				assert.Equal(t, s.wantCorrect, a.IsCorrect, "step %d", i)
				assert.Equal(t, s.wantTimes, a.TimesOfAnswering, "step %d", i)
				assert.Equal(t, s.wantFirstCorrect, first, "step %d", i)
			}
		})
	}
}
