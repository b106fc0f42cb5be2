// Package storetest is the behavior every store.Store implementation shares.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/quizdesk/internal/domain"
	"github.com/victornm/quizdesk/internal/store"
)

// Run runs the suite against stores returned by newStore. Each call must
// return an empty, migrated store.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Helper()

	now := time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC)

	t.Run("users", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		u := &domain.User{Name: "Alice", Username: "alice", PasswordHash: "$2a$hash", CreateTime: now}
		require.NoError(t, s.CreateUser(ctx, u))
		assert.NotEmpty(t, u.ID)

		got, err := s.FindUserByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.Equal(t, u.ID, got.ID)
		assert.Equal(t, "Alice", got.Name)
		assert.Equal(t, "$2a$hash", got.PasswordHash)
		assert.True(t, now.Equal(got.CreateTime), "create time %v", got.CreateTime)

		err = s.CreateUser(ctx, &domain.User{Name: "Other", Username: "alice", PasswordHash: "x", CreateTime: now})
		assert.True(t, store.IsConflict(err), "got %v", err)

		_, err = s.FindUserByUsername(ctx, "bob")
		assert.True(t, store.IsNotFound(err), "got %v", err)
	})

	t.Run("questions are unique on text", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		q := &domain.Question{Question: "x^2 - 1 = 0", Answer: "-1, 1", Solution: "(x - 1)(x + 1) = 0", Title: "Quadratic", CreateTime: now}
		require.NoError(t, s.CreateQuestion(ctx, q))

		dup := &domain.Question{Question: "x^2 - 1 = 0", Answer: "other", Title: "Quadratic", CreateTime: now}
		err := s.CreateQuestion(ctx, dup)
		assert.True(t, store.IsConflict(err), "got %v", err)
		assert.Empty(t, dup.ID)

		got, err := s.FindQuestion(ctx, q.ID)
		require.NoError(t, err)
		assert.Equal(t, "-1, 1", got.Answer)
		assert.Equal(t, "(x - 1)(x + 1) = 0", got.Solution)
		assert.Equal(t, "Quadratic", got.Title)

		_, err = s.FindQuestion(ctx, "missing")
		assert.True(t, store.IsNotFound(err), "got %v", err)
	})

	t.Run("attempts are saved in place", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		u := &domain.User{Name: "Alice", Username: "alice", PasswordHash: "x", CreateTime: now}
		require.NoError(t, s.CreateUser(ctx, u))
		q := &domain.Question{Question: "1 + 1", Answer: "2", Title: "Sums", CreateTime: now}
		require.NoError(t, s.CreateQuestion(ctx, q))

		a := domain.NewAttempt(u.ID, q.ID, false, now)
		require.NoError(t, s.CreateAttempt(ctx, a))
		require.NotEmpty(t, a.ID)

		a.Record(true)
		require.NoError(t, s.SaveAttempt(ctx, a))

		got, err := s.FindAttempt(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, u.ID, got.UserID)
		assert.Equal(t, q.ID, got.QuestionID)
		assert.True(t, got.IsCorrect)
		assert.Equal(t, 2, got.TimesOfAnswering)
		assert.True(t, now.Equal(got.TimeStamp), "time stamp %v", got.TimeStamp)

		err = s.SaveAttempt(ctx, &domain.Attempt{ID: "missing"})
		assert.True(t, store.IsNotFound(err), "got %v", err)

		_, err = s.FindAttempt(ctx, "missing")
		assert.True(t, store.IsNotFound(err), "got %v", err)
	})
}
