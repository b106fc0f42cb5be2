// Package store persists users, questions and attempts.
package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/victornm/quizdesk/internal/domain"
	"github.com/victornm/quizdesk/internal/errors"
)

// Store is the persistence boundary. Create methods assign the record ID and
// fail with CodeAlreadyExists when a unique field is taken. Find methods fail
// with CodeNotFound.
type Store interface {
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error

	CreateUser(ctx context.Context, u *domain.User) error
	FindUserByUsername(ctx context.Context, username string) (*domain.User, error)

	CreateQuestion(ctx context.Context, q *domain.Question) error
	FindQuestion(ctx context.Context, id string) (*domain.Question, error)

	CreateAttempt(ctx context.Context, a *domain.Attempt) error
	// SaveAttempt overwrites the mutable fields of an existing attempt.
	SaveAttempt(ctx context.Context, a *domain.Attempt) error
	FindAttempt(ctx context.Context, id string) (*domain.Attempt, error)
}

func NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate ID: %w", err)
	}
	return id.String(), nil
}

func Conflict(format string, cause error, args ...any) error {
	return errors.New(errors.CodeAlreadyExists, errors.WithMessagef(format, args...), errors.WithCause(cause))
}

func NotFound(format string, args ...any) error {
	return errors.New(errors.CodeNotFound, errors.WithMessagef(format, args...))
}

func IsConflict(err error) bool {
	return errors.HasCode(err, errors.CodeAlreadyExists)
}

func IsNotFound(err error) bool {
	return errors.HasCode(err, errors.CodeNotFound)
}
