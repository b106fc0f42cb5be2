// Package postgres implements store.Store on PostgreSQL.
package postgres

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/victornm/quizdesk/internal/domain"
	"github.com/victornm/quizdesk/internal/store"
)

const codeUniqueViolation = "23505"

type Store struct {
	db *pgxpool.Pool
}

var _ store.Store = (*Store)(nil)

// Connect opens a pool. It does not check connectivity, see Ping.
func Connect(ctx context.Context, dsn string) (*Store, error) {
	cc, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}

	db, err := pgxpool.NewWithConfig(ctx, cc)
	if err != nil {
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *Store) Close() error {
	s.db.Close()
	return nil
}

func (s *Store) Migrate(ctx context.Context) error {
	const stmt = `
CREATE TABLE IF NOT EXISTS users (
	user_id       TEXT PRIMARY KEY,
	name          TEXT NOT NULL,
	username      TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	create_time   TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS questions (
	question_id TEXT PRIMARY KEY,
	question    TEXT NOT NULL UNIQUE,
	solution    TEXT NOT NULL,
	answer      TEXT NOT NULL,
	title       TEXT NOT NULL,
	create_time TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS attempts (
	attempt_id         TEXT PRIMARY KEY,
	user_id            TEXT NOT NULL REFERENCES users (user_id),
	question_id        TEXT NOT NULL REFERENCES questions (question_id),
	time_stamp         TIMESTAMPTZ NOT NULL,
	is_correct         BOOLEAN NOT NULL,
	times_of_answering INTEGER NOT NULL DEFAULT 1
);`

	_, err := s.db.Exec(ctx, stmt)
	return err
}

// Truncate deletes every record. It is meant for test databases.
func (s *Store) Truncate(ctx context.Context) error {
	_, err := s.db.Exec(ctx, `TRUNCATE attempts, questions, users;`)
	return err
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return stderrors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation
}

func (s *Store) CreateUser(ctx context.Context, u *domain.User) error {
	id, err := store.NewID()
	if err != nil {
		return err
	}

	const stmt = `INSERT INTO users (user_id, name, username, password_hash, create_time) VALUES ($1, $2, $3, $4, $5);`
	_, err = s.db.Exec(ctx, stmt, id, u.Name, u.Username, u.PasswordHash, u.CreateTime)
	if isUniqueViolation(err) {
		return store.Conflict("username %q is taken", err, u.Username)
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}

	u.ID = id
	return nil
}

func (s *Store) FindUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	const stmt = `SELECT user_id, name, username, password_hash, create_time FROM users WHERE username = $1;`

	var u domain.User
	err := s.db.QueryRow(ctx, stmt, username).Scan(&u.ID, &u.Name, &u.Username, &u.PasswordHash, &u.CreateTime)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, store.NotFound("user %q not found", username)
	}
	if err != nil {
		return nil, fmt.Errorf("select user: %w", err)
	}

	return &u, nil
}

func (s *Store) CreateQuestion(ctx context.Context, q *domain.Question) error {
	id, err := store.NewID()
	if err != nil {
		return err
	}

	const stmt = `INSERT INTO questions (question_id, question, solution, answer, title, create_time) VALUES ($1, $2, $3, $4, $5, $6);`
	_, err = s.db.Exec(ctx, stmt, id, q.Question, q.Solution, q.Answer, q.Title, q.CreateTime)
	if isUniqueViolation(err) {
		return store.Conflict("question already exists", err)
	}
	if err != nil {
		return fmt.Errorf("insert question: %w", err)
	}

	q.ID = id
	return nil
}

func (s *Store) FindQuestion(ctx context.Context, id string) (*domain.Question, error) {
	const stmt = `SELECT question_id, question, solution, answer, title, create_time FROM questions WHERE question_id = $1;`

	rows, err := s.db.Query(ctx, stmt, id)
	if err != nil {
		return nil, fmt.Errorf("select question: %w", err)
	}

	q, err := pgx.CollectExactlyOneRow(rows, func(r pgx.CollectableRow) (domain.Question, error) {
		var q domain.Question
		err := r.Scan(&q.ID, &q.Question, &q.Solution, &q.Answer, &q.Title, &q.CreateTime)
		return q, err
	})
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, store.NotFound("question %q not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("select question: %w", err)
	}

	return &q, nil
}

func (s *Store) CreateAttempt(ctx context.Context, a *domain.Attempt) error {
	id, err := store.NewID()
	if err != nil {
		return err
	}

	const stmt = `
INSERT INTO attempts (attempt_id, user_id, question_id, time_stamp, is_correct, times_of_answering)
VALUES ($1, $2, $3, $4, $5, $6);`
	_, err = s.db.Exec(ctx, stmt, id, a.UserID, a.QuestionID, a.TimeStamp, a.IsCorrect, a.TimesOfAnswering)
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}

	a.ID = id
	return nil
}

func (s *Store) SaveAttempt(ctx context.Context, a *domain.Attempt) error {
	const stmt = `UPDATE attempts SET is_correct = $2, times_of_answering = $3 WHERE attempt_id = $1;`

	tag, err := s.db.Exec(ctx, stmt, a.ID, a.IsCorrect, a.TimesOfAnswering)
	if err != nil {
		return fmt.Errorf("update attempt: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.NotFound("attempt %q not found", a.ID)
	}

	return nil
}

func (s *Store) FindAttempt(ctx context.Context, id string) (*domain.Attempt, error) {
	const stmt = `
SELECT attempt_id, user_id, question_id, time_stamp, is_correct, times_of_answering
FROM attempts
WHERE attempt_id = $1;`

	var a domain.Attempt
	err := s.db.QueryRow(ctx, stmt, id).Scan(&a.ID, &a.UserID, &a.QuestionID, &a.TimeStamp, &a.IsCorrect, &a.TimesOfAnswering)
	if stderrors.Is(err, pgx.ErrNoRows) {
		return nil, store.NotFound("attempt %q not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("select attempt: %w", err)
	}

	return &a, nil
}
