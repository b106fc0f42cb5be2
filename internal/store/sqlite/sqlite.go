//go:build cgo

// Package sqlite implements store.Store on a local SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mattn/go-sqlite3"

	"github.com/victornm/quizdesk/internal/domain"
	"github.com/victornm/quizdesk/internal/store"
)

type Store struct {
	db *sqlx.DB
}

var _ store.Store = (*Store)(nil)

// Open opens the database file at path, or an in-memory database for ":memory:".
func Open(path string) (*Store, error) {
	db, err := sqlx.Open("sqlite3", path+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	// SQLite allows a single writer; one connection also keeps ":memory:" on one database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return &Store{db: db}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			user_id       TEXT PRIMARY KEY,
			name          TEXT NOT NULL,
			username      TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			create_time   TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS questions (
			question_id TEXT PRIMARY KEY,
			question    TEXT NOT NULL UNIQUE,
			solution    TEXT NOT NULL,
			answer      TEXT NOT NULL,
			title       TEXT NOT NULL,
			create_time TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS attempts (
			attempt_id         TEXT PRIMARY KEY,
			user_id            TEXT NOT NULL REFERENCES users (user_id),
			question_id        TEXT NOT NULL REFERENCES questions (question_id),
			time_stamp         TIMESTAMP NOT NULL,
			is_correct         BOOLEAN NOT NULL,
			times_of_answering INTEGER NOT NULL DEFAULT 1
		)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	return nil
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	return stderrors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique
}

type userRow struct {
	ID           string    `db:"user_id"`
	Name         string    `db:"name"`
	Username     string    `db:"username"`
	PasswordHash string    `db:"password_hash"`
	CreateTime   time.Time `db:"create_time"`
}

type questionRow struct {
	ID         string    `db:"question_id"`
	Question   string    `db:"question"`
	Solution   string    `db:"solution"`
	Answer     string    `db:"answer"`
	Title      string    `db:"title"`
	CreateTime time.Time `db:"create_time"`
}

type attemptRow struct {
	ID               string    `db:"attempt_id"`
	UserID           string    `db:"user_id"`
	QuestionID       string    `db:"question_id"`
	TimeStamp        time.Time `db:"time_stamp"`
	IsCorrect        bool      `db:"is_correct"`
	TimesOfAnswering int       `db:"times_of_answering"`
}

func (s *Store) CreateUser(ctx context.Context, u *domain.User) error {
	id, err := store.NewID()
	if err != nil {
		return err
	}

	const stmt = `INSERT INTO users (user_id, name, username, password_hash, create_time)
VALUES (:user_id, :name, :username, :password_hash, :create_time)`
	_, err = s.db.NamedExecContext(ctx, stmt, userRow{
		ID:           id,
		Name:         u.Name,
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		CreateTime:   u.CreateTime.UTC(),
	})
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
	var row userRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM users WHERE username = ?`, username)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, store.NotFound("user %q not found", username)
	}
	if err != nil {
		return nil, fmt.Errorf("select user: %w", err)
	}

	return &domain.User{
		ID:           row.ID,
		Name:         row.Name,
		Username:     row.Username,
		PasswordHash: row.PasswordHash,
		CreateTime:   row.CreateTime,
	}, nil
}

func (s *Store) CreateQuestion(ctx context.Context, q *domain.Question) error {
	id, err := store.NewID()
	if err != nil {
		return err
	}

	const stmt = `INSERT INTO questions (question_id, question, solution, answer, title, create_time)
VALUES (:question_id, :question, :solution, :answer, :title, :create_time)`
	_, err = s.db.NamedExecContext(ctx, stmt, questionRow{
		ID:         id,
		Question:   q.Question,
		Solution:   q.Solution,
		Answer:     q.Answer,
		Title:      q.Title,
		CreateTime: q.CreateTime.UTC(),
	})
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
	var row questionRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM questions WHERE question_id = ?`, id)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, store.NotFound("question %q not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("select question: %w", err)
	}

	return &domain.Question{
		ID:         row.ID,
		Question:   row.Question,
		Solution:   row.Solution,
		Answer:     row.Answer,
		Title:      row.Title,
		CreateTime: row.CreateTime,
	}, nil
}

func (s *Store) CreateAttempt(ctx context.Context, a *domain.Attempt) error {
	id, err := store.NewID()
	if err != nil {
		return err
	}

	const stmt = `INSERT INTO attempts (attempt_id, user_id, question_id, time_stamp, is_correct, times_of_answering)
VALUES (:attempt_id, :user_id, :question_id, :time_stamp, :is_correct, :times_of_answering)`
	_, err = s.db.NamedExecContext(ctx, stmt, attemptRow{
		ID:               id,
		UserID:           a.UserID,
		QuestionID:       a.QuestionID,
		TimeStamp:        a.TimeStamp.UTC(),
		IsCorrect:        a.IsCorrect,
		TimesOfAnswering: a.TimesOfAnswering,
	})
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}

	a.ID = id
	return nil
}

func (s *Store) SaveAttempt(ctx context.Context, a *domain.Attempt) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE attempts SET is_correct = ?, times_of_answering = ? WHERE attempt_id = ?`,
		a.IsCorrect, a.TimesOfAnswering, a.ID)
	if err != nil {
		return fmt.Errorf("update attempt: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update attempt: %w", err)
	}
	if n == 0 {
		return store.NotFound("attempt %q not found", a.ID)
	}

	return nil
}

func (s *Store) FindAttempt(ctx context.Context, id string) (*domain.Attempt, error) {
	var row attemptRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM attempts WHERE attempt_id = ?`, id)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, store.NotFound("attempt %q not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("select attempt: %w", err)
	}

	return &domain.Attempt{
		ID:               row.ID,
		UserID:           row.UserID,
		QuestionID:       row.QuestionID,
		TimeStamp:        row.TimeStamp,
		IsCorrect:        row.IsCorrect,
		TimesOfAnswering: row.TimesOfAnswering,
	}, nil
}
