// Package redis implements store.Store on Redis hashes. Unique fields are
// claimed with HSETNX on an index hash before the record is written, and
// released again when the write fails.
package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/victornm/quizdesk/internal/domain"
	"github.com/victornm/quizdesk/internal/store"
)

const releaseTimeout = 2 * time.Second

type Config struct {
	Redis  redis.UniversalClient
	Prefix string
}

type Store struct {
	r      redis.UniversalClient
	prefix string
}

var _ store.Store = (*Store)(nil)

func New(c Config) *Store {
	return &Store{
		r:      c.Redis,
		prefix: c.Prefix,
	}
}

func (s *Store) key(parts ...string) string {
	k := s.prefix
	for _, p := range parts {
		k += ":" + p
	}
	return k
}

func (s *Store) Ping(ctx context.Context) error {
	return s.r.Ping(ctx).Err()
}

// Migrate is a no-op: hashes need no schema.
func (*Store) Migrate(context.Context) error { return nil }

func (s *Store) Close() error {
	return s.r.Close()
}

type userRecord struct {
	ID           string `redis:"user_id"`
	Name         string `redis:"name"`
	Username     string `redis:"username"`
	PasswordHash string `redis:"password_hash"`
	CreateTime   int64  `redis:"create_time"`
}

type questionRecord struct {
	ID         string `redis:"question_id"`
	Question   string `redis:"question"`
	Solution   string `redis:"solution"`
	Answer     string `redis:"answer"`
	Title      string `redis:"title"`
	CreateTime int64  `redis:"create_time"`
}

type attemptRecord struct {
	ID               string `redis:"attempt_id"`
	UserID           string `redis:"user_id"`
	QuestionID       string `redis:"question_id"`
	TimeStamp        int64  `redis:"time_stamp"`
	IsCorrect        bool   `redis:"is_correct"`
	TimesOfAnswering int    `redis:"times_of_answering"`
}

// claim reserves value in the index hash for id. It reports false if value is taken.
func (s *Store) claim(ctx context.Context, index, value, id string) (bool, error) {
	ok, err := s.r.HSetNX(ctx, s.key(index), value, id).Result()
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", index, err)
	}
	return ok, nil
}

// release frees a claim whose record could not be written, also when ctx is canceled.
func (s *Store) release(ctx context.Context, index, value string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()

	if err := s.r.HDel(ctx, s.key(index), value).Err(); err != nil {
		slog.ErrorContext(ctx, "redis store: release claim failed", "index", index, "error", err)
	}
}

func (s *Store) CreateUser(ctx context.Context, u *domain.User) error {
	id, err := store.NewID()
	if err != nil {
		return err
	}

	ok, err := s.claim(ctx, "user:username", u.Username, id)
	if err != nil {
		return err
	}
	if !ok {
		return store.Conflict("username %q is taken", nil, u.Username)
	}

	rec := userRecord{
		ID:           id,
		Name:         u.Name,
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		CreateTime:   u.CreateTime.UnixNano(),
	}
	if err := s.r.HSet(ctx, s.key("user", id), rec).Err(); err != nil {
		s.release(ctx, "user:username", u.Username)
		return fmt.Errorf("write user: %w", err)
	}

	u.ID = id
	return nil
}

func (s *Store) FindUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	id, err := s.r.HGet(ctx, s.key("user:username"), username).Result()
	if err == redis.Nil {
		return nil, store.NotFound("user %q not found", username)
	}
	if err != nil {
		return nil, fmt.Errorf("read username index: %w", err)
	}

	var rec userRecord
	if err := s.load(ctx, s.key("user", id), &rec); err != nil {
		return nil, err
	}
	if rec.ID == "" {
		return nil, store.NotFound("user %q not found", username)
	}

	return &domain.User{
		ID:           rec.ID,
		Name:         rec.Name,
		Username:     rec.Username,
		PasswordHash: rec.PasswordHash,
		CreateTime:   time.Unix(0, rec.CreateTime),
	}, nil
}

func (s *Store) CreateQuestion(ctx context.Context, q *domain.Question) error {
	id, err := store.NewID()
	if err != nil {
		return err
	}

	ok, err := s.claim(ctx, "question:text", q.Question, id)
	if err != nil {
		return err
	}
	if !ok {
		return store.Conflict("question already exists", nil)
	}

	rec := questionRecord{
		ID:         id,
		Question:   q.Question,
		Solution:   q.Solution,
		Answer:     q.Answer,
		Title:      q.Title,
		CreateTime: q.CreateTime.UnixNano(),
	}
	if err := s.r.HSet(ctx, s.key("question", id), rec).Err(); err != nil {
		s.release(ctx, "question:text", q.Question)
		return fmt.Errorf("write question: %w", err)
	}

	q.ID = id
	return nil
}

func (s *Store) FindQuestion(ctx context.Context, id string) (*domain.Question, error) {
	var rec questionRecord
	if err := s.load(ctx, s.key("question", id), &rec); err != nil {
		return nil, err
	}
	if rec.ID == "" {
		return nil, store.NotFound("question %q not found", id)
	}

	return &domain.Question{
		ID:         rec.ID,
		Question:   rec.Question,
		Solution:   rec.Solution,
		Answer:     rec.Answer,
		Title:      rec.Title,
		CreateTime: time.Unix(0, rec.CreateTime),
	}, nil
}

func (s *Store) CreateAttempt(ctx context.Context, a *domain.Attempt) error {
	id, err := store.NewID()
	if err != nil {
		return err
	}

	rec := attemptRecord{
		ID:               id,
		UserID:           a.UserID,
		QuestionID:       a.QuestionID,
		TimeStamp:        a.TimeStamp.UnixNano(),
		IsCorrect:        a.IsCorrect,
		TimesOfAnswering: a.TimesOfAnswering,
	}
	if err := s.r.HSet(ctx, s.key("attempt", id), rec).Err(); err != nil {
		return fmt.Errorf("write attempt: %w", err)
	}

	a.ID = id
	return nil
}

func (s *Store) SaveAttempt(ctx context.Context, a *domain.Attempt) error {
	key := s.key("attempt", a.ID)

	n, err := s.r.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("check attempt: %w", err)
	}
	if n == 0 {
		return store.NotFound("attempt %q not found", a.ID)
	}

	err = s.r.HSet(ctx, key,
		"is_correct", a.IsCorrect,
		"times_of_answering", a.TimesOfAnswering,
	).Err()
	if err != nil {
		return fmt.Errorf("write attempt: %w", err)
	}

	return nil
}

func (s *Store) FindAttempt(ctx context.Context, id string) (*domain.Attempt, error) {
	var rec attemptRecord
	if err := s.load(ctx, s.key("attempt", id), &rec); err != nil {
		return nil, err
	}
	if rec.ID == "" {
		return nil, store.NotFound("attempt %q not found", id)
	}

	return &domain.Attempt{
		ID:               rec.ID,
		UserID:           rec.UserID,
		QuestionID:       rec.QuestionID,
		TimeStamp:        time.Unix(0, rec.TimeStamp),
		IsCorrect:        rec.IsCorrect,
		TimesOfAnswering: rec.TimesOfAnswering,
	}, nil
}

// load scans the hash at key into dst. A missing key leaves dst zero.
func (s *Store) load(ctx context.Context, key string, dst any) error {
	if err := s.r.HGetAll(ctx, key).Scan(dst); err != nil {
		return fmt.Errorf("read %s: %w", key, err)
	}
	return nil
}
