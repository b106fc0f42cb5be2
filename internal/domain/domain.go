package domain

import (
	"time"
)

// User is a registered account. It is never mutated after registration.
type User struct {
	ID           string
	Name         string
	Username     string
	PasswordHash string
	CreateTime   time.Time
}

// Question is a generated quiz question. Question text is globally unique.
type Question struct {
	ID         string
	Question   string
	Solution   string
	Answer     string
	Title      string
	CreateTime time.Time
}

// Attempt is one user's interaction history with one question of a quiz session.
type Attempt struct {
	ID         string
	UserID     string
	QuestionID string
	TimeStamp  time.Time
	IsCorrect  bool
	// TimesOfAnswering counts every submission up to and including the first correct one.
	// An attempt is only stored once the user has submitted, so it starts at 1.
	TimesOfAnswering int
}

// NewAttempt returns the attempt created by the first submission.
func NewAttempt(userID, questionID string, correct bool, now time.Time) *Attempt {
	return &Attempt{
		UserID:           userID,
		QuestionID:       questionID,
		TimeStamp:        now,
		IsCorrect:        correct,
		TimesOfAnswering: 1,
	}
}

// Record applies a further submission. Correctness is OR'd in and the counter
// freezes once the attempt has been answered correctly.
// It reports whether this submission is the first correct one.
func (a *Attempt) Record(correct bool) (firstCorrect bool) {
	prev := a.IsCorrect
	a.IsCorrect = prev || correct
	if !prev {
		a.TimesOfAnswering++
	}

	return !prev && a.IsCorrect
}

// Quiz is a generated question/answer/solution triple. Only its Question mirror is persisted.
type Quiz struct {
	Question string
	Answer   string
	Solution string
}

// Leaderboard ranks users of one topic by the number of questions they answered correctly.
type Leaderboard struct {
	Topic   string
	Entries []LeaderboardEntry
}

type LeaderboardEntry struct {
	UserID string
	Name   string
	Score  float64
}
