package domain

const (
	EventNameUserRegistered     = "user.registered"
	EventNameUserLoggedIn       = "user.logged_in"
	EventNameAttemptRecorded    = "attempt.recorded"
	EventNameLeaderboardUpdated = "leaderboard.updated"
)

type EventUserRegistered struct {
	User User
}

func (EventUserRegistered) Name() string { return EventNameUserRegistered }

type EventUserLoggedIn struct {
	User User
}

func (EventUserLoggedIn) Name() string { return EventNameUserLoggedIn }

type EventAttemptRecorded struct {
	Attempt  Attempt
	Title    string
	UserName string
	// FirstCorrect is set on the submission that turned the attempt correct.
	FirstCorrect bool
}

func (EventAttemptRecorded) Name() string { return EventNameAttemptRecorded }

type EventLeaderboardUpdated struct {
	Leaderboard Leaderboard
}

func (EventLeaderboardUpdated) Name() string { return EventNameLeaderboardUpdated }
