package leaderboard

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/victornm/quizdesk/internal/domain"
	"github.com/victornm/quizdesk/internal/event"
)

const (
	publishInterval = 200 * time.Millisecond
	defaultSize     = 10
)

type Config struct {
	EventBus *event.Bus
	Redis    redis.UniversalClient
	Prefix   string
	// Size is the number of entries published on updates.
	Size int
}

type Service struct {
	eb     *event.Bus
	redis  redis.UniversalClient
	prefix string
	size   int
}

func NewService(c Config) *Service {
	s := &Service{
		eb:     c.EventBus,
		redis:  c.Redis,
		prefix: c.Prefix,
		size:   c.Size,
	}
	if s.size <= 0 {
		s.size = defaultSize
	}

	s.eb.Subscribe(domain.EventNameAttemptRecorded, func(ctx context.Context, e event.Event) error {
		return s.RecordAttempt(ctx, e.(domain.EventAttemptRecorded))
	})

	return s
}

// Top returns the n best users of a topic, best first. An unknown topic has no entries.
func (s *Service) Top(ctx context.Context, topic string, n int) (*domain.Leaderboard, error) {
	res, err := s.redis.ZRevRangeWithScores(ctx, s.getLeaderboardKey(topic), 0, int64(n)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("get leaderboard: %w", err)
	}

	l := &domain.Leaderboard{
		Topic:   topic,
		Entries: make([]domain.LeaderboardEntry, 0, len(res)),
	}
	if len(res) == 0 {
		return l, nil
	}

	ids := make([]string, 0, len(res))
	for _, z := range res {
		ids = append(ids, z.Member.(string))
	}

	names, err := s.redis.HMGet(ctx, s.getNamesKey(), ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("get names: %w", err)
	}

	for i, z := range res {
		name, _ := names[i].(string)
		l.Entries = append(l.Entries, domain.LeaderboardEntry{
			UserID: ids[i],
			Name:   name,
			Score:  z.Score,
		})
	}

	return l, nil
}

// RecordAttempt adds a point to the user when an attempt becomes correct for the first time.
func (s *Service) RecordAttempt(ctx context.Context, e domain.EventAttemptRecorded) error {
	if !e.FirstCorrect {
		return nil
	}

	a := e.Attempt
	_, err := s.redis.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.ZIncrBy(ctx, s.getLeaderboardKey(e.Title), 1, a.UserID)
		p.HSet(ctx, s.getNamesKey(), a.UserID, e.UserName)
		return nil
	})
	if err != nil {
		return fmt.Errorf("update leaderboard: %w", err)
	}

	return s.schedulePublishLeaderboard(ctx, e.Title, a.TimeStamp)
}

// schedulePublishLeaderboard publishes at most one update per topic and interval,
// since many attempts of a topic can turn correct in a short time.
func (s *Service) schedulePublishLeaderboard(ctx context.Context, topic string, at time.Time) error {
	ok, err := s.redis.SetNX(ctx, s.getLeaderboardTimeKey(topic), at.UnixMilli(), publishInterval).Result()
	if err != nil {
		return fmt.Errorf("setnx: %w", err)
	}

	if !ok {
		return nil
	}

	l, err := s.Top(ctx, topic, s.size)
	if err != nil {
		return fmt.Errorf("get leaderboard failed: topic=%s: %w", topic, err)
	}

	s.eb.Publish(ctx, domain.EventLeaderboardUpdated{
		Leaderboard: *l,
	})

	return nil
}

func (s *Service) getLeaderboardKey(topic string) string {
	return fmt.Sprintf("%s:%s:leaderboard", s.prefix, topic)
}

func (s *Service) getLeaderboardTimeKey(topic string) string {
	return fmt.Sprintf("%s:%s:time", s.prefix, topic)
}

func (s *Service) getNamesKey() string {
	return fmt.Sprintf("%s:names", s.prefix)
}
