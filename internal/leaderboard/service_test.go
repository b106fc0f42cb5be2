package leaderboard_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/victornm/quizdesk/internal/domain"
	"github.com/victornm/quizdesk/internal/event"
	"github.com/victornm/quizdesk/internal/leaderboard"
)

func TestService_Top(t *testing.T) {
	s := makeService(t)
	ctx := context.Background()

	for _, e := range []domain.EventAttemptRecorded{
		recorded("u1", "alice", "Quadratic Equation", true),
		recorded("u2", "bob", "Quadratic Equation", true),
		recorded("u2", "bob", "Quadratic Equation", true),
		recorded("u1", "alice", "Quadratic Equation", false),
		recorded("u3", "carol", "History", true),
	} {
		require.NoError(t, s.RecordAttempt(ctx, e))
	}

	resp, err := s.Top(ctx, "Quadratic Equation", 10)
	require.NoError(t, err)

	want := &domain.Leaderboard{
		Topic: "Quadratic Equation",
		Entries: []domain.LeaderboardEntry{
			{UserID: "u2", Name: "bob", Score: 2},
			{UserID: "u1", Name: "alice", Score: 1},
		},
	}
	require.Equal(t, want, resp)

	resp, err = s.Top(ctx, "Quadratic Equation", 1)
	require.NoError(t, err)
	require.Len(t, resp.Entries, 1)

	resp, err = s.Top(ctx, "Geography", 10)
	require.NoError(t, err)
	require.Empty(t, resp.Entries)
}

func TestService_PublishLeaderboardUpdated(t *testing.T) {
	type (
		inputs struct {
			receivedEvents []domain.EventAttemptRecorded
		}

		outputs struct {
			publishedEvents []domain.EventLeaderboardUpdated
		}
	)

	tests := map[string]struct {
		arrange func() inputs
		assert  func(t *testing.T, out outputs)
	}{
		"should publish correct event leaderboard.updated after a first correct attempt": {
			arrange: func() inputs {
				return inputs{
					receivedEvents: []domain.EventAttemptRecorded{
						recorded("u1", "alice", "t1", true),
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				require.Len(t, out.publishedEvents, 1, "should receive 1 leaderboard updated event")
				require.Equal(t, domain.Leaderboard{
					Topic: "t1",
					Entries: []domain.LeaderboardEntry{
						{UserID: "u1", Name: "alice", Score: 1},
					},
				}, out.publishedEvents[0].Leaderboard)
			},
		},

		"should not publish for attempts that are not first correct": {
			arrange: func() inputs {
				return inputs{
					receivedEvents: []domain.EventAttemptRecorded{
						recorded("u1", "alice", "t1", false),
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				require.Empty(t, out.publishedEvents)
			},
		},

		"should publish 2 events for 2 different topics": {
			arrange: func() inputs {
				return inputs{
					receivedEvents: []domain.EventAttemptRecorded{
						recorded("u1", "alice", "t1", true),
						recorded("u2", "bob", "t2", true),
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				require.Len(t, out.publishedEvents, 2, "should receive 2 leaderboard updated event")
			},
		},

		"should publish 1 event for the same topic within the publish interval": {
			arrange: func() inputs {
				return inputs{
					receivedEvents: []domain.EventAttemptRecorded{
						recorded("u1", "alice", "t1", true),
						recorded("u2", "bob", "t1", true),
					},
				}
			},

			assert: func(t *testing.T, out outputs) {
				require.Len(t, out.publishedEvents, 1, "should receive 1 leaderboard updated event")
			},
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			in, out := tt.arrange(), outputs{}

			eb := event.NewBus()

			var mu sync.Mutex
			eb.Subscribe(domain.EventNameLeaderboardUpdated, func(ctx context.Context, e event.Event) error {
				mu.Lock()
				out.publishedEvents = append(out.publishedEvents, e.(domain.EventLeaderboardUpdated))
				mu.Unlock()
				return nil
			})

			s := makeService(t,
				withEventBus(eb),
			)

			for _, e := range in.receivedEvents {
				err := s.RecordAttempt(context.Background(), e)
				require.NoError(t, err)
			}

			eb.Stop()

			tt.assert(t, out)
		})
	}
}

func TestService_SubscribesToAttempts(t *testing.T) {
	eb := event.NewBus()
	s := makeService(t, withEventBus(eb))

	eb.Publish(context.Background(), recorded("u1", "alice", "t1", true))
	eb.Stop()

	resp, err := s.Top(context.Background(), "t1", 10)
	require.NoError(t, err)
	require.Len(t, resp.Entries, 1)
}

func recorded(userID, name, topic string, firstCorrect bool) domain.EventAttemptRecorded {
	return domain.EventAttemptRecorded{
		Attempt: domain.Attempt{
			ID:        "a-" + userID,
			UserID:    userID,
			TimeStamp: time.Now(),
			IsCorrect: true,
		},
		Title:        topic,
		UserName:     name,
		FirstCorrect: firstCorrect,
	}
}

func makeService(t *testing.T, opts ...options) *leaderboard.Service {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	rs := miniredis.RunT(t)
	rc := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs: []string{rs.Addr()},
	})
	require.NoError(t, rc.Ping(ctx).Err(), "should be able to ping redis")

	c := leaderboard.Config{
		EventBus: event.NewBus(),
		Redis:    rc,
		Prefix:   "test",
	}

	for _, opt := range opts {
		opt(&c)
	}

	return leaderboard.NewService(c)
}

type options func(c *leaderboard.Config)

func withEventBus(eb *event.Bus) options {
	return func(c *leaderboard.Config) {
		c.EventBus = eb
	}
}
