package account_test

import (
	"context"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/victornm/quizdesk/internal/account"
	"github.com/victornm/quizdesk/internal/event"
	"github.com/victornm/quizdesk/internal/store"
	redisstore "github.com/victornm/quizdesk/internal/store/redis"
)

func newService(t *testing.T) (*account.Service, store.Store) {
	t.Helper()

	mr := miniredis.RunT(t)
	st := redisstore.New(redisstore.Config{
		Redis:  redis.NewClient(&redis.Options{Addr: mr.Addr()}),
		Prefix: "test",
	})
	eb := event.NewBus()
	t.Cleanup(eb.Stop)

	s, err := account.NewService(account.Config{
		Store:      st,
		EventBus:   eb,
		BcryptCost: bcrypt.MinCost,
	})
	require.NoError(t, err)

	return s, st
}

func TestService_Register(t *testing.T) {
	tests := map[string]struct {
		req     account.RegisterRequest
		wantErr error
	}{
		"mismatch is reported before length": {
			req:     account.RegisterRequest{Name: "A", Username: "alice", Password: "short", Confirmation: "other"},
			wantErr: account.ErrPasswordMismatch,
		},

		"password of 7 characters": {
			req:     account.RegisterRequest{Name: "A", Username: "alice", Password: "1234567", Confirmation: "1234567"},
			wantErr: account.ErrPasswordTooShort,
		},

		"blank username": {
			req:     account.RegisterRequest{Name: "A", Username: "  ", Password: "12345678", Confirmation: "12345678"},
			wantErr: account.ErrUsernameRequired,
		},

		"password of 73 bytes": {
			req:     account.RegisterRequest{Name: "A", Username: "alice", Password: strings.Repeat("a", 73), Confirmation: strings.Repeat("a", 73)},
			wantErr: account.ErrPasswordTooLong,
		},

		"password of 40 runes in 80 bytes": {
			req:     account.RegisterRequest{Name: "A", Username: "alice", Password: strings.Repeat("é", 40), Confirmation: strings.Repeat("é", 40)},
			wantErr: account.ErrPasswordTooLong,
		},

		"password of 72 bytes": {
			req: account.RegisterRequest{Name: "A", Username: "alice", Password: strings.Repeat("a", 72), Confirmation: strings.Repeat("a", 72)},
		},

		"password of 8 characters": {
			req: account.RegisterRequest{Name: "A", Username: "alice", Password: "12345678", Confirmation: "12345678"},
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			s, st := newService(t)
			ctx := context.Background()

			u, err := s.Register(ctx, tt.req)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				_, findErr := st.FindUserByUsername(ctx, tt.req.Username)
				assert.True(t, store.IsNotFound(findErr), "no record is created")
				return
			}

			require.NoError(t, err)
			stored, err := st.FindUserByUsername(ctx, tt.req.Username)
			require.NoError(t, err)
			assert.Equal(t, u.ID, stored.ID)
			assert.NotEqual(t, tt.req.Password, stored.PasswordHash)
			assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte(tt.req.Password)))
		})
	}
}

func TestService_RegisterThenLogin(t *testing.T) {
	s, _ := newService(t)
	ctx := context.Background()

	_, err := s.Register(ctx, account.RegisterRequest{Name: "alice", Username: "alice", Password: "password123", Confirmation: "password123"})
	require.NoError(t, err)

	_, err = s.Register(ctx, account.RegisterRequest{Name: "alice 2", Username: "alice", Password: "password456", Confirmation: "password456"})
	assert.ErrorIs(t, err, account.ErrUsernameTaken)

	u, err := s.Login(ctx, "alice", "password123")
	require.NoError(t, err)
	assert.Equal(t, "alice", u.Name)

	_, wrongPassword := s.Login(ctx, "alice", "wrongpass")
	_, unknownUser := s.Login(ctx, "bob", "password123")
	assert.ErrorIs(t, wrongPassword, account.ErrInvalidCredentials)
	assert.Equal(t, wrongPassword, unknownUser, "both failures look the same")
}
