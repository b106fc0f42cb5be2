package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/victornm/quizdesk/internal/account"
	"github.com/victornm/quizdesk/internal/api"
	"github.com/victornm/quizdesk/internal/app"
	"github.com/victornm/quizdesk/internal/domain"
	"github.com/victornm/quizdesk/internal/errors"
	"github.com/victornm/quizdesk/internal/event"
	"github.com/victornm/quizdesk/internal/generator"
	"github.com/victornm/quizdesk/internal/quiz"
	redisstore "github.com/victornm/quizdesk/internal/store/redis"
	"github.com/victornm/quizdesk/internal/telemetry"
	"github.com/victornm/quizdesk/internal/ui"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type server struct {
	t        *testing.T
	url      string
	redis    *redis.Client
	eb       *event.Bus
	sessions *api.Sessions
}

func newServer(t *testing.T) *server {
	t.Helper()

	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	eb := event.NewBus()

	st := redisstore.New(redisstore.Config{Redis: rc, Prefix: "test"})
	accounts, err := account.NewService(account.Config{
		Store:      st,
		EventBus:   eb,
		BcryptCost: bcrypt.MinCost,
	})
	require.NoError(t, err)

	a, err := app.New(app.Deps{
		Accounts: accounts,
		Builder:  quiz.NewBuilder(quiz.Config{Store: st, EventBus: eb}),
		Topics:   generator.DefaultTopics(generator.NewRand(1)),
	})
	require.NoError(t, err)

	sessions := api.NewSessions(api.SessionsConfig{
		App:     a,
		Redis:   rc,
		Prefix:  "test",
		Metrics: telemetry.NewMetrics(prometheus.NewRegistry(), eb),
	})

	e := gin.New()
	api.New(api.Config{
		Router:       e,
		EventBus:     eb,
		Sessions:     sessions,
		Tokens:       api.NewTokens("secret", time.Hour),
		Redis:        rc,
		PubsubPrefix: "test",
	})

	hs := httptest.NewServer(e)
	t.Cleanup(func() {
		hs.Close()
		sessions.Close(context.Background())
		eb.Stop()
	})

	return &server{t: t, url: hs.URL, redis: rc, eb: eb, sessions: sessions}
}

func (s *server) do(method, path, token string, body any, out any) int {
	s.t.Helper()

	var r *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(s.t, err)
		r = bytes.NewReader(b)
	} else {
		r = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, s.url+path, r)
	require.NoError(s.t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(s.t, err)
	defer resp.Body.Close()

	if out != nil && resp.StatusCode != http.StatusNoContent {
		require.NoError(s.t, json.NewDecoder(resp.Body).Decode(out))
	}

	return resp.StatusCode
}

func (s *server) start() api.SessionResponse {
	s.t.Helper()

	var resp api.SessionResponse
	require.Equal(s.t, http.StatusCreated, s.do(http.MethodPost, "/v1/sessions", "", nil, &resp))
	require.NotEmpty(s.t, resp.Token)

	return resp
}

func (s *server) act(token string, typ ui.ActionType, key, value string) (int, api.ActionResponse) {
	s.t.Helper()

	var resp api.ActionResponse
	code := s.do(http.MethodPost, "/v1/actions", token, ui.Action{Type: typ, Key: key, Value: value}, &resp)
	return code, resp
}

func (s *server) click(token, key string) api.ActionResponse {
	s.t.Helper()

	code, resp := s.act(token, ui.ActionClick, key, "")
	require.Equal(s.t, http.StatusOK, code, "click %s: %v", key, resp.Error)
	return resp
}

func (s *server) input(token, key, value string) {
	s.t.Helper()

	code, resp := s.act(token, ui.ActionInput, key, value)
	require.Equal(s.t, http.StatusOK, code, "input %s: %v", key, resp.Error)
}

func find(n *ui.Node, key string) *ui.Node {
	if n == nil {
		return nil
	}
	if n.Key == key {
		return n
	}
	for i := range n.Children {
		if found := find(&n.Children[i], key); found != nil {
			return found
		}
	}
	return nil
}

func visible(t *testing.T, sc ui.Screen, key string) bool {
	t.Helper()

	n := find(sc.Root, key)
	require.NotNil(t, n, "no element %q", key)
	return n.Style["display"] != "none"
}

func TestAPI_Flow(t *testing.T) {
	s := newServer(t)

	started := s.start()
	require.NotNil(t, find(started.Screen.Root, "btn_login"), "main menu first")

	sub := s.redis.PSubscribe(context.Background(), "test:session:*")
	defer sub.Close()
	_, err := sub.Receive(context.Background())
	require.NoError(t, err, "subscription confirmed")

	token := started.Token

	s.click(token, "btn_register")
	s.input(token, "name", "Alice")
	s.input(token, "username", "alice")
	s.input(token, "password", "password1")
	s.input(token, "confirmed_password", "password1")
	resp := s.click(token, "btn_register")
	assert.True(t, visible(t, resp.Screen, "succeeded"))

	select {
	case msg := <-sub.Channel():
		var n api.Notification
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &n))
		assert.Equal(t, "screen", n.Event)
	case <-time.After(time.Second):
		t.Fatal("no screen published")
	}

	s.click(token, "btn_exit")
	s.click(token, "btn_login")
	s.input(token, "username", "alice")
	s.input(token, "password", "password1")
	resp = s.click(token, "btn_login")

	welcome := find(resp.Screen.Root, "welcome_msg")
	require.NotNil(t, welcome, "dashboard after login")
	assert.Contains(t, welcome.Props["value"], "Alice")

	var screen ui.Screen
	require.Equal(t, http.StatusOK, s.do(http.MethodGet, "/v1/screen", token, nil, &screen))
	assert.Equal(t, resp.Screen.Version, screen.Version)

	require.Equal(t, http.StatusNoContent, s.do(http.MethodDelete, "/v1/sessions", token, nil, nil))
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/v1/screen", token, nil, nil))
}

func TestAPI_Errors(t *testing.T) {
	tests := map[string]struct {
		method string
		path   string
		token  func(valid string) string
		body   any
		status int
		code   errors.Code
	}{
		"no token": {
			method: http.MethodGet,
			path:   "/v1/screen",
			token:  func(string) string { return "" },
			status: http.StatusUnauthorized,
			code:   errors.CodeUnauthenticated,
		},
		"forged token": {
			method: http.MethodGet,
			path:   "/v1/screen",
			token:  func(valid string) string { return valid + "x" },
			status: http.StatusUnauthorized,
			code:   errors.CodeUnauthenticated,
		},
		"unknown action type": {
			method: http.MethodPost,
			path:   "/v1/actions",
			token:  func(valid string) string { return valid },
			body:   map[string]string{"type": "jump", "key": "btn_login"},
			status: http.StatusBadRequest,
			code:   errors.CodeInvalidArgument,
		},
		"unknown element": {
			method: http.MethodPost,
			path:   "/v1/actions",
			token:  func(valid string) string { return valid },
			body:   ui.Action{Type: ui.ActionClick, Key: "nope"},
			status: http.StatusBadRequest,
			code:   errors.CodeInvalidArgument,
		},
		"input into a button": {
			method: http.MethodPost,
			path:   "/v1/actions",
			token:  func(valid string) string { return valid },
			body:   ui.Action{Type: ui.ActionInput, Key: "btn_login", Value: "x"},
			status: http.StatusBadRequest,
			code:   errors.CodeInvalidArgument,
		},
	}

	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			s := newServer(t)
			token := s.start().Token

			var resp api.ActionResponse
			status := s.do(tt.method, tt.path, tt.token(token), tt.body, &resp)

			assert.Equal(t, tt.status, status)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestAPI_WebSocket(t *testing.T) {
	s := newServer(t)
	token := s.start().Token

	url := "ws" + strings.TrimPrefix(s.url, "http") + "/v1/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() api.WSMessage {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var m api.WSMessage
		require.NoError(t, conn.ReadJSON(&m))
		return m
	}

	m := read()
	require.Equal(t, "screen", m.Type)
	require.NotNil(t, find(m.Screen.Root, "btn_register"))

	require.NoError(t, conn.WriteJSON(ui.Action{Type: ui.ActionClick, Key: "btn_register"}))
	for {
		m = read()
		if m.Type == "screen" && find(m.Screen.Root, "confirmed_password") != nil {
			break
		}
	}

	require.NoError(t, conn.WriteJSON(ui.Action{Type: ui.ActionClick, Key: "nope"}))
	for {
		m = read()
		if m.Type == "error" {
			break
		}
	}
	assert.Equal(t, errors.CodeInvalidArgument, m.Error.Code)
}

func TestSessions_Sweep(t *testing.T) {
	s := newServer(t)
	s.start()
	s.start()
	require.Equal(t, 2, s.sessions.Len())

	assert.Zero(t, s.sessions.Sweep(context.Background()), "sessions are fresh")
	require.Equal(t, 2, s.sessions.Len())
}

func TestSessions_SweepIdle(t *testing.T) {
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	eb := event.NewBus()
	defer eb.Stop()

	st := redisstore.New(redisstore.Config{Redis: rc, Prefix: "test"})
	accounts, err := account.NewService(account.Config{Store: st, EventBus: eb, BcryptCost: bcrypt.MinCost})
	require.NoError(t, err)
	a, err := app.New(app.Deps{
		Accounts: accounts,
		Builder:  quiz.NewBuilder(quiz.Config{Store: st, EventBus: eb}),
		Topics:   generator.DefaultTopics(generator.NewRand(1)),
	})
	require.NoError(t, err)

	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	sessions := api.NewSessions(api.SessionsConfig{
		App:         a,
		IdleTimeout: time.Minute,
		Now:         func() time.Time { return now },
	})
	defer sessions.Close(context.Background())

	old, err := sessions.Create(context.Background())
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	fresh, err := sessions.Create(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, sessions.Sweep(context.Background()))

	_, err = sessions.Get(old.ID)
	assert.True(t, errors.HasCode(err, errors.CodeNotFound))
	_, err = sessions.Get(fresh.ID)
	assert.NoError(t, err)
}

func TestAPI_PublishLeaderboardUpdated(t *testing.T) {
	s := newServer(t)

	sub := s.redis.Subscribe(context.Background(), "test:user:u1", "test:user:u2")
	defer sub.Close()
	_, err := sub.Receive(context.Background())
	require.NoError(t, err)

	s.eb.Publish(context.Background(), domain.EventLeaderboardUpdated{
		Leaderboard: domain.Leaderboard{
			Topic: "Sums",
			Entries: []domain.LeaderboardEntry{
				{UserID: "u1", Name: "alice", Score: 2},
				{UserID: "u2", Name: "bob", Score: 1.5},
			},
		},
	})

	got := map[string]api.Notification{}
	for len(got) < 2 {
		select {
		case msg := <-sub.Channel():
			var n api.Notification
			require.NoError(t, json.Unmarshal([]byte(msg.Payload), &n))
			got[msg.Channel] = n
		case <-time.After(time.Second):
			t.Fatalf("got %d notifications", len(got))
		}
	}

	n := got["test:user:u2"]
	assert.Equal(t, domain.EventNameLeaderboardUpdated, n.Event)
	assert.Equal(t, map[string]any{
		"topic": "Sums",
		"entries": []any{
			map[string]any{"name": "alice", "score": "2"},
			map[string]any{"name": "bob", "score": "1.5"},
		},
	}, n.Data)
}
