// Package api serves quizdesk sessions over HTTP and websockets.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/victornm/quizdesk/internal/domain"
	"github.com/victornm/quizdesk/internal/errors"
	"github.com/victornm/quizdesk/internal/event"
	"github.com/victornm/quizdesk/internal/ui"
)

const sessionKey = "session"

type Config struct {
	Router       gin.IRouter
	EventBus     *event.Bus
	Sessions     *Sessions
	Tokens       *Tokens
	Redis        Redis
	PubsubPrefix string
}

type Redis interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

type API struct {
	sessions *Sessions
	tokens   *Tokens

	redis  Redis
	prefix string
}

type (
	SessionResponse struct {
		Token  string    `json:"token"`
		Screen ui.Screen `json:"screen"`
	}

	ActionResponse struct {
		Screen ui.Screen     `json:"screen"`
		Error  *errors.Error `json:"error,omitempty"`
	}

	ErrorResponse struct {
		Error *errors.Error `json:"error"`
	}
)

func New(c Config) *API {
	a := &API{
		sessions: c.Sessions,
		tokens:   c.Tokens,
		redis:    c.Redis,
		prefix:   c.PubsubPrefix,
	}

	// HTTP APIs
	v1 := c.Router.Group("/v1")
	v1.POST("/sessions", a.CreateSession)
	v1.GET("/ws", a.authenticate, a.ServeWS)

	authed := v1.Group("", a.authenticate)
	authed.GET("/screen", a.GetScreen)
	authed.POST("/actions", a.Dispatch)
	authed.DELETE("/sessions", a.DeleteSession)

	// Register event handlers
	if a.redis != nil {
		c.EventBus.Subscribe(domain.EventNameLeaderboardUpdated, func(ctx context.Context, e event.Event) error {
			return a.PublishLeaderboardUpdated(ctx, e.(domain.EventLeaderboardUpdated))
		})
	}

	return a
}

func (a *API) CreateSession(c *gin.Context) {
	s, err := a.sessions.Create(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	token, err := a.tokens.Issue(s.ID)
	if err != nil {
		a.sessions.Remove(c.Request.Context(), s.ID)
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, SessionResponse{Token: token, Screen: s.Screen()})
}

func (a *API) GetScreen(c *gin.Context) {
	c.JSON(http.StatusOK, session(c).Screen())
}

// Dispatch runs an action and returns the screen after it, also when the action
// failed. Failed actions are logged by the session's router.
func (a *API) Dispatch(c *gin.Context) {
	var act ui.Action
	if err := c.ShouldBindJSON(&act); err != nil {
		writeError(c, errors.New(errors.CodeInvalidArgument, errors.WithMessagef("invalid action: %v", err)))
		return
	}

	s := session(c)
	if err := a.sessions.Dispatch(c.Request.Context(), s, act); err != nil {
		e := errors.Convert(err)
		c.JSON(e.HTTPStatusCode(), ActionResponse{Screen: s.Screen(), Error: e})
		return
	}

	c.JSON(http.StatusOK, ActionResponse{Screen: s.Screen()})
}

func (a *API) DeleteSession(c *gin.Context) {
	a.sessions.Remove(c.Request.Context(), session(c).ID)
	c.Status(http.StatusNoContent)
}

// authenticate loads the session of the Bearer token, or of the token query
// parameter for clients that cannot set headers such as browser websockets.
func (a *API) authenticate(c *gin.Context) {
	token := c.Query("token")
	if h := c.GetHeader("Authorization"); h != "" {
		scheme, t, ok := strings.Cut(h, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") {
			writeError(c, ErrInvalidToken)
			return
		}
		token = t
	}
	if token == "" {
		writeError(c, errors.New(errors.CodeUnauthenticated, errors.WithMessagef("session token required")))
		return
	}

	id, err := a.tokens.Parse(token)
	if err != nil {
		writeError(c, err)
		return
	}

	s, err := a.sessions.Get(id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.Set(sessionKey, s)
	c.Next()
}

func session(c *gin.Context) *Session {
	return c.MustGet(sessionKey).(*Session)
}

func writeError(c *gin.Context, err error) {
	e := errors.Convert(err)
	if e.Code == errors.CodeInternal {
		slog.ErrorContext(c.Request.Context(), "api: request failed", "path", c.FullPath(), "error", e)
	}
	c.AbortWithStatusJSON(e.HTTPStatusCode(), ErrorResponse{Error: e})
}
