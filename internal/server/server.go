package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/victornm/quizdesk/internal/account"
	"github.com/victornm/quizdesk/internal/api"
	"github.com/victornm/quizdesk/internal/app"
	"github.com/victornm/quizdesk/internal/event"
	"github.com/victornm/quizdesk/internal/generator"
	"github.com/victornm/quizdesk/internal/leaderboard"
	"github.com/victornm/quizdesk/internal/quiz"
	"github.com/victornm/quizdesk/internal/store"
	"github.com/victornm/quizdesk/internal/store/postgres"
	redisstore "github.com/victornm/quizdesk/internal/store/redis"
	"github.com/victornm/quizdesk/internal/store/sqlite"
	"github.com/victornm/quizdesk/internal/telemetry"
)

const (
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
	DriverSQLite   = "sqlite"
)

type RedisConfig struct {
	Addrs  []string
	Pass   string
	Prefix string
}

type Config struct {
	HTTP struct {
		Port int32

		CORS struct {
			AllowedOrigins []string `mapstructure:"allowed_origins"`
		}
	}

	GRPC struct {
		Port int32
	}

	Storage struct {
		Driver string

		// DSN is a secret: set it with STORAGE_POSTGRES_DSN, never in the file.
		Postgres struct {
			DSN string
		}

		Redis RedisConfig

		SQLite struct {
			Path string
		}
	}

	Redis struct {
		Leaderboard RedisConfig
		Pubsub      RedisConfig
	}

	Auth struct {
		BcryptCost  int           `mapstructure:"bcrypt_cost"`
		TokenSecret string        `mapstructure:"token_secret"`
		TokenTTL    time.Duration `mapstructure:"token_ttl"`
	}

	Session struct {
		IdleTimeout time.Duration `mapstructure:"idle_timeout"`
	}

	Quiz struct {
		QuestionsPerSession int `mapstructure:"questions_per_session"`
		MaxRetries          int `mapstructure:"max_retries"`

		// Bank adds a topic read from a spreadsheet when Path is set.
		Bank struct {
			Path        string
			Sheet       string
			Title       string
			Instruction string
		}
	}
}

// DefaultConfig returns the values used for settings missing from the config file.
func DefaultConfig() Config {
	var c Config
	c.HTTP.Port = 8080
	c.GRPC.Port = 9090
	c.Storage.Driver = DriverSQLite
	c.Storage.SQLite.Path = "quizdesk.db"
	c.Storage.Redis.Prefix = "quizdesk"
	c.Redis.Leaderboard.Prefix = "quizdesk:leaderboard"
	c.Redis.Pubsub.Prefix = "quizdesk"
	c.Auth.TokenTTL = 24 * time.Hour
	c.Session.IdleTimeout = 30 * time.Minute
	c.Quiz.QuestionsPerSession = 5
	c.Quiz.MaxRetries = 1000
	c.Quiz.Bank.Title = "Question Bank"
	c.Quiz.Bank.Instruction = "Answer each question"
	return c
}

type Server struct {
	c Config

	eb      *event.Bus
	metrics *telemetry.Metrics

	infra struct {
		store store.Store

		redis struct {
			leaderboard redis.UniversalClient
			pubsub      redis.UniversalClient
		}
	}

	service struct {
		accounts    *account.Service
		builder     *quiz.Builder
		leaderboard *leaderboard.Service
		topics      *generator.Topics
		sessions    *api.Sessions
	}

	http   *http.Server
	grpc   *grpc.Server
	health *health.Server

	// ctx ends on Shutdown and stops background work started by Start.
	ctx    context.Context
	cancel context.CancelFunc
}

func Init(c Config) (*Server, error) {
	if c.Auth.TokenSecret == "" {
		return nil, fmt.Errorf("server: AUTH_TOKEN_SECRET not set")
	}

	s := &Server{c: c}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	s.eb = event.NewBus()
	s.metrics = telemetry.NewMetrics(prometheus.DefaultRegisterer, s.eb)

	if err := s.initInfra(); err != nil {
		return nil, fmt.Errorf("server: init infra: %w", err)
	}

	if err := s.initService(); err != nil {
		return nil, fmt.Errorf("server: init service: %w", err)
	}

	s.initAPI()
	return s, nil
}

func (s *Server) initInfra() error {
	if err := s.initRedis(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	if err := s.initStorage(); err != nil {
		return fmt.Errorf("storage: %w", err)
	}

	return nil
}

func connectRedis(c RedisConfig) (redis.UniversalClient, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	r := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    c.Addrs,
		Password: c.Pass,
	})

	if err := telemetry.MonitorRedis(r); err != nil {
		return nil, err
	}

	if err := r.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return r, nil
}

func (s *Server) initRedis() error {
	var err error
	s.infra.redis.leaderboard, err = connectRedis(s.c.Redis.Leaderboard)
	if err != nil {
		return fmt.Errorf("leaderboard: %w", err)
	}

	s.infra.redis.pubsub, err = connectRedis(s.c.Redis.Pubsub)
	if err != nil {
		return fmt.Errorf("pubsub: %w", err)
	}

	return nil
}

// initStorage connects the configured store. The store must answer a ping
// before migrations run: the server does not start without its database.
func (s *Server) initStorage() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var (
		st  store.Store
		err error
	)
	switch d := s.c.Storage.Driver; d {
	case DriverPostgres:
		if s.c.Storage.Postgres.DSN == "" {
			return fmt.Errorf("postgres: STORAGE_POSTGRES_DSN not set")
		}
		st, err = postgres.Connect(ctx, s.c.Storage.Postgres.DSN)
	case DriverRedis:
		var r redis.UniversalClient
		r, err = connectRedis(s.c.Storage.Redis)
		if err == nil {
			st = redisstore.New(redisstore.Config{Redis: r, Prefix: s.c.Storage.Redis.Prefix})
		}
	case DriverSQLite:
		st, err = sqlite.Open(s.c.Storage.SQLite.Path)
	default:
		return fmt.Errorf("unknown driver %q", d)
	}
	if err != nil {
		return fmt.Errorf("%s: connect: %w", s.c.Storage.Driver, err)
	}

	if err := st.Ping(ctx); err != nil {
		_ = st.Close()
		return fmt.Errorf("%s: ping: %w", s.c.Storage.Driver, err)
	}
	slog.InfoContext(ctx, "server: storage connected", "driver", s.c.Storage.Driver)

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return fmt.Errorf("%s: migrate: %w", s.c.Storage.Driver, err)
	}

	s.infra.store = st
	return nil
}

func (s *Server) initService() error {
	var err error
	s.service.accounts, err = account.NewService(account.Config{
		Store:      s.infra.store,
		EventBus:   s.eb,
		BcryptCost: s.c.Auth.BcryptCost,
	})
	if err != nil {
		return fmt.Errorf("accounts: %w", err)
	}

	s.service.builder = quiz.NewBuilder(quiz.Config{
		Store:      s.infra.store,
		EventBus:   s.eb,
		MaxRetries: s.c.Quiz.MaxRetries,
	})

	s.service.leaderboard = leaderboard.NewService(leaderboard.Config{
		EventBus: s.eb,
		Redis:    s.infra.redis.leaderboard,
		Prefix:   s.c.Redis.Leaderboard.Prefix,
	})

	r := generator.NewRand(uint64(time.Now().UnixNano()))
	s.service.topics = generator.DefaultTopics(r)
	if b := s.c.Quiz.Bank; b.Path != "" {
		rows, err := generator.LoadBank(b.Path, b.Sheet)
		if err != nil {
			return fmt.Errorf("question bank: %w", err)
		}
		err = s.service.topics.Add(generator.Topic{
			Title:       b.Title,
			Instruction: b.Instruction,
			Source:      generator.Bank(rows, r),
		})
		if err != nil {
			return fmt.Errorf("question bank: %w", err)
		}
	}

	a, err := app.New(app.Deps{
		Accounts:            s.service.accounts,
		Builder:             s.service.builder,
		Topics:              s.service.topics,
		Leaderboard:         s.service.leaderboard,
		QuestionsPerSession: s.c.Quiz.QuestionsPerSession,
	})
	if err != nil {
		return err
	}

	s.service.sessions = api.NewSessions(api.SessionsConfig{
		App:         a,
		Redis:       s.infra.redis.pubsub,
		Prefix:      s.c.Redis.Pubsub.Prefix,
		Metrics:     s.metrics,
		IdleTimeout: s.c.Session.IdleTimeout,
	})

	return nil
}

func (s *Server) initAPI() {
	e := gin.New()
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
	pprof.Register(e, "/debug/pprof")
	e.Use(gin.Recovery())

	s.grpc = grpc.NewServer(telemetry.GRPCServerInterceptor())
	s.health = health.NewServer()
	healthpb.RegisterHealthServer(s.grpc, s.health)
	// Init fails before this point when the storage ping fails.
	s.health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	api.New(api.Config{
		Router:       e,
		EventBus:     s.eb,
		Sessions:     s.service.sessions,
		Tokens:       api.NewTokens(s.c.Auth.TokenSecret, s.c.Auth.TokenTTL),
		Redis:        s.infra.redis.pubsub,
		PubsubPrefix: s.c.Redis.Pubsub.Prefix,
	})

	h := cors.New(cors.Options{
		AllowedOrigins: s.c.HTTP.CORS.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         300,
	}).Handler(e)

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.c.HTTP.Port),
		Handler:           h,
		ReadHeaderTimeout: 60 * time.Second,
	}
}

func (s *Server) Start() {
	ctx := s.ctx

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.c.GRPC.Port))
	if err != nil {
		slog.ErrorContext(ctx, "grpc server: listen failed", "error", err)
		panic(err)
	}

	var eg errgroup.Group
	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: gRPC listening on port %d", s.c.GRPC.Port))
		return s.grpc.Serve(lis)
	})

	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: HTTP listening on port %d", s.c.HTTP.Port))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	eg.Go(func() error {
		s.service.sessions.Run(ctx)
		return nil
	})

	err = eg.Wait()
	if err != nil {
		slog.ErrorContext(ctx, "server: shutdown with error", "error", err)
	}
}

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.health.Shutdown()
	s.grpc.GracefulStop()
	if err := s.http.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "server: shutdown HTTP failed", "error", err)
	}

	s.cancel()
	s.service.sessions.Close(ctx)

	s.eb.Stop()

	if err := s.infra.store.Close(); err != nil {
		slog.ErrorContext(ctx, "server: close storage failed", "error", err)
	}
	for _, r := range []redis.UniversalClient{s.infra.redis.leaderboard, s.infra.redis.pubsub} {
		if err := r.Close(); err != nil {
			slog.ErrorContext(ctx, "server: close redis failed", "error", err)
		}
	}

	slog.InfoContext(ctx, "server: shutdown completed")
}
