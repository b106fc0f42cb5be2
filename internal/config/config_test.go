package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victornm/quizdesk/internal/config"
)

type testConfig struct {
	HTTP struct {
		Port int32
	}

	Storage struct {
		Driver   string
		Postgres struct {
			DSN string
		}
	}

	Quiz struct {
		QuestionsPerSession int `mapstructure:"questions_per_session"`
		MaxRetries          int `mapstructure:"max_retries"`
	}

	Auth struct {
		TokenSecret string        `mapstructure:"token_secret"`
		TokenTTL    time.Duration `mapstructure:"token_ttl"`
	}

	Redis struct {
		Addrs []string
	}
}

func write(t *testing.T, name, content string) string {
	t.Helper()

	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestLoad(t *testing.T) {
	file := write(t, "config.yaml", `
http:
  port: 8080
storage:
  driver: postgres
quiz:
  questions_per_session: 3
`)
	t.Setenv("STORAGE_POSTGRES_DSN", "postgres://quiz@localhost/quiz")

	var c testConfig
	c.Quiz.MaxRetries = 1000
	require.NoError(t, config.Load(file, &c))

	assert.EqualValues(t, 8080, c.HTTP.Port)
	assert.Equal(t, "postgres", c.Storage.Driver)
	assert.Equal(t, "postgres://quiz@localhost/quiz", c.Storage.Postgres.DSN, "from env")
	assert.Equal(t, 3, c.Quiz.QuestionsPerSession)
	assert.Equal(t, 1000, c.Quiz.MaxRetries, "preset default kept")
}

func TestLoad_EnvOnlyKeys(t *testing.T) {
	tests := map[string]struct {
		env    map[string]string
		assert func(t *testing.T, c testConfig)
	}{
		"secret absent from file": {
			env: map[string]string{"AUTH_TOKEN_SECRET": "s3cret"},
			assert: func(t *testing.T, c testConfig) {
				assert.Equal(t, "s3cret", c.Auth.TokenSecret)
				assert.Equal(t, time.Hour, c.Auth.TokenTTL, "preset default kept")
			},
		},

		"duration": {
			env: map[string]string{"AUTH_TOKEN_TTL": "90m"},
			assert: func(t *testing.T, c testConfig) {
				assert.Equal(t, 90*time.Minute, c.Auth.TokenTTL)
			},
		},

		"list": {
			env: map[string]string{"REDIS_ADDRS": "a:6379,b:6379"},
			assert: func(t *testing.T, c testConfig) {
				assert.Equal(t, []string{"a:6379", "b:6379"}, c.Redis.Addrs)
			},
		},

		"no env": {
			assert: func(t *testing.T, c testConfig) {
				assert.Empty(t, c.Auth.TokenSecret)
				assert.Equal(t, time.Hour, c.Auth.TokenTTL)
				assert.Empty(t, c.Redis.Addrs)
			},
		},
	}

	// t.Setenv rules out t.Parallel.
	for name, tt := range tests {
		tt := tt
		t.Run(name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			file := write(t, "config.yaml", "http:\n  port: 8080\n")

			var c testConfig
			c.Auth.TokenTTL = time.Hour
			require.NoError(t, config.Load(file, &c))

			tt.assert(t, c)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	var c testConfig
	assert.Error(t, config.Load(filepath.Join(t.TempDir(), "missing.yaml"), &c))
}

func TestLoadEnv(t *testing.T) {
	env := write(t, ".env", "QUIZDESK_TEST_SECRET=from-file\nQUIZDESK_TEST_SET=from-file\n")
	t.Setenv("QUIZDESK_TEST_SET", "from-env")
	t.Cleanup(func() { os.Unsetenv("QUIZDESK_TEST_SECRET") })

	require.NoError(t, config.LoadEnv(env, filepath.Join(t.TempDir(), "missing.env")))

	assert.Equal(t, "from-file", os.Getenv("QUIZDESK_TEST_SECRET"))
	assert.Equal(t, "from-env", os.Getenv("QUIZDESK_TEST_SET"), "set variables win")
}
