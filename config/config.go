// Package config loads server and client settings from an optional config
// file, a .env file and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/yush1006/todo/client"
)

// Storage backends accepted in STORAGE_BACKEND.
const (
	BackendTables = "aztables"
	BackendSQLite = "sqlite"
)

// Server holds the settings of the todo-api binary.
type Server struct {
	Port                    string        `mapstructure:"port"`
	Debug                   bool          `mapstructure:"debug"`
	StorageBackend          string        `mapstructure:"storage_backend"`
	StorageConnectionString string        `mapstructure:"storage_connection_string"`
	TasksTable              string        `mapstructure:"tasks_table"`
	TaskEventsQueue         string        `mapstructure:"task_events_queue"`
	SQLiteDSN               string        `mapstructure:"sqlite_dsn"`
	RedisConnectionString   string        `mapstructure:"redis_connection_string"`
	RedisUpdatesChannel     string        `mapstructure:"redis_updates_channel"`
	TasksCacheTTL           time.Duration `mapstructure:"tasks_cache_ttl"`
	StreamHeartbeat         time.Duration `mapstructure:"stream_heartbeat"`
	Auth0Domain             string        `mapstructure:"auth0_domain"`
	Auth0Audience           string        `mapstructure:"auth0_audience"`
	Auth0TestMode           bool          `mapstructure:"auth0_test_mode"`
	TestJWTSecret           string        `mapstructure:"test_jwt_secret"`
	APIKeys                 []string      `mapstructure:"api_keys"`
}

// Provisioning holds the settings of the storage-init binary.
type Provisioning struct {
	StorageConnectionString string `mapstructure:"storage_connection_string"`
	TasksTable              string `mapstructure:"tasks_table"`
	TaskEventsQueue         string `mapstructure:"task_events_queue"`
}

func setServerDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("debug", false)
	v.SetDefault("storage_backend", BackendSQLite)
	v.SetDefault("storage_connection_string", "")
	v.SetDefault("tasks_table", "Tasks")
	v.SetDefault("task_events_queue", "")
	v.SetDefault("sqlite_dsn", "todo.db")
	v.SetDefault("redis_connection_string", "")
	v.SetDefault("redis_updates_channel", "task-updates")
	v.SetDefault("tasks_cache_ttl", 10*time.Minute)
	v.SetDefault("stream_heartbeat", 15*time.Second)
	v.SetDefault("auth0_domain", "")
	v.SetDefault("auth0_audience", "")
	v.SetDefault("auth0_test_mode", false)
	v.SetDefault("test_jwt_secret", "")
	v.SetDefault("api_keys", []string{})
}

func newViper(path string) (*viper.Viper, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}
	v.AutomaticEnv()
	return v, nil
}

// LoadServer reads and validates server settings. path may be empty.
func LoadServer(path string) (*Server, error) {
	v, err := newViper(path)
	if err != nil {
		return nil, err
	}
	setServerDefaults(v)

	cfg := &Server{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	cfg.APIKeys = splitList(cfg.APIKeys)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first missing or inconsistent setting.
func (c *Server) Validate() error {
	switch c.StorageBackend {
	case BackendTables:
		if c.StorageConnectionString == "" || c.TasksTable == "" {
			return errors.New("missing storage config: STORAGE_CONNECTION_STRING and TASKS_TABLE are required")
		}
	case BackendSQLite:
		if c.SQLiteDSN == "" {
			return errors.New("missing storage config: SQLITE_DSN is required")
		}
		if c.TaskEventsQueue != "" && c.StorageConnectionString == "" {
			return errors.New("TASK_EVENTS_QUEUE requires STORAGE_CONNECTION_STRING")
		}
	default:
		return fmt.Errorf("unsupported STORAGE_BACKEND %q", c.StorageBackend)
	}
	if c.Auth0TestMode {
		if c.TestJWTSecret == "" {
			return errors.New("TEST_JWT_SECRET must be set when AUTH0_TEST_MODE=1")
		}
	} else if c.Auth0Domain == "" || c.Auth0Audience == "" {
		return errors.New("missing Auth0 config")
	}
	if c.TasksCacheTTL < 0 {
		return errors.New("TASKS_CACHE_TTL must not be negative")
	}
	return nil
}

// LoadProvisioning reads the settings of the storage-init binary.
func LoadProvisioning(path string) (*Provisioning, error) {
	v, err := newViper(path)
	if err != nil {
		return nil, err
	}
	v.SetDefault("storage_connection_string", "")
	v.SetDefault("tasks_table", "Tasks")
	v.SetDefault("task_events_queue", "")
	cfg := &Provisioning{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	if cfg.StorageConnectionString == "" || cfg.TasksTable == "" {
		return nil, errors.New("missing storage config")
	}
	return cfg, nil
}

// LoadClient reads client credentials. Missing credentials are not an
// error; the application reports them as "not configured".
func LoadClient(path string) (client.Config, error) {
	v, err := newViper(path)
	if err != nil {
		return client.Config{}, err
	}
	for _, k := range []string{"todo_api_url", "todo_api_key", "todo_project_id", "todo_token"} {
		v.SetDefault(k, "")
	}
	return client.Config{
		APIURL:    strings.TrimRight(v.GetString("todo_api_url"), "/"),
		APIKey:    v.GetString("todo_api_key"),
		ProjectID: v.GetString("todo_project_id"),
		Token:     v.GetString("todo_token"),
	}, nil
}

// LoadDotEnv loads the given .env files (default ".env") into the process
// environment without overriding variables that are already set. Missing
// files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return nil
}

func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
