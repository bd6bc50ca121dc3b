// Package botflow is the high-level entry point for the conversation
// engine. It wires stores, session locking and the step engine into one
// App, with in-memory defaults that a Redis deployment swaps out through
// options.
package botflow

import (
	"log/slog"
	"time"

	backend "github.com/redis/go-redis/v9"

	"github.com/urbangroup/botflow/internal/adapters/cache"
	"github.com/urbangroup/botflow/internal/adapters/memory"
	redisadapter "github.com/urbangroup/botflow/internal/adapters/redis"
	"github.com/urbangroup/botflow/internal/logging"
	"github.com/urbangroup/botflow/pkg/engine"
	"github.com/urbangroup/botflow/pkg/ports"
	"github.com/urbangroup/botflow/pkg/session"
)

// Version is the release version, stamped into the version command.
const Version = "0.3.0"

// App bundles the configured components of one engine instance.
type App struct {
	Scripts  ports.ScriptStore
	Sessions *session.Manager
	Engine   *engine.Engine
	Logger   *slog.Logger

	redis *backend.Client
}

type config struct {
	redisAddr     string
	redisPassword string
	redisDB       int

	sessionTTL time.Duration
	cacheTTL   time.Duration

	logger     *slog.Logger
	engineOpts []engine.Option
}

// Option configures the App.
type Option func(*config)

// WithRedis backs scripts, sessions and locks with Redis instead of
// process memory.
func WithRedis(addr, password string, db int) Option {
	return func(c *config) {
		c.redisAddr = addr
		c.redisPassword = password
		c.redisDB = db
	}
}

// WithSessionTTL overrides the session inactivity window (Redis only).
func WithSessionTTL(ttl time.Duration) Option {
	return func(c *config) { c.sessionTTL = ttl }
}

// WithScriptCacheTTL overrides the script cache lifetime (Redis only).
func WithScriptCacheTTL(ttl time.Duration) Option {
	return func(c *config) { c.cacheTTL = ttl }
}

// WithLogger sets the logger shared by all components.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithEngineOptions forwards options to the step engine, e.g. the
// classifier, checker, directory and sink collaborators.
func WithEngineOptions(opts ...engine.Option) Option {
	return func(c *config) { c.engineOpts = append(c.engineOpts, opts...) }
}

// New assembles an App. Without WithRedis everything lives in process
// memory, which suits tests and the interactive runner.
func New(opts ...Option) (*App, error) {
	cfg := &config{
		sessionTTL: redisadapter.DefaultSessionTTL,
		cacheTTL:   cache.DefaultTTL,
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	app := &App{Logger: cfg.logger}

	var sessions ports.SessionStore
	var locker ports.DistributedLocker

	if cfg.redisAddr != "" {
		app.redis = backend.NewClient(&backend.Options{
			Addr:     cfg.redisAddr,
			Password: cfg.redisPassword,
			DB:       cfg.redisDB,
		})
		app.Scripts = cache.NewScriptStore(
			redisadapter.NewScriptStore(app.redis),
			cache.WithTTL(cfg.cacheTTL),
		)
		sessions = redisadapter.NewSessionStore(app.redis, redisadapter.WithSessionTTL(cfg.sessionTTL))
		locker = redisadapter.NewLocker(app.redis, "botflow:")
	} else {
		app.Scripts = memory.NewScriptStore()
		sessions = memory.NewSessionStore()
	}

	managerOpts := []session.Option{session.WithLogger(cfg.logger)}
	if locker != nil {
		managerOpts = append(managerOpts, session.WithLocker(locker))
	}
	app.Sessions = session.NewManager(sessions, managerOpts...)

	engineOpts := append([]engine.Option{engine.WithLogger(cfg.logger)}, cfg.engineOpts...)
	app.Engine = engine.New(app.Scripts, engineOpts...)

	return app, nil
}

// Close releases backing connections.
func (a *App) Close() error {
	if a.redis != nil {
		return a.redis.Close()
	}
	return nil
}
