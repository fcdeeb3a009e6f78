package client

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"

	"github.com/yush1006/todo/client/remote"
)

// ErrNotConfigured is returned by App operations when credentials are
// missing.
var ErrNotConfigured = errors.New("client is not configured")

// State is the top-level screen the application shows.
type State int

const (
	StateNotConfigured State = iota
	StateSignedOut
	StateSignedIn
)

func (s State) String() string {
	switch s {
	case StateNotConfigured:
		return "not-configured"
	case StateSignedOut:
		return "signed-out"
	case StateSignedIn:
		return "signed-in"
	default:
		return "unknown"
	}
}

// Config holds the credentials the client needs to reach the service.
type Config struct {
	APIURL    string
	APIKey    string
	ProjectID string
	// Token, when set, is used as the sign-in token.
	Token string
}

// Missing lists the environment names of absent required credentials.
func (c Config) Missing() []string {
	var missing []string
	if c.APIURL == "" {
		missing = append(missing, "TODO_API_URL")
	}
	if c.APIKey == "" {
		missing = append(missing, "TODO_API_KEY")
	}
	if c.ProjectID == "" {
		missing = append(missing, "TODO_PROJECT_ID")
	}
	return missing
}

// Options tune Open. Zero values select the remote store and a session fed
// by Config.Token.
type Options struct {
	Logger *log.Logger
	Tokens TokenSource
	Store  TaskStore
}

// App gates the engine behind configuration.
type App struct {
	missing []string
	logger  *log.Logger
	session *TokenSession
	engine  *Engine
}

// Open builds the application. With missing credentials it returns an App
// in StateNotConfigured that holds no store, session or engine.
func Open(cfg Config, opts Options) *App {
	logger := opts.Logger
	if logger == nil {
		logger = log.StandardLogger()
	}
	app := &App{missing: cfg.Missing(), logger: logger}
	if len(app.missing) > 0 {
		logger.WithField("missing", app.missing).Warn("client credentials missing")
		return app
	}

	tokens := opts.Tokens
	if tokens == nil && cfg.Token != "" {
		tokens = StaticToken(cfg.Token)
	}
	app.session = NewTokenSession(tokens)

	store := opts.Store
	if store == nil {
		store = remote.New(cfg.APIURL, cfg.APIKey, app.session.BearerToken, remote.WithLogger(logger))
	}
	app.engine = NewEngine(store, app.session, logger)
	app.engine.Start()
	logger.WithField("project", cfg.ProjectID).Debug("client opened")
	return app
}

func (a *App) State() State {
	if a.engine == nil {
		return StateNotConfigured
	}
	if a.session.Identity() == nil {
		return StateSignedOut
	}
	return StateSignedIn
}

// Missing returns the absent credentials, if any.
func (a *App) Missing() []string { return append([]string(nil), a.missing...) }

// Notice reports the configuration failure when the app is not configured.
// Otherwise it returns the engine's current notice.
func (a *App) Notice() *Notice {
	if a.engine == nil {
		return &Notice{Kind: NoticeConfig, Message: MsgNotConfigured, Err: ErrNotConfigured}
	}
	return a.engine.View().Notice
}

// Engine returns nil when the app is not configured.
func (a *App) Engine() *Engine { return a.engine }

func (a *App) SignIn(ctx context.Context) error {
	if a.engine == nil {
		return ErrNotConfigured
	}
	return a.engine.SignIn(ctx)
}

func (a *App) SignOut() {
	if a.engine != nil {
		a.engine.SignOut()
	}
}

func (a *App) Close() {
	if a.engine != nil {
		a.engine.Close()
	}
}
