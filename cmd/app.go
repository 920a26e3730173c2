package cmd

import (
	"context"

	"danyak/api"
	"danyak/auth"
	"danyak/board"
	"danyak/config"
	"danyak/fs"
	"danyak/logging"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// App holds everything a command needs. It is built once per process, from
// configuration, by the root command's pre-run.
type App struct {
	Config *config.Config
	Log    *zap.Logger
	Api    *api.Api
	Auth   *auth.Manager
	Board  *board.Store

	closeLog func()
}

type overrides struct {
	configPath string
	url        string
	anonKey    string
}

func (a *App) init(ctx context.Context, o overrides) error {
	err := fs.Init()
	if err != nil {
		return err
	}

	path := o.configPath
	if path == "" {
		path = fs.HomeConfigPath
	}

	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if o.url != "" {
		cfg.Url = o.url
	}
	if o.anonKey != "" {
		cfg.AnonKey = o.anonKey
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.Config = cfg

	logger, closeLog, err := logging.New(cfg.Logging, fs.HomeLogPath)
	if err != nil {
		return errors.Wrap(err, "error setting up logging")
	}
	a.Log = logger
	a.closeLog = closeLog

	a.Api = api.NewApi(api.ClientOptions{
		Url:     cfg.Url,
		AnonKey: cfg.AnonKey,
		Timeout: cfg.GetTimeout(),
		Storage: fs.NewFileSessionStorage(fs.HomeSessionPath),
		Logger:  logger,
	})

	a.Auth, err = auth.NewManager(ctx, a.Api, logger)
	if err != nil {
		return err
	}

	a.Board = board.NewStore(a.Api, logger)

	return nil
}

// Close releases what init acquired, in reverse order. Safe on a partly
// initialized App.
func (a *App) Close() {
	if a.Board != nil {
		a.Board.Close()
	}
	if a.Auth != nil {
		a.Auth.Close()
	}
	if a.Api != nil {
		a.Api.Close()
	}
	if a.closeLog != nil {
		a.closeLog()
	}
}
