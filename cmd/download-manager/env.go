package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/alanbriolat/download-manager/internal/boltdb"
	"github.com/alanbriolat/download-manager/internal/config"
	"github.com/alanbriolat/download-manager/internal/download"
	"github.com/alanbriolat/download-manager/internal/registry"
	"github.com/alanbriolat/download-manager/internal/session"
	"github.com/alanbriolat/download-manager/internal/sqlitedb"
	"github.com/alanbriolat/download-manager/internal/transport"
)

// How long to wait for paused downloads to hand over their checkpoints when exiting.
const closeTimeout = 10 * time.Second

type database interface {
	session.Database
	Close() error
}

// loadConfig reads the config file and environment, with global flags taking precedence.
func loadConfig(c *cli.Context) (*config.Config, error) {
	v, err := config.New(c.String("config"))
	if err != nil {
		return nil, err
	}
	overrides := map[string]string{
		"database":  config.KeyDatabasePath,
		"driver":    config.KeyDatabaseDriver,
		"dir":       config.KeyDownloadDir,
		"log-level": config.KeyLogLevel,
	}
	for flag, key := range overrides {
		if c.IsSet(flag) {
			v.Set(key, c.String(flag))
		}
	}
	return config.Decode(v)
}

func getConfig(c *cli.Context) *config.Config {
	return c.App.Metadata["config"].(*config.Config)
}

func openDatabase(cfg *config.Config) (database, error) {
	switch cfg.Database.Driver {
	case config.DriverSQLite:
		return sqlitedb.New(cfg.Database.Path)
	default:
		return boltdb.New(cfg.Database.Path)
	}
}

func transportOptions(cfg *config.Config) transport.Options {
	opts := transport.DefaultOptions()
	opts.TempDir = cfg.Download.TempDir
	opts.RateLimit = cfg.Download.RateLimit
	opts.RequestTimeout = cfg.Download.RequestTimeout
	opts.InactivityTimeout = cfg.Download.InactivityTimeout
	opts.RetryAttempts = cfg.Download.RetryAttempts
	opts.RetryBackoff = cfg.Download.RetryBackoff
	return opts
}

// withSession runs f with a session over the configured database, closing both afterwards. Closing pauses any
// downloads still running so they can be resumed by a later command.
func withSession(c *cli.Context, f func(s *session.Session) error) (err error) {
	logger := zap.S().Named("cli")
	cfg := getConfig(c)
	db, err := openDatabase(cfg)
	if err != nil {
		return fmt.Errorf("opening database %q: %w", cfg.Database.Path, err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			logger.Errorf("failed to close database: %v", closeErr)
		}
	}()

	sesConfig := session.DefaultConfig
	sesConfig.SaveDir = cfg.Download.Dir
	sesConfig.Database = db
	sesConfig.Transport = transport.NewDefaultRegistry(transportOptions(cfg))
	sesConfig.ProgressUpdateInterval = cfg.Session.ProgressUpdateInterval
	// The session outlives the interrupt so that it can still pause and persist
	ses, err := session.New(context.Background(), sesConfig)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
		defer cancel()
		if closeErr := ses.Close(ctx); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return f(ses)
}

// resolveTask finds a task by ID or unique ID prefix.
func resolveTask(s *session.Session, arg string) (*download.Task, error) {
	if t, err := s.Get(download.ID(arg)); err == nil {
		return t, nil
	}
	var match *download.Task
	for _, t := range s.List() {
		if strings.HasPrefix(string(t.ID()), arg) {
			if match != nil {
				return nil, fmt.Errorf("%q matches more than one task", arg)
			}
			match = t
		}
	}
	if match == nil {
		return nil, fmt.Errorf("%q: %w", arg, registry.ErrTaskNotFound)
	}
	return match, nil
}

func resolveTasks(s *session.Session, args []string) ([]*download.Task, error) {
	tasks := make([]*download.Task, 0, len(args))
	for _, arg := range args {
		t, err := resolveTask(s, arg)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}
