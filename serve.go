package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pccr10001/callscreen/internal/api"
	"github.com/pccr10001/callscreen/internal/blacklist"
	"github.com/pccr10001/callscreen/internal/config"
	"github.com/pccr10001/callscreen/internal/logic"
	"github.com/pccr10001/callscreen/internal/modem"
	"github.com/pccr10001/callscreen/internal/repository"
	"github.com/pccr10001/callscreen/internal/screen"
	"github.com/pccr10001/callscreen/internal/worker"
	"github.com/pccr10001/callscreen/pkg/logger"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Open the modem and screen calls until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

// newOracle builds the blacklist oracle over the files named in cfg.
func newOracle(cfg *config.Config) (*blacklist.Oracle, *blacklist.FileSource, error) {
	policyName, err := blacklist.ParseShortNamePolicy(cfg.Screening.ShortNamePolicy)
	if err != nil {
		return nil, nil, err
	}
	files := blacklist.NewFileSource(afero.NewOsFs(), cfg.Blacklist.NumbersFile, cfg.Blacklist.NamesFile)

	var src blacklist.Source = files
	if cfg.Blacklist.CacheTTL > 0 {
		src = blacklist.NewCachedSource(files, cfg.Blacklist.CacheTTL)
	}
	oracle := blacklist.NewOracle(src, blacklist.Policy{
		TollFreePrefixes:   cfg.Screening.TollFreePrefixes,
		ShortName:          policyName,
		ShortNameMinLength: cfg.Screening.ShortNameMinLength,
	})
	return oracle, files, nil
}

// newSession resolves the port and prepares, but does not open, the session.
func newSession(cfg *config.Config) (*modem.Session, error) {
	portName, err := modem.Discover(cfg.Serial.Port, cfg.Serial.ModemName, cfg.Serial.ExcludePorts)
	if err != nil {
		return nil, err
	}
	return modem.NewSession(modem.SessionConfig{
		Port: modem.PortConfig{
			Name:         portName,
			BaudRate:     cfg.Serial.BaudRate,
			ReadTimeout:  cfg.Serial.ReadTimeout,
			WriteTimeout: cfg.Serial.WriteTimeout,
		},
		ResponseTimeout: cfg.Serial.ResponseTimeout,
		InitCommands:    cfg.Serial.InitATCommands,
	}, nil), nil
}

func runServe(ctx context.Context) error {
	cfg := &config.AppConfig
	logger.Log.Info("Starting call screener...")

	oracle, files, err := newOracle(cfg)
	if err != nil {
		return err
	}

	sess, err := newSession(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := sess.Shutdown(); err != nil {
			logger.Log.Errorf("Shutdown failed: %v", err)
		}
	}()
	if err := sess.Open(); err != nil {
		return fmt.Errorf("open modem: %w", err)
	}
	sess.Initialize(ctx)
	if ctx.Err() != nil {
		logger.Log.Info("Interrupted during modem setup")
		return nil
	}

	db, err := initDB(cfg.Database)
	if err != nil {
		return err
	}

	bus := logic.NewEventBus()
	defer bus.Close()
	webhooks := logic.NewWebhookService(repository.NewWebhookRepository(db))
	defer webhooks.Wait()

	screener := screen.NewScreener(oracle, screen.NewInterceptor(sess.Engine(), 0))
	w := worker.NewWorker(sess, screener, cfg.Screening.RingWindow, worker.Deps{
		Calls:    repository.NewCallRepository(db),
		Webhooks: webhooks,
		Bus:      bus,
	})

	var srv *http.Server
	if cfg.Server.Enabled {
		password, err := repository.NewUserRepository(db).EnsureAdmin()
		if err != nil {
			return fmt.Errorf("create admin user: %w", err)
		}
		if password != "" {
			logger.Log.Warnf("INITIAL ADMIN CREATED. Username: admin, Password: %s", password)
		}

		if cfg.Server.Mode == "release" {
			gin.SetMode(gin.ReleaseMode)
		}
		srv = &http.Server{
			Addr: cfg.Server.Port,
			Handler: api.NewRouter(api.Deps{
				DB:     db,
				Status: w,
				Engine: sess.Engine(),
				Oracle: oracle,
				Lists:  files,
				Bus:    bus,
			}),
		}
		go func() {
			logger.Log.Infof("Server listening on %s", cfg.Server.Port)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Log.Errorf("Server failed: %v", err)
			}
		}()
	}

	runErr := w.Run(ctx)
	if runErr != nil {
		logger.Log.Errorf("Poll loop exited: %v", runErr)
	}

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Log.Warnf("Server shutdown: %v", err)
		}
	}
	return runErr
}
