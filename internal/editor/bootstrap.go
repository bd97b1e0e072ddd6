package editor

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Benny93/rigweave/internal/config"
	"github.com/Benny93/rigweave/internal/hostbridge"
	"github.com/Benny93/rigweave/internal/rig"
	"github.com/Benny93/rigweave/internal/storage"
)

// Bootstrap wires an App from configuration: the recovery backend, the
// builder (socket.io host or offline) and dispatch overrides. The returned
// function releases the backend and the host connection.
func Bootstrap(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, func() error, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	backend, err := storage.Open(storage.BackendKind(cfg.Recovery.Backend), cfg.Recovery.Path, false)
	if err != nil {
		return nil, nil, err
	}
	closers := []func() error{backend.Close}
	cleanup := func() error {
		var errs []error
		for i := len(closers) - 1; i >= 0; i-- {
			errs = append(errs, closers[i]())
		}
		return errors.Join(errs...)
	}

	var builder rig.Builder
	if cfg.Host.URL != "" {
		client, err := hostbridge.Dial(ctx, hostbridge.Config{
			URL:       cfg.Host.URL,
			Namespace: cfg.Host.Namespace,
		}, logger.Named("host"))
		if err != nil {
			_ = cleanup()
			return nil, nil, fmt.Errorf("connecting to host: %w", err)
		}
		closers = append(closers, client.Close)
		builder = client
	} else {
		logger.Info("no host configured, using offline builder")
		builder = rig.NewOfflineBuilder(cfg.Host.Handles)
	}

	rigOpts := []rig.Option{rig.WithTimeout(cfg.Host.Timeout)}
	if cfg.BuildersFile != "" {
		overrides, err := rig.LoadOverrides(cfg.BuildersFile)
		if err != nil {
			_ = cleanup()
			return nil, nil, err
		}
		rigOpts = append(rigOpts, rig.WithOverrides(overrides))
	}

	app := NewApp(Options{
		Backend: backend,
		Builder: builder,
		Logger:  logger,
		Rig:     rigOpts,
	})
	return app, cleanup, nil
}
