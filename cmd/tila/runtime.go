package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/yairfalse/tila/journal"
	"github.com/yairfalse/tila/manager"
	"github.com/yairfalse/tila/providers"
	_ "github.com/yairfalse/tila/providers/aws" // register the aws provider
	"github.com/yairfalse/tila/reconciler"
	"github.com/yairfalse/tila/state"
	"github.com/yairfalse/tila/telemetry"
)

// runtime wires the store, provider, journal, and workflows for a command
type runtime struct {
	store      *state.Store
	provider   providers.InstanceAPI
	journal    *journal.Journal
	manager    *manager.Manager
	reconciler *reconciler.Reconciler
}

func newRuntime(ctx context.Context) (*runtime, error) {
	logger := telemetry.NewLogger("tila")

	provider, err := providers.Get(ctx, cfg.Provider, providers.Config{Region: cfg.Region})
	if err != nil {
		return nil, fmt.Errorf("create provider: %w", err)
	}

	store, err := state.Open(cfg.StateFile, logger.Component("state"))
	if err != nil {
		return nil, fmt.Errorf("open state store: %w", err)
	}

	var jrnl *journal.Journal
	if cfg.JournalFile != "" {
		jrnl, err = journal.Open(cfg.JournalFile)
		if err != nil {
			return nil, fmt.Errorf("open journal: %w", err)
		}
	}

	options := manager.Options{
		PollInterval: cfg.PollInterval,
		WaitTimeout:  cfg.WaitTimeout,
	}

	return &runtime{
		store:      store,
		provider:   provider,
		journal:    jrnl,
		manager:    manager.New(provider, store, jrnl, logger.Component("manager"), options),
		reconciler: reconciler.New(provider, store, jrnl, logger.Component("reconciler")),
	}, nil
}

func (r *runtime) Close() {
	if r.journal != nil {
		if err := r.journal.Close(); err != nil {
			log.Warn().Err(err).Msg("close journal")
		}
	}
}
