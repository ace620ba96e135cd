package main

import (
	"context"
	"fmt"
	"os"

	"github.com/metalagman/refiner/internal/agent"
	"github.com/metalagman/refiner/internal/config"
	"github.com/metalagman/refiner/internal/db"
	"github.com/metalagman/refiner/internal/review"
	"github.com/metalagman/refiner/internal/source"
)

// app holds what one-shot commands need to run a review.
type app struct {
	cfg      config.Config
	store    *db.Store
	reviewer *review.Service
	closers  []func()
}

func openStore(ctx context.Context) (config.Config, *db.Store, func(), error) {
	repoRoot, err := os.Getwd()
	if err != nil {
		return config.Config{}, nil, func() {}, err
	}
	cfg, err := loadConfig(repoRoot)
	if err != nil {
		return config.Config{}, nil, func() {}, err
	}
	handle, err := db.Open(ctx, cfg.DBPath)
	if err != nil {
		return config.Config{}, nil, func() {}, err
	}
	return cfg, db.NewStore(handle), func() { _ = handle.Close() }, nil
}

func openApp(ctx context.Context) (*app, error) {
	cfg, store, closeStore, err := openStore(ctx)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, store: store, closers: []func(){closeStore}}

	src, closeSrc, err := source.Open(ctx, cfg.Source, store)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open context source: %w", err)
	}
	a.closers = append(a.closers, closeSrc)
	a.reviewer = newReviewService(cfg, src, newInvoker(cfg), store)
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func newInvoker(cfg config.Config) agent.Invoker {
	return agent.NewService(cfg.Agents)
}

func newReviewService(cfg config.Config, src source.Source, invoker agent.Invoker, store *db.Store) *review.Service {
	return review.NewService(cfg, src, invoker, review.WithStore(store))
}
