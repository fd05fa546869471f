package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/jwalitptl/scribe/pkg/logger"
)

// Prober is the part of the patient store the connectivity worker drives.
type Prober interface {
	Offline() bool
	Ping(ctx context.Context) error
	Refresh(ctx context.Context) error
}

// ConnectivityWorker brings an offline store back online once the records
// API answers again.
type ConnectivityWorker struct {
	store    Prober
	interval time.Duration
	timeout  time.Duration
	logger   *logger.Logger
}

func NewConnectivityWorker(store Prober, interval time.Duration, log *logger.Logger) *ConnectivityWorker {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &ConnectivityWorker{
		store:    store,
		interval: interval,
		timeout:  interval,
		logger:   log.With("connectivity-worker"),
	}
}

func (w *ConnectivityWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("Starting connectivity worker", "interval", w.interval.String())

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Shutting down connectivity worker")
			return
		case <-ticker.C:
			if err := w.probe(ctx); err != nil {
				w.logger.Debug("records API still unreachable", "error", err.Error())
			}
		}
	}
}

func (w *ConnectivityWorker) probe(ctx context.Context) error {
	if !w.store.Offline() {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	if err := w.store.Ping(ctx); err != nil {
		return err
	}
	if err := w.store.Refresh(ctx); err != nil {
		return fmt.Errorf("failed to refresh patients: %w", err)
	}

	w.logger.Info("records API reachable again, store back online")
	return nil
}
