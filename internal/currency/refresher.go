package currency

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/R3E-Network/tenant_portal/internal/logging"
)

// Warmer is a provider whose cache can be force-refreshed.
type Warmer interface {
	Refresh(ctx context.Context, base string) (Rates, error)
}

// Refresher keeps the rate cache warm for a fixed set of base currencies on a
// cron schedule.
type Refresher struct {
	warmer   Warmer
	bases    []string
	schedule string
	timeout  time.Duration
	log      *logging.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	running bool
}

// NewRefresher creates a scheduled refresher. schedule accepts standard cron
// specs and descriptors such as "@every 1h".
func NewRefresher(warmer Warmer, bases []string, schedule string, log *logging.Logger) (*Refresher, error) {
	if warmer == nil {
		return nil, fmt.Errorf("warmer is required")
	}
	normalized := make([]string, 0, len(bases))
	for _, b := range bases {
		code, err := NormalizeCode(b)
		if err != nil {
			return nil, fmt.Errorf("base %q: %w", b, err)
		}
		normalized = append(normalized, code)
	}
	if schedule == "" {
		schedule = "@every 1h"
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}
	if log == nil {
		log = logging.Default("fx-refresher")
	}
	return &Refresher{
		warmer:   warmer,
		bases:    normalized,
		schedule: schedule,
		timeout:  10 * time.Second,
		log:      log,
	}, nil
}

func (r *Refresher) Name() string { return "fx-refresher" }

// Start warms the cache once and then schedules further refreshes.
func (r *Refresher) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(r.schedule, func() {
		if err := r.RefreshNow(context.Background()); err != nil {
			r.log.WithError(err).Warn("exchange rate refresh failed")
		}
	}); err != nil {
		return fmt.Errorf("schedule refresh: %w", err)
	}

	if err := r.RefreshNow(ctx); err != nil {
		r.log.WithError(err).Warn("initial exchange rate refresh failed")
	}

	c.Start()
	r.cron = c
	r.running = true
	r.log.WithField("schedule", r.schedule).Info("exchange rate refresher started")
	return nil
}

// Stop halts the schedule and waits for a running refresh to finish.
func (r *Refresher) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	c := r.cron
	r.cron = nil
	r.running = false
	r.mu.Unlock()

	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	r.log.Info("exchange rate refresher stopped")
	return nil
}

// RefreshNow refreshes every configured base and joins the failures.
func (r *Refresher) RefreshNow(ctx context.Context) error {
	var errs []error
	for _, base := range r.bases {
		callCtx, cancel := context.WithTimeout(ctx, r.timeout)
		_, err := r.warmer.Refresh(callCtx, base)
		cancel()
		if err != nil {
			errs = append(errs, fmt.Errorf("refresh %s: %w", base, err))
			continue
		}
		r.log.WithField("base", base).Debug("exchange rates refreshed")
	}
	return errors.Join(errs...)
}
