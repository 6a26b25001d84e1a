package daemon

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ecoboard/ecoboard/internal/api"
	"github.com/ecoboard/ecoboard/internal/app/approval"
	"github.com/ecoboard/ecoboard/internal/app/reward"
	"github.com/ecoboard/ecoboard/internal/app/settle"
	"github.com/ecoboard/ecoboard/internal/app/shop"
	"github.com/ecoboard/ecoboard/internal/app/task"
	"github.com/ecoboard/ecoboard/internal/infra/sqlite"
)

// Run starts the daemon and blocks until SIGINT/SIGTERM.
func Run(cfg Config) error {
	if dir := filepath.Dir(cfg.Store.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create store dir: %w", err)
		}
	}

	db, err := sqlite.Open(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	tasks := task.NewService(db)
	votes := approval.NewService(db)
	ledger := reward.NewLedger(db)
	store := shop.NewService(db, ledger)

	sweeper := settle.New(settle.Config{
		WaitingAge:     time.Duration(cfg.Approval.WaitingAgeMinutes) * time.Minute,
		ResolvedAge:    time.Duration(cfg.Approval.ResolvedAgeMinutes) * time.Minute,
		WaitingCount:   cfg.Approval.WaitingCount,
		ResolvedCount:  cfg.Approval.ResolvedCount,
		ApproveReward:  cfg.Rewards.ApproveAttendee,
		CompleteReward: cfg.Rewards.CompleteAttendee,
		TrashReward:    cfg.Rewards.TrashAttendee,
		CreatorBonus:   cfg.Rewards.CreatorBonus,
		InitialDelay:   parseDurationOr(cfg.Sweep.InitialDelay, 10*time.Second),
		Period:         parseDurationOr(cfg.Sweep.Period, 60*time.Second),
		Backoff:        parseDurationOr(cfg.Sweep.Backoff, 30*time.Second),
	}, db, tasks, ledger)

	server := api.NewServer(tasks, votes, ledger, store, api.StaticVerifier(cfg.Auth.Tokens))
	if cfg.API.Metrics {
		server.EnableMetrics()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go sweeper.Run(ctx)

	httpSrv := &http.Server{
		Addr:    cfg.API.Addr(),
		Handler: server.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[daemon] listening on %s", cfg.API.Addr())
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Printf("[daemon] shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
