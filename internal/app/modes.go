package app

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/giantswarm/multibranch/pkg/logging"
)

// runServe starts the reconcile manager and blocks until ctx is canceled or
// SIGINT or SIGTERM arrives. Passes in flight are allowed to finish before
// it returns.
func runServe(ctx context.Context, services *Services) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := services.Reconciler.Start(ctx); err != nil {
		logging.Error("Serve", err, "Failed to start reconciler")
		return err
	}
	logging.Info("Serve", "Synchronizing %d projects. Press Ctrl+C to stop.", len(services.Parents()))

	<-ctx.Done()

	logging.Info("Serve", "Shutting down")
	return services.Close()
}
