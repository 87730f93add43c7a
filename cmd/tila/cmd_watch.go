package main

import (
	"context"
	"errors"
	"net/http"
	"syscall"
	"time"

	"github.com/oklog/run"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/yairfalse/tila/telemetry"
)

var (
	watchInterval    time.Duration
	watchMetricsAddr string
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Reconcile continuously",
	Long: `Run reconciliation on an interval until interrupted. Each cycle
prunes stale records and reports drift; cycle counts, prune counts,
and drift findings are exposed on a Prometheus metrics endpoint.`,
	Example: `  tila watch
  tila watch --interval 1m --metrics :9090`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)

	watchCmd.Flags().DurationVar(&watchInterval, "interval", 5*time.Minute, "Reconcile interval")
	watchCmd.Flags().StringVar(&watchMetricsAddr, "metrics", ":9090", "Metrics server address")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	registry, err := telemetry.InitMetrics()
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: watchMetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	loopCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var group run.Group
	group.Add(func() error {
		return watchLoop(loopCtx, rt)
	}, func(error) {
		cancel()
	})
	group.Add(func() error {
		log.Info().Str("addr", watchMetricsAddr).Msg("starting metrics server")
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}, func(error) {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = server.Shutdown(shutdownCtx)
	})
	group.Add(run.SignalHandler(loopCtx, syscall.SIGINT, syscall.SIGTERM))

	log.Info().
		Dur("interval", watchInterval).
		Str("metrics", watchMetricsAddr).
		Msg("tila watching")

	err = group.Run()
	var sig run.SignalError
	if errors.As(err, &sig) || errors.Is(err, context.Canceled) {
		log.Info().Msg("shutting down")
		return nil
	}
	return err
}

func watchLoop(ctx context.Context, rt *runtime) error {
	ticker := time.NewTicker(watchInterval)
	defer ticker.Stop()

	reconcileCycle(ctx, rt)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			reconcileCycle(ctx, rt)
		}
	}
}

func reconcileCycle(ctx context.Context, rt *runtime) {
	start := time.Now()

	pruned, err := rt.reconciler.Sync(ctx)
	if err != nil {
		log.Error().Err(err).Msg("sync failed")
		return
	}
	findings, err := rt.reconciler.CheckDrift(ctx)
	if err != nil {
		log.Error().Err(err).Msg("drift check failed")
		return
	}

	telemetry.ReconcileCycles.Add(ctx, 1)
	telemetry.ReconcileDuration.Record(ctx, time.Since(start).Seconds())
	telemetry.RecordsPruned.Add(ctx, int64(len(pruned)))
	telemetry.DriftFindings.Add(ctx, int64(len(findings)))
	telemetry.TrackedInstances.Record(ctx, int64(rt.store.Len()))

	log.Info().
		Int("pruned", len(pruned)).
		Int("drift", len(findings)).
		Int("tracked", rt.store.Len()).
		Dur("took", time.Since(start)).
		Msg("reconcile cycle complete")
}
