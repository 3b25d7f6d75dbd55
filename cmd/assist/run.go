package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yashmulik1278/email-assistant-LLM/internal/metrics"
)

var runSchedule string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Monitor Gmail and analyze pending emails on a schedule",
	Long: `Run the ingestor loop and a scheduled analyzer in one process.
Serves Prometheus metrics on metrics.addr when configured. Stops on SIGINT/SIGTERM.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		in, err := newIngestor(ctx, ingestLimit)
		if err != nil {
			return err
		}
		a, cleanup, err := newAnalyzer(ctx, 0)
		if err != nil {
			return err
		}
		defer cleanup()

		schedule := runSchedule
		if schedule == "" {
			schedule = cfg.Analyzer.Schedule
		}
		c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLogger{logger.Sugar()})))
		if _, err := c.AddFunc(schedule, func() {
			if _, err := a.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error("analysis pass failed", zap.Error(err))
			}
		}); err != nil {
			return fmt.Errorf("analyzer schedule %q: %w", schedule, err)
		}
		c.Start()
		defer func() { <-c.Stop().Done() }()

		if cfg.Metrics.Addr != "" {
			srv := serveMetrics(cfg.Metrics.Addr)
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(shutdownCtx)
			}()
		}

		logger.Info("assistant running", zap.String("analyzer_schedule", schedule))
		err = in.Run(ctx, cfg.Gmail.PollInterval)
		stop()
		return err
	},
}

func serveMetrics(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("metrics listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", zap.Error(err))
		}
	}()
	return srv
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}

func init() {
	runCmd.Flags().StringVar(&runSchedule, "schedule", "", `Analyzer cron schedule (default from config, "@every 1m")`)
	runCmd.Flags().Int64Var(&ingestLimit, "limit", 0, "Maximum messages per poll (default from config, 10)")
	rootCmd.AddCommand(runCmd)
}
