package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	logAdapter "github.com/bft-labs/frameship/internal/adapters/log"
	"github.com/bft-labs/frameship/internal/collector"
	"github.com/bft-labs/frameship/pkg/log"
)

var exampleUsage = strings.TrimSpace(`
  collector --addr :8000
  collector --addr 0.0.0.0:8000 --log-level debug --log-json
`)

const shutdownTimeout = 5 * time.Second

func main() {
	var (
		addr     string
		level    string
		jsonLogs bool
		repeat   time.Duration
	)

	root := &cobra.Command{
		Use:           "collector",
		Short:         "Receive frames from frameship devices and serve them as MJPEG streams",
		Example:       exampleUsage,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, closer := logAdapter.New(logAdapter.Options{Level: level, JSON: jsonLogs})
			defer closer.Close()

			srv := collector.NewServer(collector.NewStore(), logger)
			if repeat > 0 {
				srv.SetRepeatInterval(repeat)
			}
			httpSrv := &http.Server{
				Addr:              addr,
				Handler:           srv.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() { errCh <- httpSrv.ListenAndServe() }()
			logger.Info("collector listening", log.String("addr", addr))

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
				logger.Info("received signal, stopping...")
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := httpSrv.Shutdown(shutdownCtx); err != nil {
				// Stream viewers hold their connections open.
				_ = httpSrv.Close()
			}
			if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}

	root.Flags().StringVar(&addr, "addr", ":8000", "listen address")
	root.Flags().StringVar(&level, "log-level", "info", "log level: debug, info, warn, error")
	root.Flags().BoolVar(&jsonLogs, "log-json", false, "emit JSON log lines")
	root.Flags().DurationVar(&repeat, "repeat-interval", collector.DefaultRepeatInterval, "resend the current frame to stream viewers this often")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "collector:", err)
		os.Exit(1)
	}
}
