package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ipcmatch/internal/engine"
	"ipcmatch/internal/httpapi"
)

var flagWatch bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&flagWatch, "watch", false, "rebuild the engine when the corpus file changes (overrides config)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, appOptions{conversationLog: true, summaries: true, metrics: true})
	if err != nil {
		return err
	}
	defer a.Close()

	if flagWatch || a.cfg.Corpus.Watch {
		r := engine.NewReloader(a.holder, a.cfg.Corpus.Path, a.build, a.logger,
			engine.WithDebounce(time.Duration(a.cfg.Corpus.DebounceMillis)*time.Millisecond),
			engine.WithReloadHook(func(ok bool) {
				a.metrics.ObserveReload(ok)
				if ok {
					a.metrics.SetSections(a.holder.Status().TotalSections)
				}
			}))
		if err := r.Start(); err != nil {
			return err
		}
		defer r.Stop()
	}

	if a.cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr:              a.cfg.Server.Addr(),
		Handler:           httpapi.NewRouter(a.svc, a.metrics, a.logger),
		ReadHeaderTimeout: time.Duration(a.cfg.Server.ReadTimeoutSecs) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(a.cfg.Server.ShutdownSecs)*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
