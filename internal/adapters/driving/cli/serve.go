package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	httpadapter "github.com/custodia-labs/sercha-rag/internal/adapters/driving/http"
	"github.com/custodia-labs/sercha-rag/internal/config"
	"github.com/custodia-labs/sercha-rag/internal/runtime"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the background worker",
	Long: `Runs the HTTP API, the task worker, or both.

  api     serve HTTP only; queued tasks wait for a worker
  worker  process queued and scheduled tasks only
  all     both in one process (default)

An index rebuild interrupted by a crash is finished before serving.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

var serveMode string

func init() {
	serveCmd.Flags().StringVar(&serveMode, "mode", "", "api, worker or all (overrides server.mode)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveMode != "" {
		cfg.Server.Mode = serveMode
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	logger, err := config.SetupLogger(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	logger.Info("sercha-rag starting", "version", version, "mode", cfg.Server.Mode)

	ctx := cmd.Context()
	svc, err := runtime.Build(ctx, cfg, runtime.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}
	defer svc.Close()

	if err := svc.RecoverIndex(ctx); err != nil {
		return err
	}
	if svc.IndexErr != nil {
		logger.Warn("index unavailable until rebuilt", "error", svc.IndexErr)
	}

	g, gctx := errgroup.WithContext(ctx)

	// Other instances may write to a shared database
	if cfg.Store.Backend != config.BackendMemory && cfg.Store.RefreshInterval.Duration > 0 {
		g.Go(func() error { return svc.Index.Watch(gctx, cfg.Store.RefreshInterval.Duration) })
	}

	if cfg.Server.Mode != config.ModeWorker {
		server := httpadapter.NewServer(serverConfig(cfg, svc.Logger), httpServices(svc))
		g.Go(func() error { return server.Run(gctx) })
	}

	if cfg.Server.Mode != config.ModeAPI {
		w := svc.NewWorker()
		if err := w.Start(gctx); err != nil {
			return fmt.Errorf("failed to start worker: %w", err)
		}
		g.Go(func() error {
			<-gctx.Done()
			w.Stop()
			return nil
		})
	}

	err = g.Wait()
	logger.Info("sercha-rag stopped")
	return err
}

func serverConfig(cfg *config.Config, logger *slog.Logger) httpadapter.Config {
	out := httpadapter.DefaultConfig()
	out.Host = cfg.Server.Host
	out.Port = cfg.Server.Port
	out.Version = version
	out.CORSOrigins = cfg.Server.CORSOrigins
	// Inline content may arrive base64 encoded inside a JSON envelope
	out.MaxBodyBytes = cfg.Ingestion.MaxDocumentBytes*4/3 + 64<<10
	out.Logger = logger
	return out
}

func httpServices(svc *runtime.Services) httpadapter.Services {
	checks := make(map[string]httpadapter.Pinger)
	for _, c := range svc.Checks() {
		checks[c.Name] = httpadapter.PingFunc(c.Ping)
	}
	return httpadapter.Services{
		Ingestion:   svc.Ingestion,
		Retrieval:   svc.Retriever,
		Query:       svc.Query,
		Maintenance: svc.Maintenance,
		Tasks:       svc.Queue,
		Checks:      checks,
	}
}
