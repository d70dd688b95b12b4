package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"llmed/internal/catalog"
	"llmed/internal/config"
	"llmed/internal/httpapi"
	"llmed/internal/llm"
	"llmed/internal/logging"
	"llmed/internal/manager"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Run the HTTP API",
		Example: "  llmed serve --addr :8080 --manifest ~/models/models.json",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.resolve(cmd)
			if err != nil {
				return err
			}
			log := logging.New(cfg.LogLevel, cfg.LogFormat)
			return serve(cmd.Context(), cfg, openBackend(cfg, log), log)
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.flags.Addr, "addr", "", "HTTP listen address (defaults LLMED_ADDR or :8080)")
	f.IntVar(&o.flags.InferTimeoutSeconds, "infer-timeout-seconds", 0, "Per-request inference timeout (0 disables)")
	f.Int64Var(&o.flags.MaxBodyBytes, "max-body-bytes", 0, "Maximum JSON request body size")
	f.BoolVar(&o.flags.CORSEnabled, "cors-enabled", false, "Enable CORS")
	f.StringVar(&o.corsOrigins, "cors-origins", "", "Comma-separated allowed origins")
	f.StringVar(&o.corsMethods, "cors-methods", "", "Comma-separated allowed methods")
	f.StringVar(&o.corsHeaders, "cors-headers", "", "Comma-separated allowed headers")
	f.BoolVar(&o.flags.InspectGGUF, "inspect-gguf", false, "Log GGUF metadata of catalog entries at startup")
	return cmd
}

// openBackend returns nil when the native libraries cannot be loaded; the
// server still starts and loads report the dependency as unavailable.
func openBackend(cfg config.Config, log zerolog.Logger) llm.Backend {
	b, err := llm.NewYzmaBackend(cfg.LibPath)
	if err != nil {
		log.Warn().Err(err).Msg("native backend unavailable; model loads will fail")
		return nil
	}
	log.Info().Str("backend", b.Name()).Msg("native backend ready")
	return b
}

func managerConfig(cfg config.Config, backend llm.Backend, log *zerolog.Logger, pub manager.EventPublisher) manager.ManagerConfig {
	return manager.ManagerConfig{
		Backend:       backend,
		ManifestPath:  cfg.Manifest,
		Logger:        log,
		Publisher:     pub,
		ContextSize:   cfg.CtxSize,
		Threads:       cfg.Threads,
		MaxTokens:     cfg.MaxTokens,
		GPULayers:     cfg.GPULayers,
		MMContextSize: cfg.MMCtxSize,
		MMBatchSize:   cfg.MMBatchSize,
		MMMaxTokens:   cfg.MMMaxTokens,
		MaxQueueDepth: cfg.MaxQueueDepth,
		MaxWait:       time.Duration(cfg.MaxWaitMS) * time.Millisecond,
	}
}

func configureHTTP(cfg config.Config, log zerolog.Logger, events httpapi.EventSource) {
	httpapi.SetLogger(log)
	httpapi.SetMaxBodyBytes(cfg.MaxBodyBytes)
	httpapi.SetInferTimeoutSeconds(int64(cfg.InferTimeoutSeconds))
	httpapi.SetCORSOptions(cfg.CORSEnabled, cfg.CORSOrigins, cfg.CORSMethods, cfg.CORSHeaders)
	httpapi.SetEventSource(events)
}

// inspectCatalog logs GGUF metadata for every catalog entry.
func inspectCatalog(mgr *manager.Manager, log zerolog.Logger) {
	for _, d := range mgr.Models() {
		info, err := catalog.Inspect(d.WeightsPath)
		if err != nil {
			log.Warn().Str("model", d.Name).Err(err).Msg("gguf inspect failed")
			continue
		}
		log.Info().Str("model", d.Name).Str("arch", info.Architecture).Str("params", info.Parameters).
			Str("quant", info.Quantization).Int("ctx", info.ContextLength).Msg("gguf")
	}
}

func serve(ctx context.Context, cfg config.Config, backend llm.Backend, log zerolog.Logger) error {
	hub := manager.NewEventHub(64)
	mgr := manager.New(managerConfig(cfg, backend, &log, hub))
	if cfg.InspectGGUF {
		inspectCatalog(mgr, log)
	}

	g, gctx := errgroup.WithContext(ctx)
	configureHTTP(cfg, log, hub)
	httpapi.SetBaseContext(gctx)
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.NewMux(mgr),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error { return mgr.Run(gctx) })
	g.Go(func() error {
		log.Info().Str("addr", cfg.Addr).Str("manifest", cfg.Manifest).Msg("llmed listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			log.Warn().Err(err).Msg("graceful shutdown error")
		}
		return nil
	})
	err := g.Wait()
	log.Info().Msg("llmed stopped")
	return err
}
