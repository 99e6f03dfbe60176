// Command pdfqa serves question answering over an uploaded PDF.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"go-pdf-qa/config"
	"go-pdf-qa/extract"
	"go-pdf-qa/logger"
	"go-pdf-qa/middleware"
	"go-pdf-qa/progress"
	"go-pdf-qa/provider"
	"go-pdf-qa/qa"
	"go-pdf-qa/rag"
)

const shutdownTimeout = 10 * time.Second

type serveCommander struct {
	configPath string
	logger     *zap.Logger
}

func newRootCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "pdfqa",
		Short: "Answer questions about an uploaded PDF",
		Long: `Run the PDF question answering API.

Upload a PDF to /upload, follow progress on /progress and ask questions
on /ask. Settings come from config.toml, PDFQA_* environment variables
and the flags below.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			v, err := config.InitViper(cmder.configPath)
			if err != nil {
				return err
			}
			if err := v.BindPFlag("server.listen", cmd.Flags().Lookup("listen")); err != nil {
				return fmt.Errorf("binding listen flag: %w", err)
			}
			if err := v.BindPFlag("log.debug", cmd.Flags().Lookup("debug")); err != nil {
				return fmt.Errorf("binding debug flag: %w", err)
			}
			cfg, err := config.FromViper(v)
			if err != nil {
				return err
			}
			return cmder.run(cfg)
		},
	}

	cmd.Flags().StringVar(&cmder.configPath, "config", "", "Path to config file (default: ./config.toml)")
	cmd.Flags().StringP("listen", "l", config.NewDefaultConfig().Server.Listen, "Address to listen on")
	cmd.Flags().Bool("debug", false, "Enable debug logging")

	return cmd
}

func (c *serveCommander) run(cfg *config.Config) error {
	c.logger = logger.NewLogger(cfg.Log.Debug)
	defer c.logger.Sync()

	embedder, err := provider.NewEmbedder(cfg.Embedding)
	if err != nil {
		return fmt.Errorf("creating embedder: %w", err)
	}
	generator, err := provider.NewGenerator(cfg.Generation)
	if err != nil {
		return fmt.Errorf("creating generator: %w", err)
	}

	svc := qa.NewService(rag.NewStore(), extract.NewPDF(), embedder, generator, qa.Config{
		ChunkSize:        cfg.Chunk.MaxLength,
		TopK:             cfg.Retrieval.TopK,
		EmbedTimeout:     cfg.Embedding.Timeout,
		GenerateTimeout:  cfg.Generation.Timeout,
		EmbedConcurrency: cfg.Embedding.Concurrency,
	}, c.logger)
	broker := progress.NewBroker(c.logger)
	srv := NewServer(svc, broker, cfg.Upload.MaxBytes, c.logger)

	handler := middleware.Chain(srv.Routes(),
		middleware.Recover(c.logger),
		middleware.Logger(c.logger),
		middleware.CORS(cfg.Server.CORSOrigin),
		middleware.OTel("pdfqa"),
	)

	httpServer := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	c.logger.Info("starting server",
		zap.String("addr", cfg.Server.Listen),
		zap.String("embedding_provider", cfg.Embedding.Provider),
		zap.String("generation_provider", cfg.Generation.Provider),
	)

	errChan := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(ctx)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
