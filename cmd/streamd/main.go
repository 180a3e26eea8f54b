// Command streamd runs the streaming read core as a standalone daemon:
// a control-plane HTTP API for opening magnets and driving stream
// lifecycle, plus a WebDAV-framed byte endpoint for media players that
// want a plain URL instead of the JSON control API.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shapedtime/streamcore/internal/api"
	"github.com/shapedtime/streamcore/internal/config"
	"github.com/shapedtime/streamcore/internal/engine"
	"github.com/shapedtime/streamcore/internal/streaming"
)

// defaultBlockLength is the standard BitTorrent request block size used
// by RarestFirstPicker when carving pieces into requests.
const defaultBlockLength = 16 * 1024

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	slog.SetDefault(slog.New(handler))

	if err := run(*configPath); err != nil {
		slog.Error("streamd exited", "error", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	pieceStorage, cache, pieceCompletion, err := engine.InitStorage(cfg.Torrent.MetadataFolder, cfg.Torrent.GlobalCacheSize)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	if cache != nil {
		defer cache.Close()
	}

	itemStore, err := engine.NewItemStore(
		cfg.MetadataPath("dht-items"),
		time.Duration(cfg.Torrent.DHTItemsTTLHours)*time.Hour,
	)
	if err != nil {
		return fmt.Errorf("init dht item store: %w", err)
	}
	defer itemStore.Close()

	peerID, err := engine.GetOrCreatePeerID(cfg.MetadataPath("peer-id"))
	if err != nil {
		return fmt.Errorf("load peer id: %w", err)
	}

	client, err := engine.NewClient(&cfg.Torrent, &engine.ClientConfig{
		Storage:         pieceStorage,
		ItemStore:       itemStore,
		PeerID:          peerID,
		PieceCompletion: pieceCompletion,
	})
	if err != nil {
		return fmt.Errorf("init torrent client: %w", err)
	}
	defer client.Close()

	adapter := engine.NewAdapter(client)
	defer adapter.Close()

	var metrics *streaming.Metrics
	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		metrics = streaming.NewMetrics(reg)

		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		metricsServer = &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler: mux,
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("metrics server failed", "error", err)
			}
		}()
	}

	reg := newRegistry(adapter, metrics, defaultBlockLength)

	apiServer := api.NewServer(reg)
	httpServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler: apiServer.Handler(),
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("api server failed", "error", err)
		}
	}()

	slog.Info("streamd ready",
		"api", fmt.Sprintf("http://localhost:%d", cfg.Server.HTTPPort),
		"metadata_folder", filepath.Clean(cfg.Torrent.MetadataFolder),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	slog.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("api server shutdown", "error", err)
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(ctx); err != nil {
			slog.Error("metrics server shutdown", "error", err)
		}
	}

	return nil
}
