// Command scribed is the meetscribe daemon: it loads configuration,
// resolves model backends, wires the speaker profile store, and serves the
// WebSocket event stream and gRPC control plane described in §4.L and §6.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/voiceloom/meetscribe/internal/config"
	"github.com/voiceloom/meetscribe/internal/models"
	"github.com/voiceloom/meetscribe/internal/obs"
	"github.com/voiceloom/meetscribe/internal/profile"
	"github.com/voiceloom/meetscribe/internal/profile/lshindex"
	"github.com/voiceloom/meetscribe/internal/profile/postgres"
	"github.com/voiceloom/meetscribe/internal/telemetry"

	"go.opentelemetry.io/otel"
)

var mainLog = obs.New("scribed.main")

func main() {
	boot := config.LoadBootstrap()

	if err := os.MkdirAll(boot.DataDir, 0o755); err != nil {
		mainLog.Fatalf("create data dir %s: %v", boot.DataDir, err)
	}
	if err := os.MkdirAll(boot.ModelsDir, 0o755); err != nil {
		mainLog.Fatalf("create models dir %s: %v", boot.ModelsDir, err)
	}

	cfg, err := config.Load(boot.ConfigPath)
	if err != nil {
		mainLog.Fatalf("load config %s: %v", boot.ConfigPath, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.InitProvider(ctx, telemetry.ProviderConfig{ServiceName: "meetscribe"})
	if err != nil {
		mainLog.Fatalf("init telemetry: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			mainLog.Warnf("telemetry shutdown: %v", err)
		}
	}()

	metrics, err := telemetry.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		mainLog.Fatalf("init metrics: %v", err)
	}

	modelMgr, err := models.NewManager(boot.ModelsDir, models.DefaultRegistry())
	if err != nil {
		mainLog.Fatalf("init model manager: %v", err)
	}

	backends, warnings := resolveBackends(ctx, modelMgr, cfg)
	for _, w := range warnings {
		mainLog.Warnf("backend resolution: %s", w)
	}
	if backends.Embed == nil {
		mainLog.Fatalf("no embedder backend available, cannot start (speaker identification requires one)")
	}

	var reconciler *profile.Reconciler
	store, err := postgres.NewStore(ctx, boot.ProfileDSN, cfg.Speakers.EmbeddingDimension)
	if err != nil {
		mainLog.Warnf("profile store unavailable, sessions will not persist speakers across meetings: %v", err)
	} else {
		index := lshindex.New(cfg.Speakers.EmbeddingDimension, 16)
		if existing, err := store.LoadAllEmbeddings(ctx); err != nil {
			mainLog.Warnf("load stored speaker embeddings, index starts empty: %v", err)
		} else if err := index.Rebuild(existing); err != nil {
			mainLog.Warnf("rebuild speaker index: %v", err)
		}
		reconciler = profile.NewReconciler(store, index, config.ToSessionConfig(cfg).Reconcile)
	}

	d := newDaemon(cfg, backends, modelMgr, reconciler, metrics)

	grpcServer, err := startGRPCServer(boot.GRPCAddr, d)
	if err != nil {
		mainLog.Fatalf("start gRPC control plane on %s: %v", boot.GRPCAddr, err)
	}
	defer grpcServer.GracefulStop()

	httpServer := &http.Server{Addr: boot.ListenAddr, Handler: d.httpHandler()}
	go func() {
		mainLog.Infof("event stream listening on %s", boot.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			mainLog.Errorf("http server stopped: %v", err)
		}
	}()

	<-ctx.Done()
	mainLog.Infof("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		mainLog.Warnf("http server shutdown: %v", err)
	}
}
