package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/telemetrykit/cfgsync/pkg/hostcfg"
	"github.com/telemetrykit/cfgsync/pkg/types"
	"github.com/telemetrykit/cfgsync/relay/internal/api"
	"github.com/telemetrykit/cfgsync/relay/internal/auth"
	"github.com/telemetrykit/cfgsync/relay/internal/config"
	"github.com/telemetrykit/cfgsync/relay/internal/hub"
	"github.com/telemetrykit/cfgsync/relay/internal/store"
)

// documentOrigin is the namespace stamped on frames the relay itself
// broadcasts when the canonical document changes. Instances never carry this
// namespace, so no client is excluded from the fan-out.
const documentOrigin = "cfgsync-relay"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	slog.Info("cfgsync-relay starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"event_ttl", cfg.EventTTL,
		"auth_mode", cfg.Auth.Mode,
		"document", cfg.Document.Path,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Event store with background TTL eviction.
	st := store.New(cfg.EventTTL)
	go st.Run(ctx)

	// WebSocket hub — relays configuration frames between instances.
	h := hub.New(st)
	go h.Run(ctx)

	// Canonical document: broadcast it on change so connected instances pick
	// up new configuration without polling.
	if cfg.Document.Path != "" && cfg.Document.Watch {
		doc := hostcfg.New(nil)
		doc.OnChange(func(c types.ConfigSnapshot) {
			if len(c) == 0 {
				return
			}
			slog.Info("configuration document changed, broadcasting",
				"event", cfg.Document.EventName)
			h.Broadcast(types.Frame{
				Ns: documentOrigin,
				Event: types.OutboundEvent{
					Name:   cfg.Document.EventName,
					Detail: types.Detail{Cfg: c},
				},
			})
		})
		go func() {
			if err := hostcfg.Watch(ctx, cfg.Document.Path, doc); err != nil && ctx.Err() == nil {
				slog.Error("document watch stopped", "err", err)
			}
		}()
	}

	// Combined HTTP server: WebSocket hub + REST API + Prometheus metrics on
	// ListenAddr, with optional API key authentication.
	protect := func(next http.Handler) http.Handler {
		return auth.APIKeyMiddleware(cfg.Auth.Mode, cfg.Auth.Header, cfg.Auth.Key(), next)
	}

	mux := http.NewServeMux()
	mux.Handle("/ws", protect(h))
	mux.Handle("/api/", protect(api.New(st, h, cfg.Document.Path)))
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: mux,
	}
	go func() {
		slog.Info("HTTP server listening", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
		}
	}()

	<-ctx.Done()
	slog.Info("cfgsync-relay shutting down")
	srv.Shutdown(context.Background()) //nolint:errcheck
}
