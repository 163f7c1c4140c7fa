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

	"go.uber.org/zap"

	"github.com/luminaview/lumina/internal/auth"
	"github.com/luminaview/lumina/internal/config"
	"github.com/luminaview/lumina/internal/events"
	"github.com/luminaview/lumina/internal/findme"
	"github.com/luminaview/lumina/internal/gallery"
	"github.com/luminaview/lumina/internal/httpserver"
	"github.com/luminaview/lumina/internal/logging"
	"github.com/luminaview/lumina/internal/plugins"
	"github.com/luminaview/lumina/internal/reloader"
	"github.com/luminaview/lumina/internal/scanner"
	"github.com/luminaview/lumina/pkg/sdk"
)

func main() {
	cfgPath := os.Getenv("LUMINA_CONFIG")
	if cfgPath == "" {
		cfgPath = "/etc/lumina/config.yaml"
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		cfg = config.Default()
	}

	logger := logging.New(logging.Cfg{
		Level: cfg.Logging.Level,
		JSON:  cfg.Logging.JSON,
	})
	defer logger.Sync()

	// Banner
	fmt.Println(`
  _                    _
 | |   _   _ _ __ ___ (_)_ __   __ _
 | |  | | | | '_ ` + "`" + ` _ \| | '_ \ / _` + "`" + ` |
 | |__| |_| | | | | | | | | | | (_| |
 |_____\__,_|_| |_| |_|_|_| |_|\__,_|

Lumina — image viewer plugin backend
------------------------------------
Config:  ` + cfgPath + `
`)

	bus := events.NewBus(logger)
	scan := scanner.New(logger)
	reg := plugins.New(bus, logger, cfg.Features)

	registerBuiltins(reg, logger)

	srv := httpserver.New(cfg, logger, bus, reg, scan)

	if cfg.Auth.Secret != "" {
		v := auth.NewValidator(cfg.Auth.Secret, cfg.Auth.Issuer, cfg.Auth.Audience)
		tok, err := v.Issue("webview", 24*time.Hour)
		if err != nil {
			logger.Fatal("issue session token", zap.Error(err))
		}
		fmt.Println("Session token: " + tok)
	}

	// Hot reload on SIGHUP
	reloader.OnSIGHUP(logger, func() {
		newCfg, err := config.Load(cfgPath)
		if err != nil {
			logger.Warn("config reload failed", zap.Error(err))
			return
		}
		srv.Reload(newCfg)
		scan.ClearCache()
		cfg = newCfg
		logger.Info("reloaded config and cleared resource caches")
	})

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Bind, cfg.HTTP.Port)
	httpSrv := &http.Server{
		Addr:    addr,
		Handler: srv.Router(),
	}

	// HTTP server
	go func() {
		logger.Info("listening", zap.String("addr", addr))
		if cfg.HTTP.TLS.Enabled {
			if err := httpSrv.ListenAndServeTLS(cfg.HTTP.TLS.Cert, cfg.HTTP.TLS.Key); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Fatal("http tls", zap.Error(err))
			}
		} else {
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Fatal("http", zap.Error(err))
			}
		}
	}()

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down...")
	ctxTimeout, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpSrv.Shutdown(ctxTimeout)
	reg.Shutdown()
	logger.Info("bye")
}

// registerBuiltins registers and activates the bundled plugins. Feature
// flags in the config decide which ones the registry lets through.
func registerBuiltins(reg *plugins.Registry, logger *zap.Logger) {
	builtins := []struct {
		plugin sdk.Plugin
		flag   string
	}{
		{gallery.New(), "gallery"},
		{findme.New(), "findme"},
	}
	for _, b := range builtins {
		if err := reg.Register(b.plugin, b.flag); err != nil {
			logger.Warn("plugin not registered",
				zap.String("plugin", b.plugin.ID()), zap.Error(err))
			continue
		}
		if err := reg.Activate(b.plugin.ID()); err != nil {
			logger.Warn("plugin failed to activate",
				zap.String("plugin", b.plugin.ID()), zap.Error(err))
		}
	}
}
