// Command medleyd runs the media hub daemon: it opens the library, builds
// the hub with the file and radio modules, and serves the JSON-RPC control
// plane over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/medleyhub/medley/config"
	"github.com/medleyhub/medley/httprpc"
	"github.com/medleyhub/medley/hub"
	"github.com/medleyhub/medley/internal/logctx"
	"github.com/medleyhub/medley/jsonrpc"
	"github.com/medleyhub/medley/library"
	"github.com/medleyhub/medley/modules/file"
	"github.com/medleyhub/medley/modules/radio"
	"github.com/medleyhub/medley/player"
)

func main() {
	configPath := flag.String("config", "", "path to the TOML configuration file")
	addr := flag.String("addr", "", "listen address, overrides the configuration")
	logLevel := flag.String("log-level", "", "log level: debug, info, warn or error")
	flag.Parse()

	if err := run(*configPath, *addr, *logLevel); err != nil {
		fmt.Fprintf(os.Stderr, "medleyd: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, addr, logLevel string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.HTTP.Addr = addr
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	log, err := newLogger(cfg.Logging.Level)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := library.Open(cfg.Library.DBPath)
	if err != nil {
		return fmt.Errorf("open library: %w", err)
	}
	defer store.Close()
	if err := store.Init(ctx); err != nil {
		return fmt.Errorf("init library: %w", err)
	}

	reg := jsonrpc.NewRegistry()
	h := hub.New(reg, hub.WithLogger(log))
	defer h.Events().Close()

	scanner := library.NewScanner(store, cfg.Library.Roots,
		library.WithScanLogger(log),
		library.WithUpdateHook(func() {
			h.Events().Publish(hub.Event{Kind: hub.EventLibraryUpdated, Source: "file"})
		}),
	)

	// The silent backend keeps the daemon functional on headless hosts; a
	// real audio backend plugs in here.
	backend := player.NewNull()

	fileMod := file.New(store, scanner, backend, cfg.Library.Roots, file.WithLogger(log))
	if err := h.Register(fileMod); err != nil {
		return fmt.Errorf("register file module: %w", err)
	}

	if cfg.Radio.DirectoryURL != "" {
		dir := radio.NewDirectory(cfg.Radio.DirectoryURL)
		if err := h.Register(radio.New(dir, backend, radio.WithLogger(log))); err != nil {
			return fmt.Errorf("register radio module: %w", err)
		}
	}

	if err := scanner.Scan(ctx); err != nil {
		return fmt.Errorf("initial scan: %w", err)
	}
	if cfg.Library.Watch && len(cfg.Library.Roots) > 0 {
		go func() {
			if err := scanner.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("library watcher stopped", slog.String("err", err.Error()))
			}
		}()
	}

	dispatcher := jsonrpc.NewDispatcher(reg, jsonrpc.WithLogger(log))
	handler := httprpc.New(dispatcher, h.Events(), httprpc.WithLogger(log))

	srv := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: handler,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("listening", slog.String("addr", cfg.HTTP.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newLogger(level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("bad log level %q", level)
	}
	base := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	log := slog.New(logctx.Handler{Handler: base})
	slog.SetDefault(log)
	return log, nil
}
