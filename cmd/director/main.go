// Command director runs the automatic camera-switching daemon: it
// samples a capture device, drives pkg/director's tick loop, emits
// control messages to a video mixer, and exposes pkg/api over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/gen2brain/malgo"
	"github.com/joho/godotenv"

	"github.com/autoswitch/director/pkg/api"
	"github.com/autoswitch/director/pkg/audio"
	"github.com/autoswitch/director/pkg/config"
	"github.com/autoswitch/director/pkg/director"
)

// tickInterval matches the 50ms audio block size pkg/audio captures on
// (spec.md §4.a): one tick per block keeps the director's clock in step
// with the producer side.
const tickInterval = 50 * time.Millisecond

// charmLogger adapts *charmlog.Logger to director.Logger. charmbracelet/log
// takes an untyped first argument so it can log non-string values; the
// director package only ever logs a literal message string.
type charmLogger struct {
	l *charmlog.Logger
}

func (c charmLogger) Debug(msg string, args ...interface{}) { c.l.Debug(msg, args...) }
func (c charmLogger) Info(msg string, args ...interface{})  { c.l.Info(msg, args...) }
func (c charmLogger) Warn(msg string, args ...interface{})  { c.l.Warn(msg, args...) }
func (c charmLogger) Error(msg string, args ...interface{}) { c.l.Error(msg, args...) }

func main() {
	configPath := flag.String("config", "config.json", "path to config.json")
	addr := flag.String("addr", ":8080", "HTTP listen address")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "note: no .env file found, using system environment variables")
	}

	logger := charmLogger{l: charmlog.NewWithOptions(os.Stderr, charmlog.Options{
		ReportTimestamp: true,
		Prefix:          "director",
	})}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "path", *configPath, "error", err)
		os.Exit(1)
	}
	opts := config.ToOptions(cfg)

	var deviceID *malgo.DeviceID
	intake, err := audio.Open(deviceID, cfg.AudioChannels, logger)
	if err != nil {
		logger.Error("failed to open audio device", "error", err)
		os.Exit(1)
	}
	defer intake.Close()

	sink := director.NewUDPSink(cfg.OSC.Host, cfg.OSC.Port, logger)
	defer sink.Close()

	now := time.Now()
	eng, err := director.New(intake, sink, opts, logger, now)
	if err != nil {
		logger.Error("failed to start director", "error", err)
		os.Exit(1)
	}

	var statusMu sync.Mutex
	var latest director.Status
	statusFn := func() director.Status {
		statusMu.Lock()
		defer statusMu.Unlock()
		return latest
	}

	currentCfg := cfg
	configPathCaptured := *configPath
	store := api.NewFileConfigStore(configPathCaptured, currentCfg, func(updated config.Config) {
		currentCfg = updated
		eng.Reload(config.ToOptions(updated), time.Now())
	})

	server := api.NewServer(eng, store, statusFn, logger)
	httpServer := &http.Server{Addr: *addr, Handler: server}

	go func() {
		logger.Info("http server listening", "addr", *addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server failed", "error", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go runTickLoop(ctx, eng, &statusMu, &latest, logger)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for s := range sig {
		if s == syscall.SIGHUP {
			logger.Info("received SIGHUP, reloading configuration")
			reloaded, err := config.Load(configPathCaptured)
			if err != nil {
				logger.Error("reload failed, keeping previous configuration", "error", err)
				continue
			}
			currentCfg = reloaded
			eng.Reload(config.ToOptions(reloaded), time.Now())
			continue
		}
		break
	}

	logger.Info("shutting down")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = httpServer.Shutdown(shutdownCtx)
}

// runTickLoop drives the director once per tickInterval, publishing the
// returned Status for the HTTP surface to read. now is captured once per
// iteration and threaded through the single Tick call, matching the
// single-timebase discipline pkg/director relies on.
func runTickLoop(ctx context.Context, eng *director.Director, mu *sync.Mutex, latest *director.Status, logger director.Logger) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			status := eng.Tick(now)
			mu.Lock()
			*latest = status
			mu.Unlock()
			if status.AudioFail {
				logger.Debug("tick: audio failure", "state", status.State)
			}
		}
	}
}
