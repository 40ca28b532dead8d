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

	c "lautenbacher.net/godac/config"
	"lautenbacher.net/godac/logging"
	pl "lautenbacher.net/godac/platform"
	u "lautenbacher.net/godac/util"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	conf         *c.Config
	platform     pl.Platform
	ossignalChan chan os.Signal
	listen       string
	server       *http.Server
}

func NewApp(conf *c.Config, platform pl.Platform, ossignal chan os.Signal, listen string) *App {
	return &App{
		conf:         conf,
		platform:     platform,
		ossignalChan: ossignal,
		listen:       listen,
	}
}

func main() {
	cfile := flag.String("config", c.CONFILE, "Path to the config file")
	realp := flag.Bool("real", false, "Set to true if program runs on the real hardware")
	listen := flag.String("listen", "", "Address of the HTTP API, e.g. :8080 (empty disables it)")
	flag.Parse()

	conf, err := c.ReadConfig(*cfile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}
	conf.RealHW = *realp

	if err := logging.Init(conf.Logging.Level, conf.Logging.Format, conf.Logging.File); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialise logging: %v\n", err)
		os.Exit(2)
	}

	var platform pl.Platform
	if conf.RealHW {
		platform = pl.NewRaspberryPiPlatform(conf)
	} else {
		platform = pl.NewSimulationPlatform(conf)
	}

	ossignal := make(chan os.Signal, 1)
	signal.Notify(ossignal, os.Interrupt, syscall.SIGTERM)

	app := NewApp(conf, platform, ossignal, *listen)
	err = app.Run()
	if err != nil {
		slog.Error("Exiting with error", "error", err)
	}
	logging.Close()
	if err != nil {
		os.Exit(1)
	}
}

// Run starts the platform, applies the configuration and then serves
// config reloads until a signal arrives.
func (a *App) Run() error {
	if err := a.platform.Start(); err != nil {
		return fmt.Errorf("failed to start platform: %w", err)
	}
	defer a.platform.Stop()

	if err := a.platform.Apply(a.conf); err != nil {
		return fmt.Errorf("failed to apply config: %w", err)
	}

	watcher, err := u.WatchConfig(a.conf.Configfile)
	if err != nil {
		return err
	}
	defer watcher.Close()

	if a.listen != "" {
		a.startServer()
	}

	slog.Info("godac running", "config", a.conf.Configfile, "realhw", a.conf.RealHW, "devices", len(a.conf.Devices))
	for {
		select {
		case sig := <-a.ossignalChan:
			slog.Info("Received signal, shutting down", "signal", sig)
			return a.stopServer()
		case <-watcher.Changes():
			slog.Info("Config file changed, reloading...", "op", watcher.Latest().Op)
			a.reload()
		}
	}
}

// reload re-reads the config file and applies it. An invalid file is
// logged and the running settings are kept.
func (a *App) reload() {
	newConf, err := c.ReadConfig(a.conf.Configfile)
	if err != nil {
		slog.Error("Config reload failed, keeping current settings", "error", err)
		return
	}
	newConf.RealHW = a.conf.RealHW
	if hardwareChanged(a.conf, newConf) {
		slog.Warn("Hardware or device settings changed, restart to apply them")
	}
	if err := a.platform.Apply(newConf); err != nil {
		slog.Error("Failed to apply reloaded config", "error", err)
	}
	a.conf = newConf
}

func (a *App) startServer() {
	mux := http.NewServeMux()
	mux.Handle("/api/config", c.ConfigHandler(a.conf.Configfile))
	mux.Handle("/api/outputs", pl.OutputsHandler(a.platform))
	a.server = &http.Server{Addr: a.listen, Handler: mux}

	go func() {
		slog.Info("Starting HTTP API", "address", a.listen)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP API failed", "error", err)
		}
	}()
}

func (a *App) stopServer() error {
	if a.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return a.server.Shutdown(ctx)
}

// hardwareChanged reports differences that only take effect after a
// restart: the bus settings and the device set with its chip selects,
// variants and references.
func hardwareChanged(old, cur *c.Config) bool {
	if old.Hardware != cur.Hardware || len(old.Devices) != len(cur.Devices) {
		return true
	}
	for _, nd := range cur.Devices {
		od, ok := old.Device(nd.Name)
		if !ok || od.Variant != nd.Variant || od.Chip != nd.Chip || od.VRef != nd.VRef {
			return true
		}
	}
	return false
}
