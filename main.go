// cmd entrypoint - sidbridge, a network-accessible SID emulation device.
//
// sidbridge speaks the same binary framed protocol the original
// hardware-attached SID devices do: clients queue register writes over
// TCP, an emulation worker paces them against the real chip's clock and
// renders PCM, and a LAN discovery responder lets clients find a device
// without knowing its address up front.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"

	"sidbridge/internal/pacing"
)

// restartBackoff is how often the supervisor re-checks a standing fatal
// error before bringing the listener back up. There is no exponential
// backoff: a device that cannot bind its port is expected to need
// operator intervention, not patience.
const restartBackoff = 500 * time.Millisecond

func main() {
	var (
		host       = pflag.String("host", "", "bind address (overrides config)")
		port       = pflag.Int("port", 0, "bind port (overrides config)")
		configPath = pflag.String("config", "", "path to a YAML config file")
		logLevel   = pflag.String("log-level", "", "log level: debug, info, warn, error (overrides config)")
	)
	pflag.Parse()

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sidbridge: loading config: %v\n", err)
		os.Exit(1)
	}
	if *host != "" {
		cfg.Host = *host
	}
	if *port != 0 {
		cfg.Port = *port
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("starting sidbridge", "host", cfg.Host, "port", cfg.Port, "sid_count", cfg.SidCount)

	bus := NewSettingsBus()
	state := NewDeviceState()

	player, err := NewPlayer(cfg, bus, logger, func(sampleRate int, ring *pacing.PCMRing) (AudioSink, error) {
		return NewOtoPlayer(sampleRate, ring)
	})
	if err != nil {
		logger.Fatal("opening audio sink", "err", err)
	}
	player.Sink().Start()

	workerCtx, cancelWorker := context.WithCancel(context.Background())
	defer cancelWorker()
	worker := NewWorker(player, state, logger)
	go worker.Run(workerCtx)
	go worker.RunPauseMonitor(workerCtx)

	go func() {
		responder := NewDiscoveryResponder(cfg, state, logger)
		if err := responder.Run(); err != nil {
			logger.Warn("discovery responder stopped", "err", err)
		}
	}()

	runSupervisor(cfg, player, state, bus, logger)
}

// runSupervisor mirrors the original device's restart loop: after a
// fatal server error it records the error, waits (polling every
// restartBackoff) until the error is cleared, e.g. by DeviceState.Reset,
// and then brings the TCP listener back up, until something sets
// DeviceState.Quit.
func runSupervisor(cfg *Config, player *Player, state *DeviceState, bus *SettingsBus, logger *log.Logger) {
	for state.Restart() && !state.Quit() {
		state.SetRestart(false)

		server := NewServer(cfg, player, state, bus, logger)
		state.Init()

		err := server.Run()
		if err == nil {
			return
		}

		logger.Error("server stopped", "err", err)
		state.SetError(err.Error())
		for state.Errored() && !state.Quit() {
			time.Sleep(restartBackoff)
		}
		state.SetRestart(true)
	}
}
