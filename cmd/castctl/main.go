// Command castctl is an interactive inspector for cast devices on the
// local network.
//
// It browses mDNS for cast announcements, keeps the merged per-device
// view up to date, and lets you inspect descriptors and replay recorded
// event logs from a readline shell.
//
// Usage:
//
//	castctl [flags]
//
// Flags:
//
//	-config string     Bridge configuration file (YAML)
//	-iface string      Network interface to browse on (default all)
//	-log-level string  Log level: debug, info, warn, error (default "info")
//
// Examples:
//
//	# Browse all interfaces and open the shell
//	castctl
//
//	# Use a bridge config so the shell can mark matched devices
//	castctl -config /etc/castbridge/config.yaml -log-level debug
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/castbridge/castbridge-go/cmd/castctl/interactive"
	"github.com/castbridge/castbridge-go/pkg/config"
	"github.com/castbridge/castbridge-go/pkg/discovery"
)

func main() {
	var (
		configFile string
		iface      string
		logLevel   string
	)
	flag.StringVar(&configFile, "config", "", "Bridge configuration file (YAML)")
	flag.StringVar(&iface, "iface", "", "Network interface to browse on (default all)")
	flag.StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flag.Parse()

	if err := run(configFile, iface, logLevel); err != nil {
		fmt.Fprintln(os.Stderr, "castctl:", err)
		os.Exit(1)
	}
}

func run(configFile, iface, logLevel string) error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		return fmt.Errorf("invalid log level %q", logLevel)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	var cfg *config.Config
	if configFile != "" {
		var err error
		cfg, err = config.Load(configFile)
		if err != nil {
			return err
		}
	}

	mdns := discovery.NewMDNSBrowser(discovery.BrowserConfig{Interface: iface})

	shell, err := interactive.New(cfg, logger)
	if err != nil {
		return err
	}

	listener := discovery.NewListener(mdns, mdns, shell.HandleDiscovery)
	listener.SetLogger(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		cancel()
	}()

	if err := listener.Start(ctx); err != nil {
		return fmt.Errorf("start discovery: %w", err)
	}
	defer listener.Stop()

	shell.Run(ctx, cancel)
	return nil
}
