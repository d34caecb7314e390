// Package interactive provides the readline shell for castctl.
package interactive

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/chzyer/readline"
	"github.com/google/uuid"

	"github.com/castbridge/castbridge-go/pkg/config"
	"github.com/castbridge/castbridge-go/pkg/discovery"
	castlog "github.com/castbridge/castbridge-go/pkg/log"
)

// seenDevice is the shell's view of one discovered device.
type seenDevice struct {
	service  discovery.CastService
	lastSeen time.Time
}

// Shell handles interactive mode for castctl.
type Shell struct {
	cfg    *config.Config
	logger *slog.Logger
	rl     *readline.Instance

	mu       sync.Mutex
	seen     map[uuid.UUID]seenDevice
	watching bool
}

// New creates a new interactive shell.
func New(cfg *config.Config, logger *slog.Logger) (*Shell, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "castctl> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}

	return &Shell{
		cfg:    cfg,
		logger: logger,
		rl:     rl,
		seen:   make(map[uuid.UUID]seenDevice),
	}, nil
}

// Stdout returns a writer that coordinates with the readline prompt.
func (s *Shell) Stdout() io.Writer {
	return s.rl.Stdout()
}

// HandleDiscovery records a discovery event and, in watch mode, prints
// it. Wired as the discovery listener's callback.
func (s *Shell) HandleDiscovery(serviceName string, svc discovery.CastService) {
	s.mu.Lock()
	_, known := s.seen[svc.UUID]
	s.seen[svc.UUID] = seenDevice{service: svc, lastSeen: time.Now()}
	watching := s.watching
	s.mu.Unlock()

	if !known {
		s.logger.Debug("new device discovered", "uuid", svc.UUID, "name", svc.FriendlyName)
	}
	if watching {
		fmt.Fprintf(s.rl.Stdout(), "discovered %s via %s\n", svc, serviceName)
	}
}

// Run starts the interactive command loop. It returns when the context
// is cancelled or the user exits, cancelling the context on exit.
func (s *Shell) Run(ctx context.Context, cancel context.CancelFunc) {
	defer s.rl.Close()

	s.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := s.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(s.rl.Stdout(), "Exiting...")
			cancel()
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		parts := strings.Fields(input)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			s.printHelp()

		case "devices", "d":
			s.cmdDevices()

		case "info", "i":
			s.cmdInfo(args)

		case "watch", "w":
			s.cmdWatch()

		case "events", "e":
			s.cmdEvents(args)

		case "quit", "q", "exit":
			cancel()
			return

		default:
			fmt.Fprintf(s.rl.Stdout(), "unknown command %q, try 'help'\n", cmd)
		}
	}
}

func (s *Shell) printHelp() {
	out := s.rl.Stdout()
	fmt.Fprintln(out, "Commands:")
	fmt.Fprintln(out, "  devices, d          List discovered devices")
	fmt.Fprintln(out, "  info, i <uuid>      Show one device in detail")
	fmt.Fprintln(out, "  watch, w            Toggle live discovery output")
	fmt.Fprintln(out, "  events, e <path> [category]")
	fmt.Fprintln(out, "                      Replay a recorded event log")
	fmt.Fprintln(out, "  help, ?             Show this help")
	fmt.Fprintln(out, "  quit, q             Exit")
}

// snapshot returns the discovered devices ordered by friendly name.
func (s *Shell) snapshot() []seenDevice {
	s.mu.Lock()
	devices := make([]seenDevice, 0, len(s.seen))
	for _, d := range s.seen {
		devices = append(devices, d)
	}
	s.mu.Unlock()

	sort.Slice(devices, func(i, j int) bool {
		a, b := devices[i].service, devices[j].service
		if a.FriendlyName != b.FriendlyName {
			return a.FriendlyName < b.FriendlyName
		}
		return a.UUID.String() < b.UUID.String()
	})
	return devices
}

func (s *Shell) cmdDevices() {
	out := s.rl.Stdout()
	devices := s.snapshot()
	if len(devices) == 0 {
		fmt.Fprintln(out, "no devices discovered yet")
		return
	}

	for _, d := range devices {
		svc := d.service
		marker := " "
		if s.matched(svc) {
			marker = "*"
		}
		kind := "device"
		if svc.IsAudioGroup() {
			kind = "group"
		}
		fmt.Fprintf(out, "%s %-36s %-7s %-24s %s:%d\n",
			marker, svc.UUID, kind, svc.FriendlyName, svc.Host, svc.Port)
	}
	if s.cfg != nil && len(s.cfg.Devices) > 0 {
		fmt.Fprintln(out, "* matches a configured device rule")
	}
}

func (s *Shell) cmdInfo(args []string) {
	out := s.rl.Stdout()
	if len(args) != 1 {
		fmt.Fprintln(out, "usage: info <uuid>")
		return
	}
	id, err := uuid.Parse(args[0])
	if err != nil {
		fmt.Fprintf(out, "invalid uuid %q\n", args[0])
		return
	}

	s.mu.Lock()
	d, ok := s.seen[id]
	s.mu.Unlock()
	if !ok {
		fmt.Fprintf(out, "device %s not discovered\n", id)
		return
	}

	svc := d.service
	fmt.Fprintf(out, "UUID:          %s\n", svc.UUID)
	fmt.Fprintf(out, "Friendly name: %s\n", svc.FriendlyName)
	fmt.Fprintf(out, "Model:         %s\n", svc.ModelName)
	fmt.Fprintf(out, "Audio group:   %v\n", svc.IsAudioGroup())
	fmt.Fprintf(out, "Address:       %s:%d\n", svc.Host, svc.Port)
	fmt.Fprintf(out, "Last seen:     %s\n", d.lastSeen.Format(time.RFC3339))
	fmt.Fprintf(out, "Services:      %s\n", strings.Join(svc.ServiceNames(), ", "))
	fmt.Fprintf(out, "Matched rule:  %v\n", s.matched(svc))
}

func (s *Shell) cmdWatch() {
	s.mu.Lock()
	s.watching = !s.watching
	watching := s.watching
	s.mu.Unlock()

	if watching {
		fmt.Fprintln(s.rl.Stdout(), "watching discovery events, 'watch' again to stop")
	} else {
		fmt.Fprintln(s.rl.Stdout(), "watch stopped")
	}
}

func (s *Shell) cmdEvents(args []string) {
	out := s.rl.Stdout()
	if len(args) < 1 || len(args) > 2 {
		fmt.Fprintln(out, "usage: events <path> [discovery|connection|media|control]")
		return
	}

	var filter castlog.Filter
	if len(args) == 2 {
		category, ok := parseCategory(args[1])
		if !ok {
			fmt.Fprintf(out, "unknown category %q\n", args[1])
			return
		}
		filter.Category = &category
	}

	reader, err := castlog.NewFilteredReader(args[0], filter)
	if err != nil {
		fmt.Fprintf(out, "open event log: %v\n", err)
		return
	}
	defer reader.Close()

	count := 0
	for {
		event, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			fmt.Fprintf(out, "read event log: %v\n", err)
			return
		}
		count++
		fmt.Fprintf(out, "%s  %-10s  %-36s  %s\n",
			event.Timestamp.Format(time.RFC3339),
			event.Category,
			event.DeviceUUID,
			event.Message)
	}
	fmt.Fprintf(out, "%d events\n", count)
}

// matched reports whether a descriptor matches any configured device
// rule. With no configuration or no rules everything is accepted.
func (s *Shell) matched(svc discovery.CastService) bool {
	if s.cfg == nil || len(s.cfg.Devices) == 0 {
		return true
	}
	for _, entry := range s.cfg.Devices {
		if entry.Host != "" && entry.Host == svc.Host {
			return true
		}
		if entry.UUID != "" && strings.EqualFold(entry.UUID, svc.UUID.String()) {
			return true
		}
	}
	return false
}

func parseCategory(name string) (castlog.Category, bool) {
	switch strings.ToLower(name) {
	case "discovery":
		return castlog.CategoryDiscovery, true
	case "connection":
		return castlog.CategoryConnection, true
	case "media":
		return castlog.CategoryMedia, true
	case "control":
		return castlog.CategoryControl, true
	}
	return 0, false
}
