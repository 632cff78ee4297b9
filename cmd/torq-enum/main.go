// Command torq-enum assigns logical indices to the ESCs on a TORQBUS segment.
//
// The tool connects to a bus bridge, waits for the set of online nodes to
// settle, passively detects which nodes are ESCs, and then walks the operator
// through enumeration: each ESC in turn is spun by hand, the first indication
// wins the next index, and the index is written and saved on that ESC.
//
// Usage:
//
//	torq-enum [flags]
//
// Flags:
//
//	-bridge string             Bridge address (host:port), or bridge name with -discover
//	-config string             Configuration file path (YAML, flags win)
//	-discover                  Discover the bridge via mDNS instead of -bridge
//	-node-id uint              Bus node ID of this tool (default 126)
//	-collection-window duration  ESC status collection window (default 5s)
//	-online-timeout duration   Deadline for all nodes to come online (default 20s)
//	-poll-interval duration    Allocation table poll interval (default 500ms)
//	-run-timeout duration      Wall-clock budget for the enumeration run (default 1m)
//	-request-timeout duration  Per-request timeout (default 5s)
//	-log-level string          Log level: debug, info, warn, error (default "info")
//	-event-log string          Write CBOR protocol events to this file
//	-interactive               Enable interactive command mode
//
// Examples:
//
//	# Enumerate against a known bridge
//	torq-enum -bridge 192.168.1.20:5650
//
//	# Discover the bridge on the local network first
//	torq-enum -discover
//
//	# Drive the steps by hand
//	torq-enum -bridge bench-rig.local:5650 -interactive
//
// Interactive Commands:
//
//	wait        - Wait for the set of online nodes to settle
//	detect      - Collect ESC status broadcasts and list ESC nodes
//	enumerate   - Run the enumeration rounds over the detected ESCs
//	status      - Show online nodes, detected ESCs, and assigned order
//	quit        - Exit
package main

import (
	"context"
	"flag"
	"fmt"
	stdlog "log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/torqbus-protocol/torqbus-go/cmd/torq-enum/interactive"
	"github.com/torqbus-protocol/torqbus-go/pkg/allocation"
	"github.com/torqbus-protocol/torqbus-go/pkg/bus"
	"github.com/torqbus-protocol/torqbus-go/pkg/discovery"
	"github.com/torqbus-protocol/torqbus-go/pkg/enumeration"
	"github.com/torqbus-protocol/torqbus-go/pkg/log"
	"github.com/torqbus-protocol/torqbus-go/pkg/transport"
	"github.com/torqbus-protocol/torqbus-go/pkg/wire"
)

const (
	defaultNodeID           = 126
	defaultCollectionWindow = 5 * time.Second
	defaultOnlineTimeout    = 20 * time.Second
	defaultPollInterval     = 500 * time.Millisecond
	defaultStatusInterval   = time.Second
	discoverTimeout         = 10 * time.Second
	connectTimeout          = 5 * time.Second
)

var config Config

func init() {
	flag.StringVar(&config.Bridge, "bridge", "", "Bridge address (host:port), or bridge name with -discover")
	flag.StringVar(&config.ConfigFile, "config", "", "Configuration file path")
	flag.BoolVar(&config.Discover, "discover", false, "Discover the bridge via mDNS")
	flag.UintVar(&config.NodeID, "node-id", defaultNodeID, "Bus node ID of this tool")
	flag.DurationVar(&config.CollectionWindow, "collection-window", defaultCollectionWindow, "ESC status collection window")
	flag.DurationVar(&config.OnlineTimeout, "online-timeout", defaultOnlineTimeout, "Deadline for all nodes to come online")
	flag.DurationVar(&config.PollInterval, "poll-interval", defaultPollInterval, "Allocation table poll interval")
	flag.DurationVar(&config.RunTimeout, "run-timeout", enumeration.DefaultRunTimeout, "Wall-clock budget for the enumeration run")
	flag.DurationVar(&config.RequestTimeout, "request-timeout", enumeration.DefaultRequestTimeout, "Per-request timeout")
	flag.StringVar(&config.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flag.StringVar(&config.EventLog, "event-log", "", "Write CBOR protocol events to this file")
	flag.BoolVar(&config.Interactive, "interactive", false, "Enable interactive command mode")
}

func main() {
	flag.Parse()

	if err := config.LoadFile(); err != nil {
		stdlog.Fatalf("Failed to load config file: %v", err)
	}
	if err := config.Validate(); err != nil {
		stdlog.Fatalf("Invalid configuration: %v", err)
	}

	setupLogging(config.LogLevel)

	logger, closeLog, err := buildLogger(config)
	if err != nil {
		stdlog.Fatalf("Failed to set up event log: %v", err)
	}
	defer closeLog()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	addr, err := resolveBridge(ctx, config)
	if err != nil {
		stdlog.Fatalf("Failed to locate bridge: %v", err)
	}
	stdlog.Printf("Bridge: %s", addr)

	client := transport.NewClient(transport.ClientConfig{
		ConnectTimeout: connectTimeout,
		Logger:         logger,
		SessionID:      uuid.NewString(),
	})
	conn, err := client.Connect(ctx, addr)
	if err != nil {
		stdlog.Fatalf("Failed to connect to bridge: %v", err)
	}

	sess := bus.NewSession(conn, wire.NodeID(config.NodeID), logger)
	defer sess.Close()

	// Participate in the bus so other nodes see us as online.
	sess.PublishNodeStatus(defaultStatusInterval, time.Now())

	table := allocation.NewTable()
	allocation.NewMonitor(sess, table)

	w := &workflow{
		sess:   sess,
		table:  table,
		config: config,
		logger: logger,
	}

	if config.Interactive {
		console, err := interactive.New(w)
		if err != nil {
			stdlog.Fatalf("Failed to create console: %v", err)
		}
		stdlog.SetOutput(console.Stdout())
		console.Run(ctx, cancel)
		return
	}

	if err := w.WaitOnline(); err != nil {
		stdlog.Fatalf("Waiting for nodes failed: %v", err)
	}
	if _, err := w.Detect(); err != nil {
		stdlog.Fatalf("ESC detection failed: %v", err)
	}
	order, err := w.Enumerate()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Enumeration failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("Enumeration complete:")
	for i, id := range order {
		fmt.Printf("  index %d -> node %d\n", i, id)
	}
}

// workflow drives the enumeration steps over one bus session. All methods
// pump the session on the calling goroutine.
type workflow struct {
	sess   *bus.Session
	table  *allocation.Table
	config Config
	logger log.Logger

	escs  []wire.NodeID
	order []wire.NodeID
}

// WaitOnline blocks until the set of online nodes settles.
func (w *workflow) WaitOnline() error {
	stdlog.Println("Waiting for all nodes to come online...")
	deadline := time.Now().Add(w.config.OnlineTimeout)
	if err := enumeration.WaitForAllNodesOnline(w.sess, w.table, w.config.PollInterval, deadline); err != nil {
		return err
	}
	stdlog.Printf("Online nodes: %v", w.table.Entries())
	return nil
}

// Detect collects ESC status broadcasts and records the ESC node set.
func (w *workflow) Detect() ([]wire.NodeID, error) {
	stdlog.Printf("Listening for ESC status broadcasts for %v...", w.config.CollectionWindow)
	escs, err := enumeration.DetectESCNodes(w.sess, w.config.CollectionWindow)
	if err != nil {
		return nil, err
	}
	w.escs = escs
	stdlog.Printf("Detected ESC nodes: %v", escs)
	return escs, nil
}

// Enumerate runs the coordinator over the detected ESCs.
func (w *workflow) Enumerate() ([]wire.NodeID, error) {
	if len(w.escs) == 0 {
		return nil, fmt.Errorf("no ESC nodes detected, run detection first")
	}
	coord := enumeration.NewCoordinator(w.sess, enumeration.Config{
		RunTimeout:     w.config.RunTimeout,
		RequestTimeout: w.config.RequestTimeout,
		Logger:         w.logger,
		Progress: func(msg string) {
			stdlog.Println(msg)
		},
	})
	order, err := coord.Run(w.escs)
	if err != nil {
		return nil, err
	}
	w.order = order
	return order, nil
}

// Status summarizes the workflow state for the interactive console.
func (w *workflow) Status() string {
	s := fmt.Sprintf("online nodes: %v\ndetected ESCs: %v\n", w.table.Entries(), w.escs)
	if len(w.order) == 0 {
		return s + "assigned order: none"
	}
	s += "assigned order:"
	for i, id := range w.order {
		s += fmt.Sprintf("\n  index %d -> node %d", i, id)
	}
	return s
}

// resolveBridge returns the bridge address from config, discovering it via
// mDNS when requested. With -discover, -bridge narrows the match by name.
func resolveBridge(ctx context.Context, cfg Config) (string, error) {
	if !cfg.Discover {
		if cfg.Bridge == "" {
			return "", fmt.Errorf("no bridge configured (use -bridge or -discover)")
		}
		return cfg.Bridge, nil
	}

	stdlog.Println("Discovering bridge via mDNS...")
	browser, err := discovery.NewMDNSBrowser(discovery.BrowserConfig{})
	if err != nil {
		return "", err
	}
	svc, err := browser.FindBridge(ctx, cfg.Bridge, discoverTimeout)
	if err != nil {
		return "", err
	}
	stdlog.Printf("Found bridge %q (bitrate %d bit/s)", svc.Name, svc.Bitrate)
	return svc.Addr(), nil
}

// buildLogger assembles the protocol event logger: slog always, plus the
// CBOR file log when -event-log is set.
func buildLogger(cfg Config) (log.Logger, func(), error) {
	slogAdapter := log.NewSlogAdapter(newSlogLogger(cfg.LogLevel))
	if cfg.EventLog == "" {
		return slogAdapter, func() {}, nil
	}

	fileLogger, err := log.NewFileLogger(cfg.EventLog)
	if err != nil {
		return nil, nil, err
	}
	closeLog := func() {
		if err := fileLogger.Close(); err != nil {
			stdlog.Printf("Warning: failed to close event log: %v", err)
		}
	}
	return log.NewMultiLogger(slogAdapter, fileLogger), closeLog, nil
}

// newSlogLogger builds the slog logger the protocol event adapter writes to.
func newSlogLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

func setupLogging(level string) {
	stdlog.SetFlags(stdlog.Ltime | stdlog.Lmicroseconds)

	switch level {
	case "debug":
		stdlog.SetFlags(stdlog.Ltime | stdlog.Lmicroseconds | stdlog.Lshortfile)
	case "warn", "error":
		stdlog.SetFlags(stdlog.Ltime)
	}
}

var _ interactive.Workflow = (*workflow)(nil)
