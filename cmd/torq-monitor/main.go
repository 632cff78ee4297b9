// Command torq-monitor passively prints decoded TORQBUS traffic.
//
// The tool connects to a bus bridge, subscribes to the broadcast message
// types, and prints one line per transfer. It never transmits on the bus.
//
// Usage:
//
//	torq-monitor [flags]
//
// Flags:
//
//	-bridge string     Bridge address (host:port), or bridge name with -discover
//	-discover          Discover the bridge via mDNS instead of -bridge
//	-event-log string  Write CBOR protocol events to this file
//	-log-level string  Log level: debug, info, warn, error (default "info")
//
// Examples:
//
//	torq-monitor -bridge 192.168.1.20:5650
//	torq-monitor -discover -event-log bus.cborlog
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

	"github.com/torqbus-protocol/torqbus-go/pkg/bus"
	"github.com/torqbus-protocol/torqbus-go/pkg/discovery"
	"github.com/torqbus-protocol/torqbus-go/pkg/log"
	"github.com/torqbus-protocol/torqbus-go/pkg/transport"
	"github.com/torqbus-protocol/torqbus-go/pkg/wire"
)

const (
	// monitorNodeID is never transmitted, it only tags the session.
	monitorNodeID = 125

	discoverTimeout = 10 * time.Second
	connectTimeout  = 5 * time.Second
	spinSlice       = 250 * time.Millisecond
)

var (
	bridgeFlag   = flag.String("bridge", "", "Bridge address (host:port), or bridge name with -discover")
	discoverFlag = flag.Bool("discover", false, "Discover the bridge via mDNS")
	eventLogFlag = flag.String("event-log", "", "Write CBOR protocol events to this file")
	logLevelFlag = flag.String("log-level", "info", "Log level: debug, info, warn, error")
)

func main() {
	flag.Parse()
	stdlog.SetFlags(stdlog.Ltime | stdlog.Lmicroseconds)

	logger, closeLog, err := buildLogger(*logLevelFlag, *eventLogFlag)
	if err != nil {
		stdlog.Fatalf("Failed to set up event log: %v", err)
	}
	defer closeLog()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	addr, err := resolveBridge(ctx)
	if err != nil {
		stdlog.Fatalf("Failed to locate bridge: %v", err)
	}
	stdlog.Printf("Monitoring bridge %s", addr)

	client := transport.NewClient(transport.ClientConfig{
		ConnectTimeout: connectTimeout,
		Logger:         logger,
		SessionID:      uuid.NewString(),
	})
	conn, err := client.Connect(ctx, addr)
	if err != nil {
		stdlog.Fatalf("Failed to connect to bridge: %v", err)
	}

	sess := bus.NewSession(conn, monitorNodeID, logger)
	defer sess.Close()

	sess.Subscribe(wire.TypeNodeStatus, printNodeStatus)
	sess.Subscribe(wire.TypeESCStatus, printESCStatus)
	sess.Subscribe(wire.TypeEnumerationIndication, printIndication)

	for ctx.Err() == nil {
		if err := sess.Spin(spinSlice); err != nil {
			stdlog.Fatalf("Bridge connection lost: %v", err)
		}
	}
}

func printNodeStatus(t bus.Transfer) {
	var msg wire.NodeStatus
	if err := wire.DecodePayload(t.Frame, &msg); err != nil {
		return
	}
	fmt.Printf("%s node %3d  NodeStatus          uptime=%ds health=%s\n",
		t.Time.Format("15:04:05.000"), t.Source, msg.UptimeSec, msg.Health)
}

func printESCStatus(t bus.Transfer) {
	var msg wire.ESCStatus
	if err := wire.DecodePayload(t.Frame, &msg); err != nil {
		return
	}
	fmt.Printf("%s node %3d  ESCStatus           index=%d rpm=%d voltage=%.1f current=%.1f\n",
		t.Time.Format("15:04:05.000"), t.Source, msg.ESCIndex, msg.RPM, msg.Voltage, msg.Current)
}

func printIndication(t bus.Transfer) {
	var msg wire.EnumerationIndication
	if err := wire.DecodePayload(t.Frame, &msg); err != nil {
		return
	}
	fmt.Printf("%s node %3d  EnumerationIndication param=%q\n",
		t.Time.Format("15:04:05.000"), t.Source, msg.ParameterName)
}

func resolveBridge(ctx context.Context) (string, error) {
	if !*discoverFlag {
		if *bridgeFlag == "" {
			return "", fmt.Errorf("no bridge configured (use -bridge or -discover)")
		}
		return *bridgeFlag, nil
	}

	browser, err := discovery.NewMDNSBrowser(discovery.BrowserConfig{})
	if err != nil {
		return "", err
	}
	svc, err := browser.FindBridge(ctx, *bridgeFlag, discoverTimeout)
	if err != nil {
		return "", err
	}
	return svc.Addr(), nil
}

func buildLogger(level, eventLog string) (log.Logger, func(), error) {
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
	slogAdapter := log.NewSlogAdapter(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))

	if eventLog == "" {
		return slogAdapter, func() {}, nil
	}
	fileLogger, err := log.NewFileLogger(eventLog)
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
