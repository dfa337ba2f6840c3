// Command snmpagentd is the agent binary.
//
// It loads the view/community/user/security configuration from directories
// named by environment variables (or overriding flags), registers a minimal
// MIB-II system group, and serves SNMP requests over a UDP socket until
// interrupted (SIGINT/SIGTERM).
//
// Usage:
//
//	snmpagentd [flags]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vpbank/snmpagent/agentconfig"
	"github.com/vpbank/snmpagent/audit"
	"github.com/vpbank/snmpagent/ber"
	"github.com/vpbank/snmpagent/engine"
	"github.com/vpbank/snmpagent/mib"
	"github.com/vpbank/snmpagent/oid"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "snmpagentd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		logLevel string
		logFmt   string
		listen   string

		auditPath       string
		auditMaxBytes   int64
		auditMaxBackups int

		cfgViews       string
		cfgCommunities string
		cfgUsers       string
		cfgAgent       string
	)

	flag.StringVar(&logLevel, "log.level", "info", "Log level: debug, info, warn, error")
	flag.StringVar(&logFmt, "log.fmt", "json", "Log format: json, text")
	flag.StringVar(&listen, "listen", "0.0.0.0:161", "UDP address to serve SNMP requests on")

	flag.StringVar(&auditPath, "audit.file", "", "Path to an audit JSON-lines log (disabled if empty)")
	flag.Int64Var(&auditMaxBytes, "audit.max.bytes", 0, "Max audit file size in bytes before rotation (0=disabled)")
	flag.IntVar(&auditMaxBackups, "audit.max.backups", 5, "Max rotated audit backups to keep (0=unlimited)")

	flag.StringVar(&cfgViews, "config.views", "", "Override AGENT_VIEW_DEFINITIONS_DIRECTORY_PATH")
	flag.StringVar(&cfgCommunities, "config.communities", "", "Override AGENT_COMMUNITY_DEFINITIONS_DIRECTORY_PATH")
	flag.StringVar(&cfgUsers, "config.users", "", "Override AGENT_USER_DEFINITIONS_DIRECTORY_PATH")
	flag.StringVar(&cfgAgent, "config.agent", "", "Override AGENT_SETTINGS_DIRECTORY_PATH")

	flag.Parse()

	logger, err := buildLogger(logLevel, logFmt)
	if err != nil {
		return err
	}

	paths := agentconfig.PathsFromEnv()
	applyPathOverrides(&paths, cfgViews, cfgCommunities, cfgUsers, cfgAgent)

	cfg, err := agentconfig.Load(paths, logger)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	tree := mib.NewTree()
	eng := engine.NewEngine(tree, cfg.Registry, cfg.EngineID, cfg.SecurityMode, logger)
	if err := registerSystemGroup(eng); err != nil {
		return fmt.Errorf("register system group: %w", err)
	}

	if auditPath != "" {
		sink, closeSink, err := buildAuditSink(auditPath, auditMaxBytes, auditMaxBackups, logger)
		if err != nil {
			return fmt.Errorf("audit sink: %w", err)
		}
		defer closeSink()
		eng.SetAuditSink(sink)
	}

	udpAddr, err := net.ResolveUDPAddr("udp", listen)
	if err != nil {
		return fmt.Errorf("resolve listen address %q: %w", listen, err)
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return fmt.Errorf("listen %q: %w", listen, err)
	}
	defer conn.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("snmpagentd: serving", "addr", conn.LocalAddr().String())

	serveErr := make(chan error, 1)
	go func() { serveErr <- eng.Serve(ctx, conn) }()

	select {
	case <-ctx.Done():
		logger.Info("snmpagentd: received shutdown signal")
	case err := <-serveErr:
		if err != nil && ctx.Err() == nil {
			return fmt.Errorf("serve: %w", err)
		}
	}
	return nil
}

// registerSystemGroup wires a handful of constant MIB-II system-group
// scalars (1.3.6.1.2.1.1) so the binary answers something meaningful out of
// the box; a real deployment registers device-specific handlers the same
// way before calling Serve.
func registerSystemGroup(eng *engine.Engine) error {
	start := time.Now()
	scalars := map[string]ber.Variable{
		"1.3.6.1.2.1.1.1.0": ber.NewOctetString([]byte("snmpagentd")),
		"1.3.6.1.2.1.1.2.0": ber.NewObjectIdentifier(oid.OID{1, 3, 6, 1, 4, 1, 0}),
		"1.3.6.1.2.1.1.4.0": ber.NewOctetString(nil),
		"1.3.6.1.2.1.1.5.0": ber.NewOctetString([]byte("snmpagentd")),
		"1.3.6.1.2.1.1.6.0": ber.NewOctetString(nil),
	}
	for s, v := range scalars {
		o, err := oid.Parse(s)
		if err != nil {
			return err
		}
		if err := eng.RegisterScalar(o, constantScalar{v}); err != nil {
			return err
		}
	}
	sysUpTime, err := oid.Parse("1.3.6.1.2.1.1.3.0")
	if err != nil {
		return err
	}
	return eng.RegisterScalar(sysUpTime, upTimeScalar{since: start})
}

// constantScalar answers Get with a fixed value and rejects every Set.
type constantScalar struct{ v ber.Variable }

func (c constantScalar) Get(_ oid.OID) (ber.Variable, bool) { return c.v, true }
func (c constantScalar) Set(_ oid.OID, _ ber.Variable) (ber.Variable, engine.Status) {
	return ber.Variable{}, engine.StatusNotWritable
}

// upTimeScalar reports hundredths of a second since the process started.
type upTimeScalar struct{ since time.Time }

func (u upTimeScalar) Get(_ oid.OID) (ber.Variable, bool) {
	return ber.NewTimeTicks(uint32(time.Since(u.since).Milliseconds() / 10)), true
}
func (u upTimeScalar) Set(_ oid.OID, _ ber.Variable) (ber.Variable, engine.Status) {
	return ber.Variable{}, engine.StatusNotWritable
}

func buildAuditSink(path string, maxBytes int64, maxBackups int, logger *slog.Logger) (*audit.Sink, func(), error) {
	rf, err := audit.NewRotatingFile(audit.RotateConfig{
		FilePath:   path,
		MaxBytes:   maxBytes,
		MaxBackups: maxBackups,
	}, logger)
	if err != nil {
		return nil, nil, err
	}
	sink := audit.NewSink(rf, logger)
	return sink, func() { sink.Close() }, nil
}

func buildLogger(level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log level %q (expected debug|info|warn|error)", level)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	case "text":
		handler = slog.NewTextHandler(os.Stderr, opts)
	default:
		return nil, fmt.Errorf("unknown log format %q (expected json|text)", format)
	}
	return slog.New(handler), nil
}

func applyPathOverrides(p *agentconfig.Paths, views, communities, users, agentDir string) {
	if views != "" {
		p.Views = views
	}
	if communities != "" {
		p.Communities = communities
	}
	if users != "" {
		p.Users = users
	}
	if agentDir != "" {
		p.Agent = agentDir
	}
}
