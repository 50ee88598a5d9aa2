package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rmacdonaldsmith/inputlog/internal/daemon"
	"github.com/rmacdonaldsmith/inputlog/internal/grpcapi"
	"github.com/rmacdonaldsmith/inputlog/internal/httpapi"
	"github.com/rmacdonaldsmith/inputlog/internal/logging"
	"github.com/rmacdonaldsmith/inputlog/pkg/eventbuf"
)

const (
	// Application info
	appName    = "inputlog"
	appVersion = "0.1.0"

	shutdownTimeout = 30 * time.Second
)

// options holds the parsed command line
type options struct {
	configPath string
	nodeID     string
	listen     string
	grpcListen string
	device     string
	capacity   int
	policy     string
	blocking   bool
	secret     string
	noAuth     bool
	logLevel   string
	logFormat  string

	showVersion bool
	showHealth  bool

	// set records the flags given explicitly
	set map[string]bool
}

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(2)
	}

	if opts.showVersion {
		fmt.Printf("%s v%s\n", appName, appVersion)
		os.Exit(0)
	}

	config, err := buildConfig(opts)
	if err != nil {
		log.Fatalf("❌ Invalid configuration: %v", err)
	}

	logger, err := logging.New(os.Stderr, config.Log.Level, config.Log.Format)
	if err != nil {
		log.Fatalf("❌ Invalid logging configuration: %v", err)
	}
	config.WithLogger(logger)

	if opts.showHealth {
		os.Exit(showHealthStatus(config))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, config); err != nil {
		log.Fatalf("❌ %v", err)
	}
}

// parseFlags parses the daemon command line
func parseFlags(args []string, output io.Writer) (*options, error) {
	opts := &options{set: make(map[string]bool)}

	fs := flag.NewFlagSet(appName+"d", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&opts.configPath, "config", "", "YAML configuration file (flags override it)")
	fs.StringVar(&opts.nodeID, "node-id", "", "Node identifier (default inputlog-<hostname>)")
	fs.StringVar(&opts.listen, "listen", daemon.DefaultHTTPListen, "Listen address for the HTTP API")
	fs.StringVar(&opts.grpcListen, "grpc-listen", daemon.DefaultGRPCListen, "Listen address for the gRPC API (empty disables it)")
	fs.StringVar(&opts.device, "device", "", "evdev node to ingest from, e.g. /dev/input/event3 (optional)")
	fs.IntVar(&opts.capacity, "capacity", 0, "Event buffer size in bytes (default 256)")
	fs.StringVar(&opts.policy, "policy", eventbuf.PolicyEvictOldest.String(), "Overflow policy: evict-oldest or reject-newest")
	fs.BoolVar(&opts.blocking, "always-block", false, "Ignore non-blocking drain requests")
	fs.StringVar(&opts.secret, "secret", "", "JWT signing secret (or INPUTLOG_SECRET)")
	fs.BoolVar(&opts.noAuth, "no-auth", false, "Disable authentication for non-admin endpoints (development only)")
	fs.StringVar(&opts.logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	fs.StringVar(&opts.logFormat, "log-format", logging.FormatText, "Log format: text or json")
	fs.BoolVar(&opts.showVersion, "version", false, "Show version and exit")
	fs.BoolVar(&opts.showHealth, "health", false, "Show health status and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	fs.Visit(func(f *flag.Flag) { opts.set[f.Name] = true })

	return opts, nil
}

// buildConfig merges the config file, the environment and the flags. Without
// a config file every flag applies; with one only explicit flags override it.
func buildConfig(opts *options) (*daemon.Config, error) {
	config := &daemon.Config{}
	if opts.configPath != "" {
		loaded, err := daemon.LoadConfig(opts.configPath)
		if err != nil {
			return nil, err
		}
		config = loaded
	}

	apply := func(name string) bool {
		return opts.configPath == "" || opts.set[name]
	}

	if apply("node-id") && opts.nodeID != "" {
		config.NodeID = opts.nodeID
	}
	if apply("listen") {
		config.HTTP.Listen = opts.listen
	}
	if apply("grpc-listen") {
		config.GRPC.Listen = opts.grpcListen
	}
	if apply("device") && opts.device != "" {
		config.Device = opts.device
	}
	if apply("capacity") && opts.capacity != 0 {
		config.Buffer.Capacity = opts.capacity
	}
	if apply("policy") {
		policy, err := eventbuf.ParsePolicy(opts.policy)
		if err != nil {
			return nil, err
		}
		config.Buffer.Policy = policy
	}
	if apply("always-block") && opts.blocking {
		config.Buffer.DisableNonBlocking = true
	}
	if apply("no-auth") && opts.noAuth {
		config.HTTP.NoAuth = true
	}
	if apply("log-level") {
		config.Log.Level = opts.logLevel
	}
	if apply("log-format") {
		config.Log.Format = opts.logFormat
	}

	switch {
	case opts.set["secret"]:
		config.HTTP.SecretKey = opts.secret
	case config.HTTP.SecretKey == "":
		config.HTTP.SecretKey = os.Getenv("INPUTLOG_SECRET")
	}

	config.SetDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// run starts the node and its servers and blocks until ctx is done
func run(ctx context.Context, config *daemon.Config) error {
	log.Printf("🚀 Starting %s v%s", appName, appVersion)
	log.Printf("📋 Node ID: %s", config.NodeID)
	log.Printf("🔌 HTTP Listen: %s", config.HTTP.Listen)
	if config.GRPC.Listen != "" {
		log.Printf("🔗 gRPC Listen: %s", config.GRPC.Listen)
	}
	log.Printf("📦 Buffer: %d bytes, policy %s", config.Buffer.Capacity, config.Buffer.Policy)
	if config.Device != "" {
		log.Printf("🖱️  Device: %s", config.Device)
	}

	log.Printf("🔧 Creating node...")
	node, err := daemon.NewNode(config)
	if err != nil {
		return fmt.Errorf("failed to create node: %w", err)
	}

	log.Printf("▶️  Starting node...")
	if err := node.Start(ctx); err != nil {
		node.Close()
		return fmt.Errorf("failed to start node: %w", err)
	}

	httpServer := httpapi.NewServer(node, httpapi.Config{
		Listen:    config.HTTP.Listen,
		SecretKey: config.HTTP.SecretKey,
		NoAuth:    config.HTTP.NoAuth,
		Logger:    config.Logger,
	})

	errCh := make(chan error, 2)
	go func() {
		if err := httpServer.Start(); err != nil {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	var grpcServer *grpcapi.Server
	if config.GRPC.Listen != "" {
		grpcServer = grpcapi.NewServer(node, config.Logger)
		go func() {
			if err := grpcServer.ListenAndServe(ctx, config.GRPC.Listen); err != nil {
				errCh <- fmt.Errorf("grpc server: %w", err)
			}
		}()
	}

	showStartupInfo(node)
	log.Printf("✅ %s node %s started successfully!", appName, config.NodeID)
	log.Printf("💡 Use Ctrl+C to shutdown gracefully")

	var runErr error
	select {
	case <-ctx.Done():
		log.Printf("🛑 Shutting down gracefully...")
	case runErr = <-errCh:
		log.Printf("❌ Server failed: %v", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Closing the store first releases blocked drains and open streams
	log.Printf("🛑 Closing node...")
	if err := node.Close(); err != nil {
		log.Printf("⚠️  Error closing node: %v", err)
	}
	if err := httpServer.Stop(shutdownCtx); err != nil {
		log.Printf("⚠️  Error stopping HTTP server: %v", err)
	}
	if grpcServer != nil {
		grpcServer.Stop()
	}

	log.Printf("👋 %s node %s stopped", appName, config.NodeID)
	return runErr
}

// showStartupInfo displays node information after successful startup
func showStartupInfo(node *daemon.Node) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	health, err := node.GetHealth(ctx)
	if err != nil {
		log.Printf("⚠️  Could not get health status: %v", err)
		return
	}

	log.Printf("🏥 Health Status:")
	log.Printf("   Overall: %s", healthStatus(health.Healthy))
	log.Printf("   Ingesting: %v", health.Ingesting)
	log.Printf("   Buffered: %d/%d bytes", health.Buffer.Length, health.Buffer.Capacity)

	if !health.Healthy {
		log.Printf("⚠️  Health issues: %s", health.Message)
	}
}

// showHealthStatus builds a node, reports its health and returns the exit code
func showHealthStatus(config *daemon.Config) int {
	node, err := daemon.NewNode(config)
	if err != nil {
		log.Printf("❌ Failed to create node: %v", err)
		return 1
	}
	defer node.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := node.Start(ctx); err != nil {
		log.Printf("❌ Failed to start node: %v", err)
		return 1
	}

	health, err := node.GetHealth(ctx)
	if err != nil {
		log.Printf("❌ Failed to get health status: %v", err)
		return 1
	}

	fmt.Printf("inputlog Node Health Status:\n")
	fmt.Printf("  Overall: %s\n", healthStatus(health.Healthy))
	fmt.Printf("  Ingesting: %v\n", health.Ingesting)
	fmt.Printf("  Buffer: %d/%d bytes (%s)\n", health.Buffer.Length, health.Buffer.Capacity, health.Buffer.Policy)
	fmt.Printf("  Message: %s\n", health.Message)

	if health.Healthy {
		return 0
	}
	return 1
}

// healthStatus returns a colored health status string
func healthStatus(healthy bool) string {
	if healthy {
		return "✅ Healthy"
	}
	return "❌ Unhealthy"
}
