package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/0xmhha/creation-finder/api"
	"github.com/0xmhha/creation-finder/client"
	"github.com/0xmhha/creation-finder/internal/config"
	"github.com/0xmhha/creation-finder/internal/constants"
	"github.com/0xmhha/creation-finder/internal/logger"
	"github.com/0xmhha/creation-finder/search"
)

var (
	// Version information (injected at build time)
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

// cliFlags holds command-line overrides; zero values leave the configuration untouched
type cliFlags struct {
	rpcEndpoint       string
	requestsPerSecond float64
	strategy          string
	minBlock          uint64
	maxBlock          uint64
	estimate          uint64
	bias              float64
	concurrency       int
	logLevel          string
	logFormat         string
	metrics           bool
	metricsListen     string
}

func main() {
	var (
		configFile  = flag.String("config", "", "Path to configuration file (YAML)")
		showVersion = flag.Bool("version", false, "Show version information and exit")
		flags       cliFlags
	)
	flag.StringVar(&flags.rpcEndpoint, "rpc", "", "Ethereum RPC endpoint URL")
	flag.Float64Var(&flags.requestsPerSecond, "rps", 0, "Maximum RPC requests per second (0 = unlimited)")
	flag.StringVar(&flags.strategy, "strategy", "", "Search strategy (binary, interpolation)")
	flag.Uint64Var(&flags.minBlock, "min", 0, "Lowest block to search")
	flag.Uint64Var(&flags.maxBlock, "max", 0, "Highest block to search (clamped to the chain head)")
	flag.Uint64Var(&flags.estimate, "estimate", 0, "Estimated creation block (interpolation)")
	flag.Float64Var(&flags.bias, "bias", 0, "Interpolation bias exponent, below 1 trusts the estimate longer")
	flag.IntVar(&flags.concurrency, "concurrency", 0, "Number of addresses searched in parallel")
	flag.StringVar(&flags.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.StringVar(&flags.logFormat, "log-format", "", "Log format (json, console)")
	flag.BoolVar(&flags.metrics, "metrics", false, "Serve Prometheus metrics while searching")
	flag.StringVar(&flags.metricsListen, "metrics-listen", "", "Metrics server listen address")

	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <address> [address...]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	// Show version and exit if requested
	if *showVersion {
		fmt.Printf("creation-finder version %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", buildTime)
		os.Exit(0)
	}

	addresses, err := parseAddresses(flag.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid arguments: %v\n", err)
		flag.Usage()
		os.Exit(2)
	}

	// Load configuration
	cfg, err := loadConfig(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Override config with command-line flags
	applyFlags(cfg, flags)

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("Starting creation block finder",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("rpc_endpoint", cfg.RPC.Endpoint),
		zap.String("strategy", cfg.Search.Strategy),
		zap.Int("addresses", len(addresses)),
	)

	// Cancel in-flight searches on interrupt
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, addresses, log, os.Stdout); err != nil {
		log.Error("search failed", zap.Error(err))
		os.Exit(1)
	}
}

// run connects to the node, searches every address and prints one line per address
func run(ctx context.Context, cfg *config.Config, addresses []common.Address, log *zap.Logger, out io.Writer) error {
	ethClient, err := client.NewClient(&client.Config{
		Endpoint:          cfg.RPC.Endpoint,
		Timeout:           cfg.RPC.Timeout,
		RequestsPerSecond: cfg.RPC.RequestsPerSecond,
		Burst:             cfg.RPC.Burst,
		Logger:            logger.WithComponent(log, "client"),
	})
	if err != nil {
		return fmt.Errorf("failed to create Ethereum client: %w", err)
	}
	defer ethClient.Close()

	chainID, err := ethClient.GetChainID(ctx)
	if err != nil {
		return fmt.Errorf("failed to get chain ID: %w", err)
	}
	log.Info("Connected to chain", zap.String("chain_id", chainID.String()))

	opts := []search.Option{search.WithLogger(logger.WithComponent(log, "search"))}

	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		opts = append(opts, search.WithMetrics(search.NewMetrics(reg, constants.DefaultMetricsNamespace, "search")))

		server, err := api.NewServer(&api.Config{Listen: cfg.Metrics.Listen}, logger.WithComponent(log, "metrics"), reg)
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}
		if err := server.Start(); err != nil {
			return err
		}
		defer func() {
			if err := server.Stop(context.Background()); err != nil {
				log.Warn("failed to stop metrics server", zap.Error(err))
			}
		}()
	}

	reqs, err := buildRequests(cfg.Search, addresses)
	if err != nil {
		return err
	}

	finder := search.NewFinder(ethClient, opts...)
	outcomes, err := finder.FindAll(ctx, reqs, cfg.Search.Concurrency)
	if err != nil {
		return err
	}

	for _, o := range outcomes {
		fmt.Fprintln(out, formatOutcome(o))
	}
	return nil
}

// loadConfig loads configuration from file and environment variables
func loadConfig(configFile string) (*config.Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return cfg, nil
}

// loadDotEnv loads environment variables from a .env file if it exists.
func loadDotEnv() error {
	info, err := os.Stat(".env")
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to stat .env: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf(".env exists but is a directory")
	}
	if err := godotenv.Load(".env"); err != nil {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

// applyFlags applies command-line flags to configuration
func applyFlags(cfg *config.Config, f cliFlags) {
	if f.rpcEndpoint != "" {
		cfg.RPC.Endpoint = f.rpcEndpoint
	}
	if f.requestsPerSecond > 0 {
		cfg.RPC.RequestsPerSecond = f.requestsPerSecond
	}
	if f.strategy != "" {
		cfg.Search.Strategy = strings.ToLower(f.strategy)
	}
	if f.minBlock > 0 {
		cfg.Search.MinBlock = f.minBlock
	}
	if f.maxBlock > 0 {
		cfg.Search.MaxBlock = f.maxBlock
	}
	if f.estimate > 0 {
		cfg.Search.Estimate = f.estimate
	}
	if f.bias != 0 {
		cfg.Search.Bias = f.bias
	}
	if f.concurrency > 0 {
		cfg.Search.Concurrency = f.concurrency
	}
	if f.logLevel != "" {
		cfg.Log.Level = f.logLevel
	}
	if f.logFormat != "" {
		cfg.Log.Format = f.logFormat
	}
	if f.metrics {
		cfg.Metrics.Enabled = true
	}
	if f.metricsListen != "" {
		cfg.Metrics.Listen = f.metricsListen
	}
}

// parseAddresses validates positional hex addresses
func parseAddresses(args []string) ([]common.Address, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("at least one address is required")
	}

	addresses := make([]common.Address, 0, len(args))
	for _, arg := range args {
		if !common.IsHexAddress(arg) {
			return nil, fmt.Errorf("invalid address %q", arg)
		}
		addresses = append(addresses, common.HexToAddress(arg))
	}
	return addresses, nil
}

// buildRequests turns the search configuration into one request per address
func buildRequests(cfg config.SearchConfig, addresses []common.Address) ([]search.Request, error) {
	strategy, err := search.ParseStrategy(cfg.Strategy)
	if err != nil {
		return nil, err
	}

	bounds := search.NewBounds(cfg.MinBlock, cfg.MaxBlock)

	reqs := make([]search.Request, len(addresses))
	for i, addr := range addresses {
		reqs[i] = search.Request{
			Address:  addr,
			Bounds:   bounds,
			Strategy: strategy,
			Estimate: cfg.Estimate,
			Bias:     cfg.Bias,
		}
	}
	return reqs, nil
}

func formatOutcome(o *search.Outcome) string {
	if !o.IsContract {
		return fmt.Sprintf("%s\tno code at latest block\t(%d RPC calls)", o.Address.Hex(), o.TotalCalls())
	}
	return fmt.Sprintf("%s\tcreated at block %d\t(found in %d RPC calls, %d total)",
		o.Address.Hex(), o.Block, o.Calls, o.TotalCalls())
}
