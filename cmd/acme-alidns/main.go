// acme-alidns answers ACME DNS-01 challenges for zones hosted on Alibaba
// Cloud DNS. It runs as a certbot manual auth/cleanup hook or as a small
// webhook server exposing the same two operations over HTTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"gitlab.bluewillows.net/root/acme-alidns/internal/config"
	"gitlab.bluewillows.net/root/acme-alidns/internal/health"
	"gitlab.bluewillows.net/root/acme-alidns/internal/metrics"
	"gitlab.bluewillows.net/root/acme-alidns/internal/propagation"
	"gitlab.bluewillows.net/root/acme-alidns/internal/webhook"
	"gitlab.bluewillows.net/root/acme-alidns/pkg/idn"
	"gitlab.bluewillows.net/root/acme-alidns/pkg/provider"
	"gitlab.bluewillows.net/root/acme-alidns/providers/alidns"
)

// Version and BuildDate are set via ldflags during build.
// Example: -ldflags="-X main.Version=v1.0.0 -X main.BuildDate=2026-01-03"
var (
	Version   = "dev"
	BuildDate = "unknown"
)

// Certbot passes the challenge to manual hooks through these variables.
const (
	envCertbotDomain     = "CERTBOT_DOMAIN"
	envCertbotValidation = "CERTBOT_VALIDATION"
)

const shutdownTimeout = 5 * time.Second

const usage = `usage: acme-alidns <command> [flags]

commands:
  auth      create the TXT record (certbot --manual-auth-hook)
  cleanup   delete the TXT record (certbot --manual-cleanup-hook)
  serve     run the webhook server
  version   print version information
`

// newProvider builds the provider for a loaded configuration.
var newProvider = func(cfg *config.Config, logger *slog.Logger) (provider.Provider, error) {
	registry := provider.NewRegistry(logger)
	registry.RegisterFactory(alidns.ProviderType, alidns.Factory())

	factoryCfg := cfg.FactoryConfig(logger)
	factoryCfg.HTTP.UserAgent = "acme-alidns/" + Version
	return registry.Create(alidns.ProviderType, factoryCfg)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		slog.Error("fatal error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// options holds the parsed command line.
type options struct {
	command    string
	configPath string
	logLevel   string
	logFormat  string
	ttl        int
	port       int

	domain     string
	recordName string
	value      string

	flags *pflag.FlagSet
}

func parseArgs(args []string) (*options, error) {
	if len(args) == 0 {
		return nil, errors.New("no command given\n" + usage)
	}

	opts := &options{command: args[0]}
	switch opts.command {
	case "auth", "cleanup", "serve", "version":
	case "-h", "--help", "help":
		return nil, errors.New(usage)
	default:
		return nil, fmt.Errorf("unknown command %q\n%s", opts.command, usage)
	}

	fs := pflag.NewFlagSet(opts.command, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVarP(&opts.configPath, "config", "c", "", "path to a YAML, TOML or certbot INI config file")
	fs.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn or error")
	fs.StringVar(&opts.logFormat, "log-format", "", "log format: json or text")
	fs.IntVar(&opts.ttl, "ttl", 0, "TTL in seconds for created records")

	switch opts.command {
	case "auth", "cleanup":
		fs.StringVar(&opts.domain, "domain", "", "domain being validated (default $"+envCertbotDomain+")")
		fs.StringVar(&opts.value, "value", "", "validation token (default $"+envCertbotValidation+")")
		fs.StringVar(&opts.recordName, "record-name", "", "TXT record name (default _acme-challenge.<domain>)")
	case "serve":
		fs.IntVarP(&opts.port, "port", "p", 0, "listen port for the webhook and health endpoints")
	}

	if err := fs.Parse(args[1:]); err != nil {
		return nil, fmt.Errorf("parsing %s flags: %w", opts.command, err)
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	opts.flags = fs

	return opts, nil
}

// applyFlags overlays explicitly set flags onto cfg and revalidates it.
func (o *options) applyFlags(cfg *config.Config) error {
	if o.flags.Changed("log-level") {
		cfg.LogLevel = strings.ToLower(o.logLevel)
	}
	if o.flags.Changed("log-format") {
		cfg.LogFormat = strings.ToLower(o.logFormat)
	}
	if o.flags.Changed("ttl") {
		cfg.TTL = o.ttl
	}
	if o.flags.Changed("port") {
		cfg.ListenPort = o.port
	}
	return cfg.Validate()
}

// challenge returns the challenge named by flags, falling back to the
// certbot environment.
func (o *options) challenge() (domain, recordName, value string, err error) {
	domain = o.domain
	if domain == "" {
		domain = os.Getenv(envCertbotDomain)
	}
	value = o.value
	if value == "" {
		value = os.Getenv(envCertbotValidation)
	}

	var missing []string
	if domain == "" {
		missing = append(missing, "--domain or "+envCertbotDomain)
	}
	if value == "" {
		missing = append(missing, "--value or "+envCertbotValidation)
	}
	if len(missing) > 0 {
		return "", "", "", fmt.Errorf("missing challenge: %s", strings.Join(missing, ", "))
	}

	recordName = o.recordName
	if recordName == "" {
		recordName = provider.ChallengeRecordName(strings.TrimSuffix(domain, "."))
	}
	return domain, recordName, value, nil
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	opts, err := parseArgs(args)
	if err != nil {
		return err
	}

	if opts.command == "version" {
		fmt.Fprintf(stdout, "acme-alidns %s (built %s, %s)\n", Version, BuildDate, runtime.Version())
		return nil
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	if err := opts.applyFlags(cfg); err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	// Hook output on stdout is captured by certbot, so logs go to stderr.
	logger := setupLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	metrics.SetBuildInfo(Version, runtime.Version())

	logger.Debug("configuration loaded",
		slog.String("command", opts.command),
		slog.Any("config", cfg),
	)

	if cfg.MetricsTextfile != "" {
		defer func() {
			if werr := metrics.WriteTextfile(cfg.MetricsTextfile); werr != nil {
				logger.Warn("failed to write metrics textfile", slog.String("error", werr.Error()))
			}
		}()
	}

	p, err := newProvider(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating provider: %w", err)
	}

	wait, err := waitFunc(cfg, logger)
	if err != nil {
		return fmt.Errorf("configuring propagation: %w", err)
	}

	switch opts.command {
	case "auth":
		return runAuth(ctx, opts, p, wait)
	case "cleanup":
		return runCleanup(ctx, opts, p)
	default:
		return runServe(ctx, cfg, p, wait, logger)
	}
}

func runAuth(ctx context.Context, opts *options, p provider.Provider, wait webhook.WaitFunc) error {
	domain, recordName, value, err := opts.challenge()
	if err != nil {
		return err
	}

	if err := p.AddTXTRecord(ctx, domain, recordName, value); err != nil {
		return err
	}

	if wait != nil {
		if err := wait(ctx, idn.ToASCII(recordName), value); err != nil {
			return fmt.Errorf("waiting for %s to propagate: %w", recordName, err)
		}
	}
	return nil
}

func runCleanup(ctx context.Context, opts *options, p provider.Provider) error {
	domain, recordName, value, err := opts.challenge()
	if err != nil {
		return err
	}
	return p.DeleteTXTRecord(ctx, domain, recordName, value)
}

func runServe(ctx context.Context, cfg *config.Config, p provider.Provider, wait webhook.WaitFunc, logger *slog.Logger) error {
	server := health.New(cfg.ListenPort, health.WithLogger(logger))
	server.RegisterChecker("provider:"+p.Name(), p.Ping)

	webhook.New(p,
		webhook.WithLogger(logger),
		webhook.WithWait(wait),
	).Register(server)

	if err := server.Start(); err != nil {
		return fmt.Errorf("starting server: %w", err)
	}

	logger.Info("acme-alidns serving",
		slog.String("version", Version),
		slog.String("build_date", BuildDate),
		slog.Int("port", cfg.ListenPort),
	)

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown error", slog.String("error", err.Error()))
	}

	logger.Info("acme-alidns shutdown complete")
	return nil
}

// waitFunc returns how a presented record is waited on: an active
// propagation check, a fixed sleep, or nothing at all.
func waitFunc(cfg *config.Config, logger *slog.Logger) (webhook.WaitFunc, error) {
	if cfg.PropagationCheck {
		checker, err := propagation.NewChecker(cfg.Nameservers,
			propagation.WithLogger(logger),
			propagation.WithInterval(cfg.PropagationInterval),
			propagation.WithTimeout(cfg.PropagationTimeout),
		)
		if err != nil {
			return nil, err
		}
		return checker.Wait, nil
	}

	if cfg.PropagationSeconds > 0 {
		d := time.Duration(cfg.PropagationSeconds) * time.Second
		return func(ctx context.Context, recordName, _ string) error {
			logger.Info("waiting for propagation",
				slog.String("record_name", recordName),
				slog.Duration("duration", d),
			)
			return propagation.Sleep(ctx, d)
		}, nil
	}

	return nil, nil
}

func setupLogger(w io.Writer, level, format string) *slog.Logger {
	logLevel := parseLogLevel(level)

	var handler slog.Handler
	if format == "text" {
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: logLevel})
	} else {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: logLevel})
	}

	return slog.New(handler)
}

// parseLogLevel converts a string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
