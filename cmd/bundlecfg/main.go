package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"go.uber.org/zap"

	"github.com/eugenenazirov/bundlecfg/internal/application"
	"github.com/eugenenazirov/bundlecfg/internal/buildconfig"
	"github.com/eugenenazirov/bundlecfg/internal/config"
	"github.com/eugenenazirov/bundlecfg/internal/logging"
)

var signalNotify = signal.Notify

// stdinPath makes the resolve command read the document from standard input.
const stdinPath = "-"

type resolveOptions struct {
	overrides buildconfig.Overrides
	format    buildconfig.Format
}

func main() {
	kingpinApp := kingpin.New("bundlecfg", "Resolves bundler build configuration documents against built-in defaults")
	configFile := kingpinApp.Flag("config", "Path to the build configuration document (YAML or JSON; - reads stdin)").Short('c').String()
	workingDir := kingpinApp.Flag("cwd", "Working directory used when rootDirectory is absent or relative").String()
	unknownFields := kingpinApp.Flag("unknown-fields", "Policy for unrecognised fields (reject or warn)").Enum("reject", "warn")
	logLevel := kingpinApp.Flag("log-level", "Log level (debug, info, warn, error)").String()

	resolveCmd := kingpinApp.Command("resolve", "Print the fully resolved configuration").Default()
	mode := resolveCmd.Flag("mode", "Override the document's mode").String()
	root := resolveCmd.Flag("root", "Override the document's rootDirectory").String()
	outputPath := resolveCmd.Flag("output-path", "Override the document's output.path").String()
	format := resolveCmd.Flag("format", "Output format (yaml or json)").Default("yaml").Enum("yaml", "json")

	serveCmd := kingpinApp.Command("serve", "Serve the active configuration over HTTP and reload it when the document changes")
	port := serveCmd.Flag("port", "HTTP port exposed by the inspection API").String()
	rateLimitRPSFlag := serveCmd.Flag("rate-limit-rps", "Requests per second allowed (set 0 to disable)").Default("-1").Float64()
	rateLimitBurstFlag := serveCmd.Flag("rate-limit-burst", "Burst capacity for rate limiter (set 0 to disable)").Default("-1").Int()
	watchDebounce := serveCmd.Flag("watch-debounce", "Quiet period before a changed document is re-resolved").Duration()

	command := kingpin.MustParse(kingpinApp.Parse(os.Args[1:]))

	cfg, err := config.Load(&config.CLIOverrides{
		ConfigFile:       configFile,
		WorkingDirectory: workingDir,
		Port:             port,
		RateLimitRPS:     rateLimitRPSFlag,
		RateLimitBurst:   rateLimitBurstFlag,
		WatchDebounce:    watchDebounce,
		UnknownFields:    unknownFields,
		LogLevel:         logLevel,
	})
	kingpinApp.FatalIfError(err, "load settings")

	switch command {
	case resolveCmd.FullCommand():
		logger, err := logging.New(logging.Options{Level: cfg.LogLevel, Encoding: "console"})
		kingpinApp.FatalIfError(err, "initialize logger")
		defer func() {
			_ = logger.Sync()
		}()

		opts := resolveOptions{
			overrides: buildconfig.Overrides{
				Mode:          optional(*mode),
				RootDirectory: optional(*root),
				OutputPath:    optional(*outputPath),
			},
			format: buildconfig.Format(*format),
		}
		if err := runResolve(os.Stdout, os.Stdin, cfg, opts, logger); err != nil {
			_ = logger.Sync()
			kingpinApp.Fatalf("%v", err)
		}

	case serveCmd.FullCommand():
		serve(cfg)
	}
}

// runResolve reads the document named by cfg.ConfigFile (or nothing), applies
// the CLI overrides, resolves it and writes the result to out.
func runResolve(out io.Writer, in io.Reader, cfg config.Config, opts resolveOptions, logger *zap.Logger) error {
	data, err := readDocument(cfg.ConfigFile, in)
	if err != nil {
		return err
	}

	resolver := buildconfig.NewResolver(
		buildconfig.WithLogger(logger),
		buildconfig.WithUnknownFieldPolicy(cfg.UnknownFields),
	)
	doc, err := resolver.Parse(data)
	if err != nil {
		return fmt.Errorf("parse %s: %w", describeSource(cfg.ConfigFile), err)
	}

	resolved, err := resolver.Resolve(doc.Override(opts.overrides), cfg.WorkingDirectory)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", describeSource(cfg.ConfigFile), err)
	}

	encoded, err := buildconfig.MarshalFormat(resolved, opts.format)
	if err != nil {
		return err
	}
	_, err = out.Write(encoded)
	return err
}

func readDocument(path string, in io.Reader) ([]byte, error) {
	switch path {
	case "":
		return nil, nil
	case stdinPath:
		data, err := io.ReadAll(in)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		return data, nil
	}
}

func describeSource(path string) string {
	switch path {
	case "":
		return "empty document"
	case stdinPath:
		return "stdin"
	default:
		return path
	}
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func serve(cfg config.Config) {
	logger, err := logging.New(logging.Options{Level: cfg.LogLevel})
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer func() {
		_ = logger.Sync()
	}()

	if cfg.ConfigFile == stdinPath {
		logger.Fatal("serve cannot watch stdin; pass a file with --config")
	}

	app, err := application.New(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize application", zap.Error(err))
	}

	if err := app.Start(context.Background()); err != nil {
		logger.Fatal("failed to start server", zap.Error(err))
	}

	shutdown(app.Server(), cfg.ShutdownGracePeriod, logger)

	if err := app.Close(); err != nil {
		logger.Warn("failed to stop config watcher", zap.Error(err))
	}
}

func shutdown(server *http.Server, timeout time.Duration, logger *zap.Logger) {
	quit := make(chan os.Signal, 1)
	signalNotify(quit, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
		if closeErr := server.Close(); closeErr != nil {
			logger.Error("forced close failed", zap.Error(closeErr))
		}
	}
}
