package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/mamamialezatoz/go-wpscan-plugins/internal/config"
	"github.com/mamamialezatoz/go-wpscan-plugins/internal/detection"
	"github.com/mamamialezatoz/go-wpscan-plugins/internal/downloader"
	"github.com/mamamialezatoz/go-wpscan-plugins/pkg/pluginscan"
)

// Version information
const (
	Version    = "0.3.0"
	BuildDate  = "2026-10-18"
	CommitHash = "development"
)

// options holds the parsed command line flags
type options struct {
	timeout     time.Duration
	concurrency int
	userAgent   string
	maxBodySize int64
	disableSSL  bool
	noColor     bool
	jsonOutput  bool
	output      string
	signals     []string
	verbose     bool
	logLevel    string
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := newRootCmd(cfg).Execute(); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd(cfg *config.Config) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "wp-plugin-scanner <rules.yml> <url>",
		Short: "Detect plugins and their versions from a web page",
		Long: `wp-plugin-scanner fetches a page, evaluates every plugin rule of a YAML
ruleset against its HTML comments and meta tags, and prints one line per
match:

  Plugin found! <plugin>: <version or unknown>

Versions come from the rule pattern's first capture group, or from the
"Stable tag" line of the plugin readme when the plugin declares one.`,
		Example: `  wp-plugin-scanner rules.yml https://blog.example.com
  wp-plugin-scanner --json --concurrency 8 rules.yml blog.example.com`,
		Version:       fmt.Sprintf("%s (build: %s, commit: %s)", Version, BuildDate, CommitHash),
		Args:          cobra.ExactArgs(2),
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			// arguments are valid from here on, errors are not usage problems
			cmd.SilenceUsage = true
			return run(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), args[0], args[1], opts)
		},
	}

	flags := cmd.Flags()
	flags.DurationVar(&opts.timeout, "timeout", cfg.Timeout, "Timeout for each HTTP request")
	flags.IntVar(&opts.concurrency, "concurrency", cfg.Concurrency, "Number of plugins evaluated in parallel")
	flags.StringVar(&opts.userAgent, "user-agent", cfg.UserAgent, "User-Agent header (default: desktop Chrome)")
	flags.Int64Var(&opts.maxBodySize, "max-body-size", cfg.MaxBodySize, "Maximum response body size to read (0 = no limit)")
	flags.BoolVar(&opts.disableSSL, "disable-ssl", false, "Don't verify SSL certificates")
	flags.BoolVar(&opts.noColor, "no-color", cfg.NoColor, "Disable colored output")
	flags.BoolVar(&opts.jsonOutput, "json", false, "Print one JSON object per finding")
	flags.StringVarP(&opts.output, "output", "o", "", "Write findings to a file instead of stdout")
	flags.StringSliceVar(&opts.signals, "signal", nil, "Enable an extra signal type (e.g. ScriptTag)")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Log debug output to stderr")
	opts.logLevel = cfg.LogLevel

	return cmd
}

func run(ctx context.Context, stdout, stderr io.Writer, rulesPath, target string, opts *options) error {
	level, err := config.ParseLevel(opts.logLevel)
	if err != nil {
		return err
	}
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	// the ruleset is loaded before any network activity
	ruleset, err := pluginscan.LoadRuleset(rulesPath)
	if err != nil {
		return err
	}

	scanOptions := []pluginscan.Option{
		pluginscan.WithTimeout(opts.timeout),
		pluginscan.WithConcurrency(opts.concurrency),
		pluginscan.WithMaxBodySize(opts.maxBodySize),
		pluginscan.WithLogger(logger),
	}
	if opts.userAgent != "" {
		headers := downloader.DefaultHeaders()
		headers.Set("User-Agent", opts.userAgent)
		scanOptions = append(scanOptions, pluginscan.WithHeaders(headers))
	}
	if opts.disableSSL {
		scanOptions = append(scanOptions, pluginscan.WithInsecureSkipVerify())
	}
	for _, name := range opts.signals {
		st, ok := detection.Builtin(name)
		if !ok {
			return fmt.Errorf("unknown signal type %q", name)
		}
		scanOptions = append(scanOptions, pluginscan.WithSignalTypes(st))
	}

	scanner, err := pluginscan.New(ruleset, scanOptions...)
	if err != nil {
		return err
	}

	out := stdout
	colored := !opts.noColor && isTerminal(stdout)
	if opts.output != "" {
		f, err := os.Create(opts.output)
		if err != nil {
			return fmt.Errorf("could not create output file: %w", err)
		}
		defer f.Close()
		out = f
		colored = false
	}

	var reporter pluginscan.Reporter = pluginscan.NewLineReporter(out, colored)
	if opts.jsonOutput {
		reporter = pluginscan.NewJSONReporter(out)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var reportErr error
	err = scanner.ScanURLFunc(ctx, target, func(f pluginscan.Finding) {
		if reportErr == nil {
			reportErr = reporter.Report(f)
		}
	})
	if err != nil {
		return err
	}
	return reportErr
}

// isTerminal reports whether w is a terminal that accepts color
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || color.NoColor {
		return false
	}
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
