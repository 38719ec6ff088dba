// Command grcov discovers coverage artifacts (Go coverprofiles, lcov INFO,
// JaCoCo XML, Cobertura XML, gcov intermediate text, gcno/gcda pairs, and
// LLVM profraw directories) under one or more input paths, merges them into
// a single per-source-file coverage map, applies the configured
// post-processing pipeline, and emits one or more reports.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/felixgeelhaar/grcov/internal/application"
	"github.com/felixgeelhaar/grcov/internal/infrastructure/config"
	"github.com/felixgeelhaar/grcov/internal/infrastructure/logging"
	"github.com/felixgeelhaar/grcov/internal/infrastructure/report"
	"github.com/felixgeelhaar/grcov/internal/infrastructure/watcher"
)

// Version information, set at build time via ldflags.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

func main() {
	os.Exit(run(os.Args, os.Stdout, os.Stderr))
}

// globalOptions holds CLI-wide flags that affect output behavior. They are
// parsed before the main flag set and are recognized only at the start of
// the argument list: parsing stops at the first token that is not one.
type globalOptions struct {
	quiet   bool
	noColor bool
	ci      bool
}

func parseGlobalFlags(args []string) (globalOptions, []string) {
	var g globalOptions
	var rest []string
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "-q", "--quiet":
			g.quiet = true
		case "--no-color":
			g.noColor = true
		case "--ci":
			g.ci = true
		case "--version", "-v":
			rest = append(rest, args[i])
		case "--help", "-h":
			rest = append(rest, args[i])
		default:
			rest = append(rest, args[i:]...)
			return g, rest
		}
	}
	return g, rest
}

func run(args []string, stdout, stderr io.Writer) int {
	global, rest := parseGlobalFlags(args[1:])

	if len(rest) > 0 && (rest[0] == "--version" || rest[0] == "-v") {
		printVersion(stdout)
		return 0
	}
	if len(rest) > 0 && (rest[0] == "--help" || rest[0] == "-h") {
		usage(stdout)
		return 0
	}
	if global.noColor {
		os.Setenv("NO_COLOR", "1")
	}

	fs := flag.NewFlagSet("grcov", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { usage(stderr); fs.PrintDefaults() }

	configPath := fs.String("config", "", "Config file path (defaults to discovering .grcov.yaml)")
	binaryPath := fs.String("binary-path", "", "Instrumented binary, for LLVM source-based coverage")
	sourceDir := fs.String("source-dir", "", "Root used by existence checks and prefix logic")
	prefixDir := fs.String("prefix-dir", "", "Strip this prefix from source keys")
	ignoreNotExisting := fs.Bool("ignore-not-existing", false, "Drop records whose source file no longer exists")
	var ignoreGlobs stringList
	fs.Var(&ignoreGlobs, "ignore", "Glob of source paths to drop (repeatable)")
	var keepOnlyGlobs stringList
	fs.Var(&keepOnlyGlobs, "keep-only", "Glob of source paths to keep, dropping everything else (repeatable)")
	var pathMappings pathMappingList
	fs.Var(&pathMappings, "path-mapping", "FROM:TO source path rewrite (repeatable)")
	branch := fs.Bool("branch", false, "Include branch data in the report output")
	filter := fs.String("filter", "", "Keep only \"covered\" or \"uncovered\" files")
	llvm := fs.Bool("llvm", false, "Use the LLVM gcov-compatible engine for gcno/gcda pairs")
	gcovPath := fs.String("gcov-path", "", "Path to the gcov binary (defaults to PATH lookup)")
	exclLine := fs.String("excl-line", "", "Regex marking a single line as excluded")
	exclStart := fs.String("excl-start", "", "Regex opening an excluded line range")
	exclStop := fs.String("excl-stop", "", "Regex closing an excluded line range")
	exclBrLine := fs.String("excl-br-line", "", "Regex marking a single line's branches as excluded")
	exclBrStart := fs.String("excl-br-start", "", "Regex opening an excluded branch range")
	exclBrStop := fs.String("excl-br-stop", "", "Regex closing an excluded branch range")
	outputTypes := fs.String("output-types", "text", "Comma-separated writers: text,json,html,lcov")
	outputPath := fs.String("output-path", "", "Output file (one writer) or directory (many writers)")
	precision := fs.Int("precision", 2, "Decimal precision for percentages in report output")
	threads := fs.Int("threads", 0, "Producer worker count (0 selects runtime.NumCPU())")
	logPath := fs.String("log", "", "Log file path (defaults to stderr)")
	logLevel := fs.String("log-level", "info", "Log level: debug|info|warn|error")
	watch := fs.Bool("watch", false, "Rerun the pipeline whenever a coverage artifact changes")
	badgePath := fs.String("badge", "", "Write an SVG coverage badge to this path")

	if err := fs.Parse(rest); err != nil {
		return 2
	}

	cfg, err := resolveConfig(*configPath)
	if err != nil {
		return exitWithError(err, 3, stderr, global)
	}

	applyFlagOverrides(&cfg, fs, flagValues{
		binaryPath:        *binaryPath,
		sourceDir:         *sourceDir,
		prefixDir:         *prefixDir,
		ignoreNotExisting: *ignoreNotExisting,
		ignoreGlobs:       ignoreGlobs,
		keepOnlyGlobs:     keepOnlyGlobs,
		pathMappings:      pathMappings,
		branch:            *branch,
		filter:            *filter,
		llvm:              *llvm,
		gcovPath:          *gcovPath,
		exclLine:          *exclLine,
		exclStart:         *exclStart,
		exclStop:          *exclStop,
		exclBrLine:        *exclBrLine,
		exclBrStart:       *exclBrStart,
		exclBrStop:        *exclBrStop,
		outputTypes:       *outputTypes,
		outputPath:        *outputPath,
		precision:         *precision,
		threads:           *threads,
		logPath:           *logPath,
		logLevel:          *logLevel,
		watch:             *watch,
		badgePath:         *badgePath,
	})
	cfg.Roots = append(append([]string(nil), cfg.Roots...), fs.Args()...)

	if len(cfg.Roots) == 0 {
		fmt.Fprintln(stderr, "grcov: at least one input path is required")
		usage(stderr)
		return 2
	}

	logger, closeLog, err := logging.New(cfg.Log, cfg.LogLevel, nil)
	if err != nil {
		return exitWithError(err, 3, stderr, global)
	}
	defer closeLog()

	svc := application.NewService(logger)
	reporter := report.NewReporter()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Watch {
		return runWatch(ctx, svc, cfg, reporter, logger, stdout, stderr, global)
	}

	result, err := svc.Run(ctx, cfg, reporter)
	if err != nil {
		return exitWithError(err, 4, stderr, global)
	}
	if !global.quiet {
		fmt.Fprintf(stdout, "grcov: %d file(s) reported\n", result.FilesReported)
	}
	return 0
}

func resolveConfig(path string) (application.Config, error) {
	loader := config.Loader{}
	if path != "" {
		return loader.Load(path)
	}
	found, err := loader.FindConfig()
	if err != nil {
		return application.Config{}, nil //nolint:nilerr // absence of a config file is not an error; flags alone can drive a run
	}
	return loader.Load(found)
}

type flagValues struct {
	binaryPath, sourceDir, prefixDir                                  string
	ignoreNotExisting                                                 bool
	ignoreGlobs, keepOnlyGlobs                                        stringList
	pathMappings                                                      pathMappingList
	branch                                                            bool
	filter, gcovPath                                                  string
	llvm                                                              bool
	exclLine, exclStart, exclStop, exclBrLine, exclBrStart, exclBrStop string
	outputTypes, outputPath                                           string
	precision, threads                                                int
	logPath, logLevel                                                 string
	watch                                                             bool
	badgePath                                                         string
}

// applyFlagOverrides layers explicitly-set CLI flags onto a loaded config.
// Flags not given on the command line never clobber a config-file-supplied
// value.
func applyFlagOverrides(cfg *application.Config, fs *flag.FlagSet, v flagValues) {
	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if set["binary-path"] {
		cfg.BinaryPath = v.binaryPath
	}
	if set["source-dir"] {
		cfg.SourceDir = v.sourceDir
	}
	if set["prefix-dir"] {
		cfg.PrefixDir = v.prefixDir
	}
	if set["ignore-not-existing"] {
		cfg.IgnoreNotExisting = v.ignoreNotExisting
	}
	if len(v.ignoreGlobs) > 0 {
		cfg.Ignore = append(append([]string(nil), cfg.Ignore...), v.ignoreGlobs...)
	}
	if len(v.keepOnlyGlobs) > 0 {
		cfg.KeepOnly = append(append([]string(nil), cfg.KeepOnly...), v.keepOnlyGlobs...)
	}
	if len(v.pathMappings) > 0 {
		cfg.PathMappings = append(append([]application.PathMapping(nil), cfg.PathMappings...), v.pathMappings...)
	}
	if set["branch"] {
		cfg.Branch = v.branch
	}
	if set["filter"] {
		cfg.Filter = v.filter
	}
	if set["llvm"] {
		cfg.LLVM = v.llvm
	}
	if set["gcov-path"] {
		cfg.GcovPath = v.gcovPath
	}
	if set["excl-line"] {
		cfg.Exclusions.Line = v.exclLine
	}
	if set["excl-start"] {
		cfg.Exclusions.Start = v.exclStart
	}
	if set["excl-stop"] {
		cfg.Exclusions.Stop = v.exclStop
	}
	if set["excl-br-line"] {
		cfg.Exclusions.BranchLine = v.exclBrLine
	}
	if set["excl-br-start"] {
		cfg.Exclusions.BranchStart = v.exclBrStart
	}
	if set["excl-br-stop"] {
		cfg.Exclusions.BranchStop = v.exclBrStop
	}
	if set["output-types"] {
		cfg.OutputTypes = splitCSV(v.outputTypes)
	} else if len(cfg.OutputTypes) == 0 {
		cfg.OutputTypes = splitCSV(v.outputTypes)
	}
	if set["output-path"] {
		cfg.OutputPath = v.outputPath
	}
	if set["precision"] {
		cfg.Precision = v.precision
	} else if cfg.Precision == 0 {
		cfg.Precision = v.precision
	}
	if set["threads"] {
		cfg.Threads = v.threads
	}
	if set["log"] {
		cfg.Log = v.logPath
	}
	if set["log-level"] {
		cfg.LogLevel = v.logLevel
	} else if cfg.LogLevel == "" {
		cfg.LogLevel = v.logLevel
	}
	if set["watch"] {
		cfg.Watch = v.watch
	}
	if set["badge"] {
		cfg.Badge = v.badgePath
	}
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func runWatch(ctx context.Context, svc *application.Service, cfg application.Config, reporter application.Reporter, logger *slog.Logger, stdout, stderr io.Writer, global globalOptions) int {
	w, err := watcher.New()
	if err != nil {
		return exitWithError(err, 4, stderr, global)
	}
	defer w.Close()

	for _, root := range cfg.Roots {
		if err := w.WatchDir(root); err != nil {
			return exitWithError(err, 4, stderr, global)
		}
	}

	run := func() {
		result, err := svc.Run(ctx, cfg, reporter)
		if err != nil {
			logger.Warn("watch run failed", "error", err)
			return
		}
		if !global.quiet {
			fmt.Fprintf(stdout, "grcov: %d file(s) reported\n", result.FilesReported)
		}
	}

	run()
	events := w.Events(ctx)
	for {
		select {
		case <-ctx.Done():
			return 0
		case n, ok := <-events:
			if !ok {
				return 0
			}
			logger.Info("artifacts changed, rerunning", "count", n)
			run()
		}
	}
}

// stringList implements flag.Value for repeatable flags.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(value string) error {
	*s = append(*s, value)
	return nil
}

// pathMappingList implements flag.Value for repeatable --path-mapping FROM:TO flags.
type pathMappingList []application.PathMapping

func (p *pathMappingList) String() string {
	parts := make([]string, 0, len(*p))
	for _, m := range *p {
		parts = append(parts, m.From+":"+m.To)
	}
	return strings.Join(parts, ",")
}

func (p *pathMappingList) Set(value string) error {
	from, to, ok := strings.Cut(value, ":")
	if !ok {
		return fmt.Errorf("invalid --path-mapping %q, expected FROM:TO", value)
	}
	*p = append(*p, application.PathMapping{From: from, To: to})
	return nil
}

func exitWithError(err error, code int, stderr io.Writer, global globalOptions) int {
	if err == nil {
		return 0
	}
	if global.ci {
		fmt.Fprintf(stderr, "::error::%s\n", err)
	} else {
		fmt.Fprintln(stderr, err)
	}
	return code
}

func usage(w io.Writer) {
	fmt.Fprintf(w, `grcov - multi-format coverage ingestion, merge, and reporting

Usage:
  grcov [global-flags] [flags] <path> [path...]
  grcov [--version | --help]

Global Flags:
  -q, --quiet     Suppress non-essential output
      --no-color  Disable colored text report output
      --ci        Emit ::error:: annotations instead of plain stderr lines

Run 'grcov -h' after any flags for the full flag list. Version: %s
`, Version)
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "grcov version %s (commit %s, built %s)\n", Version, Commit, Date)
}
