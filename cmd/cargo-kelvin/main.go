// Package main provides the cargo-kelvin command. It archives the Cargo
// workspace in the working directory and submits it to Kelvin.
//
// It runs standalone (cargo-kelvin submit 42) or as a cargo subcommand
// (cargo kelvin submit 42).
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"

	"github.com/Cyclone1070/cargo-kelvin/internal/archive"
	"github.com/Cyclone1070/cargo-kelvin/internal/browser"
	"github.com/Cyclone1070/cargo-kelvin/internal/config"
	"github.com/Cyclone1070/cargo-kelvin/internal/kelvin"
	"github.com/Cyclone1070/cargo-kelvin/internal/logging"
	"github.com/Cyclone1070/cargo-kelvin/internal/service/executor"
	servicefs "github.com/Cyclone1070/cargo-kelvin/internal/service/fs"
	"github.com/Cyclone1070/cargo-kelvin/internal/service/git"
	"github.com/Cyclone1070/cargo-kelvin/internal/submit"
	"github.com/Cyclone1070/cargo-kelvin/internal/workspace"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
	"github.com/spf13/pflag"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

// opener shows the created submit to the user.
type opener interface {
	Open(ctx context.Context, url string) error
}

// Dependencies holds the process-level collaborators of a run.
type Dependencies struct {
	Stdout       io.Writer
	Stderr       io.Writer
	LookupEnv    func(string) (string, bool)
	Getwd        func() (string, error)
	LoadConfig   func() (*config.Config, error)
	UserPatterns func() ([]gitignore.Pattern, error)
	HTTPClient   *http.Client
	// Opener defaults to the platform browser opener when nil.
	Opener opener
}

func defaultDependencies() Dependencies {
	return Dependencies{
		Stdout:     os.Stdout,
		Stderr:     os.Stderr,
		LookupEnv:  os.LookupEnv,
		Getwd:      os.Getwd,
		LoadConfig: config.Load,
		UserPatterns: func() ([]gitignore.Pattern, error) {
			return git.LoadUserPatterns(osfs.New("/"))
		},
		// No timeout: an upload takes as long as it takes.
		HTTPClient: &http.Client{},
	}
}

func main() {
	os.Exit(run(context.Background(), os.Args[1:], defaultDependencies()))
}

// cliOptions is the parsed command line.
type cliOptions struct {
	assignmentID uint64
	token        string
	kelvinURL    string
	noOpen       bool
	verbose      bool
	version      bool
	help         bool

	// Names of the flags given explicitly.
	set map[string]bool
}

var errUsage = errors.New("usage error")

func usage(w io.Writer, flags *pflag.FlagSet) {
	fmt.Fprintln(w, "Usage: cargo kelvin submit <assignment-id> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Archives the Cargo workspace and submits it to Kelvin.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprint(w, flags.FlagUsages())
}

// parseArgs parses args without the program name. A leading "kelvin", as
// passed by cargo to subcommands, is skipped.
func parseArgs(args []string, stderr io.Writer) (*cliOptions, error) {
	if len(args) > 0 && args[0] == "kelvin" {
		args = args[1:]
	}

	opts := &cliOptions{set: map[string]bool{}}
	flags := pflag.NewFlagSet("cargo-kelvin", pflag.ContinueOnError)
	flags.SetOutput(io.Discard)
	flags.StringVar(&opts.token, "token", "", "Kelvin API token (default $"+config.EnvToken+")")
	flags.StringVar(&opts.kelvinURL, "kelvin-url", "", "Kelvin base URL (default "+config.DefaultKelvinURL+")")
	flags.BoolVar(&opts.noOpen, "no-open", false, "do not open the submit in a browser")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "log debug messages")
	flags.BoolVar(&opts.version, "version", false, "print the version and exit")
	flags.BoolVarP(&opts.help, "help", "h", false, "show this help")

	if err := flags.Parse(args); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n\n", err)
		usage(stderr, flags)
		return nil, errUsage
	}
	flags.Visit(func(f *pflag.Flag) { opts.set[f.Name] = true })

	if opts.help {
		usage(stderr, flags)
		return opts, nil
	}
	if opts.version {
		return opts, nil
	}

	positional := flags.Args()
	if len(positional) != 2 || positional[0] != "submit" {
		usage(stderr, flags)
		return nil, errUsage
	}

	id, err := strconv.ParseUint(positional[1], 10, 64)
	if err != nil {
		fmt.Fprintf(stderr, "Error: invalid assignment id %q: must be a non-negative integer\n", positional[1])
		return nil, errUsage
	}
	opts.assignmentID = id

	return opts, nil
}

// resolveConfig layers dotfile, environment and flags over the defaults.
func resolveConfig(opts *cliOptions, deps Dependencies) (*config.Config, error) {
	cfg, err := deps.LoadConfig()
	if err != nil {
		fmt.Fprintf(deps.Stderr, "Warning: failed to load config: %v\n", err)
		fmt.Fprintf(deps.Stderr, "Using default configuration.\n")
		cfg = config.DefaultConfig()
	}

	if err := config.ApplyEnv(cfg, deps.LookupEnv); err != nil {
		return nil, err
	}

	if opts.set["token"] {
		cfg.Token = opts.token
	}
	if opts.set["kelvin-url"] {
		cfg.Kelvin.URL = opts.kelvinURL
	}
	if opts.set["no-open"] {
		cfg.NoOpen = opts.noOpen
	}
	if opts.verbose {
		cfg.Log.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(ctx context.Context, args []string, deps Dependencies) int {
	opts, err := parseArgs(args, deps.Stderr)
	if err != nil {
		return exitUsage
	}
	if opts.help {
		return exitOK
	}
	if opts.version {
		fmt.Fprintf(deps.Stdout, "cargo-kelvin %s\n", version)
		return exitOK
	}

	cfg, err := resolveConfig(opts, deps)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "Error: %v\n", err)
		return exitError
	}
	if cfg.Token == "" {
		fmt.Fprintf(deps.Stderr, "Error: missing API token: pass --token or set %s\n", config.EnvToken)
		return exitUsage
	}

	logCfg, err := logging.NewConfig(cfg.Log.Level, deps.Stderr)
	if err != nil {
		fmt.Fprintf(deps.Stderr, "Error: %v\n", err)
		return exitError
	}
	logger := logging.New(logCfg)

	dir, err := deps.Getwd()
	if err != nil {
		fmt.Fprintf(deps.Stderr, "Error: failed to get working directory: %v\n", err)
		return exitError
	}

	runner := newRunner(cfg, deps, logger)
	_, err = runner.Run(ctx, submit.Options{
		Dir:          dir,
		AssignmentID: opts.assignmentID,
		NoOpen:       cfg.NoOpen,
	})
	if err != nil {
		fmt.Fprintf(deps.Stderr, "Error: %v\n", err)
		return exitError
	}
	return exitOK
}

// newRunner instantiates the concrete collaborators of a submit run.
func newRunner(cfg *config.Config, deps Dependencies, logger *slog.Logger) *submit.Runner {
	osFS := servicefs.NewOSFileSystem()
	commandExecutor := executor.NewOSCommandExecutor(cfg)

	patterns, err := deps.UserPatterns()
	if err != nil {
		logger.Debug("Cannot load user git excludes", "error", err)
	}

	var o opener = deps.Opener
	if o == nil {
		o = browser.NewOpener(commandExecutor)
	}

	return submit.NewRunner(
		workspace.NewLocator(commandExecutor, osFS, logger),
		archive.NewBuilder(osFS, cfg, patterns, logger),
		kelvin.NewClient(deps.HTTPClient, cfg.Kelvin.URL, cfg.Token, "cargo-kelvin/"+version, logger),
		o,
		logger,
	)
}
