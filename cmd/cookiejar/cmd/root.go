// Package cmd implements the cookiejar command line client.
package cmd

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/blockberries/cookiejar"
	"github.com/blockberries/cookiejar/client"
	"github.com/blockberries/cookiejar/config"
	"github.com/blockberries/cookiejar/logging"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type app struct {
	out io.Writer

	configFile string
	url        string
	keyName    string
	keyDir     string
	wait       time.Duration
	verbose    bool

	cfg *config.Config
	log *zap.Logger
}

// NewRootCommand builds the cookiejar command tree writing results to
// out.
func NewRootCommand(out io.Writer) *cobra.Command {
	a := &app{out: out}
	root := &cobra.Command{
		Use:           "cookiejar",
		Short:         "Bake, eat and count the cookies in your jar",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: usageArgs(func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("unknown command %q for %q", args[0], cmd.CommandPath())
			}
			return nil
		}),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.HasParent() {
				return nil
			}
			return a.setup(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}
	root.SetOut(out)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err}
	})

	flags := root.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "YAML config file")
	flags.StringVar(&a.url, "url", "", "REST gateway URL (env "+config.EnvURL+")")
	flags.StringVar(&a.keyName, "key", "", "key name (env "+config.EnvKey+")")
	flags.StringVar(&a.keyDir, "key-dir", "", "key directory (default ~/.sawtooth/keys)")
	flags.DurationVar(&a.wait, "wait", 0, "how long to wait for a request to become final")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "log requests")

	root.AddCommand(
		a.bakeCmd(),
		a.eatCmd(),
		a.clearCmd(),
		a.countCmd(),
		a.watchCmd(),
		a.keygenCmd(),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configFile)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("url") {
		cfg.Client.URL = a.url
	}
	if flags.Changed("key") {
		cfg.Client.KeyName = a.keyName
		cfg.Client.KeyFile = ""
	}
	if flags.Changed("key-dir") {
		cfg.Client.KeyDir = a.keyDir
	}
	if flags.Changed("wait") {
		cfg.Client.Wait = a.wait
	}
	if a.verbose {
		cfg.Log.Level = "debug"
		cfg.Log.Development = true
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level := cfg.Log.Level
	if !a.verbose && level == "info" {
		// Client output goes to stdout; keep stderr for problems.
		level = "warn"
	}
	log, err := logging.New(level, cfg.Log.Development)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.log = log
	return nil
}

func (a *app) client() (*client.Client, error) {
	return client.Open(a.cfg.Client, client.WithLogger(a.log))
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

// usageError is a command line the commands cannot run: wrong
// arguments, unknown flags or commands.
type usageError struct{ err error }

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

// usageArgs reports argument validation failures as usage errors.
func usageArgs(validate cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := validate(cmd, args); err != nil {
			return &usageError{err}
		}
		return nil
	}
}

// Execute runs the command line and returns the process exit status.
// Usage errors exit like rejected requests, with the usage text.
func Execute(args []string, stdout, stderr io.Writer) int {
	root := NewRootCommand(stdout)
	root.SetArgs(args)
	root.SetErr(stderr)
	cmd, err := root.ExecuteC()
	if err == nil {
		return 0
	}
	var uerr *usageError
	if errors.As(err, &uerr) {
		fmt.Fprintf(stderr, "cookiejar: usage: %v\n\n%s", err, cmd.UsageString())
		return cookiejar.KindRejected.ExitCode()
	}
	kind := cookiejar.Classify(err)
	fmt.Fprintf(stderr, "cookiejar: %s: %v\n", kind, err)
	return kind.ExitCode()
}
