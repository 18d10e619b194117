package main

import (
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/Veraticus/caffeinate/pkg/config"
	"github.com/Veraticus/caffeinate/pkg/duration"
	"github.com/Veraticus/caffeinate/pkg/guard"
	"github.com/Veraticus/caffeinate/pkg/ui"
)

// options holds the global flags.
type options struct {
	configPath string
	backend    string
	debug      bool
	interval   duration.Duration
	timeFlag   *duration.Value

	cfg *config.Config
}

// load reads the configuration and applies the global flags on top of it.
func (o *options) load(cmd *cobra.Command) error {
	cfg, err := config.LoadWithPath(o.configPath)
	if err != nil {
		return err
	}

	if o.timeFlag.Changed() {
		cfg.Interval = o.interval
	}
	if cmd.Flags().Changed("backend") {
		cfg.Backend = o.backend
	}
	if o.debug {
		cfg.Debug = true
	}
	if err := config.Validate(cfg); err != nil {
		return &usageError{err: err}
	}

	ui.SetDebug(cfg.Debug)
	ui.KeyValue("interval", cfg.Interval.String())
	ui.KeyValue("backend", cfg.Backend)

	o.cfg = cfg
	return nil
}

func newRootCmd(app *Application) *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "caffeinate",
		Short: "Keep the computer awake",
		Long: `caffeinate keeps the desktop session from going idle.

loop taps a harmless key on a fixed cadence until the Escape key is pressed
three times. do and sleep suspend the screensaver around a command or a fixed
wait and resume it on every exit path, including SIGINT, SIGTERM and SIGHUP.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		Args: func(cmd *cobra.Command, args []string) error {
			if err := cobra.NoArgs(cmd, args); err != nil {
				return &usageError{err: err}
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return usageErrorf("a subcommand is required (loop, do or sleep)")
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd)
		},
	}

	root.SetVersionTemplate("{{.Name}} {{.Version}}\n")
	root.Flags().BoolP("version", "V", false, "print the program version and exit")
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	flags := root.PersistentFlags()
	opts.timeFlag = duration.NewValue(duration.Seconds(90), &opts.interval)
	flags.VarP(opts.timeFlag, "time", "t", "keypress interval for loop; a number with optional h/m/s suffix or [[HH:]M]M:SS")
	flags.StringVar(&opts.configPath, "config", "", "path to config file (default ~/.config/caffeinate/config.yaml)")
	flags.StringVar(&opts.backend, "backend", "", "inhibition backend for do and sleep (xdg-screensaver, dbus)")
	flags.BoolVar(&opts.debug, "debug", false, "print diagnostics to stderr")

	root.AddCommand(
		newLoopCmd(app, opts),
		newDoCmd(app, opts),
		newSleepCmd(app, opts),
	)
	return root
}

// optionalDuration parses the single optional DURATION argument.
func optionalDuration(args []string, def duration.Duration) (duration.Duration, error) {
	if len(args) == 0 {
		return def, nil
	}
	d, err := duration.Parse(args[0])
	if err != nil {
		return duration.Duration{}, &usageError{err: err}
	}
	return d, nil
}

func maxArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.MaximumNArgs(n)(cmd, args); err != nil {
			return &usageError{err: err}
		}
		return nil
	}
}

func newLoopCmd(app *Application, opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "loop [DURATION]",
		Short: "Keep the computer awake until the user stops it",
		Long: `Taps a harmless key every DURATION (default --time, 1:30) so the session
never goes idle. This command never finishes until the Escape key is pressed
three times in a row.`,
		Args: maxArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cadence, err := optionalDuration(args, opts.cfg.Interval)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), guard.Signals...)
			defer stop()

			return app.Loop(ctx, opts.cfg, cadence)
		},
	}
}

func newDoCmd(app *Application, opts *options) *cobra.Command {
	var usePTY bool

	cmd := &cobra.Command{
		Use:   "do [--pty] COMMAND [ARGS...]",
		Short: "Keep the computer awake while a command runs",
		Long: `Runs COMMAND and keeps the computer awake until it finishes. The exit
status of COMMAND becomes the exit status of caffeinate. Flags after COMMAND
are passed through to it.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return usageErrorf("do requires a COMMAND")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := *opts.cfg
			if usePTY {
				cfg.PTY = true
			}
			return app.Do(cmd.Context(), &cfg, args[0], args[1:])
		},
	}

	cmd.Flags().SetInterspersed(false)
	cmd.Flags().BoolVar(&usePTY, "pty", false, "attach COMMAND to a pseudo-terminal")
	return cmd
}

func newSleepCmd(app *Application, opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "sleep [DURATION]",
		Short: "Keep the computer awake for a given period of time",
		Long: `Keeps the computer awake for DURATION (default 1:30). DURATION is a number
with an optional h/m/s suffix or a string in the [[HH:]M]M:SS format.`,
		Args: maxArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := optionalDuration(args, opts.cfg.Sleep)
			if err != nil {
				return err
			}
			return app.Sleep(cmd.Context(), opts.cfg, d)
		},
	}
}
