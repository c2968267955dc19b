// Command focusd tracks the foreground application context on macOS and
// emits one line per focus transition or clipboard change.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"focusd/internal/ax"
	"focusd/internal/clipboard"
	"focusd/internal/config"
	"focusd/internal/focus"
	"focusd/internal/logging"
	"focusd/internal/observer"
	"focusd/internal/procinfo"
	"focusd/internal/sink"
	"focusd/internal/tracker"
	"focusd/internal/trust"
)

var version = "0.3.0"

func main() {
	app := &cli.App{
		Name:    "focusd",
		Usage:   "foreground focus context tracker",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to config file",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "minimum log level (debug, info, warn, error)",
			},
		},
		Commands: []*cli.Command{
			runCommand(),
			checkCommand(),
			probeCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "focusd:", err)
		os.Exit(1)
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.NewLoader(c.String("config")).Load()
	if err != nil {
		return nil, err
	}
	if lv := c.String("log-level"); lv != "" {
		cfg.Logging.Level = lv
	}
	return cfg, nil
}

func buildLogger(cfg *config.Config) (*logging.Logger, error) {
	lc := logging.DefaultConfig()
	if level, err := logging.ParseLevel(cfg.Logging.Level); err == nil {
		lc.Level = level
	}
	if cfg.Logging.Format == "json" {
		lc.Format = logging.FormatJSON
	}
	if cfg.Logging.Output != "" {
		lc.Output = cfg.Logging.Output
	}
	if cfg.Logging.FilePath != "" {
		lc.FilePath = cfg.Logging.FilePath
	}

	log, err := logging.New(lc)
	if err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}
	logging.SetDefault(log)
	return log, nil
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "track focus transitions until interrupted",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "format",
				Usage: "output format: json or text",
			},
			&cli.DurationFlag{
				Name:  "clipboard-interval",
				Usage: "clipboard poll interval (0 disables clipboard tracking)",
			},
			&cli.BoolFlag{
				Name:  "no-prompt",
				Usage: "never show the accessibility permission prompt",
			},
			&cli.StringFlag{
				Name:  "store",
				Usage: "also archive events to a SQLite database at this path",
			},
			&cli.BoolFlag{
				Name:  "net",
				Usage: "attach open TCP connections of the activated process",
			},
			&cli.StringFlag{
				Name:  "policy",
				Usage: "YAML probe policy file",
			},
		},
		Action: runAction,
	}
}

func runAction(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if err := applyRunFlags(cfg, c); err != nil {
		return err
	}

	log, err := buildLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Close()

	policy, err := config.LoadPolicy(cfg.Probes.PolicyPath)
	if err != nil {
		return fmt.Errorf("load probe policy: %w", err)
	}

	backend, err := ax.SystemBackend()
	if err != nil {
		return err
	}
	rt, err := observer.SystemRuntime()
	if err != nil {
		return err
	}

	out, err := buildSink(cfg)
	if err != nil {
		return err
	}
	defer out.Close()

	var pb clipboard.Pasteboard
	if cfg.Clipboard.Enabled {
		pb = clipboard.SystemPasteboard()
	}

	engine, err := tracker.New(tracker.Options{
		Config:      cfg,
		Backend:     backend,
		Runtime:     rt,
		Activations: observer.NewWorkspaceSource(cfg.ActivationPoll()),
		Gate:        trust.System(),
		Pasteboard:  pb,
		Sink:        out,
		Policy:      policy,
		Log:         log,
	})
	if err != nil {
		return err
	}

	if cfg.Probes.HotReload && cfg.Probes.PolicyPath != "" {
		watcher, err := config.WatchPolicy(cfg.Probes.PolicyPath, engine.UpdatePolicy)
		if err != nil {
			log.Warn("policy hot reload unavailable", "error", err)
		} else {
			defer watcher.Close()
			go func() {
				for err := range watcher.Errors() {
					log.Warn("policy reload failed", "error", err)
				}
			}()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return engine.Run(ctx)
}

// applyRunFlags lays command-line flags over the loaded config. Flags
// land after Load()'s validation, so values that would have been
// rejected there are rejected here.
func applyRunFlags(cfg *config.Config, c *cli.Context) error {
	if f := c.String("format"); f != "" {
		if f != "json" && f != "text" {
			return fmt.Errorf("unknown output format %q: must be json or text", f)
		}
		cfg.Output.Format = f
	}
	if c.IsSet("clipboard-interval") {
		d := c.Duration("clipboard-interval")
		if d <= 0 {
			cfg.Clipboard.Enabled = false
		} else {
			cfg.Clipboard.Enabled = true
			cfg.Clipboard.PollIntervalMs = int(d / time.Millisecond)
		}
	}
	if c.Bool("no-prompt") {
		cfg.Trust.Prompt = false
	}
	if s := c.String("store"); s != "" {
		cfg.Output.StorePath = s
	}
	if c.Bool("net") {
		cfg.Tracker.NetEnrichment = true
	}
	if p := c.String("policy"); p != "" {
		cfg.Probes.PolicyPath = p
	}
	return nil
}

// buildSink assembles the stdout emitter plus the optional archive.
func buildSink(cfg *config.Config) (sink.Sink, error) {
	var line sink.Sink
	if cfg.Output.Format == "text" {
		line = sink.NewTextSink(os.Stdout)
	} else {
		line = sink.NewJSONSink(os.Stdout)
	}

	if cfg.Output.StorePath == "" {
		return line, nil
	}
	archive, err := sink.OpenArchive(cfg.Output.StorePath)
	if err != nil {
		return nil, fmt.Errorf("open event archive: %w", err)
	}
	return sink.NewMultiSink(line, archive), nil
}

func checkCommand() *cli.Command {
	return &cli.Command{
		Name:  "check",
		Usage: "report accessibility permission state",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "prompt",
				Usage: "show the system permission prompt if untrusted",
			},
		},
		Action: func(c *cli.Context) error {
			level := trust.System().Check(c.Bool("prompt"))
			fmt.Printf("accessibility: %s\n", level)
			if level != trust.Trusted {
				return cli.Exit("focusd will run in degraded mode (app identity only)", 1)
			}
			return nil
		},
	}
}

func probeCommand() *cli.Command {
	return &cli.Command{
		Name:      "probe",
		Usage:     "resolve the focus context of one process and print it",
		ArgsUsage: "--pid <pid>",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:     "pid",
				Usage:    "process id to probe",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "bundle-id",
				Usage: "bundle id used to select the probe policy chains",
			},
			&cli.StringFlag{
				Name:  "policy",
				Usage: "YAML probe policy file",
			},
		},
		Action: probeAction,
	}
}

// probeAction is a one-shot resolution of window, tab, and details for
// a process. Useful for building per-app policy chains.
func probeAction(c *cli.Context) error {
	if trust.System().Check(false) != trust.Trusted {
		return cli.Exit("accessibility permission not granted; run `focusd check --prompt`", 1)
	}

	backend, err := ax.SystemBackend()
	if err != nil {
		return err
	}
	policy, err := config.LoadPolicy(c.String("policy"))
	if err != nil {
		return err
	}

	pid := int32(c.Int("pid"))
	ctxOut := focus.Context{PID: pid, BundleID: c.String("bundle-id"), EnteredAt: time.Now()}
	if info, err := procinfo.Lookup(pid); err == nil {
		ctxOut.AppName = info.Name
		if ctxOut.BundleID == "" {
			ctxOut.BundleID = procinfo.BundleIDGuess(info.Exe)
		}
	}

	appRef, code := backend.AppElement(pid)
	if code != ax.CodeSuccess {
		return fmt.Errorf("application element for pid %d: %w", pid, ax.Classify(code, "probe"))
	}
	app, err := ax.Adopt(backend, appRef)
	if err != nil {
		return err
	}
	defer app.Release()

	win, err := ax.ElementAttr(backend, app.Ref(), ax.AttrFocusedWindow)
	if err != nil {
		return err
	}
	if win != nil {
		defer win.Release()
		if title, ok, _ := ax.StringAttr(backend, win.Ref(), ax.AttrTitle); ok {
			ctxOut.WindowTitle = title
			ctxOut.TabTitle = title
		}
		if group, err := ax.FindFirst(backend, win.Ref(), ax.RoleIs(ax.RoleTabGroup), 0, 0); err == nil && group != nil {
			if t, ok, _ := ax.FindSelectedChild(backend, group.Ref(), 0); ok {
				ctxOut.TabTitle = t
			}
			group.Release()
		}
		d, err := focus.ResolveDetails(backend, app.Ref(), win.Ref(), policy.For(ctxOut.BundleID))
		if err == nil {
			ctxOut.URL = d.URL
			ctxOut.DocumentPath = d.DocumentPath
			ctxOut.SelectedText = d.SelectedText
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(ctxOut)
}

func init() {
	cli.VersionPrinter = func(c *cli.Context) {
		fmt.Printf("focusd %s (%s/%s, %s)\n", c.App.Version, runtime.GOOS, runtime.GOARCH, runtime.Version())
	}
}
