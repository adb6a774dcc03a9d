// Command pipewatch watches the Windows named-pipe namespace: it lists the
// pipes that exist, reports every appearance and disappearance, and connects
// to newly seen pipes to capture and classify whatever their owners write.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/pipewatch/pipewatch/internal/config"
	"github.com/pipewatch/pipewatch/internal/enumerate"
	"github.com/pipewatch/pipewatch/internal/event"
	"github.com/pipewatch/pipewatch/internal/filter"
	"github.com/pipewatch/pipewatch/internal/logging"
	"github.com/pipewatch/pipewatch/internal/metrics"
	"github.com/pipewatch/pipewatch/internal/monitor"
	"github.com/pipewatch/pipewatch/internal/pipes"
	"github.com/pipewatch/pipewatch/internal/render"
	"github.com/pipewatch/pipewatch/internal/session"
	"github.com/pipewatch/pipewatch/internal/ws"
)

func main() {
	app := &cli.App{
		Name:  "pipewatch",
		Usage: "Discover named pipes and capture what flows through them",
		Description: `Polls the \\.\pipe\ namespace, reports pipes appearing and disappearing,
and connects to newly seen pipes to read and classify the bytes their owners
send. An active debugging client, not a passive tap: every byte shown here
was consumed from the pipe.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to the YAML config file",
				Value:   "pipewatch.yaml",
			},
			&cli.StringFlag{
				Name:    "method",
				Aliases: []string{"m"},
				Usage:   "enumeration method: fast, native or external",
			},
			&cli.StringSliceFlag{
				Name:    "pattern",
				Aliases: []string{"p"},
				Usage:   "glob pattern for pipe names (repeatable, case-insensitive)",
			},
			&cli.DurationFlag{
				Name:    "interval",
				Aliases: []string{"i"},
				Usage:   "time between enumeration ticks",
			},
			&cli.BoolFlag{
				Name:    "list",
				Aliases: []string{"l"},
				Usage:   "enumerate once, print the listing and exit",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "listing format: table, sections or csv",
			},
			&cli.StringFlag{
				Name:  "tool",
				Usage: "listing executable for the external method",
			},
			&cli.BoolFlag{
				Name:  "no-messages",
				Usage: "track pipe lifecycle only, never connect or read",
			},
			&cli.BoolFlag{
				Name:    "quiet",
				Aliases: []string{"q"},
				Usage:   "hide session connect/disconnect lines",
			},
			&cli.BoolFlag{
				Name:  "no-errors",
				Usage: "hide session failure lines",
			},
			&cli.BoolFlag{
				Name:  "no-owners",
				Usage: "skip resolving owner processes for new pipes",
			},
			&cli.BoolFlag{
				Name:  "serve",
				Usage: "expose the live feed (websocket, JSON API, metrics)",
			},
			&cli.StringFlag{
				Name:  "addr",
				Usage: "live feed listen address (host:port)",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "log verbosity: debug, info, warn or error",
			},
			&cli.BoolFlag{
				Name:  "no-color",
				Usage: "disable styled console output",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "pipewatch: %v\n", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg, err := config.LoadOrDefault(c.String("config"))
	if err != nil {
		return err
	}
	if err := applyFlags(c, cfg); err != nil {
		return err
	}

	log, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer log.Sync()

	filters, err := filter.Compile(cfg.Monitor.Patterns)
	if err != nil {
		return err
	}
	enum, err := enumerate.New(cfg.Monitor.Method, cfg.Monitor.ExternalTool, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Monitor.ListOnly {
		return listOnce(ctx, cfg, enum, filters)
	}
	return watch(ctx, cfg, enum, filters, log)
}

// applyFlags lays explicit CLI flags over the file and environment values.
func applyFlags(c *cli.Context, cfg *config.Config) error {
	if c.IsSet("method") {
		cfg.Monitor.Method = c.String("method")
	}
	if c.IsSet("pattern") {
		cfg.Monitor.Patterns = c.StringSlice("pattern")
	}
	if c.IsSet("interval") {
		cfg.Monitor.Interval = c.Duration("interval")
	}
	if c.IsSet("list") {
		cfg.Monitor.ListOnly = true
	}
	if c.IsSet("format") {
		cfg.Output.Format = c.String("format")
	}
	if c.IsSet("tool") {
		cfg.Monitor.ExternalTool = c.String("tool")
	}
	if c.IsSet("no-messages") {
		cfg.Monitor.DisableMessages = true
	}
	if c.IsSet("quiet") {
		cfg.Output.Quiet = true
	}
	if c.IsSet("no-errors") {
		cfg.Output.HideErrors = true
	}
	if c.IsSet("no-owners") {
		cfg.Monitor.ResolveOwners = false
	}
	if c.IsSet("serve") {
		cfg.Server.Enabled = true
	}
	if c.IsSet("addr") {
		host, portStr, err := net.SplitHostPort(c.String("addr"))
		if err != nil {
			return fmt.Errorf("--addr: %w", err)
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return fmt.Errorf("--addr port: %w", err)
		}
		cfg.Server.Host, cfg.Server.Port = host, port
	}
	if c.IsSet("log-level") {
		cfg.Logging.Level = c.String("log-level")
	}
	if c.IsSet("no-color") {
		cfg.Output.Color = false
	}
	return cfg.Validate()
}

// listOnce runs a single enumeration and renders it. No sessions, no loop.
func listOnce(ctx context.Context, cfg *config.Config, enum enumerate.Enumerator, filters *filter.Set) error {
	infos, err := enum.Pipes(ctx)
	if err != nil {
		return fmt.Errorf("enumerate: %w", err)
	}

	snap := filters.Apply(infos)
	list := make([]pipes.Info, 0, len(snap))
	for _, info := range snap {
		list = append(list, info)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })

	return render.Listing(os.Stdout, cfg.Output.Format, list, cfg.Output.Color)
}

// watch runs the monitor loop until interrupted, with the live feed server
// alongside it when enabled.
func watch(ctx context.Context, cfg *config.Config, enum enumerate.Enumerator, filters *filter.Set, log *logging.Logger) error {
	store := session.NewStore()
	registry := prometheus.NewRegistry()
	mts := metrics.New(registry)

	console := event.NewConsole(os.Stdout, cfg.Output.Color)
	sinks := []event.Sink{
		event.Suppress{Next: console, Quiet: cfg.Output.Quiet, HideErrors: cfg.Output.HideErrors},
		mts.Sink(),
	}

	var broadcaster *ws.Broadcaster
	if cfg.Server.Enabled {
		broadcaster = ws.NewBroadcaster(store, cfg.Server.BroadcastThrottle,
			cfg.Server.SnapshotInterval, cfg.Server.MaxConns, log)
		defer broadcaster.Stop()
		sinks = append(sinks, broadcaster)
	}

	var owners *enumerate.OwnerResolver
	if cfg.Monitor.ResolveOwners {
		owners = enumerate.NewOwnerResolver(log)
	}

	mon := monitor.New(monitor.Options{
		Enumerator:     enum,
		Filters:        filters,
		Dialer:         session.PipeDialer{},
		Sink:           event.Multi(sinks...),
		Store:          store,
		Metrics:        mts,
		Logger:         log,
		Owners:         owners,
		Interval:       cfg.Monitor.Interval,
		ConnectTimeout: cfg.Monitor.ConnectTimeout,
		Messages:       !cfg.Monitor.DisableMessages,
	})

	if cfg.Server.Enabled {
		broadcaster.SetPipesHook(mon.Pipes)
		srv := ws.NewServer(cfg.Server.Addr(), store, broadcaster, registry, log)
		go func() {
			if err := srv.Start(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("live feed server", zap.Error(err))
			}
		}()
	}

	mon.Run(ctx)
	return nil
}
