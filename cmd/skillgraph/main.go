package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/zeonlabs/skillgraph/pkg/composition"
	"github.com/zeonlabs/skillgraph/pkg/config"
	"github.com/zeonlabs/skillgraph/pkg/engine"
	"github.com/zeonlabs/skillgraph/pkg/machine"
	"github.com/zeonlabs/skillgraph/pkg/plan"
	"github.com/zeonlabs/skillgraph/pkg/telemetry"
)

const cliVersion = "dev"

type globalFlags struct {
	ConfigArgs []string
	JSON       bool
	Help       bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	global, args, err := parseGlobalFlags(os.Args[1:])
	if err != nil {
		fatal(err, global.JSON)
	}
	if global.Help || len(args) == 0 {
		printUsage()
		return
	}

	cfg, err := config.LoadWithCLI(global.ConfigArgs)
	if err != nil {
		fatal(NewConfigError(err, configPath(global.ConfigArgs)), global.JSON)
	}

	logger := telemetry.ConfigureSlog(os.Stderr, cfg.Log.Level, cfg.Log.Format)

	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitWithConfig(telemetry.ServiceName, cliVersion, telemetry.Config{
			Exporter:           cfg.Telemetry.Exporter,
			OTLPEndpoint:       cfg.Telemetry.OTLPEndpoint,
			OTLPInsecure:       cfg.Telemetry.OTLPInsecure,
			OTLPTimeoutSeconds: cfg.Telemetry.OTLPTimeoutSeconds,
		})
		if err != nil {
			fatal(err, global.JSON)
		}
		defer func() { _ = shutdown(context.Background()) }()
	}

	app := &appContext{cfg: cfg, global: global, logger: logger}

	switch cmd := args[0]; cmd {
	case "list":
		runList(ctx, app, args[1:])
	case "show":
		runShow(ctx, app, args[1:])
	case "search":
		runSearch(ctx, app, args[1:])
	case "check":
		runCheck(ctx, app, args[1:])
	case "graph":
		runGraph(ctx, app, args[1:])
	case "flatten":
		runFlatten(ctx, app, args[1:])
	case "plan":
		runPlan(ctx, app, args[1:])
	case "stats":
		runStats(ctx, app, args[1:])
	case "watch":
		runWatch(ctx, app, args[1:])
	case "help":
		printUsage()
	case "version":
		fmt.Println(cliVersion)
	default:
		fatal(fmt.Errorf("unknown command %q", cmd), global.JSON)
	}
}

func parseGlobalFlags(args []string) (globalFlags, []string, error) {
	var flags globalFlags
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			return flags, args[i+1:], nil
		}
		if !strings.HasPrefix(arg, "-") {
			return flags, args[i:], nil
		}
		switch {
		case arg == "-h" || arg == "--help":
			flags.Help = true
			return flags, nil, nil
		case arg == "--json":
			flags.JSON = true
		case arg == "--config":
			if i+1 >= len(args) {
				return flags, nil, fmt.Errorf("missing value for --config")
			}
			flags.ConfigArgs = append(flags.ConfigArgs, arg, args[i+1])
			i++
		case strings.HasPrefix(arg, "--config="):
			flags.ConfigArgs = append(flags.ConfigArgs, arg)
		case arg == "--set":
			if i+1 >= len(args) {
				return flags, nil, fmt.Errorf("missing value for --set")
			}
			flags.ConfigArgs = append(flags.ConfigArgs, arg, args[i+1])
			i++
		case strings.HasPrefix(arg, "--set="):
			flags.ConfigArgs = append(flags.ConfigArgs, arg)
		default:
			return flags, nil, fmt.Errorf("unknown global flag %q", arg)
		}
	}
	return flags, nil, nil
}

// configPath extracts the --config value from the raw config args, for
// error hints only.
func configPath(args []string) string {
	for i := 0; i < len(args); i++ {
		if args[i] == "--config" && i+1 < len(args) {
			return args[i+1]
		}
		if strings.HasPrefix(args[i], "--config=") {
			return strings.TrimPrefix(args[i], "--config=")
		}
	}
	return ""
}

// appContext bundles the loaded configuration with lazily built engine
// state shared by the subcommands.
type appContext struct {
	cfg    *config.Config
	global globalFlags
	logger *slog.Logger
}

// newEngine builds an engine over the configured skill directory with
// the machine database, audit store and validation mode wired in.
func newEngine(ctx context.Context, app *appContext) (*engine.Engine, func(), error) {
	dir := app.cfg.Registry.Dir
	if dir == "" {
		return nil, nil, NewInvalidArgumentError("registry.dir",
			"no skill directory configured; use --set registry.dir=<path>")
	}

	opts := []engine.Option{engine.WithLogger(app.logger)}
	cleanup := func() {}

	if app.cfg.Telemetry.Enabled {
		metrics, err := telemetry.NewValidationMetrics(ctx)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, engine.WithMetrics(metrics))
	}

	if app.cfg.Registry.MachineDB != "" {
		src, err := machineSource(app.cfg.Registry.MachineDB, app.cfg.Registry.Machine)
		if err != nil {
			return nil, nil, err
		}
		if src != nil {
			opts = append(opts, engine.WithParamSource(src))
		}
	}

	if app.cfg.Audit.Enabled {
		if app.cfg.Audit.Path != "" {
			store, err := plan.OpenSQLiteAuditStore(app.cfg.Audit.Path)
			if err != nil {
				return nil, nil, err
			}
			cleanup = func() { _ = store.Close() }
			opts = append(opts, engine.WithAuditStore(store))
		} else {
			opts = append(opts, engine.WithAuditStore(plan.NewMemoryAuditStore()))
		}
	}

	if !app.cfg.Validation.ExpandComposite {
		opts = append(opts, engine.WithoutExpansion())
	}

	e, err := engine.New(ctx, dir, opts...)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return e, cleanup, nil
}

func machineSource(path, machineID string) (composition.ParamSource, error) {
	db, err := machine.Load(path)
	if err != nil {
		return nil, err
	}
	if machineID == "" {
		return nil, nil
	}
	if !db.Has(machineID) {
		return nil, NewNotFoundError("machine", machineID)
	}
	return db.Source(machineID), nil
}

func newTabWriter() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
}

func writeRow(writer *tabwriter.Writer, cols ...string) {
	for i, col := range cols {
		cols[i] = normalizeCell(col)
	}
	fmt.Fprintln(writer, strings.Join(cols, "\t"))
}

func normalizeCell(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "-"
	}
	return strings.Join(strings.Fields(value), " ")
}

func truncate(value string, limit int) string {
	value = normalizeCell(value)
	if limit <= 0 || len(value) <= limit {
		return value
	}
	if limit <= 3 {
		return value[:limit]
	}
	return value[:limit-3] + "..."
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func printUsage() {
	fmt.Println(`skillgraph - skill registry and plan validation CLI

Usage:
  skillgraph [global flags] <command> [args]

Global flags:
  --config <path>      Path to a YAML config file
  --set key=value      Override config (repeatable), e.g. --set registry.dir=./skills
  --json               JSON output

Commands:
  list [--tier T0,T1,T2] [--all]
  show <skill>
  search <query>
  check
  graph [--output mermaid|dot|json] [--root <skill>]
  flatten <skill> [--input key=value ...] [--machine <id>]
  plan validate --file <plan.json|.yaml>
  stats
  watch [--interval <dur>]
  version`)
}
