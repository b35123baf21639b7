// Package config loads engine configuration through a layered pipeline:
// built-in defaults, then an optional YAML file, then SKILLGRAPH_*
// environment variables, then explicit --set overrides.
package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Log        LogConfig        `koanf:"log"`
	Registry   RegistryConfig   `koanf:"registry"`
	Telemetry  TelemetryConfig  `koanf:"telemetry"`
	Audit      AuditConfig      `koanf:"audit"`
	Validation ValidationConfig `koanf:"validation"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json, text
}

type RegistryConfig struct {
	// Dir holds the skill documents, one YAML/JSON file per skill.
	Dir string `koanf:"dir"`
	// MachineDB is an optional machine database path for waypoint
	// parameter resolution.
	MachineDB string `koanf:"machine_db"`
	// Machine selects the machine entry bound during flattening.
	Machine string `koanf:"machine"`
	// WatchInterval is the snapshot reload poll interval in seconds;
	// zero disables watching.
	WatchIntervalSeconds int `koanf:"watch_interval_seconds"`
}

type TelemetryConfig struct {
	Enabled            bool   `koanf:"enabled"`
	Exporter           string `koanf:"exporter"` // stdout, otlp
	OTLPEndpoint       string `koanf:"otlp_endpoint"`
	OTLPInsecure       bool   `koanf:"otlp_insecure"`
	OTLPTimeoutSeconds int    `koanf:"otlp_timeout_seconds"`
}

type AuditConfig struct {
	Enabled bool `koanf:"enabled"`
	// Path is the SQLite database file; empty selects the in-memory
	// store.
	Path string `koanf:"path"`
}

type ValidationConfig struct {
	// ExpandComposite flattens composite plan steps during validation so
	// unresolvable compositions reject the plan up front.
	ExpandComposite bool `koanf:"expand_composite"`
}

// Load builds configuration from defaults, the optional file at path,
// and the environment.
func Load(path string) (*Config, error) {
	return load(path, nil)
}

// LoadWithCLI parses --config and --set arguments and applies them on
// top of the file/env pipeline. --set values use dotted keys, for
// example --set registry.dir=./skills.
func LoadWithCLI(args []string) (*Config, error) {
	path := ""
	var sets []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--config":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("missing value for --config")
			}
			path = args[i+1]
			i++
		case strings.HasPrefix(arg, "--config="):
			path = strings.TrimPrefix(arg, "--config=")
		case arg == "--set":
			if i+1 >= len(args) {
				return nil, fmt.Errorf("missing value for --set")
			}
			sets = append(sets, args[i+1])
			i++
		case strings.HasPrefix(arg, "--set="):
			sets = append(sets, strings.TrimPrefix(arg, "--set="))
		default:
			return nil, fmt.Errorf("unknown config argument %q", arg)
		}
	}
	return load(path, sets)
}

func load(path string, sets []string) (*Config, error) {
	k := koanf.New(".")

	// Defaults
	k.Set("log.level", "info")
	k.Set("log.format", "text")
	k.Set("registry.dir", "./skills")
	k.Set("registry.watch_interval_seconds", 0)
	k.Set("telemetry.enabled", false)
	k.Set("telemetry.exporter", "stdout")
	k.Set("audit.enabled", false)
	k.Set("validation.expand_composite", true)

	// 1. Load from file
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	// 2. Load from ENV (SKILLGRAPH_REGISTRY_DIR -> registry.dir)
	if err := k.Load(env.Provider("SKILLGRAPH_", ".", envKeyToPath), nil); err != nil {
		return nil, err
	}

	// 3. Explicit --set overrides
	for _, pair := range sets {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --set %q (want key=value)", pair)
		}
		k.Set(key, coerceScalar(value))
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKeyToPath maps an environment variable to its config key. Only the
// first underscore separates the section from the key; the remainder
// stays verbatim so multi-word keys like registry.machine_db and
// telemetry.otlp_endpoint stay reachable. Every section name is a
// single word, so this split is unambiguous.
func envKeyToPath(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, "SKILLGRAPH_"))
	section, rest, ok := strings.Cut(s, "_")
	if !ok {
		return s
	}
	return section + "." + rest
}

// coerceScalar converts CLI override strings to bool/number where they
// parse as one, matching how the YAML layer would type them.
func coerceScalar(value string) any {
	if b, err := strconv.ParseBool(value); err == nil {
		return b
	}
	if n, err := strconv.Atoi(value); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		return f
	}
	return value
}
