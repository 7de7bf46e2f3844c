package main

import (
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/shuntaka9576/agentoast/internal/config"
	"github.com/shuntaka9576/agentoast/internal/logging"
	"github.com/shuntaka9576/agentoast/internal/store"
)

// normalizeArgs reorders args so flags come before positional arguments.
// Go's flag package stops parsing at the first non-flag argument, which means
// "delete 12 --verbose" silently ignores --verbose. This function moves all
// flags to the front so they get parsed correctly.
func normalizeArgs(fs *flag.FlagSet, args []string) []string {
	// Boolean flags don't consume a value argument
	boolFlags := make(map[string]bool)
	fs.VisitAll(func(f *flag.Flag) {
		if bf, ok := f.Value.(interface{ IsBoolFlag() bool }); ok && bf.IsBoolFlag() {
			boolFlags[f.Name] = true
		}
	})

	var flags, positional []string
	for i := 0; i < len(args); i++ {
		arg := args[i]

		// "--" terminates flag processing
		if arg == "--" {
			positional = append(positional, args[i+1:]...)
			break
		}

		if strings.HasPrefix(arg, "-") && arg != "-" {
			flags = append(flags, arg)

			name := strings.TrimLeft(arg, "-")

			// --flag=value carries its value inside the arg
			if strings.Contains(name, "=") {
				continue
			}

			if !boolFlags[name] && i+1 < len(args) {
				i++
				flags = append(flags, args[i])
			}
		} else {
			positional = append(positional, arg)
		}
	}
	return append(flags, positional...)
}

// metaFlag collects repeatable --meta KEY=VALUE pairs.
type metaFlag map[string]string

func (m metaFlag) String() string {
	if len(m) == 0 {
		return ""
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + m[k]
	}
	return strings.Join(parts, ",")
}

func (m metaFlag) Set(value string) error {
	key, val, ok := strings.Cut(value, "=")
	if !ok || key == "" {
		return fmt.Errorf("expected KEY=VALUE, got %q", value)
	}
	m[key] = val
	return nil
}

// openStore opens the profile's notification database.
func openStore() (*store.Store, error) {
	dbPath, err := config.DBPath()
	if err != nil {
		return nil, fmt.Errorf("resolving database path: %w", err)
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return st, nil
}

// loadConfig returns the user config, degrading to defaults when the file
// is broken so one bad edit never takes down every command.
func loadConfig() *config.UserConfig {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: config unreadable, using defaults: %v\n", err)
		return &config.UserConfig{}
	}
	return cfg
}

// initServiceLogging sets up rotating file logs for long-running commands
// (daemon, panel, web).
func initServiceLogging(cfg *config.UserConfig, stderr bool) {
	logDir, err := config.LogDir()
	if err != nil {
		logDir = ""
	}
	logging.Init(logging.Config{
		LogDir:     logDir,
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.GetCompress(),
		Stderr:     stderr,
	})
}

// initCLILogging sets up logging for one-shot commands: warnings to stderr,
// everything to the log file only when verbose is requested.
func initCLILogging(cfg *config.UserConfig, verbose bool) {
	if verbose {
		initServiceLogging(cfg, true)
		return
	}
	logging.Init(logging.Config{Stderr: true, Level: cfg.Log.Level})
}

// fail prints an error and exits non-zero.
func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
