// Package cli provides the command-line interface for graphexpr.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/graphexpr/pkg/graphexpr"
	"github.com/randalmurphal/graphexpr/pkg/graphexpr/config"
	"github.com/randalmurphal/graphexpr/pkg/graphexpr/graph"
	"github.com/randalmurphal/graphexpr/pkg/graphexpr/vector"
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
)

// options are the global flags shared by every command.
type options struct {
	configFile string
	verbose    bool
	seed       uint64
}

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	opts := &options{}
	rootCmd := &cobra.Command{
		Use:   "graphexpr",
		Short: "Compile and evaluate graph traversal expressions",
		Long: `graphexpr compiles traversal expressions to stack machine programs and
evaluates them against graph fixtures loaded from YAML or SQLite.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetVersionTemplate("{{.Name}} {{.Version}}\n")

	rootCmd.PersistentFlags().StringVar(&opts.configFile, "config", "", "engine config file (.yaml or .json); GRAPHEXPR_* variables override it")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log compiles and cache activity to stderr")
	rootCmd.PersistentFlags().Uint64Var(&opts.seed, "seed", 0, "random seed for evaluators (0 seeds randomly)")

	rootCmd.AddCommand(newCompileCommand(opts))
	rootCmd.AddCommand(newEvalCommand(opts))
	rootCmd.AddCommand(newImportCommand())
	rootCmd.AddCommand(newFuncsCommand())
	rootCmd.AddCommand(newVersionCommand())
	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// newEngine builds an engine from the global flags.
func (o *options) newEngine(cmd *cobra.Command) (*graphexpr.Engine, error) {
	level := slog.LevelWarn
	if o.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	engineOpts := []graphexpr.Option{graphexpr.WithLogger(logger)}
	cfg := config.New(nil)
	if o.configFile != "" {
		var err error
		if cfg, err = config.FromFile(o.configFile); err != nil {
			return nil, err
		}
	}
	// GRAPHEXPR_* variables override the config file.
	cfg = config.Merge(cfg, config.FromEnv(config.EnvPrefix, os.Environ()))
	if len(cfg.Keys()) > 0 {
		engineOpts = append(engineOpts, graphexpr.WithConfig(cfg))
	}
	if o.seed != 0 {
		engineOpts = append(engineOpts, graphexpr.WithSeed(o.seed))
	}

	eng := graphexpr.NewEngine(engineOpts...)
	if err := eng.Err(); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return eng, nil
}

// graphSource selects where a command loads its graph from.
type graphSource struct {
	yamlFile string
	dbFile   string
	name     string
}

func (s *graphSource) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&s.yamlFile, "graph", "g", "", "YAML graph fixture")
	cmd.Flags().StringVar(&s.dbFile, "db", "", "SQLite fixture store")
	cmd.Flags().StringVar(&s.name, "name", "", "graph name inside the SQLite store")
	cmd.MarkFlagsMutuallyExclusive("graph", "db")
}

func (s *graphSource) load() (*graph.Memgraph, error) {
	switch {
	case s.yamlFile != "":
		return graph.LoadYAMLFile(s.yamlFile, vector.Factory)
	case s.dbFile != "":
		if s.name == "" {
			return nil, fmt.Errorf("--name is required with --db")
		}
		store, err := graph.OpenSQLite(s.dbFile)
		if err != nil {
			return nil, err
		}
		defer store.Close()
		return store.Load(s.name, vector.Factory)
	}
	return graph.NewMemgraph("empty"), nil
}
