// Command codegraph drives the indexing pipeline (spec §6 CLI
// surface): `index` runs filesystem enumeration through cross-language
// linking into a local cache, `materialize` streams a built cache into
// a Neo4j-compatible graph store. Grounded on the teacher's cobra usage
// (demo/cmd/main.go's rootCmd/subcommand wiring), generalized from a
// single flag-driven runner to named subcommands with their own flags,
// matching the "index and materialize accept a path to the
// configuration and optional overrides" surface spec §6 describes.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/codegraph/indexer/internal/ast"
	"github.com/codegraph/indexer/internal/collector"
	"github.com/codegraph/indexer/internal/collector/jsfamily"
	"github.com/codegraph/indexer/internal/collector/phpfamily"
	"github.com/codegraph/indexer/internal/config"
	"github.com/codegraph/indexer/internal/materialize"
	"github.com/codegraph/indexer/internal/pipeline"
	"github.com/codegraph/indexer/internal/store"
)

// Exit codes (spec §6): 0 success, 2 configuration error, 3 store
// connection error, 4 irrecoverable pipeline error.
const (
	exitOK            = 0
	exitConfigError   = 2
	exitStoreError    = 3
	exitPipelineError = 4
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()

	var (
		configPath       string
		graphEndpoint    string
		wipeBeforeImport bool
		wipeFlagSet      bool
		importStrategy   string
		parallelWorkers  int
	)

	exitCode := exitOK

	rootCmd := &cobra.Command{
		Use:   "codegraph",
		Short: "Build and materialize a code knowledge graph",
	}

	indexCmd := &cobra.Command{
		Use:   "index",
		Short: "Parse the project and stage symbols/references into the cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, exit, err := loadConfig(configPath, graphEndpoint, wipeBeforeImport, wipeFlagSet, importStrategy, parallelWorkers)
			if err != nil {
				exitCode = exit
				return err
			}

			db, err := store.Connect(cfg.Storage.CachePath, false)
			if err != nil {
				exitCode = exitStoreError
				return fmt.Errorf("connect to cache: %w", err)
			}
			w := store.NewWriter(db, cfg.Import.NodeBatch)

			p := pipeline.New(pipeline.Options{
				Root:           cfg.Project.Root,
				IgnorePatterns: cfg.Parsing.IgnorePatterns,
				FollowSymlinks: cfg.Parsing.FollowSymlinks,
				MaxFileSize:    cfg.Parsing.MaxFileSize,
				FileTimeout:    time.Duration(cfg.Parsing.FileTimeoutMS) * time.Millisecond,
				Workers:        cfg.Import.ParallelWorkers,
				Driver:         ast.NewDriver(ast.DefaultGrammars()...),
				Collectors:     buildCollectors(),
				MetadataRules:  cfg.MetadataRules(),
				Log:            log,
			})

			stats, err := p.Index(cmd.Context(), w, db)
			if err != nil {
				exitCode = exitPipelineError
				return fmt.Errorf("index run: %w", err)
			}
			log.Info().
				Int("files_scanned", stats.FilesScanned).
				Int("files_parsed", stats.FilesParsed).
				Int("files_skipped", stats.FilesSkipped).
				Msg("index complete")
			return nil
		},
	}

	materializeCmd := &cobra.Command{
		Use:   "materialize",
		Short: "Stream a built cache into the graph store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, exit, err := loadConfig(configPath, graphEndpoint, wipeBeforeImport, wipeFlagSet, importStrategy, parallelWorkers)
			if err != nil {
				exitCode = exit
				return err
			}

			db, err := store.OpenReader(cfg.Storage.CachePath)
			if err != nil {
				exitCode = exitStoreError
				return fmt.Errorf("open cache: %w", err)
			}

			ctx := cmd.Context()
			m, err := materialize.Open(ctx, materialize.Config{
				URI: cfg.Graph.Endpoint, Username: cfg.Graph.Username, Password: cfg.Graph.Password,
				Database: cfg.Graph.Database, BatchSize: cfg.Import.RelationshipBatch, Workers: cfg.Import.ParallelWorkers,
			}, log)
			if err != nil {
				exitCode = exitStoreError
				return fmt.Errorf("connect to graph store: %w", err)
			}
			defer m.Close(ctx)

			p := pipeline.New(pipeline.Options{Log: log})
			if _, err := p.Materialize(ctx, db, m, cfg.Graph.WipeBeforeImport, cfg.Import.RelationshipBatch); err != nil {
				exitCode = exitPipelineError
				return fmt.Errorf("materialize: %w", err)
			}
			return nil
		},
	}

	for _, c := range []*cobra.Command{indexCmd, materializeCmd} {
		c.Flags().StringVar(&configPath, "config", "codegraph.yaml", "path to the project configuration")
		c.Flags().StringVar(&graphEndpoint, "graph-endpoint", "", "override graph.endpoint")
		c.Flags().BoolVar(&wipeBeforeImport, "wipe-before-import", false, "override graph.wipe_before_import")
		c.Flags().StringVar(&importStrategy, "import-strategy", "", "override import.strategy")
		c.Flags().IntVar(&parallelWorkers, "parallel-workers", 0, "override import.parallel_workers")
		c.PreRun = func(cmd *cobra.Command, args []string) {
			wipeFlagSet = cmd.Flags().Changed("wipe-before-import")
		}
	}

	rootCmd.AddCommand(indexCmd, materializeCmd)
	rootCmd.SetArgs(args)

	if err := rootCmd.Execute(); err != nil {
		if exitCode == exitOK {
			exitCode = exitPipelineError
		}
		fmt.Fprintln(os.Stderr, err)
		return exitCode
	}
	return exitCode
}

func loadConfig(path, endpoint string, wipe bool, wipeSet bool, strategy string, workers int) (*config.Config, int, error) {
	overrides := config.Overrides{GraphEndpoint: endpoint, ImportStrategy: strategy, ParallelWorkers: workers}
	if wipeSet {
		overrides.WipeBeforeImport = &wipe
	}
	cfg, err := config.Load(path, overrides)
	if err != nil {
		return nil, exitConfigError, fmt.Errorf("load configuration: %w", err)
	}
	return cfg, exitOK, nil
}

func buildCollectors() map[string]collector.Collector {
	return map[string]collector.Collector{
		ast.LangPHP:        phpfamily.New(),
		ast.LangJavaScript: jsfamily.NewJavaScript(),
		ast.LangTypeScript: jsfamily.NewTypeScript(),
	}
}
