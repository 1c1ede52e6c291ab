package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/billing-olap/internal/config"
	"github.com/dvloznov/billing-olap/internal/logger"
	"github.com/dvloznov/billing-olap/internal/pipeline"
	"github.com/dvloznov/billing-olap/internal/staging"
)

const runTimeout = 15 * time.Minute

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "etl":
		runETL(os.Args[2:])
	case "sql":
		runSQL(os.Args[2:])
	case "load":
		runLoad(os.Args[2:])
	case "inspect":
		runInspect(os.Args[2:])
	case "runs":
		runRuns(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Billing OLAP CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  etl       Build the fact and dimension tables from the latest snapshot")
	fmt.Println("  sql       Stage the latest outputs and write create/load SQL scripts")
	fmt.Println("  load      Stage the latest outputs and load them into BigQuery")
	fmt.Println("  inspect   Show row counts and inferred column types of the latest outputs")
	fmt.Println("  runs      List recent ETL runs")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

// setup loads the configuration, binds the shared flags and parses args.
func setup(fs *flag.FlagSet, args []string, needWarehouse bool) (*config.Config, zerolog.Logger) {
	cfg, err := config.Load()
	if err != nil {
		log := logger.New()
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	cfg.RegisterFlags(fs)
	fs.Parse(args)

	log := logger.NewWithLevel(cfg.LogLevel)
	if err := cfg.Validate(needWarehouse); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}
	return cfg, log
}

func runETL(args []string) {
	fs := flag.NewFlagSet("etl", flag.ExitOnError)
	file := fs.String("file", "", "Read the snapshot from a local file instead of the object store")
	cfg, log := setup(fs, args, false)

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	env, err := openEnvironment(ctx, cfg, *file == "")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to set up")
	}
	defer env.Close()

	var source pipeline.SnapshotSource = staging.NewSnapshotSource(env.remote, cfg.DumpPrefix)
	if *file != "" {
		source = staging.FileSource{Path: *file}
	}

	log.Info().Str("env", cfg.Env).Msg("Starting ETL")

	state, err := env.runner(source, nil).RunTransform(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("ETL failed")
	}

	fmt.Printf("ETL run %s completed: %d of %d invoices in fact_invoices.\n",
		state.RunTS, state.Result.FactRows, state.Result.SourceInvoices)
	for _, uri := range state.OutputURIs {
		fmt.Printf("  %s\n", uri)
	}
}

func runSQL(args []string) {
	fs := flag.NewFlagSet("sql", flag.ExitOnError)
	dialectName := fs.String("dialect", "bigquery", "SQL dialect: bigquery or snowflake")
	stage := fs.String("stage", "", "Snowflake stage (defaults to SNOWFLAKE_STAGE)")
	cfg, log := setup(fs, args, false)

	if *stage != "" {
		cfg.SnowflakeStage = *stage
	}
	dialect, err := dialectFor(cfg, *dialectName)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid dialect")
	}

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	env, err := openEnvironment(ctx, cfg, false)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to set up")
	}
	defer env.Close()

	state, err := env.runner(nil, dialect).RunSQL(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("SQL generation failed")
	}

	fmt.Printf("Generated %d %s statements for outputs %s:\n", len(state.Statements), dialect.Name(), displayTS(state.Outputs.RunTS))
	for _, p := range state.Scripts {
		fmt.Printf("  %s\n", p)
	}
}

func runLoad(args []string) {
	fs := flag.NewFlagSet("load", flag.ExitOnError)
	cfg, log := setup(fs, args, true)

	if !cfg.IsProd() || cfg.StorageBackend != config.BackendGCS {
		log.Fatal().Msg("Error: load reads staged files from GCS; set ENV=PROD and STORAGE_BACKEND=gcs")
	}

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	env, err := openEnvironment(ctx, cfg, false)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to set up")
	}
	defer env.Close()

	state, err := env.runner(nil, env.warehouse.Dialect()).RunLoad(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Load failed")
	}

	fmt.Printf("Loaded %d tables into %s.%s from outputs %s.\n",
		len(state.Schemas), cfg.BQProjectID, cfg.BQDatasetID, displayTS(state.Outputs.RunTS))
}

func runInspect(args []string) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	cfg, log := setup(fs, args, false)

	ctx := context.Background()
	ctx = logger.WithContext(ctx, log)

	env, err := openEnvironment(ctx, cfg, false)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to set up")
	}
	defer env.Close()

	state, err := env.runner(nil, nil).Inspect(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Inspect failed")
	}

	fmt.Printf("\n=== Outputs %s ===\n", displayTS(state.Outputs.RunTS))
	for i, s := range state.Schemas {
		fmt.Printf("\n%s (%d rows)\n", s.Name, state.Tables[i].Len())
		for _, c := range s.Columns {
			fmt.Printf("  %-28s %s\n", c.Name, c.Type)
		}
	}
}

func runRuns(args []string) {
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	limit := fs.Int("limit", 20, "Number of runs to show")
	cfg, log := setup(fs, args, true)

	ctx := context.Background()
	ctx = logger.WithContext(ctx, log)

	env, err := openEnvironment(ctx, cfg, false)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to set up")
	}
	defer env.Close()

	runs, err := env.warehouse.ListRecentRuns(ctx, *limit)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list runs")
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RUN TS\tKIND\tSTATUS\tFACT ROWS\tDROPPED\tERROR")
	for _, r := range runs {
		errMsg := ""
		if r.ErrorMessage.Valid {
			errMsg = firstLine(r.ErrorMessage.StringVal)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.RunTS, r.Kind, r.Status, r.FactRows, r.DroppedInvoices, errMsg)
	}
	w.Flush()
}

func displayTS(ts string) string {
	if ts == "" {
		return "(local)"
	}
	return ts
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
