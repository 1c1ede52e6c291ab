package main

import (
	"context"
	"crypto/sha256"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/billing-olap/internal/config"
	infra "github.com/dvloznov/billing-olap/internal/infra/bigquery"
	"github.com/dvloznov/billing-olap/internal/logger"
)

// Migration represents a single migration file
type Migration struct {
	Version  int
	Name     string
	Filename string
	SQL      string
	Checksum string
}

// AppliedMigration represents a migration that has already been applied
type AppliedMigration struct {
	Version   int
	Name      string
	AppliedAt time.Time
	Checksum  string
	AppliedBy string
}

// migrationPattern matches migration files: 0001_name.sql
var migrationPattern = regexp.MustCompile(`^(\d{4})_(.+)\.sql$`)

// target is the dataset migrations are applied to.
type target struct {
	projectID string
	datasetID string
}

func (t target) table(name string) string {
	return fmt.Sprintf("`%s.%s.%s`", t.projectID, t.datasetID, name)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log := logger.New()
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	appliedBy := flag.String("applied-by", "migrate-cli", "Name of the tool applying migrations")
	migrationsDir := flag.String("migrations", "migrations/bigquery", "Path to migrations directory")
	dryRun := flag.Bool("dry-run", false, "List pending migrations without applying them")
	cfg.RegisterFlags(flag.CommandLine)
	flag.Parse()

	log := logger.NewWithLevel(cfg.LogLevel)
	ctx := logger.WithContext(context.Background(), log)

	if err := cfg.Validate(true); err != nil {
		log.Fatal().Err(err).Msg("Error: -project (or BQ_PROJECT_ID) is required")
	}
	tgt := target{projectID: cfg.BQProjectID, datasetID: cfg.BQDatasetID}

	client, err := bigquery.NewClient(ctx, tgt.projectID, cfg.ClientOptions()...)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery client")
	}
	defer client.Close()

	log.Info().
		Str("project", tgt.projectID).
		Str("dataset", tgt.datasetID).
		Msg("Connected to BigQuery")

	if err := ensureSchemaMigrationsTable(ctx, client, tgt); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure schema_migrations table")
	}

	dir, err := resolveDir(*migrationsDir)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to find migrations")
	}
	migrations, err := readMigrations(log, dir, tgt)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read migrations")
	}
	log.Info().Int("count", len(migrations)).Msg("Found migration files")

	appliedMigrations, err := getAppliedMigrations(ctx, client, tgt)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to get applied migrations")
	}
	log.Info().Int("count", len(appliedMigrations)).Msg("Found already applied migrations")

	pending := pendingMigrations(log, migrations, appliedMigrations)

	appliedCount := 0
	for _, migration := range pending {
		label := fmt.Sprintf("%04d_%s", migration.Version, migration.Name)
		if *dryRun {
			log.Info().Str("migration", label).Msg("[PENDING]")
			continue
		}

		log.Info().Str("migration", label).Msg("[RUN]")

		if err := infra.ExecWithClient(ctx, client, migration.SQL); err != nil {
			log.Fatal().Err(err).Str("migration", label).Msg("Failed to execute migration")
		}

		if err := recordMigration(ctx, client, tgt, migration, *appliedBy); err != nil {
			log.Fatal().Err(err).Str("migration", label).Msg("Failed to record migration")
		}

		log.Info().Str("migration", label).Msg("[OK]")
		appliedCount++
	}

	switch {
	case *dryRun:
		log.Info().Int("pending", len(pending)).Msg("Dry run, nothing applied")
	case appliedCount == 0:
		log.Info().Msg("No new migrations to apply. Dataset is up to date.")
	default:
		log.Info().Int("applied", appliedCount).Msg("Successfully applied migrations")
	}
}

// ensureSchemaMigrationsTable creates the schema_migrations table if it doesn't exist
func ensureSchemaMigrationsTable(ctx context.Context, client *bigquery.Client, tgt target) error {
	sql := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			version       INT64 NOT NULL,
			name          STRING NOT NULL,
			applied_at    TIMESTAMP NOT NULL,
			checksum      STRING,
			applied_by    STRING
		)
	`, tgt.table("schema_migrations"))

	return infra.ExecWithClient(ctx, client, sql)
}

// resolveDir finds the migrations directory relative to the current
// directory or the repository root (when run from cmd/migrate).
func resolveDir(dir string) (string, error) {
	for _, candidate := range []string{dir, filepath.Join("..", "..", dir)} {
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("migrations directory not found: %s", dir)
}

// readMigrations reads all migration files from dir, sorted by version
func readMigrations(log zerolog.Logger, dir string, tgt target) ([]Migration, error) {
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading migrations directory: %w", err)
	}

	var migrations []Migration
	for _, file := range files {
		if file.IsDir() {
			continue
		}

		m, ok := parseMigrationName(file.Name())
		if !ok {
			log.Warn().Str("file", file.Name()).Msg("Skipping file with invalid format")
			continue
		}

		content, err := os.ReadFile(filepath.Join(dir, file.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading file %s: %w", file.Name(), err)
		}

		m.SQL = renderMigration(string(content), tgt)
		// Checksum the file as written, so the same migration applied to
		// another dataset keeps its checksum.
		m.Checksum = checksum(content)
		migrations = append(migrations, m)
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Version < migrations[j].Version
	})

	return migrations, nil
}

func parseMigrationName(filename string) (Migration, bool) {
	matches := migrationPattern.FindStringSubmatch(filename)
	if matches == nil {
		return Migration{}, false
	}
	version, err := strconv.Atoi(matches[1])
	if err != nil {
		return Migration{}, false
	}
	return Migration{Version: version, Name: matches[2], Filename: filename}, true
}

func renderMigration(sql string, tgt target) string {
	sql = strings.ReplaceAll(sql, "{{PROJECT_ID}}", tgt.projectID)
	return strings.ReplaceAll(sql, "{{DATASET_ID}}", tgt.datasetID)
}

func checksum(content []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(content))
}

// pendingMigrations returns the migrations not applied yet. An applied
// migration whose file changed since is reported and left alone.
func pendingMigrations(log zerolog.Logger, migrations []Migration, applied []AppliedMigration) []Migration {
	appliedByVersion := make(map[int]AppliedMigration, len(applied))
	for _, am := range applied {
		appliedByVersion[am.Version] = am
	}

	var pending []Migration
	for _, m := range migrations {
		am, ok := appliedByVersion[m.Version]
		if !ok {
			pending = append(pending, m)
			continue
		}
		if am.Checksum != "" && am.Checksum != m.Checksum {
			log.Warn().
				Str("migration", fmt.Sprintf("%04d_%s", m.Version, m.Name)).
				Time("applied_at", am.AppliedAt).
				Msg("[CHANGED] applied migration differs from its file")
			continue
		}
		log.Debug().
			Str("migration", fmt.Sprintf("%04d_%s", m.Version, m.Name)).
			Msg("[SKIP] already applied")
	}
	return pending
}

// getAppliedMigrations retrieves the list of already applied migrations
func getAppliedMigrations(ctx context.Context, client *bigquery.Client, tgt target) ([]AppliedMigration, error) {
	sql := fmt.Sprintf(`
		SELECT version, name, applied_at, checksum, applied_by
		FROM %s
		ORDER BY version ASC
	`, tgt.table("schema_migrations"))

	it, err := client.Query(sql).Read(ctx)
	if err != nil {
		// If table doesn't exist yet, return empty list
		if strings.Contains(err.Error(), "Not found") {
			return []AppliedMigration{}, nil
		}
		return nil, fmt.Errorf("reading applied migrations: %w", err)
	}

	var applied []AppliedMigration
	for {
		var row struct {
			Version   int64               `bigquery:"version"`
			Name      string              `bigquery:"name"`
			AppliedAt time.Time           `bigquery:"applied_at"`
			Checksum  bigquery.NullString `bigquery:"checksum"`
			AppliedBy bigquery.NullString `bigquery:"applied_by"`
		}

		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterating results: %w", err)
		}

		applied = append(applied, AppliedMigration{
			Version:   int(row.Version),
			Name:      row.Name,
			AppliedAt: row.AppliedAt,
			Checksum:  row.Checksum.StringVal,
			AppliedBy: row.AppliedBy.StringVal,
		})
	}

	return applied, nil
}

// recordMigration records a successfully applied migration in schema_migrations
func recordMigration(ctx context.Context, client *bigquery.Client, tgt target, migration Migration, appliedBy string) error {
	sql := fmt.Sprintf(`
		INSERT INTO %s
		(version, name, applied_at, checksum, applied_by)
		VALUES (@version, @name, CURRENT_TIMESTAMP(), @checksum, @applied_by)
	`, tgt.table("schema_migrations"))

	return infra.ExecWithClient(ctx, client, sql,
		bigquery.QueryParameter{Name: "version", Value: migration.Version},
		bigquery.QueryParameter{Name: "name", Value: migration.Name},
		bigquery.QueryParameter{Name: "checksum", Value: migration.Checksum},
		bigquery.QueryParameter{Name: "applied_by", Value: appliedBy},
	)
}
