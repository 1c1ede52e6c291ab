package schema

import (
	"fmt"
	"strings"
)

// Statement kinds.
const (
	KindCreate = "create"
	KindLoad   = "load"
)

// Statement is one generated SQL statement for one table.
type Statement struct {
	Table string
	Kind  string
	SQL   string
}

// Dialect renders statements for one warehouse. Every statement is safe to
// re-run.
type Dialect interface {
	Name() string
	TypeName(WarehouseType) string
	CreateTable(s TableSchema) string
	LoadTable(s TableSchema, uri string) string
}

// BigQueryDialect targets a BigQuery dataset.
type BigQueryDialect struct {
	ProjectID string
	DatasetID string
}

func (BigQueryDialect) Name() string { return "bigquery" }

func (BigQueryDialect) TypeName(t WarehouseType) string {
	switch t {
	case Float:
		return "FLOAT64"
	case Number:
		return "INT64"
	case Boolean:
		return "BOOL"
	case Timestamp:
		return "TIMESTAMP"
	}
	return "STRING"
}

func (d BigQueryDialect) table(name string) string {
	return fmt.Sprintf("`%s.%s.%s`", d.ProjectID, d.DatasetID, name)
}

func (d BigQueryDialect) CreateTable(s TableSchema) string {
	return fmt.Sprintf("CREATE OR REPLACE TABLE %s (\n%s\n);", d.table(s.Name), columnList(d, s))
}

func (d BigQueryDialect) LoadTable(s TableSchema, uri string) string {
	return fmt.Sprintf(
		"LOAD DATA OVERWRITE %s\nFROM FILES (\n  format = 'CSV',\n  skip_leading_rows = 1,\n  uris = ['%s']\n);",
		d.table(s.Name), uri)
}

// SnowflakeDialect targets Snowflake, loading from an external stage.
type SnowflakeDialect struct {
	Stage string
}

func (SnowflakeDialect) Name() string { return "snowflake" }

func (SnowflakeDialect) TypeName(t WarehouseType) string {
	return string(t)
}

func (d SnowflakeDialect) CreateTable(s TableSchema) string {
	return fmt.Sprintf("CREATE OR REPLACE TABLE %s (\n%s\n);", s.Name, columnList(d, s))
}

// LoadTable ignores uri: files are addressed relative to the stage.
func (d SnowflakeDialect) LoadTable(s TableSchema, _ string) string {
	return fmt.Sprintf(
		"COPY INTO %s\nFROM %s/%s.csv\nFILE_FORMAT = (TYPE = 'CSV' SKIP_HEADER = 1 FIELD_OPTIONALLY_ENCLOSED_BY = '\"' NULL_IF = (''))\nON_ERROR = 'ABORT_STATEMENT';",
		s.Name, strings.TrimSuffix(d.Stage, "/"), s.Name)
}

func columnList(d Dialect, s TableSchema) string {
	lines := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		lines[i] = fmt.Sprintf("    %s %s", c.Name, d.TypeName(c.Type))
	}
	return strings.Join(lines, ",\n")
}

// CreateStatements renders one CREATE OR REPLACE per table, in order.
func CreateStatements(d Dialect, tables []TableSchema) []Statement {
	out := make([]Statement, 0, len(tables))
	for _, s := range tables {
		out = append(out, Statement{Table: s.Name, Kind: KindCreate, SQL: d.CreateTable(s)})
	}
	return out
}

// LoadStatements renders one load per table. locate maps a table name to the
// URI of its staged file.
func LoadStatements(d Dialect, tables []TableSchema, locate func(table string) string) []Statement {
	out := make([]Statement, 0, len(tables))
	for _, s := range tables {
		out = append(out, Statement{Table: s.Name, Kind: KindLoad, SQL: d.LoadTable(s, locate(s.Name))})
	}
	return out
}

// Script joins statements into one SQL file body.
func Script(stmts []Statement) string {
	var b strings.Builder
	for i, st := range stmts {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "-- %s: %s\n%s", st.Table, st.Kind, st.SQL)
	}
	b.WriteString("\n")
	return b.String()
}
