// Package schemareplicator reproduces a source table's structure on a
// destination database idempotently: if the destination table already
// exists the engine never alters it. Modeled on the original engine's
// SchemaManager (sequences -> columns -> primary key -> create table ->
// indexes, all inside one destination transaction).
package schemareplicator

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pgsynclabs/syncengine/internal/metrics"
)

var nextvalPattern = regexp.MustCompile(`nextval\('([^']*)'`)

type Replicator struct {
	source *pgxpool.Pool
	dest   *pgxpool.Pool
	logger *slog.Logger
}

func New(source, dest *pgxpool.Pool, logger *slog.Logger) *Replicator {
	return &Replicator{source: source, dest: dest, logger: logger.With("component", "schemareplicator")}
}

type sourceColumn struct {
	name       string
	dataType   string // Postgres type name, already destination-compatible
	nullable   bool
	hasDefault bool
	defaultSQL string
}

type sourceIndex struct {
	name        string
	columnNames []string
	columnTypes []string
}

// ReplicateTable creates schema.table on the destination if it does not
// already exist. A no-op (success) when the destination table is present.
func (r *Replicator) ReplicateTable(ctx context.Context, schema, table string) error {
	exists, err := r.destTableExists(ctx, schema, table)
	if err != nil {
		return fmt.Errorf("check destination table: %w", err)
	}
	if exists {
		r.logger.Debug("destination table already exists, skipping", "schema", schema, "table", table)
		return nil
	}

	columns, err := r.loadSourceColumns(ctx, schema, table)
	if err != nil {
		return fmt.Errorf("load source columns for %s.%s: %w", schema, table, err)
	}
	if len(columns) == 0 {
		return fmt.Errorf("source table %s.%s has no columns or does not exist", schema, table)
	}

	pkColumns, err := r.loadPrimaryKeyColumns(ctx, schema, table)
	if err != nil {
		return fmt.Errorf("load primary key for %s.%s: %w", schema, table, err)
	}

	indexes, err := r.loadIndexes(ctx, schema, table)
	if err != nil {
		return fmt.Errorf("load indexes for %s.%s: %w", schema, table, err)
	}

	tx, err := r.dest.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin destination tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	failedSeqColumns := r.createSequences(ctx, tx, schema, table, columns)

	createSQL := buildCreateTableSQL(schema, table, columns, pkColumns, failedSeqColumns)
	if _, err := tx.Exec(ctx, createSQL); err != nil {
		return fmt.Errorf("create table %s.%s: %w", schema, table, err)
	}
	metrics.SchemaDDLTotal.WithLabelValues("create_table").Inc()
	r.logger.Info("table created", "schema", schema, "table", table)

	r.createIndexes(ctx, tx, schema, table, indexes)

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit destination tx: %w", err)
	}
	return nil
}

func (r *Replicator) destTableExists(ctx context.Context, schema, table string) (bool, error) {
	var exists bool
	err := r.dest.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = $1 AND table_name = $2
		)`, schema, table).Scan(&exists)
	return exists, err
}

func (r *Replicator) loadSourceColumns(ctx context.Context, schema, table string) ([]sourceColumn, error) {
	rows, err := r.source.Query(ctx, `
		SELECT column_name, udt_name, is_nullable = 'YES', column_default
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position ASC`, schema, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []sourceColumn
	for rows.Next() {
		var c sourceColumn
		var def *string
		if err := rows.Scan(&c.name, &c.dataType, &c.nullable, &def); err != nil {
			return nil, err
		}
		if def != nil {
			c.hasDefault = true
			c.defaultSQL = *def
		}
		columns = append(columns, c)
	}
	return columns, rows.Err()
}

func (r *Replicator) loadPrimaryKeyColumns(ctx context.Context, schema, table string) ([]string, error) {
	rows, err := r.source.Query(ctx, `
		SELECT a.attname
		FROM pg_index i
		JOIN pg_class c ON c.oid = i.indrelid
		JOIN pg_namespace n ON n.oid = c.relnamespace
		JOIN pg_attribute a ON a.attrelid = c.oid AND a.attnum = ANY(i.indkey)
		WHERE i.indisprimary
		  AND n.nspname = $1
		  AND c.relname = $2
		ORDER BY array_position(i.indkey, a.attnum)`, schema, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		cols = append(cols, name)
	}
	return cols, rows.Err()
}

func (r *Replicator) loadIndexes(ctx context.Context, schema, table string) ([]sourceIndex, error) {
	rows, err := r.source.Query(ctx, `
		SELECT ic.relname AS index_name, a.attname AS column_name, ty.typname AS column_type
		FROM pg_index i
		JOIN pg_class c ON c.oid = i.indrelid
		JOIN pg_class ic ON ic.oid = i.indexrelid
		JOIN pg_namespace n ON n.oid = c.relnamespace
		JOIN pg_attribute a ON a.attrelid = c.oid AND a.attnum = ANY(i.indkey)
		JOIN pg_type ty ON ty.oid = a.atttypid
		WHERE NOT i.indisprimary
		  AND n.nspname = $1
		  AND c.relname = $2
		ORDER BY ic.relname, array_position(i.indkey, a.attnum)`, schema, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	byName := map[string]*sourceIndex{}
	var order []string
	for rows.Next() {
		var idxName, colName, colType string
		if err := rows.Scan(&idxName, &colName, &colType); err != nil {
			return nil, err
		}
		idx, ok := byName[idxName]
		if !ok {
			idx = &sourceIndex{name: idxName}
			byName[idxName] = idx
			order = append(order, idxName)
		}
		idx.columnNames = append(idx.columnNames, colName)
		idx.columnTypes = append(idx.columnTypes, colType)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	indexes := make([]sourceIndex, 0, len(order))
	for _, name := range order {
		indexes = append(indexes, *byName[name])
	}
	return indexes, nil
}

// createSequences creates any missing sequence backing a column's nextval
// default. Returns the set of column names whose sequence could not be
// created — those columns fall back to a destination-local BIGINT
// auto-increment in buildCreateTableSQL.
func (r *Replicator) createSequences(ctx context.Context, tx pgx.Tx, schema, table string, columns []sourceColumn) map[string]bool {
	failed := map[string]bool{}
	for _, col := range columns {
		if !col.hasDefault || !strings.Contains(strings.ToLower(col.defaultSQL), "nextval") {
			continue
		}
		seqSchema, seqName := extractSequenceName(col.defaultSQL, schema)

		var exists bool
		err := tx.QueryRow(ctx, `
			SELECT EXISTS (
				SELECT 1 FROM information_schema.sequences
				WHERE sequence_schema = $1 AND sequence_name = $2
			)`, seqSchema, seqName).Scan(&exists)
		if err != nil {
			r.logger.Error("sequence lookup failed", "column", col.name, "error", err)
			failed[col.name] = true
			continue
		}
		if exists {
			continue
		}

		createSQL := fmt.Sprintf(`CREATE SEQUENCE %s.%s`, quoteIdent(seqSchema), quoteIdent(seqName))
		// A savepoint keeps a failed CREATE SEQUENCE from aborting tx, so the
		// CREATE TABLE with the identity fallback can still run.
		sp, err := tx.Begin(ctx)
		if err == nil {
			if _, err = sp.Exec(ctx, createSQL); err != nil {
				_ = sp.Rollback(ctx)
			} else {
				err = sp.Commit(ctx)
			}
		}
		if err != nil {
			r.logger.Error("failed to create sequence", "column", col.name, "sequence", seqName, "error", err)
			failed[col.name] = true
			continue
		}
		metrics.SchemaDDLTotal.WithLabelValues("create_sequence").Inc()
		r.logger.Info("sequence created", "schema", seqSchema, "name", seqName)
	}
	return failed
}

// extractSequenceName parses a nextval(...) default string, accepting
// quoted/unquoted and schema-qualified/unqualified forms; an unqualified
// name takes fallbackSchema. When the string holds no nextval('...')
// literal it returns fallbackSchema and an empty name; no
// <table>_<column>_seq name is derived.
func extractSequenceName(defaultSQL, fallbackSchema string) (schema, name string) {
	match := nextvalPattern.FindStringSubmatch(defaultSQL)
	if match == nil {
		return fallbackSchema, ""
	}
	raw := strings.ReplaceAll(match[1], `"`, "")
	if idx := strings.Index(raw, "."); idx >= 0 {
		return raw[:idx], raw[idx+1:]
	}
	return fallbackSchema, raw
}

func (r *Replicator) createIndexes(ctx context.Context, tx pgx.Tx, schema, table string, indexes []sourceIndex) {
	for _, idx := range indexes {
		method, ok := accessMethodFor(idx.columnTypes)
		if !ok {
			r.logger.Warn("skipping index, unsupported column type", "index", idx.name)
			continue
		}
		indexName := idx.name
		if !strings.HasPrefix(indexName, table) {
			indexName = table + "_" + indexName
		}
		quotedCols := make([]string, len(idx.columnNames))
		for i, c := range idx.columnNames {
			quotedCols[i] = quoteIdent(c)
		}
		createSQL := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s.%s USING %s (%s)`,
			quoteIdent(indexName), quoteIdent(schema), quoteIdent(table), method, strings.Join(quotedCols, ", "))
		// A savepoint keeps a failed CREATE INDEX from aborting tx.
		sp, err := tx.Begin(ctx)
		if err == nil {
			if _, err = sp.Exec(ctx, createSQL); err != nil {
				_ = sp.Rollback(ctx)
			} else {
				err = sp.Commit(ctx)
			}
		}
		if err != nil {
			r.logger.Warn("could not create index", "index", indexName, "error", err)
			continue
		}
		metrics.SchemaDDLTotal.WithLabelValues("create_index").Inc()
		r.logger.Info("index created", "index", indexName, "method", method)
	}
}

var ginTypeHints = []string{"json", "jsonb", "array", "tsvector", "_"}

// noAccessMethodTypes are udt_names with no default B-tree operator class
// and no GIN support either — Postgres's geometric types and xml have no
// default equality/ordering operators, so neither access method this
// replicator emits (BTREE, GIN) applies.
var noAccessMethodTypes = map[string]bool{
	"point": true, "line": true, "lseg": true, "box": true,
	"path": true, "polygon": true, "circle": true, "xml": true,
}

func accessMethodFor(columnTypes []string) (method string, supported bool) {
	for _, t := range columnTypes {
		if noAccessMethodTypes[strings.ToLower(t)] {
			return "", false
		}
	}
	for _, t := range columnTypes {
		lower := strings.ToLower(t)
		for _, hint := range ginTypeHints {
			if strings.Contains(lower, hint) {
				return "GIN", true
			}
		}
	}
	return "BTREE", true
}

func buildCreateTableSQL(schema, table string, columns []sourceColumn, pkColumns []string, failedSeqColumns map[string]bool) string {
	pkSet := map[string]bool{}
	for _, c := range pkColumns {
		pkSet[c] = true
	}

	var defs []string
	for _, col := range columns {
		defs = append(defs, columnDefinitionSQL(col, schema, table, failedSeqColumns))
	}
	if len(pkColumns) > 0 {
		quoted := make([]string, len(pkColumns))
		for i, c := range pkColumns {
			quoted[i] = quoteIdent(c)
		}
		defs = append(defs, fmt.Sprintf(`CONSTRAINT %s PRIMARY KEY (%s)`,
			quoteIdent(table+"_pkey"), strings.Join(quoted, ", ")))
	}

	return fmt.Sprintf("CREATE TABLE %s.%s (\n\t%s\n)", quoteIdent(schema), quoteIdent(table), strings.Join(defs, ",\n\t"))
}

func columnDefinitionSQL(col sourceColumn, schema, table string, failedSeqColumns map[string]bool) string {
	if failedSeqColumns[col.name] {
		nullability := "NOT NULL"
		if col.nullable {
			nullability = ""
		}
		return strings.TrimSpace(fmt.Sprintf("%s BIGINT GENERATED BY DEFAULT AS IDENTITY %s", quoteIdent(col.name), nullability))
	}

	sqlType := mapColumnType(col.dataType)
	parts := []string{quoteIdent(col.name), sqlType}
	if !col.nullable {
		parts = append(parts, "NOT NULL")
	}
	if col.hasDefault {
		if strings.Contains(strings.ToLower(col.defaultSQL), "nextval") {
			seqSchema, seqName := extractSequenceName(col.defaultSQL, schema)
			parts = append(parts, fmt.Sprintf("DEFAULT nextval('%s.%s'::regclass)", seqSchema, seqName))
		} else {
			parts = append(parts, "DEFAULT "+col.defaultSQL)
		}
	}
	return strings.Join(parts, " ")
}

// mapColumnType passes udt_name through largely unchanged — both source
// and destination are Postgres, so type names already match except for a
// handful of internal aliases information_schema exposes.
func mapColumnType(udtName string) string {
	switch udtName {
	case "int4":
		return "integer"
	case "int8":
		return "bigint"
	case "int2":
		return "smallint"
	case "bool":
		return "boolean"
	case "varchar":
		return "character varying"
	case "bpchar":
		return "character"
	case "float4":
		return "real"
	case "float8":
		return "double precision"
	default:
		if strings.HasPrefix(udtName, "_") {
			return mapColumnType(udtName[1:]) + "[]"
		}
		return udtName
	}
}

func quoteIdent(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}
