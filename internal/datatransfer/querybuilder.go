package datatransfer

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pgsynclabs/syncengine/internal/domain"
)

// ColumnInfo describes one source column as needed for auto-detecting an
// incremental field and for COPY/INSERT value handling.
type ColumnInfo struct {
	Name     string
	DataType string // udt_name
}

var idNamePreference = []string{"id"}
var idCaseVariants = []string{"ID", "Id"}

var timestampNamePreference = []string{"updated_at", "created_at", "modified_at", "timestamp"}

var integerTypes = map[string]bool{
	"int2": true, "int4": true, "int8": true,
	"serial": true, "bigserial": true, "smallserial": true,
}

var timestampTypes = map[string]bool{
	"timestamp": true, "timestamptz": true, "date": true,
}

// BuildQuery constructs the SELECT statement and its bind arguments for one
// target table sync, following spec 4.6.1: incremental predicate (if
// applicable), plus the job's global WHERE as an additional AND term.
func BuildQuery(table domain.TargetTable, columns []ColumnInfo, syncMode domain.SyncMode, globalWhere string) (query string, args []any, incrementalField string) {
	var predicates []string

	if syncMode == domain.SyncModeIncremental && table.IncrementalStrategy != domain.IncrementalNone {
		switch table.IncrementalStrategy {
		case domain.IncrementalAutoID:
			incrementalField = resolveField(table.IncrementalField, columns, idNamePreference, idCaseVariants, "_id", "id_", integerTypes)
		case domain.IncrementalAutoTimestamp:
			incrementalField = resolveField(table.IncrementalField, columns, timestampNamePreference, nil, "_at", "_time", timestampTypes)
			if incrementalField == "" {
				incrementalField = resolveField(table.IncrementalField, columns, nil, nil, "date_", "", timestampTypes)
			}
		case domain.IncrementalCustomCondition:
			if table.CustomCondition != "" {
				predicates = append(predicates, table.CustomCondition)
			}
		}

		if incrementalField != "" {
			if table.LastSyncValue != "" {
				args = append(args, table.LastSyncValue)
				predicates = append(predicates, fmt.Sprintf("%s > $%d", quoteIdent(incrementalField), len(args)))
			} else if table.IncrementalStrategy == domain.IncrementalAutoTimestamp {
				predicates = append(predicates, fmt.Sprintf("%s >= now() - interval '24 hours'", quoteIdent(incrementalField)))
			} else {
				predicates = append(predicates, fmt.Sprintf("%s IS NOT NULL", quoteIdent(incrementalField)))
			}
		}
	}

	if globalWhere != "" {
		predicates = append(predicates, "("+globalWhere+")")
	}
	if table.CustomCondition != "" && table.IncrementalStrategy != domain.IncrementalCustomCondition {
		predicates = append(predicates, "("+table.CustomCondition+")")
	}

	query = fmt.Sprintf("SELECT * FROM %s.%s", quoteIdent(table.SchemaName), quoteIdent(table.TableName))
	if len(predicates) > 0 {
		query += " WHERE " + strings.Join(predicates, " AND ")
	}
	if incrementalField != "" {
		query += fmt.Sprintf(" ORDER BY %s ASC", quoteIdent(incrementalField))
	}
	return query, args, incrementalField
}

// resolveField picks an explicit field if given, else auto-detects by
// exact-name preference (in order), then case variants, then prefix/suffix
// match, restricted to columns whose type is in allowedTypes.
func resolveField(explicit string, columns []ColumnInfo, namePreference, caseVariants []string, prefixSuffix1, prefixSuffix2 string, allowedTypes map[string]bool) string {
	if explicit != "" {
		return explicit
	}

	byName := make(map[string]ColumnInfo, len(columns))
	for _, c := range columns {
		byName[c.Name] = c
	}

	for _, want := range namePreference {
		if c, ok := byName[want]; ok && allowedTypes[c.DataType] {
			return c.Name
		}
	}
	for _, want := range caseVariants {
		if c, ok := byName[want]; ok && allowedTypes[c.DataType] {
			return c.Name
		}
	}
	for _, c := range columns {
		if !allowedTypes[c.DataType] {
			continue
		}
		lower := strings.ToLower(c.Name)
		if prefixSuffix1 != "" && strings.HasSuffix(lower, prefixSuffix1) {
			return c.Name
		}
		if prefixSuffix2 != "" && strings.HasPrefix(lower, prefixSuffix2) {
			return c.Name
		}
	}
	return ""
}

// watermarkString renders a raw incremental field value to the string form
// stored in TargetTable.last_sync_value — numeric and timestamp domains
// both need to compare correctly when re-read as a bind parameter.
func watermarkString(v any) (string, bool) {
	switch val := v.(type) {
	case nil:
		return "", false
	case time.Time:
		return val.UTC().Format(time.RFC3339Nano), true
	case string:
		return val, true
	case int64:
		return strconv.FormatInt(val, 10), true
	case int32:
		return strconv.FormatInt(int64(val), 10), true
	case int:
		return strconv.Itoa(val), true
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), true
	default:
		return fmt.Sprintf("%v", val), true
	}
}

func quoteIdent(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}
