package datatransfer

import "strings"

const defaultCopySelectorThreshold = 100_000

// complexTypeHints lists udt_name substrings for types the COPY text
// encoder cannot faithfully round-trip without risking ambiguity — the
// selector falls back to INSERT when any column's udt_name contains one.
// The match is on the type name only: range types (int4range, tstzrange,
// ...) are caught, while a composite or domain type is caught only when
// its name contains "composite" or "domain".
var complexTypeHints = []string{"composite", "range", "domain"}

// SelectStrategy decides COPY vs INSERT per spec 4.6.8: COPY once row
// count clears the threshold, unless a column's type can't be faithfully
// encoded by the COPY text format.
func SelectStrategy(rowCount int64, columnTypes []ColumnInfo, threshold int64) Strategy {
	if threshold <= 0 {
		threshold = defaultCopySelectorThreshold
	}
	if rowCount < threshold {
		return StrategyInsert
	}
	for _, c := range columnTypes {
		lower := strings.ToLower(c.DataType)
		for _, hint := range complexTypeHints {
			if strings.Contains(lower, hint) {
				return StrategyInsert
			}
		}
	}
	return StrategyCopy
}

type Strategy string

const (
	StrategyInsert Strategy = "INSERT"
	StrategyCopy   Strategy = "COPY"
)
