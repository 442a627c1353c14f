package postgres

// rowScanner is satisfied by both pgx.Row and pgx.Rows — lets scan helpers
// be shared between QueryRow and Query call sites.
type rowScanner interface {
	Scan(dest ...any) error
}
