package store

import "database/sql"

// Querier is the subset of *sql.DB and *sql.Tx the stores rely on. Services
// that span multiple stores open the transaction themselves and rebind the
// stores with WithTx.
type Querier interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}
