package postgres

import "salesetl/internal/storage"

func init() {
	// registers the Postgres backend factory
	storage.Register("postgres", Open)
	storage.RegisterDialect("postgres", Dialect{})
}
