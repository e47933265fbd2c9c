package migrations

import "embed"

// FS contains embedded SQLite migrations for the session blob store.
//
//go:embed *.sql
var FS embed.FS
