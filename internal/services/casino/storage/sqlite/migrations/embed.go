package migrations

import "embed"

// FS contains embedded SQLite migrations for casino storage.
//
//go:embed *.sql
var FS embed.FS
