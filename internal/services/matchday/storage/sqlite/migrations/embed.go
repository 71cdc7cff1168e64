package migrations

import "embed"

// FS contains embedded SQLite migrations for match day storage.
//
//go:embed *.sql
var FS embed.FS
