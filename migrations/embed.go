package migrations

import "embed"

// Schema embeds the PostgreSQL schema scripts.
//
//go:embed *.sql
var Schema embed.FS
