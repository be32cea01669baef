package db

import "embed"

// EmbedMigrations contains the run ledger migrations.
//
//go:embed migrations/*.sql
var EmbedMigrations embed.FS
