// Package migrations embeds the goose SQL migrations for the Postgres adapter.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
