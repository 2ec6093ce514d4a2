// Package migrations embeds the SQL schema migrations served to golang-migrate.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
