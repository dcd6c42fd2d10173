// Package migrations embeds the SQL schema migrations for the reviews service.
package migrations

import "embed"

// FS holds the embedded .up.sql migration files, applied in lexical order.
//
//go:embed *.sql
var FS embed.FS
