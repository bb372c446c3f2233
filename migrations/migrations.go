// Package migrations embeds the schema migrations applied by db.Migrate.
//
// Files are named NNNNNN_description.up.sql and NNNNNN_description.down.sql
// and run in lexical order.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
