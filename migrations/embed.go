// Package migrations embeds the journal schema so the binary can migrate without the
// source tree next to it.
package migrations

import "embed"

// FS holds the NNNN_name.{up,down}.sql files.
//
//go:embed *.sql
var FS embed.FS
