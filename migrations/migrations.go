// Package migrations embeds the schema migrations so the binary stays a
// single self-contained file regardless of the working directory it runs
// from.
package migrations

import "embed"

//go:embed *.up.sql
var FS embed.FS
