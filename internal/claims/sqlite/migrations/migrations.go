// Package migrations embeds the sqlite claim-store schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
