// Package migrations embeds the country-store schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
