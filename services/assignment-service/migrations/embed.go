// Package migrations embeds the assignment-service schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
