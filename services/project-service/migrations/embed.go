// Package migrations embeds the project-service schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
