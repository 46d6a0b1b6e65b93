// Package migrations embeds the employee-service schema.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
