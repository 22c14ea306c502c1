// Package migrations embeds the SQL schema so binaries can migrate without
// the source tree.
package migrations

import "embed"

// Files holds every NNN_description.sql file in this directory.
//
//go:embed *.sql
var Files embed.FS
