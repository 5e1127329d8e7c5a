// Package migrations bundles the schema files applied when the store opens.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
