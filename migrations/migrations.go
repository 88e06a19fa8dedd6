// Package migrations embeds apireckit's Postgres schema migrations.
package migrations

import "embed"

//go:embed postgres
var Postgres embed.FS
