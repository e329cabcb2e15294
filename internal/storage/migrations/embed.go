// Package migrations embeds the schema files applied at startup: Postgres
// holds campaign configs and pool states, ClickHouse holds the pool event
// history.
package migrations

import "embed"

//go:embed postgres/*.sql
var PostgresFS embed.FS

//go:embed clickhouse/*.sql
var ClickhouseFS embed.FS
