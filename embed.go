package sillogic

import "embed"

// MigrationsFS holds the SQL migrations for the Postgres snapshot store.
//
//go:embed migrations/*.sql
var MigrationsFS embed.FS
