// Package all registers every document storage backend.
package all

import (
	_ "rownest/internal/storage/mssql"
	_ "rownest/internal/storage/postgres"
	_ "rownest/internal/storage/sqlite"
)
