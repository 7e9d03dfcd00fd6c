// Package all registers every database row source.
package all

import (
	_ "rownest/internal/source/postgres"
	_ "rownest/internal/source/sqldb"
)
