// Package sqlxrepos implements the domain repositories on PostgreSQL
// via sqlx. Each repository holds a default executor and lets services
// pass a transaction instead for the calls that must commit together.
package sqlxrepos

import (
	"database/sql"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/digiwizhq/digiwiz/core"
)

func getExec(deflt core.DBExecutor, svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 {
		return svcExec[0]
	}
	return deflt
}

// trapNoRowsErr maps psql "no rows" err to the domain's not-found err
func trapNoRowsErr(err, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
