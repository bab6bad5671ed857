package pg

import (
	"database/sql"
	"errors"
)

// CheckNoRows translates sql.ErrNoRows into outErr, passing any other error through
func CheckNoRows(inErr, outErr error) error {
	if IsNoRows(inErr) {
		return outErr
	}
	return inErr
}

func IsNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
