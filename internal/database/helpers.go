package database

import (
	"database/sql"
	"errors"
)

// HandleNotFound converts sql.ErrNoRows from a single-row query into a nil
// result without error. A missing row is an answer, not a failure.
//
// Usage:
//
//	var row accountRow
//	err := db.GetContext(ctx, &row, query, args...)
//	return HandleNotFound(&row, err)
func HandleNotFound[T any](result *T, err error) (*T, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}
