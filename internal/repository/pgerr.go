package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// IsUniqueViolation reports whether err is a postgres unique-constraint
// violation (duplicate email, duplicate site code).
func IsUniqueViolation(err error) bool {
	return isPgCode(err, pgUniqueViolation)
}

// IsForeignKeyViolation reports whether err is a postgres FK violation,
// e.g. deleting a site that expenses still reference.
func IsForeignKeyViolation(err error) bool {
	return isPgCode(err, pgForeignKeyViolation)
}

func isPgCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
