package errors

import (
	"context"
	"errors"
	"regexp"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// keyDetail matches the column list in `Key (client_id)=(abc) already exists.`.
var keyDetail = regexp.MustCompile(`Key \(([^)]+)\)=`)

type pgMapping struct {
	code ErrorCode
	// fieldMsg is used when Postgres names the column, msg otherwise.
	fieldMsg string
	msg      string
}

var pgMappings = map[string]pgMapping{
	pgerrcode.UniqueViolation:  {ErrCodeConflict, "This value already exists.", "This value already exists."},
	pgerrcode.CheckViolation:   {ErrCodeValidation, "This field has an invalid value.", "Invalid data. Please check your input."},
	pgerrcode.NotNullViolation: {ErrCodeValidation, "This field is required.", "Required field is missing. Please check your input."},
	pgerrcode.UndefinedTable:   {ErrCodeInternal, "", "Database schema is missing. Run migrations."},
}

// MapDBError translates driver and context errors from the access log into
// AppErrors. Errors it does not recognize are returned unchanged.
func MapDBError(err error) error {
	var (
		pgErr   *pgconn.PgError
		connErr *pgconn.ConnectError
	)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return Wrap(err, ErrCodeTimeout, "Request timed out. Please try again.")
	case errors.Is(err, context.Canceled):
		return Wrap(err, ErrCodeCanceled, "Request was canceled.")
	case errors.Is(err, pgx.ErrNoRows):
		return Wrap(err, ErrCodeNotFound, "Resource not found")
	case errors.As(err, &pgErr):
		return fromPgError(pgErr)
	case errors.As(err, &connErr):
		return Wrap(err, ErrCodeUnavailable, "The database is unavailable. Please try again.")
	default:
		return err
	}
}

func fromPgError(pgErr *pgconn.PgError) *AppError {
	m, ok := pgMappings[pgErr.Code]
	if !ok {
		return Wrap(pgErr, ErrCodeInternal, "A database error occurred. Please try again.")
	}

	field := pgErr.ColumnName
	if field == "" && pgErr.Code == pgerrcode.UniqueViolation {
		if sub := keyDetail.FindStringSubmatch(pgErr.Detail); len(sub) == 2 {
			field = sub[1]
		}
	}

	appErr := Wrap(pgErr, m.code, m.msg)
	if field != "" && m.fieldMsg != "" {
		appErr.Message = m.fieldMsg
		appErr.Field = field
	}
	return appErr
}
