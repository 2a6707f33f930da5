package sqlerr

import (
	"database/sql"
	"errors"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/deppfellow/partners/internal/errs"
)

// ErrCode reports the Code of err when it wraps a *Error, Other otherwise.
func ErrCode(err error) Code {
	var pgerr *Error
	if errors.As(err, &pgerr) {
		return pgerr.Code
	}
	var raw *pgconn.PgError
	if errors.As(err, &raw) {
		return MapCode(raw.Code)
	}
	return Other
}

// IsUniqueViolation reports whether err is a unique constraint failure,
// optionally on a specific constraint (empty matches any).
func IsUniqueViolation(err error, constraint string) bool {
	var raw *pgconn.PgError
	if !errors.As(err, &raw) || MapCode(raw.Code) != UniqueViolation {
		return false
	}
	return constraint == "" || raw.ConstraintName == constraint
}

func ConvertPgError(src *pgconn.PgError) *Error {
	return &Error{
		Code:           MapCode(src.Code),
		Severity:       MapSeverity(src.Severity),
		DatabaseCode:   src.Code,
		Message:        src.Message,
		SchemaName:     src.SchemaName,
		TableName:      src.TableName,
		ColumnName:     src.ColumnName,
		DataTypeName:   src.DataTypeName,
		ConstraintName: src.ConstraintName,
		driverErr:      src,
	}
}

type constraintError struct {
	code    string
	message string
}

// uniqueConstraints names the unique constraints and indexes whose
// violation has a domain meaning. Others get a generated code.
var uniqueConstraints = map[string]constraintError{
	"programs_slug_key":                  {"PROGRAM_SLUG_TAKEN", "A program with this slug already exists"},
	"partners_email_key":                 {"PARTNER_EMAIL_TAKEN", "A partner with this email already exists"},
	"partners_user_id_key":               {"PARTNER_ALREADY_EXISTS", "This user already has a partner profile"},
	"unique_program_enrollments_partner": {"PARTNER_ALREADY_ENROLLED", "The partner is already enrolled in this program"},
	"unique_commissions_invoice":         {"COMMISSION_ALREADY_EXISTS", "A commission for this invoice already exists"},
	"unique_bounty_submissions_partner":  {"BOUNTY_ALREADY_SUBMITTED", "The partner has already submitted to this bounty"},
	"unique_fraud_event_groups_pending":  {"FRAUD_GROUP_ALREADY_PENDING", "A pending fraud group of this type already exists"},
}

var actions = map[Code]string{
	ForeignKeyViolation: "NOT_FOUND",
	UniqueViolation:     "ALREADY_EXISTS",
	NotNullViolation:    "REQUIRED",
	CheckViolation:      "INVALID",
}

var (
	// <table>_<column>_key, as postgres names inline UNIQUE constraints
	keySuffix = regexp.MustCompile(`_([^_]+)_(?:key|ukey)$`)
	// ErrNoRows wrapped as "table:<name>: ..." by the repositories
	tableHint = regexp.MustCompile(`table:([a-z_]+):`)
)

func singular(table string) string {
	if len(table) > 1 {
		return strings.TrimSuffix(table, "s")
	}
	return table
}

func humanize(s string) string {
	// Casers keep state, so one per call.
	return cases.Title(language.English).String(strings.ReplaceAll(s, "_", " "))
}

// errorCode builds codes like COMMISSION_NOT_FOUND from the table and
// violation kind.
func errorCode(e *Error) string {
	domain := "RECORD"
	if e.TableName != "" {
		domain = strings.ToUpper(singular(e.TableName))
	}
	action, ok := actions[e.Code]
	if !ok {
		action = "ERROR"
	}
	return domain + "_" + action
}

// entity names the thing a violation is about: the referenced entity for
// "<x>_id" columns, otherwise the row's table.
func entity(table, column string) string {
	if col := strings.ToLower(column); strings.HasSuffix(col, "_id") {
		return humanize(strings.TrimSuffix(col, "_id"))
	}
	if table != "" {
		return humanize(singular(table))
	}
	return "record"
}

// uniqueColumn reads the column out of "unique_<table>_<column>" and
// "<table>_<column>_key" constraint names.
func uniqueColumn(constraint string) string {
	if strings.HasPrefix(constraint, "unique_") {
		if i := strings.LastIndex(constraint, "_"); i > len("unique") {
			return constraint[i+1:]
		}
	}
	if m := keySuffix.FindStringSubmatch(constraint); m != nil {
		return m[1]
	}
	return ""
}

func fromPgError(e *Error) *errs.HTTPError {
	code := errorCode(e)

	switch e.Code {
	case ForeignKeyViolation:
		msg := "The referenced " + entity(e.TableName, e.ColumnName) + " does not exist"
		return errs.NewBadRequestError(msg, false, &code, nil, nil)

	case UniqueViolation:
		if known, ok := uniqueConstraints[e.ConstraintName]; ok {
			return errs.NewConflictError(known.message, errs.Code(known.code))
		}
		what := "identifier"
		if col := uniqueColumn(e.ConstraintName); col != "" {
			what = humanize(col)
		}
		msg := "A " + entity(e.TableName, e.ColumnName) + " with this " + what + " already exists"
		return errs.NewConflictError(msg, &code)

	case NotNullViolation:
		field := humanize(e.ColumnName)
		if field == "" {
			field = "field"
		}
		fieldErrors := []errs.FieldError{{Field: strings.ToLower(e.ColumnName), Error: "is required"}}
		return errs.NewBadRequestError("The "+field+" is required", true, &code, fieldErrors, nil)

	case CheckViolation:
		msg := "One or more values do not meet required conditions"
		if e.ColumnName != "" {
			msg = "The " + humanize(e.ColumnName) + " value does not meet required conditions"
		}
		return errs.NewBadRequestError(msg, true, &code, nil, nil)

	case SerializationFailure, DeadlockDetected:
		return errs.NewConflictError("The resource was modified concurrently, please retry", nil)

	case InvalidTextRep:
		return errs.NewBadRequestError("Invalid identifier format", false, nil, nil, nil)
	}
	return errs.NewInternalServerError()
}

// HandleError converts a low-level database error into an *errs.HTTPError.
// An *errs.HTTPError passes through unchanged; anything unrecognized is a
// sanitized 500.
func HandleError(err error) error {
	var httpErr *errs.HTTPError
	if errors.As(err, &httpErr) {
		return err
	}

	var pgerr *pgconn.PgError
	if errors.As(err, &pgerr) {
		return fromPgError(ConvertPgError(pgerr))
	}

	if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, sql.ErrNoRows) {
		if m := tableHint.FindStringSubmatch(err.Error()); m != nil {
			return errs.NewNotFoundError(entity(m[1], "")+" not found", true, nil)
		}
		return errs.NewNotFoundError("Resource not found", false, nil)
	}

	return errs.NewInternalServerError()
}
