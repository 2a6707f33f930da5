// Package sqlerr handles database driver errors.
//
// It parses PostgreSQL SQLSTATE codes coming out of pgx and converts them
// into client-facing errs.HTTPError values (a unique violation becomes a
// 409, a foreign key violation a 400, and so on).
package sqlerr

import "fmt"

// Code is a coarse category of a PostgreSQL error.
type Code string

const (
	Other                Code = "other"
	NotNullViolation     Code = "not_null_violation"
	ForeignKeyViolation  Code = "foreign_key_violation"
	UniqueViolation      Code = "unique_violation"
	CheckViolation       Code = "check_violation"
	ExclusionViolation   Code = "exclusion_violation"
	SerializationFailure Code = "serialization_failure"
	DeadlockDetected     Code = "deadlock_detected"
	InvalidTextRep       Code = "invalid_text_representation"
)

// Severity mirrors the PostgreSQL severity field.
type Severity string

const (
	SeverityError   Severity = "ERROR"
	SeverityFatal   Severity = "FATAL"
	SeverityPanic   Severity = "PANIC"
	SeverityWarning Severity = "WARNING"
	SeverityNotice  Severity = "NOTICE"
	SeverityDebug   Severity = "DEBUG"
	SeverityInfo    Severity = "INFO"
	SeverityLog     Severity = "LOG"
)

// Error is a normalized PostgreSQL error.
type Error struct {
	Code           Code
	Severity       Severity
	DatabaseCode   string
	Message        string
	SchemaName     string
	TableName      string
	ColumnName     string
	DataTypeName   string
	ConstraintName string
	driverErr      error
}

func (pe *Error) Error() string {
	return fmt.Sprintf("%s %s: %s", pe.Severity, pe.DatabaseCode, pe.Message)
}

func (pe *Error) Unwrap() error {
	return pe.driverErr
}

// MapCode maps a SQLSTATE onto a Code.
func MapCode(code string) Code {
	switch code {
	case "23502":
		return NotNullViolation
	case "23503":
		return ForeignKeyViolation
	case "23505":
		return UniqueViolation
	case "23514":
		return CheckViolation
	case "23P01":
		return ExclusionViolation
	case "40001":
		return SerializationFailure
	case "40P01":
		return DeadlockDetected
	case "22P02":
		return InvalidTextRep
	default:
		return Other
	}
}

// MapSeverity maps the textual severity onto Severity, defaulting to ERROR.
func MapSeverity(severity string) Severity {
	switch severity {
	case "FATAL":
		return SeverityFatal
	case "PANIC":
		return SeverityPanic
	case "WARNING":
		return SeverityWarning
	case "NOTICE":
		return SeverityNotice
	case "DEBUG":
		return SeverityDebug
	case "INFO":
		return SeverityInfo
	case "LOG":
		return SeverityLog
	default:
		return SeverityError
	}
}
