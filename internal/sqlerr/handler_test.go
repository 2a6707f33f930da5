package sqlerr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deppfellow/partners/internal/errs"
)

func asHTTPError(t *testing.T, err error) *errs.HTTPError {
	t.Helper()
	var httpErr *errs.HTTPError
	require.True(t, errors.As(err, &httpErr), "expected *errs.HTTPError, got %T", err)
	return httpErr
}

func TestHandleError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantCode    string
		wantMessage string
	}{
		{
			name: "known unique constraint",
			err: fmt.Errorf("insert: %w", &pgconn.PgError{
				Code:           "23505",
				TableName:      "program_enrollments",
				ConstraintName: "unique_program_enrollments_partner",
			}),
			wantStatus:  http.StatusConflict,
			wantCode:    "PARTNER_ALREADY_ENROLLED",
			wantMessage: "The partner is already enrolled in this program",
		},
		{
			name: "other unique violation names the column",
			err: &pgconn.PgError{
				Code:           "23505",
				TableName:      "webhooks",
				ConstraintName: "webhooks_url_key",
			},
			wantStatus:  http.StatusConflict,
			wantCode:    "WEBHOOK_ALREADY_EXISTS",
			wantMessage: "A Webhook with this Url already exists",
		},
		{
			name: "foreign key violation",
			err: &pgconn.PgError{
				Code:       "23503",
				TableName:  "commissions",
				ColumnName: "partner_id",
			},
			wantStatus:  http.StatusBadRequest,
			wantCode:    "COMMISSION_NOT_FOUND",
			wantMessage: "The referenced Partner does not exist",
		},
		{
			name:       "serialization failure is retryable",
			err:        &pgconn.PgError{Code: "40001"},
			wantStatus: http.StatusConflict,
		},
		{
			name:        "bad uuid text",
			err:         &pgconn.PgError{Code: "22P02"},
			wantStatus:  http.StatusBadRequest,
			wantMessage: "Invalid identifier format",
		},
		{
			name:        "no rows with table hint",
			err:         fmt.Errorf("table:payouts: %w", pgx.ErrNoRows),
			wantStatus:  http.StatusNotFound,
			wantMessage: "Payout not found",
		},
		{
			name:        "no rows without hint",
			err:         pgx.ErrNoRows,
			wantStatus:  http.StatusNotFound,
			wantMessage: "Resource not found",
		},
		{
			name:        "unknown error is sanitized",
			err:         errors.New("connection reset by peer"),
			wantStatus:  http.StatusInternalServerError,
			wantMessage: http.StatusText(http.StatusInternalServerError),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			httpErr := asHTTPError(t, HandleError(tt.err))

			assert.Equal(t, tt.wantStatus, httpErr.Status)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, httpErr.Code)
			}
			if tt.wantMessage != "" {
				assert.Equal(t, tt.wantMessage, httpErr.Message)
			}
		})
	}
}

func TestHandleErrorPassesHTTPErrorsThrough(t *testing.T) {
	original := errs.NewConflictError("Payout already processing", errs.Code("PAYOUT_ALREADY_PROCESSING"))

	assert.Same(t, original, asHTTPError(t, HandleError(original)))
}

func TestNotNullViolationReportsField(t *testing.T) {
	httpErr := asHTTPError(t, HandleError(&pgconn.PgError{
		Code:       "23502",
		TableName:  "rewards",
		ColumnName: "event",
	}))

	assert.Equal(t, http.StatusBadRequest, httpErr.Status)
	assert.Equal(t, []errs.FieldError{{Field: "event", Error: "is required"}}, httpErr.Errors)
}

func TestIsUniqueViolation(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: "23505", ConstraintName: "commissions_event_id_key"})

	assert.True(t, IsUniqueViolation(err, ""))
	assert.True(t, IsUniqueViolation(err, "commissions_event_id_key"))
	assert.False(t, IsUniqueViolation(err, "other_key"))
	assert.False(t, IsUniqueViolation(errors.New("nope"), ""))
	assert.Equal(t, UniqueViolation, ErrCode(err))
}

func TestUniqueColumn(t *testing.T) {
	assert.Equal(t, "partner", uniqueColumn("unique_program_enrollments_partner"))
	assert.Equal(t, "url", uniqueColumn("webhooks_url_key"))
	assert.Empty(t, uniqueColumn("commissions_pkey"))
	assert.Empty(t, uniqueColumn(""))
}

func TestCheckViolationNamesColumn(t *testing.T) {
	httpErr := asHTTPError(t, HandleError(&pgconn.PgError{
		Code:       "23514",
		TableName:  "rewards",
		ColumnName: "max_duration",
	}))

	assert.Equal(t, http.StatusBadRequest, httpErr.Status)
	assert.Equal(t, "REWARD_INVALID", httpErr.Code)
	assert.Equal(t, "The Max Duration value does not meet required conditions", httpErr.Message)
}
