// Package repository handles all interactions with the database.
//
// It contains raw SQL queries and methods to fetch, persist,
// or update data, abstracting SQL logic away from the service layer.
// Every method runs on database.Q(ctx), so it joins the caller's
// transaction when there is one.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/deppfellow/partners/internal/database"
	"github.com/deppfellow/partners/internal/server"
)

// ErrStatusChanged is returned by conditional updates that matched no row
// because the row left the expected status in the meantime.
var ErrStatusChanged = errors.New("row status changed concurrently")

// Repositories is a container for all repository instances.
type Repositories struct {
	Programs    *ProgramRepository
	Partners    *PartnerRepository
	Enrollments *EnrollmentRepository
	Rewards     *RewardRepository
	Discounts   *DiscountRepository
	Commissions *CommissionRepository
	Payouts     *PayoutRepository
	Invoices    *InvoiceRepository
	Fraud       *FraudRepository
	Bounties    *BountyRepository
	Messages    *MessageRepository
	Webhooks    *WebhookRepository
	AuditLogs   *AuditLogRepository
}

// NewRepositories builds every repository on the server's pool.
func NewRepositories(s *server.Server) *Repositories {
	db := s.DB
	return &Repositories{
		Programs:    &ProgramRepository{db: db},
		Partners:    &PartnerRepository{db: db},
		Enrollments: &EnrollmentRepository{db: db},
		Rewards:     &RewardRepository{db: db},
		Discounts:   &DiscountRepository{db: db},
		Commissions: &CommissionRepository{db: db},
		Payouts:     &PayoutRepository{db: db},
		Invoices:    &InvoiceRepository{db: db},
		Fraud:       &FraudRepository{db: db},
		Bounties:    &BountyRepository{db: db},
		Messages:    &MessageRepository{db: db},
		Webhooks:    &WebhookRepository{db: db},
		AuditLogs:   &AuditLogRepository{db: db},
	}
}

// getOne runs query and maps the single returned row onto T by db tags.
// No row becomes a "table:<name>:" wrapped pgx.ErrNoRows, which
// sqlerr.HandleError turns into a 404 naming the entity.
func getOne[T any](ctx context.Context, q database.Querier, table, query string, args ...any) (*T, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}

	item, err := pgx.CollectOneRow(rows, pgx.RowToAddrOfStructByName[T])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("table:%s: %w", table, err)
		}
		return nil, fmt.Errorf("failed to collect %s: %w", table, err)
	}

	return item, nil
}

func getAll[T any](ctx context.Context, q database.Querier, table, query string, args ...any) ([]T, error) {
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}

	items, err := pgx.CollectRows(rows, pgx.RowToStructByName[T])
	if err != nil {
		return nil, fmt.Errorf("failed to collect %s: %w", table, err)
	}

	return items, nil
}

// conditional is getOne for UPDATE ... WHERE status = ANY(...) RETURNING
// statements: no row means another writer got there first.
func conditional[T any](ctx context.Context, q database.Querier, table, query string, args ...any) (*T, error) {
	item, err := getOne[T](ctx, q, table, query, args...)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", table, ErrStatusChanged)
	}
	return item, err
}

func notFound(table string) error {
	return fmt.Errorf("table:%s: %w", table, pgx.ErrNoRows)
}

func count(ctx context.Context, q database.Querier, query string, args ...any) (int, error) {
	var n int
	if err := q.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count rows: %w", err)
	}
	return n, nil
}

func exec(ctx context.Context, q database.Querier, table, query string, args ...any) (int64, error) {
	tag, err := q.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to update %s: %w", table, err)
	}
	return tag.RowsAffected(), nil
}

// nonNil keeps ANY(@ids) comparisons from seeing NULL.
func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
