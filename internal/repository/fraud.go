package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/deppfellow/partners/internal/database"
	"github.com/deppfellow/partners/internal/model"
)

const (
	fraudGroupColumns = `id, program_id, partner_id, type, status, event_count, last_event_at, resolution_reason,
	resolved_by, resolved_at, created_at, updated_at`
	fraudEventColumns = `id, group_id, commission_id, customer_id, metadata, created_at`
)

type FraudRepository struct {
	db *database.Database
}

// UpsertGroup returns the pending group of (program, partner, type),
// creating it when none exists and counting one more event either way.
func (r *FraudRepository) UpsertGroup(ctx context.Context, programID, partnerID string, typ model.FraudRuleType) (*model.FraudEventGroup, error) {
	query := `
		INSERT INTO fraud_event_groups (id, program_id, partner_id, type, status, event_count, last_event_at)
		VALUES (@id, @program_id, @partner_id, @type, 'pending', 1, NOW())
		ON CONFLICT (program_id, partner_id, type) WHERE status = 'pending'
		DO UPDATE SET
			event_count = fraud_event_groups.event_count + 1,
			last_event_at = NOW(),
			updated_at = NOW()
		RETURNING ` + fraudGroupColumns

	return getOne[model.FraudEventGroup](ctx, r.db.Q(ctx), "fraud_event_groups", query, pgx.NamedArgs{
		"id":         model.NewID(model.PrefixFraudGroup),
		"program_id": programID,
		"partner_id": partnerID,
		"type":       typ,
	})
}

func (r *FraudRepository) CreateEvent(ctx context.Context, e *model.FraudEvent) (*model.FraudEvent, error) {
	query := `
		INSERT INTO fraud_events (id, group_id, commission_id, customer_id, metadata)
		VALUES (@id, @group_id, @commission_id, @customer_id, @metadata)
		RETURNING ` + fraudEventColumns

	metadata := e.Metadata
	if len(metadata) == 0 {
		metadata = []byte(`{}`)
	}

	return getOne[model.FraudEvent](ctx, r.db.Q(ctx), "fraud_events", query, pgx.NamedArgs{
		"id":            e.ID,
		"group_id":      e.GroupID,
		"commission_id": e.CommissionID,
		"customer_id":   e.CustomerID,
		"metadata":      metadata,
	})
}

func (r *FraudRepository) GetGroup(ctx context.Context, programID, id string) (*model.FraudEventGroup, error) {
	query := `SELECT ` + fraudGroupColumns + ` FROM fraud_event_groups WHERE program_id = $1 AND id = $2`
	return getOne[model.FraudEventGroup](ctx, r.db.Q(ctx), "fraud_event_groups", query, programID, id)
}

func (r *FraudRepository) ListEvents(ctx context.Context, groupID string) ([]model.FraudEvent, error) {
	query := `SELECT ` + fraudEventColumns + ` FROM fraud_events WHERE group_id = $1 ORDER BY created_at DESC`
	return getAll[model.FraudEvent](ctx, r.db.Q(ctx), "fraud_events", query, groupID)
}

const fraudGroupFilter = `
	WHERE program_id = @program_id
		AND (@status::text IS NULL OR status = @status)
		AND (@type::text IS NULL OR type = @type)
		AND (@partner_id::text IS NULL OR partner_id = @partner_id)`

func (r *FraudRepository) ListGroups(ctx context.Context, f model.FraudGroupFilter) ([]model.FraudEventGroup, int, error) {
	args := pgx.NamedArgs{
		"program_id": f.ProgramID,
		"status":     f.Status,
		"type":       f.Type,
		"partner_id": f.PartnerID,
		"limit":      f.Limit(),
		"offset":     f.Offset(),
	}

	total, err := count(ctx, r.db.Q(ctx), `SELECT COUNT(*) FROM fraud_event_groups`+fraudGroupFilter, args)
	if err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + fraudGroupColumns + ` FROM fraud_event_groups` + fraudGroupFilter +
		` ORDER BY last_event_at DESC LIMIT @limit OFFSET @offset`
	items, err := getAll[model.FraudEventGroup](ctx, r.db.Q(ctx), "fraud_event_groups", query, args)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// ResolveGroups resolves the pending groups among ids and returns how many
// changed.
func (r *FraudRepository) ResolveGroups(ctx context.Context, programID string, ids []string, reason, resolvedBy string) (int64, error) {
	query := `
		UPDATE fraud_event_groups SET
			status = 'resolved', resolution_reason = $3, resolved_by = $4, resolved_at = NOW(), updated_at = NOW()
		WHERE program_id = $1 AND id = ANY($2) AND status = 'pending'`
	return exec(ctx, r.db.Q(ctx), "fraud_event_groups", query, programID, nonNil(ids), reason, resolvedBy)
}

func (r *FraudRepository) ResolvePendingForPartner(ctx context.Context, programID, partnerID, reason, resolvedBy string) (int64, error) {
	query := `
		UPDATE fraud_event_groups SET
			status = 'resolved', resolution_reason = $3, resolved_by = $4, resolved_at = NOW(), updated_at = NOW()
		WHERE program_id = $1 AND partner_id = $2 AND status = 'pending'`
	return exec(ctx, r.db.Q(ctx), "fraud_event_groups", query, programID, partnerID, reason, resolvedBy)
}
