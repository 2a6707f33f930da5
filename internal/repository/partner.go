package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/deppfellow/partners/internal/database"
	"github.com/deppfellow/partners/internal/model"
)

const partnerColumns = `id, user_id, name, email, country, image, payouts_enabled_at, created_at, updated_at`

type PartnerRepository struct {
	db *database.Database
}

func (r *PartnerRepository) Create(ctx context.Context, p *model.Partner) (*model.Partner, error) {
	query := `
		INSERT INTO partners (id, user_id, name, email, country, image)
		VALUES (@id, @user_id, @name, LOWER(@email), @country, @image)
		RETURNING ` + partnerColumns

	return getOne[model.Partner](ctx, r.db.Q(ctx), "partners", query, pgx.NamedArgs{
		"id":      p.ID,
		"user_id": p.UserID,
		"name":    p.Name,
		"email":   p.Email,
		"country": p.Country,
		"image":   p.Image,
	})
}

func (r *PartnerRepository) GetByID(ctx context.Context, id string) (*model.Partner, error) {
	query := `SELECT ` + partnerColumns + ` FROM partners WHERE id = $1`
	return getOne[model.Partner](ctx, r.db.Q(ctx), "partners", query, id)
}

func (r *PartnerRepository) GetByEmail(ctx context.Context, email string) (*model.Partner, error) {
	query := `SELECT ` + partnerColumns + ` FROM partners WHERE email = LOWER($1)`
	return getOne[model.Partner](ctx, r.db.Q(ctx), "partners", query, email)
}

func (r *PartnerRepository) GetByUserID(ctx context.Context, userID string) (*model.Partner, error) {
	query := `SELECT ` + partnerColumns + ` FROM partners WHERE user_id = $1`
	return getOne[model.Partner](ctx, r.db.Q(ctx), "partners", query, userID)
}

// LinkUser attaches a Clerk user to a partner created before the user
// signed up (invited or applied by email).
func (r *PartnerRepository) LinkUser(ctx context.Context, id, userID string) (*model.Partner, error) {
	query := `
		UPDATE partners SET user_id = $2, updated_at = NOW()
		WHERE id = $1 AND (user_id IS NULL OR user_id = $2)
		RETURNING ` + partnerColumns
	p, err := getOne[model.Partner](ctx, r.db.Q(ctx), "partners", query, id, userID)
	if err != nil {
		return nil, fmt.Errorf("link user: %w", err)
	}
	return p, nil
}

func (r *PartnerRepository) EnablePayouts(ctx context.Context, id string) (*model.Partner, error) {
	query := `
		UPDATE partners SET payouts_enabled_at = COALESCE(payouts_enabled_at, NOW()), updated_at = NOW()
		WHERE id = $1
		RETURNING ` + partnerColumns
	return getOne[model.Partner](ctx, r.db.Q(ctx), "partners", query, id)
}
