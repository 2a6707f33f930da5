package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/deppfellow/partners/internal/database"
	"github.com/deppfellow/partners/internal/model"
)

const messageColumns = `id, program_id, partner_id, sender_partner_id, sender_user_id, text, read_in_app, read_in_email, created_at`

type MessageRepository struct {
	db *database.Database
}

func (r *MessageRepository) Create(ctx context.Context, m *model.Message) (*model.Message, error) {
	query := `
		INSERT INTO messages (id, program_id, partner_id, sender_partner_id, sender_user_id, text)
		VALUES (@id, @program_id, @partner_id, @sender_partner_id, @sender_user_id, @text)
		RETURNING ` + messageColumns

	return getOne[model.Message](ctx, r.db.Q(ctx), "messages", query, pgx.NamedArgs{
		"id":                m.ID,
		"program_id":        m.ProgramID,
		"partner_id":        m.PartnerID,
		"sender_partner_id": m.SenderPartnerID,
		"sender_user_id":    m.SenderUserID,
		"text":              m.Text,
	})
}

// List pages backwards through a conversation, newest first, starting
// strictly before before when it is set.
func (r *MessageRepository) List(ctx context.Context, programID, partnerID string, before *time.Time, limit int) ([]model.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages
		WHERE program_id = $1 AND partner_id = $2 AND ($3::timestamptz IS NULL OR created_at < $3)
		ORDER BY created_at DESC
		LIMIT $4`
	return getAll[model.Message](ctx, r.db.Q(ctx), "messages", query, programID, partnerID, before, limit)
}

// senderIs narrows to messages written by one side of the conversation.
func senderIs(direction model.MessageDirection) string {
	if direction == model.FromPartner {
		return `sender_partner_id IS NOT NULL`
	}
	return `sender_user_id IS NOT NULL`
}

// MarkRead marks the messages written by direction as read in the app.
func (r *MessageRepository) MarkRead(ctx context.Context, programID, partnerID string, direction model.MessageDirection) (int64, error) {
	query := `
		UPDATE messages SET read_in_app = NOW()
		WHERE program_id = $1 AND partner_id = $2 AND read_in_app IS NULL AND ` + senderIs(direction)
	return exec(ctx, r.db.Q(ctx), "messages", query, programID, partnerID)
}

// ListUnnotified returns the messages written by direction that were
// neither read nor emailed yet, oldest first.
func (r *MessageRepository) ListUnnotified(ctx context.Context, programID, partnerID string, direction model.MessageDirection) ([]model.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages
		WHERE program_id = $1 AND partner_id = $2 AND read_in_app IS NULL AND read_in_email IS NULL AND ` +
		senderIs(direction) + ` ORDER BY created_at`
	return getAll[model.Message](ctx, r.db.Q(ctx), "messages", query, programID, partnerID)
}

func (r *MessageRepository) MarkEmailed(ctx context.Context, ids []string) (int64, error) {
	query := `UPDATE messages SET read_in_email = NOW() WHERE id = ANY($1) AND read_in_email IS NULL`
	return exec(ctx, r.db.Q(ctx), "messages", query, nonNil(ids))
}
