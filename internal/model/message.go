package model

import "time"

type Message struct {
	ID              string     `json:"id" db:"id"`
	ProgramID       string     `json:"programId" db:"program_id"`
	PartnerID       string     `json:"partnerId" db:"partner_id"`
	SenderPartnerID *string    `json:"senderPartnerId" db:"sender_partner_id"`
	SenderUserID    *string    `json:"senderUserId" db:"sender_user_id"`
	Text            string     `json:"text" db:"text"`
	ReadInApp       *time.Time `json:"readInApp" db:"read_in_app"`
	ReadInEmail     *time.Time `json:"readInEmail" db:"read_in_email"`
	CreatedAt       time.Time  `json:"createdAt" db:"created_at"`
}

// MessageDirection tells which side of a conversation wrote a message.
type MessageDirection string

const (
	FromProgram MessageDirection = "program"
	FromPartner MessageDirection = "partner"
)

// Direction derives the sending side from the sender columns.
func (m *Message) Direction() MessageDirection {
	if m.SenderPartnerID != nil {
		return FromPartner
	}
	return FromProgram
}

type SendProgramMessageRequest struct {
	ProgramID string `json:"-" param:"programId" validate:"required"`
	PartnerID string `json:"-" param:"partnerId" validate:"required"`
	Text      string `json:"text" validate:"required,min=1,max=2000"`
}

func (r *SendProgramMessageRequest) Validate() error {
	return validate.Struct(r)
}

type SendPartnerMessageRequest struct {
	ProgramID string `json:"-" param:"programId" validate:"required"`
	Text      string `json:"text" validate:"required,min=1,max=2000"`
}

func (r *SendPartnerMessageRequest) Validate() error {
	return validate.Struct(r)
}

type ListMessagesRequest struct {
	ProgramID string     `json:"-" param:"programId" validate:"required"`
	PartnerID string     `json:"-" param:"partnerId"`
	Before    *time.Time `query:"before"`
	Limit     int        `query:"limit" validate:"omitempty,min=1,max=100"`
}

func (r *ListMessagesRequest) Validate() error {
	return validate.Struct(r)
}

func (r *ListMessagesRequest) PageLimit() int {
	if r.Limit <= 0 {
		return DefaultPageSize
	}
	return r.Limit
}

type MessagesResponse struct {
	Messages   []Message  `json:"messages"`
	NextBefore *time.Time `json:"nextBefore"`
}

type MarkReadResponse struct {
	Count int64 `json:"count"`
}
