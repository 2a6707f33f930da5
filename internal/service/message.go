package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/deppfellow/partners/internal/errs"
	"github.com/deppfellow/partners/internal/lib/email"
	"github.com/deppfellow/partners/internal/lib/job"
	"github.com/deppfellow/partners/internal/logger"
	"github.com/deppfellow/partners/internal/model"
)

const messagePreviewLength = 200

type MessageService struct {
	programs    *ProgramService
	messages    MessageStore
	enrollments EnrollmentStore
	partners    PartnerStore
	effects     *effects
	appURL      string
	logger      *zerolog.Logger
}

func NewMessageService(programs *ProgramService, messages MessageStore, enrollments EnrollmentStore, partners PartnerStore, fx *effects, appURL string, logger *zerolog.Logger) *MessageService {
	return &MessageService{
		programs:    programs,
		messages:    messages,
		enrollments: enrollments,
		partners:    partners,
		effects:     fx,
		appURL:      strings.TrimRight(appURL, "/"),
		logger:      logger,
	}
}

var errMessagingDisabled = errs.NewForbiddenError("Messaging is disabled for this program", true)

// SendFromProgram writes to an enrolled partner on behalf of the program.
func (s *MessageService) SendFromProgram(ctx context.Context, actor model.Actor, req *model.SendProgramMessageRequest) (*model.Message, error) {
	program, err := s.programs.Scoped(ctx, actor, req.ProgramID)
	if err != nil {
		return nil, err
	}
	if !program.MessagingEnabled {
		return nil, errMessagingDisabled
	}
	if _, err := s.enrollments.Get(ctx, program.ID, req.PartnerID); err != nil {
		return nil, err
	}

	m, err := s.messages.Create(ctx, &model.Message{
		ID:           model.NewID(model.PrefixMessage),
		ProgramID:    program.ID,
		PartnerID:    req.PartnerID,
		SenderUserID: &actor.UserID,
		Text:         req.Text,
	})
	if err != nil {
		return nil, err
	}

	s.scheduleNotification(ctx, program.ID, req.PartnerID, model.FromProgram)
	return m, nil
}

// SendFromPartner writes to a program the partner is enrolled in and not
// banned from.
func (s *MessageService) SendFromPartner(ctx context.Context, partner *model.Partner, req *model.SendPartnerMessageRequest) (*model.Message, error) {
	program, err := s.programs.ByID(ctx, req.ProgramID)
	if err != nil {
		return nil, err
	}
	e, err := s.enrollments.Get(ctx, program.ID, partner.ID)
	if err != nil {
		return nil, err
	}
	if e.Status == model.EnrollmentBanned {
		return nil, errs.NewForbiddenError("You are banned from this program", true)
	}
	if !program.MessagingEnabled {
		return nil, errMessagingDisabled
	}

	m, err := s.messages.Create(ctx, &model.Message{
		ID:              model.NewID(model.PrefixMessage),
		ProgramID:       program.ID,
		PartnerID:       partner.ID,
		SenderPartnerID: &partner.ID,
		Text:            req.Text,
	})
	if err != nil {
		return nil, err
	}

	s.scheduleNotification(ctx, program.ID, partner.ID, model.FromPartner)
	return m, nil
}

// scheduleNotification queues the delayed email for the other side. A task
// already waiting for this conversation side absorbs the new message.
func (s *MessageService) scheduleNotification(ctx context.Context, programID, partnerID string, direction model.MessageDirection) {
	task, err := job.NewNotifyMessagesTask(programID, partnerID, direction)
	if err == nil {
		_, err = s.effects.jobs.EnqueueContext(ctx, task)
	}
	if err != nil && !errors.Is(err, asynq.ErrDuplicateTask) {
		logger.FromContext(ctx, s.logger).Error().Err(err).
			Str("program_id", programID).
			Str("partner_id", partnerID).
			Msg("failed to schedule message notification")
	}
}

func (s *MessageService) ListForProgram(ctx context.Context, actor model.Actor, req *model.ListMessagesRequest) (*model.MessagesResponse, error) {
	if _, err := s.programs.Scoped(ctx, actor, req.ProgramID); err != nil {
		return nil, err
	}
	return s.list(ctx, req.ProgramID, req.PartnerID, req)
}

func (s *MessageService) ListForPartner(ctx context.Context, partner *model.Partner, req *model.ListMessagesRequest) (*model.MessagesResponse, error) {
	if _, err := s.enrollments.Get(ctx, req.ProgramID, partner.ID); err != nil {
		return nil, err
	}
	return s.list(ctx, req.ProgramID, partner.ID, req)
}

func (s *MessageService) list(ctx context.Context, programID, partnerID string, req *model.ListMessagesRequest) (*model.MessagesResponse, error) {
	limit := req.PageLimit()
	msgs, err := s.messages.List(ctx, programID, partnerID, req.Before, limit)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []model.Message{}
	}

	resp := &model.MessagesResponse{Messages: msgs}
	if len(msgs) == limit {
		resp.NextBefore = &msgs[len(msgs)-1].CreatedAt
	}
	return resp, nil
}

// MarkReadByProgram marks what the partner wrote as read.
func (s *MessageService) MarkReadByProgram(ctx context.Context, actor model.Actor, req *model.PartnerRef) (*model.MarkReadResponse, error) {
	if _, err := s.programs.Scoped(ctx, actor, req.ProgramID); err != nil {
		return nil, err
	}
	n, err := s.messages.MarkRead(ctx, req.ProgramID, req.PartnerID, model.FromPartner)
	if err != nil {
		return nil, err
	}
	return &model.MarkReadResponse{Count: n}, nil
}

// MarkReadByPartner marks what the program wrote as read.
func (s *MessageService) MarkReadByPartner(ctx context.Context, partner *model.Partner, req *model.ProgramRef) (*model.MarkReadResponse, error) {
	if _, err := s.enrollments.Get(ctx, req.ProgramID, partner.ID); err != nil {
		return nil, err
	}
	n, err := s.messages.MarkRead(ctx, req.ProgramID, partner.ID, model.FromProgram)
	if err != nil {
		return nil, err
	}
	return &model.MarkReadResponse{Count: n}, nil
}

// NotifyUnread emails the recipient about messages from direction that are
// still unread, then marks them as emailed.
func (s *MessageService) NotifyUnread(ctx context.Context, programID, partnerID string, direction model.MessageDirection) error {
	log := logger.FromContext(ctx, s.logger).With().
		Str("program_id", programID).
		Str("partner_id", partnerID).
		Str("direction", string(direction)).
		Logger()

	msgs, err := s.messages.ListUnnotified(ctx, programID, partnerID, direction)
	if err != nil {
		return err
	}
	if len(msgs) == 0 {
		log.Debug().Msg("messages already read, no notification")
		return nil
	}

	program, err := s.programs.ByID(ctx, programID)
	if err != nil {
		return err
	}
	partner, err := s.partners.GetByID(ctx, partnerID)
	if err != nil {
		return err
	}

	data := map[string]string{
		"ProgramName":  program.Name,
		"MessageCount": strconv.Itoa(len(msgs)),
		"Preview":      preview(msgs[len(msgs)-1].Text),
	}

	var to string
	if direction == model.FromProgram {
		to = partner.Email
		data["RecipientName"] = partner.Name
		data["SenderName"] = program.Name
		data["ConversationURL"] = s.appURL + "/partner/programs/" + program.Slug + "/messages"
	} else {
		if program.SupportEmail == nil {
			log.Debug().Msg("program has no support email, skipping notification")
			return nil
		}
		to = *program.SupportEmail
		data["RecipientName"] = program.Name
		data["SenderName"] = partner.Name
		data["ConversationURL"] = s.appURL + "/programs/" + program.ID + "/messages/" + partner.ID
	}

	s.effects.email(ctx, to, email.TemplateNewMessage, data)

	ids := make([]string, len(msgs))
	for i, m := range msgs {
		ids[i] = m.ID
	}
	_, err = s.messages.MarkEmailed(ctx, ids)
	return err
}

func preview(text string) string {
	if utf8.RuneCountInString(text) <= messagePreviewLength {
		return text
	}
	runes := []rune(text)
	return string(runes[:messagePreviewLength]) + "…"
}
