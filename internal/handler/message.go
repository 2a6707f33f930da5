package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/deppfellow/partners/internal/model"
	"github.com/deppfellow/partners/internal/server"
	"github.com/deppfellow/partners/internal/service"
)

type MessageHandler struct {
	Handler
	messages *service.MessageService
}

func NewMessageHandler(s *server.Server, messages *service.MessageService) *MessageHandler {
	return &MessageHandler{Handler: NewHandler(s), messages: messages}
}

func (h *MessageHandler) ListForProgram(c echo.Context, req *model.ListMessagesRequest) (*model.MessagesResponse, error) {
	return withActor(c, req, h.messages.ListForProgram)
}

func (h *MessageHandler) SendFromProgram(c echo.Context, req *model.SendProgramMessageRequest) (*model.Message, error) {
	return withActor(c, req, h.messages.SendFromProgram)
}

func (h *MessageHandler) MarkReadByProgram(c echo.Context, req *model.PartnerRef) (*model.MarkReadResponse, error) {
	return withActor(c, req, h.messages.MarkReadByProgram)
}

func (h *MessageHandler) ListForPartner(c echo.Context, req *model.ListMessagesRequest) (*model.MessagesResponse, error) {
	return asPartner(c, req, h.messages.ListForPartner)
}

func (h *MessageHandler) SendFromPartner(c echo.Context, req *model.SendPartnerMessageRequest) (*model.Message, error) {
	return asPartner(c, req, h.messages.SendFromPartner)
}

func (h *MessageHandler) MarkReadByPartner(c echo.Context, req *model.ProgramRef) (*model.MarkReadResponse, error) {
	return asPartner(c, req, h.messages.MarkReadByPartner)
}
