package api

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/fathima-sithara/support-chat/internal/auth"
	"github.com/fathima-sithara/support-chat/internal/chat"
	"github.com/fathima-sithara/support-chat/internal/domain"
	"github.com/fathima-sithara/support-chat/internal/store"
)

const maxMessageLen = 1000

type Handlers struct {
	svc    *chat.Service
	tokens *auth.TokenManager
	creds  auth.Credentials
	log    *zap.Logger
}

func NewHandlers(svc *chat.Service, tokens *auth.TokenManager, creds auth.Credentials, log *zap.Logger) *Handlers {
	return &Handlers{svc: svc, tokens: tokens, creds: creds, log: log}
}

func (h *Handlers) createSession(c *fiber.Ctx) error {
	var req struct {
		SessionID string           `json:"sessionId"`
		UserInfo  *domain.UserInfo `json:"userInfo"`
	}
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if details := validateSessionID(req.SessionID); details != nil {
		return respondValidation(c, details)
	}

	// stamp request metadata before the sensitive fields get sealed
	info := req.UserInfo
	if info == nil {
		info = &domain.UserInfo{}
	}
	info.IP = c.IP()
	info.UserAgent = c.Get("User-Agent")
	info.Timestamp = time.Now().UnixMilli()
	if origin := c.Get("Origin"); origin != "" {
		info.Origin = origin
	} else {
		info.Origin = c.Get("Referer")
	}

	ctx, cancel := requestCtx(c)
	defer cancel()
	sess, err := h.svc.CreateSession(ctx, req.SessionID, info)
	if err != nil {
		return h.fail(c, err, "Failed to create session")
	}
	return respondData(c, sess)
}

func (h *Handlers) addMessage(c *fiber.Ctx) error {
	var req struct {
		SessionID string `json:"sessionId"`
		Text      string `json:"text"`
		IsBot     bool   `json:"isBot"`
		IsAdmin   bool   `json:"isAdmin"`
	}
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	details := validateSessionID(req.SessionID)
	req.Text = clampText(req.Text)
	if req.Text == "" {
		details = append(details, fieldError{Field: "text", Message: "must be 1-1000 characters"})
	}
	if details != nil {
		return respondValidation(c, details)
	}

	ctx, cancel := requestCtx(c)
	defer cancel()
	msg, err := h.svc.AppendMessage(ctx, req.SessionID, store.NewMessage{
		Text:    req.Text,
		IsBot:   req.IsBot,
		IsAdmin: req.IsAdmin,
	})
	if err != nil {
		return h.fail(c, err, "Failed to add message")
	}
	return respondData(c, msg)
}

func (h *Handlers) getMessages(c *fiber.Ctx) error {
	ctx, cancel := requestCtx(c)
	defer cancel()
	msgs, err := h.svc.ListMessages(ctx, c.Params("sessionId"))
	if err != nil {
		return h.fail(c, err, "Failed to get messages")
	}
	return respondData(c, msgs)
}

func (h *Handlers) getSession(c *fiber.Ctx) error {
	ctx, cancel := requestCtx(c)
	defer cancel()
	sess, err := h.svc.GetSession(ctx, c.Params("sessionId"), false)
	if err != nil {
		return h.fail(c, err, "Failed to get session")
	}
	return respondData(c, sess)
}

func (h *Handlers) webhook(c *fiber.Ctx) error {
	var req struct {
		SessionID string `json:"sessionId"`
		Message   string `json:"message"`
	}
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	details := validateSessionID(req.SessionID)
	req.Message = clampText(req.Message)
	if req.Message == "" {
		details = append(details, fieldError{Field: "message", Message: "must be 1-1000 characters"})
	}
	if details != nil {
		return respondValidation(c, details)
	}

	ctx, cancel := requestCtx(c)
	defer cancel()
	userMessage, botReply, err := h.svc.Relay(ctx, req.SessionID, req.Message)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return respondError(c, fiber.StatusNotFound, "Session not found")
		}
		h.log.Error("webhook relay failed", zap.String("session_id", req.SessionID), zap.Error(err))
		return respondError(c, fiber.StatusInternalServerError, "Failed to process message")
	}
	return respondData(c, fiber.Map{
		"userMessage": userMessage,
		"botReply":    botReply,
	})
}

// fail maps service errors onto the taxonomy; anything unrecognized is logged
// and surfaced as a generic internal failure.
func (h *Handlers) fail(c *fiber.Ctx, err error, fallback string) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return respondError(c, fiber.StatusNotFound, "Session not found")
	case errors.Is(err, chat.ErrEmptyText):
		return respondError(c, fiber.StatusBadRequest, "Message text required")
	case errors.Is(err, chat.ErrInvalidStatus):
		return respondError(c, fiber.StatusBadRequest, "Invalid status")
	default:
		h.log.Error(fallback, zap.Error(err))
		return respondError(c, fiber.StatusInternalServerError, fallback)
	}
}

func validateSessionID(id string) []fieldError {
	if len(id) < 10 || len(id) > 100 || !domain.ValidSessionID(id) {
		return []fieldError{{Field: "sessionId", Message: "must match custom_session_<digits>_<alphanumeric>"}}
	}
	return nil
}

// clampText mirrors the input limits applied before validation: trim, then
// cap at the maximum message length. The limit counts characters, so the cut
// lands on a rune boundary.
func clampText(text string) string {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) > maxMessageLen {
		runes := []rune(text)
		text = string(runes[:maxMessageLen])
	}
	return text
}

func requestCtx(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Context(), 5*time.Second)
}
