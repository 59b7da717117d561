package api

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fathima-sithara/support-chat/internal/domain"
	"github.com/fathima-sithara/support-chat/internal/store"
)

func (h *Handlers) login(c *fiber.Ctx) error {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid request body")
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	var details []fieldError
	if !strings.Contains(req.Email, "@") {
		details = append(details, fieldError{Field: "email", Message: "must be a valid email"})
	}
	if len(req.Password) < 6 {
		details = append(details, fieldError{Field: "password", Message: "must be at least 6 characters"})
	}
	if details != nil {
		return respondValidation(c, details)
	}

	if err := h.creds.Check(req.Email, req.Password); err != nil {
		return respondError(c, fiber.StatusUnauthorized, "Invalid credentials")
	}

	token, err := h.tokens.Generate(req.Email, "admin-"+uuid.NewString())
	if err != nil {
		h.log.Error("token generation failed", zap.Error(err))
		return respondError(c, fiber.StatusInternalServerError, "Login failed")
	}
	return respondData(c, fiber.Map{
		"token": token,
		"admin": fiber.Map{"email": req.Email, "role": "admin"},
	})
}

func (h *Handlers) listSessions(c *fiber.Ctx) error {
	includeUserInfo := c.Query("includeUserInfo") == "true"
	ctx, cancel := requestCtx(c)
	defer cancel()
	sessions, err := h.svc.ListSessions(ctx, includeUserInfo)
	if err != nil {
		return h.fail(c, err, "Failed to get sessions")
	}
	return respondData(c, sessions)
}

func (h *Handlers) adminGetSession(c *fiber.Ctx) error {
	includeUserInfo := c.Query("includeUserInfo") == "true"
	ctx, cancel := requestCtx(c)
	defer cancel()
	sess, err := h.svc.GetSession(ctx, c.Params("sessionId"), includeUserInfo)
	if err != nil {
		return h.fail(c, err, "Failed to get session")
	}
	return respondData(c, sess)
}

func (h *Handlers) adminMessage(c *fiber.Ctx) error {
	var req struct {
		SessionID string `json:"sessionId"`
		Text      string `json:"text"`
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

	claims := adminClaims(c)
	ctx, cancel := requestCtx(c)
	defer cancel()
	msg, err := h.svc.AppendMessage(ctx, req.SessionID, store.NewMessage{
		Text:    req.Text,
		IsBot:   true,
		IsAdmin: true,
		AdminID: claims.Email,
	})
	if err != nil {
		return h.fail(c, err, "Failed to send message")
	}
	return respondData(c, msg)
}

func (h *Handlers) updateStatus(c *fiber.Ctx) error {
	var req struct {
		Status string `json:"status"`
	}
	if err := c.BodyParser(&req); err != nil {
		return respondError(c, fiber.StatusBadRequest, "Invalid request body")
	}
	status := domain.Status(req.Status)
	if !status.Valid() {
		return respondValidation(c, []fieldError{{Field: "status", Message: "must be active, pending or closed"}})
	}

	ctx, cancel := requestCtx(c)
	defer cancel()
	if err := h.svc.UpdateStatus(ctx, c.Params("sessionId"), status); err != nil {
		return h.fail(c, err, "Failed to update session status")
	}
	return respondData(c, fiber.Map{"sessionId": c.Params("sessionId"), "status": status})
}

func (h *Handlers) stats(c *fiber.Ctx) error {
	ctx, cancel := requestCtx(c)
	defer cancel()
	st, err := h.svc.Stats(ctx)
	if err != nil {
		return h.fail(c, err, "Failed to get stats")
	}
	return respondData(c, st)
}

func (h *Handlers) verify(c *fiber.Ctx) error {
	claims := adminClaims(c)
	return respondData(c, fiber.Map{
		"admin":    claims,
		"verified": true,
	})
}
