package handler

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"ai-sales-agent-be/internal/pkg/logger"
	internalWS "ai-sales-agent-be/internal/websocket"
	"ai-sales-agent-be/pkg/agent"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubResponder struct {
	userID, message string
	deadline        time.Time
	err             error
}

func (s *stubResponder) Respond(ctx context.Context, userID, message string) (*agent.Exchange, error) {
	s.userID, s.message = userID, message
	s.deadline, _ = ctx.Deadline()
	return &agent.Exchange{UserID: userID}, s.err
}

func newChatApp(secret string, responder Responder) *fiber.App {
	app := fiber.New()
	hub := internalWS.NewHub(nil, logger.NewNopLogger())
	NewChatHandler(responder, hub, secret, 0, logger.NewNopLogger()).RegisterRoutes(app)
	return app
}

func status(t *testing.T, app *fiber.App, target, auth string) int {
	t.Helper()
	req := httptest.NewRequest("GET", target, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp.StatusCode
}

func TestServeWsHandshakeAuth(t *testing.T) {
	secret := "s3cret"
	app := newChatApp(secret, &stubResponder{})

	valid, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"user_id": "operator"}).SignedString([]byte(secret))
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusUnauthorized, status(t, app, "/ws/agent/42", ""))
	assert.Equal(t, fiber.StatusUnauthorized, status(t, app, "/ws/agent/42?token=garbage", ""))
	// authorised but not an upgrade request
	assert.Equal(t, fiber.StatusUpgradeRequired, status(t, app, "/ws/agent/42?token="+valid, ""))
	assert.Equal(t, fiber.StatusUpgradeRequired, status(t, app, "/ws/agent/42", "Bearer "+valid))
}

func TestServeWsWithoutSecret(t *testing.T) {
	app := newChatApp("", &stubResponder{})

	assert.Equal(t, fiber.StatusUpgradeRequired, status(t, app, "/ws/agent/42", ""))
}

func TestOnMessageDelegates(t *testing.T) {
	responder := &stubResponder{err: agent.ErrSessionTerminated}
	h := NewChatHandler(responder, nil, "", 0, logger.NewNopLogger())

	err := h.onMessage(context.Background(), "42", "Bonjour")

	assert.True(t, errors.Is(err, agent.ErrSessionTerminated))
	assert.Equal(t, "42", responder.userID)
	assert.Equal(t, "Bonjour", responder.message)
}

func TestOnMessageAppliesTurnBudget(t *testing.T) {
	responder := &stubResponder{}
	h := NewChatHandler(responder, nil, "", 5*time.Minute, logger.NewNopLogger())

	start := time.Now()
	require.NoError(t, h.onMessage(context.Background(), "42", "Bonjour"))

	assert.WithinDuration(t, start.Add(5*time.Minute), responder.deadline, 5*time.Second)
}
