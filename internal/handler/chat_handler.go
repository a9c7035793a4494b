package handler

import (
	"context"
	"time"

	"ai-sales-agent-be/internal/pkg/logger"
	internalWS "ai-sales-agent-be/internal/websocket"
	"ai-sales-agent-be/pkg/agent"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/golang-jwt/jwt/v5"
)

const chatModule = "ChatHandler"

// Responder answers a customer message; the orchestrator implements it.
type Responder interface {
	Respond(ctx context.Context, userID, message string) (*agent.Exchange, error)
}

// ChatHandler exposes a conversation over a websocket. Replies are pushed by
// the turn consumer through the hub, so every connection of the user sees them.
type ChatHandler struct {
	responder Responder
	hub       *internalWS.Hub
	jwtSecret string
	timeout   time.Duration
	logger    logger.ILogger
}

func NewChatHandler(responder Responder, hub *internalWS.Hub, jwtSecret string, timeout time.Duration, log logger.ILogger) *ChatHandler {
	if timeout <= 0 {
		timeout = 3 * time.Minute
	}
	return &ChatHandler{
		responder: responder,
		hub:       hub,
		jwtSecret: jwtSecret,
		timeout:   timeout,
		logger:    log,
	}
}

func (h *ChatHandler) RegisterRoutes(r fiber.Router) {
	r.Get("/ws/agent/:userId", h.ServeWs)
}

// ServeWs handles websocket requests from the peer.
func (h *ChatHandler) ServeWs(c *fiber.Ctx) error {
	if err := h.authorize(c); err != nil {
		h.logger.Warn(chatModule, "Invalid Token in WS Handshake", map[string]interface{}{"error": err.Error()})
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
	}

	userID := c.Params("userId")
	if userID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "missing user id")
	}

	if websocket.IsWebSocketUpgrade(c) {
		return websocket.New(func(conn *websocket.Conn) {
			h.logger.Info(chatModule, "Starting WebSocket session", map[string]interface{}{"user_id": userID})
			internalWS.ServeWs(h.hub, conn, userID, h.onMessage)
			h.logger.Info(chatModule, "WebSocket session ended", map[string]interface{}{"user_id": userID})
		})(c)
	}
	return fiber.ErrUpgradeRequired
}

func (h *ChatHandler) onMessage(ctx context.Context, userID, message string) error {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	_, err := h.responder.Respond(ctx, userID, message)
	return err
}

// authorize accepts the token from the query string (browsers cannot set
// headers on upgrade) or the Authorization header.
func (h *ChatHandler) authorize(c *fiber.Ctx) error {
	if h.jwtSecret == "" {
		return nil
	}

	tokenStr := c.Query("token")
	if tokenStr == "" {
		authHeader := c.Get("Authorization")
		if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
			tokenStr = authHeader[7:]
		}
	}
	if tokenStr == "" {
		return fiber.NewError(fiber.StatusUnauthorized, "missing token (query 'token' or header 'Authorization')")
	}

	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fiber.ErrUnauthorized
		}
		return []byte(h.jwtSecret), nil
	})
	if err != nil || !token.Valid {
		return fiber.NewError(fiber.StatusUnauthorized, "invalid token")
	}
	return nil
}
