package websocket

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/gofiber/websocket/v2"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096

	// inboxSize bounds the messages queued behind a running turn.
	inboxSize = 4
)

// ErrBusy is sent back when messages arrive faster than turns complete.
const ErrBusy = "a previous message is still being answered"

// Frame types written to clients.
const (
	FrameTurn  = "turn"
	FrameError = "error"
)

// MessageHandler answers one inbound chat message. Its reply reaches the
// client through the hub once the turn is recorded.
type MessageHandler func(ctx context.Context, userID, message string) error

type inboundFrame struct {
	Message string `json:"message"`
}

// Client is a middleman between the websocket connection and the hub.
type Client struct {
	Hub *Hub

	// The websocket connection.
	Conn *websocket.Conn

	// UserID associated with this connection
	UserID string

	// Buffered channel of outbound messages.
	Send chan []byte

	onMessage MessageHandler
}

// turnWorker answers one message at a time off the read loop. A turn can
// outlast pongWait, and the read loop must keep reading to see pongs.
type turnWorker struct {
	ctx    context.Context
	cancel context.CancelFunc
	inbox  chan string
	done   chan struct{}
	handle func(ctx context.Context, message string)
}

func newTurnWorker(handle func(ctx context.Context, message string)) *turnWorker {
	ctx, cancel := context.WithCancel(context.Background())
	w := &turnWorker{
		ctx:    ctx,
		cancel: cancel,
		inbox:  make(chan string, inboxSize),
		done:   make(chan struct{}),
		handle: handle,
	}
	go w.run()
	return w
}

func (w *turnWorker) run() {
	defer close(w.done)
	for message := range w.inbox {
		if w.ctx.Err() != nil {
			continue
		}
		w.handle(w.ctx, message)
	}
}

// submit queues a message and reports false when the inbox is full.
func (w *turnWorker) submit(message string) bool {
	select {
	case w.inbox <- message:
		return true
	default:
		return false
	}
}

// stop cancels the running turn and drops queued ones. Callers must not
// submit afterwards.
func (w *turnWorker) stop() {
	w.cancel()
	close(w.inbox)
}

// readPump pumps messages from the websocket connection to the turn worker.
func (c *Client) readPump() {
	worker := newTurnWorker(c.answer)
	defer func() {
		worker.stop()
		c.Hub.logger.Debug("Hub", "readPump exiting", map[string]interface{}{"user_id": c.UserID})
		c.Hub.unregister <- c
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.logger.Warn("Hub", "Unexpected websocket close", map[string]interface{}{
					"user_id": c.UserID,
					"error":   err.Error(),
				})
			}
			break
		}
		c.enqueue(worker, raw)
	}
}

func (c *Client) enqueue(worker *turnWorker, raw []byte) {
	message := parseInbound(raw)
	if message == "" || c.onMessage == nil {
		return
	}
	if !worker.submit(message) {
		c.Hub.SendLocal(c.UserID, FrameError, map[string]string{"error": ErrBusy})
	}
}

func (c *Client) answer(ctx context.Context, message string) {
	err := c.onMessage(ctx, c.UserID, message)
	if err != nil && ctx.Err() == nil {
		c.Hub.SendLocal(c.UserID, FrameError, map[string]string{"error": err.Error()})
	}
}

// parseInbound reads {"message": "..."}; plain text frames are accepted as
// the message itself.
func parseInbound(raw []byte) string {
	var frame inboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		frame.Message = string(raw)
	}
	return strings.TrimSpace(frame.Message)
}

// writePump pumps messages from the hub to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			// One frame per message: clients parse each as a JSON envelope.
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Hub.logger.Debug("Hub", "Ping failed", map[string]interface{}{"user_id": c.UserID, "error": err.Error()})
				return
			}
		}
	}
}
