package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/aroosi/aroosi-api/internal/model"
	"github.com/aroosi/aroosi-api/internal/service"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 8 << 10
	sendBuffer     = 32
)

// Client frame types.
const (
	FrameTyping  = "typing"
	FrameMessage = "message"
)

// Frame is a client to server websocket message.
type Frame struct {
	Type           string `json:"type"`
	ConversationID string `json:"conversationId"`
	Text           string `json:"text,omitempty"`
}

// ErrorData is the payload of an error event.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Messenger handles client frames.
type Messenger interface {
	Send(ctx context.Context, userID, conversationID, text string) (*model.Message, error)
	Typing(ctx context.Context, userID, conversationID string) error
}

// Client is one websocket connection.
type Client struct {
	hub       *Hub
	userID    string
	conn      *websocket.Conn
	send      chan []byte
	messenger Messenger
	logger    *slog.Logger
	closeOnce sync.Once
}

// readPump dispatches client frames until the connection fails.
func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.hub.markOnline(c.userID)
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("websocket read error", "error", err)
			}
			return
		}

		var frame Frame
		if err := json.Unmarshal(payload, &frame); err != nil {
			c.sendError("INVALID_FRAME", "invalid message format")
			continue
		}
		c.handleFrame(ctx, frame)
	}
}

func (c *Client) handleFrame(ctx context.Context, frame Frame) {
	var err error
	switch frame.Type {
	case FrameTyping:
		err = c.messenger.Typing(ctx, c.userID, frame.ConversationID)
	case FrameMessage:
		// the service echoes the stored message back to the sender
		_, err = c.messenger.Send(ctx, c.userID, frame.ConversationID, frame.Text)
	default:
		c.sendError("INVALID_FRAME", "unknown message type")
		return
	}
	if err != nil {
		code, msg := errorCode(err)
		if code == "INTERNAL_ERROR" {
			c.logger.Error("websocket frame failed", "type", frame.Type, "error", err)
		}
		c.sendError(code, msg)
	}
}

// writePump writes queued events and pings until send is closed.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// queue enqueues event for this connection only.
func (c *Client) queue(event model.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if _, ok := c.hub.clientsByUser[c.userID][c]; !ok {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func (c *Client) sendError(code, message string) {
	c.queue(model.Event{Type: model.EventError, Data: ErrorData{Code: code, Message: message}})
}

func (c *Client) closeGoingAway() {
	c.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down")
		_ = c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		_ = c.conn.Close()
	})
}

// errorCode maps a service error onto a client-facing code.
func errorCode(err error) (string, string) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		return "VALIDATION_ERROR", verr.Error()
	case errors.Is(err, service.ErrQuotaExceeded):
		return "QUOTA_EXCEEDED", "message quota exceeded"
	case errors.Is(err, service.ErrConversationClosed):
		return "NOT_FOUND", "conversation not found"
	default:
		return "INTERNAL_ERROR", "something went wrong"
	}
}
