package ws

import (
	"log/slog"

	"easychat/internal/content"
	"easychat/internal/models"
)

// MessageStore persists chat messages. SaveMessage assigns the id and
// creation timestamp and returns the stored representation; that
// returned message, never the raw input, is what gets delivered.
// Implemented by storage.BboltStorage.
type MessageStore interface {
	SaveMessage(message models.Message) (models.Message, error)
}

// Router decodes inbound frames and dispatches them: heartbeats are
// answered in place, private chats are persisted and then relayed to
// whoever is reachable. One router instance serves all connections.
type Router struct {
	registry *Registry
	store    MessageStore
}

func NewRouter(registry *Registry, store MessageStore) *Router {
	return &Router{
		registry: registry,
		store:    store,
	}
}

// HandleFrame processes one frame from an open connection. Errors are
// per-frame: the connection stays open regardless of the outcome.
func (rt *Router) HandleFrame(c *Conn, data []byte) {
	env, err := decodeInbound(data)
	if err != nil {
		slog.Warn("dropping malformed frame", "user_id", c.identity.UserID, "error", err)
		if err := c.SendJSON(errorEnvelope("invalid message format")); err != nil {
			c.Close()
		}
		return
	}

	switch env.Type {
	case FrameKindHeartbeatPing:
		if err := c.SendJSON(pongEnvelope()); err != nil {
			c.Close()
		}
	case FrameKindPrivateChat:
		rt.handlePrivateChat(c, env)
	default:
		slog.Warn("dropping frame of unknown kind", "user_id", c.identity.UserID, "kind", env.Type)
	}
}

func (rt *Router) handlePrivateChat(c *Conn, env InboundEnvelope) {
	sender := c.identity

	// Invalid chat frames are dropped without a reply; existing clients
	// only expect ERROR frames for undecodable input.
	if env.ReceiverID <= 0 || env.Content == "" || env.MessageType == "" {
		slog.Warn("dropping invalid private chat frame",
			"sender_id", sender.UserID,
			"receiver_id", env.ReceiverID,
			"message_type", env.MessageType)
		return
	}

	body := env.Content
	if env.MessageType == "TEXT" {
		body = content.Sanitize(body)
	}

	// Persist first. Delivery is always of the stored record so both
	// recipients observe the same id and timestamp, and an offline
	// receiver can still pick the message up from history.
	msg, err := rt.store.SaveMessage(models.Message{
		SenderID:    sender.UserID,
		ReceiverID:  env.ReceiverID,
		ChatType:    models.ChatTypeSingle,
		Content:     body,
		MessageType: env.MessageType,
	})
	if err != nil {
		slog.Error("failed to store message", "sender_id", sender.UserID, "error", err)
		if err := c.SendJSON(errorEnvelope("failed to store message")); err != nil {
			c.Close()
		}
		return
	}

	if receiver, ok := rt.registry.Lookup(env.ReceiverID); ok {
		rt.deliver(receiver, msg)
	} else {
		slog.Info("receiver offline, message stored only",
			"receiver_id", env.ReceiverID, "message_id", msg.ID)
	}

	// Echo the stored record back to the sender's registered
	// connection so their client converges on the canonical message.
	// That connection is not necessarily this one if the user
	// reconnected mid-flight.
	if echo, ok := rt.registry.Lookup(sender.UserID); ok {
		rt.deliver(echo, msg)
	}
}

// deliver is best-effort: a failed write degrades only that recipient's
// connection, it never fails the frame that triggered it.
func (rt *Router) deliver(c *Conn, msg models.Message) {
	if !c.IsOpen() {
		return
	}
	if err := c.SendJSON(msg); err != nil {
		slog.Warn("failed to deliver message, closing connection",
			"user_id", c.identity.UserID, "message_id", msg.ID, "error", err)
		c.Close()
	}
}
