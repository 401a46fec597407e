package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"campuschat/internal/middleware"
	"campuschat/internal/models"
	"campuschat/internal/notifications"
	"campuschat/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

const (
	sendRateLimit  = 30
	sendRateWindow = time.Minute
)

// WebSocketChatHandler upgrades GET /api/ws/chat and runs the session until the peer goes away.
func (s *Server) WebSocketChatHandler() fiber.Handler {
	upgrade := websocket.New(func(conn *websocket.Conn) {
		userID, ok := conn.Locals(middleware.UserIDLocal).(uint)
		if !ok {
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"unauthorized"}`))
			_ = conn.Close()
			return
		}

		client, err := s.chatHub.Register(userID, conn)
		if err != nil {
			middleware.Logger.Warn("websocket register rejected",
				slog.Uint64("user_id", uint64(userID)), slog.String("error", err.Error()))
			_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"error":"`+err.Error()+`"}`))
			_ = conn.Close()
			return
		}

		client.IncomingHandler = func(c *notifications.Client, frame []byte) {
			s.handleChatFrame(context.Background(), c, frame)
		}

		if hello, err := models.EncodeEvent(models.EventConnected, fiber.Map{"connectionId": client.ConnID}); err == nil {
			s.chatHub.SendTo(client.ConnID, hello)
		}

		go client.WritePump()
		client.ReadPump()

		// ReadPump already unregistered the client; Leave is idempotent.
		s.chatService.Leave(client.ConnID)
	})

	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		return upgrade(c)
	}
}

// handleChatFrame decodes one inbound envelope and dispatches it. Frames whose
// identity fields name someone other than the connection's user are dropped.
func (s *Server) handleChatFrame(ctx context.Context, c *notifications.Client, frame []byte) {
	var env models.Envelope
	if err := json.Unmarshal(frame, &env); err != nil || env.Type == "" {
		observability.WebSocketEventsTotal.WithLabelValues("invalid").Inc()
		return
	}
	observability.WebSocketEventsTotal.WithLabelValues(env.Type).Inc()
	ctx = middleware.WithUserID(ctx, c.UserID)

	var err error
	switch env.Type {
	case models.EventJoin:
		err = s.onJoin(ctx, c, env.Payload)
	case models.EventSendGroupMessage:
		err = s.onSendGroup(ctx, c, env.Payload)
	case models.EventJoinPrivateChat:
		err = s.onJoinPrivate(ctx, c, env.Payload)
	case models.EventSendPrivateMessage:
		err = s.onSendPrivate(ctx, c, env.Payload)
	case models.EventBlockUser:
		err = s.onBlock(ctx, c, env.Payload)
	case models.EventReportUser:
		err = s.onReport(ctx, c, env.Payload)
	default:
		err = fmt.Errorf("unknown event %q", env.Type)
	}

	if err != nil {
		wsLog.LogError(ctx, c.UserID, env.Type, err)
	}
}

var wsLog = observability.NewWSLogger("chat-handler")

var errIdentityMismatch = errors.New("payload identity does not match the connection")

// sameUser accepts an omitted identity field as the connection's own user.
func sameUser(c *notifications.Client, claimed uint) bool {
	return claimed == 0 || claimed == c.UserID
}

func decodePayload(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return errors.New("missing payload")
	}
	return json.Unmarshal(raw, dst)
}

// reply queues a frame to the requesting session only. Sessions that already
// left are skipped.
func (s *Server) reply(c *notifications.Client, eventType string, payload any) {
	frame, err := models.EncodeEvent(eventType, payload)
	if err != nil {
		return
	}
	s.chatHub.SendTo(c.ConnID, frame)
}

func nonNil(msgs []models.Message) []models.Message {
	if msgs == nil {
		return []models.Message{}
	}
	return msgs
}

func (s *Server) onJoin(ctx context.Context, c *notifications.Client, raw json.RawMessage) error {
	var p models.JoinPayload
	if err := decodePayload(raw, &p); err != nil {
		return err
	}
	if !sameUser(c, p.UserID) {
		return errIdentityMismatch
	}

	backlog, err := s.chatService.Join(ctx, c.ConnID, c.UserID, p.Faculty)
	if err != nil {
		return err
	}
	s.reply(c, models.EventGroupMessages, nonNil(backlog))
	return nil
}

func (s *Server) onSendGroup(ctx context.Context, c *notifications.Client, raw json.RawMessage) error {
	var p models.GroupMessagePayload
	if err := decodePayload(raw, &p); err != nil {
		return err
	}
	if !sameUser(c, p.UserID) {
		return errIdentityMismatch
	}
	if !s.allowSend(ctx, c.UserID) {
		return errors.New("send rate limit exceeded")
	}

	_, err := s.chatService.SendGroup(ctx, c.UserID, p.Faculty, p.Message)
	return err
}

func (s *Server) onJoinPrivate(ctx context.Context, c *notifications.Client, raw json.RawMessage) error {
	var p models.JoinPrivatePayload
	if err := decodePayload(raw, &p); err != nil {
		return err
	}
	if !sameUser(c, p.UserID) {
		return errIdentityMismatch
	}

	backlog, err := s.chatService.JoinPrivate(ctx, c.ConnID, c.UserID, p.OtherUserID)
	if errors.Is(err, models.ErrBlocked) {
		s.reply(c, models.EventChatBlocked, fiber.Map{"otherUserId": p.OtherUserID})
		return nil
	}
	if err != nil {
		return err
	}
	s.reply(c, models.EventPrivateMessages, nonNil(backlog))
	return nil
}

func (s *Server) onSendPrivate(ctx context.Context, c *notifications.Client, raw json.RawMessage) error {
	var p models.PrivateMessagePayload
	if err := decodePayload(raw, &p); err != nil {
		return err
	}
	if !sameUser(c, p.SenderID) {
		return errIdentityMismatch
	}
	if !s.allowSend(ctx, c.UserID) {
		return errors.New("send rate limit exceeded")
	}

	_, err := s.chatService.SendPrivate(ctx, c.UserID, p.ReceiverID, p.Message)
	if errors.Is(err, models.ErrBlocked) {
		s.reply(c, models.EventMessageBlocked, fiber.Map{"receiverId": p.ReceiverID})
		return nil
	}
	return err
}

func (s *Server) onBlock(ctx context.Context, c *notifications.Client, raw json.RawMessage) error {
	var p models.BlockPayload
	if err := decodePayload(raw, &p); err != nil {
		return err
	}
	if !sameUser(c, p.BlockerID) {
		return errIdentityMismatch
	}

	err := s.chatService.Block(ctx, c.UserID, p.BlockedID)
	s.reply(c, models.EventUserBlocked, actionResult(err))
	return err
}

func (s *Server) onReport(ctx context.Context, c *notifications.Client, raw json.RawMessage) error {
	var p models.ReportPayload
	if err := decodePayload(raw, &p); err != nil {
		return err
	}
	if !sameUser(c, p.ReporterID) {
		return errIdentityMismatch
	}

	err := s.chatService.Report(ctx, c.UserID, p.ReportedID)
	s.reply(c, models.EventUserReported, actionResult(err))
	return err
}

func actionResult(err error) models.ActionResult {
	if err == nil {
		return models.ActionResult{Success: true}
	}
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return models.ActionResult{Error: appErr.Message}
	}
	return models.ActionResult{Error: "internal error"}
}

// allowSend applies the per-user send limit. A Redis failure lets the send through.
func (s *Server) allowSend(ctx context.Context, userID uint) bool {
	allowed, err := middleware.CheckRateLimit(ctx, s.redis, "ws_send", fmt.Sprintf("user:%d", userID), sendRateLimit, sendRateWindow)
	if err != nil {
		return true
	}
	return allowed
}
