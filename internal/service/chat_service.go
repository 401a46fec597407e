package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"campuschat/internal/featureflags"
	"campuschat/internal/models"
	"campuschat/internal/observability"
	"campuschat/internal/repository"

	"go.opentelemetry.io/otel/attribute"
)

// FlagPrivateMessageFilter extends word masking to private messages.
const FlagPrivateMessageFilter = "private_message_filter"

// UserDirectory resolves active students.
type UserDirectory interface {
	FindActive(ctx context.Context, id uint) (*models.User, error)
}

// ModerationStore holds block and report edges.
type ModerationStore interface {
	IsBlocked(ctx context.Context, a, b uint) (bool, error)
	BlockersOf(ctx context.Context, userID uint) ([]uint, error)
	InsertBlock(ctx context.Context, blockerID, blockedID uint) error
	InsertReport(ctx context.Context, reporterID, reportedID uint) error
	CountReports(ctx context.Context, reportedID uint) (int64, error)
}

// SettingsReader reads admin-editable settings.
type SettingsReader interface {
	Get(ctx context.Context, key string) (string, bool, error)
}

// SessionRegistry tracks live sessions and their room subscriptions.
// Publish and PublishExcept return the number of sessions a frame was queued to.
type SessionRegistry interface {
	BindFaculty(connID string, userID uint, faculty string) error
	Subscribe(connID string, room models.Room) error
	Leave(connID string)
	Publish(room models.Room, payload []byte, skip func(userID uint) bool) int
	PublishExcept(room models.Room, payload []byte, exceptConnID string) int
}

// ChatService is the real-time core: it joins sessions to rooms, routes group
// and private messages, and records blocks and reports.
type ChatService struct {
	users      UserDirectory
	moderation ModerationStore
	settings   SettingsReader
	channels   repository.ChannelStore
	registry   SessionRegistry
	flags      *featureflags.Manager

	ids     *idSource
	filters filterCache
	now     func() time.Time
}

func NewChatService(
	users UserDirectory,
	moderation ModerationStore,
	settings SettingsReader,
	channels repository.ChannelStore,
	registry SessionRegistry,
	flags *featureflags.Manager,
) *ChatService {
	return &ChatService{
		users:      users,
		moderation: moderation,
		settings:   settings,
		channels:   channels,
		registry:   registry,
		flags:      flags,
		ids:        newIDSource(time.Now),
		now:        time.Now,
	}
}

func validationFailure(err error) *models.AppError {
	return &models.AppError{Code: "VALIDATION_ERROR", Message: err.Error(), Err: err}
}

func dropped(kind models.MessageKind, reason string) {
	observability.MessagesDropped.WithLabelValues(kind.String(), reason).Inc()
}

// Join binds the session to its faculty room and returns the unexpired group
// backlog. A blank faculty means the user's own. Missing or inactive users are
// not subscribed, get no backlog and are not announced.
func (s *ChatService) Join(ctx context.Context, connID string, userID uint, faculty string) (backlog []models.Message, err error) {
	ctx, span := observability.StartChatSpan(ctx, "join",
		attribute.Int64("user_id", int64(userID)),
		attribute.String("faculty", faculty),
	)
	defer func() { observability.EndSpan(span, err) }()

	user, err := s.users.FindActive(ctx, userID)
	if errors.Is(err, models.ErrUserUnavailable) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	faculty = strings.TrimSpace(faculty)
	if faculty == "" {
		faculty = user.Faculty
	}
	if faculty == "" {
		return nil, models.NewValidationError("faculty is required")
	}
	if user.Faculty != faculty {
		return nil, models.NewForbiddenError("cannot join another faculty's room")
	}

	if err := s.registry.BindFaculty(connID, userID, faculty); err != nil {
		return nil, err
	}

	groupTTL, _, werr := LoadRetention(ctx, s.settings)
	if werr != nil {
		observability.GlobalLogger.WarnContext(ctx, "retention settings unavailable, using defaults",
			slog.String("error", werr.Error()),
		)
	}
	backlog = s.channels.GroupBacklog(faculty, s.now().Add(-groupTTL))

	if payload, encErr := models.EncodeEvent(models.EventUserJoined, models.UserJoinedPayload{
		UserID:   user.ID,
		FullName: user.FullName,
		Avatar:   user.Avatar,
	}); encErr == nil {
		s.registry.PublishExcept(models.FacultyRoom(faculty), payload, connID)
	}

	return backlog, nil
}

// JoinPrivate subscribes the session to the private room shared with
// otherUserID and returns its unexpired backlog. A block edge in either
// direction fails with a BLOCKED error and leaves the session untouched.
func (s *ChatService) JoinPrivate(ctx context.Context, connID string, userID, otherUserID uint) (backlog []models.Message, err error) {
	ctx, span := observability.StartChatSpan(ctx, "join_private",
		attribute.Int64("user_id", int64(userID)),
		attribute.Int64("other_user_id", int64(otherUserID)),
	)
	defer func() { observability.EndSpan(span, err) }()

	if otherUserID == 0 || otherUserID == userID {
		return nil, validationFailure(models.ErrSelfTarget)
	}

	blocked, err := s.moderation.IsBlocked(ctx, userID, otherUserID)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, models.NewBlockedError()
	}

	key := models.NewPairKey(userID, otherUserID)
	if err := s.registry.Subscribe(connID, models.PrivateRoom(key)); err != nil {
		return nil, err
	}

	_, privateTTL, werr := LoadRetention(ctx, s.settings)
	if werr != nil {
		observability.GlobalLogger.WarnContext(ctx, "retention settings unavailable, using defaults",
			slog.String("error", werr.Error()),
		)
	}
	return s.channels.PrivateBacklog(key, s.now().Add(-privateTTL)), nil
}

// Leave drops the session and all of its subscriptions. Calling it twice is harmless.
func (s *ChatService) Leave(connID string) {
	s.registry.Leave(connID)
}

// SendGroup stores a message in the sender's faculty channel and fans it out
// to the faculty room, skipping sessions of users who blocked the sender.
func (s *ChatService) SendGroup(ctx context.Context, senderID uint, faculty, text string) (msg *models.Message, err error) {
	const kind = models.KindGroup
	ctx, span := observability.StartChatSpan(ctx, "send_group", attribute.Int64("sender_id", int64(senderID)))
	defer func() { observability.EndSpan(span, err) }()

	body := strings.TrimSpace(text)
	if body == "" {
		dropped(kind, "empty")
		return nil, validationFailure(models.ErrEmptyMessage)
	}

	sender, err := s.users.FindActive(ctx, senderID)
	if err != nil {
		dropped(kind, "sender_unavailable")
		return nil, err
	}
	if faculty = strings.TrimSpace(faculty); faculty != "" && faculty != sender.Faculty {
		dropped(kind, "faculty_mismatch")
		return nil, models.NewForbiddenError("cannot post to another faculty's room")
	}

	raw, _, err := s.settings.Get(ctx, models.SettingFilterWords)
	if err != nil {
		dropped(kind, "settings_unavailable")
		return nil, err
	}
	body = s.filters.get(raw).Mask(body)

	// Blockers are resolved before the append so a lookup failure stores nothing.
	blockerIDs, err := s.moderation.BlockersOf(ctx, senderID)
	if err != nil {
		dropped(kind, "moderation_unavailable")
		return nil, err
	}
	blockers := make(map[uint]struct{}, len(blockerIDs))
	for _, id := range blockerIDs {
		if id != senderID {
			blockers[id] = struct{}{}
		}
	}

	m := models.Message{
		ID:        s.ids.next(),
		Kind:      kind,
		SenderID:  senderID,
		Sender:    sender.Profile(),
		Body:      body,
		Timestamp: s.now(),
	}
	s.channels.AppendGroup(sender.Faculty, m)
	observability.MessagesRouted.WithLabelValues(kind.String()).Inc()

	payload, err := models.EncodeEvent(models.EventNewGroupMessage, m)
	if err != nil {
		return &m, models.NewInternalError(err)
	}
	delivered := s.registry.Publish(models.FacultyRoom(sender.Faculty), payload, func(userID uint) bool {
		if _, ok := blockers[userID]; ok {
			observability.FanoutSuppressed.Inc()
			return true
		}
		return false
	})
	observability.FanoutDeliveries.WithLabelValues(kind.String()).Add(float64(delivered))

	return &m, nil
}

// SendPrivate stores a message in the pair channel and delivers it to every
// session subscribed to the private room. Blocked pairs get a BLOCKED error
// and nothing is stored.
func (s *ChatService) SendPrivate(ctx context.Context, senderID, receiverID uint, text string) (msg *models.Message, err error) {
	const kind = models.KindPrivate
	ctx, span := observability.StartChatSpan(ctx, "send_private",
		attribute.Int64("sender_id", int64(senderID)),
		attribute.Int64("receiver_id", int64(receiverID)),
	)
	defer func() { observability.EndSpan(span, err) }()

	body := strings.TrimSpace(text)
	if body == "" {
		dropped(kind, "empty")
		return nil, validationFailure(models.ErrEmptyMessage)
	}
	if receiverID == 0 || receiverID == senderID {
		dropped(kind, "invalid_receiver")
		return nil, validationFailure(models.ErrSelfTarget)
	}

	blocked, err := s.moderation.IsBlocked(ctx, senderID, receiverID)
	if err != nil {
		dropped(kind, "moderation_unavailable")
		return nil, err
	}
	if blocked {
		dropped(kind, "blocked")
		return nil, models.NewBlockedError()
	}

	sender, err := s.users.FindActive(ctx, senderID)
	if err != nil {
		dropped(kind, "sender_unavailable")
		return nil, err
	}

	if s.flags.Enabled(FlagPrivateMessageFilter, featureflags.Subject{UserID: senderID, Faculty: sender.Faculty}) {
		raw, _, err := s.settings.Get(ctx, models.SettingFilterWords)
		if err != nil {
			dropped(kind, "settings_unavailable")
			return nil, err
		}
		body = s.filters.get(raw).Mask(body)
	}

	m := models.Message{
		ID:         s.ids.next(),
		Kind:       kind,
		SenderID:   senderID,
		ReceiverID: receiverID,
		Sender:     sender.Profile(),
		Body:       body,
		Timestamp:  s.now(),
	}
	key := models.NewPairKey(senderID, receiverID)
	s.channels.AppendPrivate(key, m)
	observability.MessagesRouted.WithLabelValues(kind.String()).Inc()

	payload, err := models.EncodeEvent(models.EventNewPrivateMessage, m)
	if err != nil {
		return &m, models.NewInternalError(err)
	}
	delivered := s.registry.Publish(models.PrivateRoom(key), payload, nil)
	observability.FanoutDeliveries.WithLabelValues(kind.String()).Add(float64(delivered))

	return &m, nil
}

// Block records that blockerID blocked blockedID. Repeats succeed. Existing
// private subscriptions and stored messages are left alone.
func (s *ChatService) Block(ctx context.Context, blockerID, blockedID uint) (err error) {
	ctx, span := observability.StartChatSpan(ctx, "block",
		attribute.Int64("blocker_id", int64(blockerID)),
		attribute.Int64("blocked_id", int64(blockedID)),
	)
	defer func() { observability.EndSpan(span, err) }()

	if blockedID == 0 || blockedID == blockerID {
		return validationFailure(models.ErrSelfTarget)
	}
	return s.moderation.InsertBlock(ctx, blockerID, blockedID)
}

// Report files a new report edge. Every call adds one. The report that brings
// a user to models.ReportThreshold puts them in the moderation queue.
func (s *ChatService) Report(ctx context.Context, reporterID, reportedID uint) (err error) {
	ctx, span := observability.StartChatSpan(ctx, "report",
		attribute.Int64("reporter_id", int64(reporterID)),
		attribute.Int64("reported_id", int64(reportedID)),
	)
	defer func() { observability.EndSpan(span, err) }()

	if reportedID == 0 || reportedID == reporterID {
		return validationFailure(models.ErrSelfTarget)
	}
	if err := s.moderation.InsertReport(ctx, reporterID, reportedID); err != nil {
		return err
	}

	count, cerr := s.moderation.CountReports(ctx, reportedID)
	if cerr != nil {
		observability.GlobalLogger.WarnContext(ctx, "report count unavailable",
			slog.Uint64("reported_id", uint64(reportedID)),
			slog.String("error", cerr.Error()),
		)
		return nil
	}
	if count == models.ReportThreshold {
		observability.ReportQueueEntries.Inc()
		observability.GlobalLogger.WarnContext(ctx, "user entered the moderation queue",
			slog.Uint64("reported_id", uint64(reportedID)),
			slog.Int64("reports", count),
		)
	}
	return nil
}
