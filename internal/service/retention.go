package service

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"campuschat/internal/models"
	"campuschat/internal/observability"
	"campuschat/internal/repository"
)

const defaultSweepInterval = time.Hour

// LoadRetention reads the group and private message lifetimes. Unset,
// unparseable or non-positive values fall back to the defaults; the error is
// only set when the settings store itself failed, in which case the defaults
// are still returned.
func LoadRetention(ctx context.Context, settings SettingsReader) (group, private time.Duration, err error) {
	group = time.Duration(models.DefaultGroupLifetimeHours) * time.Hour
	private = time.Duration(models.DefaultPrivateLifetimeHours) * time.Hour

	raw, _, err := settings.Get(ctx, models.SettingGroupLifetimeHours)
	if err != nil {
		return group, private, err
	}
	group = lifetimeHours(raw, models.DefaultGroupLifetimeHours)

	raw, _, err = settings.Get(ctx, models.SettingPrivateLifetimeHours)
	if err != nil {
		return group, private, err
	}
	private = lifetimeHours(raw, models.DefaultPrivateLifetimeHours)
	return group, private, nil
}

func lifetimeHours(raw string, fallback int) time.Duration {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		n = fallback
	}
	return time.Duration(n) * time.Hour
}

// RetentionSweeper periodically expires messages older than the configured
// lifetimes from the channel store.
type RetentionSweeper struct {
	channels repository.ChannelStore
	settings SettingsReader
	interval time.Duration
	now      func() time.Time

	startOnce sync.Once
	stopOnce  sync.Once
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

func NewRetentionSweeper(channels repository.ChannelStore, settings SettingsReader, interval time.Duration) *RetentionSweeper {
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	return &RetentionSweeper{
		channels: channels,
		settings: settings,
		interval: interval,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
}

// Start launches the ticker loop. It runs until ctx is cancelled or Stop is called.
func (r *RetentionSweeper) Start(ctx context.Context) {
	r.startOnce.Do(func() {
		r.wg.Add(1)
		go r.loop(ctx)
	})
}

// Stop ends the loop and waits for an in-flight sweep to finish.
func (r *RetentionSweeper) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
	r.wg.Wait()
}

func (r *RetentionSweeper) loop(ctx context.Context) {
	defer r.wg.Done()
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			return
		case <-ticker.C:
			_, _ = r.SweepOnce(ctx)
		}
	}
}

// SweepOnce prunes every channel against the current lifetimes. When the
// settings cannot be read the tick is skipped and no buffer is touched.
func (r *RetentionSweeper) SweepOnce(ctx context.Context) (res repository.PruneResult, err error) {
	ctx, span := observability.StartChatSpan(ctx, "retention_sweep")
	defer func() { observability.EndSpan(span, err) }()

	group, private, err := LoadRetention(ctx, r.settings)
	if err != nil {
		observability.RetentionSweeps.WithLabelValues("skipped").Inc()
		observability.GlobalLogger.ErrorContext(ctx, "retention sweep skipped",
			slog.String("error", err.Error()),
		)
		return res, err
	}

	now := r.now()
	res = r.channels.Prune(now.Add(-group), now.Add(-private))

	observability.RetentionSweeps.WithLabelValues("ok").Inc()
	observability.MessagesPruned.WithLabelValues(models.KindGroup.String()).Add(float64(res.Group))
	observability.MessagesPruned.WithLabelValues(models.KindPrivate.String()).Add(float64(res.Private))
	if res.Group > 0 || res.Private > 0 {
		observability.GlobalLogger.InfoContext(ctx, "retention sweep pruned messages",
			slog.Int("group", res.Group),
			slog.Int("private", res.Private),
		)
	}
	return res, nil
}
