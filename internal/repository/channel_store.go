package repository

import (
	"sync"
	"time"

	"campuschat/internal/models"
	"campuschat/internal/observability"
)

// ChannelStore holds the live message buffers: one per faculty and one per
// private pair. Buffers are append-only apart from retention pruning, and keep
// arrival order.
type ChannelStore interface {
	AppendGroup(faculty string, msg models.Message)
	AppendPrivate(key models.PairKey, msg models.Message)
	// GroupBacklog returns a copy of the faculty buffer, keeping only messages newer than since.
	GroupBacklog(faculty string, since time.Time) []models.Message
	// PrivateBacklog returns a copy of the pair buffer, keeping only messages newer than since.
	PrivateBacklog(key models.PairKey, since time.Time) []models.Message
	// Prune drops group messages at or before groupCutoff and private messages
	// at or before privateCutoff.
	Prune(groupCutoff, privateCutoff time.Time) PruneResult
}

// PruneResult reports how many messages a Prune removed per family.
type PruneResult struct {
	Group   int
	Private int
}

// channel is one buffer. Its mutex orders append, snapshot and prune.
type channel struct {
	mu   sync.Mutex
	msgs []models.Message
}

func (c *channel) append(m models.Message) {
	c.mu.Lock()
	c.msgs = append(c.msgs, m)
	c.mu.Unlock()
}

func (c *channel) snapshot(since time.Time) []models.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Message, 0, len(c.msgs))
	for _, m := range c.msgs {
		if m.Timestamp.After(since) {
			out = append(out, m)
		}
	}
	return out
}

// prune swaps in a filtered copy, so readers never see a half-pruned buffer.
func (c *channel) prune(cutoff time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	kept := make([]models.Message, 0, len(c.msgs))
	for _, m := range c.msgs {
		if m.Timestamp.After(cutoff) {
			kept = append(kept, m)
		}
	}
	removed := len(c.msgs) - len(kept)
	if removed > 0 {
		c.msgs = kept
	}
	return removed
}

// family indexes the channels of one kind. The index lock is only held for
// lookup and lazy creation, never while a channel is being read or written.
type family[K comparable] struct {
	kind     models.MessageKind
	mu       sync.RWMutex
	channels map[K]*channel
}

func newFamily[K comparable](kind models.MessageKind) *family[K] {
	return &family[K]{kind: kind, channels: make(map[K]*channel)}
}

func (f *family[K]) lookup(key K) *channel {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.channels[key]
}

func (f *family[K]) getOrCreate(key K) *channel {
	if ch := f.lookup(key); ch != nil {
		return ch
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if ch, ok := f.channels[key]; ok {
		return ch
	}
	ch := &channel{}
	f.channels[key] = ch
	observability.ChannelsResident.WithLabelValues(f.kind.String()).Inc()
	return ch
}

func (f *family[K]) all() []*channel {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]*channel, 0, len(f.channels))
	for _, ch := range f.channels {
		out = append(out, ch)
	}
	return out
}

func (f *family[K]) backlog(key K, since time.Time) []models.Message {
	ch := f.lookup(key)
	if ch == nil {
		return []models.Message{}
	}
	return ch.snapshot(since)
}

func (f *family[K]) prune(cutoff time.Time) int {
	removed := 0
	for _, ch := range f.all() {
		removed += ch.prune(cutoff)
	}
	return removed
}

// MemoryChannelStore is the process-local ChannelStore. Contents do not
// survive a restart.
type MemoryChannelStore struct {
	groups   *family[string]
	privates *family[models.PairKey]
}

// NewMemoryChannelStore returns an empty MemoryChannelStore.
func NewMemoryChannelStore() *MemoryChannelStore {
	return &MemoryChannelStore{
		groups:   newFamily[string](models.KindGroup),
		privates: newFamily[models.PairKey](models.KindPrivate),
	}
}

func (s *MemoryChannelStore) AppendGroup(faculty string, msg models.Message) {
	s.groups.getOrCreate(faculty).append(msg)
}

func (s *MemoryChannelStore) AppendPrivate(key models.PairKey, msg models.Message) {
	s.privates.getOrCreate(key).append(msg)
}

func (s *MemoryChannelStore) GroupBacklog(faculty string, since time.Time) []models.Message {
	return s.groups.backlog(faculty, since)
}

func (s *MemoryChannelStore) PrivateBacklog(key models.PairKey, since time.Time) []models.Message {
	return s.privates.backlog(key, since)
}

func (s *MemoryChannelStore) Prune(groupCutoff, privateCutoff time.Time) PruneResult {
	return PruneResult{
		Group:   s.groups.prune(groupCutoff),
		Private: s.privates.prune(privateCutoff),
	}
}
