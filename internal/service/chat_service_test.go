package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"campuschat/internal/featureflags"
	"campuschat/internal/models"
	"campuschat/internal/observability"
	"campuschat/internal/repository"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type userDirStub struct {
	findActiveFn func(context.Context, uint) (*models.User, error)
}

func (s *userDirStub) FindActive(ctx context.Context, id uint) (*models.User, error) {
	return s.findActiveFn(ctx, id)
}

// usersByID serves active users from a fixed map and treats everything else as unavailable.
func usersByID(users ...*models.User) *userDirStub {
	byID := make(map[uint]*models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}
	return &userDirStub{findActiveFn: func(_ context.Context, id uint) (*models.User, error) {
		if u, ok := byID[id]; ok && u.IsActive {
			return u, nil
		}
		return nil, fmt.Errorf("user %d: %w", id, models.ErrUserUnavailable)
	}}
}

type moderationStub struct {
	isBlockedFn    func(context.Context, uint, uint) (bool, error)
	blockersOfFn   func(context.Context, uint) ([]uint, error)
	insertBlockFn  func(context.Context, uint, uint) error
	insertReportFn func(context.Context, uint, uint) error
	countReportsFn func(context.Context, uint) (int64, error)
}

func (s *moderationStub) IsBlocked(ctx context.Context, a, b uint) (bool, error) {
	return s.isBlockedFn(ctx, a, b)
}
func (s *moderationStub) BlockersOf(ctx context.Context, id uint) ([]uint, error) {
	return s.blockersOfFn(ctx, id)
}
func (s *moderationStub) InsertBlock(ctx context.Context, a, b uint) error {
	return s.insertBlockFn(ctx, a, b)
}
func (s *moderationStub) InsertReport(ctx context.Context, a, b uint) error {
	return s.insertReportFn(ctx, a, b)
}
func (s *moderationStub) CountReports(ctx context.Context, id uint) (int64, error) {
	return s.countReportsFn(ctx, id)
}

// blockEdges backs a moderationStub with an in-memory edge list.
func blockEdges(edges ...[2]uint) *moderationStub {
	var mu sync.Mutex
	list := append([][2]uint(nil), edges...)
	return &moderationStub{
		isBlockedFn: func(_ context.Context, a, b uint) (bool, error) {
			mu.Lock()
			defer mu.Unlock()
			for _, e := range list {
				if (e[0] == a && e[1] == b) || (e[0] == b && e[1] == a) {
					return true, nil
				}
			}
			return false, nil
		},
		blockersOfFn: func(_ context.Context, id uint) ([]uint, error) {
			mu.Lock()
			defer mu.Unlock()
			var out []uint
			for _, e := range list {
				if e[1] == id {
					out = append(out, e[0])
				}
			}
			return out, nil
		},
		insertBlockFn: func(_ context.Context, a, b uint) error {
			mu.Lock()
			defer mu.Unlock()
			list = append(list, [2]uint{a, b})
			return nil
		},
		insertReportFn: func(context.Context, uint, uint) error { return nil },
		countReportsFn: func(context.Context, uint) (int64, error) { return 0, nil },
	}
}

type settingsStub struct {
	values map[string]string
	err    error
}

func (s *settingsStub) Get(_ context.Context, key string) (string, bool, error) {
	if s.err != nil {
		return "", false, s.err
	}
	v, ok := s.values[key]
	return v, ok, nil
}

func defaultSettings() *settingsStub {
	return &settingsStub{values: models.DefaultSettings()}
}

type fakeSession struct {
	userID uint
	rooms  map[models.Room]bool
	frames [][]byte
}

// fakeRegistry is a lock-protected in-memory SessionRegistry that records every frame.
type fakeRegistry struct {
	mu       sync.Mutex
	sessions map[string]*fakeSession
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{sessions: make(map[string]*fakeSession)}
}

func (r *fakeRegistry) connect(connID string, userID uint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[connID] = &fakeSession{userID: userID, rooms: map[models.Room]bool{}}
}

func (r *fakeRegistry) BindFaculty(connID string, _ uint, faculty string) error {
	return r.Subscribe(connID, models.FacultyRoom(faculty))
}

func (r *fakeRegistry) Subscribe(connID string, room models.Room) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[connID]
	if !ok {
		return errors.New("unknown session")
	}
	s.rooms[room] = true
	return nil
}

func (r *fakeRegistry) Leave(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, connID)
}

func (r *fakeRegistry) Publish(room models.Room, payload []byte, skip func(uint) bool) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.sessions {
		if !s.rooms[room] || (skip != nil && skip(s.userID)) {
			continue
		}
		s.frames = append(s.frames, payload)
		n++
	}
	return n
}

func (r *fakeRegistry) PublishExcept(room models.Room, payload []byte, except string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, s := range r.sessions {
		if id == except || !s.rooms[room] {
			continue
		}
		s.frames = append(s.frames, payload)
		n++
	}
	return n
}

func (r *fakeRegistry) subscribed(connID string, room models.Room) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[connID]
	return ok && s.rooms[room]
}

func (r *fakeRegistry) events(t *testing.T, connID string) []models.Envelope {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Envelope
	for _, f := range r.sessions[connID].frames {
		var env models.Envelope
		require.NoError(t, json.Unmarshal(f, &env))
		out = append(out, env)
	}
	return out
}

func student(id uint, faculty string) *models.User {
	return &models.User{ID: id, FullName: fmt.Sprintf("Student %d", id), Faculty: faculty, Degree: "bakalavr", Course: 2, Avatar: "🦉", IsActive: true}
}

type chatFixture struct {
	svc      *ChatService
	registry *fakeRegistry
	store    *repository.MemoryChannelStore
	settings *settingsStub
}

func newChatFixture(users *userDirStub, moderation *moderationStub, flags string) *chatFixture {
	f := &chatFixture{
		registry: newFakeRegistry(),
		store:    repository.NewMemoryChannelStore(),
		settings: defaultSettings(),
	}
	f.svc = NewChatService(users, moderation, f.settings, f.store, f.registry, featureflags.NewManager(flags))
	return f
}

func TestChatService_SendGroup_BlockSuppressesFanoutOnly(t *testing.T) {
	alice, bob, cemil := student(1, "Fizika"), student(2, "Fizika"), student(3, "Fizika")
	// bob blocked alice
	f := newChatFixture(usersByID(alice, bob, cemil), blockEdges([2]uint{2, 1}), "")
	ctx := context.Background()

	for _, u := range []*models.User{alice, bob, cemil} {
		conn := fmt.Sprintf("c%d", u.ID)
		f.registry.connect(conn, u.ID)
		_, err := f.svc.Join(ctx, conn, u.ID, "Fizika")
		require.NoError(t, err)
	}

	msg, err := f.svc.SendGroup(ctx, alice.ID, "Fizika", "salam")
	require.NoError(t, err)
	assert.Equal(t, "salam", msg.Body)
	assert.Equal(t, alice.FullName, msg.Sender.FullName)

	hasMessage := func(conn string) bool {
		for _, e := range f.registry.events(t, conn) {
			if e.Type == models.EventNewGroupMessage {
				return true
			}
		}
		return false
	}
	assert.True(t, hasMessage("c1"), "sender receives own message")
	assert.False(t, hasMessage("c2"), "blocker is skipped")
	assert.True(t, hasMessage("c3"))

	// the blocker still sees the message in the backlog
	backlog := f.store.GroupBacklog("Fizika", time.Time{})
	require.Len(t, backlog, 1)
	assert.Equal(t, msg.ID, backlog[0].ID)

	// bob's own messages still reach alice
	_, err = f.svc.SendGroup(ctx, bob.ID, "Fizika", "hey")
	require.NoError(t, err)
	count := 0
	for _, e := range f.registry.events(t, "c1") {
		if e.Type == models.EventNewGroupMessage {
			count++
		}
	}
	assert.Equal(t, 2, count)
}

func TestChatService_SendGroup_MasksFilterWords(t *testing.T) {
	alice := student(1, "Fizika")
	f := newChatFixture(usersByID(alice), blockEdges(), "")
	f.settings.values[models.SettingFilterWords] = "dunya"

	msg, err := f.svc.SendGroup(context.Background(), alice.ID, "", "salam dunya")
	require.NoError(t, err)
	assert.Equal(t, "salam *****", msg.Body)
	assert.Equal(t, "salam *****", f.store.GroupBacklog("Fizika", time.Time{})[0].Body)
}

func TestChatService_SendGroup_Drops(t *testing.T) {
	active := student(1, "Fizika")
	inactive := student(2, "Fizika")
	inactive.IsActive = false
	ctx := context.Background()

	t.Run("empty after trimming", func(t *testing.T) {
		f := newChatFixture(usersByID(active), blockEdges(), "")
		_, err := f.svc.SendGroup(ctx, active.ID, "Fizika", "   \n\t")
		assert.ErrorIs(t, err, models.ErrEmptyMessage)
		assert.Empty(t, f.store.GroupBacklog("Fizika", time.Time{}))
	})

	t.Run("inactive sender", func(t *testing.T) {
		f := newChatFixture(usersByID(active, inactive), blockEdges(), "")
		f.registry.connect("c1", active.ID)
		_, err := f.svc.Join(ctx, "c1", active.ID, "Fizika")
		require.NoError(t, err)

		_, err = f.svc.SendGroup(ctx, inactive.ID, "Fizika", "hello")
		assert.ErrorIs(t, err, models.ErrUserUnavailable)
		assert.Empty(t, f.store.GroupBacklog("Fizika", time.Time{}))
		assert.Empty(t, f.registry.events(t, "c1"))
	})

	t.Run("another faculty", func(t *testing.T) {
		f := newChatFixture(usersByID(active), blockEdges(), "")
		_, err := f.svc.SendGroup(ctx, active.ID, "Kimya", "hello")
		var appErr *models.AppError
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, "FORBIDDEN", appErr.Code)
		assert.Empty(t, f.store.GroupBacklog("Kimya", time.Time{}))
	})

	t.Run("settings unavailable", func(t *testing.T) {
		f := newChatFixture(usersByID(active), blockEdges(), "")
		f.settings.err = errors.New("db down")
		_, err := f.svc.SendGroup(ctx, active.ID, "Fizika", "hello")
		assert.Error(t, err)
		assert.Empty(t, f.store.GroupBacklog("Fizika", time.Time{}))
	})

	t.Run("blocker lookup fails", func(t *testing.T) {
		mod := blockEdges()
		mod.blockersOfFn = func(context.Context, uint) ([]uint, error) {
			return nil, models.NewInternalError(errors.New("db down"))
		}
		f := newChatFixture(usersByID(active), mod, "")
		_, err := f.svc.SendGroup(ctx, active.ID, "Fizika", "hello")
		assert.Error(t, err)
		assert.Empty(t, f.store.GroupBacklog("Fizika", time.Time{}))
	})
}

func TestChatService_SendGroup_FacultyIsolation(t *testing.T) {
	fiz, kim := student(1, "Fizika"), student(2, "Kimya")
	f := newChatFixture(usersByID(fiz, kim), blockEdges(), "")
	ctx := context.Background()

	f.registry.connect("fiz", fiz.ID)
	f.registry.connect("kim", kim.ID)
	_, err := f.svc.Join(ctx, "fiz", fiz.ID, "Fizika")
	require.NoError(t, err)
	_, err = f.svc.Join(ctx, "kim", kim.ID, "Kimya")
	require.NoError(t, err)

	_, err = f.svc.SendGroup(ctx, fiz.ID, "Fizika", "only physics")
	require.NoError(t, err)

	assert.Empty(t, f.registry.events(t, "kim"))
	assert.Empty(t, f.store.GroupBacklog("Kimya", time.Time{}))
}

func TestChatService_Join(t *testing.T) {
	alice, bob := student(1, "Fizika"), student(2, "Fizika")
	ghost := student(3, "Fizika")
	ghost.IsActive = false
	ctx := context.Background()

	t.Run("active user gets backlog and is announced", func(t *testing.T) {
		f := newChatFixture(usersByID(alice, bob), blockEdges(), "")
		f.registry.connect("a", alice.ID)
		_, err := f.svc.Join(ctx, "a", alice.ID, "Fizika")
		require.NoError(t, err)
		_, err = f.svc.SendGroup(ctx, alice.ID, "Fizika", "first")
		require.NoError(t, err)

		f.registry.connect("b", bob.ID)
		backlog, err := f.svc.Join(ctx, "b", bob.ID, "Fizika")
		require.NoError(t, err)
		require.Len(t, backlog, 1)
		assert.Equal(t, "first", backlog[0].Body)

		var joined []models.UserJoinedPayload
		for _, e := range f.registry.events(t, "a") {
			if e.Type == models.EventUserJoined {
				var p models.UserJoinedPayload
				require.NoError(t, json.Unmarshal(e.Payload, &p))
				joined = append(joined, p)
			}
		}
		require.Len(t, joined, 1)
		assert.Equal(t, bob.ID, joined[0].UserID)
		for _, e := range f.registry.events(t, "b") {
			assert.NotEqual(t, models.EventUserJoined, e.Type, "joiner is not told about itself")
		}
	})

	t.Run("inactive user is not subscribed", func(t *testing.T) {
		f := newChatFixture(usersByID(alice, ghost), blockEdges(), "")
		f.registry.connect("a", alice.ID)
		_, err := f.svc.Join(ctx, "a", alice.ID, "Fizika")
		require.NoError(t, err)
		_, err = f.svc.SendGroup(ctx, alice.ID, "Fizika", "first")
		require.NoError(t, err)

		f.registry.connect("g", ghost.ID)
		backlog, err := f.svc.Join(ctx, "g", ghost.ID, "Fizika")
		require.NoError(t, err)
		assert.Empty(t, backlog)
		assert.False(t, f.registry.subscribed("g", models.FacultyRoom("Fizika")))
		for _, e := range f.registry.events(t, "a") {
			assert.NotEqual(t, models.EventUserJoined, e.Type)
		}
	})

	t.Run("inactive user cannot listen to another faculty", func(t *testing.T) {
		chemist := student(9, "Kimya")
		chemist.IsActive = false
		f := newChatFixture(usersByID(alice, chemist), blockEdges(), "")
		f.registry.connect("cm", chemist.ID)

		backlog, err := f.svc.Join(ctx, "cm", chemist.ID, "Fizika")
		require.NoError(t, err)
		assert.Empty(t, backlog)
		assert.False(t, f.registry.subscribed("cm", models.FacultyRoom("Fizika")))

		_, err = f.svc.SendGroup(ctx, alice.ID, "Fizika", "secret plan")
		require.NoError(t, err)
		assert.Empty(t, f.registry.events(t, "cm"))
	})

	t.Run("lookup failure binds nothing", func(t *testing.T) {
		users := &userDirStub{findActiveFn: func(context.Context, uint) (*models.User, error) {
			return nil, errors.New("db down")
		}}
		f := newChatFixture(users, blockEdges(), "")
		f.registry.connect("a", alice.ID)
		_, err := f.svc.Join(ctx, "a", alice.ID, "Kimya")
		assert.Error(t, err)
		assert.False(t, f.registry.subscribed("a", models.FacultyRoom("Kimya")))
	})

	t.Run("other faculty is refused", func(t *testing.T) {
		f := newChatFixture(usersByID(alice), blockEdges(), "")
		f.registry.connect("a", alice.ID)
		_, err := f.svc.Join(ctx, "a", alice.ID, "Kimya")
		assert.Equal(t, 403, models.StatusFor(err))
		assert.False(t, f.registry.subscribed("a", models.FacultyRoom("Kimya")))
	})

	t.Run("backlog honours the retention window", func(t *testing.T) {
		f := newChatFixture(usersByID(alice, bob), blockEdges(), "")
		now := time.Now()
		f.store.AppendGroup("Fizika", models.Message{ID: 1, Kind: models.KindGroup, Timestamp: now.Add(-49 * time.Hour)})
		f.store.AppendGroup("Fizika", models.Message{ID: 2, Kind: models.KindGroup, Timestamp: now.Add(-47 * time.Hour)})

		f.registry.connect("b", bob.ID)
		backlog, err := f.svc.Join(ctx, "b", bob.ID, "Fizika")
		require.NoError(t, err)
		require.Len(t, backlog, 1)
		assert.Equal(t, int64(2), backlog[0].ID)
	})

	t.Run("blank faculty means the user's own", func(t *testing.T) {
		f := newChatFixture(usersByID(alice), blockEdges(), "")
		f.registry.connect("a", alice.ID)
		_, err := f.svc.Join(ctx, "a", alice.ID, "  ")
		require.NoError(t, err)
		assert.True(t, f.registry.subscribed("a", models.FacultyRoom("Fizika")))
	})
}

func TestChatService_JoinPrivate(t *testing.T) {
	alice, bob := student(1, "Fizika"), student(2, "Kimya")
	ctx := context.Background()

	t.Run("blocked either way", func(t *testing.T) {
		for _, edge := range [][2]uint{{1, 2}, {2, 1}} {
			f := newChatFixture(usersByID(alice, bob), blockEdges(edge), "")
			f.registry.connect("a", alice.ID)
			_, err := f.svc.JoinPrivate(ctx, "a", alice.ID, bob.ID)
			assert.ErrorIs(t, err, models.ErrBlocked)
			assert.False(t, f.registry.subscribed("a", models.PrivateRoom(models.NewPairKey(1, 2))))
		}
	})

	t.Run("returns pair backlog", func(t *testing.T) {
		f := newChatFixture(usersByID(alice, bob), blockEdges(), "")
		f.registry.connect("a", alice.ID)
		f.registry.connect("b", bob.ID)
		_, err := f.svc.JoinPrivate(ctx, "b", bob.ID, alice.ID)
		require.NoError(t, err)
		_, err = f.svc.SendPrivate(ctx, bob.ID, alice.ID, "salam")
		require.NoError(t, err)

		backlog, err := f.svc.JoinPrivate(ctx, "a", alice.ID, bob.ID)
		require.NoError(t, err)
		require.Len(t, backlog, 1)
		assert.Equal(t, "salam", backlog[0].Body)
		assert.True(t, f.registry.subscribed("a", models.PrivateRoom(models.NewPairKey(2, 1))))
	})

	t.Run("self", func(t *testing.T) {
		f := newChatFixture(usersByID(alice), blockEdges(), "")
		f.registry.connect("a", alice.ID)
		_, err := f.svc.JoinPrivate(ctx, "a", alice.ID, alice.ID)
		assert.ErrorIs(t, err, models.ErrSelfTarget)
	})
}

func TestChatService_SendPrivate(t *testing.T) {
	alice, bob := student(1, "Fizika"), student(2, "Kimya")
	ctx := context.Background()

	t.Run("blocked stores nothing", func(t *testing.T) {
		f := newChatFixture(usersByID(alice, bob), blockEdges([2]uint{2, 1}), "")
		_, err := f.svc.SendPrivate(ctx, alice.ID, bob.ID, "salam")
		assert.ErrorIs(t, err, models.ErrBlocked)
		assert.Equal(t, 403, models.StatusFor(err))
		assert.Empty(t, f.store.PrivateBacklog(models.NewPairKey(1, 2), time.Time{}))
	})

	t.Run("delivered to both participants", func(t *testing.T) {
		f := newChatFixture(usersByID(alice, bob), blockEdges(), "")
		f.registry.connect("a", alice.ID)
		f.registry.connect("b", bob.ID)
		f.registry.connect("eve", 9)
		for _, j := range []struct {
			conn     string
			me, peer uint
		}{{"a", 1, 2}, {"b", 2, 1}} {
			_, err := f.svc.JoinPrivate(ctx, j.conn, j.me, j.peer)
			require.NoError(t, err)
		}

		msg, err := f.svc.SendPrivate(ctx, alice.ID, bob.ID, "salam")
		require.NoError(t, err)
		assert.Equal(t, bob.ID, msg.ReceiverID)

		for _, conn := range []string{"a", "b"} {
			evs := f.registry.events(t, conn)
			require.Len(t, evs, 1, conn)
			assert.Equal(t, models.EventNewPrivateMessage, evs[0].Type)
		}
		assert.Empty(t, f.registry.events(t, "eve"))
	})

	t.Run("not filtered by default", func(t *testing.T) {
		f := newChatFixture(usersByID(alice, bob), blockEdges(), "")
		f.settings.values[models.SettingFilterWords] = "dunya"
		msg, err := f.svc.SendPrivate(ctx, alice.ID, bob.ID, "salam dunya")
		require.NoError(t, err)
		assert.Equal(t, "salam dunya", msg.Body)
	})

	t.Run("filtered behind the flag", func(t *testing.T) {
		f := newChatFixture(usersByID(alice, bob), blockEdges(), FlagPrivateMessageFilter+"=on")
		f.settings.values[models.SettingFilterWords] = "dunya"
		msg, err := f.svc.SendPrivate(ctx, alice.ID, bob.ID, "salam dunya")
		require.NoError(t, err)
		assert.Equal(t, "salam *****", msg.Body)
	})

	t.Run("inactive sender", func(t *testing.T) {
		gone := student(1, "Fizika")
		gone.IsActive = false
		f := newChatFixture(usersByID(gone, bob), blockEdges(), "")
		_, err := f.svc.SendPrivate(ctx, gone.ID, bob.ID, "salam")
		assert.ErrorIs(t, err, models.ErrUserUnavailable)
		assert.Empty(t, f.store.PrivateBacklog(models.NewPairKey(1, 2), time.Time{}))
	})

	t.Run("ids increase", func(t *testing.T) {
		f := newChatFixture(usersByID(alice, bob), blockEdges(), "")
		var last int64
		for i := 0; i < 5; i++ {
			msg, err := f.svc.SendPrivate(ctx, alice.ID, bob.ID, "x")
			require.NoError(t, err)
			assert.Greater(t, msg.ID, last)
			last = msg.ID
		}
	})
}

func TestChatService_BlockAndReport(t *testing.T) {
	ctx := context.Background()
	mod := blockEdges()
	var reports [][2]uint
	mod.insertReportFn = func(_ context.Context, a, b uint) error {
		reports = append(reports, [2]uint{a, b})
		return nil
	}
	f := newChatFixture(usersByID(student(1, "Fizika"), student(2, "Fizika")), mod, "")

	require.NoError(t, f.svc.Block(ctx, 1, 2))
	require.NoError(t, f.svc.Block(ctx, 1, 2))
	blocked, err := mod.IsBlocked(ctx, 2, 1)
	require.NoError(t, err)
	assert.True(t, blocked)

	assert.ErrorIs(t, f.svc.Block(ctx, 1, 1), models.ErrSelfTarget)

	require.NoError(t, f.svc.Report(ctx, 1, 2))
	require.NoError(t, f.svc.Report(ctx, 1, 2))
	assert.Len(t, reports, 2)
	assert.ErrorIs(t, f.svc.Report(ctx, 2, 2), models.ErrSelfTarget)

	mod.insertBlockFn = func(context.Context, uint, uint) error {
		return models.NewInternalError(errors.New("db down"))
	}
	err = f.svc.Block(ctx, 1, 2)
	assert.Equal(t, 500, models.StatusFor(err))
}

func TestChatService_ReportQueue(t *testing.T) {
	ctx := context.Background()
	mod := blockEdges()
	counts := map[uint]int64{}
	mod.insertReportFn = func(_ context.Context, _ uint, b uint) error {
		counts[b]++
		return nil
	}
	mod.countReportsFn = func(_ context.Context, id uint) (int64, error) { return counts[id], nil }
	f := newChatFixture(usersByID(student(1, "Fizika"), student(2, "Fizika")), mod, "")

	before := promtest.ToFloat64(observability.ReportQueueEntries)
	for i := 0; i < models.ReportThreshold+2; i++ {
		require.NoError(t, f.svc.Report(ctx, 1, 2))
	}
	assert.Equal(t, before+1, promtest.ToFloat64(observability.ReportQueueEntries), "entering the queue is counted once")

	t.Run("count failure does not fail the report", func(t *testing.T) {
		mod.countReportsFn = func(context.Context, uint) (int64, error) { return 0, errors.New("db down") }
		assert.NoError(t, f.svc.Report(ctx, 1, 2))
	})

	t.Run("insert failure skips the count", func(t *testing.T) {
		mod.insertReportFn = func(context.Context, uint, uint) error { return models.NewInternalError(errors.New("db down")) }
		mod.countReportsFn = func(context.Context, uint) (int64, error) {
			t.Fatal("count after a failed insert")
			return 0, nil
		}
		assert.Equal(t, 500, models.StatusFor(f.svc.Report(ctx, 1, 2)))
	})
}

func TestChatService_BlockKeepsExistingPrivateSubscription(t *testing.T) {
	alice, bob := student(1, "Fizika"), student(2, "Kimya")
	f := newChatFixture(usersByID(alice, bob), blockEdges(), "")
	ctx := context.Background()

	f.registry.connect("a", alice.ID)
	_, err := f.svc.JoinPrivate(ctx, "a", alice.ID, bob.ID)
	require.NoError(t, err)

	require.NoError(t, f.svc.Block(ctx, bob.ID, alice.ID))
	assert.True(t, f.registry.subscribed("a", models.PrivateRoom(models.NewPairKey(1, 2))))

	_, err = f.svc.SendPrivate(ctx, alice.ID, bob.ID, "still there?")
	assert.ErrorIs(t, err, models.ErrBlocked)
}

func TestChatService_Leave(t *testing.T) {
	alice := student(1, "Fizika")
	f := newChatFixture(usersByID(alice), blockEdges(), "")
	f.registry.connect("a", alice.ID)
	_, err := f.svc.Join(context.Background(), "a", alice.ID, "Fizika")
	require.NoError(t, err)

	f.svc.Leave("a")
	f.svc.Leave("a")
	assert.False(t, f.registry.subscribed("a", models.FacultyRoom("Fizika")))
}
