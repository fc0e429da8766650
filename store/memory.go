package store

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps everything in process memory, used when no postgres dsn is configured and in tests.
// Records are copied on the way in and out so callers never share state with the store.
type MemoryStore struct {
	mu sync.Mutex

	lastID int64

	bans        map[int64]*Ban
	mutes       map[int64]*Mute
	infractions map[int64]*Infraction
	joins       map[int64]*Join
	reminders   map[int64]*Reminder
	settings    map[int64]*GuildSettings
}

var _ ActionStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		bans:        make(map[int64]*Ban),
		mutes:       make(map[int64]*Mute),
		infractions: make(map[int64]*Infraction),
		joins:       make(map[int64]*Join),
		reminders:   make(map[int64]*Reminder),
		settings:    make(map[int64]*GuildSettings),
	}
}

func (m *MemoryStore) nextID() int64 {
	m.lastID++
	return m.lastID
}

func (m *MemoryStore) CreateBan(ctx context.Context, b *Ban) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.resolveUserBansLocked(b.GuildID, b.UserID)

	b.ID = m.nextID()
	cop := *b
	m.bans[b.ID] = &cop
	return nil
}

func (m *MemoryStore) GetBan(ctx context.Context, id int64) (*Ban, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bans[id]
	if !ok {
		return nil, ErrNotFound
	}

	cop := *b
	return &cop, nil
}

func (m *MemoryStore) DueBans(ctx context.Context, now int64) ([]*Ban, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []*Ban
	for _, b := range m.bans {
		if !b.Unbanned && b.ExpiresAt.Valid && b.ExpiresAt.Int64 <= now {
			cop := *b
			result = append(result, &cop)
		}
	}

	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *MemoryStore) ResolveBan(ctx context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bans[id]
	if !ok || b.Unbanned {
		return false, nil
	}

	b.Unbanned = true
	return true, nil
}

func (m *MemoryStore) ResolveUserBans(ctx context.Context, guildID, userID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.resolveUserBansLocked(guildID, userID), nil
}

func (m *MemoryStore) resolveUserBansLocked(guildID, userID int64) int {
	n := 0
	for _, b := range m.bans {
		if b.GuildID == guildID && b.UserID == userID && !b.Unbanned {
			b.Unbanned = true
			n++
		}
	}
	return n
}

func (m *MemoryStore) CreateMute(ctx context.Context, mute *Mute) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.resolveUserMutesLocked(mute.GuildID, mute.UserID)

	mute.ID = m.nextID()
	cop := *mute
	m.mutes[mute.ID] = &cop
	return nil
}

func (m *MemoryStore) GetMute(ctx context.Context, id int64) (*Mute, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	mute, ok := m.mutes[id]
	if !ok {
		return nil, ErrNotFound
	}

	cop := *mute
	return &cop, nil
}

func (m *MemoryStore) DueMutes(ctx context.Context, now int64) ([]*Mute, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []*Mute
	for _, mute := range m.mutes {
		if !mute.Unmuted && mute.ExpiresAt.Valid && mute.ExpiresAt.Int64 <= now {
			cop := *mute
			result = append(result, &cop)
		}
	}

	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *MemoryStore) ResolveMute(ctx context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	mute, ok := m.mutes[id]
	if !ok || mute.Unmuted {
		return false, nil
	}

	mute.Unmuted = true
	return true, nil
}

func (m *MemoryStore) ResolveUserMutes(ctx context.Context, guildID, userID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.resolveUserMutesLocked(guildID, userID), nil
}

func (m *MemoryStore) resolveUserMutesLocked(guildID, userID int64) int {
	n := 0
	for _, mute := range m.mutes {
		if mute.GuildID == guildID && mute.UserID == userID && !mute.Unmuted {
			mute.Unmuted = true
			n++
		}
	}
	return n
}

func (m *MemoryStore) ActiveUserMute(ctx context.Context, guildID, userID int64) (*Mute, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, mute := range m.mutes {
		if mute.GuildID == guildID && mute.UserID == userID && !mute.Unmuted {
			cop := *mute
			return &cop, nil
		}
	}

	return nil, ErrNotFound
}

func (m *MemoryStore) CountActionableMutes(ctx context.Context, guildID, userID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, mute := range m.mutes {
		if mute.GuildID == guildID && mute.UserID == userID && !mute.Pardoned {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) CreateInfraction(ctx context.Context, inf *Infraction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	inf.ID = m.nextID()
	cop := *inf
	m.infractions[inf.ID] = &cop
	return nil
}

func (m *MemoryStore) CountActionableInfractions(ctx context.Context, kind InfractionKind, guildID, userID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, inf := range m.infractions {
		if inf.Kind == kind && inf.GuildID == guildID && inf.UserID == userID && !inf.Pardoned {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) CreateJoin(ctx context.Context, j *Join) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	j.ID = m.nextID()
	cop := *j
	m.joins[j.ID] = &cop
	return nil
}

func (m *MemoryStore) DueJoins(ctx context.Context, now int64) ([]*Join, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []*Join
	for _, j := range m.joins {
		if !j.Allowed && j.AllowAt <= now {
			cop := *j
			result = append(result, &cop)
		}
	}

	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *MemoryStore) ResolveJoin(ctx context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	j, ok := m.joins[id]
	if !ok || j.Allowed {
		return false, nil
	}

	j.Allowed = true
	return true, nil
}

func (m *MemoryStore) DeleteUserJoins(ctx context.Context, guildID, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, j := range m.joins {
		if j.GuildID == guildID && j.UserID == userID {
			delete(m.joins, id)
		}
	}
	return nil
}

func (m *MemoryStore) DeleteGuildJoins(ctx context.Context, guildID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, j := range m.joins {
		if j.GuildID == guildID {
			delete(m.joins, id)
		}
	}
	return nil
}

func (m *MemoryStore) CreateReminder(ctx context.Context, r *Reminder) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r.ID = m.nextID()
	cop := *r
	m.reminders[r.ID] = &cop
	return nil
}

func (m *MemoryStore) DueReminders(ctx context.Context, now int64) ([]*Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var result []*Reminder
	for _, r := range m.reminders {
		if !r.Reminded && r.RemindAt <= now {
			cop := *r
			result = append(result, &cop)
		}
	}

	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *MemoryStore) ResolveReminder(ctx context.Context, id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.reminders[id]
	if !ok || r.Reminded {
		return false, nil
	}

	r.Reminded = true
	return true, nil
}

func (m *MemoryStore) GetSettings(ctx context.Context, guildID int64) (*GuildSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.settings[guildID]
	if !ok {
		return nil, ErrNotFound
	}
	return s.Copy(), nil
}

func (m *MemoryStore) CreateSettings(ctx context.Context, s *GuildSettings) (*GuildSettings, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.settings[s.GuildID]; ok {
		return existing.Copy(), nil
	}

	m.settings[s.GuildID] = s.Copy()
	return s.Copy(), nil
}

func (m *MemoryStore) UpdateSettings(ctx context.Context, s *GuildSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.settings[s.GuildID]; !ok {
		return ErrNotFound
	}

	m.settings[s.GuildID] = s.Copy()
	return nil
}

func (m *MemoryStore) DeleteSettings(ctx context.Context, guildID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.settings, guildID)
	return nil
}
