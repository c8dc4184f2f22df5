package chats

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/aura-org/backend/internal/hierarchy"
	"github.com/aura-org/backend/internal/models"
	"github.com/aura-org/backend/pkg/apperr"
)

// passRunner runs fn inline; fakes need no session.
type passRunner struct{}

func (passRunner) Run(ctx context.Context, fn func(ctx context.Context) error) error  { return fn(ctx) }
func (passRunner) InTx(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }

// org is an in-memory hierarchy mirroring hierarchy.Repository's lookups.
type org struct {
	users map[uuid.UUID]models.User
	depts map[uuid.UUID]models.Department
}

func newOrg() *org {
	return &org{users: map[uuid.UUID]models.User{}, depts: map[uuid.UUID]models.Department{}}
}

func (o *org) addUser(role models.Role, team, dept *uuid.UUID) uuid.UUID {
	id := uuid.New()
	o.users[id] = models.User{ID: id, Name: string(role) + "-" + id.String()[:4], Role: role, TeamID: team, DepartmentID: dept}
	return id
}

func (o *org) User(_ context.Context, id uuid.UUID) (models.User, error) {
	u, ok := o.users[id]
	if !ok {
		return models.User{}, apperr.NotFound("user not found")
	}
	return u, nil
}

func (o *org) leaderOf(team uuid.UUID) *uuid.UUID {
	for id, u := range o.users {
		if u.Role == models.RoleTeamLeader && u.TeamID != nil && *u.TeamID == team {
			id := id
			return &id
		}
	}
	return nil
}

func (o *org) Position(_ context.Context, u models.User) (hierarchy.Position, error) {
	var pos hierarchy.Position
	switch u.Role {
	case models.RoleTeamLeader:
		if u.TeamID == nil {
			break
		}
		for _, d := range o.depts {
			if d.TeamID == *u.TeamID && d.DeptHeadID != nil {
				pos.TeamDeptHeadIDs = append(pos.TeamDeptHeadIDs, *d.DeptHeadID)
			}
		}
	case models.RoleDeptHead:
		for _, d := range o.depts {
			if d.DeptHeadID == nil || *d.DeptHeadID != u.ID {
				continue
			}
			id := d.ID
			pos.HeadedDepartmentID = &id
			pos.TeamLeaderID = o.leaderOf(d.TeamID)
			for mid, m := range o.users {
				if m.Role == models.RoleMember && m.DepartmentID != nil && *m.DepartmentID == d.ID {
					pos.DepartmentMemberIDs = append(pos.DepartmentMemberIDs, mid)
				}
			}
			break
		}
	case models.RoleMember:
		if u.DepartmentID != nil {
			if d, ok := o.depts[*u.DepartmentID]; ok {
				pos.DepartmentHeadID = d.DeptHeadID
			}
		}
	}
	return pos, nil
}

type pairKey struct{ low, high uuid.UUID }

// memChats is an in-memory registry for private and group chats.
type memChats struct {
	mu        sync.Mutex
	private   map[pairKey]uuid.UUID
	groups    map[uuid.UUID]uuid.UUID // task -> chat
	names     map[uuid.UUID]string
	members   map[uuid.UUID]map[uuid.UUID]bool
	destroyed []uuid.UUID
	failOn    string
}

func newMemChats() *memChats {
	return &memChats{
		private: map[pairKey]uuid.UUID{},
		groups:  map[uuid.UUID]uuid.UUID{},
		names:   map[uuid.UUID]string{},
		members: map[uuid.UUID]map[uuid.UUID]bool{},
	}
}

func (m *memChats) EnsurePrivateChat(_ context.Context, u1, u2 uuid.UUID) (uuid.UUID, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn == "ensure" {
		return uuid.Nil, false, apperr.Unavailable("store down", nil)
	}
	if u1 == u2 {
		return uuid.Nil, false, apperr.Validation("a private chat needs two distinct participants")
	}
	low, high := orderedPair(u1, u2)
	if id, ok := m.private[pairKey{low, high}]; ok {
		return id, false, nil
	}
	id := uuid.New()
	m.private[pairKey{low, high}] = id
	m.members[id] = map[uuid.UUID]bool{u1: true, u2: true}
	return id, true, nil
}

func (m *memChats) DestroyChat(_ context.Context, chatID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, id := range m.private {
		if id == chatID {
			delete(m.private, k)
		}
	}
	delete(m.members, chatID)
	m.destroyed = append(m.destroyed, chatID)
	return nil
}

func (m *memChats) FindPrivateChatsOf(_ context.Context, userID uuid.UUID) ([]PrivateChatRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []PrivateChatRef
	for k, id := range m.private {
		switch userID {
		case k.low:
			out = append(out, PrivateChatRef{ChatID: id, OtherUserID: k.high})
		case k.high:
			out = append(out, PrivateChatRef{ChatID: id, OtherUserID: k.low})
		}
	}
	return out, nil
}

func (m *memChats) hasPair(a, b uuid.UUID) bool {
	low, high := orderedPair(a, b)
	_, ok := m.private[pairKey{low, high}]
	return ok
}

func (m *memChats) GroupChatForTask(_ context.Context, taskID uuid.UUID) (uuid.UUID, bool, error) {
	id, ok := m.groups[taskID]
	return id, ok, nil
}

func (m *memChats) CreateGroupChatForTask(_ context.Context, taskID uuid.UUID, name string) (uuid.UUID, error) {
	if id, ok := m.groups[taskID]; ok {
		return id, nil
	}
	id := uuid.New()
	m.groups[taskID] = id
	m.names[id] = name
	m.members[id] = map[uuid.UUID]bool{}
	return id, nil
}

func (m *memChats) ReplaceParticipants(_ context.Context, chatID uuid.UUID, userIDs []uuid.UUID) error {
	if m.failOn == "replace" {
		return apperr.Unavailable("store down", nil)
	}
	set := map[uuid.UUID]bool{}
	for _, id := range userIDs {
		set[id] = true
	}
	m.members[chatID] = set
	return nil
}

func (m *memChats) AddParticipants(_ context.Context, chatID uuid.UUID, userIDs []uuid.UUID) error {
	if m.failOn == "add" {
		return apperr.Unavailable("store down", nil)
	}
	set, ok := m.members[chatID]
	if !ok {
		set = map[uuid.UUID]bool{}
		m.members[chatID] = set
	}
	for _, id := range userIDs {
		set[id] = true
	}
	return nil
}

func (m *memChats) memberSet(chatID uuid.UUID) map[uuid.UUID]bool {
	return m.members[chatID]
}

// countingLocker records lock traffic.
type countingLocker struct {
	mu       sync.Mutex
	locked   []uuid.UUID
	unlocked int
	err      error
}

func (l *countingLocker) Lock(_ context.Context, userID uuid.UUID) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, l.err
	}
	l.locked = append(l.locked, userID)
	return func() {
		l.mu.Lock()
		l.unlocked++
		l.mu.Unlock()
	}, nil
}
