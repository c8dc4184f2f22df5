package messages

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aura-org/backend/internal/models"
	"github.com/aura-org/backend/pkg/apperr"
)

type passRunner struct{}

func (passRunner) Run(ctx context.Context, fn func(ctx context.Context) error) error  { return fn(ctx) }
func (passRunner) InTx(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }

type txKey struct{}

// txRunner marks the context passed to InTx so fakes can tell whether they run in a transaction.
type txRunner struct{}

func (txRunner) Run(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }
func (txRunner) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(context.WithValue(ctx, txKey{}, true))
}

type memStore struct {
	mu       sync.Mutex
	held     []bool // one entry per HoldParticipant call: was it inside a transaction
	members  map[uuid.UUID]map[uuid.UUID]bool
	messages []models.Message
	clock    time.Time
}

func newMemStore() *memStore {
	return &memStore{members: map[uuid.UUID]map[uuid.UUID]bool{}, clock: time.Unix(1700000000, 0)}
}

func (s *memStore) addChat(members ...uuid.UUID) uuid.UUID {
	id := uuid.New()
	s.members[id] = map[uuid.UUID]bool{}
	for _, m := range members {
		s.members[id][m] = true
	}
	return id
}

func (s *memStore) ChatExists(_ context.Context, chatID uuid.UUID) (bool, error) {
	_, ok := s.members[chatID]
	return ok, nil
}

func (s *memStore) IsParticipant(_ context.Context, chatID, userID uuid.UUID) (bool, error) {
	return s.members[chatID][userID], nil
}

func (s *memStore) HoldParticipant(ctx context.Context, chatID, userID uuid.UUID) (bool, error) {
	inTx, _ := ctx.Value(txKey{}).(bool)
	s.held = append(s.held, inTx)
	return s.members[chatID][userID], nil
}

// Insert stamps every message with the same time so ordering falls back to insertion order.
func (s *memStore) Insert(_ context.Context, chatID, senderID uuid.UUID, content string) (models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := models.Message{ID: uuid.New(), ChatID: chatID, SenderID: senderID, Content: content, CreatedAt: s.clock, SenderName: "user"}
	s.messages = append(s.messages, m)
	return m, nil
}

func (s *memStore) List(_ context.Context, chatID uuid.UUID) ([]models.Message, error) {
	var out []models.Message
	for _, m := range s.messages {
		if m.ChatID == chatID {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *memStore) MarkRead(_ context.Context, chatID, readerID uuid.UUID) (int64, error) {
	var n int64
	for i := range s.messages {
		m := &s.messages[i]
		if m.ChatID == chatID && m.SenderID != readerID && !m.IsRead {
			m.IsRead = true
			n++
		}
	}
	return n, nil
}

func (s *memStore) unreadFor(chatID, userID uuid.UUID) int {
	n := 0
	for _, m := range s.messages {
		if m.ChatID == chatID && m.SenderID != userID && !m.IsRead {
			n++
		}
	}
	return n
}

func TestSendTrimsAndStores(t *testing.T) {
	store := newMemStore()
	a, b := uuid.New(), uuid.New()
	chatID := store.addChat(a, b)
	svc := NewService(passRunner{}, store, nil)

	msg, err := svc.Send(context.Background(), chatID, a, "  hello  ")
	require.NoError(t, err)
	assert.Equal(t, "hello", msg.Content)
	assert.False(t, msg.IsRead)
	assert.Len(t, store.messages, 1)
}

func TestSendRejects(t *testing.T) {
	store := newMemStore()
	a, b, outsider := uuid.New(), uuid.New(), uuid.New()
	chatID := store.addChat(a, b)
	svc := NewService(passRunner{}, store, nil)
	ctx := context.Background()

	_, err := svc.Send(ctx, chatID, a, " \n\t ")
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = svc.Send(ctx, chatID, outsider, "hi")
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	_, err = svc.Send(ctx, uuid.New(), a, "hi")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	assert.Empty(t, store.messages)
}

func TestSendHoldsMembershipInTransaction(t *testing.T) {
	store := newMemStore()
	a, b := uuid.New(), uuid.New()
	chatID := store.addChat(a, b)
	svc := NewService(txRunner{}, store, nil)
	ctx := context.Background()

	_, err := svc.Send(ctx, chatID, a, "hi")
	require.NoError(t, err)
	assert.Equal(t, []bool{true}, store.held)

	delete(store.members[chatID], a)
	_, err = svc.Send(ctx, chatID, a, "still here?")
	assert.True(t, apperr.Is(err, apperr.KindForbidden))
	assert.Len(t, store.messages, 1)
}

func TestListOrdersByInsertionOnEqualTimestamps(t *testing.T) {
	store := newMemStore()
	a, b := uuid.New(), uuid.New()
	chatID := store.addChat(a, b)
	svc := NewService(passRunner{}, store, nil)
	ctx := context.Background()

	for _, c := range []string{"one", "two", "three"} {
		_, err := svc.Send(ctx, chatID, a, c)
		require.NoError(t, err)
	}
	list, err := svc.List(ctx, chatID, &b, false)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"one", "two", "three"}, []string{list[0].Content, list[1].Content, list[2].Content})
}

func TestListMarkRead(t *testing.T) {
	store := newMemStore()
	a, b := uuid.New(), uuid.New()
	chatID := store.addChat(a, b)
	svc := NewService(passRunner{}, store, nil)
	ctx := context.Background()

	_, err := svc.Send(ctx, chatID, a, "from a")
	require.NoError(t, err)
	_, err = svc.Send(ctx, chatID, b, "from b")
	require.NoError(t, err)

	_, err = svc.List(ctx, chatID, &b, false)
	require.NoError(t, err)
	assert.Equal(t, 1, store.unreadFor(chatID, b), "listing without mark_read changes nothing")

	_, err = svc.List(ctx, chatID, &b, true)
	require.NoError(t, err)
	assert.Equal(t, 0, store.unreadFor(chatID, b))
	assert.Equal(t, 1, store.unreadFor(chatID, a), "b's own message stays unread")

	_, err = svc.List(ctx, chatID, &b, true)
	require.NoError(t, err, "marking is idempotent")
}

func TestListAccess(t *testing.T) {
	store := newMemStore()
	a, outsider := uuid.New(), uuid.New()
	chatID := store.addChat(a, uuid.New())
	svc := NewService(passRunner{}, store, nil)
	ctx := context.Background()
	_, err := svc.Send(ctx, chatID, a, "secret")
	require.NoError(t, err)

	_, err = svc.List(ctx, chatID, &outsider, true)
	assert.True(t, apperr.Is(err, apperr.KindForbidden))

	list, err := svc.List(ctx, chatID, nil, true)
	require.NoError(t, err)
	assert.Len(t, list, 1)
	assert.False(t, store.messages[0].IsRead, "no requester means no read side effect")

	_, err = svc.List(ctx, uuid.New(), &a, false)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}
