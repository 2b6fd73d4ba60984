// Package memory provides an in-memory implementation of
// transport.ConversationStore for testing and lightweight deployments.
// Conversations are stored in memory and lost when the process restarts.
// Optional LRU eviction limits memory usage.
package memory

import (
	"container/list"
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rhuss/spielwerk/pkg/api"
	"github.com/rhuss/spielwerk/pkg/storage"
	"github.com/rhuss/spielwerk/pkg/transport"
)

// entry holds a stored conversation and its metadata.
type entry struct {
	conv      *api.Conversation
	tenantID  string
	deletedAt *time.Time
	lruElem   *list.Element // position in LRU list
}

// Store is an in-memory ConversationStore with optional LRU eviction.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
	lruList *list.List // front = most recently used, back = least recently used
	maxSize int        // 0 = unlimited
}

// Ensure Store implements transport.ConversationStore at compile time.
var _ transport.ConversationStore = (*Store)(nil)

// New creates a new in-memory store. If maxSize is 0, the store grows
// without limit. If maxSize > 0, the least recently used conversation is
// evicted when the limit is reached.
func New(maxSize int) *Store {
	return &Store{
		entries: make(map[string]*entry),
		lruList: list.New(),
		maxSize: maxSize,
	}
}

// CreateConversation persists a new conversation.
func (s *Store) CreateConversation(ctx context.Context, conv *api.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[conv.ID]; exists {
		return storage.ErrConflict
	}

	if s.maxSize > 0 && len(s.entries) >= s.maxSize {
		s.evictOldest()
	}

	elem := s.lruList.PushFront(conv.ID)
	s.entries[conv.ID] = &entry{
		conv:     cloneConversation(conv),
		tenantID: storage.GetTenant(ctx),
		lruElem:  elem,
	}
	return nil
}

// GetConversation retrieves a conversation by ID. Returns ErrNotFound if it
// does not exist or has been soft-deleted. Scoped by tenant when a tenant
// is present in the context. The returned conversation is a deep copy;
// stored conversations are mutated in place by AppendMessage, so handing
// out the live pointer would race with concurrent appends.
func (s *Store) GetConversation(ctx context.Context, id string) (*api.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	s.lruList.MoveToFront(e.lruElem)
	return cloneConversation(e.conv), nil
}

// AppendMessage adds a message to the end of an existing conversation and
// bumps its UpdatedAt timestamp.
func (s *Store) AppendMessage(ctx context.Context, conversationID string, msg *api.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.lookup(ctx, conversationID)
	if err != nil {
		return err
	}

	e.conv.Messages = append(e.conv.Messages, cloneMessage(msg))
	e.conv.UpdatedAt = msg.CreatedAt
	s.lruList.MoveToFront(e.lruElem)
	return nil
}

// GetMessage retrieves a single message from a conversation. Like
// GetConversation it returns a deep copy.
func (s *Store) GetMessage(ctx context.Context, conversationID, messageID string) (*api.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, err := s.lookup(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	for i := range e.conv.Messages {
		if e.conv.Messages[i].ID == messageID {
			msg := cloneMessage(&e.conv.Messages[i])
			return &msg, nil
		}
	}
	return nil, storage.ErrNotFound
}

// ListConversations returns a paginated list of conversation summaries
// ordered by UpdatedAt, newest first.
func (s *Store) ListConversations(ctx context.Context, opts transport.ListOptions) (*transport.ConversationList, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tenantID := storage.GetTenant(ctx)

	var matches []*api.Conversation
	for _, e := range s.entries {
		if e.deletedAt != nil {
			continue
		}
		if tenantID != "" && e.tenantID != tenantID {
			continue
		}
		matches = append(matches, e.conv)
	}

	asc := opts.Order == "asc"
	sort.Slice(matches, func(i, j int) bool {
		if asc {
			if !matches[i].UpdatedAt.Equal(matches[j].UpdatedAt) {
				return matches[i].UpdatedAt.Before(matches[j].UpdatedAt)
			}
			return matches[i].ID < matches[j].ID
		}
		if !matches[i].UpdatedAt.Equal(matches[j].UpdatedAt) {
			return matches[i].UpdatedAt.After(matches[j].UpdatedAt)
		}
		return matches[i].ID > matches[j].ID
	})

	// Cursor-based pagination.
	if opts.After != "" {
		idx := -1
		for i, c := range matches {
			if c.ID == opts.After {
				idx = i
				break
			}
		}
		if idx >= 0 {
			matches = matches[idx+1:]
		} else {
			matches = nil
		}
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	hasMore := len(matches) > limit
	if hasMore {
		matches = matches[:limit]
	}

	result := &transport.ConversationList{
		Object:  "list",
		Data:    make([]api.ConversationSummary, 0, len(matches)),
		HasMore: hasMore,
	}
	for _, c := range matches {
		result.Data = append(result.Data, api.ConversationSummary{
			ID:           c.ID,
			Title:        c.Title,
			MessageCount: len(c.Messages),
			UpdatedAt:    c.UpdatedAt,
		})
	}
	if len(matches) > 0 {
		result.FirstID = matches[0].ID
		result.LastID = matches[len(matches)-1].ID
	}
	return result, nil
}

// DeleteConversation soft-deletes a conversation.
func (s *Store) DeleteConversation(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, err := s.lookup(ctx, id)
	if err != nil {
		return err
	}

	now := time.Now()
	e.deletedAt = &now
	return nil
}

// HealthCheck always returns nil for the in-memory store.
func (s *Store) HealthCheck(_ context.Context) error {
	return nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}

// lookup finds a live, tenant-visible entry. Must be called with s.mu held.
func (s *Store) lookup(ctx context.Context, id string) (*entry, error) {
	e, ok := s.entries[id]
	if !ok || e.deletedAt != nil {
		return nil, storage.ErrNotFound
	}
	tenantID := storage.GetTenant(ctx)
	if tenantID != "" && e.tenantID != tenantID {
		return nil, storage.ErrNotFound
	}
	return e, nil
}

// cloneConversation deep-copies a conversation so callers and the store
// never share mutable state.
func cloneConversation(c *api.Conversation) *api.Conversation {
	out := *c
	out.Messages = make([]api.Message, len(c.Messages))
	for i := range c.Messages {
		out.Messages[i] = cloneMessage(&c.Messages[i])
	}
	return &out
}

func cloneMessage(m *api.Message) api.Message {
	out := *m
	out.Game = cloneResult(m.Game)
	return out
}

func cloneResult(r *api.GameResult) *api.GameResult {
	if r == nil {
		return nil
	}
	out := *r
	out.ImageResources = append([]string(nil), r.ImageResources...)
	out.AudioResources = append([]string(nil), r.AudioResources...)
	out.ExecutionChain = append([]string(nil), r.ExecutionChain...)
	if r.UsageStats != nil {
		out.UsageStats = make(map[string]api.Usage, len(r.UsageStats))
		for stage, usage := range r.UsageStats {
			out.UsageStats[stage] = usage
		}
	}
	return &out
}

// evictOldest removes the least recently used entry.
// Must be called with s.mu held.
func (s *Store) evictOldest() {
	back := s.lruList.Back()
	if back == nil {
		return
	}
	id := back.Value.(string)
	s.lruList.Remove(back)
	delete(s.entries, id)
}
