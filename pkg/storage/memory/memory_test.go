package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rhuss/spielwerk/pkg/api"
	"github.com/rhuss/spielwerk/pkg/storage"
	"github.com/rhuss/spielwerk/pkg/transport"
)

func newConversation(id string, updatedAt time.Time) *api.Conversation {
	return &api.Conversation{
		ID:        id,
		Title:     "snake game",
		CreatedAt: updatedAt,
		UpdatedAt: updatedAt,
	}
}

func TestCreateAndGet(t *testing.T) {
	s := New(0)
	ctx := context.Background()

	conv := newConversation("c1", time.Now())
	if err := s.CreateConversation(ctx, conv); err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}

	got, err := s.GetConversation(ctx, "c1")
	if err != nil {
		t.Fatalf("GetConversation: %v", err)
	}
	if got.ID != "c1" || got.Title != "snake game" {
		t.Errorf("got = %+v", got)
	}

	if err := s.CreateConversation(ctx, conv); !errors.Is(err, storage.ErrConflict) {
		t.Errorf("duplicate create = %v, want ErrConflict", err)
	}

	if _, err := s.GetConversation(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("missing get = %v, want ErrNotFound", err)
	}
}

func TestAppendAndGetMessage(t *testing.T) {
	s := New(0)
	ctx := context.Background()

	created := time.Now().Add(-time.Hour)
	if err := s.CreateConversation(ctx, newConversation("c1", created)); err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}

	msgTime := time.Now()
	msg := &api.Message{
		ID:         "m1",
		UserPrompt: "make it faster",
		CreatedAt:  msgTime,
		Game:       &api.GameResult{Title: "Speedy Snake", HTML: "<html></html>"},
	}
	if err := s.AppendMessage(ctx, "c1", msg); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}

	got, err := s.GetMessage(ctx, "c1", "m1")
	if err != nil {
		t.Fatalf("GetMessage: %v", err)
	}
	if got.Game == nil || got.Game.Title != "Speedy Snake" {
		t.Errorf("message = %+v", got)
	}

	conv, _ := s.GetConversation(ctx, "c1")
	if !conv.UpdatedAt.Equal(msgTime) {
		t.Errorf("UpdatedAt = %v, want %v", conv.UpdatedAt, msgTime)
	}

	if _, err := s.GetMessage(ctx, "c1", "nope"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("missing message = %v, want ErrNotFound", err)
	}
	if err := s.AppendMessage(ctx, "nope", msg); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("append to missing = %v, want ErrNotFound", err)
	}
}

func TestTenantIsolation(t *testing.T) {
	s := New(0)
	ctxA := storage.SetTenant(context.Background(), "tenant-a")
	ctxB := storage.SetTenant(context.Background(), "tenant-b")

	if err := s.CreateConversation(ctxA, newConversation("c1", time.Now())); err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}

	if _, err := s.GetConversation(ctxB, "c1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("cross-tenant get = %v, want ErrNotFound", err)
	}

	list, err := s.ListConversations(ctxB, transport.ListOptions{})
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	if len(list.Data) != 0 {
		t.Errorf("cross-tenant list = %d entries", len(list.Data))
	}

	if _, err := s.GetConversation(ctxA, "c1"); err != nil {
		t.Errorf("same-tenant get failed: %v", err)
	}
}

func TestListOrderingAndPagination(t *testing.T) {
	s := New(0)
	ctx := context.Background()

	base := time.Now()
	for i := 0; i < 5; i++ {
		conv := newConversation(fmt.Sprintf("c%d", i), base.Add(time.Duration(i)*time.Minute))
		if err := s.CreateConversation(ctx, conv); err != nil {
			t.Fatalf("CreateConversation: %v", err)
		}
	}

	// Default: newest first.
	list, err := s.ListConversations(ctx, transport.ListOptions{Limit: 2})
	if err != nil {
		t.Fatalf("ListConversations: %v", err)
	}
	if len(list.Data) != 2 || list.Data[0].ID != "c4" || list.Data[1].ID != "c3" {
		t.Errorf("first page = %+v", list.Data)
	}
	if !list.HasMore {
		t.Error("HasMore = false")
	}

	// Next page via cursor.
	list, err = s.ListConversations(ctx, transport.ListOptions{Limit: 2, After: list.LastID})
	if err != nil {
		t.Fatalf("ListConversations page 2: %v", err)
	}
	if len(list.Data) != 2 || list.Data[0].ID != "c2" {
		t.Errorf("second page = %+v", list.Data)
	}

	// Ascending order.
	list, err = s.ListConversations(ctx, transport.ListOptions{Order: "asc", Limit: 1})
	if err != nil {
		t.Fatalf("ListConversations asc: %v", err)
	}
	if list.Data[0].ID != "c0" {
		t.Errorf("asc first = %q", list.Data[0].ID)
	}
}

func TestDeleteConversation(t *testing.T) {
	s := New(0)
	ctx := context.Background()

	if err := s.CreateConversation(ctx, newConversation("c1", time.Now())); err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}
	if err := s.DeleteConversation(ctx, "c1"); err != nil {
		t.Fatalf("DeleteConversation: %v", err)
	}
	if _, err := s.GetConversation(ctx, "c1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("get after delete = %v, want ErrNotFound", err)
	}
	if err := s.DeleteConversation(ctx, "c1"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("double delete = %v, want ErrNotFound", err)
	}
}

func TestLRUEviction(t *testing.T) {
	s := New(2)
	ctx := context.Background()

	s.CreateConversation(ctx, newConversation("c1", time.Now()))
	s.CreateConversation(ctx, newConversation("c2", time.Now()))

	// Touch c1 so c2 becomes the eviction candidate.
	if _, err := s.GetConversation(ctx, "c1"); err != nil {
		t.Fatalf("GetConversation: %v", err)
	}

	s.CreateConversation(ctx, newConversation("c3", time.Now()))

	if _, err := s.GetConversation(ctx, "c2"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("c2 should have been evicted, got %v", err)
	}
	if _, err := s.GetConversation(ctx, "c1"); err != nil {
		t.Errorf("c1 should survive: %v", err)
	}
	if _, err := s.GetConversation(ctx, "c3"); err != nil {
		t.Errorf("c3 should exist: %v", err)
	}
}

func TestGetConversationReturnsCopy(t *testing.T) {
	s := New(0)
	ctx := context.Background()

	conv := newConversation("c1", time.Now())
	if err := s.CreateConversation(ctx, conv); err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}
	// Mutating the caller's struct after Create must not leak into the store.
	conv.Title = "mutated after create"

	msg := &api.Message{
		ID:         "m1",
		UserPrompt: "make a breakout clone",
		CreatedAt:  time.Now(),
		Game: &api.GameResult{
			Title:          "Breakout",
			HTML:           "<html></html>",
			ImageResources: []string{"paddle.png"},
			ExecutionChain: []string{"logic", "render"},
			UsageStats:     map[string]api.Usage{"logic": {OutputTokens: 10}},
		},
	}
	if err := s.AppendMessage(ctx, "c1", msg); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}

	got, err := s.GetConversation(ctx, "c1")
	if err != nil {
		t.Fatalf("GetConversation: %v", err)
	}
	got.Title = "scribbled"
	got.Messages[0].UserPrompt = "scribbled"
	got.Messages[0].Game.HTML = "scribbled"
	got.Messages[0].Game.ImageResources[0] = "scribbled"
	got.Messages[0].Game.UsageStats["logic"] = api.Usage{OutputTokens: 999}

	again, err := s.GetConversation(ctx, "c1")
	if err != nil {
		t.Fatalf("GetConversation: %v", err)
	}
	if again.Title != "snake game" {
		t.Errorf("Title = %q, want %q", again.Title, "snake game")
	}
	if again.Messages[0].UserPrompt != "make a breakout clone" {
		t.Errorf("UserPrompt = %q", again.Messages[0].UserPrompt)
	}
	if again.Messages[0].Game.HTML != "<html></html>" {
		t.Errorf("HTML = %q", again.Messages[0].Game.HTML)
	}
	if again.Messages[0].Game.ImageResources[0] != "paddle.png" {
		t.Errorf("ImageResources = %v", again.Messages[0].Game.ImageResources)
	}
	if again.Messages[0].Game.UsageStats["logic"].OutputTokens != 10 {
		t.Errorf("UsageStats = %v", again.Messages[0].Game.UsageStats)
	}

	// GetMessage hands out an independent copy too.
	m, err := s.GetMessage(ctx, "c1", "m1")
	if err != nil {
		t.Fatalf("GetMessage: %v", err)
	}
	m.Game.Title = "scribbled"
	m2, _ := s.GetMessage(ctx, "c1", "m1")
	if m2.Game.Title != "Breakout" {
		t.Errorf("Game.Title = %q, want %q", m2.Game.Title, "Breakout")
	}
}

func TestConcurrentAppendAndRead(t *testing.T) {
	s := New(0)
	ctx := context.Background()

	if err := s.CreateConversation(ctx, newConversation("c1", time.Now())); err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				msg := &api.Message{
					ID:        fmt.Sprintf("m%d-%d", i, j),
					CreatedAt: time.Now(),
					Game:      &api.GameResult{ExecutionChain: []string{"logic"}},
				}
				if err := s.AppendMessage(ctx, "c1", msg); err != nil {
					t.Errorf("AppendMessage: %v", err)
					return
				}
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				conv, err := s.GetConversation(ctx, "c1")
				if err != nil {
					t.Errorf("GetConversation: %v", err)
					return
				}
				// Walking the history must be safe against concurrent appends.
				for k := range conv.Messages {
					_ = conv.Messages[k].Game
				}
			}
		}()
	}
	wg.Wait()
}
