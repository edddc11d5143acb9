package chat

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
)

func TestMemorySessionsKeepsRecentExchanges(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySessions(2)

	first, _ := store.CreateSession(ctx)
	second, _ := store.CreateSession(ctx)
	if first != "session_1" || second != "session_2" {
		t.Fatalf("unexpected ids %q %q", first, second)
	}

	for _, q := range []string{"q1", "q2", "q3"} {
		if err := store.AddExchange(ctx, first, q, "a"+q[1:]); err != nil {
			t.Fatalf("add exchange: %v", err)
		}
	}
	history, err := store.History(ctx, first)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	want := "User: q2\nAssistant: a2\nUser: q3\nAssistant: a3"
	if history != want {
		t.Fatalf("unexpected history:\n%s", history)
	}

	if h, _ := store.History(ctx, "missing"); h != "" {
		t.Fatalf("expected empty history for unknown session, got %q", h)
	}

	if err := store.Clear(ctx, first); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if h, _ := store.History(ctx, first); h != "" {
		t.Fatalf("expected cleared history, got %q", h)
	}
}

func TestMemorySessionsAddToUnknownSession(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySessions(0)
	if err := store.AddExchange(ctx, "external", "hello", "hi"); err != nil {
		t.Fatalf("add exchange: %v", err)
	}
	if h, _ := store.History(ctx, "external"); h != "User: hello\nAssistant: hi" {
		t.Fatalf("unexpected history %q", h)
	}
}

func TestRedisSessions(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	store := NewRedisSessions(client, 1, time.Hour, testLogger())

	id, err := store.CreateSession(ctx)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if id != "session_1" {
		t.Fatalf("unexpected id %q", id)
	}

	if err := store.AddExchange(ctx, id, "old question", "old answer"); err != nil {
		t.Fatalf("add exchange: %v", err)
	}
	if err := store.AddExchange(ctx, id, "What is MCP?", "A protocol."); err != nil {
		t.Fatalf("add exchange: %v", err)
	}
	history, err := store.History(ctx, id)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if history != "User: What is MCP?\nAssistant: A protocol." {
		t.Fatalf("unexpected history %q", history)
	}
	if ttl := mr.TTL("coursebook:session:" + id); ttl != time.Hour {
		t.Fatalf("expected 1h ttl, got %v", ttl)
	}

	mr.FastForward(2 * time.Hour)
	if h, _ := store.History(ctx, id); h != "" {
		t.Fatalf("expected expired history, got %q", h)
	}

	_ = store.AddExchange(ctx, id, "q", "a")
	if err := store.Clear(ctx, id); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if h, _ := store.History(ctx, id); h != "" {
		t.Fatalf("expected cleared history, got %q", h)
	}
}
