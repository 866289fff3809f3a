package gateway

import (
	"context"
	"errors"
	"testing"
	"time"
)

func seededGateway(t *testing.T) *MemoryGateway {
	t.Helper()
	gw := NewMemoryGateway()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	gw.SetClock(func() time.Time {
		now = now.Add(time.Second)
		return now
	})
	ctx := context.Background()
	for _, u := range []Record{
		{"id": "s1", "email": "sana@example.com", "name": "Sana", "role": "seeker"},
		{"id": "p1", "email": "piotr@example.com", "name": "Piotr", "role": "provider"},
	} {
		if _, err := gw.Insert(ctx, CollectionUsers, u); err != nil {
			t.Fatalf("seed user: %v", err)
		}
	}
	return gw
}

func TestMemoryGatewayQueryFiltersAndOrders(t *testing.T) {
	gw := seededGateway(t)
	ctx := context.Background()
	for _, id := range []string{"m1", "m2", "m3"} {
		rec := MessageRecord("r1", "s1", "body "+id)
		rec["id"] = id
		if _, err := gw.Insert(ctx, CollectionMessages, rec); err != nil {
			t.Fatalf("insert %s: %v", id, err)
		}
	}
	other := MessageRecord("r2", "s1", "elsewhere")
	if _, err := gw.Insert(ctx, CollectionMessages, other); err != nil {
		t.Fatalf("insert other: %v", err)
	}

	asc, err := gw.Query(ctx, CollectionMessages, Query{
		Filters: []Filter{{Column: "request_id", Value: "r1"}},
		OrderBy: "created_at",
	})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(asc) != 3 {
		t.Fatalf("got %d rows, want 3", len(asc))
	}
	if asc[0]["id"] != "m1" || asc[2]["id"] != "m3" {
		t.Fatalf("ascending order broken: %v %v", asc[0]["id"], asc[2]["id"])
	}

	desc, err := gw.Query(ctx, CollectionMessages, Query{
		Filters:    []Filter{{Column: "request_id", Value: "r1"}},
		OrderBy:    "created_at",
		Descending: true,
	})
	if err != nil {
		t.Fatalf("query desc: %v", err)
	}
	if desc[0]["id"] != "m3" {
		t.Fatalf("descending order broken: %v", desc[0]["id"])
	}
}

func TestMemoryGatewayJoins(t *testing.T) {
	gw := seededGateway(t)
	ctx := context.Background()
	rec := MessageRecord("r1", "p1", "hello")
	created, err := gw.Insert(ctx, CollectionMessages, rec)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := gw.QueryOne(ctx, CollectionMessages, created["id"].(string),
		Join{Alias: JoinSender, Column: "sender_id", Field: "name"})
	if err != nil {
		t.Fatalf("query one: %v", err)
	}
	joined, ok := got[JoinSender].(map[string]any)
	if !ok || joined["name"] != "Piotr" {
		t.Fatalf("join = %v", got[JoinSender])
	}

	m, err := MessageFromRecord(got)
	if err != nil {
		t.Fatalf("map: %v", err)
	}
	if m.SenderName != "Piotr" {
		t.Fatalf("sender name = %q", m.SenderName)
	}
}

func TestMemoryGatewayQueryOneNotFound(t *testing.T) {
	gw := seededGateway(t)
	if _, err := gw.QueryOne(context.Background(), CollectionRequests, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryGatewayInsertGeneratesIDAndTimestamp(t *testing.T) {
	gw := seededGateway(t)
	created, err := gw.Insert(context.Background(), CollectionMessages, MessageRecord("r1", "s1", "x"))
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if id, _ := created["id"].(string); id == "" {
		t.Fatalf("no id generated")
	}
	if _, ok := created["created_at"].(time.Time); !ok {
		t.Fatalf("no created_at set: %T", created["created_at"])
	}
}

func TestMemoryGatewaySignUpAndSignIn(t *testing.T) {
	gw := NewMemoryGateway()
	ctx := context.Background()
	sess, err := gw.SignUp(ctx, "Nadia@Example.com", "long-enough-pass", Record{"name": "Nadia", "role": "provider"})
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}
	if sess.AccessToken == "" || sess.UserID == "" {
		t.Fatalf("session = %+v", sess)
	}
	row, err := gw.QueryOne(ctx, CollectionUsers, sess.UserID)
	if err != nil {
		t.Fatalf("profile row: %v", err)
	}
	if row["email"] != "nadia@example.com" || row["role"] != "provider" {
		t.Fatalf("profile = %v", row)
	}

	if _, err := gw.SignUp(ctx, "nadia@example.com", "long-enough-pass", nil); err == nil {
		t.Fatalf("duplicate email accepted")
	}
	if _, err := gw.SignIn(ctx, "nadia@example.com", "wrong"); err == nil {
		t.Fatalf("bad password accepted")
	}
	again, err := gw.SignIn(ctx, "nadia@example.com", "long-enough-pass")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if again.UserID != sess.UserID {
		t.Fatalf("sign in user %q, want %q", again.UserID, sess.UserID)
	}
}
