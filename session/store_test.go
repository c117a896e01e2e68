package session

import (
	"fmt"
	"testing"
	"time"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestStore(clock *fakeClock) *Store {
	return NewStore(Options{
		AdminPassword: "admin123456",
		Now:           clock.Now,
	})
}

func TestAdminGrantAndExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	store := newTestStore(clock)

	if store.Authorize("user-1", "wrong") {
		t.Fatalf("Authorize() accepted a wrong password")
	}
	if !store.Authorize("user-1", "admin123456") {
		t.Fatalf("Authorize() rejected the configured password")
	}
	if !store.IsAdmin("user-1") {
		t.Fatalf("IsAdmin() = false immediately after grant")
	}

	clock.Advance(30*time.Minute + time.Second)
	if store.IsAdmin("user-1") {
		t.Fatalf("IsAdmin() = true after expiry")
	}
	// The expired entry must have been purged; a fresh grant works cleanly.
	if store.IsAdmin("user-1") {
		t.Fatalf("IsAdmin() = true on second read after expiry")
	}
	if !store.Authorize("user-1", "admin123456") {
		t.Fatalf("Authorize() failed after expiry purge")
	}
	if !store.IsAdmin("user-1") {
		t.Fatalf("IsAdmin() = false after re-grant")
	}
}

func TestConversationStateExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	store := newTestStore(clock)

	store.SetConversationState("user-1", "cover_selection", "payload")
	state, ok := store.GetConversationState("user-1")
	if !ok || state.Tag != "cover_selection" || state.Payload != "payload" {
		t.Fatalf("GetConversationState() = %#v, %v", state, ok)
	}

	clock.Advance(301 * time.Second)
	if _, ok := store.GetConversationState("user-1"); ok {
		t.Fatalf("GetConversationState() returned a state aged past the TTL")
	}
	// Expired read removes the entry as a side effect.
	store.mu.Lock()
	_, lingering := store.conversations["user-1"]
	store.mu.Unlock()
	if lingering {
		t.Fatalf("expired conversation state was not purged on read")
	}
}

func TestConversationStateSingleLive(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	store := newTestStore(clock)

	store.SetConversationState("user-1", "cover_selection", 1)
	store.SetConversationState("user-1", "cover_selection", 2)
	state, ok := store.GetConversationState("user-1")
	if !ok || state.Payload != 2 {
		t.Fatalf("second SetConversationState did not replace the first: %#v", state)
	}

	store.ClearConversationState("user-1")
	if _, ok := store.GetConversationState("user-1"); ok {
		t.Fatalf("GetConversationState() found a cleared state")
	}
}

func TestMediaDedupEviction(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	store := newTestStore(clock)

	for i := 0; i < 1001; i++ {
		id := fmt.Sprintf("media-%04d", i)
		store.MarkMediaProcessed(id)
		if !store.IsMediaProcessed(id) {
			t.Fatalf("IsMediaProcessed(%q) = false right after insertion", id)
		}
	}

	store.mu.Lock()
	size := len(store.mediaSeen)
	store.mu.Unlock()
	if size >= 1001 {
		t.Fatalf("dedup cache holds %d entries, eviction never ran", size)
	}
	if size < 501 {
		t.Fatalf("dedup cache holds %d entries, evicted too much", size)
	}

	// Oldest half is gone, newest entries survive.
	if store.IsMediaProcessed("media-0000") {
		t.Fatalf("oldest media id survived eviction")
	}
	if !store.IsMediaProcessed("media-1000") {
		t.Fatalf("newest media id was evicted")
	}
}

func TestMediaDedupeDuplicateInsertIsStable(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	store := newTestStore(clock)

	store.MarkMediaProcessed("media-1")
	store.MarkMediaProcessed("media-1")
	store.mu.Lock()
	order := len(store.mediaOrder)
	store.mu.Unlock()
	if order != 1 {
		t.Fatalf("duplicate insertion grew the order list to %d", order)
	}
}

func TestPendingTitleTTL(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	store := newTestStore(clock)

	store.SetPendingTitle("work-1", "晚霞")
	title, ok := store.PendingTitle("work-1")
	if !ok || title != "晚霞" {
		t.Fatalf("PendingTitle() = %q, %v", title, ok)
	}

	clock.Advance(time.Hour + time.Minute)
	if _, ok := store.PendingTitle("work-1"); ok {
		t.Fatalf("PendingTitle() returned a title aged past the TTL")
	}
}
