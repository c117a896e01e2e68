// Package session holds the process-lifetime conversational state: admin
// authorization grants, per-user multi-turn flow state, a bounded
// deduplication set for platform media IDs, and a short-lived cache of
// human-chosen titles for generation jobs. Pure data structure; expiry is
// checked lazily on read and no I/O happens here.
package session

import (
	"sync"
	"time"
)

const (
	defaultAdminTTL        = 30 * time.Minute
	defaultConversationTTL = 5 * time.Minute
	defaultTitleTTL        = time.Hour
	defaultMediaHighWater  = 1000
	defaultMediaEvict      = 500
)

// ConversationState is one user's position in a multi-turn flow. Payload is
// whatever the flow needs to resume; the store never inspects it.
type ConversationState struct {
	Tag     string
	Payload any
	SetAt   time.Time
}

type adminGrant struct {
	expiresAt time.Time
}

type pendingTitle struct {
	title string
	setAt time.Time
}

type Options struct {
	AdminPassword   string
	AdminTTL        time.Duration
	ConversationTTL time.Duration
	TitleTTL        time.Duration
	MediaHighWater  int
	MediaEvict      int
	// Now overrides the clock; tests inject a fixed time.
	Now func() time.Time
}

type Store struct {
	mu sync.Mutex

	adminPassword   string
	adminTTL        time.Duration
	conversationTTL time.Duration
	titleTTL        time.Duration
	mediaHighWater  int
	mediaEvict      int
	now             func() time.Time

	admins        map[string]adminGrant
	conversations map[string]ConversationState
	titles        map[string]pendingTitle
	mediaSeen     map[string]bool
	mediaOrder    []string
}

func NewStore(opts Options) *Store {
	if opts.AdminTTL <= 0 {
		opts.AdminTTL = defaultAdminTTL
	}
	if opts.ConversationTTL <= 0 {
		opts.ConversationTTL = defaultConversationTTL
	}
	if opts.TitleTTL <= 0 {
		opts.TitleTTL = defaultTitleTTL
	}
	if opts.MediaHighWater <= 0 {
		opts.MediaHighWater = defaultMediaHighWater
	}
	if opts.MediaEvict <= 0 || opts.MediaEvict > opts.MediaHighWater {
		opts.MediaEvict = defaultMediaEvict
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Store{
		adminPassword:   opts.AdminPassword,
		adminTTL:        opts.AdminTTL,
		conversationTTL: opts.ConversationTTL,
		titleTTL:        opts.TitleTTL,
		mediaHighWater:  opts.MediaHighWater,
		mediaEvict:      opts.MediaEvict,
		now:             opts.Now,
		admins:          make(map[string]adminGrant),
		conversations:   make(map[string]ConversationState),
		titles:          make(map[string]pendingTitle),
		mediaSeen:       make(map[string]bool),
	}
}

// Authorize grants admin rights for the configured TTL when the password
// matches the configured secret.
func (s *Store) Authorize(userID string, password string) bool {
	if password == "" || password != s.adminPassword {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.admins[userID] = adminGrant{expiresAt: s.now().Add(s.adminTTL)}
	return true
}

// IsAdmin reports whether the user holds a live grant. An expired grant is
// purged as a side effect so a later Authorize starts clean.
func (s *Store) IsAdmin(userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	grant, ok := s.admins[userID]
	if !ok {
		return false
	}
	if s.now().After(grant.expiresAt) {
		delete(s.admins, userID)
		return false
	}
	return true
}

// SetConversationState replaces the user's flow state; a user has at most one
// live state.
func (s *Store) SetConversationState(userID string, tag string, payload any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations[userID] = ConversationState{Tag: tag, Payload: payload, SetAt: s.now()}
}

// GetConversationState returns the user's live flow state. A state older than
// the conversation TTL is treated as absent and removed.
func (s *Store) GetConversationState(userID string) (ConversationState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.conversations[userID]
	if !ok {
		return ConversationState{}, false
	}
	if s.now().Sub(state.SetAt) > s.conversationTTL {
		delete(s.conversations, userID)
		return ConversationState{}, false
	}
	return state, true
}

func (s *Store) ClearConversationState(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conversations, userID)
}

// IsMediaProcessed reports whether this media ID was already handled. The
// platform delivers at least once, so image handling consults this first.
func (s *Store) IsMediaProcessed(mediaID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mediaSeen[mediaID]
}

// MarkMediaProcessed records a media ID. Past the high-water mark the oldest
// half is dropped in one pass; amortized cleanup, not strict LRU.
func (s *Store) MarkMediaProcessed(mediaID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mediaSeen[mediaID] {
		return
	}
	s.mediaSeen[mediaID] = true
	s.mediaOrder = append(s.mediaOrder, mediaID)
	if len(s.mediaOrder) <= s.mediaHighWater {
		return
	}
	evicted := s.mediaOrder[:s.mediaEvict]
	for _, id := range evicted {
		delete(s.mediaSeen, id)
	}
	s.mediaOrder = append(s.mediaOrder[:0], s.mediaOrder[s.mediaEvict:]...)
}

// SetPendingTitle remembers the human-chosen title for a generation job so a
// later poll can attach it when the job only reports an ID.
func (s *Store) SetPendingTitle(workID string, title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.titles[workID] = pendingTitle{title: title, setAt: s.now()}
}

// PendingTitle returns the remembered title, dropping entries older than the
// title TTL.
func (s *Store) PendingTitle(workID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.titles[workID]
	if !ok {
		return "", false
	}
	if s.now().Sub(entry.setAt) > s.titleTTL {
		delete(s.titles, workID)
		return "", false
	}
	return entry.title, true
}
