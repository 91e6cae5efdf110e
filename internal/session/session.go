// Package session keeps per-chat conversation state for the bot handlers.
package session

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	DefaultCacheSize       = 1000
	DefaultTTL             = 24 * time.Hour
	DefaultCleanupInterval = 5 * time.Minute
)

type State string

const (
	StateIdle                 State = ""
	StateAwaitingName         State = "awaiting_name"
	StateAwaitingRename       State = "awaiting_rename"
	StateCapturingNew         State = "capturing_new"
	StateCapturingDescription State = "capturing_description"
)

// Capturing reports whether messages in this state are description parts.
func (s State) Capturing() bool {
	return s == StateCapturingNew || s == StateCapturingDescription
}

// Data is what a flow remembers between updates.
type Data struct {
	// CategoryID is the category being edited, or the parent when adding.
	CategoryID string
	// Name of a category that is still being added.
	Name string
	// Pages maps a category id to the keyboard page last shown for it.
	Pages map[string]int
	// LastMessageID is the bot message holding the current keyboard.
	LastMessageID int
}

// PageOf returns the remembered keyboard page of id, 1 if none.
func (d Data) PageOf(id string) int {
	if page, ok := d.Pages[id]; ok && page > 0 {
		return page
	}
	return 1
}

// SetPage remembers page for id. The map is copied so values read earlier
// keep their view.
func (d *Data) SetPage(id string, page int) {
	pages := make(map[string]int, len(d.Pages)+1)
	for k, v := range d.Pages {
		pages[k] = v
	}
	pages[id] = page
	d.Pages = pages
}

type Store struct {
	mu sync.RWMutex

	states *lru.Cache[int64, State]
	data   *lru.Cache[int64, Data]

	// Entries untouched for longer than ttl read as absent.
	touched map[int64]time.Time
	ttl     time.Duration

	stop chan struct{}
	once sync.Once
}

func New(ttl time.Duration) (*Store, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	states, err := lru.New[int64, State](DefaultCacheSize)
	if err != nil {
		return nil, err
	}
	data, err := lru.New[int64, Data](DefaultCacheSize)
	if err != nil {
		return nil, err
	}

	s := &Store{
		states:  states,
		data:    data,
		touched: make(map[int64]time.Time),
		ttl:     ttl,
		stop:    make(chan struct{}),
	}

	go s.startCleanupRoutine(DefaultCleanupInterval)

	return s, nil
}

func (s *Store) startCleanupRoutine(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.CleanupExpired()
		case <-s.stop:
			return
		}
	}
}

func (s *Store) Close() {
	s.once.Do(func() { close(s.stop) })
}

// CleanupExpired forgets every chat idle for longer than the TTL.
func (s *Store) CleanupExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	removed := 0
	for chatID, at := range s.touched {
		if now.Sub(at) > s.ttl {
			s.forget(chatID)
			removed++
		}
	}
	return removed
}

func (s *Store) forget(chatID int64) {
	delete(s.touched, chatID)
	s.states.Remove(chatID)
	s.data.Remove(chatID)
}

func (s *Store) expired(chatID int64) bool {
	at, ok := s.touched[chatID]
	return !ok || time.Since(at) > s.ttl
}

func (s *Store) State(chatID int64) (State, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.expired(chatID) {
		return StateIdle, false
	}
	return s.states.Get(chatID)
}

func (s *Store) SetState(chatID int64, state State) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.states.Add(chatID, state)
	s.touched[chatID] = time.Now()
}

func (s *Store) Data(chatID int64) (Data, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.expired(chatID) {
		return Data{}, false
	}
	return s.data.Get(chatID)
}

func (s *Store) SetData(chatID int64, data Data) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data.Add(chatID, data)
	s.touched[chatID] = time.Now()
}

// Update applies fn to the chat's data, starting from the zero value.
func (s *Store) Update(chatID int64, fn func(*Data)) Data {
	s.mu.Lock()
	defer s.mu.Unlock()

	var data Data
	if !s.expired(chatID) {
		data, _ = s.data.Get(chatID)
	}
	fn(&data)
	s.data.Add(chatID, data)
	s.touched[chatID] = time.Now()
	return data
}

// EndFlow returns the chat to idle, keeping its navigation memory.
func (s *Store) EndFlow(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.states.Remove(chatID)
	if data, ok := s.data.Get(chatID); ok {
		data.CategoryID = ""
		data.Name = ""
		s.data.Add(chatID, data)
	}
}

// Reset forgets everything about the chat.
func (s *Store) Reset(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.forget(chatID)
}

// Stats reports cache sizes for monitoring.
func (s *Store) Stats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return map[string]interface{}{
		"states_size":    s.states.Len(),
		"data_size":      s.data.Len(),
		"active_chats":   len(s.touched),
		"cache_capacity": DefaultCacheSize,
	}
}
