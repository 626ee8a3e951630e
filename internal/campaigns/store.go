package campaigns

import (
	"sync"
	"time"

	"github.com/samvad-hq/campaign-desk/internal/domain"
)

// State is what a UI renders: the current campaign page plus request flags.
type State struct {
	Campaigns []domain.Campaign
	Total     *int64
	Skipped   *int64
	NextLink  string
	Loading   bool
	Saving    bool
	Error     string
	ClockSkew time.Duration
}

func (s State) clone() State {
	if s.Campaigns != nil {
		s.Campaigns = append([]domain.Campaign(nil), s.Campaigns...)
	}
	return s
}

// Find returns the campaign with id from the current page.
func (s State) Find(id string) (domain.Campaign, bool) {
	for _, c := range s.Campaigns {
		if c.ID == id {
			return c, true
		}
	}
	return domain.Campaign{}, false
}

func (s *State) upsert(c domain.Campaign) {
	if c.ID == "" {
		return
	}
	for i := range s.Campaigns {
		if s.Campaigns[i].ID == c.ID {
			s.Campaigns[i] = c
			return
		}
	}
	s.Campaigns = append(s.Campaigns, c)
}

func (s *State) remove(id string) bool {
	for i := range s.Campaigns {
		if s.Campaigns[i].ID == id {
			s.Campaigns = append(s.Campaigns[:i], s.Campaigns[i+1:]...)
			return true
		}
	}
	return false
}

// Store holds State and pushes a snapshot to subscribers on every change. The
// zero value is ready to use.
type Store struct {
	mu     sync.Mutex
	state  State
	nextID int
	subs   map[int]chan State
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{subs: make(map[int]chan State)}
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Subscribe registers a listener. A slow listener only ever sees the latest
// snapshot; older queued ones are dropped. The returned func unsubscribes and
// closes the channel.
func (s *Store) Subscribe(buf int) (<-chan State, func()) {
	if buf < 1 {
		buf = 1
	}
	ch := make(chan State, buf)

	s.mu.Lock()
	if s.subs == nil {
		s.subs = make(map[int]chan State)
	}
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
			close(ch)
		})
	}
}

// update applies fn to the state under the lock and notifies subscribers.
func (s *Store) update(fn func(*State)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fn(&s.state)
	for _, ch := range s.subs {
		snap := s.state.clone()
		select {
		case ch <- snap:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}
