package server

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/thesyncim/rtcguard/pkg/guard"
)

// Transport names how an offer reached the server.
const (
	TransportHTTP      = "http"
	TransportWebSocket = "websocket"
)

// Record is the audit of one browser session.
type Record struct {
	ID        string            `json:"id"`
	Transport string            `json:"transport"`
	Remote    string            `json:"remote"`
	Created   time.Time         `json:"created"`
	Offer     *guard.Report     `json:"offer"`
	Trickled  []guard.Candidate `json:"trickled,omitempty"`
	Leaking   bool              `json:"leaking"`
}

func (r *Record) refresh() {
	r.Leaking = r.Offer != nil && r.Offer.Leaking()
	for _, c := range r.Trickled {
		if c.Leaky() {
			r.Leaking = true
		}
	}
}

// Store keeps audit records in memory for the life of the process.
type Store struct {
	mu      sync.Mutex
	records map[string]*Record
	order   []string
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{records: make(map[string]*Record)}
}

// Add records the audit of a new session under a fresh ID.
func (s *Store) Add(transport, remote string, offer *guard.Report) Record {
	rec := &Record{
		ID:        uuid.NewString(),
		Transport: transport,
		Remote:    remote,
		Created:   time.Now().UTC(),
		Offer:     offer,
	}
	rec.refresh()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.ID] = rec
	s.order = append(s.order, rec.ID)
	return rec.clone()
}

// AddTrickled appends a trickled candidate to record id.
func (s *Store) AddTrickled(id string, c guard.Candidate) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return false
	}
	rec.Trickled = append(rec.Trickled, c)
	rec.refresh()
	return true
}

// Get returns a copy of record id.
func (s *Store) Get(id string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return Record{}, false
	}
	return rec.clone(), true
}

// List returns copies of all records, oldest first.
func (s *Store) List() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.records[id].clone())
	}
	return out
}

// clone copies the mutable slice. Offer is never modified after Add.
func (r *Record) clone() Record {
	c := *r
	c.Trickled = append([]guard.Candidate(nil), r.Trickled...)
	return c
}
