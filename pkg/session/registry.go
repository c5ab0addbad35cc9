package session

import (
	"sync"

	"github.com/backkem/hdcp/pkg/crypto"
	"github.com/backkem/hdcp/pkg/protocol"
)

// DefaultMaxActive is the default Registry capacity.
const DefaultMaxActive = 8

// StreamCounters are the per-stream counters an active session encrypts with.
type StreamCounters struct {
	InputCtr  uint64
	StreamCtr uint32
}

// Record is the encryption-relevant subset of an active session.
type Record struct {
	SessionID   ID
	Ks          [protocol.KsSize]byte
	Riv         [protocol.RivSize]byte
	StreamCount uint8
	Streams     [protocol.MaxStreams]StreamCounters
}

// NewRecord copies the encryption state out of a session.
func NewRecord(s *Session) Record {
	r := Record{
		SessionID:   s.ID,
		Ks:          s.Ks,
		Riv:         s.Riv,
		StreamCount: s.StreamCount,
	}
	for i := range r.Streams {
		r.Streams[i] = StreamCounters{InputCtr: s.Streams[i].InputCtr, StreamCtr: s.Streams[i].StreamCtr}
	}
	return r
}

// Mirror copies the record's counters back into a session.
func (r *Record) Mirror(s *Session) {
	for i := range r.Streams {
		s.Streams[i].InputCtr = r.Streams[i].InputCtr
		s.Streams[i].StreamCtr = r.Streams[i].StreamCtr
	}
}

// Registry is the fixed-capacity table of active sessions. At most one
// record exists per session id.
type Registry struct {
	records []Record
	used    []bool
	count   int

	mu sync.RWMutex
}

// NewRegistry creates a registry (0 uses DefaultMaxActive).
func NewRegistry(capacity int) *Registry {
	if capacity <= 0 {
		capacity = DefaultMaxActive
	}
	return &Registry{
		records: make([]Record, capacity),
		used:    make([]bool, capacity),
	}
}

func (r *Registry) find(id ID) int {
	for i := range r.records {
		if r.used[i] && r.records[i].SessionID == id {
			return i
		}
	}
	return -1
}

// Add inserts a record.
// Returns ErrDuplicateSession if the session already has one and
// ErrRegistryFull if no record is free.
func (r *Registry) Add(rec Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.find(rec.SessionID) >= 0 {
		return ErrDuplicateSession
	}
	for i := range r.used {
		if !r.used[i] {
			r.records[i] = rec
			r.used[i] = true
			r.count++
			return nil
		}
	}
	return ErrRegistryFull
}

// Lookup returns a copy of the session's record.
func (r *Registry) Lookup(id ID) (Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i := r.find(id); i >= 0 {
		return r.records[i], true
	}
	return Record{}, false
}

// Update replaces the record of rec.SessionID.
func (r *Registry) Update(rec Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.find(rec.SessionID)
	if i < 0 {
		return ErrSessionNotFound
	}
	r.records[i] = rec
	return nil
}

// Remove deletes and returns the session's record. The slot is zeroized.
func (r *Registry) Remove(id ID) (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := r.find(id)
	if i < 0 {
		return Record{}, false
	}
	rec := r.records[i]
	crypto.Zeroize(r.records[i].Ks[:])
	r.records[i] = Record{}
	r.used[i] = false
	r.count--
	return rec, true
}

// Len returns the number of records.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.count
}

// Capacity returns the maximum number of records.
func (r *Registry) Capacity() int {
	return len(r.records)
}

// Free returns the number of unused records.
func (r *Registry) Free() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records) - r.count
}

// IDs returns the ids of all active sessions.
func (r *Registry) IDs() []ID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]ID, 0, r.count)
	for i, rec := range r.records {
		if r.used[i] {
			ids = append(ids, rec.SessionID)
		}
	}
	return ids
}

// Clear removes every record.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.records {
		crypto.Zeroize(r.records[i].Ks[:])
		r.records[i] = Record{}
		r.used[i] = false
	}
	r.count = 0
}
