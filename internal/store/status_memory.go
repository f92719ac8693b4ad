package store

import (
	"context"
	"maps"
	"sync"
	"time"
)

type memEntry struct {
	st      Status
	expires time.Time
}

// MemoryStatus is the single-process StatusStore used when no Redis URL is
// configured.
type MemoryStatus struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	jobs    map[string]memEntry
	digests map[string]string
}

func NewMemoryStatus(ttl time.Duration) *MemoryStatus {
	return &MemoryStatus{
		ttl:     ttl,
		now:     time.Now,
		jobs:    map[string]memEntry{},
		digests: map[string]string{},
	}
}

func (m *MemoryStatus) Set(_ context.Context, jobID string, st Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	// Callers keep mutating their copy of Metadata.
	st.Metadata = maps.Clone(st.Metadata)
	e := memEntry{st: st}
	if m.ttl > 0 {
		e.expires = m.now().Add(m.ttl)
	}
	m.jobs[jobID] = e
	return nil
}

func (m *MemoryStatus) Get(_ context.Context, jobID string) (Status, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.jobs[jobID]
	if !ok || m.expired(e) {
		return Status{}, false, nil
	}
	st := e.st
	st.Metadata = maps.Clone(st.Metadata)
	return st, true, nil
}

func (m *MemoryStatus) SetDigestJob(_ context.Context, digest, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.digests[digest] = jobID
	return nil
}

// GetJobByDigest forgets digests whose job has expired.
func (m *MemoryStatus) GetJobByDigest(_ context.Context, digest string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	jobID, ok := m.digests[digest]
	if !ok {
		return "", ErrNotFound
	}
	if e, ok := m.jobs[jobID]; !ok || m.expired(e) {
		delete(m.digests, digest)
		return "", ErrNotFound
	}
	return jobID, nil
}

// Sweep drops expired jobs and returns their last status so callers can
// remove files the jobs left behind.
func (m *MemoryStatus) Sweep() map[string]Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]Status{}
	for id, e := range m.jobs {
		if m.expired(e) {
			out[id] = e.st
			delete(m.jobs, id)
		}
	}
	for d, id := range m.digests {
		if _, ok := m.jobs[id]; !ok {
			delete(m.digests, d)
		}
	}
	return out
}

func (m *MemoryStatus) Close() error { return nil }

func (m *MemoryStatus) expired(e memEntry) bool {
	return !e.expires.IsZero() && m.now().After(e.expires)
}
