package credential

import (
	"context"
	"sync"
)

// MemoryStore is a mutex-guarded in-process Store. Data is lost on restart.
type MemoryStore struct {
	mu   sync.RWMutex
	recs map[string]Record
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{recs: make(map[string]Record)}
}

func (s *MemoryStore) Put(ctx context.Context, in PutInput) (Record, error) {
	const op = "credential.Put"

	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	in, err := checkPut(op, in)
	if err != nil {
		return Record{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.recs[in.Subject]
	if !ok {
		id, err := NewULID(in.Now)
		if err != nil {
			return Record{}, err
		}
		rec = Record{ID: id, Subject: in.Subject, CreatedAt: in.Now}
	}
	rec.Hash = in.Hash
	rec.Algorithm = in.Algorithm
	rec.UpdatedAt = in.Now
	s.recs[in.Subject] = rec

	return rec, nil
}

func (s *MemoryStore) Get(ctx context.Context, subject string) (Record, error) {
	const op = "credential.Get"

	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	subject, err := checkSubject(op, subject)
	if err != nil {
		return Record{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.recs[subject]
	if !ok {
		return Record{}, NotFoundError{Op: op, Subject: subject}
	}
	return rec, nil
}

func (s *MemoryStore) Delete(ctx context.Context, subject string) error {
	const op = "credential.Delete"

	if err := ctx.Err(); err != nil {
		return err
	}
	subject, err := checkSubject(op, subject)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.recs[subject]; !ok {
		return NotFoundError{Op: op, Subject: subject}
	}
	delete(s.recs, subject)
	return nil
}

// Len returns the number of stored records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.recs)
}
