package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Store is a byte-level TTL store. Get reports ok=false for missing or expired keys.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Envelope is the serialized form of a cached payload.
type Envelope struct {
	FetchedAtEpochMs int64              `msgpack:"fetched_at"`
	Payload          msgpack.RawMessage `msgpack:"payload"`
}

// Encode packs payload and its fetch time into an Envelope.
func Encode(payload interface{}, fetchedAt time.Time) ([]byte, error) {
	raw, err := msgpack.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload: %w", err)
	}
	data, err := msgpack.Marshal(&Envelope{
		FetchedAtEpochMs: fetchedAt.UnixMilli(),
		Payload:          raw,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode envelope: %w", err)
	}
	return data, nil
}

// Decode unpacks an Envelope into dest and returns the original fetch time.
func Decode(data []byte, dest interface{}) (time.Time, error) {
	var env Envelope
	if err := msgpack.Unmarshal(data, &env); err != nil {
		return time.Time{}, fmt.Errorf("failed to decode envelope: %w", err)
	}
	if err := msgpack.Unmarshal(env.Payload, dest); err != nil {
		return time.Time{}, fmt.Errorf("failed to decode payload: %w", err)
	}
	return time.UnixMilli(env.FetchedAtEpochMs), nil
}

// MemoryStore adapts Memory to the Store interface.
type MemoryStore struct {
	mem *Memory[[]byte]
}

// NewMemoryStore creates an in-process Store. A nil clock uses time.Now.
func NewMemoryStore(clock Clock) *MemoryStore {
	return &MemoryStore{mem: NewMemory[[]byte](clock)}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := s.mem.Get(key)
	return v, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mem.Set(key, value, ttl)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mem.Delete(key)
	return nil
}

// Purge removes expired entries.
func (s *MemoryStore) Purge() int {
	return s.mem.Purge()
}

// Len returns the number of stored entries.
func (s *MemoryStore) Len() int {
	return s.mem.Len()
}
