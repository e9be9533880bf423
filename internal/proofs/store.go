package proofs

import (
	"hash/fnv"
	"log/slog"
	"sync"
	"time"
)

const shardCount = 16

// Store is a concurrency-safe map of pending proofs keyed by sender. The
// per-key shard lock serializes SubmitProof, TryCorrelate, and sweep
// eviction, so an entry is removed exactly once: either by correlation or by
// the TTL sweep, never both.
type Store struct {
	shards [shardCount]*shard
	ttl    time.Duration
	logger *slog.Logger
}

type shard struct {
	mu      sync.Mutex
	entries map[string]PendingProof
}

// NewStore creates a Store whose entries expire after ttl.
func NewStore(log *slog.Logger, ttl time.Duration) *Store {
	if log == nil {
		log = slog.Default()
	}
	s := &Store{
		ttl:    ttl,
		logger: log.With(slog.String("service", "proof_store")),
	}
	for i := range s.shards {
		s.shards[i] = &shard{entries: make(map[string]PendingProof)}
	}
	return s
}

func (s *Store) shardFor(sender string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(sender))
	return s.shards[h.Sum32()%shardCount]
}

// SubmitProof records a pending proof for the sender, unconditionally
// overwriting any existing entry (last write wins) and resetting its age.
func (s *Store) SubmitProof(proof PendingProof) {
	sh := s.shardFor(proof.Sender)
	sh.mu.Lock()
	_, replaced := sh.entries[proof.Sender]
	sh.entries[proof.Sender] = proof
	sh.mu.Unlock()

	s.logger.Info("proof pending",
		slog.String("sender", proof.Sender),
		slog.Bool("replaced", replaced),
	)
}

// TryCorrelate atomically removes and returns the pending proof for the
// sender. The second return is false when no entry exists; callers treat
// that as "not a correlation flow" and fall back to a plain order lookup.
func (s *Store) TryCorrelate(sender, orderNumber string) (CorrelationRecord, bool) {
	sh := s.shardFor(sender)
	sh.mu.Lock()
	proof, ok := sh.entries[sender]
	if ok {
		delete(sh.entries, sender)
	}
	sh.mu.Unlock()

	if !ok {
		return CorrelationRecord{}, false
	}
	return CorrelationRecord{
		Proof:       proof,
		OrderNumber: orderNumber,
		MatchedAt:   time.Now().UTC(),
	}, true
}

// Sweep evicts entries older than the TTL and returns how many were removed.
// It snapshots keys per shard, then re-checks the age under the same shard
// lock used by SubmitProof and TryCorrelate, so it never evicts an entry
// that a concurrent correlation just matched or a resubmission just renewed.
func (s *Store) Sweep(now time.Time) int {
	evicted := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		keys := make([]string, 0, len(sh.entries))
		for key := range sh.entries {
			keys = append(keys, key)
		}
		sh.mu.Unlock()

		for _, key := range keys {
			sh.mu.Lock()
			proof, ok := sh.entries[key]
			if ok && now.Sub(proof.ReceivedAt) > s.ttl {
				delete(sh.entries, key)
				evicted++
				s.logger.Info("pending proof expired",
					slog.String("sender", key),
					slog.Time("received_at", proof.ReceivedAt),
				)
			}
			sh.mu.Unlock()
		}
	}
	return evicted
}

// Len returns the number of pending proofs across all shards.
func (s *Store) Len() int {
	total := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		total += len(sh.entries)
		sh.mu.Unlock()
	}
	return total
}
