// Package examples keeps accumulated transformation exemplars together with
// their embeddings and answers nearest-neighbour queries over them.
package examples

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"golang.org/x/text/unicode/norm"

	"github.com/valpere/restyle/internal"
	"github.com/valpere/restyle/internal/embedding"
)

// DefaultK is the number of neighbours returned when k is not positive.
const DefaultK = 3

// ErrEmbeddingUnavailable is returned when the embedding provider fails.
var ErrEmbeddingUnavailable = errors.New("embedding unavailable")

// entry pairs an example with the vector computed from its original text.
type entry struct {
	example internal.TransformationExample
	vector  []float32
}

// Store is safe for concurrent use. Readers observe either the state before
// or after an Add, never an example without its vector.
type Store struct {
	provider embedding.Provider

	mu      sync.RWMutex
	entries []entry

	// saveMu serialises snapshot+write so a newer snapshot is never
	// overwritten by an older one.
	saveMu sync.Mutex
}

func New(provider embedding.Provider) *Store {
	return &Store{provider: provider}
}

// Add embeds example.Original and appends the pair. On provider failure the
// store is left unchanged.
func (s *Store) Add(ctx context.Context, example internal.TransformationExample) error {
	vec, err := s.embed(ctx, example.Original)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.entries = append(s.entries, entry{example: example, vector: vec})
	s.mu.Unlock()
	return nil
}

// FindSimilar returns up to k examples ranked by descending cosine similarity
// between query and each example's original text. Equal scores rank the more
// recently added example first. Examples whose vector cannot be compared with
// the query (zero norm, other dimension) rank after all others. An empty store returns no results without
// calling the provider.
func (s *Store) FindSimilar(ctx context.Context, query string, k int) ([]internal.TransformationExample, error) {
	if k <= 0 {
		k = DefaultK
	}
	if s.Len() == 0 {
		return nil, nil
	}

	qvec, err := s.embed(ctx, query)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	type scored struct {
		idx   int
		score float64
		ok    bool
	}
	ranked := make([]scored, 0, len(s.entries))
	for i := len(s.entries) - 1; i >= 0; i-- {
		score, ok := cosine(qvec, s.entries[i].vector)
		ranked = append(ranked, scored{idx: i, score: score, ok: ok})
	}
	// Unscorable vectors go last. Newest-first input plus a stable sort
	// yields the reverse-chronological tie-break.
	slices.SortStableFunc(ranked, func(a, b scored) int {
		if a.ok != b.ok {
			if a.ok {
				return -1
			}
			return 1
		}
		return cmp.Compare(b.score, a.score)
	})

	if k > len(ranked) {
		k = len(ranked)
	}
	results := make([]internal.TransformationExample, 0, k)
	for _, r := range ranked[:k] {
		results = append(results, s.entries[r.idx].example)
	}
	return results, nil
}

// Len returns the number of stored examples.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Examples returns a copy of the stored examples in insertion order.
func (s *Store) Examples() []internal.TransformationExample {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]internal.TransformationExample, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.example
	}
	return out
}

// Reset drops every stored example.
func (s *Store) Reset() {
	s.mu.Lock()
	s.entries = nil
	s.mu.Unlock()
}

func (s *Store) embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := s.provider.Embed(ctx, normalizeText(text))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingUnavailable, err)
	}
	return vec, nil
}

// normalizeText trims whitespace and applies Unicode NFC normalization so
// equivalent texts embed identically.
func normalizeText(text string) string {
	return norm.NFC.String(strings.TrimSpace(text))
}
