package memory

import (
	"errors"
	"sort"
	"sync"

	"github.com/RoaringBitmap/roaring"

	"ipcmatch/internal/domain"
)

var (
	ErrInvalidDimension = errors.New("memory: invalid dimension")
	ErrOutOfRange       = errors.New("memory: term index out of range")
)

// Storage is an in-memory sparse vector store. Each vocabulary term keeps a
// bitmap of the documents that contain it, so a search only scores documents
// sharing at least one term with the query.
type Storage struct {
	mu        sync.RWMutex
	dimension int
	vectors   []domain.SparseVector
	postings  map[int]*roaring.Bitmap
}

func NewStorage() *Storage { return &Storage{postings: make(map[int]*roaring.Bitmap)} }

func (s *Storage) Init(dimension int) error {
	if dimension <= 0 {
		return ErrInvalidDimension
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dimension = dimension
	s.vectors = nil
	s.postings = make(map[int]*roaring.Bitmap)
	return nil
}

// Upsert appends vectors; a vector's document index is its position in
// insertion order.
func (s *Storage) Upsert(vectors []domain.SparseVector) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range vectors {
		for idx := range v {
			if idx < 0 || idx >= s.dimension {
				return ErrOutOfRange
			}
		}
	}
	for _, v := range vectors {
		doc := uint32(len(s.vectors))
		s.vectors = append(s.vectors, v)
		for idx, w := range v {
			if w == 0 {
				continue
			}
			b, ok := s.postings[idx]
			if !ok {
				b = roaring.New()
				s.postings[idx] = b
			}
			b.Add(doc)
		}
	}
	return nil
}

// Search returns at most topK documents whose cosine similarity with vector
// is strictly above threshold, best first. Equal scores keep document order.
// Stored and query vectors are assumed L2-normalised.
func (s *Storage) Search(vector domain.SparseVector, topK int, threshold float64) ([]domain.SearchHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if topK <= 0 {
		topK = 10
	}
	terms := vector.Indices()
	lists := make([]*roaring.Bitmap, 0, len(terms))
	for _, t := range terms {
		if b, ok := s.postings[t]; ok {
			lists = append(lists, b)
		}
	}
	if len(lists) == 0 {
		return nil, nil
	}
	candidates := roaring.FastOr(lists...)

	hits := make([]domain.SearchHit, 0, candidates.GetCardinality())
	it := candidates.Iterator()
	for it.HasNext() {
		doc := int(it.Next())
		hits = append(hits, domain.SearchHit{Index: doc, Score: dot(vector, terms, s.vectors[doc])})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if topK > len(hits) {
		topK = len(hits)
	}
	out := hits[:0]
	for _, h := range hits[:topK] {
		if h.Score > threshold {
			out = append(out, h)
		}
	}
	return out, nil
}

// Len returns the number of stored documents.
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vectors)
}

// dot walks the query terms in ascending order so the sum is reproducible.
func dot(q domain.SparseVector, terms []int, doc domain.SparseVector) float64 {
	sum := 0.0
	for _, t := range terms {
		if w, ok := doc[t]; ok {
			sum += q[t] * w
		}
	}
	return sum
}
