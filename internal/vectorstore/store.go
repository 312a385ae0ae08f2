package vectorstore

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/nickbooth1/airport-capacity-planner/internal/embedding"
	"github.com/nickbooth1/airport-capacity-planner/internal/memory"
)

// Metric selects the similarity measure for a search.
type Metric string

const (
	MetricCosine    Metric = "cosine"
	MetricEuclidean Metric = "euclidean"
)

// SearchOptions narrow and shape a similarity search.
type SearchOptions struct {
	TopK          int
	Threshold     float64
	Metric        Metric
	Categories    []memory.Category
	MinImportance int
	MaxAge        time.Duration
	Roles         []memory.Role
	// CandidateLimit caps how many records are fetched for scoring.
	CandidateLimit int
}

func (o SearchOptions) withDefaults() SearchOptions {
	if o.TopK <= 0 {
		o.TopK = 5
	}
	if o.Metric == "" {
		o.Metric = MetricCosine
	}
	if o.CandidateLimit <= 0 {
		o.CandidateLimit = 200
	}
	return o
}

// ScoredMemory is a memory item with its search-time similarity.
type ScoredMemory struct {
	memory.Item
	Similarity float64 `json:"similarity"`
}

// SearchResult bundles the two corpora searched concurrently.
type SearchResult struct {
	Memories []ScoredMemory   `json:"memories"`
	Messages []memory.Message `json:"messages"`
}

// Stats are cumulative counters for observability and tests.
type Stats struct {
	CacheHits         int64         `json:"cache_hits"`
	CacheMisses       int64         `json:"cache_misses"`
	APICalls          int64         `json:"api_calls"`
	VectorsGenerated  int64         `json:"vectors_generated"`
	SearchesPerformed int64         `json:"searches_performed"`
	Errors            int64         `json:"errors"`
	AvgLatency        time.Duration `json:"avg_latency"`
}

// Store embeds text through a caching layer and ranks the memory and message
// corpora by similarity. Provider failures degrade to deterministic fallback
// vectors so higher layers never fail open.
type Store struct {
	provider embedding.Provider
	records  memory.Store
	cache    *embedCache
	maxChars int

	mu           sync.Mutex
	stats        Stats
	totalLatency time.Duration
}

type Config struct {
	CacheTTL  time.Duration
	CacheSize int
	MaxChars  int
}

func New(provider embedding.Provider, records memory.Store, cfg Config) *Store {
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = 8000
	}
	return &Store{
		provider: provider,
		records:  records,
		cache:    newEmbedCache(cfg.CacheTTL, cfg.CacheSize),
		maxChars: cfg.MaxChars,
	}
}

// Embed returns the vector for text, serving from cache within the TTL.
func (s *Store) Embed(ctx context.Context, text string) ([]float64, error) {
	vecs := s.EmbedBatch(ctx, []string{text})
	return vecs[0], nil
}

// EmbedBatch embeds texts, consulting the cache per entry and batching the
// misses into a single provider call. It never returns an error: on provider
// exhaustion each missing vector is the deterministic fallback for its input.
func (s *Store) EmbedBatch(ctx context.Context, texts []string) [][]float64 {
	out := make([][]float64, len(texts))
	var missing []string
	var missingIdx []int

	for i, text := range texts {
		key := embedding.Sanitize(text, s.maxChars)
		if vec, ok := s.cache.get(key); ok {
			s.bump(func(st *Stats) { st.CacheHits++ })
			out[i] = vec
			continue
		}
		s.bump(func(st *Stats) { st.CacheMisses++ })
		missing = append(missing, key)
		missingIdx = append(missingIdx, i)
	}

	if len(missing) == 0 {
		return out
	}

	start := time.Now()
	vecs, err := s.provider.EmbedBatch(ctx, missing)
	s.observeLatency(time.Since(start))
	s.bump(func(st *Stats) { st.APICalls++ })

	if err != nil || len(vecs) != len(missing) {
		s.bump(func(st *Stats) { st.Errors++ })
		if err != nil {
			log.Printf("embedding provider degraded to fallback vectors: %v", err)
		}
		for j, key := range missing {
			out[missingIdx[j]] = embedding.FallbackVector(key, s.provider.Dimensions())
		}
		return out
	}

	for j, key := range missing {
		s.cache.put(key, vecs[j])
		s.bump(func(st *Stats) { st.VectorsGenerated++ })
		out[missingIdx[j]] = vecs[j]
	}
	return out
}

// FindSimilarMemories ranks the user's long-term memories against the query.
// Retrieved memories get their access count bumped in the background.
func (s *Store) FindSimilarMemories(ctx context.Context, userID, query string, opts SearchOptions) ([]ScoredMemory, error) {
	opts = opts.withDefaults()
	s.bump(func(st *Stats) { st.SearchesPerformed++ })

	candidates, err := s.records.QueryMemories(ctx, userID, memory.ItemFilters{
		Categories:    opts.Categories,
		MinImportance: opts.MinImportance,
		MaxAge:        opts.MaxAge,
		Limit:         opts.CandidateLimit,
	})
	if err != nil {
		s.bump(func(st *Stats) { st.Errors++ })
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	// Stored vectors are authoritative; only items without one go to the
	// embedding path.
	texts := []string{query}
	missing := make([]int, 0, len(candidates))
	for i, c := range candidates {
		if len(c.Embedding) == 0 {
			texts = append(texts, c.Content)
			missing = append(missing, i)
		}
	}
	vecs := s.EmbedBatch(ctx, texts)
	queryVec := vecs[0]

	itemVecs := make([][]float64, len(candidates))
	computed := make(map[string][]float64, len(missing))
	for i, c := range candidates {
		itemVecs[i] = c.Embedding
	}
	for j, idx := range missing {
		itemVecs[idx] = vecs[j+1]
		computed[candidates[idx].ID] = vecs[j+1]
	}

	scored := make([]ScoredMemory, 0, len(candidates))
	for i, c := range candidates {
		sim := s.score(queryVec, itemVecs[i], opts.Metric)
		if sim < opts.Threshold {
			continue
		}
		scored = append(scored, ScoredMemory{Item: c, Similarity: sim})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Similarity > scored[j].Similarity })
	if len(scored) > opts.TopK {
		scored = scored[:opts.TopK]
	}

	// Best effort: never delay the response on bookkeeping.
	ids := make([]string, len(scored))
	for i, m := range scored {
		ids[i] = m.ID
	}
	go s.bumpAccess(ids)
	if len(computed) > 0 {
		go s.persistEmbeddings(computed)
	}

	return scored, nil
}

// persistEmbeddings writes freshly computed vectors back to the record store
// so they survive a restart. Failures are logged and ignored.
func (s *Store) persistEmbeddings(computed map[string][]float64) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for id, vec := range computed {
		if err := s.records.UpdateMemoryEmbedding(ctx, id, vec); err != nil {
			log.Printf("embedding persist failed for %s: %v", id, err)
		}
	}
}

// FindRelevantMessages ranks a conversation's messages against the query.
func (s *Store) FindRelevantMessages(ctx context.Context, contextID, query string, opts SearchOptions) ([]memory.Message, error) {
	opts = opts.withDefaults()
	s.bump(func(st *Stats) { st.SearchesPerformed++ })

	candidates, err := s.records.RecentMessages(ctx, contextID, opts.CandidateLimit)
	if err != nil {
		s.bump(func(st *Stats) { st.Errors++ })
		return nil, err
	}
	if len(opts.Roles) > 0 {
		filtered := candidates[:0]
		for _, m := range candidates {
			for _, role := range opts.Roles {
				if m.Role == role {
					filtered = append(filtered, m)
					break
				}
			}
		}
		candidates = filtered
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	texts := make([]string, 0, len(candidates)+1)
	texts = append(texts, query)
	for _, m := range candidates {
		texts = append(texts, m.Content)
	}
	vecs := s.EmbedBatch(ctx, texts)
	queryVec := vecs[0]

	scored := make([]memory.Message, 0, len(candidates))
	for i, m := range candidates {
		sim := s.score(queryVec, vecs[i+1], opts.Metric)
		if sim < opts.Threshold {
			continue
		}
		m.Similarity = sim
		scored = append(scored, m)
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Similarity > scored[j].Similarity })
	if len(scored) > opts.TopK {
		scored = scored[:opts.TopK]
	}
	return scored, nil
}

// SearchRelevantInformation runs both corpus searches concurrently. A failure
// in one search does not discard the other's results.
func (s *Store) SearchRelevantInformation(ctx context.Context, userID, contextID, query string, opts SearchOptions) (SearchResult, error) {
	var (
		wg       sync.WaitGroup
		result   SearchResult
		memErr   error
		msgErr   error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		result.Memories, memErr = s.FindSimilarMemories(ctx, userID, query, opts)
	}()
	go func() {
		defer wg.Done()
		if contextID == "" {
			return
		}
		result.Messages, msgErr = s.FindRelevantMessages(ctx, contextID, query, opts)
	}()
	wg.Wait()

	if memErr != nil && msgErr != nil {
		return result, memErr
	}
	if memErr != nil {
		log.Printf("memory search failed, returning messages only: %v", memErr)
	}
	if msgErr != nil {
		log.Printf("message search failed, returning memories only: %v", msgErr)
	}
	return result, nil
}

// Stats returns a snapshot of the cumulative counters.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *Store) score(query, candidate []float64, metric Metric) float64 {
	if metric == MetricEuclidean {
		return euclideanSimilarity(Euclidean(query, candidate))
	}
	return Cosine(query, candidate)
}

func (s *Store) bumpAccess(ids []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, id := range ids {
		if err := s.records.UpdateMemoryAccess(ctx, id, 1); err != nil {
			log.Printf("memory access bump failed for %s: %v", id, err)
		}
	}
}

func (s *Store) bump(fn func(*Stats)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.stats)
}

func (s *Store) observeLatency(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalLatency += d
	if s.stats.APICalls+1 > 0 {
		s.stats.AvgLatency = s.totalLatency / time.Duration(s.stats.APICalls+1)
	}
}
