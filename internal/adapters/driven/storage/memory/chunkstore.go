package memory

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/immutable"

	"github.com/custodia-labs/cliniq/internal/core/domain"
	"github.com/custodia-labs/cliniq/internal/core/ports/driven"
	"github.com/custodia-labs/cliniq/internal/logger"
)

// Ensure ChunkStore implements the interface.
var _ driven.ChunkStore = (*ChunkStore)(nil)

// dayLayout keys the calendar-day index. Days are UTC.
const dayLayout = "2006-01-02"

// Rough per-record overheads used by Statistics.
const (
	chunkOverheadBytes = 256
	indexEntryBytes    = 48
)

// ChunkStore is an in-memory, arena-and-index implementation of
// driven.ChunkStore.
//
// Writers serialize on mu, derive the next state from the current one and
// publish it atomically. Readers load the published state and never lock,
// so no reader observes a chunk in the arena but missing from an index.
// The arena and indexes are persistent structures: a write copies only the
// paths it touches and shares everything else with the previous state.
type ChunkStore struct {
	mu        sync.Mutex
	state     atomic.Pointer[chunkState]
	listeners []driven.RemovalListener
}

// postings is the set of arena indices filed under one index key.
type postings = immutable.SortedMap[int, struct{}]

// index maps a key (artifact, patient or day) to its postings.
type index = immutable.Map[string, *postings]

// chunkState is an immutable snapshot once published.
type chunkState struct {
	arena      *immutable.List[*domain.Chunk] // nil slots are tombstones
	tombstones int
	byID       *immutable.Map[string, int]
	byArtifact *index
	byPatient  *index
	byDay      *index
}

// NewChunkStore creates a new in-memory chunk store.
func NewChunkStore() *ChunkStore {
	s := &ChunkStore{}
	s.state.Store(newChunkState())
	return s
}

func newChunkState() *chunkState {
	return &chunkState{
		arena:      immutable.NewList[*domain.Chunk](),
		byID:       immutable.NewMap[string, int](nil),
		byArtifact: immutable.NewMap[string, *postings](nil),
		byPatient:  immutable.NewMap[string, *postings](nil),
		byDay:      immutable.NewMap[string, *postings](nil),
	}
}

// Subscribe registers a listener notified after chunks are removed.
func (s *ChunkStore) Subscribe(listener driven.RemovalListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, listener)
}

// Store validates and inserts chunks. Invalid chunks are reported and
// skipped; chunks whose ID is already present are skipped, not replaced.
func (s *ChunkStore) Store(_ context.Context, chunks []domain.Chunk) domain.StoreResult {
	start := time.Now()
	result := domain.StoreResult{Errors: []domain.StoreError{}}
	if len(chunks) == 0 {
		return result
	}

	s.mu.Lock()
	next := *s.state.Load()
	for i := range chunks {
		c := chunks[i]
		if err := validateChunk(i, &c); err != nil {
			result.Errors = append(result.Errors, domain.StoreError{
				ChunkID: c.ID,
				Index:   i,
				Message: err.Error(),
			})
			continue
		}
		if _, exists := next.byID.Get(c.ID); exists {
			result.SkippedCount++
			continue
		}
		next.insert(&c)
		result.StoredCount++
	}
	s.state.Store(&next)
	s.mu.Unlock()

	result.ProcessingTimeMS = time.Since(start).Milliseconds()
	logger.Debug("chunk store: stored=%d skipped=%d errors=%d in %dms",
		result.StoredCount, result.SkippedCount, len(result.Errors), result.ProcessingTimeMS)
	return result
}

// validateChunk checks the fields every stored chunk must carry.
func validateChunk(i int, c *domain.Chunk) error {
	invalid := func(field, reason string) error {
		return &domain.ChunkValidationError{ChunkID: c.ID, Index: i, Field: field, Reason: reason}
	}
	switch {
	case c.ID == "":
		return invalid("chunk_id", "required")
	case c.ArtifactID == "":
		return invalid("artifact_id", "required")
	case c.PatientID == "":
		return invalid("patient_id", "required")
	case c.OccurredAt.IsZero():
		return invalid("occurred_at", "required")
	case strings.TrimSpace(c.Text) == "":
		return invalid("chunk_text", "must not be empty")
	case c.Offsets.Start < 0 || c.Offsets.Len() != len(c.Text):
		return invalid("char_offsets", "span "+c.Offsets.String()+" does not match chunk_text length")
	}
	return nil
}

// Query returns chunks matching all non-zero filter fields, ordered by
// OccurredAt descending then ID, and paginated.
func (s *ChunkStore) Query(_ context.Context, filter domain.ChunkFilter) []domain.Chunk {
	st := s.state.Load()

	var matched []*domain.Chunk
	for _, idx := range st.candidates(filter) {
		c := st.arena.Get(idx)
		if matchesAttributes(c, filter) {
			matched = append(matched, c)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.OccurredAt.Equal(b.OccurredAt) {
			return a.OccurredAt.After(b.OccurredAt)
		}
		return a.ID < b.ID
	})

	matched = paginate(matched, filter.Offset, filter.Limit)
	out := make([]domain.Chunk, len(matched))
	for i, c := range matched {
		out[i] = *c
	}
	return out
}

// Retrieve returns the chunk with the given ID, or nil.
func (s *ChunkStore) Retrieve(_ context.Context, id string) *domain.Chunk {
	st := s.state.Load()
	idx, ok := st.byID.Get(id)
	if !ok {
		return nil
	}
	c := *st.arena.Get(idx)
	return &c
}

// GetByPatient returns all chunks of a patient.
func (s *ChunkStore) GetByPatient(ctx context.Context, patientID string) []domain.Chunk {
	if patientID == "" {
		return nil
	}
	return s.Query(ctx, domain.ChunkFilter{PatientID: patientID})
}

// GetByArtifact returns all chunks of an artifact.
func (s *ChunkStore) GetByArtifact(ctx context.Context, artifactID string) []domain.Chunk {
	if artifactID == "" {
		return nil
	}
	return s.Query(ctx, domain.ChunkFilter{ArtifactID: artifactID})
}

// Delete removes one chunk. It returns false for an unknown ID.
func (s *ChunkStore) Delete(_ context.Context, id string) bool {
	return s.removeWhere(func(st *chunkState) []int {
		if idx, ok := st.byID.Get(id); ok {
			return []int{idx}
		}
		return nil
	}) == 1
}

// DeleteByPatient removes all chunks of a patient.
func (s *ChunkStore) DeleteByPatient(_ context.Context, patientID string) int {
	return s.removeWhere(func(st *chunkState) []int {
		return lookup(st.byPatient, patientID)
	})
}

// DeleteByArtifact removes all chunks of an artifact.
func (s *ChunkStore) DeleteByArtifact(_ context.Context, artifactID string) int {
	return s.removeWhere(func(st *chunkState) []int {
		return lookup(st.byArtifact, artifactID)
	})
}

// GarbageCollect removes chunks that occurred strictly before olderThan.
func (s *ChunkStore) GarbageCollect(_ context.Context, olderThan time.Time) int {
	n := s.removeWhere(func(st *chunkState) []int {
		var idxs []int
		st.each(func(idx int, c *domain.Chunk) {
			if c.OccurredAt.Before(olderThan) {
				idxs = append(idxs, idx)
			}
		})
		return idxs
	})
	logger.Debug("chunk store: garbage collected %d chunks older than %s", n, olderThan.Format(time.RFC3339))
	return n
}

// Clear removes every chunk.
func (s *ChunkStore) Clear(_ context.Context) int {
	s.mu.Lock()
	st := s.state.Load()
	removed := st.liveIDs()
	s.state.Store(newChunkState())
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()

	notify(listeners, removed)
	return len(removed)
}

// removeWhere removes the arena indices selected against the current state
// and notifies listeners once the new state is published.
func (s *ChunkStore) removeWhere(selectFn func(*chunkState) []int) int {
	s.mu.Lock()
	cur := s.state.Load()
	idxs := selectFn(cur)
	if len(idxs) == 0 {
		s.mu.Unlock()
		return 0
	}

	next := *cur
	removed := make([]string, 0, len(idxs))
	for _, idx := range idxs {
		if id, ok := next.remove(idx); ok {
			removed = append(removed, id)
		}
	}
	published := &next
	if next.tombstones > next.arena.Len()/2 {
		published = next.compact()
	}
	s.state.Store(published)
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()

	notify(listeners, removed)
	return len(removed)
}

func notify(listeners []driven.RemovalListener, ids []string) {
	if len(ids) == 0 {
		return
	}
	for _, l := range listeners {
		l.ChunksRemoved(ids)
	}
}

// Statistics summarizes the store contents.
func (s *ChunkStore) Statistics(_ context.Context) domain.StoreStatistics {
	st := s.state.Load()
	stats := domain.StoreStatistics{
		TotalChunks:    st.byID.Len(),
		TotalPatients:  st.byPatient.Len(),
		TotalArtifacts: st.byArtifact.Len(),
		ChunksByType:   make(map[string]int),
	}

	var oldest, newest time.Time
	var bytes int64
	st.each(func(_ int, c *domain.Chunk) {
		stats.ChunksByType[c.ArtifactType]++
		if oldest.IsZero() || c.OccurredAt.Before(oldest) {
			oldest = c.OccurredAt
		}
		if newest.IsZero() || c.OccurredAt.After(newest) {
			newest = c.OccurredAt
		}
		bytes += chunkOverheadBytes + int64(len(c.ID)+len(c.ArtifactID)+len(c.PatientID)+
			len(c.ArtifactType)+len(c.Text)+len(c.Author)+len(c.Source))
		for _, e := range c.Entities {
			bytes += int64(len(e.Type) + len(e.Text))
		}
	})
	bytes += int64(4*st.byID.Len()) * indexEntryBytes

	if stats.TotalChunks > 0 {
		stats.OldestChunkDate = &oldest
		stats.NewestChunkDate = &newest
	}
	stats.MemoryUsageBytes = bytes
	return stats
}

// insert appends c to the arena and files it under every index.
func (st *chunkState) insert(c *domain.Chunk) {
	idx := st.arena.Len()
	st.arena = st.arena.Append(c)
	st.byID = st.byID.Set(c.ID, idx)
	st.byArtifact = link(st.byArtifact, c.ArtifactID, idx)
	st.byPatient = link(st.byPatient, c.PatientID, idx)
	st.byDay = link(st.byDay, dayKey(c.OccurredAt), idx)
}

// remove tombstones the slot and unlinks it from every index.
func (st *chunkState) remove(idx int) (string, bool) {
	if idx < 0 || idx >= st.arena.Len() {
		return "", false
	}
	c := st.arena.Get(idx)
	if c == nil {
		return "", false
	}
	st.arena = st.arena.Set(idx, nil)
	st.tombstones++
	st.byID = st.byID.Delete(c.ID)
	st.byArtifact = unlink(st.byArtifact, c.ArtifactID, idx)
	st.byPatient = unlink(st.byPatient, c.PatientID, idx)
	st.byDay = unlink(st.byDay, dayKey(c.OccurredAt), idx)
	return c.ID, true
}

func link(m *index, key string, idx int) *index {
	p, ok := m.Get(key)
	if !ok {
		p = immutable.NewSortedMap[int, struct{}](nil)
	}
	return m.Set(key, p.Set(idx, struct{}{}))
}

func unlink(m *index, key string, idx int) *index {
	p, ok := m.Get(key)
	if !ok {
		return m
	}
	p = p.Delete(idx)
	if p.Len() == 0 {
		return m.Delete(key)
	}
	return m.Set(key, p)
}

// lookup returns the arena indices filed under key, in ascending order.
func lookup(m *index, key string) []int {
	p, ok := m.Get(key)
	if !ok {
		return nil
	}
	out := make([]int, 0, p.Len())
	itr := p.Iterator()
	for !itr.Done() {
		idx, _, _ := itr.Next()
		out = append(out, idx)
	}
	return out
}

// compact rebuilds the arena without tombstones. It runs only once
// tombstones outnumber live chunks, so its cost is amortized over the
// removals that caused it.
func (st *chunkState) compact() *chunkState {
	out := newChunkState()
	st.each(func(_ int, c *domain.Chunk) {
		out.insert(c)
	})
	return out
}

// each calls fn for every live chunk in arena order.
func (st *chunkState) each(fn func(idx int, c *domain.Chunk)) {
	itr := st.arena.Iterator()
	for !itr.Done() {
		idx, c := itr.Next()
		if c != nil {
			fn(idx, c)
		}
	}
}

func (st *chunkState) liveIDs() []string {
	ids := make([]string, 0, st.byID.Len())
	st.each(func(_ int, c *domain.Chunk) {
		ids = append(ids, c.ID)
	})
	return ids
}

// candidates resolves the set-valued filters by index intersection.
func (st *chunkState) candidates(f domain.ChunkFilter) []int {
	var sets [][]int
	if f.PatientID != "" {
		sets = append(sets, lookup(st.byPatient, f.PatientID))
	}
	if f.ArtifactID != "" {
		sets = append(sets, lookup(st.byArtifact, f.ArtifactID))
	}
	if f.DateFrom != nil || f.DateTo != nil {
		sets = append(sets, st.dayRange(f.DateFrom, f.DateTo))
	}

	if len(sets) == 0 {
		all := make([]int, 0, st.byID.Len())
		st.each(func(idx int, _ *domain.Chunk) {
			all = append(all, idx)
		})
		return all
	}

	sort.Slice(sets, func(i, j int) bool { return len(sets[i]) < len(sets[j]) })
	result := sets[0]
	for _, other := range sets[1:] {
		if len(result) == 0 {
			break
		}
		member := make(map[int]struct{}, len(other))
		for _, idx := range other {
			member[idx] = struct{}{}
		}
		result = slices.DeleteFunc(result, func(idx int) bool {
			_, ok := member[idx]
			return !ok
		})
	}
	return result
}

// dayRange returns the indices of chunks whose day lies in [from, to].
// Day keys sort lexically in calendar order.
func (st *chunkState) dayRange(from, to *time.Time) []int {
	lo, hi := "", "\xff"
	if from != nil {
		lo = dayKey(*from)
	}
	if to != nil {
		hi = dayKey(*to)
	}
	var out []int
	itr := st.byDay.Iterator()
	for !itr.Done() {
		day, _, _ := itr.Next()
		if day >= lo && day <= hi {
			out = append(out, lookup(st.byDay, day)...)
		}
	}
	return out
}

func matchesAttributes(c *domain.Chunk, f domain.ChunkFilter) bool {
	if f.ArtifactType != "" && c.ArtifactType != f.ArtifactType {
		return false
	}
	if f.EntityType == "" && f.EntityText == "" {
		return true
	}
	text := strings.ToLower(f.EntityText)
	for _, e := range c.Entities {
		if f.EntityType != "" && !strings.EqualFold(e.Type, f.EntityType) {
			continue
		}
		if text != "" && !strings.Contains(strings.ToLower(e.Text), text) {
			continue
		}
		return true
	}
	return false
}

func paginate(chunks []*domain.Chunk, offset, limit int) []*domain.Chunk {
	if offset > 0 {
		if offset >= len(chunks) {
			return nil
		}
		chunks = chunks[offset:]
	}
	if limit > 0 && limit < len(chunks) {
		chunks = chunks[:limit]
	}
	return chunks
}

func dayKey(t time.Time) string {
	return t.UTC().Format(dayLayout)
}
