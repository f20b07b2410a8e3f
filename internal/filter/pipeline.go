package filter

import (
	"strconv"
	"time"

	"github.com/jellydator/ttlcache/v3"

	"github.com/julianbeese/immo_search/internal/domain"
)

// Snapshot is an immutable record set. Version must change whenever the
// records are replaced; it is what the pipeline memoizes on.
type Snapshot struct {
	Version uint64
	Records []domain.PropertyRecord
}

// Pipeline memoizes filter + sort results keyed on (snapshot version, state).
// Returned slices are shared between callers and must not be modified.
type Pipeline struct {
	engine *Engine
	cache  *ttlcache.Cache[string, []domain.PropertyRecord]
}

// NewPipeline creates a memoizing pipeline. ttl <= 0 keeps entries until
// they are evicted by capacity.
func NewPipeline(engine *Engine, ttl time.Duration, capacity uint64) *Pipeline {
	opts := []ttlcache.Option[string, []domain.PropertyRecord]{
		ttlcache.WithDisableTouchOnHit[string, []domain.PropertyRecord](),
	}
	if ttl > 0 {
		opts = append(opts, ttlcache.WithTTL[string, []domain.PropertyRecord](ttl))
	}
	if capacity > 0 {
		opts = append(opts, ttlcache.WithCapacity[string, []domain.PropertyRecord](capacity))
	}

	return &Pipeline{
		engine: engine,
		cache:  ttlcache.New[string, []domain.PropertyRecord](opts...),
	}
}

// Engine returns the underlying filter engine
func (p *Pipeline) Engine() *Engine {
	return p.engine
}

// Apply returns the filtered, ordered view of snap for state
func (p *Pipeline) Apply(snap Snapshot, state domain.FilterState) []domain.PropertyRecord {
	key := strconv.FormatUint(snap.Version, 10) + "#" + state.Key()

	if item := p.cache.Get(key); item != nil {
		return item.Value()
	}

	result := p.engine.FilterListings(snap.Records, state)
	Sort(result, state.Sort)

	p.cache.Set(key, result, ttlcache.DefaultTTL)
	return result
}

// Invalidate drops every memoized result
func (p *Pipeline) Invalidate() {
	p.cache.DeleteAll()
}

// Len returns the number of memoized results
func (p *Pipeline) Len() int {
	return p.cache.Len()
}
