package arbordb

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// Stats holds database statistics
type Stats struct {
	Pages      int // Pages in the file, header included
	FreePages  int
	DirtyPages int
	Height     int // Levels from root to leaf, 1 for a lone root leaf

	CachedPages    int
	CacheHits      uint64
	CacheMisses    uint64
	CacheEvictions uint64

	Reads        uint64
	Writes       uint64
	BytesRead    uint64
	BytesWritten uint64
	FileSize     uint64 // Size of all pages, including unflushed ones
}

// Stats returns a snapshot of page, cache and I/O counters.
func (d *DB) Stats() (Stats, error) {
	var s Stats
	err := d.view(func(t *btree) error {
		ps := d.pager.Stats()
		ss := d.store.Stats()
		s = Stats{
			Pages:          ps.Pages,
			FreePages:      ps.FreePages,
			DirtyPages:     ps.DirtyPages,
			CachedPages:    ps.Cached,
			CacheHits:      ps.Cache.Hits,
			CacheMisses:    ps.Cache.Misses,
			CacheEvictions: ps.Cache.Evictions,
			Reads:          ss.Reads,
			Writes:         ss.Writes,
			BytesRead:      ss.Read,
			BytesWritten:   ss.Written,
			FileSize:       uint64(ps.Pages) * uint64(d.pager.PageSize()),
		}

		height, err := t.height()
		s.Height = height
		return err
	})
	return s, err
}

func (t *btree) height() (int, error) {
	id := t.root()
	for h := 1; h <= maxDepth; h++ {
		n, err := t.node(id)
		if err != nil {
			return 0, err
		}
		if n.IsLeaf() {
			return h, nil
		}
		id = n.InternalChild(0)
	}
	return 0, fmt.Errorf("%w: tree deeper than %d levels", ErrCorruption, maxDepth)
}

func (s Stats) String() string {
	hitRate := 0.0
	if total := s.CacheHits + s.CacheMisses; total > 0 {
		hitRate = float64(s.CacheHits) / float64(total) * 100
	}
	return fmt.Sprintf(
		"pages=%s free=%s dirty=%d height=%d size=%s cache=%d hit=%.1f%% evictions=%s read=%s written=%s",
		humanize.Comma(int64(s.Pages)),
		humanize.Comma(int64(s.FreePages)),
		s.DirtyPages,
		s.Height,
		humanize.IBytes(s.FileSize),
		s.CachedPages,
		hitRate,
		humanize.Comma(int64(s.CacheEvictions)),
		humanize.IBytes(s.BytesRead),
		humanize.IBytes(s.BytesWritten),
	)
}
