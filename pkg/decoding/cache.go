package decoding

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
	"math"
	"sync"
)

// PathCache memoises PathScores by a digest of every input of the task.
// It is safe for concurrent use.
type PathCache struct {
	mu      sync.Mutex
	entries map[string]PathResult
	hits    int
}

// NewPathCache returns an empty cache.
func NewPathCache() *PathCache {
	return &PathCache{entries: make(map[string]PathResult)}
}

// Get returns a copy of the cached result for key.
func (c *PathCache) Get(key string) (PathResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.entries[key]
	if ok {
		c.hits++
	}
	return r.clone(), ok
}

// Put stores a copy of r under key.
func (c *PathCache) Put(key string, r PathResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = r.clone()
}

// Len is the number of cached results.
func (c *PathCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Hits is the number of successful lookups.
func (c *PathCache) Hits() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits
}

func (r PathResult) clone() PathResult {
	out := r
	out.TestScores = append([]float64(nil), r.TestScores...)
	out.W = append([]float64(nil), r.W...)
	out.Energies = append([]float64(nil), r.Energies...)
	if r.Support != nil {
		out.Support = append([]bool(nil), r.Support...)
	}
	return out
}

// Key is the hex SHA-256 digest of the inputs that determine the result.
// The logger is not part of it.
func (t *PathTask) Key() string {
	h := sha256.New()
	d := digest{h: h}
	d.ints(int(t.Penalty), int(t.Loss), t.NAlphas, t.Class, t.MaxIter)
	d.floats(t.Eps, t.L1Ratio, t.YMean, t.ScreeningPercentile, t.Tol)
	if t.Debias {
		d.ints(1)
	} else {
		d.ints(0)
	}
	n, p := t.X.Dims()
	d.ints(n, p)
	for i := 0; i < n; i++ {
		d.floats(t.X.RawRowView(i)...)
	}
	d.ints(len(t.Y))
	d.floats(t.Y...)
	d.ints(len(t.Alphas))
	d.floats(t.Alphas...)
	d.ints(len(t.Fold.Train))
	d.ints(t.Fold.Train...)
	d.ints(len(t.Fold.Test))
	d.ints(t.Fold.Test...)
	if t.Mask != nil {
		d.ints(t.Mask.Shape...)
		for _, on := range t.Mask.Data {
			if on {
				d.buf[0] = 1
			} else {
				d.buf[0] = 0
			}
			h.Write(d.buf[:1])
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

type digest struct {
	h   hash.Hash
	buf [8]byte
}

func (d *digest) ints(v ...int) {
	for _, x := range v {
		binary.LittleEndian.PutUint64(d.buf[:], uint64(int64(x)))
		d.h.Write(d.buf[:])
	}
}

func (d *digest) floats(v ...float64) {
	for _, x := range v {
		binary.LittleEndian.PutUint64(d.buf[:], math.Float64bits(x))
		d.h.Write(d.buf[:])
	}
}
