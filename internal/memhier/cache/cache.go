// Package cache implements the block store shared by the L1 and L2
// controllers (spec §4.4.2/§4.4.3): a capacity-bounded, LRU-replaced map of
// cache-block-aligned addresses to state+data.
package cache

import "github.com/sarchlab/meshsim/internal/common"

// Block is one resident cache line.
type Block struct {
	State common.CacheBlockState
	Data  []byte
}

// Config carries the perf_model/l1_*cache, l2_cache config keys of spec
// §6.1 that size and time a Cache.
type Config struct {
	BlockSize       uint32
	Capacity        int // number of blocks; 0 means unbounded (used in tests)
	DataAccessTime  common.Time
	TagsAccessTime  common.Time
}

// Cache is a block-addressed store with LRU eviction once Capacity blocks
// are resident.
type Cache struct {
	cfg Config

	blocks map[common.Address]*Block
	lru    []common.Address // front = most recently used

	Hits, Misses uint64
}

// New builds an empty Cache.
func New(cfg Config) *Cache {
	return &Cache{cfg: cfg, blocks: make(map[common.Address]*Block)}
}

// BlockSize returns the configured block size.
func (c *Cache) BlockSize() uint32 { return c.cfg.BlockSize }

// DataAccessTime and TagsAccessTime return the configured per-access cycle
// charges (spec §6.1's data_access_time/tags_access_time).
func (c *Cache) DataAccessTime() common.Time { return c.cfg.DataAccessTime }
func (c *Cache) TagsAccessTime() common.Time { return c.cfg.TagsAccessTime }

// Lookup returns the resident block at blockAddr, if any, recording a
// hit/miss and touching the LRU list on hit.
func (c *Cache) Lookup(blockAddr common.Address) (*Block, bool) {
	b, ok := c.blocks[blockAddr]
	if !ok {
		c.Misses++
		return nil, false
	}
	c.Hits++
	c.touch(blockAddr)
	return b, true
}

// Peek is Lookup without hit/miss accounting, used by the L2 controller's
// directory-message handlers which are not themselves "accesses".
func (c *Cache) Peek(blockAddr common.Address) (*Block, bool) {
	b, ok := c.blocks[blockAddr]
	return b, ok
}

// Install inserts or overwrites a block, evicting the LRU victim first if
// the cache is at capacity and blockAddr is not already resident. The
// returned (addr, block, true) is the evicted victim, if any.
func (c *Cache) Install(blockAddr common.Address, state common.CacheBlockState, data []byte) (common.Address, *Block, bool) {
	if _, exists := c.blocks[blockAddr]; !exists && c.cfg.Capacity > 0 && len(c.blocks) >= c.cfg.Capacity {
		victim := c.lru[len(c.lru)-1]
		vb := c.blocks[victim]
		c.Invalidate(victim)
		c.blocks[blockAddr] = &Block{State: state, Data: data}
		c.touch(blockAddr)
		return victim, vb, true
	}
	c.blocks[blockAddr] = &Block{State: state, Data: data}
	c.touch(blockAddr)
	return 0, nil, false
}

// Invalidate drops blockAddr entirely.
func (c *Cache) Invalidate(blockAddr common.Address) {
	delete(c.blocks, blockAddr)
	for i, a := range c.lru {
		if a == blockAddr {
			c.lru = append(c.lru[:i], c.lru[i+1:]...)
			break
		}
	}
}

func (c *Cache) touch(addr common.Address) {
	for i, a := range c.lru {
		if a == addr {
			c.lru = append(c.lru[:i], c.lru[i+1:]...)
			break
		}
	}
	c.lru = append([]common.Address{addr}, c.lru...)
}
