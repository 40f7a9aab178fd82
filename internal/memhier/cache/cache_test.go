package cache_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/meshsim/internal/common"
	"github.com/sarchlab/meshsim/internal/memhier/cache"
)

func TestCache(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Cache Suite")
}

var _ = Describe("Cache", func() {
	It("reports a miss and records no block on an empty cache", func() {
		c := cache.New(cache.Config{BlockSize: 64})
		_, ok := c.Lookup(0x100)
		Expect(ok).To(BeFalse())
		Expect(c.Misses).To(Equal(uint64(1)))
		Expect(c.Hits).To(Equal(uint64(0)))
	})

	It("hits after Install", func() {
		c := cache.New(cache.Config{BlockSize: 64})
		c.Install(0x100, common.Shared, []byte{1, 2, 3})

		b, ok := c.Lookup(0x100)
		Expect(ok).To(BeTrue())
		Expect(b.State).To(Equal(common.Shared))
		Expect(b.Data).To(Equal([]byte{1, 2, 3}))
		Expect(c.Hits).To(Equal(uint64(1)))
	})

	It("Peek does not affect hit/miss counters", func() {
		c := cache.New(cache.Config{BlockSize: 64})
		c.Install(0x100, common.Shared, []byte{1})

		_, ok := c.Peek(0x100)
		Expect(ok).To(BeTrue())
		Expect(c.Hits).To(Equal(uint64(0)))
		Expect(c.Misses).To(Equal(uint64(0)))
	})

	It("evicts the least-recently-used block once at capacity", func() {
		c := cache.New(cache.Config{BlockSize: 64, Capacity: 2})
		c.Install(0x100, common.Shared, []byte{1})
		c.Install(0x200, common.Shared, []byte{2})

		c.Lookup(0x100) // touch 0x100, so 0x200 becomes the LRU victim

		victim, vb, evicted := c.Install(0x300, common.Shared, []byte{3})
		Expect(evicted).To(BeTrue())
		Expect(victim).To(Equal(common.Address(0x200)))
		Expect(vb.Data).To(Equal([]byte{2}))

		_, ok := c.Peek(0x200)
		Expect(ok).To(BeFalse())
	})

	It("does not evict when re-installing an already-resident block", func() {
		c := cache.New(cache.Config{BlockSize: 64, Capacity: 1})
		c.Install(0x100, common.Shared, []byte{1})

		_, _, evicted := c.Install(0x100, common.Modified, []byte{9})
		Expect(evicted).To(BeFalse())

		b, _ := c.Peek(0x100)
		Expect(b.State).To(Equal(common.Modified))
	})

	It("Invalidate drops a resident block", func() {
		c := cache.New(cache.Config{BlockSize: 64})
		c.Install(0x100, common.Shared, []byte{1})
		c.Invalidate(0x100)

		_, ok := c.Peek(0x100)
		Expect(ok).To(BeFalse())
	})

	It("never evicts when Capacity is 0 (unbounded)", func() {
		c := cache.New(cache.Config{BlockSize: 64})
		for i := common.Address(0); i < 100; i++ {
			c.Install(i*64, common.Shared, []byte{byte(i)})
		}
		_, ok := c.Peek(0)
		Expect(ok).To(BeTrue())
	})
})
