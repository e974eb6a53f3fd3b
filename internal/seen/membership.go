package seen

import (
	"bytes"
	"fmt"

	"github.com/bits-and-blooms/bloom/v3"
)

// MembershipTester answers "might this key be present". Test must never
// return false for a key that was added.
type MembershipTester interface {
	Add(key string)
	Test(key string) bool
}

// HashSetTester is an exact MembershipTester.
type HashSetTester struct {
	set map[string]struct{}
}

// NewHashSetTester returns an empty exact tester sized for capacity keys.
func NewHashSetTester(capacity int) *HashSetTester {
	return &HashSetTester{set: make(map[string]struct{}, capacity)}
}

func (h *HashSetTester) Add(key string) {
	h.set[key] = struct{}{}
}

func (h *HashSetTester) Test(key string) bool {
	_, ok := h.set[key]
	return ok
}

const minBloomCapacity = 1024

// BloomTester is a probabilistic MembershipTester: no false negatives, and
// a false-positive rate bounded by the rate it was sized for.
type BloomTester struct {
	filter *bloom.BloomFilter
}

// NewBloomTester sizes a filter for capacity keys at fpRate. The filter is
// built for a quarter of the requested rate so the observed rate stays under
// the bound with margin.
func NewBloomTester(capacity int, fpRate float64) *BloomTester {
	if capacity < minBloomCapacity {
		capacity = minBloomCapacity
	}
	if fpRate <= 0 || fpRate >= 1 {
		fpRate = 0.001
	}
	return &BloomTester{filter: bloom.NewWithEstimates(uint(capacity), fpRate/4)}
}

func (b *BloomTester) Add(key string) {
	b.filter.AddString(key)
}

func (b *BloomTester) Test(key string) bool {
	return b.filter.TestString(key)
}

// MarshalBinary encodes the filter for the companion blob file.
func (b *BloomTester) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := b.filter.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode bloom filter: %w", err)
	}
	return buf.Bytes(), nil
}

// UnmarshalBloomTester decodes a blob written by MarshalBinary.
func UnmarshalBloomTester(data []byte) (*BloomTester, error) {
	f := &bloom.BloomFilter{}
	if _, err := f.ReadFrom(bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("failed to decode bloom filter: %w", err)
	}
	return &BloomTester{filter: f}, nil
}
