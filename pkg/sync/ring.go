package sync

import (
	"encoding/binary"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/emirpasic/gods/utils"
	"github.com/spaolacci/murmur3"
)

// ring is a consistent hash ring over a fixed number of stripes
type ring struct {
	hashRing *treemap.Map

	// minStripe caches the stripe of the min entry in hashRing, which is used
	// when a key hashes past the last entry. treemap.Map.Min() is O(log n).
	minStripe int
}

// newRing returns a consistent hash ring over stripes [0, stripes), where
// each stripe has replicationFactor virtual entries in the ring
func newRing(stripes, replicationFactor uint) *ring {
	hashRing := treemap.NewWith(utils.Int64Comparator)
	for stripe := 0; stripe < int(stripes); stripe++ {
		stripeHash, _ := murmur3.Sum128([]byte{byte(stripe), byte(stripe >> 8), byte(stripe >> 16), byte(stripe >> 24)})
		stripeHashBytes := make([]byte, 8)
		binary.LittleEndian.PutUint64(stripeHashBytes, stripeHash)

		for i := uint32(0); i < uint32(replicationFactor); i++ {
			indexBytes := make([]byte, 4)
			binary.LittleEndian.PutUint32(indexBytes, i)

			hasher := murmur3.New128()
			hasher.Write(stripeHashBytes)
			hasher.Write(indexBytes)
			hash, _ := hasher.Sum128()
			hashRing.Put(int64(hash), stripe)
		}
	}

	r := &ring{hashRing: hashRing}
	if _, minStripe := hashRing.Min(); minStripe != nil {
		r.minStripe = minStripe.(int)
	}
	return r
}

// shard consistently hashes the key onto a stripe
func (r *ring) shard(key []byte) int {
	raw, _ := murmur3.Sum128(key)
	if _, stripe := r.hashRing.Ceiling(int64(raw)); stripe != nil {
		return stripe.(int)
	}
	return r.minStripe
}
