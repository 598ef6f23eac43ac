package fph

import (
	"math"
	"math/bits"
	"sort"
	"unsafe"
)

// BucketParam constrains the integer type used to store per-bucket
// displacements. Narrower types pack a denser displacement table at the cost
// of a smaller addressable slot count (see CapacityExceededError) and a
// lower max-load-factor upper limit.
type BucketParam interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64
}

// paramBits returns the bit width of a BucketParam type.
func paramBits[D BucketParam]() uint {
	var d D
	return uint(unsafe.Sizeof(d)) * 8
}

// paramMax returns the largest value representable by a BucketParam type.
func paramMax[D BucketParam]() uint64 {
	b := paramBits[D]()
	if b >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << b) - 1
}

// maxLoadFactorUpperLimit returns the hard ceiling on max load factor for a
// given BucketParam width. Narrower displacement tables run out of probe
// room sooner, so their upper limit is lower.
func maxLoadFactorUpperLimit(paramBitWidth uint) float64 {
	if paramBitWidth <= 8 {
		return 0.98
	}
	return 0.999
}

// metaMaxLoadFactorUpperLimit is the analogous ceiling for the Meta variant,
// which dedicates 7 bits of every slot's metadata byte to a fingerprint
// instead of to displacement addressing budget.
func metaMaxLoadFactorUpperLimit(paramBitWidth uint) float64 {
	if paramBitWidth <= 8 {
		return 0.90
	}
	return 0.995
}

// Stats exposes build-time introspection: how many seeds and bucket-factor
// expansions the most recent (re)build consumed. It is intended for tests
// and diagnostics, not for steady-state decision making.
type Stats struct {
	SeedAttempts      int
	BucketFactorTries int
}

const (
	defaultBucketFactor  = 2.0
	minBucketFactor      = 1.5
	defaultSeedRetries   = 64
	defaultFactorRetries = 3
)

func nextPow2(n uint32) uint32 {
	if n <= 1 {
		return 1
	}
	return 1 << uint(32-bits.LeadingZeros32(n-1))
}

// log2OfPow2 returns log2(n) assuming n is a power of two.
func log2OfPow2(n uint32) uint {
	return uint(bits.TrailingZeros32(n))
}

type buildConfig[K comparable, D BucketParam] struct {
	hasher        Hasher[K]
	bucketFactor  float64
	maxLoadFactor float64
	seedSource    func() uint64
	seedRetries   int
	factorRetries int
	// sizeHint, when larger than len(keys), sizes the bucket/slot count
	// as if sizeHint keys were present, so a table can reserve headroom
	// for future inserts without yet holding those keys. It never
	// changes which keys are actually assigned slots.
	sizeHint int
}

type buildResult[D BucketParam] struct {
	seed0           uint64
	seed1           uint64
	needsSecondHash bool
	buckets         uint32
	slots           uint32
	bucketBits      uint
	disp            []D
	// slotOf[i] is the slot assigned to keys[i], valid only immediately
	// after a successful build, before the caller has copied it elsewhere.
	slotOf []uint32
}

// buildPerfectHash runs the FCH bucket-displacement construction over keys
// and returns a parameter bundle that maps every key to a distinct slot in
// [0, slots). It escalates in two nested loops: for each candidate bucket
// count it retries seedRetries primary seeds before halving the bucket
// factor (up to factorRetries times) and trying again. Halving the factor
// doubles the bucket count until the factor reaches its floor of 1; later
// rounds retry the same bucket count with fresh seeds.
func buildPerfectHash[K comparable, D BucketParam](keys []K, cfg buildConfig[K, D]) (buildResult[D], Stats, error) {
	var stats Stats
	n := len(keys)
	if n == 0 && cfg.sizeHint == 0 {
		return buildResult[D]{buckets: 1, slots: 1, disp: make([]D, 1)}, stats, nil
	}
	sizeN := n
	if cfg.sizeHint > sizeN {
		sizeN = cfg.sizeHint
	}

	bucketFactor := cfg.bucketFactor
	if bucketFactor < minBucketFactor {
		bucketFactor = minBucketFactor
	}
	maxD := paramMax[D]()
	paramBitWidth := paramBits[D]()

	// Scratch reused across every seed attempt within a bucket-factor try;
	// sized once slots is known for that try.
	var slotGen []uint32
	var generation uint32

	factorRetries := cfg.factorRetries
	if factorRetries <= 0 {
		factorRetries = defaultFactorRetries
	}
	seedRetries := cfg.seedRetries
	if seedRetries <= 0 {
		seedRetries = defaultSeedRetries
	}

	for factorTry := 0; factorTry <= factorRetries; factorTry++ {
		buckets := nextPow2(uint32(math.Ceil(float64(sizeN) / bucketFactor)))
		slots := nextPow2(uint32(math.Ceil(float64(sizeN) / cfg.maxLoadFactor)))
		if slots < 1 {
			slots = 1
		}
		if uint64(slots-1) > maxD {
			return buildResult[D]{}, stats, &CapacityExceededError{
				Requested: uint64(slots),
				ParamBits: paramBitWidth,
			}
		}

		bucketBits := log2OfPow2(buckets)
		slotBits := log2OfPow2(slots)
		needsSecondHash := bucketBits+slotBits > 64

		if cap(slotGen) < int(slots) {
			slotGen = make([]uint32, slots)
		} else {
			slotGen = slotGen[:slots]
		}

		for seedTry := 0; seedTry < seedRetries; seedTry++ {
			stats.SeedAttempts++
			seed0 := cfg.seedSource()
			var seed1 uint64
			if needsSecondHash {
				seed1 = mix(seed0 ^ 0xD1B54A32D192ED03)
			}

			generation++
			disp, slotOf, ok := tryAssign[K, D](
				keys, cfg.hasher, seed0, seed1, buckets, slots,
				bucketBits, needsSecondHash, slotGen, generation)
			if ok {
				return buildResult[D]{
					seed0:           seed0,
					seed1:           seed1,
					needsSecondHash: needsSecondHash,
					buckets:         buckets,
					slots:           slots,
					bucketBits:      bucketBits,
					disp:            disp,
					slotOf:          slotOf,
				}, stats, nil
			}
		}
		stats.BucketFactorTries++
		bucketFactor /= 2
		if bucketFactor < 1 {
			bucketFactor = 1
		}
	}

	return buildResult[D]{}, stats, &BuildFailureError{
		Keys:              n,
		SeedAttempts:      stats.SeedAttempts,
		BucketFactorTries: stats.BucketFactorTries,
	}
}

// tryAssign attempts, for one seed, to place every key into a distinct slot
// by resolving buckets in descending order of occupancy (ties broken by
// ascending bucket id) and searching, per bucket, for the smallest
// displacement that avoids every slot already claimed by an earlier bucket
// and every other key within the same bucket.
//
// Occupancy is tracked with a generation counter (slotGen, generation)
// rather than a bitmap that must be cleared between attempts: a slot is
// claimed in the current attempt iff slotGen[slot] == generation, so
// bumping generation for each attempt is equivalent to an O(1) reset.
func tryAssign[K comparable, D BucketParam](
	keys []K, hasher Hasher[K], seed0, seed1 uint64,
	buckets, slots uint32, bucketBits uint, needsSecondHash bool,
	slotGen []uint32, generation uint32,
) ([]D, []uint32, bool) {
	n := len(keys)
	slotMask := uint64(slots - 1)
	bucketMask := buckets - 1

	bucketOf := make([]uint32, n)
	counts := make([]int32, buckets)
	for i, k := range keys {
		h := hasher.Hash(k, seed0)
		b := uint32(h) & bucketMask
		bucketOf[i] = b
		counts[b]++
	}

	starts := make([]int32, buckets+1)
	for b := uint32(0); b < buckets; b++ {
		starts[b+1] = starts[b] + counts[b]
	}
	cursor := append([]int32(nil), starts[:buckets]...)
	bucketKeys := make([]int32, n)
	for i := 0; i < n; i++ {
		b := bucketOf[i]
		bucketKeys[cursor[b]] = int32(i)
		cursor[b]++
	}

	order := make([]uint32, buckets)
	for b := range order {
		order[b] = uint32(b)
	}
	sort.Slice(order, func(i, j int) bool {
		bi, bj := order[i], order[j]
		if counts[bi] != counts[bj] {
			return counts[bi] > counts[bj]
		}
		return bi < bj
	})

	disp := make([]D, buckets)
	slotOf := make([]uint32, n)
	searchLimit := slotMask
	if maxD := paramMax[D](); maxD < searchLimit {
		searchLimit = maxD
	}

	folds := make([]uint64, 0, 16)
	for _, b := range order {
		lo, hi := starts[b], starts[b+1]
		if lo == hi {
			continue
		}
		members := bucketKeys[lo:hi]
		folds = folds[:0]
		for _, idx := range members {
			k := keys[idx]
			var fold uint64
			if needsSecondHash {
				fold = hasher.Hash(k, seed1) & slotMask
			} else {
				h := hasher.Hash(k, seed0)
				fold = (h >> bucketBits) & slotMask
			}
			folds = append(folds, fold)
		}

		found := false
		for d := uint64(0); d <= searchLimit; d++ {
			ok := true
			for i := range members {
				s := (folds[i] ^ d) & slotMask
				if slotGen[s] == generation {
					ok = false
					break
				}
				for j := 0; j < i; j++ {
					if (folds[j]^d)&slotMask == s {
						ok = false
						break
					}
				}
				if !ok {
					break
				}
			}
			if ok {
				for i, idx := range members {
					s := (folds[i] ^ d) & slotMask
					slotGen[s] = generation
					slotOf[idx] = uint32(s)
				}
				disp[b] = D(d)
				found = true
				break
			}
		}
		if !found {
			return nil, nil, false
		}
	}
	return disp, slotOf, true
}

// slotFor recomputes the slot index for a key given an already-built
// parameter bundle; used by the table to place/relocate a single key
// without re-running the whole builder (e.g. the fast-path Insert).
func slotFor[K any, D BucketParam](
	hasher Hasher[K], key K, seed0, seed1 uint64, needsSecondHash bool,
	bucketBits uint, bucketMask uint32, slotMask uint64, disp []D,
) uint64 {
	h := hasher.Hash(key, seed0)
	b := uint32(h) & bucketMask
	var fold uint64
	if needsSecondHash {
		fold = hasher.Hash(key, seed1) & slotMask
	} else {
		fold = (h >> bucketBits) & slotMask
	}
	return (fold ^ uint64(disp[b])) & slotMask
}

