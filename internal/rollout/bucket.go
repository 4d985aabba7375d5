package rollout

import "hash/fnv"

// Bucket maps a context value to a stable bucket in [0, 99] for percentage rollouts.
//
// The algorithm is a cross-language compatibility contract shared by every FigChain
// client: standard FNV-1a 32-bit over the UTF-8 bytes of the value, reinterpreted as a
// signed 32-bit integer, then the absolute value of the remainder mod 100 (the signed
// remainder, matching how the reference client computes it). The same value buckets
// identically in every implementation, so a SPLIT rollout is sticky per key.
func Bucket(value string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(value))
	rem := int(int32(h.Sum32())) % 100
	if rem < 0 {
		rem = -rem
	}
	return rem
}
