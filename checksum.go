package boxon

// Checksummer is the external integration contract for a checksum
// algorithm (spec.md §1, §6): the algorithm catalog itself (CRC-16/CCITT,
// BSD-8/16, ...) is out of scope, boxon only consumes an implementation.
type Checksummer interface {
	// Calculate computes the checksum of data[start:end] seeded with initial.
	Calculate(data []byte, start, end int, initial uint64) uint64
}

// checksumRegistry resolves an Algorithm name (from a checksum directive)
// to a registered Checksummer.
type checksumRegistry struct {
	algorithms map[string]Checksummer
}

func newChecksumRegistry() *checksumRegistry {
	return &checksumRegistry{algorithms: map[string]Checksummer{}}
}

func (r *checksumRegistry) get(name string) (Checksummer, bool) {
	cs, ok := r.algorithms[name]
	return cs, ok
}
