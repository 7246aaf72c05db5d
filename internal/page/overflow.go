package page

// UsableSize returns U, the usable page size after reserved trailing bytes.
// This engine always reserves exactly one trailing byte per page (see
// internal/btree's dirty-bit convention), so reservedBytes is 1 in practice,
// but the formula carries the general term for fidelity to the file format.
func UsableSize(pageSize, reservedBytes int) int {
	return pageSize - reservedBytes
}

// MaxLocal (X) is the largest payload that can live entirely on a page
// before any of it must spill to an overflow chain.
func MaxLocal(u int) int {
	return (u-12)*64/255 - 23
}

// MinLocal (M) is the minimum on-page payload once a record is already
// spilling, used by the split-point formula below.
func MinLocal(u int) int {
	return (u-12)*32/255 - 23
}

// LocalPayloadSize returns how many of a payload's P bytes are stored
// on-page (the remainder goes to an overflow chain), and whether an
// overflow chain is needed at all. This is SQLite's exact split-point
// formula: a record at or under X fits entirely; past that, the split
// point K keeps on-page usage roughly constant (M) while packing overflow
// pages to exact multiples of their capacity.
func LocalPayloadSize(u, p int) (onPage int, overflow bool) {
	x := MaxLocal(u)
	if p <= x {
		return p, false
	}
	m := MinLocal(u)
	k := m + (p-m)%(u-4)
	if k <= x {
		return k, true
	}
	return m, true
}
