// Package flu implements a single CORFU-style Flash Log Unit: a storage node
// that owns a contiguous address space of fixed-size logical pages and
// exposes a narrow, epoch-gated operation surface (write, read, trim, fill,
// seal) over it.
//
// flu is not a replicated log and does not implement sequencing, membership,
// or garbage collection - those are the job of a chain/lifecycle manager
// layered above one or more FLU instances. See [Open].
package flu

const (
	// DefaultPageSize is used when [Options.PageSize] is zero.
	DefaultPageSize = 8

	// DefaultMaxMem is used when [Options.MaxMem] is zero.
	DefaultMaxMem = 64 << 20 // 64 MiB
)

// Options configures [Open].
type Options struct {
	// Dir is the directory backing this FLU instance. It holds the memfile
	// ("flu.data"), the hard-state file ("hard-state"), and the
	// single-instance lock file ("flu.lock").
	Dir string

	// PageSize is the fixed page payload size in bytes. Immutable once a
	// node has been created; on reopen it must match the persisted value.
	// Defaults to [DefaultPageSize].
	PageSize uint32

	// MaxMem bounds the addressable slot region in bytes. Defaults to
	// [DefaultMaxMem]. On reopen it must match the persisted value.
	MaxMem uint64
}

// Status reports the current observable state of a FLU instance, per
// spec.md §6.
type Status struct {
	MinEpoch       uint64
	PageSize       uint32
	MaxMem         uint64
	MaxLogicalPage uint64
	TrimWatermark  uint64

	// MaxLPN is the largest LPN this node will ever accept, given its
	// geometry: floor(MaxMem / (PAGE_OVERHEAD+PageSize)) - 1.
	MaxLPN uint64
}
