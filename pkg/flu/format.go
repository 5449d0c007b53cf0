package flu

import "encoding/binary"

// On-disk page slot layout (spec.md §3):
//
//	offset 0   (1 byte)       status: 0=unwritten, 1=written, 2=trimmed
//	offset 1   (8 bytes, BE)  stored LPN
//	offset 9   (page_size)    payload
//	offset 9+page_size (1)    tail marker: 0=torn, 1=complete
const (
	slotOverhead   = 10 // PAGE_OVERHEAD from spec.md §3
	slotOffStatus  = 0
	slotOffLPN     = 1
	slotOffPayload = 9
)

// Status byte values. 255 ("corrupt") is reserved and never written by this
// implementation.
const (
	statusUnwritten byte = 0
	statusWritten   byte = 1
	statusTrimmed   byte = 2
)

// slotSize returns the total on-disk size of one page slot for the given
// page size.
func slotSize(pageSize uint32) int64 {
	return int64(slotOverhead) + int64(pageSize)
}

// slotOffset returns the byte offset of lpn's slot in the memfile.
func slotOffset(lpn uint64, pageSize uint32) int64 {
	return int64(lpn) * slotSize(pageSize)
}

// slotTailOffset returns the offset of the tail marker within a slot buffer
// of the given page size.
func slotTailOffset(pageSize uint32) int {
	return slotOffPayload + int(pageSize)
}

// encodeSlot serializes a committed write slot: status=written, the stored
// LPN, the payload, and a set tail marker. The returned buffer is exactly
// one slot wide (slotOverhead already counts the tail marker byte) - a
// longer write here would spill into the next LPN's slot.
func encodeSlot(lpn uint64, payload []byte) []byte {
	buf := make([]byte, slotOverhead+len(payload))
	buf[slotOffStatus] = statusWritten
	binary.BigEndian.PutUint64(buf[slotOffLPN:], lpn)
	copy(buf[slotOffPayload:], payload)
	buf[slotTailOffset(uint32(len(payload)))] = 1

	return buf
}

// decodedSlot is the parsed view of one on-disk slot.
type decodedSlot struct {
	status    byte
	lpn       uint64
	payload   []byte
	tailSet   bool
	complete  bool // len(raw) covers the full slot including the tail marker
}

// decodeSlot parses a raw slot buffer (which may be short - a read beyond
// EOF, or a torn write truncated mid-flight).
func decodeSlot(raw []byte, pageSize uint32) decodedSlot {
	want := slotOverhead + int(pageSize)

	if len(raw) < slotOffPayload {
		return decodedSlot{status: statusUnwritten}
	}

	d := decodedSlot{
		status:   raw[slotOffStatus],
		lpn:      binary.BigEndian.Uint64(raw[slotOffLPN:slotOffPayload]),
		complete: len(raw) >= want,
	}

	payloadEnd := slotOffPayload + int(pageSize)
	if len(raw) >= payloadEnd {
		d.payload = raw[slotOffPayload:payloadEnd]
	}

	tailOff := slotTailOffset(pageSize)
	if len(raw) > tailOff {
		d.tailSet = raw[tailOff] == 1
	}

	return d
}

// Hard-state record layout, written via atomic tmp+rename
// (spec.md §3, §4.4):
//
//	offset 0  (4 bytes, BE)  magic "FLU1"
//	offset 4  (4 bytes, BE)  version_tag
//	offset 8  (8 bytes, BE)  min_epoch
//	offset 16 (4 bytes, BE)  page_size
//	offset 20 (8 bytes, BE)  max_mem
//	offset 28 (8 bytes, BE)  trim_watermark
const (
	hardStateMagic       = "FLU1"
	hardStateVersion     = 1
	hardStateRecordSize  = 36
	hsOffMagic           = 0
	hsOffVersion         = 4
	hsOffMinEpoch        = 8
	hsOffPageSize        = 16
	hsOffMaxMem          = 20
	hsOffTrimWatermark   = 28
)

// hardStateRecord is the durable record described by spec.md §3/§4.4.
type hardStateRecord struct {
	versionTag    uint32
	minEpoch      uint64
	pageSize      uint32
	maxMem        uint64
	trimWatermark uint64
}

func encodeHardState(r hardStateRecord) []byte {
	buf := make([]byte, hardStateRecordSize)
	copy(buf[hsOffMagic:], hardStateMagic)
	binary.BigEndian.PutUint32(buf[hsOffVersion:], r.versionTag)
	binary.BigEndian.PutUint64(buf[hsOffMinEpoch:], r.minEpoch)
	binary.BigEndian.PutUint32(buf[hsOffPageSize:], r.pageSize)
	binary.BigEndian.PutUint64(buf[hsOffMaxMem:], r.maxMem)
	binary.BigEndian.PutUint64(buf[hsOffTrimWatermark:], r.trimWatermark)

	return buf
}

// decodeHardState parses a hard-state record. Returns [ErrCorrupt] if buf is
// too short or doesn't carry the expected magic, and [ErrIncompatible] if
// the version tag isn't one this build understands.
func decodeHardState(buf []byte) (hardStateRecord, error) {
	if len(buf) < hardStateRecordSize {
		return hardStateRecord{}, ErrCorrupt
	}

	if string(buf[hsOffMagic:hsOffVersion]) != hardStateMagic {
		return hardStateRecord{}, ErrCorrupt
	}

	r := hardStateRecord{
		versionTag:    binary.BigEndian.Uint32(buf[hsOffVersion:]),
		minEpoch:      binary.BigEndian.Uint64(buf[hsOffMinEpoch:]),
		pageSize:      binary.BigEndian.Uint32(buf[hsOffPageSize:]),
		maxMem:        binary.BigEndian.Uint64(buf[hsOffMaxMem:]),
		trimWatermark: binary.BigEndian.Uint64(buf[hsOffTrimWatermark:]),
	}

	if r.versionTag != hardStateVersion {
		return hardStateRecord{}, ErrIncompatible
	}

	return r, nil
}
