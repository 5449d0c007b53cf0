package flu

import (
	"fmt"
	"io"
	"os"

	"github.com/flunode/flu/pkg/fs"
)

// pageStore backs one FLU instance with a single file of up to maxMem bytes
// (spec.md §4.1: "memfile"). It exposes positioned read/write of whole
// slots; durability of an individual write is the caller's policy, the
// tail-marker protocol (see format.go) is what makes recovery correct after
// a crash.
type pageStore struct {
	file     fs.File
	pageSize uint32
	maxMem   uint64
}

func openPageStore(fsys fs.FS, path string, pageSize uint32, maxMem uint64) (*pageStore, error) {
	f, err := fsys.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("flu: open memfile: %w", err)
	}

	return &pageStore{file: f, pageSize: pageSize, maxMem: maxMem}, nil
}

func (s *pageStore) close() error {
	return s.file.Close()
}

// readSlot reads the raw bytes of lpn's slot. A read that lands beyond EOF
// returns a short (possibly empty) slice and no error - callers treat a
// short read as an unwritten slot, per spec.md §4.1.
func (s *pageStore) readSlot(lpn uint64) ([]byte, error) {
	off := slotOffset(lpn, s.pageSize)
	want := slotSize(s.pageSize)

	buf := make([]byte, want)

	n, err := s.file.ReadAt(buf, off)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("flu: read slot %d: %w", lpn, err)
	}

	return buf[:n], nil
}

// readStatusPrefix reads just the 9-byte status+LPN prefix of a slot,
// used by write(), trim() and fill() to decide the transition without
// paying for the full payload.
func (s *pageStore) readStatusPrefix(lpn uint64) ([]byte, error) {
	off := slotOffset(lpn, s.pageSize)
	buf := make([]byte, slotOffPayload)

	n, err := s.file.ReadAt(buf, off)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("flu: read slot %d prefix: %w", lpn, err)
	}

	return buf[:n], nil
}

// writeSlot writes raw at lpn's offset in one positioned write call. write()
// passes a full slot, so a crash mid-write leaves a detectable torn tail,
// never a half-updated status byte with a stale tail marker; fill() passes
// only the 9-byte status+LPN prefix.
func (s *pageStore) writeSlot(lpn uint64, raw []byte) error {
	off := slotOffset(lpn, s.pageSize)

	_, err := s.file.WriteAt(raw, off)
	if err != nil {
		return fmt.Errorf("flu: write slot %d: %w", lpn, err)
	}

	return nil
}

// writeStatusByte flips just the one-byte status header in place - used by
// trim, which (per spec.md §4.3) only ever moves a slot from written to
// trimmed without touching the payload.
func (s *pageStore) writeStatusByte(lpn uint64, status byte) error {
	off := slotOffset(lpn, s.pageSize)

	_, err := s.file.WriteAt([]byte{status}, off)
	if err != nil {
		return fmt.Errorf("flu: write slot %d status: %w", lpn, err)
	}

	return nil
}

// size returns the current memfile size in bytes.
func (s *pageStore) size() (int64, error) {
	info, err := s.file.Stat()
	if err != nil {
		return 0, fmt.Errorf("flu: stat memfile: %w", err)
	}

	return info.Size(), nil
}
