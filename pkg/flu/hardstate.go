package flu

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	natomic "github.com/natefinch/atomic"
)

const hardStateFileName = "hard-state"

// loadOrInitHardState implements spec.md §4.4:
//
//   - file absent: initialize {min_epoch=0, trim_watermark=0} with the
//     caller-supplied geometry
//   - file present, geometry mismatch: fatal [ErrGeometryMismatch]
//   - file present, geometry matches: adopt stored values
func loadOrInitHardState(dir string, pageSize uint32, maxMem uint64) (hardStateRecord, error) {
	path := filepath.Join(dir, hardStateFileName)

	buf, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return hardStateRecord{
			versionTag: hardStateVersion,
			pageSize:   pageSize,
			maxMem:     maxMem,
		}, nil
	}

	if err != nil {
		return hardStateRecord{}, fmt.Errorf("flu: read hard state: %w", err)
	}

	rec, err := decodeHardState(buf)
	if err != nil {
		return hardStateRecord{}, err
	}

	if rec.pageSize != pageSize || rec.maxMem != maxMem {
		return hardStateRecord{}, fmt.Errorf(
			"%w: on-disk page_size=%d max_mem=%d, got page_size=%d max_mem=%d",
			ErrGeometryMismatch, rec.pageSize, rec.maxMem, pageSize, maxMem,
		)
	}

	return rec, nil
}

// flushHardState durably persists rec via write-to-tmp + atomic rename
// (spec.md §3, §4.4), following the same pattern as the teacher's ticket
// cache writer: natefinch/atomic.WriteFile handles the tmp+rename itself,
// so there is no separate cleanup path to get wrong.
func flushHardState(dir string, rec hardStateRecord) error {
	path := filepath.Join(dir, hardStateFileName)

	err := natomic.WriteFile(path, bytes.NewReader(encodeHardState(rec)))
	if err != nil {
		return fmt.Errorf("flu: flush hard state: %w", err)
	}

	return nil
}
