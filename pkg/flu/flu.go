package flu

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/flunode/flu/pkg/fs"
)

const memfileName = "flu.data"
const lockFileName = "flu.lock"

// FLU is a handle to one open Flash Log Unit. All methods are safe for
// concurrent use by multiple goroutines - requests are linearized onto a
// single owner goroutine (see dispatcher.go) in arrival order.
//
// A FLU is single-use: after [FLU.Stop], every method returns [ErrClosed].
type FLU struct {
	dispatch *dispatcher
	store    *pageStore
	lock     *fs.Lock
	fsys     fs.FS
}

// Open creates or reopens a FLU instance in opts.Dir.
//
// Open runs the Recovery Scanner (spec.md §4.5) synchronously before
// returning, so the returned handle is immediately ready to serve requests -
// there is no lazy first-request initialization (see Design Notes §9).
//
// Possible errors: [ErrGeometryMismatch] and [ErrIncompatible] if hard state
// on disk disagrees with opts or this build, [ErrBusy] if another handle
// already owns opts.Dir, and wrapped I/O errors if the directory or memfile
// cannot be opened.
func Open(opts Options) (*FLU, error) {
	if opts.Dir == "" {
		return nil, errors.New("flu: Dir is required")
	}

	pageSize := opts.PageSize
	if pageSize == 0 {
		pageSize = DefaultPageSize
	}

	maxMem := opts.MaxMem
	if maxMem == 0 {
		maxMem = DefaultMaxMem
	}

	fsys := fs.NewReal()

	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("flu: create dir: %w", err)
	}

	locker := fs.NewLocker(fsys)

	lock, err := locker.TryLock(filepath.Join(opts.Dir, lockFileName))
	if err != nil {
		if errors.Is(err, fs.ErrWouldBlock) {
			return nil, ErrBusy
		}

		return nil, fmt.Errorf("flu: acquire instance lock: %w", err)
	}

	hs, err := loadOrInitHardState(opts.Dir, pageSize, maxMem)
	if err != nil {
		_ = lock.Close()
		return nil, err
	}

	store, err := openPageStore(fsys, filepath.Join(opts.Dir, memfileName), pageSize, maxMem)
	if err != nil {
		_ = lock.Close()
		return nil, err
	}

	maxLogicalPage, err := recoverMaxLogicalPage(store)
	if err != nil {
		_ = store.close()
		_ = lock.Close()

		return nil, err
	}

	if err := flushHardState(opts.Dir, hs); err != nil {
		_ = store.close()
		_ = lock.Close()

		return nil, err
	}

	c := &core{
		dir:            opts.Dir,
		store:          store,
		epoch:          epochGuard{minEpoch: hs.minEpoch},
		hs:             hs,
		maxLogicalPage: maxLogicalPage,
	}

	return &FLU{
		dispatch: startDispatcher(c),
		store:    store,
		lock:     lock,
		fsys:     fsys,
	}, nil
}

// Write implements spec.md §6 write.
func (f *FLU) Write(epoch, lpn uint64, page []byte) error {
	var opErr error

	if ok := f.dispatch.submit(func(c *core) {
		opErr = c.write(epoch, lpn, page)
	}); !ok {
		return ErrClosed
	}

	return opErr
}

// Read implements spec.md §6 read.
func (f *FLU) Read(epoch, lpn uint64) ([]byte, error) {
	var (
		page  []byte
		opErr error
	)

	if ok := f.dispatch.submit(func(c *core) {
		page, opErr = c.read(epoch, lpn)
	}); !ok {
		return nil, ErrClosed
	}

	return page, opErr
}

// Trim implements spec.md §6 trim.
func (f *FLU) Trim(epoch, lpn uint64) error {
	var opErr error

	if ok := f.dispatch.submit(func(c *core) {
		opErr = c.trim(epoch, lpn)
	}); !ok {
		return ErrClosed
	}

	return opErr
}

// Fill implements spec.md §6 fill.
func (f *FLU) Fill(epoch, lpn uint64) error {
	var opErr error

	if ok := f.dispatch.submit(func(c *core) {
		opErr = c.fill(epoch, lpn)
	}); !ok {
		return ErrClosed
	}

	return opErr
}

// Seal implements spec.md §6 seal / §4.2.
func (f *FLU) Seal(epoch uint64) (uint64, error) {
	var (
		maxLPN uint64
		opErr  error
	)

	if ok := f.dispatch.submit(func(c *core) {
		maxLPN, opErr = c.seal(epoch)
	}); !ok {
		return 0, ErrClosed
	}

	return maxLPN, opErr
}

// Status implements spec.md §6 status.
func (f *FLU) Status() (Status, error) {
	var (
		st    Status
		opErr error
	)

	if ok := f.dispatch.submit(func(c *core) {
		st = c.statusSnapshot()
	}); !ok {
		return Status{}, ErrClosed
	}

	return st, opErr
}

// Stop gracefully shuts the FLU down: flushes hard state, closes the
// memfile, and releases the single-instance lock. After Stop, every method
// returns [ErrClosed].
//
// Stop is idempotent: a second call is a no-op that returns nil.
func (f *FLU) Stop() error {
	var flushErr error

	ran := f.dispatch.stop(func(c *core) {
		flushErr = flushHardState(c.dir, c.hs)
	})
	if !ran {
		return nil
	}

	closeErr := f.store.close()
	lockErr := f.lock.Close()

	return errors.Join(flushErr, closeErr, lockErr)
}
