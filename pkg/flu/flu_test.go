package flu_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/flunode/flu/pkg/flu"
)

func open(t *testing.T, dir string) *flu.FLU {
	t.Helper()

	f, err := flu.Open(flu.Options{Dir: dir, PageSize: 8, MaxMem: 64 << 20})
	require.NoError(t, err)

	return f
}

// TestEndToEndScenario1 matches spec.md §8 scenario 1.
func TestEndToEndScenario1(t *testing.T) {
	t.Parallel()

	f := open(t, t.TempDir())
	defer func() { _ = f.Stop() }()

	maxLPN, err := f.Seal(1)
	require.NoError(t, err)
	require.Equal(t, uint64(0), maxLPN)

	err = f.Write(1, 1, []byte("ABCDEFGH"))
	require.ErrorIs(t, err, flu.ErrBadEpoch)

	err = f.Write(2, 1, []byte("ABCDEFGH"))
	require.NoError(t, err)

	got, err := f.Read(2, 1)
	require.NoError(t, err)
	require.Equal(t, []byte("ABCDEFGH"), got)
}

// TestEndToEndScenario2 matches spec.md §8 scenario 2: repeated write fails
// overwritten and leaves the original payload intact.
func TestEndToEndScenario2(t *testing.T) {
	t.Parallel()

	f := open(t, t.TempDir())
	defer func() { _ = f.Stop() }()

	require.NoError(t, f.Write(1, 5, []byte("xxxxxxxx")))

	err := f.Write(1, 5, []byte("yyyyyyyy"))
	require.ErrorIs(t, err, flu.ErrOverwritten)

	got, err := f.Read(1, 5)
	require.NoError(t, err)
	require.Equal(t, []byte("xxxxxxxx"), got)
}

// TestEndToEndScenario3 matches spec.md §8 scenario 3: trim then read then
// rewrite attempt.
func TestEndToEndScenario3(t *testing.T) {
	t.Parallel()

	f := open(t, t.TempDir())
	defer func() { _ = f.Stop() }()

	require.NoError(t, f.Write(1, 7, []byte("zzzzzzzz")))
	require.NoError(t, f.Trim(1, 7))

	_, err := f.Read(1, 7)
	require.ErrorIs(t, err, flu.ErrTrimmed)

	err = f.Write(1, 7, []byte("qqqqqqqq"))
	require.ErrorIs(t, err, flu.ErrOverwritten)
}

// TestEndToEndScenario4 matches spec.md §8 scenario 4: fill then repeated
// fill.
func TestEndToEndScenario4(t *testing.T) {
	t.Parallel()

	f := open(t, t.TempDir())
	defer func() { _ = f.Stop() }()

	require.NoError(t, f.Fill(1, 9))

	_, err := f.Read(1, 9)
	require.ErrorIs(t, err, flu.ErrTrimmed)

	err = f.Fill(1, 9)
	require.ErrorIs(t, err, flu.ErrTrimmed)
}

// TestEndToEndScenario5 matches spec.md §8 scenario 5: restart recovers
// max_logical_page and the already-established epoch fence semantics.
func TestEndToEndScenario5(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	f := open(t, dir)
	require.NoError(t, f.Write(1, 3, []byte("aaaaaaaa")))
	require.NoError(t, f.Stop())

	f2 := open(t, dir)
	defer func() { _ = f2.Stop() }()

	st, err := f2.Status()
	require.NoError(t, err)
	require.Equal(t, uint64(3), st.MaxLogicalPage)

	maxLPN, err := f2.Seal(1)
	require.NoError(t, err)
	require.Equal(t, uint64(3), maxLPN)

	st, err = f2.Status()
	require.NoError(t, err)
	require.Equal(t, uint64(2), st.MinEpoch)
}

// TestEndToEndScenario6 matches spec.md §8 scenario 6: bad requests leave
// state unchanged.
func TestEndToEndScenario6(t *testing.T) {
	t.Parallel()

	f := open(t, t.TempDir())
	defer func() { _ = f.Stop() }()

	err := f.Write(1, 0, []byte("ABCDEFGH"))
	var badReq *flu.BadRequestError
	require.ErrorAs(t, err, &badReq)

	err = f.Write(1, 2, []byte("short"))
	require.ErrorAs(t, err, &badReq)

	st, err := f.Status()
	require.NoError(t, err)
	require.Equal(t, uint64(0), st.MaxLogicalPage)
}

func TestRead_NeverWritten_ReturnsUnwritten(t *testing.T) {
	t.Parallel()

	f := open(t, t.TempDir())
	defer func() { _ = f.Stop() }()

	_, err := f.Read(1, 42)
	require.ErrorIs(t, err, flu.ErrUnwritten)
}

func TestWrite_AtMaxMemBoundary_Rejected(t *testing.T) {
	t.Parallel()

	const pageSize = 8
	const overhead = 10
	const maxMem = (overhead + pageSize) * 4 // room for exactly LPNs 0..3

	f, err := flu.Open(flu.Options{Dir: t.TempDir(), PageSize: pageSize, MaxMem: maxMem})
	require.NoError(t, err)
	defer func() { _ = f.Stop() }()

	// Largest accepted LPN is floor(max_mem/slot_size) - 1 = 3.
	require.NoError(t, f.Write(1, 3, []byte("ABCDEFGH")))

	err = f.Write(1, 4, []byte("ABCDEFGH"))
	var badReq *flu.BadRequestError
	require.ErrorAs(t, err, &badReq)
}

func TestTornWrite_TruncatedTailMarker_ReadsAsUnwritten(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	f := open(t, dir)
	require.NoError(t, f.Write(1, 2, []byte("ABCDEFGH")))
	require.NoError(t, f.Stop())

	// Simulate a crash mid-write: truncate the memfile so the committed
	// slot's tail marker is missing.
	path := filepath.Join(dir, "flu.data")

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.NoError(t, os.Truncate(path, info.Size()-1))

	f2 := open(t, dir)
	defer func() { _ = f2.Stop() }()

	_, err = f2.Read(1, 2)
	require.ErrorIs(t, err, flu.ErrUnwritten)
}

func TestGeometryMismatch_OnReopen_IsFatal(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	f := open(t, dir)
	require.NoError(t, f.Stop())

	_, err := flu.Open(flu.Options{Dir: dir, PageSize: 16, MaxMem: 64 << 20})
	require.ErrorIs(t, err, flu.ErrGeometryMismatch)
}

func TestSecondOpen_SameDir_IsBusy(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	f := open(t, dir)
	defer func() { _ = f.Stop() }()

	_, err := flu.Open(flu.Options{Dir: dir, PageSize: 8, MaxMem: 64 << 20})
	require.ErrorIs(t, err, flu.ErrBusy)
}

func TestStop_ThenAnyOp_ReturnsClosed(t *testing.T) {
	t.Parallel()

	f := open(t, t.TempDir())
	require.NoError(t, f.Stop())

	_, err := f.Status()
	require.ErrorIs(t, err, flu.ErrClosed)
}

func TestStop_CalledTwice_SecondCallIsNoop(t *testing.T) {
	t.Parallel()

	f := open(t, t.TempDir())
	require.NoError(t, f.Stop())
	require.NoError(t, f.Stop())
}

// TestRestart_StatusAndReadsIdentical exercises the §8 restart property
// beyond scenario 5: reads of already-written and already-trimmed LPNs agree
// before and after a stop/reopen cycle.
func TestRestart_StatusAndReadsIdentical(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	f := open(t, dir)
	require.NoError(t, f.Write(1, 1, []byte("AAAAAAAA")))
	require.NoError(t, f.Write(1, 2, []byte("BBBBBBBB")))
	require.NoError(t, f.Trim(1, 2))

	before, err := f.Status()
	require.NoError(t, err)
	require.NoError(t, f.Stop())

	f2 := open(t, dir)
	defer func() { _ = f2.Stop() }()

	after, err := f2.Status()
	require.NoError(t, err)

	if diff := cmp.Diff(before, after); diff != "" {
		t.Fatalf("status mismatch across restart (-before +after):\n%s", diff)
	}

	got, err := f2.Read(1, 1)
	require.NoError(t, err)
	require.True(t, bytes.Equal(got, []byte("AAAAAAAA")))

	_, err = f2.Read(1, 2)
	require.ErrorIs(t, err, flu.ErrTrimmed)
}

func TestTrimWatermark_MonotonicAcrossRestart(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	f := open(t, dir)
	require.NoError(t, f.Write(1, 1, []byte("AAAAAAAA")))
	require.NoError(t, f.Write(1, 2, []byte("BBBBBBBB")))
	require.NoError(t, f.Trim(1, 2))
	require.NoError(t, f.Trim(1, 1))
	require.NoError(t, f.Stop())

	f2 := open(t, dir)
	defer func() { _ = f2.Stop() }()

	st, err := f2.Status()
	require.NoError(t, err)
	require.Equal(t, uint64(2), st.TrimWatermark)
}

func TestTrim_OnUnwritten_ReturnsUnwritten(t *testing.T) {
	t.Parallel()

	f := open(t, t.TempDir())
	defer func() { _ = f.Stop() }()

	err := f.Trim(1, 11)
	require.ErrorIs(t, err, flu.ErrUnwritten)
}

func TestFill_OnWritten_ReturnsOverwritten_NotTrim(t *testing.T) {
	// Regression test for the Open Question resolved in DESIGN.md: the
	// source's own comments flag fill-on-written as possibly silently
	// converting to trim. This implementation never does that.
	t.Parallel()

	f := open(t, t.TempDir())
	defer func() { _ = f.Stop() }()

	require.NoError(t, f.Write(1, 4, []byte("CCCCCCCC")))

	err := f.Fill(1, 4)
	require.ErrorIs(t, err, flu.ErrOverwritten)

	got, err := f.Read(1, 4)
	require.NoError(t, err)
	require.Equal(t, []byte("CCCCCCCC"), got)
}

func TestSeal_FencesOutLowerEpochs(t *testing.T) {
	t.Parallel()

	f := open(t, t.TempDir())
	defer func() { _ = f.Stop() }()

	_, err := f.Seal(5)
	require.NoError(t, err)

	err = f.Write(5, 1, []byte("AAAAAAAA"))
	require.ErrorIs(t, err, flu.ErrBadEpoch)

	_, err = f.Seal(4)
	require.ErrorIs(t, err, flu.ErrBadEpoch)

	require.NoError(t, f.Write(6, 1, []byte("AAAAAAAA")))
}

func TestErrorsAs_BadRequestError(t *testing.T) {
	t.Parallel()

	f := open(t, t.TempDir())
	defer func() { _ = f.Stop() }()

	err := f.Write(1, 0, []byte("AAAAAAAA"))

	var badReq *flu.BadRequestError
	if !errors.As(err, &badReq) {
		t.Fatalf("want *BadRequestError, got %T: %v", err, err)
	}
}
