package flu

import (
	"errors"
	"fmt"
)

// Canonical protocol outcomes.
//
// These are routine results, not exceptional conditions - callers branch on
// them with [errors.Is] the same way they'd branch on a tagged result type:
//
//	err := f.Write(epoch, lpn, page)
//	switch {
//	case errors.Is(err, flu.ErrBadEpoch):
//	    // retry with a newer epoch
//	case errors.Is(err, flu.ErrOverwritten):
//	    // the slot already holds a value; move on
//	}
var (
	// ErrBadEpoch indicates the request's epoch is below min_epoch.
	//
	// Recovery: obtain a newer epoch (re-seal or re-fetch the current
	// projection) and retry.
	ErrBadEpoch = errors.New("flu: bad epoch")

	// ErrOverwritten indicates a write landed on a slot that is already
	// written or trimmed, or a fill landed on a written slot (a fill on a
	// trimmed slot reports [ErrTrimmed]).
	//
	// Recovery: this is not a failure from the log's perspective - the slot
	// already has a value, move on to the next LPN.
	ErrOverwritten = errors.New("flu: overwritten")

	// ErrUnwritten indicates a read or trim targeted a slot that has never
	// been committed. For a read this includes a torn write, which is
	// indistinguishable from unwritten by design; a trim of a torn slot
	// succeeds.
	//
	// Recovery: the caller has raced ahead of the writer; retry later or
	// treat the LPN as not-yet-present.
	ErrUnwritten = errors.New("flu: unwritten")

	// ErrTrimmed indicates the slot has been reclaimed (trimmed or filled).
	//
	// Recovery: advance past this LPN; its value is gone for good.
	ErrTrimmed = errors.New("flu: trimmed")

	// ErrClosed indicates the FLU has been stopped.
	//
	// Recovery: none - the handle is single-use after [FLU.Stop].
	ErrClosed = errors.New("flu: closed")

	// ErrBusy indicates another handle already owns this directory.
	//
	// Recovery: none from this process; the owning handle must be stopped
	// first.
	ErrBusy = errors.New("flu: busy")
)

// Fatal errors. These fail construction outright and are never retried
// automatically - they indicate an operator or filesystem problem.
var (
	// ErrGeometryMismatch indicates the on-disk hard state's page_size or
	// max_mem disagrees with the geometry passed to [Open].
	ErrGeometryMismatch = errors.New("flu: geometry mismatch")

	// ErrIncompatible indicates the hard-state file's version tag is not
	// one this build understands.
	ErrIncompatible = errors.New("flu: incompatible hard state version")

	// ErrCorrupt indicates the hard-state file exists but cannot be parsed.
	ErrCorrupt = errors.New("flu: corrupt hard state")
)

// BadRequestError reports a precondition violation by the caller - a
// malformed request, not a protocol outcome. It never advances any state.
//
// Distinct from the canonical errors above: a buggy client that sends LPN 0
// or a short payload gets a typed, inspectable error rather than one of the
// four routine outcomes.
type BadRequestError struct {
	// Field names the offending request field (e.g. "lpn", "page_bytes").
	Field string
	// Reason is a short human-readable explanation.
	Reason string
}

func (e *BadRequestError) Error() string {
	return fmt.Sprintf("flu: bad request: %s: %s", e.Field, e.Reason)
}

func badRequest(field, reason string) error {
	return &BadRequestError{Field: field, Reason: reason}
}
