package flu

// epochGuard fences stale clients out per spec.md §4.2. It has no locking of
// its own - every access happens on the dispatcher's single owner goroutine,
// so a plain field is sufficient; see dispatcher.go.
type epochGuard struct {
	minEpoch uint64
}

// check rejects epoch < minEpoch. It has no side effects either way.
func (g *epochGuard) check(epoch uint64) error {
	if epoch < g.minEpoch {
		return ErrBadEpoch
	}

	return nil
}

// seal bumps minEpoch to epoch+1 if epoch is acceptable, per spec.md §4.2.
// Returns [ErrBadEpoch] (and leaves minEpoch unchanged) if epoch is below
// minEpoch; callers are responsible for flushing hard state and computing
// the reported max_logical_page.
func (g *epochGuard) seal(epoch uint64) error {
	if epoch < g.minEpoch {
		return ErrBadEpoch
	}

	g.minEpoch = epoch + 1

	return nil
}
