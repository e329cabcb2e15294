// Package schedule resolves wall-clock timestamps to campaign epoch
// indices. Resolution is a pure function of the campaign timeline, so
// callers can re-run it freely: the same timestamp always yields the same
// index, and indices are non-decreasing as time advances.
package schedule

import "errors"

// Timing errors. Both are guards the caller must apply before trusting the
// scan: inside [start, end) the scan always terminates on an epoch.
var (
	// ErrNotStarted is returned for timestamps before the campaign start.
	ErrNotStarted = errors.New("campaign not started")

	// ErrEnded is returned for timestamps at or beyond the end of the
	// last epoch.
	ErrEnded = errors.New("campaign ended")
)

// Timeline is the slice of a campaign config the scheduler needs.
type Timeline interface {
	StartingTime() int64
	NumEpochs() uint16
	DurationSeconds(epoch uint16) (uint32, error)
}

// EpochAt returns the epoch index whose window contains now. Windows are
// half-open [start, start+duration): a timestamp exactly on a boundary
// belongs to the later epoch.
func EpochAt(tl Timeline, now int64) (uint16, error) {
	start := tl.StartingTime()
	if now < start {
		return 0, ErrNotStarted
	}
	for e := uint16(0); e < tl.NumEpochs(); e++ {
		d, err := tl.DurationSeconds(e)
		if err != nil {
			return 0, err
		}
		end := start + int64(d)
		if now < end {
			return e, nil
		}
		start = end
	}
	return 0, ErrEnded
}

// EpochStart returns the wall-clock start of the given epoch.
func EpochStart(tl Timeline, epoch uint16) (int64, error) {
	start := tl.StartingTime()
	for e := uint16(0); e < epoch; e++ {
		d, err := tl.DurationSeconds(e)
		if err != nil {
			return 0, err
		}
		start += int64(d)
	}
	return start, nil
}

// End returns the campaign end (exclusive).
func End(tl Timeline) (int64, error) {
	end := tl.StartingTime()
	for e := uint16(0); e < tl.NumEpochs(); e++ {
		d, err := tl.DurationSeconds(e)
		if err != nil {
			return 0, err
		}
		end += int64(d)
	}
	return end, nil
}
