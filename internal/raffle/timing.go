package raffle

import "time"

const (
	// BaseSpinDuration is how long every spin lasts regardless of the field size.
	BaseSpinDuration = 6 * time.Second

	// PerParticipantSpin is added for each participant, up to MaxExtraSpin.
	PerParticipantSpin = 60 * time.Millisecond
	MaxExtraSpin       = 6 * time.Second

	// MinCycles and MaxCycles bound the number of wheel rotations shown.
	// They only shape the animation.
	MinCycles = 15
	MaxCycles = 25

	// DefaultFollowUp is the delay before the second celebration burst.
	DefaultFollowUp = 700 * time.Millisecond
)

// SpinDuration returns how long a draw over n participants spins:
// 6s plus 60ms per participant, the extra capped at 6s.
func SpinDuration(n int) time.Duration {
	if n < 0 {
		n = 0
	}
	extra := time.Duration(n) * PerParticipantSpin
	if extra > MaxExtraSpin {
		extra = MaxExtraSpin
	}
	return BaseSpinDuration + extra
}

func spinCycles(r RandomSource) int {
	return MinCycles + pickIndex(r, MaxCycles-MinCycles+1)
}
