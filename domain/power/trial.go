package power

import "math/rand/v2"

// trialStream is the fixed PCG stream selector shared by every trial.
const trialStream uint64 = 0x9e3779b97f4a7c15

// TrialSeed returns the seed of the 1-based trial index. It depends on the
// index alone, never on sample size, alpha or trial count.
func TrialSeed(trial int) uint64 {
	return uint64(trial)
}

// TrialRand creates the private random stream for a trial. Two calls with the
// same index yield identical sequences, in any process.
func TrialRand(trial int) *rand.Rand {
	return rand.New(rand.NewPCG(TrialSeed(trial), trialStream))
}
