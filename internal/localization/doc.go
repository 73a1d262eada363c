// Package localization implements a SIR particle filter that tracks a
// unicycle from noisy odometry and ranges to known landmarks.
//
// One tick of the reference loop:
//
//	z, ud := f.Observe(xTrue, xDR, u, landmarks, dt) // truth, sensing, dead reckoning
//	cov, err := f.Localize(z, ud, dt)                // predict, weight, resample
//	est := f.Estimate()
//
// State vectors are (x, y, heading, speed). Randomness comes from the
// *rand.Rand passed to [New]; a seeded source makes a run reproducible.
package localization
