package idgen

import "math"

// AdaptiveConfig controls how ID length grows with repository size.
type AdaptiveConfig struct {
	// MaxCollisionProbability is the largest acceptable birthday-collision
	// probability for a newly generated ID.
	MaxCollisionProbability float64
	MinLength               int
	MaxLength               int
}

// DefaultAdaptiveConfig returns the defaults used when the database config
// table carries no overrides.
func DefaultAdaptiveConfig() AdaptiveConfig {
	return AdaptiveConfig{
		MaxCollisionProbability: 0.25,
		MinLength:               MinLength,
		MaxLength:               MaxLength,
	}
}

// CollisionProbability approximates the chance that numIssues IDs of the given
// length contain a collision: P ≈ 1 - e^(-n²/(2·36^L)).
func CollisionProbability(numIssues, length int) float64 {
	space := math.Pow(36, float64(length))
	n := float64(numIssues)
	return 1 - math.Exp(-(n*n)/(2*space))
}

// ComputeAdaptiveLength returns the smallest length in [minLength, maxLength]
// whose collision probability stays at or below maxProb, or maxLength when
// none does.
func ComputeAdaptiveLength(numIssues, minLength, maxLength int, maxProb float64) int {
	if minLength > maxLength {
		minLength = maxLength
	}
	for length := minLength; length <= maxLength; length++ {
		if CollisionProbability(numIssues, length) <= maxProb {
			return length
		}
	}
	return maxLength
}

// Length applies ComputeAdaptiveLength with the receiver's bounds.
func (c AdaptiveConfig) Length(numIssues int) int {
	return ComputeAdaptiveLength(numIssues, c.MinLength, c.MaxLength, c.MaxCollisionProbability)
}
