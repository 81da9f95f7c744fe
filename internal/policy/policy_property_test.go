package policy

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestClassify_Properties checks the band rules for arbitrary thresholds.
// Property: Classify agrees with the < / >= comparisons for every age.
func TestClassify_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("bands follow the half-open thresholds", prop.ForAll(
		func(legal, gap, age int) bool {
			p := Default()
			p.LegalAge = legal
			p.ConfidentAge = legal + gap
			switch p.Classify(age) {
			case BandConfident:
				return age >= p.ConfidentAge
			case BandUncertain:
				return age >= p.LegalAge && age < p.ConfidentAge
			case BandUnderage:
				return age < p.LegalAge
			}
			return false
		},
		gen.IntRange(0, 40),
		gen.IntRange(0, 20),
		gen.IntRange(0, 120),
	))

	properties.Property("classification is monotonic in age", prop.ForAll(
		func(a, b int) bool {
			p := Default()
			if a > b {
				a, b = b, a
			}
			return p.Classify(a) <= p.Classify(b)
		},
		gen.IntRange(0, 120),
		gen.IntRange(0, 120),
	))

	properties.TestingRun(t)
}
