package trackingcode

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestGeneratedCodesAreValid(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("IsValid(Generate()) for any tag", prop.ForAll(
		func(tag string) bool {
			g := New(tag, nil)
			code, err := g.Generate()
			if err != nil {
				return false
			}
			return g.IsValid(code) && g.IsValid(Normalize(code))
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}

func TestNormalizeIdempotent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("Normalize(Normalize(s)) == Normalize(s)", prop.ForAll(
		func(s string) bool {
			return Normalize(Normalize(s)) == Normalize(s)
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}
