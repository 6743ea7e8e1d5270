package voice

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestProperty_ActiveVoicesHaveDistinctNotes is invariant I3 plus the
// voice-steal safety law: whatever sequence of note-ons arrives, no two
// active slots ever hold the same note (a stolen voice's identity never
// leaks into its replacement's).
func TestProperty_ActiveVoicesHaveDistinctNotes(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("no two active voices share a note after any note-on sequence", prop.ForAll(
		func(notes []int) bool {
			e := NewEngine(testSampleRate)
			seenNote := make(map[int]bool)
			for _, n := range notes {
				n = n & 0x7F
				if seenNote[n] {
					continue // duplicate note-on without an intervening note-off is out of scope here
				}
				seenNote[n] = true
				e.noteOn(n, 100)
			}

			seen := make(map[int]bool)
			for _, s := range e.slots {
				if !s.active {
					continue
				}
				if seen[s.note] {
					return false
				}
				seen[s.note] = true
			}
			return true
		},
		gen.SliceOfN(20, gen.IntRange(0, 127)),
	))

	properties.TestingRun(t)
}
