package ledger

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestClaimSequenceBounded verifies claims never overshoot supply or go backwards.
// Property: for any supply and claim count, claimed == min(supply, successes) and never decreases.
func TestClaimSequenceBounded(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("claims stay within supply", prop.ForAll(
		func(supply uint8, attempts uint8) bool {
			rec, err := Initialize("C", "n", "", uint64(supply), testNow)
			if err != nil {
				return false
			}
			var last uint64
			okCount := 0
			for i := 0; i < int(attempts); i++ {
				n, err := rec.Claim("X")
				if err == nil {
					okCount++
				} else if err != ErrNoTokensLeft {
					return false
				}
				if rec.TokensClaimed < last || rec.TokensClaimed > rec.TokenSupply {
					return false
				}
				if err == nil && n != rec.TokensClaimed {
					return false
				}
				last = rec.TokensClaimed
			}
			want := int(attempts)
			if int(supply) < want {
				want = int(supply)
			}
			return okCount == want && rec.TokensClaimed == uint64(want)
		},
		gen.UInt8(),
		gen.UInt8(),
	))

	properties.TestingRun(t)
}

// TestDeactivateGate verifies only the creator closes an event and closing blocks claims.
// Property: Deactivate(caller) succeeds iff caller == creator; afterwards Claim fails EventInactive.
func TestDeactivateGate(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("deactivate is creator-only and final", prop.ForAll(
		func(creator, caller string, supply uint16) bool {
			rec, err := Initialize(Identity(creator), "n", "", uint64(supply), testNow)
			if err != nil {
				return false
			}
			before := rec
			err = rec.Deactivate(Identity(caller))
			if creator != caller {
				return err == ErrUnauthorized && rec == before
			}
			if err != nil || rec.IsActive {
				return false
			}
			_, err = rec.Claim(Identity(caller))
			return err == ErrEventInactive && rec.TokensClaimed == 0
		},
		gen.OneConstOf("alice", "bob"),
		gen.OneConstOf("alice", "bob", "carol"),
		gen.UInt16(),
	))

	properties.TestingRun(t)
}

// TestLayoutRoundTrip verifies the fixed layout preserves every field.
func TestLayoutRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("marshal then unmarshal is identity", prop.ForAll(
		func(name, desc string, supply uint32, claims uint8, closed bool) bool {
			if len(name) > MaxNameLen {
				name = name[:MaxNameLen]
			}
			if len(desc) > MaxDescriptionLen {
				desc = desc[:MaxDescriptionLen]
			}
			rec, err := Initialize("creator", name, desc, uint64(supply), testNow)
			if err != nil {
				return false
			}
			for i := 0; i < int(claims); i++ {
				_, _ = rec.Claim("x")
			}
			if closed {
				_ = rec.Deactivate("creator")
			}
			buf, err := rec.MarshalBinary()
			if err != nil || len(buf) != RecordSize {
				return false
			}
			var got EventRecord
			return got.UnmarshalBinary(buf) == nil && got == rec
		},
		gen.AlphaString(),
		gen.AlphaString(),
		gen.UInt32(),
		gen.UInt8(),
		gen.Bool(),
	))

	properties.TestingRun(t)
}
