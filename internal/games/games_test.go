package games

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"casino-core/internal/config"
)

func TestRegistryGet(t *testing.T) {
	r := NewRegistry(0.01)

	for _, game := range []config.Game{config.Dice, config.Crash, config.Mines} {
		if _, err := r.Get(game); err != nil {
			t.Errorf("unexpected error for %s: %v", game, err)
		}
	}

	_, err := r.Get("blackjack")
	if !errors.Is(err, ErrUnsupportedGame) {
		t.Errorf("want ErrUnsupportedGame, got: %v", err)
	}
}

// Long-run return to player must converge near 1-houseEdge for each game.
// Uniform draws stand in for the HMAC stream; the rules only see a float.
func TestRTPConvergence(t *testing.T) {
	if testing.Short() {
		t.Skip("statistical test")
	}

	const rounds = 200000
	rng := rand.New(rand.NewSource(1))

	cases := []struct {
		name    string
		play    func(random float64) (won bool, multiplier float64)
		wantRTP float64
		within  float64
	}{
		{
			name: "DiceTarget50Over",
			play: func(random float64) (bool, float64) {
				g := NewDice(0.01)
				res, err := g.Play(random, Params{Dice: &DiceParams{Target: 50, Direction: DiceOver}})
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return res.Won, res.Multiplier
			},
			wantRTP: 0.99,
			within:  0.02,
		},
		{
			name: "DiceTarget90Over",
			play: func(random float64) (bool, float64) {
				g := NewDice(0.01)
				res, err := g.Play(random, Params{Dice: &DiceParams{Target: 90, Direction: DiceOver}})
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return res.Won, res.Multiplier
			},
			wantRTP: 0.99,
			within:  0.04,
		},
		{
			name: "CrashCashout2x",
			play: func(random float64) (bool, float64) {
				g := NewCrash(0.01)
				res, err := g.Play(random, Params{Crash: &CrashParams{AutoCashout: 2.0}})
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return res.Won, res.Multiplier
			},
			wantRTP: 0.99,
			within:  0.02,
		},
	}

	for _, tc := range cases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			var staked, paid float64

			for i := 0; i < rounds; i++ {
				won, multiplier := tc.play(rng.Float64())

				staked++
				if won {
					paid += multiplier
				}
			}

			rtp := paid / staked
			if math.Abs(rtp-tc.wantRTP) > tc.within {
				t.Errorf("RTP did not converge, want: %v±%v, got: %v", tc.wantRTP, tc.within, rtp)
			}

			if rtp >= 1 {
				t.Errorf("expected value per unit stake must stay below 1.0, got: %v", rtp)
			}
		})
	}
}
