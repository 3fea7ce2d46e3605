package games

import (
	"errors"
	"math"
	"reflect"
	"testing"
)

func TestMinePositionsDeterminism(t *testing.T) {
	first := MinePositions(0.4242, 5)

	for i := 0; i < 10; i++ {
		if got := MinePositions(0.4242, 5); !reflect.DeepEqual(got, first) {
			t.Fatalf("mine positions not deterministic, want: %v, got: %v", first, got)
		}
	}
}

func TestMinePositionsShape(t *testing.T) {
	for _, count := range []int{1, 5, 24} {
		positions := MinePositions(0.77, count)

		if len(positions) != count {
			t.Fatalf("want %d mines, got %d", count, len(positions))
		}

		seen := make(map[int]bool)
		for _, p := range positions {
			if p < 0 || p >= minesGridSize {
				t.Fatalf("position %d out of grid", p)
			}
			if seen[p] {
				t.Fatalf("duplicate position %d", p)
			}
			seen[p] = true
		}
	}
}

func TestMinesPlaySafeReveals(t *testing.T) {
	g := NewMines(0.01)

	random := 0.314159
	minesCount := 5

	mines := MinePositions(random, minesCount)
	mined := make(map[int]bool)
	for _, m := range mines {
		mined[m] = true
	}

	// Pick the first three safe tiles.
	var revealed []int
	for tile := 0; tile < minesGridSize && len(revealed) < 3; tile++ {
		if !mined[tile] {
			revealed = append(revealed, tile)
		}
	}

	res, err := g.Play(random, Params{Mines: &MinesParams{MinesCount: minesCount, Revealed: revealed}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !res.Won {
		t.Fatal("revealing only safe tiles must win")
	}

	// Compounding over (25, 20 safe): each step scales by the odds against
	// a safe pick, shaved by edge/steps.
	want := 1.0
	for i := 0; i < 3; i++ {
		want *= float64(25-i) / float64(20-i) * (1 - 0.01/3)
	}

	if math.Abs(res.Multiplier-want) > 1e-9 {
		t.Errorf("unexpected multiplier, want: %v, got: %v", want, res.Multiplier)
	}

	if res.Multiplier <= 1 {
		t.Errorf("three safe reveals with 5 mines must pay above 1x, got: %v", res.Multiplier)
	}
}

func TestMinesPlayHitMine(t *testing.T) {
	g := NewMines(0.01)

	random := 0.9001
	mines := MinePositions(random, 10)

	res, err := g.Play(random, Params{Mines: &MinesParams{MinesCount: 10, Revealed: []int{mines[0]}}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Won {
		t.Fatal("revealing a mined tile must lose")
	}

	if res.Outcome["hit_tile"].(int) != mines[0] {
		t.Errorf("unexpected hit tile, want: %d, got: %v", mines[0], res.Outcome["hit_tile"])
	}
}

func TestMinesMultiplierGrowsWithReveals(t *testing.T) {
	g := NewMines(0.01)

	random := 0.1234
	mines := MinePositions(random, 5)
	mined := make(map[int]bool)
	for _, m := range mines {
		mined[m] = true
	}

	var safe []int
	for tile := 0; tile < minesGridSize; tile++ {
		if !mined[tile] {
			safe = append(safe, tile)
		}
	}

	prev := 0.0
	for k := 1; k <= 5; k++ {
		res, err := g.Play(random, Params{Mines: &MinesParams{MinesCount: 5, Revealed: safe[:k]}})
		if err != nil {
			t.Fatalf("unexpected error at %d reveals: %v", k, err)
		}

		if res.Multiplier <= prev {
			t.Fatalf("multiplier must grow with reveals, got %v after %v at k=%d",
				res.Multiplier, prev, k)
		}
		prev = res.Multiplier
	}
}

func TestMinesInvalidParams(t *testing.T) {
	g := NewMines(0.01)

	cases := []struct {
		name   string
		params Params
	}{
		{
			name:   "Missing",
			params: Params{},
		},
		{
			name:   "NoMines",
			params: Params{Mines: &MinesParams{MinesCount: 0, Revealed: []int{0}}},
		},
		{
			name:   "FullGridOfMines",
			params: Params{Mines: &MinesParams{MinesCount: 25, Revealed: []int{0}}},
		},
		{
			name:   "NoReveals",
			params: Params{Mines: &MinesParams{MinesCount: 5, Revealed: nil}},
		},
		{
			name:   "TooManyReveals",
			params: Params{Mines: &MinesParams{MinesCount: 24, Revealed: []int{0, 1}}},
		},
		{
			name:   "TileOutOfGrid",
			params: Params{Mines: &MinesParams{MinesCount: 5, Revealed: []int{25}}},
		},
		{
			name:   "DuplicateTile",
			params: Params{Mines: &MinesParams{MinesCount: 5, Revealed: []int{3, 3}}},
		},
	}

	for _, tc := range cases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := g.Play(0.5, tc.params)
			if !errors.Is(err, ErrInvalidParams) {
				t.Errorf("want ErrInvalidParams, got: %v", err)
			}
		})
	}
}
