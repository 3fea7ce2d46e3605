package games

import (
	"fmt"
	"math"
)

type MinesParams struct {
	MinesCount int   `json:"mines_count" validate:"required,min=1,max=24"`
	Revealed   []int `json:"revealed" validate:"required,min=1,dive,min=0,max=24"`
}

type Mines struct {
	houseEdge float64
}

func NewMines(houseEdge float64) *Mines {
	return &Mines{houseEdge: houseEdge}
}

const minesGridSize = 25

// LCG constants for the mine-position shuffle. These are part of the wire
// contract: a verifier must reproduce the exact same positions from the
// committed draw, so they must never change for settled rounds.
const (
	lcgMultiplier = 1103515245
	lcgIncrement  = 12345
	lcgModulus    = 1 << 31
)

// MinePositions derives the mined cells from the committed draw via a seeded
// linear-congruential Fisher-Yates shuffle over the 25-cell index space. Not
// a second crypto draw: reproducibility from the same random value is what
// keeps the round verifiable.
func MinePositions(random float64, minesCount int) []int {
	grid := make([]int, minesGridSize)
	for i := range grid {
		grid[i] = i
	}

	seed := int64(math.Floor(random * (1 << 32)))

	for i := minesGridSize - 1; i > 0; i-- {
		seed = (seed*lcgMultiplier + lcgIncrement) % lcgModulus
		j := seed % int64(i+1)
		grid[i], grid[j] = grid[j], grid[i]
	}

	return grid[:minesCount]
}

func (g *Mines) Validate(params Params) error {
	const op = "games.Mines.Validate"

	p := params.Mines
	if p == nil {
		return fmt.Errorf("%s: missing mines params: %w", op, ErrInvalidParams)
	}

	if p.MinesCount < 1 || p.MinesCount >= minesGridSize {
		return fmt.Errorf("%s: mines count %d out of range 1-24: %w", op, p.MinesCount, ErrInvalidParams)
	}

	safeTotal := minesGridSize - p.MinesCount

	// Revealed may still be empty when a two-phase round is initialized;
	// Play rejects an empty reveal set at settlement time.
	if len(p.Revealed) > safeTotal {
		return fmt.Errorf("%s: revealed %d tiles, want at most %d: %w", op, len(p.Revealed), safeTotal, ErrInvalidParams)
	}

	seen := make(map[int]bool, len(p.Revealed))
	for _, tile := range p.Revealed {
		if tile < 0 || tile >= minesGridSize {
			return fmt.Errorf("%s: tile %d out of range 0-24: %w", op, tile, ErrInvalidParams)
		}
		if seen[tile] {
			return fmt.Errorf("%s: tile %d revealed twice: %w", op, tile, ErrInvalidParams)
		}
		seen[tile] = true
	}

	return nil
}

// ValidateAction is the single-call check: the reveal set must be complete
// here, because after this point the stake moves and the round must settle.
func (g *Mines) ValidateAction(params Params) error {
	const op = "games.Mines.ValidateAction"

	if err := g.Validate(params); err != nil {
		return err
	}

	if len(params.Mines.Revealed) == 0 {
		return fmt.Errorf("%s: no tiles revealed: %w", op, ErrInvalidParams)
	}

	return nil
}

func (g *Mines) Play(random float64, params Params) (*Result, error) {
	const op = "games.Mines.Play"

	if err := g.Validate(params); err != nil {
		return nil, err
	}

	p := params.Mines
	if len(p.Revealed) == 0 {
		return nil, fmt.Errorf("%s: no tiles revealed: %w", op, ErrInvalidParams)
	}

	safeTotal := minesGridSize - p.MinesCount

	mines := MinePositions(random, p.MinesCount)

	mined := make(map[int]bool, len(mines))
	for _, m := range mines {
		mined[m] = true
	}

	won := true
	hit := -1

	for _, tile := range p.Revealed {
		if mined[tile] {
			won = false
			hit = tile

			break
		}
	}

	// Payout compounds per revealed tile: each safe pick scales by the odds
	// against it, shaved by the edge spread across the whole reveal set.
	multiplier := 1.0
	steps := len(p.Revealed)
	for i := 0; i < steps; i++ {
		multiplier *= float64(minesGridSize-i) / float64(safeTotal-i) * (1 - g.houseEdge/float64(steps))
	}

	outcome := map[string]interface{}{
		"mines":       mines,
		"revealed":    p.Revealed,
		"mines_count": p.MinesCount,
	}
	if hit >= 0 {
		outcome["hit_tile"] = hit
	}

	return &Result{
		Won:        won,
		Multiplier: multiplier,
		Outcome:    outcome,
	}, nil
}
