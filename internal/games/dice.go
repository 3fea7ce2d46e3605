package games

import (
	"fmt"
	"math"
)

type DiceDirection string

const (
	DiceOver  DiceDirection = "over"
	DiceUnder DiceDirection = "under"
)

type DiceParams struct {
	Target    int64         `json:"target" validate:"required,min=1,max=99"`
	Direction DiceDirection `json:"direction" validate:"required,oneof=over under"`
}

type Dice struct {
	houseEdge float64
}

func NewDice(houseEdge float64) *Dice {
	return &Dice{houseEdge: houseEdge}
}

const (
	diceMinMultiplier = 1.01
	diceMaxMultiplier = 99
)

func (g *Dice) Validate(params Params) error {
	const op = "games.Dice.Validate"

	p := params.Dice
	if p == nil {
		return fmt.Errorf("%s: missing dice params: %w", op, ErrInvalidParams)
	}

	if p.Target < 1 || p.Target > 99 {
		return fmt.Errorf("%s: target %d out of range 1-99: %w", op, p.Target, ErrInvalidParams)
	}

	if p.Direction != DiceOver && p.Direction != DiceUnder {
		return fmt.Errorf("%s: direction %q: %w", op, p.Direction, ErrInvalidParams)
	}

	return nil
}

// ValidateAction matches Validate: dice carries no separate action part.
func (g *Dice) ValidateAction(params Params) error {
	return g.Validate(params)
}

func (g *Dice) Play(random float64, params Params) (*Result, error) {
	if err := g.Validate(params); err != nil {
		return nil, err
	}

	p := params.Dice

	roll := int64(math.Floor(random*100)) + 1

	var winProb float64
	var won bool

	if p.Direction == DiceOver {
		winProb = float64(100-p.Target) / 100
		won = roll > p.Target
	} else {
		winProb = float64(p.Target) / 100
		won = roll < p.Target
	}

	multiplier := (1 - g.houseEdge) / winProb
	multiplier = math.Min(math.Max(multiplier, diceMinMultiplier), diceMaxMultiplier)

	return &Result{
		Won:        won,
		Multiplier: multiplier,
		Outcome: map[string]interface{}{
			"roll":       roll,
			"target":     p.Target,
			"direction":  p.Direction,
			"win_chance": winProb * 100,
		},
	}, nil
}
