package games

import (
	"fmt"
	"math"
)

type CrashParams struct {
	AutoCashout float64 `json:"auto_cashout" validate:"required,min=1.01"`
}

type Crash struct {
	houseEdge float64
}

func NewCrash(houseEdge float64) *Crash {
	return &Crash{houseEdge: houseEdge}
}

// CrashPoint maps the draw to a 2-decimal crash multiplier with a long tail:
// floor(99/(1-random))/100, never below 1.00. For any cashout target c the
// win probability is 0.99/c, so expected payout stays at 1-houseEdge. The
// epsilon keeps the floor from eating one cent when the division lands a few
// ulps under an exact hundredth (99/0.01 must floor to 9900, not 9899).
func (g *Crash) CrashPoint(random float64) float64 {
	point := math.Floor(100*(1-g.houseEdge)/(1-random)+1e-9) / 100
	if point < 1 {
		point = 1
	}

	return point
}

func (g *Crash) Validate(params Params) error {
	const op = "games.Crash.Validate"

	p := params.Crash
	if p == nil {
		return fmt.Errorf("%s: missing crash params: %w", op, ErrInvalidParams)
	}

	if p.AutoCashout < 1.01 {
		return fmt.Errorf("%s: auto cashout %v below 1.01: %w", op, p.AutoCashout, ErrInvalidParams)
	}

	return nil
}

// ValidateAction matches Validate: the auto cashout is committed up front.
func (g *Crash) ValidateAction(params Params) error {
	return g.Validate(params)
}

func (g *Crash) Play(random float64, params Params) (*Result, error) {
	if err := g.Validate(params); err != nil {
		return nil, err
	}

	p := params.Crash

	crashPoint := g.CrashPoint(random)
	won := p.AutoCashout <= crashPoint

	return &Result{
		Won:        won,
		Multiplier: p.AutoCashout,
		Outcome: map[string]interface{}{
			"crash_point":  crashPoint,
			"auto_cashout": p.AutoCashout,
		},
	}, nil
}
