package games

import (
	"errors"
	"fmt"

	"casino-core/internal/config"
)

var (
	ErrUnsupportedGame = errors.New("unsupported game type")
	ErrInvalidParams   = errors.New("invalid game parameters")
)

// Params carries the player-chosen inputs for whichever game is played.
// Only the section matching the game type is consulted.
type Params struct {
	Dice  *DiceParams  `json:"dice,omitempty"`
	Crash *CrashParams `json:"crash,omitempty"`
	Mines *MinesParams `json:"mines,omitempty"`
}

type Result struct {
	Won        bool                   `json:"won"`
	Multiplier float64                `json:"multiplier"`
	Outcome    map[string]interface{} `json:"outcome"`
}

// Game maps one committed random draw plus player parameters to an outcome.
// Implementations are pure: no I/O, no second source of randomness, so a
// verifier can re-run Play with the stored draw and get the same result.
// Validate must reject bad parameters before any funds move; it tolerates a
// missing action part (a two-phase round supplies that at settlement).
// ValidateAction additionally requires the action part, so a single-call
// round is checked completely before its stake is debited. Play performs
// the same checks again so it stays safe to call standalone.
type Game interface {
	Validate(params Params) error
	ValidateAction(params Params) error
	Play(random float64, params Params) (*Result, error)
}

type Registry struct {
	games map[config.Game]Game
}

func NewRegistry(houseEdge float64) *Registry {
	return &Registry{
		games: map[config.Game]Game{
			config.Dice:  NewDice(houseEdge),
			config.Crash: NewCrash(houseEdge),
			config.Mines: NewMines(houseEdge),
		},
	}
}

func (r *Registry) Get(game config.Game) (Game, error) {
	const op = "games.Registry.Get"

	g, ok := r.games[game]
	if !ok {
		return nil, fmt.Errorf("%s: %q: %w", op, game, ErrUnsupportedGame)
	}

	return g, nil
}
