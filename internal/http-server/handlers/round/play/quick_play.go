package quick_play

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"golang.org/x/exp/slog"

	"casino-core/internal/config"
	"casino-core/internal/engine"
	"casino-core/internal/fairness"
	"casino-core/internal/games"
	resp "casino-core/internal/lib/api/response"
	"casino-core/internal/lib/converter"
	"casino-core/internal/lib/logger/sl"
	"casino-core/internal/repository"
)

type Request struct {
	PlayerID   int64        `json:"player_id" validate:"required,gt=0"`
	TenantID   int64        `json:"tenant_id" validate:"required,gt=0"`
	WalletID   int64        `json:"wallet_id" validate:"required,gt=0"`
	Game       string       `json:"game" validate:"required,oneof=dice crash mines"`
	Amount     float64      `json:"amount" validate:"required,gt=0"`
	Currency   string       `json:"currency,omitempty"`
	ClientSeed string       `json:"client_seed,omitempty"`
	Params     games.Params `json:"params" validate:"required"`
}

type Response struct {
	resp.Response
	Round           RoundView     `json:"round"`
	Outcome         *games.Result `json:"outcome"`
	NewBalance      float64       `json:"new_balance"`
	VerificationURL string        `json:"verification_url"`
}

type RoundView struct {
	RoundNumber    int64   `json:"round_number"`
	RoundID        string  `json:"round_id"`
	Game           string  `json:"game"`
	Stake          float64 `json:"stake"`
	Currency       string  `json:"currency"`
	Status         string  `json:"status"`
	Multiplier     float64 `json:"multiplier"`
	Payout         float64 `json:"payout"`
	Profit         float64 `json:"profit"`
	ServerSeed     string  `json:"server_seed"`
	ServerSeedHash string  `json:"server_seed_hash"`
	ClientSeed     string  `json:"client_seed"`
	Nonce          int64   `json:"nonce"`
}

//go:generate go run github.com/vektra/mockery/v2@v2.28.2 --name=RoundPlayer
type RoundPlayer interface {
	QuickPlay(req engine.PlayRequest) (*engine.PlayResult, error)
}

type Play struct {
	log       *slog.Logger
	validator *validator.Validate
	player    RoundPlayer
}

func NewPlay(log *slog.Logger, player RoundPlayer) *Play {
	return &Play{
		log:       log,
		validator: validator.New(),
		player:    player,
	}
}

func (p *Play) New() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.round.play.New"

		log := p.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		var req Request

		err := render.DecodeJSON(r.Body, &req)
		if err != nil {
			log.Error("failed to decode request body", sl.Err(err))

			render.JSON(w, r, resp.Error("failed to decode request body", http.StatusBadRequest))

			return
		}

		log.Info("request body decoded", slog.Any("request", req))

		if err = p.validator.Struct(req); err != nil {
			validateErr := err.(validator.ValidationErrors)

			log.Error("invalid request", sl.Err(err))

			render.JSON(w, r, resp.ValidationError(validateErr))

			return
		}

		result, err := p.player.QuickPlay(engine.PlayRequest{
			PlayerID:   req.PlayerID,
			TenantID:   req.TenantID,
			WalletID:   req.WalletID,
			Game:       config.Game(req.Game),
			Stake:      converter.AmountToCents(req.Amount),
			Currency:   req.Currency,
			ClientSeed: req.ClientSeed,
			Params:     req.Params,
		})
		if err != nil {
			log.Error("failed to play round", sl.Err(err))

			msg, status := PlayErrorStatus(err)
			render.JSON(w, r, resp.Error(msg, status))

			return
		}

		render.JSON(w, r, Response{
			Response: resp.OK(),
			Round: RoundView{
				RoundNumber:    result.Round.RoundNumber,
				RoundID:        result.Round.RoundID,
				Game:           string(result.Round.Game),
				Stake:          converter.CentsToAmount(result.Round.Stake),
				Currency:       result.Round.Currency,
				Status:         string(result.Round.Status),
				Multiplier:     result.Round.Multiplier,
				Payout:         converter.CentsToAmount(result.Round.Payout),
				Profit:         converter.CentsToAmount(result.Round.Profit),
				ServerSeed:     result.Round.ServerSeed,
				ServerSeedHash: result.Round.ServerSeedHash,
				ClientSeed:     result.Round.ClientSeed,
				Nonce:          result.Round.Nonce,
			},
			Outcome:         result.Outcome,
			NewBalance:      converter.CentsToAmount(result.NewBalance),
			VerificationURL: result.VerificationURL,
		})
	}
}

// PlayErrorStatus maps engine failures onto HTTP responses without leaking
// internals. Settlement failures report generically; the detail stays in the
// logs for reconciliation.
func PlayErrorStatus(err error) (string, int) {
	var settlementErr *engine.SettlementError

	switch {
	case errors.Is(err, engine.ErrInvalidStake):
		return "stake must be positive", http.StatusBadRequest
	case errors.Is(err, repository.ErrInsufficientBalance):
		return "insufficient balance", http.StatusPaymentRequired
	case errors.Is(err, repository.ErrWalletNotFound):
		return "wallet not found", http.StatusNotFound
	case errors.Is(err, repository.ErrRoundNotFound):
		return "round not found", http.StatusNotFound
	case errors.Is(err, engine.ErrRoundNotOpen):
		return "round is not open", http.StatusConflict
	case errors.Is(err, games.ErrUnsupportedGame):
		return "unsupported game type", http.StatusUnprocessableEntity
	case errors.Is(err, games.ErrInvalidParams):
		return "invalid game parameters", http.StatusUnprocessableEntity
	case errors.Is(err, fairness.ErrHashMismatch):
		return "fairness verification failed", http.StatusInternalServerError
	case errors.As(err, &settlementErr):
		return "round settlement failed", http.StatusInternalServerError
	default:
		return "internal error", http.StatusInternalServerError
	}
}
