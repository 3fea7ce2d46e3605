package open_round

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"golang.org/x/exp/slog"

	"casino-core/internal/config"
	"casino-core/internal/engine"
	"casino-core/internal/games"
	quick_play "casino-core/internal/http-server/handlers/round/play"
	resp "casino-core/internal/lib/api/response"
	"casino-core/internal/lib/converter"
	"casino-core/internal/lib/logger/sl"
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

// Response carries the fairness commitment only. The server seed stays
// hidden until the round settles, or the commit-then-reveal contract is void.
type Response struct {
	resp.Response
	RoundNumber    int64   `json:"round_number"`
	RoundID        string  `json:"round_id"`
	Game           string  `json:"game"`
	Stake          float64 `json:"stake"`
	Currency       string  `json:"currency"`
	Status         string  `json:"status"`
	ServerSeedHash string  `json:"server_seed_hash"`
	ClientSeed     string  `json:"client_seed"`
	Nonce          int64   `json:"nonce"`
	NewBalance     float64 `json:"new_balance"`
}

//go:generate go run github.com/vektra/mockery/v2@v2.28.2 --name=RoundOpener
type RoundOpener interface {
	InitializeRound(req engine.PlayRequest) (*engine.InitResult, error)
}

type Open struct {
	log       *slog.Logger
	validator *validator.Validate
	opener    RoundOpener
}

func NewOpen(log *slog.Logger, opener RoundOpener) *Open {
	return &Open{
		log:       log,
		validator: validator.New(),
		opener:    opener,
	}
}

func (o *Open) New() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.round.open.New"

		log := o.log.With(
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

		if err = o.validator.Struct(req); err != nil {
			validateErr := err.(validator.ValidationErrors)

			log.Error("invalid request", sl.Err(err))

			render.JSON(w, r, resp.ValidationError(validateErr))

			return
		}

		result, err := o.opener.InitializeRound(engine.PlayRequest{
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
			log.Error("failed to initialize round", sl.Err(err))

			msg, status := quick_play.PlayErrorStatus(err)
			render.JSON(w, r, resp.Error(msg, status))

			return
		}

		render.JSON(w, r, Response{
			Response:       resp.OK(),
			RoundNumber:    result.Round.RoundNumber,
			RoundID:        result.Round.RoundID,
			Game:           string(result.Round.Game),
			Stake:          converter.CentsToAmount(result.Round.Stake),
			Currency:       result.Round.Currency,
			Status:         string(result.Round.Status),
			ServerSeedHash: result.Round.ServerSeedHash,
			ClientSeed:     result.Round.ClientSeed,
			Nonce:          result.Round.Nonce,
			NewBalance:     converter.CentsToAmount(result.NewBalance),
		})
	}
}
