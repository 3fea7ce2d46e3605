package settle_round

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"golang.org/x/exp/slog"

	"casino-core/internal/engine"
	"casino-core/internal/games"
	quick_play "casino-core/internal/http-server/handlers/round/play"
	resp "casino-core/internal/lib/api/response"
	"casino-core/internal/lib/converter"
	"casino-core/internal/lib/logger/sl"
)

// Request carries the player's action for an open round: the tiles picked
// for mines, the cashout target for crash.
type Request struct {
	Params games.Params `json:"params" validate:"required"`
}

type Response struct {
	resp.Response
	Round           quick_play.RoundView `json:"round"`
	Outcome         *games.Result        `json:"outcome"`
	NewBalance      float64              `json:"new_balance"`
	VerificationURL string               `json:"verification_url"`
}

//go:generate go run github.com/vektra/mockery/v2@v2.28.2 --name=RoundSettler
type RoundSettler interface {
	PlayRound(roundNumber int64, action games.Params) (*engine.PlayResult, error)
}

type Settle struct {
	log       *slog.Logger
	validator *validator.Validate
	settler   RoundSettler
}

func NewSettle(log *slog.Logger, settler RoundSettler) *Settle {
	return &Settle{
		log:       log,
		validator: validator.New(),
		settler:   settler,
	}
}

func (s *Settle) New() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.round.settle.New"

		log := s.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		roundNumber, err := strconv.ParseInt(chi.URLParam(r, "roundNumber"), 10, 64)
		if err != nil {
			log.Error("invalid round number", sl.Err(err))

			render.JSON(w, r, resp.Error("invalid round number", http.StatusBadRequest))

			return
		}

		var req Request

		err = render.DecodeJSON(r.Body, &req)
		if err != nil {
			log.Error("failed to decode request body", sl.Err(err))

			render.JSON(w, r, resp.Error("failed to decode request body", http.StatusBadRequest))

			return
		}

		log.Info("request body decoded", slog.Any("request", req))

		if err = s.validator.Struct(req); err != nil {
			validateErr := err.(validator.ValidationErrors)

			log.Error("invalid request", sl.Err(err))

			render.JSON(w, r, resp.ValidationError(validateErr))

			return
		}

		result, err := s.settler.PlayRound(roundNumber, req.Params)
		if err != nil {
			log.Error("failed to settle round", sl.Err(err))

			msg, status := quick_play.PlayErrorStatus(err)
			render.JSON(w, r, resp.Error(msg, status))

			return
		}

		render.JSON(w, r, Response{
			Response: resp.OK(),
			Round: quick_play.RoundView{
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
