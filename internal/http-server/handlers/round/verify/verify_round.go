package verify_round

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"golang.org/x/exp/slog"

	"casino-core/internal/engine"
	"casino-core/internal/games"
	quick_play "casino-core/internal/http-server/handlers/round/play"
	resp "casino-core/internal/lib/api/response"
	"casino-core/internal/lib/converter"
	"casino-core/internal/lib/logger/sl"
)

type Response struct {
	resp.Response
	Round        quick_play.RoundView `json:"round"`
	Outcome      *games.Result        `json:"outcome"`
	Verification *engine.Verification `json:"verification"`
	HowToVerify  []string             `json:"how_to_verify"`
}

//go:generate go run github.com/vektra/mockery/v2@v2.28.2 --name=RoundVerifier
type RoundVerifier interface {
	VerifyRound(roundNumber int64) (*engine.VerifyRoundResult, error)
}

type Verify struct {
	log      *slog.Logger
	verifier RoundVerifier
}

func NewVerify(log *slog.Logger, verifier RoundVerifier) *Verify {
	return &Verify{
		log:      log,
		verifier: verifier,
	}
}

func (v *Verify) New() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.round.verify.New"

		log := v.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		roundNumber, err := strconv.ParseInt(chi.URLParam(r, "roundNumber"), 10, 64)
		if err != nil {
			log.Error("invalid round number", sl.Err(err))

			render.JSON(w, r, resp.Error("invalid round number", http.StatusBadRequest))

			return
		}

		result, err := v.verifier.VerifyRound(roundNumber)
		if err != nil {
			log.Error("failed to verify round", sl.Err(err))

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
			Outcome:      result.Outcome,
			Verification: result.Verification,
			HowToVerify:  result.HowToVerify,
		})
	}
}
