package refund_round

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"golang.org/x/exp/slog"

	"casino-core/internal/engine"
	quick_play "casino-core/internal/http-server/handlers/round/play"
	resp "casino-core/internal/lib/api/response"
	"casino-core/internal/lib/converter"
	"casino-core/internal/lib/logger/sl"
)

type Response struct {
	resp.Response
	RoundNumber int64   `json:"round_number"`
	RoundID     string  `json:"round_id"`
	Status      string  `json:"status"`
	Refunded    float64 `json:"refunded"`
	NewBalance  float64 `json:"new_balance"`
}

//go:generate go run github.com/vektra/mockery/v2@v2.28.2 --name=RoundRefunder
type RoundRefunder interface {
	RefundRound(roundNumber int64) (*engine.RefundResult, error)
}

type Refund struct {
	log      *slog.Logger
	refunder RoundRefunder
}

func NewRefund(log *slog.Logger, refunder RoundRefunder) *Refund {
	return &Refund{
		log:      log,
		refunder: refunder,
	}
}

func (f *Refund) New() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.round.refund.New"

		log := f.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		roundNumber, err := strconv.ParseInt(chi.URLParam(r, "roundNumber"), 10, 64)
		if err != nil {
			log.Error("invalid round number", sl.Err(err))

			render.JSON(w, r, resp.Error("invalid round number", http.StatusBadRequest))

			return
		}

		result, err := f.refunder.RefundRound(roundNumber)
		if err != nil {
			log.Error("failed to refund round", sl.Err(err))

			msg, status := quick_play.PlayErrorStatus(err)
			render.JSON(w, r, resp.Error(msg, status))

			return
		}

		render.JSON(w, r, Response{
			Response:    resp.OK(),
			RoundNumber: result.Round.RoundNumber,
			RoundID:     result.Round.RoundID,
			Status:      string(result.Round.Status),
			Refunded:    converter.CentsToAmount(result.Round.Stake),
			NewBalance:  converter.CentsToAmount(result.NewBalance),
		})
	}
}
