package rtp_stats

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"golang.org/x/exp/slog"

	"casino-core/internal/config"
	"casino-core/internal/engine"
	resp "casino-core/internal/lib/api/response"
	"casino-core/internal/lib/logger/sl"
	"casino-core/internal/repository"
)

type Response struct {
	resp.Response
	Stats []engine.RTPStats `json:"stats"`
}

//go:generate go run github.com/vektra/mockery/v2@v2.28.2 --name=StatsProvider
type StatsProvider interface {
	Stats(filter repository.RTPFilter) ([]engine.RTPStats, error)
}

type Stats struct {
	log      *slog.Logger
	provider StatsProvider
}

func NewStats(log *slog.Logger, provider StatsProvider) *Stats {
	return &Stats{
		log:      log,
		provider: provider,
	}
}

func (s *Stats) New() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.stats.rtp.New"

		log := s.log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		filter, err := filterFromQuery(r)
		if err != nil {
			log.Error("invalid stats filter", sl.Err(err))

			render.JSON(w, r, resp.Error(err.Error(), http.StatusBadRequest))

			return
		}

		stats, err := s.provider.Stats(filter)
		if err != nil {
			log.Error("failed to aggregate rtp stats", sl.Err(err))

			render.JSON(w, r, resp.Error("failed to aggregate stats", http.StatusInternalServerError))

			return
		}

		render.JSON(w, r, Response{
			Response: resp.OK(),
			Stats:    stats,
		})
	}
}

func filterFromQuery(r *http.Request) (repository.RTPFilter, error) {
	var filter repository.RTPFilter

	query := r.URL.Query()

	if raw := query.Get("tenant_id"); raw != "" {
		tenantID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return filter, newFilterError("tenant_id must be an integer")
		}
		filter.TenantID = tenantID
	}

	if raw := query.Get("game"); raw != "" {
		game := config.Game(raw)
		if !game.Valid() {
			return filter, newFilterError("unknown game type")
		}
		filter.Game = game
	}

	if raw := query.Get("from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, newFilterError("from must be an RFC3339 timestamp")
		}
		filter.From = from
	}

	if raw := query.Get("to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return filter, newFilterError("to must be an RFC3339 timestamp")
		}
		filter.To = to
	}

	return filter, nil
}

type filterError string

func newFilterError(msg string) filterError { return filterError(msg) }

func (e filterError) Error() string { return string(e) }
