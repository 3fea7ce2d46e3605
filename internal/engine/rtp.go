package engine

import (
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/exp/slog"

	"casino-core/internal/config"
	"casino-core/internal/lib/converter"
	"casino-core/internal/repository"
)

type RTPStats struct {
	Game          config.Game `json:"game"`
	Rounds        int64       `json:"rounds"`
	TotalStaked   float64     `json:"total_staked"`
	TotalPayout   float64     `json:"total_payout"`
	RTPPercent    float64     `json:"rtp_percent"`
	GGR           float64     `json:"ggr"`
	AvgMultiplier float64     `json:"avg_multiplier"`
}

type RTPSource interface {
	AggregateRTP(filter repository.RTPFilter) ([]repository.RTPRow, error)
}

// RTPAggregator reports return-to-player figures over settled rounds.
// Strictly read-only: nothing here may ever influence randomness or payout.
type RTPAggregator struct {
	source RTPSource
	cache  *cache.Cache
	log    *slog.Logger
}

func NewRTPAggregator(source RTPSource, log *slog.Logger) *RTPAggregator {
	return &RTPAggregator{
		source: source,
		cache:  cache.New(1*time.Minute, 5*time.Minute),
		log:    log,
	}
}

func (a *RTPAggregator) Stats(filter repository.RTPFilter) ([]RTPStats, error) {
	const op = "engine.RTPAggregator.Stats"

	key := cacheKey(filter)

	if cached, found := a.cache.Get(key); found {
		return cached.([]RTPStats), nil
	}

	rows, err := a.source.AggregateRTP(filter)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	stats := make([]RTPStats, 0, len(rows))

	for _, row := range rows {
		stat := RTPStats{
			Game:          row.Game,
			Rounds:        row.Rounds,
			TotalStaked:   converter.CentsToAmount(row.TotalStaked),
			TotalPayout:   converter.CentsToAmount(row.TotalPayout),
			GGR:           converter.CentsToAmount(row.TotalStaked - row.TotalPayout),
			AvgMultiplier: row.AvgMultiplier,
		}

		if row.TotalStaked > 0 {
			stat.RTPPercent = float64(row.TotalPayout) / float64(row.TotalStaked) * 100
		}

		stats = append(stats, stat)
	}

	a.cache.Set(key, stats, cache.DefaultExpiration)

	return stats, nil
}

func cacheKey(filter repository.RTPFilter) string {
	return fmt.Sprintf("rtp:%d:%s:%d:%d",
		filter.TenantID,
		filter.Game,
		filter.From.Unix(),
		filter.To.Unix(),
	)
}
