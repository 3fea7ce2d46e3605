package engine

import (
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/exp/slog"

	"casino-core/internal/config"
	"casino-core/internal/http-server/model"
	"casino-core/internal/lib/logger/sl"
)

// ReconcileStuck force-settles two-phase rounds left active beyond the
// configured timeout. The stake was debited and the seed committed, so the
// round settles as a loss rather than a refund: refunding a committed round
// would let a player peek at commitments for free by abandoning bad ones.
func (e *Engine) ReconcileStuck() error {
	const op = "engine.Engine.ReconcileStuck"

	cutoff := time.Now().Add(-e.cfg.RoundTimeout)

	stuck, err := e.rounds.FindStuckActive(cutoff)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	for _, round := range stuck {
		if err := e.forfeit(round); err != nil {
			// Keep going; one bad round must not block the sweep.
			e.log.Error("failed to reconcile stuck round", sl.Err(err), sl.Round(round.RoundID))
		}
	}

	if len(stuck) > 0 {
		e.log.Info("reconciled stuck rounds", slog.Int("count", len(stuck)))
	}

	return nil
}

func (e *Engine) forfeit(round model.Round) error {
	const op = "engine.Engine.forfeit"

	result, err := json.Marshal(map[string]interface{}{
		"won":        false,
		"multiplier": 0,
		"outcome": map[string]interface{}{
			"forfeited": true,
			"reason":    "round timed out before play",
		},
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err = e.rounds.MarkSettled(round.RoundNumber, round.Params, result, 0, 0, -round.Stake); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	lossRef, err := e.postWithRetry(model.LedgerEntry{
		DebitAccount:  config.AccountHouseFloat,
		CreditAccount: config.AccountHouseRevenue,
		Amount:        round.Stake,
		Currency:      round.Currency,
		EntryType:     config.EntryLoss,
		ReferenceID:   round.RoundID,
		Description:   "forfeited on timeout",
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err = e.rounds.AttachLedgerRefs(round.RoundNumber, append(round.LedgerRefs, lossRef)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	e.log.Warn("active round forfeited after timeout",
		sl.Round(round.RoundID),
		slog.Int64("round_number", round.RoundNumber),
		slog.Int64("stake", round.Stake),
	)

	return nil
}

// ReconcileJob adapts the sweep to the worker pool queue.
type ReconcileJob struct {
	Engine *Engine
}

func (j *ReconcileJob) Execute() {
	if err := j.Engine.ReconcileStuck(); err != nil {
		j.Engine.log.Error("reconcile sweep failed", sl.Err(err))
	}
}
