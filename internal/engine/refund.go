package engine

import (
	"encoding/json"
	"fmt"

	"golang.org/x/exp/slog"

	"casino-core/internal/config"
	"casino-core/internal/http-server/model"
	"casino-core/internal/lib/logger/sl"
)

type RefundResult struct {
	Round      *model.Round
	NewBalance int64
}

// RefundRound cancels an open two-phase round explicitly: the stake goes
// back to the wallet and a refund posting reverses the stake entry, so the
// books stay balanced and the trail shows the reversal. Only an unplayed
// round qualifies; once a round settles it is immutable, and silent
// cancellation does not exist.
func (e *Engine) RefundRound(roundNumber int64) (*RefundResult, error) {
	const op = "engine.Engine.RefundRound"

	log := e.log.With(
		slog.String("op", op),
		slog.Int64("round_number", roundNumber),
	)

	round, err := e.rounds.GetRoundByNumber(roundNumber)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if round.Status != model.RoundActive {
		return nil, fmt.Errorf("%s: %w", op, ErrRoundNotOpen)
	}

	result, err := json.Marshal(map[string]interface{}{
		"won":        false,
		"multiplier": 0,
		"outcome": map[string]interface{}{
			"refunded": true,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	// Settling first claims the round: a concurrent PlayRound hits the
	// status guard and cannot settle the same stake twice.
	if err = e.rounds.MarkSettled(round.RoundNumber, round.Params, result, 0, 0, 0); err != nil {
		return nil, e.settlementFailed(log, round.RoundID, "round-refund", err)
	}

	round.Status = model.RoundCompleted
	round.Result = result
	round.Multiplier = 0
	round.Payout = 0
	round.Profit = 0
	round.SeedRevealed = true

	newBalance, err := e.wallet.Credit(round.WalletID, round.Stake)
	if err != nil {
		return nil, e.settlementFailed(log, round.RoundID, "refund-credit", err)
	}

	refundRef, err := e.postWithRetry(model.LedgerEntry{
		DebitAccount:  config.AccountHouseFloat,
		CreditAccount: walletAccount(round.WalletID),
		Amount:        round.Stake,
		Currency:      round.Currency,
		EntryType:     config.EntryRefund,
		ReferenceID:   round.RoundID,
		Description:   "round refunded before play",
	})
	if err != nil {
		return nil, e.settlementFailed(log, round.RoundID, "refund-posting", err)
	}

	refs := append(round.LedgerRefs, refundRef)
	if err = e.rounds.AttachLedgerRefs(round.RoundNumber, refs); err != nil {
		return nil, e.settlementFailed(log, round.RoundID, "ledger-refs", err)
	}
	round.LedgerRefs = refs

	log.Info("round refunded",
		sl.Round(round.RoundID),
		slog.Int64("stake", round.Stake),
	)

	return &RefundResult{
		Round:      round,
		NewBalance: newBalance,
	}, nil
}
