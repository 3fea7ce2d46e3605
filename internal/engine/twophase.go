package engine

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"golang.org/x/exp/slog"

	"casino-core/internal/config"
	"casino-core/internal/fairness"
	"casino-core/internal/games"
	"casino-core/internal/http-server/model"
	"casino-core/internal/lib/logger/sl"
)

type InitResult struct {
	Round      *model.Round
	NewBalance int64
}

// InitializeRound is the first half of the two-phase path for games that
// need mid-round player action. The stake is debited and the fairness
// commitment made now; only the seed hash may be shown to the player until
// PlayRound settles. A round left active is money held, which is why the
// reconciler exists.
func (e *Engine) InitializeRound(req PlayRequest) (*InitResult, error) {
	const op = "engine.Engine.InitializeRound"

	log := e.log.With(
		slog.String("op", op),
		slog.Int64("player_id", req.PlayerID),
		slog.String("game", string(req.Game)),
	)

	if req.Stake <= 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidStake)
	}

	rules, err := e.games.Get(req.Game)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err = rules.Validate(req.Params); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if req.Currency == "" {
		req.Currency = "USD"
	}

	if req.ClientSeed == "" {
		req.ClientSeed = uuid.New().String()
	}

	balanceAfterDebit, err := e.wallet.Debit(req.WalletID, req.Stake)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	roundID := newRoundID(req.Game)

	serverSeed, err := fairness.GenerateServerSeed()
	if err != nil {
		return nil, e.settlementFailed(log, roundID, "seed-generation", err)
	}

	nonce, err := e.nonces.Next(req.PlayerID, req.Game)
	if err != nil {
		return nil, e.settlementFailed(log, roundID, "nonce-assignment", err)
	}

	paramsJSON, err := json.Marshal(req.Params)
	if err != nil {
		return nil, e.settlementFailed(log, roundID, "params-encoding", err)
	}

	round := model.Round{
		RoundID:        roundID,
		PlayerID:       req.PlayerID,
		TenantID:       req.TenantID,
		WalletID:       req.WalletID,
		Game:           req.Game,
		Stake:          req.Stake,
		Currency:       req.Currency,
		Params:         paramsJSON,
		Status:         model.RoundActive,
		ServerSeed:     serverSeed,
		ServerSeedHash: fairness.HashServerSeed(serverSeed),
		ClientSeed:     req.ClientSeed,
		Nonce:          nonce,
		CreatedAt:      time.Now(),
	}

	roundNumber, err := e.rounds.SaveRound(round)
	if err != nil {
		return nil, e.settlementFailed(log, roundID, "round-persist", err)
	}
	round.RoundNumber = roundNumber

	stakeRef, err := e.postWithRetry(model.LedgerEntry{
		DebitAccount:  walletAccount(req.WalletID),
		CreditAccount: config.AccountHouseFloat,
		Amount:        req.Stake,
		Currency:      req.Currency,
		EntryType:     config.EntryStake,
		ReferenceID:   roundID,
		Description:   "round stake",
	})
	if err != nil {
		return nil, e.settlementFailed(log, roundID, "stake-posting", err)
	}

	if err = e.rounds.AttachLedgerRefs(roundNumber, []int64{stakeRef}); err != nil {
		return nil, e.settlementFailed(log, roundID, "ledger-refs", err)
	}
	round.LedgerRefs = []int64{stakeRef}

	log.Info("round initialized", sl.Round(roundID), slog.Int64("round_number", roundNumber))

	return &InitResult{
		Round:      &round,
		NewBalance: balanceAfterDebit,
	}, nil
}

// PlayRound settles an active two-phase round with the player's action
// parameters. The draw uses the seeds committed at initialization; replaying
// or re-drawing is never an option once the hash went out.
func (e *Engine) PlayRound(roundNumber int64, action games.Params) (*PlayResult, error) {
	const op = "engine.Engine.PlayRound"

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

	var params games.Params
	if err = json.Unmarshal(round.Params, &params); err != nil {
		return nil, e.settlementFailed(log, round.RoundID, "params-decoding", err)
	}
	mergeAction(&params, action)

	// The merged params are what the round actually settles on; they must
	// travel with the record or verification replays the stale
	// initialization params and cannot reproduce the outcome.
	mergedJSON, err := json.Marshal(params)
	if err != nil {
		return nil, e.settlementFailed(log, round.RoundID, "params-encoding", err)
	}
	round.Params = mergedJSON

	rules, err := e.games.Get(round.Game)
	if err != nil {
		return nil, e.settlementFailed(log, round.RoundID, "rules-lookup", err)
	}

	random := fairness.Roll(round.ServerSeed, round.ClientSeed, round.Nonce)

	outcome, err := rules.Play(random, params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return e.settle(log, round, outcome)
}

func (e *Engine) settle(log *slog.Logger, round *model.Round, outcome *games.Result) (*PlayResult, error) {
	var payout int64
	if outcome.Won {
		payout = int64(math.Round(float64(round.Stake) * outcome.Multiplier))
	}
	profit := payout - round.Stake

	resultJSON, err := json.Marshal(outcome)
	if err != nil {
		return nil, e.settlementFailed(log, round.RoundID, "result-encoding", err)
	}

	if err = e.rounds.MarkSettled(round.RoundNumber, round.Params, resultJSON, outcome.Multiplier, payout, profit); err != nil {
		return nil, e.settlementFailed(log, round.RoundID, "round-settle", err)
	}

	round.Status = model.RoundCompleted
	round.Result = resultJSON
	round.Multiplier = outcome.Multiplier
	round.Payout = payout
	round.Profit = profit
	round.SeedRevealed = true

	refs := round.LedgerRefs

	var newBalance int64

	if outcome.Won {
		newBalance, err = e.wallet.Credit(round.WalletID, payout)
		if err != nil {
			return nil, e.settlementFailed(log, round.RoundID, "payout-credit", err)
		}

		winRef, err := e.postWithRetry(model.LedgerEntry{
			DebitAccount:  config.AccountHouseFloat,
			CreditAccount: walletAccount(round.WalletID),
			Amount:        payout,
			Currency:      round.Currency,
			EntryType:     config.EntryWin,
			ReferenceID:   round.RoundID,
			Description:   "round win payout",
		})
		if err != nil {
			return nil, e.settlementFailed(log, round.RoundID, "win-posting", err)
		}

		refs = append(refs, winRef)
	} else {
		lossRef, err := e.postWithRetry(model.LedgerEntry{
			DebitAccount:  config.AccountHouseFloat,
			CreditAccount: config.AccountHouseRevenue,
			Amount:        round.Stake,
			Currency:      round.Currency,
			EntryType:     config.EntryLoss,
			ReferenceID:   round.RoundID,
			Description:   "round loss",
		})
		if err != nil {
			return nil, e.settlementFailed(log, round.RoundID, "loss-posting", err)
		}

		refs = append(refs, lossRef)

		newBalance, err = e.wallet.Balance(round.WalletID)
		if err != nil {
			return nil, e.settlementFailed(log, round.RoundID, "balance-read", err)
		}
	}

	if err = e.rounds.AttachLedgerRefs(round.RoundNumber, refs); err != nil {
		return nil, e.settlementFailed(log, round.RoundID, "ledger-refs", err)
	}
	round.LedgerRefs = refs

	e.publishRoundCompleted(round)

	log.Info("round settled",
		sl.Round(round.RoundID),
		slog.Bool("won", outcome.Won),
		slog.Int64("payout", payout),
	)

	return &PlayResult{
		Round:           round,
		Outcome:         outcome,
		NewBalance:      newBalance,
		VerificationURL: e.verificationURL(round.RoundNumber),
	}, nil
}

// mergeAction overlays the phase-two action onto the parameters committed
// at initialization. Only the action-bearing fields move; setup fields like
// the mine count stay as committed.
func mergeAction(params *games.Params, action games.Params) {
	if action.Mines != nil && params.Mines != nil {
		params.Mines.Revealed = action.Mines.Revealed
	}

	if action.Crash != nil && params.Crash != nil {
		params.Crash.AutoCashout = action.Crash.AutoCashout
	}
}
