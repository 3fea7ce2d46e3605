package engine

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/exp/slog"

	"casino-core/internal/config"
	"casino-core/internal/fairness"
	"casino-core/internal/games"
	"casino-core/internal/http-server/model"
	"casino-core/internal/lib/logger/sl"
)

//go:generate go run github.com/vektra/mockery/v2@v2.28.2 --name=WalletGateway
type WalletGateway interface {
	Debit(walletID int64, amount int64) (int64, error)
	Credit(walletID int64, amount int64) (int64, error)
	Balance(walletID int64) (int64, error)
}

//go:generate go run github.com/vektra/mockery/v2@v2.28.2 --name=LedgerGateway
type LedgerGateway interface {
	Post(entry model.LedgerEntry) (int64, error)
}

type RoundStore interface {
	SaveRound(round model.Round) (int64, error)
	MarkSettled(roundNumber int64, params, result json.RawMessage, multiplier float64, payout int64, profit int64) error
	AttachLedgerRefs(roundNumber int64, refs []int64) error
	GetRoundByNumber(roundNumber int64) (*model.Round, error)
	FindStuckActive(olderThan time.Time) ([]model.Round, error)
}

type NonceSource interface {
	Next(playerID int64, game config.Game) (int64, error)
}

// AuditPublisher receives round-completion events fire-and-forget; a publish
// failure never rolls back a settled round.
type AuditPublisher interface {
	TriggerEvent(channel string, eventName string, data map[string]interface{}) error
}

type Engine struct {
	log    *slog.Logger
	games  *games.Registry
	wallet WalletGateway
	ledger LedgerGateway
	rounds RoundStore
	nonces NonceSource
	audit  AuditPublisher
	cfg    config.Casino
}

func New(
	log *slog.Logger,
	registry *games.Registry,
	wallet WalletGateway,
	ledger LedgerGateway,
	rounds RoundStore,
	nonces NonceSource,
	audit AuditPublisher,
	cfg config.Casino,
) *Engine {
	return &Engine{
		log:    log,
		games:  registry,
		wallet: wallet,
		ledger: ledger,
		rounds: rounds,
		nonces: nonces,
		audit:  audit,
		cfg:    cfg,
	}
}

type PlayRequest struct {
	PlayerID   int64
	TenantID   int64
	WalletID   int64
	Game       config.Game
	Stake      int64
	Currency   string
	ClientSeed string
	Params     games.Params
}

type PlayResult struct {
	Round           *model.Round
	Outcome         *games.Result
	NewBalance      int64
	VerificationURL string
}

// QuickPlay runs one full round: validate, reserve the stake, commit a
// fairness draw, compute the outcome, settle the payout and post the ledger
// entries. The debit is the only gate; once the seed is committed the round
// always runs to a terminal settled state, it is never aborted, or the
// commit-then-reveal contract would be broken.
func (e *Engine) QuickPlay(req PlayRequest) (*PlayResult, error) {
	const op = "engine.Engine.QuickPlay"

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

	// The single-call path settles immediately, so the action part must be
	// complete here: a round rejected after the debit would leave money
	// held with no round record for the reconciler to find.
	if err = rules.ValidateAction(req.Params); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if req.Currency == "" {
		req.Currency = "USD"
	}

	if req.ClientSeed == "" {
		req.ClientSeed = uuid.New().String()
	}

	// Conditional debit; fails clean, no state behind it.
	balanceAfterDebit, err := e.wallet.Debit(req.WalletID, req.Stake)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	roundID := newRoundID(req.Game)

	// Past this point the stake is held. Every failure is a settlement
	// failure and must surface for reconciliation, not be retried into a
	// second draw.
	serverSeed, err := fairness.GenerateServerSeed()
	if err != nil {
		return nil, e.settlementFailed(log, roundID, "seed-generation", err)
	}

	nonce, err := e.nonces.Next(req.PlayerID, req.Game)
	if err != nil {
		return nil, e.settlementFailed(log, roundID, "nonce-assignment", err)
	}

	random := fairness.Roll(serverSeed, req.ClientSeed, nonce)

	outcome, err := rules.Play(random, req.Params)
	if err != nil {
		return nil, e.settlementFailed(log, roundID, "rules", err)
	}

	var payout int64
	if outcome.Won {
		payout = int64(math.Round(float64(req.Stake) * outcome.Multiplier))
	}
	profit := payout - req.Stake

	paramsJSON, err := json.Marshal(req.Params)
	if err != nil {
		return nil, e.settlementFailed(log, roundID, "params-encoding", err)
	}

	resultJSON, err := json.Marshal(outcome)
	if err != nil {
		return nil, e.settlementFailed(log, roundID, "result-encoding", err)
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
		Status:         model.RoundCompleted,
		Result:         resultJSON,
		Multiplier:     outcome.Multiplier,
		Payout:         payout,
		Profit:         profit,
		ServerSeed:     serverSeed,
		ServerSeedHash: fairness.HashServerSeed(serverSeed),
		ClientSeed:     req.ClientSeed,
		Nonce:          nonce,
		SeedRevealed:   true,
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

	refs := []int64{stakeRef}
	newBalance := balanceAfterDebit

	if outcome.Won {
		newBalance, err = e.wallet.Credit(req.WalletID, payout)
		if err != nil {
			return nil, e.settlementFailed(log, roundID, "payout-credit", err)
		}

		winRef, err := e.postWithRetry(model.LedgerEntry{
			DebitAccount:  config.AccountHouseFloat,
			CreditAccount: walletAccount(req.WalletID),
			Amount:        payout,
			Currency:      req.Currency,
			EntryType:     config.EntryWin,
			ReferenceID:   roundID,
			Description:   "round win payout",
		})
		if err != nil {
			return nil, e.settlementFailed(log, roundID, "win-posting", err)
		}

		refs = append(refs, winRef)
	} else {
		lossRef, err := e.postWithRetry(model.LedgerEntry{
			DebitAccount:  config.AccountHouseFloat,
			CreditAccount: config.AccountHouseRevenue,
			Amount:        req.Stake,
			Currency:      req.Currency,
			EntryType:     config.EntryLoss,
			ReferenceID:   roundID,
			Description:   "round loss",
		})
		if err != nil {
			return nil, e.settlementFailed(log, roundID, "loss-posting", err)
		}

		refs = append(refs, lossRef)
	}

	if err = e.rounds.AttachLedgerRefs(roundNumber, refs); err != nil {
		return nil, e.settlementFailed(log, roundID, "ledger-refs", err)
	}
	round.LedgerRefs = refs

	e.publishRoundCompleted(&round)

	log.Info("round settled",
		sl.Round(roundID),
		slog.Int64("round_number", roundNumber),
		slog.Bool("won", outcome.Won),
		slog.Int64("payout", payout),
	)

	return &PlayResult{
		Round:           &round,
		Outcome:         outcome,
		NewBalance:      newBalance,
		VerificationURL: e.verificationURL(roundNumber),
	}, nil
}

// postWithRetry retries the one step that is safe to retry: ledger posting,
// idempotent by (reference id, entry type). Nothing across the random-draw
// boundary is ever retried.
func (e *Engine) postWithRetry(entry model.LedgerEntry) (int64, error) {
	id, err := e.ledger.Post(entry)
	if err == nil {
		return id, nil
	}

	e.log.Warn("ledger posting failed, retrying",
		sl.Err(err),
		slog.String("reference_id", entry.ReferenceID),
		slog.String("entry_type", string(entry.EntryType)),
	)

	return e.ledger.Post(entry)
}

func (e *Engine) settlementFailed(log *slog.Logger, roundID, stage string, err error) error {
	settlementErr := &SettlementError{
		RoundID: roundID,
		Stage:   stage,
		Err:     err,
	}

	log.Error("settlement failure, round needs reconciliation",
		sl.Err(err),
		sl.Round(roundID),
		slog.String("stage", stage),
	)

	return settlementErr
}

func (e *Engine) publishRoundCompleted(round *model.Round) {
	if e.audit == nil {
		return
	}

	channel := fmt.Sprintf("tenant-%d", round.TenantID)

	err := e.audit.TriggerEvent(channel, "round-completed", map[string]interface{}{
		"round_id":     round.RoundID,
		"round_number": round.RoundNumber,
		"player_id":    round.PlayerID,
		"game":         round.Game,
		"stake":        round.Stake,
		"payout":       round.Payout,
		"profit":       round.Profit,
	})
	if err != nil {
		e.log.Warn("audit publish failed", sl.Err(err), sl.Round(round.RoundID))
	}
}

func (e *Engine) verificationURL(roundNumber int64) string {
	return fmt.Sprintf("%s/%d/verify", e.cfg.VerificationBaseURL, roundNumber)
}

func walletAccount(walletID int64) string {
	return fmt.Sprintf("wallet:%d", walletID)
}

func newRoundID(game config.Game) string {
	suffix := strings.ReplaceAll(uuid.New().String(), "-", "")[:6]

	return fmt.Sprintf("%s-%s-%s",
		strings.ToUpper(string(game)),
		time.Now().UTC().Format("20060102150405"),
		suffix,
	)
}
