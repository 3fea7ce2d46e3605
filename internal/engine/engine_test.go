package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"casino-core/internal/config"
	"casino-core/internal/games"
	"casino-core/internal/http-server/model"
	"casino-core/internal/repository"
)

type fakeWallet struct {
	mu       sync.Mutex
	balances map[int64]int64

	// creditsToSink diverts payouts away from the balance so a test can
	// exercise the conditional debit against a fixed budget: without it,
	// mid-test wins would refill the wallet and fund extra debits.
	creditsToSink bool
	sink          int64
}

func newFakeWallet(balances map[int64]int64) *fakeWallet {
	return &fakeWallet{balances: balances}
}

func (w *fakeWallet) Debit(walletID, amount int64) (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	balance, ok := w.balances[walletID]
	if !ok {
		return 0, repository.ErrWalletNotFound
	}

	if balance < amount {
		return 0, repository.ErrInsufficientBalance
	}

	w.balances[walletID] = balance - amount

	return w.balances[walletID], nil
}

func (w *fakeWallet) Credit(walletID, amount int64) (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.balances[walletID]; !ok {
		return 0, repository.ErrWalletNotFound
	}

	if w.creditsToSink {
		w.sink += amount

		return w.balances[walletID], nil
	}

	w.balances[walletID] += amount

	return w.balances[walletID], nil
}

func (w *fakeWallet) Balance(walletID int64) (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	balance, ok := w.balances[walletID]
	if !ok {
		return 0, repository.ErrWalletNotFound
	}

	return balance, nil
}

type fakeLedger struct {
	mu       sync.Mutex
	entries  []model.LedgerEntry
	failPost bool
	nextID   int64
}

func (l *fakeLedger) Post(entry model.LedgerEntry) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.failPost {
		return 0, errors.New("ledger unavailable")
	}

	for _, existing := range l.entries {
		if existing.ReferenceID == entry.ReferenceID && existing.EntryType == entry.EntryType {
			return existing.ID, nil
		}
	}

	l.nextID++
	entry.ID = l.nextID
	l.entries = append(l.entries, entry)

	return entry.ID, nil
}

func (l *fakeLedger) byReference(referenceID string) []model.LedgerEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []model.LedgerEntry
	for _, entry := range l.entries {
		if entry.ReferenceID == referenceID {
			out = append(out, entry)
		}
	}

	return out
}

type fakeRoundStore struct {
	mu     sync.Mutex
	rounds map[int64]*model.Round
	nextID int64
}

func newFakeRoundStore() *fakeRoundStore {
	return &fakeRoundStore{rounds: make(map[int64]*model.Round)}
}

func (s *fakeRoundStore) SaveRound(round model.Round) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	round.RoundNumber = s.nextID
	s.rounds[s.nextID] = &round

	return s.nextID, nil
}

func (s *fakeRoundStore) MarkSettled(roundNumber int64, params, result json.RawMessage, multiplier float64, payout, profit int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	round, ok := s.rounds[roundNumber]
	if !ok || round.Status == model.RoundCompleted {
		return repository.ErrRoundNotFound
	}

	round.Status = model.RoundCompleted
	round.Params = params
	round.Result = result
	round.Multiplier = multiplier
	round.Payout = payout
	round.Profit = profit
	round.SeedRevealed = true
	now := time.Now()
	round.SettledAt = &now

	return nil
}

func (s *fakeRoundStore) AttachLedgerRefs(roundNumber int64, refs []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	round, ok := s.rounds[roundNumber]
	if !ok {
		return repository.ErrRoundNotFound
	}

	round.LedgerRefs = refs

	return nil
}

func (s *fakeRoundStore) GetRoundByNumber(roundNumber int64) (*model.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	round, ok := s.rounds[roundNumber]
	if !ok {
		return nil, repository.ErrRoundNotFound
	}

	copied := *round

	return &copied, nil
}

func (s *fakeRoundStore) FindStuckActive(olderThan time.Time) ([]model.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stuck []model.Round
	for _, round := range s.rounds {
		if round.Status == model.RoundActive && round.CreatedAt.Before(olderThan) {
			stuck = append(stuck, *round)
		}
	}

	return stuck, nil
}

type fakeNonces struct {
	mu       sync.Mutex
	counters map[string]int64
}

func newFakeNonces() *fakeNonces {
	return &fakeNonces{counters: make(map[string]int64)}
}

func (n *fakeNonces) Next(playerID int64, game config.Game) (int64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	key := fmt.Sprintf("%d:%s", playerID, game)
	n.counters[key]++

	return n.counters[key], nil
}

type testRig struct {
	engine *Engine
	wallet *fakeWallet
	ledger *fakeLedger
	rounds *fakeRoundStore
}

func newTestRig(t *testing.T, balances map[int64]int64) *testRig {
	t.Helper()

	wallet := newFakeWallet(balances)
	ledger := &fakeLedger{}
	rounds := newFakeRoundStore()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	eng := New(
		log,
		games.NewRegistry(0.01),
		wallet,
		ledger,
		rounds,
		newFakeNonces(),
		nil,
		config.Casino{
			HouseEdge:           0.01,
			RoundTimeout:        5 * time.Minute,
			VerificationBaseURL: "http://localhost:8080/rounds",
		},
	)

	return &testRig{engine: eng, wallet: wallet, ledger: ledger, rounds: rounds}
}

func diceRequest(stake int64) PlayRequest {
	return PlayRequest{
		PlayerID: 42,
		TenantID: 1,
		WalletID: 7,
		Game:     config.Dice,
		Stake:    stake,
		Currency: "USD",
		Params: games.Params{
			Dice: &games.DiceParams{Target: 50, Direction: games.DiceOver},
		},
	}
}

// Player with $100 plays dice, target 50 over, stake $10. Win pays exactly
// 1.98x: $109.80 after a win, $90.00 after a loss, with matching ledger
// entries either way.
func TestQuickPlayDiceScenario(t *testing.T) {
	for i := 0; i < 40; i++ {
		rig := newTestRig(t, map[int64]int64{7: 10000})

		res, err := rig.engine.QuickPlay(diceRequest(1000))
		require.NoError(t, err)

		entries := rig.ledger.byReference(res.Round.RoundID)
		require.Len(t, entries, 2)
		assert.Equal(t, config.EntryStake, entries[0].EntryType)
		assert.Equal(t, int64(1000), entries[0].Amount)

		if res.Outcome.Won {
			assert.Equal(t, 1.98, res.Round.Multiplier)
			assert.Equal(t, int64(1980), res.Round.Payout)
			assert.Equal(t, int64(980), res.Round.Profit)
			assert.Equal(t, int64(10980), res.NewBalance)
			assert.Equal(t, config.EntryWin, entries[1].EntryType)
			assert.Equal(t, int64(1980), entries[1].Amount)
		} else {
			assert.Equal(t, int64(0), res.Round.Payout)
			assert.Equal(t, int64(-1000), res.Round.Profit)
			assert.Equal(t, int64(9000), res.NewBalance)
			assert.Equal(t, config.EntryLoss, entries[1].EntryType)
			assert.Equal(t, int64(1000), entries[1].Amount)
		}

		assert.Equal(t, model.RoundCompleted, res.Round.Status)
		assert.True(t, res.Round.SeedRevealed)
		assert.Equal(t, res.Round.LedgerRefs, []int64{entries[0].ID, entries[1].ID})
	}
}

// For every settled round the wallet moves by exactly payout - stake.
func TestQuickPlayConservation(t *testing.T) {
	rig := newTestRig(t, map[int64]int64{7: 1000000})

	for i := 0; i < 200; i++ {
		before, err := rig.wallet.Balance(7)
		require.NoError(t, err)

		res, err := rig.engine.QuickPlay(diceRequest(500))
		require.NoError(t, err)

		after, err := rig.wallet.Balance(7)
		require.NoError(t, err)

		assert.Equal(t, before-500+res.Round.Payout, after,
			"balance drifted at round %d", i)
		assert.Equal(t, after, res.NewBalance)
	}
}

func TestQuickPlayValidation(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(req *PlayRequest)
		wantErr error
	}{
		{
			name:    "ZeroStake",
			mutate:  func(req *PlayRequest) { req.Stake = 0 },
			wantErr: ErrInvalidStake,
		},
		{
			name:    "NegativeStake",
			mutate:  func(req *PlayRequest) { req.Stake = -100 },
			wantErr: ErrInvalidStake,
		},
		{
			name:    "UnknownGame",
			mutate:  func(req *PlayRequest) { req.Game = "blackjack" },
			wantErr: games.ErrUnsupportedGame,
		},
		{
			name: "BadParams",
			mutate: func(req *PlayRequest) {
				req.Params = games.Params{Dice: &games.DiceParams{Target: 0, Direction: games.DiceOver}}
			},
			wantErr: games.ErrInvalidParams,
		},
	}

	for _, tc := range cases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			rig := newTestRig(t, map[int64]int64{7: 10000})

			req := diceRequest(1000)
			tc.mutate(&req)

			_, err := rig.engine.QuickPlay(req)
			require.ErrorIs(t, err, tc.wantErr)

			// Validation failures must not touch funds.
			balance, err := rig.wallet.Balance(7)
			require.NoError(t, err)
			assert.Equal(t, int64(10000), balance)
			assert.Empty(t, rig.ledger.entries)
		})
	}
}

// A single-call mines round without a reveal set must be rejected before
// the debit: past that point no round record exists yet, so a stake taken
// for an unplayable round would be invisible to reconciliation.
func TestQuickPlayMinesRequiresReveals(t *testing.T) {
	rig := newTestRig(t, map[int64]int64{7: 10000})

	_, err := rig.engine.QuickPlay(PlayRequest{
		PlayerID: 42,
		TenantID: 1,
		WalletID: 7,
		Game:     config.Mines,
		Stake:    1000,
		Currency: "USD",
		Params: games.Params{
			Mines: &games.MinesParams{MinesCount: 5},
		},
	})
	require.ErrorIs(t, err, games.ErrInvalidParams)

	var settlementErr *SettlementError
	assert.False(t, errors.As(err, &settlementErr), "validation must fail before settlement starts")

	balance, err := rig.wallet.Balance(7)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), balance)
	assert.Empty(t, rig.ledger.entries)
	assert.Empty(t, rig.rounds.rounds)
}

func TestQuickPlayInsufficientBalance(t *testing.T) {
	rig := newTestRig(t, map[int64]int64{7: 500})

	_, err := rig.engine.QuickPlay(diceRequest(1000))
	require.ErrorIs(t, err, repository.ErrInsufficientBalance)

	balance, err := rig.wallet.Balance(7)
	require.NoError(t, err)
	assert.Equal(t, int64(500), balance)
	assert.Empty(t, rig.ledger.entries)
}

// N concurrent rounds against a balance covering exactly K of them: K debits
// succeed, the rest fail with insufficient balance, never over-debiting.
// Payouts land in a sink so wins cannot refill the budget under test.
func TestQuickPlayNoDoubleSpend(t *testing.T) {
	const (
		concurrent = 20
		affordable = 5
		stake      = 1000
	)

	rig := newTestRig(t, map[int64]int64{7: affordable * stake})
	rig.wallet.creditsToSink = true

	var wg sync.WaitGroup
	errs := make(chan error, concurrent)

	for i := 0; i < concurrent; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := rig.engine.QuickPlay(diceRequest(stake))
			errs <- err
		}()
	}

	wg.Wait()
	close(errs)

	var succeeded, rejected int
	for err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, repository.ErrInsufficientBalance):
			rejected++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	assert.Equal(t, affordable, succeeded)
	assert.Equal(t, concurrent-affordable, rejected)

	// The budget is spent to exactly zero, never below.
	balance, err := rig.wallet.Balance(7)
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)
}

func TestQuickPlayNonceUniqueness(t *testing.T) {
	const concurrent = 50

	rig := newTestRig(t, map[int64]int64{7: concurrent * 1000})

	var wg sync.WaitGroup
	nonces := make(chan int64, concurrent)

	for i := 0; i < concurrent; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			res, err := rig.engine.QuickPlay(diceRequest(1000))
			if err != nil {
				t.Errorf("unexpected error: %v", err)

				return
			}

			nonces <- res.Round.Nonce
		}()
	}

	wg.Wait()
	close(nonces)

	seen := make(map[int64]bool)
	for nonce := range nonces {
		if seen[nonce] {
			t.Fatalf("nonce %d assigned twice", nonce)
		}
		seen[nonce] = true
	}
}

func TestQuickPlaySettlementFailure(t *testing.T) {
	rig := newTestRig(t, map[int64]int64{7: 10000})
	rig.ledger.failPost = true

	_, err := rig.engine.QuickPlay(diceRequest(1000))
	require.Error(t, err)

	var settlementErr *SettlementError
	require.ErrorAs(t, err, &settlementErr)
	assert.Equal(t, "stake-posting", settlementErr.Stage)

	// The stake stays debited: the draw happened, the round must be
	// reconciled, not rolled back.
	balance, err := rig.wallet.Balance(7)
	require.NoError(t, err)
	assert.Equal(t, int64(9000), balance)
}

func TestVerifyRound(t *testing.T) {
	rig := newTestRig(t, map[int64]int64{7: 10000})

	res, err := rig.engine.QuickPlay(diceRequest(1000))
	require.NoError(t, err)

	verification, err := rig.engine.VerifyRound(res.Round.RoundNumber)
	require.NoError(t, err)

	assert.True(t, verification.Verification.Valid)
	assert.Equal(t, res.Outcome.Won, verification.Outcome.Won)
	assert.Equal(t, res.Outcome.Multiplier, verification.Outcome.Multiplier)
	assert.NotEmpty(t, verification.HowToVerify)
}

func TestVerifyRoundTamperedSeed(t *testing.T) {
	rig := newTestRig(t, map[int64]int64{7: 10000})

	res, err := rig.engine.QuickPlay(diceRequest(1000))
	require.NoError(t, err)

	rig.rounds.mu.Lock()
	stored := rig.rounds.rounds[res.Round.RoundNumber]
	stored.ServerSeed = "0000000000000000000000000000000000000000000000000000000000000000"
	rig.rounds.mu.Unlock()

	_, err = rig.engine.VerifyRound(res.Round.RoundNumber)
	require.Error(t, err)
}

func TestTwoPhaseMines(t *testing.T) {
	rig := newTestRig(t, map[int64]int64{7: 10000})

	init, err := rig.engine.InitializeRound(PlayRequest{
		PlayerID: 42,
		TenantID: 1,
		WalletID: 7,
		Game:     config.Mines,
		Stake:    1000,
		Currency: "USD",
		Params: games.Params{
			Mines: &games.MinesParams{MinesCount: 5},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, model.RoundActive, init.Round.Status)
	assert.False(t, init.Round.SeedRevealed)
	assert.NotEmpty(t, init.Round.ServerSeedHash)
	assert.Equal(t, int64(9000), init.NewBalance)

	entries := rig.ledger.byReference(init.Round.RoundID)
	require.Len(t, entries, 1)
	assert.Equal(t, config.EntryStake, entries[0].EntryType)

	res, err := rig.engine.PlayRound(init.Round.RoundNumber, games.Params{
		Mines: &games.MinesParams{Revealed: []int{0, 1, 2}},
	})
	require.NoError(t, err)

	assert.Equal(t, model.RoundCompleted, res.Round.Status)
	assert.True(t, res.Round.SeedRevealed)
	require.Len(t, rig.ledger.byReference(init.Round.RoundID), 2)

	balance, err := rig.wallet.Balance(7)
	require.NoError(t, err)
	assert.Equal(t, int64(9000)+res.Round.Payout, balance)
	assert.Equal(t, balance, res.NewBalance)

	// A settled round cannot be played again.
	_, err = rig.engine.PlayRound(init.Round.RoundNumber, games.Params{
		Mines: &games.MinesParams{Revealed: []int{3}},
	})
	require.ErrorIs(t, err, ErrRoundNotOpen)
}

// A two-phase round settles on the merged params (initialization setup plus
// the phase-two action), and those must be what the record stores: the
// verifier replays from the persisted params and has to land on the exact
// settled outcome.
func TestVerifyTwoPhaseRound(t *testing.T) {
	rig := newTestRig(t, map[int64]int64{7: 10000})

	init, err := rig.engine.InitializeRound(PlayRequest{
		PlayerID: 42,
		TenantID: 1,
		WalletID: 7,
		Game:     config.Mines,
		Stake:    1000,
		Currency: "USD",
		Params: games.Params{
			Mines: &games.MinesParams{MinesCount: 5},
		},
	})
	require.NoError(t, err)

	res, err := rig.engine.PlayRound(init.Round.RoundNumber, games.Params{
		Mines: &games.MinesParams{Revealed: []int{0, 1, 2}},
	})
	require.NoError(t, err)

	stored, err := rig.rounds.GetRoundByNumber(init.Round.RoundNumber)
	require.NoError(t, err)

	var params games.Params
	require.NoError(t, json.Unmarshal(stored.Params, &params))
	require.NotNil(t, params.Mines)
	assert.Equal(t, 5, params.Mines.MinesCount)
	assert.Equal(t, []int{0, 1, 2}, params.Mines.Revealed)

	verification, err := rig.engine.VerifyRound(init.Round.RoundNumber)
	require.NoError(t, err)
	assert.True(t, verification.Verification.Valid)
	assert.Equal(t, res.Outcome.Won, verification.Outcome.Won)
	assert.Equal(t, res.Outcome.Multiplier, verification.Outcome.Multiplier)
}

// An explicit refund reverses the stake with a matching ledger entry and
// closes the round; afterward it can be neither played nor refunded again.
func TestRefundRound(t *testing.T) {
	rig := newTestRig(t, map[int64]int64{7: 10000})

	init, err := rig.engine.InitializeRound(PlayRequest{
		PlayerID: 42,
		TenantID: 1,
		WalletID: 7,
		Game:     config.Mines,
		Stake:    1000,
		Currency: "USD",
		Params: games.Params{
			Mines: &games.MinesParams{MinesCount: 5},
		},
	})
	require.NoError(t, err)
	require.Equal(t, int64(9000), init.NewBalance)

	res, err := rig.engine.RefundRound(init.Round.RoundNumber)
	require.NoError(t, err)

	assert.Equal(t, model.RoundCompleted, res.Round.Status)
	assert.Equal(t, int64(0), res.Round.Payout)
	assert.Equal(t, int64(0), res.Round.Profit)
	assert.Equal(t, int64(10000), res.NewBalance)

	entries := rig.ledger.byReference(init.Round.RoundID)
	require.Len(t, entries, 2)
	assert.Equal(t, config.EntryStake, entries[0].EntryType)
	assert.Equal(t, config.EntryRefund, entries[1].EntryType)
	assert.Equal(t, int64(1000), entries[1].Amount)
	assert.Equal(t, config.AccountHouseFloat, entries[1].DebitAccount)

	_, err = rig.engine.PlayRound(init.Round.RoundNumber, games.Params{
		Mines: &games.MinesParams{Revealed: []int{0}},
	})
	require.ErrorIs(t, err, ErrRoundNotOpen)

	_, err = rig.engine.RefundRound(init.Round.RoundNumber)
	require.ErrorIs(t, err, ErrRoundNotOpen)
}

func TestReconcileStuck(t *testing.T) {
	rig := newTestRig(t, map[int64]int64{7: 10000})

	init, err := rig.engine.InitializeRound(PlayRequest{
		PlayerID: 42,
		TenantID: 1,
		WalletID: 7,
		Game:     config.Mines,
		Stake:    1000,
		Currency: "USD",
		Params: games.Params{
			Mines: &games.MinesParams{MinesCount: 5},
		},
	})
	require.NoError(t, err)

	// Age the round past the timeout.
	rig.rounds.mu.Lock()
	rig.rounds.rounds[init.Round.RoundNumber].CreatedAt = time.Now().Add(-time.Hour)
	rig.rounds.mu.Unlock()

	require.NoError(t, rig.engine.ReconcileStuck())

	round, err := rig.rounds.GetRoundByNumber(init.Round.RoundNumber)
	require.NoError(t, err)

	assert.Equal(t, model.RoundCompleted, round.Status)
	assert.Equal(t, int64(0), round.Payout)
	assert.Equal(t, int64(-1000), round.Profit)

	entries := rig.ledger.byReference(init.Round.RoundID)
	require.Len(t, entries, 2)
	assert.Equal(t, config.EntryLoss, entries[1].EntryType)
	assert.Equal(t, int64(1000), entries[1].Amount)
}
