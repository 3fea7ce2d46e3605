package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"casino-core/internal/config"
	"casino-core/internal/http-server/handlers/mysql"
	"casino-core/internal/http-server/model"
)

type RoundRepository struct {
	dbhandler mysql.Handler
}

func NewRoundRepository(dbhandler mysql.Handler) *RoundRepository {
	return &RoundRepository{dbhandler: dbhandler}
}

func (repo *RoundRepository) SaveRound(round model.Round) (int64, error) {
	const op = "repository.round.SaveRound"

	ledgerRefs, err := json.Marshal(round.LedgerRefs)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	const query = "INSERT INTO rounds" +
		"(round_id, player_id, tenant_id, wallet_id, game, stake, currency, params, status, " +
		"result, multiplier, payout, profit, " +
		"server_seed, server_seed_hash, client_seed, nonce, seed_revealed, ledger_refs, created_at, settled_at) " +
		"VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)"
	res, err := repo.dbhandler.PrepareAndExecute(query,
		round.RoundID,
		round.PlayerID,
		round.TenantID,
		round.WalletID,
		string(round.Game),
		round.Stake,
		round.Currency,
		[]byte(round.Params),
		string(round.Status),
		[]byte(round.Result),
		round.Multiplier,
		round.Payout,
		round.Profit,
		round.ServerSeed,
		round.ServerSeedHash,
		round.ClientSeed,
		round.Nonce,
		round.SeedRevealed,
		ledgerRefs,
		round.CreatedAt,
		round.SettledAt,
	)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	roundNumber, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return roundNumber, nil
}

// MarkSettled moves an active round to completed and reveals the seed. The
// settled params overwrite the ones stored at initialization so the round
// record carries the action the player actually took; verification replays
// from these. The status guard keeps settlement one-way: a completed round
// is never revised.
func (repo *RoundRepository) MarkSettled(
	roundNumber int64,
	params json.RawMessage,
	result json.RawMessage,
	multiplier float64,
	payout int64,
	profit int64,
) error {
	const op = "repository.round.MarkSettled"

	now := time.Now()

	const query = "UPDATE rounds SET status = ?, params = ?, result = ?, multiplier = ?, payout = ?, profit = ?, " +
		"seed_revealed = TRUE, settled_at = ? WHERE round_number = ? AND status != ?"
	res, err := repo.dbhandler.PrepareAndExecute(query,
		string(model.RoundCompleted), []byte(params), []byte(result), multiplier, payout, profit, now,
		roundNumber, string(model.RoundCompleted))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if affected == 0 {
		return fmt.Errorf("%s: %w", op, ErrRoundNotFound)
	}

	return nil
}

// AttachLedgerRefs is the only mutation allowed after completion: it wires
// the round to the ledger entries it produced.
func (repo *RoundRepository) AttachLedgerRefs(roundNumber int64, refs []int64) error {
	const op = "repository.round.AttachLedgerRefs"

	ledgerRefs, err := json.Marshal(refs)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	const query = "UPDATE rounds SET ledger_refs = ? WHERE round_number = ?"
	if _, err = repo.dbhandler.PrepareAndExecute(query, ledgerRefs, roundNumber); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (repo *RoundRepository) GetRoundByNumber(roundNumber int64) (*model.Round, error) {
	const op = "repository.round.GetRoundByNumber"

	const query = "SELECT round_number, round_id, player_id, tenant_id, wallet_id, game, stake, currency, " +
		"params, status, result, multiplier, payout, profit, " +
		"server_seed, server_seed_hash, client_seed, nonce, seed_revealed, ledger_refs, created_at, settled_at " +
		"FROM rounds WHERE round_number = ?"
	row, err := repo.dbhandler.PrepareAndQueryRow(query, roundNumber)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	round, err := scanRound(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%s: %w", op, ErrRoundNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return round, nil
}

// FindStuckActive lists two-phase rounds left in active state beyond the
// reconciliation timeout: stake debited, nothing settled.
func (repo *RoundRepository) FindStuckActive(olderThan time.Time) ([]model.Round, error) {
	const op = "repository.round.FindStuckActive"

	const query = "SELECT round_number, round_id, player_id, tenant_id, wallet_id, game, stake, currency, " +
		"params, status, result, multiplier, payout, profit, " +
		"server_seed, server_seed_hash, client_seed, nonce, seed_revealed, ledger_refs, created_at, settled_at " +
		"FROM rounds WHERE status = ? AND created_at < ?"
	rows, err := repo.dbhandler.PrepareAndQuery(query, string(model.RoundActive), olderThan)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var rounds []model.Round

	for rows.Next() {
		round, err := scanRound(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		rounds = append(rounds, *round)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return rounds, nil
}

type RTPFilter struct {
	TenantID int64
	Game     config.Game
	From     time.Time
	To       time.Time
}

type RTPRow struct {
	Game          config.Game
	Rounds        int64
	TotalStaked   int64
	TotalPayout   int64
	AvgMultiplier float64
}

// AggregateRTP sums completed rounds per game type. Read path only:
// it reports on randomness, it never feeds back into it.
func (repo *RoundRepository) AggregateRTP(filter RTPFilter) ([]RTPRow, error) {
	const op = "repository.round.AggregateRTP"

	query := "SELECT game, COUNT(*), COALESCE(SUM(stake), 0), COALESCE(SUM(payout), 0), COALESCE(AVG(multiplier), 0) " +
		"FROM rounds WHERE status = ?"
	args := []interface{}{string(model.RoundCompleted)}

	if filter.TenantID != 0 {
		query += " AND tenant_id = ?"
		args = append(args, filter.TenantID)
	}

	if filter.Game != "" {
		query += " AND game = ?"
		args = append(args, string(filter.Game))
	}

	if !filter.From.IsZero() {
		query += " AND settled_at >= ?"
		args = append(args, filter.From)
	}

	if !filter.To.IsZero() {
		query += " AND settled_at < ?"
		args = append(args, filter.To)
	}

	query += " GROUP BY game"

	rows, err := repo.dbhandler.PrepareAndQuery(query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var result []RTPRow

	for rows.Next() {
		var row RTPRow

		err = rows.Scan(&row.Game, &row.Rounds, &row.TotalStaked, &row.TotalPayout, &row.AvgMultiplier)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		result = append(result, row)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return result, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRound(row rowScanner) (*model.Round, error) {
	round := &model.Round{}

	var (
		params     []byte
		result     []byte
		ledgerRefs []byte
		settledAt  sql.NullTime
	)

	err := row.Scan(
		&round.RoundNumber,
		&round.RoundID,
		&round.PlayerID,
		&round.TenantID,
		&round.WalletID,
		&round.Game,
		&round.Stake,
		&round.Currency,
		&params,
		&round.Status,
		&result,
		&round.Multiplier,
		&round.Payout,
		&round.Profit,
		&round.ServerSeed,
		&round.ServerSeedHash,
		&round.ClientSeed,
		&round.Nonce,
		&round.SeedRevealed,
		&ledgerRefs,
		&round.CreatedAt,
		&settledAt,
	)
	if err != nil {
		return nil, err
	}

	round.Params = json.RawMessage(params)
	round.Result = json.RawMessage(result)

	if len(ledgerRefs) > 0 {
		if err = json.Unmarshal(ledgerRefs, &round.LedgerRefs); err != nil {
			return nil, err
		}
	}

	if settledAt.Valid {
		round.SettledAt = &settledAt.Time
	}

	return round, nil
}
