package repository

import (
	"fmt"
	"time"

	"casino-core/internal/http-server/handlers/mysql"
	"casino-core/internal/http-server/model"
)

type LedgerRepository struct {
	dbhandler mysql.Handler
}

func NewLedgerRepository(dbhandler mysql.Handler) *LedgerRepository {
	return &LedgerRepository{dbhandler: dbhandler}
}

// Post appends a double-entry posting. The table carries a unique key on
// (reference_id, entry_type), and the upsert echoes the existing id back, so
// retrying a posting for the same round is idempotent: same entry id, no
// second row.
func (repo *LedgerRepository) Post(entry model.LedgerEntry) (int64, error) {
	const op = "repository.ledger.Post"

	now := time.Now()

	const query = "INSERT INTO ledger_entries" +
		"(debit_account, credit_account, amount, currency, entry_type, reference_id, description, metadata, created_at) " +
		"VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?) " +
		"ON DUPLICATE KEY UPDATE id = LAST_INSERT_ID(id)"
	res, err := repo.dbhandler.PrepareAndExecute(query,
		entry.DebitAccount,
		entry.CreditAccount,
		entry.Amount,
		entry.Currency,
		string(entry.EntryType),
		entry.ReferenceID,
		entry.Description,
		[]byte(entry.Metadata),
		now,
	)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return id, nil
}

func (repo *LedgerRepository) FindByReference(referenceID string) ([]model.LedgerEntry, error) {
	const op = "repository.ledger.FindByReference"

	const query = "SELECT id, debit_account, credit_account, amount, currency, entry_type, reference_id, description, created_at " +
		"FROM ledger_entries WHERE reference_id = ? ORDER BY id"
	rows, err := repo.dbhandler.PrepareAndQuery(query, referenceID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var entries []model.LedgerEntry

	for rows.Next() {
		var entry model.LedgerEntry

		err = rows.Scan(
			&entry.ID,
			&entry.DebitAccount,
			&entry.CreditAccount,
			&entry.Amount,
			&entry.Currency,
			&entry.EntryType,
			&entry.ReferenceID,
			&entry.Description,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		entries = append(entries, entry)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return entries, nil
}
