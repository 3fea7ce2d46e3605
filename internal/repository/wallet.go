package repository

import (
	"database/sql"
	"fmt"
	"time"

	"casino-core/internal/http-server/handlers/mysql"
)

type WalletRepository struct {
	dbhandler mysql.Handler
}

func NewWalletRepository(dbhandler mysql.Handler) *WalletRepository {
	return &WalletRepository{dbhandler: dbhandler}
}

// Debit decrements the balance only if it covers the amount, in a single
// conditional update. LAST_INSERT_ID(expr) rides back on the OK packet, so
// the post-debit balance comes from the same atomic statement instead of a
// racy follow-up read.
func (repo *WalletRepository) Debit(walletID int64, amount int64) (int64, error) {
	const op = "repository.wallet.Debit"

	now := time.Now()

	const query = "UPDATE wallet_balances SET balance = LAST_INSERT_ID(balance - ?), updated_at = ? " +
		"WHERE id = ? AND balance >= ?"
	res, err := repo.dbhandler.PrepareAndExecute(query, amount, now, walletID, amount)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	if affected == 0 {
		if _, err = repo.Balance(walletID); err != nil {
			return 0, err
		}

		return 0, fmt.Errorf("%s: %w", op, ErrInsufficientBalance)
	}

	newBalance, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return newBalance, nil
}

// Credit is an unconditional atomic increment; it only fails if the wallet
// does not exist.
func (repo *WalletRepository) Credit(walletID int64, amount int64) (int64, error) {
	const op = "repository.wallet.Credit"

	now := time.Now()

	const query = "UPDATE wallet_balances SET balance = LAST_INSERT_ID(balance + ?), updated_at = ? " +
		"WHERE id = ?"
	res, err := repo.dbhandler.PrepareAndExecute(query, amount, now, walletID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	if affected == 0 {
		return 0, fmt.Errorf("%s: %w", op, ErrWalletNotFound)
	}

	newBalance, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return newBalance, nil
}

func (repo *WalletRepository) Balance(walletID int64) (int64, error) {
	const op = "repository.wallet.Balance"

	const query = "SELECT balance FROM wallet_balances WHERE id = ?"
	row, err := repo.dbhandler.PrepareAndQueryRow(query, walletID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	var balance int64

	if err = row.Scan(&balance); err != nil {
		if err == sql.ErrNoRows {
			return 0, fmt.Errorf("%s: %w", op, ErrWalletNotFound)
		}

		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return balance, nil
}
