package model

import (
	"encoding/json"
	"time"

	"casino-core/internal/config"
)

type LedgerEntry struct {
	ID            int64            `json:"id"`
	DebitAccount  string           `json:"debit_account"`
	CreditAccount string           `json:"credit_account"`
	Amount        int64            `json:"amount"`
	Currency      string           `json:"currency"`
	EntryType     config.EntryType `json:"entry_type"`
	ReferenceID   string           `json:"reference_id"`
	Description   string           `json:"description"`
	Metadata      json.RawMessage  `json:"metadata"`
	CreatedAt     time.Time        `json:"created_at"`
}
