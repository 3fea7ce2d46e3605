package model

import (
	"encoding/json"
	"time"

	"casino-core/internal/config"
)

type RoundStatus string

const (
	RoundPending   RoundStatus = "pending"
	RoundActive    RoundStatus = "active"
	RoundCompleted RoundStatus = "completed"
)

// Round is the unit of play. RoundNumber is the storage autoincrement used
// for lookups; RoundID embeds game type, timestamp and a random suffix so a
// single identifier is enough to diagnose a support ticket.
type Round struct {
	RoundNumber int64           `json:"round_number"`
	RoundID     string          `json:"round_id"`
	PlayerID    int64           `json:"player_id"`
	TenantID    int64           `json:"tenant_id"`
	WalletID    int64           `json:"wallet_id"`
	Game        config.Game     `json:"game"`
	Stake       int64           `json:"stake"`
	Currency    string          `json:"currency"`
	Params      json.RawMessage `json:"params"`
	Status      RoundStatus     `json:"status"`
	Result      json.RawMessage `json:"result"`
	Multiplier  float64         `json:"multiplier"`
	Payout      int64           `json:"payout"`
	Profit      int64           `json:"profit"`

	ServerSeed     string `json:"server_seed"`
	ServerSeedHash string `json:"server_seed_hash"`
	ClientSeed     string `json:"client_seed"`
	Nonce          int64  `json:"nonce"`
	SeedRevealed   bool   `json:"seed_revealed"`

	LedgerRefs []int64 `json:"ledger_refs"`

	CreatedAt time.Time  `json:"created_at"`
	SettledAt *time.Time `json:"settled_at"`
}
