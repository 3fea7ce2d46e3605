package config

type Game string

const (
	Dice  Game = "dice"
	Crash Game = "crash"
	Mines Game = "mines"
)

func (g Game) Valid() bool {
	switch g {
	case Dice, Crash, Mines:
		return true
	}

	return false
}

type EntryType string

const (
	EntryStake  EntryType = "stake"
	EntryWin    EntryType = "win"
	EntryLoss   EntryType = "loss"
	EntryRefund EntryType = "refund"
)

// Internal ledger account names. Player wallet accounts are addressed
// as "wallet:<id>" so postings stay self-describing in the audit trail.
const (
	AccountHouseFloat   = "house:float"
	AccountHouseRevenue = "house:revenue"
)
