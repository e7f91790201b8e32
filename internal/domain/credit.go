package domain

import "time"

// ─── XP Ledger Types ────────────────────────────────────────────────────────
// XP is the single currency: it is earned by contributing, staked on
// bounties, and paid out to accepted answers. Every balance mutation is
// recorded as one LedgerEntry.

// EntryType represents the accounting side of a ledger entry.
type EntryType string

const (
	EntryDebit  EntryType = "DEBIT"
	EntryCredit EntryType = "CREDIT"
)

// TransactionType represents the business reason for a balance mutation.
type TransactionType string

const (
	TxEarn   TransactionType = "EARN"   // activity reward
	TxStake  TransactionType = "STAKE"  // escrowed into a bounty
	TxPayout TransactionType = "PAYOUT" // stake paid to an accepted answer
	TxRefund TransactionType = "REFUND" // stake returned on cancel
	TxAdjust TransactionType = "ADJUST" // operator grant
)

// EntryTypeFor returns the accounting side for a transaction type.
func EntryTypeFor(t TransactionType) EntryType {
	if t == TxStake {
		return EntryDebit
	}
	return EntryCredit
}

// Reason names the action that caused a ledger entry.
type Reason string

const (
	ReasonUpload  Reason = "upload"
	ReasonComment Reason = "comment"
	ReasonRating  Reason = "rating"
	ReasonPost    Reason = "post"
	ReasonAnswer  Reason = "bounty_answer"
	ReasonBounty  Reason = "bounty"
	ReasonAdmin   Reason = "admin"
)

// LedgerEntry is a single row in the XP audit ledger.
// Amount is signed: debits are negative.
type LedgerEntry struct {
	ID        int64           `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	Type      TransactionType `json:"type"`
	EntryType EntryType       `json:"entry_type"`
	AccountID int64           `json:"account_id"`
	Amount    int64           `json:"amount"`
	Reason    Reason          `json:"reason"`
	Ref       string          `json:"ref,omitempty"`
	Balance   int64           `json:"balance"`
}

// RewardSchedule is the XP paid for each contribution type.
type RewardSchedule struct {
	Upload  int64 `json:"upload" toml:"upload"`
	Comment int64 `json:"comment" toml:"comment"`
	Rating  int64 `json:"rating" toml:"rating"` // first rating of a material only
	Post    int64 `json:"post" toml:"post"`
	Answer  int64 `json:"answer" toml:"answer"`
}

// DefaultRewardSchedule returns the standard reward amounts.
func DefaultRewardSchedule() RewardSchedule {
	return RewardSchedule{
		Upload:  50,
		Comment: 5,
		Rating:  10,
		Post:    20,
		Answer:  2,
	}
}
