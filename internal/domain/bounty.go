package domain

import "time"

// ─── Bounties ───────────────────────────────────────────────────────────────
// A bounty escrows XP from its poster. It leaves the open state exactly
// once: solved by accepting an answer, or removed by cancellation.

// BountyStatus is the lifecycle state of a bounty.
type BountyStatus string

const (
	BountyOpen   BountyStatus = "open"
	BountySolved BountyStatus = "solved"
)

// Bounty is a question with XP held in escrow.
type Bounty struct {
	ID          int64        `json:"id"`
	PosterID    int64        `json:"poster_id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Stake       int64        `json:"stake"`
	Status      BountyStatus `json:"status"`
	SolverID    *int64       `json:"solver_id,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	SolvedAt    *time.Time   `json:"solved_at,omitempty"`
}

// IsOpen reports whether the bounty still holds its stake.
func (b *Bounty) IsOpen() bool {
	return b.Status == BountyOpen && b.SolverID == nil
}

// BountyAnswer is a response to a bounty.
type BountyAnswer struct {
	ID        int64     `json:"id"`
	BountyID  int64     `json:"bounty_id"`
	AuthorID  int64     `json:"author_id"`
	Content   string    `json:"content"`
	Accepted  bool      `json:"accepted"`
	CreatedAt time.Time `json:"created_at"`
}

// BountyDetail is a bounty with its answers, accepted answer first.
type BountyDetail struct {
	Bounty
	Answers []BountyAnswer `json:"answers"`
}
