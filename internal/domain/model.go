package domain

import "time"

// ─── Account ────────────────────────────────────────────────────────────────

// Role is an account's privilege level.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Account is a participant holding an XP balance and a level.
type Account struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Role      Role      `json:"role"`
	XP        int64     `json:"xp"`
	Level     int       `json:"level"`
	Banned    bool      `json:"banned"`
	CreatedAt time.Time `json:"created_at"`
}

// IsAdmin reports whether the account holds the administrator role.
func (a *Account) IsAdmin() bool { return a.Role == RoleAdmin }

// ─── Leveling ───────────────────────────────────────────────────────────────
// threshold(level) = level² × 100. A grant promotes at most one level; a
// balance that jumps past several thresholds catches up over later grants.

// LevelThreshold returns the XP needed to leave the given level.
func LevelThreshold(level int) int64 {
	l := int64(level)
	return l * l * 100
}

// ApplyXP adds amount to a balance and applies single-step promotion.
func ApplyXP(xp int64, level int, amount int64) (newXP int64, newLevel int, leveledUp bool) {
	newXP = xp + amount
	newLevel = level
	if newXP >= LevelThreshold(level) {
		newLevel = level + 1
		leveledUp = true
	}
	return newXP, newLevel, leveledUp
}

// LevelProgress describes how far an account is through its current level.
type LevelProgress struct {
	Level       int     `json:"level"`
	CurrentXP   int64   `json:"current_xp"`
	NextLevelXP int64   `json:"next_level_xp"`
	XPToNext    int64   `json:"xp_to_next"`
	ProgressPct float64 `json:"progress_pct"`
}

// ProgressFor computes level progress. The floor of a level is the previous
// level's threshold (0 for level 1).
func ProgressFor(xp int64, level int) LevelProgress {
	next := LevelThreshold(level)
	var floor int64
	if level > 1 {
		floor = LevelThreshold(level - 1)
	}

	p := LevelProgress{
		Level:       level,
		CurrentXP:   xp,
		NextLevelXP: next,
		XPToNext:    max(next-xp, 0),
	}
	span := next - floor
	if span > 0 {
		p.ProgressPct = float64(xp-floor) / float64(span) * 100
	}
	p.ProgressPct = min(max(p.ProgressPct, 0), 100)
	return p
}

// Profile is an account together with its level progress.
type Profile struct {
	Account
	Progress LevelProgress `json:"progress"`
}
