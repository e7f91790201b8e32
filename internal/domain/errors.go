package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors carry no infrastructure dependency.

var (
	// Validation errors
	ErrInvalidAmount    = errors.New("amount must be a positive integer")
	ErrInvalidUsername  = errors.New("username must be 3-32 characters")
	ErrInvalidTitle     = errors.New("title is required")
	ErrEmptyContent     = errors.New("content is required")
	ErrInvalidRating    = errors.New("rating must be between 1 and 5")
	ErrInvalidRole      = errors.New("role must be user or admin")
	ErrDuplicateComment = errors.New("the same comment was posted recently")

	// Not found errors
	ErrAccountNotFound  = errors.New("account not found")
	ErrBountyNotFound   = errors.New("bounty not found")
	ErrAnswerNotFound   = errors.New("answer not found for this bounty")
	ErrMaterialNotFound = errors.New("material not found")
	ErrBadgeNotFound    = errors.New("badge not found")
	ErrPostNotFound     = errors.New("post not found")

	// Precondition errors
	ErrInsufficientBalance = errors.New("insufficient XP balance")
	ErrBountyNotOpen       = errors.New("bounty is not open")
	ErrNotBountyPoster     = errors.New("only the bounty poster can do this")
	ErrAccountBanned       = errors.New("account is banned")
	ErrRateLimited         = errors.New("too many requests, slow down")
	ErrForbidden           = errors.New("administrator role required")
	ErrNotMaterialOwner    = errors.New("only the uploader can do this")

	// Conflict errors
	ErrUsernameTaken = errors.New("username already taken")

	// ErrBalanceConflict signals a lost compare-and-swap on an account
	// balance. Transactions that fail with it are retried.
	ErrBalanceConflict = errors.New("account balance changed concurrently")
)
