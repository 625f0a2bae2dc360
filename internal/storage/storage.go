package storage

import (
	"context"
	"time"
)

// Storage abstracts persistence for rates, discounts, contracts, readings,
// and the supporting auth/config tables.
type Storage interface {
	// Rates
	CreateRate(ctx context.Context, r Rate) (*Rate, error)
	ListRates(ctx context.Context) ([]Rate, error)
	GetRate(ctx context.Context, id uint) (*Rate, error)
	GetRateByName(ctx context.Context, name string) (*Rate, error)
	// ActivateRate clears the rate's end date; DeactivateRate sets it.
	ActivateRate(ctx context.Context, id uint) error
	DeactivateRate(ctx context.Context, id uint, end time.Time) error

	// Discounts
	CreateDiscount(ctx context.Context, d Discount) (*Discount, error)
	ActivateDiscount(ctx context.Context, id uint) error
	DeactivateDiscount(ctx context.Context, id uint, end time.Time) error

	// Contracts
	CreateContract(ctx context.Context, c Contract) (*Contract, error)
	// ListContractsByUser returns the user's contracts, newest first.
	// activeOnly filters to IsActive contracts.
	ListContractsByUser(ctx context.Context, userID uint, activeOnly bool) ([]Contract, error)
	// GetContract loads a contract with its rate and the rate's discounts.
	// Returns nil when the contract does not exist or belongs to another user.
	GetContract(ctx context.Context, id, userID uint) (*Contract, error)
	// GetContractByNumber returns nil when no contract carries the number.
	GetContractByNumber(ctx context.Context, number string) (*Contract, error)
	UpdateContract(ctx context.Context, c Contract) error

	// Readings
	ReadingsForDate(ctx context.Context, contractID uint, date time.Time) ([]Reading, error)
	ReadingsBetween(ctx context.Context, contractID uint, start, end time.Time) ([]Reading, error)
	CreateReading(ctx context.Context, r Reading) (*Reading, error)
	// ReplaceReadings deletes any stored reading with the same (date, hour)
	// key as an incoming one, then inserts the batch. All deletions happen
	// before any insertion.
	ReplaceReadings(ctx context.Context, contractID uint, readings []Reading) ([]Reading, error)

	// Bill snapshots
	SaveBillSnapshot(ctx context.Context, snap BillSnapshot) error
	GetBillSnapshot(ctx context.Context, contractID uint, month string) (*BillSnapshot, error)

	// Users
	CreateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	UpdateUser(ctx context.Context, user User) error
	ListUsers(ctx context.Context) ([]User, error)

	// Tokens
	CreateToken(ctx context.Context, token Token) error
	GetTokenByHash(ctx context.Context, hash string) (*Token, error)
	ListTokens(ctx context.Context, userID string) ([]Token, error)
	DeleteToken(ctx context.Context, id string) error
	UpdateTokenLastUsed(ctx context.Context, id string) error

	// Casbin rules
	LoadCasbinRules(ctx context.Context) ([]CasbinRule, error)
	AddCasbinRule(ctx context.Context, rule CasbinRule) error
	RemoveCasbinRule(ctx context.Context, rule CasbinRule) error

	// Email config
	GetEmailConfig(ctx context.Context) (*EmailConfig, error)
	SaveEmailConfig(ctx context.Context, config EmailConfig) error

	// Settings
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error

	// Scheduled jobs & locking
	AcquireAdvisoryLock(ctx context.Context, key int64) (bool, error)
	ReleaseAdvisoryLock(ctx context.Context, key int64) (bool, error)
	UpdateScheduledJob(ctx context.Context, name string, started time.Time, dur time.Duration, success bool, errMsg string) error

	Ping(ctx context.Context) error
	Close() error
}

// DateOnly normalizes t to midnight in its own location, matching how
// reading dates are stored.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
