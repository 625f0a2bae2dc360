package storage

import "time"

// Rate is a time-of-use tariff: per-period energy prices (currency/kWh) and
// optional per-period power prices (currency/kW/day). A rate with a nil
// EndDate is currently active.
type Rate struct {
	ID                  uint       `json:"id" gorm:"primaryKey;column:id"`
	Name                string     `json:"name" gorm:"column:name"`
	PeakEnergyPrice     float64    `json:"peakEnergyPrice" gorm:"column:peak_energy_price"`
	StandardEnergyPrice float64    `json:"standardEnergyPrice" gorm:"column:standard_energy_price"`
	OffPeakEnergyPrice  float64    `json:"offPeakEnergyPrice" gorm:"column:off_peak_energy_price"`
	PeakPowerPrice      *float64   `json:"peakPowerPrice,omitempty" gorm:"column:peak_power_price"`
	StandardPowerPrice  *float64   `json:"standardPowerPrice,omitempty" gorm:"column:standard_power_price"`
	OffPeakPowerPrice   *float64   `json:"offPeakPowerPrice,omitempty" gorm:"column:off_peak_power_price"`
	StartDate           time.Time  `json:"startDate" gorm:"column:start_date"`
	EndDate             *time.Time `json:"endDate,omitempty" gorm:"column:end_date"`
	Discounts           []Discount `json:"discounts,omitempty" gorm:"foreignKey:RateID"`
}

// Discount is a percentage reduction of energy cost under a given rate.
// A discount with a nil EndDate is currently active. StartHour/EndHour are
// carried from the original schema; the cost engine applies the percentage
// uniformly regardless of hour.
type Discount struct {
	ID         uint       `json:"id" gorm:"primaryKey;column:id"`
	Percentage float64    `json:"percentage" gorm:"column:percentage"`
	StartDate  time.Time  `json:"startDate" gorm:"column:start_date"`
	EndDate    *time.Time `json:"endDate,omitempty" gorm:"column:end_date"`
	StartHour  int        `json:"startHour" gorm:"column:start_hour"`
	EndHour    int        `json:"endHour" gorm:"column:end_hour"`
	RateID     uint       `json:"rateId" gorm:"column:rate_id"`
}

// Contract ties a meter to a user and a rate.
type Contract struct {
	ID             uint       `json:"id" gorm:"primaryKey;column:id"`
	ContractNumber string     `json:"contractNumber" gorm:"unique;column:contract_number"`
	SupplierName   string     `json:"supplierName" gorm:"column:supplier_name"`
	StartDate      time.Time  `json:"startDate" gorm:"column:start_date"`
	EndDate        *time.Time `json:"endDate,omitempty" gorm:"column:end_date"`
	IsActive       bool       `json:"isActive" gorm:"column:is_active"`
	UserID         uint       `json:"userId" gorm:"column:user_id"`
	RateID         *uint      `json:"rateId,omitempty" gorm:"column:rate_id"`
	Rate           *Rate      `json:"rate,omitempty" gorm:"foreignKey:RateID"`
	CreatedAt      time.Time  `json:"createdAt" gorm:"column:created_at"`
	UpdatedAt      time.Time  `json:"updatedAt" gorm:"column:updated_at"`
}

// Reading is one hour's metered energy consumption on a calendar day.
// Date carries no time-of-day component; it is normalized to local midnight.
type Reading struct {
	ID         uint      `json:"id" gorm:"primaryKey;column:id"`
	Date       time.Time `json:"date" gorm:"column:date"`
	Hour       int       `json:"hour" gorm:"column:hour"`
	Energy     float64   `json:"energy" gorm:"column:energy"`
	ContractID uint      `json:"contractId" gorm:"column:contract_id"`
	CreatedAt  time.Time `json:"createdAt" gorm:"column:created_at"`
	UpdatedAt  time.Time `json:"updatedAt" gorm:"column:updated_at"`
}

// BillSnapshot stores a precomputed monthly cost payload for a contract,
// written by the cron worker and consumed by the notification service.
type BillSnapshot struct {
	ID         uint      `json:"-" gorm:"primaryKey;column:id"`
	ContractID uint      `json:"contractId" gorm:"column:contract_id"`
	Month      string    `json:"month" gorm:"column:month"` // YYYY-MM
	Payload    []byte    `json:"payload" gorm:"column:payload"`
	ComputedAt time.Time `json:"computed_at" gorm:"column:computed_at"`
}

// User represents a registered user in the system.
type User struct {
	ID           string `json:"id" gorm:"primaryKey;column:id"`
	Username     string `json:"username" gorm:"unique;column:username"`
	FirstName    string `json:"first_name" gorm:"column:first_name"`
	LastName     string `json:"last_name" gorm:"column:last_name"`
	Email        string `json:"email" gorm:"column:email"`
	PasswordHash string `json:"-" gorm:"column:password_hash"`
	Role         string `json:"role" gorm:"column:role"`
	// AccountID links the auth user to the numeric owner id on contracts.
	AccountID uint      `json:"account_id" gorm:"column:account_id"`
	CreatedAt time.Time `json:"created_at" gorm:"column:created_at"`
	UpdatedAt time.Time `json:"updated_at" gorm:"column:updated_at"`
}

// Token represents an API access token.
type Token struct {
	ID         string     `json:"id" gorm:"primaryKey;column:id"`
	UserID     string     `json:"user_id" gorm:"column:user_id"`
	Name       string     `json:"name" gorm:"column:name"`
	TokenHash  string     `json:"-" gorm:"column:token_hash"`
	Role       string     `json:"role" gorm:"column:role"`
	CreatedAt  time.Time  `json:"created_at" gorm:"column:created_at"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty" gorm:"column:expires_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty" gorm:"column:last_used_at"`
}

// CasbinRule represents a policy rule for RBAC.
type CasbinRule struct {
	ID    uint   `gorm:"primaryKey"`
	PType string `json:"ptype" gorm:"column:ptype"`
	V0    string `json:"v0" gorm:"column:v0"`
	V1    string `json:"v1" gorm:"column:v1"`
	V2    string `json:"v2" gorm:"column:v2"`
	V3    string `json:"v3" gorm:"column:v3"`
	V4    string `json:"v4" gorm:"column:v4"`
	V5    string `json:"v5" gorm:"column:v5"`
}

// EmailConfig holds configuration for email notifications.
type EmailConfig struct {
	ID          string    `json:"id" gorm:"primaryKey;column:id"`
	Provider    string    `json:"provider" gorm:"column:provider"` // "smtp", "sendgrid", "gmail"
	Host        string    `json:"host,omitempty" gorm:"column:host"`
	Port        int       `json:"port,omitempty" gorm:"column:port"`
	Username    string    `json:"username,omitempty" gorm:"column:username"`
	Password    string    `json:"password,omitempty" gorm:"column:password"`
	FromAddress string    `json:"from_address" gorm:"column:from_address"`
	FromName    string    `json:"from_name" gorm:"column:from_name"`
	APIKey      string    `json:"api_key,omitempty" gorm:"column:api_key"`
	Encryption  string    `json:"encryption,omitempty" gorm:"column:encryption"` // "none", "ssl", "tls"
	Enabled     bool      `json:"enabled" gorm:"column:enabled"`
	CreatedAt   time.Time `json:"created_at" gorm:"column:created_at"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"column:updated_at"`
}

// Setting is a single key/value configuration row.
type Setting struct {
	Key       string    `gorm:"primaryKey;column:key"`
	Value     string    `gorm:"column:value"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

// ScheduledJob records the last outcome of a background job.
type ScheduledJob struct {
	Name           string    `gorm:"primaryKey;column:name"`
	LastRunAt      time.Time `gorm:"column:last_run_at"`
	LastDurationMs int64     `gorm:"column:last_duration_ms"`
	LastSuccess    int       `gorm:"column:last_success"`
	LastError      string    `gorm:"column:last_error"`
}
