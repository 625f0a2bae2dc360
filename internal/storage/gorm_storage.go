package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type GormStorage struct {
	db *gorm.DB
}

func NewGormStorage(driver, dsn string) (*GormStorage, error) {
	var gormDialector gorm.Dialector
	if driver == "postgres" || driver == "postgrespool" {
		gormDialector = postgres.Open(dsn)
	} else if driver == "sqlite" {
		gormDialector = sqlite.Open(dsn)
	} else {
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	db, err := gorm.Open(gormDialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	return &GormStorage{db: db}, nil
}

func (s *GormStorage) Migrate(ctx context.Context) error {
	return s.db.AutoMigrate(
		&Rate{},
		&Discount{},
		&Contract{},
		&Reading{},
		&BillSnapshot{},
		&Setting{},
		&User{},
		&Token{},
		&CasbinRule{},
		&EmailConfig{},
		&ScheduledJob{},
	)
}

// Rates

func (s *GormStorage) CreateRate(ctx context.Context, r Rate) (*Rate, error) {
	if err := s.db.WithContext(ctx).Create(&r).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *GormStorage) ListRates(ctx context.Context) ([]Rate, error) {
	var rates []Rate
	result := s.db.WithContext(ctx).Preload("Discounts").Find(&rates)
	return rates, result.Error
}

func (s *GormStorage) GetRate(ctx context.Context, id uint) (*Rate, error) {
	var rate Rate
	result := s.db.WithContext(ctx).Preload("Discounts").First(&rate, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &rate, nil
}

func (s *GormStorage) GetRateByName(ctx context.Context, name string) (*Rate, error) {
	var rate Rate
	result := s.db.WithContext(ctx).Preload("Discounts").First(&rate, "name = ?", name)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &rate, nil
}

func (s *GormStorage) ActivateRate(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Model(&Rate{}).Where("id = ?", id).Update("end_date", nil).Error
}

func (s *GormStorage) DeactivateRate(ctx context.Context, id uint, end time.Time) error {
	return s.db.WithContext(ctx).Model(&Rate{}).Where("id = ?", id).Update("end_date", end).Error
}

// Discounts

func (s *GormStorage) CreateDiscount(ctx context.Context, d Discount) (*Discount, error) {
	if err := s.db.WithContext(ctx).Create(&d).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *GormStorage) ActivateDiscount(ctx context.Context, id uint) error {
	return s.db.WithContext(ctx).Model(&Discount{}).Where("id = ?", id).Update("end_date", nil).Error
}

func (s *GormStorage) DeactivateDiscount(ctx context.Context, id uint, end time.Time) error {
	return s.db.WithContext(ctx).Model(&Discount{}).Where("id = ?", id).Update("end_date", end).Error
}

// Contracts

func (s *GormStorage) CreateContract(ctx context.Context, c Contract) (*Contract, error) {
	if err := s.db.WithContext(ctx).Create(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *GormStorage) ListContractsByUser(ctx context.Context, userID uint, activeOnly bool) ([]Contract, error) {
	var contracts []Contract
	q := s.db.WithContext(ctx).Preload("Rate").Preload("Rate.Discounts").
		Where("user_id = ?", userID).Order("created_at desc")
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	result := q.Find(&contracts)
	return contracts, result.Error
}

func (s *GormStorage) GetContract(ctx context.Context, id, userID uint) (*Contract, error) {
	var c Contract
	result := s.db.WithContext(ctx).Preload("Rate").Preload("Rate.Discounts").
		First(&c, "id = ? AND user_id = ?", id, userID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &c, nil
}

func (s *GormStorage) GetContractByNumber(ctx context.Context, number string) (*Contract, error) {
	var c Contract
	result := s.db.WithContext(ctx).First(&c, "contract_number = ?", number)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &c, nil
}

func (s *GormStorage) UpdateContract(ctx context.Context, c Contract) error {
	return s.db.WithContext(ctx).Save(&c).Error
}

// Readings

func (s *GormStorage) ReadingsForDate(ctx context.Context, contractID uint, date time.Time) ([]Reading, error) {
	var readings []Reading
	result := s.db.WithContext(ctx).
		Where("contract_id = ? AND date = ?", contractID, DateOnly(date)).
		Order("hour asc").Find(&readings)
	return readings, result.Error
}

func (s *GormStorage) ReadingsBetween(ctx context.Context, contractID uint, start, end time.Time) ([]Reading, error) {
	var readings []Reading
	result := s.db.WithContext(ctx).
		Where("contract_id = ? AND date BETWEEN ? AND ?", contractID, start, end).
		Order("date asc, hour asc").Find(&readings)
	return readings, result.Error
}

func (s *GormStorage) CreateReading(ctx context.Context, r Reading) (*Reading, error) {
	r.Date = DateOnly(r.Date)
	if err := s.db.WithContext(ctx).Create(&r).Error; err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *GormStorage) ReplaceReadings(ctx context.Context, contractID uint, readings []Reading) ([]Reading, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// All deletions run before any insertion so a replaced (date, hour)
		// key never coexists with its predecessor.
		for i := range readings {
			readings[i].ID = 0
			readings[i].ContractID = contractID
			readings[i].Date = DateOnly(readings[i].Date)
			if err := tx.Where("contract_id = ? AND date = ? AND hour = ?",
				contractID, readings[i].Date, readings[i].Hour).
				Delete(&Reading{}).Error; err != nil {
				return err
			}
		}
		return tx.Create(&readings).Error
	})
	if err != nil {
		return nil, err
	}
	return readings, nil
}

// Bill snapshots

func (s *GormStorage) SaveBillSnapshot(ctx context.Context, snap BillSnapshot) error {
	return s.db.WithContext(ctx).Create(&snap).Error
}

func (s *GormStorage) GetBillSnapshot(ctx context.Context, contractID uint, month string) (*BillSnapshot, error) {
	var snap BillSnapshot
	result := s.db.WithContext(ctx).Order("computed_at desc").
		First(&snap, "contract_id = ? AND month = ?", contractID, month)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &snap, nil
}

// Users

func (s *GormStorage) CreateUser(ctx context.Context, user User) error {
	return s.db.WithContext(ctx).Create(&user).Error
}

func (s *GormStorage) GetUser(ctx context.Context, id string) (*User, error) {
	var user User
	result := s.db.WithContext(ctx).First(&user, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &user, nil
}

func (s *GormStorage) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	var user User
	result := s.db.WithContext(ctx).First(&user, "username = ?", username)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &user, nil
}

func (s *GormStorage) UpdateUser(ctx context.Context, user User) error {
	return s.db.WithContext(ctx).Save(&user).Error
}

func (s *GormStorage) ListUsers(ctx context.Context) ([]User, error) {
	var users []User
	result := s.db.WithContext(ctx).Find(&users)
	return users, result.Error
}

// Tokens

func (s *GormStorage) CreateToken(ctx context.Context, token Token) error {
	return s.db.WithContext(ctx).Create(&token).Error
}

func (s *GormStorage) GetTokenByHash(ctx context.Context, hash string) (*Token, error) {
	var token Token
	result := s.db.WithContext(ctx).First(&token, "token_hash = ?", hash)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &token, nil
}

func (s *GormStorage) ListTokens(ctx context.Context, userID string) ([]Token, error) {
	var tokens []Token
	result := s.db.WithContext(ctx).Find(&tokens, "user_id = ?", userID)
	return tokens, result.Error
}

func (s *GormStorage) DeleteToken(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Delete(&Token{}, "id = ?", id).Error
}

func (s *GormStorage) UpdateTokenLastUsed(ctx context.Context, id string) error {
	now := time.Now()
	return s.db.WithContext(ctx).Model(&Token{}).Where("id = ?", id).Update("last_used_at", now).Error
}

// Casbin Rules

func (s *GormStorage) LoadCasbinRules(ctx context.Context) ([]CasbinRule, error) {
	var rules []CasbinRule
	result := s.db.WithContext(ctx).Find(&rules)
	return rules, result.Error
}

func (s *GormStorage) AddCasbinRule(ctx context.Context, rule CasbinRule) error {
	return s.db.WithContext(ctx).Create(&rule).Error
}

func (s *GormStorage) RemoveCasbinRule(ctx context.Context, rule CasbinRule) error {
	return s.db.WithContext(ctx).Where(&rule).Delete(&CasbinRule{}).Error
}

// Email Config

func (s *GormStorage) GetEmailConfig(ctx context.Context) (*EmailConfig, error) {
	var config EmailConfig
	result := s.db.WithContext(ctx).First(&config)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &config, nil
}

func (s *GormStorage) SaveEmailConfig(ctx context.Context, config EmailConfig) error {
	if config.ID == "" {
		config.ID = "default"
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&config).Error
}

// Settings

func (s *GormStorage) GetSetting(ctx context.Context, key string) (string, error) {
	var setting Setting
	result := s.db.WithContext(ctx).First(&setting, "key = ?", key)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return "", nil
		}
		return "", result.Error
	}
	return setting.Value, nil
}

func (s *GormStorage) SetSetting(ctx context.Context, key, value string) error {
	setting := Setting{
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now(),
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		UpdateAll: true,
	}).Create(&setting).Error
}

// Close & Ping

func (s *GormStorage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *GormStorage) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Scheduled Jobs & Locking

func (s *GormStorage) AcquireAdvisoryLock(ctx context.Context, key int64) (bool, error) {
	if s.db.Dialector.Name() == "postgres" {
		var ok bool
		err := s.db.WithContext(ctx).Raw("SELECT pg_try_advisory_lock(?)", key).Scan(&ok).Error
		return ok, err
	}
	// No advisory locks outside postgres; assume single instance.
	return true, nil
}

func (s *GormStorage) ReleaseAdvisoryLock(ctx context.Context, key int64) (bool, error) {
	if s.db.Dialector.Name() == "postgres" {
		var ok bool
		err := s.db.WithContext(ctx).Raw("SELECT pg_advisory_unlock(?)", key).Scan(&ok).Error
		return ok, err
	}
	return true, nil
}

func (s *GormStorage) UpdateScheduledJob(ctx context.Context, name string, started time.Time, dur time.Duration, success bool, errMsg string) error {
	status := 0
	if success {
		status = 1
	}
	job := ScheduledJob{
		Name:           name,
		LastRunAt:      started,
		LastDurationMs: dur.Milliseconds(),
		LastSuccess:    status,
		LastError:      errMsg,
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		UpdateAll: true,
	}).Create(&job).Error
}
