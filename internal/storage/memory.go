package storage

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"
)

// MemoryStorage is an in-memory Storage implementation, useful for tests
// and simple single-process deployments.
type MemoryStorage struct {
	mu        sync.RWMutex
	nextID    uint
	rates     map[uint]Rate
	discounts map[uint]Discount
	contracts map[uint]Contract
	readings  map[uint]Reading
	snaps     map[string]BillSnapshot
	settings  map[string]string
	users     map[string]User
	tokens    map[string]Token
	emailCfg  *EmailConfig
}

func NewMemory() *MemoryStorage {
	return &MemoryStorage{
		nextID:    1,
		rates:     make(map[uint]Rate),
		discounts: make(map[uint]Discount),
		contracts: make(map[uint]Contract),
		readings:  make(map[uint]Reading),
		snaps:     make(map[string]BillSnapshot),
		settings:  make(map[string]string),
		users:     make(map[string]User),
		tokens:    make(map[string]Token),
	}
}

func (m *MemoryStorage) Close() error { return nil }

func (m *MemoryStorage) Ping(ctx context.Context) error { return nil }

func (m *MemoryStorage) allocID() uint {
	id := m.nextID
	m.nextID++
	return id
}

// Rates

func (m *MemoryStorage) CreateRate(ctx context.Context, r Rate) (*Rate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == 0 {
		r.ID = m.allocID()
	}
	m.rates[r.ID] = r
	cp := r
	return &cp, nil
}

func (m *MemoryStorage) ListRates(ctx context.Context) ([]Rate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Rate, 0, len(m.rates))
	for id := range m.rates {
		out = append(out, m.rateWithDiscounts(id))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStorage) GetRate(ctx context.Context, id uint) (*Rate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.rates[id]; !ok {
		return nil, nil
	}
	r := m.rateWithDiscounts(id)
	return &r, nil
}

func (m *MemoryStorage) GetRateByName(ctx context.Context, name string) (*Rate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for id, r := range m.rates {
		if r.Name == name {
			cp := m.rateWithDiscounts(id)
			return &cp, nil
		}
	}
	return nil, nil
}

// rateWithDiscounts returns a copy of the rate with its discounts attached,
// ordered by id. Callers must hold at least a read lock.
func (m *MemoryStorage) rateWithDiscounts(id uint) Rate {
	r := m.rates[id]
	var ds []Discount
	for _, d := range m.discounts {
		if d.RateID == id {
			ds = append(ds, d)
		}
	}
	sort.Slice(ds, func(i, j int) bool { return ds[i].ID < ds[j].ID })
	r.Discounts = ds
	return r
}

func (m *MemoryStorage) ActivateRate(ctx context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rates[id]; ok {
		r.EndDate = nil
		m.rates[id] = r
	}
	return nil
}

func (m *MemoryStorage) DeactivateRate(ctx context.Context, id uint, end time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rates[id]; ok {
		r.EndDate = &end
		m.rates[id] = r
	}
	return nil
}

// Discounts

func (m *MemoryStorage) CreateDiscount(ctx context.Context, d Discount) (*Discount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d.ID == 0 {
		d.ID = m.allocID()
	}
	m.discounts[d.ID] = d
	cp := d
	return &cp, nil
}

func (m *MemoryStorage) ActivateDiscount(ctx context.Context, id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.discounts[id]; ok {
		d.EndDate = nil
		m.discounts[id] = d
	}
	return nil
}

func (m *MemoryStorage) DeactivateDiscount(ctx context.Context, id uint, end time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d, ok := m.discounts[id]; ok {
		d.EndDate = &end
		m.discounts[id] = d
	}
	return nil
}

// Contracts

func (m *MemoryStorage) CreateContract(ctx context.Context, c Contract) (*Contract, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c.ID == 0 {
		c.ID = m.allocID()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	m.contracts[c.ID] = c
	cp := c
	return &cp, nil
}

func (m *MemoryStorage) ListContractsByUser(ctx context.Context, userID uint, activeOnly bool) ([]Contract, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Contract
	for id, c := range m.contracts {
		if c.UserID != userID {
			continue
		}
		if activeOnly && !c.IsActive {
			continue
		}
		out = append(out, m.contractWithRate(id))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStorage) GetContract(ctx context.Context, id, userID uint) (*Contract, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.contracts[id]
	if !ok || c.UserID != userID {
		return nil, nil
	}
	cp := m.contractWithRate(id)
	return &cp, nil
}

func (m *MemoryStorage) GetContractByNumber(ctx context.Context, number string) (*Contract, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for id, c := range m.contracts {
		if c.ContractNumber == number {
			cp := m.contractWithRate(id)
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *MemoryStorage) contractWithRate(id uint) Contract {
	c := m.contracts[id]
	if c.RateID != nil {
		if _, ok := m.rates[*c.RateID]; ok {
			r := m.rateWithDiscounts(*c.RateID)
			c.Rate = &r
		}
	}
	return c
}

func (m *MemoryStorage) UpdateContract(ctx context.Context, c Contract) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.contracts[c.ID]; !ok {
		return nil
	}
	c.Rate = nil
	m.contracts[c.ID] = c
	return nil
}

// Readings

func (m *MemoryStorage) ReadingsForDate(ctx context.Context, contractID uint, date time.Time) ([]Reading, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	day := DateOnly(date)
	var out []Reading
	for _, r := range m.readings {
		if r.ContractID == contractID && r.Date.Equal(day) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Hour < out[j].Hour })
	return out, nil
}

func (m *MemoryStorage) ReadingsBetween(ctx context.Context, contractID uint, start, end time.Time) ([]Reading, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Reading
	for _, r := range m.readings {
		if r.ContractID != contractID {
			continue
		}
		if r.Date.Before(start) || r.Date.After(end) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Hour < out[j].Hour
	})
	return out, nil
}

func (m *MemoryStorage) CreateReading(ctx context.Context, r Reading) (*Reading, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.ID == 0 {
		r.ID = m.allocID()
	}
	r.Date = DateOnly(r.Date)
	m.readings[r.ID] = r
	cp := r
	return &cp, nil
}

func (m *MemoryStorage) ReplaceReadings(ctx context.Context, contractID uint, readings []Reading) ([]Reading, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Deletions first, across the whole batch, then insertions.
	for i := range readings {
		readings[i].Date = DateOnly(readings[i].Date)
		for id, existing := range m.readings {
			if existing.ContractID == contractID &&
				existing.Date.Equal(readings[i].Date) &&
				existing.Hour == readings[i].Hour {
				delete(m.readings, id)
			}
		}
	}
	out := make([]Reading, 0, len(readings))
	for _, r := range readings {
		r.ID = m.allocID()
		r.ContractID = contractID
		m.readings[r.ID] = r
		out = append(out, r)
	}
	return out, nil
}

// Bill snapshots

func snapKey(contractID uint, month string) string {
	return month + ":" + strconv.FormatUint(uint64(contractID), 10)
}

func (m *MemoryStorage) SaveBillSnapshot(ctx context.Context, snap BillSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if snap.ComputedAt.IsZero() {
		snap.ComputedAt = time.Now()
	}
	m.snaps[snapKey(snap.ContractID, snap.Month)] = snap
	return nil
}

func (m *MemoryStorage) GetBillSnapshot(ctx context.Context, contractID uint, month string) (*BillSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.snaps[snapKey(contractID, month)]
	if !ok {
		return nil, nil
	}
	cp := s
	return &cp, nil
}

// Users

func (m *MemoryStorage) CreateUser(ctx context.Context, user User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = user
	return nil
}

func (m *MemoryStorage) GetUser(ctx context.Context, id string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (m *MemoryStorage) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Username == username {
			return &u, nil
		}
	}
	return nil, nil
}

func (m *MemoryStorage) UpdateUser(ctx context.Context, user User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.ID]; !ok {
		return nil
	}
	m.users[user.ID] = user
	return nil
}

func (m *MemoryStorage) ListUsers(ctx context.Context) ([]User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []User
	for _, u := range m.users {
		out = append(out, u)
	}
	return out, nil
}

// Tokens

func (m *MemoryStorage) CreateToken(ctx context.Context, token Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[token.ID] = token
	return nil
}

func (m *MemoryStorage) GetTokenByHash(ctx context.Context, hash string) (*Token, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.tokens {
		if t.TokenHash == hash {
			return &t, nil
		}
	}
	return nil, nil
}

func (m *MemoryStorage) ListTokens(ctx context.Context, userID string) ([]Token, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Token
	for _, t := range m.tokens {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *MemoryStorage) DeleteToken(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, id)
	return nil
}

func (m *MemoryStorage) UpdateTokenLastUsed(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.tokens[id]; ok {
		now := time.Now()
		t.LastUsedAt = &now
		m.tokens[id] = t
	}
	return nil
}

// Casbin rules are not persisted in memory; the enforcer keeps its own
// state and starts from default policies.

func (m *MemoryStorage) LoadCasbinRules(ctx context.Context) ([]CasbinRule, error) {
	return nil, nil
}

func (m *MemoryStorage) AddCasbinRule(ctx context.Context, rule CasbinRule) error {
	return nil
}

func (m *MemoryStorage) RemoveCasbinRule(ctx context.Context, rule CasbinRule) error {
	return nil
}

// Email config

func (m *MemoryStorage) GetEmailConfig(ctx context.Context) (*EmailConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.emailCfg == nil {
		return nil, nil
	}
	cfg := *m.emailCfg
	return &cfg, nil
}

func (m *MemoryStorage) SaveEmailConfig(ctx context.Context, config EmailConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emailCfg = &config
	return nil
}

// Settings

func (m *MemoryStorage) GetSetting(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings[key], nil
}

func (m *MemoryStorage) SetSetting(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[key] = value
	return nil
}

// Scheduled jobs & locking: single instance, locks always acquired.

func (m *MemoryStorage) AcquireAdvisoryLock(ctx context.Context, key int64) (bool, error) {
	return true, nil
}

func (m *MemoryStorage) ReleaseAdvisoryLock(ctx context.Context, key int64) (bool, error) {
	return true, nil
}

func (m *MemoryStorage) UpdateScheduledJob(ctx context.Context, name string, started time.Time, dur time.Duration, success bool, errMsg string) error {
	return nil
}
