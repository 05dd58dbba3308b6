// File: internal/usecase/mocks_test.go
package usecase_test

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"vpn-subscription-billing/internal/domain"
	"vpn-subscription-billing/internal/domain/model"
	"vpn-subscription-billing/internal/domain/ports/adapter"
	"vpn-subscription-billing/internal/domain/ports/repository"
)

// newTestLogger creates a silent zerolog.Logger so test output stays clean.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// memIntentRepo is a small in-memory ledger with the same CAS semantics as
// the Postgres implementation, including the OR-matched lookup key.
type memIntentRepo struct {
	mu    sync.Mutex
	store map[string]*model.PaymentIntent // by intent ID

	saveErr     error
	markPaidErr error
}

func newMemIntentRepo() *memIntentRepo {
	return &memIntentRepo{store: make(map[string]*model.PaymentIntent)}
}

func (m *memIntentRepo) Save(ctx context.Context, tx repository.Tx, p *model.PaymentIntent) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.store[p.ID] = &cp
	return nil
}

func (m *memIntentRepo) FindByOrderID(ctx context.Context, tx repository.Tx, orderID string) (*model.PaymentIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.store {
		if p.OrderID == orderID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memIntentRepo) FindByLookupKey(ctx context.Context, tx repository.Tx, key string) (*model.PaymentIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p := m.byLookupKeyLocked(key); p != nil {
		cp := *p
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (m *memIntentRepo) byLookupKeyLocked(key string) *model.PaymentIntent {
	for _, p := range m.store {
		if p.OrderID == key {
			return p
		}
	}
	for _, p := range m.store {
		if p.ProviderReference == key {
			return p
		}
	}
	return nil
}

func (m *memIntentRepo) MarkPaidIfPending(ctx context.Context, tx repository.Tx, lookupKey string, paidAt time.Time) (*model.PaymentIntent, bool, error) {
	if m.markPaidErr != nil {
		return nil, false, m.markPaidErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p := m.byLookupKeyLocked(lookupKey)
	if p == nil || p.Status != model.PaymentStatusPending {
		return nil, false, nil
	}
	p.Status = model.PaymentStatusPaid
	p.PaidAt = &paidAt
	p.UpdatedAt = paidAt
	cp := *p
	return &cp, true, nil
}

func (m *memIntentRepo) MarkFailedIfPending(ctx context.Context, tx repository.Tx, orderID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.store {
		if p.OrderID == orderID && p.Status == model.PaymentStatusPending {
			p.Status = model.PaymentStatusFailed
			p.UpdatedAt = time.Now()
			return true, nil
		}
	}
	return false, nil
}

func (m *memIntentRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.PaymentIntent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.PaymentIntent
	for _, p := range m.store {
		if p.Status == model.PaymentStatusPending && p.CreatedAt.Before(olderThan) {
			cp := *p
			out = append(out, &cp)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (m *memIntentRepo) SumPaidByPeriod(ctx context.Context, tx repository.Tx, period string) (map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sums := make(map[string]int64)
	for _, p := range m.store {
		if p.Status == model.PaymentStatusPaid {
			sums[p.Currency] += p.Amount
		}
	}
	return sums, nil
}

type memTariffRepo struct {
	mu    sync.RWMutex
	store map[string]*model.Tariff
}

func newMemTariffRepo() *memTariffRepo {
	return &memTariffRepo{store: make(map[string]*model.Tariff)}
}

func (m *memTariffRepo) put(t *model.Tariff) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store[t.ID] = t
}

func (m *memTariffRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Tariff, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memTariffRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.Tariff, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*model.Tariff, 0, len(m.store))
	for _, t := range m.store {
		cp := *t
		out = append(out, &cp)
	}
	return out, nil
}

type memPromoRepo struct {
	mu    sync.Mutex
	store map[string]*model.PromoCode
}

func newMemPromoRepo() *memPromoRepo {
	return &memPromoRepo{store: make(map[string]*model.PromoCode)}
}

func (m *memPromoRepo) put(p *model.PromoCode) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store[p.ID] = p
}

func (m *memPromoRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PromoCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memPromoRepo) FindByCode(ctx context.Context, tx repository.Tx, code string) (*model.PromoCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.store {
		if p.Code == code {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memPromoRepo) ConsumeUse(ctx context.Context, tx repository.Tx, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.store[id]
	if !ok {
		return false, domain.ErrNotFound
	}
	if p.UsesLeft <= 0 {
		return false, nil
	}
	p.UsesLeft--
	return true, nil
}

func (m *memPromoRepo) usesLeft(id string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store[id].UsesLeft
}

type memUserRepo struct {
	mu         sync.Mutex
	store      map[string]*model.User
	balanceErr error
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{store: make(map[string]*model.User)}
}

func (m *memUserRepo) put(u *model.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store[u.ID] = u
}

func (m *memUserRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.store[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUserRepo) AddBalance(ctx context.Context, tx repository.Tx, id string, deltaMinor int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.balanceErr != nil {
		return m.balanceErr
	}
	u, ok := m.store[id]
	if !ok {
		return domain.ErrNotFound
	}
	u.BalanceMinor += deltaMinor
	return nil
}

func (m *memUserRepo) balance(id string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store[id].BalanceMinor
}

// fakeProvider is a scriptable adapter.PaymentProvider.
type fakeProvider struct {
	key        string
	currencies []string
	createErr  error
	created    []adapter.ChargeRequest
}

func (f *fakeProvider) Key() string { return f.key }

func (f *fakeProvider) Supports(currency string) bool {
	for _, c := range f.currencies {
		if c == currency {
			return true
		}
	}
	return false
}

func (f *fakeProvider) CreateCharge(ctx context.Context, req adapter.ChargeRequest) (*adapter.Charge, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, req)
	return &adapter.Charge{
		RedirectURL:       "https://pay.example/" + req.OrderID,
		ProviderReference: "ref-" + req.OrderID,
	}, nil
}

func (f *fakeProvider) VerifyWebhook(r *http.Request, body []byte) (*adapter.Notification, error) {
	return nil, domain.ErrOperationFailed
}

func (f *fakeProvider) Ack(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// fakeResolver is a one-provider registry stand-in.
type fakeResolver struct {
	provider adapter.PaymentProvider
}

func (f *fakeResolver) Resolve(key string) (adapter.PaymentProvider, error) {
	if f.provider != nil && f.provider.Key() == key {
		return f.provider, nil
	}
	return nil, domain.ErrUnknownProvider
}

// fakeProvisioning records updates and can fail either call.
type fakeProvisioning struct {
	mu       sync.Mutex
	state    map[string]*adapter.ProvisionedUser
	fetchErr error
	updErr   error
	updates  []adapter.ProvisioningUpdate
}

func newFakeProvisioning() *fakeProvisioning {
	return &fakeProvisioning{state: make(map[string]*adapter.ProvisionedUser)}
}

func (f *fakeProvisioning) FetchUser(ctx context.Context, externalID string) (*adapter.ProvisionedUser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	u, ok := f.state[externalID]
	if !ok {
		return &adapter.ProvisionedUser{ExternalID: externalID}, nil
	}
	cp := *u
	return &cp, nil
}

func (f *fakeProvisioning) UpdateUser(ctx context.Context, upd adapter.ProvisioningUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updErr != nil {
		return f.updErr
	}
	f.updates = append(f.updates, upd)
	return nil
}

func (f *fakeProvisioning) updateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.updates)
}

type fakeBotSync struct {
	mu     sync.Mutex
	synced []string
	err    error
}

func (f *fakeBotSync) SyncUser(ctx context.Context, provisioningID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.synced = append(f.synced, provisioningID)
	return nil
}

type fakeCache struct {
	mu          sync.Mutex
	invalidated []string
}

func (f *fakeCache) InvalidateUser(ctx context.Context, provisioningID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invalidated = append(f.invalidated, provisioningID)
}

// inlineDispatcher runs submitted tasks synchronously so tests observe the
// sync side effect without a real worker pool.
type inlineDispatcher struct{}

func (inlineDispatcher) Submit(task func(ctx context.Context) error) error {
	return task(context.Background())
}

// fakeTxManager runs the function without a real transaction; the in-memory
// repos ignore the tx handle.
type fakeTxManager struct{}

func (fakeTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	return fn(ctx, nil)
}
