package payment

import (
	"context"
	"net/http"
	"sync"

	"payhub-be/internal/config"
	"payhub-be/internal/order"

	"github.com/stretchr/testify/mock"
)

// MockRoundTripper allows us to mock the HTTP response
type MockRoundTripper func(req *http.Request) *http.Response

func (f MockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req), nil
}

type MockRoundTripperWithError func(req *http.Request) (*http.Response, error)

func (f MockRoundTripperWithError) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

const (
	testBankSecret    = "BANKSECRETKEY0123456789"
	testWalletSecret  = "WALLETSECRETKEY0123"
	testWalletAccess  = "WALLETACCESS"
	testCardSecret    = "sk_test_123"
	testWebhookSecret = "whsec_test_123"
)

func testCredentials() config.Static {
	return config.Static{
		config.ProviderBankRedirect: {
			Provider:     config.ProviderBankRedirect,
			MerchantCode: "TESTTMN1",
			SecretKey:    testBankSecret,
			BaseURL:      "https://bank.test/paymentv2/vpcpay.html",
			Sandbox:      true,
		},
		config.ProviderWallet: {
			Provider:     config.ProviderWallet,
			MerchantCode: "WALLETPARTNER",
			AccessKey:    testWalletAccess,
			SecretKey:    testWalletSecret,
			BaseURL:      "https://wallet.test/v2/gateway/api/create",
			Sandbox:      true,
		},
		config.ProviderCard: {
			Provider:      config.ProviderCard,
			SecretKey:     testCardSecret,
			WebhookSecret: testWebhookSecret,
			BaseURL:       "https://card.test",
			Sandbox:       true,
		},
	}
}

// ---- Repository ----

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) SaveAttempt(ctx context.Context, a *Attempt) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

func (m *MockRepository) UpdateAttempt(ctx context.Context, a *Attempt) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

func (m *MockRepository) FindAttempt(ctx context.Context, paymentID string) (*Attempt, error) {
	args := m.Called(ctx, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Attempt), args.Error(1)
}

func (m *MockRepository) FindAttemptByReference(ctx context.Context, method Method, ref string) (*Attempt, error) {
	args := m.Called(ctx, method, ref)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Attempt), args.Error(1)
}

// memRepository is an in-memory Repository with the same version check as
// the postgres one.
type memRepository struct {
	mu       sync.Mutex
	attempts map[string]Attempt
	updates  int
}

func newMemRepository(attempts ...Attempt) *memRepository {
	r := &memRepository{attempts: make(map[string]Attempt)}
	for _, a := range attempts {
		r.attempts[a.PaymentID] = a
	}
	return r
}

func (r *memRepository) SaveAttempt(_ context.Context, a *Attempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts[a.PaymentID] = *a
	return nil
}

func (r *memRepository) UpdateAttempt(_ context.Context, a *Attempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.attempts[a.PaymentID]
	if !ok || cur.Version != a.Version {
		return ErrConcurrentUpdate
	}
	a.Version++
	r.attempts[a.PaymentID] = *a
	r.updates++
	return nil
}

func (r *memRepository) FindAttempt(_ context.Context, paymentID string) (*Attempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	a, ok := r.attempts[paymentID]
	if !ok {
		return nil, ErrAttemptNotFound
	}
	return &a, nil
}

// FindAttemptByReference mirrors the SQL ordering: pending first, then newest.
func (r *memRepository) FindAttemptByReference(_ context.Context, method Method, ref string) (*Attempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var best *Attempt
	for _, a := range r.attempts {
		if a.Method != method || a.ProviderRef != ref {
			continue
		}
		if best == nil {
			cp := a
			best = &cp
			continue
		}
		pending, bestPending := a.Status == StatusPending, best.Status == StatusPending
		if (pending && !bestPending) || (pending == bestPending && a.CreatedAt.After(best.CreatedAt)) {
			cp := a
			best = &cp
		}
	}
	if best == nil {
		return nil, ErrAttemptNotFound
	}
	return best, nil
}

func (r *memRepository) get(paymentID string) Attempt {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attempts[paymentID]
}

func (r *memRepository) updateCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.updates
}

// ---- Collaborators ----

type MockOrderStore struct {
	mock.Mock
}

func (m *MockOrderStore) FindOwned(ctx context.Context, idOrNumber, userID string) (*order.Order, error) {
	args := m.Called(ctx, idOrNumber, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderStore) MarkAsPaid(ctx context.Context, orderID string) error {
	args := m.Called(ctx, orderID)
	return args.Error(0)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, userID, title, message, kind string) error {
	args := m.Called(ctx, userID, title, message, kind)
	return args.Error(0)
}

type MockGateway struct {
	mock.Mock
	method Method
}

func (m *MockGateway) Method() Method { return m.method }

func (m *MockGateway) Pay(ctx context.Context, req *PaymentRequest) *PaymentResult {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*PaymentResult)
}

func (m *MockGateway) VerifyCallback(cb *Callback) error {
	args := m.Called(cb)
	return args.Error(0)
}
