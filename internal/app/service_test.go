package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/portalbank/payments-portal/internal/domain"
	"github.com/portalbank/payments-portal/internal/store"
)

// repoStub embeds the repository interface so each test only overrides the
// methods its code path touches. Unstubbed calls panic, which is the point.
type repoStub struct {
	store.Repository

	createCustomerFn           func(ctx context.Context, c *domain.Customer) error
	createEmployeeFn           func(ctx context.Context, e *domain.Employee) error
	findCustomerByUsernameFn   func(ctx context.Context, username string) (*domain.Customer, error)
	findEmployeeByEmployeeIDFn func(ctx context.Context, employeeID string) (*domain.Employee, error)
	countEmployeesFn           func(ctx context.Context) (int64, error)
	createPaymentFn            func(ctx context.Context, p *domain.Payment) error
	resolvePaymentStatusFn     func(ctx context.Context, id uuid.UUID, newStatus string) (*domain.Payment, error)
}

func (s *repoStub) CreateCustomer(ctx context.Context, c *domain.Customer) error {
	return s.createCustomerFn(ctx, c)
}

func (s *repoStub) CreateEmployee(ctx context.Context, e *domain.Employee) error {
	return s.createEmployeeFn(ctx, e)
}

func (s *repoStub) FindCustomerByUsername(ctx context.Context, username string) (*domain.Customer, error) {
	return s.findCustomerByUsernameFn(ctx, username)
}

func (s *repoStub) FindEmployeeByEmployeeID(ctx context.Context, employeeID string) (*domain.Employee, error) {
	return s.findEmployeeByEmployeeIDFn(ctx, employeeID)
}

func (s *repoStub) CountEmployees(ctx context.Context) (int64, error) {
	return s.countEmployeesFn(ctx)
}

func (s *repoStub) CreatePayment(ctx context.Context, p *domain.Payment) error {
	return s.createPaymentFn(ctx, p)
}

func (s *repoStub) ResolvePaymentStatus(ctx context.Context, id uuid.UUID, newStatus string) (*domain.Payment, error) {
	return s.resolvePaymentStatusFn(ctx, id, newStatus)
}

// eventRecorder captures published lifecycle events.
type eventRecorder struct {
	mu     sync.Mutex
	events []string
	fail   bool
}

func (r *eventRecorder) PublishPaymentEvent(_ context.Context, routingKey string, _ domain.PaymentEvent) error {
	if r.fail {
		return errors.New("broker unreachable")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, routingKey)
	return nil
}

func (r *eventRecorder) Close() {}

func newTestService(repo store.Repository, producer *eventRecorder) *Service {
	sessions := NewSessionManager("test-secret", time.Hour, nil)
	if producer == nil {
		return NewService(repo, sessions, nil)
	}
	return NewService(repo, sessions, producer)
}

func TestSignup_HashesPasswordBeforePersisting(t *testing.T) {
	var stored *domain.Customer
	repo := &repoStub{
		createCustomerFn: func(_ context.Context, c *domain.Customer) error {
			stored = c
			return nil
		},
	}
	svc := newTestService(repo, nil)

	req := domain.SignupRequest{
		FullName:      "Jane Doe",
		IDNumber:      "1234567890123",
		Username:      "jdoe1",
		AccountNumber: "1234567890",
		Password:      "Abc12345!",
	}
	customer, err := svc.Signup(context.Background(), req)
	if err != nil {
		t.Fatalf("signup failed: %v", err)
	}
	if stored == nil {
		t.Fatal("expected customer to be persisted")
	}
	if stored.PasswordHash == req.Password {
		t.Fatal("password stored in plaintext")
	}
	if bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte(req.Password)) != nil {
		t.Fatal("stored hash does not verify against the original password")
	}
	if customer.Username != "jdoe1" {
		t.Fatalf("unexpected username %q", customer.Username)
	}
}

func TestSignup_DuplicateUsernameSurfacesAsValidationError(t *testing.T) {
	repo := &repoStub{
		createCustomerFn: func(_ context.Context, _ *domain.Customer) error {
			return store.ErrDuplicateUsername
		},
	}
	svc := newTestService(repo, nil)

	_, err := svc.Signup(context.Background(), domain.SignupRequest{
		FullName:      "Jane Doe",
		IDNumber:      "1234567890123",
		Username:      "jdoe1",
		AccountNumber: "1234567890",
		Password:      "Abc12345!",
	})
	var verr *ValidationErrors
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationErrors, got %v", err)
	}
	if len(verr.Errors) != 1 || verr.Errors[0] != "Username is already taken" {
		t.Fatalf("unexpected violations %v", verr.Errors)
	}
}

func TestSignup_InvalidInputNeverReachesRepository(t *testing.T) {
	repo := &repoStub{
		createCustomerFn: func(_ context.Context, _ *domain.Customer) error {
			t.Fatal("repository must not be called for invalid input")
			return nil
		},
	}
	svc := newTestService(repo, nil)

	_, err := svc.Signup(context.Background(), domain.SignupRequest{Username: "x"})
	var verr *ValidationErrors
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationErrors, got %v", err)
	}
}

func TestAuthenticateCustomer_FailuresAreNonEnumerable(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("Correct1pass"), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("hash setup failed: %v", err)
	}
	known := &domain.Customer{ID: uuid.New(), Username: "jdoe1", PasswordHash: string(hash)}
	repo := &repoStub{
		findCustomerByUsernameFn: func(_ context.Context, username string) (*domain.Customer, error) {
			if username == known.Username {
				return known, nil
			}
			return nil, store.ErrCustomerNotFound
		},
	}
	svc := newTestService(repo, nil)

	_, _, unknownUserErr := svc.AuthenticateCustomer(context.Background(), domain.LoginRequest{Username: "ghost", Password: "Correct1pass"})
	_, _, wrongPassErr := svc.AuthenticateCustomer(context.Background(), domain.LoginRequest{Username: "jdoe1", Password: "Wrong1pass"})

	if !errors.Is(unknownUserErr, ErrInvalidCredentials) || !errors.Is(wrongPassErr, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for both, got %v and %v", unknownUserErr, wrongPassErr)
	}
	if unknownUserErr.Error() != wrongPassErr.Error() {
		t.Fatal("unknown-user and wrong-password failures must be indistinguishable")
	}

	token, customer, err := svc.AuthenticateCustomer(context.Background(), domain.LoginRequest{Username: "jdoe1", Password: "Correct1pass"})
	if err != nil {
		t.Fatalf("expected login to succeed, got %v", err)
	}
	if token == "" || customer.ID != known.ID {
		t.Fatal("expected a session token for the known customer")
	}
}

func TestAuthenticateEmployee_EmptyStoreIsDistinguished(t *testing.T) {
	repo := &repoStub{
		findEmployeeByEmployeeIDFn: func(_ context.Context, _ string) (*domain.Employee, error) {
			return nil, store.ErrEmployeeNotFound
		},
		countEmployeesFn: func(_ context.Context) (int64, error) { return 0, nil },
	}
	svc := newTestService(repo, nil)

	_, _, err := svc.AuthenticateEmployee(context.Background(), domain.EmployeeLoginRequest{EmployeeID: "EMP001", Password: "x"})
	if !errors.Is(err, ErrNoEmployeesProvisioned) {
		t.Fatalf("expected ErrNoEmployeesProvisioned, got %v", err)
	}

	// With employees provisioned, the same lookup failure is a plain
	// credential failure.
	repo.countEmployeesFn = func(_ context.Context) (int64, error) { return 3, nil }
	_, _, err = svc.AuthenticateEmployee(context.Background(), domain.EmployeeLoginRequest{EmployeeID: "EMP001", Password: "x"})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestCreatePayment_AssignsPendingStatusAndReference(t *testing.T) {
	var stored *domain.Payment
	repo := &repoStub{
		createPaymentFn: func(_ context.Context, p *domain.Payment) error {
			stored = p
			return nil
		},
	}
	producer := &eventRecorder{}
	svc := newTestService(repo, producer)
	owner := &domain.Customer{ID: uuid.New()}

	payment, err := svc.CreatePayment(context.Background(), owner, domain.CreatePaymentRequest{
		PayeeAccountNumber: "9876543210",
		Amount:             "500.00",
		Currency:           "ZAR",
		Provider:           "SWIFT",
		SwiftCode:          "ABSAZAJJ",
	})
	if err != nil {
		t.Fatalf("create payment failed: %v", err)
	}
	if payment.Status != domain.StatusPending {
		t.Fatalf("expected pending status, got %q", payment.Status)
	}
	if payment.TransactionReference == "" || stored.TransactionReference != payment.TransactionReference {
		t.Fatal("expected a server-assigned transaction reference")
	}
	if payment.CustomerID != owner.ID {
		t.Fatal("payment must be owned by the authenticated customer")
	}
	if payment.AmountCents != 50000 {
		t.Fatalf("expected 50000 cents, got %d", payment.AmountCents)
	}
	if len(producer.events) != 1 || producer.events[0] != "payment.created" {
		t.Fatalf("expected a payment.created event, got %v", producer.events)
	}
}

func TestCreatePayment_RetriesOnReferenceCollision(t *testing.T) {
	var seen []string
	attempts := 0
	repo := &repoStub{
		createPaymentFn: func(_ context.Context, p *domain.Payment) error {
			attempts++
			seen = append(seen, p.TransactionReference)
			if attempts < 3 {
				return store.ErrDuplicateReference
			}
			return nil
		},
	}
	svc := newTestService(repo, nil)
	counter := 0
	svc.newReference = func() string {
		counter++
		return fmt.Sprintf("TXN-test-%d", counter)
	}

	payment, err := svc.CreatePayment(context.Background(), &domain.Customer{ID: uuid.New()}, domain.CreatePaymentRequest{
		PayeeAccountNumber: "9876543210",
		Amount:             "10.00",
		Currency:           "USD",
		Provider:           "PayPal",
	})
	if err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
	if seen[0] == seen[1] || seen[1] == seen[2] {
		t.Fatalf("expected a fresh reference per attempt, got %v", seen)
	}
	if payment.TransactionReference != seen[2] {
		t.Fatalf("expected the surviving reference, got %q", payment.TransactionReference)
	}
}

func TestCreatePayment_GivesUpAfterBoundedRetries(t *testing.T) {
	attempts := 0
	repo := &repoStub{
		createPaymentFn: func(_ context.Context, _ *domain.Payment) error {
			attempts++
			return store.ErrDuplicateReference
		},
	}
	svc := newTestService(repo, nil)

	_, err := svc.CreatePayment(context.Background(), &domain.Customer{ID: uuid.New()}, domain.CreatePaymentRequest{
		PayeeAccountNumber: "9876543210",
		Amount:             "10.00",
		Currency:           "USD",
		Provider:           "PayPal",
	})
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("expected ErrPersistence after exhausted retries, got %v", err)
	}
	if attempts != referenceAttempts {
		t.Fatalf("expected %d attempts, got %d", referenceAttempts, attempts)
	}
}

func TestCreatePayment_ConcurrentCreationsGetDistinctReferences(t *testing.T) {
	var mu sync.Mutex
	references := map[string]bool{}
	repo := &repoStub{
		createPaymentFn: func(_ context.Context, p *domain.Payment) error {
			mu.Lock()
			defer mu.Unlock()
			if references[p.TransactionReference] {
				return store.ErrDuplicateReference
			}
			references[p.TransactionReference] = true
			return nil
		},
	}
	svc := newTestService(repo, nil)
	owner := &domain.Customer{ID: uuid.New()}

	const n = 50
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CreatePayment(context.Background(), owner, domain.CreatePaymentRequest{
				PayeeAccountNumber: "9876543210",
				Amount:             "25.00",
				Currency:           "EUR",
				Provider:           "Wire Transfer",
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent creation failed: %v", err)
		}
	}
	if len(references) != n {
		t.Fatalf("expected %d distinct references, got %d", n, len(references))
	}
}

func TestCreatePayment_BrokerFailureDoesNotFailRequest(t *testing.T) {
	repo := &repoStub{
		createPaymentFn: func(_ context.Context, _ *domain.Payment) error { return nil },
	}
	producer := &eventRecorder{fail: true}
	svc := newTestService(repo, producer)

	_, err := svc.CreatePayment(context.Background(), &domain.Customer{ID: uuid.New()}, domain.CreatePaymentRequest{
		PayeeAccountNumber: "9876543210",
		Amount:             "10.00",
		Currency:           "USD",
		Provider:           "PayPal",
	})
	if err != nil {
		t.Fatalf("expected creation to succeed despite broker failure, got %v", err)
	}
}

func TestResolvePayment_MapsDecisionsToTerminalStatuses(t *testing.T) {
	cases := []struct {
		decision string
		status   string
		event    string
	}{
		{domain.DecisionComplete, domain.StatusCompleted, "payment.completed"},
		{domain.DecisionFail, domain.StatusFailed, "payment.failed"},
	}
	employee := &domain.Employee{ID: uuid.New(), EmployeeID: "EMP001"}

	for _, tc := range cases {
		var requestedStatus string
		repo := &repoStub{
			resolvePaymentStatusFn: func(_ context.Context, id uuid.UUID, newStatus string) (*domain.Payment, error) {
				requestedStatus = newStatus
				return &domain.Payment{ID: id, Status: newStatus, TransactionReference: "TXN1"}, nil
			},
		}
		producer := &eventRecorder{}
		svc := newTestService(repo, producer)

		payment, err := svc.ResolvePayment(context.Background(), uuid.New(), tc.decision, employee)
		if err != nil {
			t.Fatalf("decision %q: resolve failed: %v", tc.decision, err)
		}
		if requestedStatus != tc.status || payment.Status != tc.status {
			t.Fatalf("decision %q: expected status %q, got %q", tc.decision, tc.status, payment.Status)
		}
		if len(producer.events) != 1 || producer.events[0] != tc.event {
			t.Fatalf("decision %q: expected event %q, got %v", tc.decision, tc.event, producer.events)
		}
	}
}

func TestResolvePayment_RejectsUnknownDecision(t *testing.T) {
	repo := &repoStub{
		resolvePaymentStatusFn: func(_ context.Context, _ uuid.UUID, _ string) (*domain.Payment, error) {
			t.Fatal("repository must not be called for invalid decisions")
			return nil, nil
		},
	}
	svc := newTestService(repo, nil)

	_, err := svc.ResolvePayment(context.Background(), uuid.New(), "approve", &domain.Employee{})
	if !errors.Is(err, ErrInvalidDecision) {
		t.Fatalf("expected ErrInvalidDecision, got %v", err)
	}
}

func TestResolvePayment_SurfacesAlreadyResolvedConflicts(t *testing.T) {
	repo := &repoStub{
		resolvePaymentStatusFn: func(_ context.Context, _ uuid.UUID, _ string) (*domain.Payment, error) {
			return nil, store.ErrPaymentAlreadyResolved
		},
	}
	svc := newTestService(repo, nil)

	_, err := svc.ResolvePayment(context.Background(), uuid.New(), domain.DecisionComplete, &domain.Employee{})
	if !errors.Is(err, store.ErrPaymentAlreadyResolved) {
		t.Fatalf("expected ErrPaymentAlreadyResolved to pass through, got %v", err)
	}
}

func TestProvisionEmployee_DefaultsRoleAndDepartment(t *testing.T) {
	var stored *domain.Employee
	repo := &repoStub{
		createEmployeeFn: func(_ context.Context, e *domain.Employee) error {
			stored = e
			return nil
		},
	}
	svc := newTestService(repo, nil)

	employee, err := svc.ProvisionEmployee(context.Background(), domain.ProvisionEmployeeRequest{
		EmployeeID: "EMP001",
		FullName:   "Sam Smith",
		Email:      "sam@portalbank.example",
		Password:   "Abc12345!",
	})
	if err != nil {
		t.Fatalf("provision failed: %v", err)
	}
	if employee.Role != domain.RoleTeller {
		t.Fatalf("expected default teller role, got %q", employee.Role)
	}
	if employee.Department != "customer service" {
		t.Fatalf("expected default department, got %q", employee.Department)
	}
	if stored.PasswordHash == "Abc12345!" {
		t.Fatal("employee password stored in plaintext")
	}
}

func TestProvisionEmployee_RejectsUnknownRole(t *testing.T) {
	svc := newTestService(&repoStub{}, nil)

	_, err := svc.ProvisionEmployee(context.Background(), domain.ProvisionEmployeeRequest{
		EmployeeID: "EMP001",
		FullName:   "Sam Smith",
		Email:      "sam@portalbank.example",
		Password:   "Abc12345!",
		Role:       "superuser",
	})
	var verr *ValidationErrors
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationErrors, got %v", err)
	}
}
