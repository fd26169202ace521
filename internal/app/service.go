/**
 * @description
 * This file contains the core business logic for the payments portal. The
 * `Service` struct orchestrates the payment lifecycle and the dual-identity
 * authentication scheme, coordinating between the database repository, the
 * session manager, and the message broker.
 *
 * Key features:
 * - Customer signup with bcrypt-hashed secrets and collect-all validation.
 * - Non-enumerable login failures for both principal kinds.
 * - Payment creation with server-assigned, uniqueness-enforced transaction
 *   references (bounded retry on collision).
 * - Employee resolution of pending payments through the storage layer's
 *   conditional update, surfaced as an already-resolved conflict on races.
 * - Publishes lifecycle events to RabbitMQ for asynchronous consumers.
 *
 * @dependencies
 * - context, errors, fmt, log, time, math/rand/v2: Standard Go libraries.
 * - github.com/google/uuid: For UUID generation.
 * - golang.org/x/crypto/bcrypt: One-way secret hashing.
 * - internal/domain, internal/store, pkg/rabbitmq: Models, data access, events.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/portalbank/payments-portal/internal/domain"
	"github.com/portalbank/payments-portal/internal/store"
	"github.com/portalbank/payments-portal/pkg/rabbitmq"
)

var (
	// ErrInvalidCredentials is returned for unknown identifiers and wrong
	// passwords alike so that login failures cannot be used to enumerate
	// accounts.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrNoEmployeesProvisioned distinguishes an empty employee store so the
	// API can answer the employee portal's "not set up yet" case.
	ErrNoEmployeesProvisioned = errors.New("no employees provisioned")
	// ErrInvalidDecision rejects verify actions other than complete/fail.
	ErrInvalidDecision = errors.New("invalid decision")
	// ErrPersistence wraps storage failures after retries are exhausted.
	ErrPersistence = errors.New("persistence failure")
)

// referenceAttempts bounds the regenerate-and-retry loop on transaction
// reference collisions before giving up with ErrPersistence.
const referenceAttempts = 3

// Service provides the core business logic for the payments portal.
type Service struct {
	repo          store.Repository
	sessions      *SessionManager
	eventProducer rabbitmq.Publisher
	newReference  func() string
}

// NewService creates a new portal service instance. producer may be nil when
// the message broker is unavailable; lifecycle events are then skipped.
func NewService(repo store.Repository, sessions *SessionManager, producer rabbitmq.Publisher) *Service {
	return &Service{
		repo:          repo,
		sessions:      sessions,
		eventProducer: producer,
		newReference:  generateTransactionReference,
	}
}

// generateTransactionReference builds a candidate reference from the wall
// clock plus a random suffix. Uniqueness is not assumed here: the payments
// table constraint is authoritative and CreatePayment retries on collision.
func generateTransactionReference() string {
	return fmt.Sprintf("TXN%d%04d", time.Now().UnixMilli(), rand.Intn(10000))
}

// Signup registers a new customer. All validation violations are collected
// and returned together; duplicate identity fields surface in the same
// list so the form can render them inline.
func (s *Service) Signup(ctx context.Context, req domain.SignupRequest) (*domain.Customer, error) {
	normalized, verr := ValidateSignupRequest(req)
	if verr.HasErrors() {
		return nil, verr
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(normalized.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	customer := &domain.Customer{
		ID:            uuid.New(),
		FullName:      normalized.FullName,
		IDNumber:      normalized.IDNumber,
		Username:      normalized.Username,
		AccountNumber: normalized.AccountNumber,
		PasswordHash:  string(hash),
	}

	if err := s.repo.CreateCustomer(ctx, customer); err != nil {
		switch {
		case errors.Is(err, store.ErrDuplicateUsername):
			return nil, &ValidationErrors{Errors: []string{"Username is already taken"}}
		case errors.Is(err, store.ErrDuplicateIDNumber):
			return nil, &ValidationErrors{Errors: []string{"ID number is already registered"}}
		case errors.Is(err, store.ErrDuplicateAccount):
			return nil, &ValidationErrors{Errors: []string{"Account number is already registered"}}
		}
		log.Printf("level=error component=service op=signup msg=\"customer insert failed\" err=%v", err)
		return nil, ErrPersistence
	}

	log.Printf("level=info component=service op=signup outcome=created customer_id=%s username=%s", customer.ID, customer.Username)
	return customer, nil
}

// AuthenticateCustomer verifies a customer's username/password pair and
// issues a session token. Unknown username and wrong password return the
// identical error.
func (s *Service) AuthenticateCustomer(ctx context.Context, req domain.LoginRequest) (string, *domain.Customer, error) {
	customer, err := s.repo.FindCustomerByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, store.ErrCustomerNotFound) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(customer.PasswordHash), []byte(req.Password)) != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.sessions.Issue(customer.ID, domain.KindCustomer, "")
	if err != nil {
		return "", nil, err
	}
	log.Printf("level=info component=service op=login kind=customer outcome=success customer_id=%s", customer.ID)
	return token, customer, nil
}

// AuthenticateEmployee verifies an employee's id/password pair and issues a
// session token carrying the employee's role.
func (s *Service) AuthenticateEmployee(ctx context.Context, req domain.EmployeeLoginRequest) (string, *domain.Employee, error) {
	employee, err := s.repo.FindEmployeeByEmployeeID(ctx, req.EmployeeID)
	if err != nil {
		if errors.Is(err, store.ErrEmployeeNotFound) {
			count, countErr := s.repo.CountEmployees(ctx)
			if countErr == nil && count == 0 {
				return "", nil, ErrNoEmployeesProvisioned
			}
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(employee.PasswordHash), []byte(req.Password)) != nil {
		return "", nil, ErrInvalidCredentials
	}

	token, err := s.sessions.Issue(employee.ID, domain.KindEmployee, employee.Role)
	if err != nil {
		return "", nil, err
	}
	log.Printf("level=info component=service op=login kind=employee outcome=success employee_id=%s role=%s", employee.EmployeeID, employee.Role)
	return token, employee, nil
}

// VerifySession validates a bearer token and resolves it to a live principal
// record. A principal that no longer exists invalidates the session.
func (s *Service) VerifySession(ctx context.Context, token string) (*domain.Principal, error) {
	claims, err := s.sessions.Verify(ctx, token)
	if err != nil {
		return nil, err
	}
	subjectID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, ErrSessionInvalid
	}

	switch claims.Kind {
	case domain.KindCustomer:
		customer, err := s.repo.FindCustomerByID(ctx, subjectID)
		if err != nil {
			if errors.Is(err, store.ErrCustomerNotFound) {
				return nil, ErrSessionInvalid
			}
			return nil, err
		}
		return &domain.Principal{Kind: domain.KindCustomer, Customer: customer}, nil
	case domain.KindEmployee:
		employee, err := s.repo.FindEmployeeByID(ctx, subjectID)
		if err != nil {
			if errors.Is(err, store.ErrEmployeeNotFound) {
				return nil, ErrSessionInvalid
			}
			return nil, err
		}
		return &domain.Principal{Kind: domain.KindEmployee, Employee: employee}, nil
	}
	return nil, ErrSessionInvalid
}

// Logout invalidates the presented session token.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.sessions.RevokeToken(ctx, token)
}

// ProvisionEmployee creates an employee record for administrative tooling.
// Employees never self-register; this is the only creation path.
func (s *Service) ProvisionEmployee(ctx context.Context, req domain.ProvisionEmployeeRequest) (*domain.Employee, error) {
	role := req.Role
	switch role {
	case domain.RoleTeller, domain.RoleManager, domain.RoleAdmin:
	case "":
		role = domain.RoleTeller
	default:
		return nil, &ValidationErrors{Errors: []string{"Role must be teller, manager or admin"}}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	department := sanitizeInput(req.Department)
	if department == "" {
		department = "customer service"
	}

	employee := &domain.Employee{
		ID:           uuid.New(),
		EmployeeID:   sanitizeInput(req.EmployeeID),
		FullName:     sanitizeInput(req.FullName),
		Email:        sanitizeInput(req.Email),
		PasswordHash: string(hash),
		Role:         role,
		Department:   department,
	}
	if employee.EmployeeID == "" || employee.FullName == "" || employee.Email == "" {
		return nil, &ValidationErrors{Errors: []string{"Employee id, full name and email are required"}}
	}

	if err := s.repo.CreateEmployee(ctx, employee); err != nil {
		switch {
		case errors.Is(err, store.ErrDuplicateEmployeeID):
			return nil, &ValidationErrors{Errors: []string{"Employee id is already provisioned"}}
		case errors.Is(err, store.ErrDuplicateEmail):
			return nil, &ValidationErrors{Errors: []string{"Email is already provisioned"}}
		}
		return nil, err
	}
	return employee, nil
}

// CreatePayment validates and persists a new payment owned by the given
// customer. The transaction reference is assigned here, before the entity is
// durably persisted, and the storage uniqueness constraint backs it up: on a
// collision a fresh candidate is generated, up to referenceAttempts times.
func (s *Service) CreatePayment(ctx context.Context, owner *domain.Customer, req domain.CreatePaymentRequest) (*domain.Payment, error) {
	validated, verr := ValidatePaymentRequest(req)
	if verr.HasErrors() {
		return nil, verr
	}

	payment := &domain.Payment{
		ID:                 uuid.New(),
		CustomerID:         owner.ID,
		PayeeAccountNumber: validated.PayeeAccountNumber,
		AmountCents:        validated.AmountCents,
		Currency:           validated.Currency,
		Provider:           validated.Provider,
		SwiftCode:          validated.SwiftCode,
		Status:             domain.StatusPending,
	}

	var err error
	for attempt := 0; attempt < referenceAttempts; attempt++ {
		payment.TransactionReference = s.newReference()
		err = s.repo.CreatePayment(ctx, payment)
		if err == nil {
			break
		}
		if !errors.Is(err, store.ErrDuplicateReference) {
			log.Printf("level=error component=service op=create_payment msg=\"payment insert failed\" customer_id=%s err=%v", owner.ID, err)
			return nil, ErrPersistence
		}
		log.Printf("level=warn component=service op=create_payment msg=\"reference collision; regenerating\" attempt=%d", attempt+1)
	}
	if err != nil {
		log.Printf("level=error component=service op=create_payment msg=\"reference collisions exhausted retries\" customer_id=%s", owner.ID)
		return nil, ErrPersistence
	}

	log.Printf("level=info component=service op=create_payment outcome=created payment_id=%s reference=%s amount_cents=%d currency=%s provider=%s",
		payment.ID, payment.TransactionReference, payment.AmountCents, payment.Currency, payment.Provider)
	s.publishPaymentEvent(ctx, "payment.created", payment)
	return payment, nil
}

// ListPaymentsForOwner returns the given customer's payments, newest first.
func (s *Service) ListPaymentsForOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.Payment, error) {
	return s.repo.ListPaymentsByCustomerID(ctx, ownerID)
}

// ListAllPayments returns every payment with owner identity joined, newest
// first. Callers must already have passed the employee gate.
func (s *Service) ListAllPayments(ctx context.Context) ([]domain.PaymentWithOwner, error) {
	return s.repo.ListPaymentsWithOwners(ctx)
}

// GetPayment retrieves a single payment by id.
func (s *Service) GetPayment(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	return s.repo.FindPaymentByID(ctx, id)
}

// ResolvePayment transitions a pending payment to its terminal status on an
// employee's decision. The transition happens exactly once: concurrent or
// repeated attempts surface store.ErrPaymentAlreadyResolved.
func (s *Service) ResolvePayment(ctx context.Context, paymentID uuid.UUID, decision string, actingEmployee *domain.Employee) (*domain.Payment, error) {
	var newStatus string
	switch decision {
	case domain.DecisionComplete:
		newStatus = domain.StatusCompleted
	case domain.DecisionFail:
		newStatus = domain.StatusFailed
	default:
		return nil, ErrInvalidDecision
	}

	payment, err := s.repo.ResolvePaymentStatus(ctx, paymentID, newStatus)
	if err != nil {
		return nil, err
	}

	log.Printf("level=info component=service op=resolve_payment outcome=%s payment_id=%s reference=%s employee_id=%s",
		newStatus, payment.ID, payment.TransactionReference, actingEmployee.EmployeeID)
	s.publishPaymentEvent(ctx, "payment."+newStatus, payment)
	return payment, nil
}

// publishPaymentEvent emits a lifecycle event; broker unavailability must
// never fail the request that triggered it.
func (s *Service) publishPaymentEvent(ctx context.Context, routingKey string, payment *domain.Payment) {
	if s.eventProducer == nil {
		return
	}
	event := domain.PaymentEvent{
		PaymentID:            payment.ID,
		CustomerID:           payment.CustomerID,
		TransactionReference: payment.TransactionReference,
		Status:               payment.Status,
		AmountCents:          payment.AmountCents,
		Currency:             payment.Currency,
		Provider:             payment.Provider,
		Timestamp:            time.Now().UTC(),
	}
	if err := s.eventProducer.PublishPaymentEvent(ctx, routingKey, event); err != nil {
		log.Printf("level=warn component=service msg=\"payment event publish failed\" routing_key=%s payment_id=%s err=%v", routingKey, payment.ID, err)
	}
}
