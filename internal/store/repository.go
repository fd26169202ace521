/**
 * @description
 * This file defines the `Repository` interface, which specifies the contract
 * for all data access operations required by the payments portal. By defining
 * an interface, we decouple the application's business logic from the
 * specific database implementation (e.g., PostgreSQL), making the code more
 * modular and easier to test.
 *
 * The storage layer is responsible for two guarantees the rest of the system
 * leans on:
 *   - uniqueness constraints on customer username / id number / account
 *     number, employee id / email, and payment transaction reference;
 *   - the conditional pending->terminal payment update that serializes
 *     concurrent resolve attempts across server processes.
 *
 * @dependencies
 * - context: Standard Go library.
 * - github.com/google/uuid: For UUID handling.
 * - internal/domain: For the service's domain models.
 */

package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/portalbank/payments-portal/internal/domain"
)

var (
	ErrCustomerNotFound       = errors.New("customer not found")
	ErrEmployeeNotFound       = errors.New("employee not found")
	ErrPaymentNotFound        = errors.New("payment not found")
	ErrPaymentAlreadyResolved = errors.New("payment already resolved")
	ErrDuplicateReference     = errors.New("transaction reference already exists")
	ErrDuplicateUsername      = errors.New("username already registered")
	ErrDuplicateIDNumber      = errors.New("id number already registered")
	ErrDuplicateAccount       = errors.New("account number already registered")
	ErrDuplicateEmployeeID    = errors.New("employee id already provisioned")
	ErrDuplicateEmail         = errors.New("email already provisioned")
)

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// Customer methods
	CreateCustomer(ctx context.Context, customer *domain.Customer) error
	FindCustomerByUsername(ctx context.Context, username string) (*domain.Customer, error)
	FindCustomerByID(ctx context.Context, id uuid.UUID) (*domain.Customer, error)

	// Employee methods
	CreateEmployee(ctx context.Context, employee *domain.Employee) error
	FindEmployeeByEmployeeID(ctx context.Context, employeeID string) (*domain.Employee, error)
	FindEmployeeByID(ctx context.Context, id uuid.UUID) (*domain.Employee, error)
	CountEmployees(ctx context.Context) (int64, error)

	// Payment methods
	CreatePayment(ctx context.Context, payment *domain.Payment) error
	FindPaymentByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
	ListPaymentsByCustomerID(ctx context.Context, customerID uuid.UUID) ([]domain.Payment, error)
	ListPaymentsWithOwners(ctx context.Context) ([]domain.PaymentWithOwner, error)
	// ResolvePaymentStatus transitions a payment from pending to the given
	// terminal status. The update is conditional on the current status being
	// pending; a payment that exists but is no longer pending yields
	// ErrPaymentAlreadyResolved.
	ResolvePaymentStatus(ctx context.Context, id uuid.UUID, newStatus string) (*domain.Payment, error)
}
