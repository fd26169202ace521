/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository`
 * interface. It contains all the SQL queries for the customers, employees,
 * and payments tables, maps unique-constraint violations onto the
 * duplicate sentinel errors, and implements the conditional status update
 * that guards payment resolution against concurrent employees.
 *
 * @dependencies
 * - context, errors: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Contains the domain models used for data transfer.
 */

package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/portalbank/payments-portal/internal/domain"
)

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// uniqueViolation reports whether err is a unique-constraint violation on the
// named constraint. Constraint names are fixed by EnsureSchema.
func uniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == constraint
}

// CreateCustomer inserts a new customer row. Duplicate identity fields are
// mapped to the corresponding sentinel errors so the API layer can surface
// field-level messages.
func (r *PostgresRepository) CreateCustomer(ctx context.Context, customer *domain.Customer) error {
	query := `
		INSERT INTO customers (id, full_name, id_number, username, account_number, password_hash)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		customer.ID,
		customer.FullName,
		customer.IDNumber,
		customer.Username,
		customer.AccountNumber,
		customer.PasswordHash,
	).Scan(&customer.CreatedAt, &customer.UpdatedAt)
	if err != nil {
		switch {
		case uniqueViolation(err, "customers_username_key"):
			return ErrDuplicateUsername
		case uniqueViolation(err, "customers_id_number_key"):
			return ErrDuplicateIDNumber
		case uniqueViolation(err, "customers_account_number_key"):
			return ErrDuplicateAccount
		}
		return err
	}
	return nil
}

// FindCustomerByUsername retrieves a customer by their lowercase-normalized username.
func (r *PostgresRepository) FindCustomerByUsername(ctx context.Context, username string) (*domain.Customer, error) {
	var customer domain.Customer
	query := `
		SELECT id, full_name, id_number, username, account_number, password_hash, created_at, updated_at
		FROM customers
		WHERE username = lower(btrim($1))
	`
	err := r.db.QueryRow(ctx, query, username).Scan(
		&customer.ID,
		&customer.FullName,
		&customer.IDNumber,
		&customer.Username,
		&customer.AccountNumber,
		&customer.PasswordHash,
		&customer.CreatedAt,
		&customer.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrCustomerNotFound
		}
		return nil, err
	}
	return &customer, nil
}

// FindCustomerByID retrieves a customer by their storage identifier.
func (r *PostgresRepository) FindCustomerByID(ctx context.Context, id uuid.UUID) (*domain.Customer, error) {
	var customer domain.Customer
	query := `
		SELECT id, full_name, id_number, username, account_number, password_hash, created_at, updated_at
		FROM customers
		WHERE id = $1
	`
	err := r.db.QueryRow(ctx, query, id).Scan(
		&customer.ID,
		&customer.FullName,
		&customer.IDNumber,
		&customer.Username,
		&customer.AccountNumber,
		&customer.PasswordHash,
		&customer.CreatedAt,
		&customer.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrCustomerNotFound
		}
		return nil, err
	}
	return &customer, nil
}

// CreateEmployee inserts a new employee row. Used by administrative
// provisioning only; there is no self-registration path for employees.
func (r *PostgresRepository) CreateEmployee(ctx context.Context, employee *domain.Employee) error {
	query := `
		INSERT INTO employees (id, employee_id, full_name, email, password_hash, role, department)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		employee.ID,
		employee.EmployeeID,
		employee.FullName,
		employee.Email,
		employee.PasswordHash,
		employee.Role,
		employee.Department,
	).Scan(&employee.CreatedAt, &employee.UpdatedAt)
	if err != nil {
		switch {
		case uniqueViolation(err, "employees_employee_id_key"):
			return ErrDuplicateEmployeeID
		case uniqueViolation(err, "employees_email_key"):
			return ErrDuplicateEmail
		}
		return err
	}
	return nil
}

// FindEmployeeByEmployeeID retrieves an employee by their external identifier (e.g. "EMP001").
func (r *PostgresRepository) FindEmployeeByEmployeeID(ctx context.Context, employeeID string) (*domain.Employee, error) {
	var employee domain.Employee
	query := `
		SELECT id, employee_id, full_name, email, password_hash, role, department, created_at, updated_at
		FROM employees
		WHERE employee_id = btrim($1)
	`
	err := r.db.QueryRow(ctx, query, employeeID).Scan(
		&employee.ID,
		&employee.EmployeeID,
		&employee.FullName,
		&employee.Email,
		&employee.PasswordHash,
		&employee.Role,
		&employee.Department,
		&employee.CreatedAt,
		&employee.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrEmployeeNotFound
		}
		return nil, err
	}
	return &employee, nil
}

// FindEmployeeByID retrieves an employee by their storage identifier.
func (r *PostgresRepository) FindEmployeeByID(ctx context.Context, id uuid.UUID) (*domain.Employee, error) {
	var employee domain.Employee
	query := `
		SELECT id, employee_id, full_name, email, password_hash, role, department, created_at, updated_at
		FROM employees
		WHERE id = $1
	`
	err := r.db.QueryRow(ctx, query, id).Scan(
		&employee.ID,
		&employee.EmployeeID,
		&employee.FullName,
		&employee.Email,
		&employee.PasswordHash,
		&employee.Role,
		&employee.Department,
		&employee.CreatedAt,
		&employee.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrEmployeeNotFound
		}
		return nil, err
	}
	return &employee, nil
}

// CountEmployees returns the number of provisioned employees.
func (r *PostgresRepository) CountEmployees(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM employees`).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// CreatePayment inserts a new payment row with status pending. A duplicate
// transaction reference surfaces as ErrDuplicateReference so the caller can
// regenerate and retry.
func (r *PostgresRepository) CreatePayment(ctx context.Context, payment *domain.Payment) error {
	query := `
		INSERT INTO payments (id, customer_id, payee_account_number, amount_cents, currency, provider, swift_code, status, transaction_reference)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		payment.ID,
		payment.CustomerID,
		payment.PayeeAccountNumber,
		payment.AmountCents,
		payment.Currency,
		payment.Provider,
		payment.SwiftCode,
		payment.Status,
		payment.TransactionReference,
	).Scan(&payment.CreatedAt, &payment.UpdatedAt)
	if err != nil {
		if uniqueViolation(err, "payments_transaction_reference_key") {
			return ErrDuplicateReference
		}
		return err
	}
	return nil
}

// FindPaymentByID retrieves a payment by its storage identifier.
func (r *PostgresRepository) FindPaymentByID(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	payment, err := r.scanPayment(r.db.QueryRow(ctx, `
		SELECT id, customer_id, payee_account_number, amount_cents, currency, provider, swift_code, status, transaction_reference, created_at, updated_at
		FROM payments
		WHERE id = $1
	`, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return payment, nil
}

// ListPaymentsByCustomerID returns a customer's payments, newest first.
func (r *PostgresRepository) ListPaymentsByCustomerID(ctx context.Context, customerID uuid.UUID) ([]domain.Payment, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, customer_id, payee_account_number, amount_cents, currency, provider, swift_code, status, transaction_reference, created_at, updated_at
		FROM payments
		WHERE customer_id = $1
		ORDER BY created_at DESC
	`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := make([]domain.Payment, 0)
	for rows.Next() {
		payment, err := r.scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, *payment)
	}
	return payments, rows.Err()
}

// ListPaymentsWithOwners returns every payment with the owning customer's
// identity joined in, newest first. Employee review view only.
func (r *PostgresRepository) ListPaymentsWithOwners(ctx context.Context) ([]domain.PaymentWithOwner, error) {
	rows, err := r.db.Query(ctx, `
		SELECT p.id, p.customer_id, p.payee_account_number, p.amount_cents, p.currency, p.provider, p.swift_code, p.status, p.transaction_reference, p.created_at, p.updated_at,
		       c.full_name, c.username, c.account_number, c.id_number
		FROM payments p
		JOIN customers c ON c.id = p.customer_id
		ORDER BY p.created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := make([]domain.PaymentWithOwner, 0)
	for rows.Next() {
		var p domain.PaymentWithOwner
		if err := rows.Scan(
			&p.ID,
			&p.CustomerID,
			&p.PayeeAccountNumber,
			&p.AmountCents,
			&p.Currency,
			&p.Provider,
			&p.SwiftCode,
			&p.Status,
			&p.TransactionReference,
			&p.CreatedAt,
			&p.UpdatedAt,
			&p.OwnerFullName,
			&p.OwnerUsername,
			&p.OwnerAccountNumber,
			&p.OwnerIDNumber,
		); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// ResolvePaymentStatus performs the compare-and-swap transition from pending
// to a terminal status. Multiple server processes may race on the same row;
// the WHERE status = 'pending' condition is what serializes them. When the
// conditional update matches no row, the payment is re-read to distinguish
// "gone" from "already resolved".
func (r *PostgresRepository) ResolvePaymentStatus(ctx context.Context, id uuid.UUID, newStatus string) (*domain.Payment, error) {
	payment, err := r.scanPayment(r.db.QueryRow(ctx, `
		UPDATE payments
		SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'pending'
		RETURNING id, customer_id, payee_account_number, amount_cents, currency, provider, swift_code, status, transaction_reference, created_at, updated_at
	`, id, newStatus))
	if err == nil {
		return payment, nil
	}
	if err != pgx.ErrNoRows {
		return nil, err
	}

	existing, findErr := r.FindPaymentByID(ctx, id)
	if findErr != nil {
		return nil, findErr
	}
	if existing.Status != domain.StatusPending {
		return nil, ErrPaymentAlreadyResolved
	}
	// Pending again after a missed conditional update means a concurrent
	// writer briefly held the row; treat it as a conflict.
	return nil, ErrPaymentAlreadyResolved
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *PostgresRepository) scanPayment(row rowScanner) (*domain.Payment, error) {
	var payment domain.Payment
	err := row.Scan(
		&payment.ID,
		&payment.CustomerID,
		&payment.PayeeAccountNumber,
		&payment.AmountCents,
		&payment.Currency,
		&payment.Provider,
		&payment.SwiftCode,
		&payment.Status,
		&payment.TransactionReference,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &payment, nil
}
