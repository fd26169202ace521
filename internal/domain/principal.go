/**
 * @description
 * This file defines the two principal kinds the portal authenticates:
 * customers (self-registered through the public portal) and employees
 * (provisioned administratively). The two kinds share no identifier
 * namespace; every session resolves to exactly one of them.
 *
 * @notes
 * - Password hashes are never serialized. The json:"-" tags are load-bearing:
 *   summaries are built from these structs in API responses.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// PrincipalKind discriminates the two authenticated actor kinds.
type PrincipalKind string

const (
	KindCustomer PrincipalKind = "customer"
	KindEmployee PrincipalKind = "employee"
)

// Employee roles. Stored and surfaced, but currently undifferentiated in
// authorization: any employee may resolve payments.
const (
	RoleTeller  = "teller"
	RoleManager = "manager"
	RoleAdmin   = "admin"
)

// Customer is a self-registered portal user who can submit payments.
// Identity fields are immutable after signup.
type Customer struct {
	ID            uuid.UUID `json:"id"`
	FullName      string    `json:"full_name"`
	IDNumber      string    `json:"id_number"`
	Username      string    `json:"username"`
	AccountNumber string    `json:"account_number"`
	PasswordHash  string    `json:"-"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Employee is a staff member who reviews and resolves pending payments.
// Employees are never created through self-registration.
type Employee struct {
	ID           uuid.UUID `json:"id"`
	EmployeeID   string    `json:"employee_id"`
	FullName     string    `json:"full_name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	Department   string    `json:"department"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Principal is the tagged union handed to handlers after authentication.
// Exactly one of Customer/Employee is non-nil, matching Kind.
type Principal struct {
	Kind     PrincipalKind
	Customer *Customer
	Employee *Employee
}

// ID returns the storage identifier of whichever variant is populated.
func (p *Principal) ID() uuid.UUID {
	if p.Kind == KindEmployee && p.Employee != nil {
		return p.Employee.ID
	}
	if p.Customer != nil {
		return p.Customer.ID
	}
	return uuid.Nil
}

// IsEmployee reports whether the principal is an employee.
func (p *Principal) IsEmployee() bool {
	return p.Kind == KindEmployee
}

// SignupRequest is the DTO for customer self-registration.
type SignupRequest struct {
	FullName      string `json:"fullName"`
	IDNumber      string `json:"idNumber"`
	Username      string `json:"username"`
	AccountNumber string `json:"accountNumber"`
	Password      string `json:"password"`
}

// LoginRequest is the DTO for customer authentication.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// EmployeeLoginRequest is the DTO for employee authentication.
type EmployeeLoginRequest struct {
	EmployeeID string `json:"employeeId"`
	Password   string `json:"password"`
}

// ProvisionEmployeeRequest carries the fields administrative tooling supplies
// when creating an employee. Plaintext password is hashed before storage.
type ProvisionEmployeeRequest struct {
	EmployeeID string `json:"employeeId"`
	FullName   string `json:"fullName"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	Role       string `json:"role"`
	Department string `json:"department"`
}

// CustomerSummary is the customer shape returned by auth endpoints.
type CustomerSummary struct {
	ID            uuid.UUID `json:"id"`
	FullName      string    `json:"fullName"`
	Username      string    `json:"username"`
	AccountNumber string    `json:"accountNumber"`
}

// EmployeeSummary is the employee shape returned by auth endpoints.
type EmployeeSummary struct {
	ID         uuid.UUID `json:"id"`
	EmployeeID string    `json:"employeeId"`
	FullName   string    `json:"fullName"`
	Role       string    `json:"role"`
	Department string    `json:"department"`
}

// Summary builds the API-facing view of a customer.
func (c *Customer) Summary() CustomerSummary {
	return CustomerSummary{
		ID:            c.ID,
		FullName:      c.FullName,
		Username:      c.Username,
		AccountNumber: c.AccountNumber,
	}
}

// Summary builds the API-facing view of an employee.
func (e *Employee) Summary() EmployeeSummary {
	return EmployeeSummary{
		ID:         e.ID,
		EmployeeID: e.EmployeeID,
		FullName:   e.FullName,
		Role:       e.Role,
		Department: e.Department,
	}
}
