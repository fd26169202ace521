/**
 * @description
 * This file bootstraps the database schema at startup. The uniqueness
 * constraints declared here are part of the service's correctness contract:
 * customer username / id number / account number, employee id / email, and
 * the payment transaction reference must all be enforced by the storage
 * layer, and payment resolution relies on the status column for its
 * conditional update.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5/pgxpool: Connection pool used to run the DDL.
 */

package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS customers (
		id UUID PRIMARY KEY,
		full_name TEXT NOT NULL,
		id_number TEXT NOT NULL,
		username TEXT NOT NULL,
		account_number TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT customers_id_number_key UNIQUE (id_number),
		CONSTRAINT customers_username_key UNIQUE (username),
		CONSTRAINT customers_account_number_key UNIQUE (account_number)
	)`,
	`CREATE TABLE IF NOT EXISTS employees (
		id UUID PRIMARY KEY,
		employee_id TEXT NOT NULL,
		full_name TEXT NOT NULL,
		email TEXT NOT NULL,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'teller' CHECK (role IN ('teller', 'manager', 'admin')),
		department TEXT NOT NULL DEFAULT 'customer service',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT employees_employee_id_key UNIQUE (employee_id),
		CONSTRAINT employees_email_key UNIQUE (email)
	)`,
	`CREATE TABLE IF NOT EXISTS payments (
		id UUID PRIMARY KEY,
		customer_id UUID NOT NULL REFERENCES customers(id),
		payee_account_number TEXT NOT NULL,
		amount_cents BIGINT NOT NULL CHECK (amount_cents > 0),
		currency TEXT NOT NULL,
		provider TEXT NOT NULL,
		swift_code TEXT,
		status TEXT NOT NULL DEFAULT 'pending' CHECK (status IN ('pending', 'completed', 'failed')),
		transaction_reference TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT payments_transaction_reference_key UNIQUE (transaction_reference)
	)`,
	`CREATE INDEX IF NOT EXISTS payments_customer_created_idx ON payments (customer_id, created_at DESC)`,
}

// EnsureSchema creates the portal tables and constraints if they do not exist.
func EnsureSchema(ctx context.Context, db *pgxpool.Pool) error {
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
