/**
 * @description
 * This file contains the HTTP handlers for the payments portal API. Handlers
 * parse incoming requests, call the appropriate methods on the application
 * service, and write the HTTP response. They own the mapping from service
 * errors onto the API's error taxonomy: validation lists as 400, generic
 * invalid-credential messages, 401/403 from the middleware, 404 for missing
 * entities, 400 for already-resolved conflicts, and opaque 500s for
 * persistence failures.
 *
 * @dependencies
 * - encoding/json, errors, log, net/http: Standard Go libraries.
 * - github.com/go-chi/chi/v5: URL parameter extraction.
 * - internal/app, internal/domain, internal/store: Service logic, models, errors.
 */

package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/portalbank/payments-portal/internal/app"
	"github.com/portalbank/payments-portal/internal/domain"
	"github.com/portalbank/payments-portal/internal/store"
)

// PortalHandlers holds the application service that handlers will use.
type PortalHandlers struct {
	service *app.Service
}

// NewPortalHandlers creates a new instance of PortalHandlers.
func NewPortalHandlers(service *app.Service) *PortalHandlers {
	return &PortalHandlers{service: service}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("level=error component=api msg=\"response encode failed\" err=%v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}

func writeValidationErrors(w http.ResponseWriter, verr *app.ValidationErrors) {
	writeJSON(w, http.StatusBadRequest, map[string]interface{}{
		"message": "Validation failed",
		"errors":  verr.Errors,
	})
}

// SignupHandler handles customer self-registration.
func (h *PortalHandlers) SignupHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	customer, err := h.service.Signup(r.Context(), req)
	if err != nil {
		var verr *app.ValidationErrors
		if errors.As(err, &verr) {
			writeValidationErrors(w, verr)
			return
		}
		log.Printf("level=error component=api endpoint=signup msg=\"signup failed\" err=%v", err)
		writeError(w, http.StatusInternalServerError, "Error creating account")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message":  "Account created successfully",
		"customer": customer.Summary(),
	})
}

// LoginHandler handles customer authentication.
func (h *PortalHandlers) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	token, customer, err := h.service.AuthenticateCustomer(r.Context(), req)
	if err != nil {
		if errors.Is(err, app.ErrInvalidCredentials) {
			writeError(w, http.StatusBadRequest, "Invalid credentials")
			return
		}
		log.Printf("level=error component=api endpoint=login msg=\"login failed\" err=%v", err)
		writeError(w, http.StatusInternalServerError, "Error during login")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":  "Login successful",
		"token":    token,
		"customer": customer.Summary(),
	})
}

// EmployeeLoginHandler handles employee authentication.
func (h *PortalHandlers) EmployeeLoginHandler(w http.ResponseWriter, r *http.Request) {
	var req domain.EmployeeLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	token, employee, err := h.service.AuthenticateEmployee(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrNoEmployeesProvisioned):
			writeError(w, http.StatusNotFound, "No employees provisioned")
		case errors.Is(err, app.ErrInvalidCredentials):
			writeError(w, http.StatusBadRequest, "Invalid employee credentials")
		default:
			log.Printf("level=error component=api endpoint=employee_login msg=\"login failed\" err=%v", err)
			writeError(w, http.StatusInternalServerError, "Error during employee login")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":  "Employee login successful",
		"token":    token,
		"employee": employee.Summary(),
	})
}

// LogoutHandler invalidates the presented session token. It sits behind the
// auth middleware, so the bearer header is known to be present and valid.
func (h *PortalHandlers) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Logout(r.Context(), bearerToken(r)); err != nil {
		log.Printf("level=error component=api endpoint=logout msg=\"revocation failed\" err=%v", err)
		writeError(w, http.StatusInternalServerError, "Could not log out, please try again.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

// CreatePaymentHandler handles payment submission by the authenticated
// customer. The payment's owner always comes from the session, never from
// the request payload.
func (h *PortalHandlers) CreatePaymentHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok || principal.Customer == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	var req domain.CreatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	payment, err := h.service.CreatePayment(r.Context(), principal.Customer, req)
	if err != nil {
		var verr *app.ValidationErrors
		if errors.As(err, &verr) {
			writeValidationErrors(w, verr)
			return
		}
		log.Printf("level=error component=api endpoint=create_payment msg=\"create failed\" customer_id=%s err=%v", principal.Customer.ID, err)
		writeError(w, http.StatusInternalServerError, "Error creating payment")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Payment initiated successfully",
		"payment": payment.Summary(),
	})
}

// ListUserPaymentsHandler returns the payments owned by the customer in the
// URL. Customers may only read their own list; employees may read any.
func (h *PortalHandlers) ListUserPaymentsHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	ownerID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid user id")
		return
	}

	if !principal.IsEmployee() && principal.ID() != ownerID {
		writeError(w, http.StatusForbidden, "Access denied")
		return
	}

	payments, err := h.service.ListPaymentsForOwner(r.Context(), ownerID)
	if err != nil {
		log.Printf("level=error component=api endpoint=list_user_payments msg=\"list failed\" owner_id=%s err=%v", ownerID, err)
		writeError(w, http.StatusInternalServerError, "Error retrieving payments")
		return
	}

	summaries := make([]domain.PaymentSummary, 0, len(payments))
	for i := range payments {
		summaries = append(summaries, payments[i].Summary())
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":  "Payments retrieved successfully",
		"payments": summaries,
	})
}

// GetPaymentHandler returns a single payment. Customers may only read their
// own payments; employees may read any.
func (h *PortalHandlers) GetPaymentHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	paymentID, err := uuid.Parse(chi.URLParam(r, "paymentID"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Payment not found")
		return
	}

	payment, err := h.service.GetPayment(r.Context(), paymentID)
	if err != nil {
		if errors.Is(err, store.ErrPaymentNotFound) {
			writeError(w, http.StatusNotFound, "Payment not found")
			return
		}
		log.Printf("level=error component=api endpoint=get_payment msg=\"lookup failed\" payment_id=%s err=%v", paymentID, err)
		writeError(w, http.StatusInternalServerError, "Error retrieving payment")
		return
	}

	if !principal.IsEmployee() && principal.ID() != payment.CustomerID {
		writeError(w, http.StatusForbidden, "Access denied")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"payment": payment.Summary(),
	})
}

// ListAllPaymentsHandler returns every payment with owner identity joined,
// for the employee review view.
func (h *PortalHandlers) ListAllPaymentsHandler(w http.ResponseWriter, r *http.Request) {
	payments, err := h.service.ListAllPayments(r.Context())
	if err != nil {
		log.Printf("level=error component=api endpoint=list_all_payments msg=\"list failed\" err=%v", err)
		writeError(w, http.StatusInternalServerError, "Server error fetching payments")
		return
	}

	views := make([]domain.EmployeePaymentView, 0, len(payments))
	for i := range payments {
		views = append(views, payments[i].View())
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"payments": views,
	})
}

// VerifyPaymentHandler resolves a pending payment on an employee's decision.
func (h *PortalHandlers) VerifyPaymentHandler(w http.ResponseWriter, r *http.Request) {
	principal, ok := PrincipalFromContext(r.Context())
	if !ok || principal.Employee == nil {
		writeError(w, http.StatusUnauthorized, "Not authenticated")
		return
	}

	paymentID, err := uuid.Parse(chi.URLParam(r, "paymentID"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Payment not found")
		return
	}

	var req domain.VerifyPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	payment, err := h.service.ResolvePayment(r.Context(), paymentID, req.Action, principal.Employee)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidDecision):
			writeError(w, http.StatusBadRequest, `Invalid action. Must be "complete" or "fail"`)
		case errors.Is(err, store.ErrPaymentNotFound):
			writeError(w, http.StatusNotFound, "Payment not found")
		case errors.Is(err, store.ErrPaymentAlreadyResolved):
			writeError(w, http.StatusBadRequest, "Payment has already been processed")
		default:
			log.Printf("level=error component=api endpoint=verify_payment msg=\"resolve failed\" payment_id=%s err=%v", paymentID, err)
			writeError(w, http.StatusInternalServerError, "Error verifying payment")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Payment " + payment.Status + " successfully",
		"payment": payment.Summary(),
	})
}
