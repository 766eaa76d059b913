package service

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/TechySakib/EasyRide-Bus-Ticket-Management-System-sub000/internal/model"
)

// ValidationError carries the offending field so handlers can answer with a
// field-specific 400. Detected before any storage access.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var phonePattern = regexp.MustCompile(`^[0-9]{11}$`)

// normalizePhone strips spaces and hyphens, then requires exactly 11 digits.
func normalizePhone(raw string) (string, bool) {
	p := strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(raw))
	if !phonePattern.MatchString(p) {
		return "", false
	}
	return p, true
}

func validateSubmit(in SubmitInput) (model.PaymentMethod, string, error) {
	if !in.Amount.IsPositive() {
		return "", "", &ValidationError{Field: "amount", Message: "must be a positive number"}
	}
	if strings.TrimSpace(in.PaymentMethod) == "" {
		return "", "", &ValidationError{Field: "payment_method", Message: "is required"}
	}
	method, ok := model.ParsePaymentMethod(in.PaymentMethod)
	if !ok {
		return "", "", &ValidationError{Field: "payment_method", Message: "must be one of bkash, nagad, rocket"}
	}
	phone, ok := normalizePhone(in.PhoneNumber)
	if !ok {
		return "", "", &ValidationError{Field: "phone_number", Message: "must be an 11-digit number"}
	}
	if strings.TrimSpace(in.TransactionID) == "" {
		return "", "", &ValidationError{Field: "transaction_id", Message: "is required"}
	}
	return method, phone, nil
}
