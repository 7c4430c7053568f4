// Package payment turns signed provider notifications into filing dispatches.
package payment

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"cipcagent/internal/domain"
	"cipcagent/internal/signature"
)

// MaxBodyBytes caps an inbound notification body.
const MaxBodyBytes = 1 << 20

// Notification is the provider payload exactly as received. Numbers are kept
// as json.Number so the signature sees the provider's own digits.
type Notification map[string]any

// ParseNotification decodes a JSON object and checks the mandatory keys.
func ParseNotification(r io.Reader) (Notification, error) {
	body, err := io.ReadAll(io.LimitReader(r, MaxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", domain.ErrMalformedNotification, err)
	}
	if len(body) > MaxBodyBytes {
		return nil, fmt.Errorf("%w: body exceeds %d bytes", domain.ErrMalformedNotification, MaxBodyBytes)
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var n Notification
	if err := dec.Decode(&n); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedNotification, err)
	}
	if n == nil {
		return nil, fmt.Errorf("%w: body is not a JSON object", domain.ErrMalformedNotification)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data after object", domain.ErrMalformedNotification)
	}

	var missing []string
	for _, k := range []string{"payment_reference", "transaction_id", signature.HashField} {
		if n.Field(k) == "" {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", domain.ErrMalformedNotification, strings.Join(missing, ", "))
	}
	if _, ok := n[signature.HashField].(string); !ok {
		return nil, fmt.Errorf("%w: hash must be a string", domain.ErrMalformedNotification)
	}
	return n, nil
}

// Field returns the scalar value of key as text, or "". Numbers keep the
// literal digits the provider sent; the signature has its own formatting.
func (n Notification) Field(key string) string {
	v, ok := n[key]
	if !ok || v == nil {
		return ""
	}
	if num, ok := v.(json.Number); ok {
		return strings.TrimSpace(num.String())
	}
	s, err := signature.FormatValue(v)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

func (n Notification) TransactionID() string    { return n.Field("transaction_id") }
func (n Notification) PaymentReference() string { return n.Field("payment_reference") }
func (n Notification) Status() string           { return strings.ToLower(n.Field("status")) }

// Completed reports whether the payment reached a terminal paid state.
func (n Notification) Completed() bool {
	switch n.Status() {
	case "completed", "success":
		return true
	}
	return false
}

// FilingRequest maps the payload onto the workflow input. Absent fields stay
// empty; the workflow owns validation of company details.
func (n Notification) FilingRequest() domain.FilingRequest {
	return domain.FilingRequest{
		RegistrationNumber: n.Field("company_number"),
		CompanyName:        n.Field("company_name"),
		FinancialYearEnd:   n.Field("financial_year_end"),
		ContactEmail:       n.Field("customer_email"),
		ContactPhone:       n.Field("customer_phone"),
		PaymentReference:   n.TransactionID(),
	}
}

// LeadID is the second "-" segment of the reference, or the whole reference
// when it has no separator.
func LeadID(paymentReference string) string {
	parts := strings.Split(paymentReference, "-")
	if len(parts) >= 2 {
		return parts[1]
	}
	return paymentReference
}
