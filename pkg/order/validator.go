package order

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/uhyunpark/sigbook/pkg/crypto"
)

// Submission keys
const (
	KeySignature = "sig"
	KeyPayload   = "payload"
)

// Payload keys
const (
	KeySenderPK     = "sender_pk"
	KeyReceiverPK   = "receiver_pk"
	KeyBuyCurrency  = "buy_currency"
	KeySellCurrency = "sell_currency"
	KeyBuyAmount    = "buy_amount"
	KeySellAmount   = "sell_amount"
	KeyPlatform     = "platform"
)

// RequiredPayloadKeys lists every key a payload must carry
var RequiredPayloadKeys = []string{
	KeySenderPK, KeyReceiverPK, KeyBuyCurrency, KeySellCurrency,
	KeyBuyAmount, KeySellAmount, KeyPlatform,
}

// maxAmountExponent bounds the decimal exponent of an amount. Rendering a
// decimal costs time proportional to its exponent.
const maxAmountExponent = 64

var (
	ErrNotObject    = errors.New("not a JSON object")
	ErrMissingField = errors.New("missing field")
	ErrInvalidField = errors.New("invalid field type")
)

// ValidationResult is the caller-visible outcome of structural validation.
// It does not say which check failed.
type ValidationResult struct {
	OK bool
}

// Validate reports whether raw is a structurally complete submission
func Validate(raw []byte) ValidationResult {
	_, err := ParseSubmission(raw)
	return ValidationResult{OK: err == nil}
}

// ParseSubmission checks structure and decodes raw into a typed Submission in one pass.
// The error names the first failed check; callers must treat all failures alike.
func ParseSubmission(raw []byte) (*Submission, error) {
	envelope, err := decodeObject(raw)
	if err != nil || envelope == nil {
		return nil, fmt.Errorf("submission: %w", ErrNotObject)
	}
	// Repeated keys at any depth are rejected before fields are read
	if _, err := CanonicalJSON(raw); err != nil {
		return nil, fmt.Errorf("submission: %w", err)
	}

	// Top-level keys are checked before the payload is looked at
	for _, key := range []string{KeySignature, KeyPayload} {
		if _, ok := envelope[key]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingField, key)
		}
	}

	sig, err := stringField(envelope, KeySignature)
	if err != nil {
		return nil, err
	}

	rawPayload := envelope[KeyPayload]
	fields, err := decodeObject(rawPayload)
	if err != nil || fields == nil {
		return nil, fmt.Errorf("%s: %w", KeyPayload, ErrNotObject)
	}

	for _, key := range RequiredPayloadKeys {
		if _, ok := fields[key]; !ok {
			return nil, fmt.Errorf("%w: %s.%s", ErrMissingField, KeyPayload, key)
		}
	}

	var p Payload
	for _, f := range []struct {
		key string
		dst *string
	}{
		{KeySenderPK, &p.SenderPK},
		{KeyReceiverPK, &p.ReceiverPK},
		{KeyBuyCurrency, &p.BuyCurrency},
		{KeySellCurrency, &p.SellCurrency},
		{KeyPlatform, &p.PlatformName},
	} {
		if *f.dst, err = stringField(fields, f.key); err != nil {
			return nil, err
		}
	}
	if p.BuyAmount, err = amountField(fields, KeyBuyAmount); err != nil {
		return nil, err
	}
	if p.SellAmount, err = amountField(fields, KeySellAmount); err != nil {
		return nil, err
	}
	p.Platform = crypto.ParsePlatform(p.PlatformName)

	return &Submission{
		Signature:  sig,
		Payload:    p,
		RawPayload: rawPayload,
	}, nil
}

// decodeObject returns nil, nil for a JSON null
func decodeObject(raw []byte) (map[string]json.RawMessage, error) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, ErrNotObject
	}
	return m, nil
}

func stringField(m map[string]json.RawMessage, key string) (string, error) {
	raw := bytes.TrimSpace(m[key])
	if len(raw) == 0 || raw[0] != '"' {
		return "", fmt.Errorf("%w: %s must be a string", ErrInvalidField, key)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrInvalidField, key, err)
	}
	return s, nil
}

func amountField(m map[string]json.RawMessage, key string) (decimal.Decimal, error) {
	raw := bytes.TrimSpace(m[key])
	if len(raw) == 0 || (raw[0] != '-' && (raw[0] < '0' || raw[0] > '9')) {
		return decimal.Decimal{}, fmt.Errorf("%w: %s must be a number", ErrInvalidField, key)
	}
	d, err := decimal.NewFromString(string(raw))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %s: %v", ErrInvalidField, key, err)
	}
	if exp := d.Exponent(); exp > maxAmountExponent || exp < -maxAmountExponent {
		return decimal.Decimal{}, fmt.Errorf("%w: %s: exponent %d out of range", ErrInvalidField, key, exp)
	}
	return d, nil
}

// AuditMessage serializes whatever payload raw carries, for the audit log.
// A missing or unreadable payload yields "{}".
func AuditMessage(raw []byte) string {
	envelope, err := decodeObject(raw)
	if err != nil || envelope == nil {
		return "{}"
	}
	payload, ok := envelope[KeyPayload]
	if !ok {
		return "{}"
	}
	msg, err := CanonicalJSON(payload)
	if err != nil {
		return string(payload)
	}
	return msg
}
