package order

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/uhyunpark/sigbook/pkg/crypto"
)

// Submission is one signed order as received on the wire:
//
//	{"sig": "...", "payload": {...}}
type Submission struct {
	Signature string
	Payload   Payload

	// RawPayload is the payload object exactly as submitted; the signed
	// message is derived from it, not from the typed fields
	RawPayload json.RawMessage
}

// Payload holds the typed fields of a submission. Unknown keys are ignored.
type Payload struct {
	SenderPK     string
	ReceiverPK   string
	BuyCurrency  string
	SellCurrency string
	BuyAmount    decimal.Decimal
	SellAmount   decimal.Decimal
	Platform     crypto.Platform
	PlatformName string // as submitted, kept for logs
}

// Message returns the string the sender signed: the payload in canonical form
func (s *Submission) Message() (string, error) {
	return CanonicalJSON(s.RawPayload)
}

// Order is a verified trade intent. Platform is deliberately absent:
// it only selects the verification scheme.
type Order struct {
	ID           uint64          `json:"id"`
	Signature    string          `json:"signature"`
	SenderPK     string          `json:"sender_pk"`
	ReceiverPK   string          `json:"receiver_pk"`
	BuyCurrency  string          `json:"buy_currency"`
	SellCurrency string          `json:"sell_currency"`
	BuyAmount    decimal.Decimal `json:"buy_amount"`
	SellAmount   decimal.Decimal `json:"sell_amount"`
}

// NewOrder builds the order recorded for a verified submission
func NewOrder(s *Submission) *Order {
	return &Order{
		Signature:    s.Signature,
		SenderPK:     s.Payload.SenderPK,
		ReceiverPK:   s.Payload.ReceiverPK,
		BuyCurrency:  s.Payload.BuyCurrency,
		SellCurrency: s.Payload.SellCurrency,
		BuyAmount:    s.Payload.BuyAmount,
		SellAmount:   s.Payload.SellAmount,
	}
}

// LogEntry records a rejected submission. Message is the serialized payload.
type LogEntry struct {
	ID      uint64 `json:"id"`
	Message string `json:"message"`
}
