package api

import (
	"encoding/json"

	"github.com/uhyunpark/sigbook/pkg/order"
)

// API response types for REST endpoints and WebSocket messages

// ==============================
// REST Response Types
// ==============================

// OrderInfo is one order book entry. The submission's platform is not part of it.
type OrderInfo struct {
	SenderPK     string      `json:"sender_pk"`
	ReceiverPK   string      `json:"receiver_pk"`
	BuyCurrency  string      `json:"buy_currency"`
	SellCurrency string      `json:"sell_currency"`
	BuyAmount    json.Number `json:"buy_amount"`  // exact decimal, rendered as a JSON number
	SellAmount   json.Number `json:"sell_amount"`
	Signature    string      `json:"signature"`
}

func newOrderInfo(o order.Order) OrderInfo {
	return OrderInfo{
		SenderPK:     o.SenderPK,
		ReceiverPK:   o.ReceiverPK,
		BuyCurrency:  o.BuyCurrency,
		SellCurrency: o.SellCurrency,
		BuyAmount:    json.Number(o.BuyAmount.String()),
		SellAmount:   json.Number(o.SellAmount.String()),
		Signature:    o.Signature,
	}
}

// LogInfo is one audit entry
type LogInfo struct {
	ID      uint64 `json:"id"`
	Message string `json:"message"`
}

// ListResponse wraps every listing: {"data": [...]}
type ListResponse[T any] struct {
	Data []T `json:"data"`
}

// HealthResponse is returned by GET /health
type HealthResponse struct {
	Status    string `json:"status"`
	WSClients int    `json:"wsClients"`
}

// ==============================
// WebSocket Message Types
// ==============================

// WSMessage is the base structure for all WebSocket messages
type WSMessage struct {
	Type    string      `json:"type"`    // "order"
	Channel string      `json:"channel"` // e.g. "orders"
	Data    interface{} `json:"data"`    // Type-specific payload
}

// WSSubscribeRequest is sent by client to subscribe to channels
type WSSubscribeRequest struct {
	Op       string   `json:"op"`       // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"` // e.g., ["orders"]
}

// ChannelOrders carries every accepted order
const ChannelOrders = "orders"

// ErrorResponse is returned for all errors
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
