// Package wire is the TCP front-end's binary framing: a 2-byte message-type
// header, a fixed body, and length-prefixed tails for the variable-length
// fields (decimal strings, asset symbols, usernames). It is grounded on the
// teacher's internal/net/messages.go, adapted from float64/uint64 payloads
// to decimal-as-string payloads — IEEE-754 floats cannot carry the engine's
// fixed-point semantics across the wire without reintroducing the rounding
// error the core was built to avoid.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"vaultex/internal/common"
)

var (
	ErrInvalidMessageType = errors.New("invalid message type")
	ErrMessageTooShort    = errors.New("message too short for declared tail length")
	ErrUnsupported        = errors.New("message type not supported by this core")
)

// MessageType identifies the kind of frame a client sends.
type MessageType uint16

const (
	Heartbeat MessageType = iota
	NewOrder
	CancelOrder
	LogBook
)

// ReportType identifies the kind of frame the server sends back.
type ReportType uint8

const (
	ExecutionReport ReportType = iota
	ErrorReport
)

// BaseMessageHeaderLen is the size of the 2-byte message-type header every
// frame starts with.
const BaseMessageHeaderLen = 2

// newOrderFixedLen is every NewOrder field before the three length-prefixed
// tails (price, qty, quote_order_qty) and the username: 4 (base) + 4 (quote)
// + 1 (side) + 1 (type) + 2+2+2 (tail length prefixes) + 1 (username len).
const newOrderFixedLen = 4 + 4 + 1 + 1 + 2 + 2 + 2 + 1

// NewOrderMessage is a parsed order-placement request.
type NewOrderMessage struct {
	Base          common.AssetId
	Quote         common.AssetId
	Side          common.OrderSide
	Type          common.OrderType
	Price         decimal.Decimal
	Qty           decimal.Decimal
	QuoteOrderQty decimal.Decimal
	Username      string
}

func putAsset(buf []byte, id common.AssetId) {
	copy(buf, []byte(id))
}

func getAsset(buf []byte) common.AssetId {
	n := 0
	for n < len(buf) && buf[n] != 0 {
		n++
	}
	return common.AssetId(buf[:n])
}

// EncodeNewOrder serializes a new-order request for the wire.
func EncodeNewOrder(m NewOrderMessage) []byte {
	priceStr := m.Price.String()
	qtyStr := m.Qty.String()
	quoteQtyStr := m.QuoteOrderQty.String()
	username := m.Username

	total := BaseMessageHeaderLen + newOrderFixedLen + len(priceStr) + len(qtyStr) + len(quoteQtyStr) + len(username)
	buf := make([]byte, total)

	binary.BigEndian.PutUint16(buf[0:2], uint16(NewOrder))
	body := buf[2:]
	putAsset(body[0:4], m.Base)
	putAsset(body[4:8], m.Quote)
	body[8] = byte(m.Side)
	body[9] = byte(m.Type)
	binary.BigEndian.PutUint16(body[10:12], uint16(len(priceStr)))
	binary.BigEndian.PutUint16(body[12:14], uint16(len(qtyStr)))
	binary.BigEndian.PutUint16(body[14:16], uint16(len(quoteQtyStr)))
	body[16] = byte(len(username))

	offset := 17
	offset += copy(body[offset:], priceStr)
	offset += copy(body[offset:], qtyStr)
	offset += copy(body[offset:], quoteQtyStr)
	copy(body[offset:], username)

	return buf
}

// ParseNewOrder decodes a new-order request's body (the message-type header
// already consumed by ParseMessage).
func ParseNewOrder(body []byte) (NewOrderMessage, error) {
	if len(body) < newOrderFixedLen {
		return NewOrderMessage{}, ErrMessageTooShort
	}
	priceLen := int(binary.BigEndian.Uint16(body[10:12]))
	qtyLen := int(binary.BigEndian.Uint16(body[12:14]))
	quoteQtyLen := int(binary.BigEndian.Uint16(body[14:16]))
	usernameLen := int(body[16])

	expected := newOrderFixedLen + priceLen + qtyLen + quoteQtyLen + usernameLen
	if len(body) < expected {
		return NewOrderMessage{}, ErrMessageTooShort
	}

	offset := newOrderFixedLen
	priceStr := string(body[offset : offset+priceLen])
	offset += priceLen
	qtyStr := string(body[offset : offset+qtyLen])
	offset += qtyLen
	quoteQtyStr := string(body[offset : offset+quoteQtyLen])
	offset += quoteQtyLen
	username := string(body[offset : offset+usernameLen])

	price, err := decimalOrZero(priceStr)
	if err != nil {
		return NewOrderMessage{}, fmt.Errorf("parsing price: %w", err)
	}
	qty, err := decimalOrZero(qtyStr)
	if err != nil {
		return NewOrderMessage{}, fmt.Errorf("parsing qty: %w", err)
	}
	quoteQty, err := decimalOrZero(quoteQtyStr)
	if err != nil {
		return NewOrderMessage{}, fmt.Errorf("parsing quote_order_qty: %w", err)
	}

	return NewOrderMessage{
		Base:          getAsset(body[0:4]),
		Quote:         getAsset(body[4:8]),
		Side:          common.OrderSide(body[8]),
		Type:          common.OrderType(body[9]),
		Price:         price,
		Qty:           qty,
		QuoteOrderQty: quoteQty,
		Username:      username,
	}, nil
}

func decimalOrZero(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

// CancelOrderMessage is parsed but always rejected: the core has no cancel
// operation (see the worker-pool/front-end design notes).
type CancelOrderMessage struct {
	OrderID common.OrderID
}

const cancelOrderFixedLen = 1

// ParseCancelOrder decodes a cancel request's body.
func ParseCancelOrder(body []byte) (CancelOrderMessage, error) {
	if len(body) < cancelOrderFixedLen {
		return CancelOrderMessage{}, ErrMessageTooShort
	}
	idLen := int(body[0])
	if len(body) < cancelOrderFixedLen+idLen {
		return CancelOrderMessage{}, ErrMessageTooShort
	}
	return CancelOrderMessage{OrderID: common.OrderID(body[1 : 1+idLen])}, nil
}

// ParsedMessage is the decoded form of any accepted frame's header plus
// body, dispatched on Type.
type ParsedMessage struct {
	Type        MessageType
	NewOrder    *NewOrderMessage
	CancelOrder *CancelOrderMessage
}

// ParseMessage reads the 2-byte header and dispatches to the matching body
// parser.
func ParseMessage(frame []byte) (ParsedMessage, error) {
	if len(frame) < BaseMessageHeaderLen {
		return ParsedMessage{}, ErrMessageTooShort
	}
	typeOf := MessageType(binary.BigEndian.Uint16(frame[0:2]))
	body := frame[2:]
	switch typeOf {
	case NewOrder:
		m, err := ParseNewOrder(body)
		if err != nil {
			return ParsedMessage{}, err
		}
		return ParsedMessage{Type: NewOrder, NewOrder: &m}, nil
	case CancelOrder:
		m, err := ParseCancelOrder(body)
		if err != nil {
			return ParsedMessage{}, err
		}
		return ParsedMessage{Type: CancelOrder, CancelOrder: &m}, nil
	case LogBook, Heartbeat:
		return ParsedMessage{Type: typeOf}, nil
	default:
		return ParsedMessage{}, ErrInvalidMessageType
	}
}

// Report is one execution or error report sent back to a client.
type Report struct {
	Type         ReportType
	Side         common.OrderSide
	Price        decimal.Decimal
	Quantity     decimal.Decimal
	OrderID      common.OrderID
	Counterparty string
	Err          string
}

// Serialize packs a report for the wire: a 1-byte type, a 1-byte side, the
// lengths of the five variable fields (price, qty, order id, error string,
// counterparty name), then those five fields in that order.
func (r Report) Serialize() []byte {
	priceStr := r.Price.String()
	qtyStr := r.Quantity.String()
	idStr := string(r.OrderID)

	fixed := 1 + 1 + 2 + 2 + 1 + 2 + 2 // type, side, priceLen, qtyLen, idLen, errLen, cpLen
	total := fixed + len(priceStr) + len(qtyStr) + len(idStr) + len(r.Err) + len(r.Counterparty)
	buf := make([]byte, total)

	buf[0] = byte(r.Type)
	buf[1] = byte(r.Side)
	binary.BigEndian.PutUint16(buf[2:4], uint16(len(priceStr)))
	binary.BigEndian.PutUint16(buf[4:6], uint16(len(qtyStr)))
	buf[6] = byte(len(idStr))
	binary.BigEndian.PutUint16(buf[7:9], uint16(len(r.Err)))
	binary.BigEndian.PutUint16(buf[9:11], uint16(len(r.Counterparty)))

	offset := 11
	offset += copy(buf[offset:], priceStr)
	offset += copy(buf[offset:], qtyStr)
	offset += copy(buf[offset:], idStr)
	offset += copy(buf[offset:], r.Err)
	copy(buf[offset:], r.Counterparty)

	return buf
}
