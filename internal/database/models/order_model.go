package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPendingSignature OrderStatus = "pending_signature"
	OrderStatusSigned           OrderStatus = "signed"
	OrderStatusReleased         OrderStatus = "released"
	OrderStatusInDelivery       OrderStatus = "in_delivery"
	OrderStatusDelivered        OrderStatus = "delivered"
	OrderStatusCompleted        OrderStatus = "completed"
	OrderStatusCancelled        OrderStatus = "cancelled"
)

// Order is created from exactly one accepted quote during the award
// transition. AcceptedQuoteID is immutable.
type Order struct {
	Model
	ProjectID       uuid.UUID   `json:"projectId" gorm:"type:uuid;not null;index"`
	RFQID           uuid.UUID   `json:"rfqId" gorm:"type:uuid;not null;index"`
	AcceptedQuoteID uuid.UUID   `json:"acceptedQuoteId" gorm:"type:uuid;not null;uniqueIndex"`
	Status          OrderStatus `json:"status" gorm:"type:text;not null;default:'pending_signature'"`

	TotalAmount decimal.Decimal `json:"totalAmount" gorm:"type:numeric(20,4);not null"`

	ContractID       *uuid.UUID `json:"contractId" gorm:"type:uuid"`
	RequiresContract bool       `json:"requiresContract" gorm:"not null;default:true"`

	Items []OrderItem `json:"items" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE;"`
}

func (Order) TableName() string {
	return "orders"
}

func (m Order) GetProjectID() uuid.UUID {
	return m.ProjectID
}

func (m *Order) SetProjectID(id uuid.UUID) {
	m.ProjectID = id
}

// IdentityRevealed reports whether the order passed the identity reveal
// point of its accepted quote.
func (m Order) IdentityRevealed() bool {
	switch m.Status {
	case OrderStatusSigned, OrderStatusReleased, OrderStatusInDelivery, OrderStatusDelivered, OrderStatusCompleted:
		return true
	}
	return false
}

type OrderItem struct {
	Model
	ProjectID   uuid.UUID       `json:"projectId" gorm:"type:uuid;not null;index"`
	OrderID     uuid.UUID       `json:"orderId" gorm:"type:uuid;not null;index"`
	Description string          `json:"description" gorm:"type:text;not null"`
	Quantity    int             `json:"quantity" gorm:"not null;default:1"`
	UnitPrice   decimal.Decimal `json:"unitPrice" gorm:"type:numeric(20,4);not null"`
}

func (OrderItem) TableName() string {
	return "order_items"
}

func (m OrderItem) GetProjectID() uuid.UUID {
	return m.ProjectID
}

func (m *OrderItem) SetProjectID(id uuid.UUID) {
	m.ProjectID = id
}

// Contract is the opaque handle to the signing service. The workflow only
// cares whether a signed contract exists for an order.
type Contract struct {
	Model
	ProjectID   uuid.UUID  `json:"projectId" gorm:"type:uuid;not null;index"`
	OrderID     uuid.UUID  `json:"orderId" gorm:"type:uuid;not null;index"`
	DocumentRef string     `json:"documentRef" gorm:"type:text"`
	SignedAt    *time.Time `json:"signedAt"`
}

func (Contract) TableName() string {
	return "contracts"
}

func (m Contract) GetProjectID() uuid.UUID {
	return m.ProjectID
}

func (m *Contract) SetProjectID(id uuid.UUID) {
	m.ProjectID = id
}

type DeliveryEventKind string

const (
	DeliveryEventDispatched DeliveryEventKind = "dispatched"
	DeliveryEventDelivered  DeliveryEventKind = "delivered"
)

// DeliveryEvent records the physical delivery milestones an order has to
// pass strictly in sequence on its way to completion.
type DeliveryEvent struct {
	Model
	ProjectID  uuid.UUID         `json:"projectId" gorm:"type:uuid;not null;index"`
	OrderID    uuid.UUID         `json:"orderId" gorm:"type:uuid;not null;index"`
	Kind       DeliveryEventKind `json:"kind" gorm:"type:text;not null"`
	RecordedAt time.Time         `json:"recordedAt" gorm:"not null"`
	Note       string            `json:"note" gorm:"type:text"`
}

func (DeliveryEvent) TableName() string {
	return "delivery_events"
}

func (m DeliveryEvent) GetProjectID() uuid.UUID {
	return m.ProjectID
}

func (m *DeliveryEvent) SetProjectID(id uuid.UUID) {
	m.ProjectID = id
}
