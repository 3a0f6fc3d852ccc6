package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type QuoteStatus string

const (
	QuoteStatusSubmitted QuoteStatus = "submitted"
	QuoteStatusWithdrawn QuoteStatus = "withdrawn"
	QuoteStatusRejected  QuoteStatus = "rejected"
	QuoteStatusAccepted  QuoteStatus = "accepted"
)

// Quote is a supplier bid against an RFQ, identified by
// (rfq_id, supplier_org_id, revision_no). Revision 1 is the initial bid;
// higher revisions only exist for suppliers that bid again during an
// active second chance window. The unique index backs the revision
// invariant against concurrent submissions.
//
// SupplierOrgID and the free text fields are identity bearing - customer
// side callers only ever see a Quote through the anonymity guard.
type Quote struct {
	Model
	ProjectID     uuid.UUID   `json:"projectId" gorm:"type:uuid;not null;index"`
	RFQID         uuid.UUID   `json:"rfqId" gorm:"type:uuid;not null;uniqueIndex:idx_quote_revision"`
	SupplierOrgID uuid.UUID   `json:"supplierOrgId" gorm:"type:uuid;not null;uniqueIndex:idx_quote_revision"`
	RevisionNo    int         `json:"revisionNo" gorm:"not null;default:1;uniqueIndex:idx_quote_revision"`
	Status        QuoteStatus `json:"status" gorm:"type:text;not null;default:'submitted'"`

	TotalAmount decimal.Decimal `json:"totalAmount" gorm:"type:numeric(20,4);not null"`
	SubmittedAt time.Time       `json:"submittedAt" gorm:"not null"`

	Note          string `json:"note" gorm:"type:text"`
	DeliveryTerms string `json:"deliveryTerms" gorm:"type:text"`

	Items []QuoteItem `json:"items" gorm:"foreignKey:QuoteID;constraint:OnDelete:CASCADE;"`
}

func (Quote) TableName() string {
	return "quotes"
}

func (m Quote) GetProjectID() uuid.UUID {
	return m.ProjectID
}

func (m *Quote) SetProjectID(id uuid.UUID) {
	m.ProjectID = id
}

type QuoteItem struct {
	Model
	ProjectID   uuid.UUID       `json:"projectId" gorm:"type:uuid;not null;index"`
	QuoteID     uuid.UUID       `json:"quoteId" gorm:"type:uuid;not null;index"`
	Description string          `json:"description" gorm:"type:text;not null"`
	Quantity    int             `json:"quantity" gorm:"not null;default:1"`
	UnitPrice   decimal.Decimal `json:"unitPrice" gorm:"type:numeric(20,4);not null"`
}

func (QuoteItem) TableName() string {
	return "quote_items"
}

func (m QuoteItem) GetProjectID() uuid.UUID {
	return m.ProjectID
}

func (m *QuoteItem) SetProjectID(id uuid.UUID) {
	m.ProjectID = id
}
