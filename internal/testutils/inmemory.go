// Copyright (C) 2024 Tim Bastin, l3montree GmbH
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package testutils carries in-memory fakes of the domain repositories.
// They reproduce the scoping behavior of the real repositories - a read
// outside the scope project answers NOT_FOUND, never the row - so service
// tests exercise the same failure surface without a database.
package testutils

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/l3montree-dev/procurio/internal/core"
	"github.com/l3montree-dev/procurio/internal/core/events"
	"github.com/l3montree-dev/procurio/internal/database/models"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

func visible(scope core.Scope, projectID uuid.UUID) bool {
	return scope.AdminOverride || scope.ProjectID == projectID
}

func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

// --- RFQ ---

type FakeRFQRepository struct {
	mu   sync.Mutex
	RFQs map[uuid.UUID]models.RFQ
}

func NewFakeRFQRepository() *FakeRFQRepository {
	return &FakeRFQRepository{RFQs: make(map[uuid.UUID]models.RFQ)}
}

func (f *FakeRFQRepository) Transaction(fn func(tx core.DB) error) error {
	return fn(nil)
}

func (f *FakeRFQRepository) GetByID(tx core.DB, scope core.Scope, id uuid.UUID) (models.RFQ, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rfq, ok := f.RFQs[id]
	if !ok || !visible(scope, rfq.ProjectID) {
		return models.RFQ{}, core.NewNotFound("rfqs")
	}
	return rfq, nil
}

func (f *FakeRFQRepository) GetByIDForUpdate(tx core.DB, scope core.Scope, id uuid.UUID) (models.RFQ, error) {
	return f.GetByID(tx, scope, id)
}

func (f *FakeRFQRepository) Create(tx core.DB, scope core.Scope, rfq *models.RFQ) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if rfq.ProjectID != uuid.Nil && rfq.ProjectID != scope.ProjectID {
		return core.NewScopeViolation("cannot create rfqs in a foreign project")
	}
	ensureID(&rfq.ID)
	rfq.ProjectID = scope.ProjectID
	rfq.CreatedAt = time.Now()
	for i := range rfq.Suppliers {
		ensureID(&rfq.Suppliers[i].ID)
		rfq.Suppliers[i].ProjectID = scope.ProjectID
		rfq.Suppliers[i].RFQID = rfq.ID
	}
	f.RFQs[rfq.ID] = *rfq
	return nil
}

func (f *FakeRFQRepository) Update(tx core.DB, scope core.Scope, rfq *models.RFQ) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	current, ok := f.RFQs[rfq.ID]
	if !ok || !visible(scope, current.ProjectID) {
		return core.NewNotFound("rfqs")
	}
	rfq.ProjectID = current.ProjectID
	f.RFQs[rfq.ID] = *rfq
	return nil
}

func (f *FakeRFQRepository) CountSuppliers(tx core.DB, scope core.Scope, rfqID uuid.UUID) (int64, error) {
	rfq, err := f.GetByID(tx, scope, rfqID)
	if err != nil {
		return 0, err
	}
	return int64(len(rfq.Suppliers)), nil
}

func (f *FakeRFQRepository) IsTargetedSupplier(tx core.DB, scope core.Scope, rfqID, supplierOrgID uuid.UUID) (bool, error) {
	rfq, err := f.GetByID(tx, scope, rfqID)
	if err != nil {
		return false, err
	}
	for _, supplier := range rfq.Suppliers {
		if supplier.SupplierOrgID == supplierOrgID {
			return true, nil
		}
	}
	return false, nil
}

// --- quotes ---

type FakeQuoteRepository struct {
	mu     sync.Mutex
	Quotes map[uuid.UUID]models.Quote
}

func NewFakeQuoteRepository() *FakeQuoteRepository {
	return &FakeQuoteRepository{Quotes: make(map[uuid.UUID]models.Quote)}
}

func (f *FakeQuoteRepository) Create(tx core.DB, scope core.Scope, quote *models.Quote) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.Quotes {
		if existing.RFQID == quote.RFQID &&
			existing.SupplierOrgID == quote.SupplierOrgID &&
			existing.RevisionNo == quote.RevisionNo {
			return errors.New(`duplicate key value violates unique constraint "idx_quote_revision"`)
		}
	}
	ensureID(&quote.ID)
	quote.ProjectID = scope.ProjectID
	for i := range quote.Items {
		ensureID(&quote.Items[i].ID)
		quote.Items[i].ProjectID = scope.ProjectID
		quote.Items[i].QuoteID = quote.ID
	}
	f.Quotes[quote.ID] = *quote
	return nil
}

func (f *FakeQuoteRepository) GetByID(tx core.DB, scope core.Scope, id uuid.UUID) (models.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	quote, ok := f.Quotes[id]
	if !ok || !visible(scope, quote.ProjectID) {
		return models.Quote{}, core.NewNotFound("quotes")
	}
	return quote, nil
}

func (f *FakeQuoteRepository) GetByIDWithItems(tx core.DB, scope core.Scope, id uuid.UUID) (models.Quote, error) {
	return f.GetByID(tx, scope, id)
}

func (f *FakeQuoteRepository) Update(tx core.DB, scope core.Scope, quote *models.Quote) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	current, ok := f.Quotes[quote.ID]
	if !ok || !visible(scope, current.ProjectID) {
		return core.NewNotFound("quotes")
	}
	quote.ProjectID = current.ProjectID
	f.Quotes[quote.ID] = *quote
	return nil
}

func (f *FakeQuoteRepository) LatestRevision(tx core.DB, scope core.Scope, rfqID, supplierOrgID uuid.UUID) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	latest := 0
	for _, quote := range f.Quotes {
		if !visible(scope, quote.ProjectID) {
			continue
		}
		if quote.RFQID == rfqID && quote.SupplierOrgID == supplierOrgID && quote.RevisionNo > latest {
			latest = quote.RevisionNo
		}
	}
	return latest, nil
}

func (f *FakeQuoteRepository) ListByRFQ(tx core.DB, scope core.Scope, rfqID uuid.UUID) ([]models.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var quotes []models.Quote
	for _, quote := range f.Quotes {
		if visible(scope, quote.ProjectID) && quote.RFQID == rfqID {
			quotes = append(quotes, quote)
		}
	}
	sort.Slice(quotes, func(i, j int) bool {
		if quotes[i].SupplierOrgID == quotes[j].SupplierOrgID {
			return quotes[i].RevisionNo < quotes[j].RevisionNo
		}
		return quotes[i].SupplierOrgID.String() < quotes[j].SupplierOrgID.String()
	})
	return quotes, nil
}

func (f *FakeQuoteRepository) SuppliersWithValidQuote(tx core.DB, scope core.Scope, rfqID uuid.UUID) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := map[uuid.UUID]bool{}
	var supplierIDs []uuid.UUID
	for _, quote := range f.Quotes {
		if !visible(scope, quote.ProjectID) {
			continue
		}
		if quote.RFQID == rfqID && quote.Status == models.QuoteStatusSubmitted && !seen[quote.SupplierOrgID] {
			seen[quote.SupplierOrgID] = true
			supplierIDs = append(supplierIDs, quote.SupplierOrgID)
		}
	}
	return supplierIDs, nil
}

func (f *FakeQuoteRepository) RejectOpenExcept(tx core.DB, scope core.Scope, rfqID, acceptedQuoteID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, quote := range f.Quotes {
		if !visible(scope, quote.ProjectID) {
			continue
		}
		if quote.RFQID == rfqID && quote.ID != acceptedQuoteID && quote.Status == models.QuoteStatusSubmitted {
			quote.Status = models.QuoteStatusRejected
			f.Quotes[id] = quote
		}
	}
	return nil
}

// --- orders ---

type FakeOrderRepository struct {
	mu     sync.Mutex
	Orders map[uuid.UUID]models.Order
}

func NewFakeOrderRepository() *FakeOrderRepository {
	return &FakeOrderRepository{Orders: make(map[uuid.UUID]models.Order)}
}

func (f *FakeOrderRepository) Create(tx core.DB, scope core.Scope, order *models.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ensureID(&order.ID)
	order.ProjectID = scope.ProjectID
	order.CreatedAt = time.Now()
	for i := range order.Items {
		ensureID(&order.Items[i].ID)
		order.Items[i].ProjectID = scope.ProjectID
		order.Items[i].OrderID = order.ID
	}
	f.Orders[order.ID] = *order
	return nil
}

func (f *FakeOrderRepository) GetByID(tx core.DB, scope core.Scope, id uuid.UUID) (models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	order, ok := f.Orders[id]
	if !ok || !visible(scope, order.ProjectID) {
		return models.Order{}, core.NewNotFound("orders")
	}
	return order, nil
}

func (f *FakeOrderRepository) GetByIDForUpdate(tx core.DB, scope core.Scope, id uuid.UUID) (models.Order, error) {
	return f.GetByID(tx, scope, id)
}

func (f *FakeOrderRepository) GetByRFQ(tx core.DB, scope core.Scope, rfqID uuid.UUID) (models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, order := range f.Orders {
		if visible(scope, order.ProjectID) && order.RFQID == rfqID && order.Status != models.OrderStatusCancelled {
			return order, nil
		}
	}
	return models.Order{}, core.NewNotFound("orders")
}

func (f *FakeOrderRepository) Update(tx core.DB, scope core.Scope, order *models.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	current, ok := f.Orders[order.ID]
	if !ok || !visible(scope, current.ProjectID) {
		return core.NewNotFound("orders")
	}
	order.ProjectID = current.ProjectID
	f.Orders[order.ID] = *order
	return nil
}

func (f *FakeOrderRepository) HasReleasedForRFQ(tx core.DB, scope core.Scope, rfqID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, order := range f.Orders {
		if !visible(scope, order.ProjectID) || order.RFQID != rfqID {
			continue
		}
		switch order.Status {
		case models.OrderStatusReleased, models.OrderStatusInDelivery, models.OrderStatusDelivered, models.OrderStatusCompleted:
			return true, nil
		}
	}
	return false, nil
}

func (f *FakeOrderRepository) SumCommitted(tx core.DB, scope core.Scope, excludeOrderID *uuid.UUID) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sum := decimal.Zero
	for _, order := range f.Orders {
		if !visible(scope, order.ProjectID) || order.Status == models.OrderStatusCancelled {
			continue
		}
		if excludeOrderID != nil && order.ID == *excludeOrderID {
			continue
		}
		sum = sum.Add(order.TotalAmount)
	}
	return sum, nil
}

// --- contracts ---

type FakeContractRepository struct {
	mu        sync.Mutex
	Contracts map[uuid.UUID]models.Contract
}

func NewFakeContractRepository() *FakeContractRepository {
	return &FakeContractRepository{Contracts: make(map[uuid.UUID]models.Contract)}
}

func (f *FakeContractRepository) Put(contract models.Contract) models.Contract {
	f.mu.Lock()
	defer f.mu.Unlock()
	ensureID(&contract.ID)
	f.Contracts[contract.ID] = contract
	return contract
}

func (f *FakeContractRepository) GetByID(tx core.DB, scope core.Scope, id uuid.UUID) (models.Contract, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	contract, ok := f.Contracts[id]
	if !ok || !visible(scope, contract.ProjectID) {
		return models.Contract{}, core.NewNotFound("contracts")
	}
	return contract, nil
}

// --- delivery events ---

type FakeDeliveryEventRepository struct {
	mu     sync.Mutex
	Events []models.DeliveryEvent
}

func NewFakeDeliveryEventRepository() *FakeDeliveryEventRepository {
	return &FakeDeliveryEventRepository{}
}

func (f *FakeDeliveryEventRepository) Create(tx core.DB, scope core.Scope, event *models.DeliveryEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ensureID(&event.ID)
	event.ProjectID = scope.ProjectID
	f.Events = append(f.Events, *event)
	return nil
}

func (f *FakeDeliveryEventRepository) HasEvent(tx core.DB, scope core.Scope, orderID uuid.UUID, kind models.DeliveryEventKind) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, event := range f.Events {
		if visible(scope, event.ProjectID) && event.OrderID == orderID && event.Kind == kind {
			return true, nil
		}
	}
	return false, nil
}

// --- projects ---

type FakeProjectRepository struct {
	mu       sync.Mutex
	Projects map[uuid.UUID]models.Project
}

func NewFakeProjectRepository() *FakeProjectRepository {
	return &FakeProjectRepository{Projects: make(map[uuid.UUID]models.Project)}
}

func (f *FakeProjectRepository) Put(project models.Project) models.Project {
	f.mu.Lock()
	defer f.mu.Unlock()
	ensureID(&project.ID)
	f.Projects[project.ID] = project
	return project
}

func (f *FakeProjectRepository) Read(tx core.DB, scope core.Scope) (models.Project, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	project, ok := f.Projects[scope.ProjectID]
	if !ok {
		return models.Project{}, core.NewNotFound("projects")
	}
	return project, nil
}

func (f *FakeProjectRepository) ReadForUpdate(tx core.DB, scope core.Scope) (models.Project, error) {
	return f.Read(tx, scope)
}

func (f *FakeProjectRepository) Transaction(fn func(tx core.DB) error) error {
	return fn(nil)
}

// --- invoices ---

type FakeInvoiceRepository struct {
	mu       sync.Mutex
	Invoices []models.Invoice
}

func NewFakeInvoiceRepository() *FakeInvoiceRepository {
	return &FakeInvoiceRepository{}
}

func (f *FakeInvoiceRepository) Add(invoice models.Invoice) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ensureID(&invoice.ID)
	f.Invoices = append(f.Invoices, invoice)
}

func (f *FakeInvoiceRepository) SumPaid(tx core.DB, scope core.Scope) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sum := decimal.Zero
	for _, invoice := range f.Invoices {
		if visible(scope, invoice.ProjectID) && invoice.Paid {
			sum = sum.Add(invoice.TotalAmount)
		}
	}
	return sum, nil
}

// --- budget exceptions ---

type FakeBudgetExceptionRepository struct {
	mu         sync.Mutex
	Exceptions map[uuid.UUID]models.BudgetException
}

func NewFakeBudgetExceptionRepository() *FakeBudgetExceptionRepository {
	return &FakeBudgetExceptionRepository{Exceptions: make(map[uuid.UUID]models.BudgetException)}
}

func (f *FakeBudgetExceptionRepository) Transaction(fn func(tx core.DB) error) error {
	return fn(nil)
}

func (f *FakeBudgetExceptionRepository) Create(tx core.DB, scope core.Scope, exception *models.BudgetException) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ensureID(&exception.ID)
	exception.ProjectID = scope.ProjectID
	f.Exceptions[exception.ID] = *exception
	return nil
}

func (f *FakeBudgetExceptionRepository) GetByIDForUpdate(tx core.DB, scope core.Scope, id uuid.UUID) (models.BudgetException, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	exception, ok := f.Exceptions[id]
	if !ok || !visible(scope, exception.ProjectID) {
		return models.BudgetException{}, core.NewNotFound("budget_exceptions")
	}
	return exception, nil
}

func (f *FakeBudgetExceptionRepository) Update(tx core.DB, scope core.Scope, exception *models.BudgetException) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	current, ok := f.Exceptions[exception.ID]
	if !ok || !visible(scope, current.ProjectID) {
		return core.NewNotFound("budget_exceptions")
	}
	exception.ProjectID = current.ProjectID
	f.Exceptions[exception.ID] = *exception
	return nil
}

func (f *FakeBudgetExceptionRepository) FindApprovedCovering(tx core.DB, scope core.Scope, orderID uuid.UUID, shortfall decimal.Decimal) (models.BudgetException, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var best *models.BudgetException
	for _, exception := range f.Exceptions {
		if !visible(scope, exception.ProjectID) || exception.Status != models.BudgetExceptionStatusApproved {
			continue
		}
		if exception.ApprovedAmount.LessThan(shortfall) {
			continue
		}
		if exception.OrderID != nil && *exception.OrderID != orderID {
			continue
		}
		if best == nil || exception.ApprovedAmount.LessThan(best.ApprovedAmount) {
			candidate := exception
			best = &candidate
		}
	}
	if best == nil {
		return models.BudgetException{}, core.NewNotFound("budget_exceptions")
	}
	return *best, nil
}

// --- identity reveal audit ---

type FakeRevealAuditRepository struct {
	mu      sync.Mutex
	Records []models.IdentityRevealAudit
}

func NewFakeRevealAuditRepository() *FakeRevealAuditRepository {
	return &FakeRevealAuditRepository{}
}

func (f *FakeRevealAuditRepository) Transaction(fn func(tx core.DB) error) error {
	return fn(nil)
}

func (f *FakeRevealAuditRepository) Create(tx core.DB, scope core.Scope, audit *models.IdentityRevealAudit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ensureID(&audit.ID)
	audit.ProjectID = scope.ProjectID
	f.Records = append(f.Records, *audit)
	return nil
}

func (f *FakeRevealAuditRepository) CountForQuote(tx core.DB, scope core.Scope, quoteID uuid.UUID) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, record := range f.Records {
		if visible(scope, record.ProjectID) && record.QuoteID == quoteID {
			count++
		}
	}
	return count, nil
}

// --- outbox and publishing ---

type FakeOutboxRepository struct {
	mu   sync.Mutex
	Rows []models.OutboxEvent
}

func NewFakeOutboxRepository() *FakeOutboxRepository {
	return &FakeOutboxRepository{}
}

func (f *FakeOutboxRepository) Create(tx core.DB, scope core.Scope, event *models.OutboxEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ensureID(&event.ID)
	event.ProjectID = scope.ProjectID
	event.CreatedAt = time.Now()
	f.Rows = append(f.Rows, *event)
	return nil
}

func (f *FakeOutboxRepository) MarkPublishedByCorrelation(tx core.DB, correlationID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	for i := range f.Rows {
		if f.Rows[i].CorrelationID == correlationID && f.Rows[i].PublishedAt == nil {
			f.Rows[i].PublishedAt = &now
			f.Rows[i].Attempts++
		}
	}
	return nil
}

func (f *FakeOutboxRepository) ListUnpublished(tx core.DB, limit int) ([]models.OutboxEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var rows []models.OutboxEvent
	for _, row := range f.Rows {
		if row.PublishedAt == nil {
			rows = append(rows, row)
		}
		if len(rows) == limit {
			break
		}
	}
	return rows, nil
}

func (f *FakeOutboxRepository) MarkPublished(tx core.DB, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	for i := range f.Rows {
		if f.Rows[i].ID == id {
			f.Rows[i].PublishedAt = &now
			f.Rows[i].Attempts++
		}
	}
	return nil
}

func (f *FakeOutboxRepository) IncrementAttempts(tx core.DB, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.Rows {
		if f.Rows[i].ID == id {
			f.Rows[i].Attempts++
		}
	}
	return nil
}

func (f *FakeOutboxRepository) Unpublished() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	count := 0
	for _, row := range f.Rows {
		if row.PublishedAt == nil {
			count++
		}
	}
	return count
}

// CapturingPublisher records what would have gone to the broker.
type CapturingPublisher struct {
	mu        sync.Mutex
	Published []events.Event
	FailAll   bool
}

func NewCapturingPublisher() *CapturingPublisher {
	return &CapturingPublisher{}
}

func (p *CapturingPublisher) Publish(ctx context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.FailAll {
		return errors.New("broker unavailable")
	}
	p.Published = append(p.Published, event)
	return nil
}

func (p *CapturingPublisher) Types() []events.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]events.EventType, 0, len(p.Published))
	for _, event := range p.Published {
		types = append(types, event.Type)
	}
	return types
}
