package grpcsvc

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	posv1 "github.com/vladislavdragonenkov/pos/api/pos/v1"
	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/service/checkout"
)

const (
	cashierIDHeader = "x-cashier-id"

	defaultListInvoicesLimit = 100
	maxListInvoicesLimit     = 1000
)

// ProductLookup собирает позицию корзины по карточке товара.
type ProductLookup interface {
	CartLine(ctx context.Context, productID string, qty int32) (domain.CartLine, error)
}

// CustomerLookup возвращает снимок клиента из справочника.
type CustomerLookup interface {
	CustomerSnapshot(ctx context.Context, id string) (*domain.CustomerSnapshot, error)
}

// Quoter считает итоги корзины без записи в хранилище.
type Quoter interface {
	Quote(lines []domain.CartLine, rate *decimal.Decimal) (domain.Totals, error)
	TaxRate() decimal.Decimal
}

// Dependencies — зависимости PosService. Idempotency может быть nil: тогда ключ не проверяется.
type Dependencies struct {
	Finalizer   checkout.Finalizer
	Quoter      Quoter
	Products    ProductLookup
	Customers   CustomerLookup
	Invoices    domain.InvoiceRepository
	Idempotency domain.IdempotencyRepository
}

// PosService реализует gRPC API кассы поверх фиксатора продаж.
type PosService struct {
	posv1.UnimplementedPosServiceServer

	finalizer checkout.Finalizer
	quoter    Quoter
	products  ProductLookup
	customers CustomerLookup
	invoices  domain.InvoiceRepository
	idemRepo  domain.IdempotencyRepository
	logger    *log.Entry
}

// NewPosService конструирует сервис с зависимостями.
func NewPosService(deps Dependencies, logger *log.Entry) *PosService {
	if logger == nil {
		logger = log.New().WithField("component", "pos-service")
	}
	return &PosService{
		finalizer: deps.Finalizer,
		quoter:    deps.Quoter,
		products:  deps.Products,
		customers: deps.Customers,
		invoices:  deps.Invoices,
		idemRepo:  deps.Idempotency,
		logger:    logger,
	}
}

// FinalizeSale проводит продажу. Требует метаданные idempotency-key.
func (s *PosService) FinalizeSale(ctx context.Context, req *posv1.FinalizeSaleRequest) (*posv1.FinalizeSaleResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	return idempotent(
		ctx,
		s,
		posv1.PosService_FinalizeSale_FullMethodName,
		req,
		func() *posv1.FinalizeSaleResponse { return &posv1.FinalizeSaleResponse{} },
		func(ctx context.Context) (*posv1.FinalizeSaleResponse, error) {
			return s.finalizeSaleInternal(ctx, req)
		},
	)
}

func (s *PosService) finalizeSaleInternal(ctx context.Context, req *posv1.FinalizeSaleRequest) (*posv1.FinalizeSaleResponse, error) {
	lines, err := s.resolveLines(ctx, req.Lines)
	if err != nil {
		return nil, err
	}
	rate, err := parseTaxRate(req.TaxRate)
	if err != nil {
		return nil, err
	}
	customer, err := s.resolveCustomer(ctx, req.CustomerId, req.Customer)
	if err != nil {
		return nil, err
	}

	invoice, err := s.finalizer.Finalize(ctx, checkout.SaleRequest{
		Lines:     lines,
		Customer:  customer,
		CashierID: readMetadata(ctx, cashierIDHeader),
		TaxRate:   rate,
	})
	if err != nil {
		return nil, s.toStatus(err, "FinalizeSale")
	}

	return &posv1.FinalizeSaleResponse{Invoice: toProtoInvoice(invoice)}, nil
}

// QuoteCart считает итоги корзины, ничего не записывая.
func (s *PosService) QuoteCart(ctx context.Context, req *posv1.QuoteCartRequest) (*posv1.QuoteCartResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	lines, err := s.resolveLines(ctx, req.Lines)
	if err != nil {
		return nil, err
	}
	rate, err := parseTaxRate(req.TaxRate)
	if err != nil {
		return nil, err
	}

	totals, err := s.quoter.Quote(lines, rate)
	if err != nil {
		return nil, s.toStatus(err, "QuoteCart")
	}

	applied := s.quoter.TaxRate()
	if rate != nil {
		applied = *rate
	}

	return &posv1.QuoteCartResponse{
		Items:    toProtoItems(domain.InvoiceItemsFromCart(lines)),
		Subtotal: money(totals.Subtotal),
		Tax:      money(totals.Tax),
		Total:    money(totals.Total),
		TaxRate:  applied.String(),
	}, nil
}

// GetInvoice возвращает зафиксированный счёт.
func (s *PosService) GetInvoice(ctx context.Context, req *posv1.GetInvoiceRequest) (*posv1.GetInvoiceResponse, error) {
	if req == nil || strings.TrimSpace(req.InvoiceId) == "" {
		return nil, status.Error(codes.InvalidArgument, "invoice_id is required")
	}

	invoice, err := s.invoices.Get(ctx, req.InvoiceId)
	if err != nil {
		return nil, s.toStatus(err, "GetInvoice")
	}
	return &posv1.GetInvoiceResponse{Invoice: toProtoInvoice(invoice)}, nil
}

// ListInvoices возвращает счета за окно; без границ отдаёт последние, новые первыми.
func (s *PosService) ListInvoices(ctx context.Context, req *posv1.ListInvoicesRequest) (*posv1.ListInvoicesResponse, error) {
	if req == nil {
		req = &posv1.ListInvoicesRequest{}
	}

	limit := int(req.PageSize)
	if limit <= 0 {
		limit = defaultListInvoicesLimit
	}
	if limit > maxListInvoicesLimit {
		limit = maxListInvoicesLimit
	}

	from, err := parseTime("from", req.From)
	if err != nil {
		return nil, err
	}
	to, err := parseTime("to", req.To)
	if err != nil {
		return nil, err
	}

	var invoices []domain.Invoice
	if from.IsZero() && to.IsZero() {
		invoices, err = s.invoices.ListRecent(ctx, limit)
	} else {
		invoices, err = s.invoices.List(ctx, domain.InvoiceFilter{From: from, To: to, Limit: limit})
	}
	if err != nil {
		s.logger.WithError(err).Error("failed to list invoices")
		return nil, status.Error(codes.Internal, "failed to list invoices")
	}

	result := make([]*posv1.Invoice, 0, len(invoices))
	for _, invoice := range invoices {
		result = append(result, toProtoInvoice(invoice))
	}
	return &posv1.ListInvoicesResponse{Invoices: result}, nil
}

// resolveLines превращает позиции запроса в снимки корзины. Недостающие название
// и цена берутся из карточки товара; переданные явно сохраняются как есть.
func (s *PosService) resolveLines(ctx context.Context, lines []*posv1.CartLine) ([]domain.CartLine, error) {
	if len(lines) == 0 {
		return nil, status.Error(codes.InvalidArgument, domain.ErrEmptyCart.Error())
	}

	cart := domain.NewCart()
	for idx, line := range lines {
		if line == nil {
			return nil, status.Errorf(codes.InvalidArgument, "lines[%d] is nil", idx)
		}
		if strings.TrimSpace(line.ProductId) == "" {
			return nil, status.Errorf(codes.InvalidArgument, "lines[%d].product_id is required", idx)
		}
		if line.Quantity <= 0 {
			return nil, status.Errorf(codes.InvalidArgument, "lines[%d].quantity must be > 0", idx)
		}

		snapshot := domain.CartLine{ProductID: line.ProductId, Name: line.Name, Quantity: line.Quantity}
		if line.UnitPrice != "" {
			price, err := decimal.NewFromString(line.UnitPrice)
			if err != nil {
				return nil, status.Errorf(codes.InvalidArgument, "lines[%d].unit_price is not a number", idx)
			}
			snapshot.UnitPrice = price
		}

		if line.UnitPrice == "" || line.Name == "" {
			if s.products == nil {
				return nil, status.Errorf(codes.InvalidArgument, "lines[%d] requires name and unit_price", idx)
			}
			current, err := s.products.CartLine(ctx, line.ProductId, line.Quantity)
			if err != nil {
				return nil, s.toStatus(err, "ResolveLine")
			}
			if line.Name == "" {
				snapshot.Name = current.Name
			}
			if line.UnitPrice == "" {
				snapshot.UnitPrice = current.UnitPrice
			}
		}

		if err := cart.AddLine(snapshot); err != nil {
			return nil, status.Errorf(codes.InvalidArgument, "lines[%d]: %v", idx, err)
		}
	}
	return cart.Lines(), nil
}

func (s *PosService) resolveCustomer(ctx context.Context, customerID string, customer *posv1.Customer) (*domain.CustomerSnapshot, error) {
	if customerID = strings.TrimSpace(customerID); customerID != "" {
		if s.customers == nil {
			return nil, status.Error(codes.FailedPrecondition, "customer lookup is not configured")
		}
		snapshot, err := s.customers.CustomerSnapshot(ctx, customerID)
		if err != nil {
			return nil, s.toStatus(err, "ResolveCustomer")
		}
		return snapshot, nil
	}
	if customer == nil {
		return nil, nil
	}
	if strings.TrimSpace(customer.Name) == "" {
		return nil, status.Error(codes.InvalidArgument, "customer.name is required")
	}
	return &domain.CustomerSnapshot{
		ID:    customer.Id,
		Name:  strings.TrimSpace(customer.Name),
		TaxID: customer.TaxId,
	}, nil
}

// toStatus переводит доменную ошибку в gRPC-статус.
func (s *PosService) toStatus(err error, operation string) error {
	if _, ok := status.FromError(err); ok {
		return err
	}

	entry := s.logger.WithError(err).WithField("operation", operation)

	if shortage, ok := domain.AsInsufficientStock(err); ok {
		entry.WithFields(log.Fields{
			"product_id": shortage.ProductID,
			"requested":  shortage.Requested,
			"available":  shortage.Available,
		}).Info("sale rejected")
		return status.Error(codes.FailedPrecondition, shortage.Error())
	}

	switch {
	case domain.IsInputError(err), domain.IsValidationError(err):
		return status.Error(codes.InvalidArgument, err.Error())
	case domain.IsStoreConflict(err):
		entry.Warn("store conflict")
		return status.Error(codes.Aborted, err.Error())
	case domain.IsNotFound(err):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		entry.Error("request failed")
		return status.Error(codes.Internal, "internal error")
	}
}

func parseTaxRate(raw string) (*decimal.Decimal, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	rate, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "tax_rate is not a number")
	}
	return &rate, nil
}

func parseTime(field, raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, status.Errorf(codes.InvalidArgument, "%s must be RFC 3339: %v", field, err)
	}
	return t, nil
}

func readMetadata(ctx context.Context, key string) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(key); len(values) > 0 {
			return strings.TrimSpace(values[0])
		}
	}
	return ""
}

func money(d decimal.Decimal) string {
	return d.StringFixed(domain.MoneyPlaces)
}

func toProtoItems(items []domain.InvoiceItem) []*posv1.InvoiceItem {
	result := make([]*posv1.InvoiceItem, 0, len(items))
	for _, item := range items {
		result = append(result, &posv1.InvoiceItem{
			ProductId: item.ProductID,
			Name:      item.Name,
			UnitPrice: money(item.UnitPrice),
			Quantity:  item.Quantity,
			LineTotal: money(item.LineTotal()),
		})
	}
	return result
}

func toProtoInvoice(invoice domain.Invoice) *posv1.Invoice {
	out := &posv1.Invoice{
		Id:        invoice.ID,
		Number:    invoice.Number,
		Items:     toProtoItems(invoice.Items),
		Subtotal:  money(invoice.Subtotal),
		Tax:       money(invoice.Tax),
		Total:     money(invoice.Total),
		TaxRate:   invoice.TaxRate.String(),
		CashierId: invoice.CashierID,
		CreatedAt: invoice.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if invoice.Customer != nil {
		out.Customer = &posv1.Customer{
			Id:    invoice.Customer.ID,
			Name:  invoice.Customer.Name,
			TaxId: invoice.Customer.TaxID,
		}
	}
	return out
}

var _ posv1.PosServiceServer = (*PosService)(nil)
