// Package posv1 описывает gRPC API кассы pos.v1.PosService.
// Сообщения передаются в JSON через кодек из codec.go.
package posv1

// CartLine — позиция корзины в запросе. Name и UnitPrice необязательны:
// если не заданы, берутся из карточки товара.
type CartLine struct {
	ProductId string `json:"product_id"`
	Quantity  int32  `json:"quantity"`
	Name      string `json:"name,omitempty"`
	UnitPrice string `json:"unit_price,omitempty"`
}

// Customer — данные клиента на момент продажи.
type Customer struct {
	Id    string `json:"id,omitempty"`
	Name  string `json:"name"`
	TaxId string `json:"tax_id,omitempty"`
}

// InvoiceItem — позиция выписанного счёта.
type InvoiceItem struct {
	ProductId string `json:"product_id"`
	Name      string `json:"name"`
	UnitPrice string `json:"unit_price"`
	Quantity  int32  `json:"quantity"`
	LineTotal string `json:"line_total"`
}

// Invoice — зафиксированная продажа. Денежные суммы передаются строками с двумя знаками.
type Invoice struct {
	Id        string         `json:"id"`
	Number    string         `json:"number"`
	Items     []*InvoiceItem `json:"items"`
	Subtotal  string         `json:"subtotal"`
	Tax       string         `json:"tax"`
	Total     string         `json:"total"`
	TaxRate   string         `json:"tax_rate"`
	Customer  *Customer      `json:"customer,omitempty"`
	CashierId string         `json:"cashier_id,omitempty"`
	// CreatedAt в RFC 3339 (UTC).
	CreatedAt string `json:"created_at"`
}

type FinalizeSaleRequest struct {
	Lines []*CartLine `json:"lines"`
	// CustomerId ссылается на клиента из справочника; Customer передаёт снимок напрямую.
	CustomerId string    `json:"customer_id,omitempty"`
	Customer   *Customer `json:"customer,omitempty"`
	TaxRate    string    `json:"tax_rate,omitempty"`
}

type FinalizeSaleResponse struct {
	Invoice *Invoice `json:"invoice"`
}

type QuoteCartRequest struct {
	Lines   []*CartLine `json:"lines"`
	TaxRate string      `json:"tax_rate,omitempty"`
}

type QuoteCartResponse struct {
	Items    []*InvoiceItem `json:"items"`
	Subtotal string         `json:"subtotal"`
	Tax      string         `json:"tax"`
	Total    string         `json:"total"`
	TaxRate  string         `json:"tax_rate"`
}

type GetInvoiceRequest struct {
	InvoiceId string `json:"invoice_id"`
}

type GetInvoiceResponse struct {
	Invoice *Invoice `json:"invoice"`
}

// ListInvoicesRequest — выборка счетов за [From, To); границы в RFC 3339, пустые не ограничивают.
type ListInvoicesRequest struct {
	From     string `json:"from,omitempty"`
	To       string `json:"to,omitempty"`
	PageSize int32  `json:"page_size,omitempty"`
}

type ListInvoicesResponse struct {
	Invoices []*Invoice `json:"invoices"`
}

// Геттеры безопасны для nil, как у сгенерированных сообщений.

func (x *Invoice) GetId() string {
	if x != nil {
		return x.Id
	}
	return ""
}

func (x *Invoice) GetTotal() string {
	if x != nil {
		return x.Total
	}
	return ""
}

func (x *Invoice) GetItems() []*InvoiceItem {
	if x != nil {
		return x.Items
	}
	return nil
}

func (x *FinalizeSaleResponse) GetInvoice() *Invoice {
	if x != nil {
		return x.Invoice
	}
	return nil
}

func (x *GetInvoiceResponse) GetInvoice() *Invoice {
	if x != nil {
		return x.Invoice
	}
	return nil
}
