package posv1

import (
	"testing"

	"google.golang.org/grpc/encoding"
)

func TestCodecRegistered(t *testing.T) {
	codec := encoding.GetCodec(CodecName)
	if codec == nil {
		t.Fatalf("codec %q is not registered", CodecName)
	}
	if codec.Name() != CodecName {
		t.Fatalf("unexpected codec name %q", codec.Name())
	}
}

func TestCodecInvoiceWireFormat(t *testing.T) {
	var codec Codec

	data, err := codec.Marshal(&FinalizeSaleResponse{Invoice: &Invoice{
		Id:    "inv-1",
		Items: []*InvoiceItem{{ProductId: "p-1", Name: "Coffee", UnitPrice: "10.00", Quantity: 2, LineTotal: "20.00"}},
		Total: "23.00",
	}})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var decoded FinalizeSaleResponse
	if err := codec.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if decoded.GetInvoice().GetTotal() != "23.00" || len(decoded.GetInvoice().GetItems()) != 1 {
		t.Fatalf("unexpected invoice %+v", decoded.Invoice)
	}
	if decoded.Invoice.Items[0].LineTotal != "20.00" {
		t.Fatalf("unexpected line total %q", decoded.Invoice.Items[0].LineTotal)
	}
}

func TestCodecEdgeCases(t *testing.T) {
	var codec Codec

	if _, err := codec.Marshal(nil); err == nil {
		t.Fatal("expected error for nil message")
	}

	var req GetInvoiceRequest
	if err := codec.Unmarshal(nil, &req); err != nil {
		t.Fatalf("empty payload must decode to zero message: %v", err)
	}
	if err := codec.Unmarshal([]byte("{"), &req); err == nil {
		t.Fatal("expected error for malformed payload")
	}
}

func TestNilGetters(t *testing.T) {
	var resp *FinalizeSaleResponse
	if resp.GetInvoice() != nil || resp.GetInvoice().GetId() != "" || resp.GetInvoice().GetItems() != nil {
		t.Fatal("nil getters must return zero values")
	}
	var get *GetInvoiceResponse
	if get.GetInvoice() != nil {
		t.Fatal("nil GetInvoiceResponse must return nil invoice")
	}
}
