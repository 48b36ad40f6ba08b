package posv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	PosService_FinalizeSale_FullMethodName = "/pos.v1.PosService/FinalizeSale"
	PosService_QuoteCart_FullMethodName    = "/pos.v1.PosService/QuoteCart"
	PosService_GetInvoice_FullMethodName   = "/pos.v1.PosService/GetInvoice"
	PosService_ListInvoices_FullMethodName = "/pos.v1.PosService/ListInvoices"
)

// PosServiceClient — клиент кассового API.
type PosServiceClient interface {
	FinalizeSale(ctx context.Context, in *FinalizeSaleRequest, opts ...grpc.CallOption) (*FinalizeSaleResponse, error)
	QuoteCart(ctx context.Context, in *QuoteCartRequest, opts ...grpc.CallOption) (*QuoteCartResponse, error)
	GetInvoice(ctx context.Context, in *GetInvoiceRequest, opts ...grpc.CallOption) (*GetInvoiceResponse, error)
	ListInvoices(ctx context.Context, in *ListInvoicesRequest, opts ...grpc.CallOption) (*ListInvoicesResponse, error)
}

type posServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewPosServiceClient создаёт клиента; вызовы всегда идут с JSON-кодеком.
func NewPosServiceClient(cc grpc.ClientConnInterface) PosServiceClient {
	return &posServiceClient{cc}
}

func callOptions(opts []grpc.CallOption) []grpc.CallOption {
	return append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
}

func (c *posServiceClient) FinalizeSale(ctx context.Context, in *FinalizeSaleRequest, opts ...grpc.CallOption) (*FinalizeSaleResponse, error) {
	out := new(FinalizeSaleResponse)
	if err := c.cc.Invoke(ctx, PosService_FinalizeSale_FullMethodName, in, out, callOptions(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *posServiceClient) QuoteCart(ctx context.Context, in *QuoteCartRequest, opts ...grpc.CallOption) (*QuoteCartResponse, error) {
	out := new(QuoteCartResponse)
	if err := c.cc.Invoke(ctx, PosService_QuoteCart_FullMethodName, in, out, callOptions(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *posServiceClient) GetInvoice(ctx context.Context, in *GetInvoiceRequest, opts ...grpc.CallOption) (*GetInvoiceResponse, error) {
	out := new(GetInvoiceResponse)
	if err := c.cc.Invoke(ctx, PosService_GetInvoice_FullMethodName, in, out, callOptions(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *posServiceClient) ListInvoices(ctx context.Context, in *ListInvoicesRequest, opts ...grpc.CallOption) (*ListInvoicesResponse, error) {
	out := new(ListInvoicesResponse)
	if err := c.cc.Invoke(ctx, PosService_ListInvoices_FullMethodName, in, out, callOptions(opts)...); err != nil {
		return nil, err
	}
	return out, nil
}

// PosServiceServer — серверная часть кассового API.
type PosServiceServer interface {
	FinalizeSale(context.Context, *FinalizeSaleRequest) (*FinalizeSaleResponse, error)
	QuoteCart(context.Context, *QuoteCartRequest) (*QuoteCartResponse, error)
	GetInvoice(context.Context, *GetInvoiceRequest) (*GetInvoiceResponse, error)
	ListInvoices(context.Context, *ListInvoicesRequest) (*ListInvoicesResponse, error)
	mustEmbedUnimplementedPosServiceServer()
}

// UnimplementedPosServiceServer встраивается в реализацию для совместимости с новыми методами.
type UnimplementedPosServiceServer struct{}

func (UnimplementedPosServiceServer) FinalizeSale(context.Context, *FinalizeSaleRequest) (*FinalizeSaleResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method FinalizeSale not implemented")
}
func (UnimplementedPosServiceServer) QuoteCart(context.Context, *QuoteCartRequest) (*QuoteCartResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method QuoteCart not implemented")
}
func (UnimplementedPosServiceServer) GetInvoice(context.Context, *GetInvoiceRequest) (*GetInvoiceResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method GetInvoice not implemented")
}
func (UnimplementedPosServiceServer) ListInvoices(context.Context, *ListInvoicesRequest) (*ListInvoicesResponse, error) {
	return nil, status.Error(codes.Unimplemented, "method ListInvoices not implemented")
}
func (UnimplementedPosServiceServer) mustEmbedUnimplementedPosServiceServer() {}

// RegisterPosServiceServer регистрирует реализацию на gRPC-сервере.
func RegisterPosServiceServer(s grpc.ServiceRegistrar, srv PosServiceServer) {
	s.RegisterService(&PosService_ServiceDesc, srv)
}

func _PosService_FinalizeSale_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(FinalizeSaleRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PosServiceServer).FinalizeSale(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: PosService_FinalizeSale_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PosServiceServer).FinalizeSale(ctx, req.(*FinalizeSaleRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _PosService_QuoteCart_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(QuoteCartRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PosServiceServer).QuoteCart(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: PosService_QuoteCart_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PosServiceServer).QuoteCart(ctx, req.(*QuoteCartRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _PosService_GetInvoice_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetInvoiceRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PosServiceServer).GetInvoice(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: PosService_GetInvoice_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PosServiceServer).GetInvoice(ctx, req.(*GetInvoiceRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _PosService_ListInvoices_Handler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(ListInvoicesRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PosServiceServer).ListInvoices(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: PosService_ListInvoices_FullMethodName}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PosServiceServer).ListInvoices(ctx, req.(*ListInvoicesRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// PosService_ServiceDesc — описание сервиса pos.v1.PosService.
var PosService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: "pos.v1.PosService",
	HandlerType: (*PosServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "FinalizeSale", Handler: _PosService_FinalizeSale_Handler},
		{MethodName: "QuoteCart", Handler: _PosService_QuoteCart_Handler},
		{MethodName: "GetInvoice", Handler: _PosService_GetInvoice_Handler},
		{MethodName: "ListInvoices", Handler: _PosService_ListInvoices_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "pos/v1/pos_service.proto",
}
