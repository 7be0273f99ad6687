package handler

import (
	"context"

	"google.golang.org/grpc"
)

const serviceName = "vending.v1.VendingMachine"

// VendingMachineServer is the server side of vending.v1.VendingMachine.
type VendingMachineServer interface {
	InsertCoin(context.Context, *InsertCoinRequest) (*InsertCoinResponse, error)
	SelectItem(context.Context, *SelectItemRequest) (*SelectItemResponse, error)
	Purchase(context.Context, *PurchaseRequest) (*PurchaseResponse, error)
	Refund(context.Context, *Empty) (*RefundResponse, error)
	Reset(context.Context, *Empty) (*ResetResponse, error)
	GetStatus(context.Context, *Empty) (*StatusResponse, error)
	ListItems(context.Context, *Empty) (*ItemsResponse, error)
	GetHistory(context.Context, *HistoryRequest) (*HistoryResponse, error)
}

func unary[Req, Resp any](name string, call func(VendingMachineServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	fullMethod := "/" + serviceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(VendingMachineServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(VendingMachineServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var vendingMachineServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*VendingMachineServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("InsertCoin", VendingMachineServer.InsertCoin),
		unary("SelectItem", VendingMachineServer.SelectItem),
		unary("Purchase", VendingMachineServer.Purchase),
		unary("Refund", VendingMachineServer.Refund),
		unary("Reset", VendingMachineServer.Reset),
		unary("GetStatus", VendingMachineServer.GetStatus),
		unary("ListItems", VendingMachineServer.ListItems),
		unary("GetHistory", VendingMachineServer.GetHistory),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "vending/v1/vending.proto",
}

func RegisterVendingMachineServer(s grpc.ServiceRegistrar, srv VendingMachineServer) {
	s.RegisterService(&vendingMachineServiceDesc, srv)
}

// VendingMachineClient calls vending.v1.VendingMachine using the JSON codec.
type VendingMachineClient struct {
	cc grpc.ClientConnInterface
}

func NewVendingMachineClient(cc grpc.ClientConnInterface) *VendingMachineClient {
	return &VendingMachineClient{cc: cc}
}

func invoke[Resp any](ctx context.Context, cc grpc.ClientConnInterface, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := cc.Invoke(ctx, "/"+serviceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *VendingMachineClient) InsertCoin(ctx context.Context, in *InsertCoinRequest, opts ...grpc.CallOption) (*InsertCoinResponse, error) {
	return invoke[InsertCoinResponse](ctx, c.cc, "InsertCoin", in, opts)
}

func (c *VendingMachineClient) SelectItem(ctx context.Context, in *SelectItemRequest, opts ...grpc.CallOption) (*SelectItemResponse, error) {
	return invoke[SelectItemResponse](ctx, c.cc, "SelectItem", in, opts)
}

func (c *VendingMachineClient) Purchase(ctx context.Context, in *PurchaseRequest, opts ...grpc.CallOption) (*PurchaseResponse, error) {
	return invoke[PurchaseResponse](ctx, c.cc, "Purchase", in, opts)
}

func (c *VendingMachineClient) Refund(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*RefundResponse, error) {
	return invoke[RefundResponse](ctx, c.cc, "Refund", in, opts)
}

func (c *VendingMachineClient) Reset(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*ResetResponse, error) {
	return invoke[ResetResponse](ctx, c.cc, "Reset", in, opts)
}

func (c *VendingMachineClient) GetStatus(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*StatusResponse, error) {
	return invoke[StatusResponse](ctx, c.cc, "GetStatus", in, opts)
}

func (c *VendingMachineClient) ListItems(ctx context.Context, in *Empty, opts ...grpc.CallOption) (*ItemsResponse, error) {
	return invoke[ItemsResponse](ctx, c.cc, "ListItems", in, opts)
}

func (c *VendingMachineClient) GetHistory(ctx context.Context, in *HistoryRequest, opts ...grpc.CallOption) (*HistoryResponse, error) {
	return invoke[HistoryResponse](ctx, c.cc, "GetHistory", in, opts)
}
