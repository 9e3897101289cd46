package rpc

import (
	"context"
	"strconv"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/example/account-ledger/internal/account"
)

// Client calls AccountService with an optional bearer token.
type Client struct {
	cc    grpc.ClientConnInterface
	token string
}

func NewClient(cc grpc.ClientConnInterface, token string) *Client {
	return &Client{cc: cc, token: token}
}

func (c *Client) outgoing(ctx context.Context) context.Context {
	if c.token == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+c.token)
}

// SendMoney sends amounts and ids as decimal strings so that values beyond
// float precision survive the Struct encoding.
func (c *Client) SendMoney(ctx context.Context, source, target account.AccountID, money account.Money, opts ...grpc.CallOption) (bool, error) {
	in := &structpb.Struct{Fields: map[string]*structpb.Value{
		"source_account_id": structpb.NewStringValue(strconv.FormatUint(uint64(source), 10)),
		"target_account_id": structpb.NewStringValue(strconv.FormatUint(uint64(target), 10)),
		"amount":            structpb.NewStringValue(strconv.FormatInt(money.Amount(), 10)),
	}}
	out := new(wrapperspb.BoolValue)
	if err := c.cc.Invoke(c.outgoing(ctx), MethodSendMoney, in, out, opts...); err != nil {
		return false, err
	}
	return out.GetValue(), nil
}

func (c *Client) GetBalance(ctx context.Context, id account.AccountID, opts ...grpc.CallOption) (account.Money, error) {
	out := new(wrapperspb.Int64Value)
	if err := c.cc.Invoke(c.outgoing(ctx), MethodGetBalance, wrapperspb.UInt64(uint64(id)), out, opts...); err != nil {
		return account.Zero, err
	}
	return account.NewMoney(out.GetValue()), nil
}

func (c *Client) CreateAccount(ctx context.Context, opts ...grpc.CallOption) (account.AccountID, error) {
	out := new(wrapperspb.UInt64Value)
	if err := c.cc.Invoke(c.outgoing(ctx), MethodCreateAccount, &emptypb.Empty{}, out, opts...); err != nil {
		return 0, err
	}
	return account.AccountID(out.GetValue()), nil
}
