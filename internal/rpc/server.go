package rpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/example/account-ledger/internal/account"
	"github.com/example/account-ledger/internal/sendmoney"
)

type TransferService interface {
	SendMoney(ctx context.Context, cmd sendmoney.SendMoneyCommand) (bool, error)
	GetAccountBalance(ctx context.Context, id account.AccountID) (account.Money, error)
}

type AccountCreator interface {
	CreateAccount(ctx context.Context) (account.AccountID, error)
}

// Server adapts the send-money use case to AccountServiceServer.
type Server struct {
	transfers TransferService
	accounts  AccountCreator
	logger    *slog.Logger
}

var _ AccountServiceServer = (*Server)(nil)

func NewServer(transfers TransferService, accounts AccountCreator, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{transfers: transfers, accounts: accounts, logger: logger}
}

func (s *Server) SendMoney(ctx context.Context, req *structpb.Struct) (*wrapperspb.BoolValue, error) {
	source, err := uintField(req, "source_account_id")
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	target, err := uintField(req, "target_account_id")
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	amount, err := intField(req, "amount")
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	cmd, err := sendmoney.NewSendMoneyCommand(account.AccountID(source), account.AccountID(target), account.NewMoney(amount))
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	ok, err := s.transfers.SendMoney(ctx, cmd)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return wrapperspb.Bool(ok), nil
}

func (s *Server) GetBalance(ctx context.Context, req *wrapperspb.UInt64Value) (*wrapperspb.Int64Value, error) {
	balance, err := s.transfers.GetAccountBalance(ctx, account.AccountID(req.GetValue()))
	if err != nil {
		return nil, s.toStatus(err)
	}
	return wrapperspb.Int64(balance.Amount()), nil
}

func (s *Server) CreateAccount(ctx context.Context, _ *emptypb.Empty) (*wrapperspb.UInt64Value, error) {
	if s.accounts == nil {
		return nil, status.Error(codes.Unimplemented, "account creation is not enabled")
	}
	id, err := s.accounts.CreateAccount(ctx)
	if err != nil {
		return nil, s.toStatus(err)
	}
	return wrapperspb.UInt64(uint64(id)), nil
}

func (s *Server) toStatus(err error) error {
	switch {
	case errors.Is(err, account.ErrAccountNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, sendmoney.ErrThresholdExceeded):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	default:
		s.logger.Error("grpc_request_failed", "error", err)
		return status.Error(codes.Internal, "internal error")
	}
}

// maxExactFloat is the largest integer a JSON/Struct number carries exactly.
const maxExactFloat = 1 << 53

// uintField reads an unsigned integer given either as a number or, for values
// beyond float precision, as a decimal string.
func uintField(s *structpb.Struct, name string) (uint64, error) {
	v, ok := s.GetFields()[name]
	if !ok {
		return 0, fmt.Errorf("%s is required", name)
	}
	switch k := v.GetKind().(type) {
	case *structpb.Value_NumberValue:
		f := k.NumberValue
		if f < 0 || f > maxExactFloat || f != math.Trunc(f) {
			return 0, fmt.Errorf("%s must be a non-negative integer", name)
		}
		return uint64(f), nil
	case *structpb.Value_StringValue:
		n, err := strconv.ParseUint(k.StringValue, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%s must be a non-negative integer", name)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("%s must be a number", name)
	}
}

func intField(s *structpb.Struct, name string) (int64, error) {
	v, ok := s.GetFields()[name]
	if !ok {
		return 0, fmt.Errorf("%s is required", name)
	}
	switch k := v.GetKind().(type) {
	case *structpb.Value_NumberValue:
		f := k.NumberValue
		if math.Abs(f) > maxExactFloat || f != math.Trunc(f) {
			return 0, fmt.Errorf("%s must be an integer", name)
		}
		return int64(f), nil
	case *structpb.Value_StringValue:
		n, err := strconv.ParseInt(k.StringValue, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%s must be an integer", name)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("%s must be a number", name)
	}
}
