package sendmoney

import (
	"errors"

	"github.com/example/account-ledger/internal/account"
)

var (
	ErrNonPositiveAmount = errors.New("amount must be positive")
	ErrSelfTransfer      = errors.New("source and target account must be different")
)

// SendMoneyCommand is a validated request to move money between two accounts.
type SendMoneyCommand struct {
	source account.AccountID
	target account.AccountID
	money  account.Money
}

func NewSendMoneyCommand(source, target account.AccountID, money account.Money) (SendMoneyCommand, error) {
	if !money.IsPositive() {
		return SendMoneyCommand{}, ErrNonPositiveAmount
	}
	if source == target {
		return SendMoneyCommand{}, ErrSelfTransfer
	}
	return SendMoneyCommand{source: source, target: target, money: money}, nil
}

func (c SendMoneyCommand) SourceAccountID() account.AccountID { return c.source }
func (c SendMoneyCommand) TargetAccountID() account.AccountID { return c.target }
func (c SendMoneyCommand) Money() account.Money               { return c.money }
