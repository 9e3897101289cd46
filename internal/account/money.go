package account

import (
	"errors"
	"fmt"
	"math"
	"strconv"
)

// ErrOverflow is reported when Money arithmetic leaves the int64 range.
var ErrOverflow = errors.New("money arithmetic overflow")

// Money is an amount in minor currency units (cents).
// Arithmetic is checked: Add, Subtract and Negate panic on overflow.
type Money int64

// Zero is the neutral amount.
const Zero Money = 0

// NewMoney wraps an amount of minor units.
func NewMoney(amount int64) Money {
	return Money(amount)
}

func (m Money) Amount() int64 { return int64(m) }

// CheckedAdd returns m + o, or ErrOverflow.
func (m Money) CheckedAdd(o Money) (Money, error) {
	if (o > 0 && m > math.MaxInt64-o) || (o < 0 && m < math.MinInt64-o) {
		return 0, fmt.Errorf("%w: %d + %d", ErrOverflow, m, o)
	}
	return m + o, nil
}

// CheckedSubtract returns m - o, or ErrOverflow.
func (m Money) CheckedSubtract(o Money) (Money, error) {
	if (o < 0 && m > math.MaxInt64+o) || (o > 0 && m < math.MinInt64+o) {
		return 0, fmt.Errorf("%w: %d - %d", ErrOverflow, m, o)
	}
	return m - o, nil
}

func (m Money) Add(o Money) Money {
	sum, err := m.CheckedAdd(o)
	if err != nil {
		panic(err)
	}
	return sum
}

func (m Money) Subtract(o Money) Money {
	diff, err := m.CheckedSubtract(o)
	if err != nil {
		panic(err)
	}
	return diff
}

// Negate is Zero.Subtract(m).
func (m Money) Negate() Money {
	return Zero.Subtract(m)
}

// Cmp returns -1, 0 or +1.
func (m Money) Cmp(o Money) int {
	switch {
	case m < o:
		return -1
	case m > o:
		return 1
	default:
		return 0
	}
}

func (m Money) Equal(o Money) bool       { return m == o }
func (m Money) LessThan(o Money) bool    { return m < o }
func (m Money) GreaterThan(o Money) bool { return m > o }

func (m Money) IsPositive() bool       { return m > 0 }
func (m Money) IsNegative() bool       { return !m.IsPositiveOrZero() }
func (m Money) IsPositiveOrZero() bool { return m >= 0 }

func (m Money) String() string {
	return strconv.FormatInt(int64(m), 10)
}
