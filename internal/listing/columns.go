package listing

import (
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/po-console/internal/money"
)

// AmountColumn renders an amount with its currency symbol and sorts
// numerically.
func AmountColumn[T any](key, header string, amount func(T) decimal.Decimal, currency func(T) string) Column[T] {
	return Column[T]{
		Key:    key,
		Header: header,
		Value: func(row T) string {
			return money.Format(amount(row), currency(row))
		},
		Less: func(a, b T) bool {
			return amount(a).LessThan(amount(b))
		},
	}
}

// TextColumn renders a plain text field.
func TextColumn[T any](key, header string, value func(T) string, searchable bool) Column[T] {
	return Column[T]{Key: key, Header: header, Value: value, Search: searchable}
}
