package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestLineAmountRoundsToTwoPlaces(t *testing.T) {
	require.Equal(t, "500.00", Fixed(LineAmount(d("50"), d("10"))))
	require.Equal(t, "100.00", Fixed(LineAmount(d("20"), d("5"))))
	require.Equal(t, "3.70", Fixed(LineAmount(d("1.234"), d("3"))))
	require.Equal(t, "0.01", Fixed(LineAmount(d("0.005"), d("1"))))
}

func TestSum(t *testing.T) {
	require.Equal(t, "600.00", Fixed(Sum(d("500.00"), d("100.00"))))
	require.True(t, Sum().IsZero())
}

func TestParse(t *testing.T) {
	v, err := Parse(" 1,500.25 ")
	require.NoError(t, err)
	require.Equal(t, "1500.25", Fixed(v))

	v, err = Parse("")
	require.NoError(t, err)
	require.True(t, v.IsZero())

	_, err = Parse("12abc")
	require.Error(t, err)
}

func TestFormat(t *testing.T) {
	require.Equal(t, "$1,000.00", Format(d("1000"), "USD"))
	require.Equal(t, "€2,500.50", Format(d("2500.5"), "eur"))
	require.Equal(t, "-$12.30", Format(d("-12.3"), "USD"))
	require.Equal(t, "CHF 10.00", Format(d("10"), "CHF"))
}

func TestFormatPlain(t *testing.T) {
	require.Equal(t, "$1000.00", FormatPlain(d("1000"), "USD"))
	require.Equal(t, "₹2500.00", FormatPlain(d("2500"), "INR"))
}
