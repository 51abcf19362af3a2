package money

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// symbols is a static lookup; the console never converts between currencies.
var symbols = map[string]string{
	"USD": "$",
	"EUR": "€",
	"GBP": "£",
	"INR": "₹",
	"JPY": "¥",
	"CNY": "¥",
	"AUD": "A$",
	"CAD": "C$",
	"SGD": "S$",
	"NZD": "NZ$",
	"HKD": "HK$",
	"AED": "د.إ",
	"SAR": "﷼",
	"CHF": "CHF ",
	"ZAR": "R",
	"MYR": "RM",
	"IDR": "Rp",
	"PHP": "₱",
	"THB": "฿",
	"KRW": "₩",
	"BRL": "R$",
	"MXN": "MX$",
	"SEK": "kr",
	"NOK": "kr",
	"DKK": "kr",
	"LKR": "Rs",
	"PKR": "₨",
	"BDT": "৳",
}

var printer = message.NewPrinter(language.English)

// Symbol returns the display symbol for an ISO code, falling back to the
// code itself followed by a space.
func Symbol(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if sym, ok := symbols[code]; ok {
		return sym
	}
	if code == "" {
		return ""
	}
	return code + " "
}

// KnownCurrency reports whether code is in the symbol table.
func KnownCurrency(code string) bool {
	_, ok := symbols[strings.ToUpper(strings.TrimSpace(code))]
	return ok
}

// Format renders amount with its currency symbol and grouped digits,
// e.g. "$1,000.00".
func Format(amount decimal.Decimal, code string) string {
	sign := ""
	if amount.IsNegative() {
		sign = "-"
		amount = amount.Neg()
	}
	grouped := printer.Sprint(number.Decimal(amount.Round(2).InexactFloat64(), number.Scale(2)))
	return sign + Symbol(code) + grouped
}

// FormatPlain renders amount with its symbol and two decimals but no
// grouping, e.g. "$1000.00". Validation messages use it.
func FormatPlain(amount decimal.Decimal, code string) string {
	sign := ""
	if amount.IsNegative() {
		sign = "-"
		amount = amount.Neg()
	}
	return sign + Symbol(code) + Fixed(amount.Round(2))
}
