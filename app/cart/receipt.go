package cart

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var printer = message.NewPrinter(language.English)

// FormatAmount renders a total with two decimals and thousands grouping.
func FormatAmount(amount float64) string {
	return printer.Sprint(number.Decimal(amount, number.Scale(2)))
}
