package money

import (
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var idPrinter = message.NewPrinter(language.Indonesian)

// FormatIDR renders whole rupiah with Indonesian grouping, e.g. "IDR 70.000".
func FormatIDR(amount int64) string {
	return "IDR " + idPrinter.Sprintf("%d", amount)
}
