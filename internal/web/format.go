package web

import (
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// FormatTL renders a price the Turkish way: 2000000 → "2.000.000 TL".
func FormatTL(v float64) string {
	p := message.NewPrinter(language.Turkish)
	return p.Sprintf("%d TL", int64(math.Round(v)))
}
