package models

import "fmt"

// FormatCHF renders a rappen amount as "CHF 123.45".
func FormatCHF(rappen int64) string {
	sign := ""
	if rappen < 0 {
		sign = "-"
		rappen = -rappen
	}
	return fmt.Sprintf("%s %s%d.%02d", Currency, sign, rappen/100, rappen%100)
}
