// Package numeric проверяет числа, пришедшие в JSON как float64.
package numeric

import "math"

// maxExact наибольшее целое, точно представимое в float64.
const maxExact = 1 << 53

// WholeNumber возвращает v как int64, если это конечное целое число
// в диапазоне точного представления float64.
func WholeNumber(v float64) (int64, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	if v != math.Trunc(v) || math.Abs(v) > maxExact {
		return 0, false
	}
	return int64(v), true
}
