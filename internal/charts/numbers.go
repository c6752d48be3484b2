package charts

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"
)

const (
	textNaN              = "NaN"
	textInfinity         = "Infinity"
	textNegativeInfinity = "-Infinity"

	whitespaceCharacters = " \t\n\r\f\v\u00a0\ufeff"

	exponentUpperBound = 1e21
	exponentLowerBound = 1e-6
)

// TooltipPercentage returns the rounded share of values[index] in the sum of
// values. A missing, zero or NaN entry counts as 0. NaN and infinite results
// are returned unmodified.
func TooltipPercentage(values []float64, index int) float64 {
	value := tooltipValue(values, index)
	total := floats.Sum(values)
	return RoundHalfUp(value / total * 100)
}

// TooltipLabel formats the doughnut tooltip line "<label>: <value> (<pct>%)".
func TooltipLabel(label string, values []float64, index int) string {
	value := tooltipValue(values, index)
	return fmt.Sprintf("%s: %s (%s%%)", label, FormatNumber(value), FormatNumber(TooltipPercentage(values, index)))
}

func tooltipValue(values []float64, index int) float64 {
	if index < 0 || index >= len(values) {
		return 0
	}
	value := values[index]
	if math.IsNaN(value) {
		return 0
	}
	return value
}

// RoundHalfUp rounds to the nearest integer with ties toward positive infinity.
func RoundHalfUp(value float64) float64 {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return value
	}
	rounded := math.Floor(value)
	if value-rounded >= 0.5 {
		rounded++
	}
	return rounded
}

// FormatNumber renders value the way a browser prints a number: integers
// without a fraction, NaN and Infinity spelled out, exponents for very large
// and very small magnitudes.
func FormatNumber(value float64) string {
	switch {
	case math.IsNaN(value):
		return textNaN
	case math.IsInf(value, 1):
		return textInfinity
	case math.IsInf(value, -1):
		return textNegativeInfinity
	case value == 0:
		return "0"
	}
	magnitude := math.Abs(value)
	if magnitude >= exponentUpperBound || magnitude < exponentLowerBound {
		formatted := strconv.FormatFloat(value, 'e', -1, 64)
		mantissa, exponent, _ := strings.Cut(formatted, "e")
		sign := exponent[:1]
		digits := strings.TrimLeft(exponent[1:], "0")
		return mantissa + "e" + sign + digits
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}

// NumberFromText converts text the way a browser's Number() does: surrounding
// whitespace is ignored, empty text is 0 and anything that is not a whole
// decimal literal is NaN.
func NumberFromText(text string) float64 {
	trimmed := strings.Trim(text, whitespaceCharacters)
	if trimmed == "" {
		return 0
	}
	if decimalPrefix(trimmed) != trimmed {
		return math.NaN()
	}
	return ParseFloatPrefix(trimmed)
}

// ParseFloatPrefix parses the longest leading decimal literal of text after
// leading whitespace, returning NaN when there is none.
func ParseFloatPrefix(text string) float64 {
	trimmed := strings.TrimLeft(text, whitespaceCharacters)
	prefix := decimalPrefix(trimmed)
	if prefix == "" {
		return math.NaN()
	}
	switch strings.TrimLeft(prefix, "+-") {
	case textInfinity:
		if strings.HasPrefix(prefix, "-") {
			return math.Inf(-1)
		}
		return math.Inf(1)
	}
	parsed, parseErr := strconv.ParseFloat(prefix, 64)
	if parseErr != nil {
		// Out-of-range literals still carry the right sign and magnitude.
		if errors.Is(parseErr, strconv.ErrRange) {
			return parsed
		}
		return math.NaN()
	}
	return parsed
}

func decimalPrefix(text string) string {
	position := 0
	if position < len(text) && (text[position] == '+' || text[position] == '-') {
		position++
	}
	if strings.HasPrefix(text[position:], textInfinity) {
		return text[:position+len(textInfinity)]
	}

	integerDigits := countDigits(text[position:])
	position += integerDigits
	fractionDigits := 0
	if position < len(text) && text[position] == '.' {
		fractionDigits = countDigits(text[position+1:])
		if integerDigits > 0 || fractionDigits > 0 {
			position += 1 + fractionDigits
		}
	}
	if integerDigits == 0 && fractionDigits == 0 {
		return ""
	}

	if position < len(text) && (text[position] == 'e' || text[position] == 'E') {
		exponentStart := position + 1
		if exponentStart < len(text) && (text[exponentStart] == '+' || text[exponentStart] == '-') {
			exponentStart++
		}
		if exponentDigits := countDigits(text[exponentStart:]); exponentDigits > 0 {
			position = exponentStart + exponentDigits
		}
	}
	return text[:position]
}

func countDigits(text string) int {
	count := 0
	for count < len(text) && text[count] >= '0' && text[count] <= '9' {
		count++
	}
	return count
}
