// Package money provides fixed-point currency arithmetic in integer minor
// units (cents). All bill math in the core runs on Cents so that split
// amounts reconcile exactly; floating point never touches an amount owed.
package money

import (
	"fmt"
	"sort"
)

// Cents is a monetary amount in minor units (e.g. centavos).
type Cents int64

// String formats the amount as a decimal with two places, e.g. "103.60".
func (c Cents) String() string {
	sign := ""
	v := c
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// Sum adds up a slice of amounts.
func Sum(amounts []Cents) Cents {
	var total Cents
	for _, a := range amounts {
		total += a
	}
	return total
}

// SplitEven divides total into n parts that sum exactly to total.
// Every part gets the floor share; the leftover cents go one each to the
// first parts. Callers that need a deterministic assignment across payers
// must pass payers in a fixed sort order.
func SplitEven(total Cents, n int) []Cents {
	if n <= 0 {
		return nil
	}
	base := total / Cents(n)
	remainder := total - base*Cents(n)
	parts := make([]Cents, n)
	for i := range parts {
		parts[i] = base
		if Cents(i) < remainder {
			parts[i]++
		}
	}
	return parts
}

// Allocate distributes total across weights proportionally, summing exactly
// to total (largest-remainder method). Each share starts at
// floor(total*weight/weightSum); the leftover cents go to the shares with
// the largest truncated remainders, ties broken by lower index. A zero or
// negative weight sum yields all-zero shares for a zero total and an even
// split otherwise is not meaningful, so the caller must guard weightSum > 0.
func Allocate(total Cents, weights []Cents) []Cents {
	shares := make([]Cents, len(weights))
	if len(weights) == 0 {
		return shares
	}
	var weightSum Cents
	for _, w := range weights {
		weightSum += w
	}
	if weightSum <= 0 {
		return shares
	}

	type rem struct {
		index int
		frac  Cents // numerator of the truncated fraction, denominator weightSum
	}
	remainders := make([]rem, len(weights))
	var allocated Cents
	for i, w := range weights {
		num := total * w
		shares[i] = num / weightSum
		remainders[i] = rem{index: i, frac: num - shares[i]*weightSum}
		allocated += shares[i]
	}

	sort.SliceStable(remainders, func(a, b int) bool {
		return remainders[a].frac > remainders[b].frac
	})

	leftover := total - allocated
	for i := 0; leftover > 0 && i < len(remainders); i++ {
		shares[remainders[i].index]++
		leftover--
	}
	return shares
}

// Abs returns the absolute value of c.
func Abs(c Cents) Cents {
	if c < 0 {
		return -c
	}
	return c
}
