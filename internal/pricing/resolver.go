// Package pricing resolves a financed amount to a leasing coefficient and
// monthly payment through a leaser's ordered range table.
package pricing

import (
	"errors"
	"sort"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

var (
	ErrOutOfRange      = errors.New("amount_out_of_range")
	ErrInvalidRangeSet = errors.New("invalid_range_set")
	ErrEmptyRangeSet   = errors.New("empty_range_set")
)

// Range maps an inclusive amount span to a pricing coefficient expressed as
// a percentage of the financed amount.
type Range struct {
	Min         decimal.Decimal
	Max         decimal.Decimal
	Coefficient decimal.Decimal
}

// RangeSet is an immutable snapshot of one leaser's range table, ordered by Min.
type RangeSet struct {
	LeaserID snowflake.ID
	Ranges   []Range
}

// Quote is the result of resolving an amount against a range set.
type Quote struct {
	Coefficient    decimal.Decimal
	MonthlyPayment decimal.Decimal
}

// minorUnitStep is the smallest representable amount difference. Adjacent
// ranges may be at most one step apart, otherwise the set has a gap.
var minorUnitStep = decimal.New(1, -2)

var hundred = decimal.NewFromInt(100)

// Validate checks the structural invariants of a range set: sorted by Min,
// Min <= Max per range, no overlap, and no gap wider than one minor unit
// between adjacent ranges.
func Validate(set RangeSet) error {
	if len(set.Ranges) == 0 {
		return ErrEmptyRangeSet
	}
	for i, r := range set.Ranges {
		if r.Min.GreaterThan(r.Max) {
			return ErrInvalidRangeSet
		}
		if r.Coefficient.Sign() <= 0 {
			return ErrInvalidRangeSet
		}
		if i == 0 {
			continue
		}
		prev := set.Ranges[i-1]
		if !r.Min.GreaterThan(prev.Max) {
			return ErrInvalidRangeSet
		}
		if r.Min.Sub(prev.Max).GreaterThan(minorUnitStep) {
			return ErrInvalidRangeSet
		}
	}
	return nil
}

// Resolve finds the unique range containing amount and computes the monthly
// payment, rounded to the minor unit with round-half-to-even.
//
// Range invariants are enforced when a table is edited, not here; Resolve
// still re-checks them so a stale or hand-built set fails loudly instead of
// producing a wrong quote.
func Resolve(set RangeSet, amount decimal.Decimal) (Quote, error) {
	if err := Validate(set); err != nil {
		return Quote{}, err
	}

	ranges := set.Ranges
	if amount.LessThan(ranges[0].Min) || amount.GreaterThan(ranges[len(ranges)-1].Max) {
		return Quote{}, ErrOutOfRange
	}

	idx := sort.Search(len(ranges), func(i int) bool {
		return ranges[i].Max.GreaterThanOrEqual(amount)
	})
	if idx == len(ranges) || amount.LessThan(ranges[idx].Min) {
		return Quote{}, ErrOutOfRange
	}

	coeff := ranges[idx].Coefficient
	monthly := amount.Mul(coeff).Div(hundred).RoundBank(2)

	return Quote{Coefficient: coeff, MonthlyPayment: monthly}, nil
}
