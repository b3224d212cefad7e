// Package splitter computes how an order's total divides among payers.
//
// The engine is a pure function of an immutable order snapshot and a split
// policy; it persists nothing and issues no tokens. All arithmetic runs on
// integer minor units so the shares of an accepted split sum exactly to the
// order total.
package splitter

import (
	"sort"

	"github.com/comanda-app/comanda/internal/apperr"
	"github.com/comanda-app/comanda/internal/models"
	"github.com/comanda-app/comanda/internal/money"
)

// tolerance is the accepted absolute error between a custom policy's sum
// and the order total.
const tolerance = money.Cents(1)

// Snapshot is the immutable order view the engine computes from.
type Snapshot struct {
	Lines    []models.OrderLine
	Subtotal money.Cents
	Tax      money.Cents
	Discount money.Cents
	Total    money.Cents
}

// SnapshotOf captures the split-relevant fields of an order.
func SnapshotOf(o *models.Order) Snapshot {
	lines := make([]models.OrderLine, len(o.Lines))
	copy(lines, o.Lines)
	return Snapshot{
		Lines:    lines,
		Subtotal: o.Subtotal,
		Tax:      o.Tax,
		Discount: o.Discount,
		Total:    o.Total,
	}
}

// Policy selects the split rule and its inputs.
type Policy struct {
	Kind models.SplitPolicyKind

	// PayerIDs lists the payers for Equal and ByItem.
	PayerIDs []string

	// Amounts supplies each payer's amount directly for Custom.
	Amounts map[string]money.Cents
}

// Equal splits the total evenly among the given payers.
func Equal(payerIDs []string) Policy {
	return Policy{Kind: models.SplitEqual, PayerIDs: payerIDs}
}

// ByItem attributes each line to its owner or shared set, then distributes
// tax and discount proportionally to each payer's share of the subtotal.
func ByItem(payerIDs []string) Policy {
	return Policy{Kind: models.SplitByItem, PayerIDs: payerIDs}
}

// Custom uses caller-supplied amounts, validated against the order total.
func Custom(amounts map[string]money.Cents) Policy {
	return Policy{Kind: models.SplitCustom, Amounts: amounts}
}

// Share is the amount one payer owes.
type Share struct {
	PayerID string
	Amount  money.Cents
}

// Compute returns one share per requested payer. Shares are ordered by
// payer ID so remainder assignment is deterministic.
func Compute(snap Snapshot, policy Policy) ([]Share, error) {
	switch policy.Kind {
	case models.SplitEqual:
		return computeEqual(snap, policy.PayerIDs)
	case models.SplitByItem:
		return computeByItem(snap, policy.PayerIDs)
	case models.SplitCustom:
		return computeCustom(snap, policy.Amounts)
	case models.SplitPercentage:
		// Documented limitation, not a silent fallback.
		return nil, apperr.New(apperr.CodeNotImplemented, "percentage split is not supported")
	default:
		return nil, apperr.New(apperr.CodeInvalidArgument, "unknown split policy")
	}
}

func computeEqual(snap Snapshot, payerIDs []string) ([]Share, error) {
	payers, err := sortedPayers(payerIDs)
	if err != nil {
		return nil, err
	}
	amounts := money.SplitEven(snap.Total, len(payers))
	shares := make([]Share, len(payers))
	for i, id := range payers {
		shares[i] = Share{PayerID: id, Amount: amounts[i]}
	}
	return shares, nil
}

func computeByItem(snap Snapshot, payerIDs []string) ([]Share, error) {
	payers, err := sortedPayers(payerIDs)
	if err != nil {
		return nil, err
	}
	listed := make(map[string]int, len(payers))
	for i, id := range payers {
		listed[id] = i
	}

	// Accumulate each payer's raw item cost. A line that is neither
	// individually owned nor shared with any listed payer contributes
	// nothing; callers must assign every line before finalizing a split.
	raw := make([]money.Cents, len(payers))
	for _, line := range snap.Lines {
		switch {
		case line.PayerID != "":
			if i, ok := listed[line.PayerID]; ok {
				raw[i] += line.Amount()
			}
		case len(line.SharedWith) > 0:
			sharers := make([]string, 0, len(line.SharedWith))
			for _, id := range line.SharedWith {
				if _, ok := listed[id]; ok {
					sharers = append(sharers, id)
				}
			}
			if len(sharers) == 0 {
				continue
			}
			sort.Strings(sharers)
			parts := money.SplitEven(line.Amount(), len(sharers))
			for j, id := range sharers {
				raw[listed[id]] += parts[j]
			}
		}
	}

	// Tax and discount are distributed proportionally to each payer's
	// share of the subtotal, with leftover cents assigned by largest
	// remainder so the batch still sums exactly. Allocate's denominator
	// is sum(raw), which equals the subtotal whenever every line is
	// attributed; with unattributed lines the full tax is still spread
	// over the attributed shares, and the shortfall surfaces at
	// finalization where the batch is checked against the order total.
	taxShares := money.Allocate(snap.Tax, raw)
	discountShares := money.Allocate(snap.Discount, raw)

	shares := make([]Share, len(payers))
	for i, id := range payers {
		shares[i] = Share{PayerID: id, Amount: raw[i] + taxShares[i] - discountShares[i]}
	}
	return shares, nil
}

func computeCustom(snap Snapshot, amounts map[string]money.Cents) ([]Share, error) {
	if len(amounts) == 0 {
		return nil, apperr.New(apperr.CodeInvalidArgument, "custom split requires at least one payer amount")
	}
	payers := make([]string, 0, len(amounts))
	for id := range amounts {
		payers = append(payers, id)
	}
	sort.Strings(payers)

	var sum money.Cents
	shares := make([]Share, len(payers))
	for i, id := range payers {
		if amounts[id] < 0 {
			return nil, apperr.New(apperr.CodeInvalidArgument, "payer amounts must not be negative")
		}
		shares[i] = Share{PayerID: id, Amount: amounts[id]}
		sum += amounts[id]
	}

	if money.Abs(sum-snap.Total) > tolerance {
		return nil, apperr.WithMetadata(apperr.CodeSplitMismatch,
			"supplied amounts do not sum to the order total",
			map[string]string{
				"supplied": sum.String(),
				"total":    snap.Total.String(),
			})
	}
	return shares, nil
}

func sortedPayers(payerIDs []string) ([]string, error) {
	if len(payerIDs) == 0 {
		return nil, apperr.New(apperr.CodeInvalidArgument, "split requires at least one payer")
	}
	seen := make(map[string]struct{}, len(payerIDs))
	payers := make([]string, 0, len(payerIDs))
	for _, id := range payerIDs {
		if id == "" {
			return nil, apperr.New(apperr.CodeInvalidArgument, "payer id must not be empty")
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		payers = append(payers, id)
	}
	sort.Strings(payers)
	return payers, nil
}
