/*
impact.go - Signed balance impact of transactions and of edits to them

PURPOSE:

	Pure, stateless decimal arithmetic. Given the fields of a transaction,
	compute the signed amount it adds to or subtracts from an account, and
	given the old and new fields of an edited transaction, compute the
	per-account adjustments that move balances from one to the other.

FORMULAS:

	income                      +amount - fee
	expense                     -(amount + fee)
	transfer, source account    -(amount + fee)
	transfer, destination       +amount          (fee only hits the source)

EDIT SHAPES:

	transfer     -> transfer      amount, fee, destination may each change;
	                              a new destination is "remove old leg, add new leg"
	transfer     -> non-transfer  reverse both legs, apply new impact to source
	non-transfer -> transfer      reverse source impact, apply both new legs
	non-transfer -> non-transfer  single delta on the source account

	Deletion reverses Effects of the last stored values.
*/
package ledger

import "github.com/shopspring/decimal"

// Values are the fields of a transaction that drive balance math.
type Values struct {
	Type        TxType
	Amount      decimal.Decimal
	Fee         decimal.Decimal
	Account     AccountID
	Destination *AccountID
}

// Adjustment is a signed change to one account's balance.
type Adjustment struct {
	AccountID AccountID
	Delta     decimal.Decimal
}

// Impact returns the signed effect of v on the given account.
// Accounts the transaction does not touch get zero.
func Impact(v Values, account AccountID) decimal.Decimal {
	impact := decimal.Zero
	if account == v.Account {
		impact = impact.Add(sourceImpact(v))
	}
	if v.Type == TxTransfer && v.Destination != nil && *v.Destination == account {
		impact = impact.Add(v.Amount)
	}
	return impact
}

func sourceImpact(v Values) decimal.Decimal {
	switch v.Type {
	case TxIncome:
		return v.Amount.Sub(v.Fee)
	case TxExpense, TxTransfer:
		return v.Amount.Add(v.Fee).Neg()
	}
	return decimal.Zero
}

// Effects returns one adjustment per leg: the source account and, for a
// transfer, the destination.
func Effects(v Values) []Adjustment {
	effects := []Adjustment{{AccountID: v.Account, Delta: sourceImpact(v)}}
	if v.Type == TxTransfer && v.Destination != nil {
		effects = append(effects, Adjustment{AccountID: *v.Destination, Delta: v.Amount})
	}
	return effects
}

// Reverse negates every adjustment.
func Reverse(adjs []Adjustment) []Adjustment {
	out := make([]Adjustment, len(adjs))
	for i, a := range adjs {
		out[i] = Adjustment{AccountID: a.AccountID, Delta: a.Delta.Neg()}
	}
	return out
}

// EditAdjustments returns the balance changes that take every touched
// account from the impact of before to the impact of after. The result is
// merged per account, in first-touched order, with zero deltas dropped.
func EditAdjustments(before, after Values) []Adjustment {
	var adjs []Adjustment

	switch {
	case before.Type == TxTransfer && after.Type == TxTransfer:
		adjs = append(adjs,
			Adjustment{AccountID: before.Account, Delta: sourceImpact(before).Neg()},
			Adjustment{AccountID: after.Account, Delta: sourceImpact(after)},
		)
		if sameAccount(before.Destination, after.Destination) {
			if after.Destination != nil {
				adjs = append(adjs, Adjustment{AccountID: *after.Destination, Delta: after.Amount.Sub(before.Amount)})
			}
		} else {
			if before.Destination != nil {
				adjs = append(adjs, Adjustment{AccountID: *before.Destination, Delta: before.Amount.Neg()})
			}
			if after.Destination != nil {
				adjs = append(adjs, Adjustment{AccountID: *after.Destination, Delta: after.Amount})
			}
		}

	case before.Type == TxTransfer:
		adjs = append(adjs, Reverse(Effects(before))...)
		adjs = append(adjs, Adjustment{AccountID: after.Account, Delta: sourceImpact(after)})

	case after.Type == TxTransfer:
		adjs = append(adjs, Adjustment{AccountID: before.Account, Delta: sourceImpact(before).Neg()})
		adjs = append(adjs, Effects(after)...)

	default:
		if before.Account == after.Account {
			adjs = append(adjs, Adjustment{AccountID: after.Account, Delta: sourceImpact(after).Sub(sourceImpact(before))})
		} else {
			adjs = append(adjs,
				Adjustment{AccountID: before.Account, Delta: sourceImpact(before).Neg()},
				Adjustment{AccountID: after.Account, Delta: sourceImpact(after)},
			)
		}
	}

	return Merge(adjs)
}

// Merge sums adjustments per account, keeping first-seen order and
// dropping accounts whose net change is zero.
func Merge(adjs []Adjustment) []Adjustment {
	index := make(map[AccountID]int, len(adjs))
	var merged []Adjustment
	for _, a := range adjs {
		if i, ok := index[a.AccountID]; ok {
			merged[i].Delta = merged[i].Delta.Add(a.Delta)
			continue
		}
		index[a.AccountID] = len(merged)
		merged = append(merged, a)
	}

	out := merged[:0]
	for _, a := range merged {
		if !a.Delta.IsZero() {
			out = append(out, a)
		}
	}
	return out
}

// SumImpact adds the impact of every transaction on the given account.
func SumImpact(txs []Transaction, account AccountID) decimal.Decimal {
	total := decimal.Zero
	for _, tx := range txs {
		total = total.Add(Impact(tx.Values(), account))
	}
	return total
}

func sameAccount(a, b *AccountID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
