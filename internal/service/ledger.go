package service

import (
	"sort"

	"github.com/ivanoskov/fincontrol/internal/model"
	"github.com/shopspring/decimal"
)

// balanceDeltas maps account ids to the signed change a transaction makes to
// their stored balance. Only paid transactions move balances; card purchases
// never touch an account until the invoice is paid.
type balanceDeltas map[string]decimal.Decimal

func (d balanceDeltas) add(accountID string, amount decimal.Decimal) {
	if accountID == "" {
		return
	}
	d[accountID] = d[accountID].Add(amount)
}

// accountIDs returns the touched accounts in a stable order so concurrent
// writers always lock them in the same sequence.
func (d balanceDeltas) accountIDs() []string {
	ids := make([]string, 0, len(d))
	for id, delta := range d {
		if !delta.IsZero() {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// effectOf returns the balance effect of t when it is paid. Income-typed
// transactions credit their account; everything else debits it.
func effectOf(t model.Transaction, categories model.CategoryIndex) balanceDeltas {
	deltas := balanceDeltas{}
	if !t.IsPaid() {
		return deltas
	}
	if t.IsTransfer {
		deltas.add(t.AccountID, t.Amount.Neg())
		deltas.add(t.TransferToAccountID, t.Amount)
		return deltas
	}
	if t.AccountID == "" {
		return deltas
	}
	if categories.TypeOf(t) == model.CategoryIncome {
		deltas.add(t.AccountID, t.Amount)
	} else {
		deltas.add(t.AccountID, t.Amount.Neg())
	}
	return deltas
}

// transitionDeltas is the net balance change of replacing before with after.
func transitionDeltas(before, after model.Transaction, categories model.CategoryIndex) balanceDeltas {
	deltas := balanceDeltas{}
	for id, v := range effectOf(before, categories) {
		deltas.add(id, v.Neg())
	}
	for id, v := range effectOf(after, categories) {
		deltas.add(id, v)
	}
	return deltas
}

// installmentChain expands base into n installments. The first keeps the
// caller's status; the rest are pending and dated on successive months.
// Parent ids are filled in by the caller once the first row is stored.
func installmentChain(base model.Transaction, n int) []model.Transaction {
	chain := make([]model.Transaction, 0, n)
	for i := 1; i <= n; i++ {
		t := base
		t.ID = ""
		t.InstallmentNumber = i
		t.TotalInstallments = n
		t.ParentTransactionID = ""
		if i > 1 {
			t.Date = base.Date.AddMonths(i - 1)
			t.Status = model.StatusPending
		}
		chain = append(chain, t)
	}
	return chain
}
