//revive:disable-next-line:var-naming // legacy package name widely used across the project
package model

// LedgerEntryType separates money in from money out.
type LedgerEntryType string

const (
	LedgerIncome  LedgerEntryType = "pemasukan"
	LedgerExpense LedgerEntryType = "pengeluaran"
)

// MonthlyTotals is one row of the finance dashboard. Amounts are in the ledger's minor unit.
type MonthlyTotals struct {
	Month   string `json:"month"` // YYYY-MM
	Income  int64  `json:"income"`
	Expense int64  `json:"expense"`
}

// Balance returns income minus expense.
func (m MonthlyTotals) Balance() int64 { return m.Income - m.Expense }

// LedgerSummary aggregates ledger entries by month, oldest month first.
type LedgerSummary struct {
	Months  []MonthlyTotals `json:"months"`
	Income  int64           `json:"income"`
	Expense int64           `json:"expense"`
	Skipped int             `json:"skipped"`
}
