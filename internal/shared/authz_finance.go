package shared

// Finance permissions. Gates name the missing permission verbatim when they
// reject, so these strings are part of the error contract.
const (
	PermFinanceLedgerPost  = "finance:ledger.post"
	PermFinanceReportsView = "finance:reports.view"
	PermFinancePeriodClose = "finance:period.close"
	PermFinanceTaxExport   = "finance:tax.export"
	PermFinanceAttest      = "finance:attest"
)

// FinanceScopes lists all permissions related to the finance core.
func FinanceScopes() []string {
	return []string{
		PermFinanceLedgerPost,
		PermFinanceReportsView,
		PermFinancePeriodClose,
		PermFinanceTaxExport,
		PermFinanceAttest,
	}
}

// HasPermission reports whether the granted set contains the permission.
func HasPermission(granted []string, perm string) bool {
	for _, g := range granted {
		if g == perm {
			return true
		}
	}
	return false
}
