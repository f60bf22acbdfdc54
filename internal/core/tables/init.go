// Package tables registers the built-in table definitions with the core
// registry. Import it for its side effects.
package tables

import "github.com/JonMunkholm/rowstream/internal/core"

func init() {
	core.RegisterNormalizer("us_state", NormalizeUsState)

	registerVehicles()
	registerAnrokTransactions()
	registerNsCustomers()
}
