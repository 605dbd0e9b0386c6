package contracts

import (
	"fmt"

	"github.com/dataguild/contractguard/pkg/govtypes"
)

// Validate enforces §3.1's true structural malformation invariants —
// the ones no amount of policy evaluation can meaningfully report a
// finding against, because the contract doesn't even describe a
// coherent shape: duplicate field names and subscriptions referencing
// fields that don't exist. Governance questions like
// classification-implies-retention (SD002) and PII-implies-encryption
// (SD001) are left to the rule evaluator to report as findings (§4.2,
// §8.2 S1) rather than rejected here, since a contract missing
// encryption on a PII field is exactly the kind of thing the policy
// engine exists to catch and report, not a malformed contract.
func (c *Contract) Validate() error {
	seen := make(map[string]bool, len(c.Schema))
	for _, f := range c.Schema {
		if seen[f.Name] {
			return govtypes.NewError(govtypes.KindInvalidContract, c.Identity.Dataset, c.Identity.Version,
				fmt.Sprintf("duplicate field name %q", f.Name), nil)
		}
		seen[f.Name] = true
	}

	for _, sub := range c.Subscriptions {
		for _, name := range sub.ApprovedFields {
			if _, ok := c.FieldByName(name); !ok {
				return govtypes.NewError(govtypes.KindInvalidContract, c.Identity.Dataset, c.Identity.Version,
					fmt.Sprintf("subscription %q references unknown field %q", sub.ConsumerID, name), nil)
			}
		}
	}

	return nil
}
