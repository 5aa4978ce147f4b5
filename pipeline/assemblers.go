package pipeline

import (
	"github.com/extreme-creations/formie/integration"
	"github.com/extreme-creations/formie/mapping"
)

// CategoryAssembler shapes the resolved map per integration category.
//
// Webhook integrations receive the resolved map as-is. Email-marketing
// integrations wrap it in a subscribe envelope carrying the target list.
// CRM integrations nest the mapped fields under a record key so object
// metadata can sit alongside them.
func CategoryAssembler(cfg integration.Config, resolved *mapping.OrderedMap) *mapping.OrderedMap {
	switch cfg.Category {
	case integration.CategoryEmailMarketing:
		out := mapping.NewOrderedMap()
		out.Set("listId", cfg.ListID)
		out.Set("fields", resolved)
		return out

	case integration.CategoryCRM:
		out := mapping.NewOrderedMap()
		out.Set("record", resolved)
		return out

	default:
		return resolved
	}
}
