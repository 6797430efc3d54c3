package analytics

import (
	"sort"

	"github.com/shopspring/decimal"
	"github.com/username/tradefolio/backend/src/models"
)

// BuildCampaigns groups trades into campaigns keyed by root trade id.
//
// A trade is a root when its parentTradeId is nil. A child whose parent id no
// longer resolves (the root was fully closed and deleted) is promoted to a
// self-rooted campaign and flagged Orphaned; this mirrors how a fully closed
// position keeps rendering after its root record is gone.
//
// The parent link is resolved through a lookup index built fresh on every
// call; campaigns are never persisted and hold copies, not pointers into the
// caller's slice.
func BuildCampaigns(trades []models.Trade) map[int64]*models.Campaign {
	campaigns := make(map[int64]*models.Campaign)

	for _, t := range trades {
		if t.IsRoot() {
			campaigns[t.ID] = &models.Campaign{Root: t}
		}
	}

	for _, t := range trades {
		if t.IsRoot() {
			continue
		}
		if c, ok := campaigns[*t.ParentTradeID]; ok {
			c.Children = append(c.Children, t)
			continue
		}
		// Unresolvable parent: the root was deleted (or the data is
		// degenerate). Treat the child as its own root.
		campaigns[t.ID] = &models.Campaign{Root: t, Orphaned: true}
	}

	for _, c := range campaigns {
		sort.SliceStable(c.Children, func(i, j int) bool {
			return c.Children[i].ChronoDate().Before(c.Children[j].ChronoDate())
		})

		realized := decimal.Zero
		original := c.Root.Quantity
		for i := range c.Children {
			child := c.Children[i]
			// Children always carry a sell price by construction; a nil net
			// P&L here means malformed data and contributes nothing.
			m := ComputeTradeMetrics(&child, nil)
			if m.NetPnL != nil {
				realized = realized.Add(*m.NetPnL)
			}
			original = original.Add(child.Quantity)
		}
		c.TotalRealizedPnL = realized
		c.OriginalQuantity = original
	}

	return campaigns
}
