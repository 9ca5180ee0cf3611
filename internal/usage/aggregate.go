package usage

import (
	"sort"

	"github.com/shopspring/decimal"
)

// GroupByAccount sums durations per account. Output is ordered by account id.
func GroupByAccount(records []Record) []AccountUsage {
	byAccount := map[string]*AccountUsage{}
	for _, r := range records {
		g, ok := byAccount[r.AccountID]
		if !ok {
			g = &AccountUsage{AccountID: r.AccountID, TotalMinutes: decimal.Zero}
			byAccount[r.AccountID] = g
		}
		g.RecordIDs = append(g.RecordIDs, r.ID)
		g.TotalMinutes = g.TotalMinutes.Add(r.DurationMinutes)
	}

	out := make([]AccountUsage, 0, len(byAccount))
	for _, g := range byAccount {
		out = append(out, *g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AccountID < out[j].AccountID })
	return out
}
