package loadgen

import "fmt"

// verifyRanking checks that ranks run 1..n, scores never increase down the
// list and no ticket appears twice.
func verifyRanking(entries []rankingEntry) error {
	seen := make(map[string]bool, len(entries))
	for i, e := range entries {
		if e.Rank != i+1 {
			return fmt.Errorf("entry %d has rank %d", i, e.Rank)
		}
		if seen[e.TicketID] {
			return fmt.Errorf("ticket %s ranked twice", e.TicketID)
		}
		seen[e.TicketID] = true
		if i > 0 && e.Score > entries[i-1].Score {
			return fmt.Errorf("entry %d scores %.2f above entry %d (%.2f)", i, e.Score, i-1, entries[i-1].Score)
		}
	}
	return nil
}
