package services

import (
	"fmt"
	"sort"
	"strings"

	"booking-pipeline/models"
)

// PrintRunReport formats and prints the cycle summary to the terminal. This
// is the unattended pipeline's only interactive surface, kept for operators
// running a cycle by hand.
func PrintRunReport(summary *models.RunSummary) {
	border := strings.Repeat("═", 55)
	thin := strings.Repeat("─", 55)

	fmt.Printf("\n╔%s╗\n", border)
	fmt.Printf("║%s║\n", center("ACCOMMODATION SCRAPE CYCLE", 55))
	fmt.Printf("╚%s╝\n", border)

	fmt.Printf("\n RUN\n%s\n", thin)
	fmt.Printf("  Run ID        : %s\n", summary.RunID)
	fmt.Printf("  Search        : %s, %s → %s, %d adults\n",
		summary.Params.Location,
		summary.Params.CheckIn.Format("2006-01-02"),
		summary.Params.CheckOut.Format("2006-01-02"),
		summary.Params.Adults)
	fmt.Printf("  Duration      : %s\n", summary.Duration.Round(1e9))
	fmt.Printf("  Discovered    : %d\n", summary.Discovered)
	fmt.Printf("  Succeeded     : %d\n", summary.Succeeded)
	fmt.Printf("  Failed        : %d\n", summary.Failed)
	if summary.StructuralBreakage {
		fmt.Printf("  ⚠ zero listings fetched from a non-empty discovery set:\n")
		fmt.Printf("    the site layout has likely changed\n")
	}

	if in := summary.Insights; in != nil && in.Observations > 0 {
		fmt.Printf("\n PRICES\n%s\n", thin)
		fmt.Printf("  Observations  : %d (%d priced, %d unavailable)\n",
			in.Observations, in.Priced, in.Unavailable)
		fmt.Printf("  Average Price : %.2f\n", in.AvgPrice)
		fmt.Printf("  Minimum Price : %.2f\n", in.MinPrice)
		fmt.Printf("  Maximum Price : %.2f\n", in.MaxPrice)

		if len(in.ByDistrict) > 0 {
			fmt.Printf("\n LISTINGS PER DISTRICT\n%s\n", thin)
			type distCount struct {
				district string
				count    int
			}
			var dists []distCount
			for d, c := range in.ByDistrict {
				dists = append(dists, distCount{d, c})
			}
			sort.Slice(dists, func(i, j int) bool {
				return dists[i].count > dists[j].count
			})
			for _, dc := range dists {
				bar := strings.Repeat("▓", dc.count)
				fmt.Printf("  %-20s %3d  %s\n", dc.district+":", dc.count, bar)
			}
		}
	}

	fmt.Printf("\n%s\n\n", border)
}

func center(s string, width int) string {
	if len(s) >= width {
		return s[:width]
	}
	left := (width - len(s)) / 2
	right := width - len(s) - left
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", right)
}
