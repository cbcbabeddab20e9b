package main

import (
	"fmt"

	"newsbrief/internal/pipeline"
)

func printStats(st pipeline.Stats) {
	fmt.Println("=== News Service Statistics ===")
	fmt.Println()
	fmt.Printf("Total articles: %d\n", st.Total)

	fmt.Println("\nArticles by status:")
	for _, c := range st.ByStatus {
		fmt.Printf("  %s: %d\n", c.Key, c.Count)
	}

	fmt.Println("\nArticles by language:")
	for _, c := range st.ByLanguage {
		fmt.Printf("  %s: %d\n", c.Key, c.Count)
	}

	fmt.Println("\nTop 10 source domains:")
	for _, c := range st.TopDomains {
		fmt.Printf("  %s: %d\n", c.Key, c.Count)
	}

	if st.AverageWordCount > 0 {
		fmt.Printf("\nAverage word count: %.1f\n", st.AverageWordCount)
	}

	if len(st.RecentCompleted) > 0 {
		fmt.Println("\nRecent completed articles:")
		for _, a := range st.RecentCompleted {
			fmt.Printf("  - %s (%s)\n", a.Title, a.Language)
		}
	}

	if st.Failed > 0 {
		fmt.Printf("\nWarning: %d articles failed processing\n", st.Failed)
		fmt.Println("Recent failures:")
		for _, a := range st.RecentFailures {
			fmt.Printf("  - %s\n", a.URL)
		}
	}

	fmt.Println("\nStatistics complete!")
}
