package services

import (
	"fmt"
	"sort"
	"strings"

	"yelp-scraper/models"
	"yelp-scraper/utils"
)

type InsightService struct {
	logger *utils.Logger
}

func NewInsightService(logger *utils.Logger) *InsightService {
	return &InsightService{logger: logger}
}

func (s *InsightService) Generate(records []models.NormalizedRecord) *models.InsightReport {
	report := &models.InsightReport{
		ListingsByLocality: make(map[string]int),
		ListingsByPrice:    make(map[string]int),
	}

	if len(records) == 0 {
		return report
	}

	report.TotalListings = len(records)

	var rated []*models.NormalizedRecord
	var ratingSum float64

	for i := range records {
		r := &records[i]
		report.TotalReviews += r.ReviewCount
		if r.Rating > 0 {
			rated = append(rated, r)
			ratingSum += r.Rating
		}
		if r.AddressLocality != "" {
			report.ListingsByLocality[r.AddressLocality]++
		}
		if r.PriceRange != "" {
			report.ListingsByPrice[r.PriceRange]++
		}
		if report.MostReviewed == nil || r.ReviewCount > report.MostReviewed.ReviewCount {
			report.MostReviewed = r
		}
	}

	if len(rated) > 0 {
		report.AverageRating = round2(ratingSum / float64(len(rated)))
	}

	// Top 5 by rating, review count breaks ties
	sort.SliceStable(rated, func(i, j int) bool {
		if rated[i].Rating != rated[j].Rating {
			return rated[i].Rating > rated[j].Rating
		}
		return rated[i].ReviewCount > rated[j].ReviewCount
	})
	if len(rated) > 5 {
		report.TopRated = rated[:5]
	} else {
		report.TopRated = rated
	}

	s.logger.Debug("[insights] %d records, %d rated", report.TotalListings, len(rated))
	return report
}

func (s *InsightService) Print(r *models.InsightReport) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Printf("\n\033[1;35m%s\033[0m\n", sep)
	fmt.Printf("\033[1;35m  📊 YELP SCRAPE INSIGHTS\033[0m\n")
	fmt.Printf("\033[1;35m%s\033[0m\n\n", sep)

	// Overview
	fmt.Printf("\033[1;33m  Overview\033[0m\n")
	fmt.Printf("  %s\n", thin)
	fmt.Printf("  Total listings scraped : \033[1m%d\033[0m\n", r.TotalListings)
	fmt.Printf("  Total reviews          : \033[1m%d\033[0m\n", r.TotalReviews)
	if r.AverageRating > 0 {
		fmt.Printf("  Average rating         : \033[1;32m%.2f ★\033[0m\n", r.AverageRating)
	} else {
		fmt.Printf("  No rating data available\n")
	}
	fmt.Println()

	// Most Reviewed
	if r.MostReviewed != nil && r.MostReviewed.ReviewCount > 0 {
		fmt.Printf("\033[1;33m  Most Reviewed Listing\033[0m\n")
		fmt.Printf("  %s\n", thin)
		fmt.Printf("  %s\n", truncate(r.MostReviewed.Name, 50))
		fmt.Printf("  Locality : %s\n", r.MostReviewed.AddressLocality)
		fmt.Printf("  Reviews  : \033[1;31m%d\033[0m\n", r.MostReviewed.ReviewCount)
		fmt.Println()
	}

	// ── TOP 5 HIGHEST RATED ──────────────────────────────────────────────
	fmt.Printf("\033[1;33m  Top 5 Highest Rated Listings\033[0m\n")
	fmt.Printf("  %s\n", thin)
	if len(r.TopRated) == 0 {
		fmt.Printf("  No rated listings found\n")
	} else {
		for i, l := range r.TopRated {
			fmt.Printf("  \033[1m%d.\033[0m %-40s \033[1;32m%.1f ★\033[0m (%d)\n",
				i+1, truncate(l.Name, 38), l.Rating, l.ReviewCount)
		}
	}
	fmt.Println()

	printCounts("Listings by Locality", r.ListingsByLocality, thin)
	printCounts("Listings by Price", r.ListingsByPrice, thin)

	fmt.Printf("\n\033[1;35m%s\033[0m\n\n", sep)
}

func printCounts(title string, counts map[string]int, thin string) {
	fmt.Printf("\033[1;33m  %s\033[0m\n", title)
	fmt.Printf("  %s\n", thin)
	if len(counts) == 0 {
		fmt.Printf("  No data\n\n")
		return
	}

	type keyCount struct {
		key   string
		count int
	}
	var rows []keyCount
	for k, c := range counts {
		rows = append(rows, keyCount{k, c})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].count != rows[j].count {
			return rows[i].count > rows[j].count
		}
		return rows[i].key < rows[j].key
	})
	for _, kc := range rows {
		bar := strings.Repeat("█", kc.count)
		fmt.Printf("  %-30s %s (%d)\n", truncate(kc.key, 28), bar, kc.count)
	}
	fmt.Println()
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
