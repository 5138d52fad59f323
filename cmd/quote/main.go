package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"route-pricing/internal/app"
	"route-pricing/internal/config"
	"route-pricing/internal/models"
	"route-pricing/internal/services"
	"route-pricing/pkg/logging"
	"route-pricing/pkg/metrics"
)

func main() {
	from := flag.String("from", "", "Origin postal code, e.g. PL50")
	to := flag.String("to", "", "Destination postal code, e.g. DE10")
	sources := flag.String("sources", "", "Comma separated sources (timocom,transeu,orders); empty means all")
	asJSON := flag.Bool("json", false, "Print the quote as JSON")
	noDistance := flag.Bool("no-distance", false, "Skip the road distance lookup")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := app.NewLogger(cfg, "route-pricing-quote")
	ctx := context.Background()

	pricing, err := app.NewPricing(ctx, cfg, logger, metrics.NewCollector("route_pricing_quote"))
	if err != nil {
		logger.Fatal(ctx, "[QUOTE_ERROR] Failed to initialize pricing", logging.Fields{}, err)
	}
	defer pricing.Close()

	req := services.QuoteRequest{
		StartPostalCode: *from,
		EndPostalCode:   *to,
		SkipDistance:    *noDistance,
	}
	for _, s := range strings.Split(*sources, ",") {
		if s = strings.TrimSpace(s); s != "" {
			req.Sources = append(req.Sources, models.Source(s))
		}
	}

	quote, err := pricing.Service.Quote(ctx, req)
	if err != nil {
		var noData *services.NoDataError
		if errors.As(err, &noData) {
			fmt.Printf("No pricing data for %s\n", noData.Route)
			printAbsent(noData.Absent)
		} else {
			fmt.Fprintf(os.Stderr, "Quote failed: %v\n", err)
		}
		os.Exit(1)
	}

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.Encode(quote)
		return
	}

	printQuote(quote)
}

func printQuote(q *models.Quote) {
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("QUOTE %s -> %s (regions %d -> %d)\n", q.StartPostalCode, q.EndPostalCode, q.StartRegionID, q.EndRegionID)
	fmt.Println(strings.Repeat("=", 80))

	for _, source := range models.AllSources {
		windows := q.Pricing[source]
		if len(windows) == 0 {
			continue
		}
		fmt.Printf("\n%s\n", source)
		for _, key := range sortedKeys(windows) {
			agg := windows[key]
			fmt.Printf("  %-5s days=%-3d count=%-5d outliers=%d\n", key, agg.DaysWithData, agg.TotalCount, agg.ExcludedOutliers)
			printPrices(agg, "    ")
			for _, cat := range sortedKeys(agg.Categories) {
				sub := agg.Categories[cat]
				fmt.Printf("    %s count=%d\n", cat, sub.TotalCount)
				printPrices(sub, "      ")
				for _, c := range sub.TopCarriers {
					fmt.Printf("      carrier %-12s orders=%d\n", c.CarrierID, c.Orders)
				}
			}
		}
	}

	if len(q.Absent) > 0 {
		fmt.Println()
		printAbsent(q.Absent)
	}

	if m := q.RouteMatch; m != nil {
		fmt.Printf("\nSubstitute route %s (%s, start %.2f km, end %.2f km)\n", m.Matched, m.Accuracy, m.StartDeviationKm, m.EndDeviationKm)
	}
	if d := q.Distance; d != nil {
		fmt.Printf("\nDistance: %.2f km (%s)\n", d.Km, d.Method)
	}
}

func printPrices(agg *models.Aggregate, indent string) {
	for _, field := range sortedKeys(agg.AvgPricePerKm) {
		if p := agg.AvgPricePerKm[field]; p != nil {
			fmt.Printf("%s%-14s %.4f %s\n", indent, field, *p, services.Unit)
		}
	}
}

func printAbsent(absent map[models.Source]map[string]models.AbsenceReason) {
	for _, source := range models.AllSources {
		for _, key := range sortedKeys(absent[source]) {
			fmt.Printf("  absent %-8s %-5s %s\n", source, key, absent[source][key])
		}
	}
}

// sortedKeys orders shorter keys first so "7d" precedes "30d"
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) < len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}
