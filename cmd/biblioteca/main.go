// Command biblioteca is a small client for the library API. It covers the
// two everyday operations: full-text search and the statistics report.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"biblioteca/internal/models"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func main() {
	apiURL := flag.String("api", envOr("BIBLIOTECA_API", "http://localhost:8080"), "base URL of the library API")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	client := &http.Client{Timeout: 10 * time.Second}

	var err error
	switch args[0] {
	case "search":
		if len(args) < 2 {
			usage()
			os.Exit(2)
		}
		err = runSearch(client, *apiURL, strings.Join(args[1:], " "))
	case "stats":
		err = runStats(client, *apiURL)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: biblioteca [-api URL] search <query> | stats")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func runSearch(client *http.Client, base, query string) error {
	var books []models.Book
	if err := getJSON(client, base+"/api/v1/search?q="+url.QueryEscape(query), &books); err != nil {
		return err
	}

	if len(books) == 0 {
		fmt.Printf("no results for %q\n", query)
		return nil
	}

	fmt.Printf("%d result(s) for %q:\n", len(books), query)
	for _, b := range books {
		status := fmt.Sprintf("%d/%d available", b.AvailableCopies, b.TotalCopies)
		if b.AvailableCopies == 0 {
			status = "unavailable"
		}
		fmt.Printf("  %s by %s [%s] - %s\n", b.Title, b.AuthorName, b.CategoryName, status)
	}
	return nil
}

func runStats(client *http.Client, base string) error {
	var stats models.LibraryStats
	if err := getJSON(client, base+"/api/v1/stats", &stats); err != nil {
		return err
	}

	fmt.Println("library statistics")
	fmt.Printf("  total books:          %d\n", stats.TotalBooks)
	fmt.Printf("  available:            %d\n", stats.BooksAvailable)
	fmt.Printf("  active loans:         %d\n", stats.ActiveLoans)
	fmt.Printf("  overdue loans:        %d\n", stats.OverdueLoans)
	fmt.Printf("  pending reservations: %d\n", stats.PendingReservations)
	fmt.Printf("  registered patrons:   %d\n", stats.RegisteredPatrons)

	if len(stats.MostBorrowed) > 0 {
		fmt.Println("  most borrowed:")
		for i, row := range stats.MostBorrowed {
			fmt.Printf("    %d. %s (%d loans)\n", i+1, row.Title, row.LoanCount)
		}
	}
	return nil
}

func getJSON(client *http.Client, rawURL string, out interface{}) error {
	resp, err := client.Get(rawURL)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: unexpected status %s", rawURL, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
