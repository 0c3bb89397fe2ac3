package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/ternarybob/webfrontier/internal/storage/sqlite"
)

var scopesCmd = &cobra.Command{
	Use:   "scopes",
	Short: "List all scopes",
	RunE:  runScopes,
}

func init() {
	rootCmd.AddCommand(scopesCmd)
}

func runScopes(cmd *cobra.Command, args []string) error {
	store, err := sqlite.New(config.DBPath, logger)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	scopes, err := store.ListScopes(context.Background())
	if err != nil {
		return fmt.Errorf("list scopes: %w", err)
	}

	if len(scopes) == 0 {
		fmt.Println("No scopes configured.")
		return nil
	}

	fmt.Printf("%-4s %-50s %-10s %-8s %s\n", "ID", "PATTERN", "METHOD", "ACTIVE", "LAST_CRAWLED")
	for _, sc := range scopes {
		lastCrawled := "-"
		if sc.LastCrawledAt != nil {
			lastCrawled = sc.LastCrawledAt.Format(time.RFC3339)
		}
		fmt.Printf("%-4d %-50s %-10s %-8v %s\n", sc.ID, sc.Pattern, sc.Method, sc.IsActive, lastCrawled)
	}
	return nil
}
