package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/ternarybob/webfrontier/internal/domain"
	"github.com/ternarybob/webfrontier/internal/storage/sqlite"
)

var addCmd = &cobra.Command{
	Use:   "add <pattern>",
	Short: "Add a new scope",
	Args:  cobra.ExactArgs(1),
	RunE:  runAdd,
}

func init() {
	rootCmd.AddCommand(addCmd)
}

func runAdd(cmd *cobra.Command, args []string) error {
	pattern := args[0]

	store, err := sqlite.New(config.DBPath, logger)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	ctx := context.Background()
	scope, err := store.CreateScope(ctx, pattern)
	if err != nil {
		return fmt.Errorf("create scope: %w", err)
	}

	if err := store.AppendEvent(ctx, domain.Event{Kind: domain.EventScopeAdded, ScopeID: &scope.ID, URL: scope.Pattern}); err != nil {
		logger.Warn().Err(err).Int64("scope_id", scope.ID).Msg("Failed to append scope_added event")
	}

	fmt.Printf("Added scope %d: %s\n", scope.ID, scope.Pattern)
	return nil
}
