package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/ternarybob/webfrontier/internal/domain"
	"github.com/ternarybob/webfrontier/internal/storage/sqlite"
)

var removeCmd = &cobra.Command{
	Use:     "remove <id>",
	Aliases: []string{"rm"},
	Short:   "Remove a scope",
	Args:    cobra.ExactArgs(1),
	RunE:    runRemove,
}

func init() {
	rootCmd.AddCommand(removeCmd)
}

func runRemove(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid scope id %q: %w", args[0], err)
	}

	store, err := sqlite.New(config.DBPath, logger)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.DeleteScope(ctx, id); err != nil {
		return fmt.Errorf("delete scope %d: %w", id, err)
	}

	if err := store.AppendEvent(ctx, domain.Event{Kind: domain.EventScopeRemoved, ScopeID: &id}); err != nil {
		logger.Warn().Err(err).Int64("scope_id", id).Msg("Failed to append scope_removed event")
	}

	fmt.Printf("Removed scope %d\n", id)
	return nil
}
