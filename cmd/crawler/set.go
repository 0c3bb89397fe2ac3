package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/ternarybob/webfrontier/internal/domain"
	"github.com/ternarybob/webfrontier/internal/storage/sqlite"
)

var setCmd = &cobra.Command{
	Use:   "set <id> <property> <value>",
	Short: "Update a scope property (property: method, value: DEFAULT|NLP|HEADERS|CHANGED)",
	Args:  cobra.ExactArgs(3),
	RunE:  runSet,
}

func init() {
	rootCmd.AddCommand(setCmd)
}

func runSet(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid scope id %q: %w", args[0], err)
	}
	property := args[1]
	value := args[2]

	if property != "method" {
		return fmt.Errorf("unsupported property %q (only \"method\" is supported)", property)
	}
	if !domain.ValidMethod(value) {
		return fmt.Errorf("invalid method %q (expected one of DEFAULT, NLP, HEADERS, CHANGED)", value)
	}

	store, err := sqlite.New(config.DBPath, logger)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.UpdateScopeMethod(ctx, id, domain.ScopeMethod(value)); err != nil {
		return fmt.Errorf("update scope %d: %w", id, err)
	}

	if err := store.AppendEvent(ctx, domain.Event{Kind: domain.EventScopeModified, ScopeID: &id, Detail: fmt.Sprintf("method=%s", value)}); err != nil {
		logger.Warn().Err(err).Int64("scope_id", id).Msg("Failed to append scope_modified event")
	}

	fmt.Printf("Updated scope %d method to %s\n", id, value)
	return nil
}
