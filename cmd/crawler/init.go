package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/ternarybob/webfrontier/internal/storage/sqlite"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the database if it does not already exist",
	RunE:  runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	store, err := sqlite.New(config.DBPath, logger)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer store.Close()

	fmt.Printf("Database ready at %s\n", config.DBPath)
	return nil
}
