package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/webfrontier/internal/common"
)

var (
	config     *common.Config
	logger     arbor.ILogger
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "webfrontier",
	Short: "Polite, scope-bounded web crawler",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Configuration file path")
}

// loadConfig resolves configPath (auto-discovering ./webfrontier.yaml when
// unset), loads the config, and initializes the global logger — matching the
// teacher's defaults-then-file override startup order.
func loadConfig() error {
	if configPath == "" {
		if _, err := os.Stat("webfrontier.yaml"); err == nil {
			configPath = "webfrontier.yaml"
		}
	}

	var err error
	if configPath == "" {
		config = common.NewDefaultConfig()
	} else {
		config, err = common.LoadFromFile(configPath)
		if err != nil {
			return err
		}
	}

	logger = common.SetupLogger(config)
	return nil
}

func main() {
	defer common.RecoverWithCrashFile()
	common.InstallCrashHandler("./logs")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "webfrontier: %v\n", err)
		os.Exit(1)
	}
}
