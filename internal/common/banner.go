package common

import (
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/banner"
)

// PrintBanner displays the crawl-session startup banner.
func PrintBanner(config *Config, logger arbor.ILogger) {
	version := GetVersion()

	b := banner.New().
		SetStyle(banner.StyleDouble).
		SetBorderColor(banner.ColorGreen).
		SetTextColor(banner.ColorWhite).
		SetBold(true).
		SetWidth(80)

	fmt.Printf("\n")
	b.PrintTopLine()
	b.PrintCenteredText("WEBFRONTIER")
	b.PrintCenteredText("Polite, Scope-Bounded Web Crawler")
	b.PrintSeparatorLine()
	b.PrintKeyValue("Version", version, 18)
	b.PrintKeyValue("Database", config.DBPath, 18)
	b.PrintKeyValue("Export Path", config.ExportPath, 18)
	b.PrintKeyValue("Concurrency", fmt.Sprintf("%d", config.Concurrency), 18)
	b.PrintKeyValue("NLP Gate", fmt.Sprintf("%v", config.NLP.Enabled), 18)
	b.PrintBottomLine()
	fmt.Printf("\n")

	logger.Info().
		Str("version", version).
		Str("db_path", config.DBPath).
		Str("export_path", config.ExportPath).
		Int("concurrency", config.Concurrency).
		Bool("nlp_enabled", config.NLP.Enabled).
		Msg("Crawl session starting")
}

// PrintShutdownBanner displays the shutdown banner.
func PrintShutdownBanner(logger arbor.ILogger) {
	b := banner.New().
		SetStyle(banner.StyleDouble).
		SetBorderColor(banner.ColorGreen).
		SetTextColor(banner.ColorWhite).
		SetBold(true).
		SetWidth(42)

	b.PrintTopLine()
	b.PrintCenteredText("CRAWL COMPLETE")
	b.PrintBottomLine()
	fmt.Println()

	logger.Info().Msg("Crawl session finished")
}

// PrintColorizedMessage prints a message with specified color; it does not log (logger is unused)
func PrintColorizedMessage(color, message string, logger arbor.ILogger) {
	fmt.Printf("%s%s%s\n", color, message, banner.ColorReset)
}

// PrintSuccess prints a success message in green and logs it
func PrintSuccess(message string) {
	logger := GetLogger()
	PrintColorizedMessage(banner.ColorGreen, fmt.Sprintf("✓ %s", message), logger)
	logger.Info().Str("type", "success").Msg(message)
}

// PrintError prints an error message in red and logs it
func PrintError(message string) {
	logger := GetLogger()
	PrintColorizedMessage(banner.ColorRed, fmt.Sprintf("✗ %s", message), logger)
	logger.Error().Str("type", "error").Msg(message)
}

// PrintWarning prints a warning message in yellow and logs it
func PrintWarning(message string) {
	logger := GetLogger()
	PrintColorizedMessage(banner.ColorYellow, fmt.Sprintf("⚠ %s", message), logger)
	logger.Warn().Str("type", "warning").Msg(message)
}

// PrintInfo prints an info message in cyan and logs it
func PrintInfo(message string) {
	logger := GetLogger()
	PrintColorizedMessage(banner.ColorCyan, fmt.Sprintf("ℹ %s", message), logger)
	logger.Info().Str("type", "info").Msg(message)
}
