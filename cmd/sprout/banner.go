package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/pterm/pterm"

	"sprout/internal/config"
)

func printBanner(cfg *config.Config) {
	if os.Getenv("SPROUT_STARTUP_LOG") == "false" {
		return
	}

	_ = pterm.DefaultBigText.WithLetters(
		pterm.NewLettersFromStringWithStyle("SPR", pterm.NewStyle(pterm.FgGreen)),
		pterm.NewLettersFromStringWithStyle("OUT", pterm.NewStyle(pterm.FgLightGreen)),
	).Render()

	cyan := color.New(color.FgHiCyan, color.Bold).SprintFunc()
	white := color.New(color.FgWhite).SprintFunc()

	fmt.Printf("%s : %s\n", cyan("Version    "), white(cfg.App.Version))
	fmt.Printf("%s : %s\n", cyan("Media root "), white(cfg.Media.Root))
	fmt.Printf("%s : %s\n", cyan("Database   "), white(cfg.Database.Path))
	fmt.Printf("%s : %s\n", cyan("Jobs       "), white(cfg.Jobs.Backend))
	fmt.Println()
}
