// Package cmd provides the command-line interface for GCMTools.
// GCMTools is a collection of utilities for extracting, inspecting and
// rebuilding GameCube disc images (GCM/ISO).
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands.
// It provides the main entry point for the GCMTools application.
var rootCmd = &cobra.Command{
	Use:   "gcmtools",
	Short: "Tools for extracting and rebuilding GameCube disc images",
	Long: `GCMTools - A collection of utilities for extracting, inspecting and
rebuilding GameCube disc images (GCM/ISO).

Currently supports:
  - Extracting the whole file system, or single files, from an image
  - Listing directories and printing image information
  - Locating which section of the image owns a byte offset
  - Rebuilding a bootable image from an extracted directory tree

Examples:
  gcmtools gcm extract game.iso ./game/
  gcmtools gcm ls game.iso /audio -l
  gcmtools gcm info game.iso
  gcmtools gcm offset game.iso 0x2440
  gcmtools gcm rebuild ./game/ modified.iso

Use 'gcmtools [command] --help' for more information about a command.`,
}

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}
