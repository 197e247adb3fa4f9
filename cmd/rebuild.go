// Package cmd provides the command-line interface for GCM image processing.
// This file contains the rebuild command, which turns an extracted directory
// tree back into a bootable image.
package cmd

import (
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/hansbonini/gcmtools/pkg"
	"github.com/hansbonini/gcmtools/pkg/common"
)

// gcmRebuildCmd rebuilds a GCM image from an extracted directory tree
var gcmRebuildCmd = &cobra.Command{
	Use:   "rebuild [root_directory] [output_image]",
	Short: "Rebuild a GCM image from an extracted directory tree",
	Long: `Rebuild a GCM image from an extracted directory tree.

The root directory must contain the &&systemdata directory with ISO.hdr,
Apploader.ldr and Start.dol. By default the file system table (Game.toc)
and the header offsets are regenerated from the tree; --no-systemdata
trusts the existing Game.toc and ISO.hdr instead.

Every file is placed on an alignment boundary (-a, default 32768 bytes,
minimum 4). If the rebuilt image does not fit the fixed disc capacity,
decreasing the alignment is usually the fix.

Options may also come from a YAML config file (--config):

  alignment: 32768
  rebuild_systemdata: true

Examples:
  gcmtools gcm rebuild ./game/ modified.iso
  gcmtools gcm rebuild -a 4096 ./game/ modified.iso
  gcmtools gcm rebuild --config rebuild.yaml ./game/ modified.iso`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		rootPath := args[0]
		outputPath := args[1]

		config, err := resolveRebuildConfig(cmd)
		if err != nil {
			return err
		}

		if _, err := os.Stat(rootPath); err != nil {
			return fmt.Errorf("root directory %s: %w", rootPath, err)
		}

		output, err := os.Create(outputPath)
		if err != nil {
			return fmt.Errorf("failed to create output image: %w", err)
		}

		var bar *progressbar.ProgressBar
		progress := func(done, total int) {
			if bar == nil {
				bar = progressbar.Default(int64(total), "adding files")
			}
			_ = bar.Set(done)
		}

		processor := pkg.NewGCMProcessor()
		err = processor.Rebuild(rootPath, output, config.Alignment, *config.RebuildSystemData, progress)
		closeErr := output.Close()
		if err == nil {
			err = closeErr
		}
		if err != nil {
			// Never leave a half-written image behind
			if removeErr := os.Remove(outputPath); removeErr != nil {
				common.LogError(common.ErrFailedToRemoveOutput, outputPath, removeErr)
			}
			return fmt.Errorf("failed to rebuild image: %w", err)
		}

		fmt.Printf("Image rebuilt to: %s\n", outputPath)
		return nil
	},
}

// resolveRebuildConfig merges the config file, flags and defaults.
// Flags set explicitly on the command line win over the file.
func resolveRebuildConfig(cmd *cobra.Command) (pkg.RebuildConfig, error) {
	config := pkg.DefaultRebuildConfig()

	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return config, fmt.Errorf("error getting config flag: %w", err)
	}
	if configPath != "" {
		config, err = pkg.LoadRebuildConfig(configPath)
		if err != nil {
			return config, err
		}
	}

	if cmd.Flags().Changed("alignment") {
		config.Alignment, err = cmd.Flags().GetUint64("alignment")
		if err != nil {
			return config, fmt.Errorf("error getting alignment flag: %w", err)
		}
	}
	if cmd.Flags().Changed("no-systemdata") {
		noSystemData, err := cmd.Flags().GetBool("no-systemdata")
		if err != nil {
			return config, fmt.Errorf("error getting no-systemdata flag: %w", err)
		}
		rebuild := !noSystemData
		config.RebuildSystemData = &rebuild
	}

	if err := config.Validate(); err != nil {
		return config, err
	}
	return config, nil
}

// init initializes the rebuild command with its flags
func init() {
	gcmCmd.AddCommand(gcmRebuildCmd)

	gcmRebuildCmd.Flags().Uint64P("alignment", "a", pkg.DefaultAlignment, "File placement alignment in bytes")
	gcmRebuildCmd.Flags().Bool("no-systemdata", false, "Trust the existing Game.toc and ISO.hdr instead of regenerating them")
	gcmRebuildCmd.Flags().StringP("config", "c", "", "YAML file with rebuild options")
}
