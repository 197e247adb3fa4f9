// Package cmd provides the command-line interface for GCM image processing.
// This file contains the commands that read an existing image: extract,
// info, ls, offset and layout.
package cmd

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/hansbonini/gcmtools/pkg"
	"github.com/hansbonini/gcmtools/pkg/common"
)

// gcmCmd represents the parent command for all GCM image operations
var gcmCmd = &cobra.Command{
	Use:   "gcm",
	Short: "Process GameCube disc images",
	Long: `Process GameCube disc images (GCM/ISO format).

Commands:
  extract   Extract files from an image
  info      Display information about an image
  ls        List directory contents of an image
  offset    Find which section of an image owns a byte offset
  layout    Print the full section layout of an image
  rebuild   Rebuild an image from an extracted directory tree

Examples:
  gcmtools gcm extract game.iso ./game/
  gcmtools gcm info game.iso`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		verbose, err := cmd.Flags().GetBool("verbose")
		if err != nil {
			return fmt.Errorf("error getting verbose flag: %w", err)
		}
		common.SetVerboseMode(verbose)
		return nil
	},
}

// gcmExtractCmd extracts the whole file system, or one entry, from an image
var gcmExtractCmd = &cobra.Command{
	Use:   "extract [image] [output_directory]",
	Short: "Extract files from a GCM image",
	Long: `Extract files from a GCM image.

Without --file the entire image is extracted: the raw system sections are
written to &&systemdata/ and the file system tree is recreated below the
output directory. With --file only the named file (or directory subtree)
is extracted.

The output directory must not already exist when extracting a whole image.

Examples:
  gcmtools gcm extract game.iso ./game/
  gcmtools gcm extract --file /audio/stream.ssm game.iso ./out/`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		inputFile := args[0]
		outputDir := args[1]

		entryPath, err := cmd.Flags().GetString("file")
		if err != nil {
			return fmt.Errorf("error getting file flag: %w", err)
		}

		processor := pkg.NewGCMProcessor()

		bar := progressbar.Default(-1, "extracting files")
		callback := func(count int) {
			_ = bar.Set(count)
		}

		if entryPath != "" {
			if err := processor.ExtractPath(inputFile, entryPath, outputDir, callback); err != nil {
				return fmt.Errorf("failed to extract %s: %w", entryPath, err)
			}
		} else {
			if err := processor.Dump(inputFile, outputDir, callback); err != nil {
				return fmt.Errorf("failed to extract image: %w", err)
			}
		}
		_ = bar.Finish()

		fmt.Printf("\nFiles extracted to: %s\n", outputDir)
		return nil
	},
}

// gcmInfoCmd prints header and file system information about an image
var gcmInfoCmd = &cobra.Command{
	Use:   "info [image]",
	Short: "Display information about a GCM image",
	Long: `Display information about a GCM image: game ID, title, the offsets
of the DOL and the file system table, and file system statistics.

With --offset the disc header is decoded at the given base instead of the
start of the file, so a header embedded in a larger dump can be inspected.

Examples:
  gcmtools gcm info game.iso
  gcmtools gcm info --hex game.iso
  gcmtools gcm info -o 0x8000 dump.bin`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hex, err := cmd.Flags().GetBool("hex")
		if err != nil {
			return fmt.Errorf("error getting hex flag: %w", err)
		}
		offsetText, err := cmd.Flags().GetString("offset")
		if err != nil {
			return fmt.Errorf("error getting offset flag: %w", err)
		}
		base, err := common.ParseOffset(offsetText)
		if err != nil {
			return fmt.Errorf("invalid offset %q: %w", offsetText, err)
		}

		disc, image, err := openDisc(args[0], int64(base))
		if err != nil {
			return err
		}
		defer image.Close()

		header := disc.Header
		fst := disc.FST
		fmt.Printf("Game ID: %s\n", header.GameID())
		fmt.Printf("Title: %s\n", header.Title)
		fmt.Printf("DOL offset: %s\n", formatNumber(header.DOLOffset, hex))
		fmt.Printf("FST offset: %s\n", formatNumber(header.FSTOffset, hex))
		fmt.Printf("FST size: %s bytes\n", formatNumber(header.FSTSize, hex))
		fmt.Printf("Total entries: %s\n", formatNumber(uint64(len(fst.Entries)), hex))
		fmt.Printf("Total files: %s\n", formatNumber(uint64(fst.FileCount), hex))
		fmt.Printf("Total space used by files: %s (%s bytes)\n",
			humanize.IBytes(fst.TotalFileSystemSize),
			formatNumber(fst.TotalFileSystemSize, hex))
		return nil
	},
}

// gcmLsCmd lists the immediate contents of a directory in the image
var gcmLsCmd = &cobra.Command{
	Use:   "ls [image] [path]",
	Short: "List directory contents of a GCM image",
	Long: `List the immediate contents of a directory inside a GCM image.
Without a path the root directory is listed. With -l each entry is shown
in long form: type, size (immediate child count for directories), path.

Examples:
  gcmtools gcm ls game.iso
  gcmtools gcm ls game.iso /audio -l`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		long, err := cmd.Flags().GetBool("long")
		if err != nil {
			return fmt.Errorf("error getting long flag: %w", err)
		}
		dirPath := "/"
		if len(args) == 2 {
			dirPath = args[1]
		}

		disc, image, err := openDisc(args[0], 0)
		if err != nil {
			return err
		}
		defer image.Close()

		entry := disc.FST.EntryForPath(dirPath)
		if entry == nil {
			return fmt.Errorf("no entry found for path: %s", dirPath)
		}
		dir, ok := entry.(*pkg.DirectoryEntry)
		if !ok {
			// A file resolves to a one-line listing of itself
			if long {
				fmt.Println(pkg.FormatLong(entry))
			} else {
				fmt.Println(entry.Info().Name)
			}
			return nil
		}

		for it := dir.IterContents(disc.FST.Entries); ; {
			child := it.Next()
			if child == nil {
				break
			}
			if long {
				fmt.Println(pkg.FormatLong(child))
			} else {
				fmt.Println(child.Info().Name)
			}
		}
		return nil
	},
}

// gcmOffsetCmd reports which section owns a byte offset in the image
var gcmOffsetCmd = &cobra.Command{
	Use:   "offset [image] [offset]",
	Short: "Find which section of a GCM image owns a byte offset",
	Long: `Find which section of a GCM image owns the given byte offset.
Offsets can be decimal or 0x-prefixed hexadecimal. With --output the owning
section's bytes are additionally dumped to a file.

Examples:
  gcmtools gcm offset game.iso 0x2440
  gcmtools gcm offset game.iso 1234567 --output section.bin`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		output, err := cmd.Flags().GetString("output")
		if err != nil {
			return fmt.Errorf("error getting output flag: %w", err)
		}

		offset, err := common.ParseOffset(args[1])
		if err != nil {
			return fmt.Errorf("invalid offset %q: %w", args[1], err)
		}
		if offset >= pkg.ROMSize {
			return fmt.Errorf("offset must be smaller than the image capacity (%d)", uint64(pkg.ROMSize))
		}

		disc, image, err := openDisc(args[0], 0)
		if err != nil {
			return err
		}
		defer image.Close()

		section := disc.Layout().FindOffset(offset)
		if section == nil {
			fmt.Println("There isn't any data at this offset.")
			return nil
		}

		fmt.Printf("Section: %s\n", section.Name())
		fmt.Printf("Start: 0x%X\n", section.Start())
		fmt.Printf("Size: %d bytes\n", section.Len())

		if output != "" {
			if _, err := os.Stat(output); err == nil {
				return fmt.Errorf("output path already exists: %s", output)
			}
			out, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("failed to create output file: %w", err)
			}
			defer out.Close()
			if err := pkg.ExtractSection(image, section, out); err != nil {
				return err
			}
			fmt.Printf("Section dumped to: %s\n", output)
		}
		return nil
	},
}

// gcmLayoutCmd prints every section of the image in offset order
var gcmLayoutCmd = &cobra.Command{
	Use:   "layout [image]",
	Short: "Print the full section layout of a GCM image",
	Long: `Print every section of a GCM image in offset order: the header,
apploader, DOL (with its segments), the file system table and every file.

Example:
  gcmtools gcm layout game.iso`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		disc, image, err := openDisc(args[0], 0)
		if err != nil {
			return err
		}
		defer image.Close()

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Section", "Start", "End", "Size"})
		for _, section := range disc.Layout().Sections() {
			table.Append([]string{
				section.Name(),
				fmt.Sprintf("0x%X", section.Start()),
				fmt.Sprintf("0x%X", pkg.SectionEnd(section)),
				humanize.IBytes(section.Len()),
			})
		}
		table.Render()
		return nil
	},
}

// openDisc opens an image file and decodes its sections, with the disc
// header taken to begin at base.
func openDisc(path string, base int64) (*pkg.Disc, *os.File, error) {
	image, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open image: %w", err)
	}
	disc, err := pkg.OpenDiscAt(image, base)
	if err != nil {
		image.Close()
		return nil, nil, fmt.Errorf("invalid image %s: %w", path, err)
	}
	return disc, image, nil
}

// formatNumber renders a value in decimal or 0x-prefixed hexadecimal
func formatNumber(value uint64, hex bool) string {
	if hex {
		return fmt.Sprintf("%#x", value)
	}
	return fmt.Sprintf("%d", value)
}

// init initializes the GCM command with its subcommands and flags
func init() {
	rootCmd.AddCommand(gcmCmd)

	gcmCmd.AddCommand(gcmExtractCmd)
	gcmCmd.AddCommand(gcmInfoCmd)
	gcmCmd.AddCommand(gcmLsCmd)
	gcmCmd.AddCommand(gcmOffsetCmd)
	gcmCmd.AddCommand(gcmLayoutCmd)

	gcmCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")

	gcmExtractCmd.Flags().StringP("file", "f", "", "Extract only the named file or directory")

	gcmInfoCmd.Flags().Bool("hex", false, "Print numbers in hexadecimal")
	gcmInfoCmd.Flags().StringP("offset", "o", "0", "Base offset of the disc header (decimal or 0x hex)")

	gcmLsCmd.Flags().BoolP("long", "l", false, "Long listing: type, size, path")

	gcmOffsetCmd.Flags().StringP("output", "o", "", "Dump the owning section's bytes to a file")
}
