// Package common provides shared utilities for GCM image processing.
// This file contains message constants and logging helpers used across
// the decoder, rebuilder and command layers.
package common

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Global variable to control debug output
var VerboseMode bool = false

// SetVerboseMode enables or disables verbose/debug output
func SetVerboseMode(verbose bool) {
	VerboseMode = verbose
	if verbose {
		logrus.SetLevel(logrus.DebugLevel)
	} else {
		logrus.SetLevel(logrus.InfoLevel)
	}
}

// Error messages
const (
	ErrFailedToOpenImage        = "failed to open GCM image"
	ErrFailedToReadHeader       = "failed to read disc header"
	ErrFailedToReadApploader    = "failed to read apploader"
	ErrFailedToReadDOL          = "failed to read DOL header"
	ErrFailedToReadFST          = "failed to read file system table"
	ErrFailedToCreateOutputDir  = "failed to create output directory"
	ErrFailedToCreateOutputFile = "failed to create output file"
	ErrFailedToExtractFile      = "failed to extract file"
	ErrFailedToWriteImage       = "failed to write output image"
	ErrInvalidEntryTag          = "invalid tag byte in FST entry"
	ErrRootNotDirectory         = "root FST entry is not a directory"
	ErrEntryNameNotUTF8         = "FST entry name is not valid UTF-8"
	ErrInvalidMagicWord         = "invalid magic word, not a GCM image"
	ErrOutputAlreadyExists      = "output path already exists"
	ErrEntryNotFound            = "no entry found for path"
	ErrNotEnoughSpace           = "not enough space"
	ErrOverlappingPlacement     = "file placement overlaps the previous section"
	ErrFailedToRemoveOutput     = "failed to remove partial image %s: %v"
)

// Warning messages
const (
	WarnFSTSizeMismatch = "Game.toc is %d bytes but the header says %d"
)

// Info messages
const (
	InfoImageOpened       = "GCM image opened"
	InfoFilesExtracted    = "Files extracted"
	InfoImageRebuilt      = "Image rebuilt successfully"
	InfoFSTRebuilt        = "File system table rebuilt"
	InfoHeaderPatched     = "Disc header patched"
	InfoSystemDataWritten = "System data written back to root"
)

// Debug messages
const (
	DebugEntryDecoded     = "Entry %d: tag=%d name_offset=%d"
	DebugDirectoryClosed  = "Directory %d closed: file_count=%d next_index=%d"
	DebugFilePlaced       = "Placed %s at offset 0x%X (%d bytes)"
	DebugSectionLayout    = "Section %s: start=0x%X len=%d"
	DebugStringTableEnd   = "String table ends at 0x%X"
	DebugRebuildTraversal = "Walking %s (index %d)"
)

// LogInfo logs an informational message
func LogInfo(message string, args ...interface{}) {
	logrus.Infof(message, args...)
}

// LogWarn logs a warning message
func LogWarn(message string, args ...interface{}) {
	logrus.Warnf(message, args...)
}

// LogError logs an error message
func LogError(message string, args ...interface{}) {
	logrus.Errorf(message, args...)
}

// LogDebug logs a debug message (only if VerboseMode is enabled)
func LogDebug(message string, args ...interface{}) {
	if !VerboseMode {
		return
	}
	logrus.Debugf(message, args...)
}

// FormatError creates a formatted error with additional context
func FormatError(baseMessage string, details interface{}) error {
	if err, ok := details.(error); ok {
		return fmt.Errorf("%s: %w", baseMessage, err)
	}
	return fmt.Errorf("%s: %v", baseMessage, details)
}
