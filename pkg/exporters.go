// Package pkg: GCMProcessor ties the decoded sections together and exposes
// the operations behind the CLI: dump a whole image to a directory tree,
// extract single entries, list directories, and rebuild an image from a
// host tree.
package pkg

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/hansbonini/gcmtools/pkg/common"
	"github.com/hansbonini/gcmtools/pkg/gcm"
)

// Disc bundles the four decoded sections of one open image
type Disc struct {
	Header    *gcm.Header
	Apploader *gcm.Apploader
	DOL       *gcm.DOLHeader
	FST       *FST
}

// OpenDisc decodes the header, apploader, DOL header and FST from an image
func OpenDisc(r io.ReadSeeker) (*Disc, error) {
	return OpenDiscAt(r, 0)
}

// OpenDiscAt decodes an image whose disc header begins at base instead of
// the start of the stream. Every section offset read from the header is
// taken relative to base, so a dump embedded in a larger file can still be
// inspected.
func OpenDiscAt(r io.ReadSeeker, base int64) (*Disc, error) {
	header, err := gcm.DecodeHeader(r, base)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", common.ErrFailedToReadHeader, err)
	}
	apploader, err := gcm.DecodeApploader(r, base+gcm.ApploaderOffset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", common.ErrFailedToReadApploader, err)
	}
	dol, err := gcm.DecodeDOLHeader(r, base+int64(header.DOLOffset))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", common.ErrFailedToReadDOL, err)
	}
	fst, err := DecodeFST(r, base+int64(header.FSTOffset))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", common.ErrFailedToReadFST, err)
	}

	return &Disc{
		Header:    header,
		Apploader: apploader,
		DOL:       dol,
		FST:       fst,
	}, nil
}

// Layout builds the offset-sorted section index for this disc
func (d *Disc) Layout() *Layout {
	return NewLayout(d.Header, d.Apploader, d.DOL, d.FST)
}

// ExtractFileSystem extracts the whole tree under destRoot. callback, when
// non-nil, receives the cumulative number of files extracted so far after
// each file. Returns the number of files extracted.
func (f *FST) ExtractFileSystem(destRoot string, r io.ReadSeeker, callback func(int)) (int, error) {
	return f.extractEntry(f.Entries[0], destRoot, r, 0, callback)
}

// ExtractEntry extracts one entry (a file, or a directory subtree) under
// dest, starting the progress count at startCount so progress can span
// multiple calls.
func (f *FST) ExtractEntry(entry Entry, dest string, r io.ReadSeeker, startCount int, callback func(int)) (int, error) {
	return f.extractEntry(entry, dest, r, startCount, callback)
}

func (f *FST) extractEntry(entry Entry, dest string, r io.ReadSeeker, startCount int, callback func(int)) (int, error) {
	count := startCount

	switch e := entry.(type) {
	case *DirectoryEntry:
		if err := os.MkdirAll(dest, 0755); err != nil {
			return 0, fmt.Errorf("%s %s: %w", common.ErrFailedToCreateOutputDir, dest, err)
		}
		for it := e.IterContents(f.Entries); ; {
			child := it.Next()
			if child == nil {
				break
			}
			added, err := f.extractEntry(child, filepath.Join(dest, displayName(child)), r, count, callback)
			if err != nil {
				return 0, err
			}
			count += added
		}
	case *FileEntry:
		if err := e.copyTo(r, dest); err != nil {
			return 0, fmt.Errorf("%s %s: %w", common.ErrFailedToExtractFile, e.FullPath, err)
		}
		count++
		if callback != nil {
			callback(count)
		}
	}

	return count - startCount, nil
}

// copyTo copies exactly Size bytes of file contents from the image into a
// new host file, using a bounded chunk buffer.
func (e *FileEntry) copyTo(r io.ReadSeeker, dest string) error {
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := r.Seek(int64(e.FileOffset), io.SeekStart); err != nil {
		return err
	}
	chunk := make([]byte, WriteChunkSize)
	_, err = io.CopyBuffer(out, io.LimitReader(r, int64(e.Size)), chunk)
	return err
}

// FormatLong renders an entry in the long listing form: type, size (or
// immediate child count for directories), full path.
func FormatLong(entry Entry) string {
	var ftype byte
	var size uint64
	switch e := entry.(type) {
	case *FileEntry:
		ftype, size = '-', e.Size
	case *DirectoryEntry:
		ftype, size = 'd', uint64(e.FileCount)
	}
	// 2^32 - 1 is 10 digits wide in decimal
	return fmt.Sprintf("%c %10d %s", ftype, size, entry.Info().FullPath)
}

// GCMProcessor handles whole-image operations (dump, extract, rebuild)
type GCMProcessor struct {
	fs afero.Fs
}

// NewGCMProcessor creates a processor backed by the host filesystem
func NewGCMProcessor() *GCMProcessor {
	return &GCMProcessor{fs: afero.NewOsFs()}
}

// NewGCMProcessorWithFs creates a processor backed by the given filesystem
func NewGCMProcessorWithFs(fs afero.Fs) *GCMProcessor {
	return &GCMProcessor{fs: fs}
}

// Dump extracts an entire image under outputDir: the raw system sections
// into &&systemdata plus the full file tree. outputDir must not already
// exist. callback receives the cumulative file count during extraction.
func (p *GCMProcessor) Dump(inputFile, outputDir string, callback func(int)) error {
	if _, err := os.Stat(outputDir); err == nil {
		return common.FormatError(common.ErrOutputAlreadyExists, outputDir)
	}

	image, err := os.Open(inputFile)
	if err != nil {
		return fmt.Errorf("%s: %w", common.ErrFailedToOpenImage, err)
	}
	defer image.Close()

	disc, err := OpenDisc(image)
	if err != nil {
		return err
	}

	if err := p.dumpSystemData(image, disc, outputDir); err != nil {
		return err
	}

	count, err := disc.FST.ExtractFileSystem(outputDir, image, callback)
	if err != nil {
		return err
	}
	common.LogInfo(common.InfoFilesExtracted+": %d", count)

	return nil
}

// dumpSystemData writes the raw header, apploader, DOL and FST sections
// into outputDir/&&systemdata.
func (p *GCMProcessor) dumpSystemData(image io.ReadSeeker, disc *Disc, outputDir string) error {
	systemDir := filepath.Join(outputDir, gcm.SystemDataDir)
	if err := os.MkdirAll(systemDir, 0755); err != nil {
		return fmt.Errorf("%s %s: %w", common.ErrFailedToCreateOutputDir, systemDir, err)
	}

	header, err := os.Create(filepath.Join(outputDir, filepath.FromSlash(gcm.HeaderPath)))
	if err != nil {
		return fmt.Errorf("%s: %w", common.ErrFailedToCreateOutputFile, err)
	}
	defer header.Close()
	if err := disc.Header.Encode(header); err != nil {
		return err
	}

	sections := []struct {
		path    string
		section Section
	}{
		{gcm.ApploaderPath, disc.Apploader},
		{gcm.FSTPath, disc.FST},
	}
	for _, s := range sections {
		if err := p.dumpSection(image, s.section, filepath.Join(outputDir, filepath.FromSlash(s.path))); err != nil {
			return err
		}
	}

	// The DOL section covers only its header; the full executable spans
	// up to the end of its furthest segment.
	dol := dolRegion{disc.DOL}
	return p.dumpSection(image, dol, filepath.Join(outputDir, filepath.FromSlash(gcm.DOLPath)))
}

// dolRegion widens the DOL header section to the whole executable
type dolRegion struct {
	dol *gcm.DOLHeader
}

func (r dolRegion) Name() string  { return r.dol.Name() }
func (r dolRegion) Start() uint64 { return r.dol.Start() }
func (r dolRegion) Len() uint64   { return r.dol.DOLSize }

func (p *GCMProcessor) dumpSection(image io.ReadSeeker, section Section, dest string) error {
	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("%s: %w", common.ErrFailedToCreateOutputFile, err)
	}
	defer out.Close()
	return ExtractSection(image, section, out)
}

// ExtractPath extracts the single entry named by path (a file, or a whole
// directory subtree) under dest.
func (p *GCMProcessor) ExtractPath(inputFile, entryPath, dest string, callback func(int)) error {
	image, err := os.Open(inputFile)
	if err != nil {
		return fmt.Errorf("%s: %w", common.ErrFailedToOpenImage, err)
	}
	defer image.Close()

	disc, err := OpenDisc(image)
	if err != nil {
		return err
	}

	entry := disc.FST.EntryForPath(entryPath)
	if entry == nil {
		return common.FormatError(common.ErrEntryNotFound, entryPath)
	}

	target := filepath.Join(dest, displayName(entry))
	if entry.Info().Index == 0 {
		target = dest
	}
	_, err = disc.FST.ExtractEntry(entry, target, image, 0, callback)
	return err
}

// Rebuild builds a fresh image at output from the host tree at rootPath.
// When rebuildSystemData is set, the FST and header are regenerated from
// the tree and written back into &&systemdata first; otherwise the existing
// Game.toc and ISO.hdr are trusted as-is.
func (p *GCMProcessor) Rebuild(rootPath string, output io.Writer, alignment uint64, rebuildSystemData bool, progress func(done, total int)) error {
	var fst *FST
	var dolOffset uint64

	if rebuildSystemData {
		rebuilder, err := NewFSTRebuilder(p.fs, rootPath, alignment)
		if err != nil {
			return err
		}
		result, err := rebuilder.Rebuild()
		if err != nil {
			return err
		}
		fst = result.FST
		dolOffset = result.DOLOffset

		if err := p.writeSystemData(rootPath, result); err != nil {
			return err
		}
	} else {
		toc, err := p.fs.Open(filepath.Join(rootPath, filepath.FromSlash(gcm.FSTPath)))
		if err != nil {
			return fmt.Errorf("%s: %w", common.ErrFailedToReadFST, err)
		}
		fst, err = DecodeFST(toc, 0)
		toc.Close()
		if err != nil {
			return err
		}

		header, err := p.readHeader(rootPath)
		if err != nil {
			return err
		}
		if header.FSTSize != fst.Size {
			common.LogWarn(common.WarnFSTSizeMismatch, fst.Size, header.FSTSize)
		}
		fst.Offset = header.FSTOffset
		dolOffset = header.DOLOffset
	}

	files := []PlacedFile{
		{Offset: 0, Path: filepath.Join(rootPath, filepath.FromSlash(gcm.HeaderPath))},
		{Offset: gcm.ApploaderOffset, Path: filepath.Join(rootPath, filepath.FromSlash(gcm.ApploaderPath))},
		{Offset: fst.Offset, Path: filepath.Join(rootPath, filepath.FromSlash(gcm.FSTPath))},
		{Offset: dolOffset, Path: filepath.Join(rootPath, filepath.FromSlash(gcm.DOLPath))},
	}
	files = append(files, PlacementForFST(fst, fst.Root(), rootPath)...)

	writer := NewImageWriter(p.fs, files, alignment)
	if err := writer.Write(output, progress); err != nil {
		return err
	}
	common.LogInfo(common.InfoImageRebuilt)

	return nil
}

// writeSystemData persists the regenerated Game.toc and the patched ISO.hdr
// back into the host tree's &&systemdata directory.
func (p *GCMProcessor) writeSystemData(rootPath string, result *RebuildResult) error {
	toc, err := p.fs.Create(filepath.Join(rootPath, filepath.FromSlash(gcm.FSTPath)))
	if err != nil {
		return fmt.Errorf("%s: %w", common.ErrFailedToCreateOutputFile, err)
	}
	if err := result.FST.Encode(toc); err != nil {
		toc.Close()
		return err
	}
	if err := toc.Close(); err != nil {
		return err
	}

	header, err := p.readHeader(rootPath)
	if err != nil {
		return err
	}
	header.DOLOffset = result.DOLOffset
	header.FSTOffset = result.FST.Offset
	header.FSTSize = result.FST.Size
	header.MaxFSTSize = result.FST.Size

	out, err := p.fs.Create(filepath.Join(rootPath, filepath.FromSlash(gcm.HeaderPath)))
	if err != nil {
		return fmt.Errorf("%s: %w", common.ErrFailedToCreateOutputFile, err)
	}
	defer out.Close()
	if err := header.Encode(out); err != nil {
		return err
	}
	common.LogInfo(common.InfoSystemDataWritten)

	return nil
}

func (p *GCMProcessor) readHeader(rootPath string) (*gcm.Header, error) {
	file, err := p.fs.Open(filepath.Join(rootPath, filepath.FromSlash(gcm.HeaderPath)))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", common.ErrFailedToReadHeader, err)
	}
	defer file.Close()
	return gcm.DecodeHeader(file, 0)
}
