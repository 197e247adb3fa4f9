package gcm

// System data file names used when a disc is extracted to (or rebuilt from)
// a host directory tree. The "&&systemdata" directory keeps the raw sections
// next to the regular files without clashing with any real disc filename.
const (
	SystemDataDir = "&&systemdata"

	HeaderPath    = "&&systemdata/ISO.hdr"
	ApploaderPath = "&&systemdata/Apploader.ldr"
	DOLPath       = "&&systemdata/Start.dol"
	FSTPath       = "&&systemdata/Game.toc"
)
