package coverage

// Kind identifies which producer should consume a WorkItem.
type Kind string

const (
	KindGcnoGcdaPair     Kind = "gcno_gcda_pair"
	KindProfrawDirectory Kind = "profraw_directory_hint"
	KindLcovInfo         Kind = "lcov_info"
	KindJacocoXML        Kind = "jacoco_xml"
	KindGoCover          Kind = "go_cover"
	KindGcovIntermediate Kind = "gcov_intermediate_text"
	KindCoberturaXML     Kind = "cobertura_xml"
	KindArchiveMember    Kind = "archive_member"
)

// WorkItem is one unit handed from Discovery to a Producer.
type WorkItem struct {
	Kind Kind

	// Path is the on-disk path for file-backed items. Empty for archive
	// members and in-memory payloads.
	Path string

	// GcnoPath/GcdaPath are populated only for KindGcnoGcdaPair; GcdaPath
	// may be empty when a .gcno has no matching .gcda (zero counts).
	GcnoPath string
	GcdaPath string

	// ArchiveName/ArchiveMember identify a zip entry when Kind is
	// KindArchiveMember or the item was read out of an archive.
	ArchiveName   string
	ArchiveMember string

	// Payload holds in-memory bytes when the item did not come from a
	// plain on-disk file (e.g. an archive member already extracted by
	// Discovery).
	Payload []byte

	// SourceRoot is an optional hint for resolving relative paths found
	// inside the artifact.
	SourceRoot string

	// BinaryPath is the instrumented binary to pair with a profraw
	// directory, populated from the --binary-path hint. Only meaningful
	// for KindProfrawDirectory.
	BinaryPath string
}
