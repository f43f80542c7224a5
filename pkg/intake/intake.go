package intake

import (
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/klauspost/compress/zip"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"

	"github.com/hashgraph-online/certificate-sdk-go/pkg/issuance"
)

const defaultMaxFileSize = 20 << 20

// RegistrationNumberPattern matches seven digit registration numbers.
var RegistrationNumberPattern = regexp.MustCompile(`^\d{7}$`)

const (
	SkipUnsupportedType = "unsupported file type"
	SkipInvalidID       = "invalid external ID"
	SkipDuplicateID     = "duplicate external ID"
	SkipEmpty           = "empty file"
	SkipTooLarge        = "file too large"
	SkipUnreadable      = "unreadable archive entry"
)

var errEntryTooLarge = errors.New(SkipTooLarge)

type Options struct {
	// Pattern, when set, must match every external ID.
	Pattern *regexp.Regexp
	// Extensions lists accepted lower-case extensions. Defaults to ".pdf".
	Extensions  []string
	MaxFileSize int64
	Logger      zerolog.Logger
}

type Document struct {
	ExternalID string
	FileName   string
	Content    []byte
}

type Skip struct {
	FileName string `json:"file"`
	Reason   string `json:"reason"`
}

// Result lists accepted documents ordered by external ID, and skipped
// entries in archive order.
type Result struct {
	Documents []Document
	Skipped   []Skip
}

// BatchDocuments converts the accepted documents into an issuance request
// body.
func (r Result) BatchDocuments() []issuance.BatchDocument {
	documents := make([]issuance.BatchDocument, 0, len(r.Documents))
	for _, document := range r.Documents {
		documents = append(documents, issuance.BatchDocument{
			ExternalID: document.ExternalID,
			Content:    document.Content,
			FileName:   document.FileName,
		})
	}
	return documents
}

type Reader struct {
	fs          afero.Fs
	pattern     *regexp.Regexp
	extensions  map[string]struct{}
	maxFileSize int64
	log         zerolog.Logger
}

// NewReader creates a Reader on the host file system.
func NewReader(options Options) *Reader {
	return NewReaderFs(afero.NewOsFs(), options)
}

// NewReaderFs creates a Reader on fs.
func NewReaderFs(fs afero.Fs, options Options) *Reader {
	extensions := options.Extensions
	if len(extensions) == 0 {
		extensions = []string{".pdf"}
	}
	accepted := make(map[string]struct{}, len(extensions))
	for _, extension := range extensions {
		extension = strings.ToLower(strings.TrimSpace(extension))
		if !strings.HasPrefix(extension, ".") {
			extension = "." + extension
		}
		accepted[extension] = struct{}{}
	}

	maxFileSize := options.MaxFileSize
	if maxFileSize <= 0 {
		maxFileSize = defaultMaxFileSize
	}

	return &Reader{
		fs:          fs,
		pattern:     options.Pattern,
		extensions:  accepted,
		maxFileSize: maxFileSize,
		log:         options.Logger.With().Str("component", "intake").Logger(),
	}
}

// Read dispatches on the type of name: directories are read with ReadDir,
// everything else as a ZIP archive.
func (r *Reader) Read(name string) (Result, error) {
	info, err := r.fs.Stat(name)
	if err != nil {
		return Result{}, fmt.Errorf("failed to stat %s: %w", name, err)
	}
	if info.IsDir() {
		return r.ReadDir(name)
	}
	return r.ReadZip(name)
}

// ReadZip reads every entry of the archive at name.
func (r *Reader) ReadZip(name string) (Result, error) {
	file, err := r.fs.Open(name)
	if err != nil {
		return Result{}, fmt.Errorf("failed to open archive: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return Result{}, fmt.Errorf("failed to stat archive: %w", err)
	}

	archive, err := zip.NewReader(file, info.Size())
	if err != nil {
		return Result{}, fmt.Errorf("failed to read archive %s: %w", name, err)
	}

	collector := r.newCollector()
	for _, entry := range archive.File {
		if entry.FileInfo().IsDir() {
			continue
		}
		entryName := entry.Name
		if !collector.admit(entryName, int64(entry.UncompressedSize64)) {
			continue
		}

		content, err := readEntry(entry, r.maxFileSize)
		switch {
		case errors.Is(err, errEntryTooLarge):
			collector.reject(entryName, SkipTooLarge)
			continue
		case errors.Is(err, zip.ErrFormat), errors.Is(err, zip.ErrChecksum),
			errors.Is(err, zip.ErrAlgorithm), errors.Is(err, io.ErrUnexpectedEOF):
			collector.reject(entryName, fmt.Sprintf("%s: %v", SkipUnreadable, err))
			continue
		case err != nil:
			return Result{}, fmt.Errorf("failed to read %s: %w", entryName, err)
		}
		collector.add(entryName, content)
	}
	return collector.result(), nil
}

// ReadDir reads the regular files directly inside dir. Subdirectories are
// not descended into.
func (r *Reader) ReadDir(dir string) (Result, error) {
	entries, err := afero.ReadDir(r.fs, dir)
	if err != nil {
		return Result{}, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	collector := r.newCollector()
	for _, entry := range entries {
		if entry.IsDir() || !entry.Mode().IsRegular() {
			continue
		}
		if !collector.admit(entry.Name(), entry.Size()) {
			continue
		}

		content, err := afero.ReadFile(r.fs, path.Join(dir, entry.Name()))
		if err != nil {
			return Result{}, fmt.Errorf("failed to read %s: %w", entry.Name(), err)
		}
		collector.add(entry.Name(), content)
	}
	return collector.result(), nil
}

// ExternalIDFromFileName returns the base name of fileName up to its first
// dot.
func ExternalIDFromFileName(fileName string) string {
	base := path.Base(strings.ReplaceAll(fileName, "\\", "/"))
	if index := strings.Index(base, "."); index >= 0 {
		base = base[:index]
	}
	return strings.TrimSpace(base)
}

type collector struct {
	reader    *Reader
	seen      map[string]string
	pending   map[string]string
	documents []Document
	skipped   []Skip
}

func (r *Reader) newCollector() *collector {
	return &collector{
		reader:  r,
		seen:    make(map[string]string),
		pending: make(map[string]string),
	}
}

// admit decides whether fileName should be read, recording a skip if not.
func (c *collector) admit(fileName string, size int64) bool {
	base := path.Base(strings.ReplaceAll(fileName, "\\", "/"))
	if strings.HasPrefix(base, ".") || strings.HasPrefix(fileName, "__MACOSX/") {
		return false
	}

	if _, ok := c.reader.extensions[strings.ToLower(path.Ext(base))]; !ok {
		c.skip(fileName, SkipUnsupportedType)
		return false
	}

	externalID := ExternalIDFromFileName(fileName)
	if externalID == "" || strings.ContainsRune(externalID, 0) ||
		(c.reader.pattern != nil && !c.reader.pattern.MatchString(externalID)) {
		c.skip(fileName, SkipInvalidID)
		return false
	}
	if first, ok := c.seen[externalID]; ok {
		c.skip(fileName, fmt.Sprintf("%s (first seen in %s)", SkipDuplicateID, first))
		return false
	}
	if size == 0 {
		c.skip(fileName, SkipEmpty)
		return false
	}
	if size > c.reader.maxFileSize {
		c.skip(fileName, SkipTooLarge)
		return false
	}

	c.seen[externalID] = fileName
	return true
}

func (c *collector) add(fileName string, content []byte) {
	if len(content) == 0 {
		c.skip(fileName, SkipEmpty)
		return
	}
	c.documents = append(c.documents, Document{
		ExternalID: ExternalIDFromFileName(fileName),
		FileName:   path.Base(strings.ReplaceAll(fileName, "\\", "/")),
		Content:    content,
	})
}

// reject skips an entry that admit accepted but that could not be read, and
// frees its external ID for a later entry.
func (c *collector) reject(fileName, reason string) {
	delete(c.seen, ExternalIDFromFileName(fileName))
	c.skip(fileName, reason)
}

func (c *collector) skip(fileName, reason string) {
	c.reader.log.Debug().Str("file", fileName).Str("reason", reason).Msg("entry skipped")
	c.skipped = append(c.skipped, Skip{FileName: fileName, Reason: reason})
}

func (c *collector) result() Result {
	sort.Slice(c.documents, func(i, j int) bool {
		return c.documents[i].ExternalID < c.documents[j].ExternalID
	})
	c.reader.log.Info().
		Int("accepted", len(c.documents)).
		Int("skipped", len(c.skipped)).
		Msg("intake finished")
	return Result{Documents: c.documents, Skipped: c.skipped}
}

func readEntry(entry *zip.File, limit int64) ([]byte, error) {
	reader, err := entry.Open()
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	content, err := io.ReadAll(io.LimitReader(reader, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(content)) > limit {
		return nil, errEntryTooLarge
	}
	return content, nil
}
