package extract

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/spf13/afero"

	"github.com/clearcontract-ai/pipeline"
)

// FileExtractor reads plain-text contract documents from a filesystem.
// Pages are separated by form feed characters; a file with no form feeds is
// a single page. It implements both the extractor and resolver collaborator
// roles so a run can be wired entirely against local files.
type FileExtractor struct {
	fs afero.Fs
}

// NewFileExtractor reads from the OS filesystem.
func NewFileExtractor() *FileExtractor {
	return &FileExtractor{fs: afero.NewOsFs()}
}

// NewFileExtractorFs reads from the given filesystem.
func NewFileExtractorFs(fs afero.Fs) *FileExtractor {
	return &FileExtractor{fs: fs}
}

func (e *FileExtractor) Resolve(ctx context.Context, documentRef string) error {
	info, err := e.fs.Stat(documentRef)
	if err != nil {
		return fmt.Errorf("document %q not accessible: %w", documentRef, err)
	}
	if info.IsDir() {
		return fmt.Errorf("document %q is a directory", documentRef)
	}
	if info.Size() == 0 {
		return fmt.Errorf("document %q is empty", documentRef)
	}
	return nil
}

func (e *FileExtractor) Extract(ctx context.Context, documentRef string, opts pipeline.ExtractOptions) (*pipeline.ExtractedDocument, error) {
	refs, err := e.PageRefs(ctx, documentRef)
	if err != nil {
		return nil, err
	}
	doc := &pipeline.ExtractedDocument{
		Metadata: map[string]string{"source": documentRef},
	}
	var sum float64
	for _, ref := range refs {
		page, err := e.ExtractPage(ctx, ref, opts)
		if err != nil {
			return nil, err
		}
		doc.Pages = append(doc.Pages, *page)
		doc.Text += page.Text + "\n"
		sum += page.Confidence
	}
	if len(doc.Pages) > 0 {
		doc.Confidence = sum / float64(len(doc.Pages))
	}
	return doc, nil
}

func (e *FileExtractor) PageRefs(ctx context.Context, documentRef string) ([]pipeline.PageRef, error) {
	pages, err := e.readPages(documentRef)
	if err != nil {
		return nil, err
	}
	refs := make([]pipeline.PageRef, len(pages))
	for i := range pages {
		refs[i] = pipeline.PageRef{
			Number: i + 1,
			Ref:    fmt.Sprintf("%s#%d", documentRef, i+1),
		}
	}
	return refs, nil
}

func (e *FileExtractor) ExtractPage(ctx context.Context, page pipeline.PageRef, opts pipeline.ExtractOptions) (*pipeline.ExtractedPage, error) {
	documentRef, _, found := strings.Cut(page.Ref, "#")
	if !found {
		return nil, fmt.Errorf("page ref %q has no page number", page.Ref)
	}
	pages, err := e.readPages(documentRef)
	if err != nil {
		return nil, err
	}
	if page.Number < 1 || page.Number > len(pages) {
		return nil, fmt.Errorf("page %d out of range for %q (%d pages)", page.Number, documentRef, len(pages))
	}
	text := pages[page.Number-1]
	if opts.Enhancement > 0 {
		text = normalizeWhitespace(text)
	}
	return &pipeline.ExtractedPage{
		Number:     page.Number,
		Text:       text,
		Confidence: textConfidence(text),
	}, nil
}

func (e *FileExtractor) readPages(documentRef string) ([]string, error) {
	raw, err := afero.ReadFile(e.fs, documentRef)
	if err != nil {
		return nil, fmt.Errorf("read document %q: %w", documentRef, err)
	}
	return strings.Split(string(raw), "\f"), nil
}

// normalizeWhitespace collapses runs of spaces and tabs. Applied on retry
// passes, where the first read may have produced ragged layout text.
func normalizeWhitespace(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.Join(strings.Fields(line), " ")
	}
	return strings.Join(lines, "\n")
}

// textConfidence scores a page by the share of printable, sensible content.
// Empty pages score zero; pages dominated by replacement or control
// characters score low.
func textConfidence(text string) float64 {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return 0
	}
	good, total := 0, 0
	for _, r := range trimmed {
		total++
		if r == '�' || (unicode.IsControl(r) && r != '\n' && r != '\t' && r != '\r') {
			continue
		}
		good++
	}
	confidence := float64(good) / float64(total)
	if confidence > 0.98 {
		confidence = 0.98
	}
	return confidence
}
