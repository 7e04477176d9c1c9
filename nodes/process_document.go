package nodes

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/clearcontract-ai/pipeline"
)

// maxPageConcurrency bounds the number of pages extracted in parallel.
const maxPageConcurrency = 4

// ProcessDocument runs the OCR/extraction collaborator against the source
// document. When the extractor can address individual pages, pages are
// processed concurrently; a bounded share of page failures is tolerated and
// recorded rather than failing the step. On retry the extraction runs with a
// stronger enhancement level derived from the attempt number, so a re-run
// OCR pass is a genuinely different pass.
type ProcessDocument struct {
	Extractor pipeline.DocumentExtractor

	// MaxFailedPageShare is the fraction of pages allowed to fail before the
	// step itself reports a retryable failure. Zero means the default of
	// one third.
	MaxFailedPageShare float64
}

func (n *ProcessDocument) Step() pipeline.Step {
	return pipeline.StepProcessDocument
}

func (n *ProcessDocument) Execute(ctx context.Context, state *pipeline.WorkflowState) pipeline.NodeResult {
	if n.Extractor == nil {
		return pipeline.Fatal(pipeline.NewFatalError(n.Step(), fmt.Errorf("no document extractor configured")))
	}
	opts := pipeline.ExtractOptions{Enhancement: state.RetryCount(n.Step())}

	if paged, ok := n.Extractor.(pipeline.PagedExtractor); ok {
		return n.executePaged(ctx, state, paged, opts)
	}

	doc, err := n.Extractor.Extract(ctx, state.DocumentRef(), opts)
	if err != nil {
		return n.classify(err)
	}
	return pipeline.SuccessWithConfidence(documentResult(doc), doc.Confidence)
}

func (n *ProcessDocument) executePaged(ctx context.Context, state *pipeline.WorkflowState, extractor pipeline.PagedExtractor, opts pipeline.ExtractOptions) pipeline.NodeResult {
	refs, err := extractor.PageRefs(ctx, state.DocumentRef())
	if err != nil {
		return n.classify(err)
	}
	if len(refs) == 0 {
		return pipeline.Fatal(pipeline.NewValidationError(n.Step(), "document has no pages"))
	}

	var mutex sync.Mutex
	pages := make([]*pipeline.ExtractedPage, 0, len(refs))
	var failed []int

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(maxPageConcurrency)
	for _, ref := range refs {
		ref := ref
		group.Go(func() error {
			page, pageErr := extractor.ExtractPage(groupCtx, ref, opts)
			mutex.Lock()
			defer mutex.Unlock()
			if pageErr != nil {
				failed = append(failed, ref.Number)
				return nil // partial page failure is tolerated, not fatal
			}
			pages = append(pages, page)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return n.classify(err)
	}

	maxShare := n.MaxFailedPageShare
	if maxShare <= 0 {
		maxShare = 1.0 / 3.0
	}
	if float64(len(failed)) > maxShare*float64(len(refs)) {
		return pipeline.Retryable(pipeline.NewTransientInvocationError(
			fmt.Errorf("%d of %d pages failed extraction", len(failed), len(refs))))
	}

	sort.Slice(pages, func(i, j int) bool { return pages[i].Number < pages[j].Number })
	sort.Ints(failed)

	result := pipeline.NewDocumentResult()
	result.FailedPages = append(result.FailedPages, failed...)
	var texts []string
	var confidenceSum float64
	for _, page := range pages {
		texts = append(texts, page.Text)
		confidenceSum += page.Confidence
		result.Pages = append(result.Pages, pipeline.PageResult{
			Number:     page.Number,
			Text:       page.Text,
			Diagrams:   page.Diagrams,
			Confidence: page.Confidence,
		})
	}
	result.Text = strings.Join(texts, "\n")
	result.Metadata["page_count"] = fmt.Sprintf("%d", len(refs))

	// Failed pages drag the confidence down; the gate decides whether the
	// degraded read is still usable.
	confidence := confidenceSum / float64(len(refs))
	result.Confidence = confidence
	return pipeline.SuccessWithConfidence(result, confidence)
}

func (n *ProcessDocument) classify(err error) pipeline.NodeResult {
	perr := pipeline.ClassifyError(n.Step(), err)
	if perr.Retryable() {
		return pipeline.Retryable(perr)
	}
	return pipeline.Fatal(perr)
}

func documentResult(doc *pipeline.ExtractedDocument) *pipeline.DocumentResult {
	result := pipeline.NewDocumentResult()
	result.Text = doc.Text
	result.Confidence = doc.Confidence
	for k, v := range doc.Metadata {
		result.Metadata[k] = v
	}
	for _, page := range doc.Pages {
		result.Pages = append(result.Pages, pipeline.PageResult{
			Number:     page.Number,
			Text:       page.Text,
			Diagrams:   page.Diagrams,
			Confidence: page.Confidence,
		})
	}
	if len(doc.Pages) > 0 {
		result.Metadata["page_count"] = fmt.Sprintf("%d", len(doc.Pages))
	}
	return result
}
