package nodes_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/clearcontract-ai/pipeline"
	"github.com/clearcontract-ai/pipeline/nodes"
)

// stubPagedExtractor serves canned pages, failing those in failPages.
type stubPagedExtractor struct {
	pages       []string
	failPages   map[int]bool
	refsErr     error
	lastOptions pipeline.ExtractOptions
}

func (s *stubPagedExtractor) Extract(ctx context.Context, documentRef string, opts pipeline.ExtractOptions) (*pipeline.ExtractedDocument, error) {
	return nil, errors.New("not used")
}

func (s *stubPagedExtractor) PageRefs(ctx context.Context, documentRef string) ([]pipeline.PageRef, error) {
	if s.refsErr != nil {
		return nil, s.refsErr
	}
	refs := make([]pipeline.PageRef, len(s.pages))
	for i := range s.pages {
		refs[i] = pipeline.PageRef{Number: i + 1, Ref: fmt.Sprintf("%s#%d", documentRef, i+1)}
	}
	return refs, nil
}

func (s *stubPagedExtractor) ExtractPage(ctx context.Context, page pipeline.PageRef, opts pipeline.ExtractOptions) (*pipeline.ExtractedPage, error) {
	s.lastOptions = opts
	if s.failPages[page.Number] {
		return nil, errors.New("unreadable page")
	}
	return &pipeline.ExtractedPage{
		Number:     page.Number,
		Text:       s.pages[page.Number-1],
		Confidence: 0.9,
	}, nil
}

func TestProcessDocumentPaged(t *testing.T) {
	extractor := &stubPagedExtractor{pages: []string{"page one", "page two", "page three"}}
	node := &nodes.ProcessDocument{Extractor: extractor}
	state := newState(t, pipeline.RunRequest{})

	result := node.Execute(context.Background(), state)
	require.Equal(t, pipeline.OutcomeSuccess, result.Outcome)
	require.True(t, result.Scored)
	require.InDelta(t, 0.9, result.Confidence, 1e-9)

	doc := result.Output.(*pipeline.DocumentResult)
	require.Len(t, doc.Pages, 3)
	require.Empty(t, doc.FailedPages)
	require.Equal(t, "3", doc.Metadata["page_count"])
	// Pages come back in order regardless of extraction concurrency.
	for i, page := range doc.Pages {
		require.Equal(t, i+1, page.Number)
	}
	require.Equal(t, "page one\npage two\npage three", doc.Text)
}

func TestProcessDocumentToleratesBoundedPageFailures(t *testing.T) {
	extractor := &stubPagedExtractor{
		pages:     []string{"one", "two", "three", "four", "five", "six"},
		failPages: map[int]bool{4: true},
	}
	node := &nodes.ProcessDocument{Extractor: extractor}
	state := newState(t, pipeline.RunRequest{})

	result := node.Execute(context.Background(), state)
	require.Equal(t, pipeline.OutcomeSuccess, result.Outcome)

	doc := result.Output.(*pipeline.DocumentResult)
	require.Equal(t, []int{4}, doc.FailedPages)
	require.Len(t, doc.Pages, 5)
	// Failed pages drag the confidence down like zero-confidence pages.
	require.InDelta(t, 0.9*5.0/6.0, result.Confidence, 1e-9)
}

func TestProcessDocumentTooManyFailedPages(t *testing.T) {
	extractor := &stubPagedExtractor{
		pages:     []string{"one", "two", "three"},
		failPages: map[int]bool{1: true, 2: true},
	}
	node := &nodes.ProcessDocument{Extractor: extractor}
	state := newState(t, pipeline.RunRequest{})

	result := node.Execute(context.Background(), state)
	require.Equal(t, pipeline.OutcomeRetryable, result.Outcome)
	require.Equal(t, pipeline.ErrorKindTransient, result.Err.Kind)
}

func TestProcessDocumentEnhancementFollowsRetries(t *testing.T) {
	extractor := &stubPagedExtractor{pages: []string{"text"}}
	node := &nodes.ProcessDocument{Extractor: extractor}
	state := newState(t, pipeline.RunRequest{})

	node.Execute(context.Background(), state)
	require.Equal(t, 0, extractor.lastOptions.Enhancement)

	// A retry runs the OCR pass at a stronger enhancement level.
	state.IncrementRetry(pipeline.StepProcessDocument)
	node.Execute(context.Background(), state)
	require.Equal(t, 1, extractor.lastOptions.Enhancement)
}

func TestProcessDocumentFailures(t *testing.T) {
	t.Run("empty document is fatal", func(t *testing.T) {
		node := &nodes.ProcessDocument{Extractor: &stubPagedExtractor{}}
		result := node.Execute(context.Background(), newState(t, pipeline.RunRequest{}))
		require.Equal(t, pipeline.OutcomeFatal, result.Outcome)
		require.Equal(t, pipeline.ErrorKindValidation, result.Err.Kind)
	})

	t.Run("transient listing errors are retryable", func(t *testing.T) {
		node := &nodes.ProcessDocument{Extractor: &stubPagedExtractor{refsErr: errors.New("connection reset")}}
		result := node.Execute(context.Background(), newState(t, pipeline.RunRequest{}))
		require.Equal(t, pipeline.OutcomeRetryable, result.Outcome)
	})

	t.Run("missing extractor is fatal", func(t *testing.T) {
		node := &nodes.ProcessDocument{}
		result := node.Execute(context.Background(), newState(t, pipeline.RunRequest{}))
		require.Equal(t, pipeline.OutcomeFatal, result.Outcome)
	})
}
