package pipeline

import "context"

// Schema describes the structured output a model invocation should produce.
// The concrete shape is owned by the invoker.
type Schema map[string]any

// ModelOutput is the result of one model invocation.
type ModelOutput struct {
	Text       string
	Structured map[string]any
	Confidence float64
}

// ModelInvoker sends a rendered prompt to a language model. Implementations
// classify their failures: recoverable ones (network, rate limit) via
// NewTransientInvocationError, unrecoverable ones (malformed request, auth)
// via NewFatalInvocationError.
type ModelInvoker interface {
	Invoke(ctx context.Context, prompt string, schema Schema) (*ModelOutput, error)
}

// PageRef points to one page of a source document.
type PageRef struct {
	Number int
	Ref    string
}

// ExtractOptions tunes a document extraction pass. Enhancement 0 is the
// default rendering; retries pass progressively higher levels so a re-run
// OCR pass gets a chance at a cleaner read.
type ExtractOptions struct {
	Enhancement int
}

// ExtractedPage is the OCR output for one page.
type ExtractedPage struct {
	Number     int
	Text       string
	Diagrams   []string
	Confidence float64
}

// ExtractedDocument is the OCR output for a whole document.
type ExtractedDocument struct {
	Text       string
	Pages      []ExtractedPage
	Metadata   map[string]string
	Confidence float64
}

// DocumentExtractor is the OCR/extraction collaborator. The extraction model
// itself is opaque to the pipeline.
type DocumentExtractor interface {
	Extract(ctx context.Context, documentRef string, opts ExtractOptions) (*ExtractedDocument, error)
}

// PagedExtractor is implemented by extractors that can address individual
// pages, letting process_document fan pages out concurrently.
type PagedExtractor interface {
	DocumentExtractor
	PageRefs(ctx context.Context, documentRef string) ([]PageRef, error)
	ExtractPage(ctx context.Context, page PageRef, opts ExtractOptions) (*ExtractedPage, error)
}

// DocumentResolver checks that a document reference resolves to real
// content, without fetching it.
type DocumentResolver interface {
	Resolve(ctx context.Context, documentRef string) error
}

// PromptContext carries the runtime values a prompt template may reference.
type PromptContext struct {
	Jurisdiction Jurisdiction
	ContractType ContractType
	Vars         map[string]any
}

// PromptComposer resolves a named step plus runtime context into a fully
// rendered instruction string. Render must never return a string containing
// unresolved template variables.
type PromptComposer interface {
	Render(ctx context.Context, step Step, promptCtx PromptContext) (string, error)
}
