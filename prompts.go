package pipeline

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// PromptFragment is one selectable piece of a step's prompt. A fragment
// applies when its selectors are empty or contain the run's value. Templates
// reference context values as {{name}}.
type PromptFragment struct {
	Step          Step           `yaml:"step"`
	Jurisdictions []Jurisdiction `yaml:"jurisdictions,omitempty"`
	ContractTypes []ContractType `yaml:"contract_types,omitempty"`
	Template      string         `yaml:"template"`
}

func (f *PromptFragment) applies(promptCtx PromptContext) bool {
	if len(f.Jurisdictions) > 0 && !containsJurisdiction(f.Jurisdictions, promptCtx.Jurisdiction) {
		return false
	}
	if len(f.ContractTypes) > 0 && !containsContractType(f.ContractTypes, promptCtx.ContractType) {
		return false
	}
	return true
}

func containsJurisdiction(list []Jurisdiction, j Jurisdiction) bool {
	for _, candidate := range list {
		if candidate == j {
			return true
		}
	}
	return false
}

func containsContractType(list []ContractType, ct ContractType) bool {
	for _, candidate := range list {
		if candidate == ct {
			return true
		}
	}
	return false
}

var promptVarPattern = regexp.MustCompile(`\{\{(\w+)\}\}`)

// FragmentComposer is a PromptComposer backed by a static fragment table.
// Applicable fragments for a step are joined in order and variables
// substituted from the prompt context; an unresolved variable is an error,
// never passed through to the model.
type FragmentComposer struct {
	fragments []PromptFragment
}

// NewFragmentComposer creates a composer over the given fragment table.
func NewFragmentComposer(fragments []PromptFragment) *FragmentComposer {
	return &FragmentComposer{fragments: fragments}
}

// Render implements PromptComposer.
func (c *FragmentComposer) Render(ctx context.Context, step Step, promptCtx PromptContext) (string, error) {
	var parts []string
	for i := range c.fragments {
		fragment := &c.fragments[i]
		if fragment.Step != step {
			continue
		}
		if !fragment.applies(promptCtx) {
			continue
		}
		parts = append(parts, fragment.Template)
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("no prompt fragments match step %q", step)
	}
	return substituteVars(strings.Join(parts, "\n\n"), promptCtx)
}

func substituteVars(template string, promptCtx PromptContext) (string, error) {
	var missing []string
	rendered := promptVarPattern.ReplaceAllStringFunc(template, func(match string) string {
		name := promptVarPattern.FindStringSubmatch(match)[1]
		switch name {
		case "jurisdiction":
			return string(promptCtx.Jurisdiction)
		case "contract_type":
			return string(promptCtx.ContractType)
		}
		if value, ok := promptCtx.Vars[name]; ok {
			return fmt.Sprintf("%v", value)
		}
		missing = append(missing, name)
		return match
	})
	if len(missing) > 0 {
		return "", fmt.Errorf("unresolved prompt variables: %s", strings.Join(missing, ", "))
	}
	return rendered, nil
}

// DefaultPromptFragments is the built-in prompt table for the term
// extraction step. Real deployments layer jurisdiction-specific fragments on
// top via NewFragmentComposer.
func DefaultPromptFragments() []PromptFragment {
	return []PromptFragment{
		{
			Step: StepExtractTerms,
			Template: "You are reviewing an Australian real-estate contract from {{jurisdiction}}.\n" +
				"Contract type: {{contract_type}}.\n" +
				"Extract the parties, financial amounts, key dates, conditions and legal references\n" +
				"as structured data from the document below.\n\n{{document_text}}",
		},
		{
			Step:          StepExtractTerms,
			Jurisdictions: []Jurisdiction{JurisdictionNSW},
			Template:      "Note any certificate given under section 66W: it removes the statutory cooling-off protection.",
		},
		{
			Step:          StepExtractTerms,
			Jurisdictions: []Jurisdiction{JurisdictionVIC},
			Template:      "Note whether a section 32 vendor statement is referenced.",
		},
	}
}
