package pipeline

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Jurisdiction is an Australian state or territory.
type Jurisdiction string

const (
	JurisdictionNSW Jurisdiction = "NSW"
	JurisdictionVIC Jurisdiction = "VIC"
	JurisdictionQLD Jurisdiction = "QLD"
	JurisdictionSA  Jurisdiction = "SA"
	JurisdictionWA  Jurisdiction = "WA"
	JurisdictionTAS Jurisdiction = "TAS"
	JurisdictionACT Jurisdiction = "ACT"
	JurisdictionNT  Jurisdiction = "NT"
)

// ParseJurisdiction recognizes a jurisdiction code, case-insensitively.
func ParseJurisdiction(s string) (Jurisdiction, error) {
	j := Jurisdiction(strings.ToUpper(strings.TrimSpace(s)))
	switch j {
	case JurisdictionNSW, JurisdictionVIC, JurisdictionQLD, JurisdictionSA,
		JurisdictionWA, JurisdictionTAS, JurisdictionACT, JurisdictionNT:
		return j, nil
	}
	return "", fmt.Errorf("unrecognized jurisdiction %q", s)
}

// ContractType classifies the contract under analysis.
type ContractType string

const (
	ContractPurchaseAgreement ContractType = "purchase_agreement"
	ContractOffThePlan        ContractType = "off_the_plan"
	ContractCommercialSale    ContractType = "commercial_sale"
)

// ParseContractType recognizes a contract type.
func ParseContractType(s string) (ContractType, error) {
	ct := ContractType(strings.ToLower(strings.TrimSpace(s)))
	switch ct {
	case ContractPurchaseAgreement, ContractOffThePlan, ContractCommercialSale:
		return ct, nil
	}
	return "", fmt.Errorf("unrecognized contract type %q", s)
}

// PurchaseMethod is how the sale was transacted.
type PurchaseMethod string

const (
	PurchasePrivateTreaty PurchaseMethod = "private_treaty"
	PurchaseAuction       PurchaseMethod = "auction"
	PurchaseTender        PurchaseMethod = "tender"
)

// UseCategory classifies the property's intended use.
type UseCategory string

const (
	UseResidential UseCategory = "residential"
	UseCommercial  UseCategory = "commercial"
	UseRural       UseCategory = "rural"
)

// JurisdictionRules holds the legal requirements checked against a contract
// for one jurisdiction.
type JurisdictionRules struct {
	// CoolingOffDays is the statutory cooling-off period in business days.
	// Zero means the jurisdiction has no statutory cooling-off period.
	CoolingOffDays int `yaml:"cooling_off_days"`

	// CoolingOffWaivable reports whether the period can be waived, e.g. by a
	// section 66W certificate in NSW.
	CoolingOffWaivable bool `yaml:"cooling_off_waivable"`

	// CoolingOffAtAuction reports whether the period applies to auction
	// sales. It does not in any Australian jurisdiction, but the rule file
	// keeps it explicit rather than hard-coded.
	CoolingOffAtAuction bool `yaml:"cooling_off_at_auction"`

	// MandatoryTerms names the term fields that must be present for the
	// contract to be considered complete.
	MandatoryTerms []string `yaml:"mandatory_terms"`

	// DisclosureDocuments names vendor disclosure documents the contract
	// must reference.
	DisclosureDocuments []string `yaml:"disclosure_documents"`

	// MaxDepositPercent is the customary deposit ceiling as a percentage of
	// the purchase price; a deposit above it is flagged. Zero disables the
	// check.
	MaxDepositPercent float64 `yaml:"max_deposit_percent"`
}

// RuleSet is the full per-jurisdiction requirement table.
type RuleSet struct {
	Jurisdictions map[Jurisdiction]JurisdictionRules `yaml:"jurisdictions"`
}

// For returns the rules for a jurisdiction.
func (rs *RuleSet) For(j Jurisdiction) (JurisdictionRules, bool) {
	rules, ok := rs.Jurisdictions[j]
	return rules, ok
}

//go:embed rules.yaml
var defaultRulesYAML []byte

// DefaultRules returns the built-in requirement table. The embedded file is
// validated at build of the package's tests; a parse failure here is a
// packaging bug.
func DefaultRules() *RuleSet {
	rs, err := parseRules(defaultRulesYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded rules.yaml invalid: %v", err))
	}
	return rs
}

// LoadRulesFile loads a requirement table from a YAML file, replacing the
// built-in table entirely.
func LoadRulesFile(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	return parseRules(data)
}

func parseRules(data []byte) (*RuleSet, error) {
	var rs RuleSet
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rules: %w", err)
	}
	if len(rs.Jurisdictions) == 0 {
		return nil, fmt.Errorf("rules file defines no jurisdictions")
	}
	for j := range rs.Jurisdictions {
		if _, err := ParseJurisdiction(string(j)); err != nil {
			return nil, err
		}
	}
	return &rs, nil
}
