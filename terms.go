package pipeline

// PartyRole classifies a party named in the contract.
type PartyRole string

const (
	PartyRoleBuyer       PartyRole = "buyer"
	PartyRoleSeller      PartyRole = "seller"
	PartyRoleAgent       PartyRole = "agent"
	PartyRoleConveyancer PartyRole = "conveyancer"
)

// Party is a named party to the contract.
type Party struct {
	Name string    `json:"name"`
	Role PartyRole `json:"role"`
}

// AmountType classifies a monetary figure found in the contract.
type AmountType string

const (
	AmountTypePurchasePrice AmountType = "purchase_price"
	AmountTypeDeposit       AmountType = "deposit"
	AmountTypeOther         AmountType = "other"
)

// FinancialAmount is a monetary figure. Amount is in whole currency units.
type FinancialAmount struct {
	Amount   int64      `json:"amount"`
	Currency string     `json:"currency"`
	Type     AmountType `json:"amount_type"`
}

// DateType classifies a key date found in the contract.
type DateType string

const (
	DateTypeSettlement       DateType = "settlement"
	DateTypeCoolingOffExpiry DateType = "cooling_off_expiry"
	DateTypeContract         DateType = "contract"
	DateTypeOther            DateType = "other"
)

// KeyDate is a significant contract date. Value is an ISO 8601 date string.
type KeyDate struct {
	Type  DateType `json:"date_type"`
	Value string   `json:"date_value"`
}

// ConditionType classifies a contractual condition.
type ConditionType string

const (
	ConditionFinance    ConditionType = "finance"
	ConditionInspection ConditionType = "inspection"
	ConditionSubjectTo  ConditionType = "subject_to"
)

// Condition is a contractual condition the purchase is subject to.
type Condition struct {
	Type        ConditionType `json:"condition_type"`
	Description string        `json:"description"`
	Deadline    string        `json:"deadline,omitempty"`
}

// ContractTerms is the structured output of term extraction. All slices are
// initialized non-nil by NewContractTerms so downstream readers never have to
// guard against absent containers.
type ContractTerms struct {
	Parties          []Party           `json:"parties"`
	Amounts          []FinancialAmount `json:"amounts"`
	Dates            []KeyDate         `json:"dates"`
	Conditions       []Condition       `json:"conditions"`
	LegalReferences  []string          `json:"legal_references"`
	PropertyAddress  string            `json:"property_address,omitempty"`
	CoolingOffWaived bool              `json:"cooling_off_waived"`
}

// NewContractTerms returns an empty-but-typed terms container.
func NewContractTerms() *ContractTerms {
	return &ContractTerms{
		Parties:         []Party{},
		Amounts:         []FinancialAmount{},
		Dates:           []KeyDate{},
		Conditions:      []Condition{},
		LegalReferences: []string{},
	}
}

// Empty reports whether the container was never initialized. A populated
// struct with zero findings is not empty.
func (t *ContractTerms) Empty() bool {
	return t == nil || t.Parties == nil || t.Amounts == nil || t.Dates == nil
}

// TermCount returns the total number of extracted term entries.
func (t *ContractTerms) TermCount() int {
	if t == nil {
		return 0
	}
	return len(t.Parties) + len(t.Amounts) + len(t.Dates) + len(t.Conditions) + len(t.LegalReferences)
}

// Amount returns the first amount of the given type.
func (t *ContractTerms) Amount(typ AmountType) (FinancialAmount, bool) {
	for _, a := range t.Amounts {
		if a.Type == typ {
			return a, true
		}
	}
	return FinancialAmount{}, false
}

// Date returns the first date of the given type.
func (t *ContractTerms) Date(typ DateType) (KeyDate, bool) {
	for _, d := range t.Dates {
		if d.Type == typ {
			return d, true
		}
	}
	return KeyDate{}, false
}

// HasCondition reports whether a condition of the given type is present.
func (t *ContractTerms) HasCondition(typ ConditionType) bool {
	for _, c := range t.Conditions {
		if c.Type == typ {
			return true
		}
	}
	return false
}
