package nodes_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/clearcontract-ai/pipeline"
	"github.com/clearcontract-ai/pipeline/nodes"
)

type stubResolver struct {
	err error
}

func (s *stubResolver) Resolve(ctx context.Context, documentRef string) error {
	return s.err
}

func TestValidateInput(t *testing.T) {
	node := &nodes.ValidateInput{}

	t.Run("accepts a well-formed request", func(t *testing.T) {
		state := pipeline.NewWorkflowState("", pipeline.RunRequest{
			DocumentRef:    "contract.txt",
			Jurisdiction:   "nsw",
			ContractType:   "purchase_agreement",
			PurchaseMethod: "auction",
		})
		result := node.Execute(context.Background(), state)
		require.Equal(t, pipeline.OutcomeSuccess, result.Outcome)

		validation := result.Output.(*pipeline.InputValidation)
		require.Equal(t, pipeline.JurisdictionNSW, validation.Jurisdiction)
		require.Equal(t, pipeline.ContractPurchaseAgreement, validation.ContractType)
		require.Equal(t, pipeline.PurchaseAuction, validation.PurchaseMethod)
		require.Equal(t, pipeline.UseResidential, validation.UseCategory)
	})

	t.Run("rejects a missing document reference", func(t *testing.T) {
		state := pipeline.NewWorkflowState("", pipeline.RunRequest{Jurisdiction: "NSW", ContractType: "purchase_agreement"})
		result := node.Execute(context.Background(), state)
		require.Equal(t, pipeline.OutcomeFatal, result.Outcome)
		require.Equal(t, pipeline.ErrorKindValidation, result.Err.Kind)
	})

	t.Run("rejects an unknown jurisdiction", func(t *testing.T) {
		state := pipeline.NewWorkflowState("", pipeline.RunRequest{
			DocumentRef: "contract.txt", Jurisdiction: "ZZ", ContractType: "purchase_agreement",
		})
		result := node.Execute(context.Background(), state)
		require.Equal(t, pipeline.OutcomeFatal, result.Outcome)
		require.Equal(t, pipeline.ErrorKindValidation, result.Err.Kind)
	})

	t.Run("rejects an unknown contract type", func(t *testing.T) {
		state := pipeline.NewWorkflowState("", pipeline.RunRequest{
			DocumentRef: "contract.txt", Jurisdiction: "NSW", ContractType: "lease",
		})
		result := node.Execute(context.Background(), state)
		require.Equal(t, pipeline.OutcomeFatal, result.Outcome)
	})

	t.Run("rejects an unresolvable document", func(t *testing.T) {
		resolving := &nodes.ValidateInput{Resolver: &stubResolver{err: errors.New("no such file")}}
		state := pipeline.NewWorkflowState("", pipeline.RunRequest{
			DocumentRef: "missing.txt", Jurisdiction: "NSW", ContractType: "purchase_agreement",
		})
		result := resolving.Execute(context.Background(), state)
		require.Equal(t, pipeline.OutcomeFatal, result.Outcome)
		require.Equal(t, pipeline.ErrorKindValidation, result.Err.Kind)
	})

	t.Run("defaults unknown purchase method and use", func(t *testing.T) {
		state := pipeline.NewWorkflowState("", pipeline.RunRequest{
			DocumentRef: "contract.txt", Jurisdiction: "VIC", ContractType: "off_the_plan",
		})
		result := node.Execute(context.Background(), state)
		require.Equal(t, pipeline.OutcomeSuccess, result.Outcome)
		validation := result.Output.(*pipeline.InputValidation)
		require.Equal(t, pipeline.PurchasePrivateTreaty, validation.PurchaseMethod)
		require.Equal(t, pipeline.UseResidential, validation.UseCategory)
	})
}
