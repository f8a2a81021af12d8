package flow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mstgnz/payflow/connector"
	"github.com/mstgnz/payflow/mandate"
)

func TestSetupMandateOperationDowngradesUnsupportedOffSession(t *testing.T) {
	registerTestConnector(t, "test_no_mandates", connector.Capability{SupportsMandates: false})

	rd := &RouterData{
		ConnectorID: "test_no_mandates",
		Request: &SetupMandateRequest{
			PaymentMethodToken: "tok_1",
			RequestedUsage:     mandate.FutureUsageOffSession,
		},
	}

	err := setupMandateOpImpl{}.Domain(context.Background(), rd)
	require.NoError(t, err)

	req := rd.Request.(*SetupMandateRequest)
	assert.Equal(t, mandate.FutureUsageOnSession, req.RequestedUsage, "off_session must be downgraded when the connector can't support mandates")
}

func TestSetupMandateOperationKeepsOffSessionWhenSupported(t *testing.T) {
	registerTestConnector(t, "test_with_mandates", connector.Capability{SupportsMandates: true})

	rd := &RouterData{
		ConnectorID: "test_with_mandates",
		Request: &SetupMandateRequest{
			PaymentMethodToken: "tok_1",
			RequestedUsage:     mandate.FutureUsageOffSession,
		},
	}

	err := setupMandateOpImpl{}.Domain(context.Background(), rd)
	require.NoError(t, err)

	req := rd.Request.(*SetupMandateRequest)
	assert.Equal(t, mandate.FutureUsageOffSession, req.RequestedUsage)
}
