package mandate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mstgnz/payflow/connector"
)

func TestApplyCapabilityDowngrade(t *testing.T) {
	supportsMandates := connector.Capability{SupportsMandates: true}
	noMandates := connector.Capability{SupportsMandates: false}

	assert.Equal(t, FutureUsageOffSession, ApplyCapabilityDowngrade(supportsMandates, FutureUsageOffSession))
	assert.Equal(t, FutureUsageOnSession, ApplyCapabilityDowngrade(noMandates, FutureUsageOffSession))
	assert.Equal(t, FutureUsageOnSession, ApplyCapabilityDowngrade(noMandates, FutureUsageOnSession))
	assert.Equal(t, FutureUsageOnSession, ApplyCapabilityDowngrade(supportsMandates, FutureUsageOnSession))
}

func TestMandateRevoke(t *testing.T) {
	m := &Mandate{Status: StatusActive}
	assert.NoError(t, m.Revoke())
	assert.Equal(t, StatusRevoked, m.Status)

	assert.NoError(t, m.Revoke())

	expired := &Mandate{Status: StatusExpired}
	assert.Error(t, expired.Revoke())
}

func TestVaultStoreRetrieveDelete(t *testing.T) {
	v := NewInMemoryVault()
	token, err := v.Store(nil, PaymentMethodData{CardNumber: "4111111111111111", ExpMonth: "01", ExpYear: "30", CVC: "123"})
	assert.NoError(t, err)
	assert.NotEmpty(t, token)

	data, err := v.Retrieve(nil, token)
	assert.NoError(t, err)
	assert.Equal(t, "4111111111111111", data.CardNumber)

	assert.NoError(t, v.Delete(nil, token))
	_, err = v.Retrieve(nil, token)
	assert.Error(t, err)
}
