package mandate

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/mstgnz/payflow/apperr"
)

// VaultStore stores and retrieves payment-method references by opaque
// token. Implementations must never expose the underlying PAN/account
// number through any method other than Retrieve, and Retrieve is only ever
// called from inside a connector's request-building step, never logged.
type VaultStore interface {
	Store(ctx context.Context, raw PaymentMethodData) (token string, err error)
	Retrieve(ctx context.Context, token string) (PaymentMethodData, error)
	Delete(ctx context.Context, token string) error
}

// PaymentMethodData is the sensitive payload a vault stores. It is never
// marshaled into an audit log entry; audit.Emitter redacts any field with
// this type by name before persisting.
type PaymentMethodData struct {
	CardNumber string
	ExpMonth   string
	ExpYear    string
	CVC        string
}

// InMemoryVault is a process-local VaultStore, suitable for tests and for
// connectors that tokenize on the connector's own side (Stripe, Iyzico)
// where the engine only ever needs to round-trip their token, never the PAN.
type InMemoryVault struct {
	mu     sync.RWMutex
	tokens map[string]PaymentMethodData
}

// NewInMemoryVault returns an empty InMemoryVault.
func NewInMemoryVault() *InMemoryVault {
	return &InMemoryVault{tokens: make(map[string]PaymentMethodData)}
}

func (v *InMemoryVault) Store(_ context.Context, raw PaymentMethodData) (string, error) {
	token := fmt.Sprintf("vault_%s", uuid.NewString())
	v.mu.Lock()
	v.tokens[token] = raw
	v.mu.Unlock()
	return token, nil
}

func (v *InMemoryVault) Retrieve(_ context.Context, token string) (PaymentMethodData, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	data, ok := v.tokens[token]
	if !ok {
		return PaymentMethodData{}, apperr.New(apperr.KindNotFound, "vault token not found").With("token", token)
	}
	return data, nil
}

func (v *InMemoryVault) Delete(_ context.Context, token string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.tokens, token)
	return nil
}
