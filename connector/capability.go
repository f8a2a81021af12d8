package connector

import (
	"net/url"
	"time"
)

// AuthShape describes the credential fields a connector expects, so the
// token layer and config loader can validate merchant connector accounts
// without hardcoding per-connector field names.
type AuthShape string

const (
	AuthHeaderKey    AuthShape = "header_key"
	AuthBodyKey      AuthShape = "body_key"
	AuthBasic        AuthShape = "basic"
	AuthSignatureKey AuthShape = "signature_key"
	AuthOAuth        AuthShape = "oauth"
)

// AmountUnit describes which unit a connector expects amounts on the wire,
// generalizing the fact Stripe wants integer cents while most of the
// Turkish-market connectors in the pack want major-unit decimals.
type AmountUnit string

const (
	AmountMajorUnits AmountUnit = "major"
	AmountMinorUnits AmountUnit = "minor"
)

// Capability is the static description of what a connector supports,
// generalizing the per-provider config structs scattered across
// provider/<name>/<name>.go (e.g. provider/stripe/stripe.go's use of
// config["secretKey"]) into one record the registry can query without
// constructing a live connector.
type Capability struct {
	Name                string
	BaseURL             string
	Timeout             time.Duration
	AuthShape           AuthShape
	AmountUnit          AmountUnit
	SupportedMethods    []string
	SupportedCaptures   []string
	SupportedCurrencies []string
	SupportedWebhooks   []WebhookEventClass
	SuccessStatusCodes  []int
	SupportsMandates    bool
	SupportsPayouts     bool
	Supports3DS         bool

	// AllowedRedirectHosts lists the hostnames this connector's redirect/
	// hosted-page URLs are legitimately served from. A connector response
	// claiming a RedirectURL outside this set is treated as an integrity
	// failure rather than forwarded to a client, since nothing downstream
	// re-validates where that URL actually sends the customer's browser.
	AllowedRedirectHosts []string
}

// AcceptsStatusCode reports whether code is one of the connector's declared
// success codes, falling back to the conventional 2xx range when the
// connector declares none.
func (c Capability) AcceptsStatusCode(code int) bool {
	if len(c.SuccessStatusCodes) == 0 {
		return code >= 200 && code < 300
	}
	for _, sc := range c.SuccessStatusCodes {
		if sc == code {
			return true
		}
	}
	return false
}

// SupportsCurrency reports whether ccy (already upper-cased) is in the
// connector's declared currency list. An empty list means "all currencies".
func (c Capability) SupportsCurrency(ccy string) bool {
	if len(c.SupportedCurrencies) == 0 {
		return true
	}
	for _, sc := range c.SupportedCurrencies {
		if sc == ccy {
			return true
		}
	}
	return false
}

// SupportsWebhook reports whether the connector classifies the given event.
func (c Capability) SupportsWebhook(class WebhookEventClass) bool {
	for _, w := range c.SupportedWebhooks {
		if w == class {
			return true
		}
	}
	return false
}

// SupportsMethod reports whether method is in the connector's declared
// payment-method-type list. An empty list means "all methods".
func (c Capability) SupportsMethod(method string) bool {
	if len(c.SupportedMethods) == 0 {
		return true
	}
	for _, m := range c.SupportedMethods {
		if m == method {
			return true
		}
	}
	return false
}

// AllowsRedirectURL reports whether rawURL's host is one this connector has
// declared it legitimately redirects customers to. A connector with no
// declared AllowedRedirectHosts is assumed not to produce redirect URLs at
// all, so any non-empty rawURL from it is rejected rather than silently
// permitted.
func (c Capability) AllowsRedirectURL(rawURL string) bool {
	if rawURL == "" {
		return true
	}
	if len(c.AllowedRedirectHosts) == 0 {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return false
	}
	for _, host := range c.AllowedRedirectHosts {
		if u.Hostname() == host {
			return true
		}
	}
	return false
}
