package flow

import (
	"context"
	"strconv"
	"time"

	"github.com/mstgnz/payflow/apperr"
	"github.com/mstgnz/payflow/connector"
	"github.com/mstgnz/payflow/httpexec"
	"github.com/mstgnz/payflow/infra/logger"
	"github.com/mstgnz/payflow/token"
)

// Executor drives one Operation through its full pipeline against one
// Connector, generalizing PaymentService.CreatePayment's log-around-call
// shape (provider/service.go) into the flow-agnostic Validate -> GetTracker
// -> Domain -> UpdateTracker -> [connector call] -> PostUpdateTracker
// sequence every flow follows.
type Executor struct {
	http   *httpexec.Executor
	log    *logger.SystemLogger
	tokens *token.Cache
}

// NewExecutor builds an Executor around the given HTTP executor.
func NewExecutor(http *httpexec.Executor) *Executor {
	return &Executor{http: http, log: logger.GetGlobalLogger()}
}

// WithTokenCache attaches the access-token cache the engine consults before
// calling a connector whose Capability.AuthShape is AuthOAuth. It returns e
// so callers can chain it onto NewExecutor; omitting it (a nil *token.Cache)
// is safe and simply skips the add_access_token step, so existing callers
// that never call it keep working unchanged.
func (e *Executor) WithTokenCache(tokens *token.Cache) *Executor {
	e.tokens = tokens
	return e
}

// Run executes op for rd against conn and store, returning the classified
// error (if any); rd.Response and rd.Err are populated as a side effect so
// callers can inspect the outcome even on failure.
func (e *Executor) Run(ctx context.Context, op Operation, conn connector.Connector, store Store, rd *RouterData) error {
	rd.Flow = op.Name()

	if err := op.Validate(ctx, rd); err != nil {
		return apperr.Wrap(apperr.KindInvalidRequest, err, "flow validation failed").With("flow", string(op.Name()))
	}

	if err := op.GetTracker(ctx, rd, store); err != nil {
		return apperr.Wrap(apperr.KindNotFound, err, "flow tracker lookup failed").With("flow", string(op.Name()))
	}

	if err := op.Domain(ctx, rd); err != nil {
		return apperr.Wrap(apperr.KindInvalidState, err, "flow domain rules rejected request").With("flow", string(op.Name()))
	}

	if err := op.UpdateTracker(ctx, rd, store); err != nil {
		return apperr.Wrap(apperr.KindConflict, err, "flow pre-call tracker update failed").With("flow", string(op.Name()))
	}

	switch op.Decide(ctx, rd) {
	case Avoid:
		rd.Err = apperr.New(apperr.KindInvalidState, "connector call avoided: intent not in a callable state").With("flow", string(op.Name()))
		return e.finalize(ctx, op, store, rd)
	case Skip:
		return e.finalize(ctx, op, store, rd)
	case HandleResponse:
		return e.finalize(ctx, op, store, rd)
	default: // Trigger
		if err := e.call(ctx, conn, rd); err != nil {
			rd.Err = err
		}
		return e.finalize(ctx, op, store, rd)
	}
}

func (e *Executor) call(ctx context.Context, conn connector.Connector, rd *RouterData) error {
	flow := string(rd.Flow)

	cap, _ := connector.Default.Capability(conn.ID())

	if cap.AuthShape == connector.AuthOAuth {
		if err := e.addAccessToken(ctx, conn, cap, rd); err != nil {
			return err
		}
	}

	req, err := conn.BuildRequest(ctx, flow, rd.Request, cap.BaseURL, rd.AuthHeaders)
	if err != nil {
		return apperr.Wrap(apperr.KindInvalidRequest, err, "connector failed to build request").With("connector", conn.ID())
	}

	resp, err := e.http.Do(ctx, req)
	if err != nil {
		return err // already an *apperr.Error from httpexec
	}

	if !cap.AcceptsStatusCode(resp.StatusCode) {
		native, parseErr := conn.GetErrorResponse(ctx, flow, resp)
		if parseErr != nil {
			return apperr.New(apperr.KindConnectorPermanent, "connector returned an unparseable error response").
				With("connector", conn.ID()).With("status_code", strconv.Itoa(resp.StatusCode))
		}
		return conn.BuildErrorResponse(ctx, flow, native)
	}

	parsed, err := conn.HandleResponse(ctx, flow, resp)
	if err != nil {
		return apperr.Wrap(apperr.KindIntegrity, err, "connector failed to parse response").With("connector", conn.ID())
	}
	rd.Response = parsed
	return nil
}

// addAccessToken fetches (or reuses) a cached bearer token for conn and
// merges it into rd.AuthHeaders as the "Authorization" header, so BuildRequest
// picks it up the same way it already does any other pre-set auth header.
// A connector only reaches here when its Capability.AuthShape is AuthOAuth;
// one that doesn't implement connector.TokenAuthenticator is a wiring bug in
// that connector, not a reason to silently skip authentication.
func (e *Executor) addAccessToken(ctx context.Context, conn connector.Connector, cap connector.Capability, rd *RouterData) error {
	if e.tokens == nil {
		return apperr.New(apperr.KindAuthTokenUnavailable, "connector requires oauth but no token cache is configured").With("connector", conn.ID())
	}
	authenticator, ok := conn.(connector.TokenAuthenticator)
	if !ok {
		return apperr.New(apperr.KindAuthTokenUnavailable, "connector declares AuthOAuth but does not implement TokenAuthenticator").With("connector", conn.ID())
	}

	key := conn.ID() + ":" + rd.MerchantID
	tok, err := e.tokens.Get(ctx, key, func(ctx context.Context) (token.Token, error) {
		tokenReq, err := authenticator.BuildTokenRequest(ctx, cap.BaseURL)
		if err != nil {
			return token.Token{}, err
		}
		resp, err := e.http.Do(ctx, tokenReq)
		if err != nil {
			return token.Token{}, err
		}
		if !cap.AcceptsStatusCode(resp.StatusCode) {
			return token.Token{}, apperr.New(apperr.KindAuthTokenUnavailable, "token endpoint returned a non-success status").
				With("connector", conn.ID()).With("status_code", strconv.Itoa(resp.StatusCode))
		}
		result, err := authenticator.ParseTokenResponse(ctx, resp)
		if err != nil {
			return token.Token{}, err
		}
		return token.Token{Value: result.AccessToken, ExpiresAt: time.Now().Add(result.ExpiresIn)}, nil
	})
	if err != nil {
		return err
	}

	if rd.AuthHeaders == nil {
		rd.AuthHeaders = make(map[string]string, 1)
	}
	rd.AuthHeaders["Authorization"] = "Bearer " + tok.Value
	return nil
}

func (e *Executor) finalize(ctx context.Context, op Operation, store Store, rd *RouterData) error {
	if err := op.PostUpdateTracker(ctx, rd, store); err != nil {
		return apperr.Wrap(apperr.KindConflict, err, "flow post-call tracker update failed").With("flow", string(op.Name()))
	}
	return rd.Err
}
