package auth

import "strings"

// Effect is a gateway policy outcome.
type Effect string

const (
	EffectAllow Effect = "Allow"
	EffectDeny  Effect = "Deny"
)

// deniedPrincipal is the fixed principal stamped on every deny decision so
// the gateway never learns why verification failed.
const deniedPrincipal = "unauthorized"

// Decision is the policy emitted for an API gateway. It is always produced;
// the authorizer never lets an error escape its boundary.
type Decision struct {
	PrincipalID string            `json:"principalId"`
	Effect      Effect            `json:"effect"`
	Resource    string            `json:"resource"`
	Context     map[string]string `json:"context,omitempty"`
}

// Allowed reports whether the decision grants access.
func (d Decision) Allowed() bool { return d.Effect == EffectAllow }

// Authorizer is the standalone token verifier used when the service sits
// behind a managed API gateway instead of embedding the access middleware.
// It shares the codec with the in-process path but never consults role data.
type Authorizer struct {
	codec *Codec
}

// NewAuthorizer wraps a codec for gateway policy decisions.
func NewAuthorizer(codec *Codec) *Authorizer {
	return &Authorizer{codec: codec}
}

// Authorize turns a raw authorization header and a target resource into an
// allow/deny decision. Allow carries the subject id and email for downstream
// propagation; every failure path yields the same opaque deny.
func (a *Authorizer) Authorize(authorizationHeader, resource string) Decision {
	deny := Decision{PrincipalID: deniedPrincipal, Effect: EffectDeny, Resource: resource}

	parts := strings.Split(strings.TrimSpace(authorizationHeader), " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return deny
	}

	claims, err := a.codec.Verify(parts[1])
	if err != nil {
		return deny
	}

	return Decision{
		PrincipalID: claims.Subject,
		Effect:      EffectAllow,
		Resource:    resource,
		Context: map[string]string{
			"userId": claims.Subject,
			"email":  claims.Email,
		},
	}
}
