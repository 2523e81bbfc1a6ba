package principal

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// tokenClaims is the JWT claim shape carried by bearer tokens. Token issuance
// is handled elsewhere; this service only verifies and reads claims.
type tokenClaims struct {
	jwt.RegisteredClaims
	Elevated   bool                `json:"elevated"`
	Workspace  int64               `json:"workspace"`
	Containers []int64             `json:"containers"`
	ValueRules map[string][]string `json:"value_rules"`
}

// FromToken verifies an HS256 bearer token and builds the principal from its
// claims. A "containers" claim of nil means no container access unless the
// token is elevated; the literal value -1 in the list grants all containers.
func FromToken(tokenString string, secret []byte) (*Claims, error) {
	var claims tokenClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, fmt.Errorf("invalid bearer token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid bearer token")
	}

	p := &Claims{
		Subject:     claims.Subject,
		Elevated:    claims.Elevated,
		WorkspaceID: claims.Workspace,
		ValueRules:  claims.ValueRules,
	}
	for _, id := range claims.Containers {
		if id == -1 {
			p.AllContainers = true
			continue
		}
		p.Containers = append(p.Containers, id)
	}
	return p, nil
}
