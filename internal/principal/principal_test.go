package principal

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClaims_ContainerAccess(t *testing.T) {
	p := &Claims{Subject: "editor", Containers: []int64{10, 20}}
	assert.True(t, p.CanAccessContainer(10))
	assert.False(t, p.CanAccessContainer(30))

	elevated := &Claims{Subject: "admin", Elevated: true}
	assert.True(t, elevated.CanAccessContainer(30))

	all := &Claims{Subject: "svc", AllContainers: true}
	assert.True(t, all.CanAccessContainer(30))
}

func TestClaims_ValueRules(t *testing.T) {
	p := &Claims{
		Subject: "editor",
		ValueRules: map[string][]string{
			"content.kind": {"text", "linklist"},
		},
	}

	assert.True(t, p.IsValueAllowed("content", "kind", "text"))
	assert.False(t, p.IsValueAllowed("content", "kind", "plugin"))
	assert.True(t, p.IsValueAllowed("content", "header", "anything"),
		"fields without a rule are unrestricted")

	elevated := &Claims{Subject: "admin", Elevated: true, ValueRules: map[string][]string{
		"content.kind": {"text"},
	}}
	assert.True(t, elevated.IsValueAllowed("content", "kind", "plugin"))
}

func TestClaims_ValueRuleNumericValues(t *testing.T) {
	p := &Claims{
		Subject: "editor",
		ValueRules: map[string][]string{
			"content.locale_id": {"0", "2"},
		},
	}
	assert.True(t, p.IsValueAllowed("content", "locale_id", int64(2)))
	assert.True(t, p.IsValueAllowed("content", "locale_id", float64(0)))
	assert.False(t, p.IsValueAllowed("content", "locale_id", 1))
}

func TestContextRoundTrip(t *testing.T) {
	assert.Nil(t, FromContext(context.Background()))

	p := Anonymous()
	ctx := WithPrincipal(context.Background(), p)
	assert.Equal(t, Principal(p), FromContext(ctx))
}

func TestFromToken(t *testing.T) {
	secret := []byte("test-secret")
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":        "editor-7",
		"exp":        time.Now().Add(time.Hour).Unix(),
		"elevated":   false,
		"workspace":  int64(3),
		"containers": []int64{10},
		"value_rules": map[string][]string{
			"content.kind": {"text"},
		},
	})
	signed, err := token.SignedString(secret)
	require.NoError(t, err)

	p, err := FromToken(signed, secret)
	require.NoError(t, err)
	assert.Equal(t, "editor-7", p.ID())
	assert.Equal(t, int64(3), p.Workspace())
	assert.True(t, p.CanAccessContainer(10))
	assert.False(t, p.CanAccessContainer(99))
	assert.False(t, p.IsValueAllowed("content", "kind", "plugin"))
}

func TestFromToken_AllContainersSentinel(t *testing.T) {
	secret := []byte("test-secret")
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":        "svc",
		"exp":        time.Now().Add(time.Hour).Unix(),
		"containers": []int64{-1},
	})
	signed, err := token.SignedString(secret)
	require.NoError(t, err)

	p, err := FromToken(signed, secret)
	require.NoError(t, err)
	assert.True(t, p.CanAccessContainer(12345))
}

func TestFromToken_RejectsBadSignature(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "editor",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte("right-secret"))
	require.NoError(t, err)

	_, err = FromToken(signed, []byte("wrong-secret"))
	assert.Error(t, err)
}
