package auth

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalProvider_SignUpThenSignIn(t *testing.T) {
	ctx := context.Background()
	p := NewLocalProvider(nil, newTestLogger(&bytes.Buffer{}))

	created, err := p.SignUp(ctx, "Ana@Example.com", "secret1")
	require.NoError(t, err)
	assert.NotEmpty(t, created.UID)

	_, err = p.SignUp(ctx, "ana@example.com", "other")
	assert.ErrorIs(t, err, ErrEmailExists)

	_, err = p.SignIn(ctx, "ana@example.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	signedIn, err := p.SignIn(ctx, "ana@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, created.UID, signedIn.UID)
}

func TestLocalProvider_SingleActiveSubscription(t *testing.T) {
	p := NewLocalProvider(nil, newTestLogger(&bytes.Buffer{}))

	first := &recorder{}
	p.Subscribe(first.onChange)
	second := &recorder{}
	unsubscribe := p.Subscribe(second.onChange)

	p.Emit(&Principal{UID: "u1"})

	assert.Len(t, first.events, 1, "replaced subscriber must not receive further events")
	require.Len(t, second.events, 2)
	assert.Equal(t, "u1", second.events[1].UID)

	unsubscribe()
	p.Emit(nil)
	assert.Len(t, second.events, 2)
}

func TestLocalProvider_StaleUnsubscribeDoesNotDetachNewer(t *testing.T) {
	p := NewLocalProvider(nil, newTestLogger(&bytes.Buffer{}))

	staleUnsubscribe := p.Subscribe(func(*Principal) {})
	current := &recorder{}
	p.Subscribe(current.onChange)

	staleUnsubscribe()
	p.Emit(&Principal{UID: "u1"})
	assert.Len(t, current.events, 2)
}

func TestLocalProvider_SignOutError(t *testing.T) {
	p := NewLocalProvider(nil, newTestLogger(&bytes.Buffer{}))
	p.SignOutErr = errors.New("network down")

	rec := &recorder{}
	p.Subscribe(rec.onChange)
	p.Emit(&Principal{UID: "u1"})

	require.Error(t, p.SignOut(context.Background()))
	assert.Len(t, rec.events, 2)
	assert.Equal(t, "u1", p.Current().UID)
}
