package aidcodec

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zidek-labs/bellrock/internal/model"
)

func mustKey(t *testing.T, b byte) model.Key {
	t.Helper()
	var k model.Key
	for i := range k {
		k[i] = b
	}
	return k
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()
	c := New()
	uid := model.UID{1, 2, 3, 4, 5, 6, 7, 8}
	key := mustKey(t, 0x42)

	aid, err := c.Anonymize(uid, key)
	require.NoError(t, err)

	plain, err := c.TrialDecrypt(aid, key)
	require.NoError(t, err)
	require.True(t, Matches(plain, uid))
	require.True(t, c.TryMatch(aid, uid, key))
}

func TestFreshness(t *testing.T) {
	t.Parallel()
	c := New()
	uid := model.UID{9, 9, 9, 9, 9, 9, 9, 9}
	key := mustKey(t, 0x11)

	a1, err := c.Anonymize(uid, key)
	require.NoError(t, err)
	a2, err := c.Anonymize(uid, key)
	require.NoError(t, err)
	require.NotEqual(t, a1, a2)
}

func TestUnlinkabilityUnderUnknownKey(t *testing.T) {
	t.Parallel()
	c := New()
	uid := model.UID{1, 1, 1, 1, 1, 1, 1, 1}
	other := model.UID{2, 2, 2, 2, 2, 2, 2, 2}
	key := mustKey(t, 0x55)
	otherKey := mustKey(t, 0x66)

	aid, err := c.Anonymize(uid, key)
	require.NoError(t, err)

	require.False(t, c.TryMatch(aid, other, otherKey))
}

func TestCipherCacheReused(t *testing.T) {
	t.Parallel()
	c := New()
	key := mustKey(t, 0x77)
	b1, err := c.blockFor(key)
	require.NoError(t, err)
	b2, err := c.blockFor(key)
	require.NoError(t, err)
	require.Same(t, b1, b2)
}
