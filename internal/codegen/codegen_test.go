package codegen

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	g := New()
	seen := make(map[string]struct{})
	for i := 0; i < 200; i++ {
		code, err := g.Generate()
		require.NoError(t, err)
		assert.True(t, Valid(code), "invalid code %q", code)
		seen[code] = struct{}{}
	}
	assert.Greater(t, len(seen), 190)
}

func TestGenerateRejectsBiasedBytes(t *testing.T) {
	// 255 and 240 are rejected, 0 maps to 'A', 33 maps to '9'
	src := bytes.NewReader([]byte{255, 0, 240, 33, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0})
	code, err := NewWithReader(src).Generate()
	require.NoError(t, err)
	assert.Equal(t, "A9AAAAA", code)
}

func TestGenerateShortReader(t *testing.T) {
	_, err := NewWithReader(bytes.NewReader([]byte{1, 2})).Generate()
	assert.Error(t, err)
}

func TestUnique(t *testing.T) {
	ctx := context.Background()

	t.Run("retries taken codes", func(t *testing.T) {
		calls := 0
		code, err := New().Unique(ctx, func(context.Context, string) (bool, error) {
			calls++
			return calls < 3, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
		assert.Len(t, code, Length)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		calls := 0
		_, err := New().Unique(ctx, func(context.Context, string) (bool, error) {
			calls++
			return true, nil
		})
		assert.ErrorIs(t, err, ErrExhausted)
		assert.Equal(t, MaxAttempts, calls)
	})

	t.Run("propagates probe errors", func(t *testing.T) {
		boom := errors.New("db down")
		_, err := New().Unique(ctx, func(context.Context, string) (bool, error) {
			return false, boom
		})
		assert.ErrorIs(t, err, boom)
	})

	t.Run("honours cancellation", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := New().Unique(cctx, func(context.Context, string) (bool, error) {
			return false, nil
		})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestValid(t *testing.T) {
	assert.True(t, Valid("ABC2345"))
	assert.False(t, Valid("ABC234"))
	assert.False(t, Valid("ABC23450"))
	assert.False(t, Valid("ABC1345"), "1 is not in the alphabet")
	assert.False(t, Valid("abc2345"))
	assert.True(t, Valid(Normalize(" abc2345 ")))
	assert.False(t, Valid(strings.Repeat("A", 6)+"!"))
}
