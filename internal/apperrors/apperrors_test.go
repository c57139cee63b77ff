package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

var errSentinel = errors.New("sentinel")

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindUnknown},
		{"plain", errors.New("x"), KindUnknown},
		{"store", Store("op", errSentinel), KindStore},
		{"contract", Contract("op", "bad %d", 1), KindContract},
		{"collaborator", Collaborator("op", errSentinel), KindCollaborator},
		{"transient", Transient("op", errSentinel), KindTransient},
		{"wrapped store", fmt.Errorf("outer: %w", Store("op", errSentinel)), KindStore},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestStore_KeepsSentinel(t *testing.T) {
	err := Store("storage.Query", errSentinel)
	assert.True(t, errors.Is(err, errSentinel))
	assert.True(t, IsStore(err))
	assert.False(t, IsContract(err))
	assert.Contains(t, err.Error(), "storage.Query")
}

func TestStore_NilCause(t *testing.T) {
	assert.NoError(t, Store("op", nil))
}

func TestStore_DoesNotDoubleWrap(t *testing.T) {
	inner := Store("inner", errSentinel)
	outer := Store("outer", inner)
	assert.Same(t, inner, outer)
}

func TestIs_MatchesByKind(t *testing.T) {
	err := fmt.Errorf("ctx: %w", Contract("pipeline.MultiSearch", "top_k must be >= 0"))
	assert.True(t, errors.Is(err, &Error{Kind: KindContract}))
	assert.False(t, errors.Is(err, &Error{Kind: KindStore}))
	assert.True(t, errors.Is(err, &Error{Kind: KindContract, Op: "pipeline.MultiSearch"}))
	assert.False(t, errors.Is(err, &Error{Kind: KindContract, Op: "other"}))
}

func TestContractWrap(t *testing.T) {
	err := ContractWrap("vectorindex.New", errSentinel)
	assert.True(t, IsContract(err))
	assert.ErrorIs(t, err, errSentinel)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "store", KindStore.String())
	assert.Equal(t, "contract", KindContract.String())
	assert.Equal(t, "unknown", Kind(99).String())
}
