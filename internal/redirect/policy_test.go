package redirect_test

import (
	"testing"

	"github.com/CZERTAINLY/piperepro/internal/redirect"
	"github.com/stretchr/testify/require"
)

func TestPolicy(t *testing.T) {
	t.Parallel()

	var testCases = []struct {
		scenario    string
		given       string
		policy      redirect.Policy
		destination redirect.Destination
		drained     bool
	}{
		{"inherit", "default", redirect.Inherit, redirect.Parent, false},
		{"discard", "null", redirect.Discard, redirect.Null, false},
		{"piped undrained", "piped", redirect.PipedUndrained, redirect.Pipe, false},
		{"piped drained", "piped-process", redirect.PipedDrained, redirect.Pipe, true},
	}

	for _, tt := range testCases {
		t.Run(tt.scenario, func(t *testing.T) {
			t.Parallel()
			p, err := redirect.ParsePolicy(tt.given)
			require.NoError(t, err)
			require.Equal(t, tt.policy, p)
			require.Equal(t, tt.given, p.String())
			require.Equal(t, tt.destination, p.Destination())
			require.Equal(t, tt.drained, p.Drained())
		})
	}
}

func TestPolicyZeroValue(t *testing.T) {
	t.Parallel()
	var p redirect.Policy
	require.Equal(t, redirect.Inherit, p)
}

func TestPoliciesTotal(t *testing.T) {
	t.Parallel()
	require.Len(t, redirect.Policies(), 4)
	require.Len(t, redirect.Names(), 4)
	for _, p := range redirect.Policies() {
		require.NotPanics(t, func() { _ = p.Destination() })
	}
	require.Panics(t, func() { _ = redirect.Policy(42).Destination() })
	require.Equal(t, "policy(42)", redirect.Policy(42).String())
}

func TestParsePolicyUnknown(t *testing.T) {
	t.Parallel()
	_, err := redirect.ParsePolicy("PipedDrained")
	require.ErrorIs(t, err, redirect.ErrUnknownPolicy)
	require.ErrorContains(t, err, "default,null,piped,piped-process")
}

func TestPolicySet(t *testing.T) {
	t.Parallel()
	var p redirect.Policy
	require.NoError(t, p.Set("piped"))
	require.Equal(t, redirect.PipedUndrained, p)
	require.Error(t, p.Set("pipe"))
	require.Equal(t, redirect.PipedUndrained, p, "failed Set must not change the value")
	require.Equal(t, "mode", p.Type())
}
