package textutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMatchName(t *testing.T) {
	require.True(t, MatchName("  Downline   FIRST deposit bonus ", []string{"downline first deposit"}))
	require.True(t, MatchName("Weekly Commission", []string{"commission", "affiliate"}))
	require.False(t, MatchName("Welcome Bonus", []string{"commission"}))
}
