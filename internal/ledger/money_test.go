package ledger

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewMoneyValidatesCurrency(t *testing.T) {
	_, err := NewMoney("10.00", "usd")
	require.NoError(t, err)

	_, err = NewMoney("10.00", "XXQ")
	require.Error(t, err)

	_, err = NewMoney("ten", "USD")
	require.Error(t, err)
}

func TestCanonicalRenderingIsScaleStable(t *testing.T) {
	a := MustMoney("10", "USD")
	b := MustMoney("10.00", "USD")
	require.Equal(t, a.Canonical(), b.Canonical())
	require.Equal(t, "10.00", b.Canonical())

	// Zero-decimal currencies render without a fraction.
	y := MustMoney("1500", "JPY")
	require.Equal(t, "1500", y.Canonical())
}

func TestContentHashIgnoresSubmissionNoise(t *testing.T) {
	first := Normalize(sampleTransaction())
	second := Normalize(sampleTransaction())
	h1, err := ContentHash(first)
	require.NoError(t, err)
	h2, err := ContentHash(second)
	require.NoError(t, err)
	require.Equal(t, h1, h2)

	changed := sampleTransaction()
	changed.Description = "different intent"
	h3, err := ContentHash(Normalize(changed))
	require.NoError(t, err)
	require.NotEqual(t, h1, h3)
}
