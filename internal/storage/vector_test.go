package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVectorLiteral(t *testing.T) {
	assert.Equal(t, "[0.1,0.2,0.3]", VectorLiteral([]float64{0.1, 0.2, 0.3}))
	assert.Equal(t, "[0,-1.5,2]", VectorLiteral([]float64{0, -1.5, 2}))
	assert.Equal(t, "[]", VectorLiteral(nil))
}

func TestParseVectorLiteralRoundTrip(t *testing.T) {
	in := []float64{0.125, -3.5, 0, 768.25}
	out, err := ParseVectorLiteral(VectorLiteral(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestParseVectorLiteralWithSpaces(t *testing.T) {
	out, err := ParseVectorLiteral(" [0.1, 0.2, 0.3] ")
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, out)
}

func TestParseVectorLiteralRejectsMalformed(t *testing.T) {
	for _, s := range []string{"", "0.1,0.2", "[0.1,0.2", "[a,b]"} {
		_, err := ParseVectorLiteral(s)
		assert.Error(t, err, "input %q", s)
	}
}

func TestParseVectorLiteralEmpty(t *testing.T) {
	out, err := ParseVectorLiteral("[]")
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "konica_minolta", NormalizeName("  Konica Minolta "))
	assert.Equal(t, "hp", NormalizeName("HP"))
	assert.Equal(t, "laserjet_pro", NormalizeName("LaserJet Pro"))
}
