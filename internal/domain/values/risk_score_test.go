package values

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRiskScore(t *testing.T) {
	tests := []struct {
		name    string
		value   float64
		wantErr bool
	}{
		{name: "zero", value: 0.0, wantErr: false},
		{name: "one", value: 1.0, wantErr: false},
		{name: "mid-range", value: 0.35, wantErr: false},
		{name: "negative rejected", value: -0.01, wantErr: true},
		{name: "above one rejected", value: 1.01, wantErr: true},
		{name: "NaN rejected", value: math.NaN(), wantErr: true},
		{name: "infinity rejected", value: math.Inf(1), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewRiskScore(tt.value)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.value, s.Value())
		})
	}
}

func TestClampRiskScore(t *testing.T) {
	assert.Equal(t, 0.0, ClampRiskScore(-3.5).Value())
	assert.Equal(t, 1.0, ClampRiskScore(1.7).Value())
	assert.Equal(t, 0.42, ClampRiskScore(0.42).Value())
	assert.Equal(t, 0.0, ClampRiskScore(math.NaN()).Value())
}

func TestRiskScore_AtLeast(t *testing.T) {
	s := MustNewRiskScore(0.35)
	assert.True(t, s.AtLeast(0.35))
	assert.True(t, s.AtLeast(0.2))
	assert.False(t, s.AtLeast(0.351))
}
