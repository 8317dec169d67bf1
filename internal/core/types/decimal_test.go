package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMoney(t *testing.T) {
	m, err := ParseMoney("9.90")
	require.NoError(t, err)
	assert.Equal(t, "9.9", m.String())

	m, err = ParseMoney("5.000")
	require.NoError(t, err)
	assert.True(t, m.Equal(MustMoney("5")))

	_, err = ParseMoney("1.999")
	assert.Error(t, err)

	_, err = ParseMoney("abc")
	assert.Error(t, err)
}

func TestIsValidPrice(t *testing.T) {
	assert.True(t, IsValidPrice(MustMoney("0")))
	assert.True(t, IsValidPrice(MustMoney("12.34")))
	assert.False(t, IsValidPrice(MustMoney("-1")))
}
