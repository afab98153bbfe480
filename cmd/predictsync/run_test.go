package main

import (
	"testing"
	"time"

	"github.com/alejandrodnm/predictsync/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePlace(t *testing.T) {
	req, err := parsePlace("btc:up:10")
	require.NoError(t, err)
	assert.Equal(t, "btc", req.Symbol)
	assert.Equal(t, domain.DirectionUp, req.Direction)
	assert.Equal(t, int64(10), req.Amount)
	assert.Zero(t, req.Duration)

	req, err = parsePlace("ETH:DOWN:25:120")
	require.NoError(t, err)
	assert.Equal(t, domain.DirectionDown, req.Direction)
	assert.Equal(t, 120*time.Second, req.Duration)
}

func TestParsePlace_Invalid(t *testing.T) {
	for _, arg := range []string{"", "BTC:UP", "BTC:SIDEWAYS:10", "BTC:UP:ten", "BTC:UP:10:0", "BTC:UP:10:60:x"} {
		_, err := parsePlace(arg)
		assert.Error(t, err, arg)
	}
}
