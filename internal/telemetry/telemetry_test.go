package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sprite-ai/prlens/internal/config"
)

func TestSetupDisabled(t *testing.T) {
	tel, err := Setup(context.Background(), config.OTelConfig{})
	require.NoError(t, err)
	assert.Nil(t, tel)
	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestParseHeaders(t *testing.T) {
	got := parseHeaders("Authorization=Bearer abc, x-team = core,broken,k=v=w")
	assert.Equal(t, map[string]string{
		"Authorization": "Bearer abc",
		"x-team":        "core",
		"k":             "v=w",
	}, got)
	assert.Empty(t, parseHeaders(""))
}
