package translator_provider

import (
	"testing"

	"translate-bridge/pkg/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestFactory_CreateAll(t *testing.T) {
	f := NewFactory(zap.NewNop(), nil)

	providers, err := f.CreateAll()
	require.NoError(t, err)
	require.Len(t, providers, 2)
	assert.Equal(t, types.ProviderSiliconFlow, providers[0].ID())
	assert.Equal(t, types.ProviderDify, providers[1].ID())
}

func TestFactory_UnknownProvider(t *testing.T) {
	_, err := NewFactory(zap.NewNop(), nil).CreateProvider("gemini")
	assert.ErrorIs(t, err, types.ErrUnknownProvider)
}
