package translator_provider

import (
	"fmt"

	"translate-bridge/internal/third_party/dify"
	"translate-bridge/internal/third_party/siliconflow"
	"translate-bridge/internal/third_party/transport"
	"translate-bridge/pkg/types"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Factory creates translator providers based on the specified type
type Factory struct {
	logger *zap.Logger
	http   *resty.Client
}

// NewFactory creates a new provider factory. A nil client gets a streaming-friendly default.
func NewFactory(logger *zap.Logger, http *resty.Client) *Factory {
	if http == nil {
		http = transport.NewRestyClient()
	}
	return &Factory{
		logger: logger,
		http:   http,
	}
}

// CreateProvider creates a translator provider based on the specified type
func (f *Factory) CreateProvider(id types.ProviderID) (TranslatorProvider, error) {
	switch id {
	case types.ProviderSiliconFlow:
		return siliconflow.NewClient(f.logger, f.http), nil
	case types.ProviderDify:
		return dify.NewClient(f.logger, f.http), nil
	default:
		return nil, fmt.Errorf("%w: %s", types.ErrUnknownProvider, id)
	}
}

// CreateAll creates one provider per known provider id
func (f *Factory) CreateAll() ([]TranslatorProvider, error) {
	providers := make([]TranslatorProvider, 0, len(types.KnownProviders))
	for _, id := range types.KnownProviders {
		p, err := f.CreateProvider(id)
		if err != nil {
			return nil, err
		}
		providers = append(providers, p)
	}
	return providers, nil
}
