package summarizer

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"newsbrief/internal/config"
)

// LoaderFor maps a provider config onto its Loader.
func LoaderFor(p config.ProviderConfig) (Loader, error) {
	switch strings.ToLower(strings.TrimSpace(p.Type)) {
	case "openai":
		return OpenAILoader{APIKey: p.APIKey, Model: p.Model, Endpoint: p.Endpoint}, nil
	case "anthropic":
		return AnthropicLoader{APIKey: p.APIKey, Model: p.Model, Endpoint: p.Endpoint}, nil
	case "extractive":
		return ExtractiveLoader{}, nil
	default:
		return nil, fmt.Errorf("unknown summarizer provider %q", p.Type)
	}
}

// Factory builds fresh engines from config. Workers call it again when they
// recycle their engine.
type Factory struct {
	loaders []Loader
	opts    Options
	logger  *zap.Logger
}

func NewFactory(cfg config.SummarizerConfig, logger *zap.Logger) (*Factory, error) {
	var loaders []Loader
	for _, p := range []config.ProviderConfig{cfg.Primary, cfg.Fallback} {
		if strings.TrimSpace(p.Type) == "" || strings.EqualFold(p.Type, "none") {
			continue
		}
		l, err := LoaderFor(p)
		if err != nil {
			return nil, err
		}
		loaders = append(loaders, l)
	}
	return &Factory{
		loaders: loaders,
		opts: Options{
			TargetLanguage: cfg.TargetLanguage,
			MaxLength:      cfg.MaxLength,
			MinLength:      cfg.MinLength,
		},
		logger: logger,
	}, nil
}

func (f *Factory) New() *Engine {
	return NewEngine(f.loaders, f.opts, f.logger)
}
