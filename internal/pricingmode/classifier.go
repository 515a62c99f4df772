package pricingmode

import (
	"github.com/smallbiznis/vendorhub/internal/catalog/domain"
	"github.com/smallbiznis/vendorhub/internal/config"
	"github.com/smallbiznis/vendorhub/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("pricingmode",
	fx.Provide(NewClassifier),
)

// Classifier applies the current hot-reloaded rules.
type Classifier struct {
	rules   *config.PricingRulesHolder
	metrics *metrics.CoreMetrics
	log     *zap.Logger
}

type Params struct {
	fx.In

	Rules   *config.PricingRulesHolder
	Metrics *metrics.CoreMetrics `optional:"true"`
	Log     *zap.Logger
}

func NewClassifier(p Params) *Classifier {
	log := p.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Classifier{
		rules:   p.Rules,
		metrics: p.Metrics,
		log:     log.Named("pricingmode"),
	}
}

func (c *Classifier) Detect(content ScrapedContent, svc domain.Service) domain.PricingMode {
	mode := DetectWithRules(content, svc, c.rules.Get())
	c.metrics.IncPricingModeDetection(string(mode))
	c.log.Debug("pricing mode detected",
		zap.String("service_id", svc.ID.String()),
		zap.String("mode", string(mode)),
		zap.Int("tiers", len(content.PricingTiers)),
	)
	return mode
}
