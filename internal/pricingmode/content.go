package pricingmode

import (
	"github.com/smallbiznis/vendorhub/internal/catalog/domain"
)

// ScrapedContent is the vendor material a mode is classified from.
type ScrapedContent struct {
	Title        string        `json:"title"`
	Description  string        `json:"description"`
	Content      string        `json:"content"`
	PricingTiers []ScrapedTier `json:"pricing_tiers"`
}

type ScrapedTier struct {
	Name           string                `json:"name"`
	Price          string                `json:"price"`
	Features       []domain.FeatureInput `json:"features"`
	RequestPricing bool                  `json:"request_pricing"`
}

func (t ScrapedTier) features() []domain.Feature {
	return domain.NormalizeFeatures(t.Features)
}
