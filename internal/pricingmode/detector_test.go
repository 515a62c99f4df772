package pricingmode

import (
	"encoding/json"
	"testing"

	"github.com/smallbiznis/vendorhub/internal/catalog/domain"
	"github.com/smallbiznis/vendorhub/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDetect(t *testing.T) {
	auto := domain.Service{PricingMode: domain.PricingModeAuto}

	cases := []struct {
		name    string
		content ScrapedContent
		svc     domain.Service
		want    domain.PricingMode
	}{
		{
			name:    "manual override wins",
			content: ScrapedContent{Content: "Contact us for a custom quote"},
			svc:     domain.Service{PricingMode: domain.PricingModeFixed},
			want:    domain.PricingModeFixed,
		},
		{
			name:    "priced tier",
			content: ScrapedContent{PricingTiers: []ScrapedTier{{Name: "Pro", Price: "$49/month"}}},
			svc:     auto,
			want:    domain.PricingModeFixed,
		},
		{
			name:    "monthly suffix without symbol",
			content: ScrapedContent{PricingTiers: []ScrapedTier{{Name: "Team", Price: "99 / mo"}}},
			svc:     auto,
			want:    domain.PricingModeFixed,
		},
		{
			name:    "decimal amount",
			content: ScrapedContent{PricingTiers: []ScrapedTier{{Name: "Basic", Price: "19.99"}}},
			svc:     domain.Service{},
			want:    domain.PricingModeFixed,
		},
		{
			name: "features only",
			content: ScrapedContent{PricingTiers: []ScrapedTier{{
				Name:     "Pro",
				Features: []domain.FeatureInput{domain.TextFeature("X"), domain.TextFeature("Y")},
			}}},
			svc:  auto,
			want: domain.PricingModeFeaturesOnly,
		},
		{
			name: "request pricing tier is not fixed",
			content: ScrapedContent{
				Content:      "Request pricing for teams",
				PricingTiers: []ScrapedTier{{Name: "Enterprise", Price: "$", RequestPricing: true, Features: []domain.FeatureInput{domain.TextFeature("SSO")}}},
			},
			svc:  auto,
			want: domain.PricingModeCustomQuote,
		},
		{
			name:    "custom quote text",
			content: ScrapedContent{Content: "Contact us for a custom quote"},
			svc:     auto,
			want:    domain.PricingModeCustomQuote,
		},
		{
			name:    "external link text",
			content: ScrapedContent{Title: "Photo Co", Description: "View pricing on the vendor site"},
			svc:     auto,
			want:    domain.PricingModeExternalLink,
		},
		{
			name:    "fallback",
			content: ScrapedContent{Content: "We shoot homes."},
			svc:     auto,
			want:    domain.PricingModeCustomQuote,
		},
		{
			name:    "unnamed tier ignored",
			content: ScrapedContent{PricingTiers: []ScrapedTier{{Price: "$10"}}, Content: "Visit our website"},
			svc:     auto,
			want:    domain.PricingModeExternalLink,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Detect(tc.content, tc.svc))
		})
	}
}

func TestDetectWithCustomRules(t *testing.T) {
	rules := config.PricingRules{
		CustomQuoteKeywords:  []string{"call us"},
		ExternalLinkKeywords: []string{"pricing portal"},
	}
	svc := domain.Service{PricingMode: domain.PricingModeAuto}

	assert.Equal(t, domain.PricingModeCustomQuote, DetectWithRules(ScrapedContent{Content: "Please CALL US"}, svc, rules))
	assert.Equal(t, domain.PricingModeExternalLink, DetectWithRules(ScrapedContent{Content: "See our Pricing Portal"}, svc, rules))
	// Default external keywords are replaced, so only the fallback applies.
	assert.Equal(t, domain.PricingModeCustomQuote, DetectWithRules(ScrapedContent{Content: "see pricing at example.com"}, svc, rules))
}

func TestScrapedContentDecodesMixedFeatures(t *testing.T) {
	raw := `{"title":"Staging Co","pricing_tiers":[{"name":"Gold","features":["Design consult",{"name":"Furniture","included":false}]}]}`

	var content ScrapedContent
	require.NoError(t, json.Unmarshal([]byte(raw), &content))
	require.Len(t, content.PricingTiers, 1)
	assert.Equal(t, []domain.Feature{
		{Text: "Design consult", Included: true},
		{Text: "Furniture", Included: false},
	}, content.PricingTiers[0].features())
	assert.Equal(t, domain.PricingModeFeaturesOnly, Detect(content, domain.Service{}))
}

func TestClassifierUsesHolderRules(t *testing.T) {
	holder := config.NewStaticPricingRulesHolder(config.PricingRules{
		CustomQuoteKeywords:  []string{"inquire"},
		ExternalLinkKeywords: []string{"book online"},
	})
	c := NewClassifier(Params{Rules: holder, Log: zap.NewNop()})

	got := c.Detect(ScrapedContent{Content: "Book online today"}, domain.Service{})
	assert.Equal(t, domain.PricingModeExternalLink, got)
}
