// Package pricingmode classifies how a vendor presents pricing.
package pricingmode

import (
	"regexp"
	"strings"

	"github.com/smallbiznis/vendorhub/internal/catalog/domain"
	"github.com/smallbiznis/vendorhub/internal/config"
)

var currencyPattern = regexp.MustCompile(`(?i)[$€£¥]|\busd\b|\d+\.\d{2}\b|\d+\s*/\s*(month|mo|year|yr)\b`)

// HasCurrency reports whether price text carries a recognizable amount.
func HasCurrency(price string) bool {
	return currencyPattern.MatchString(price)
}

// Detect classifies content with the default keyword lists.
func Detect(content ScrapedContent, svc domain.Service) domain.PricingMode {
	return DetectWithRules(content, svc, config.DefaultPricingRules())
}

// DetectWithRules returns the service's manual mode when one is set.
// Otherwise the first matching rule wins: priced tiers, feature-only tiers,
// custom quote wording, external pricing wording, then custom_quote.
func DetectWithRules(content ScrapedContent, svc domain.Service, rules config.PricingRules) domain.PricingMode {
	if svc.PricingMode != "" && svc.PricingMode != domain.PricingModeAuto {
		return svc.PricingMode
	}

	anyPriced := false
	for _, tier := range content.PricingTiers {
		if HasCurrency(tier.Price) {
			anyPriced = true
		}
		if hasName(tier) && HasCurrency(tier.Price) && !tier.RequestPricing {
			return domain.PricingModeFixed
		}
	}

	if !anyPriced {
		for _, tier := range content.PricingTiers {
			if hasName(tier) && len(tier.features()) > 0 {
				return domain.PricingModeFeaturesOnly
			}
		}
	}

	text := strings.ToLower(strings.Join([]string{content.Title, content.Description, content.Content}, " "))
	if containsAny(text, rules.CustomQuoteKeywords) {
		return domain.PricingModeCustomQuote
	}
	if containsAny(text, rules.ExternalLinkKeywords) {
		return domain.PricingModeExternalLink
	}

	return domain.PricingModeCustomQuote
}

func hasName(tier ScrapedTier) bool {
	return strings.TrimSpace(tier.Name) != ""
}

func containsAny(text string, keywords []string) bool {
	for _, keyword := range keywords {
		keyword = strings.ToLower(strings.TrimSpace(keyword))
		if keyword != "" && strings.Contains(text, keyword) {
			return true
		}
	}
	return false
}
