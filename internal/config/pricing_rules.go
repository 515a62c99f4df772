package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// PricingRules holds the keyword lists used by pricing mode detection.
type PricingRules struct {
	CustomQuoteKeywords  []string `mapstructure:"customQuoteKeywords"`
	ExternalLinkKeywords []string `mapstructure:"externalLinkKeywords"`
}

func DefaultPricingRules() PricingRules {
	return PricingRules{
		CustomQuoteKeywords: []string{
			"custom pricing",
			"contact for pricing",
			"quote",
			"consultation",
			"contact us",
			"tailored",
			"bespoke",
			"custom quote",
			"get a quote",
			"request pricing",
			"contact for details",
			"pricing varies",
			"starting at",
			"custom solution",
		},
		ExternalLinkKeywords: []string{
			"view pricing on",
			"see pricing at",
			"pricing available at",
			"visit our website",
			"visit website for pricing",
			"pricing on our website",
			"see website for pricing",
			"check our website",
			"external pricing",
			"pricing page",
		},
	}
}

type PricingRulesHolder struct {
	current atomic.Value // holds PricingRules
}

// NewStaticPricingRulesHolder returns a holder that never reloads.
func NewStaticPricingRulesHolder(rules PricingRules) *PricingRulesHolder {
	holder := &PricingRulesHolder{}
	holder.current.Store(normalizePricingRules(rules))
	return holder
}

func NewPricingRulesHolder(cfg Config, log *zap.Logger) (*PricingRulesHolder, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("config.pricing_rules")

	v := viper.New()
	if path := strings.TrimSpace(cfg.PricingRulesPath); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("pricing_rules")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/vendorhub")
		v.AddConfigPath(".")
	}

	defaults := DefaultPricingRules()
	v.SetDefault("pricing.customQuoteKeywords", defaults.CustomQuoteKeywords)
	v.SetDefault("pricing.externalLinkKeywords", defaults.ExternalLinkKeywords)

	found := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read pricing rules: %w", err)
		}
		found = false
	}

	var rules PricingRules
	if err := v.UnmarshalKey("pricing", &rules); err != nil {
		return nil, err
	}
	if err := validatePricingRules(rules); err != nil {
		return nil, err
	}

	holder := NewStaticPricingRulesHolder(rules)
	if !found {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated PricingRules
		if err := v.UnmarshalKey("pricing", &updated); err != nil {
			log.Warn("pricing rules reload failed", zap.Error(err))
			return
		}
		if err := validatePricingRules(updated); err != nil {
			log.Warn("invalid pricing rules ignored", zap.Error(err))
			return
		}
		holder.current.Store(normalizePricingRules(updated))
		log.Info("pricing rules reloaded", zap.String("file", filepath.Base(e.Name)))
	})

	return holder, nil
}

func (h *PricingRulesHolder) Get() PricingRules {
	if h == nil {
		return normalizePricingRules(DefaultPricingRules())
	}
	rules, ok := h.current.Load().(PricingRules)
	if !ok {
		return normalizePricingRules(DefaultPricingRules())
	}
	return rules
}

func validatePricingRules(rules PricingRules) error {
	if len(rules.CustomQuoteKeywords) == 0 {
		return errors.New("pricing.customQuoteKeywords cannot be empty")
	}
	return nil
}

// keywords are matched against case-folded text
func normalizePricingRules(rules PricingRules) PricingRules {
	return PricingRules{
		CustomQuoteKeywords:  normalizeKeywords(rules.CustomQuoteKeywords),
		ExternalLinkKeywords: normalizeKeywords(rules.ExternalLinkKeywords),
	}
}

func normalizeKeywords(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		value = strings.ToLower(strings.TrimSpace(value))
		if value == "" {
			continue
		}
		out = append(out, value)
	}
	return out
}
