package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type PricingMode string

const (
	PricingModeAuto         PricingMode = "auto"
	PricingModeFixed        PricingMode = "fixed"
	PricingModeFeaturesOnly PricingMode = "features_only"
	PricingModeCustomQuote  PricingMode = "custom_quote"
	PricingModeExternalLink PricingMode = "external_link"
)

func (m PricingMode) Valid() bool {
	switch m {
	case PricingModeAuto,
		PricingModeFixed,
		PricingModeFeaturesOnly,
		PricingModeCustomQuote,
		PricingModeExternalLink:
		return true
	default:
		return false
	}
}

// Service is a sellable vendor offering.
type Service struct {
	ID               snowflake.ID     `json:"id" gorm:"primaryKey"`
	Slug             string           `json:"slug" gorm:"type:text;not null;uniqueIndex:ux_services_slug"`
	Title            string           `json:"title" gorm:"type:text;not null"`
	Description      *string          `json:"description,omitempty" gorm:"type:text"`
	WebsiteURL       *string          `json:"website_url,omitempty" gorm:"column:website_url;type:text"`
	RetailPrice      string           `json:"retail_price" gorm:"type:text;not null;default:''"`
	ProPrice         *string          `json:"pro_price,omitempty" gorm:"type:text"`
	CoPayPrice       *string          `json:"co_pay_price,omitempty" gorm:"column:co_pay_price;type:text"`
	DefaultPackageID *snowflake.ID    `json:"default_package_id,omitempty" gorm:"column:default_package_id"`
	PricingMode      PricingMode      `json:"pricing_mode" gorm:"type:text;not null;default:'auto'"`
	Version          int64            `json:"version" gorm:"not null;default:1"`
	Packages         []PricingPackage `json:"packages,omitempty" gorm:"foreignKey:ServiceID"`
	CreatedAt        time.Time        `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt        time.Time        `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Service) TableName() string { return "services" }

// Feature is the canonical form of a package feature line.
type Feature struct {
	Text     string `json:"text"`
	Included bool   `json:"included"`
}

// PricingPackage is a priced tier of a Service. Nil prices inherit from the
// owning Service.
type PricingPackage struct {
	ID          snowflake.ID                 `json:"id" gorm:"primaryKey"`
	ServiceID   snowflake.ID                 `json:"service_id" gorm:"column:service_id;not null;index"`
	Label       string                       `json:"label" gorm:"type:text;not null"`
	RetailPrice *float64                     `json:"retail_price,omitempty" gorm:"type:numeric"`
	ProPrice    *float64                     `json:"pro_price,omitempty" gorm:"type:numeric"`
	CoPayPrice  *float64                     `json:"co_pay_price,omitempty" gorm:"column:co_pay_price;type:numeric"`
	Features    datatypes.JSONSlice[Feature] `json:"features"`
	SortOrder   int                          `json:"sort_order" gorm:"not null;default:0"`
	IsDefault   bool                         `json:"is_default" gorm:"not null;default:false"`
	Popular     bool                         `json:"popular" gorm:"not null;default:false"`
	CreatedAt   time.Time                    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time                    `json:"updated_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (PricingPackage) TableName() string { return "pricing_packages" }
