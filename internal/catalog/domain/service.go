package domain

import (
	"context"
	"errors"
	"time"
)

type CatalogService interface {
	Create(ctx context.Context, req CreateRequest) (*Response, error)
	Get(ctx context.Context, id string) (*Response, error)
	GetBySlug(ctx context.Context, slug string) (*Response, error)
	// Find returns the stored record with its packages in priority order.
	Find(ctx context.Context, id string) (*Service, error)
	List(ctx context.Context, req ListRequest) ([]Response, error)
	// Write applies patch when the stored version equals ExpectedVersion.
	// A version mismatch is reported through WriteResult, not as an error.
	Write(ctx context.Context, req WriteRequest) (WriteResult, error)

	CreatePackage(ctx context.Context, req CreatePackageRequest) (*PackageResponse, error)
	ListPackages(ctx context.Context, serviceID string) ([]PackageResponse, error)
	DeletePackage(ctx context.Context, serviceID, packageID string) error
}

type ListRequest struct {
	Title       string
	PricingMode string
	SortBy      string
	OrderBy     string
}

type CreateRequest struct {
	Title       string  `json:"title"`
	Description *string `json:"description"`
	WebsiteURL  *string `json:"website_url"`
	RetailPrice string  `json:"retail_price"`
	ProPrice    *string `json:"pro_price"`
	CoPayPrice  *string `json:"co_pay_price"`
	PricingMode string  `json:"pricing_mode"`
}

type WriteRequest struct {
	ID              string
	Patch           map[string]any
	ExpectedVersion int64
}

type WriteStatus string

const (
	WriteStatusWritten  WriteStatus = "written"
	WriteStatusConflict WriteStatus = "conflict"
)

type WriteResult struct {
	Status WriteStatus `json:"status"`
	// Version is the new version when written.
	Version int64 `json:"version,omitempty"`
	// CurrentVersion is the stored version when a conflict was detected.
	CurrentVersion int64 `json:"current_version,omitempty"`
}

func Written(version int64) WriteResult {
	return WriteResult{Status: WriteStatusWritten, Version: version}
}

func Conflict(current int64) WriteResult {
	return WriteResult{Status: WriteStatusConflict, CurrentVersion: current}
}

type CreatePackageRequest struct {
	ServiceID   string         `json:"service_id"`
	Label       string         `json:"label"`
	RetailPrice *float64       `json:"retail_price"`
	ProPrice    *float64       `json:"pro_price"`
	CoPayPrice  *float64       `json:"co_pay_price"`
	Features    []FeatureInput `json:"features"`
	SortOrder   int            `json:"sort_order"`
	IsDefault   bool           `json:"is_default"`
	Popular     bool           `json:"popular"`
}

type Response struct {
	ID               string            `json:"id"`
	Slug             string            `json:"slug"`
	Title            string            `json:"title"`
	Description      *string           `json:"description,omitempty"`
	WebsiteURL       *string           `json:"website_url,omitempty"`
	RetailPrice      string            `json:"retail_price"`
	ProPrice         *string           `json:"pro_price,omitempty"`
	CoPayPrice       *string           `json:"co_pay_price,omitempty"`
	DefaultPackageID *string           `json:"default_package_id,omitempty"`
	PricingMode      PricingMode       `json:"pricing_mode"`
	Version          int64             `json:"version"`
	Packages         []PackageResponse `json:"packages"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

type PackageResponse struct {
	ID          string    `json:"id"`
	ServiceID   string    `json:"service_id"`
	Label       string    `json:"label"`
	RetailPrice *float64  `json:"retail_price,omitempty"`
	ProPrice    *float64  `json:"pro_price,omitempty"`
	CoPayPrice  *float64  `json:"co_pay_price,omitempty"`
	Features    []Feature `json:"features"`
	SortOrder   int       `json:"sort_order"`
	IsDefault   bool      `json:"is_default"`
	Popular     bool      `json:"popular"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewPackageResponse converts a stored package. Features are never nil.
func NewPackageResponse(pkg *PricingPackage) PackageResponse {
	features := []Feature(pkg.Features)
	if features == nil {
		features = []Feature{}
	}
	return PackageResponse{
		ID:          pkg.ID.String(),
		ServiceID:   pkg.ServiceID.String(),
		Label:       pkg.Label,
		RetailPrice: pkg.RetailPrice,
		ProPrice:    pkg.ProPrice,
		CoPayPrice:  pkg.CoPayPrice,
		Features:    features,
		SortOrder:   pkg.SortOrder,
		IsDefault:   pkg.IsDefault,
		Popular:     pkg.Popular,
		CreatedAt:   pkg.CreatedAt,
		UpdatedAt:   pkg.UpdatedAt,
	}
}

var (
	ErrInvalidID          = errors.New("invalid_id")
	ErrInvalidTitle       = errors.New("invalid_title")
	ErrInvalidPricingMode = errors.New("invalid_pricing_mode")
	ErrInvalidPatch       = errors.New("invalid_patch")
	ErrInvalidVersion     = errors.New("invalid_version")
	ErrInvalidLabel       = errors.New("invalid_label")
	ErrInvalidPrice       = errors.New("invalid_price")
	ErrInvalidPackage     = errors.New("invalid_package")
	ErrNotFound           = errors.New("not_found")
	ErrPackageNotFound    = errors.New("package_not_found")
	ErrDuplicateSlug      = errors.New("duplicate_slug")
	ErrBusy               = errors.New("busy")
)
