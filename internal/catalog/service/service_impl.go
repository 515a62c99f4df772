package service

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"github.com/smallbiznis/vendorhub/internal/catalog/domain"
	"github.com/smallbiznis/vendorhub/internal/clock"
	"github.com/smallbiznis/vendorhub/internal/savelock"
	pkgdb "github.com/smallbiznis/vendorhub/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const maxSlugAttempts = 20

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Repo   domain.Repository
	Clock  clock.Clock
	Locker *savelock.Locker `optional:"true"`
}

type Service struct {
	db     *gorm.DB
	log    *zap.Logger
	repo   domain.Repository
	genID  *snowflake.Node
	clock  clock.Clock
	locker *savelock.Locker
}

func New(p Params) domain.CatalogService {
	c := p.Clock
	if c == nil {
		c = clock.New()
	}
	return &Service{
		db:     p.DB,
		log:    p.Log.Named("catalog.service"),
		repo:   p.Repo,
		genID:  p.GenID,
		clock:  c,
		locker: p.Locker,
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Response, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, domain.ErrInvalidTitle
	}

	mode := domain.PricingModeAuto
	if value := strings.TrimSpace(req.PricingMode); value != "" {
		mode = domain.PricingMode(strings.ToLower(value))
		if !mode.Valid() {
			return nil, domain.ErrInvalidPricingMode
		}
	}

	serviceSlug, err := s.uniqueSlug(ctx, title)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	svc := &domain.Service{
		ID:          s.genID.Generate(),
		Slug:        serviceSlug,
		Title:       title,
		Description: trimmedOrNil(req.Description),
		WebsiteURL:  trimmedOrNil(req.WebsiteURL),
		RetailPrice: strings.TrimSpace(req.RetailPrice),
		ProPrice:    trimmedOrNil(req.ProPrice),
		CoPayPrice:  trimmedOrNil(req.CoPayPrice),
		PricingMode: mode,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.InsertService(ctx, s.db, svc); err != nil {
		if pkgdb.IsDuplicateKeyErr(err) {
			return nil, domain.ErrDuplicateSlug
		}
		return nil, err
	}

	resp := s.toResponse(svc)
	return &resp, nil
}

func (s *Service) uniqueSlug(ctx context.Context, title string) (string, error) {
	base := slug.Make(title)
	if base == "" {
		base = "service"
	}

	candidate := base
	for i := 2; i <= maxSlugAttempts+1; i++ {
		existing, err := s.repo.FindServiceBySlug(ctx, s.db, candidate)
		if err != nil {
			return "", err
		}
		if existing == nil {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
	return "", domain.ErrDuplicateSlug
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Response, error) {
	serviceID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	item, err := s.repo.FindServiceByID(ctx, s.db, serviceID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrNotFound
	}

	resp := s.toResponse(item)
	return &resp, nil
}

func (s *Service) Find(ctx context.Context, id string) (*domain.Service, error) {
	serviceID, err := parseID(id)
	if err != nil {
		return nil, err
	}

	item, err := s.repo.FindServiceByID(ctx, s.db, serviceID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrNotFound
	}
	return item, nil
}

func (s *Service) GetBySlug(ctx context.Context, value string) (*domain.Response, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, domain.ErrNotFound
	}

	item, err := s.repo.FindServiceBySlug(ctx, s.db, value)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrNotFound
	}

	resp := s.toResponse(item)
	return &resp, nil
}

func (s *Service) List(ctx context.Context, req domain.ListRequest) ([]domain.Response, error) {
	filter := domain.ListRequest{
		Title:       strings.TrimSpace(req.Title),
		PricingMode: strings.ToLower(strings.TrimSpace(req.PricingMode)),
		SortBy:      strings.TrimSpace(req.SortBy),
		OrderBy:     strings.TrimSpace(req.OrderBy),
	}
	if filter.PricingMode != "" && !domain.PricingMode(filter.PricingMode).Valid() {
		return nil, domain.ErrInvalidPricingMode
	}

	items, err := s.repo.ListServices(ctx, s.db, filter)
	if err != nil {
		return nil, err
	}

	resp := make([]domain.Response, 0, len(items))
	for i := range items {
		resp = append(resp, s.toResponse(&items[i]))
	}
	return resp, nil
}

func (s *Service) Write(ctx context.Context, req domain.WriteRequest) (domain.WriteResult, error) {
	serviceID, err := parseID(req.ID)
	if err != nil {
		return domain.WriteResult{}, err
	}
	if req.ExpectedVersion <= 0 {
		return domain.WriteResult{}, domain.ErrInvalidVersion
	}
	if len(req.Patch) == 0 {
		return domain.WriteResult{}, domain.ErrInvalidPatch
	}

	columns, err := s.patchColumns(ctx, serviceID, req.Patch)
	if err != nil {
		return domain.WriteResult{}, err
	}

	if s.locker != nil {
		key := savelock.EntityKey("service", serviceID.String())
		token, acquired, err := s.locker.TryLock(ctx, key)
		if err != nil {
			return domain.WriteResult{}, fmt.Errorf("acquire save lock: %w", err)
		}
		if !acquired {
			return domain.WriteResult{}, domain.ErrBusy
		}
		defer func() {
			if err := s.locker.Release(context.WithoutCancel(ctx), key, token); err != nil {
				s.log.Warn("failed to release save lock", zap.String("service_id", serviceID.String()), zap.Error(err))
			}
		}()
	}

	columns["updated_at"] = s.clock.Now().UTC()
	applied, err := s.repo.UpdateServiceVersioned(ctx, s.db, serviceID, columns, req.ExpectedVersion)
	if err != nil {
		return domain.WriteResult{}, err
	}
	if applied {
		return domain.Written(req.ExpectedVersion + 1), nil
	}

	current, found, err := s.repo.CurrentVersion(ctx, s.db, serviceID)
	if err != nil {
		return domain.WriteResult{}, err
	}
	if !found {
		return domain.WriteResult{}, domain.ErrNotFound
	}

	s.log.Info("version conflict on write",
		zap.String("service_id", serviceID.String()),
		zap.Int64("expected_version", req.ExpectedVersion),
		zap.Int64("current_version", current),
	)
	return domain.Conflict(current), nil
}

// patchColumns converts a loosely typed patch into column values.
func (s *Service) patchColumns(ctx context.Context, serviceID snowflake.ID, patch map[string]any) (map[string]any, error) {
	columns := make(map[string]any, len(patch))
	for key, raw := range patch {
		switch key {
		case "title":
			value, ok := stringValue(raw)
			if !ok || strings.TrimSpace(value) == "" {
				return nil, domain.ErrInvalidTitle
			}
			columns["title"] = strings.TrimSpace(value)
		case "description", "website_url", "pro_price", "co_pay_price":
			value, ok := stringValue(raw)
			if !ok {
				return nil, fmt.Errorf("%w: %s", domain.ErrInvalidPatch, key)
			}
			if value = strings.TrimSpace(value); value == "" {
				columns[key] = nil
			} else {
				columns[key] = value
			}
		case "retail_price":
			value, ok := stringValue(raw)
			if !ok {
				return nil, domain.ErrInvalidPrice
			}
			columns["retail_price"] = strings.TrimSpace(value)
		case "pricing_mode":
			value, ok := stringValue(raw)
			if !ok {
				return nil, domain.ErrInvalidPricingMode
			}
			mode := domain.PricingMode(strings.ToLower(strings.TrimSpace(value)))
			if mode == "" {
				mode = domain.PricingModeAuto
			}
			if !mode.Valid() {
				return nil, domain.ErrInvalidPricingMode
			}
			columns["pricing_mode"] = string(mode)
		case "default_package_id":
			value, ok := stringValue(raw)
			if !ok {
				return nil, domain.ErrInvalidPackage
			}
			value = strings.TrimSpace(value)
			if value == "" {
				columns["default_package_id"] = nil
				continue
			}
			packageID, err := snowflake.ParseString(value)
			if err != nil {
				return nil, domain.ErrInvalidPackage
			}
			if err := s.ensurePackage(ctx, serviceID, packageID); err != nil {
				return nil, err
			}
			columns["default_package_id"] = packageID.Int64()
		default:
			return nil, fmt.Errorf("%w: unknown field %q", domain.ErrInvalidPatch, key)
		}
	}
	return columns, nil
}

func (s *Service) ensurePackage(ctx context.Context, serviceID, packageID snowflake.ID) error {
	packages, err := s.repo.ListPackages(ctx, s.db, serviceID)
	if err != nil {
		return err
	}
	for _, pkg := range packages {
		if pkg.ID == packageID {
			return nil
		}
	}
	return domain.ErrInvalidPackage
}

func (s *Service) CreatePackage(ctx context.Context, req domain.CreatePackageRequest) (*domain.PackageResponse, error) {
	serviceID, err := parseID(req.ServiceID)
	if err != nil {
		return nil, err
	}

	label := strings.TrimSpace(req.Label)
	if label == "" {
		return nil, domain.ErrInvalidLabel
	}
	for _, price := range []*float64{req.RetailPrice, req.ProPrice, req.CoPayPrice} {
		if price != nil && (*price < 0 || math.IsNaN(*price) || math.IsInf(*price, 0)) {
			return nil, domain.ErrInvalidPrice
		}
	}

	svc, err := s.repo.FindServiceByID(ctx, s.db, serviceID)
	if err != nil {
		return nil, err
	}
	if svc == nil {
		return nil, domain.ErrNotFound
	}

	now := s.clock.Now().UTC()
	pkg := &domain.PricingPackage{
		ID:          s.genID.Generate(),
		ServiceID:   serviceID,
		Label:       label,
		RetailPrice: req.RetailPrice,
		ProPrice:    req.ProPrice,
		CoPayPrice:  req.CoPayPrice,
		Features:    datatypes.JSONSlice[domain.Feature](domain.NormalizeFeatures(req.Features)),
		SortOrder:   req.SortOrder,
		IsDefault:   req.IsDefault,
		Popular:     req.Popular,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.InsertPackage(ctx, s.db, pkg); err != nil {
		return nil, err
	}

	resp := domain.NewPackageResponse(pkg)
	return &resp, nil
}

func (s *Service) ListPackages(ctx context.Context, serviceID string) ([]domain.PackageResponse, error) {
	id, err := parseID(serviceID)
	if err != nil {
		return nil, err
	}

	svc, err := s.repo.FindServiceByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if svc == nil {
		return nil, domain.ErrNotFound
	}

	resp := make([]domain.PackageResponse, 0, len(svc.Packages))
	for i := range svc.Packages {
		resp = append(resp, domain.NewPackageResponse(&svc.Packages[i]))
	}
	return resp, nil
}

func (s *Service) DeletePackage(ctx context.Context, serviceID, packageID string) error {
	sid, err := parseID(serviceID)
	if err != nil {
		return err
	}
	pid, err := snowflake.ParseString(strings.TrimSpace(packageID))
	if err != nil {
		return domain.ErrInvalidPackage
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		deleted, err := s.repo.DeletePackage(ctx, tx, sid, pid)
		if err != nil {
			return err
		}
		if !deleted {
			return domain.ErrPackageNotFound
		}
		// Clearing the default is a service edit, so it bumps the version.
		return tx.Model(&domain.Service{}).
			Where("id = ? AND default_package_id = ?", sid, pid).
			Updates(map[string]any{
				"default_package_id": nil,
				"version":            gorm.Expr("version + 1"),
			}).Error
	})
}

func (s *Service) toResponse(svc *domain.Service) domain.Response {
	var defaultPackageID *string
	if svc.DefaultPackageID != nil && *svc.DefaultPackageID != 0 {
		value := svc.DefaultPackageID.String()
		defaultPackageID = &value
	}

	packages := make([]domain.PackageResponse, 0, len(svc.Packages))
	for i := range svc.Packages {
		packages = append(packages, domain.NewPackageResponse(&svc.Packages[i]))
	}

	return domain.Response{
		ID:               svc.ID.String(),
		Slug:             svc.Slug,
		Title:            svc.Title,
		Description:      svc.Description,
		WebsiteURL:       svc.WebsiteURL,
		RetailPrice:      svc.RetailPrice,
		ProPrice:         svc.ProPrice,
		CoPayPrice:       svc.CoPayPrice,
		DefaultPackageID: defaultPackageID,
		PricingMode:      svc.PricingMode,
		Version:          svc.Version,
		Packages:         packages,
		CreatedAt:        svc.CreatedAt,
		UpdatedAt:        svc.UpdatedAt,
	}
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}

func trimmedOrNil(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// stringValue accepts the JSON scalar shapes a patch value may arrive in.
func stringValue(raw any) (string, bool) {
	switch v := raw.(type) {
	case nil:
		return "", true
	case string:
		return v, true
	case *string:
		if v == nil {
			return "", true
		}
		return *v, true
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return "", false
		}
		return strconv.FormatFloat(v, 'f', -1, 64), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case fmt.Stringer:
		return v.String(), true
	default:
		return "", false
	}
}
