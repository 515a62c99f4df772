package migration

import (
	"strings"

	"github.com/smallbiznis/vendorhub/internal/catalog/domain"
	"github.com/smallbiznis/vendorhub/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(Run),
)

// Run applies SQL migrations on postgres. Other dialects are development
// targets and get their schema from the gorm models.
func Run(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
	if strings.EqualFold(strings.TrimSpace(cfg.DBType), "postgres") {
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		log.Info("applying postgres migrations")
		return RunMigrations(sqlDB)
	}

	log.Info("auto-migrating schema", zap.String("type", cfg.DBType))
	return conn.AutoMigrate(&domain.Service{}, &domain.PricingPackage{})
}
