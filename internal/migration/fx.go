package migration

import (
	"github.com/smallbiznis/seohub/internal/config"
	dealershipdomain "github.com/smallbiznis/seohub/internal/dealership/domain"
	requestdomain "github.com/smallbiznis/seohub/internal/request/domain"
	usagedomain "github.com/smallbiznis/seohub/internal/usage/domain"
	webhookdomain "github.com/smallbiznis/seohub/internal/webhook/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType != "postgres" {
			// Versioned SQL targets postgres; other dialects (sqlite for
			// local development) fall back to AutoMigrate.
			return conn.AutoMigrate(
				&dealershipdomain.Agency{},
				&dealershipdomain.User{},
				&dealershipdomain.Dealership{},
				&requestdomain.Request{},
				&usagedomain.MonthlyUsage{},
				&webhookdomain.OrphanedTask{},
			)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
