package database

import (
	"fmt"

	"github.com/reqforge/backend/internal/config"
	"github.com/reqforge/backend/internal/model"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open connects to the configured database. sqlite is meant for local runs
// and tests; production uses postgres.
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gcfg := &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Warn),
		TranslateError: true,
	}

	var (
		db  *gorm.DB
		err error
	)
	switch cfg.Driver {
	case "", "postgres":
		db, err = gorm.Open(postgres.Open(cfg.DSN()), gcfg)
	case "sqlite":
		db, err = gorm.Open(sqlite.Open(cfg.Path+"?_foreign_keys=on"), gcfg)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if cfg.Driver == "sqlite" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

// Models lists every persisted entity in dependency order.
func Models() []interface{} {
	return []interface{}{
		&model.User{},
		&model.UserSetting{},
		&model.Invite{},
		&model.Customer{},
		&model.Project{},
		&model.InputData{},
		&model.Requirement{},
		&model.ImplementationTask{},
		&model.RoleEffort{},
		&model.Workflow{},
		&model.DocumentTemplate{},
		&model.FieldMapping{},
		&model.Document{},
		&model.Activity{},
	}
}

func Migrate(db *gorm.DB) error {
	for _, m := range Models() {
		if err := db.AutoMigrate(m); err != nil {
			return fmt.Errorf("auto migrate %T: %w", m, err)
		}
	}
	zap.L().Info("database migrated", zap.Int("tables", len(Models())))
	return nil
}

// OpenMemory returns a migrated in-memory sqlite database.
func OpenMemory() (*gorm.DB, error) {
	db, err := Open(config.DatabaseConfig{Driver: "sqlite", Path: "file::memory:"})
	if err != nil {
		return nil, err
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}
