package main

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"github.com/pccr10001/callscreen/internal/config"
	"github.com/pccr10001/callscreen/internal/model"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func initDB(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var db *gorm.DB
	var err error

	switch cfg.Driver {
	case "mysql":
		db, err = gorm.Open(mysql.Open(cfg.DSN), &gorm.Config{})
	default:
		// Pure Go SQLite, no cgo needed on the modem host.
		dsn := cfg.DSN
		if dsn == "" {
			dsn = "callscreen.db"
		}
		db, err = gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	}
	if err != nil {
		return nil, fmt.Errorf("connect database (%s): %w", cfg.Driver, err)
	}

	if err := db.AutoMigrate(&model.User{}, &model.Call{}, &model.Webhook{}); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}
