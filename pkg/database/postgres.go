package database

import (
	"fmt"
	"log"
	"time"

	"filmbox/config"
	"filmbox/internal/domain/upload"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

func Connect(cfg *config.Config) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		cfg.DBHost, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBPort)

	var err error
	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	sqlDB, err := DB.DB()
	if err != nil {
		log.Fatalf("Failed to get generic database object: %v", err)
	}

	// Connection pool settings
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	log.Println("Database connection established")
}

// Migrate applies the schema for every persisted entity.
func Migrate() error {
	return DB.AutoMigrate(
		&upload.UploadSession{},
	)
}

func HealthCheck() error {
	if DB == nil {
		return fmt.Errorf("database not connected")
	}
	sqlDB, err := DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

func Close() {
	if DB == nil {
		return
	}
	if sqlDB, err := DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// Reset drops every persisted table and re-applies the schema.
func Reset() error {
	if err := DB.Migrator().DropTable(&upload.UploadSession{}); err != nil {
		return err
	}
	return Migrate()
}

func TableExists(name string) (bool, error) {
	if DB == nil {
		return false, fmt.Errorf("database not connected")
	}
	return DB.Migrator().HasTable(name), nil
}
