package db

import (
	"fmt"
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"transport-dispatch-backend/config"
	"transport-dispatch-backend/internal/model"
)

// Init initializes the database connection and runs migrations.
func Init(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Info),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)

	log.Println("Running database migrations...")
	if err := db.AutoMigrate(
		&model.TransportRequest{},
		&model.Assignment{},
		&model.PushSubscription{},
	); err != nil {
		return nil, fmt.Errorf("automigrate failed: %w", err)
	}

	if err := applyIndexDDL(db); err != nil {
		log.Printf("Warning: failed to apply some index DDL: %v. Continuing without them.", err)
	}

	log.Println("Database initialization complete.")
	return db, nil
}

func applyIndexDDL(db *gorm.DB) error {
	ddls := []string{
		// Active assignments by vehicle are the hot path of the conflict check.
		"CREATE INDEX IF NOT EXISTS idx_assignments_vehicle_status ON assignments (vehicle_id, status);",
		"CREATE INDEX IF NOT EXISTS idx_assignments_request_id ON assignments (request_id);",
		"CREATE INDEX IF NOT EXISTS idx_transport_requests_status_date ON transport_requests (status, date_time);",
	}

	for _, ddl := range ddls {
		if err := db.Exec(ddl).Error; err != nil {
			return fmt.Errorf("DDL failed on %q: %w", ddl, err)
		}
	}
	return nil
}
