package db

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/diewo77/proposals-app/internal/models"
	migrate "github.com/golang-migrate/migrate/v4"
	// The following blank imports register the postgres driver and file source for golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func ConnectAndMigrate() (*gorm.DB, error) {
	dsn := GetNormalizedDSN()
	if dsn == "" {
		return nil, fmt.Errorf("DATABASE_DSN is empty, check the environment configuration")
	}
	var db *gorm.DB
	var err error
	logLevel := logger.Silent
	if os.Getenv("DB_DEBUG") == "1" {
		logLevel = logger.Info
	}
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logLevel)}
	for i := 0; i < 10; i++ {
		db, err = gorm.Open(postgres.Open(dsn), cfg)
		if err == nil {
			break
		}
		fmt.Println("Retrying DB connection...", err)
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect database after retries: %w", err)
	}

	// Basic connectivity test
	if pingErr := db.Exec("SELECT 1").Error; pingErr != nil {
		return nil, fmt.Errorf("db ping failed: %w", pingErr)
	}

	// Always print masked DSN once for diagnostics (before migrations for visibility)
	masked := dsn
	if strings.Contains(masked, "password=") {
		re := regexp.MustCompile(`(password=)([^\s]+)`)
		masked = re.ReplaceAllString(masked, `${1}***`)
	}
	fmt.Println("[DB] Using DSN:", masked)
	// MIGRATIONS=1 runs sql migrations via golang-migrate (they also install
	// the check_user_quota function); otherwise AutoMigrate (dev convenience)
	if v := strings.ToLower(os.Getenv("MIGRATIONS")); v == "1" || v == "true" || v == "yes" {
		if err := runSQLMigrations(dsn); err != nil {
			return nil, fmt.Errorf("sql migrations failed: %w", err)
		}
	} else {
		modelsToMigrate := []interface{}{
			&models.Business{}, &models.Settings{}, &models.Membership{}, &models.LegacyUser{},
			&models.Customer{}, &models.Product{}, &models.Quote{}, &models.QuoteItem{},
		}
		for _, m := range modelsToMigrate {
			if migErr := db.AutoMigrate(m); migErr != nil {
				return nil, fmt.Errorf("automigrate %T: %w", m, migErr)
			}
		}
	}

	// sanity check: ensure required core tables exist
	for _, table := range []string{"businesses", "settings", "memberships", "quotes"} {
		if !db.Migrator().HasTable(table) {
			return nil, errors.New("missing table after migration: " + table)
		}
	}
	// Seeding only when explicitly requested (e.g. development) via DB_SEED=1|true
	if v := strings.ToLower(os.Getenv("DB_SEED")); v == "1" || v == "true" || v == "yes" {
		seed(db)
	}
	return db, nil
}

// seed inserts a development catalog, idempotently.
func seed(db *gorm.DB) {
	b := models.Business{Name: "Sample Workshop", Email: "sample@local", VATRate: 18}
	var existing models.Business
	if err := db.Where("email = ?", b.Email).First(&existing).Error; err == gorm.ErrRecordNotFound {
		db.Create(&b)
	} else {
		b = existing
	}
	baseProducts := []models.Product{
		{BusinessID: b.ID, Name: "Oak Table", Category: "furniture", Unit: "unit", BasePrice: 1180, Options: "Finish: Matte|Gloss"},
		{BusinessID: b.ID, Name: "Chair", Category: "furniture", Unit: "unit", BasePrice: 236, Options: "Color: Black|White|Walnut"},
		{BusinessID: b.ID, Name: "Assembly", Category: "services", Unit: "hour", BasePrice: 118},
	}
	for _, p := range baseProducts {
		var found models.Product
		if err := db.Where("business_id = ? AND name = ?", b.ID, p.Name).First(&found).Error; err == gorm.ErrRecordNotFound {
			db.Create(&p)
		}
	}
}

// runSQLMigrations executes migrations in ./migrations using golang-migrate file source.
func runSQLMigrations(dsn string) error {
	m, err := migrate.New("file://migrations", dsn)
	if err != nil {
		return err
	}
	if err = m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	return nil
}
