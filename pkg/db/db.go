package db

import (
	"fmt"
	"log"
	"strings"
	"sync"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	constant "liyu1981.xyz/hive-telemetry-service/pkg/common"
	"liyu1981.xyz/hive-telemetry-service/pkg/models"
)

const DefaultPath = "hive.db"

type DB struct {
	Conn *gorm.DB
}

var (
	instance *DB
	once     sync.Once
)

// Open connects, migrates the devices/readings/threshold_policies/operators tables and
// applies the sqlite pragmas.
func Open(dialector gorm.Dialector) (*DB, error) {
	var logger = constant.GetLogger()

	conn, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	logger.Info("Connected to database with dialector:", zap.String("dialector", dialector.Name()))

	err = conn.AutoMigrate(&models.Device{}, &models.Reading{}, &models.ThresholdPolicy{}, &models.Operator{})
	if err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	logger.Info("Database migration completed")

	if err := conn.Exec("PRAGMA foreign_keys = ON").Error; err != nil {
		return nil, fmt.Errorf("enable sqlite foreign key support: %w", err)
	}

	if err := conn.Exec("PRAGMA journal_mode = WAL").Error; err != nil {
		return nil, fmt.Errorf("set sqlite journal mode: %w", err)
	}

	// shared-cache memory databases report SQLITE_LOCKED under concurrent writers
	if d, ok := dialector.(*sqlite.Dialector); ok && strings.Contains(d.DSN, "memory") {
		sqlDB, err := conn.DB()
		if err != nil {
			return nil, fmt.Errorf("access sql pool: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	return &DB{Conn: conn}, nil
}

func GetInstance(dialector gorm.Dialector) *DB {
	once.Do(func() {
		var err error
		if instance, err = Open(dialector); err != nil {
			log.Fatal("Failed to open database: ", err)
		}
	})
	return instance
}

// UseSqliteDialector opens the database file at dbPath, or DefaultPath when empty.
func UseSqliteDialector(dbPath string) gorm.Dialector {
	if dbPath == "" {
		dbPath = DefaultPath
	}
	return sqlite.Open(fmt.Sprintf("file:%s?_fk=1&_busy_timeout=5000", dbPath))
}

func UseMemorySqliteDialector() gorm.Dialector {
	return sqlite.Open("file::memory:?cache=shared&_fk=1")
}

// UseMemorySqliteDialectorNamed gives every caller its own in-memory database, used by
// tests that must not observe each other's policy row.
func UseMemorySqliteDialectorNamed(name string) gorm.Dialector {
	return sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared&_fk=1", name))
}

func UseDialector(dbType, dbPath string) (gorm.Dialector, error) {
	switch dbType {
	case "file":
		return UseSqliteDialector(dbPath), nil
	case "memory":
		return UseMemorySqliteDialector(), nil
	default:
		return nil, fmt.Errorf("unknown %s: %q", constant.EnvKeyIOTDBType, dbType)
	}
}
