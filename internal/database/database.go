package database

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"office-service/internal/config"
	"office-service/internal/domain"
)

var (
	globalDB *gorm.DB
	dbMutex  sync.RWMutex
)

// GetDB returns the current database connection (nil if not connected).
func GetDB() *gorm.DB {
	dbMutex.RLock()
	defer dbMutex.RUnlock()
	return globalDB
}

// SetDB sets the global database connection.
func SetDB(db *gorm.DB) {
	dbMutex.Lock()
	defer dbMutex.Unlock()
	globalDB = db
}

// IsConnected returns true if the database is reachable.
func IsConnected() bool {
	db := GetDB()
	if db == nil {
		return false
	}
	sqlDB, err := db.DB()
	if err != nil {
		return false
	}
	return sqlDB.Ping() == nil
}

// New opens a connection, configures the pool and runs migrations.
func New(cfg *config.Config) (*gorm.DB, error) {
	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	logLevel := logger.Silent
	if cfg.Server.Env == "dev" || cfg.Server.Env == "development" {
		logLevel = logger.Info
	}

	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logLevel,
			IgnoreRecordNotFoundError: true,
			Colorful:                  true,
		},
	)

	db, err := gorm.Open(postgres.Open(cfg.Database.URL), &gorm.Config{
		Logger: gormLogger,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	SetDB(db)
	return db, nil
}

// NewAsync retries the connection in the background so the pod can start
// before the database is up.
func NewAsync(cfg *config.Config, retryInterval time.Duration) {
	go func() {
		for {
			if IsConnected() {
				return
			}
			if _, err := New(cfg); err != nil {
				log.Printf("⚠️  DB connection failed, retrying in %v: %v\n", retryInterval, err)
				time.Sleep(retryInterval)
				continue
			}
			return
		}
	}()
}

// AutoMigrate runs schema migrations for all entities.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&domain.UserPresence{},
		&domain.ChatChannel{},
		&domain.ChannelMember{},
		&domain.ChatMessage{},
		&domain.ChessGame{},
		&domain.Task{},
		&domain.StaffProfile{},
	); err != nil {
		return err
	}

	createIndexes(db)
	return nil
}

func createIndexes(db *gorm.DB) {
	// One general channel per workspace
	db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_channels_general
		ON chat_channels (workspace_id) WHERE is_general = true AND deleted_at IS NULL`)

	// Channel message XOR direct message
	db.Exec(`ALTER TABLE chat_messages ADD CONSTRAINT chk_messages_target
		CHECK ((channel_id IS NULL) <> (recipient_id IS NULL))`)

	// One membership row per channel/user
	db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS idx_channel_member_unique
		ON channel_members (channel_id, user_id)`)

	// Matchmaking scans the oldest waiting rows
	db.Exec(`CREATE INDEX IF NOT EXISTS idx_games_status_created
		ON chess_games (status, created_at ASC)`)
}

// Close closes the database connection.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	return sqlDB.Close()
}
