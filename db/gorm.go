package db

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"PlayDeck/cache"
	"PlayDeck/config"
	"PlayDeck/logger"

	mysqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// MySQL错误码，表示写入被拒绝
const (
	errDataTooLong    = 1406
	errPacketTooLarge = 1153
)

// Entry is one stored key.
type Entry struct {
	Key       string `gorm:"primaryKey;size:191"`
	Value     string `gorm:"type:mediumtext"`
	UpdatedAt time.Time
}

func (Entry) TableName() string {
	return "playdeck_store"
}

// KVStore is a cache.Store kept in a MySQL table.
type KVStore struct {
	db *gorm.DB
}

// DSN builds the driver connection string for cfg.
func DSN(cfg *config.Config) string {
	dc := mysqldriver.NewConfig()
	dc.User = cfg.DBUser
	dc.Passwd = cfg.DBPassword
	dc.Net = "tcp"
	dc.Addr = net.JoinHostPort(cfg.DBHost, cfg.DBPort)
	dc.DBName = cfg.DBName
	dc.ParseTime = true
	dc.Loc = time.Local
	dc.Params = map[string]string{"charset": "utf8mb4"}
	return dc.FormatDSN()
}

// ConnectKVStore 初始化数据库连接并迁移表结构
func ConnectKVStore(cfg *config.Config) (*KVStore, error) {
	gdb, err := gorm.Open(mysql.Open(DSN(cfg)), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database with GORM: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := gdb.AutoMigrate(&Entry{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to auto migrate store table: %w", err)
	}

	logger.Info("connected to MySQL store",
		logger.String("host", cfg.DBHost),
		logger.String("database", cfg.DBName))
	return NewKVStore(gdb), nil
}

// NewKVStore wraps an open connection whose schema is already migrated.
func NewKVStore(gdb *gorm.DB) *KVStore {
	return &KVStore{db: gdb}
}

func (s *KVStore) Get(ctx context.Context, key string) (string, bool, error) {
	if s.db == nil {
		return "", false, cache.ErrStoreUnavailable
	}
	var e Entry
	err := s.db.WithContext(ctx).Where(&Entry{Key: key}).First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return e.Value, true, nil
}

func (s *KVStore) Set(ctx context.Context, key, value string) error {
	if s.db == nil {
		return cache.ErrStoreUnavailable
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&Entry{Key: key, Value: value}).Error
	if err != nil {
		if isTooLarge(err) {
			return fmt.Errorf("failed to set %s: %w", key, cache.ErrQuotaExceeded)
		}
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

func (s *KVStore) Clear(ctx context.Context, key string) error {
	if s.db == nil {
		return cache.ErrStoreUnavailable
	}
	if err := s.db.WithContext(ctx).Where(&Entry{Key: key}).Delete(&Entry{}).Error; err != nil {
		return fmt.Errorf("failed to clear %s: %w", key, err)
	}
	return nil
}

// Ping 检查连接
func (s *KVStore) Ping(ctx context.Context) error {
	if s.db == nil {
		return cache.ErrStoreUnavailable
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close 关闭连接池
func (s *KVStore) Close() error {
	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func isTooLarge(err error) bool {
	var me *mysqldriver.MySQLError
	if !errors.As(err, &me) {
		return false
	}
	return me.Number == errDataTooLong || me.Number == errPacketTooLarge
}
