package db

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"strconv"
	"time"

	driver_mysql "github.com/go-sql-driver/mysql"
	"github.com/monocle-dev/staffing/internal/config"
	"github.com/monocle-dev/staffing/internal/models"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	// lib/pq backs the postgres dialector; it also supplies *pq.Error for IsUniqueViolation.
	_ "github.com/lib/pq"
)

var DB *gorm.DB

// ConnectDatabase opens the configured database and stores it in DB.
func ConnectDatabase(cfg config.DatabaseConfig) error {
	conn, err := Open(cfg)

	if err != nil {
		return err
	}

	DB = conn

	return nil
}

// Open returns a GORM handle for the configured driver.
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dialector, err := Dialector(cfg)

	if err != nil {
		return nil, err
	}

	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.New(log.New(os.Stdout, "\r\n", log.LstdFlags), logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		}),
	})

	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", cfg.Driver, err)
	}

	return conn, nil
}

func Dialector(cfg config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case "postgres", "postgresql":
		return postgres.New(postgres.Config{
			DriverName: "postgres",
			DSN:        PostgresDSN(cfg),
		}), nil
	case "mysql":
		return mysql.Open(MySQLDSN(cfg)), nil
	case "sqlite":
		if cfg.URL == "" {
			return nil, fmt.Errorf("sqlite requires a database url")
		}
		return sqlite.Open(cfg.URL), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
}

func PostgresDSN(cfg config.DatabaseConfig) string {
	if cfg.URL != "" {
		return cfg.URL
	}

	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name)
}

func MySQLDSN(cfg config.DatabaseConfig) string {
	if cfg.URL != "" {
		return cfg.URL
	}

	// refer to https://github.com/go-sql-driver/mysql#dsn-data-source-name for details
	dsn := driver_mysql.NewConfig()
	dsn.User = cfg.User
	dsn.Passwd = cfg.Password
	dsn.Net = "tcp"
	dsn.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	dsn.DBName = cfg.Name
	dsn.Loc = time.UTC
	dsn.ParseTime = true
	dsn.AllowNativePasswords = true

	return dsn.FormatDSN()
}

// Migrate creates the projects, members and member_project tables.
func Migrate(conn *gorm.DB) error {
	models := []interface{}{
		&models.Project{},
		&models.Member{},
		&models.MemberProject{},
	}

	migrator := conn.Migrator()

	for _, model := range models {
		if !migrator.HasTable(model) {
			if err := conn.AutoMigrate(model); err != nil {
				return err
			}
		}
	}

	return nil
}

func MigrateDatabase() error {
	return Migrate(DB)
}

type Pinger interface {
	PingContext(ctx context.Context) error
}

// Ping checks connectivity, giving up after timeout.
func Ping(ctx context.Context, p Pinger, timeout time.Duration) error {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := p.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}
