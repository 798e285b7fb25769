package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

var db *gorm.DB

func GetDB() *gorm.DB {
	return db
}

// SetDB installs an already opened connection (tests, one-off tools).
func SetDB(conn *gorm.DB) {
	db = conn
}

func init() {
	godotenv.Load()
}

// mysqlDSN builds the DSN from DB_* env. DB_HOST=/cloudsql/<CONNECTION_NAME>
// goes through the Cloud SQL Auth Proxy socket.
func mysqlDSN() string {
	host := os.Getenv("DB_HOST")
	network, address := "tcp", fmt.Sprintf("%s:%s", host, os.Getenv("DB_PORT"))
	if strings.HasPrefix(host, "/cloudsql/") {
		network, address = "unix", host
	}
	return fmt.Sprintf("%s:%s@%s(%s)/%s?parseTime=true&charset=utf8mb4&loc=UTC",
		os.Getenv("DB_USER"), os.Getenv("DB_PASSWORD"), network, address, os.Getenv("DB_NAME"))
}

// OpenSQLite opens a single-file database with WAL and a busy timeout.
// DB_DRIVER=sqlite uses it for local runs; tests use it with a temp dir.
func OpenSQLite(path string) (*gorm.DB, error) {
	return gorm.Open(sqlite.Open(path+"?_busy_timeout=5000&_journal_mode=WAL"), InitConfig())
}

func openDatabase() (*gorm.DB, error) {
	if strings.EqualFold(strings.TrimSpace(os.Getenv("DB_DRIVER")), "sqlite") {
		path := strings.TrimSpace(os.Getenv("DB_PATH"))
		if path == "" {
			path = "pipeworks.db"
		}
		return OpenSQLite(path)
	}
	conn, err := gorm.Open(mysql.Open(mysqlDSN()), InitConfig())
	if err != nil {
		return nil, err
	}
	tunePool(conn)
	return conn, nil
}

// Env: DB_MAX_OPEN_CONNS, DB_MAX_IDLE_CONNS, DB_CONN_MAX_LIFETIME_SECONDS, DB_CONN_MAX_IDLE_TIME_SECONDS
func tunePool(conn *gorm.DB) {
	sqlDB, err := conn.DB()
	if err != nil || sqlDB == nil {
		return
	}
	if n := IntFromEnv("DB_MAX_OPEN_CONNS", 25); n > 0 {
		sqlDB.SetMaxOpenConns(n)
	}
	if n := IntFromEnv("DB_MAX_IDLE_CONNS", 10); n >= 0 {
		sqlDB.SetMaxIdleConns(n)
	}
	if n := IntFromEnv("DB_CONN_MAX_LIFETIME_SECONDS", 300); n > 0 {
		sqlDB.SetConnMaxLifetime(time.Duration(n) * time.Second)
	}
	if n := IntFromEnv("DB_CONN_MAX_IDLE_TIME_SECONDS", 60); n > 0 {
		sqlDB.SetConnMaxIdleTime(time.Duration(n) * time.Second)
	}
}

// ConnectDatabaseWithRetry blocks until the database answers, then sets the
// global DB. Call this from main() AFTER the HTTP server is listening.
func ConnectDatabaseWithRetry() {
	for attempt := 1; ; attempt++ {
		conn, err := openDatabase()
		if err == nil {
			if pluginErr := conn.Use(otelgorm.NewPlugin()); pluginErr != nil {
				log.Printf("db connected but failed to install otelgorm plugin: %v", pluginErr)
			}
			log.Printf("connected to database (attempt=%d)", attempt)
			readCommitted(conn)
			db = conn
			return
		}
		sleep := retryDelay(attempt)
		log.Printf("failed to connect database (attempt=%d): %v; retrying in %s", attempt, err, sleep)
		time.Sleep(sleep)
	}
}

// readCommitted switches MySQL sessions to READ COMMITTED, retrying until it
// sticks. SQLite has no session isolation level.
func readCommitted(conn *gorm.DB) {
	if conn.Dialector.Name() != "mysql" {
		return
	}
	for attempt := 1; ; attempt++ {
		err := conn.Exec("SET SESSION TRANSACTION ISOLATION LEVEL READ COMMITTED").Error
		if err == nil {
			return
		}
		sleep := retryDelay(attempt)
		log.Printf("failed to set isolation level (attempt=%d): %v; retrying in %s", attempt, err, sleep)
		time.Sleep(sleep)
	}
}

// retryDelay doubles from 2s and stops at 30s.
func retryDelay(attempt int) time.Duration {
	return min(time.Second*time.Duration(1<<min(attempt, 5)), 30*time.Second)
}

func IntFromEnv(key string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return def
	}
	return n
}

// InitConfig is shared by the MySQL and SQLite connections.
func InitConfig() *gorm.Config {
	return &gorm.Config{
		Logger: logger.New(
			log.New(os.Stdout, "\r\n", log.LstdFlags),
			logger.Config{
				LogLevel:                  logger.Error,
				SlowThreshold:             time.Second,
				IgnoreRecordNotFoundError: true,
			},
		),
		NamingStrategy: schema.NamingStrategy{SingularTable: false},
	}
}
