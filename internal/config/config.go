package config

import (
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

type Config struct {
	HTTPHost string
	HTTPPort int

	DBDriver   string
	DBPath     string
	DBHost     string
	DBPort     int
	DBUser     string
	DBPassword string
	DBName     string

	StaticDir string
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[WARN] no .env file loaded, using environment and defaults")
	}

	driver := strings.ToLower(strings.TrimSpace(os.Getenv("DB_DRIVER")))
	if driver == "" {
		driver = DriverSQLite
	}

	dbPath := os.Getenv("DB_PATH")
	if dbPath == "" {
		dbPath = defaultDBPath()
	}

	staticDir := os.Getenv("STATIC_DIR")
	if staticDir == "" {
		staticDir = "www"
	}

	host := os.Getenv("HTTP_HOST")
	if host == "" {
		host = "0.0.0.0"
	}

	return &Config{
		HTTPHost: host,
		HTTPPort: intEnv("HTTP_PORT", 8099),

		DBDriver:   driver,
		DBPath:     dbPath,
		DBHost:     os.Getenv("DB_HOST"),
		DBPort:     intEnv("DB_PORT", defaultDBPort(driver)),
		DBUser:     os.Getenv("DB_USER"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     os.Getenv("DB_NAME"),

		StaticDir: staticDir,
	}
}

func (c *Config) Addr() string {
	return net.JoinHostPort(c.HTTPHost, strconv.Itoa(c.HTTPPort))
}

// ConnString returns the DSN for the configured driver.
func (c *Config) ConnString() (string, error) {
	switch c.DBDriver {
	case DriverSQLite:
		return c.DBPath + "?_pragma=busy_timeout(5000)", nil
	case DriverPostgres:
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
			c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName,
		), nil
	case DriverMySQL:
		mc := mysql.NewConfig()
		mc.User = c.DBUser
		mc.Passwd = c.DBPassword
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(c.DBHost, strconv.Itoa(c.DBPort))
		mc.DBName = c.DBName
		// UPDATE must report matched rows, not changed rows, for the 404 check
		mc.ClientFoundRows = true
		return mc.FormatDSN(), nil
	default:
		return "", fmt.Errorf("unknown DB_DRIVER %q", c.DBDriver)
	}
}

// defaultDBPath puts todo.db next to the running binary.
func defaultDBPath() string {
	exe, err := os.Executable()
	if err != nil {
		return "todo.db"
	}
	return filepath.Join(filepath.Dir(exe), "todo.db")
}

func defaultDBPort(driver string) int {
	switch driver {
	case DriverMySQL:
		return 3306
	default:
		return 5432
	}
}

func intEnv(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}
