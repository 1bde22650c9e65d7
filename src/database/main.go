package database

import (
	"fmt"
	"log/slog"
	"net"
	"strconv"

	slogGorm "github.com/orandin/slog-gorm"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"stratbot/src/datamodels"
	"stratbot/src/utils/errors"
)

type StratbotDatabase interface {
	RecordDb
}

type databaseImplementation struct {
	gormDb *gorm.DB
}

func NewDBConnection(dbConfig datamodels.PostgresConfig) (StratbotDatabase, error) {
	dbConnString := MakeConnectionString(&dbConfig)

	gormConfig := &gorm.Config{
		Logger: slogGorm.New(),
	}

	gormDb, err := gorm.Open(postgres.Open(dbConnString), gormConfig)
	if err != nil {
		return nil, errors.WrapE(err, errors.New("cannot create gorm engine"))
	}

	slog.Info("Connected to database", "host", dbConfig.Host, "database", dbConfig.Database, "user", dbConfig.User)

	if err := gormDb.AutoMigrate(DbTables...); err != nil {
		return nil, errors.WrapE(err, errors.New("cannot migrate tables"))
	}

	return &databaseImplementation{gormDb: gormDb}, nil
}

func MakeConnectionString(dbConfig *datamodels.PostgresConfig) string {
	if dbConfig.URI != "" { // If url is provided, use it
		return dbConfig.URI
	}

	sslMode := dbConfig.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	hostPort := net.JoinHostPort(dbConfig.Host, strconv.Itoa(dbConfig.Port))

	if dbConfig.Password == "" {
		slog.Warn("No password provided for database connection, using empty password")
		return fmt.Sprintf("postgres://%s@%s/%s?search_path=public&sslmode=%s",
			dbConfig.User,
			hostPort,
			dbConfig.Database,
			sslMode,
		)
	}

	return fmt.Sprintf("postgres://%s:%s@%s/%s?search_path=public&sslmode=%s",
		dbConfig.User,
		dbConfig.Password,
		hostPort,
		dbConfig.Database,
		sslMode,
	)
}
