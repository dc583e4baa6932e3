package storage

import (
	"database/sql"
	"log"
	"os"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Database interface {
	Open() error
	Close()

	Persons
	Communities
	Instances
	Posts
	Comments
	PrivateMessages
	Followers
	Moderators
	Reports
}

// sqliteDatabase holds every federated entity kind in one sqlite file.
// IRI primary keys double as the uniqueness backstop for concurrent
// fetch-and-persist of the same remote object.
type sqliteDatabase struct {
	connection string
	db         *gorm.DB
	sqldb      *sql.DB
}

func (s *sqliteDatabase) Open() error {
	if s.db != nil {
		s.Close()
	}
	newLogger := logger.New(
		log.New(os.Stdout, "", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Error,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(sqlite.Open(s.connection), &gorm.Config{
		Logger: newLogger,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return err
	}
	s.sqldb, err = db.DB()
	if err != nil {
		return err
	}
	s.db = db
	// create tables
	s.db.Migrator().AutoMigrate(&Person{})
	s.db.Migrator().AutoMigrate(&Community{})
	s.db.Migrator().AutoMigrate(&Instance{})
	s.db.Migrator().AutoMigrate(&Post{})
	s.db.Migrator().AutoMigrate(&Comment{})
	s.db.Migrator().AutoMigrate(&PrivateMessage{})
	s.db.Migrator().AutoMigrate(&CommunityFollower{})
	s.db.Migrator().AutoMigrate(&CommunityModerator{})
	s.db.Migrator().AutoMigrate(&Report{})
	return nil
}

func (s *sqliteDatabase) Close() {
	if s.db != nil {
		s.sqldb.Close()
		s.sqldb = nil
		s.db = nil
	}
}

func NewDatabase(connection string) Database {
	return &sqliteDatabase{
		connection: connection,
	}
}
