package ledger

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

const documentID = "portfolio"

type documentModel struct {
	ID            string         `gorm:"column:id;primaryKey"`
	Body          datatypes.JSON `gorm:"column:body;type:TEXT"`
	UpdatedAtUnix int64          `gorm:"column:updated_at"`
}

func (documentModel) TableName() string { return "ledger_documents" }

// SQLiteStore 把整份账本作为一行 JSON 存入 SQLite，upsert 即原子替换。
type SQLiteStore struct {
	db *gorm.DB
}

func NewSQLiteStore(path string) (*SQLiteStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("ledger: sqlite path cannot be empty")
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&documentModel{}); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Load() (Document, bool, error) {
	var m documentModel
	err := s.db.Where("id = ?", documentID).Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Document{}, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return decodeDocument(m.Body)
}

func (s *SQLiteStore) Save(doc Document) error {
	data, err := encodeDocument(doc)
	if err != nil {
		return err
	}
	m := documentModel{ID: documentID, Body: datatypes.JSON(data), UpdatedAtUnix: time.Now().Unix()}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"body", "updated_at"}),
	}).Create(&m).Error
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
