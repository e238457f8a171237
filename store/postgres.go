package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// documentRecord is one document of any collection, stored as JSONB.
type documentRecord struct {
	Collection string            `gorm:"primaryKey;size:64"`
	DocID      string            `gorm:"primaryKey;column:doc_id;size:128"`
	Data       datatypes.JSONMap `gorm:"type:jsonb;not null"`
	UpdatedAt  time.Time         `gorm:"autoUpdateTime"`
}

func (documentRecord) TableName() string { return "documents" }

// messageRecord is one entry of a document's message log.
type messageRecord struct {
	ID         string            `gorm:"primaryKey;type:uuid"`
	Collection string            `gorm:"index:idx_message_parent;size:64;not null"`
	ParentID   string            `gorm:"index:idx_message_parent;size:128;not null"`
	Timestamp  string            `gorm:"index;not null"`
	Data       datatypes.JSONMap `gorm:"type:jsonb;not null"`
	CreatedAt  time.Time         `gorm:"autoCreateTime"`
}

func (messageRecord) TableName() string { return "document_messages" }

// PostgresStore keeps every collection in a single JSONB table through gorm.
type PostgresStore struct {
	DB *gorm.DB
}

func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.AutoMigrate(&documentRecord{}, &messageRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &PostgresStore{DB: db}, nil
}

// jsonPath renders "a.b" as the text[] literal {a,b} for #>> lookups.
func jsonPath(field string) string {
	return "{" + strings.Join(strings.Split(field, "."), ",") + "}"
}

func (s *PostgresStore) Get(ctx context.Context, collection, id string) (Document, error) {
	var rec documentRecord
	err := s.DB.WithContext(ctx).
		Where("collection = ? AND doc_id = ?", collection, id).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return Document(rec.Data), nil
}

func (s *PostgresStore) Set(ctx context.Context, collection, id string, fields Document) error {
	if fields == nil {
		fields = Document{}
	}
	rec := documentRecord{Collection: collection, DocID: id, Data: datatypes.JSONMap(fields)}
	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "collection"}, {Name: "doc_id"}},
		DoUpdates: clause.Set{
			{Column: clause.Column{Name: "data"}, Value: gorm.Expr("documents.data || EXCLUDED.data")},
			{Column: clause.Column{Name: "updated_at"}, Value: gorm.Expr("EXCLUDED.updated_at")},
		},
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("set %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *PostgresStore) Replace(ctx context.Context, collection, id string, doc Document) error {
	rec := documentRecord{Collection: collection, DocID: id, Data: datatypes.JSONMap(doc)}
	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "collection"}, {Name: "doc_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("replace %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, collection, id string) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("collection = ? AND parent_id = ?", collection, id).Delete(&messageRecord{}).Error; err != nil {
			return fmt.Errorf("delete messages of %s/%s: %w", collection, id, err)
		}
		if err := tx.Where("collection = ? AND doc_id = ?", collection, id).Delete(&documentRecord{}).Error; err != nil {
			return fmt.Errorf("delete %s/%s: %w", collection, id, err)
		}
		return nil
	})
}

func (s *PostgresStore) Query(ctx context.Context, collection, field string, value any, limit int) ([]Snapshot, error) {
	q := s.DB.WithContext(ctx).
		Where("collection = ? AND data #>> CAST(? AS text[]) = ?", collection, jsonPath(field), fmt.Sprint(value)).
		Order("doc_id")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var recs []documentRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("query %s where %s: %w", collection, field, err)
	}
	return snapshots(recs), nil
}

func (s *PostgresStore) TopN(ctx context.Context, collection, field string, limit int) ([]Snapshot, error) {
	q := s.DB.WithContext(ctx).
		Where("collection = ? AND data #>> CAST(? AS text[]) IS NOT NULL", collection, jsonPath(field)).
		Order(clause.OrderBy{Expression: clause.Expr{
			SQL:  "(data #>> CAST(? AS text[]))::numeric DESC",
			Vars: []interface{}{jsonPath(field)},
		}})
	if limit > 0 {
		q = q.Limit(limit)
	}
	var recs []documentRecord
	if err := q.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("top %s by %s: %w", collection, field, err)
	}
	return snapshots(recs), nil
}

func (s *PostgresStore) List(ctx context.Context, collection string) ([]Snapshot, error) {
	var recs []documentRecord
	if err := s.DB.WithContext(ctx).Where("collection = ?", collection).Order("doc_id").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	return snapshots(recs), nil
}

func (s *PostgresStore) AddMessage(ctx context.Context, collection, parentID string, msg Document) error {
	rec := messageRecord{
		ID:         uuid.NewString(),
		Collection: collection,
		ParentID:   parentID,
		Timestamp:  fmt.Sprint(msg["timestamp"]),
		Data:       datatypes.JSONMap(msg),
	}
	if err := s.DB.WithContext(ctx).Create(&rec).Error; err != nil {
		return fmt.Errorf("add message to %s/%s: %w", collection, parentID, err)
	}
	return nil
}

func (s *PostgresStore) ListMessages(ctx context.Context, collection, parentID string) ([]Document, error) {
	var recs []messageRecord
	err := s.DB.WithContext(ctx).
		Where("collection = ? AND parent_id = ?", collection, parentID).
		Order("timestamp ASC, created_at ASC").
		Find(&recs).Error
	if err != nil {
		return nil, fmt.Errorf("list messages of %s/%s: %w", collection, parentID, err)
	}
	out := make([]Document, len(recs))
	for i, r := range recs {
		out[i] = Document(r.Data)
	}
	return out, nil
}

func (s *PostgresStore) Close(ctx context.Context) error {
	sqlDB, err := s.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func snapshots(recs []documentRecord) []Snapshot {
	out := make([]Snapshot, len(recs))
	for i, r := range recs {
		out[i] = Snapshot{ID: r.DocID, Data: Document(r.Data)}
	}
	return out
}
