package structured

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// recordRow is the gorm model behind GormRepo.
type recordRow struct {
	ID                string         `gorm:"primaryKey"`
	UserID            string         `gorm:"not null;uniqueIndex:idx_resume_records_active_hash,where:NOT superseded;index:idx_resume_records_user_created,priority:1"`
	RawContent        string         `gorm:"not null"`
	NormalizedContent string         `gorm:"not null"`
	ParsedData        datatypes.JSON `gorm:"not null"`
	ContentHash       string         `gorm:"not null;uniqueIndex:idx_resume_records_active_hash,where:NOT superseded"`
	Keywords          datatypes.JSON `gorm:"not null"`
	SimilarDocuments  datatypes.JSON `gorm:"not null"`
	IsMergedDocument  bool           `gorm:"not null;default:false"`
	Superseded        bool           `gorm:"not null;default:false"`
	SupersededBy      string
	SupersededAt      *time.Time
	CreatedAt         time.Time `gorm:"index:idx_resume_records_user_created,priority:2"`
	UpdatedAt         time.Time
}

func (recordRow) TableName() string {
	return "resume_records"
}

// GormRepo implements Repo on SQLite through gorm, for single-node setups.
type GormRepo struct {
	db *gorm.DB
}

// OpenSQLite opens (creating if needed) the SQLite file at dbPath.
func OpenSQLite(dbPath string) (*gorm.DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		TranslateError: true,
		Logger:         gormLogger(os.Stderr),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return db, nil
}

// gormLogger reports slow queries and errors only. Lookups by id that miss
// are mapped to ErrNotFound by the repos and are not worth a log line.
func gormLogger(w io.Writer) logger.Interface {
	return logger.New(log.New(w, "gorm ", log.LstdFlags), logger.Config{
		SlowThreshold:             time.Second,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}

// NewGormRepo opens the SQLite file and migrates the schema.
func NewGormRepo(dbPath string) (*GormRepo, error) {
	db, err := OpenSQLite(dbPath)
	if err != nil {
		return nil, err
	}
	return NewGormRepoWithDB(db)
}

// NewGormRepoWithDB migrates the schema on an existing connection.
func NewGormRepoWithDB(db *gorm.DB) (*GormRepo, error) {
	if err := db.AutoMigrate(&recordRow{}); err != nil {
		return nil, fmt.Errorf("auto migrate resume records: %w", err)
	}
	return &GormRepo{db: db}, nil
}

// Close closes the underlying connection.
func (r *GormRepo) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("get sql DB: %w", err)
	}
	return sqlDB.Close()
}

// Create inserts a new record.
func (r *GormRepo) Create(ctx context.Context, rec ResumeRecord) error {
	row, err := toRow(rec)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("%w: %v", ErrDuplicateContent, err)
		}
		return err
	}
	return nil
}

// CreateMerged inserts merged and supersedes the ids in one transaction.
func (r *GormRepo) CreateMerged(ctx context.Context, merged ResumeRecord, supersededIDs []string, at time.Time) error {
	row, err := toRow(merged)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return fmt.Errorf("%w: %v", ErrDuplicateContent, err)
			}
			return err
		}
		return supersede(tx, merged.UserID, supersededIDs, merged.ID, at)
	})
}

// GetByID returns a record of the user.
func (r *GormRepo) GetByID(ctx context.Context, userID, id string) (ResumeRecord, error) {
	var row recordRow
	err := r.db.WithContext(ctx).Where("user_id = ? AND id = ?", userID, id).First(&row).Error
	return fromRowErr(row, err)
}

// FindActiveByHash returns the active record of the user with the hash.
// A miss is the common case for new content, so it is not a query error.
func (r *GormRepo) FindActiveByHash(ctx context.Context, userID, contentHash string) (ResumeRecord, error) {
	var rows []recordRow
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND content_hash = ? AND NOT superseded", userID, contentHash).
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return ResumeRecord{}, err
	}
	if len(rows) == 0 {
		return ResumeRecord{}, ErrNotFound
	}
	return fromRow(rows[0])
}

// FindSimilar returns active records sharing a keyword or containing the probe.
func (r *GormRepo) FindSimilar(ctx context.Context, q SimilarQuery) ([]ResumeRecord, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = candidateFetchLimit
	}
	db := r.db.WithContext(ctx)
	match := db.Where("EXISTS (SELECT 1 FROM json_each(resume_records.keywords) WHERE json_each.value IN ?)", nonNil(q.Keywords))
	if q.Probe != "" {
		match = match.Or("instr(normalized_content, ?) > 0", q.Probe)
	}
	var rows []recordRow
	err := db.
		Where("user_id = ? AND NOT superseded AND id <> ?", q.UserID, q.ExcludeID).
		Where(match).
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return fromRows(rows)
}

// UpdateContent refreshes an active record in place.
func (r *GormRepo) UpdateContent(ctx context.Context, userID, id string, upd ContentUpdate) error {
	parsed, err := json.Marshal(upd.ParsedData.Normalized())
	if err != nil {
		return err
	}
	keywords, err := json.Marshal(nonNil(upd.Keywords))
	if err != nil {
		return err
	}
	res := r.db.WithContext(ctx).Model(&recordRow{}).
		Where("user_id = ? AND id = ? AND NOT superseded", userID, id).
		Updates(map[string]any{
			"raw_content":        upd.RawContent,
			"normalized_content": Normalize(upd.RawContent),
			"parsed_data":        datatypes.JSON(parsed),
			"keywords":           datatypes.JSON(keywords),
			"updated_at":         upd.UpdatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkSuperseded flags the given records of the user as folded into supersededBy.
func (r *GormRepo) MarkSuperseded(ctx context.Context, userID string, ids []string, supersededBy string, at time.Time) error {
	return supersede(r.db.WithContext(ctx), userID, ids, supersededBy, at)
}

func supersede(db *gorm.DB, userID string, ids []string, supersededBy string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	return db.Model(&recordRow{}).
		Where("user_id = ? AND id IN ?", userID, ids).
		Updates(map[string]any{
			"superseded":    true,
			"superseded_by": supersededBy,
			"superseded_at": at,
			"updated_at":    at,
		}).Error
}

// ListByUser lists records of the user newest first.
func (r *GormRepo) ListByUser(ctx context.Context, userID string, opts ListOptions) ([]ResumeRecord, error) {
	opts = opts.normalized()
	query := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if !opts.IncludeSuperseded {
		query = query.Where("NOT superseded")
	}
	var rows []recordRow
	if err := query.Order("created_at DESC").Limit(opts.Limit).Offset(opts.Offset).Find(&rows).Error; err != nil {
		return nil, err
	}
	return fromRows(rows)
}

func toRow(rec ResumeRecord) (recordRow, error) {
	parsed, keywords, similar, err := encodeRecordJSON(rec)
	if err != nil {
		return recordRow{}, err
	}
	return recordRow{
		ID:                rec.ID,
		UserID:            rec.UserID,
		RawContent:        rec.RawContent,
		NormalizedContent: Normalize(rec.RawContent),
		ParsedData:        datatypes.JSON(parsed),
		ContentHash:       rec.ContentHash,
		Keywords:          datatypes.JSON(keywords),
		SimilarDocuments:  datatypes.JSON(similar),
		IsMergedDocument:  rec.IsMergedDocument,
		Superseded:        rec.Superseded,
		SupersededBy:      rec.SupersededBy,
		SupersededAt:      rec.SupersededAt,
		CreatedAt:         rec.CreatedAt,
		UpdatedAt:         rec.UpdatedAt,
	}, nil
}

func fromRow(row recordRow) (ResumeRecord, error) {
	rec := ResumeRecord{
		ID:               row.ID,
		UserID:           row.UserID,
		RawContent:       row.RawContent,
		ContentHash:      row.ContentHash,
		IsMergedDocument: row.IsMergedDocument,
		Superseded:       row.Superseded,
		SupersededBy:     row.SupersededBy,
		SupersededAt:     row.SupersededAt,
		CreatedAt:        row.CreatedAt.UTC(),
		UpdatedAt:        row.UpdatedAt.UTC(),
	}
	if err := decodeRecordJSON(&rec, row.ParsedData, row.Keywords, row.SimilarDocuments); err != nil {
		return ResumeRecord{}, err
	}
	return rec, nil
}

func fromRowErr(row recordRow, err error) (ResumeRecord, error) {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ResumeRecord{}, ErrNotFound
	}
	if err != nil {
		return ResumeRecord{}, err
	}
	return fromRow(row)
}

func fromRows(rows []recordRow) ([]ResumeRecord, error) {
	out := make([]ResumeRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := fromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

var _ Repo = (*GormRepo)(nil)
