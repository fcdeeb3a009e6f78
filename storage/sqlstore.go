package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yush1006/todo/domain"
)

// taskRecord is the tasks table row.
type taskRecord struct {
	ID          string     `gorm:"primaryKey;size:36"`
	OwnerID     string     `gorm:"not null;index:idx_owner_order,priority:1"`
	Text        string     `gorm:"not null"`
	Completed   bool       `gorm:"not null;default:false"`
	CreatedAt   time.Time  `gorm:"autoCreateTime:false"`
	CompletedAt *time.Time
	SortOrder   int64 `gorm:"not null;index:idx_owner_order,priority:2"`
}

func (taskRecord) TableName() string { return "tasks" }

func (r taskRecord) toDomain() domain.Task {
	t := domain.Task{
		ID:        r.ID,
		OwnerID:   r.OwnerID,
		Text:      r.Text,
		Completed: r.Completed,
		CreatedAt: r.CreatedAt.UTC(),
		Order:     r.SortOrder,
	}
	if r.Completed && r.CompletedAt != nil {
		ts := r.CompletedAt.UTC()
		t.CompletedAt = &ts
	}
	return t
}

// SQLStore keeps tasks in a relational database through gorm.
type SQLStore struct {
	db  *gorm.DB
	now func() time.Time
}

// OpenSQLite opens the SQLite database at dsn and migrates the tasks table.
func OpenSQLite(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, err
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// Migrate creates or updates the tasks table.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&taskRecord{})
}

func NewSQLStore(db *gorm.DB) *SQLStore {
	return &SQLStore{db: db, now: time.Now}
}

func (s *SQLStore) FetchTasks(ctx context.Context, ownerID string) ([]domain.Task, error) {
	var records []taskRecord
	err := s.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("sort_order asc").Order("id asc").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	tasks := make([]domain.Task, 0, len(records))
	for _, r := range records {
		tasks = append(tasks, r.toDomain())
	}
	return tasks, nil
}

func (s *SQLStore) CreateTask(ctx context.Context, task domain.NewTask) (domain.Task, error) {
	if err := validateNewTask(task); err != nil {
		return domain.Task{}, err
	}
	rec := taskRecord{
		ID:        uuid.NewString(),
		OwnerID:   task.OwnerID,
		Text:      task.Text,
		CreatedAt: s.now().UTC(),
		SortOrder: task.Order,
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return domain.Task{}, err
	}
	return rec.toDomain(), nil
}

func (s *SQLStore) UpdateTask(ctx context.Context, ownerID, id string, patch domain.TaskPatch) (domain.Task, error) {
	if err := validatePatch(patch); err != nil {
		return domain.Task{}, err
	}
	var out domain.Task
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		t, err := s.apply(tx, ownerID, id, patch, s.now())
		out = t
		return err
	})
	return out, err
}

func (s *SQLStore) DeleteTask(ctx context.Context, ownerID, id string) error {
	return s.db.WithContext(ctx).
		Where("owner_id = ? AND id = ?", ownerID, id).
		Delete(&taskRecord{}).Error
}

// BatchUpdate applies every update inside one transaction; a missing task
// rolls the whole batch back.
func (s *SQLStore) BatchUpdate(ctx context.Context, ownerID string, updates []domain.TaskUpdate) error {
	if err := validateBatch(updates); err != nil {
		return err
	}
	now := s.now()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, u := range updates {
			if _, err := s.apply(tx, ownerID, u.ID, u.Patch, now); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLStore) apply(tx *gorm.DB, ownerID, id string, patch domain.TaskPatch, now time.Time) (domain.Task, error) {
	var rec taskRecord
	err := tx.Where("owner_id = ? AND id = ?", ownerID, id).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Task{}, ErrTaskNotFound
		}
		return domain.Task{}, err
	}
	t := rec.toDomain()
	patch.Apply(&t, now)
	res := tx.Model(&taskRecord{}).
		Where("owner_id = ? AND id = ?", ownerID, id).
		Updates(map[string]interface{}{
			"text":         t.Text,
			"completed":    t.Completed,
			"completed_at": t.CompletedAt,
			"sort_order":   t.Order,
		})
	if res.Error != nil {
		return domain.Task{}, res.Error
	}
	if res.RowsAffected == 0 {
		return domain.Task{}, ErrTaskNotFound
	}
	return t, nil
}
