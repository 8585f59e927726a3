package gormrepo

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/taoyao-code/isis-master/internal/canned"
	"github.com/taoyao-code/isis-master/internal/show"
	"github.com/taoyao-code/isis-master/internal/storage/models"
)

// Open 以 DSN 打开 PostgreSQL（gorm 仅用于程序库）
func Open(dsn string) (*gorm.DB, error) {
	return gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
}

// Repository 基于 GORM 的程序库，实现 show.ProgramStore
type Repository struct {
	db *gorm.DB
}

// New 返回使用给定 *gorm.DB 的程序库
func New(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

var _ show.ProgramStore = (*Repository)(nil)

// List 按名称排序列出程序（不读取 data 列）
func (r *Repository) List(ctx context.Context) ([]show.ProgramInfo, error) {
	var rows []struct {
		Name      string
		Size      int
		UpdatedAt time.Time
	}
	err := r.db.WithContext(ctx).
		Model(&models.Program{}).
		Select("name, octet_length(data) AS size, updated_at").
		Order("name").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]show.ProgramInfo, 0, len(rows))
	for _, p := range rows {
		out = append(out, show.ProgramInfo{Name: p.Name, Size: p.Size, UpdatedAt: p.UpdatedAt})
	}
	return out, nil
}

// Load 读取程序字节
func (r *Repository) Load(ctx context.Context, name string) ([]byte, error) {
	p, err := r.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	return p.Data, nil
}

// Get 读取完整程序记录
func (r *Repository) Get(ctx context.Context, name string) (*models.Program, error) {
	var p models.Program
	err := r.db.WithContext(ctx).Where("name = ?", name).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", show.ErrProgramNotFound, name)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Save 按名称插入或覆盖
func (r *Repository) Save(ctx context.Context, name string, data []byte) error {
	records, _, err := canned.ReadAll(bytes.NewReader(data))
	if err != nil {
		return err
	}
	return r.SaveProgram(ctx, &models.Program{Name: name, Data: data, Records: int32(len(records))})
}

// SaveProgram 按名称插入或覆盖，保留 YAML 源
func (r *Repository) SaveProgram(ctx context.Context, p *models.Program) error {
	if err := show.ValidateName(p.Name); err != nil {
		return err
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"data", "source", "records", "updated_at"}),
		}).
		Create(p).Error
}

// Delete 删除程序；不存在时返回 ErrProgramNotFound
func (r *Repository) Delete(ctx context.Context, name string) error {
	res := r.db.WithContext(ctx).Where("name = ?", name).Delete(&models.Program{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", show.ErrProgramNotFound, name)
	}
	return nil
}
