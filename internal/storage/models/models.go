package models

import "time"

// 注意：
// - 与 internal/migrate/sql 下的迁移保持对齐
// - 不使用 gorm.Model，显式声明每个字段，避免隐式 DeletedAt

// Program 映射 programs 表：编译后的预置包与可选的 YAML 源
type Program struct {
	ID   int64  `gorm:"column:id;primaryKey;autoIncrement"`
	Name string `gorm:"column:name;type:text;not null;uniqueIndex"`
	// SLIP 成帧的预置包字节
	Data []byte `gorm:"column:data;type:bytea;not null"`
	// YAML 程序源，直接上传预置包时为空
	Source  *string `gorm:"column:source;type:text"`
	Records int32   `gorm:"column:records;not null;default:0"`
	// 审计字段
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (Program) TableName() string { return "programs" }
