package member

import (
	"context"
	"time"
)

// Member 成员模型（身份与展示属性），聊天室核心只读引用它
type Member struct {
	ID        int64  `gorm:"primaryKey"`
	UserID    string `gorm:"uniqueIndex;size:64;not null"` // 登录 ID
	Name      string `gorm:"size:100;not null"`
	Email     string `gorm:"size:255"`
	Password  string `gorm:"size:255;not null"` // 已加密密码
	Salt      string `gorm:"size:64"`
	ImageURL  string `gorm:"size:512"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Member) TableName() string { return "members" }

// Repository 成员目录接口
type Repository interface {
	GetByID(ctx context.Context, id int64) (*Member, error)
	GetByUserID(ctx context.Context, userID string) (*Member, error)
	Exists(ctx context.Context, id int64) (bool, error)
	ListByIDs(ctx context.Context, ids []int64) ([]*Member, error)
	Create(ctx context.Context, m *Member) error
}
