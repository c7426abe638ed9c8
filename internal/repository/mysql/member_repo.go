package mysql

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/example/gochatroom/internal/datamodels/chatroom"
	"github.com/example/gochatroom/internal/datamodels/member"
)

type memberRepo struct {
	db *gorm.DB
}

// NewMemberRepository 创建成员目录仓储
func NewMemberRepository(db *gorm.DB) member.Repository {
	return &memberRepo{db: db}
}

func (r *memberRepo) GetByID(ctx context.Context, id int64) (*member.Member, error) {
	var m member.Member
	if err := r.db.WithContext(ctx).First(&m, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: 사용자를 찾을 수 없습니다: %d", chatroom.ErrNotFound, id)
		}
		return nil, err
	}
	return &m, nil
}

func (r *memberRepo) GetByUserID(ctx context.Context, userID string) (*member.Member, error) {
	var m member.Member
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: 사용자를 찾을 수 없습니다: %s", chatroom.ErrNotFound, userID)
		}
		return nil, err
	}
	return &m, nil
}

func (r *memberRepo) Exists(ctx context.Context, id int64) (bool, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&member.Member{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func (r *memberRepo) ListByIDs(ctx context.Context, ids []int64) ([]*member.Member, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var list []*member.Member
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

func (r *memberRepo) Create(ctx context.Context, m *member.Member) error {
	return translateDuplicate(r.db.WithContext(ctx).Create(m).Error)
}
