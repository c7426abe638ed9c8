package chatroom

import (
	"fmt"
	"strings"
	"time"
)

// RoomType 聊天室类型
type RoomType string

const (
	RoomTypeDirect RoomType = "DIRECT" // 1:1 聊天室，成员固定为创建时的两人
	RoomTypeGroup  RoomType = "GROUP"  // 群聊天室，成员可动态变化
)

// Times 各实体共用的创建/更新时间，构造与变更时显式赋值
type Times struct {
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewTimes 以当前时间初始化
func NewTimes() Times {
	now := time.Now()
	return Times{CreatedAt: now, UpdatedAt: now}
}

// Touch 变更时刷新更新时间
func (t *Times) Touch() {
	t.UpdatedAt = time.Now()
}

// Room 聊天室模型。RoomCode 是对外暴露的稳定标识，与自增主键分离。
// 1:1 聊天室通过 PairKey 的唯一索引保证同一对成员只有一个活跃房间。
type Room struct {
	ID         uint64   `gorm:"primaryKey"`
	RoomCode   string   `gorm:"size:36;uniqueIndex;not null"`
	Name       string   `gorm:"size:255;not null"`           // 自动生成的默认名称
	CustomName *string  `gorm:"size:255"`                    // 用户指定名称，nil 时回退到默认名称
	RoomType   RoomType `gorm:"size:16;not null"`
	Active     bool     `gorm:"not null;default:true"`
	PairKey    *string  `gorm:"size:64;uniqueIndex"` // 仅 DIRECT 填写：direct:{小ID}:{大ID}
	Times
}

func (Room) TableName() string { return "chat_rooms" }

// IsDirect 是否 1:1 聊天室
func (r *Room) IsDirect() bool { return r.RoomType == RoomTypeDirect }

// Deactivate 最后一名活跃成员退出后关闭房间
func (r *Room) Deactivate() {
	r.Active = false
	r.Touch()
}

// DirectPairKey 生成 1:1 聊天室的无序成员对唯一键
func DirectPairKey(a, b int64) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("direct:%d:%d", a, b)
}

// DirectRoomName 1:1 聊天室默认名称
func DirectRoomName(nameA, nameB string) string {
	return fmt.Sprintf("%s, %s 님의 대화방", nameA, nameB)
}

// GroupRoomName 群聊天室默认名称：最多取前 3 名成员名，
// 超过 3 人时以“외 N 명”收尾。total 为当前活跃成员总数。
func GroupRoomName(names []string, total int) string {
	head := names
	if len(head) > 3 {
		head = head[:3]
	}
	joined := strings.Join(head, ", ")
	if total > 3 {
		return fmt.Sprintf("%s 외 %d 명의 대화방", joined, total-3)
	}
	return fmt.Sprintf("%s 님의 대화방", joined)
}

// DirectPartnerName 1:1 聊天室里，从当前成员视角展示的对方名称
func DirectPartnerName(otherName string) string {
	return fmt.Sprintf("%s 님과의 대화", otherName)
}
