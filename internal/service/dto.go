package service

import "time"

// RoomDTO 房间列表条目视图
type RoomDTO struct {
	RoomCode         string     `json:"room_code"`
	DisplayName      string     `json:"display_name"`
	RoomType         string     `json:"room_type"`
	MemberCount      int64      `json:"member_count"`
	UnreadCount      int64      `json:"unread_count"`
	LatestMessage    string     `json:"latest_message,omitempty"`
	LatestMessageAt  *time.Time `json:"latest_message_at,omitempty"`
	LatestSenderID   *int64     `json:"latest_sender_id,omitempty"`
	LatestSenderName string     `json:"latest_sender_name,omitempty"`
}

// RoomListDTO 房间列表视图
type RoomListDTO struct {
	Rooms        []*RoomDTO       `json:"rooms"`
	Page         int              `json:"page"`
	TotalCount   int64            `json:"total_count"`
	UnreadCounts map[string]int64 `json:"unread_counts"`
}

// RoomMemberDTO 房间成员视图
type RoomMemberDTO struct {
	MemberID int64     `json:"member_id"`
	Name     string    `json:"name"`
	ImageURL string    `json:"image_url,omitempty"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joined_at"`
}

// MessageDTO 消息视图。系统消息没有 sender 字段。
type MessageDTO struct {
	ID         uint64    `json:"id"`
	Content    string    `json:"content"`
	Type       string    `json:"type"`
	SenderID   *int64    `json:"sender_id,omitempty"`
	SenderName string    `json:"sender_name,omitempty"`
	SentAt     time.Time `json:"sent_at"`
}

// RoomDetailDTO 房间详情视图：成员 + 最近消息（按时间升序）
type RoomDetailDTO struct {
	RoomCode    string           `json:"room_code"`
	DisplayName string           `json:"display_name"`
	RoomType    string           `json:"room_type"`
	CreatedAt   time.Time        `json:"created_at"`
	Members     []*RoomMemberDTO `json:"members"`
	Messages    []*MessageDTO    `json:"messages"`
}

// MessageListDTO 分页消息视图，从新到旧
type MessageListDTO struct {
	Messages   []*MessageDTO `json:"messages"`
	Page       int           `json:"page"`
	TotalCount int64         `json:"total_count"`
}
