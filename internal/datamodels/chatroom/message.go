package chatroom

// MessageType 消息类型
type MessageType string

const (
	MessageTypeChat   MessageType = "CHAT"   // 普通聊天消息，计入未读数
	MessageTypeSystem MessageType = "SYSTEM" // 系统消息，不计未读
)

// Sender 消息发送方：要么是某个成员，要么是系统。
// 避免 nullable 外键的判空逻辑扩散到渲染层。
type Sender struct {
	memberID int64
	system   bool
}

// SystemSender 系统发送方
func SystemSender() Sender { return Sender{system: true} }

// MemberSender 成员发送方
func MemberSender(memberID int64) Sender { return Sender{memberID: memberID} }

// IsSystem 是否系统消息发送方
func (s Sender) IsSystem() bool { return s.system }

// MemberID 成员 ID；系统发送方返回 false
func (s Sender) MemberID() (int64, bool) {
	if s.system {
		return 0, false
	}
	return s.memberID, true
}

// Message 聊天消息。自增 ID 同时充当排序与读游标的序号，创建后不可变。
type Message struct {
	ID          uint64      `gorm:"primaryKey"`
	RoomID      uint64      `gorm:"index;not null"`
	SenderID    *int64      `gorm:"index"` // nil 仅用于系统消息
	Content     string      `gorm:"size:1000;not null"`
	MessageType MessageType `gorm:"size:16;not null;index"`
	Times
}

func (Message) TableName() string { return "chat_messages" }

// NewChatMessage 成员发送的普通消息
func NewChatMessage(roomID uint64, senderID int64, content string) *Message {
	return &Message{
		RoomID:      roomID,
		SenderID:    &senderID,
		Content:     content,
		MessageType: MessageTypeChat,
		Times:       NewTimes(),
	}
}

// NewSystemMessage 无发送者的系统消息
func NewSystemMessage(roomID uint64, content string) *Message {
	return &Message{
		RoomID:      roomID,
		Content:     content,
		MessageType: MessageTypeSystem,
		Times:       NewTimes(),
	}
}

// Sender 返回消息发送方
func (m *Message) Sender() Sender {
	if m.SenderID == nil {
		return SystemSender()
	}
	return MemberSender(*m.SenderID)
}
