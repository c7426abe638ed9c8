package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/gochatroom/internal/auth"
	"github.com/example/gochatroom/internal/config"
	"github.com/example/gochatroom/internal/datamodels/chatroom"
	"github.com/example/gochatroom/internal/datamodels/member"
)

// MemberService 注册 / 登录 / 资料查询
type MemberService struct {
	repo member.Repository
	jwt  *config.JWTConfig
}

// NewMemberService 创建成员服务
func NewMemberService(repo member.Repository, jwt *config.JWTConfig) *MemberService {
	return &MemberService{repo: repo, jwt: jwt}
}

func hashPassword(raw, salt string) string {
	h := sha256.Sum256([]byte(raw + salt))
	return hex.EncodeToString(h[:])
}

func newSalt() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand 失败极少见，退化为时间盐
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}

// Register 注册新成员
func (s *MemberService) Register(ctx context.Context, userID, name, password, email string) (*member.Member, error) {
	userID = strings.TrimSpace(userID)
	name = strings.TrimSpace(name)
	if userID == "" || name == "" || password == "" {
		return nil, fmt.Errorf("%w: 아이디, 이름, 비밀번호는 필수 입니다", chatroom.ErrInvalidArgument)
	}

	m := &member.Member{
		UserID:    userID,
		Name:      name,
		Email:     email,
		Salt:      newSalt(),
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	m.Password = hashPassword(password, m.Salt)
	if err := s.repo.Create(ctx, m); err != nil {
		if errors.Is(err, chatroom.ErrDuplicateKey) {
			return nil, fmt.Errorf("%w: 이미 사용 중인 아이디입니다", chatroom.ErrInvalidState)
		}
		return nil, err
	}
	return m, nil
}

// Login 校验口令并返回 JWT
func (s *MemberService) Login(ctx context.Context, userID, password string) (string, *member.Member, error) {
	m, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, chatroom.ErrNotFound) {
			return "", nil, fmt.Errorf("%w: 아이디 또는 비밀번호가 올바르지 않습니다", chatroom.ErrUnauthorized)
		}
		return "", nil, err
	}
	if hashPassword(password, m.Salt) != m.Password {
		return "", nil, fmt.Errorf("%w: 아이디 또는 비밀번호가 올바르지 않습니다", chatroom.ErrUnauthorized)
	}
	token, err := auth.GenerateToken(s.jwt, m.ID, m.UserID, m.Name)
	if err != nil {
		return "", nil, err
	}
	return token, m, nil
}

// Profile 查询成员资料
func (s *MemberService) Profile(ctx context.Context, id int64) (*member.Member, error) {
	return s.repo.GetByID(ctx, id)
}
