package chatroom

import "errors"

// 领域错误基类。服务层统一用 %w 包装，HTTP 层通过 errors.Is 映射状态码，
// 调用方可以稳定区分“不存在/无权限/状态冲突/参数非法”。
var (
	ErrNotFound        = errors.New("not found")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrInvalidState    = errors.New("invalid state")
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrDuplicateKey 唯一索引冲突，仓储层从驱动错误翻译而来。
	// 1:1 房间并发创建的输家靠它识别后回读赢家的房间。
	ErrDuplicateKey = errors.New("duplicate key")
)
