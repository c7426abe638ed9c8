package server

import (
	"errors"
	"strings"
	"time"

	"github.com/kataras/iris/v12"
	"go.uber.org/zap"

	"github.com/example/gochatroom/internal/auth"
	"github.com/example/gochatroom/internal/config"
	"github.com/example/gochatroom/internal/datamodels/chatroom"
	"github.com/example/gochatroom/internal/infra/mq"
	"github.com/example/gochatroom/internal/infra/redis"
	"github.com/example/gochatroom/internal/middleware"
	"github.com/example/gochatroom/internal/repository/mysql"
	"github.com/example/gochatroom/internal/service"
)

// RegisterRoutes 注册所有 HTTP 路由
func RegisterRoutes(app *iris.Application, cfg *config.Config) {
	// 初始化基础设施
	db := mysql.Init(&cfg.MySQL)
	redisClient := redis.Init(&cfg.Redis)
	mqConn := mq.Init(&cfg.RabbitMQ)

	// 仓储与服务
	store := mysql.NewChatStore(db)
	memberRepo := mysql.NewMemberRepository(db)
	notifier := mq.NewNotifier(mqConn)

	memberSvc := service.NewMemberService(memberRepo, &cfg.JWT)
	unreadSvc := service.NewUnreadService(store, redisClient, cfg.Chat.UnreadCacheTTLSeconds)
	roomSvc := service.NewRoomService(store, memberRepo, unreadSvc, &cfg.Chat)
	membershipSvc := service.NewMembershipService(store, memberRepo, service.NewSystemMessageService())
	messageSvc := service.NewMessageService(store, memberRepo, roomSvc, notifier)

	ring := auth.NewConsistentHashRing(cfg.Auth.Nodes, cfg.Auth.HashReplicas)
	tokenCache := auth.NewTokenCache(redisClient, ring, time.Duration(cfg.Auth.TokenCacheTTLSeconds)*time.Second)

	api := app.Party("/api/v1")

	// 健康检查
	api.Get("/health", func(ctx iris.Context) {
		ctx.JSON(iris.Map{"code": 0, "msg": "ok"})
	})

	// 注册 / 登录
	api.Post("/register", func(ctx iris.Context) {
		var req struct {
			UserID   string `json:"user_id"`
			Name     string `json:"name"`
			Password string `json:"password"`
			Email    string `json:"email"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		m, err := memberSvc.Register(ctx.Request().Context(), req.UserID, req.Name, req.Password, req.Email)
		if err != nil {
			fail(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": iris.Map{
			"id":      m.ID,
			"user_id": m.UserID,
			"name":    m.Name,
		}})
	})

	api.Post("/login", func(ctx iris.Context) {
		var req struct {
			UserID   string `json:"user_id"`
			Password string `json:"password"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		token, m, err := memberSvc.Login(ctx.Request().Context(), req.UserID, req.Password)
		if err != nil {
			ctx.StopWithJSON(401, iris.Map{"code": 401, "msg": "아이디 또는 비밀번호가 올바르지 않습니다"})
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": iris.Map{
			"token": token,
			"id":    m.ID,
			"name":  m.Name,
		}})
	})

	// 需要登录的接口
	authAPI := api.Party("/", authMiddleware(&cfg.JWT, tokenCache))

	authAPI.Get("/me", func(ctx iris.Context) {
		m, err := memberSvc.Profile(ctx.Request().Context(), callerID(ctx))
		if err != nil {
			fail(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": iris.Map{
			"id":        m.ID,
			"user_id":   m.UserID,
			"name":      m.Name,
			"email":     m.Email,
			"image_url": m.ImageURL,
		}})
	})

	// ---------------- 房间 ----------------

	chat := authAPI.Party("/chat")

	chat.Post("/rooms/direct", middleware.CreateRoomRateLimit(), func(ctx iris.Context) {
		var req struct {
			PartnerID int64 `json:"partner_id"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		caller := callerID(ctx)
		room, err := roomSvc.CreateDirectRoom(ctx.Request().Context(), caller, caller, req.PartnerID)
		if err != nil {
			fail(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": room})
	})

	chat.Post("/rooms/group", middleware.CreateRoomRateLimit(), func(ctx iris.Context) {
		var req struct {
			InviteeIDs []int64 `json:"invitee_ids"`
			Name       string  `json:"name"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		caller := callerID(ctx)
		room, err := roomSvc.CreateGroupRoom(ctx.Request().Context(), caller, caller, req.InviteeIDs, req.Name)
		if err != nil {
			fail(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": room})
	})

	chat.Get("/rooms", func(ctx iris.Context) {
		page := ctx.URLParamIntDefault("page", 1)
		size := ctx.URLParamIntDefault("size", cfg.Chat.RoomListPageSize)
		list, err := roomSvc.RoomList(ctx.Request().Context(), callerID(ctx), page, size)
		if err != nil {
			fail(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": list})
	})

	chat.Get("/rooms/{code:string}", func(ctx iris.Context) {
		detail, err := roomSvc.RoomDetail(ctx.Request().Context(), callerID(ctx), ctx.Params().Get("code"))
		if err != nil {
			fail(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": detail})
	})

	chat.Get("/rooms/{code:string}/members", func(ctx iris.Context) {
		members, err := roomSvc.ListRoomMembers(ctx.Request().Context(), callerID(ctx), ctx.Params().Get("code"))
		if err != nil {
			fail(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": members})
	})

	// ---------------- 成员关系 ----------------

	chat.Post("/rooms/{code:string}/invite", func(ctx iris.Context) {
		var req struct {
			MemberID int64 `json:"member_id"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		if err := membershipSvc.Invite(ctx.Request().Context(), callerID(ctx), ctx.Params().Get("code"), req.MemberID); err != nil {
			fail(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "msg": "ok"})
	})

	chat.Post("/rooms/{code:string}/leave", func(ctx iris.Context) {
		if err := membershipSvc.Leave(ctx.Request().Context(), callerID(ctx), ctx.Params().Get("code")); err != nil {
			fail(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "msg": "ok"})
	})

	chat.Post("/rooms/{code:string}/kick", func(ctx iris.Context) {
		var req struct {
			MemberID int64 `json:"member_id"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		if err := membershipSvc.Kick(ctx.Request().Context(), callerID(ctx), ctx.Params().Get("code"), req.MemberID); err != nil {
			fail(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "msg": "ok"})
	})

	chat.Post("/rooms/{code:string}/block", func(ctx iris.Context) {
		var req struct {
			MemberID int64 `json:"member_id"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		if err := membershipSvc.Block(ctx.Request().Context(), callerID(ctx), ctx.Params().Get("code"), req.MemberID); err != nil {
			fail(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "msg": "ok"})
	})

	chat.Post("/rooms/{code:string}/unblock", func(ctx iris.Context) {
		var req struct {
			MemberID int64 `json:"member_id"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		if err := membershipSvc.Unblock(ctx.Request().Context(), callerID(ctx), ctx.Params().Get("code"), req.MemberID); err != nil {
			fail(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "msg": "ok"})
	})

	chat.Patch("/rooms/{code:string}/name", func(ctx iris.Context) {
		var req struct {
			Name string `json:"name"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		if err := membershipSvc.Rename(ctx.Request().Context(), callerID(ctx), ctx.Params().Get("code"), req.Name); err != nil {
			fail(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "msg": "ok"})
	})

	chat.Patch("/rooms/{code:string}/notifications", func(ctx iris.Context) {
		if err := membershipSvc.ToggleNotifications(ctx.Request().Context(), callerID(ctx), ctx.Params().Get("code")); err != nil {
			fail(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "msg": "ok"})
	})

	// ---------------- 消息与已读 ----------------

	chat.Post("/rooms/{code:string}/messages", func(ctx iris.Context) {
		var req struct {
			Content string `json:"content"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		msg, err := messageSvc.Send(ctx.Request().Context(), callerID(ctx), ctx.Params().Get("code"), req.Content)
		if err != nil {
			fail(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": msg})
	})

	chat.Get("/rooms/{code:string}/messages", func(ctx iris.Context) {
		page := ctx.URLParamIntDefault("page", 1)
		size := ctx.URLParamIntDefault("size", cfg.Chat.RecentMessageCount)
		list, err := messageSvc.List(ctx.Request().Context(), callerID(ctx), ctx.Params().Get("code"), page, size)
		if err != nil {
			fail(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": list})
	})

	chat.Post("/rooms/{code:string}/read", func(ctx iris.Context) {
		var req struct {
			MessageID uint64 `json:"message_id"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			ctx.StopWithJSON(400, iris.Map{"code": 400, "msg": err.Error()})
			return
		}
		if err := unreadSvc.MarkRead(ctx.Request().Context(), callerID(ctx), ctx.Params().Get("code"), req.MessageID); err != nil {
			fail(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "msg": "ok"})
	})

	chat.Post("/rooms/{code:string}/read-all", func(ctx iris.Context) {
		if err := unreadSvc.MarkAllRead(ctx.Request().Context(), callerID(ctx), ctx.Params().Get("code")); err != nil {
			fail(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "msg": "ok"})
	})

	chat.Get("/unread", func(ctx iris.Context) {
		counts, err := unreadSvc.UnreadCounts(ctx.Request().Context(), callerID(ctx))
		if err != nil {
			fail(ctx, err)
			return
		}
		ctx.JSON(iris.Map{"code": 0, "data": counts})
	})

	// 运行指标
	authAPI.Get("/stats", func(ctx iris.Context) {
		ctx.JSON(iris.Map{"code": 0, "data": service.GetMonitor().Snapshot()})
	})
}

// authMiddleware 解析 JWT 并把成员身份放进请求上下文，解析结果走 Redis 缓存
func authMiddleware(jwtCfg *config.JWTConfig, cache *auth.TokenCache) iris.Handler {
	return func(ctx iris.Context) {
		token := strings.TrimPrefix(ctx.GetHeader("Authorization"), "Bearer ")
		if token == "" {
			ctx.StopWithJSON(401, iris.Map{"code": 401, "msg": "missing token"})
			return
		}

		claims, hit, err := cache.Get(ctx.Request().Context(), token)
		if err != nil {
			service.GetMonitor().RecordRedisError()
			zap.L().Warn("token cache get failed", zap.Error(err))
		}
		if !hit {
			claims, err = auth.ParseToken(jwtCfg, token)
			if err != nil {
				ctx.StopWithJSON(401, iris.Map{"code": 401, "msg": "invalid token"})
				return
			}
			if err := cache.Set(ctx.Request().Context(), token, claims); err != nil {
				service.GetMonitor().RecordRedisError()
				zap.L().Warn("token cache set failed", zap.Error(err))
			}
		}

		ctx.Values().Set("member_id", claims.MemberID)
		ctx.Values().Set("user_id", claims.UserID)
		ctx.Values().Set("name", claims.Name)
		ctx.Next()
	}
}

func callerID(ctx iris.Context) int64 {
	return ctx.Values().GetInt64Default("member_id", 0)
}

// fail 把服务层错误翻译成 HTTP 状态码
func fail(ctx iris.Context, err error) {
	status := 500
	switch {
	case errors.Is(err, chatroom.ErrNotFound):
		status = 404
	case errors.Is(err, chatroom.ErrUnauthorized):
		status = 403
	case errors.Is(err, chatroom.ErrInvalidState):
		status = 409
	case errors.Is(err, chatroom.ErrInvalidArgument):
		status = 400
	default:
		zap.L().Error("request failed", zap.String("path", ctx.Path()), zap.Error(err))
	}
	ctx.StopWithJSON(status, iris.Map{"code": status, "msg": err.Error()})
}
