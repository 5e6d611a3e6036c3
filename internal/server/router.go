package server

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kataras/iris/v12"

	"github.com/RajashekarChelimala/comrade-backend/internal/apperrors"
	"github.com/RajashekarChelimala/comrade-backend/internal/auth"
	"github.com/RajashekarChelimala/comrade-backend/internal/config"
	"github.com/RajashekarChelimala/comrade-backend/internal/crypto"
	"github.com/RajashekarChelimala/comrade-backend/internal/infra/mq"
	"github.com/RajashekarChelimala/comrade-backend/internal/infra/redis"
	"github.com/RajashekarChelimala/comrade-backend/internal/media"
	"github.com/RajashekarChelimala/comrade-backend/internal/middleware"
	"github.com/RajashekarChelimala/comrade-backend/internal/realtime"
	"github.com/RajashekarChelimala/comrade-backend/internal/repository/mysql"
	"github.com/RajashekarChelimala/comrade-backend/internal/service"
)

// statusOf 业务错误码到 HTTP 状态码的映射
func statusOf(err error) int {
	switch apperrors.CodeOf(err) {
	case apperrors.CodeInvalidArgument:
		return iris.StatusBadRequest
	case apperrors.CodeNotFound:
		return iris.StatusNotFound
	case apperrors.CodeConflict:
		return iris.StatusConflict
	case apperrors.CodeForbidden:
		return iris.StatusForbidden
	case apperrors.CodeAuthFailure:
		return iris.StatusUnauthorized
	case apperrors.CodeTransient:
		return iris.StatusServiceUnavailable
	default:
		return iris.StatusInternalServerError
	}
}

func fail(ctx iris.Context, err error) {
	status := statusOf(err)
	ctx.StopWithJSON(status, iris.Map{"code": status, "msg": err.Error()})
}

func ok(ctx iris.Context, data interface{}) {
	ctx.JSON(iris.Map{"code": 0, "data": data})
}

// RegisterRoutes 注册所有 HTTP 路由，返回事件桥供入口启动消费循环
func RegisterRoutes(app *iris.Application, cfg *config.Config) (*realtime.EventBridge, error) {
	// 初始化基础设施
	db := mysql.Init(&cfg.MySQL)
	redisClient := redis.Init(&cfg.Redis)
	mqConn := mq.Init(&cfg.RabbitMQ)

	vault, err := crypto.NewKeyVault(cfg.Encryption.MasterSecret)
	if err != nil {
		return nil, err
	}

	// 仓储与服务
	userRepo := mysql.NewUserRepository(db)
	requestRepo := mysql.NewChatRequestRepository(db)
	chatRepo := mysql.NewChatRepository(db)
	messageRepo := mysql.NewMessageRepository(db)

	unread := service.NewUnreadCounter(redisClient)
	userSvc := service.NewUserService(userRepo, &cfg.JWT)
	requestSvc := service.NewRequestService(db, requestRepo, chatRepo, userRepo, vault)
	chatSvc := service.NewChatService(chatRepo, userRepo, unread)

	hub := realtime.NewHub(chatSvc, 32)
	bridge := realtime.NewEventBridge(mqConn, hub)

	messageSvc := service.NewMessageService(chatRepo, messageRepo, userRepo, vault, unread, bridge, cfg.Media.TTL)
	storage := media.NewCloudinary(cfg.Media)
	tokenCache := auth.NewTokenCache(redisClient, time.Duration(cfg.JWT.TokenCacheTTLSeconds)*time.Second)

	validate := validator.New()

	api := app.Party("/api")

	// 健康检查
	api.Get("/health", func(ctx iris.Context) {
		ctx.JSON(iris.Map{"code": 0, "msg": "ok"})
	})

	// 用户注册/登录
	api.Post("/register", func(ctx iris.Context) {
		var req struct {
			Username string `json:"username" validate:"required,min=3,max=64"`
			Password string `json:"password" validate:"required,min=6,max=64"`
			Name     string `json:"name" validate:"max=64"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			fail(ctx, apperrors.InvalidArg(err.Error()))
			return
		}
		if err := validate.Struct(&req); err != nil {
			fail(ctx, apperrors.InvalidArg(err.Error()))
			return
		}
		u, err := userSvc.Register(ctx.Request().Context(), req.Username, req.Password, req.Name)
		if err != nil {
			fail(ctx, err)
			return
		}
		ok(ctx, iris.Map{"id": u.ID, "username": u.Username, "name": u.Name})
	})

	api.Post("/login", func(ctx iris.Context) {
		var req struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			fail(ctx, apperrors.InvalidArg(err.Error()))
			return
		}
		token, u, err := userSvc.Login(ctx.Request().Context(), req.Username, req.Password)
		if err != nil {
			fail(ctx, err)
			return
		}
		ok(ctx, iris.Map{"token": token, "user_id": u.ID, "username": u.Username})
	})

	// 需要登录的接口；解析结果带 Redis 缓存
	authAPI := api.Party("/", func(ctx iris.Context) {
		token := ctx.GetHeader("Authorization")
		if token == "" {
			token = ctx.URLParam("token") // WebSocket 握手带不了自定义头
		}
		if token == "" {
			ctx.StopWithJSON(401, iris.Map{"code": 401, "msg": "missing token"})
			return
		}
		claims, hit, err := tokenCache.Get(ctx.Request().Context(), token)
		if err != nil {
			service.GetMonitor().RecordRedisError()
			hit = false
		}
		if !hit {
			claims, err = auth.ParseToken(&cfg.JWT, token)
			if err != nil {
				ctx.StopWithJSON(401, iris.Map{"code": 401, "msg": "invalid token"})
				return
			}
			_ = tokenCache.Set(ctx.Request().Context(), token, claims)
		}
		ctx.Values().Set("user_id", claims.UserID)
		ctx.Values().Set("username", claims.Username)
		ctx.Next()
	})

	// ---------------- 会话请求 ----------------

	authAPI.Post("/requests", func(ctx iris.Context) {
		var req struct {
			RecipientID int64 `json:"recipient_id" validate:"required"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			fail(ctx, apperrors.InvalidArg(err.Error()))
			return
		}
		if err := validate.Struct(&req); err != nil {
			fail(ctx, apperrors.InvalidArg(err.Error()))
			return
		}
		userID := ctx.Values().GetInt64Default("user_id", 0)
		v, err := requestSvc.SendRequest(ctx.Request().Context(), userID, req.RecipientID)
		if err != nil {
			fail(ctx, err)
			return
		}
		ok(ctx, v)
	})

	authAPI.Post("/requests/{id:uint64}/accept", func(ctx iris.Context) {
		id, _ := ctx.Params().GetUint64("id")
		userID := ctx.Values().GetInt64Default("user_id", 0)
		v, err := requestSvc.AcceptRequest(ctx.Request().Context(), int64(id), userID)
		if err != nil {
			fail(ctx, err)
			return
		}
		ok(ctx, v)
	})

	authAPI.Post("/requests/{id:uint64}/reject", func(ctx iris.Context) {
		id, _ := ctx.Params().GetUint64("id")
		userID := ctx.Values().GetInt64Default("user_id", 0)
		v, err := requestSvc.RejectRequest(ctx.Request().Context(), int64(id), userID)
		if err != nil {
			fail(ctx, err)
			return
		}
		ok(ctx, v)
	})

	authAPI.Get("/requests/incoming", func(ctx iris.Context) {
		userID := ctx.Values().GetInt64Default("user_id", 0)
		vs, err := requestSvc.ListIncoming(ctx.Request().Context(), userID)
		if err != nil {
			fail(ctx, err)
			return
		}
		ok(ctx, vs)
	})

	authAPI.Get("/requests/outgoing", func(ctx iris.Context) {
		userID := ctx.Values().GetInt64Default("user_id", 0)
		vs, err := requestSvc.ListOutgoing(ctx.Request().Context(), userID)
		if err != nil {
			fail(ctx, err)
			return
		}
		ok(ctx, vs)
	})

	// ---------------- 会话与消息 ----------------

	authAPI.Get("/chats", func(ctx iris.Context) {
		userID := ctx.Values().GetInt64Default("user_id", 0)
		vs, err := chatSvc.ListChats(ctx.Request().Context(), userID)
		if err != nil {
			fail(ctx, err)
			return
		}
		ok(ctx, vs)
	})

	authAPI.Get("/chats/{chat_id:string}/messages", func(ctx iris.Context) {
		userID := ctx.Values().GetInt64Default("user_id", 0)
		chatID := ctx.Params().Get("chat_id")
		var before *time.Time
		if raw := ctx.URLParam("before"); raw != "" {
			t, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				fail(ctx, apperrors.InvalidArg("before must be RFC3339"))
				return
			}
			before = &t
		}
		limit := ctx.URLParamIntDefault("limit", 50)
		vs, err := messageSvc.ListMessages(ctx.Request().Context(), userID, chatID, before, limit)
		if err != nil {
			fail(ctx, err)
			return
		}
		ok(ctx, vs)
	})

	sendLimit := middleware.SendMessageRateLimit(cfg.RateLimit.Capacity, cfg.RateLimit.RefillRate)
	authAPI.Post("/messages", sendLimit, func(ctx iris.Context) {
		var req service.SendInput
		if err := ctx.ReadJSON(&req); err != nil {
			fail(ctx, apperrors.InvalidArg(err.Error()))
			return
		}
		if err := validate.Struct(&req); err != nil {
			fail(ctx, apperrors.InvalidArg(err.Error()))
			return
		}
		userID := ctx.Values().GetInt64Default("user_id", 0)
		v, err := messageSvc.Send(ctx.Request().Context(), userID, req)
		if err != nil {
			fail(ctx, err)
			return
		}
		ok(ctx, v)
	})

	authAPI.Post("/messages/{id:uint64}/reactions", func(ctx iris.Context) {
		var req struct {
			Kind string `json:"kind" validate:"required"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			fail(ctx, apperrors.InvalidArg(err.Error()))
			return
		}
		id, _ := ctx.Params().GetUint64("id")
		userID := ctx.Values().GetInt64Default("user_id", 0)
		v, err := messageSvc.React(ctx.Request().Context(), userID, int64(id), req.Kind)
		if err != nil {
			fail(ctx, err)
			return
		}
		ok(ctx, v)
	})

	authAPI.Delete("/messages/{id:uint64}/reactions", func(ctx iris.Context) {
		id, _ := ctx.Params().GetUint64("id")
		userID := ctx.Values().GetInt64Default("user_id", 0)
		v, err := messageSvc.Unreact(ctx.Request().Context(), userID, int64(id))
		if err != nil {
			fail(ctx, err)
			return
		}
		ok(ctx, v)
	})

	authAPI.Post("/messages/{id:uint64}/save", func(ctx iris.Context) {
		id, _ := ctx.Params().GetUint64("id")
		userID := ctx.Values().GetInt64Default("user_id", 0)
		v, err := messageSvc.SaveMedia(ctx.Request().Context(), userID, int64(id))
		if err != nil {
			fail(ctx, err)
			return
		}
		ok(ctx, v)
	})

	// 媒体上传：先传对象存储，拿到引用后再发媒体消息
	authAPI.Post("/media", func(ctx iris.Context) {
		var req struct {
			Data string `json:"data" validate:"required"`
			Kind string `json:"kind" validate:"required,oneof=image video"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			fail(ctx, apperrors.InvalidArg(err.Error()))
			return
		}
		if err := validate.Struct(&req); err != nil {
			fail(ctx, apperrors.InvalidArg(err.Error()))
			return
		}
		asset, err := storage.Upload(ctx.Request().Context(), req.Data, req.Kind)
		if err != nil {
			service.GetMonitor().RecordStorageError()
			fail(ctx, err)
			return
		}
		ok(ctx, asset)
	})

	// ---------------- 拉黑 ----------------

	authAPI.Post("/blocks", func(ctx iris.Context) {
		var req struct {
			UserID int64 `json:"user_id" validate:"required"`
		}
		if err := ctx.ReadJSON(&req); err != nil {
			fail(ctx, apperrors.InvalidArg(err.Error()))
			return
		}
		userID := ctx.Values().GetInt64Default("user_id", 0)
		if err := userSvc.Block(ctx.Request().Context(), userID, req.UserID); err != nil {
			fail(ctx, err)
			return
		}
		ok(ctx, iris.Map{"blocked": req.UserID})
	})

	authAPI.Delete("/blocks/{id:uint64}", func(ctx iris.Context) {
		id, _ := ctx.Params().GetUint64("id")
		userID := ctx.Values().GetInt64Default("user_id", 0)
		if err := userSvc.Unblock(ctx.Request().Context(), userID, int64(id)); err != nil {
			fail(ctx, err)
			return
		}
		ok(ctx, iris.Map{"unblocked": id})
	})

	// ---------------- 运维 ----------------

	authAPI.Get("/admin/stats", func(ctx iris.Context) {
		if ctx.Values().GetString("username") != "admin" {
			fail(ctx, apperrors.ErrNotAllowed)
			return
		}
		ok(ctx, service.GetMonitor().GetStats())
	})

	// ---------------- 实时推送 ----------------

	authAPI.Get("/ws", websocketHandler(hub))

	return bridge, nil
}
