package server

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/kataras/iris/v12"
	"go.uber.org/zap"

	"github.com/RajashekarChelimala/comrade-backend/internal/realtime"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// 鉴权走 token，跨域交给前置网关
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsCommand 客户端发来的控制帧
type wsCommand struct {
	Action string `json:"action"` // join / leave
	ChatID string `json:"chat_id"`
}

const (
	wsWriteWait  = 10 * time.Second
	wsPingPeriod = 30 * time.Second
)

// websocketHandler 实时推送入口。客户端先 join 感兴趣的会话，
// 之后这些会话的事件会被持续推送；订阅只对会话成员开放。
func websocketHandler(hub *realtime.Hub) iris.Handler {
	return func(ctx iris.Context) {
		userID := ctx.Values().GetInt64Default("user_id", 0)

		conn, err := upgrader.Upgrade(ctx.ResponseWriter(), ctx.Request(), nil)
		if err != nil {
			zap.S().Warnw("websocket upgrade failed", "user_id", userID, "err", err)
			return
		}

		sub := hub.Register(userID)
		defer hub.Unregister(sub)
		defer conn.Close()

		// 写循环：推事件 + 定期 ping
		done := make(chan struct{})
		go func() {
			defer close(done)
			ticker := time.NewTicker(wsPingPeriod)
			defer ticker.Stop()
			for {
				select {
				case ev, okc := <-sub.C:
					if !okc {
						return
					}
					conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
					if err := conn.WriteJSON(ev); err != nil {
						return
					}
				case <-ticker.C:
					conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
					if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
						return
					}
				}
			}
		}()

		// 读循环：处理 join/leave，连接断开即退出
		reqCtx := ctx.Request().Context()
		for {
			var cmd wsCommand
			if err := conn.ReadJSON(&cmd); err != nil {
				break
			}
			switch cmd.Action {
			case "join":
				if err := hub.Join(reqCtx, sub, cmd.ChatID); err != nil {
					conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
					_ = conn.WriteJSON(iris.Map{"error": err.Error(), "chat_id": cmd.ChatID})
				}
			case "leave":
				hub.Leave(sub, cmd.ChatID)
			}
		}
		conn.Close()
		<-done
	}
}
