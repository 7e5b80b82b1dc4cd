package handlers

import (
	"net/http"
	"strconv"
	"time"

	"mtsp/internal/middleware"
	"mtsp/internal/services"
	"mtsp/pkg/config"
	"mtsp/pkg/logger"
	"mtsp/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// PresenceHandler 在线状态入口：REST心跳/快照，外加WebSocket长连心跳
type PresenceHandler struct {
	tracker     *services.PresenceTracker
	authService *services.AuthorizationService
	upgrader    websocket.Upgrader
	log         *logrus.Logger
}

func NewPresenceHandler(tracker *services.PresenceTracker, authService *services.AuthorizationService) *PresenceHandler {
	cfg := config.GetConfig()
	allowedOrigins := cfg.CORS.AllowOrigins

	return &PresenceHandler{
		tracker:     tracker,
		authService: authService,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				for _, allowed := range allowedOrigins {
					if allowed == "*" || allowed == origin {
						return true
					}
				}
				logger.GetLogger().Warnf("WebSocket连接被拒绝，非法Origin: %s", origin)
				return false
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		log: logger.GetLogger(),
	}
}

// Heartbeat 上报本人心跳。无所属企业的超级管理员不参与在线统计
func (h *PresenceHandler) Heartbeat(c *gin.Context) {
	actor := middleware.GetActor(c)
	if actor.BusinessID == nil {
		response.BadRequest(c, "当前用户不属于任何企业")
		return
	}

	target := services.Target{BusinessID: *actor.BusinessID, UserID: &actor.UserID}
	if err := h.authService.Authorize(actor, target, services.OpPresenceHeartbeat); err != nil {
		response.HandleError(c, err)
		return
	}

	h.tracker.Heartbeat(*actor.BusinessID, actor.UserID)

	response.Success(c, gin.H{
		"server_time": time.Now(),
	})
}

// Snapshot 获取企业在线状态快照
func (h *PresenceHandler) Snapshot(c *gin.Context) {
	businessID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "ID格式错误")
		return
	}

	actor := middleware.GetActor(c)
	target := services.Target{BusinessID: uint(businessID)}
	if err := h.authService.Authorize(actor, target, services.OpPresenceSnapshot); err != nil {
		response.HandleError(c, err)
		return
	}

	snapshot, err := h.tracker.Snapshot(uint(businessID))
	if err != nil {
		response.ServerError(c, "查询失败")
		return
	}

	response.Success(c, snapshot)
}

// HeartbeatStream WebSocket长连心跳。连接期间客户端定期发送任意文本帧，
// 每收到一帧记一次心跳，断开后交由滑动窗口自然过期
func (h *PresenceHandler) HeartbeatStream(c *gin.Context) {
	actor := middleware.GetActor(c)
	if actor.BusinessID == nil {
		response.BadRequest(c, "当前用户不属于任何企业")
		return
	}

	target := services.Target{BusinessID: *actor.BusinessID, UserID: &actor.UserID}
	if err := h.authService.Authorize(actor, target, services.OpPresenceHeartbeat); err != nil {
		response.HandleError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warnf("WebSocket升级失败: %v", err)
		return
	}
	defer conn.Close()

	businessID := *actor.BusinessID
	userID := actor.UserID

	// 建连即记首次心跳
	h.tracker.Heartbeat(businessID, userID)

	conn.SetPongHandler(func(string) error {
		h.tracker.Heartbeat(businessID, userID)
		return nil
	})

	for {
		// 读超时略大于在线窗口，静默连接自动断开
		window := time.Duration(config.GetConfig().Presence.OnlineWindowSeconds) * time.Second
		if err := conn.SetReadDeadline(time.Now().Add(window * 2)); err != nil {
			break
		}

		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}

		h.tracker.Heartbeat(businessID, userID)
	}

	h.log.WithFields(logrus.Fields{
		"user_id":     userID,
		"business_id": businessID,
	}).Debug("WebSocket心跳连接断开")
}
