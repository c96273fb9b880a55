package router

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"chatrelay/internal/constants"
	"chatrelay/internal/errs"
	"chatrelay/internal/middleware"
	"chatrelay/internal/query"
	"chatrelay/internal/user"

	"github.com/gin-gonic/gin"
)

type handlers struct {
	surface *query.Surface
}

// fail 把错误映射为 HTTP 状态码
func fail(c *gin.Context, err error) {
	_ = c.Error(err)
	switch {
	case errors.Is(err, errs.ErrAuth):
		c.JSON(http.StatusUnauthorized, gin.H{"message": constants.ErrPasswordIncorrect})
	case errors.Is(err, errs.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"message": err.Error()})
	case errs.IsStore(err):
		log.Printf("处理请求 %s %s 时存储失败: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": constants.ErrInternal})
	default:
		log.Printf("处理请求 %s %s 失败: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(http.StatusInternalServerError, gin.H{"message": constants.ErrInternal})
	}
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"message": message})
}

// login 登录，用户名不存在时自动注册
func (h *handlers) login(c *gin.Context) {
	var req user.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, constants.ErrInvalidParams)
		return
	}
	if strings.TrimSpace(req.Username) == "" {
		badRequest(c, constants.ErrUsernameRequired)
		return
	}
	if req.Password == "" {
		badRequest(c, constants.ErrPasswordRequired)
		return
	}

	view, err := h.surface.Login(c.Request.Context(), req.Username, req.Password, req.Avatar)
	if err != nil {
		fail(c, err)
		return
	}

	token, err := middleware.GenerateToken(view.ID)
	if err != nil {
		fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":  view,
		"token": token,
	})
}

func (h *handlers) searchUsers(c *gin.Context) {
	users, err := h.surface.SearchUsers(c.Request.Context(), c.Query("query"), c.Query("excludeId"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

func (h *handlers) onlineUsers(c *gin.Context) {
	c.JSON(http.StatusOK, h.surface.OnlineUsers())
}

func (h *handlers) allUsers(c *gin.Context) {
	users, err := h.surface.AllUsers(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

func (h *handlers) inbox(c *gin.Context) {
	messages, err := h.surface.Inbox(c.Request.Context(), c.Param("userId"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, messages)
}

func (h *handlers) conversation(c *gin.Context) {
	messages, err := h.surface.Conversation(c.Request.Context(), c.Param("userIdA"), c.Param("userIdB"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, messages)
}

func (h *handlers) markRead(c *gin.Context) {
	updated, err := h.surface.MarkRead(c.Request.Context(), c.Param("userId"), c.Param("peerId"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": updated})
}

func (h *handlers) friendRequests(c *gin.Context) {
	status := c.Query("status")
	if !query.ValidFriendRequestStatus(status) {
		badRequest(c, constants.ErrInvalidParams)
		return
	}

	requests, err := h.surface.FriendRequests(c.Request.Context(), c.Param("userId"), status)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, requests)
}

func (h *handlers) friends(c *gin.Context) {
	friends, err := h.surface.Friends(c.Request.Context(), c.Param("userId"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, friends)
}
