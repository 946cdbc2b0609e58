package logic

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"js-backend/internal/command"
	"js-backend/internal/common"
)

// CommandProcessor 执行一条聊天命令
type CommandProcessor interface {
	Process(ctx context.Context, req command.Request) (string, error)
}

// AsyncSender 异步回复消息
type AsyncSender interface {
	SendAsync(chatID, text string)
}

// Deps 路由依赖
type Deps struct {
	Processor CommandProcessor
	Telegram  AsyncSender
	Beary     common.BearyConfig
	Log       *zap.Logger
}

type server struct {
	Deps
}

// SetupRouter 路由入口
func SetupRouter(deps Deps) *gin.Engine {
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	s := &server{Deps: deps}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(deps.Log))

	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.POST("/api/beary", s.BearyHandler)
	r.POST("/api/telegram", s.TelegramHandler)
	r.POST("/api/command", s.CommandHandler)
	return r
}

// requestLogger 给每个请求分配 ID 并记录访问日志
func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header("X-Request-ID", id)
		c.Next()
		log.Info("http request",
			zap.String("request_id", id),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

// reply 内部错误时也回复文本，聊天平台只认 200
func (s *server) reply(c *gin.Context, req command.Request) (string, bool) {
	text, err := s.Processor.Process(c.Request.Context(), req)
	if err != nil {
		s.Log.Error("process command failed",
			zap.String("request_id", c.GetString("request_id")),
			zap.String("user", req.User),
			zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"text": text})
		return text, false
	}
	return text, true
}

// BearyRequest BearyChat outgoing 机器人的请求
type BearyRequest struct {
	Token       string `json:"token"`
	TriggerWord string `json:"trigger_word"`
	Text        string `json:"text"`
	UserName    string `json:"user_name"`
	ChannelName string `json:"channel_name"`
	Ts          int64  `json:"ts"`
}

// Command 去掉触发词后的命令
func (r *BearyRequest) Command(defaultTrigger string) string {
	trigger := r.TriggerWord
	if trigger == "" {
		trigger = defaultTrigger
	}
	text := strings.TrimSpace(r.Text)
	if trigger != "" {
		text = strings.TrimPrefix(text, trigger)
	}
	return strings.TrimSpace(text)
}

// BearyHandler BearyChat 机器人入口
func (s *server) BearyHandler(c *gin.Context) {
	var req BearyRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.UserName == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_name and text required"})
		return
	}
	if s.Beary.Token != "" && req.Token != s.Beary.Token {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}
	text, ok := s.reply(c, command.Request{User: req.UserName, Text: req.Command(s.Beary.TriggerWord)})
	if ok {
		c.JSON(http.StatusOK, gin.H{"text": text})
	}
}

// TelegramUpdate Bot API 推送的更新，只用到消息部分
type TelegramUpdate struct {
	UpdateID int64            `json:"update_id"`
	Message  *TelegramMessage `json:"message"`
}

type TelegramMessage struct {
	MessageID int64            `json:"message_id"`
	From      *TelegramUser    `json:"from"`
	Chat      TelegramChat     `json:"chat"`
	Text      string           `json:"text"`
	Entities  []TelegramEntity `json:"entities"`
}

type TelegramUser struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
}

type TelegramChat struct {
	ID int64 `json:"id"`
}

type TelegramEntity struct {
	Type   string `json:"type"`
	Offset int    `json:"offset"`
	Length int    `json:"length"`
}

// UserName username 在 Telegram 内唯一，没有时用数字 ID，first_name 可以随意修改，不能作为身份
func (u *TelegramUser) UserName() string {
	switch {
	case u == nil:
		return ""
	case u.Username != "":
		return u.Username
	default:
		return "tg:" + strconv.FormatInt(u.ID, 10)
	}
}

// CommandLine 消息必须以 bot_command 开头，返回命令之后的部分
//
//	"/js kbsw-16 50x3" -> "kbsw-16 50x3"
func (m *TelegramMessage) CommandLine() (string, bool) {
	isCommand := false
	for _, e := range m.Entities {
		if e.Type == "bot_command" && e.Offset == 0 {
			isCommand = true
			break
		}
	}
	if !isCommand {
		return "", false
	}
	text := strings.TrimSpace(m.Text)
	i := strings.IndexFunc(text, unicode.IsSpace)
	if i < 0 {
		return "help", true
	}
	line := strings.TrimSpace(text[i:])
	if line == "" {
		line = "help"
	}
	return line, true
}

// TelegramHandler Telegram webhook 入口，回复通过 sendMessage 异步发送
func (s *server) TelegramHandler(c *gin.Context) {
	var update TelegramUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid update"})
		return
	}
	msg := update.Message
	if msg == nil || msg.From == nil {
		c.JSON(http.StatusOK, gin.H{})
		return
	}
	line, ok := msg.CommandLine()
	if !ok {
		c.JSON(http.StatusOK, gin.H{})
		return
	}
	chatID := strconv.FormatInt(msg.Chat.ID, 10)
	text, ok := s.reply(c, command.Request{User: msg.From.UserName(), ChatID: chatID, Text: line})
	if s.Telegram != nil {
		s.Telegram.SendAsync(chatID, text)
	}
	if ok {
		c.JSON(http.StatusOK, gin.H{"text": text})
	}
}

// CommandRequest 通用入口的请求
type CommandRequest struct {
	User   string `json:"user"`
	Text   string `json:"text"`
	ChatID string `json:"chat_id"`
}

// CommandHandler 通用命令入口，方便测试和其他集成
func (s *server) CommandHandler(c *gin.Context) {
	var req CommandRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.User == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user and text required"})
		return
	}
	text, ok := s.reply(c, command.Request{User: req.User, ChatID: req.ChatID, Text: req.Text})
	if ok {
		c.JSON(http.StatusOK, gin.H{"text": text})
	}
}
