package logic

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"js-backend/internal/common"
	"js-backend/internal/observability"
)

// ErrNotifierDisabled 没有配置 Telegram token
var ErrNotifierDisabled = errors.New("telegram notifier disabled")

// Sender 向聊天会话发送消息
type Sender interface {
	Send(ctx context.Context, chatID, text string) error
}

// TelegramSendMessage sendMessage 请求体
type TelegramSendMessage struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

// TelegramResponse Bot API 的通用响应
type TelegramResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
}

// TelegramNotifier 通过 Bot API 回复消息，失败只记录日志
type TelegramNotifier struct {
	client  *http.Client
	apiBase string
	token   string
	timeout time.Duration
	log     *zap.Logger
	wg      sync.WaitGroup
}

func NewTelegramNotifier(cfg common.TelegramConfig, log *zap.Logger) *TelegramNotifier {
	if log == nil {
		log = zap.NewNop()
	}
	timeout := cfg.SendTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &TelegramNotifier{
		client:  &http.Client{Timeout: timeout},
		apiBase: strings.TrimRight(cfg.APIBase, "/"),
		token:   cfg.Token,
		timeout: timeout,
		log:     log,
	}
}

func (n *TelegramNotifier) Enabled() bool { return n.token != "" }

// Send 发送消息，超时由配置决定
func (n *TelegramNotifier) Send(ctx context.Context, chatID, text string) error {
	if !n.Enabled() {
		return ErrNotifierDisabled
	}
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	body, err := json.Marshal(TelegramSendMessage{ChatID: chatID, Text: text})
	if err != nil {
		return fmt.Errorf("序列化消息失败: %w", err)
	}
	url := fmt.Sprintf("%s/bot%s/sendMessage", n.apiBase, n.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("发送请求失败: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("读取响应失败: %w", err)
	}
	var result TelegramResponse
	if err := json.Unmarshal(data, &result); err != nil {
		return fmt.Errorf("解析响应失败: %w", err)
	}
	if !result.OK {
		return fmt.Errorf("telegram API错误: %d - %s", result.ErrorCode, result.Description)
	}
	return nil
}

// SendAsync 后台发送，不阻塞命令处理，失败只记录日志
func (n *TelegramNotifier) SendAsync(chatID, text string) {
	if !n.Enabled() {
		n.log.Debug("telegram notifier disabled, drop reply", zap.String("chat_id", chatID))
		return
	}
	n.wg.Add(1)
	go func() {
		defer n.wg.Done()
		if err := n.Send(context.Background(), chatID, text); err != nil {
			observability.RecordDeliveryFailure("telegram")
			n.log.Warn("send telegram message failed", zap.String("chat_id", chatID), zap.Error(err))
		}
	}()
}

// Wait 等待后台发送结束，退出前调用
func (n *TelegramNotifier) Wait() { n.wg.Wait() }
