package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"vcautotrade/internal/config"
	"vcautotrade/internal/models"
	"vcautotrade/pkg/utils"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// NotificationService доставляет сообщения оператору в Slack.
//
// Обычные сообщения идут в информационный канал, срочные - в канал ошибок.
// Без токена сервис только пишет сообщения в лог.
type NotificationService struct {
	url          string
	token        string
	channelInfo  string
	channelError string
	client       *http.Client
	logger       *utils.Logger
}

// NewNotificationService создает сервис по настройкам Slack.
// client == nil - отдельный клиент с коротким таймаутом.
func NewNotificationService(cfg config.NotificationConfig, client *http.Client, logger *utils.Logger) *NotificationService {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &NotificationService{
		url:          cfg.SlackURL,
		token:        cfg.SlackToken,
		channelInfo:  cfg.ChannelInfo,
		channelError: cfg.ChannelError,
		client:       client,
		logger:       logger.WithComponent("notification"),
	}
}

// Enabled - задан токен Slack
func (s *NotificationService) Enabled() bool {
	return s.token != ""
}

type slackMessage struct {
	Channel string `json:"channel"`
	Text    string `json:"text"`
}

type slackResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Notify отправляет сообщение через chat.postMessage
func (s *NotificationService) Notify(ctx context.Context, n models.Notification) error {
	channel := s.channelInfo
	if n.Urgent {
		channel = s.channelError
	}

	if !s.Enabled() || channel == "" {
		s.logger.Info("notification",
			zap.Bool("urgent", n.Urgent),
			utils.Product(n.ProductID),
			zap.String("message", n.Message),
		)
		return nil
	}

	body, err := json.Marshal(slackMessage{Channel: channel, Text: n.Message})
	if err != nil {
		return fmt.Errorf("encode slack message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Authorization", "Bearer "+s.token)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send slack message: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return fmt.Errorf("read slack response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack returned status %d", resp.StatusCode)
	}

	var result slackResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return fmt.Errorf("decode slack response: %w", err)
	}
	if !result.OK {
		return fmt.Errorf("slack rejected message: %s", result.Error)
	}
	return nil
}
