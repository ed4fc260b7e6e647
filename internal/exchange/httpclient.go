// Package exchange содержит клиент биржи GMO Coin и общий HTTP транспорт.
package exchange

import (
	"crypto/tls"
	"net"
	"net/http"
	"sync"
	"time"
)

// TransportConfig - параметры пула соединений одного запуска.
// Запуск ходит на два хоста: API биржи и Slack.
type TransportConfig struct {
	ConnectTimeout  time.Duration // установка TCP соединения
	ResponseTimeout time.Duration // ожидание заголовков ответа
	TotalTimeout    time.Duration // весь запрос вместе с телом
	MaxConnsPerHost int
	IdleConnTimeout time.Duration
}

// DefaultTransportConfig - общий таймаут меньше минутного интервала запуска
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		ConnectTimeout:  5 * time.Second,
		ResponseTimeout: 10 * time.Second,
		TotalTimeout:    20 * time.Second,
		MaxConnsPerHost: 10,
		IdleConnTimeout: 90 * time.Second,
	}
}

// NewHTTPClient создает клиент с пулом keep-alive соединений.
// Дедлайн контекста запроса сокращает ConnectTimeout.
func NewHTTPClient(cfg TransportConfig) *http.Client {
	dialer := &net.Dialer{
		Timeout:   cfg.ConnectTimeout,
		KeepAlive: 30 * time.Second,
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		MaxIdleConnsPerHost:   cfg.MaxConnsPerHost,
		MaxConnsPerHost:       cfg.MaxConnsPerHost,
		IdleConnTimeout:       cfg.IdleConnTimeout,
		TLSHandshakeTimeout:   cfg.ConnectTimeout,
		TLSClientConfig:       &tls.Config{MinVersion: tls.VersionTLS12},
		ForceAttemptHTTP2:     true,
		ResponseHeaderTimeout: cfg.ResponseTimeout,
	}

	return &http.Client{
		Transport: transport,
		Timeout:   cfg.TotalTimeout,
	}
}

var (
	sharedClient     *http.Client
	sharedClientOnce sync.Once
)

// SharedHTTPClient - клиент, общий для биржи и уведомлений одного запуска
func SharedHTTPClient() *http.Client {
	sharedClientOnce.Do(func() {
		sharedClient = NewHTTPClient(DefaultTransportConfig())
	})
	return sharedClient
}

// CloseSharedClient закрывает простаивающие соединения перед выходом
func CloseSharedClient() {
	if sharedClient != nil {
		sharedClient.CloseIdleConnections()
	}
}
