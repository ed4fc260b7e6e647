package bot

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"vcautotrade/internal/models"
	"vcautotrade/pkg/utils"
)

// Notifier доставляет сообщения оператору. Ошибка доставки не прерывает цикл.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification) error
}

// TradeReportSaver сохраняет отчеты о сделках
type TradeReportSaver interface {
	Save(ctx context.Context, report models.TradeReport) error
}

// Effects - отложенные побочные эффекты цикла продукта.
//
// Решения только накапливают уведомления и отчеты о сделках,
// отправка и запись происходят один раз в Flush.
type Effects struct {
	productID     string
	logger        *utils.Logger
	notifications []models.Notification
	reports       []models.TradeReport
}

// NewEffects создает пустой список эффектов продукта
func NewEffects(productID string, logger *utils.Logger) *Effects {
	return &Effects{productID: productID, logger: logger}
}

// Notify ставит сообщение в очередь
func (e *Effects) Notify(message string, urgent bool) {
	e.notifications = append(e.notifications, models.Notification{
		ProductID: e.productID,
		Message:   message,
		Urgent:    urgent,
	})
}

// ReportError логирует ошибку и ставит срочное уведомление с контекстом:
// продукт, фаза и переданные значения.
func (e *Effects) ReportError(err error, phase models.OrderPhase, fields ...zap.Field) {
	logFields := append([]zap.Field{utils.Phase(string(phase)), zap.Error(err)}, fields...)
	e.logger.Error("cycle error", logFields...)

	msg := fmt.Sprintf("[%s] phase=%s: %v", e.productID, phase, err)
	if details := renderFields(fields); details != "" {
		msg += " (" + details + ")"
	}
	e.Notify(msg, true)
}

// AddTradeReport добавляет отчет о закрытой сделке
func (e *Effects) AddTradeReport(r models.TradeReport) {
	e.reports = append(e.reports, r)
}

// Notifications возвращает накопленные уведомления
func (e *Effects) Notifications() []models.Notification { return e.notifications }

// TradeReports возвращает накопленные отчеты
func (e *Effects) TradeReports() []models.TradeReport { return e.reports }

// Flush отправляет уведомления и записывает отчеты. Ошибки только логируются.
func (e *Effects) Flush(ctx context.Context, notifier Notifier, saver TradeReportSaver) {
	for _, r := range e.reports {
		if saver == nil {
			break
		}
		if err := saver.Save(ctx, r); err != nil {
			e.logger.Error("failed to save trade report", zap.String("report_id", r.ID), zap.Error(err))
		}
	}

	for _, n := range e.notifications {
		if notifier == nil {
			break
		}
		if err := notifier.Notify(ctx, n); err != nil {
			e.logger.Warn("failed to send notification", zap.Bool("urgent", n.Urgent), zap.Error(err))
		}
	}

	e.notifications = nil
	e.reports = nil
}

// renderFields выводит поля zap как "k=v" в порядке ключей
func renderFields(fields []zap.Field) string {
	if len(fields) == 0 {
		return ""
	}
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range fields {
		f.AddTo(enc)
	}
	keys := make([]string, 0, len(enc.Fields))
	for k := range enc.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, enc.Fields[k]))
	}
	return strings.Join(parts, ", ")
}
