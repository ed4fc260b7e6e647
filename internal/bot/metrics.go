package bot

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ============================================================
// Prometheus метрики торгового цикла
// ============================================================
//
// Процесс живет один запуск, поэтому trader отправляет метрики
// в Pushgateway, а operator отдает их на /metrics.

// ============ Метрики запуска ============

// CycleDuration - длительность цикла продукта
var CycleDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "vcat",
		Subsystem: "cycle",
		Name:      "duration_seconds",
		Help:      "Duration of one product cycle in seconds",
		Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40},
	},
	[]string{"product"},
)

// CyclesTotal - циклы по результату
var CyclesTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "vcat",
		Subsystem: "cycle",
		Name:      "total",
		Help:      "Total number of product cycles",
	},
	[]string{"product", "result"}, // ok, skipped, aborted, violation
)

// ============ Торговые события ============

// OrdersPlaced - отправленные ордера
var OrdersPlaced = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "vcat",
		Subsystem: "trading",
		Name:      "orders_placed_total",
		Help:      "Orders sent to the exchange",
	},
	[]string{"product", "side", "type", "result"}, // result: success, failed
)

// Judgments - результаты сигналов
var Judgments = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "vcat",
		Subsystem: "trading",
		Name:      "judgments_total",
		Help:      "Signal judgments by kind and result",
	},
	[]string{"product", "kind", "result"}, // kind: buy, stop_loss
)

// PhaseTransitions - смены фазы
var PhaseTransitions = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "vcat",
		Subsystem: "trading",
		Name:      "phase_transitions_total",
		Help:      "Order phase transitions",
	},
	[]string{"product", "from", "to"},
)

// ReconcileViolations - ордера вне управления бота
var ReconcileViolations = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "vcat",
		Subsystem: "reconcile",
		Name:      "violations_total",
		Help:      "Orders found outside bot management",
	},
	[]string{"product", "source"}, // source: store, exchange
)

// CurrentPhase - текущая фаза продукта (1 для активной)
var CurrentPhase = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "vcat",
		Subsystem: "trading",
		Name:      "phase",
		Help:      "Current order phase of a product (1 = active phase)",
	},
	[]string{"product", "phase"},
)

// ============ Вспомогательные функции ============

// RecordJudgment записывает результат сигнала
func RecordJudgment(product, kind string, result bool) {
	Judgments.WithLabelValues(product, kind, boolLabel(result)).Inc()
}

// RecordOrder записывает отправку ордера
func RecordOrder(product, side, orderType string, ok bool) {
	result := "success"
	if !ok {
		result = "failed"
	}
	OrdersPlaced.WithLabelValues(product, side, orderType, result).Inc()
}

// UpdatePhase выставляет гейдж фазы
func UpdatePhase(product string, phase string) {
	for _, p := range allPhases {
		v := 0.0
		if string(p) == phase {
			v = 1
		}
		CurrentPhase.WithLabelValues(product, string(p)).Set(v)
	}
}

func boolLabel(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
