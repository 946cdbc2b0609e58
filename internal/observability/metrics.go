// Package observability 机器人的 prometheus 指标
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	commandsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "js",
		Subsystem: "command",
		Name:      "processed_total",
		Help:      "处理的聊天命令数，按命令和结果区分",
	}, []string{"handler", "outcome"})
	recordsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "js",
		Subsystem: "workout",
		Name:      "records_total",
		Help:      "新增的训练记录数",
	})
	progressUpdates = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "js",
		Subsystem: "challenge",
		Name:      "progress_updates_total",
		Help:      "因新记录发生变化的挑战进度数",
	}, []string{"kind"})
	deliveryFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "js",
		Subsystem: "notify",
		Name:      "delivery_failures_total",
		Help:      "发送失败的消息数",
	}, []string{"integration"})
)

func init() {
	prometheus.MustRegister(commandsTotal, recordsTotal, progressUpdates, deliveryFailures)
}

// RecordCommand 处理了一条命令，handler 为空时记为 none
func RecordCommand(handler, outcome string) {
	if handler == "" {
		handler = "none"
	}
	commandsTotal.WithLabelValues(handler, outcome).Inc()
}

// RecordWorkoutRecords 新增的训练记录数
func RecordWorkoutRecords(n int) {
	recordsTotal.Add(float64(n))
}

// RecordProgressUpdate 挑战进度有变化
func RecordProgressUpdate(kind string) {
	progressUpdates.WithLabelValues(kind).Inc()
}

// RecordDeliveryFailure 消息发送失败
func RecordDeliveryFailure(integration string) {
	deliveryFailures.WithLabelValues(integration).Inc()
}
