package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics는 애플리케이션 메트릭을 관리합니다
type Metrics struct {
	// HTTP 메트릭
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// 데이터베이스 메트릭
	DBOperationsTotal   *prometheus.CounterVec
	DBOperationDuration *prometheus.HistogramVec

	// 스트리밍 메트릭
	ImportedRecordsTotal *prometheus.CounterVec
	ExportedRecordsTotal *prometheus.CounterVec
	ImportBatchesTotal   *prometheus.CounterVec

	// 조인 메트릭
	JoinPipelinesTotal *prometheus.CounterVec
}

var globalMetrics *Metrics

// Init은 메트릭을 초기화합니다
func Init(namespace string) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		DBOperationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "db_operations_total",
				Help:      "Total number of database operations",
			},
			[]string{"operation", "collection", "status"},
		),
		DBOperationDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "db_operation_duration_seconds",
				Help:      "Database operation duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation", "collection"},
		),
		ImportedRecordsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "imported_records_total",
				Help:      "Total number of records ingested through bulk import",
			},
			[]string{"collection"},
		),
		ExportedRecordsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "exported_records_total",
				Help:      "Total number of records streamed through export",
			},
			[]string{"collection"},
		),
		ImportBatchesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "import_batches_total",
				Help:      "Total number of flushed import batches",
			},
			[]string{"collection", "status"},
		),
		JoinPipelinesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "join_pipelines_total",
				Help:      "Total number of executed join aggregation pipelines",
			},
			[]string{"cardinality", "status"},
		),
	}

	globalMetrics = m
	return m
}

// GetMetrics는 글로벌 메트릭 인스턴스를 반환합니다
func GetMetrics() *Metrics {
	if globalMetrics == nil {
		return Init("crud_service")
	}
	return globalMetrics
}

// RecordHTTPRequest는 HTTP 요청 메트릭을 기록합니다
func (m *Metrics) RecordHTTPRequest(method, endpoint, status string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordDBOperation은 데이터베이스 작업 메트릭을 기록합니다
func (m *Metrics) RecordDBOperation(operation, collection, status string, duration time.Duration) {
	m.DBOperationsTotal.WithLabelValues(operation, collection, status).Inc()
	m.DBOperationDuration.WithLabelValues(operation, collection).Observe(duration.Seconds())
}

// RecordImportBatch는 임포트 배치 처리 메트릭을 기록합니다
func (m *Metrics) RecordImportBatch(collection, status string, records int) {
	m.ImportBatchesTotal.WithLabelValues(collection, status).Inc()
	if status == "success" {
		m.ImportedRecordsTotal.WithLabelValues(collection).Add(float64(records))
	}
}

// RecordExportedRecords는 익스포트된 레코드 수를 기록합니다
func (m *Metrics) RecordExportedRecords(collection string, records int) {
	m.ExportedRecordsTotal.WithLabelValues(collection).Add(float64(records))
}

// RecordJoinPipeline은 조인 파이프라인 실행 메트릭을 기록합니다
func (m *Metrics) RecordJoinPipeline(cardinality, status string) {
	m.JoinPipelinesTotal.WithLabelValues(cardinality, status).Inc()
}
