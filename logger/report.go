package logger

import (
	"context"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	cwtypes "github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

// ReportSource returns numeric readings to include in the periodic report.
type ReportSource func() map[string]float64

var (
	warnCounts  sync.Map // component -> *int64
	errorCounts sync.Map // component -> *int64

	sourcesMu sync.Mutex
	sources   = map[string]ReportSource{}
)

func bump(m *sync.Map, component string) {
	v, _ := m.LoadOrStore(component, new(int64))
	atomic.AddInt64(v.(*int64), 1)
}

func recordWarn(component string)  { bump(&warnCounts, component) }
func recordError(component string) { bump(&errorCounts, component) }

func snapshotCounts(m *sync.Map) map[string]int64 {
	out := map[string]int64{}
	m.Range(func(k, v any) bool {
		out[k.(string)] = atomic.LoadInt64(v.(*int64))
		return true
	})
	return out
}

// RegisterReportSource adds a named source to the periodic report. A second
// registration under the same name replaces the first.
func RegisterReportSource(name string, src ReportSource) {
	sourcesMu.Lock()
	sources[name] = src
	sourcesMu.Unlock()
}

// StartReport logs a runtime report every interval until ctx is done and
// publishes the numeric readings to CloudWatch.
func StartReport(ctx context.Context, log *Log, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				logReport(ctx, log)
			}
		}
	}()
}

func logReport(ctx context.Context, log *Log) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	sourcesMu.Lock()
	names := make([]string, 0, len(sources))
	for name := range sources {
		names = append(names, name)
	}
	sort.Strings(names)
	readings := make(map[string]map[string]float64, len(names))
	for _, name := range names {
		readings[name] = sources[name]()
	}
	sourcesMu.Unlock()

	fields := Fields{
		"warns":      snapshotCounts(&warnCounts),
		"errors":     snapshotCounts(&errorCounts),
		"goroutines": runtime.NumGoroutine(),
		"heap_mb":    float64(mem.HeapAlloc) / 1024 / 1024,
		"sources":    readings,
	}
	log.WithComponent("report").WithFields(fields).Info("runtime report")

	data := []cwtypes.MetricDatum{
		{MetricName: aws.String("goroutines"), Unit: cwtypes.StandardUnitCount, Value: aws.Float64(float64(runtime.NumGoroutine()))},
		{MetricName: aws.String("heap_mb"), Unit: cwtypes.StandardUnitMegabytes, Value: aws.Float64(float64(mem.HeapAlloc) / 1024 / 1024)},
	}
	for _, name := range names {
		for metric, value := range readings[name] {
			data = append(data, cwtypes.MetricDatum{
				MetricName: aws.String(metric),
				Unit:       cwtypes.StandardUnitCount,
				Dimensions: []cwtypes.Dimension{{Name: aws.String("source"), Value: aws.String(name)}},
				Value:      aws.Float64(value),
			})
		}
	}
	publishMetrics(ctx, data)
}
