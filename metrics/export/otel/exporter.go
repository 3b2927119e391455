package otel

import (
	"context"
	"errors"
	"fmt"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

// Source is what the exporter reads on every collection. *goSession.Engine
// satisfies it.
type Source interface {
	MetricsSnapshot() goSession.MetricsSnapshot
	AuditDropped() uint64
}

type observedCounter struct {
	id         goSession.MetricID
	instrument metric.Int64ObservableCounter
}

// Exporter publishes engine metrics as observable instruments on a
// caller-owned Meter.
type Exporter struct {
	source       Source
	registration metric.Registration
	counters     []observedCounter
	buckets      [internaldefs.BucketCount]metric.Int64ObservableGauge
	count        metric.Int64ObservableGauge
	sum          metric.Float64ObservableGauge
	auditDropped metric.Int64ObservableCounter
}

// NewExporter creates one instrument per counter, one gauge per cumulative
// latency bucket plus count and sum, and a single callback that reads a
// snapshot per collection.
func NewExporter(meter metric.Meter, source Source) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &Exporter{
		source:   source,
		counters: make([]observedCounter, 0, len(internaldefs.CounterDefs)),
	}
	observables := make([]metric.Observable, 0, len(internaldefs.CounterDefs)+internaldefs.BucketCount+3)

	for _, def := range internaldefs.CounterDefs {
		ins, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("create counter %s: %w", def.Name, err)
		}
		e.counters = append(e.counters, observedCounter{id: def.ID, instrument: ins})
		observables = append(observables, ins)
	}

	latency := internaldefs.LatencyDef
	for i, suffix := range internaldefs.BucketSuffixes() {
		name := latency.Name + "_bucket_le_" + suffix
		ins, err := meter.Int64ObservableGauge(name, metric.WithDescription("Cumulative latency bucket count."))
		if err != nil {
			return nil, fmt.Errorf("create bucket gauge %s: %w", name, err)
		}
		e.buckets[i] = ins
		observables = append(observables, ins)
	}

	var err error
	if e.count, err = meter.Int64ObservableGauge(latency.Name+"_count", metric.WithDescription("Latency sample count.")); err != nil {
		return nil, fmt.Errorf("create latency count: %w", err)
	}
	if e.sum, err = meter.Float64ObservableGauge(latency.Name+"_sum", metric.WithDescription("Latency sample sum."), metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("create latency sum: %w", err)
	}
	if e.auditDropped, err = meter.Int64ObservableCounter(internaldefs.AuditDroppedName, metric.WithDescription("Audit events dropped under backpressure.")); err != nil {
		return nil, fmt.Errorf("create audit dropped counter: %w", err)
	}
	observables = append(observables, e.count, e.sum, e.auditDropped)

	e.registration, err = meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	return e, nil
}

func (e *Exporter) observe(_ context.Context, o metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()
	for _, c := range e.counters {
		o.ObserveInt64(c.instrument, int64(snapshot.Counters[c.id]))
	}

	id := internaldefs.LatencyDef.ID
	if raw, ok := snapshot.Histograms[id]; ok {
		cumulative := internaldefs.Cumulative(raw)
		for i, ins := range e.buckets {
			o.ObserveInt64(ins, int64(cumulative[i]))
		}
		o.ObserveInt64(e.count, int64(cumulative[internaldefs.BucketCount-1]))
		o.ObserveFloat64(e.sum, snapshot.HistogramSum[id].Seconds())
	}

	o.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()))
	return nil
}

// Close unregisters the callback.
func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
