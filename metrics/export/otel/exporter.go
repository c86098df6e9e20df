package otel

import (
	"context"
	"errors"
	"fmt"

	goAuthClient "github.com/MrEthical07/goAuthClient"
	"github.com/MrEthical07/goAuthClient/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

// Source is what the exporter reads. *goAuthClient.Engine satisfies it.
type Source interface {
	MetricsSnapshot() goAuthClient.MetricsSnapshot
	AuditDropped() uint64
	Snapshot() goAuthClient.SessionSnapshot
}

type observedSeries struct {
	id   goAuthClient.MetricID
	opts []metric.ObserveOption
}

type observedFamily struct {
	instrument metric.Int64ObservableCounter
	series     []observedSeries
}

type observedLatency struct {
	id      goAuthClient.MetricID
	buckets [8][]metric.ObserveOption
	count   []metric.ObserveOption
}

type OTelExporter struct {
	source       Source
	registration metric.Registration

	families     []observedFamily
	bucketGauge  metric.Int64ObservableGauge
	countGauge   metric.Int64ObservableGauge
	latency      []observedLatency
	auditDropped metric.Int64ObservableCounter

	authenticated metric.Int64ObservableGauge
	version       metric.Int64ObservableGauge
	state         metric.Int64ObservableGauge
	stateOpts     map[goAuthClient.SessionState][]metric.ObserveOption
}

func NewOTelExporter(meter metric.Meter, engine *goAuthClient.Engine) (*OTelExporter, error) {
	return NewOTelExporterFromSource(meter, engine)
}

func NewOTelExporterFromSource(meter metric.Meter, source Source) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	exporter := &OTelExporter{
		source:    source,
		families:  make([]observedFamily, 0, len(internaldefs.CounterFamilies)),
		stateOpts: make(map[goAuthClient.SessionState][]metric.ObserveOption, len(internaldefs.SessionStates)),
	}
	observables := make([]metric.Observable, 0, len(internaldefs.CounterFamilies)+7)

	for _, fam := range internaldefs.CounterFamilies {
		ins, err := meter.Int64ObservableCounter(fam.Name, metric.WithDescription(fam.Help))
		if err != nil {
			return nil, fmt.Errorf("create observable counter %s: %w", fam.Name, err)
		}
		of := observedFamily{instrument: ins, series: make([]observedSeries, 0, len(fam.Series))}
		for _, s := range fam.Series {
			of.series = append(of.series, observedSeries{id: s.ID, opts: labelled(fam.Label, s.Value)})
		}
		exporter.families = append(exporter.families, of)
		observables = append(observables, ins)
	}

	fam := internaldefs.LatencyFamily
	bucket, err := meter.Int64ObservableGauge(fam.Name+"_bucket", metric.WithDescription("Cumulative histogram bucket count."))
	if err != nil {
		return nil, fmt.Errorf("create histogram bucket gauge %s: %w", fam.Name, err)
	}
	count, err := meter.Int64ObservableGauge(fam.Name+"_count", metric.WithDescription("Histogram total sample count."))
	if err != nil {
		return nil, fmt.Errorf("create histogram count gauge %s: %w", fam.Name, err)
	}
	exporter.bucketGauge, exporter.countGauge = bucket, count
	observables = append(observables, bucket, count)
	for _, s := range fam.Series {
		l := observedLatency{id: s.ID, count: labelled(fam.Label, s.Value)}
		for i, le := range internaldefs.HistogramBounds {
			l.buckets[i] = []metric.ObserveOption{metric.WithAttributes(
				attribute.String(fam.Label, s.Value),
				attribute.String("le", le),
			)}
		}
		exporter.latency = append(exporter.latency, l)
	}

	if exporter.auditDropped, err = meter.Int64ObservableCounter(
		internaldefs.AuditDroppedName,
		metric.WithDescription(internaldefs.AuditDroppedHelp),
	); err != nil {
		return nil, fmt.Errorf("create audit dropped counter: %w", err)
	}
	if exporter.authenticated, err = meter.Int64ObservableGauge(
		internaldefs.SessionAuthenticatedName,
		metric.WithDescription(internaldefs.SessionAuthenticatedHelp),
	); err != nil {
		return nil, fmt.Errorf("create session gauge: %w", err)
	}
	if exporter.version, err = meter.Int64ObservableGauge(
		internaldefs.SessionVersionName,
		metric.WithDescription(internaldefs.SessionVersionHelp),
	); err != nil {
		return nil, fmt.Errorf("create session version gauge: %w", err)
	}
	if exporter.state, err = meter.Int64ObservableGauge(
		internaldefs.SessionStateName,
		metric.WithDescription(internaldefs.SessionStateHelp),
	); err != nil {
		return nil, fmt.Errorf("create session state gauge: %w", err)
	}
	for _, st := range internaldefs.SessionStates {
		exporter.stateOpts[st] = labelled(internaldefs.SessionStateLabel, st.String())
	}
	observables = append(observables, exporter.auditDropped, exporter.authenticated, exporter.version, exporter.state)

	registration, err := meter.RegisterCallback(exporter.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}

	exporter.registration = registration
	return exporter, nil
}

func (e *OTelExporter) observe(_ context.Context, observer metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()
	for _, f := range e.families {
		for _, s := range f.series {
			observer.ObserveInt64(f.instrument, int64(snapshot.Counters[s.id]), s.opts...)
		}
	}
	for _, l := range e.latency {
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snapshot.Histograms[l.id]))
		for i := range cumulative {
			observer.ObserveInt64(e.bucketGauge, int64(cumulative[i]), l.buckets[i]...)
		}
		observer.ObserveInt64(e.countGauge, int64(cumulative[len(cumulative)-1]), l.count...)
	}
	observer.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()))

	g := internaldefs.SessionGaugeOf(e.source.Snapshot())
	observer.ObserveInt64(e.authenticated, int64(g.Authenticated))
	observer.ObserveInt64(e.version, int64(g.Version))
	for _, st := range internaldefs.SessionStates {
		var v int64
		if st == g.State {
			v = 1
		}
		observer.ObserveInt64(e.state, v, e.stateOpts[st]...)
	}
	return nil
}

func labelled(label, value string) []metric.ObserveOption {
	if label == "" {
		return nil
	}
	return []metric.ObserveOption{metric.WithAttributes(attribute.String(label, value))}
}

func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
