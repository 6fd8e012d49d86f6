package metrics

import (
	"github.com/kilianp07/evcharge/core/factory"
	coremetrics "github.com/kilianp07/evcharge/core/metrics"
	"github.com/kilianp07/evcharge/infra/mqtt"
	"github.com/kilianp07/evcharge/infra/store"
)

// init registers built-in metrics sinks.
func init() {
	_ = coremetrics.RegisterSink("nop", func(map[string]any) (coremetrics.Sink, error) {
		return coremetrics.NopSink{}, nil
	})

	// The HTTP endpoint is served separately by StartPromServer.
	_ = coremetrics.RegisterSink("prometheus", func(map[string]any) (coremetrics.Sink, error) {
		return NewPromSink()
	})

	_ = coremetrics.RegisterSink("influx", func(conf map[string]any) (coremetrics.Sink, error) {
		var c InfluxConfig
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return NewInfluxSinkWithFallback(c), nil
	})

	_ = coremetrics.RegisterSink("mqtt", func(conf map[string]any) (coremetrics.Sink, error) {
		var c mqtt.Config
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return mqtt.NewTelemetryPublisher(c)
	})

	_ = coremetrics.RegisterSink("sqlite", func(conf map[string]any) (coremetrics.Sink, error) {
		var c store.Config
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return store.NewSQLiteStore(c)
	})
}
