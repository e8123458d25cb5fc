package workers

import (
	"context"
	"log/slog"
	"reflect"
	"time"
)

type NamedChannel struct {
	Name    string
	Channel any
}

// QueueReporter receives the sampled length and capacity of a channel.
type QueueReporter interface {
	QueueSampled(name string, length, capacity int)
}

// ChannelCapacityWorker periodically reports the current channel capacity and length.
// Reading len(channel) and cap(channel) is non-blocking, so this won't interfere
// with other goroutines.
type ChannelCapacityWorker struct {
	log                  *slog.Logger
	channels             []NamedChannel
	reporter             QueueReporter
	metricInterval       time.Duration
	lowCapacityThreshold int
}

func NewChannelCapacityWorker(log *slog.Logger, channels []NamedChannel, reporter QueueReporter,
	metricInterval time.Duration, lowCapacityThreshold int) *ChannelCapacityWorker {
	return &ChannelCapacityWorker{
		log:                  log,
		channels:             channels,
		reporter:             reporter,
		metricInterval:       metricInterval,
		lowCapacityThreshold: lowCapacityThreshold,
	}
}

func (w *ChannelCapacityWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.metricInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping capacity sampling")
			return nil
		case <-ticker.C:
			w.sample()
		}
	}
}

func (w *ChannelCapacityWorker) sample() {
	for _, nc := range w.channels {
		v := reflect.ValueOf(nc.Channel)
		if v.Kind() != reflect.Chan {
			w.log.Error("Provided object is not a channel", "name", nc.Name)
			continue
		}
		capacity, length := v.Cap(), v.Len()
		w.reporter.QueueSampled(nc.Name, length, capacity)
		if capacity <= 0 {
			// unbuffered
			continue
		}
		if left := capacity - length; left <= w.lowCapacityThreshold {
			w.log.Warn("Channel close to saturation", "name", nc.Name, "length", length, "capacity", capacity)
		}
	}
}
