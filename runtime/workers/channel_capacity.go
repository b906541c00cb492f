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

// ChannelCapacityWorker periodically samples the length of buffered channels
// and warns when one is about to be full. Reading len and cap never blocks.
type ChannelCapacityWorker struct {
	log                  *slog.Logger
	channels             []NamedChannel
	metricInterval       time.Duration
	lowCapacityThreshold int
}

func NewChannelCapacityWorker(log *slog.Logger, channels []NamedChannel,
	metricInterval time.Duration, lowCapacityThreshold int) *ChannelCapacityWorker {
	return &ChannelCapacityWorker{
		log: log, channels: channels,
		metricInterval:       metricInterval,
		lowCapacityThreshold: lowCapacityThreshold,
	}
}

func (w ChannelCapacityWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.metricInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping capacity sampling")
			return nil
		case <-ticker.C:
			for _, nc := range w.channels {
				w.sample(nc)
			}
		}
	}
}

// sample reports whether the channel is running low on capacity.
func (w ChannelCapacityWorker) sample(nc NamedChannel) bool {
	v := reflect.ValueOf(nc.Channel)
	if v.Kind() != reflect.Chan {
		w.log.Error("Provided object is not a channel", "name", nc.Name)
		return false
	}
	capacity, length := v.Cap(), v.Len()
	w.log.Debug("Channel usage", "name", nc.Name, "length", length, "capacity", capacity)
	if capacity <= 0 {
		// unbuffered
		return false
	}
	left := capacity - length
	if left <= w.lowCapacityThreshold {
		w.log.Warn("Channel capacity is running low", "name", nc.Name, "left", left, "capacity", capacity)
		return true
	}
	return false
}
