package metrics

import "log/slog"

// MultiObserver fans one event out to several observers.
type MultiObserver struct {
	observers []Observer
}

func NewMultiObserver(observers ...Observer) *MultiObserver {
	return &MultiObserver{observers: observers}
}

func (m *MultiObserver) RecordEvent(ev MetricsEvent) {
	for _, o := range m.observers {
		o.RecordEvent(ev)
	}
}

func (m *MultiObserver) Flush() error {
	var first error
	for _, o := range m.observers {
		if f, ok := o.(Flusher); ok {
			if err := f.Flush(); err != nil && first == nil {
				first = err
			}
		}
	}
	return first
}

// LoggerObserver mirrors events into the structured log at debug level.
type LoggerObserver struct {
	log *slog.Logger
}

func NewLoggerObserver(log *slog.Logger) *LoggerObserver {
	if log == nil {
		log = slog.Default()
	}
	return &LoggerObserver{log: log}
}

func (l *LoggerObserver) RecordEvent(ev MetricsEvent) {
	attrs := make([]any, 0, 4+2*len(ev.Tags))
	attrs = append(attrs, "event", ev.Name, "value", ev.Value)
	for k, v := range ev.Tags {
		attrs = append(attrs, k, v)
	}
	l.log.Debug("metrics_event", attrs...)
}
