package metrics

import (
	"encoding/json"
	"io"
	"sync"
	"time"
)

// JSONLObserver appends one JSON object per line, forming the turn
// audit trail. Validator overrides land here with both the model's and
// the corrected values, so a dispute can be replayed from the file.
type JSONLObserver struct {
	mu  sync.Mutex
	enc *json.Encoder
}

type auditRecord struct {
	Name   string            `json:"name"`
	Time   time.Time         `json:"time"`
	Value  float64           `json:"value,omitempty"`
	Tags   map[string]string `json:"tags,omitempty"`
	Fields map[string]any    `json:"fields,omitempty"`
}

func NewJSONLObserver(w io.Writer) *JSONLObserver {
	if w == nil {
		w = io.Discard
	}
	return &JSONLObserver{enc: json.NewEncoder(w)}
}

func (o *JSONLObserver) RecordEvent(ev MetricsEvent) {
	rec := auditRecord{
		Name:   ev.Name,
		Time:   ev.Time,
		Value:  ev.Value,
		Tags:   ev.Tags,
		Fields: ev.Fields,
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	// Encode errors are swallowed: a broken audit writer must not take
	// down the turn path.
	_ = o.enc.Encode(rec)
}
