package msglog

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/harunnryd/niaga/pkg/redact"
)

// Message is one persisted conversation turn.
type Message struct {
	ID        string
	SessionID string
	Role      string
	Content   string
	Cost      float64
	Meta      map[string]any
	At        time.Time
}

// Logger persists turns and hands finished messages to the enrichment path.
// EnqueueEnrichment is fire-and-forget: it must never block or fail the
// request path.
type Logger interface {
	Append(ctx context.Context, sessionID, role, content string, cost float64, meta map[string]any) (string, error)
	EnqueueEnrichment(messageID, sessionID, content string)
	Recent(sessionID string, n int) []Message
}

// MemoryLog is the in-process message log. Content is PII-redacted before
// storage when redaction is enabled.
type MemoryLog struct {
	mu       sync.RWMutex
	messages []Message
	worker   *EnrichmentWorker
}

func NewMemoryLog(worker *EnrichmentWorker) *MemoryLog {
	return &MemoryLog{worker: worker}
}

func (m *MemoryLog) Append(ctx context.Context, sessionID, role, content string, cost float64, meta map[string]any) (string, error) {
	msg := Message{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Role:      role,
		Content:   redact.Text(content),
		Cost:      cost,
		Meta:      meta,
		At:        time.Now(),
	}
	m.mu.Lock()
	m.messages = append(m.messages, msg)
	m.mu.Unlock()
	return msg.ID, nil
}

func (m *MemoryLog) EnqueueEnrichment(messageID, sessionID, content string) {
	if m.worker == nil {
		return
	}
	m.worker.Enqueue(Task{MessageID: messageID, SessionID: sessionID, Content: content})
}

// Messages returns a snapshot of stored messages for a session.
func (m *MemoryLog) Messages(sessionID string) []Message {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []Message
	for _, msg := range m.messages {
		if msg.SessionID == sessionID {
			out = append(out, msg)
		}
	}
	return out
}

// Recent returns the last n messages for a session, oldest first.
func (m *MemoryLog) Recent(sessionID string, n int) []Message {
	all := m.Messages(sessionID)
	if n > 0 && len(all) > n {
		all = all[len(all)-n:]
	}
	return all
}

// SetMeta merges enrichment output into a stored message.
func (m *MemoryLog) SetMeta(messageID string, meta map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.messages {
		if m.messages[i].ID != messageID {
			continue
		}
		if m.messages[i].Meta == nil {
			m.messages[i].Meta = make(map[string]any, len(meta))
		}
		for k, v := range meta {
			m.messages[i].Meta[k] = v
		}
		return
	}
}
