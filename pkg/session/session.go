package session

import (
	"time"

	"github.com/harunnryd/niaga/pkg/complaint"
)

// Session is the per-conversation record owned by the pipeline during a
// turn and persisted between turns. At most one of PendingImage and an
// active complaint sub-flow drives the next-turn interpretation of a bare
// image submission.
type Session struct {
	ID           string
	AgentID      string
	Channel      string
	Language     string
	PendingImage *PendingImage
	Complaint    *complaint.Record
	MessageCount int
	TotalCost    float64
	UpdatedAt    time.Time
}

// Clone returns a deep copy. The store hands clones across its
// boundary so turn mutations never alias stored state.
func (s *Session) Clone() *Session {
	c := *s
	if s.PendingImage != nil {
		p := *s.PendingImage
		c.PendingImage = &p
	}
	if s.Complaint != nil {
		c.Complaint = s.Complaint.Clone()
	}
	return &c
}

// PendingImage is a one-shot buffer for an image whose intent was ambiguous.
// It is consumed (read then cleared) by the next turn.
type PendingImage struct {
	ImageRef     string
	OriginalText string
	StoredAt     time.Time
}

// StorePendingImage buffers an ambiguous image submission for the next turn.
func (s *Session) StorePendingImage(imageRef, originalText string, now time.Time) {
	s.PendingImage = &PendingImage{
		ImageRef:     imageRef,
		OriginalText: originalText,
		StoredAt:     now,
	}
}

// ConsumePendingImage returns the buffered image and clears it. A second
// call returns nil.
func (s *Session) ConsumePendingImage() *PendingImage {
	p := s.PendingImage
	s.PendingImage = nil
	return p
}

// ComplaintRecord returns the complaint sub-flow record, creating an
// inactive one when absent.
func (s *Session) ComplaintRecord() *complaint.Record {
	if s.Complaint == nil {
		s.Complaint = complaint.NewRecord()
	}
	return s.Complaint
}
