package models

import "time"

type Category string

const (
	CategoryDriver  Category = "driver"
	CategoryVehicle Category = "vehicle"
	CategoryBank    Category = "bank"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryDriver, CategoryVehicle, CategoryBank:
		return true
	}
	return false
}

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Event names the action that produced a ledger entry.
type Event string

const (
	EventSubmitted   Event = "submitted"
	EventResubmitted Event = "resubmitted"
	EventApproved    Event = "approved"
	EventRejected    Event = "rejected"
	EventArchived    Event = "archived"
)

type Document struct {
	ID              int64             `json:"id"`
	OwnerID         int64             `json:"owner_id"`
	Category        Category          `json:"category"`
	DocType         string            `json:"doc_type"`
	FileLabel       string            `json:"file_label"`
	DocumentNumber  *string           `json:"document_number,omitempty"`
	FileRef         string            `json:"file_ref"`
	Status          Status            `json:"status"`
	RejectionReason *string           `json:"rejection_reason,omitempty"`
	ExpiryDate      *time.Time        `json:"expiry_date,omitempty"`
	Archived        bool              `json:"archived"`
	Metadata        map[string]string `json:"metadata,omitempty"`
	Version         int               `json:"version"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// Clone returns a deep copy so callers can mutate a document without
// touching a stored instance.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	c := *d
	c.DocumentNumber = cloneString(d.DocumentNumber)
	c.RejectionReason = cloneString(d.RejectionReason)
	if d.ExpiryDate != nil {
		t := *d.ExpiryDate
		c.ExpiryDate = &t
	}
	c.Metadata = cloneMetadata(d.Metadata)
	return &c
}

// Snapshot captures the reviewable state of the document.
func (d *Document) Snapshot() Snapshot {
	s := Snapshot{
		Status:          d.Status,
		RejectionReason: cloneString(d.RejectionReason),
		FileRef:         d.FileRef,
		FileLabel:       d.FileLabel,
		DocumentNumber:  cloneString(d.DocumentNumber),
		Archived:        d.Archived,
		Metadata:        cloneMetadata(d.Metadata),
	}
	if d.ExpiryDate != nil {
		t := *d.ExpiryDate
		s.ExpiryDate = &t
	}
	return s
}

// Snapshot is the immutable part of a DocumentVersion.
type Snapshot struct {
	Status          Status            `json:"status"`
	RejectionReason *string           `json:"rejection_reason,omitempty"`
	FileRef         string            `json:"file_ref"`
	FileLabel       string            `json:"file_label"`
	DocumentNumber  *string           `json:"document_number,omitempty"`
	ExpiryDate      *time.Time        `json:"expiry_date,omitempty"`
	Archived        bool              `json:"archived"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// Clone returns a deep copy of s.
func (s Snapshot) Clone() Snapshot {
	c := s
	c.RejectionReason = cloneString(s.RejectionReason)
	c.DocumentNumber = cloneString(s.DocumentNumber)
	if s.ExpiryDate != nil {
		t := *s.ExpiryDate
		c.ExpiryDate = &t
	}
	c.Metadata = cloneMetadata(s.Metadata)
	return c
}

type DocumentVersion struct {
	DocumentID   int64     `json:"document_id"`
	VersionIndex int       `json:"version_index"`
	Event        Event     `json:"event"`
	Actor        string    `json:"actor"`
	FromStatus   *Status   `json:"from_status,omitempty"`
	ToStatus     Status    `json:"to_status"`
	Snapshot     Snapshot  `json:"snapshot"`
	CreatedAt    time.Time `json:"created_at"`
}

// Clone returns a deep copy of v.
func (v *DocumentVersion) Clone() *DocumentVersion {
	c := *v
	if v.FromStatus != nil {
		st := *v.FromStatus
		c.FromStatus = &st
	}
	c.Snapshot = v.Snapshot.Clone()
	return &c
}

// Apply rebuilds the document state recorded by v on top of base identity
// fields (owner, category, doc type, creation time).
func (v *DocumentVersion) Apply(base *Document) *Document {
	d := base.Clone()
	s := v.Snapshot
	d.Status = s.Status
	d.RejectionReason = cloneString(s.RejectionReason)
	d.FileRef = s.FileRef
	d.FileLabel = s.FileLabel
	d.DocumentNumber = cloneString(s.DocumentNumber)
	d.ExpiryDate = nil
	if s.ExpiryDate != nil {
		t := *s.ExpiryDate
		d.ExpiryDate = &t
	}
	d.Archived = s.Archived
	d.Metadata = cloneMetadata(s.Metadata)
	d.Version = v.VersionIndex
	d.UpdatedAt = v.CreatedAt
	return d
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

func cloneMetadata(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	c := make(map[string]string, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}
