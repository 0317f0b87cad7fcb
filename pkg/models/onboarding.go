package models

import "time"

type Stage string

const (
	StageDriverInfo      Stage = "driver_info"
	StageDriverDocuments Stage = "driver_documents"
	StageVehicleInfo     Stage = "vehicle_info"
	StageBankDocuments   Stage = "bank_documents"
	StageComplete        Stage = "complete"
)

// Stages lists onboarding stages in the order a driver passes them.
var Stages = []Stage{
	StageDriverInfo,
	StageDriverDocuments,
	StageVehicleInfo,
	StageBankDocuments,
	StageComplete,
}

// Index returns the position of s in Stages, or -1.
func (s Stage) Index() int {
	for i, st := range Stages {
		if st == s {
			return i
		}
	}
	return -1
}

// Next returns the stage following s. Complete is its own successor.
func (s Stage) Next() Stage {
	i := s.Index()
	if i < 0 || i+1 >= len(Stages) {
		return StageComplete
	}
	return Stages[i+1]
}

type OnboardingSession struct {
	DriverID         int64     `json:"driver_id"`
	CurrentStage     Stage     `json:"current_stage"`
	CompletedStages  []Stage   `json:"completed_stages"`
	DriverProfileID  *int64    `json:"driver_profile_id,omitempty"`
	VehicleProfileID *int64    `json:"vehicle_profile_id,omitempty"`
	BankProfileID    *int64    `json:"bank_profile_id,omitempty"`
	// Version counts saves; Save only succeeds against the version read.
	Version   int       `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Passed reports whether the session has moved beyond stage.
func (s *OnboardingSession) Passed(stage Stage) bool {
	return s.CurrentStage.Index() > stage.Index()
}

// DocumentUpload is one item of a stage batch.
type DocumentUpload struct {
	DocType        string            `json:"doc_type"`
	FileLabel      string            `json:"file_label"`
	DocumentNumber *string           `json:"document_number,omitempty"`
	FileRef        string            `json:"file_ref"`
	ExpiryDate     *time.Time        `json:"expiry_date,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	// Invalid marks an item the transport could not decode. The item is
	// reported as failed without being submitted.
	Invalid error `json:"-"`
}

// UploadResult reports the outcome of a single batch item.
type UploadResult struct {
	Index      int       `json:"index"`
	DocType    string    `json:"doc_type"`
	FileLabel  string    `json:"file_label"`
	DocumentID int64     `json:"document_id,omitempty"`
	Error      string    `json:"error,omitempty"`
	ErrorKind  string    `json:"error_kind,omitempty"`
	Retryable  bool      `json:"retryable,omitempty"`
	Err        error     `json:"-"`
	At         time.Time `json:"-"`
}

type BatchResult struct {
	Session *OnboardingSession `json:"session"`
	Items   []UploadResult     `json:"items"`
}

// Failed returns the number of items that did not persist.
func (b *BatchResult) Failed() int {
	n := 0
	for _, it := range b.Items {
		if it.Err != nil {
			n++
		}
	}
	return n
}
