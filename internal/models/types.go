package models

// Message is one chat turn as stored in session history and sent to the model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChunkMetadata is the payload stored next to every vector.
type ChunkMetadata struct {
	DocID       int64  `json:"doc_id"`
	ChunkIndex  int    `json:"chunk_index"`
	TextPreview string `json:"text_preview"`
}

// VectorRecord mirrors one chunk inside the vector index.
type VectorRecord struct {
	ID       string
	Vector   []float32
	Metadata ChunkMetadata
}

// SearchHit is a single nearest-neighbour result, ordered by descending Score.
type SearchHit struct {
	ID       string
	Score    float64
	Metadata ChunkMetadata
}

// Source cites one retrieved chunk in a query answer.
type Source struct {
	DocID      int64   `json:"doc_id"`
	ChunkIndex int     `json:"chunk_index"`
	Score      float64 `json:"score"`
}

type IngestResult struct {
	DocumentID  int64  `json:"document_id"`
	Filename    string `json:"filename"`
	TotalChunks int    `json:"total_chunks"`
}

type QueryResult struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
}

// BookingFields is the structured result of extraction. Nil means the model
// could not find the field.
type BookingFields struct {
	Name        *string `json:"name"`
	Email       *string `json:"email"`
	PhoneNumber *string `json:"phone_number"`
	Date        *string `json:"date"`
	Time        *string `json:"time"`
}

// Missing returns the JSON names of empty fields in declaration order.
func (f BookingFields) Missing() []string {
	var missing []string
	for _, field := range []struct {
		name  string
		value *string
	}{
		{"name", f.Name},
		{"email", f.Email},
		{"phone_number", f.PhoneNumber},
		{"date", f.Date},
		{"time", f.Time},
	} {
		if field.value == nil || *field.value == "" {
			missing = append(missing, field.name)
		}
	}
	return missing
}

type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
)

func (s BookingStatus) Valid() bool {
	switch s {
	case BookingPending, BookingConfirmed, BookingCancelled:
		return true
	}
	return false
}

// CanTransition reports whether a booking may move from s to next.
// Nothing returns to pending and nothing leaves cancelled.
func (s BookingStatus) CanTransition(next BookingStatus) bool {
	switch s {
	case BookingPending:
		return next == BookingConfirmed || next == BookingCancelled
	case BookingConfirmed:
		return next == BookingCancelled
	}
	return false
}

// BookingStage names how far a booking request got before failing.
type BookingStage string

const (
	StageReceived  BookingStage = "received"
	StageExtracted BookingStage = "extracted"
	StageValidated BookingStage = "validated"
	StagePersisted BookingStage = "persisted"
)
