// Package booking turns a free-text interview request into a validated,
// persisted booking and manages its status afterwards.
package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"document-assistant/internal/db"
	"document-assistant/internal/models"
	"document-assistant/internal/workerpool"
)

const statusRetries = 3

type LanguageModel interface {
	Complete(ctx context.Context, messages []models.Message, temperature float64) (string, error)
}

type Store interface {
	CreateBooking(ctx context.Context, b *db.Booking) error
	GetBooking(ctx context.Context, id int64) (*db.Booking, error)
	ListBookings(ctx context.Context, status models.BookingStatus) ([]db.Booking, error)
	UpdateBookingStatus(ctx context.Context, id int64, from, to models.BookingStatus) (bool, error)
}

type Service struct {
	llm         LanguageModel
	store       Store
	pool        *workerpool.Pool
	temperature float64
	now         func() time.Time
}

func NewService(llm LanguageModel, store Store, pool *workerpool.Pool, temperature float64) *Service {
	if temperature == 0 {
		temperature = 0.1
	}
	return &Service{
		llm:         llm,
		store:       store,
		pool:        pool,
		temperature: temperature,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the source of "today" for prompts and validation.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Extract asks the model for the booking fields in message. Only a failed
// model call is an error; an unusable reply gives all-nil fields.
func (s *Service) Extract(ctx context.Context, message string) (models.BookingFields, error) {
	prompt := fmt.Sprintf(models.ExtractionPromptTemplate, message, s.now().Format(models.DateLayout))
	messages := []models.Message{
		{Role: models.RoleSystem, Content: models.ExtractionSystemPrompt},
		{Role: models.RoleUser, Content: prompt},
	}

	reply, err := workerpool.Do(ctx, s.pool, func(ctx context.Context) (string, error) {
		return s.llm.Complete(ctx, messages, s.temperature)
	})
	if err != nil {
		return models.BookingFields{}, models.WithStage(err, models.StageExtracted, models.CodeExtractionFailure)
	}
	return ParseFields(reply), nil
}

func (s *Service) Validate(f models.BookingFields) error {
	return Validate(f, s.now())
}

// Book runs extraction, validation and persistence. Errors carry the stage
// that was not reached.
func (s *Service) Book(ctx context.Context, message string) (*db.Booking, error) {
	fields, err := s.Extract(ctx, message)
	if err != nil {
		return nil, err
	}
	if err := s.Validate(fields); err != nil {
		log.Info().Err(err).Msg("Booking request rejected")
		return nil, err
	}

	b := &db.Booking{
		Name:        *fields.Name,
		Email:       *fields.Email,
		PhoneNumber: *fields.PhoneNumber,
		Date:        *fields.Date,
		Time:        *fields.Time,
		Status:      models.BookingPending,
	}
	if err := s.store.CreateBooking(ctx, b); err != nil {
		return nil, models.WithStage(err, models.StagePersisted, models.CodePersistenceFailure)
	}

	log.Info().Int64("booking_id", b.ID).Str("date", b.Date).Str("time", b.Time).Msg("Booking created")
	return b, nil
}

func (s *Service) Get(ctx context.Context, id int64) (*db.Booking, error) {
	return s.store.GetBooking(ctx, id)
}

// List returns all bookings, or only those in status when it is set.
func (s *Service) List(ctx context.Context, status models.BookingStatus) ([]db.Booking, error) {
	if status != "" && !status.Valid() {
		return nil, models.NewValidation(models.CodeInvalidStatus, "unknown booking status: %s", status)
	}
	return s.store.ListBookings(ctx, status)
}

// UpdateStatus moves booking id to status if the transition is allowed from
// its current status. A concurrent change between the read and the write is
// retried against the new current status.
func (s *Service) UpdateStatus(ctx context.Context, id int64, status models.BookingStatus) (*db.Booking, error) {
	if !status.Valid() {
		return nil, models.NewValidation(models.CodeInvalidStatus, "unknown booking status: %s", status)
	}

	for attempt := 0; attempt < statusRetries; attempt++ {
		b, err := s.store.GetBooking(ctx, id)
		if err != nil {
			return nil, err
		}
		if !b.Status.CanTransition(status) {
			return nil, models.NewConflict(models.CodeInvalidTransition,
				"booking %d cannot move from %s to %s", id, b.Status, status)
		}

		changed, err := s.store.UpdateBookingStatus(ctx, id, b.Status, status)
		if err != nil {
			return nil, models.Dependency(models.CodePersistenceFailure, "failed to update booking", err)
		}
		if changed {
			log.Info().Int64("booking_id", id).Str("from", string(b.Status)).Str("to", string(status)).Msg("Booking status updated")
			b.Status = status
			return b, nil
		}
		log.Debug().Int64("booking_id", id).Int("attempt", attempt+1).Msg("Booking changed concurrently, retrying")
	}
	return nil, models.NewConflict(models.CodeInvalidTransition, "booking %d kept changing, giving up", id)
}

func (s *Service) Confirm(ctx context.Context, id int64) (*db.Booking, error) {
	return s.UpdateStatus(ctx, id, models.BookingConfirmed)
}

func (s *Service) Cancel(ctx context.Context, id int64) (*db.Booking, error) {
	return s.UpdateStatus(ctx, id, models.BookingCancelled)
}
