package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"document-assistant/internal/models"
)

// Store is the relational record store for documents, chunks and bookings.
type Store struct {
	db  *bun.DB
	now func() time.Time
}

func NewStore(db *bun.DB) *Store {
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// WithClock replaces the timestamp source, for tests.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) DB() *bun.DB { return s.db }

func (s *Store) Close() error { return s.db.Close() }

// CreateDocument inserts doc and fills in its generated id.
func (s *Store) CreateDocument(ctx context.Context, doc *Document) error {
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = s.now()
	}
	if _, err := s.db.NewInsert().Model(doc).Returning("id").Exec(ctx); err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}
	return nil
}

// CreateChunks inserts all chunks in a single transaction.
func (s *Store) CreateChunks(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(&chunks).Exec(ctx); err != nil {
			return fmt.Errorf("failed to insert chunks: %w", err)
		}
		return nil
	})
}

func (s *Store) GetDocument(ctx context.Context, id int64) (*Document, error) {
	doc := new(Document)
	err := s.db.NewSelect().Model(doc).Where("d.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NewNotFound(models.CodeDocumentNotFound, "document %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return doc, nil
}

func (s *Store) ListDocuments(ctx context.Context) ([]Document, error) {
	var docs []Document
	if err := s.db.NewSelect().Model(&docs).Order("d.id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return docs, nil
}

// ListChunks returns a document's chunks by index; limit <= 0 returns all.
func (s *Store) ListChunks(ctx context.Context, docID int64, limit int) ([]Chunk, error) {
	var chunks []Chunk
	q := s.db.NewSelect().Model(&chunks).Where("c.doc_id = ?", docID).Order("c.chunk_index ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list chunks: %w", err)
	}
	return chunks, nil
}

// CreateBooking inserts b. A clash on (email, phone_number, date, time)
// returns a DuplicateBooking conflict.
func (s *Store) CreateBooking(ctx context.Context, b *Booking) error {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = s.now()
	}
	if b.Status == "" {
		b.Status = models.BookingPending
	}
	_, err := s.db.NewInsert().Model(b).Returning("id").Exec(ctx)
	if IsUniqueViolation(err) {
		return models.NewConflict(models.CodeDuplicateBooking,
			"a booking for %s / %s on %s at %s already exists", b.Email, b.PhoneNumber, b.Date, b.Time)
	}
	if err != nil {
		return fmt.Errorf("failed to insert booking: %w", err)
	}
	return nil
}

func (s *Store) GetBooking(ctx context.Context, id int64) (*Booking, error) {
	b := new(Booking)
	err := s.db.NewSelect().Model(b).Where("b.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.NewNotFound(models.CodeBookingNotFound, "booking %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return b, nil
}

// ListBookings returns bookings newest first, optionally filtered by status.
func (s *Store) ListBookings(ctx context.Context, status models.BookingStatus) ([]Booking, error) {
	var bookings []Booking
	q := s.db.NewSelect().Model(&bookings).Order("b.id DESC")
	if status != "" {
		q = q.Where("b.status = ?", status)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return bookings, nil
}

// UpdateBookingStatus moves a booking from one status to another only if it
// is still in from. It reports whether a row changed.
func (s *Store) UpdateBookingStatus(ctx context.Context, id int64, from, to models.BookingStatus) (bool, error) {
	res, err := s.db.NewUpdate().
		Model((*Booking)(nil)).
		Set("status = ?", to).
		Where("id = ?", id).
		Where("status = ?", from).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to update booking status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to update booking status: %w", err)
	}
	return n == 1, nil
}
