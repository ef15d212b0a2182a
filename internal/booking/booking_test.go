package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"document-assistant/internal/db"
	"document-assistant/internal/models"
	"document-assistant/internal/workerpool"
)

var today = time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)

type fakeLLM struct {
	mu       sync.Mutex
	reply    string
	err      error
	messages [][]models.Message
	temps    []float64
}

func (f *fakeLLM) Complete(_ context.Context, messages []models.Message, temperature float64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, messages)
	f.temps = append(f.temps, temperature)
	return f.reply, f.err
}

func newService(t *testing.T, llm LanguageModel) (*Service, *db.Store) {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	bunDB, err := db.OpenSQLite(fmt.Sprintf("file:%s?mode=memory&cache=shared", name), false)
	require.NoError(t, err)
	t.Cleanup(func() { bunDB.Close() })
	require.NoError(t, db.InitDB(context.Background(), bunDB))

	store := db.NewStore(bunDB)
	svc := NewService(llm, store, workerpool.New(2), 0).WithClock(func() time.Time { return today })
	return svc, store
}

const validReply = `{"name": "Sita Sharma", "email": "sita@example.com", "phone_number": "9812345678", "date": "2026-10-20", "time": "15:00"}`

func TestBookPersistsPendingBooking(t *testing.T) {
	llm := &fakeLLM{reply: validReply}
	svc, _ := newService(t, llm)

	b, err := svc.Book(context.Background(), "Book me tomorrow at 3pm. Sita Sharma, sita@example.com, 9812345678")
	require.NoError(t, err)
	assert.NotZero(t, b.ID)
	assert.Equal(t, models.BookingPending, b.Status)
	assert.Equal(t, "2026-10-20", b.Date)
	assert.Equal(t, "15:00", b.Time)

	require.Len(t, llm.messages, 1)
	assert.Equal(t, []float64{0.1}, llm.temps)
	prompt := llm.messages[0]
	assert.Equal(t, models.ExtractionSystemPrompt, prompt[0].Content)
	assert.Contains(t, prompt[1].Content, `User message: "Book me tomorrow at 3pm.`)
	assert.Contains(t, prompt[1].Content, "Today's date is 2026-10-19")
}

func TestBookDuplicate(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t, &fakeLLM{reply: validReply})

	_, err := svc.Book(ctx, "first")
	require.NoError(t, err)

	_, err = svc.Book(ctx, "second")
	assert.ErrorIs(t, err, models.ErrConflict)
	assert.Equal(t, models.CodeDuplicateBooking, models.CodeOf(err))
	var appErr *models.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, models.StagePersisted, appErr.Stage)

	all, err := store.ListBookings(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, models.BookingPending, all[0].Status)
}

func TestBookValidationFailureStage(t *testing.T) {
	svc, store := newService(t, &fakeLLM{reply: `{"name": "Sita"}`})

	_, err := svc.Book(context.Background(), "hi")
	assert.ErrorIs(t, err, models.ErrValidation)
	assert.Equal(t, models.CodeMissingFields, models.CodeOf(err))
	var appErr *models.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, models.StageValidated, appErr.Stage)
	assert.Equal(t, "missing required information: email, phone_number, date, time", appErr.Msg)

	all, err := store.ListBookings(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestBookExtractionTransportFailure(t *testing.T) {
	svc, _ := newService(t, &fakeLLM{err: errors.New("connection refused")})

	_, err := svc.Book(context.Background(), "hi")
	assert.ErrorIs(t, err, models.ErrDependency)
	assert.Equal(t, models.CodeExtractionFailure, models.CodeOf(err))
	var appErr *models.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, models.StageExtracted, appErr.Stage)
}

func TestExtractMalformedReplyIsAllNil(t *testing.T) {
	svc, _ := newService(t, &fakeLLM{reply: "Sorry, I cannot help with that."})

	fields, err := svc.Extract(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, models.BookingFields{}, fields)

	err = svc.Validate(fields)
	assert.Equal(t, models.CodeMissingFields, models.CodeOf(err))
}

func TestUpdateStatusTransitions(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t, &fakeLLM{reply: validReply})
	b, err := svc.Book(ctx, "book")
	require.NoError(t, err)

	confirmed, err := svc.Confirm(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingConfirmed, confirmed.Status)

	_, err = svc.UpdateStatus(ctx, b.ID, models.BookingPending)
	assert.ErrorIs(t, err, models.ErrConflict)
	assert.Equal(t, models.CodeInvalidTransition, models.CodeOf(err))

	cancelled, err := svc.Cancel(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingCancelled, cancelled.Status)

	_, err = svc.Confirm(ctx, b.ID)
	assert.Equal(t, models.CodeInvalidTransition, models.CodeOf(err))
	_, err = svc.Cancel(ctx, b.ID)
	assert.Equal(t, models.CodeInvalidTransition, models.CodeOf(err))

	got, err := svc.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingCancelled, got.Status)

	_, err = svc.UpdateStatus(ctx, b.ID, "archived")
	assert.Equal(t, models.CodeInvalidStatus, models.CodeOf(err))

	_, err = svc.Confirm(ctx, 999)
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.Equal(t, models.CodeBookingNotFound, models.CodeOf(err))
}

func TestListFiltersByStatus(t *testing.T) {
	ctx := context.Background()
	llm := &fakeLLM{reply: validReply}
	svc, _ := newService(t, llm)

	first, err := svc.Book(ctx, "one")
	require.NoError(t, err)
	llm.reply = strings.Replace(validReply, "15:00", "16:00", 1)
	_, err = svc.Book(ctx, "two")
	require.NoError(t, err)
	_, err = svc.Confirm(ctx, first.ID)
	require.NoError(t, err)

	pending, err := svc.List(ctx, models.BookingPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "16:00", pending[0].Time)

	all, err := svc.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = svc.List(ctx, "archived")
	assert.ErrorIs(t, err, models.ErrValidation)
}

type racingStore struct {
	Store
	lost int
}

// UpdateBookingStatus reports the first lost compare-and-set races before
// delegating.
func (r *racingStore) UpdateBookingStatus(ctx context.Context, id int64, from, to models.BookingStatus) (bool, error) {
	if r.lost > 0 {
		r.lost--
		return false, nil
	}
	return r.Store.UpdateBookingStatus(ctx, id, from, to)
}

func TestUpdateStatusRetriesLostRace(t *testing.T) {
	ctx := context.Background()
	llm := &fakeLLM{reply: validReply}
	base, store := newService(t, llm)
	b, err := base.Book(ctx, "book")
	require.NoError(t, err)

	racing := &racingStore{Store: store, lost: 2}
	svc := NewService(llm, racing, nil, 0).WithClock(func() time.Time { return today })
	got, err := svc.Confirm(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingConfirmed, got.Status)

	racing.lost = statusRetries
	_, err = svc.Cancel(ctx, b.ID)
	assert.ErrorIs(t, err, models.ErrConflict)
}
