package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"clinic-session-service/api"
	"clinic-session-service/internal/models"
	"clinic-session-service/pkg/response"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memStore keeps slots and appointments in memory. ClaimSlot performs the
// same conditional flip as the postgres UPDATE ... WHERE is_booked=FALSE.
type memStore struct {
	mu           sync.Mutex
	doctors      map[string]*models.Doctor
	slots        []*models.TimeSlot
	appointments map[string]*models.Appointment
	claimedBy    map[string]string
	seq          int

	// beforeClaim runs outside the lock before every claim, letting tests
	// interleave a competing booking.
	beforeClaim func(slotID string)
}

func newMemStore() *memStore {
	return &memStore{
		doctors:      map[string]*models.Doctor{"doc-x": {ID: "doc-x", Name: "Dr. X"}},
		appointments: make(map[string]*models.Appointment),
		claimedBy:    make(map[string]string),
	}
}

func (m *memStore) addSlots(date time.Time, room string, times ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, t := range times {
		m.seq++
		m.slots = append(m.slots, &models.TimeSlot{
			ID:       fmt.Sprintf("slot-%d", m.seq),
			DoctorID: "doc-x",
			Date:     date,
			Time:     t,
			Room:     room,
		})
	}
}

func (m *memStore) ListDoctors(context.Context) ([]models.Doctor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.Doctor, 0, len(m.doctors))
	for _, d := range m.doctors {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Rating > out[j].Rating })
	return out, nil
}

func (m *memStore) GetDoctor(_ context.Context, id string) (*models.Doctor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.doctors[id]
	if !ok {
		return nil, response.ErrNotFound
	}
	return d, nil
}

func (m *memStore) CreateSlots(_ context.Context, slots []models.TimeSlot) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var added int64
	for _, s := range slots {
		dup := false
		for _, existing := range m.slots {
			if existing.DoctorID == s.DoctorID && existing.Date.Equal(s.Date) &&
				existing.Time == s.Time && existing.Room == s.Room {
				dup = true
				break
			}
		}
		if dup {
			continue
		}

		m.seq++
		s.ID = fmt.Sprintf("slot-%d", m.seq)
		cp := s
		m.slots = append(m.slots, &cp)
		added++
	}

	return added, nil
}

func (m *memStore) ListSlots(_ context.Context, doctorID string, date *time.Time) ([]models.TimeSlot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.TimeSlot, 0)
	for _, s := range m.slots {
		if s.DoctorID == doctorID && (date == nil || s.Date.Equal(*date)) {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *memStore) ListFreeSlots(_ context.Context, doctorID string, date time.Time) ([]models.TimeSlot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.TimeSlot, 0)
	for _, s := range m.slots {
		if s.DoctorID == doctorID && s.Date.Equal(date) && !s.IsBooked {
			out = append(out, *s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	return out, nil
}

func (m *memStore) ListUpcomingFreeSlots(_ context.Context, from time.Time) ([]models.TimeSlot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]models.TimeSlot, 0)
	for _, s := range m.slots {
		if !s.IsBooked && !s.Date.Before(from) {
			out = append(out, *s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Time < out[j].Time
	})
	return out, nil
}

func (m *memStore) ClaimSlot(_ context.Context, slotID string, appt *models.Appointment) (*models.Appointment, error) {
	if m.beforeClaim != nil {
		m.beforeClaim(slotID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var slot *models.TimeSlot
	for _, s := range m.slots {
		if s.ID == slotID {
			slot = s
		}
	}
	if slot == nil || slot.IsBooked {
		return nil, response.ErrRaceLost
	}

	slot.IsBooked = true
	m.seq++

	booked := *appt
	booked.ID = fmt.Sprintf("appt-%d", m.seq)
	booked.TimeSlot = slot.Time
	booked.Room = slot.Room
	booked.Status = models.StatusPending
	m.appointments[booked.ID] = &booked
	m.claimedBy[slotID] = booked.ID

	return &booked, nil
}

func (m *memStore) DeleteSlot(_ context.Context, doctorID, slotID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, s := range m.slots {
		if s.ID == slotID && s.DoctorID == doctorID {
			if s.IsBooked {
				return response.ErrConflict
			}
			m.slots = append(m.slots[:i], m.slots[i+1:]...)
			return nil
		}
	}
	return response.ErrNotFound
}

func (m *memStore) DeleteSlotsForDate(_ context.Context, doctorID string, date time.Time, room *string) (int64, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var deleted, kept int64
	remaining := m.slots[:0]
	for _, s := range m.slots {
		match := s.DoctorID == doctorID && s.Date.Equal(date) && (room == nil || s.Room == *room)
		switch {
		case match && s.IsBooked:
			kept++
			remaining = append(remaining, s)
		case match:
			deleted++
		default:
			remaining = append(remaining, s)
		}
	}
	m.slots = remaining

	return deleted, kept, nil
}

func (m *memStore) GetAppointment(_ context.Context, id string) (*models.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.appointments[id]
	if !ok {
		return nil, response.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memStore) CountBookings(_ context.Context, doctorID string, date time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, a := range m.appointments {
		if a.DoctorID == doctorID && a.Date.Equal(date) && a.Status != models.StatusCancelled {
			n++
		}
	}
	return n, nil
}

func (m *memStore) UpdateAppointmentStatus(_ context.Context, id string, from, to models.AppointmentStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.appointments[id]
	if !ok || a.Status != from {
		return response.ErrConflict
	}
	a.Status = to
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var june10 = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

func reservation(date string) *api.ReservationRequest {
	return &api.ReservationRequest{
		DoctorID:     "doc-x",
		PatientName:  "Nimal",
		PatientEmail: "nimal@example.com",
		Date:         date,
	}
}

// ============================================
// ReserveAppointment
// ============================================

func TestReserve_EarliestSlotFirst(t *testing.T) {
	store := newMemStore()
	store.addSlots(june10, "Room 101", "10:00", "09:00", "09:30")
	svc := NewService(testLogger(), store)

	first, err := svc.ReserveAppointment(context.Background(), reservation("2025-06-10"))
	require.NoError(t, err)
	assert.Equal(t, "09:00", first.AssignedTime)
	assert.Equal(t, "Room 101", first.AssignedRoom)
	assert.Equal(t, 1, first.BookingNumber)

	second, err := svc.ReserveAppointment(context.Background(), reservation("2025-06-10T08:15:00Z"))
	require.NoError(t, err)
	assert.Equal(t, "09:30", second.AssignedTime)
	assert.Equal(t, 2, second.BookingNumber)

	appt, err := svc.GetAppointment(context.Background(), second.AppointmentID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, appt.Status)
	assert.Equal(t, "09:30", appt.TimeSlot)
}

func TestReserve_ConcurrentRequestsNeverShareASlot(t *testing.T) {
	const slots, extra = 5, 7

	store := newMemStore()
	times := make([]string, slots)
	for i := range times {
		times[i] = fmt.Sprintf("%02d:00", 9+i)
	}
	store.addSlots(june10, "Room 101", times...)
	svc := NewService(testLogger(), store)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes []string
		noAvail   int
		start     = make(chan struct{})
	)

	for i := 0; i < slots+extra; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start

			res, err := svc.ReserveAppointment(context.Background(), reservation("2025-06-10"))

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes = append(successes, res.AssignedTime)
			case errors.Is(err, response.ErrNoAvailability):
				noAvail++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Len(t, successes, slots)
	assert.Equal(t, extra, noAvail)

	sort.Strings(successes)
	assert.Equal(t, times, successes)
	assert.Len(t, store.claimedBy, slots)
	assert.Len(t, store.appointments, slots)
}

func TestReserve_LostRaceFallsThroughToNextCandidate(t *testing.T) {
	store := newMemStore()
	store.addSlots(june10, "Room 101", "09:00", "09:30")
	svc := NewService(testLogger(), store)

	// a competing booking grabs 09:00 between the read and the claim
	store.beforeClaim = func(slotID string) {
		if slotID != "slot-1" {
			return
		}
		store.mu.Lock()
		store.slots[0].IsBooked = true
		store.mu.Unlock()
	}

	res, err := svc.ReserveAppointment(context.Background(), reservation("2025-06-10"))

	require.NoError(t, err)
	assert.Equal(t, "09:30", res.AssignedTime)
}

func TestReserve_NoAvailability(t *testing.T) {
	store := newMemStore()
	store.addSlots(june10, "Room 101", "09:00")
	svc := NewService(testLogger(), store)

	_, err := svc.ReserveAppointment(context.Background(), reservation("2025-06-10"))
	require.NoError(t, err)

	_, err = svc.ReserveAppointment(context.Background(), reservation("2025-06-10"))
	assert.ErrorIs(t, err, response.ErrNoAvailability)

	_, err = svc.ReserveAppointment(context.Background(), reservation("2025-06-11"))
	assert.ErrorIs(t, err, response.ErrNoAvailability)
}

func TestReserve_ValidatesInput(t *testing.T) {
	svc := NewService(testLogger(), newMemStore())

	req := reservation("2025-06-10")
	req.PatientEmail = "not-an-email"
	req.PatientName = ""

	_, err := svc.ReserveAppointment(context.Background(), req)

	require.ErrorIs(t, err, response.ErrInvalidInput)
	var verrs validator.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Len(t, verrs, 2)

	_, err = svc.ReserveAppointment(context.Background(), reservation("10/06/2025"))
	assert.ErrorIs(t, err, response.ErrInvalidInput)
}

func TestReserve_UnknownDoctor(t *testing.T) {
	svc := NewService(testLogger(), newMemStore())

	req := reservation("2025-06-10")
	req.DoctorID = "nobody"

	_, err := svc.ReserveAppointment(context.Background(), req)
	assert.ErrorIs(t, err, response.ErrNotFound)
}

// ============================================
// Appointment lifecycle
// ============================================

func reserved(t *testing.T) (*Service, *memStore, string) {
	t.Helper()

	store := newMemStore()
	store.addSlots(june10, "Room 101", "09:00")
	svc := NewService(testLogger(), store)

	res, err := svc.ReserveAppointment(context.Background(), reservation("2025-06-10"))
	require.NoError(t, err)

	return svc, store, res.AppointmentID
}

func TestConfirmThenCancel(t *testing.T) {
	svc, _, id := reserved(t)

	appt, err := svc.ConfirmAppointment(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, appt.Status)

	_, err = svc.ConfirmAppointment(context.Background(), id)
	assert.ErrorIs(t, err, response.ErrInvalidTransition)

	appt, err = svc.CancelAppointment(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, appt.Status)

	_, err = svc.ConfirmAppointment(context.Background(), id)
	assert.ErrorIs(t, err, response.ErrInvalidTransition)
}

func TestCancel_DoesNotFreeSlot(t *testing.T) {
	svc, _, id := reserved(t)

	_, err := svc.CancelAppointment(context.Background(), id)
	require.NoError(t, err)

	_, err = svc.ReserveAppointment(context.Background(), reservation("2025-06-10"))
	assert.ErrorIs(t, err, response.ErrNoAvailability)
}

func TestCompletedAppointmentCannotBeCancelled(t *testing.T) {
	svc, store, id := reserved(t)
	store.appointments[id].Status = models.StatusCompleted

	_, err := svc.CancelAppointment(context.Background(), id)
	assert.ErrorIs(t, err, response.ErrInvalidTransition)
}

func TestTransition_UnknownAppointment(t *testing.T) {
	svc := NewService(testLogger(), newMemStore())

	_, err := svc.ConfirmAppointment(context.Background(), "missing")
	assert.ErrorIs(t, err, response.ErrNotFound)
}

// ============================================
// Slot inventory
// ============================================

func TestGenerateSlots(t *testing.T) {
	store := newMemStore()
	svc := NewService(testLogger(), store)

	added, err := svc.GenerateSlots(context.Background(), "doc-x", &api.SlotGenerateRequest{
		Date: "2025-06-10", StartTime: "09:00", DurationMinutes: 30, Count: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), added)

	slots, err := svc.ListSlots(context.Background(), "doc-x", "2025-06-10")
	require.NoError(t, err)
	require.Len(t, slots, 3)
	assert.Equal(t, "09:00", slots[0].Time)
	assert.Equal(t, "09:30", slots[1].Time)
	assert.Equal(t, "10:00", slots[2].Time)
	assert.Equal(t, DefaultRoom, slots[0].Room)
	assert.Equal(t, june10, slots[0].Date)

	// same grid again is skipped, one new slot appended
	added, err = svc.GenerateSlots(context.Background(), "doc-x", &api.SlotGenerateRequest{
		Date: "2025-06-10", StartTime: "09:00", DurationMinutes: 30, Count: 4,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), added)
}

func TestGenerateSlots_RejectsMidnightRollover(t *testing.T) {
	store := newMemStore()
	svc := NewService(testLogger(), store)

	_, err := svc.GenerateSlots(context.Background(), "doc-x", &api.SlotGenerateRequest{
		Date: "2025-06-10", StartTime: "23:00", DurationMinutes: 30, Count: 3,
	})

	assert.ErrorIs(t, err, response.ErrInvalidInput)
	assert.Empty(t, store.slots)
}

func TestGenerateSlots_Validation(t *testing.T) {
	svc := NewService(testLogger(), newMemStore())

	_, err := svc.GenerateSlots(context.Background(), "doc-x", &api.SlotGenerateRequest{
		Date: "2025-06-10", StartTime: "9am", DurationMinutes: 0, Count: 1,
	})

	assert.ErrorIs(t, err, response.ErrInvalidInput)
}

func TestDeleteSlots(t *testing.T) {
	store := newMemStore()
	store.addSlots(june10, "Room 101", "09:00", "09:30", "10:00")
	store.addSlots(june10, "Room 102", "09:00")
	svc := NewService(testLogger(), store)

	_, err := svc.ReserveAppointment(context.Background(), reservation("2025-06-10"))
	require.NoError(t, err)

	booked := "slot-1"
	_, err = svc.DeleteSlots(context.Background(), "doc-x", &api.SlotDeleteRequest{SlotID: &booked})
	assert.ErrorIs(t, err, response.ErrConflict)

	free := "slot-2"
	res, err := svc.DeleteSlots(context.Background(), "doc-x", &api.SlotDeleteRequest{SlotID: &free})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Deleted)

	date, room := "2025-06-10", "Room 101"
	res, err = svc.DeleteSlots(context.Background(), "doc-x", &api.SlotDeleteRequest{Date: &date, Room: &room})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Deleted)
	assert.Equal(t, int64(1), res.Kept)

	slots, err := svc.ListSlots(context.Background(), "doc-x", "")
	require.NoError(t, err)
	assert.Len(t, slots, 2)

	_, err = svc.DeleteSlots(context.Background(), "doc-x", &api.SlotDeleteRequest{})
	assert.ErrorIs(t, err, response.ErrInvalidInput)
}

// ============================================
// ListDoctors
// ============================================

func TestListDoctors_OnlyUpcomingFreeSlots(t *testing.T) {
	store := newMemStore()
	store.doctors["doc-y"] = &models.Doctor{ID: "doc-y", Name: "Dr. Y", Rating: 4.9}
	store.doctors["doc-x"].Rating = 4.1

	june9 := june10.AddDate(0, 0, -1)
	store.addSlots(june9, "Room 101", "09:00")
	store.addSlots(june10, "Room 101", "10:00", "09:30")
	svc := NewService(testLogger(), store)
	svc.now = func() time.Time { return time.Date(2025, 6, 10, 8, 15, 0, 0, time.UTC) }

	_, err := svc.ReserveAppointment(context.Background(), reservation("2025-06-10"))
	require.NoError(t, err)

	doctors, err := svc.ListDoctors(context.Background())
	require.NoError(t, err)
	require.Len(t, doctors, 2)

	assert.Equal(t, "doc-y", doctors[0].ID)
	assert.NotNil(t, doctors[0].TimeSlots)
	assert.Empty(t, doctors[0].TimeSlots)

	// yesterday's slot is gone and the 09:30 slot went to the reservation
	assert.Equal(t, "doc-x", doctors[1].ID)
	require.Len(t, doctors[1].TimeSlots, 1)
	assert.Equal(t, "10:00", doctors[1].TimeSlots[0].Time)
}
