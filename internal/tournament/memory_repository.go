package tournament

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memoryRepository struct {
	mu            sync.Mutex
	tournaments   map[int64]Tournament
	registrations map[int64]Registration
	nextTID       int64
	nextRID       int64
}

// NewMemoryRepository builds an in-memory repository holding seed.
func NewMemoryRepository(seed []Tournament) Repository {
	r := &memoryRepository{
		tournaments:   make(map[int64]Tournament),
		registrations: make(map[int64]Registration),
	}
	now := time.Now().UTC()
	for _, t := range seed {
		r.nextTID++
		if t.ID == 0 {
			t.ID = r.nextTID
		}
		if t.CreatedAt.IsZero() {
			t.CreatedAt = now
		}
		r.tournaments[t.ID] = t
	}
	return r
}

func (r *memoryRepository) List(_ context.Context) ([]Tournament, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Tournament, 0, len(r.tournaments))
	for _, t := range r.tournaments {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memoryRepository) Get(_ context.Context, id int64) (Tournament, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tournaments[id]
	if !ok {
		return Tournament{}, ErrNotFound
	}
	return t, nil
}

func (r *memoryRepository) Reserve(_ context.Context, tournamentID int64, userID string) (Registration, Tournament, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.tournaments[tournamentID]
	if !ok {
		return Registration{}, Tournament{}, ErrNotFound
	}
	for _, reg := range r.registrations {
		if reg.TournamentID == tournamentID && reg.UserID == userID {
			if reg.Status == RegistrationPending {
				return reg, t, nil
			}
			return Registration{}, Tournament{}, ErrAlreadyRegistered
		}
	}
	if t.Status != StatusOpen {
		return Registration{}, Tournament{}, ErrClosed
	}
	if t.Full() {
		return Registration{}, Tournament{}, ErrFull
	}

	r.nextRID++
	reg := Registration{
		ID:           r.nextRID,
		UserID:       userID,
		TournamentID: tournamentID,
		Status:       RegistrationPending,
		CreatedAt:    time.Now().UTC(),
	}
	r.registrations[reg.ID] = reg

	t.CurrentParticipants++
	if t.Full() {
		t.Status = StatusClosed
	}
	r.tournaments[t.ID] = t
	return reg, t, nil
}

func (r *memoryRepository) Confirm(_ context.Context, registrationID int64, transactionID string) (Registration, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.registrations[registrationID]
	if !ok {
		return Registration{}, ErrNotFound
	}
	reg.Status = RegistrationRegistered
	reg.TransactionID = transactionID
	r.registrations[reg.ID] = reg
	return reg, nil
}

func (r *memoryRepository) Release(_ context.Context, registrationID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	reg, ok := r.registrations[registrationID]
	if !ok || reg.Status != RegistrationPending {
		return nil
	}
	delete(r.registrations, registrationID)

	t := r.tournaments[reg.TournamentID]
	t.CurrentParticipants--
	if t.Status == StatusClosed && !t.Full() {
		t.Status = StatusOpen
	}
	r.tournaments[t.ID] = t
	return nil
}

func (r *memoryRepository) ListByUser(_ context.Context, userID string) ([]Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Entry
	for _, reg := range r.registrations {
		if reg.UserID != userID || reg.Status == RegistrationPending {
			continue
		}
		out = append(out, Entry{Registration: reg, Tournament: r.tournaments[reg.TournamentID]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Registration.ID > out[j].Registration.ID })
	return out, nil
}
