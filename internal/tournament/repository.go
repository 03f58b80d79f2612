package tournament

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound          = errors.New("tournament not found")
	ErrClosed            = errors.New("Registration is closed for this tournament")
	ErrFull              = errors.New("Tournament is full")
	ErrAlreadyRegistered = errors.New("Already registered for this tournament")
)

// Repository stores the catalog and registrations.
//
// Reserve takes a seat for userID: it checks the tournament is open and not
// full, creates a Pending registration, bumps the participant count and closes
// registration when the last seat goes. A Pending registration left by an
// interrupted attempt is returned as is so the caller can finish it.
// Release undoes a Pending reservation.
type Repository interface {
	List(ctx context.Context) ([]Tournament, error)
	Get(ctx context.Context, id int64) (Tournament, error)
	Reserve(ctx context.Context, tournamentID int64, userID string) (Registration, Tournament, error)
	Confirm(ctx context.Context, registrationID int64, transactionID string) (Registration, error)
	Release(ctx context.Context, registrationID int64) error
	ListByUser(ctx context.Context, userID string) ([]Entry, error)
}

// PostgresRepository stores tournaments and registrations in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const tournamentColumns = `t.id, t.name, t.game, t.prize_pool, t.entry_fee::text, t.max_participants, t.current_participants,
        t.start_date, t.end_date, t.status, t.organizer, t.format, t.thumbnail, t.created_at`

const registrationColumns = `r.id, r.user_id, r.tournament_id, COALESCE(r.transaction_id, ''), r.status,
        COALESCE(r.placement, ''), r.earnings::text, r.created_at`

// List returns the catalog, newest first.
func (r *PostgresRepository) List(ctx context.Context) ([]Tournament, error) {
	rows, err := r.db.Query(ctx, `SELECT `+tournamentColumns+` FROM tournaments t ORDER BY t.created_at DESC, t.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Tournament
	for rows.Next() {
		t, err := scanTournament(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Get fetches one tournament.
func (r *PostgresRepository) Get(ctx context.Context, id int64) (Tournament, error) {
	return scanTournament(r.db.QueryRow(ctx, `SELECT `+tournamentColumns+` FROM tournaments t WHERE t.id = $1`, id))
}

// Reserve locks the tournament row while it takes a seat.
func (r *PostgresRepository) Reserve(ctx context.Context, tournamentID int64, userID string) (Registration, Tournament, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return Registration{}, Tournament{}, err
	}

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Registration{}, Tournament{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	t, err := scanTournament(tx.QueryRow(ctx, `SELECT `+tournamentColumns+` FROM tournaments t WHERE t.id = $1 FOR UPDATE`, tournamentID))
	if err != nil {
		return Registration{}, Tournament{}, err
	}

	existing, err := scanRegistration(tx.QueryRow(ctx, `SELECT `+registrationColumns+`
        FROM tournament_registrations r WHERE r.tournament_id = $1 AND r.user_id = $2`, tournamentID, uid))
	switch {
	case err == nil && existing.Status == RegistrationPending:
		return existing, t, nil
	case err == nil:
		return Registration{}, Tournament{}, ErrAlreadyRegistered
	case !errors.Is(err, ErrNotFound):
		return Registration{}, Tournament{}, err
	}

	if t.Status != StatusOpen {
		return Registration{}, Tournament{}, ErrClosed
	}
	if t.Full() {
		return Registration{}, Tournament{}, ErrFull
	}

	reg := Registration{UserID: userID, TournamentID: tournamentID, Status: RegistrationPending}
	if err := tx.QueryRow(ctx, `INSERT INTO tournament_registrations (user_id, tournament_id, status)
        VALUES ($1, $2, $3) RETURNING id, created_at`, uid, tournamentID, RegistrationPending).Scan(&reg.ID, &reg.CreatedAt); err != nil {
		return Registration{}, Tournament{}, err
	}

	t.CurrentParticipants++
	if t.Full() {
		t.Status = StatusClosed
	}
	if _, err := tx.Exec(ctx, `UPDATE tournaments SET current_participants = $1, status = $2 WHERE id = $3`,
		t.CurrentParticipants, t.Status, t.ID); err != nil {
		return Registration{}, Tournament{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Registration{}, Tournament{}, err
	}
	reg.CreatedAt = reg.CreatedAt.UTC()
	return reg, t, nil
}

// Confirm marks a reservation as paid.
func (r *PostgresRepository) Confirm(ctx context.Context, registrationID int64, transactionID string) (Registration, error) {
	return scanRegistration(r.db.QueryRow(ctx, `UPDATE tournament_registrations r
        SET status = $1, transaction_id = NULLIF($2, '')
        WHERE r.id = $3
        RETURNING `+registrationColumns, RegistrationRegistered, transactionID, registrationID))
}

// Release drops a Pending reservation and gives the seat back.
func (r *PostgresRepository) Release(ctx context.Context, registrationID int64) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	var tournamentID int64
	err = tx.QueryRow(ctx, `DELETE FROM tournament_registrations WHERE id = $1 AND status = $2 RETURNING tournament_id`,
		registrationID, RegistrationPending).Scan(&tournamentID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx, `UPDATE tournaments
        SET current_participants = current_participants - 1,
            status = CASE WHEN status = $1 AND current_participants - 1 < max_participants THEN $2 ELSE status END
        WHERE id = $3`, StatusClosed, StatusOpen, tournamentID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// ListByUser returns the user's confirmed registrations, newest first.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]Entry, error) {
	uid, err := uuid.Parse(userID)
	if err != nil {
		return nil, nil
	}
	rows, err := r.db.Query(ctx, `SELECT `+registrationColumns+`, `+tournamentColumns+`
        FROM tournament_registrations r
        JOIN tournaments t ON t.id = r.tournament_id
        WHERE r.user_id = $1 AND r.status <> $2
        ORDER BY r.created_at DESC, r.id DESC`, uid, RegistrationPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e        Entry
			userUUID uuid.UUID
			earnings *string
			t        tournamentRow
		)
		dest := append([]any{&e.Registration.ID, &userUUID, &e.Registration.TournamentID, &e.Registration.TransactionID,
			&e.Registration.Status, &e.Registration.Placement, &earnings, &e.Registration.CreatedAt}, t.dest()...)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		e.Registration.UserID = userUUID.String()
		e.Registration.CreatedAt = e.Registration.CreatedAt.UTC()
		if e.Registration.Earnings, err = nullDecimal(earnings); err != nil {
			return nil, err
		}
		if e.Tournament, err = t.tournament(); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type tournamentRow struct {
	t   Tournament
	fee string
}

func (row *tournamentRow) dest() []any {
	t := &row.t
	return []any{&t.ID, &t.Name, &t.Game, &t.PrizePool, &row.fee, &t.MaxParticipants, &t.CurrentParticipants,
		&t.StartDate, &t.EndDate, &t.Status, &t.Organizer, &t.Format, &t.Thumbnail, &t.CreatedAt}
}

func (row *tournamentRow) tournament() (Tournament, error) {
	fee, err := decimal.NewFromString(row.fee)
	if err != nil {
		return Tournament{}, err
	}
	t := row.t
	t.EntryFee = fee
	t.StartDate = t.StartDate.UTC()
	t.EndDate = t.EndDate.UTC()
	t.CreatedAt = t.CreatedAt.UTC()
	return t, nil
}

func scanTournament(row pgx.Row) (Tournament, error) {
	var t tournamentRow
	if err := row.Scan(t.dest()...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Tournament{}, ErrNotFound
		}
		return Tournament{}, err
	}
	return t.tournament()
}

func scanRegistration(row pgx.Row) (Registration, error) {
	var (
		reg      Registration
		userID   uuid.UUID
		earnings *string
	)
	if err := row.Scan(&reg.ID, &userID, &reg.TournamentID, &reg.TransactionID, &reg.Status, &reg.Placement, &earnings, &reg.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Registration{}, ErrNotFound
		}
		return Registration{}, err
	}
	reg.UserID = userID.String()
	reg.CreatedAt = reg.CreatedAt.UTC()
	var err error
	reg.Earnings, err = nullDecimal(earnings)
	return reg, err
}

func nullDecimal(s *string) (decimal.NullDecimal, error) {
	if s == nil {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}
