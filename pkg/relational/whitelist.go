package relational

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/chronicle-ai/chronicle/pkg/models"
)

// ErrWhitelistNotFound is returned when an entry id does not exist.
var ErrWhitelistNotFound = errors.New("whitelist entry not found")

// WhitelistStore persists the messaging authorization whitelist.
type WhitelistStore struct {
	client *Client
}

// NewWhitelistStore builds the store over the shared client.
func NewWhitelistStore(client *Client) *WhitelistStore {
	return &WhitelistStore{client: client}
}

// IsActive reports whether an active entry exists for the normalized
// identity. Store errors surface to the gate, which fails closed.
func (s *WhitelistStore) IsActive(ctx context.Context, phoneNumber string) (bool, error) {
	var active bool
	err := s.client.pool.QueryRow(ctx,
		`SELECT active FROM whitelist_entries WHERE phone_number = $1`,
		phoneNumber).Scan(&active)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, models.NewFault(models.FaultTransientExternal, "whitelist.lookup", err)
	}
	return active, nil
}

// List returns all entries ordered by creation time.
func (s *WhitelistStore) List(ctx context.Context) ([]models.WhitelistEntry, error) {
	rows, err := s.client.pool.Query(ctx, `
		SELECT id, phone_number, display_name, active, created_at
		FROM whitelist_entries
		ORDER BY created_at`)
	if err != nil {
		return nil, models.NewFault(models.FaultTransientExternal, "whitelist.list", err)
	}
	defer rows.Close()

	var out []models.WhitelistEntry
	for rows.Next() {
		var e models.WhitelistEntry
		if err := rows.Scan(&e.ID, &e.PhoneNumber, &e.DisplayName, &e.Active, &e.CreatedAt); err != nil {
			return nil, models.NewFault(models.FaultInternalInvariant, "whitelist.list", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Create inserts a new entry and returns it with its generated id.
func (s *WhitelistStore) Create(ctx context.Context, phoneNumber, displayName string, active bool) (*models.WhitelistEntry, error) {
	entry := &models.WhitelistEntry{
		ID:          uuid.NewString(),
		PhoneNumber: phoneNumber,
		DisplayName: displayName,
		Active:      active,
	}
	err := s.client.pool.QueryRow(ctx, `
		INSERT INTO whitelist_entries (id, phone_number, display_name, active)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`,
		entry.ID, entry.PhoneNumber, entry.DisplayName, entry.Active).Scan(&entry.CreatedAt)
	if err != nil {
		return nil, models.NewFault(models.FaultTransientExternal, "whitelist.create", err)
	}
	return entry, nil
}

// Update modifies display name and active flag by id.
func (s *WhitelistStore) Update(ctx context.Context, id, displayName string, active bool) error {
	tag, err := s.client.pool.Exec(ctx, `
		UPDATE whitelist_entries SET display_name = $2, active = $3 WHERE id = $1`,
		id, displayName, active)
	if err != nil {
		return models.NewFault(models.FaultTransientExternal, "whitelist.update", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrWhitelistNotFound
	}
	return nil
}

// Delete removes an entry by id.
func (s *WhitelistStore) Delete(ctx context.Context, id string) error {
	tag, err := s.client.pool.Exec(ctx, `DELETE FROM whitelist_entries WHERE id = $1`, id)
	if err != nil {
		return models.NewFault(models.FaultTransientExternal, "whitelist.delete", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrWhitelistNotFound
	}
	return nil
}
