package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/replyreminder/replyreminder/internal/model"
)

const personColumns = `id, gsid, psid, email, first_name, last_name, timezone, updated_time, created_at`

// CreatePerson inserts a new person and fills in its ID and CreatedAt.
func (r *Repository) CreatePerson(ctx context.Context, person *model.Person) error {
	query := `
		INSERT INTO persons (gsid, psid, email, first_name, last_name, timezone, updated_time)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`

	err := r.pool.QueryRow(ctx, query,
		person.GSID,
		person.PSID,
		person.Email,
		person.FirstName,
		person.LastName,
		person.Timezone,
		person.UpdatedTime,
	).Scan(&person.ID, &person.CreatedAt)

	if err != nil {
		if IsIntegrityViolation(err) {
			return fmt.Errorf("%w: %s", ErrConflict, ConstraintName(err))
		}
		return fmt.Errorf("failed to create person: %w", err)
	}

	return nil
}

// GetPersonByGSID retrieves a person by their identity provider id.
func (r *Repository) GetPersonByGSID(ctx context.Context, gsid string) (*model.Person, error) {
	query := `SELECT ` + personColumns + ` FROM persons WHERE gsid = $1`

	person, err := scanPerson(r.pool.QueryRow(ctx, query, gsid))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPersonNotFound
		}
		return nil, fmt.Errorf("failed to get person by gsid: %w", err)
	}

	return person, nil
}

// UpdatePersonPSID sets the chat platform id of an existing person.
func (r *Repository) UpdatePersonPSID(ctx context.Context, id int64, psid string) error {
	query := `
		UPDATE persons
		SET psid = $2
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query, id, psid)
	if err != nil {
		if IsIntegrityViolation(err) {
			return fmt.Errorf("%w: %s", ErrConflict, ConstraintName(err))
		}
		return fmt.Errorf("failed to update person psid: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrPersonNotFound
	}

	return nil
}

func scanPerson(row pgx.Row) (*model.Person, error) {
	var p model.Person
	err := row.Scan(
		&p.ID,
		&p.GSID,
		&p.PSID,
		&p.Email,
		&p.FirstName,
		&p.LastName,
		&p.Timezone,
		&p.UpdatedTime,
		&p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
