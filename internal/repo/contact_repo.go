package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/contactly/server/internal/model"
)

// ContactFilter narrows a contact listing. Nil fields mean "no filter".
type ContactFilter struct {
	ContactType *string
	IsFavourite *bool
}

// ContactPage describes pagination and ordering for a contact listing.
type ContactPage struct {
	Page      int
	PerPage   int
	SortBy    string // "name" or "created_at"
	SortOrder string // "asc" or "desc"
}

// ContactUpdate carries partial updates; nil fields are left untouched.
type ContactUpdate struct {
	Name        *string
	PhoneNumber *string
	Email       *string
	IsFavourite *bool
	ContactType *string
	PhotoURL    *string
}

// ContactRepo defines the interface for contact repository operations.
// Every operation is scoped to the owning user.
type ContactRepo interface {
	Create(ctx context.Context, c model.Contact) (model.Contact, error)
	GetByID(ctx context.Context, userID, id uuid.UUID) (model.Contact, error)
	List(ctx context.Context, userID uuid.UUID, filter ContactFilter, page ContactPage) ([]model.Contact, int, error)
	Update(ctx context.Context, userID, id uuid.UUID, upd ContactUpdate) (model.Contact, error)
	Delete(ctx context.Context, userID, id uuid.UUID) (bool, error)
}

type contactRepo struct {
	db *sql.DB
}

// NewContactRepo creates a new ContactRepo instance
func NewContactRepo(db *sql.DB) ContactRepo {
	return &contactRepo{db: db}
}

const contactColumns = `id, user_id, name, phone_number, email, is_favourite, contact_type, photo_url, created_at, updated_at`

func scanContact(row interface{ Scan(...any) error }) (model.Contact, error) {
	var c model.Contact
	var idStr, userIDStr string
	err := row.Scan(
		&idStr,
		&userIDStr,
		&c.Name,
		&c.PhoneNumber,
		&c.Email,
		&c.IsFavourite,
		&c.ContactType,
		&c.PhotoURL,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return model.Contact{}, err
	}
	c.ID, _ = uuid.Parse(idStr)
	c.UserID, _ = uuid.Parse(userIDStr)
	return c, nil
}

// Create inserts a new contact for its owning user
func (r *contactRepo) Create(ctx context.Context, c model.Contact) (model.Contact, error) {
	query := `
		INSERT INTO contacts (user_id, name, phone_number, email, is_favourite, contact_type, photo_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + contactColumns
	row := r.db.QueryRowContext(ctx, query,
		c.UserID, c.Name, c.PhoneNumber, c.Email, c.IsFavourite, c.ContactType, c.PhotoURL,
	)
	created, err := scanContact(row)
	if err != nil {
		return model.Contact{}, fmt.Errorf("insert contact: %w", err)
	}
	return created, nil
}

// GetByID retrieves a contact owned by userID
func (r *contactRepo) GetByID(ctx context.Context, userID, id uuid.UUID) (model.Contact, error) {
	query := `
		SELECT ` + contactColumns + `
		FROM contacts
		WHERE id = $1 AND user_id = $2
	`
	c, err := scanContact(r.db.QueryRowContext(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Contact{}, fmt.Errorf("contact not found: %w", err)
		}
		return model.Contact{}, fmt.Errorf("query contact: %w", err)
	}
	return c, nil
}

// List returns one page of the user's contacts plus the total match count.
// Sort columns are whitelisted; anything unrecognized falls back to name asc.
func (r *contactRepo) List(ctx context.Context, userID uuid.UUID, filter ContactFilter, page ContactPage) ([]model.Contact, int, error) {
	where := []string{"user_id = $1"}
	args := []any{userID}

	if filter.ContactType != nil {
		args = append(args, *filter.ContactType)
		where = append(where, fmt.Sprintf("contact_type = $%d", len(args)))
	}
	if filter.IsFavourite != nil {
		args = append(args, *filter.IsFavourite)
		where = append(where, fmt.Sprintf("is_favourite = $%d", len(args)))
	}
	whereClause := strings.Join(where, " AND ")

	var total int
	if err := r.db.QueryRowContext(ctx,
		"SELECT count(*) FROM contacts WHERE "+whereClause, args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count contacts: %w", err)
	}

	sortBy := "name"
	if page.SortBy == "created_at" {
		sortBy = "created_at"
	}
	sortOrder := "ASC"
	if strings.EqualFold(page.SortOrder, "desc") {
		sortOrder = "DESC"
	}

	args = append(args, page.PerPage, (page.Page-1)*page.PerPage)
	query := fmt.Sprintf(
		"SELECT %s FROM contacts WHERE %s ORDER BY %s %s LIMIT $%d OFFSET $%d",
		contactColumns, whereClause, sortBy, sortOrder, len(args)-1, len(args),
	)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()

	contacts := []model.Contact{}
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan contact: %w", err)
		}
		contacts = append(contacts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate contacts: %w", err)
	}
	return contacts, total, nil
}

// Update applies the non-nil fields of upd to a contact owned by userID
func (r *contactRepo) Update(ctx context.Context, userID, id uuid.UUID, upd ContactUpdate) (model.Contact, error) {
	set := []string{"updated_at = now()"}
	args := []any{id, userID}

	add := func(column string, value any) {
		args = append(args, value)
		set = append(set, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if upd.Name != nil {
		add("name", *upd.Name)
	}
	if upd.PhoneNumber != nil {
		add("phone_number", *upd.PhoneNumber)
	}
	if upd.Email != nil {
		add("email", *upd.Email)
	}
	if upd.IsFavourite != nil {
		add("is_favourite", *upd.IsFavourite)
	}
	if upd.ContactType != nil {
		add("contact_type", *upd.ContactType)
	}
	if upd.PhotoURL != nil {
		add("photo_url", *upd.PhotoURL)
	}

	query := fmt.Sprintf(
		"UPDATE contacts SET %s WHERE id = $1 AND user_id = $2 RETURNING %s",
		strings.Join(set, ", "), contactColumns,
	)
	c, err := scanContact(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Contact{}, fmt.Errorf("contact not found: %w", err)
		}
		return model.Contact{}, fmt.Errorf("update contact: %w", err)
	}
	return c, nil
}

// Delete removes a contact owned by userID. Returns true if a row was removed.
func (r *contactRepo) Delete(ctx context.Context, userID, id uuid.UUID) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		DELETE FROM contacts WHERE id = $1 AND user_id = $2
	`, id, userID)
	if err != nil {
		return false, fmt.Errorf("delete contact: %w", err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}
