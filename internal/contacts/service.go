// Package contacts implements per-user CRUD over the contacts collection,
// including optional photo upload to the media store.
package contacts

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/contactly/server/internal/model"
	"github.com/contactly/server/internal/repo"
)

// ErrContactNotFound is returned when a contact does not exist or belongs to
// another user; callers cannot tell the two apart.
var ErrContactNotFound = errors.New("contact not found")

// Uploader stores a blob and returns a publicly reachable URL for it.
// Implemented by media.S3Store.
type Uploader interface {
	Upload(ctx context.Context, filename, contentType string, data []byte) (string, error)
}

// Photo is an optional uploaded photo attached to a create/update call.
type Photo struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ListResult is one page of contacts plus pagination metadata.
type ListResult struct {
	Contacts   []model.Contact
	Page       int
	PerPage    int
	Total      int
	TotalPages int
}

// Service coordinates the contact repository and the media store.
type Service struct {
	contactRepo repo.ContactRepo
	uploader    Uploader
}

// NewService creates a new contacts service
func NewService(contactRepo repo.ContactRepo, uploader Uploader) *Service {
	return &Service{contactRepo: contactRepo, uploader: uploader}
}

// List returns one page of the user's contacts.
func (s *Service) List(ctx context.Context, userID uuid.UUID, filter repo.ContactFilter, page repo.ContactPage) (ListResult, error) {
	if page.Page < 1 {
		page.Page = 1
	}
	if page.PerPage < 1 {
		page.PerPage = 10
	}
	if page.PerPage > 100 {
		page.PerPage = 100
	}

	items, total, err := s.contactRepo.List(ctx, userID, filter, page)
	if err != nil {
		return ListResult{}, fmt.Errorf("list contacts: %w", err)
	}

	totalPages := total / page.PerPage
	if total%page.PerPage != 0 {
		totalPages++
	}
	return ListResult{
		Contacts:   items,
		Page:       page.Page,
		PerPage:    page.PerPage,
		Total:      total,
		TotalPages: totalPages,
	}, nil
}

// Get returns a single contact owned by userID.
func (s *Service) Get(ctx context.Context, userID, contactID uuid.UUID) (model.Contact, error) {
	c, err := s.contactRepo.GetByID(ctx, userID, contactID)
	if err != nil {
		if repo.IsNotFound(err) {
			return model.Contact{}, ErrContactNotFound
		}
		return model.Contact{}, fmt.Errorf("get contact: %w", err)
	}
	return c, nil
}

// Create stores a new contact, uploading the photo first when one is attached.
func (s *Service) Create(ctx context.Context, c model.Contact, photo *Photo) (model.Contact, error) {
	if photo != nil {
		url, err := s.uploader.Upload(ctx, photo.Filename, photo.ContentType, photo.Data)
		if err != nil {
			return model.Contact{}, fmt.Errorf("upload photo: %w", err)
		}
		c.PhotoURL = &url
	}

	created, err := s.contactRepo.Create(ctx, c)
	if err != nil {
		return model.Contact{}, fmt.Errorf("create contact: %w", err)
	}
	return created, nil
}

// Update applies a partial update, uploading a replacement photo when attached.
func (s *Service) Update(ctx context.Context, userID, contactID uuid.UUID, upd repo.ContactUpdate, photo *Photo) (model.Contact, error) {
	if photo != nil {
		url, err := s.uploader.Upload(ctx, photo.Filename, photo.ContentType, photo.Data)
		if err != nil {
			return model.Contact{}, fmt.Errorf("upload photo: %w", err)
		}
		upd.PhotoURL = &url
	}

	updated, err := s.contactRepo.Update(ctx, userID, contactID, upd)
	if err != nil {
		if repo.IsNotFound(err) {
			return model.Contact{}, ErrContactNotFound
		}
		return model.Contact{}, fmt.Errorf("update contact: %w", err)
	}
	return updated, nil
}

// Delete removes a contact owned by userID.
func (s *Service) Delete(ctx context.Context, userID, contactID uuid.UUID) error {
	deleted, err := s.contactRepo.Delete(ctx, userID, contactID)
	if err != nil {
		return fmt.Errorf("delete contact: %w", err)
	}
	if !deleted {
		return ErrContactNotFound
	}
	return nil
}
