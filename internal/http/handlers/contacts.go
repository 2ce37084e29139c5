package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/contactly/server/internal/contacts"
	"github.com/contactly/server/internal/middleware"
	"github.com/contactly/server/internal/model"
	"github.com/contactly/server/internal/repo"
)

const maxPhotoBytes = 10 << 20 // 10 MiB

// ContactsHandler handles the protected /contacts endpoints
type ContactsHandler struct {
	svc *contacts.Service
}

// NewContactsHandler creates a new contacts handler
func NewContactsHandler(svc *contacts.Service) *ContactsHandler {
	return &ContactsHandler{svc: svc}
}

// contactResponse is the contact object in API responses
type contactResponse struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	PhoneNumber string  `json:"phoneNumber"`
	Email       *string `json:"email"`
	IsFavourite bool    `json:"isFavourite"`
	ContactType string  `json:"contactType"`
	PhotoURL    *string `json:"photo,omitempty"`
	CreatedAt   string  `json:"createdAt"`
	UpdatedAt   string  `json:"updatedAt"`
}

func toContactResponse(c model.Contact) contactResponse {
	return contactResponse{
		ID:          c.ID.String(),
		Name:        c.Name,
		PhoneNumber: c.PhoneNumber,
		Email:       c.Email,
		IsFavourite: c.IsFavourite,
		ContactType: c.ContactType,
		PhotoURL:    c.PhotoURL,
		CreatedAt:   c.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:   c.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

// listResponse is the paginated contact listing
type listResponse struct {
	Contacts   []contactResponse `json:"contacts"`
	Page       int               `json:"page"`
	PerPage    int               `json:"perPage"`
	TotalItems int               `json:"totalItems"`
	TotalPages int               `json:"totalPages"`
}

// HandleList handles GET /contacts with pagination, filtering, and sorting
func (h *ContactsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	q := r.URL.Query()
	page := repo.ContactPage{
		Page:      intParam(q.Get("page"), 1),
		PerPage:   intParam(q.Get("perPage"), 10),
		SortBy:    q.Get("sortBy"),
		SortOrder: q.Get("sortOrder"),
	}

	var filter repo.ContactFilter
	if t := q.Get("contactType"); t != "" {
		if !model.IsValidContactType(t) {
			respondWithError(w, http.StatusBadRequest, "contactType must be work, home, or personal")
			return
		}
		filter.ContactType = &t
	}
	if f := q.Get("isFavourite"); f != "" {
		fav, err := strconv.ParseBool(f)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "isFavourite must be a boolean")
			return
		}
		filter.IsFavourite = &fav
	}

	result, err := h.svc.List(r.Context(), userID, filter, page)
	if err != nil {
		log.Printf("list contacts failed: %v", err)
		respondWithError(w, http.StatusInternalServerError, "failed to fetch contacts")
		return
	}

	items := make([]contactResponse, 0, len(result.Contacts))
	for _, c := range result.Contacts {
		items = append(items, toContactResponse(c))
	}
	respondWithEnvelope(w, http.StatusOK, "Successfully found contacts!", listResponse{
		Contacts:   items,
		Page:       result.Page,
		PerPage:    result.PerPage,
		TotalItems: result.Total,
		TotalPages: result.TotalPages,
	})
}

// HandleGet handles GET /contacts/{contactId}
func (h *ContactsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	contactID, ok := contactIDParam(w, r)
	if !ok {
		return
	}

	c, err := h.svc.Get(r.Context(), userID, contactID)
	if err != nil {
		if errors.Is(err, contacts.ErrContactNotFound) {
			respondWithError(w, http.StatusNotFound, "Contact not found")
			return
		}
		log.Printf("get contact failed: %v", err)
		respondWithError(w, http.StatusInternalServerError, "failed to fetch contact")
		return
	}

	respondWithEnvelope(w, http.StatusOK, "Successfully found contact with id "+contactID.String()+"!", toContactResponse(c))
}

// contactInput holds the decoded create/update fields plus an optional photo
type contactInput struct {
	Name        *string
	PhoneNumber *string
	Email       *string
	IsFavourite *bool
	ContactType *string
	Photo       *contacts.Photo
}

// HandleCreate handles POST /contacts (JSON or multipart with a photo part)
func (h *ContactsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	input, err := decodeContactInput(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if input.Name == nil || input.PhoneNumber == nil || input.ContactType == nil {
		respondWithError(w, http.StatusBadRequest, "Missing required fields")
		return
	}
	if msg := validateContactFields(input); msg != "" {
		respondWithError(w, http.StatusBadRequest, msg)
		return
	}

	c := model.Contact{
		UserID:      userID,
		Name:        *input.Name,
		PhoneNumber: *input.PhoneNumber,
		Email:       input.Email,
		ContactType: *input.ContactType,
	}
	if input.IsFavourite != nil {
		c.IsFavourite = *input.IsFavourite
	}

	created, err := h.svc.Create(r.Context(), c, input.Photo)
	if err != nil {
		log.Printf("create contact failed: %v", err)
		respondWithError(w, http.StatusInternalServerError, "failed to create contact")
		return
	}

	respondWithEnvelope(w, http.StatusCreated, "Successfully created a contact!", toContactResponse(created))
}

// HandleUpdate handles PATCH /contacts/{contactId}
func (h *ContactsHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	contactID, ok := contactIDParam(w, r)
	if !ok {
		return
	}

	input, err := decodeContactInput(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	if input.Name == nil && input.PhoneNumber == nil && input.Email == nil &&
		input.IsFavourite == nil && input.ContactType == nil && input.Photo == nil {
		respondWithError(w, http.StatusBadRequest, "No data provided for update")
		return
	}
	if msg := validateContactFields(input); msg != "" {
		respondWithError(w, http.StatusBadRequest, msg)
		return
	}

	upd := repo.ContactUpdate{
		Name:        input.Name,
		PhoneNumber: input.PhoneNumber,
		Email:       input.Email,
		IsFavourite: input.IsFavourite,
		ContactType: input.ContactType,
	}
	updated, err := h.svc.Update(r.Context(), userID, contactID, upd, input.Photo)
	if err != nil {
		if errors.Is(err, contacts.ErrContactNotFound) {
			respondWithError(w, http.StatusNotFound, "Contact not found")
			return
		}
		log.Printf("update contact failed: %v", err)
		respondWithError(w, http.StatusInternalServerError, "failed to update contact")
		return
	}

	respondWithEnvelope(w, http.StatusOK, "Successfully patched a contact!", toContactResponse(updated))
}

// HandleDelete handles DELETE /contacts/{contactId}
func (h *ContactsHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	contactID, ok := contactIDParam(w, r)
	if !ok {
		return
	}

	if err := h.svc.Delete(r.Context(), userID, contactID); err != nil {
		if errors.Is(err, contacts.ErrContactNotFound) {
			respondWithError(w, http.StatusNotFound, "Contact not found")
			return
		}
		log.Printf("delete contact failed: %v", err)
		respondWithError(w, http.StatusInternalServerError, "failed to delete contact")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// contactIDParam parses the contactId path parameter, writing a 400 on failure.
func contactIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := strings.TrimSpace(chi.URLParam(r, "contactId"))
	id, err := uuid.Parse(raw)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid ID format")
		return uuid.Nil, false
	}
	return id, true
}

// decodeContactInput reads either a JSON body or a multipart form with an
// optional "photo" file part.
func decodeContactInput(r *http.Request) (contactInput, error) {
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		return decodeMultipartContact(r)
	}
	return decodeJSONContact(r)
}

type contactJSONBody struct {
	Name        *string `json:"name"`
	PhoneNumber *string `json:"phoneNumber"`
	Email       *string `json:"email"`
	IsFavourite *bool   `json:"isFavourite"`
	ContactType *string `json:"contactType"`
}

func decodeJSONContact(r *http.Request) (contactInput, error) {
	var body contactJSONBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return contactInput{}, errors.New("invalid request body")
	}
	return contactInput{
		Name:        body.Name,
		PhoneNumber: body.PhoneNumber,
		Email:       body.Email,
		IsFavourite: body.IsFavourite,
		ContactType: body.ContactType,
	}, nil
}

func decodeMultipartContact(r *http.Request) (contactInput, error) {
	if err := r.ParseMultipartForm(maxPhotoBytes); err != nil {
		return contactInput{}, errors.New("invalid multipart body")
	}

	var input contactInput
	formStr := func(key string) *string {
		if vals, ok := r.MultipartForm.Value[key]; ok && len(vals) > 0 {
			v := strings.TrimSpace(vals[0])
			return &v
		}
		return nil
	}
	input.Name = formStr("name")
	input.PhoneNumber = formStr("phoneNumber")
	input.Email = formStr("email")
	input.ContactType = formStr("contactType")
	if favStr := formStr("isFavourite"); favStr != nil {
		fav, err := strconv.ParseBool(*favStr)
		if err != nil {
			return contactInput{}, errors.New("isFavourite must be a boolean")
		}
		input.IsFavourite = &fav
	}

	file, header, err := r.FormFile("photo")
	if err == nil {
		defer file.Close()
		data, err := io.ReadAll(io.LimitReader(file, maxPhotoBytes+1))
		if err != nil {
			return contactInput{}, errors.New("failed to read photo")
		}
		if len(data) > maxPhotoBytes {
			return contactInput{}, errors.New("photo exceeds the 10 MiB limit")
		}
		input.Photo = &contacts.Photo{
			Filename:    header.Filename,
			ContentType: header.Header.Get("Content-Type"),
			Data:        data,
		}
	} else if !errors.Is(err, http.ErrMissingFile) {
		return contactInput{}, errors.New("invalid photo upload")
	}

	return input, nil
}

func validateContactFields(input contactInput) string {
	if input.Name != nil && (len(*input.Name) < 3 || len(*input.Name) > 20) {
		return "name must be 3-20 characters"
	}
	if input.PhoneNumber != nil && (len(*input.PhoneNumber) < 3 || len(*input.PhoneNumber) > 20) {
		return "phoneNumber must be 3-20 characters"
	}
	if input.ContactType != nil && !model.IsValidContactType(*input.ContactType) {
		return "contactType must be work, home, or personal"
	}
	if input.Email != nil && *input.Email != "" && !isValidEmail(*input.Email) {
		return "email must be a valid address"
	}
	return ""
}

func intParam(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}
