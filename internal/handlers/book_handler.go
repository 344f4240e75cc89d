package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"bookverse/internal/models"
	"bookverse/internal/services"
	"bookverse/internal/uploads"
)

const maxUploadSize = 10 << 20 // 10 MB

type BookHandler struct {
	bookService *services.BookService
	uploadStore *uploads.Store
	logger      zerolog.Logger
}

func NewBookHandler(bookService *services.BookService, uploadStore *uploads.Store, logger zerolog.Logger) *BookHandler {
	return &BookHandler{
		bookService: bookService,
		uploadStore: uploadStore,
		logger:      logger,
	}
}

func (h *BookHandler) GetBooks(w http.ResponseWriter, r *http.Request) {
	books, err := h.bookService.List()
	if err != nil {
		h.respondWithError(w, http.StatusInternalServerError, "Failed to fetch books")
		return
	}

	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"books":   books,
	})
}

func (h *BookHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	bookID, err := h.bookID(r)
	if err != nil {
		h.respondWithError(w, http.StatusNotFound, "Book not found")
		return
	}

	book, err := h.bookService.Get(bookID)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			h.respondWithError(w, http.StatusNotFound, "Book not found")
		} else {
			h.respondWithError(w, http.StatusInternalServerError, "Failed to fetch book")
		}
		return
	}

	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"book":    book,
	})
}

func (h *BookHandler) AddBook(w http.ResponseWriter, r *http.Request) {
	var req models.CreateBookRequest
	var imagePath string

	if isMultipart(r) {
		if err := r.ParseMultipartForm(maxUploadSize); err != nil {
			h.respondWithError(w, http.StatusBadRequest, "Invalid form data")
			return
		}

		req.Title = r.FormValue("title")
		req.Author = r.FormValue("author")
		req.Description = r.FormValue("description")
		req.Category = r.FormValue("category")
		req.Price, _ = strconv.ParseFloat(r.FormValue("price"), 64)
		req.Stock, _ = strconv.Atoi(r.FormValue("stock"))

		path, err := h.saveUpload(r)
		if err != nil {
			h.respondWithError(w, http.StatusInternalServerError, "Failed to store image")
			return
		}
		imagePath = path
	} else {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.respondWithError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	book, err := h.bookService.Add(&req, imagePath)
	if err != nil {
		if errors.Is(err, services.ErrInvalidInput) {
			h.respondWithError(w, http.StatusBadRequest, "Title and price are required")
		} else {
			h.respondWithError(w, http.StatusInternalServerError, "Failed to add book")
		}
		return
	}

	h.respondWithJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"message": "Book added successfully",
		"book":    book,
	})
}

func (h *BookHandler) UpdateBook(w http.ResponseWriter, r *http.Request) {
	bookID, err := h.bookID(r)
	if err != nil {
		h.respondWithError(w, http.StatusNotFound, "Book not found")
		return
	}

	var req models.UpdateBookRequest
	var imagePath string

	if isMultipart(r) {
		if err := r.ParseMultipartForm(maxUploadSize); err != nil {
			h.respondWithError(w, http.StatusBadRequest, "Invalid form data")
			return
		}

		req.Title = formString(r, "title")
		req.Author = formString(r, "author")
		req.Description = formString(r, "description")
		req.Category = formString(r, "category")
		req.Price = formFloat(r, "price")
		req.Stock = formInt(r, "stock")

		path, err := h.saveUpload(r)
		if err != nil {
			h.respondWithError(w, http.StatusInternalServerError, "Failed to store image")
			return
		}
		imagePath = path
	} else {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.respondWithError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
	}

	book, err := h.bookService.Update(bookID, &req, imagePath)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			h.respondWithError(w, http.StatusNotFound, "Book not found")
		} else {
			h.respondWithError(w, http.StatusInternalServerError, "Failed to update book")
		}
		return
	}

	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Book updated successfully",
		"book":    book,
	})
}

func (h *BookHandler) DeleteBook(w http.ResponseWriter, r *http.Request) {
	bookID, err := h.bookID(r)
	if err != nil {
		h.respondWithError(w, http.StatusNotFound, "Book not found")
		return
	}

	if err := h.bookService.Delete(bookID); err != nil {
		if errors.Is(err, services.ErrNotFound) {
			h.respondWithError(w, http.StatusNotFound, "Book not found")
		} else {
			h.respondWithError(w, http.StatusInternalServerError, "Failed to delete book")
		}
		return
	}

	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Book deleted successfully",
	})
}

func (h *BookHandler) bookID(r *http.Request) (int, error) {
	return strconv.Atoi(mux.Vars(r)["id"])
}

// saveUpload persists the optional "image" form file and returns its public
// path, or "" when the request carried no file.
func (h *BookHandler) saveUpload(r *http.Request) (string, error) {
	file, header, err := r.FormFile("image")
	if err == http.ErrMissingFile {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	defer file.Close()

	path, err := h.uploadStore.Save(file, header)
	if err != nil {
		h.logger.Error().Err(err).Msg("Error saving upload")
		return "", err
	}
	return path, nil
}

func isMultipart(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data")
}

func formString(r *http.Request, key string) *string {
	if _, ok := r.MultipartForm.Value[key]; !ok {
		return nil
	}
	v := r.FormValue(key)
	return &v
}

func formFloat(r *http.Request, key string) *float64 {
	if _, ok := r.MultipartForm.Value[key]; !ok {
		return nil
	}
	v, _ := strconv.ParseFloat(r.FormValue(key), 64)
	return &v
}

func formInt(r *http.Request, key string) *int {
	if _, ok := r.MultipartForm.Value[key]; !ok {
		return nil
	}
	v, _ := strconv.Atoi(r.FormValue(key))
	return &v
}

func (h *BookHandler) respondWithError(w http.ResponseWriter, code int, message string) {
	h.respondWithJSON(w, code, map[string]interface{}{
		"success": false,
		"message": message,
	})
}

func (h *BookHandler) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}
