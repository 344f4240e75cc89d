package services

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"bookverse/internal/models"
)

type BookService struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewBookService(db *sql.DB, logger zerolog.Logger) *BookService {
	return &BookService{
		db:     db,
		logger: logger,
	}
}

const bookColumns = "id, title, author, description, price, category, stock, image, created_at"

func scanBook(row interface{ Scan(...interface{}) error }) (*models.Book, error) {
	var book models.Book
	var author, description, category, image sql.NullString
	var stock sql.NullInt64

	err := row.Scan(
		&book.ID, &book.Title, &author, &description,
		&book.Price, &category, &stock, &image, &book.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	book.Author = author.String
	book.Description = description.String
	book.Category = category.String
	book.Stock = int(stock.Int64)
	book.Image = image.String
	return &book, nil
}

// List returns every book, most recently created first.
func (s *BookService) List() ([]*models.Book, error) {
	rows, err := s.db.Query("SELECT " + bookColumns + " FROM books ORDER BY created_at DESC, id DESC")
	if err != nil {
		s.logger.Error().Err(err).Msg("Error listing books")
		return nil, fmt.Errorf("database error: %w", err)
	}
	defer rows.Close()

	books := []*models.Book{}
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			s.logger.Error().Err(err).Msg("Error scanning book")
			return nil, fmt.Errorf("database error: %w", err)
		}
		books = append(books, book)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}

	return books, nil
}

func (s *BookService) Get(bookID int) (*models.Book, error) {
	book, err := scanBook(s.db.QueryRow("SELECT "+bookColumns+" FROM books WHERE id = ?", bookID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: book", ErrNotFound)
	}
	if err != nil {
		s.logger.Error().Err(err).Int("book_id", bookID).Msg("Error fetching book")
		return nil, fmt.Errorf("database error: %w", err)
	}
	return book, nil
}

// Add creates a book. imagePath is the relative path of an already persisted
// upload, or empty when no cover was supplied.
func (s *BookService) Add(req *models.CreateBookRequest, imagePath string) (*models.Book, error) {
	if req.Title == "" || req.Price <= 0 {
		return nil, fmt.Errorf("%w: title and price are required", ErrInvalidInput)
	}

	var image interface{}
	if imagePath != "" {
		image = imagePath
	}

	result, err := s.db.Exec(
		"INSERT INTO books (title, author, description, price, category, stock, image) VALUES (?, ?, ?, ?, ?, ?, ?)",
		req.Title, req.Author, req.Description, req.Price, req.Category, req.Stock, image,
	)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error creating book")
		return nil, fmt.Errorf("failed to create book: %w", err)
	}

	bookID, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get book ID: %w", err)
	}

	book, err := s.Get(int(bookID))
	if err != nil {
		return nil, err
	}

	s.logger.Info().Int("book_id", book.ID).Str("title", book.Title).Msg("Book added")
	return book, nil
}

// Update applies a partial update. A field is only applied when it was
// supplied with a non-zero value: an explicit empty string or 0 leaves the
// stored value untouched. A fresh upload replaces the image path.
func (s *BookService) Update(bookID int, req *models.UpdateBookRequest, imagePath string) (*models.Book, error) {
	book, err := s.Get(bookID)
	if err != nil {
		return nil, err
	}

	if req.Title != nil && *req.Title != "" {
		book.Title = *req.Title
	}
	if req.Author != nil && *req.Author != "" {
		book.Author = *req.Author
	}
	if req.Description != nil && *req.Description != "" {
		book.Description = *req.Description
	}
	if req.Price != nil && *req.Price != 0 {
		book.Price = *req.Price
	}
	if req.Category != nil && *req.Category != "" {
		book.Category = *req.Category
	}
	if req.Stock != nil && *req.Stock != 0 {
		book.Stock = *req.Stock
	}
	if imagePath != "" {
		book.Image = imagePath
	}

	var image interface{}
	if book.Image != "" {
		image = book.Image
	}

	_, err = s.db.Exec(
		"UPDATE books SET title = ?, author = ?, description = ?, price = ?, category = ?, stock = ?, image = ? WHERE id = ?",
		book.Title, book.Author, book.Description, book.Price, book.Category, book.Stock, image, bookID,
	)
	if err != nil {
		s.logger.Error().Err(err).Int("book_id", bookID).Msg("Error updating book")
		return nil, fmt.Errorf("failed to update book: %w", err)
	}

	s.logger.Info().Int("book_id", bookID).Msg("Book updated")
	return book, nil
}

func (s *BookService) Delete(bookID int) error {
	result, err := s.db.Exec("DELETE FROM books WHERE id = ?", bookID)
	if err != nil {
		s.logger.Error().Err(err).Int("book_id", bookID).Msg("Error deleting book")
		return fmt.Errorf("failed to delete book: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete book: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: book", ErrNotFound)
	}

	s.logger.Info().Int("book_id", bookID).Msg("Book deleted")
	return nil
}
