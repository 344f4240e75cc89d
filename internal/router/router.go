package router

import (
	"database/sql"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"bookverse/internal/config"
	"bookverse/internal/handlers"
	"bookverse/internal/middleware"
	"bookverse/internal/services"
	"bookverse/internal/uploads"
)

func SetupRouter(db *sql.DB, cfg config.Config, logger zerolog.Logger) (*mux.Router, error) {
	uploadStore, err := uploads.NewStore(cfg.UploadDir)
	if err != nil {
		return nil, err
	}

	authService := services.NewAuthService(cfg.JWTSecret, logger)
	userService := services.NewUserService(db, logger)
	bookService := services.NewBookService(db, logger)

	authHandler := handlers.NewAuthHandler(userService, authService, logger)
	bookHandler := handlers.NewBookHandler(bookService, uploadStore, logger)

	r := mux.NewRouter()

	rateLimiter := middleware.NewRateLimiter(rate.Limit(10), 20)

	r.Use(middleware.ErrorHandling(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(rateLimiter.Middleware())

	books := r.PathPrefix("/books").Subrouter()
	books.HandleFunc("", bookHandler.GetBooks).Methods("GET")
	books.HandleFunc("", bookHandler.AddBook).Methods("POST")
	books.HandleFunc("/{id}", bookHandler.GetBook).Methods("GET")
	books.HandleFunc("/{id}", bookHandler.UpdateBook).Methods("PUT")
	books.HandleFunc("/{id}", bookHandler.DeleteBook).Methods("DELETE")

	users := r.PathPrefix("/users").Subrouter()
	users.HandleFunc("/signup", authHandler.Signup).Methods("POST")
	users.HandleFunc("/login", authHandler.Login).Methods("POST")
	users.HandleFunc("/logout", authHandler.Logout).Methods("POST")

	session := users.PathPrefix("").Subrouter()
	session.Use(middleware.Session(authService))
	session.HandleFunc("/me", authHandler.Me).Methods("GET")

	r.PathPrefix("/uploads/").Handler(
		http.StripPrefix("/uploads/", http.FileServer(http.Dir(uploadStore.Dir()))),
	).Methods("GET")

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods("GET")

	return r, nil
}
