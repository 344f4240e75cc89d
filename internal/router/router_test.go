package router

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"bookverse/internal/config"
)

func newTestRouter(t *testing.T) *mux.Router {
	t.Helper()

	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	queries := []string{
		`CREATE TABLE users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT 'user',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
		`CREATE TABLE books (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL,
			author TEXT,
			description TEXT,
			price REAL NOT NULL,
			category TEXT,
			stock INTEGER DEFAULT 0,
			image TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);`,
	}
	for _, q := range queries {
		if _, err := db.Exec(q); err != nil {
			t.Fatalf("migrate: %v", err)
		}
	}

	cfg := config.Config{
		Port:           "0",
		JWTSecret:      "test-secret",
		AllowedOrigins: []string{"http://localhost:3000"},
		UploadDir:      filepath.Join(t.TempDir(), "uploads"),
	}

	r, err := SetupRouter(db, cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("setup router: %v", err)
	}
	return r
}

func doJSON(t *testing.T, r *mux.Router, method, path string, payload interface{}, cookies []*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return body
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == "token" {
			return c
		}
	}
	return nil
}

func TestSignupSetsSessionCookie(t *testing.T) {
	r := newTestRouter(t)

	rec := doJSON(t, r, "POST", "/users/signup", map[string]string{
		"name": "A", "email": "a@x.com", "password": "pw123456",
	}, nil)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	cookie := sessionCookie(rec)
	if cookie == nil || cookie.Value == "" {
		t.Fatal("no session cookie set")
	}
	if !cookie.HttpOnly {
		t.Fatal("session cookie must be HttpOnly")
	}

	body := decodeBody(t, rec)
	user, ok := body["user"].(map[string]interface{})
	if !ok {
		t.Fatalf("no user in body: %v", body)
	}
	if user["email"] != "a@x.com" {
		t.Fatalf("email = %v", user["email"])
	}
	for _, key := range []string{"password", "password_hash"} {
		if _, leaked := user[key]; leaked {
			t.Fatalf("user view leaks %q", key)
		}
	}
}

func TestSignupDuplicateEmail(t *testing.T) {
	r := newTestRouter(t)

	signup := map[string]string{"name": "A", "email": "a@x.com", "password": "pw123456"}
	if rec := doJSON(t, r, "POST", "/users/signup", signup, nil); rec.Code != http.StatusCreated {
		t.Fatalf("first signup: %d", rec.Code)
	}

	rec := doJSON(t, r, "POST", "/users/signup", signup, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	if body := decodeBody(t, rec); body["success"] != false {
		t.Fatalf("success = %v", body["success"])
	}
}

func TestLogin(t *testing.T) {
	r := newTestRouter(t)

	doJSON(t, r, "POST", "/users/signup", map[string]string{
		"name": "A", "email": "a@x.com", "password": "pw123456",
	}, nil)

	rec := doJSON(t, r, "POST", "/users/login", map[string]string{
		"email": "a@x.com", "password": "wrong",
	}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong password: status = %d, want 401", rec.Code)
	}

	rec = doJSON(t, r, "POST", "/users/login", map[string]string{
		"email": "nobody@x.com", "password": "pw123456",
	}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unknown email: status = %d, want 401", rec.Code)
	}

	rec = doJSON(t, r, "POST", "/users/login", map[string]string{
		"email": "a@x.com", "password": "pw123456",
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if sessionCookie(rec) == nil {
		t.Fatal("no session cookie set")
	}
}

func TestCurrentUser(t *testing.T) {
	r := newTestRouter(t)

	// No cookie: null user, not an error.
	rec := doJSON(t, r, "GET", "/users/me", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body := decodeBody(t, rec); body["user"] != nil {
		t.Fatalf("user = %v, want null", body["user"])
	}

	// Garbage cookie: still null, still 200.
	rec = doJSON(t, r, "GET", "/users/me", nil, []*http.Cookie{{Name: "token", Value: "garbage"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("garbage cookie: status = %d, want 200", rec.Code)
	}
	if body := decodeBody(t, rec); body["user"] != nil {
		t.Fatalf("user = %v, want null", body["user"])
	}

	signup := doJSON(t, r, "POST", "/users/signup", map[string]string{
		"name": "A", "email": "a@x.com", "password": "pw123456",
	}, nil)
	cookie := sessionCookie(signup)

	rec = doJSON(t, r, "GET", "/users/me", nil, []*http.Cookie{cookie})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	body := decodeBody(t, rec)
	user, ok := body["user"].(map[string]interface{})
	if !ok {
		t.Fatalf("no user in body: %v", body)
	}
	if user["email"] != "a@x.com" {
		t.Fatalf("email = %v", user["email"])
	}
}

func TestLogoutClearsCookie(t *testing.T) {
	r := newTestRouter(t)

	rec := doJSON(t, r, "POST", "/users/logout", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	cookie := sessionCookie(rec)
	if cookie == nil {
		t.Fatal("no cookie in logout response")
	}
	if cookie.Value != "" || cookie.MaxAge >= 0 {
		t.Fatalf("cookie not expired: value=%q maxage=%d", cookie.Value, cookie.MaxAge)
	}
}

func TestBookCRUD(t *testing.T) {
	r := newTestRouter(t)

	rec := doJSON(t, r, "POST", "/books", map[string]interface{}{"title": "T", "price": 10}, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("add: status = %d, body %s", rec.Code, rec.Body.String())
	}
	book := decodeBody(t, rec)["book"].(map[string]interface{})
	id := int(book["id"].(float64))

	rec = doJSON(t, r, "GET", fmt.Sprintf("/books/%d", id), nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get: status = %d", rec.Code)
	}
	book = decodeBody(t, rec)["book"].(map[string]interface{})
	if book["title"] != "T" || book["price"] != float64(10) {
		t.Fatalf("unexpected book: %v", book)
	}

	// Zero price is treated as not supplied.
	rec = doJSON(t, r, "PUT", fmt.Sprintf("/books/%d", id), map[string]interface{}{"price": 0}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("update: status = %d", rec.Code)
	}
	book = decodeBody(t, rec)["book"].(map[string]interface{})
	if book["price"] != float64(10) {
		t.Fatalf("price = %v, want 10", book["price"])
	}

	rec = doJSON(t, r, "PUT", fmt.Sprintf("/books/%d", id), map[string]interface{}{"price": 12.5}, nil)
	book = decodeBody(t, rec)["book"].(map[string]interface{})
	if book["price"] != 12.5 {
		t.Fatalf("price = %v, want 12.5", book["price"])
	}

	rec = doJSON(t, r, "GET", "/books", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: status = %d", rec.Code)
	}
	books := decodeBody(t, rec)["books"].([]interface{})
	if len(books) != 1 {
		t.Fatalf("len(books) = %d", len(books))
	}

	rec = doJSON(t, r, "DELETE", fmt.Sprintf("/books/%d", id), nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete: status = %d", rec.Code)
	}
	rec = doJSON(t, r, "DELETE", fmt.Sprintf("/books/%d", id), nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second delete: status = %d, want 404", rec.Code)
	}
}

func TestBookValidation(t *testing.T) {
	r := newTestRouter(t)

	rec := doJSON(t, r, "POST", "/books", map[string]interface{}{"price": 10}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("missing title: status = %d, want 400", rec.Code)
	}

	rec = doJSON(t, r, "GET", "/books/999", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown id: status = %d, want 404", rec.Code)
	}
}

func TestBookUpload(t *testing.T) {
	r := newTestRouter(t)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	mw.WriteField("title", "Illustrated")
	mw.WriteField("price", "19.90")
	fw, err := mw.CreateFormFile("image", "cover.jpg")
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	fw.Write([]byte("jpeg-bytes"))
	mw.Close()

	req := httptest.NewRequest("POST", "/books", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	book := decodeBody(t, rec)["book"].(map[string]interface{})
	image, _ := book["image"].(string)
	if !strings.HasPrefix(image, "/uploads/") {
		t.Fatalf("image = %q, want /uploads/ path", image)
	}

	// The stored file is served back on the static mount.
	getReq := httptest.NewRequest("GET", image, nil)
	getRec := httptest.NewRecorder()
	r.ServeHTTP(getRec, getReq)
	if getRec.Code != http.StatusOK {
		t.Fatalf("fetch upload: status = %d", getRec.Code)
	}
	if getRec.Body.String() != "jpeg-bytes" {
		t.Fatalf("upload content = %q", getRec.Body.String())
	}
}

func TestHealth(t *testing.T) {
	r := newTestRouter(t)

	rec := doJSON(t, r, "GET", "/health", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}
