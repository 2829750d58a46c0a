package main

import (
	"fmt"
	"net/http"
	"strconv"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
)

const defaultPostsPerPage = 5

func (b *Blog) Home(w http.ResponseWriter, r *http.Request) {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}
	perPage, err := strconv.Atoi(r.URL.Query().Get("posts_per_page"))
	if err != nil || perPage < 1 {
		perPage = defaultPostsPerPage
	}

	var posts []Post
	numPages := 1

	titleFilter := r.URL.Query().Get("title")
	if titleFilter != "" {
		posts, err = getPostsByTitle(b.db, titleFilter)
		if err != nil {
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
	} else {
		posts, err = getPostsPage(b.db, page, perPage)
		if err != nil {
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		count, err := countPosts(b.db)
		if err != nil {
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		numPages = (count + perPage - 1) / perPage
		if numPages < 1 {
			numPages = 1
		}
	}

	siteTitle, err := getSetting(b.db, "title")
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	intro, err := getSetting(b.db, "intro")
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	data := map[string]any{
		"Title":           siteTitle,
		"Intro":           intro,
		"Posts":           posts,
		"Page":            page,
		"PostsPerPage":    perPage,
		"NumPages":        numPages,
		"PrevPage":        page - 1,
		"NextPage":        page + 1,
		"TitleFilter":     titleFilter,
		"IsAuthenticated": b.isAuthenticated(r),
		"CSRFToken":       ensureCSRFToken(w, r),
	}

	err = b.templates["home.html"].ExecuteTemplate(w, "base", data)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

func (b *Blog) Detail(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid post ID", http.StatusBadRequest)
		return
	}

	post, err := getPostByID(b.db, id)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	if post == nil {
		b.NotFound(w, r)
		return
	}

	data := map[string]any{
		"Title":           post.Title,
		"Post":            post,
		"IsAuthenticated": b.isAuthenticated(r),
		"CSRFToken":       ensureCSRFToken(w, r),
	}

	err = b.templates["detail.html"].ExecuteTemplate(w, "base", data)
	if err != nil {
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// validatePostForm checks the length limits the posts schema enforces. Empty
// values are fine; the columns default to empty strings.
func validatePostForm(w http.ResponseWriter, title, text string) bool {
	if utf8.RuneCountInString(title) > maxFieldLen {
		http.Error(w, fmt.Sprintf("Title must be at most %d characters", maxFieldLen), http.StatusBadRequest)
		return false
	}
	if utf8.RuneCountInString(text) > maxFieldLen {
		http.Error(w, fmt.Sprintf("Text must be at most %d characters", maxFieldLen), http.StatusBadRequest)
		return false
	}
	return true
}

func (b *Blog) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		data := map[string]any{
			"Title":           "New Post",
			"IsAuthenticated": true,
			"CSRFToken":       ensureCSRFToken(w, r),
		}
		err := b.templates["create.html"].ExecuteTemplate(w, "base", data)
		if err != nil {
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	if r.Method == http.MethodPost {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Bad request", http.StatusBadRequest)
			return
		}

		if !validateCSRF(r) {
			http.Error(w, "Invalid CSRF token", http.StatusForbidden)
			return
		}

		title := r.FormValue("title")
		text := r.FormValue("text")

		if !validatePostForm(w, title, text) {
			return
		}

		_, err := createPost(b.db, title, text)
		if err != nil {
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

func (b *Blog) Edit(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid post ID", http.StatusBadRequest)
		return
	}

	if r.Method == http.MethodGet {
		post, err := getPostByID(b.db, id)
		if err != nil {
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		if post == nil {
			b.NotFound(w, r)
			return
		}

		data := map[string]any{
			"Title":           fmt.Sprintf("Editing %q", post.Title),
			"Post":            post,
			"IsAuthenticated": true,
			"CSRFToken":       ensureCSRFToken(w, r),
		}
		err = b.templates["edit.html"].ExecuteTemplate(w, "base", data)
		if err != nil {
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	if r.Method == http.MethodPost {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Bad request", http.StatusBadRequest)
			return
		}

		if !validateCSRF(r) {
			http.Error(w, "Invalid CSRF token", http.StatusForbidden)
			return
		}

		title := r.FormValue("title")
		text := r.FormValue("text")

		if !validatePostForm(w, title, text) {
			return
		}

		if err := updatePost(b.db, id, title, text); err != nil {
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

func (b *Blog) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid post ID", http.StatusBadRequest)
		return
	}

	if r.Method == http.MethodGet {
		post, err := getPostByID(b.db, id)
		if err != nil {
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		if post == nil {
			b.NotFound(w, r)
			return
		}

		data := map[string]any{
			"Title":           fmt.Sprintf("Deleting %q", post.Title),
			"Post":            post,
			"IsAuthenticated": true,
			"CSRFToken":       ensureCSRFToken(w, r),
		}
		err = b.templates["delete.html"].ExecuteTemplate(w, "base", data)
		if err != nil {
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	if r.Method == http.MethodPost {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Bad request", http.StatusBadRequest)
			return
		}

		if !validateCSRF(r) {
			http.Error(w, "Invalid CSRF token", http.StatusForbidden)
			return
		}

		if err := deletePost(b.db, id); err != nil {
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

func (b *Blog) Login(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		data := map[string]any{
			"Title":     "Login",
			"CSRFToken": ensureCSRFToken(w, r),
		}
		err := b.templates["login.html"].ExecuteTemplate(w, "base", data)
		if err != nil {
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	if r.Method == http.MethodPost {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Bad request", http.StatusBadRequest)
			return
		}

		if !validateCSRF(r) {
			http.Error(w, "Invalid CSRF token", http.StatusForbidden)
			return
		}

		username := r.FormValue("username")
		password := r.FormValue("password")

		if username != adminUsername || !checkPassword(adminPassword, password) {
			http.Error(w, "Invalid credentials", http.StatusUnauthorized)
			return
		}

		token, err := createSession(b.db, 1)
		if err != nil {
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     sessionCookieName,
			Value:    token,
			Path:     "/",
			HttpOnly: true,
			Secure:   secureCookies,
			SameSite: http.SameSiteStrictMode,
			MaxAge:   int(sessionDuration.Seconds()),
		})

		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

func (b *Blog) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(sessionCookieName)
	if err == nil {
		if err := deleteSession(b.db, cookie.Value); err != nil {
			log.WithField("error", err).Error("Failed to delete session")
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   secureCookies,
		SameSite: http.SameSiteStrictMode,
		MaxAge:   -1,
	})

	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (b *Blog) Settings(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		siteTitle, err := getSetting(b.db, "title")
		if err != nil {
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		intro, err := getSetting(b.db, "intro")
		if err != nil {
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		data := map[string]any{
			"Title":           "Settings",
			"SiteTitle":       siteTitle,
			"Intro":           intro,
			"IsAuthenticated": true,
			"CSRFToken":       ensureCSRFToken(w, r),
		}
		err = b.templates["settings.html"].ExecuteTemplate(w, "base", data)
		if err != nil {
			http.Error(w, "Internal server error", http.StatusInternalServerError)
		}
		return
	}

	if r.Method == http.MethodPost {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "Bad request", http.StatusBadRequest)
			return
		}

		if !validateCSRF(r) {
			http.Error(w, "Invalid CSRF token", http.StatusForbidden)
			return
		}

		if err := setSetting(b.db, "title", r.FormValue("title")); err != nil {
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		if err := setSetting(b.db, "intro", r.FormValue("intro")); err != nil {
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		http.Redirect(w, r, "/settings", http.StatusSeeOther)
	}
}

func (b *Blog) NotFound(w http.ResponseWriter, r *http.Request) {
	data := map[string]any{
		"Title":           "Not Found",
		"Path":            r.URL.Path,
		"IsAuthenticated": b.isAuthenticated(r),
	}

	w.WriteHeader(http.StatusNotFound)
	err := b.templates["404.html"].ExecuteTemplate(w, "base", data)
	if err != nil {
		http.Error(w, "Not found", http.StatusNotFound)
	}
}
