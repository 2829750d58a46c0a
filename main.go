package main

import (
	"database/sql"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// Version denotes the current version of the blog tool
var Version = "0.1.0-dev"

// logLevels - mapping between log level specification strings and logrus Level values
var logLevels = map[string]logrus.Level{
	"TRACE": logrus.TraceLevel,
	"DEBUG": logrus.DebugLevel,
	"INFO":  logrus.InfoLevel,
	"WARN":  logrus.WarnLevel,
	"ERROR": logrus.ErrorLevel,
	"FATAL": logrus.FatalLevel,
	"PANIC": logrus.PanicLevel,
}

var log = logrus.New()

// Accepts the following environment variables:
// + LOG_LEVEL (value should be one of TRACE, DEBUG, INFO, WARN, ERROR, FATAL, PANIC)
func configureLogger() {
	rawLevel := os.Getenv("LOG_LEVEL")
	if rawLevel == "" {
		rawLevel = "INFO"
	}
	level, ok := logLevels[rawLevel]
	if !ok {
		log.Fatalf("Invalid value for LOG_LEVEL environment variable: %s. Choose one of TRACE, DEBUG, INFO, WARN, ERROR, FATAL, PANIC", rawLevel)
	}
	log.SetLevel(level)
}

type Blog struct {
	db        *sql.DB
	templates map[string]*template.Template
}

func NewBlog(db *sql.DB) *Blog {
	return &Blog{
		db:        db,
		templates: loadTemplates(),
	}
}

// mustOpenDB opens the database named by DATABASE_URL (a SQLite path by
// default). Fatally errors out on failure.
func mustOpenDB() (*sql.DB, string) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		dsn = "blog.db"
	}

	db, driver, err := openDB(dsn)
	if err != nil {
		log.WithFields(logrus.Fields{"dsn": dsn, "error": err}).Fatal("Error opening database")
	}
	return db, driver
}

// requestLogger logs each request through the application logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		log.WithFields(logrus.Fields{
			"request_id": middleware.GetReqID(r.Context()),
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"duration":   time.Since(start),
		}).Info("Request served")
	})
}

func (b *Blog) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir("static"))))

	// Public routes
	r.Get("/", b.Home)
	r.Get("/post/{id}", b.Detail)
	r.Get("/feed", b.Feed)
	r.Get("/login", b.Login)
	r.Post("/login", b.Login)
	r.Get("/logout", b.Logout)

	// Protected routes
	r.Get("/new", b.requireAuth(b.Create))
	r.Post("/new", b.requireAuth(b.Create))
	r.Get("/edit/{id}", b.requireAuth(b.Edit))
	r.Post("/edit/{id}", b.requireAuth(b.Edit))
	r.Get("/delete/{id}", b.requireAuth(b.Delete))
	r.Post("/delete/{id}", b.requireAuth(b.Delete))
	r.Get("/settings", b.requireAuth(b.Settings))
	r.Post("/settings", b.requireAuth(b.Settings))

	r.NotFound(b.NotFound)

	return r
}

func serve() {
	initAuth()

	db, driver := mustOpenDB()
	defer db.Close()

	if err := initDB(db, driver); err != nil {
		log.WithField("error", err).Fatal("Error initializing database")
	}

	if err := seedDB(db); err != nil {
		log.WithField("error", err).Fatal("Error seeding database")
	}

	if err := seedSettings(db); err != nil {
		log.WithField("error", err).Fatal("Error seeding settings")
	}

	if err := cleanupExpiredSessions(db); err != nil {
		log.WithField("error", err).Error("Error cleaning up expired sessions")
	}

	go func() {
		ticker := time.NewTicker(1 * time.Hour)
		for range ticker.C {
			if err := cleanupExpiredSessions(db); err != nil {
				log.WithField("error", err).Error("Error cleaning up expired sessions")
			}
		}
	}()

	blog := NewBlog(db)

	host := os.Getenv("HOST")
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	addr := fmt.Sprintf("%s:%s", host, port)

	log.WithField("addr", addr).Info("Server starting")
	if err := http.ListenAndServe(addr, blog.routes()); err != nil {
		log.WithField("error", err).Fatal("Server stopped")
	}
}

func main() {
	blogCommand := &cobra.Command{
		Use:   "blog",
		Short: "A small blog over a single posts table",
		Long:  "blog serves a web log backed by SQLite or Postgres. Posts carry a title and a short text, both capped at 255 characters.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			godotenv.Load()
			configureLogger()
		},
	}

	// blog version
	versionCommand := &cobra.Command{
		Use:   "version",
		Short: "blog version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(Version)
		},
	}

	// blog completion
	completionCommand := &cobra.Command{
		Use:   "completion",
		Short: "Generate shell completions for the blog command (for supported shells)",
	}

	bashCompletionCommand := &cobra.Command{
		Use:   "bash",
		Short: "bash completion for blog",
		Run: func(cmd *cobra.Command, args []string) {
			blogCommand.GenBashCompletion(os.Stdout)
		},
	}

	completionCommand.AddCommand(bashCompletionCommand)

	// blog db
	dbCommand := &cobra.Command{
		Use:   "db",
		Short: "Interact with the blog database",
		Long:  "This command provides access to the blog database schema and sample data",
	}

	initCommand := &cobra.Command{
		Use:   "init",
		Short: "Provision the posts table",
		Long:  "Drops the posts table if it exists and recreates it empty, along with its title index. Existing posts are lost.",
		Run: func(cmd *cobra.Command, args []string) {
			db, driver := mustOpenDB()
			defer db.Close()

			logger := log.WithField("driver", driver)
			logger.Info("Provisioning posts table")
			if err := provisionDB(db, driver); err != nil {
				logger.WithField("error", err).Fatal("Provisioning failed")
			}
			logger.Info("Done")
		},
	}

	seedCommand := &cobra.Command{
		Use:   "seed",
		Short: "Insert sample posts",
		Long:  "Creates the schema if needed and inserts sample posts when the posts table is empty",
		Run: func(cmd *cobra.Command, args []string) {
			db, driver := mustOpenDB()
			defer db.Close()

			if err := initDB(db, driver); err != nil {
				log.WithField("error", err).Fatal("Error initializing database")
			}
			if err := seedDB(db); err != nil {
				log.WithField("error", err).Fatal("Seeding failed")
			}
			log.Info("Done")
		},
	}

	dbCommand.AddCommand(initCommand, seedCommand)

	// blog serve
	serveCommand := &cobra.Command{
		Use:   "serve",
		Short: "Start the blog server",
		Long:  "Ensures the schema exists, seeds sample data, and serves the blog over HTTP on HOST:PORT",
		Run: func(cmd *cobra.Command, args []string) {
			serve()
		},
	}

	blogCommand.AddCommand(versionCommand, completionCommand, dbCommand, serveCommand)

	if err := blogCommand.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
