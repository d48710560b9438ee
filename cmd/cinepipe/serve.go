package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"cinepipe/pkg/config"
	"cinepipe/pkg/logger"
	"cinepipe/pkg/models"
	"cinepipe/pkg/store"
)

var serveAddr string

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the catalog as a read-only JSON API",
	Long: `Serve the catalog workbook over HTTP as a read-only JSON API.

Endpoints:
  GET /api/collections                 summary of every collection
  GET /api/collections/{name}          rows of one collection

The collection endpoint supports pagination and search:
  ?page=1&per_page=50&q=matrix

The server reads the workbook on each request, so it always reflects the
pipeline's latest saved state. A missing workbook serves empty results
rather than errors.`,
	Example: `  cinepipe serve
  cinepipe serve --addr :9090`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default :8080)")
}

func runServe(cmd *cobra.Command, args []string) error {
	flags := make(map[string]interface{})
	if serveAddr != "" {
		flags["addr"] = serveAddr
	}
	if logLevel != "" {
		flags["log-level"] = logLevel
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.GetLogger()

	api := &catalogAPI{
		store: store.New(cfg.Store.WorkbookPath),
		log:   log,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/collections", api.handleCollections)
	mux.HandleFunc("/api/collections/", api.handleCollection)

	server := &http.Server{
		Addr:         cfg.Serve.Addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.InfoWithFields("catalog server listening", map[string]interface{}{
			"addr":     cfg.Serve.Addr,
			"workbook": cfg.Store.WorkbookPath,
		})
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		log.Info("shutting down catalog server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown failed: %w", err)
		}
	}
	return nil
}

// catalogAPI serves the workbook contents. Every request re-reads the
// workbook so the API never holds a stale view of the pipeline's output.
type catalogAPI struct {
	store *store.Store
	log   logger.Logger
}

type collectionSummary struct {
	Name    string `json:"name"`
	Rows    int    `json:"rows"`
	Wrapped int    `json:"wrapped"`
}

type collectionPage struct {
	Name    string           `json:"name"`
	Total   int              `json:"total"`
	Page    int              `json:"page"`
	PerPage int              `json:"per_page"`
	Rows    []models.ItemRow `json:"rows"`
}

func (a *catalogAPI) handleCollections(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	summaries := make([]collectionSummary, 0, len(models.DefaultCollections()))
	for _, name := range models.DefaultCollections() {
		collection, err := a.store.LoadCollection(name)
		if err != nil {
			a.log.WithError(err).WithField("collection", name).Warn("failed to load collection")
			summaries = append(summaries, collectionSummary{Name: name})
			continue
		}
		summaries = append(summaries, collectionSummary{
			Name:    name,
			Rows:    collection.Len(),
			Wrapped: collection.WrappedCount(),
		})
	}

	writeJSON(w, http.StatusOK, summaries)
}

func (a *catalogAPI) handleCollection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := strings.TrimPrefix(r.URL.Path, "/api/collections/")
	name = strings.TrimSuffix(name, "/")
	if name == "" || !knownCollection(name) {
		http.Error(w, "collection not found", http.StatusNotFound)
		return
	}

	collection, err := a.store.LoadCollection(name)
	if err != nil {
		a.log.WithError(err).WithField("collection", name).Error("failed to load collection")
		http.Error(w, "failed to load collection", http.StatusInternalServerError)
		return
	}

	rows := collection.Rows
	if q := strings.ToLower(r.URL.Query().Get("q")); q != "" {
		filtered := make([]models.ItemRow, 0, len(rows))
		for _, row := range rows {
			if strings.Contains(strings.ToLower(row.Title), q) {
				filtered = append(filtered, row)
			}
		}
		rows = filtered
	}

	page := queryInt(r, "page", 1)
	perPage := queryInt(r, "per_page", 50)
	if perPage > 500 {
		perPage = 500
	}

	total := len(rows)
	start := (page - 1) * perPage
	if start > total {
		start = total
	}
	end := start + perPage
	if end > total {
		end = total
	}

	writeJSON(w, http.StatusOK, collectionPage{
		Name:    name,
		Total:   total,
		Page:    page,
		PerPage: perPage,
		Rows:    rows[start:end],
	})
}

func knownCollection(name string) bool {
	for _, known := range models.DefaultCollections() {
		if known == name {
			return true
		}
	}
	return false
}

func queryInt(r *http.Request, key string, fallback int) int {
	value, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || value < 1 {
		return fallback
	}
	return value
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
