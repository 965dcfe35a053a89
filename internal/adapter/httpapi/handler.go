package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/dmonteiro/curvevault/internal/domain"
	"github.com/dmonteiro/curvevault/internal/usecase/ingest"
	"github.com/dmonteiro/curvevault/internal/usecase/status"
)

// Server exposes the ingestion engine and status reporter over HTTP
type Server struct {
	IngestService *ingest.Service
	StatusService *status.Service

	db  pinger
	log logrus.FieldLogger
}

// pinger is the minimal health-check surface of the database handle
type pinger interface {
	Ping() error
}

// NewServer creates the HTTP adapter
func NewServer(ingestService *ingest.Service, statusService *status.Service, db pinger, log logrus.FieldLogger) *Server {
	return &Server{
		IngestService: ingestService,
		StatusService: statusService,
		db:            db,
		log:           log,
	}
}

// Routes builds the HTTP mux for the API surface
func (s *Server) Routes(apiToken string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/curves/ingest", s.handleIngest)
	mux.HandleFunc("GET /api/v1/curves/status", s.handleStatus)
	mux.HandleFunc("GET /api/v1/curves/runs", s.handleRuns)

	outer := http.NewServeMux()
	outer.Handle("/api/v1/", AuthMiddleware(apiToken, mux))
	outer.HandleFunc("GET /healthz", s.handleHealth)
	return outer
}

type ingestResponse struct {
	Status        string             `json:"status"`
	Reason        string             `json:"reason,omitempty"`
	AsOfDate      string             `json:"as_of_date,omitempty"`
	RowCount      int                `json:"row_count"`
	DroppedRows   int                `json:"dropped_rows"`
	TriggerSource string             `json:"trigger_source"`
	Existing      []historyEntryJSON `json:"existing,omitempty"`
}

type historyEntryJSON struct {
	Metal         string  `json:"metal"`
	TenorMonths   int     `json:"tenor_months"`
	Price         string  `json:"price"`
	Real10yrYield *string `json:"real_10yr_yield"`
	DollarIndex   *string `json:"dollar_index"`
	DeficitGdp    *bool   `json:"deficit_gdp_flag"`
	AsOfDate      string  `json:"as_of_date"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	source := r.URL.Query().Get("source")
	if source == "" {
		source = "manual"
	}
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))

	result, err := s.IngestService.Run(r.Context(), ingest.RunParams{
		TriggerSource: source,
		Force:         force,
	})
	if result == nil {
		writeError(w, http.StatusInternalServerError, "ingestion failed before producing an outcome")
		return
	}
	if err != nil {
		s.log.WithError(err).WithField("reason", result.Reason).Error("ingestion request failed")
	}

	writeJSON(w, statusCodeFor(result), toIngestResponse(result))
}

// statusCodeFor maps engine outcomes onto HTTP statuses. Schema and source
// defects are the upstream sheet's fault, so they map to 502 rather than 4xx.
func statusCodeFor(result *ingest.RunResult) int {
	switch result.Status {
	case ingest.OutcomeSuccess, ingest.OutcomeSkipped:
		return http.StatusOK
	case ingest.OutcomeConflict:
		return http.StatusConflict
	default:
		switch result.Reason {
		case domain.ReasonSchemaMismatch, domain.ReasonNoRowsInSource:
			return http.StatusBadGateway
		case domain.ReasonAmbiguousAsOfDate, domain.ReasonDateMismatch:
			return http.StatusUnprocessableEntity
		default:
			return http.StatusInternalServerError
		}
	}
}

func toIngestResponse(result *ingest.RunResult) ingestResponse {
	resp := ingestResponse{
		Status:        string(result.Status),
		Reason:        result.Reason,
		RowCount:      result.RowCount,
		DroppedRows:   result.DroppedRows,
		TriggerSource: result.TriggerSource,
	}
	if !result.AsOfDate.IsZero() {
		resp.AsOfDate = result.AsOfDate.Format(domain.DateLayout)
	}
	for _, entry := range result.Existing {
		resp.Existing = append(resp.Existing, historyEntryJSON{
			Metal:         string(entry.Metal),
			TenorMonths:   entry.TenorMonths,
			Price:         entry.Price.String(),
			Real10yrYield: decimalString(entry.Real10yrYield),
			DollarIndex:   decimalString(entry.DollarIndex),
			DeficitGdp:    entry.DeficitGdp,
			AsOfDate:      entry.AsOfDate.Format(domain.DateLayout),
		})
	}
	return resp
}

type statusResponse struct {
	AsOfDate    string         `json:"as_of_date,omitempty"`
	RowsByMetal map[string]int `json:"rows_by_metal"`
	TotalRows   int            `json:"total_rows"`
	LastRun     *runJSON       `json:"last_run,omitempty"`
}

type runJSON struct {
	ID            string  `json:"id"`
	RunDate       string  `json:"run_date"`
	TriggerSource string  `json:"trigger_source"`
	Status        string  `json:"status"`
	Reason        *string `json:"reason"`
	RowCount      int     `json:"row_count"`
	CreatedAt     string  `json:"created_at"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var dateOverride *time.Time
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse(domain.DateLayout, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
			return
		}
		dateOverride = &parsed
	}

	coverage, err := s.StatusService.Coverage(r.Context(), dateOverride)
	if err != nil {
		s.log.WithError(err).Error("status request failed")
		writeError(w, http.StatusInternalServerError, "failed to query coverage")
		return
	}

	resp := statusResponse{RowsByMetal: make(map[string]int)}
	for metal, count := range coverage.RowsByMetal {
		resp.RowsByMetal[string(metal)] = count
	}
	resp.TotalRows = coverage.TotalRows
	if !coverage.AsOfDate.IsZero() {
		resp.AsOfDate = coverage.AsOfDate.Format(domain.DateLayout)
	}
	if coverage.LastRun != nil {
		resp.LastRun = toRunJSON(coverage.LastRun)
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	runs, err := s.StatusService.RecentRuns(r.Context(), limit)
	if err != nil {
		s.log.WithError(err).Error("runs request failed")
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}

	resp := make([]*runJSON, 0, len(runs))
	for _, run := range runs {
		resp = append(resp, toRunJSON(run))
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(); err != nil {
		writeError(w, http.StatusServiceUnavailable, "database unreachable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func toRunJSON(run *domain.IngestRun) *runJSON {
	return &runJSON{
		ID:            run.ID.String(),
		RunDate:       run.RunDate.Format(domain.DateLayout),
		TriggerSource: run.TriggerSource,
		Status:        string(run.Status),
		Reason:        run.Reason,
		RowCount:      run.RowCount,
		CreatedAt:     run.CreatedAt.Format(time.RFC3339),
	}
}

func decimalString(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

func writeJSON(w http.ResponseWriter, code int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	// headers are already written; an encode failure has nowhere to go
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"error": message})
}
