package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ssargent/keyds/pkg/access"
	"github.com/ssargent/keyds/pkg/codec"
	"github.com/ssargent/keyds/pkg/dataset"
)

const (
	defaultScanLimit = 100
	maxScanLimit     = 10000
	maxBodyBytes     = 1 << 20
)

// Server holds the API server state
type Server struct {
	registry *Registry
	config   ServerConfig
	metrics  *Metrics
	logger   *slog.Logger
}

// NewServer creates a new API server
func NewServer(registry *Registry, config ServerConfig, metrics *Metrics, logger *slog.Logger) *Server {
	if metrics == nil {
		metrics = NewMetrics()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		registry: registry,
		config:   config,
		metrics:  metrics,
		logger:   logger,
	}
}

// dataset resolves the {name} URL parameter, answering 404 when it is not
// served
func (s *Server) dataset(w http.ResponseWriter, r *http.Request) (Dataset, bool) {
	name := chi.URLParam(r, "name")
	ds, ok := s.registry.Get(name)
	if !ok {
		sendError(w, fmt.Sprintf("dataset not found: %s", name), http.StatusNotFound)
	}
	return ds, ok
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	s.logFailure(r, op, err)
	sendDatasetError(w, err)
}

// failCount reports a find-apply failure. Records already changed are
// returned as the count so callers can see a partial success.
func (s *Server) failCount(w http.ResponseWriter, r *http.Request, op string, n int, err error) {
	s.logFailure(r, op, err)
	if n == 0 {
		sendDatasetError(w, err)
		return
	}
	sendDatasetErrorData(w, err, CountResponse{Count: n})
}

func (s *Server) logFailure(r *http.Request, op string, err error) {
	if dataset.CodeOf(err) != dataset.CodeIO {
		return
	}
	s.logger.Error("dataset operation failed",
		"request_id", requestID(r.Context()),
		"dataset", chi.URLParam(r, "name"),
		"op", op,
		"error", err)
}

// decodeValues reads a JSON object of field name to string value
func decodeValues(w http.ResponseWriter, r *http.Request) (codec.Values, bool) {
	var values codec.Values
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&values); err != nil {
		sendError(w, "Invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return nil, false
	}
	if values == nil {
		values = codec.Values{}
	}
	return values, true
}

// handleHealth reports the server as healthy with the number of datasets served
//
//	GET /api/v1/health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.metrics.RecordHealthCheck(true)
	sendSuccess(w, map[string]interface{}{
		"status":   "healthy",
		"datasets": len(s.registry.Names()),
	})
}

// handleListDatasets describes every served dataset
//
//	GET /api/v1/datasets
func (s *Server) handleListDatasets(w http.ResponseWriter, r *http.Request) {
	names := s.registry.Names()
	infos := make([]DatasetInfo, 0, len(names))
	for _, name := range names {
		ds, ok := s.registry.Get(name)
		if !ok {
			continue
		}
		infos = append(infos, DatasetInfo{
			Name:         name,
			Path:         ds.Path(),
			ReadOnly:     ds.ReadOnly(),
			RecordLength: ds.RecordLength(),
			Fields:       ds.Layout().Defs(),
		})
	}
	sendSuccess(w, infos)
}

// handleScan lists records starting at ?from= (mode ge by default) or at the
// first record, up to ?limit=
//
//	GET /api/v1/datasets/{name}/records?from=&mode=&limit=
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	ds, ok := s.dataset(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	from := q.Get("from")

	mode := dataset.KeyFirst
	if from != "" {
		mode = dataset.KeyGreaterOrEqual
	}
	if m := q.Get("mode"); m != "" {
		parsed, err := access.ParseLocateMode(m)
		if err != nil {
			sendError(w, err.Error(), http.StatusBadRequest)
			return
		}
		mode = parsed
	}

	limit := defaultScanLimit
	if l := q.Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n <= 0 || n > maxScanLimit {
			sendError(w, fmt.Sprintf("limit must be between 1 and %d", maxScanLimit), http.StatusBadRequest)
			return
		}
		limit = n
	}

	records, err := ds.Scan(r.Context(), from, mode, limit)
	if err != nil && dataset.CodeOf(err) != dataset.CodeNotFound {
		s.fail(w, r, "scan", err)
		return
	}
	if records == nil {
		records = []codec.Values{}
	}
	sendSuccess(w, RecordsResponse{Records: records, Count: len(records)})
}

// handleGetRecord returns the record with the given key, or with the first key
// at or after it when ?mode=ge
//
//	GET /api/v1/datasets/{name}/records/{key}?mode=eq|ge
func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	ds, ok := s.dataset(w, r)
	if !ok {
		return
	}
	key := chi.URLParam(r, "key")

	mode, err := access.ParseLocateMode(r.URL.Query().Get("mode"))
	if err != nil {
		sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var rec codec.Values
	switch mode {
	case dataset.KeyEqual:
		rec, err = ds.Find(r.Context(), key)
	case dataset.KeyGreaterOrEqual:
		rec, err = ds.FindGE(r.Context(), key)
	default:
		sendError(w, "mode must be eq or ge", http.StatusBadRequest)
		return
	}
	s.sendRecord(w, r, "find", rec, err)
}

// handleFirst returns the record with the lowest key
//
//	GET /api/v1/datasets/{name}/first
func (s *Server) handleFirst(w http.ResponseWriter, r *http.Request) {
	ds, ok := s.dataset(w, r)
	if !ok {
		return
	}
	rec, err := ds.FindFirst(r.Context())
	s.sendRecord(w, r, "first", rec, err)
}

// handleLast returns the record with the highest key
//
//	GET /api/v1/datasets/{name}/last
func (s *Server) handleLast(w http.ResponseWriter, r *http.Request) {
	ds, ok := s.dataset(w, r)
	if !ok {
		return
	}
	rec, err := ds.FindLast(r.Context())
	s.sendRecord(w, r, "last", rec, err)
}

func (s *Server) sendRecord(w http.ResponseWriter, r *http.Request, op string, rec codec.Values, err error) {
	if err != nil {
		s.fail(w, r, op, err)
		return
	}
	if rec == nil {
		sendDatasetError(w, dataset.ErrNoRecord)
		return
	}
	sendSuccess(w, rec)
}

// handleWrite inserts a record from a JSON object of field values
//
//	POST /api/v1/datasets/{name}/records
func (s *Server) handleWrite(w http.ResponseWriter, r *http.Request) {
	ds, ok := s.dataset(w, r)
	if !ok {
		return
	}
	values, ok := decodeValues(w, r)
	if !ok {
		return
	}
	if err := ds.Write(r.Context(), values); err != nil {
		s.fail(w, r, "write", err)
		return
	}
	key := ds.Layout().Key().Name
	sendCreated(w, map[string]string{key: values[key]})
}

// handleFindUpdate applies the fields in the body to every record with the
// given key
//
//	PATCH /api/v1/datasets/{name}/records/{key}
func (s *Server) handleFindUpdate(w http.ResponseWriter, r *http.Request) {
	ds, ok := s.dataset(w, r)
	if !ok {
		return
	}
	values, ok := decodeValues(w, r)
	if !ok {
		return
	}
	n, err := ds.FindUpdate(r.Context(), chi.URLParam(r, "key"), values)
	if err != nil {
		s.failCount(w, r, "find_update", n, err)
		return
	}
	sendSuccess(w, CountResponse{Count: n})
}

// handleFindDelete deletes every record with the given key
//
//	DELETE /api/v1/datasets/{name}/records/{key}
func (s *Server) handleFindDelete(w http.ResponseWriter, r *http.Request) {
	ds, ok := s.dataset(w, r)
	if !ok {
		return
	}
	n, err := ds.FindDelete(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		s.failCount(w, r, "find_delete", n, err)
		return
	}
	sendSuccess(w, CountResponse{Count: n})
}
