package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"framelabel/internal/labeling"
	"framelabel/internal/pipeline"
	"framelabel/internal/scoring"
	"framelabel/internal/signal"
	"framelabel/internal/store"
	"framelabel/internal/types"
)

const maxBodyBytes = 8 << 20

type Handler struct {
	pipeline *pipeline.Pipeline
	now      func() time.Time
}

func NewHandler(p *pipeline.Pipeline) *Handler {
	return &Handler{pipeline: p, now: time.Now}
}

// NewMux routes the API. allowedOrigins feeds CORS; empty admits any origin.
func NewMux(h *Handler, allowedOrigins ...string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.HandleHealth)
	mux.HandleFunc("/v1/label", h.HandleLabel)
	mux.HandleFunc("/v1/classify", h.HandleClassify)
	mux.HandleFunc("/v1/stats", h.HandleStats)
	mux.HandleFunc("/v1/records", h.HandleRecord)
	return CORS(allowedOrigins)(mux)
}

func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

type labelRequest struct {
	Signals signal.Set `json:"signals"`
	AsOf    *time.Time `json:"as_of,omitempty"`
}

type labelResponse struct {
	Scoring  *scoring.Scored  `json:"scoring"`
	Labeled  labeling.Labeled `json:"labeled"`
	Included bool             `json:"include_in_training"`
}

// HandleLabel scores and labels a signal set. as_of defaults to now.
func (h *Handler) HandleLabel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var in labelRequest
	if err := decodeBody(w, r, &in); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	asOf := h.now()
	if in.AsOf != nil {
		asOf = *in.AsOf
	}
	labeler := h.pipeline.Labeler()
	scored := labeler.Scorer().Score(keyedSet(in.Signals), asOf)
	l := labeler.Label(scored)
	writeJSON(w, http.StatusOK, labelResponse{
		Scoring:  scored,
		Labeled:  l,
		Included: labeling.IncludeInTraining(l),
	})
}

// keyedSet files every signal under its own framework, or under the map key
// when the signal does not name one.
func keyedSet(in signal.Set) signal.Set {
	out := signal.Set{}
	for key, sigs := range in {
		for _, s := range sigs {
			if s.Framework() == "" {
				opts := []signal.Option{signal.WithFile(s.FilePath())}
				if t, ok := s.LastModified(); ok {
					opts = append(opts, signal.WithModified(t))
				}
				s = signal.New(key, s.Type(), s.Priority(), s.Source(), s.Evidence(), opts...)
			}
			out.Add(s)
		}
	}
	return out
}

// HandleClassify runs a posted snapshot through the pipeline. With
// ?persist=true the record is also stored.
func (h *Handler) HandleClassify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var snap types.Snapshot
	if err := decodeBody(w, r, &snap); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(snap.Metadata.RepositoryURL) == "" {
		http.Error(w, "metadata.repository_url is required", http.StatusBadRequest)
		return
	}
	if snap.Metadata.Stage == "" {
		snap.Metadata = snap.Metadata.WithStage(types.StageRaw)
	}

	persist, _ := strconv.ParseBool(r.URL.Query().Get("persist"))
	var (
		out pipeline.Outcome
		err error
	)
	if persist {
		if h.pipeline.Store() == nil {
			http.Error(w, "no sample store configured", http.StatusServiceUnavailable)
			return
		}
		out, err = h.pipeline.Process(r.Context(), &snap)
	} else {
		out, err = h.pipeline.Classify(r.Context(), &snap)
	}
	if err != nil {
		log.Printf("classify %s: %v", snap.Metadata.RepositoryURL, err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	st := h.pipeline.Store()
	if st == nil {
		http.Error(w, "no sample store configured", http.StatusServiceUnavailable)
		return
	}
	stats, err := st.Stats(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// HandleRecord returns the stored record for ?url=.
func (h *Handler) HandleRecord(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	url := strings.TrimSpace(r.URL.Query().Get("url"))
	if url == "" {
		http.Error(w, "url is required", http.StatusBadRequest)
		return
	}
	st := h.pipeline.Store()
	if st == nil {
		http.Error(w, "no sample store configured", http.StatusServiceUnavailable)
		return
	}
	rec, err := st.Get(r.Context(), url)
	switch {
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, "record not found", http.StatusNotFound)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid json body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}
