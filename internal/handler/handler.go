package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/w-h-a/recall/buffer"
	"github.com/w-h-a/recall/internal/service/recall"
)

type Handler struct {
	service *recall.Service
}

func (h *Handler) Routes() *mux.Router {
	router := mux.NewRouter()

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/events", h.observe).Methods(http.MethodPost)
	api.HandleFunc("/context", h.context).Methods(http.MethodPost)
	api.HandleFunc("/sweep", h.sweep).Methods(http.MethodPost)
	api.HandleFunc("/relationships/{id}", h.relationship).Methods(http.MethodGet)

	return router
}

type eventRequest struct {
	Content    string    `json:"content"`
	AuthorId   string    `json:"author_id"`
	AuthorName string    `json:"author_name"`
	ChannelId  string    `json:"channel_id"`
	Timestamp  time.Time `json:"timestamp"`
	Origin     string    `json:"origin"`
	Bot        bool      `json:"bot"`
}

func (h *Handler) observe(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	if len(req.Content) == 0 || len(req.AuthorId) == 0 {
		http.Error(w, "content and author_id are required", http.StatusBadRequest)
		return
	}

	timestamp := req.Timestamp
	if timestamp.IsZero() {
		timestamp = time.Now().UTC()
	}

	origin := buffer.Origin(req.Origin)
	switch origin {
	case buffer.OriginIncoming, buffer.OriginOutgoing, buffer.OriginObserved:
	default:
		origin = buffer.OriginObserved
	}

	h.service.Observe(r.Context(), buffer.Event{
		Content:    req.Content,
		AuthorId:   req.AuthorId,
		AuthorName: req.AuthorName,
		ChannelId:  req.ChannelId,
		Timestamp:  timestamp,
		Origin:     origin,
		Bot:        req.Bot,
	})

	w.WriteHeader(http.StatusAccepted)
}

type contextRequest struct {
	UserId  string `json:"user_id"`
	Message string `json:"message"`
}

func (h *Handler) context(w http.ResponseWriter, r *http.Request) {
	var req contextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	if len(req.UserId) == 0 || len(req.Message) == 0 {
		http.Error(w, "user_id and message are required", http.StatusBadRequest)
		return
	}

	block := h.service.Context(r.Context(), req.UserId, req.Message)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"context": block})
}

func (h *Handler) sweep(w http.ResponseWriter, r *http.Request) {
	report := h.service.Sweep(r.Context())

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int{
		"deleted":      report.Deleted,
		"kept":         report.Kept,
		"pages":        report.Pages,
		"failed_pages": report.FailedPages,
	})
}

func (h *Handler) relationship(w http.ResponseWriter, r *http.Request) {
	userId := mux.Vars(r)["id"]

	entry, exists, err := h.service.Relationship(r.Context(), userId)
	if err != nil {
		http.Error(w, "ledger error", http.StatusInternalServerError)
		return
	}

	if !exists {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entry)
}

func New(service *recall.Service) *Handler {
	return &Handler{
		service: service,
	}
}
