package server

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/alimasry/go-undo-ot/document"
	"github.com/alimasry/go-undo-ot/store"
)

type joinRequest struct {
	client *Client
	docID  string
}

// Hub manages document sessions and routes clients to the right session.
type Hub struct {
	store    store.DocumentStore
	sessions map[string]*Session
	mu       sync.RWMutex
	logger   *slog.Logger

	joinDoc chan joinRequest
}

func NewHub(st store.DocumentStore, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		store:    st,
		sessions: make(map[string]*Session),
		logger:   logger.With("component", "hub"),
		joinDoc:  make(chan joinRequest, 64),
	}
}

// Run is the hub's main loop.
func (h *Hub) Run() {
	for req := range h.joinDoc {
		h.handleJoinDoc(req)
	}
}

func (h *Hub) handleJoinDoc(req joinRequest) {
	h.mu.Lock()
	s, ok := h.sessions[req.docID]
	if !ok {
		doc, err := h.openDocument(context.Background(), req.docID)
		if err != nil {
			h.mu.Unlock()
			h.logger.Error("failed to open document", "doc", req.docID, "err", err)
			req.client.sendError("failed to open document")
			return
		}
		s = newSession(doc, h.logger)
		h.sessions[req.docID] = s
		sessionsActive.Inc()
		go s.Run()
	}
	h.mu.Unlock()

	s.join <- req.client
}

// openDocument loads a document from the store, creating an empty one if it
// does not exist yet.
func (h *Hub) openDocument(ctx context.Context, id string) (*document.Document, error) {
	doc, err := document.Load(ctx, h.store, id, document.WithLogger(h.logger))
	if errors.Is(err, document.ErrNotFound) {
		h.logger.Info("creating document", "doc", id)
		return document.Create(ctx, h.store, id, "", document.WithLogger(h.logger))
	}
	return doc, err
}

// GetSession returns the session for a document, if active.
func (h *Hub) GetSession(docID string) *Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.sessions[docID]
}

// Close stops every session.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, s := range h.sessions {
		close(s.stop)
		delete(h.sessions, id)
		sessionsActive.Dec()
	}
}
