package server

import (
	"context"
	"log/slog"

	"github.com/alimasry/go-undo-ot/document"
	"github.com/alimasry/go-undo-ot/history"
	"github.com/alimasry/go-undo-ot/ot"
)

type clientMessage struct {
	client *Client
	msg    ClientMessage
}

// Session serves a single document. Edits, selection changes, undo and redo
// are serialized through one goroutine, and every client of the document
// shares one history.
type Session struct {
	docID   string
	doc     *document.Document
	history *history.Manager
	clients map[*Client]bool
	logger  *slog.Logger

	incoming chan clientMessage
	join     chan *Client
	leave    chan *Client
	stop     chan struct{}
}

func newSession(doc *document.Document, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("doc", doc.ID())
	return &Session{
		docID:    doc.ID(),
		doc:      doc,
		history:  history.NewManager(doc, history.WithLogger(logger)),
		clients:  make(map[*Client]bool),
		logger:   logger,
		incoming: make(chan clientMessage, 64),
		join:     make(chan *Client, 16),
		leave:    make(chan *Client, 16),
		stop:     make(chan struct{}),
	}
}

// Run is the session's main loop.
func (s *Session) Run() {
	for {
		select {
		case c := <-s.join:
			s.handleJoin(c)
		case c := <-s.leave:
			s.handleLeave(c)
		case cm := <-s.incoming:
			s.handle(cm)
		case <-s.stop:
			return
		}
	}
}

func (s *Session) handleJoin(c *Client) {
	s.clients[c] = true
	clientsConnected.Inc()
	c.setSession(s)

	state := s.state()
	state.Clients = s.clientInfos()
	c.sendMsg(state)

	for other := range s.clients {
		if other != c {
			other.sendMsg(ServerMessage{
				Type:     MsgJoin,
				ClientID: c.ID,
				Name:     c.Name,
				Color:    c.Color,
			})
		}
	}
	s.logger.Debug("client joined", "client", c.ID, "clients", len(s.clients))
}

func (s *Session) handleLeave(c *Client) {
	if _, ok := s.clients[c]; !ok {
		return
	}
	delete(s.clients, c)
	clientsConnected.Dec()
	c.setSession(nil)
	close(c.send)

	for other := range s.clients {
		other.sendMsg(ServerMessage{
			Type:     MsgLeave,
			ClientID: c.ID,
		})
	}
}

func (s *Session) handle(cm clientMessage) {
	ctx := context.Background()
	var err error
	switch cm.msg.Type {
	case MsgEdit:
		err = s.edit(ctx, cm.msg)
	case MsgSelect:
		if cm.msg.Selection != nil {
			s.doc.SetSelection(cm.msg.Selection.Ranges, cm.msg.Selection.IsBackward)
		}
	case MsgUndo:
		err = s.history.Undo(ctx)
	case MsgRedo:
		err = s.history.Redo(ctx)
	default:
		cm.client.sendError("unknown message type: " + cm.msg.Type)
		return
	}
	if err != nil {
		messagesTotal.WithLabelValues(cm.msg.Type, "error").Inc()
		s.logger.Warn("message failed", "type", cm.msg.Type, "client", cm.client.ID, "err", err)
		cm.client.sendError(cm.msg.Type + ": " + err.Error())
		return
	}
	messagesTotal.WithLabelValues(cm.msg.Type, "ok").Inc()
	s.broadcastState()
}

// edit applies the message's operations as one delta of a new batch.
func (s *Session) edit(ctx context.Context, msg ClientMessage) error {
	if msg.Selection != nil {
		s.doc.SetSelection(msg.Selection.Ranges, msg.Selection.IsBackward)
	}
	if len(msg.Operations) == 0 {
		return nil
	}
	batch := s.doc.NewBatch()
	_, err := s.doc.Apply(ctx, batch, ot.NewDelta(s.doc.Version(), msg.Operations...))
	return err
}

func (s *Session) state() ServerMessage {
	sel := s.doc.Selection()
	return ServerMessage{
		Type:      MsgState,
		DocID:     s.docID,
		Content:   s.doc.Text(document.MainRoot),
		Version:   s.doc.Version(),
		Selection: &sel,
		CanUndo:   s.history.CanUndo(),
		CanRedo:   s.history.CanRedo(),
	}
}

func (s *Session) broadcastState() {
	state := s.state()
	for c := range s.clients {
		c.sendMsg(state)
	}
}

func (s *Session) clientInfos() []ClientInfo {
	infos := make([]ClientInfo, 0, len(s.clients))
	for c := range s.clients {
		infos = append(infos, c.Info())
	}
	return infos
}
