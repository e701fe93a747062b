package server

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/alimasry/go-undo-ot/document"
	"github.com/alimasry/go-undo-ot/ot"
)

// Message types exchanged over WebSocket.
const (
	MsgJoin   = "join"
	MsgLeave  = "leave"
	MsgEdit   = "edit"
	MsgSelect = "select"
	MsgUndo   = "undo"
	MsgRedo   = "redo"
	MsgState  = "state"
	MsgError  = "error"
)

// ClientMessage is a message from client to server. An edit applies its
// operations as one delta in a new undoable batch; when Selection is set it
// replaces the document selection first.
type ClientMessage struct {
	Type       string         `json:"type"`
	DocID      string         `json:"docId,omitempty"`
	Operations []ot.Operation `json:"operations,omitempty"`
	Selection  *ot.Selection  `json:"selection,omitempty"`
}

// ServerMessage is a message from server to client.
type ServerMessage struct {
	Type      string        `json:"type"`
	DocID     string        `json:"docId,omitempty"`
	Content   string        `json:"content"`
	Version   int           `json:"version"`
	Selection *ot.Selection `json:"selection,omitempty"`
	CanUndo   bool          `json:"canUndo"`
	CanRedo   bool          `json:"canRedo"`
	ClientID  string        `json:"clientId,omitempty"`
	Name      string        `json:"name,omitempty"`
	Color     string        `json:"color,omitempty"`
	Message   string        `json:"message,omitempty"`
	Clients   []ClientInfo  `json:"clients,omitempty"`
}

// ClientInfo describes a connected user.
type ClientInfo struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Encode serializes a ServerMessage to JSON bytes.
func (m ServerMessage) Encode() []byte {
	b, _ := json.Marshal(m)
	return b
}

var errInvalidMessage = errors.New("invalid message")

// decodeClientMessage parses a client message and checks that it carries
// what its type needs. Operations and selections may only address the main
// root; removed content is reached through undo and redo.
func decodeClientMessage(data []byte) (ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, fmt.Errorf("%w: malformed JSON", errInvalidMessage)
	}
	switch msg.Type {
	case MsgJoin:
		if msg.DocID == "" {
			return msg, fmt.Errorf("%w: join needs a docId", errInvalidMessage)
		}
	case MsgEdit:
		if len(msg.Operations) == 0 && msg.Selection == nil {
			return msg, fmt.Errorf("%w: edit needs operations", errInvalidMessage)
		}
		for i, op := range msg.Operations {
			if err := validateOperation(op); err != nil {
				return msg, fmt.Errorf("%w: operation %d: %v", errInvalidMessage, i, err)
			}
		}
	case MsgSelect:
		if msg.Selection == nil {
			return msg, fmt.Errorf("%w: select needs a selection", errInvalidMessage)
		}
	case MsgUndo, MsgRedo:
	default:
		return msg, fmt.Errorf("%w: unknown message type %q", errInvalidMessage, msg.Type)
	}
	if msg.Selection != nil {
		for i, r := range msg.Selection.Ranges {
			if !inMain(r.Start) || !inMain(r.End) || r.End.IsBefore(r.Start) {
				return msg, fmt.Errorf("%w: range %d is not a range in %s", errInvalidMessage, i, document.MainRoot)
			}
		}
	}
	return msg, nil
}

func validateOperation(op ot.Operation) error {
	switch op.Type {
	case ot.OpInsert:
		if len(op.Nodes) == 0 {
			return errors.New("insert without nodes")
		}
		if !inMain(op.Position) {
			return fmt.Errorf("insert outside %s", document.MainRoot)
		}
	case ot.OpMove:
		if !inMain(op.Source) || !inMain(op.Target) {
			return fmt.Errorf("move outside %s", document.MainRoot)
		}
	case ot.OpRemove:
		if !inMain(op.Source) {
			return fmt.Errorf("remove outside %s", document.MainRoot)
		}
	default:
		return fmt.Errorf("operation type %q not allowed", op.Type)
	}
	if op.Type != ot.OpInsert && op.HowMany <= 0 {
		return fmt.Errorf("%s of %d nodes", op.Type, op.HowMany)
	}
	return nil
}

func inMain(p ot.Position) bool {
	return p.Root == document.MainRoot && len(p.Path) > 0
}
