package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/alimasry/go-undo-ot/ot"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrExists          = errors.New("already exists")
	ErrVersionConflict = errors.New("version conflict")
)

// DocumentInfo holds document metadata. Content is the text the document was
// created with; the current state is rebuilt by replaying the delta log.
type DocumentInfo struct {
	ID        string
	Content   string
	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DeltaRecord is one committed delta in a document's log. Inactive deltas
// were undone, or were applied to undo something, and are skipped when
// collecting the deltas that happened since a version.
type DeltaRecord struct {
	Delta    ot.Delta  `json:"delta"`
	BatchID  uuid.UUID `json:"batchId"`
	Inactive bool      `json:"inactive"`
}

// DocumentStore abstracts document persistence.
type DocumentStore interface {
	Create(ctx context.Context, id, content string) error
	Get(ctx context.Context, id string) (*DocumentInfo, error)
	List(ctx context.Context) ([]DocumentInfo, error)
	// AppendDelta adds rec to the log. The delta's base version must equal
	// the document's current version, which then advances past the delta.
	AppendDelta(ctx context.Context, id string, rec DeltaRecord) error
	// GetDeltas returns the records whose base version is at least
	// fromVersion, oldest first.
	GetDeltas(ctx context.Context, id string, fromVersion int) ([]DeltaRecord, error)
	// MarkInactive flags the deltas with the given base versions.
	MarkInactive(ctx context.Context, id string, baseVersions ...int) error
}
