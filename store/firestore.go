package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/alimasry/go-undo-ot/ot"
)

// FirestoreStore is a Firestore-backed implementation of DocumentStore.
// Each document keeps its log in a "deltas" subcollection keyed by the
// zero-padded base version, so ordering by ID is ordering by version.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
}

// NewFirestoreStore creates a new FirestoreStore using the given Firestore
// client. An empty collection defaults to "documents".
func NewFirestoreStore(client *firestore.Client, collection string) *FirestoreStore {
	if collection == "" {
		collection = "documents"
	}
	return &FirestoreStore{
		client:     client,
		collection: collection,
	}
}

// deltaDoc is the stored form of a DeltaRecord. Operations hold node trees of
// any depth, so they are kept as a JSON string rather than nested maps.
type deltaDoc struct {
	BaseVersion int    `firestore:"baseVersion"`
	BatchID     string `firestore:"batchId"`
	Inactive    bool   `firestore:"inactive"`
	Operations  string `firestore:"operations"`
}

func (s *FirestoreStore) docRef(id string) *firestore.DocumentRef {
	return s.client.Collection(s.collection).Doc(id)
}

func (s *FirestoreStore) deltasCollection(docID string) *firestore.CollectionRef {
	return s.docRef(docID).Collection("deltas")
}

func zeroPad(version int) string {
	return fmt.Sprintf("%010d", version)
}

func (s *FirestoreStore) Create(ctx context.Context, id, content string) error {
	now := time.Now()
	_, err := s.docRef(id).Create(ctx, map[string]interface{}{
		"content":   content,
		"version":   0,
		"createdAt": now,
		"updatedAt": now,
	})
	if status.Code(err) == codes.AlreadyExists {
		return fmt.Errorf("document %q: %w", id, ErrExists)
	}
	return err
}

func (s *FirestoreStore) Get(ctx context.Context, id string) (*DocumentInfo, error) {
	snap, err := s.docRef(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, fmt.Errorf("document %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return snapshotToDocInfo(id, snap), nil
}

func snapshotToDocInfo(id string, snap *firestore.DocumentSnapshot) *DocumentInfo {
	data := snap.Data()
	content, _ := data["content"].(string)
	version, _ := data["version"].(int64)
	createdAt, _ := data["createdAt"].(time.Time)
	updatedAt, _ := data["updatedAt"].(time.Time)
	return &DocumentInfo{
		ID:        id,
		Content:   content,
		Version:   int(version),
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}
}

func (s *FirestoreStore) List(ctx context.Context) ([]DocumentInfo, error) {
	iter := s.client.Collection(s.collection).Documents(ctx)
	defer iter.Stop()

	var result []DocumentInfo
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		result = append(result, *snapshotToDocInfo(snap.Ref.ID, snap))
	}
	return result, nil
}

// AppendDelta writes the delta and advances the document version in one
// transaction, so concurrent writers cannot both append at the same version.
func (s *FirestoreStore) AppendDelta(ctx context.Context, id string, rec DeltaRecord) error {
	ops, err := json.Marshal(rec.Delta.Operations)
	if err != nil {
		return fmt.Errorf("encode delta %d: %w", rec.Delta.BaseVersion, err)
	}
	doc := deltaDoc{
		BaseVersion: rec.Delta.BaseVersion,
		BatchID:     rec.BatchID.String(),
		Inactive:    rec.Inactive,
		Operations:  string(ops),
	}

	return s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(s.docRef(id))
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("document %q: %w", id, ErrNotFound)
		}
		if err != nil {
			return err
		}
		if v := snapshotToDocInfo(id, snap).Version; v != rec.Delta.BaseVersion {
			return fmt.Errorf("document %q at version %d, delta based on %d: %w",
				id, v, rec.Delta.BaseVersion, ErrVersionConflict)
		}
		if err := tx.Create(s.deltasCollection(id).Doc(zeroPad(rec.Delta.BaseVersion)), doc); err != nil {
			return err
		}
		return tx.Update(s.docRef(id), []firestore.Update{
			{Path: "version", Value: rec.Delta.NextVersion()},
			{Path: "updatedAt", Value: time.Now()},
		})
	})
}

func (s *FirestoreStore) GetDeltas(ctx context.Context, id string, fromVersion int) ([]DeltaRecord, error) {
	if fromVersion < 0 {
		return nil, fmt.Errorf("invalid version %d", fromVersion)
	}
	// Verify document exists.
	_, err := s.docRef(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, fmt.Errorf("document %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	iter := s.deltasCollection(id).
		OrderBy(firestore.DocumentID, firestore.Asc).
		StartAt(zeroPad(fromVersion)).
		Documents(ctx)
	defer iter.Stop()

	var recs []DeltaRecord
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		rec, err := snapshotToDelta(snap)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func snapshotToDelta(snap *firestore.DocumentSnapshot) (DeltaRecord, error) {
	var doc deltaDoc
	if err := snap.DataTo(&doc); err != nil {
		return DeltaRecord{}, fmt.Errorf("invalid delta %s: %w", snap.Ref.ID, err)
	}
	var ops []ot.Operation
	if err := json.Unmarshal([]byte(doc.Operations), &ops); err != nil {
		return DeltaRecord{}, fmt.Errorf("invalid operations in delta %s: %w", snap.Ref.ID, err)
	}
	batchID, err := uuid.Parse(doc.BatchID)
	if err != nil {
		return DeltaRecord{}, fmt.Errorf("invalid batch id in delta %s: %w", snap.Ref.ID, err)
	}
	return DeltaRecord{
		Delta:    ot.NewDelta(doc.BaseVersion, ops...),
		BatchID:  batchID,
		Inactive: doc.Inactive,
	}, nil
}

func (s *FirestoreStore) MarkInactive(ctx context.Context, id string, baseVersions ...int) error {
	refs := make([]*firestore.DocumentRef, len(baseVersions))
	for i, v := range baseVersions {
		refs[i] = s.deltasCollection(id).Doc(zeroPad(v))
	}
	return s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snaps, err := tx.GetAll(refs)
		if err != nil {
			return err
		}
		for i, snap := range snaps {
			if !snap.Exists() {
				return fmt.Errorf("delta %d of document %q: %w", baseVersions[i], id, ErrNotFound)
			}
		}
		for _, ref := range refs {
			if err := tx.Update(ref, []firestore.Update{{Path: "inactive", Value: true}}); err != nil {
				return err
			}
		}
		return nil
	})
}
