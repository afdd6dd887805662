package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fleetwise/fleet-api/internal/core/domain"
	"github.com/fleetwise/fleet-api/internal/core/ports"
)

const sessionEventsCollection = "session_events"

// SessionEventRepository appends session events to an audit collection.
type SessionEventRepository struct {
	col *mongo.Collection
}

func NewSessionEventRepository(db *mongo.Database) *SessionEventRepository {
	return &SessionEventRepository{col: db.Collection(sessionEventsCollection)}
}

// InsertSessionEvent persists a single event.
func (r *SessionEventRepository) InsertSessionEvent(ctx context.Context, e domain.SessionEvent) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := bson.M{
		"kind":        string(e.Kind),
		"at":          e.At.UTC(),
		"recorded_at": time.Now().UTC(),
	}
	if e.AccountID != "" {
		doc["account_id"] = e.AccountID
	}

	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert session event: %w", err)
	}
	return nil
}

// EnsureIndexes indexes events by account and expires them after
// retention. A zero retention keeps events forever.
func (r *SessionEventRepository) EnsureIndexes(ctx context.Context, retention time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, indexTimeout)
	defer cancel()

	atIndex := mongo.IndexModel{Keys: bson.D{{Key: "at", Value: 1}}}
	if retention > 0 {
		atIndex.Options = options.Index().SetExpireAfterSeconds(int32(retention / time.Second))
	}

	_, err := r.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "account_id", Value: 1}, {Key: "at", Value: -1}}},
		atIndex,
	})
	return err
}

var _ ports.SessionEventRecorder = (*SessionEventRepository)(nil)
