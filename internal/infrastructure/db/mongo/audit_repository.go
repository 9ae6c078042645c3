package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/evoquefitness/access-gateway/internal/core/ports"
)

const auditCollection = "auth_events"

// AuditRepository persists the auth audit trail (logins, logouts, refreshes,
// revocations) to MongoDB.
type AuditRepository struct {
	db *mongo.Database
}

// NewAuditRepository creates a new AuditRepository.
func NewAuditRepository(db *mongo.Database) ports.AuditRepository {
	return &AuditRepository{db: db}
}

// Insert appends one auth event to the trail.
func (r *AuditRepository) Insert(ctx context.Context, event *ports.AuthEventInput) error {
	doc := bson.M{
		"user_id":     event.UserID,
		"email":       event.Email,
		"kind":        event.Kind,
		"timestamp":   event.Timestamp.UTC(),
		"recorded_at": time.Now().UTC(),
	}
	if event.Path != "" {
		doc["path"] = event.Path
	}

	if _, err := r.db.Collection(auditCollection).InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert auth event: %w", err)
	}
	return nil
}
