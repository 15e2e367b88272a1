package trips

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// TrajectoryStore persists GPS samples in the document store. Samples arrive
// in client batches, possibly out of order across batches; reads return them
// ordered by timestamp.
type TrajectoryStore struct {
	points *mongo.Collection
}

// NewTrajectoryStore creates a new trajectory store over the given database.
func NewTrajectoryStore(db *mongo.Database) *TrajectoryStore {
	return &TrajectoryStore{
		points: db.Collection("trip_trajectory"),
	}
}

type trajectoryDoc struct {
	TripID    int64     `bson:"trip_id"`
	Latitude  float64   `bson:"latitude"`
	Longitude float64   `bson:"longitude"`
	Timestamp time.Time `bson:"timestamp"`
	Speed     float64   `bson:"speed"`
	Accuracy  float64   `bson:"accuracy"`
}

// Append stores one batch of samples for a trip.
func (s *TrajectoryStore) Append(ctx context.Context, tripID int64, points []TrajectoryPoint) error {
	if len(points) == 0 {
		return nil
	}

	docs := make([]interface{}, 0, len(points))
	for _, p := range points {
		docs = append(docs, trajectoryDoc{
			TripID:    tripID,
			Latitude:  p.Latitude,
			Longitude: p.Longitude,
			Timestamp: p.Timestamp.UTC(),
			Speed:     p.Speed,
			Accuracy:  p.Accuracy,
		})
	}

	_, err := s.points.InsertMany(ctx, docs, options.InsertMany().SetOrdered(false))
	return err
}

// Load returns all samples for a trip ordered by timestamp.
func (s *TrajectoryStore) Load(ctx context.Context, tripID int64) ([]TrajectoryPoint, error) {
	cur, err := s.points.Find(ctx,
		bson.M{"trip_id": tripID},
		options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}}),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []TrajectoryPoint
	for cur.Next(ctx) {
		var doc trajectoryDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		out = append(out, TrajectoryPoint{
			Latitude:  doc.Latitude,
			Longitude: doc.Longitude,
			Timestamp: doc.Timestamp,
			Speed:     doc.Speed,
			Accuracy:  doc.Accuracy,
		})
	}
	return out, cur.Err()
}

// Count returns the number of stored samples for a trip.
func (s *TrajectoryStore) Count(ctx context.Context, tripID int64) (int64, error) {
	return s.points.CountDocuments(ctx, bson.M{"trip_id": tripID})
}
