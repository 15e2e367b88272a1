package ridehail

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DocStore archives vendor payloads in the document store: raw receipts for
// audit and dispute handling.
type DocStore struct {
	receipts *mongo.Collection
}

// NewDocStore creates a new document store over the given database.
func NewDocStore(db *mongo.Database) *DocStore {
	return &DocStore{
		receipts: db.Collection("ridehail_receipts"),
	}
}

type receiptDoc struct {
	RideID    int64     `bson:"ride_id"`
	RequestID string    `bson:"request_id"`
	Receipt   *Receipt  `bson:"receipt"`
	StoredOn  time.Time `bson:"stored_on"`
}

// SaveReceipt archives the raw vendor receipt for a ride. Re-deliveries
// overwrite the previous copy.
func (s *DocStore) SaveReceipt(ctx context.Context, rideID int64, requestID string, receipt *Receipt) error {
	_, err := s.receipts.UpdateOne(ctx,
		bson.M{"ride_id": rideID},
		bson.M{"$set": receiptDoc{
			RideID:    rideID,
			RequestID: requestID,
			Receipt:   receipt,
			StoredOn:  time.Now().UTC(),
		}},
		options.Update().SetUpsert(true),
	)
	return err
}

// GetReceipt loads the archived receipt for a ride, nil when absent.
func (s *DocStore) GetReceipt(ctx context.Context, rideID int64) (*Receipt, error) {
	var doc receiptDoc
	err := s.receipts.FindOne(ctx, bson.M{"ride_id": rideID}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return doc.Receipt, nil
}
