// internal/repository/usage_repository.go
package repository

import (
	"context"
	"time"

	"usage-metering-backend/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// UsageRepository is the append-only usage store. There are no update or
// delete operations: a record, once appended, is never mutated.
type UsageRepository interface {
	Append(ctx context.Context, record *models.UsageRecord) error
	Scan(ctx context.Context, filter models.ScanFilter) ([]models.UsageRecord, error)
	AggregateByOperation(ctx context.Context, filter models.ScanFilter) ([]models.OperationUsage, error)
	DurationsMs(ctx context.Context, filter models.ScanFilter) ([]float64, error)
}

type usageRepository struct {
	collection *mongo.Collection
}

func NewUsageRepository(collection *mongo.Collection) UsageRepository {
	return &usageRepository{
		collection: collection,
	}
}

// Append assigns the record its identity and write-time timestamp and inserts
// it. InsertOne is atomic per document, so concurrent appends need no
// application-level locking.
func (r *usageRepository) Append(ctx context.Context, record *models.UsageRecord) error {
	record.ID = primitive.NewObjectID()
	record.Timestamp = time.Now().UTC()

	_, err := r.collection.InsertOne(ctx, record)
	return err
}

// Scan returns matching records ordered by timestamp descending (most recent
// first), so limit/offset pagination is stable for listing queries.
func (r *usageRepository) Scan(ctx context.Context, filter models.ScanFilter) ([]models.UsageRecord, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}})
	if filter.Limit > 0 {
		opts.SetLimit(int64(filter.Limit))
	}
	if filter.Offset > 0 {
		opts.SetSkip(int64(filter.Offset))
	}

	cursor, err := r.collection.Find(ctx, buildMatch(filter), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	records := make([]models.UsageRecord, 0)
	if err = cursor.All(ctx, &records); err != nil {
		return nil, err
	}

	return records, nil
}

// AggregateByOperation folds the filtered set into per-operation-type totals
// server-side. Absent costs count as zero in the sum.
func (r *usageRepository) AggregateByOperation(ctx context.Context, filter models.ScanFilter) ([]models.OperationUsage, error) {
	pipeline := []bson.M{
		{
			"$match": buildMatch(filter),
		},
		{
			"$group": bson.M{
				"_id":         "$operation_type",
				"total_calls": bson.M{"$sum": 1},
				"success_calls": bson.M{
					"$sum": bson.M{
						"$cond": bson.M{
							"if":   "$success",
							"then": 1,
							"else": 0,
						},
					},
				},
				"failed_calls": bson.M{
					"$sum": bson.M{
						"$cond": bson.M{
							"if":   "$success",
							"then": 0,
							"else": 1,
						},
					},
				},
				"total_cost_usd":     bson.M{"$sum": bson.M{"$ifNull": bson.A{"$cost_usd", 0}}},
				"total_input_bytes":  bson.M{"$sum": "$input_size_bytes"},
				"total_output_bytes": bson.M{"$sum": "$output_size_bytes"},
				"total_duration_ms":  bson.M{"$sum": "$duration_ms"},
			},
		},
		{
			"$sort": bson.M{"total_calls": -1},
		},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	stats := make([]models.OperationUsage, 0)
	if err = cursor.All(ctx, &stats); err != nil {
		return nil, err
	}

	return stats, nil
}

// DurationsMs projects the duration column of the filtered set, for
// percentile computation on the read side.
func (r *usageRepository) DurationsMs(ctx context.Context, filter models.ScanFilter) ([]float64, error) {
	opts := options.Find().
		SetProjection(bson.M{"duration_ms": 1})

	cursor, err := r.collection.Find(ctx, buildMatch(filter), opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		DurationMs int64 `bson:"duration_ms"`
	}
	if err = cursor.All(ctx, &rows); err != nil {
		return nil, err
	}

	durations := make([]float64, 0, len(rows))
	for _, row := range rows {
		durations = append(durations, float64(row.DurationMs))
	}

	return durations, nil
}

// buildMatch translates a ScanFilter into a Mongo match document. The
// timestamp bounds are both inclusive.
func buildMatch(filter models.ScanFilter) bson.M {
	match := bson.M{}

	if filter.CustomerID != "" {
		match["customer_id"] = filter.CustomerID
	}
	if filter.OrganizationName != "" {
		match["organization_name"] = filter.OrganizationName
	}

	if filter.Start != nil || filter.End != nil {
		dateFilter := bson.M{}
		if filter.Start != nil {
			dateFilter["$gte"] = *filter.Start
		}
		if filter.End != nil {
			dateFilter["$lte"] = *filter.End
		}
		match["timestamp"] = dateFilter
	}

	return match
}
