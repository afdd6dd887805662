package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fleetwise/fleet-api/internal/core/domain"
	"github.com/fleetwise/fleet-api/internal/core/ports"
)

const (
	vehiclesCollection = "vehicles"
	uniquePlateIndex   = "uniq_plate_number"
	uniqueDriverIndex  = "uniq_driver_id"
)

// sortFields maps filter sort names onto document fields.
var sortFields = map[string]string{
	ports.SortByCreatedAt:    "created_at",
	ports.SortByYear:         "year",
	ports.SortByPlateNumber:  "plate_number",
	ports.SortByManufacturer: "manufacturer",
}

type VehicleRepository struct {
	col *mongo.Collection
}

func NewVehicleRepository(db *mongo.Database) *VehicleRepository {
	return &VehicleRepository{col: db.Collection(vehiclesCollection)}
}

type vehicleDoc struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	PlateNumber  string             `bson:"plate_number"`
	Model        string             `bson:"model"`
	Manufacturer string             `bson:"manufacturer"`
	Year         int                `bson:"year"`
	Type         string             `bson:"type"`
	SimNumber    string             `bson:"sim_number,omitempty"`
	DeviceID     string             `bson:"device_id,omitempty"`
	DriverID     *string            `bson:"driver_id,omitempty"`
	CreatedAt    time.Time          `bson:"created_at"`
	UpdatedAt    time.Time          `bson:"updated_at"`
}

func (d *vehicleDoc) toDomain() *domain.Vehicle {
	return &domain.Vehicle{
		ID:           d.ID.Hex(),
		PlateNumber:  d.PlateNumber,
		Model:        d.Model,
		Manufacturer: d.Manufacturer,
		Year:         d.Year,
		Type:         d.Type,
		SimNumber:    d.SimNumber,
		DeviceID:     d.DeviceID,
		DriverID:     d.DriverID,
		CreatedAt:    d.CreatedAt.UTC(),
		UpdatedAt:    d.UpdatedAt.UTC(),
	}
}

func (r *VehicleRepository) Create(ctx context.Context, v *domain.Vehicle) (*domain.Vehicle, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := vehicleDoc{
		ID:           primitive.NewObjectID(),
		PlateNumber:  v.PlateNumber,
		Model:        v.Model,
		Manufacturer: v.Manufacturer,
		Year:         v.Year,
		Type:         v.Type,
		SimNumber:    v.SimNumber,
		DeviceID:     v.DeviceID,
		DriverID:     v.DriverID,
		CreatedAt:    v.CreatedAt.UTC(),
		UpdatedAt:    v.UpdatedAt.UTC(),
	}
	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		return nil, writeErr("insert vehicle", err)
	}
	return doc.toDomain(), nil
}

func (r *VehicleRepository) FindByID(ctx context.Context, id string) (*domain.Vehicle, error) {
	oid, ok := objectID(id)
	if !ok {
		return nil, domain.ErrVehicleNotFound
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

func (r *VehicleRepository) FindByPlate(ctx context.Context, plate string) (*domain.Vehicle, error) {
	return r.findOne(ctx, bson.M{"plate_number": plate})
}

func (r *VehicleRepository) FindByDriver(ctx context.Context, driverID string) (*domain.Vehicle, error) {
	return r.findOne(ctx, bson.M{"driver_id": driverID})
}

// List runs the filtered count and the page query.
func (r *VehicleRepository) List(ctx context.Context, f ports.VehicleFilter) ([]*domain.Vehicle, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	filter := vehicleFilter(f)
	total, err := r.col.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count vehicles: %w", err)
	}

	page, limit := f.Page, f.Limit
	if page < 1 {
		page = 1
	}
	opts := options.Find().SetSort(vehicleSort(f))
	if limit > 0 {
		opts.SetSkip(int64((page - 1) * limit)).SetLimit(int64(limit))
	}

	cur, err := r.col.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("find vehicles: %w", err)
	}
	defer cur.Close(ctx)

	var docs []vehicleDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, 0, fmt.Errorf("decode vehicles: %w", err)
	}
	out := make([]*domain.Vehicle, 0, len(docs))
	for i := range docs {
		out = append(out, docs[i].toDomain())
	}
	return out, total, nil
}

// Update applies u. A DriverID pointing at nil removes the driver field so
// the partial unique index stops covering the document.
func (r *VehicleRepository) Update(ctx context.Context, id string, u ports.VehicleUpdate) (*domain.Vehicle, error) {
	oid, ok := objectID(id)
	if !ok {
		return nil, domain.ErrVehicleNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	set := bson.M{"updated_at": time.Now().UTC()}
	setIfPresent(set, "plate_number", u.PlateNumber)
	setIfPresent(set, "model", u.Model)
	setIfPresent(set, "manufacturer", u.Manufacturer)
	setIfPresent(set, "year", u.Year)
	setIfPresent(set, "type", u.Type)
	setIfPresent(set, "sim_number", u.SimNumber)
	setIfPresent(set, "device_id", u.DeviceID)

	update := bson.M{"$set": set}
	if u.DriverID != nil {
		if *u.DriverID == nil {
			update["$unset"] = bson.M{"driver_id": ""}
		} else {
			set["driver_id"] = **u.DriverID
		}
	}

	var doc vehicleDoc
	err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": oid}, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrVehicleNotFound
		}
		return nil, writeErr("update vehicle", err)
	}
	return doc.toDomain(), nil
}

func (r *VehicleRepository) Delete(ctx context.Context, id string) error {
	oid, ok := objectID(id)
	if !ok {
		return domain.ErrVehicleNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	res, err := r.col.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return fmt.Errorf("delete vehicle: %w", err)
	}
	if res.DeletedCount == 0 {
		return domain.ErrVehicleNotFound
	}
	return nil
}

// EnsureIndexes creates the unique plate index and the partial unique
// driver index that allows any number of unassigned vehicles.
func (r *VehicleRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, indexTimeout)
	defer cancel()

	_, err := r.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "plate_number", Value: 1}},
			Options: options.Index().SetName(uniquePlateIndex).SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "driver_id", Value: 1}},
			Options: options.Index().
				SetName(uniqueDriverIndex).
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"driver_id": bson.M{"$type": "string"}}),
		},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "manufacturer", Value: 1}}},
	})
	return err
}

func (r *VehicleRepository) findOne(ctx context.Context, filter bson.M) (*domain.Vehicle, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc vehicleDoc
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrVehicleNotFound
		}
		return nil, fmt.Errorf("find vehicle: %w", err)
	}
	return doc.toDomain(), nil
}

func vehicleFilter(f ports.VehicleFilter) bson.M {
	filter := bson.M{}
	if f.Type != "" {
		filter["type"] = containsFold(f.Type)
	}
	if f.Manufacturer != "" {
		filter["manufacturer"] = containsFold(f.Manufacturer)
	}
	if f.Assigned != nil {
		filter["driver_id"] = bson.M{"$exists": *f.Assigned}
	}
	return filter
}

// vehicleSort orders by the requested field with _id as tie-breaker so pages
// are stable.
func vehicleSort(f ports.VehicleFilter) bson.D {
	field, ok := sortFields[f.SortBy]
	if !ok {
		field = sortFields[ports.SortByCreatedAt]
	}
	dir := 1
	if f.Descending {
		dir = -1
	}
	return bson.D{{Key: field, Value: dir}, {Key: "_id", Value: dir}}
}

func containsFold(s string) primitive.Regex {
	return primitive.Regex{Pattern: regexp.QuoteMeta(s), Options: "i"}
}

func writeErr(op string, err error) error {
	switch {
	case duplicateOn(err, uniquePlateIndex):
		return domain.ErrPlateTaken
	case duplicateOn(err, uniqueDriverIndex):
		return domain.ErrDriverAlreadyAssigned
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

var _ ports.VehicleRepository = (*VehicleRepository)(nil)
