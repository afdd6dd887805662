package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fleetwise/fleet-api/internal/core/domain"
	"github.com/fleetwise/fleet-api/internal/core/ports"
)

const (
	accountsCollection = "accounts"
	uniqueEmailIndex   = "uniq_email"
)

// AccountRepository stores accounts and their refresh-token hash. It
// implements both ports.AccountRepository and ports.SessionStore.
type AccountRepository struct {
	col *mongo.Collection
}

func NewAccountRepository(db *mongo.Database) *AccountRepository {
	return &AccountRepository{col: db.Collection(accountsCollection)}
}

type accountDoc struct {
	ID               primitive.ObjectID `bson:"_id,omitempty"`
	Email            string             `bson:"email"`
	PasswordHash     string             `bson:"password_hash"`
	Name             string             `bson:"name"`
	Phone            string             `bson:"phone,omitempty"`
	Role             string             `bson:"role"`
	RefreshTokenHash *string            `bson:"refresh_token_hash"`
	CreatedAt        time.Time          `bson:"created_at"`
	UpdatedAt        time.Time          `bson:"updated_at"`
}

func (d *accountDoc) toDomain() *domain.Account {
	return &domain.Account{
		ID:               d.ID.Hex(),
		Email:            d.Email,
		PasswordHash:     d.PasswordHash,
		Name:             d.Name,
		Phone:            d.Phone,
		Role:             domain.Role(d.Role),
		RefreshTokenHash: d.RefreshTokenHash,
		CreatedAt:        d.CreatedAt.UTC(),
		UpdatedAt:        d.UpdatedAt.UTC(),
	}
}

// NextID returns a new ObjectID in hex form.
func (r *AccountRepository) NextID() string {
	return primitive.NewObjectID().Hex()
}

func (r *AccountRepository) Create(ctx context.Context, a *domain.Account) (*domain.Account, error) {
	id := primitive.NewObjectID()
	if a.ID != "" {
		oid, ok := objectID(a.ID)
		if !ok {
			return nil, fmt.Errorf("insert account: invalid id %q", a.ID)
		}
		id = oid
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	doc := accountDoc{
		ID:               id,
		Email:            a.Email,
		PasswordHash:     a.PasswordHash,
		Name:             a.Name,
		Phone:            a.Phone,
		Role:             a.Role.String(),
		RefreshTokenHash: a.RefreshTokenHash,
		CreatedAt:        a.CreatedAt.UTC(),
		UpdatedAt:        a.UpdatedAt.UTC(),
	}
	if _, err := r.col.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, domain.ErrEmailTaken
		}
		return nil, fmt.Errorf("insert account: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *AccountRepository) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *AccountRepository) FindByID(ctx context.Context, id string) (*domain.Account, error) {
	oid, ok := objectID(id)
	if !ok {
		return nil, domain.ErrAccountNotFound
	}
	return r.findOne(ctx, bson.M{"_id": oid})
}

// Update applies u and returns the account as stored afterwards.
func (r *AccountRepository) Update(ctx context.Context, id string, u ports.AccountUpdate) (*domain.Account, error) {
	oid, ok := objectID(id)
	if !ok {
		return nil, domain.ErrAccountNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	set := bson.M{"updated_at": time.Now().UTC()}
	setIfPresent(set, "name", u.Name)
	setIfPresent(set, "phone", u.Phone)
	setIfPresent(set, "password_hash", u.PasswordHash)
	if u.ClearRefreshHash {
		set["refresh_token_hash"] = nil
	}

	var doc accountDoc
	err := r.col.FindOneAndUpdate(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("update account: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *AccountRepository) SetRefreshHash(ctx context.Context, accountID, hash string) error {
	oid, ok := objectID(accountID)
	if !ok {
		return domain.ErrAccountNotFound
	}
	res, err := r.updateSession(ctx, bson.M{"_id": oid}, &hash)
	if err != nil {
		return fmt.Errorf("set refresh hash: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrAccountNotFound
	}
	return nil
}

func (r *AccountRepository) GetRefreshHash(ctx context.Context, accountID string) (string, bool, error) {
	oid, ok := objectID(accountID)
	if !ok {
		return "", false, nil
	}

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc struct {
		RefreshTokenHash *string `bson:"refresh_token_hash"`
	}
	err := r.col.FindOne(ctx, bson.M{"_id": oid},
		options.FindOne().SetProjection(bson.M{"refresh_token_hash": 1}),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get refresh hash: %w", err)
	}
	if doc.RefreshTokenHash == nil || *doc.RefreshTokenHash == "" {
		return "", false, nil
	}
	return *doc.RefreshTokenHash, true, nil
}

func (r *AccountRepository) ClearRefreshHash(ctx context.Context, accountID string) error {
	oid, ok := objectID(accountID)
	if !ok {
		return nil
	}
	if _, err := r.updateSession(ctx, bson.M{"_id": oid}, nil); err != nil {
		return fmt.Errorf("clear refresh hash: %w", err)
	}
	return nil
}

// SwapRefreshHash only matches the document while it still holds expected,
// so of two concurrent rotations exactly one modifies it.
func (r *AccountRepository) SwapRefreshHash(ctx context.Context, accountID, expected, next string) error {
	oid, ok := objectID(accountID)
	if !ok {
		return domain.ErrRefreshTokenReused
	}
	res, err := r.updateSession(ctx, bson.M{"_id": oid, "refresh_token_hash": expected}, &next)
	if err != nil {
		return fmt.Errorf("swap refresh hash: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrRefreshTokenReused
	}
	return nil
}

// EnsureIndexes creates the unique email index.
func (r *AccountRepository) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, indexTimeout)
	defer cancel()

	_, err := r.col.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName(uniqueEmailIndex).SetUnique(true),
		},
		{Keys: bson.D{{Key: "role", Value: 1}}},
	})
	return err
}

func (r *AccountRepository) findOne(ctx context.Context, filter bson.M) (*domain.Account, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var doc accountDoc
	if err := r.col.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("find account: %w", err)
	}
	return doc.toDomain(), nil
}

func (r *AccountRepository) updateSession(ctx context.Context, filter bson.M, hash *string) (*mongo.UpdateResult, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	return r.col.UpdateOne(ctx, filter, bson.M{"$set": bson.M{
		"refresh_token_hash": hash,
		"updated_at":         time.Now().UTC(),
	}})
}

var (
	_ ports.AccountRepository = (*AccountRepository)(nil)
	_ ports.SessionStore      = (*AccountRepository)(nil)
)
