package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"churchreg/entity"
	"churchreg/internal/config"
)

const (
	collectionTokens        = "registration_tokens"
	collectionRegistrations = "pending_registrations"
	collectionMembers       = "members"
	collectionAuditLog      = "audit_log"
	collectionAdmins        = "admins"
)

type MongoDB struct {
	ctx           context.Context
	clientOptions *options.ClientOptions
	database      string
}

func NewMongoClient(conf *config.Config) *MongoDB {
	if !conf.Mongo.Enabled {
		return nil
	}
	connectionUri := fmt.Sprintf("mongodb://%s:%s", conf.Mongo.Host, conf.Mongo.Port)
	clientOptions := options.Client().ApplyURI(connectionUri)
	if conf.Mongo.User != "" {
		clientOptions.SetAuth(options.Credential{
			Username:   conf.Mongo.User,
			Password:   conf.Mongo.Password,
			AuthSource: conf.Mongo.Database,
		})
	}
	client := &MongoDB{
		ctx:           context.Background(),
		clientOptions: clientOptions,
		database:      conf.Mongo.Database,
	}
	return client
}

func (m *MongoDB) connect() (*mongo.Client, error) {
	connection, err := mongo.Connect(m.ctx, m.clientOptions)
	if err != nil {
		return nil, fmt.Errorf("mongodb connect: %w", err)
	}
	return connection, nil
}

func (m *MongoDB) disconnect(connection *mongo.Client) {
	_ = connection.Disconnect(m.ctx)
}

// EnsureIndexes creates the indexes the conditional updates and duplicate
// lookups rely on. The unique token index is what turns a generation
// collision into a store-level error instead of a silent overwrite.
func (m *MongoDB) EnsureIndexes() error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	db := connection.Database(m.database)

	tokens := db.Collection(collectionTokens)
	_, err = tokens.Indexes().CreateOne(m.ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "token", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("token index: %w", err)
	}

	registrations := db.Collection(collectionRegistrations)
	_, err = registrations.Indexes().CreateMany(m.ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "approval_status", Value: 1}, {Key: "submitted_at", Value: -1}}},
		{Keys: bson.D{{Key: "token_id", Value: 1}}},
		{Keys: bson.D{{Key: "normalized_email", Value: 1}}},
		{Keys: bson.D{{Key: "normalized_phone", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("registration indexes: %w", err)
	}

	members := db.Collection(collectionMembers)
	_, err = members.Indexes().CreateMany(m.ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "normalized_email", Value: 1}}},
		{Keys: bson.D{{Key: "normalized_phone", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("member indexes: %w", err)
	}
	return nil
}

func (m *MongoDB) CreateToken(token *entity.RegistrationToken) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(collectionTokens)
	_, err = collection.InsertOne(m.ctx, token)
	if mongo.IsDuplicateKeyError(err) {
		return entity.ErrDuplicateToken
	}
	return err
}

func (m *MongoDB) GetToken(code string) (*entity.RegistrationToken, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(collectionTokens)
	filter := bson.D{{Key: "token", Value: code}}
	var token entity.RegistrationToken
	err = collection.FindOne(m.ctx, filter).Decode(&token)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mongodb find token: %w", err)
	}
	return &token, nil
}

func (m *MongoDB) ListTokens(activeOnly bool) ([]*entity.RegistrationToken, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(collectionTokens)
	filter := bson.D{}
	if activeOnly {
		filter = bson.D{{Key: "is_active", Value: true}}
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := collection.Find(m.ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(m.ctx)

	var tokens []*entity.RegistrationToken
	if err = cursor.All(m.ctx, &tokens); err != nil {
		return nil, err
	}
	return tokens, nil
}

// DeactivateToken flips is_active to false, but only if it is still true.
// A second deactivation matches nothing and reports entity.ErrNotFound so
// the caller can tell the two cases apart.
func (m *MongoDB) DeactivateToken(code string) (*entity.RegistrationToken, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(collectionTokens)
	filter := bson.D{{Key: "token", Value: code}, {Key: "is_active", Value: true}}
	update := bson.D{{Key: "$set", Value: bson.D{{Key: "is_active", Value: false}}}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var token entity.RegistrationToken
	err = collection.FindOneAndUpdate(m.ctx, filter, update, opts).Decode(&token)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mongodb deactivate token: %w", err)
	}
	return &token, nil
}

// ConsumeTokenUse increments current_uses in a single conditional update.
// The filter admits the token only while it is active, unexpired and under
// its cap, so two racing submitters can never push current_uses past
// max_uses. No match reports entity.ErrNotFound; the caller re-reads the
// token to find out which condition failed.
func (m *MongoDB) ConsumeTokenUse(code string, now time.Time) (*entity.RegistrationToken, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(collectionTokens)
	filter := bson.D{
		{Key: "token", Value: code},
		{Key: "is_active", Value: true},
		{Key: "$or", Value: bson.A{
			bson.D{{Key: "expires_at", Value: bson.D{{Key: "$exists", Value: false}}}},
			bson.D{{Key: "expires_at", Value: nil}},
			bson.D{{Key: "expires_at", Value: bson.D{{Key: "$gt", Value: now}}}},
		}},
		{Key: "$expr", Value: bson.D{{Key: "$or", Value: bson.A{
			bson.D{{Key: "$eq", Value: bson.A{"$max_uses", entity.UnlimitedUses}}},
			bson.D{{Key: "$lt", Value: bson.A{"$current_uses", "$max_uses"}}},
		}}}},
	}
	update := bson.D{{Key: "$inc", Value: bson.D{{Key: "current_uses", Value: 1}}}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var token entity.RegistrationToken
	err = collection.FindOneAndUpdate(m.ctx, filter, update, opts).Decode(&token)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mongodb consume token: %w", err)
	}
	return &token, nil
}

func (m *MongoDB) CreateRegistration(reg *entity.PendingRegistration) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(collectionRegistrations)
	_, err = collection.InsertOne(m.ctx, reg)
	return err
}

func (m *MongoDB) GetRegistration(id string) (*entity.PendingRegistration, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(collectionRegistrations)
	filter := bson.D{{Key: "id", Value: id}}
	var reg entity.PendingRegistration
	err = collection.FindOne(m.ctx, filter).Decode(&reg)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mongodb find registration: %w", err)
	}
	return &reg, nil
}

func (m *MongoDB) ListRegistrations(status entity.ApprovalStatus, tokenId string) ([]*entity.PendingRegistration, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(collectionRegistrations)
	filter := bson.D{}
	if status != "" {
		filter = append(filter, bson.E{Key: "approval_status", Value: status})
	}
	if tokenId != "" {
		filter = append(filter, bson.E{Key: "token_id", Value: tokenId})
	}
	opts := options.Find().SetSort(bson.D{{Key: "submitted_at", Value: -1}})
	cursor, err := collection.Find(m.ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(m.ctx)

	var regs []*entity.PendingRegistration
	if err = cursor.All(m.ctx, &regs); err != nil {
		return nil, err
	}
	return regs, nil
}

// ApproveRegistration commits the pending -> approved transition. The status
// guard in the filter is what makes two racing approvers safe: only one
// update can match, the other sees entity.ErrNotFound.
func (m *MongoDB) ApproveRegistration(id, approverId, memberId string, at time.Time) (*entity.PendingRegistration, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(collectionRegistrations)
	filter := bson.D{{Key: "id", Value: id}, {Key: "approval_status", Value: entity.StatusPending}}
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "approval_status", Value: entity.StatusApproved},
		{Key: "approved_by", Value: approverId},
		{Key: "approved_at", Value: at},
		{Key: "member_id", Value: memberId},
	}}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var reg entity.PendingRegistration
	err = collection.FindOneAndUpdate(m.ctx, filter, update, opts).Decode(&reg)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mongodb approve registration: %w", err)
	}
	return &reg, nil
}

// RejectRegistration commits the pending -> rejected transition under the
// same status guard as ApproveRegistration.
func (m *MongoDB) RejectRegistration(id, approverId, reason string, at time.Time) (*entity.PendingRegistration, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(collectionRegistrations)
	filter := bson.D{{Key: "id", Value: id}, {Key: "approval_status", Value: entity.StatusPending}}
	update := bson.D{{Key: "$set", Value: bson.D{
		{Key: "approval_status", Value: entity.StatusRejected},
		{Key: "approved_by", Value: approverId},
		{Key: "approved_at", Value: at},
		{Key: "rejection_reason", Value: reason},
	}}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var reg entity.PendingRegistration
	err = collection.FindOneAndUpdate(m.ctx, filter, update, opts).Decode(&reg)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mongodb reject registration: %w", err)
	}
	return &reg, nil
}

// FindDuplicates runs equality lookups on the normalized contact fields over
// both pending registrations and the member directory.
func (m *MongoDB) FindDuplicates(normEmail, normPhone string) ([]*entity.DuplicateCandidate, error) {
	if normEmail == "" && normPhone == "" {
		return []*entity.DuplicateCandidate{}, nil
	}
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	var conditions bson.A
	if normEmail != "" {
		conditions = append(conditions, bson.D{{Key: "normalized_email", Value: normEmail}})
	}
	if normPhone != "" {
		conditions = append(conditions, bson.D{{Key: "normalized_phone", Value: normPhone}})
	}
	filter := bson.D{{Key: "$or", Value: conditions}}

	candidates := []*entity.DuplicateCandidate{}
	db := connection.Database(m.database)

	collect := func(collection string, source entity.DuplicateSource) error {
		cursor, err := db.Collection(collection).Find(m.ctx, filter)
		if err != nil {
			return err
		}
		defer cursor.Close(m.ctx)
		for cursor.Next(m.ctx) {
			var c entity.DuplicateCandidate
			if err = cursor.Decode(&c); err != nil {
				return err
			}
			c.Source = source
			candidates = append(candidates, &c)
		}
		return cursor.Err()
	}

	if err = collect(collectionRegistrations, entity.SourceRegistration); err != nil {
		return nil, fmt.Errorf("mongodb duplicates in registrations: %w", err)
	}
	if err = collect(collectionMembers, entity.SourceMember); err != nil {
		return nil, fmt.Errorf("mongodb duplicates in members: %w", err)
	}
	return candidates, nil
}

func (m *MongoDB) CreateMember(member *entity.Member) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(collectionMembers)
	_, err = collection.InsertOne(m.ctx, member)
	return err
}

// DeleteMember exists only as race compensation: when an approver loses the
// status-transition race after the member document was already written.
func (m *MongoDB) DeleteMember(id string) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(collectionMembers)
	_, err = collection.DeleteOne(m.ctx, bson.D{{Key: "id", Value: id}})
	return err
}

func (m *MongoDB) SaveAuditEntry(entry *entity.AuditEntry) error {
	connection, err := m.connect()
	if err != nil {
		return err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(collectionAuditLog)
	_, err = collection.InsertOne(m.ctx, entry)
	return err
}

func (m *MongoDB) GetAdmin(token string) (*entity.Admin, error) {
	connection, err := m.connect()
	if err != nil {
		return nil, err
	}
	defer m.disconnect(connection)

	collection := connection.Database(m.database).Collection(collectionAdmins)
	filter := bson.D{{Key: "token", Value: token}, {Key: "enabled", Value: true}}
	var admin entity.Admin
	err = collection.FindOne(m.ctx, filter).Decode(&admin)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, entity.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("mongodb find admin: %w", err)
	}
	return &admin, nil
}
