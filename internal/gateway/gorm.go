package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"taxmatch/pkg/auth"
)

// GormGateway is a postgres-backed Gateway for self-hosted deployments and
// integration tests. It exposes the same collections and record shapes as
// the hosted platform.
type GormGateway struct {
	db       *gorm.DB
	secret   []byte
	tokenTTL time.Duration
}

type userRow struct {
	ID           string `gorm:"primaryKey"`
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	Name         string `gorm:"not null"`
	Role         string `gorm:"not null"`
	CreatedAt    time.Time
}

type serviceRequestRow struct {
	ID          string         `gorm:"primaryKey"`
	Title       string         `gorm:"not null"`
	Description string         `gorm:"not null"`
	Category    string         `gorm:"not null"`
	Budget      datatypes.JSON `gorm:"type:jsonb"`
	Deadline    time.Time
	Documents   datatypes.JSON `gorm:"type:jsonb"`
	SeekerID    string         `gorm:"not null;index"`
	ProviderID  string
	Status      string    `gorm:"not null"`
	CreatedAt   time.Time `gorm:"not null;index"`
}

type messageRow struct {
	ID        string    `gorm:"primaryKey"`
	RequestID string    `gorm:"not null;index"`
	SenderID  string    `gorm:"not null"`
	Content   string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null;index"`
}

type proposalRow struct {
	ID         string  `gorm:"primaryKey"`
	RequestID  string  `gorm:"not null;index"`
	ProviderID string  `gorm:"not null;index"`
	Amount     float64 `gorm:"not null"`
	Message    string
	Status     string    `gorm:"not null"`
	CreatedAt  time.Time `gorm:"not null"`
}

func (userRow) TableName() string           { return CollectionUsers }
func (serviceRequestRow) TableName() string { return CollectionRequests }
func (messageRow) TableName() string        { return CollectionMessages }
func (proposalRow) TableName() string       { return CollectionProposals }

// NewGormGateway opens the database and runs auto-migrations.
func NewGormGateway(dsn, jwtSecret string, tokenTTL time.Duration) (*GormGateway, error) {
	if jwtSecret == "" {
		return nil, fmt.Errorf("jwt secret required")
	}
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.AutoMigrate(&userRow{}, &serviceRequestRow{}, &messageRow{}, &proposalRow{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &GormGateway{db: db, secret: []byte(jwtSecret), tokenTTL: tokenTTL}, nil
}

func (g *GormGateway) Query(ctx context.Context, collection string, q Query) ([]Record, error) {
	tx := g.db.WithContext(ctx)
	for _, f := range q.Filters {
		tx = tx.Where(f.Column+" = ?", f.Value)
	}
	if q.OrderBy != "" {
		dir := "ASC"
		if q.Descending {
			dir = "DESC"
		}
		tx = tx.Order(q.OrderBy + " " + dir)
	}
	recs, err := g.loadRecords(tx, collection)
	if err != nil {
		return nil, err
	}
	for i := range recs {
		if err := g.embedJoins(ctx, recs[i], q.Joins); err != nil {
			return nil, err
		}
	}
	return recs, nil
}

func (g *GormGateway) QueryOne(ctx context.Context, collection, id string, joins ...Join) (Record, error) {
	recs, err := g.loadRecords(g.db.WithContext(ctx).Where("id = ?", id).Limit(1), collection)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("%s %s: %w", collection, id, ErrNotFound)
	}
	if err := g.embedJoins(ctx, recs[0], joins); err != nil {
		return nil, err
	}
	return recs[0], nil
}

func (g *GormGateway) Insert(ctx context.Context, collection string, rec Record) (Record, error) {
	id, _ := rec["id"].(string)
	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now().UTC()
	switch collection {
	case CollectionUsers:
		row := userRow{
			ID:        id,
			Email:     str(rec["email"]),
			Name:      str(rec["name"]),
			Role:      str(rec["role"]),
			CreatedAt: now,
		}
		if err := g.db.WithContext(ctx).Create(&row).Error; err != nil {
			return nil, wrapDBError(err)
		}
		return userRowRecord(row), nil
	case CollectionRequests:
		budget, err := json.Marshal(rec["budget"])
		if err != nil {
			return nil, fmt.Errorf("encode budget: %w", err)
		}
		docs := rec["documents"]
		if docs == nil {
			docs = []string{}
		}
		documents, err := json.Marshal(docs)
		if err != nil {
			return nil, fmt.Errorf("encode documents: %w", err)
		}
		deadline, ok := parseTimeValue(rec["deadline"])
		if !ok {
			return nil, &MappingError{Collection: collection, Field: "deadline", Reason: "expected timestamp"}
		}
		row := serviceRequestRow{
			ID:          id,
			Title:       str(rec["title"]),
			Description: str(rec["description"]),
			Category:    str(rec["category"]),
			Budget:      datatypes.JSON(budget),
			Deadline:    deadline,
			Documents:   datatypes.JSON(documents),
			SeekerID:    str(rec["seeker_id"]),
			ProviderID:  str(rec["provider_id"]),
			Status:      str(rec["status"]),
			CreatedAt:   now,
		}
		if err := g.db.WithContext(ctx).Create(&row).Error; err != nil {
			return nil, wrapDBError(err)
		}
		return requestRowRecord(row)
	case CollectionMessages:
		row := messageRow{
			ID:        id,
			RequestID: str(rec["request_id"]),
			SenderID:  str(rec["sender_id"]),
			Content:   str(rec["content"]),
			CreatedAt: now,
		}
		if err := g.db.WithContext(ctx).Create(&row).Error; err != nil {
			return nil, wrapDBError(err)
		}
		return messageRowRecord(row), nil
	case CollectionProposals:
		amount, err := numberField(collection, rec, "amount")
		if err != nil {
			return nil, err
		}
		row := proposalRow{
			ID:         id,
			RequestID:  str(rec["request_id"]),
			ProviderID: str(rec["provider_id"]),
			Amount:     amount,
			Message:    str(rec["message"]),
			Status:     str(rec["status"]),
			CreatedAt:  now,
		}
		if err := g.db.WithContext(ctx).Create(&row).Error; err != nil {
			return nil, wrapDBError(err)
		}
		return proposalRowRecord(row), nil
	default:
		return nil, fmt.Errorf("unknown collection %q", collection)
	}
}

func (g *GormGateway) Update(ctx context.Context, collection, id string, changes Record) (Record, error) {
	model, err := modelFor(collection)
	if err != nil {
		return nil, err
	}
	res := g.db.WithContext(ctx).Model(model).Where("id = ?", id).Updates(map[string]any(changes))
	if res.Error != nil {
		return nil, wrapDBError(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("%s %s: %w", collection, id, ErrNotFound)
	}
	return g.QueryOne(ctx, collection, id)
}

// SignUp creates credentials and the profile row, then issues a token.
func (g *GormGateway) SignUp(ctx context.Context, email, password string, profile Record) (Session, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" {
		return Session{}, &APIError{Status: http.StatusBadRequest, Message: "email required"}
	}
	var count int64
	if err := g.db.WithContext(ctx).Model(&userRow{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return Session{}, wrapDBError(err)
	}
	if count > 0 {
		return Session{}, &APIError{Status: http.StatusConflict, Message: "email already registered"}
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return Session{}, &APIError{Status: http.StatusBadRequest, Message: err.Error()}
	}
	row := userRow{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		Name:         str(profile["name"]),
		Role:         str(profile["role"]),
		CreatedAt:    time.Now().UTC(),
	}
	if err := g.db.WithContext(ctx).Create(&row).Error; err != nil {
		return Session{}, wrapDBError(err)
	}
	return g.issueToken(row.ID)
}

func (g *GormGateway) SignIn(ctx context.Context, email, password string) (Session, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	var row userRow
	if err := g.db.WithContext(ctx).Where("email = ?", email).First(&row).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return Session{}, &APIError{Status: http.StatusUnauthorized, Message: "invalid credentials"}
		}
		return Session{}, wrapDBError(err)
	}
	if !auth.CheckPassword(password, row.PasswordHash) {
		return Session{}, &APIError{Status: http.StatusUnauthorized, Message: "invalid credentials"}
	}
	return g.issueToken(row.ID)
}

func (g *GormGateway) issueToken(userID string) (Session, error) {
	expires := time.Now().UTC().Add(g.tokenTTL)
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		ExpiresAt: jwt.NewNumericDate(expires),
		IssuedAt:  jwt.NewNumericDate(time.Now().UTC()),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(g.secret)
	if err != nil {
		return Session{}, fmt.Errorf("sign token: %w", err)
	}
	return Session{AccessToken: token, UserID: userID, ExpiresAt: expires}, nil
}

func (g *GormGateway) loadRecords(tx *gorm.DB, collection string) ([]Record, error) {
	switch collection {
	case CollectionUsers:
		var rows []userRow
		if err := tx.Find(&rows).Error; err != nil {
			return nil, wrapDBError(err)
		}
		recs := make([]Record, 0, len(rows))
		for _, row := range rows {
			recs = append(recs, userRowRecord(row))
		}
		return recs, nil
	case CollectionRequests:
		var rows []serviceRequestRow
		if err := tx.Find(&rows).Error; err != nil {
			return nil, wrapDBError(err)
		}
		recs := make([]Record, 0, len(rows))
		for _, row := range rows {
			rec, err := requestRowRecord(row)
			if err != nil {
				return nil, err
			}
			recs = append(recs, rec)
		}
		return recs, nil
	case CollectionMessages:
		var rows []messageRow
		if err := tx.Find(&rows).Error; err != nil {
			return nil, wrapDBError(err)
		}
		recs := make([]Record, 0, len(rows))
		for _, row := range rows {
			recs = append(recs, messageRowRecord(row))
		}
		return recs, nil
	case CollectionProposals:
		var rows []proposalRow
		if err := tx.Find(&rows).Error; err != nil {
			return nil, wrapDBError(err)
		}
		recs := make([]Record, 0, len(rows))
		for _, row := range rows {
			recs = append(recs, proposalRowRecord(row))
		}
		return recs, nil
	default:
		return nil, fmt.Errorf("unknown collection %q", collection)
	}
}

func (g *GormGateway) embedJoins(ctx context.Context, rec Record, joins []Join) error {
	for _, j := range joins {
		fk, ok := rec[j.Column].(string)
		if !ok || fk == "" {
			continue
		}
		var row userRow
		if err := g.db.WithContext(ctx).First(&row, "id = ?", fk).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				continue
			}
			return wrapDBError(err)
		}
		user := userRowRecord(row)
		rec[j.Alias] = map[string]any{j.Field: user[j.Field]}
	}
	return nil
}

func userRowRecord(row userRow) Record {
	return Record{
		"id":         row.ID,
		"email":      row.Email,
		"name":       row.Name,
		"role":       row.Role,
		"created_at": row.CreatedAt,
	}
}

func requestRowRecord(row serviceRequestRow) (Record, error) {
	var budget map[string]any
	if err := json.Unmarshal(row.Budget, &budget); err != nil {
		return nil, &MappingError{Collection: CollectionRequests, Field: "budget", Reason: "invalid json"}
	}
	var documents []any
	if len(row.Documents) > 0 {
		if err := json.Unmarshal(row.Documents, &documents); err != nil {
			return nil, &MappingError{Collection: CollectionRequests, Field: "documents", Reason: "invalid json"}
		}
	}
	rec := Record{
		"id":          row.ID,
		"title":       row.Title,
		"description": row.Description,
		"category":    row.Category,
		"budget":      budget,
		"deadline":    row.Deadline,
		"documents":   documents,
		"seeker_id":   row.SeekerID,
		"status":      row.Status,
		"created_at":  row.CreatedAt,
	}
	if row.ProviderID != "" {
		rec["provider_id"] = row.ProviderID
	}
	return rec, nil
}

func messageRowRecord(row messageRow) Record {
	return Record{
		"id":         row.ID,
		"request_id": row.RequestID,
		"sender_id":  row.SenderID,
		"content":    row.Content,
		"created_at": row.CreatedAt,
	}
}

func proposalRowRecord(row proposalRow) Record {
	return Record{
		"id":          row.ID,
		"request_id":  row.RequestID,
		"provider_id": row.ProviderID,
		"amount":      row.Amount,
		"message":     row.Message,
		"status":      row.Status,
		"created_at":  row.CreatedAt,
	}
}

func modelFor(collection string) (any, error) {
	switch collection {
	case CollectionUsers:
		return &userRow{}, nil
	case CollectionRequests:
		return &serviceRequestRow{}, nil
	case CollectionMessages:
		return &messageRow{}, nil
	case CollectionProposals:
		return &proposalRow{}, nil
	default:
		return nil, fmt.Errorf("unknown collection %q", collection)
	}
}

func wrapDBError(err error) error {
	return &APIError{Status: http.StatusInternalServerError, Message: err.Error()}
}

func str(v any) string {
	s, _ := v.(string)
	return s
}
