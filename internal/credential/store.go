package credential

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/linkflow-ai/linkflow/internal/engine/core"
	pkgcrypto "github.com/linkflow-ai/linkflow/internal/pkg/crypto"
)

// Sentinel errors, following the small-exported-error-value convention used
// throughout the domain services package.
var (
	ErrCredentialNotFound  = errors.New("credential: not found")
	ErrNameRequired        = errors.New("credential: name is required")
	ErrUnknownType         = errors.New("credential: unknown credential type")
	ErrValidationFailed    = errors.New("credential: payload validation failed")
	ErrDuplicateName       = errors.New("credential: name already in use")
	ErrExpired             = errors.New("credential: expired")
	ErrForbidden           = errors.New("credential: not owner")
	ErrUnsupportedAuthType = errors.New("credential: unsupported auth type")
)

// Repository is the narrow persistence contract the store is built against.
type Repository interface {
	Insert(ctx context.Context, rec *Record) error
	FindByID(ctx context.Context, id uuid.UUID) (*Record, error)
	FindByIDAndUser(ctx context.Context, id, userID uuid.UUID) (*Record, error)
	FindByUser(ctx context.Context, userID uuid.UUID, filterByType string) ([]Record, error)
	Update(ctx context.Context, rec *Record) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindExpiring(ctx context.Context, userID uuid.UUID, withinDays int) ([]Record, error)
	ExistsByName(ctx context.Context, userID uuid.UUID, name string, excludeID *uuid.UUID) (bool, error)

	FindShares(ctx context.Context, credentialID uuid.UUID) ([]Share, error)
	InsertShare(ctx context.Context, share Share) error
	DeleteShare(ctx context.Context, credentialID uuid.UUID, userID *uuid.UUID, teamID *uuid.UUID) error
	UserTeamIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
}

// Store is the Credential Store component.
type Store struct {
	repo      Repository
	encryptor *pkgcrypto.Encryptor
	types     *Registry
}

// NewStore builds a Store. The registry should already have its builtin
// and node-declared types registered before first use.
func NewStore(repo Repository, encryptor *pkgcrypto.Encryptor, types *Registry) *Store {
	return &Store{repo: repo, encryptor: encryptor, types: types}
}

// Create validates, encrypts and persists a new credential.
func (s *Store) Create(ctx context.Context, userID uuid.UUID, name, credType string, payload map[string]interface{}, expiresAt *time.Time) (*Record, error) {
	if name == "" {
		return nil, ErrNameRequired
	}
	ct, ok := s.types.Get(credType)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, credType)
	}
	if issues := ct.Validate(payload); len(issues) > 0 {
		return nil, fmt.Errorf("%w: %v", ErrValidationFailed, issues)
	}
	exists, err := s.repo.ExistsByName(ctx, userID, name, nil)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, ErrDuplicateName
	}

	ciphertext, err := s.encryptPayload(payload)
	if err != nil {
		return nil, err
	}

	rec := &Record{
		ID:         uuid.New(),
		UserID:     userID,
		Name:       name,
		Type:       credType,
		Ciphertext: ciphertext,
		ExpiresAt:  expiresAt,
		CreatedAt:  time.Now(),
		UpdatedAt:  time.Now(),
	}
	if err := s.repo.Insert(ctx, rec); err != nil {
		return nil, err
	}
	log.Info().Str("credential_id", rec.ID.String()).Str("type", credType).Msg("credential created")
	return rec, nil
}

// authorizedAccess reports whether userID may read this credential, via
// ownership or a USE/VIEW/EDIT share.
func (s *Store) authorizedAccess(ctx context.Context, rec *Record, userID uuid.UUID) (bool, error) {
	if rec.UserID == userID {
		return true, nil
	}
	shares, err := s.repo.FindShares(ctx, rec.ID)
	if err != nil {
		return false, err
	}
	teamIDs, err := s.repo.UserTeamIDs(ctx, userID)
	if err != nil {
		return false, err
	}
	teamSet := make(map[uuid.UUID]bool, len(teamIDs))
	for _, t := range teamIDs {
		teamSet[t] = true
	}
	for _, sh := range shares {
		if sh.UserID != nil && *sh.UserID == userID {
			return true, nil
		}
		if sh.TeamID != nil && teamSet[*sh.TeamID] {
			return true, nil
		}
	}
	return false, nil
}

// Get returns the decrypted payload if userID owns the credential or holds
// a share; nil if neither.
func (s *Store) Get(ctx context.Context, id, userID uuid.UUID) (map[string]interface{}, error) {
	rec, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}
	ok, err := s.authorizedAccess(ctx, rec, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	if rec.ExpiresAt != nil && rec.ExpiresAt.Before(time.Now()) {
		return nil, ErrExpired
	}
	return s.decryptPayload(rec.Ciphertext)
}

// Update re-validates and re-encrypts the payload if provided, preserving
// name uniqueness. Only the owner may update.
func (s *Store) Update(ctx context.Context, id, userID uuid.UUID, name *string, payload map[string]interface{}, expiresAt *time.Time) (*Record, error) {
	rec, err := s.repo.FindByIDAndUser(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrCredentialNotFound
	}
	if name != nil && *name != rec.Name {
		exists, err := s.repo.ExistsByName(ctx, userID, *name, &rec.ID)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, ErrDuplicateName
		}
		rec.Name = *name
	}
	if payload != nil {
		ct, ok := s.types.Get(rec.Type)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownType, rec.Type)
		}
		if issues := ct.Validate(payload); len(issues) > 0 {
			return nil, fmt.Errorf("%w: %v", ErrValidationFailed, issues)
		}
		ciphertext, err := s.encryptPayload(payload)
		if err != nil {
			return nil, err
		}
		rec.Ciphertext = ciphertext
	}
	if expiresAt != nil {
		rec.ExpiresAt = expiresAt
	}
	rec.UpdatedAt = time.Now()
	if err := s.repo.Update(ctx, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Delete removes a credential. Only the owner may delete.
func (s *Store) Delete(ctx context.Context, id, userID uuid.UUID) error {
	rec, err := s.repo.FindByIDAndUser(ctx, id, userID)
	if err != nil {
		return err
	}
	if rec == nil {
		return ErrCredentialNotFound
	}
	return s.repo.Delete(ctx, id)
}

// Rotate re-validates newPayload and extends expiresAt to now + 90 days.
// Only the owner may rotate.
func (s *Store) Rotate(ctx context.Context, id, userID uuid.UUID, newPayload map[string]interface{}) (*Record, error) {
	expires := time.Now().AddDate(0, 0, 90)
	return s.Update(ctx, id, userID, nil, newPayload, &expires)
}

// Test runs the type's test hook against payload directly, without
// requiring a persisted credential.
func (s *Store) Test(credType string, payload map[string]interface{}) (TestResult, error) {
	ct, ok := s.types.Get(credType)
	if !ok {
		return TestResult{}, fmt.Errorf("%w: %s", ErrUnknownType, credType)
	}
	if ct.Test == nil {
		return TestResult{Success: true, Message: "no test hook defined for this type"}, nil
	}
	return ct.Test(payload), nil
}

// ApplyAuthentication mutates req to carry credentials per the type's
// built-in policy.
func (s *Store) ApplyAuthentication(req *core.RequestDescriptor, credType string, payload map[string]interface{}) error {
	ct, ok := s.types.Get(credType)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownType, credType)
	}
	if req.Headers == nil {
		req.Headers = make(map[string]string)
	}
	switch ct.Auth {
	case AuthHTTPBasic:
		username, _ := payload["username"].(string)
		password, _ := payload["password"].(string)
		encoded := base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
		req.Headers["Authorization"] = "Basic " + encoded
		return nil
	case AuthAPIKey:
		headerName, _ := payload["headerName"].(string)
		if headerName == "" {
			headerName = "Authorization"
		}
		apiKey, _ := payload["apiKey"].(string)
		prefix, _ := payload["prefix"].(string)
		if prefix != "" {
			req.Headers[headerName] = prefix + " " + apiKey
		} else {
			req.Headers[headerName] = apiKey
		}
		return nil
	case AuthOAuth2:
		accessToken, _ := payload["accessToken"].(string)
		req.Headers["Authorization"] = "Bearer " + accessToken
		return nil
	default:
		return ErrUnsupportedAuthType
	}
}

// Materialize decrypts and sanitizes the payload for injection into an
// execution scope. Returns an ErrCredentialUnavailable-equivalent nil+err
// on any failure.
func (s *Store) Materialize(ctx context.Context, credentialID, userID uuid.UUID) (string, map[string]interface{}, error) {
	rec, err := s.repo.FindByID(ctx, credentialID)
	if err != nil {
		return "", nil, err
	}
	if rec == nil {
		return "", nil, ErrCredentialNotFound
	}
	ok, err := s.authorizedAccess(ctx, rec, userID)
	if err != nil {
		return "", nil, err
	}
	if !ok {
		return "", nil, ErrForbidden
	}
	if rec.ExpiresAt != nil && rec.ExpiresAt.Before(time.Now()) {
		return "", nil, ErrExpired
	}
	payload, err := s.decryptPayload(rec.Ciphertext)
	if err != nil {
		return "", nil, err
	}
	return rec.Type, Sanitize(payload), nil
}

func (s *Store) encryptPayload(payload map[string]interface{}) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	return s.encryptor.Encrypt(string(data))
}

func (s *Store) decryptPayload(ciphertext string) (map[string]interface{}, error) {
	plain, err := s.encryptor.Decrypt(ciphertext)
	if err != nil {
		return nil, err
	}
	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(plain), &payload); err != nil {
		return nil, fmt.Errorf("unmarshal decrypted payload: %w", err)
	}
	return payload, nil
}
