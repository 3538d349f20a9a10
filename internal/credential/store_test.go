package credential

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/linkflow-ai/linkflow/internal/engine/core"
	pkgcrypto "github.com/linkflow-ai/linkflow/internal/pkg/crypto"
)

type fakeRepo struct {
	records map[uuid.UUID]*Record
	shares  map[uuid.UUID][]Share
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{records: make(map[uuid.UUID]*Record), shares: make(map[uuid.UUID][]Share)}
}

func (f *fakeRepo) Insert(ctx context.Context, rec *Record) error {
	cp := *rec
	f.records[rec.ID] = &cp
	return nil
}

func (f *fakeRepo) FindByID(ctx context.Context, id uuid.UUID) (*Record, error) {
	if r, ok := f.records[id]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeRepo) FindByIDAndUser(ctx context.Context, id, userID uuid.UUID) (*Record, error) {
	r, err := f.FindByID(ctx, id)
	if err != nil || r == nil || r.UserID != userID {
		return nil, err
	}
	return r, nil
}

func (f *fakeRepo) FindByUser(ctx context.Context, userID uuid.UUID, filterByType string) ([]Record, error) {
	var out []Record
	for _, r := range f.records {
		if r.UserID == userID && (filterByType == "" || r.Type == filterByType) {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeRepo) Update(ctx context.Context, rec *Record) error {
	cp := *rec
	f.records[rec.ID] = &cp
	return nil
}

func (f *fakeRepo) Delete(ctx context.Context, id uuid.UUID) error {
	delete(f.records, id)
	return nil
}

func (f *fakeRepo) FindExpiring(ctx context.Context, userID uuid.UUID, withinDays int) ([]Record, error) {
	return nil, nil
}

func (f *fakeRepo) ExistsByName(ctx context.Context, userID uuid.UUID, name string, excludeID *uuid.UUID) (bool, error) {
	for _, r := range f.records {
		if r.UserID == userID && r.Name == name && (excludeID == nil || r.ID != *excludeID) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRepo) FindShares(ctx context.Context, credentialID uuid.UUID) ([]Share, error) {
	return f.shares[credentialID], nil
}

func (f *fakeRepo) InsertShare(ctx context.Context, share Share) error {
	f.shares[share.CredentialID] = append(f.shares[share.CredentialID], share)
	return nil
}

func (f *fakeRepo) DeleteShare(ctx context.Context, credentialID uuid.UUID, userID *uuid.UUID, teamID *uuid.UUID) error {
	return nil
}

func (f *fakeRepo) UserTeamIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	return nil, nil
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	enc, err := pkgcrypto.NewEncryptor(strings.Repeat("ab", 32))
	if err != nil {
		t.Fatalf("new encryptor: %v", err)
	}
	reg := NewRegistry()
	for _, ty := range BuiltinTypes() {
		reg.Register(ty)
	}
	return NewStore(newFakeRepo(), enc, reg)
}

func TestCreateGetRoundTrip(t *testing.T) {
	store := newTestStore(t)
	userID := uuid.New()
	ctx := context.Background()

	rec, err := store.Create(ctx, userID, "alice-basic", "httpBasicAuth", map[string]interface{}{
		"username": "alice", "password": "s3cret",
	}, nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	payload, err := store.Get(ctx, rec.ID, userID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if payload["username"] != "alice" || payload["password"] != "s3cret" {
		t.Fatalf("unexpected payload: %#v", payload)
	}
}

func TestCreateRejectsUnknownType(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Create(context.Background(), uuid.New(), "x", "no-such-type", map[string]interface{}{}, nil)
	if err == nil {
		t.Fatal("expected an error for unknown credential type")
	}
}

func TestCreateRejectsMissingRequiredProperty(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Create(context.Background(), uuid.New(), "x", "httpBasicAuth", map[string]interface{}{"username": "alice"}, nil)
	if err == nil {
		t.Fatal("expected validation error for missing password")
	}
}

func TestGetReturnsNilForNonOwner(t *testing.T) {
	store := newTestStore(t)
	owner := uuid.New()
	other := uuid.New()
	rec, _ := store.Create(context.Background(), owner, "x", "apiKey", map[string]interface{}{"apiKey": "k"}, nil)
	payload, err := store.Get(context.Background(), rec.ID, other)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if payload != nil {
		t.Fatal("expected nil payload for unauthorized user")
	}
}

func TestApplyAuthenticationHTTPBasic(t *testing.T) {
	store := newTestStore(t)
	req := &core.RequestDescriptor{URL: "https://x/y", Headers: map[string]string{}}
	err := store.ApplyAuthentication(req, "httpBasicAuth", map[string]interface{}{"username": "alice", "password": "s3cret"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "Basic YWxpY2U6czNjcmV0"
	if req.Headers["Authorization"] != want {
		t.Fatalf("got %q want %q", req.Headers["Authorization"], want)
	}
}

func TestSanitizeDropsDangerousKeys(t *testing.T) {
	payload := map[string]interface{}{
		"safe": "value",
		"__proto__": map[string]interface{}{
			"polluted": true,
		},
		"nested": map[string]interface{}{
			"constructor": "bad",
			"ok":          1,
		},
	}
	out := Sanitize(payload)
	if _, ok := out["__proto__"]; ok {
		t.Fatal("__proto__ must be dropped at top level")
	}
	nested := out["nested"].(map[string]interface{})
	if _, ok := nested["constructor"]; ok {
		t.Fatal("constructor must be dropped at nested level")
	}
	if nested["ok"] != 1 {
		t.Fatal("unrelated keys must be preserved")
	}
}
