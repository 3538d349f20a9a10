// Package repository adapts the GORM domain models to the narrow
// persistence contracts the execution engine and credential store are built
// against (engine.Repository, credential.Repository), built on the
// BaseRepository[T] pattern in domain/repositories.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/linkflow-ai/linkflow/internal/credential"
	"github.com/linkflow-ai/linkflow/internal/domain/models"
	"github.com/linkflow-ai/linkflow/internal/domain/repositories"
)

// CredentialRepository satisfies credential.Repository against the
// Credential/CredentialShare/WorkspaceMember tables. A credential's
// "workspace" doubles as its owning user's default team, since the schema
// scopes credentials to a workspace rather than a bare user (see DESIGN.md).
type CredentialRepository struct {
	creds  *repositories.BaseRepository[models.Credential]
	shares *repositories.BaseRepository[models.CredentialShare]
	db     *gorm.DB
}

func NewCredentialRepository(db *gorm.DB) *CredentialRepository {
	return &CredentialRepository{
		creds:  repositories.NewBaseRepository[models.Credential](db),
		shares: repositories.NewBaseRepository[models.CredentialShare](db),
		db:     db,
	}
}

func toRecord(m *models.Credential) *credential.Record {
	return &credential.Record{
		ID: m.ID, UserID: m.CreatedBy, Name: m.Name, Type: m.Type,
		Ciphertext: m.Data, ExpiresAt: m.ExpiresAt, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt,
	}
}

func fromRecord(rec *credential.Record) *models.Credential {
	return &models.Credential{
		ID: rec.ID, WorkspaceID: rec.UserID, CreatedBy: rec.UserID, Name: rec.Name, Type: rec.Type,
		Data: rec.Ciphertext, ExpiresAt: rec.ExpiresAt, CreatedAt: rec.CreatedAt, UpdatedAt: rec.UpdatedAt,
	}
}

func (r *CredentialRepository) Insert(ctx context.Context, rec *credential.Record) error {
	m := fromRecord(rec)
	if err := r.creds.Create(ctx, m); err != nil {
		return err
	}
	rec.ID = m.ID
	return nil
}

func (r *CredentialRepository) FindByID(ctx context.Context, id uuid.UUID) (*credential.Record, error) {
	m, err := r.creds.FindByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return toRecord(m), nil
}

func (r *CredentialRepository) FindByIDAndUser(ctx context.Context, id, userID uuid.UUID) (*credential.Record, error) {
	var m models.Credential
	err := r.db.WithContext(ctx).Where("id = ? AND created_by = ?", id, userID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return toRecord(&m), nil
}

func (r *CredentialRepository) FindByUser(ctx context.Context, userID uuid.UUID, filterByType string) ([]credential.Record, error) {
	q := r.db.WithContext(ctx).Where("created_by = ?", userID)
	if filterByType != "" {
		q = q.Where("type = ?", filterByType)
	}
	var rows []models.Credential
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]credential.Record, len(rows))
	for i := range rows {
		out[i] = *toRecord(&rows[i])
	}
	return out, nil
}

func (r *CredentialRepository) Update(ctx context.Context, rec *credential.Record) error {
	return r.db.WithContext(ctx).Model(&models.Credential{}).Where("id = ?", rec.ID).Updates(map[string]interface{}{
		"name": rec.Name, "type": rec.Type, "data": rec.Ciphertext, "expires_at": rec.ExpiresAt, "updated_at": time.Now(),
	}).Error
}

func (r *CredentialRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.creds.Delete(ctx, id)
}

func (r *CredentialRepository) FindExpiring(ctx context.Context, userID uuid.UUID, withinDays int) ([]credential.Record, error) {
	deadline := time.Now().AddDate(0, 0, withinDays)
	var rows []models.Credential
	err := r.db.WithContext(ctx).
		Where("created_by = ? AND expires_at IS NOT NULL AND expires_at <= ?", userID, deadline).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]credential.Record, len(rows))
	for i := range rows {
		out[i] = *toRecord(&rows[i])
	}
	return out, nil
}

func (r *CredentialRepository) ExistsByName(ctx context.Context, userID uuid.UUID, name string, excludeID *uuid.UUID) (bool, error) {
	q := r.db.WithContext(ctx).Model(&models.Credential{}).Where("created_by = ? AND name = ?", userID, name)
	if excludeID != nil {
		q = q.Where("id <> ?", *excludeID)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *CredentialRepository) FindShares(ctx context.Context, credentialID uuid.UUID) ([]credential.Share, error) {
	var rows []models.CredentialShare
	if err := r.db.WithContext(ctx).Where("credential_id = ?", credentialID).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]credential.Share, len(rows))
	for i, m := range rows {
		out[i] = credential.Share{
			CredentialID: m.CredentialID, UserID: m.UserID, TeamID: m.TeamID,
			Permission: credential.SharePermission(m.Permission),
		}
	}
	return out, nil
}

func (r *CredentialRepository) InsertShare(ctx context.Context, share credential.Share) error {
	return r.shares.Create(ctx, &models.CredentialShare{
		CredentialID: share.CredentialID, UserID: share.UserID, TeamID: share.TeamID,
		Permission: string(share.Permission), CreatedAt: time.Now(),
	})
}

func (r *CredentialRepository) DeleteShare(ctx context.Context, credentialID uuid.UUID, userID *uuid.UUID, teamID *uuid.UUID) error {
	q := r.db.WithContext(ctx).Where("credential_id = ?", credentialID)
	if userID != nil {
		q = q.Where("user_id = ?", *userID)
	}
	if teamID != nil {
		q = q.Where("team_id = ?", *teamID)
	}
	return q.Delete(&models.CredentialShare{}).Error
}

// UserTeamIDs treats workspace membership as team membership: the set of
// workspace IDs a user belongs to.
func (r *CredentialRepository) UserTeamIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).Model(&models.WorkspaceMember{}).
		Where("user_id = ?", userID).Pluck("workspace_id", &ids).Error
	return ids, err
}
