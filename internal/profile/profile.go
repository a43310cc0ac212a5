// Package profile reads and refreshes the "users/{uid}" documents.
package profile

import (
	"context"
	"errors"
	"fmt"

	"github.com/julianstephens/daybook/internal/constants"
	"github.com/julianstephens/daybook/internal/models"
	"github.com/julianstephens/daybook/internal/storage"
)

// Get returns the profile of uid, or nil when none has been written.
func Get(ctx context.Context, store storage.Provider, uid string) (*models.Profile, error) {
	doc, err := store.Get(ctx, constants.CollectionUsers, uid)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}
	var p models.Profile
	if err := doc.Decode(&p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Ensure creates the profile for id or refreshes its display fields and
// lastSeenAt, keeping the original createdAt.
func Ensure(ctx context.Context, store storage.Provider, id models.Identity) (*models.Profile, error) {
	patch := storage.Fields{
		constants.FieldEmail:       id.Email,
		constants.FieldDisplayName: id.DisplayName,
		constants.FieldLastSeenAt:  storage.ServerTimestamp,
	}
	for attempt := 0; attempt < constants.MaxConflictRetries; attempt++ {
		doc, err := store.Get(ctx, constants.CollectionUsers, id.UID)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			fields := patch.Clone()
			fields[constants.FieldCreatedAt] = storage.ServerTimestamp
			if _, err := store.Set(ctx, constants.CollectionUsers, id.UID, fields); err != nil {
				return nil, fmt.Errorf("failed to create profile: %w", err)
			}
			return Get(ctx, store, id.UID)
		case err != nil:
			return nil, fmt.Errorf("failed to read profile: %w", err)
		}

		_, err = store.Update(ctx, constants.CollectionUsers, id.UID, patch, storage.IfRevision(doc.Revision))
		if errors.Is(err, storage.ErrConflict) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to refresh profile: %w", err)
		}
		return Get(ctx, store, id.UID)
	}
	return nil, fmt.Errorf("failed to refresh profile: %w", storage.ErrConflict)
}
