package firestore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	domain "github.com/dulcepan/api/internal/domain"
	pfirestore "github.com/dulcepan/api/internal/platform/firestore"
)

const deviceCollection = "devices"

// DeviceRepository stores staff device tokens registered for push reminders.
// Documents are keyed by a hash of the token so registration is idempotent.
type DeviceRepository struct {
	provider *pfirestore.Provider
}

// NewDeviceRepository constructs a Firestore-backed device repository.
func NewDeviceRepository(provider *pfirestore.Provider) (*DeviceRepository, error) {
	if provider == nil {
		return nil, errors.New("device repository requires firestore provider")
	}
	return &DeviceRepository{provider: provider}, nil
}

// Upsert registers a token, replacing any previous registration for it.
func (r *DeviceRepository) Upsert(ctx context.Context, device domain.Device) error {
	client, err := r.client(ctx)
	if err != nil {
		return err
	}
	token := strings.TrimSpace(device.Token)
	if token == "" {
		return errors.New("device repository: token is required")
	}

	doc := deviceDocument{
		Token:        token,
		Platform:     strings.TrimSpace(device.Platform),
		RegisteredAt: device.RegisteredAt.UTC(),
	}
	if doc.RegisteredAt.IsZero() {
		doc.RegisteredAt = time.Now().UTC()
	}
	if _, err := client.Collection(deviceCollection).Doc(deviceDocID(token)).Set(ctx, doc); err != nil {
		return pfirestore.WrapError("devices.upsert", err)
	}
	return nil
}

// Delete unregisters the token. Removing an unknown token is not an error.
func (r *DeviceRepository) Delete(ctx context.Context, token string) error {
	client, err := r.client(ctx)
	if err != nil {
		return err
	}
	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return errors.New("device repository: token is required")
	}
	if _, err := client.Collection(deviceCollection).Doc(deviceDocID(trimmed)).Delete(ctx); err != nil {
		return pfirestore.WrapError("devices.delete", err)
	}
	return nil
}

// ListAll returns every registered device.
func (r *DeviceRepository) ListAll(ctx context.Context) ([]domain.Device, error) {
	client, err := r.client(ctx)
	if err != nil {
		return nil, err
	}

	iter := client.Collection(deviceCollection).Documents(ctx)
	defer iter.Stop()

	var results []domain.Device
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, pfirestore.WrapError("devices.list", err)
		}
		var doc deviceDocument
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode device %s: %w", snap.Ref.ID, err)
		}
		results = append(results, domain.Device{
			Token:        doc.Token,
			Platform:     doc.Platform,
			RegisteredAt: doc.RegisteredAt,
		})
	}
	return results, nil
}

func (r *DeviceRepository) client(ctx context.Context) (*firestore.Client, error) {
	if r == nil || r.provider == nil {
		return nil, errors.New("device repository not initialised")
	}
	return r.provider.Client(ctx)
}

type deviceDocument struct {
	Token        string    `firestore:"token"`
	Platform     string    `firestore:"platform,omitempty"`
	RegisteredAt time.Time `firestore:"registeredAt"`
}

func deviceDocID(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
