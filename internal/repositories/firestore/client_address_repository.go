package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	domain "github.com/dulcepan/api/internal/domain"
	pfirestore "github.com/dulcepan/api/internal/platform/firestore"
)

const (
	clientAddressCollectionPattern = "clients/%s/addresses"
	clientAddressCollection        = "addresses"
)

// ClientAddressRepository persists delivery addresses nested under a client document.
type ClientAddressRepository struct {
	provider *pfirestore.Provider
}

// NewClientAddressRepository constructs a Firestore-backed client address repository.
func NewClientAddressRepository(provider *pfirestore.Provider) (*ClientAddressRepository, error) {
	if provider == nil {
		return nil, errors.New("client address repository requires firestore provider")
	}
	return &ClientAddressRepository{provider: provider}, nil
}

// Insert creates a new address document under the client.
func (r *ClientAddressRepository) Insert(ctx context.Context, address domain.ClientAddress) error {
	coll, err := r.collection(ctx, address.ClientID)
	if err != nil {
		return err
	}
	id := strings.TrimSpace(address.ID)
	if id == "" {
		return errors.New("client address repository: address id is required")
	}
	if _, err := coll.Doc(id).Create(ctx, encodeClientAddressDocument(address)); err != nil {
		return pfirestore.WrapError("clientAddresses.insert", err)
	}
	return nil
}

// Update overwrites the stored address, preserving the creation timestamp.
func (r *ClientAddressRepository) Update(ctx context.Context, address domain.ClientAddress) error {
	coll, err := r.collection(ctx, address.ClientID)
	if err != nil {
		return err
	}
	id := strings.TrimSpace(address.ID)
	if id == "" {
		return errors.New("client address repository: address id is required")
	}

	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		docRef := coll.Doc(id)
		snap, err := tx.Get(docRef)
		if err != nil {
			return err
		}
		var existing clientAddressDocument
		if err := snap.DataTo(&existing); err != nil {
			return fmt.Errorf("decode client address %s: %w", id, err)
		}
		doc := encodeClientAddressDocument(address)
		doc.CreatedAt = existing.CreatedAt
		return tx.Set(docRef, doc)
	})
	if err != nil {
		return pfirestore.WrapError("clientAddresses.update", err)
	}
	return nil
}

// Delete removes the specified address document.
func (r *ClientAddressRepository) Delete(ctx context.Context, clientID string, addressID string) error {
	coll, err := r.collection(ctx, clientID)
	if err != nil {
		return err
	}
	id := strings.TrimSpace(addressID)
	if id == "" {
		return errors.New("client address repository: address id is required")
	}
	if _, err := coll.Doc(id).Delete(ctx); err != nil {
		return pfirestore.WrapError("clientAddresses.delete", err)
	}
	return nil
}

// FindByID loads a single address belonging to the client.
func (r *ClientAddressRepository) FindByID(ctx context.Context, clientID string, addressID string) (domain.ClientAddress, error) {
	coll, err := r.collection(ctx, clientID)
	if err != nil {
		return domain.ClientAddress{}, err
	}
	id := strings.TrimSpace(addressID)
	if id == "" {
		return domain.ClientAddress{}, errors.New("client address repository: address id is required")
	}
	snap, err := coll.Doc(id).Get(ctx)
	if err != nil {
		return domain.ClientAddress{}, pfirestore.WrapError("clientAddresses.get", err)
	}
	var doc clientAddressDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.ClientAddress{}, fmt.Errorf("decode client address %s: %w", id, err)
	}
	return doc.toDomain(strings.TrimSpace(clientID), snap.Ref.ID), nil
}

// ListByClient returns all addresses for the client ordered by label.
func (r *ClientAddressRepository) ListByClient(ctx context.Context, clientID string) ([]domain.ClientAddress, error) {
	coll, err := r.collection(ctx, clientID)
	if err != nil {
		return nil, err
	}

	iter := coll.OrderBy("label", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	var results []domain.ClientAddress
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, pfirestore.WrapError("clientAddresses.list", err)
		}
		var doc clientAddressDocument
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("decode client address %s: %w", snap.Ref.ID, err)
		}
		results = append(results, doc.toDomain(strings.TrimSpace(clientID), snap.Ref.ID))
	}
	return results, nil
}

func (r *ClientAddressRepository) collection(ctx context.Context, clientID string) (*firestore.CollectionRef, error) {
	if r == nil || r.provider == nil {
		return nil, errors.New("client address repository not initialised")
	}
	id := strings.TrimSpace(clientID)
	if id == "" {
		return nil, errors.New("client address repository: client id is required")
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(fmt.Sprintf(clientAddressCollectionPattern, id)), nil
}

type clientAddressDocument struct {
	Label         string    `firestore:"label"`
	AddressLine1  string    `firestore:"addressLine1"`
	Latitude      *float64  `firestore:"latitude,omitempty"`
	Longitude     *float64  `firestore:"longitude,omitempty"`
	GoogleMapsURL string    `firestore:"googleMapsUrl,omitempty"`
	Notes         string    `firestore:"notes,omitempty"`
	CreatedAt     time.Time `firestore:"createdAt"`
	UpdatedAt     time.Time `firestore:"updatedAt"`
}

func encodeClientAddressDocument(address domain.ClientAddress) clientAddressDocument {
	doc := clientAddressDocument{
		Label:         strings.TrimSpace(address.Label),
		AddressLine1:  strings.TrimSpace(address.AddressLine1),
		Latitude:      cloneOptionalFloat(address.Latitude),
		Longitude:     cloneOptionalFloat(address.Longitude),
		GoogleMapsURL: strings.TrimSpace(address.GoogleMapsURL),
		Notes:         strings.TrimSpace(address.Notes),
		CreatedAt:     address.CreatedAt.UTC(),
		UpdatedAt:     address.UpdatedAt.UTC(),
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = doc.CreatedAt
	}
	return doc
}

func (d clientAddressDocument) toDomain(clientID, id string) domain.ClientAddress {
	return domain.ClientAddress{
		ID:            id,
		ClientID:      clientID,
		Label:         d.Label,
		AddressLine1:  d.AddressLine1,
		Latitude:      cloneOptionalFloat(d.Latitude),
		Longitude:     cloneOptionalFloat(d.Longitude),
		GoogleMapsURL: d.GoogleMapsURL,
		Notes:         d.Notes,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
}

func cloneOptionalFloat(value *float64) *float64 {
	if value == nil {
		return nil
	}
	cloned := *value
	return &cloned
}

func cloneOptionalString(value *string) *string {
	if value == nil {
		return nil
	}
	cloned := *value
	return &cloned
}
