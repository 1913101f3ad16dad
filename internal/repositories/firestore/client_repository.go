package firestore

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	domain "github.com/dulcepan/api/internal/domain"
	pfirestore "github.com/dulcepan/api/internal/platform/firestore"
	"github.com/dulcepan/api/internal/repositories"
)

const clientCollection = "clients"

// ClientRepository persists bakery clients in Firestore with soft-delete support.
type ClientRepository struct {
	provider *pfirestore.Provider
}

// NewClientRepository constructs a Firestore-backed client repository.
func NewClientRepository(provider *pfirestore.Provider) (*ClientRepository, error) {
	if provider == nil {
		return nil, errors.New("client repository requires firestore provider")
	}
	return &ClientRepository{provider: provider}, nil
}

// Insert creates a new client document, failing when the id already exists.
func (r *ClientRepository) Insert(ctx context.Context, client domain.Client) error {
	coll, err := r.collection(ctx)
	if err != nil {
		return err
	}
	id := strings.TrimSpace(client.ID)
	if id == "" {
		return errors.New("client repository: client id is required")
	}
	doc := encodeClientDocument(client)
	if _, err := coll.Doc(id).Create(ctx, doc); err != nil {
		return pfirestore.WrapError("clients.insert", err)
	}
	return nil
}

// Update overwrites the stored client, preserving the creation timestamp.
func (r *ClientRepository) Update(ctx context.Context, client domain.Client) error {
	coll, err := r.collection(ctx)
	if err != nil {
		return err
	}
	id := strings.TrimSpace(client.ID)
	if id == "" {
		return errors.New("client repository: client id is required")
	}

	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		docRef := coll.Doc(id)
		snap, err := tx.Get(docRef)
		if err != nil {
			return err
		}
		var existing clientDocument
		if err := snap.DataTo(&existing); err != nil {
			return fmt.Errorf("decode client %s: %w", id, err)
		}
		doc := encodeClientDocument(client)
		doc.CreatedAt = existing.CreatedAt
		doc.DeletedAt = existing.DeletedAt
		return tx.Set(docRef, doc)
	})
	if err != nil {
		return pfirestore.WrapError("clients.update", err)
	}
	return nil
}

// FindByID returns the client regardless of its trashed state.
func (r *ClientRepository) FindByID(ctx context.Context, clientID string) (domain.Client, error) {
	coll, err := r.collection(ctx)
	if err != nil {
		return domain.Client{}, err
	}
	id := strings.TrimSpace(clientID)
	if id == "" {
		return domain.Client{}, errors.New("client repository: client id is required")
	}
	snap, err := coll.Doc(id).Get(ctx)
	if err != nil {
		return domain.Client{}, pfirestore.WrapError("clients.get", err)
	}
	return decodeClientSnapshot(snap)
}

// List returns live clients by default, or only trashed ones when the filter
// asks for them, ordered by name.
func (r *ClientRepository) List(ctx context.Context, filter repositories.ClientListFilter) (domain.CursorPage[domain.Client], error) {
	coll, err := r.collection(ctx)
	if err != nil {
		return domain.CursorPage[domain.Client]{}, err
	}

	limit := filter.Pagination.PageSize
	if limit < 0 {
		limit = 0
	}
	fetchLimit := limit
	if limit > 0 {
		fetchLimit = limit + 1
	}

	// Soft-delete filtering happens in memory: Firestore cannot combine a
	// missing-field check with the name ordering used here.
	query := coll.OrderBy("nameLower", firestore.Asc).OrderBy(firestore.DocumentID, firestore.Asc)
	if token := strings.TrimSpace(filter.Pagination.PageToken); token != "" {
		tokenName, tokenID, err := decodeClientListToken(token)
		if err != nil {
			return domain.CursorPage[domain.Client]{}, fmt.Errorf("client repository: invalid page token: %w", err)
		}
		query = query.StartAfter(tokenName, tokenID)
	}

	search := strings.ToLower(strings.TrimSpace(filter.Search))

	iter := query.Documents(ctx)
	defer iter.Stop()

	var rows []domain.Client
	lastName := ""
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return domain.CursorPage[domain.Client]{}, pfirestore.WrapError("clients.list", err)
		}
		client, err := decodeClientSnapshot(snap)
		if err != nil {
			return domain.CursorPage[domain.Client]{}, err
		}
		if client.IsTrashed() != filter.Trashed {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(client.Name), search) {
			continue
		}
		rows = append(rows, client)
		lastName = strings.ToLower(client.Name)
		if fetchLimit > 0 && len(rows) == fetchLimit {
			break
		}
	}

	nextToken := ""
	if limit > 0 && len(rows) == fetchLimit {
		last := rows[len(rows)-1]
		nextToken = encodeClientListToken(lastName, last.ID)
		rows = rows[:len(rows)-1]
	}

	return domain.CursorPage[domain.Client]{
		Items:         rows,
		NextPageToken: nextToken,
	}, nil
}

// SoftDelete marks the client as trashed without removing its documents.
func (r *ClientRepository) SoftDelete(ctx context.Context, clientID string, deletedAt time.Time) error {
	coll, err := r.collection(ctx)
	if err != nil {
		return err
	}
	id := strings.TrimSpace(clientID)
	if id == "" {
		return errors.New("client repository: client id is required")
	}
	when := deletedAt.UTC()
	if when.IsZero() {
		when = time.Now().UTC()
	}
	_, err = coll.Doc(id).Update(ctx, []firestore.Update{
		{Path: "deletedAt", Value: when},
		{Path: "updatedAt", Value: when},
	})
	if err != nil {
		return pfirestore.WrapError("clients.softDelete", err)
	}
	return nil
}

// Restore clears the trashed marker and returns the restored client.
func (r *ClientRepository) Restore(ctx context.Context, clientID string) (domain.Client, error) {
	coll, err := r.collection(ctx)
	if err != nil {
		return domain.Client{}, err
	}
	id := strings.TrimSpace(clientID)
	if id == "" {
		return domain.Client{}, errors.New("client repository: client id is required")
	}

	var restored domain.Client
	err = r.provider.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		docRef := coll.Doc(id)
		snap, err := tx.Get(docRef)
		if err != nil {
			return err
		}
		var doc clientDocument
		if err := snap.DataTo(&doc); err != nil {
			return fmt.Errorf("decode client %s: %w", id, err)
		}
		doc.DeletedAt = nil
		doc.UpdatedAt = time.Now().UTC()
		if err := tx.Set(docRef, doc); err != nil {
			return err
		}
		restored = doc.toDomain(id)
		return nil
	})
	if err != nil {
		return domain.Client{}, pfirestore.WrapError("clients.restore", err)
	}
	return restored, nil
}

// ForceDelete removes the client document and its address subcollection.
func (r *ClientRepository) ForceDelete(ctx context.Context, clientID string) error {
	coll, err := r.collection(ctx)
	if err != nil {
		return err
	}
	id := strings.TrimSpace(clientID)
	if id == "" {
		return errors.New("client repository: client id is required")
	}

	docRef := coll.Doc(id)
	addrIter := docRef.Collection(clientAddressCollection).Documents(ctx)
	defer addrIter.Stop()
	for {
		snap, err := addrIter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return pfirestore.WrapError("clients.forceDelete", err)
		}
		if _, err := snap.Ref.Delete(ctx); err != nil {
			return pfirestore.WrapError("clients.forceDelete", err)
		}
	}
	if _, err := docRef.Delete(ctx); err != nil {
		return pfirestore.WrapError("clients.forceDelete", err)
	}
	return nil
}

func (r *ClientRepository) collection(ctx context.Context) (*firestore.CollectionRef, error) {
	if r == nil || r.provider == nil {
		return nil, errors.New("client repository not initialised")
	}
	client, err := r.provider.Client(ctx)
	if err != nil {
		return nil, err
	}
	return client.Collection(clientCollection), nil
}

type clientDocument struct {
	Name      string     `firestore:"name"`
	NameLower string     `firestore:"nameLower"`
	Phone     string     `firestore:"phone,omitempty"`
	Email     string     `firestore:"email,omitempty"`
	Notes     string     `firestore:"notes,omitempty"`
	CreatedAt time.Time  `firestore:"createdAt"`
	UpdatedAt time.Time  `firestore:"updatedAt"`
	DeletedAt *time.Time `firestore:"deletedAt,omitempty"`
}

func encodeClientDocument(client domain.Client) clientDocument {
	name := strings.TrimSpace(client.Name)
	doc := clientDocument{
		Name:      name,
		NameLower: strings.ToLower(name),
		Phone:     strings.TrimSpace(client.Phone),
		Email:     strings.TrimSpace(client.Email),
		Notes:     strings.TrimSpace(client.Notes),
		CreatedAt: client.CreatedAt.UTC(),
		UpdatedAt: client.UpdatedAt.UTC(),
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = doc.CreatedAt
	}
	if client.DeletedAt != nil {
		deleted := client.DeletedAt.UTC()
		doc.DeletedAt = &deleted
	}
	return doc
}

func (d clientDocument) toDomain(id string) domain.Client {
	client := domain.Client{
		ID:        id,
		Name:      d.Name,
		Phone:     d.Phone,
		Email:     d.Email,
		Notes:     d.Notes,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
	if d.DeletedAt != nil {
		deleted := *d.DeletedAt
		client.DeletedAt = &deleted
	}
	return client
}

func decodeClientSnapshot(snap *firestore.DocumentSnapshot) (domain.Client, error) {
	var doc clientDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.Client{}, fmt.Errorf("decode client %s: %w", snap.Ref.ID, err)
	}
	return doc.toDomain(snap.Ref.ID), nil
}

func encodeClientListToken(nameLower, docID string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(nameLower + "|" + docID))
}

func decodeClientListToken(token string) (string, string, error) {
	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", "", err
	}
	parts := strings.SplitN(string(data), "|", 2)
	if len(parts) != 2 {
		return "", "", errors.New("invalid token structure")
	}
	return parts[0], parts[1], nil
}
