package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	domain "github.com/dulcepan/api/internal/domain"
)

type clientServiceFixture struct {
	clients   *stubClientRepo
	addresses *stubAddressRepo
	now       time.Time
	service   ClientService
}

func newClientServiceFixture(t *testing.T) *clientServiceFixture {
	t.Helper()

	f := &clientServiceFixture{
		clients:   &stubClientRepo{},
		addresses: &stubAddressRepo{},
		now:       time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC),
	}

	counter := 0
	service, err := NewClientService(ClientServiceDeps{
		Clients:   f.clients,
		Addresses: f.addresses,
		Clock:     func() time.Time { return f.now },
		NewID: func() string {
			counter++
			return fmt.Sprintf("01CLIENT%08d", counter)
		},
	})
	if err != nil {
		t.Fatalf("NewClientService: %v", err)
	}
	f.service = service
	return f
}

func TestClientServiceCreate(t *testing.T) {
	f := newClientServiceFixture(t)
	var inserted domain.Client
	f.clients.insertFn = func(ctx context.Context, client domain.Client) error {
		inserted = client
		return nil
	}

	client, err := f.service.Create(context.Background(), UpsertClientCommand{
		Name:  "  Marta Lopez  ",
		Phone: "+54 11 5555-0101",
		Notes: "Prefiere <b>chocolate</b>",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !strings.HasPrefix(client.ID, "cli_") {
		t.Fatalf("expected prefixed id, got %q", client.ID)
	}
	if client.Name != "Marta Lopez" {
		t.Fatalf("expected trimmed name, got %q", client.Name)
	}
	if strings.Contains(inserted.Notes, "<b>") {
		t.Fatalf("expected markup stripped from notes, got %q", inserted.Notes)
	}
	if inserted.CreatedAt != f.now || inserted.UpdatedAt != f.now {
		t.Fatalf("expected clock timestamps, got %+v", inserted)
	}
}

func TestClientServiceCreateRequiresName(t *testing.T) {
	f := newClientServiceFixture(t)

	if _, err := f.service.Create(context.Background(), UpsertClientCommand{Name: "   "}); !errors.Is(err, ErrClientInvalidInput) {
		t.Fatalf("expected ErrClientInvalidInput, got %v", err)
	}
}

func TestClientServiceUpdatePreservesCreatedAt(t *testing.T) {
	f := newClientServiceFixture(t)
	createdAt := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	f.clients.findFn = func(ctx context.Context, clientID string) (domain.Client, error) {
		return domain.Client{ID: clientID, Name: "Old", CreatedAt: createdAt}, nil
	}
	var updated domain.Client
	f.clients.updateFn = func(ctx context.Context, client domain.Client) error {
		updated = client
		return nil
	}

	client, err := f.service.Update(context.Background(), UpsertClientCommand{ClientID: "cli_1", Name: "New Name"})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if client.Name != "New Name" {
		t.Fatalf("expected updated name, got %q", client.Name)
	}
	if updated.CreatedAt != createdAt {
		t.Fatalf("expected creation timestamp preserved, got %v", updated.CreatedAt)
	}
	if updated.UpdatedAt != f.now {
		t.Fatalf("expected updated timestamp bumped, got %v", updated.UpdatedAt)
	}
}

func TestClientServiceUpdateMapsNotFound(t *testing.T) {
	f := newClientServiceFixture(t)
	f.clients.findFn = func(ctx context.Context, clientID string) (domain.Client, error) {
		return domain.Client{}, stubRepoError{notFound: true}
	}

	if _, err := f.service.Update(context.Background(), UpsertClientCommand{ClientID: "cli_x", Name: "N"}); !errors.Is(err, ErrClientNotFound) {
		t.Fatalf("expected ErrClientNotFound, got %v", err)
	}
}

func TestClientServiceDeleteSoftDeletes(t *testing.T) {
	f := newClientServiceFixture(t)
	var deletedAt time.Time
	f.clients.softDeleteFn = func(ctx context.Context, clientID string, at time.Time) error {
		deletedAt = at
		return nil
	}

	if err := f.service.Delete(context.Background(), "cli_1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if deletedAt != f.now {
		t.Fatalf("expected soft delete at clock time, got %v", deletedAt)
	}
}

func TestClientServiceRestore(t *testing.T) {
	f := newClientServiceFixture(t)
	f.clients.restoreFn = func(ctx context.Context, clientID string) (domain.Client, error) {
		return domain.Client{ID: clientID, Name: "Restored"}, nil
	}

	client, err := f.service.Restore(context.Background(), "cli_1")
	if err != nil {
		t.Fatalf("Restore: %v", err)
	}
	if client.Name != "Restored" || client.DeletedAt != nil {
		t.Fatalf("expected restored client, got %+v", client)
	}
}

func TestClientServiceCreateAddress(t *testing.T) {
	f := newClientServiceFixture(t)
	var inserted domain.ClientAddress
	f.addresses.insertFn = func(ctx context.Context, address domain.ClientAddress) error {
		inserted = address
		return nil
	}

	lat, lng := -34.6037, -58.3816
	address, err := f.service.CreateAddress(context.Background(), UpsertAddressCommand{
		ClientID:     "cli_1",
		Label:        "Casa",
		AddressLine1: "Av. Rivadavia 1234",
		Latitude:     &lat,
		Longitude:    &lng,
	})
	if err != nil {
		t.Fatalf("CreateAddress: %v", err)
	}
	if !strings.HasPrefix(address.ID, "adr_") {
		t.Fatalf("expected prefixed address id, got %q", address.ID)
	}
	if inserted.ClientID != "cli_1" || inserted.Label != "Casa" {
		t.Fatalf("unexpected persisted address %+v", inserted)
	}
}

func TestClientServiceCreateAddressValidation(t *testing.T) {
	f := newClientServiceFixture(t)

	lat := -34.6037
	cases := map[string]UpsertAddressCommand{
		"missing client": {AddressLine1: "Calle 1"},
		"missing line":   {ClientID: "cli_1"},
		"lonely coord":   {ClientID: "cli_1", AddressLine1: "Calle 1", Latitude: &lat},
	}
	for name, cmd := range cases {
		if _, err := f.service.CreateAddress(context.Background(), cmd); !errors.Is(err, ErrClientInvalidInput) {
			t.Fatalf("%s: expected ErrClientInvalidInput, got %v", name, err)
		}
	}

	f.clients.findFn = func(ctx context.Context, clientID string) (domain.Client, error) {
		return domain.Client{}, stubRepoError{notFound: true}
	}
	if _, err := f.service.CreateAddress(context.Background(), UpsertAddressCommand{ClientID: "cli_x", AddressLine1: "Calle 1"}); !errors.Is(err, ErrClientNotFound) {
		t.Fatalf("expected ErrClientNotFound for unknown owner, got %v", err)
	}
}

func TestClientServiceUpdateAddressMapsNotFound(t *testing.T) {
	f := newClientServiceFixture(t)
	f.addresses.findFn = func(ctx context.Context, clientID string, addressID string) (domain.ClientAddress, error) {
		return domain.ClientAddress{}, stubRepoError{notFound: true}
	}

	cmd := UpsertAddressCommand{ClientID: "cli_1", AddressID: "adr_x", AddressLine1: "Calle 1"}
	if _, err := f.service.UpdateAddress(context.Background(), cmd); !errors.Is(err, ErrAddressNotFound) {
		t.Fatalf("expected ErrAddressNotFound, got %v", err)
	}
}

func TestClientServiceListAddressesChecksOwner(t *testing.T) {
	f := newClientServiceFixture(t)
	f.clients.findFn = func(ctx context.Context, clientID string) (domain.Client, error) {
		return domain.Client{}, stubRepoError{notFound: true}
	}

	if _, err := f.service.ListAddresses(context.Background(), "cli_x"); !errors.Is(err, ErrClientNotFound) {
		t.Fatalf("expected ErrClientNotFound, got %v", err)
	}
}
