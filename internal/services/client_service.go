package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/oklog/ulid/v2"

	domain "github.com/dulcepan/api/internal/domain"
	"github.com/dulcepan/api/internal/repositories"
)

const (
	clientIDPrefix  = "cli_"
	addressIDPrefix = "adr_"
)

var (
	// ErrClientInvalidInput signals the caller provided invalid data.
	ErrClientInvalidInput = errors.New("client: invalid input")
	// ErrClientNotFound indicates the client could not be located.
	ErrClientNotFound = errors.New("client: not found")
	// ErrClientConflict indicates a duplicate or concurrent write collision.
	ErrClientConflict = errors.New("client: conflict")
	// ErrAddressNotFound indicates the address could not be located for the client.
	ErrAddressNotFound = errors.New("client: address not found")
)

// ClientServiceDeps bundles collaborators for the client service.
type ClientServiceDeps struct {
	Clients   repositories.ClientRepository
	Addresses repositories.ClientAddressRepository
	Clock     func() time.Time
	NewID     func() string
	Logger    func(ctx context.Context, event string, fields map[string]any)
}

type clientService struct {
	clients   repositories.ClientRepository
	addresses repositories.ClientAddressRepository
	sanitizer *bluemonday.Policy
	clock     func() time.Time
	newID     func() string
	logger    func(context.Context, string, map[string]any)
}

// NewClientService wires dependencies into a concrete ClientService implementation.
func NewClientService(deps ClientServiceDeps) (ClientService, error) {
	if deps.Clients == nil {
		return nil, errors.New("client service: client repository is required")
	}
	if deps.Addresses == nil {
		return nil, errors.New("client service: address repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.NewID
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &clientService{
		clients:   deps.Clients,
		addresses: deps.Addresses,
		sanitizer: bluemonday.StrictPolicy(),
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

func (s *clientService) Create(ctx context.Context, cmd UpsertClientCommand) (Client, error) {
	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		return Client{}, fmt.Errorf("%w: name is required", ErrClientInvalidInput)
	}

	now := s.clock()
	client := Client{
		ID:        clientIDPrefix + s.newID(),
		Name:      name,
		Phone:     strings.TrimSpace(cmd.Phone),
		Email:     strings.TrimSpace(cmd.Email),
		Notes:     s.sanitizer.Sanitize(strings.TrimSpace(cmd.Notes)),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.clients.Insert(ctx, domain.Client(client)); err != nil {
		return Client{}, s.mapRepositoryError(err)
	}
	return client, nil
}

func (s *clientService) GetClient(ctx context.Context, clientID string) (Client, error) {
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return Client{}, fmt.Errorf("%w: client id is required", ErrClientInvalidInput)
	}
	client, err := s.clients.FindByID(ctx, clientID)
	if err != nil {
		return Client{}, s.mapRepositoryError(err)
	}
	return client, nil
}

func (s *clientService) ListClients(ctx context.Context, filter ClientListFilter) (domain.CursorPage[Client], error) {
	page, err := s.clients.List(ctx, filter)
	if err != nil {
		return domain.CursorPage[Client]{}, s.mapRepositoryError(err)
	}
	return page, nil
}

func (s *clientService) Update(ctx context.Context, cmd UpsertClientCommand) (Client, error) {
	clientID := strings.TrimSpace(cmd.ClientID)
	if clientID == "" {
		return Client{}, fmt.Errorf("%w: client id is required", ErrClientInvalidInput)
	}
	name := strings.TrimSpace(cmd.Name)
	if name == "" {
		return Client{}, fmt.Errorf("%w: name is required", ErrClientInvalidInput)
	}

	existing, err := s.clients.FindByID(ctx, clientID)
	if err != nil {
		return Client{}, s.mapRepositoryError(err)
	}

	existing.Name = name
	existing.Phone = strings.TrimSpace(cmd.Phone)
	existing.Email = strings.TrimSpace(cmd.Email)
	existing.Notes = s.sanitizer.Sanitize(strings.TrimSpace(cmd.Notes))
	existing.UpdatedAt = s.clock()

	if err := s.clients.Update(ctx, existing); err != nil {
		return Client{}, s.mapRepositoryError(err)
	}
	return existing, nil
}

// Delete soft-deletes the client. Orders keep the denormalized client name,
// so open orders survive the deletion.
func (s *clientService) Delete(ctx context.Context, clientID string) error {
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return fmt.Errorf("%w: client id is required", ErrClientInvalidInput)
	}
	if err := s.clients.SoftDelete(ctx, clientID, s.clock()); err != nil {
		return s.mapRepositoryError(err)
	}
	return nil
}

func (s *clientService) Restore(ctx context.Context, clientID string) (Client, error) {
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return Client{}, fmt.Errorf("%w: client id is required", ErrClientInvalidInput)
	}
	client, err := s.clients.Restore(ctx, clientID)
	if err != nil {
		return Client{}, s.mapRepositoryError(err)
	}
	return client, nil
}

// ForceDelete permanently removes the client and its addresses.
func (s *clientService) ForceDelete(ctx context.Context, clientID string) error {
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return fmt.Errorf("%w: client id is required", ErrClientInvalidInput)
	}
	if err := s.clients.ForceDelete(ctx, clientID); err != nil {
		return s.mapRepositoryError(err)
	}
	return nil
}

func (s *clientService) ListAddresses(ctx context.Context, clientID string) ([]ClientAddress, error) {
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return nil, fmt.Errorf("%w: client id is required", ErrClientInvalidInput)
	}
	if _, err := s.clients.FindByID(ctx, clientID); err != nil {
		return nil, s.mapRepositoryError(err)
	}
	addresses, err := s.addresses.ListByClient(ctx, clientID)
	if err != nil {
		return nil, s.mapRepositoryError(err)
	}
	return addresses, nil
}

func (s *clientService) CreateAddress(ctx context.Context, cmd UpsertAddressCommand) (ClientAddress, error) {
	address, err := s.validateAddress(ctx, cmd, false)
	if err != nil {
		return ClientAddress{}, err
	}

	now := s.clock()
	address.ID = addressIDPrefix + s.newID()
	address.CreatedAt = now
	address.UpdatedAt = now

	if err := s.addresses.Insert(ctx, domain.ClientAddress(address)); err != nil {
		return ClientAddress{}, s.mapRepositoryError(err)
	}
	return address, nil
}

func (s *clientService) UpdateAddress(ctx context.Context, cmd UpsertAddressCommand) (ClientAddress, error) {
	address, err := s.validateAddress(ctx, cmd, true)
	if err != nil {
		return ClientAddress{}, err
	}

	existing, err := s.addresses.FindByID(ctx, cmd.ClientID, cmd.AddressID)
	if err != nil {
		return ClientAddress{}, s.mapAddressError(err)
	}

	address.ID = existing.ID
	address.CreatedAt = existing.CreatedAt
	address.UpdatedAt = s.clock()

	if err := s.addresses.Update(ctx, domain.ClientAddress(address)); err != nil {
		return ClientAddress{}, s.mapAddressError(err)
	}
	return address, nil
}

func (s *clientService) DeleteAddress(ctx context.Context, clientID string, addressID string) error {
	clientID = strings.TrimSpace(clientID)
	addressID = strings.TrimSpace(addressID)
	if clientID == "" || addressID == "" {
		return fmt.Errorf("%w: client id and address id are required", ErrClientInvalidInput)
	}
	if err := s.addresses.Delete(ctx, clientID, addressID); err != nil {
		return s.mapAddressError(err)
	}
	return nil
}

func (s *clientService) validateAddress(ctx context.Context, cmd UpsertAddressCommand, requireID bool) (ClientAddress, error) {
	clientID := strings.TrimSpace(cmd.ClientID)
	if clientID == "" {
		return ClientAddress{}, fmt.Errorf("%w: client id is required", ErrClientInvalidInput)
	}
	if requireID && strings.TrimSpace(cmd.AddressID) == "" {
		return ClientAddress{}, fmt.Errorf("%w: address id is required", ErrClientInvalidInput)
	}
	line := strings.TrimSpace(cmd.AddressLine1)
	if line == "" {
		return ClientAddress{}, fmt.Errorf("%w: address line is required", ErrClientInvalidInput)
	}
	if (cmd.Latitude == nil) != (cmd.Longitude == nil) {
		return ClientAddress{}, fmt.Errorf("%w: latitude and longitude must be provided together", ErrClientInvalidInput)
	}

	if _, err := s.clients.FindByID(ctx, clientID); err != nil {
		return ClientAddress{}, s.mapRepositoryError(err)
	}

	return ClientAddress{
		ClientID:      clientID,
		Label:         strings.TrimSpace(cmd.Label),
		AddressLine1:  line,
		Latitude:      cmd.Latitude,
		Longitude:     cmd.Longitude,
		GoogleMapsURL: strings.TrimSpace(cmd.GoogleMapsURL),
		Notes:         s.sanitizer.Sanitize(strings.TrimSpace(cmd.Notes)),
	}, nil
}

func (s *clientService) mapRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrClientNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrClientConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("client: repository unavailable: %w", err)
		}
	}
	return err
}

func (s *clientService) mapAddressError(err error) error {
	if err == nil {
		return nil
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) && repoErr.IsNotFound() {
		return fmt.Errorf("%w: %v", ErrAddressNotFound, err)
	}
	return s.mapRepositoryError(err)
}
