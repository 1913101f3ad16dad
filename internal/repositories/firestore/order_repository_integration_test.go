//go:build integration

package firestore

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/exec"
	"strings"
	"testing"
	"time"

	domain "github.com/dulcepan/api/internal/domain"
	pconfig "github.com/dulcepan/api/internal/platform/config"
	pfirestore "github.com/dulcepan/api/internal/platform/firestore"
	"github.com/dulcepan/api/internal/repositories"
)

func TestOrderRepositoryIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test skipped in short mode")
	}

	if _, err := exec.LookPath("docker"); err != nil {
		t.Skip("docker not available: " + err.Error())
	}

	ensureDockerDaemon(t)

	port := freePort(t)
	endpoint := fmt.Sprintf("127.0.0.1:%d", port)
	containerID := startFirestoreEmulator(t, port)
	t.Cleanup(func() { stopContainer(containerID) })

	waitForEndpoint(t, endpoint, 30*time.Second)

	cfg := pconfig.FirestoreConfig{
		ProjectID:    "orders-test",
		EmulatorHost: endpoint,
	}

	provider := pfirestore.NewProvider(cfg)
	t.Cleanup(func() {
		_ = provider.Close(context.Background())
	})

	repo, err := NewOrderRepository(provider)
	if err != nil {
		t.Fatalf("new order repository: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	scheduled := time.Date(2026, 9, 12, 0, 0, 0, 0, time.UTC)

	order := domain.Order{
		ID:            "ord_it_1",
		ClientID:      "cli_1",
		ClientName:    "Marta",
		Status:        domain.OrderStatusConfirmed,
		ScheduledDate: scheduled,
		DeliveryCost:  25_00,
		Total:         325_00,
		Deposit:       100_00,
		Notes:         "sin azucar",
		Items: []domain.OrderItem{
			{ID: "itm_1", ProductID: "prod_torta", ProductName: "Torta de chocolate", Quantity: 2, BasePrice: 160_00, Adjustments: -10_00, UnitPrice: 150_00, CustomizationNotes: "sin merengue", CreatedAt: now},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	created, err := repo.Create(ctx, order)
	if err != nil {
		t.Fatalf("create order: %v", err)
	}
	if created.Deposit != 100_00 {
		t.Fatalf("expected deposit preserved, got %d", created.Deposit)
	}

	loaded, err := repo.FindByID(ctx, "ord_it_1")
	if err != nil {
		t.Fatalf("find order: %v", err)
	}
	if len(loaded.Items) != 1 || loaded.Items[0].ID != "itm_1" {
		t.Fatalf("expected one item itm_1, got %+v", loaded.Items)
	}
	if loaded.Items[0].BasePrice != 160_00 || loaded.Items[0].Adjustments != -10_00 {
		t.Fatalf("expected price breakdown persisted, got %+v", loaded.Items[0])
	}
	if loaded.Items[0].CustomizationNotes != "sin merengue" {
		t.Fatalf("expected customization notes persisted, got %q", loaded.Items[0].CustomizationNotes)
	}
	if !loaded.ScheduledDate.Equal(scheduled) {
		t.Fatalf("expected scheduled date %s, got %s", scheduled, loaded.ScheduledDate)
	}

	// Replace swaps the item set.
	updated := loaded
	updated.Items = []domain.OrderItem{
		{ID: "itm_2", ProductID: "prod_alfajores", ProductName: "Alfajores", Quantity: 12, BasePrice: 5_00, UnitPrice: 5_00, CreatedAt: now.Add(time.Minute)},
	}
	updated.Total = 60_00
	updated.Deposit = 30_00
	replaced, err := repo.Replace(ctx, updated)
	if err != nil {
		t.Fatalf("replace order: %v", err)
	}
	if len(replaced.Items) != 1 || replaced.Items[0].ID != "itm_2" {
		t.Fatalf("expected item set swapped, got %+v", replaced.Items)
	}
	if !replaced.CreatedAt.Equal(created.CreatedAt) {
		t.Fatalf("expected created timestamp preserved, got %s", replaced.CreatedAt)
	}

	// Deposits above the stored total are rejected on header patches.
	excess := int64(999_99)
	_, err = repo.UpdateHeader(ctx, "ord_it_1", repositories.OrderHeaderUpdate{Deposit: &excess})
	if !errors.Is(err, repositories.ErrDepositInvariant) {
		t.Fatalf("expected deposit invariant error, got %v", err)
	}

	ready := domain.OrderStatusReady
	patched, err := repo.UpdateHeader(ctx, "ord_it_1", repositories.OrderHeaderUpdate{Status: &ready, UpdatedAt: now.Add(time.Hour)})
	if err != nil {
		t.Fatalf("update header: %v", err)
	}
	if patched.Status != domain.OrderStatusReady {
		t.Fatalf("expected status ready, got %s", patched.Status)
	}
	if len(patched.Items) != 1 {
		t.Fatalf("expected items untouched by header patch, got %+v", patched.Items)
	}

	page, err := repo.List(ctx, repositories.OrderListFilter{
		Status:     []domain.OrderStatus{domain.OrderStatusReady},
		ClientID:   "cli_1",
		Pagination: domain.Pagination{PageSize: 10},
	})
	if err != nil {
		t.Fatalf("list orders: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].ID != "ord_it_1" {
		t.Fatalf("expected listed order, got %+v", page.Items)
	}

	scheduledOrders, err := repo.ListScheduledOn(ctx, scheduled)
	if err != nil {
		t.Fatalf("list scheduled: %v", err)
	}
	if len(scheduledOrders) != 1 {
		t.Fatalf("expected one scheduled order, got %d", len(scheduledOrders))
	}

	deleted, err := repo.Delete(ctx, "ord_it_1")
	if err != nil {
		t.Fatalf("delete order: %v", err)
	}
	if len(deleted.Items) != 1 || deleted.Items[0].ID != "itm_2" {
		t.Fatalf("expected deleted aggregate with items, got %+v", deleted.Items)
	}

	_, err = repo.FindByID(ctx, "ord_it_1")
	var repoErr repositories.RepositoryError
	if !errors.As(err, &repoErr) || !repoErr.IsNotFound() {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	addr, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("unable to allocate port: %v", err)
	}
	defer addr.Close()
	return addr.Addr().(*net.TCPAddr).Port
}

func startFirestoreEmulator(t *testing.T, port int) string {
	t.Helper()
	args := []string{
		"run", "-d", "--rm",
		"-p", fmt.Sprintf("%d:8080", port),
		firestoreEmulatorImage,
		"gcloud", "beta", "emulators", "firestore", "start",
		"--host-port=0.0.0.0:8080",
		"--quiet",
	}

	cmd := exec.Command("docker", args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("failed to start firestore emulator: %v - %s", err, string(out))
	}
	id := strings.TrimSpace(string(out))
	if id == "" {
		t.Fatalf("docker returned empty container id")
	}
	if len(id) > 12 {
		id = id[:12]
	}
	return id
}

func ensureDockerDaemon(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	cmd := exec.CommandContext(ctx, "docker", "info")
	if err := cmd.Run(); err != nil {
		t.Fatalf("docker daemon not available: %v", err)
	}
}

func stopContainer(id string) {
	if id == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	cmd := exec.CommandContext(ctx, "docker", "stop", id)
	_ = cmd.Run()
}

func waitForEndpoint(t *testing.T, endpoint string, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", endpoint, 500*time.Millisecond)
		if err == nil {
			conn.Close()
			return
		}
		time.Sleep(200 * time.Millisecond)
	}
	t.Fatalf("firestore emulator at %s did not become ready within %s", endpoint, timeout)
}

const firestoreEmulatorImage = "gcr.io/google.com/cloudsdktool/cloud-sdk:emulators"
