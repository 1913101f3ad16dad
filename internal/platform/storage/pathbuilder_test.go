package storage

import (
	"strings"
	"testing"
)

func TestBuildObjectPathOrderPhoto(t *testing.T) {
	path, err := BuildObjectPath(PurposeOrderPhoto, PathParams{FileName: "01J5ZX.jpg"})
	if err != nil {
		t.Fatalf("BuildObjectPath returned error: %v", err)
	}
	if path != "orders/photos/01J5ZX.jpg" {
		t.Fatalf("unexpected path %s", path)
	}
}

func TestBuildObjectPathProductImage(t *testing.T) {
	path, err := BuildObjectPath(PurposeProductImage, PathParams{ProductID: "prd_1", FileName: "cover.png"})
	if err != nil {
		t.Fatalf("BuildObjectPath returned error: %v", err)
	}
	if path != "catalog/products/prd_1/cover.png" {
		t.Fatalf("unexpected path %s", path)
	}
}

func TestBuildObjectPathRejectsTraversal(t *testing.T) {
	cases := []PathParams{
		{FileName: "../escape.jpg"},
		{FileName: "a/b.jpg"},
		{FileName: ""},
	}
	for _, params := range cases {
		if _, err := BuildObjectPath(PurposeOrderPhoto, params); err == nil {
			t.Fatalf("expected error for %+v", params)
		}
	}
}

func TestObjectPathFromURL(t *testing.T) {
	store := &ObjectStore{bucket: "photos", publicBaseURL: "https://cdn.example.com"}

	path, err := store.ObjectPathFromURL("https://cdn.example.com/orders/photos/a.jpg")
	if err != nil {
		t.Fatalf("ObjectPathFromURL returned error: %v", err)
	}
	if path != "orders/photos/a.jpg" {
		t.Fatalf("unexpected object path %s", path)
	}

	if _, err := store.ObjectPathFromURL("https://elsewhere.example.com/orders/photos/a.jpg"); err == nil {
		t.Fatal("expected foreign url error")
	} else if !strings.Contains(err.Error(), "managed prefix") {
		t.Fatalf("unexpected error %v", err)
	}

	if url := store.PublicURL("orders/photos/a.jpg"); url != "https://cdn.example.com/orders/photos/a.jpg" {
		t.Fatalf("unexpected public url %s", url)
	}
}
