package services

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/oklog/ulid/v2"

	"github.com/dulcepan/api/internal/platform/storage"
)

// placeholderPrefix marks customization values that reference an uploaded
// file instead of an already-stored URL.
const placeholderPrefix = "placeholder_"

// PhotoStore is the blob surface the reconciler needs: writing uploads,
// deleting released objects, and mapping public URLs back to object paths.
type PhotoStore interface {
	Write(ctx context.Context, objectPath string, payload []byte, contentType string) (string, error)
	Delete(ctx context.Context, objectPath string) error
	ObjectPathFromURL(rawURL string) (string, error)
}

// PhotoReconciler swaps placeholder tokens in order item customizations for
// stored photo URLs, and releases blobs that edits or deletions orphan.
type PhotoReconciler struct {
	store  PhotoStore
	newID  func() string
	logger func(context.Context, string, map[string]any)
}

type PhotoReconcilerDeps struct {
	Store  PhotoStore
	NewID  func() string
	Logger func(context.Context, string, map[string]any)
}

func NewPhotoReconciler(deps PhotoReconcilerDeps) (*PhotoReconciler, error) {
	if deps.Store == nil {
		return nil, errors.New("photo reconciler: store is required")
	}
	newID := deps.NewID
	if newID == nil {
		newID = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &PhotoReconciler{store: deps.Store, newID: newID, logger: logger}, nil
}

// ResolvePlaceholders walks every item customization and replaces values that
// name an uploaded file with the public URL of the stored object. Placeholder
// tokens without a matching upload are dropped from the customization. The
// same token referenced twice uploads once.
func (r *PhotoReconciler) ResolvePlaceholders(ctx context.Context, items []OrderItemInput, uploads map[string]UploadedPhoto) ([]OrderItemInput, error) {
	resolved := make(map[string]string)
	out := make([]OrderItemInput, len(items))

	for idx, item := range items {
		out[idx] = item
		if len(item.Customization) == 0 {
			continue
		}
		customization := make(map[string]any, len(item.Customization))
		for key, value := range item.Customization {
			replaced, keep, err := r.resolveValue(ctx, value, uploads, resolved)
			if err != nil {
				return nil, err
			}
			if keep {
				customization[key] = replaced
			}
		}
		out[idx].Customization = customization
	}

	return out, nil
}

func (r *PhotoReconciler) resolveValue(ctx context.Context, value any, uploads map[string]UploadedPhoto, resolved map[string]string) (any, bool, error) {
	switch v := value.(type) {
	case string:
		return r.resolveString(ctx, v, uploads, resolved)
	case []any:
		kept := make([]any, 0, len(v))
		for _, element := range v {
			replaced, keep, err := r.resolveValue(ctx, element, uploads, resolved)
			if err != nil {
				return nil, false, err
			}
			if keep {
				kept = append(kept, replaced)
			}
		}
		return kept, true, nil
	default:
		return value, true, nil
	}
}

func (r *PhotoReconciler) resolveString(ctx context.Context, value string, uploads map[string]UploadedPhoto, resolved map[string]string) (any, bool, error) {
	if !strings.HasPrefix(value, placeholderPrefix) {
		return value, true, nil
	}
	if url, ok := resolved[value]; ok {
		return url, true, nil
	}
	upload, ok := uploads[value]
	if !ok {
		// Stale token with no matching upload: drop it.
		r.logger(ctx, "photos.placeholder_dropped", map[string]any{"token": value})
		return nil, false, nil
	}

	url, err := r.storeUpload(ctx, upload)
	if err != nil {
		return nil, false, err
	}
	resolved[value] = url
	return url, true, nil
}

func (r *PhotoReconciler) storeUpload(ctx context.Context, upload UploadedPhoto) (string, error) {
	objectPath, err := storage.BuildObjectPath(storage.PurposeOrderPhoto, storage.PathParams{
		FileName: r.newID() + photoExtension(upload),
	})
	if err != nil {
		return "", fmt.Errorf("photo reconciler: build object path: %w", err)
	}
	url, err := r.store.Write(ctx, objectPath, upload.Data, upload.ContentType)
	if err != nil {
		return "", fmt.Errorf("photo reconciler: store upload: %w", err)
	}
	return url, nil
}

// CollectPhotoURLs gathers every stored photo URL referenced by the item
// customizations. Only URLs under the managed public base are returned.
func (r *PhotoReconciler) CollectPhotoURLs(items []OrderItem) []string {
	seen := make(map[string]struct{})
	urls := make([]string, 0)
	for _, item := range items {
		for _, value := range item.Customization {
			collectManagedURLs(r.store, value, seen, &urls)
		}
	}
	return urls
}

func collectManagedURLs(store PhotoStore, value any, seen map[string]struct{}, urls *[]string) {
	switch v := value.(type) {
	case string:
		if _, err := store.ObjectPathFromURL(v); err != nil {
			return
		}
		if _, dup := seen[v]; dup {
			return
		}
		seen[v] = struct{}{}
		*urls = append(*urls, v)
	case []any:
		for _, element := range v {
			collectManagedURLs(store, element, seen, urls)
		}
	}
}

// DiffOrphans returns the URLs present before an edit and absent after it.
func (r *PhotoReconciler) DiffOrphans(before []string, after []string) []string {
	kept := make(map[string]struct{}, len(after))
	for _, url := range after {
		kept[url] = struct{}{}
	}
	orphans := make([]string, 0)
	for _, url := range before {
		if _, ok := kept[url]; !ok {
			orphans = append(orphans, url)
		}
	}
	return orphans
}

// DeleteOrphans releases stored blobs after the owning write committed.
// Failures are logged and swallowed; URLs outside the managed base are
// skipped.
func (r *PhotoReconciler) DeleteOrphans(ctx context.Context, urls []string) {
	for _, url := range urls {
		objectPath, err := r.store.ObjectPathFromURL(url)
		if err != nil {
			r.logger(ctx, "photos.delete_skipped_foreign", map[string]any{"url": url})
			continue
		}
		if err := r.store.Delete(ctx, objectPath); err != nil {
			r.logger(ctx, "photos.delete_failed", map[string]any{
				"object": objectPath,
				"error":  err.Error(),
			})
		}
	}
}

func photoExtension(upload UploadedPhoto) string {
	if ext := strings.ToLower(path.Ext(upload.FileName)); ext != "" && ext != "." {
		return ext
	}
	switch strings.ToLower(strings.TrimSpace(upload.ContentType)) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".bin"
	}
}
