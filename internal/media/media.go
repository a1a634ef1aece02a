// Package media resolves session recording references to local files. A
// reference can be a plain filesystem path, an https URL, or an Azure Blob
// Storage location (az://account/container/blob or a *.blob.core.windows.net
// URL). Remote recordings are downloaded to a temp file that the caller owns.
package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
)

const blobHostSuffix = ".blob.core.windows.net"

// BlobRef identifies a blob within an Azure storage account.
type BlobRef struct {
	Account   string
	Container string
	Blob      string
}

// ServiceURL returns the storage account endpoint for the ref.
func (r BlobRef) ServiceURL() string {
	return fmt.Sprintf("https://%s%s", r.Account, blobHostSuffix)
}

// ParseBlobRef recognizes az://account/container/path and
// https://account.blob.core.windows.net/container/path references. The
// second return is false when raw does not name a blob.
func ParseBlobRef(raw string) (BlobRef, bool) {
	u, err := url.Parse(raw)
	if err != nil {
		return BlobRef{}, false
	}

	var account, rest string
	switch {
	case u.Scheme == "az":
		account = u.Host
		rest = strings.TrimPrefix(u.Path, "/")
	case (u.Scheme == "https" || u.Scheme == "http") && strings.HasSuffix(u.Host, blobHostSuffix):
		account = strings.TrimSuffix(u.Host, blobHostSuffix)
		rest = strings.TrimPrefix(u.Path, "/")
	default:
		return BlobRef{}, false
	}

	container, blob, ok := strings.Cut(rest, "/")
	if account == "" || !ok || container == "" || blob == "" {
		return BlobRef{}, false
	}
	return BlobRef{Account: account, Container: container, Blob: blob}, true
}

// Fetcher downloads remote recordings into a working directory.
type Fetcher struct {
	// HTTPClient is used for plain https downloads. Defaults to a client
	// with a 5 minute timeout when nil.
	HTTPClient *http.Client

	// Dir is where downloads land. Defaults to the OS temp dir.
	Dir string

	// newBlobClient is swapped in tests to avoid real credentials.
	newBlobClient func(serviceURL string) (blobDownloader, error)
}

type blobDownloader interface {
	DownloadFile(ctx context.Context, containerName, blobName string, file *os.File, o *azblob.DownloadFileOptions) (int64, error)
}

// Fetch resolves ref to a local path. Local paths are returned as-is and
// remote references are downloaded; the returned path is always readable
// when err is nil. Downloaded files are not cleaned up automatically, so
// callers should place Dir inside a per-run work directory.
func (f *Fetcher) Fetch(ctx context.Context, ref string) (string, error) {
	if blob, ok := ParseBlobRef(ref); ok {
		return f.fetchBlob(ctx, blob)
	}
	if strings.HasPrefix(ref, "https://") || strings.HasPrefix(ref, "http://") {
		return f.fetchHTTP(ctx, ref)
	}

	if _, err := os.Stat(ref); err != nil {
		return "", fmt.Errorf("video %q is not a local file or a recognized remote reference: %w", ref, err)
	}
	return ref, nil
}

func (f *Fetcher) fetchBlob(ctx context.Context, ref BlobRef) (string, error) {
	newClient := f.newBlobClient
	if newClient == nil {
		newClient = func(serviceURL string) (blobDownloader, error) {
			cred, err := azidentity.NewDefaultAzureCredential(nil)
			if err != nil {
				return nil, fmt.Errorf("creating azure credential: %w", err)
			}
			return azblob.NewClient(serviceURL, cred, nil)
		}
	}

	client, err := newClient(ref.ServiceURL())
	if err != nil {
		return "", err
	}

	dest, err := f.createDest(ref.Blob)
	if err != nil {
		return "", err
	}
	defer dest.Close()

	if _, err := client.DownloadFile(ctx, ref.Container, ref.Blob, dest, nil); err != nil {
		os.Remove(dest.Name())
		return "", fmt.Errorf("downloading blob %s/%s from %s: %w", ref.Container, ref.Blob, ref.Account, err)
	}
	return dest.Name(), nil
}

func (f *Fetcher) fetchHTTP(ctx context.Context, rawURL string) (string, error) {
	client := f.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Minute}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("downloading %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("downloading %s: unexpected status %s", rawURL, resp.Status)
	}

	dest, err := f.createDest(rawURL)
	if err != nil {
		return "", err
	}
	defer dest.Close()

	if _, err := io.Copy(dest, resp.Body); err != nil {
		os.Remove(dest.Name())
		return "", fmt.Errorf("writing %s: %w", dest.Name(), err)
	}
	return dest.Name(), nil
}

func (f *Fetcher) createDest(ref string) (*os.File, error) {
	dir := f.Dir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	ext := path.Ext(ref)
	if ext == "" {
		ext = ".mp4"
	}
	dest, err := os.CreateTemp(dir, "recording-*"+ext)
	if err != nil {
		return nil, fmt.Errorf("creating download destination: %w", err)
	}
	return dest, nil
}
