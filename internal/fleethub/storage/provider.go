// Package storage fetches the static documents the hub loads at startup:
// geometry files and the initial fleet snapshot.
package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
)

// ErrNotFound is returned when the referenced document does not exist.
var ErrNotFound = errors.New("document not found")

// Provider reads a whole object by key.
type Provider interface {
	Get(ctx context.Context, key string) ([]byte, error)
}

// Resolver dispatches a document URI to the right Provider.
// Plain paths and file:// URIs are read from disk, s3://bucket/key from object storage.
type Resolver struct {
	// ObjectStore serves s3:// URIs. Nil disables them.
	ObjectStore func(bucket string) (Provider, error)
}

// Fetch reads the document behind uri.
func (r *Resolver) Fetch(ctx context.Context, uri string) ([]byte, error) {
	if uri == "" {
		return nil, fmt.Errorf("%w: empty location", ErrNotFound)
	}

	u, err := url.Parse(uri)
	if err != nil || u.Scheme == "" {
		return readFile(uri)
	}

	switch u.Scheme {
	case "file":
		return readFile(u.Path)
	case "s3":
		if r == nil || r.ObjectStore == nil {
			return nil, fmt.Errorf("s3 location %s given but no object store is configured", uri)
		}
		p, err := r.ObjectStore(u.Host)
		if err != nil {
			return nil, err
		}
		key := u.Path
		if len(key) > 0 && key[0] == '/' {
			key = key[1:]
		}
		return p.Get(ctx, key)
	default:
		return nil, fmt.Errorf("unsupported document scheme %q", u.Scheme)
	}
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	return data, err
}
