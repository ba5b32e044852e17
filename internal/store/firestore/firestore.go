// Package firestore archives leads as documents of a Firestore collection.
package firestore

import (
	"context"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	gfs "cloud.google.com/go/firestore"
	"google.golang.org/api/option"

	"github.com/forgehomes/lead-intake/internal/constants"
	"github.com/forgehomes/lead-intake/internal/lead"
	"github.com/forgehomes/lead-intake/internal/store"
)

// ErrMalformedKey is returned when the service account private key is not a PEM encoded private key.
var ErrMalformedKey = errors.New("malformed private key")

// Credentials is the service account triple used to authenticate against Firestore.
//
// PrivateKey may carry literal `\n` sequences instead of newlines, as it does when stored in a single line
// environment variable.
type Credentials struct {
	ProjectID   string
	ClientEmail string
	PrivateKey  string
}

// Config holds the Firestore store settings.
type Config struct {
	Credentials `mapstructure:",squash"`
	Collection  string
}

// docClient is the part of the Firestore client the store needs.
type docClient interface {
	Add(ctx context.Context, collection string, doc map[string]any) (id string, err error)
	Close() error
}

// Store appends leads to a Firestore collection.
//
// The client is created on the first Add and reused for every following one.
type Store struct {
	collection string
	client     *store.Lazy[docClient]
}

type options struct {
	newClient func(ctx context.Context, projectID string, credsJSON []byte) (docClient, error)
}

// Options represents an optional function to override Store default values.
type Options func(*options)

// New returns a Firestore store. No connection is made until the first Add.
func New(cfg Config, args ...Options) *Store {
	opts := options{
		newClient: newGoogleClient,
	}
	for _, opt := range args {
		opt(&opts)
	}

	collection := cfg.Collection
	if collection == "" {
		collection = constants.DefaultLeadsCollection
	}

	creds := cfg.Credentials
	return &Store{
		collection: collection,
		client: store.NewLazy(func(ctx context.Context) (docClient, error) {
			credsJSON, err := creds.serviceAccountJSON()
			if err != nil {
				return nil, err
			}
			slog.Debug("Connecting to Firestore", "project", creds.ProjectID)
			return opts.newClient(ctx, creds.ProjectID, credsJSON)
		}, func(c docClient) error {
			return c.Close()
		}),
	}
}

// Add stores the record as a new document and returns the generated document id.
func (s *Store) Add(ctx context.Context, r lead.Record) (string, error) {
	c, err := s.client.Get(ctx)
	if err != nil {
		return "", err
	}

	id, err := c.Add(ctx, s.collection, r.Fields())
	if err != nil {
		return "", fmt.Errorf("could not add lead to collection %q: %w", s.collection, err)
	}
	return id, nil
}

// Close closes the Firestore client if it was created.
func (s *Store) Close() error {
	return s.client.Close()
}

// serviceAccountJSON unescapes the private key, checks it and renders the credentials as a service account
// key file.
func (c Credentials) serviceAccountJSON() ([]byte, error) {
	if c.ProjectID == "" || c.ClientEmail == "" || c.PrivateKey == "" {
		return nil, errors.New("incomplete Firestore credentials: project id, client email and private key are required")
	}

	key := strings.ReplaceAll(c.PrivateKey, `\n`, "\n")
	block, _ := pem.Decode([]byte(key))
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block found", ErrMalformedKey)
	}
	if _, err := x509.ParsePKCS8PrivateKey(block.Bytes); err != nil {
		if _, errPKCS1 := x509.ParsePKCS1PrivateKey(block.Bytes); errPKCS1 != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedKey, err)
		}
	}

	return json.Marshal(map[string]string{
		"type":         "service_account",
		"project_id":   c.ProjectID,
		"client_email": c.ClientEmail,
		"private_key":  key,
		"token_uri":    "https://oauth2.googleapis.com/token",
	})
}

type googleClient struct {
	c *gfs.Client
}

func newGoogleClient(ctx context.Context, projectID string, credsJSON []byte) (docClient, error) {
	c, err := gfs.NewClient(ctx, projectID, option.WithCredentialsJSON(credsJSON))
	if err != nil {
		return nil, err
	}
	return googleClient{c: c}, nil
}

func (g googleClient) Add(ctx context.Context, collection string, doc map[string]any) (string, error) {
	ref, _, err := g.c.Collection(collection).Add(ctx, doc)
	if err != nil {
		return "", err
	}
	return ref.ID, nil
}

func (g googleClient) Close() error {
	return g.c.Close()
}
