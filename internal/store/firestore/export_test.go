package firestore

import "context"

type DocClient = docClient

// WithNewClient overrides how the Firestore client is created.
func WithNewClient(f func(ctx context.Context, projectID string, credsJSON []byte) (DocClient, error)) Options {
	return func(o *options) {
		o.newClient = f
	}
}
