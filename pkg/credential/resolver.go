package credential

import (
	"context"
	"fmt"
)

// Reasons reported by APIKeyError.
const (
	ReasonSecretNotFound = "secret not found"
	ReasonSecretStore    = "secret store error"
	ReasonStashMiss      = "stash miss"
	ReasonNoReference    = "no credential reference"
)

// APIKeyError reports a credential that could not be resolved.
type APIKeyError struct {
	Reason string
	Ref    Reference
	Err    error
}

func (e *APIKeyError) Error() string {
	msg := "api key: " + e.Reason
	switch e.Ref.Kind() {
	case KindSecretName, KindStashToken:
		msg += fmt.Sprintf(" (%s)", e.Ref)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *APIKeyError) Unwrap() error { return e.Err }

// Resolver turns a Reference into a usable key.
type Resolver struct {
	static  string
	secrets SecretStore
	stash   Stash
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

// WithStaticKey sets the deployment-wide key. When set it always wins.
func WithStaticKey(key string) ResolverOption {
	return func(r *Resolver) { r.static = key }
}

// WithSecretStore sets the store used for SecretName references.
func WithSecretStore(s SecretStore) ResolverOption {
	return func(r *Resolver) { r.secrets = s }
}

// WithStash sets the stash used for StashToken references.
func WithStash(s Stash) ResolverOption {
	return func(r *Resolver) { r.stash = s }
}

// NewResolver creates a Resolver.
func NewResolver(opts ...ResolverOption) *Resolver {
	r := &Resolver{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// HasStaticKey reports whether a deployment-wide key is configured.
func (r *Resolver) HasStaticKey() bool { return r.static != "" }

// Resolve returns the key for ref. The deployment-wide key is returned
// whenever one is configured, whatever ref says; otherwise ref decides
// where to look.
func (r *Resolver) Resolve(ctx context.Context, ref Reference) (string, error) {
	if r.static != "" {
		return r.static, nil
	}

	switch ref.Kind() {
	case KindStatic:
		return ref.Value(), nil

	case KindSecretName:
		if r.secrets == nil {
			return "", &APIKeyError{Reason: ReasonSecretNotFound, Ref: ref}
		}
		key, ok, err := r.secrets.Get(ctx, ref.Value())
		if err != nil {
			return "", &APIKeyError{Reason: ReasonSecretStore, Ref: ref, Err: err}
		}
		if !ok {
			return "", &APIKeyError{Reason: ReasonSecretNotFound, Ref: ref}
		}
		return key, nil

	case KindStashToken:
		if r.stash == nil {
			return "", &APIKeyError{Reason: ReasonStashMiss, Ref: ref}
		}
		key, ok := r.stash.Get(ref.Value())
		if !ok {
			return "", &APIKeyError{Reason: ReasonStashMiss, Ref: ref}
		}
		return key, nil

	case KindNone:
		return "", &APIKeyError{Reason: ReasonNoReference}
	}

	return "", &APIKeyError{Reason: ReasonNoReference, Ref: ref}
}
