// Package credential resolves the API key used for completion calls.
//
// A per-enrichment configuration never carries a raw key. It carries a
// Reference: the name of a secret held in a SecretStore, or an opaque token
// pointing into a process-local Stash. A deployment-wide static key, when
// configured on the Resolver, takes precedence over any Reference.
package credential

import "fmt"

// Kind tags the variant held by a Reference.
type Kind int

const (
	// KindNone is the zero Reference: no credential was configured.
	KindNone Kind = iota
	// KindStatic holds a directly usable key.
	KindStatic
	// KindSecretName holds the name of a secret in a SecretStore.
	KindSecretName
	// KindStashToken holds an opaque token into a Stash.
	KindStashToken
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindStatic:
		return "static"
	case KindSecretName:
		return "secret"
	case KindStashToken:
		return "stash"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Reference is a tagged credential reference. Construct it with Static,
// SecretName or StashToken; the zero value means "no reference".
type Reference struct {
	kind  Kind
	value string
}

// Static returns a Reference holding a directly usable key.
func Static(key string) Reference {
	return Reference{kind: KindStatic, value: key}
}

// SecretName returns a Reference to a named secret.
func SecretName(name string) Reference {
	return Reference{kind: KindSecretName, value: name}
}

// StashToken returns a Reference to a stashed key.
func StashToken(token string) Reference {
	return Reference{kind: KindStashToken, value: token}
}

// Kind reports which variant r holds. Empty values collapse to KindNone.
func (r Reference) Kind() Kind {
	if r.value == "" {
		return KindNone
	}
	return r.kind
}

// Value returns the raw payload: the key, the secret name or the token.
func (r Reference) Value() string { return r.value }

// IsZero reports whether r references nothing.
func (r Reference) IsZero() bool { return r.Kind() == KindNone }

// String never prints a static key.
func (r Reference) String() string {
	switch r.Kind() {
	case KindNone:
		return "none"
	case KindStatic:
		return "static(****)"
	default:
		return fmt.Sprintf("%s(%s)", r.kind, r.value)
	}
}
