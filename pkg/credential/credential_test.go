package credential

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/viper"
)

// --- Reference ---

func TestReference_Kinds(t *testing.T) {
	tests := []struct {
		name string
		ref  Reference
		want Kind
	}{
		{"zero", Reference{}, KindNone},
		{"static", Static("sk-abc"), KindStatic},
		{"secret", SecretName("OPENAI_API_KEY"), KindSecretName},
		{"stash", StashToken("tok"), KindStashToken},
		{"empty secret collapses", SecretName(""), KindNone},
		{"empty token collapses", StashToken(""), KindNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.ref.Kind(); got != tt.want {
				t.Errorf("Kind() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestReference_StringHidesStaticKey(t *testing.T) {
	ref := Static("sk-very-secret")
	if strings.Contains(ref.String(), "sk-very-secret") {
		t.Errorf("String() leaked the key: %q", ref.String())
	}
	if got := StashToken("abc").String(); got != "stash(abc)" {
		t.Errorf("unexpected stash string %q", got)
	}
}

// --- Resolver precedence ---

func TestResolve_StaticKeyAlwaysWins(t *testing.T) {
	stash := NewMemoryStash()
	stash.Put("tok", "sk-from-stash")
	secrets := MapSecrets{"OPENAI": "sk-from-secret"}

	r := NewResolver(
		WithStaticKey("sk-deployment"),
		WithSecretStore(secrets),
		WithStash(stash),
	)

	for _, ref := range []Reference{{}, SecretName("OPENAI"), StashToken("tok"), StashToken("unknown"), Static("sk-inline")} {
		got, err := r.Resolve(context.Background(), ref)
		if err != nil {
			t.Fatalf("Resolve(%v) error = %v", ref, err)
		}
		if got != "sk-deployment" {
			t.Errorf("Resolve(%v) = %q, want deployment key", ref, got)
		}
	}
}

func TestResolve_SecretName(t *testing.T) {
	r := NewResolver(WithSecretStore(MapSecrets{"OPENAI": "sk-secret"}))

	got, err := r.Resolve(context.Background(), SecretName("OPENAI"))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got != "sk-secret" {
		t.Errorf("got %q, want %q", got, "sk-secret")
	}

	_, err = r.Resolve(context.Background(), SecretName("MISSING"))
	assertReason(t, err, ReasonSecretNotFound)
}

func TestResolve_SecretStoreFailure(t *testing.T) {
	boom := errors.New("vault unreachable")
	r := NewResolver(WithSecretStore(failingStore{err: boom}))

	_, err := r.Resolve(context.Background(), SecretName("OPENAI"))
	assertReason(t, err, ReasonSecretStore)
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped store error, got %v", err)
	}
}

func TestResolve_SecretWithoutStore(t *testing.T) {
	_, err := NewResolver().Resolve(context.Background(), SecretName("OPENAI"))
	assertReason(t, err, ReasonSecretNotFound)
}

func TestResolve_StashMiss(t *testing.T) {
	r := NewResolver(WithStash(NewMemoryStash()))
	_, err := r.Resolve(context.Background(), StashToken("nope"))
	assertReason(t, err, ReasonStashMiss)
}

func TestResolve_StashNeverInitialized(t *testing.T) {
	_, err := NewResolver().Resolve(context.Background(), StashToken("nope"))
	assertReason(t, err, ReasonStashMiss)
}

func TestResolve_NoReference(t *testing.T) {
	_, err := NewResolver(WithStash(NewMemoryStash())).Resolve(context.Background(), Reference{})
	assertReason(t, err, ReasonNoReference)
}

func TestResolve_InlineStatic(t *testing.T) {
	got, err := NewResolver().Resolve(context.Background(), Static("sk-inline"))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got != "sk-inline" {
		t.Errorf("got %q", got)
	}
}

// --- Stash ---

func TestStashKey_RoundTrip(t *testing.T) {
	stash := NewMemoryStash()

	ref, err := StashKey(stash, "sk-original")
	if err != nil {
		t.Fatalf("StashKey() error = %v", err)
	}
	if ref.Kind() != KindStashToken {
		t.Fatalf("expected stash token reference, got %v", ref.Kind())
	}
	if ref.Value() == "sk-original" {
		t.Fatal("token must not equal the raw key")
	}
	if len(ref.Value()) != 22 {
		t.Errorf("expected 22-character url-safe token, got %q", ref.Value())
	}

	got, err := NewResolver(WithStash(stash)).Resolve(context.Background(), ref)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got != "sk-original" {
		t.Errorf("got %q, want original key", got)
	}
}

func TestStashKey_UniqueTokens(t *testing.T) {
	stash := NewMemoryStash()
	a, _ := StashKey(stash, "sk-one")
	b, _ := StashKey(stash, "sk-one")
	if a.Value() == b.Value() {
		t.Error("expected distinct tokens for separate stash calls")
	}
	if stash.Len() != 2 {
		t.Errorf("expected 2 entries, got %d", stash.Len())
	}
}

func TestStashKey_RejectsBadPrefix(t *testing.T) {
	stash := NewMemoryStash()
	_, err := StashKey(stash, "not-a-key")
	if !errors.Is(err, ErrInvalidKeyFormat) {
		t.Fatalf("expected ErrInvalidKeyFormat, got %v", err)
	}
	if stash.Len() != 0 {
		t.Error("rejected key must not be stashed")
	}
}

func TestStashKey_CustomPrefixes(t *testing.T) {
	stash := NewMemoryStash()
	if _, err := StashKey(stash, "or-123", "sk-", "or-"); err != nil {
		t.Errorf("expected custom prefix to be accepted, got %v", err)
	}
}

func TestStashKey_NilStash(t *testing.T) {
	if _, err := StashKey(nil, "sk-abc"); err == nil {
		t.Error("expected error for nil stash")
	}
}

func TestMemoryStash_Concurrent(t *testing.T) {
	stash := NewMemoryStash()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ref, err := StashKey(stash, "sk-concurrent")
			if err != nil {
				t.Error(err)
				return
			}
			if _, ok := stash.Get(ref.Value()); !ok {
				t.Error("stashed key not found")
			}
		}()
	}
	wg.Wait()
	if stash.Len() != 50 {
		t.Errorf("expected 50 entries, got %d", stash.Len())
	}
}

// --- Secret stores ---

func TestEnvSecrets(t *testing.T) {
	t.Setenv("ENRICHGPT_SECRETS_OPENAI_API_KEY", "sk-env")

	v, ok, err := EnvSecrets{}.Get(context.Background(), "openai-api-key")
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if v != "sk-env" {
		t.Errorf("got %q", v)
	}

	_, ok, _ = EnvSecrets{Prefix: "OTHER_"}.Get(context.Background(), "openai_api_key")
	if ok {
		t.Error("expected miss with a different prefix")
	}
}

func TestViperSecrets(t *testing.T) {
	v := viper.New()
	v.Set("secrets.openai", "sk-viper")

	got, ok, err := ViperSecrets{V: v}.Get(context.Background(), "openai")
	if err != nil || !ok || got != "sk-viper" {
		t.Errorf("got %q ok=%v err=%v", got, ok, err)
	}
	if _, ok, _ := (ViperSecrets{V: v}).Get(context.Background(), "missing"); ok {
		t.Error("expected miss")
	}
}

func TestChainSecrets(t *testing.T) {
	chain := ChainSecrets{nil, MapSecrets{}, MapSecrets{"a": "first"}, MapSecrets{"a": "second"}}
	got, ok, err := chain.Get(context.Background(), "a")
	if err != nil || !ok || got != "first" {
		t.Errorf("got %q ok=%v err=%v", got, ok, err)
	}

	boom := errors.New("boom")
	_, _, err = ChainSecrets{failingStore{err: boom}, MapSecrets{"a": "x"}}.Get(context.Background(), "a")
	if !errors.Is(err, boom) {
		t.Errorf("expected store error to stop the chain, got %v", err)
	}
}

func TestPluginAPIKey(t *testing.T) {
	v := viper.New()
	if got := PluginAPIKey(v, "enrichments-gpt"); got != "" {
		t.Errorf("expected empty key, got %q", got)
	}
	v.Set("plugins.enrichments-gpt.api_key", "sk-plugin")
	if got := PluginAPIKey(v, "enrichments-gpt"); got != "sk-plugin" {
		t.Errorf("got %q", got)
	}
}

// --- helpers ---

type failingStore struct{ err error }

func (f failingStore) Get(context.Context, string) (string, bool, error) {
	return "", false, f.err
}

func assertReason(t *testing.T, err error, reason string) {
	t.Helper()
	var ake *APIKeyError
	if !errors.As(err, &ake) {
		t.Fatalf("expected *APIKeyError, got %T (%v)", err, err)
	}
	if ake.Reason != reason {
		t.Errorf("expected reason %q, got %q", reason, ake.Reason)
	}
}
