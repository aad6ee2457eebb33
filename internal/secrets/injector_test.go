package secrets

import "testing"

type mapLookup map[string]string

func (m mapLookup) Get(name string) (string, error) {
	v, ok := m[name]
	if !ok {
		return "", ErrSecretNotFound
	}
	return v, nil
}

func TestInjectBraceForm(t *testing.T) {
	inj := NewInjector(mapLookup{"api_key": "sk-ABCDEF"})
	got, err := inj.Inject("Authorization: {{SECRET:api_key}}")
	if err != nil {
		t.Fatalf("Inject: %v", err)
	}
	if got != "Authorization: sk-ABCDEF" {
		t.Fatalf("Inject = %q", got)
	}
}

func TestInjectEnvForm(t *testing.T) {
	inj := NewInjector(mapLookup{"TOKEN": "deadbeef"})
	got, err := inj.Inject("export X=$SECRET_TOKEN")
	if err != nil {
		t.Fatalf("Inject: %v", err)
	}
	if got != "export X=deadbeef" {
		t.Fatalf("Inject = %q", got)
	}

	got2, err := inj.Inject("export X=${SECRET_TOKEN}")
	if err != nil {
		t.Fatalf("Inject: %v", err)
	}
	if got2 != "export X=deadbeef" {
		t.Fatalf("Inject = %q", got2)
	}
}

func TestInjectMissingSecretFailsHard(t *testing.T) {
	inj := NewInjector(mapLookup{})
	_, err := inj.Inject("{{SECRET:missing}}")
	if err == nil {
		t.Fatal("Inject returned nil error, want ErrSecretNotFound")
	}
}

func TestInjectEnvMap(t *testing.T) {
	inj := NewInjector(mapLookup{"api_key": "sk-ABCDEF"})
	env, err := inj.InjectEnv(map[string]string{"API_KEY": "{{SECRET:api_key}}"})
	if err != nil {
		t.Fatalf("InjectEnv: %v", err)
	}
	if env["API_KEY"] != "sk-ABCDEF" {
		t.Fatalf("InjectEnv = %v", env)
	}
}

func TestExtractSecretNames(t *testing.T) {
	inj := NewInjector(mapLookup{})
	names := inj.ExtractSecretNames("{{SECRET:a}} and $SECRET_b and ${SECRET_c}")
	want := map[string]bool{"a": true, "b": true, "c": true}
	if len(names) != 3 {
		t.Fatalf("ExtractSecretNames = %v, want 3 names", names)
	}
	for _, n := range names {
		if !want[n] {
			t.Fatalf("unexpected name %q in %v", n, names)
		}
	}
}

func TestFilterInjectRoundTrip(t *testing.T) {
	lookup := mapLookup{"api_key": "sk-ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789abcdefghijkl"}
	f := NewFilter()
	f.RegisterSecretValue("api_key", lookup["api_key"])
	inj := NewInjector(lookup)

	original := "use sk-ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789abcdefghijkl now"
	redacted := f.Redact(original)
	restored, err := inj.Inject(redacted)
	if err != nil {
		t.Fatalf("Inject: %v", err)
	}
	if restored != original {
		t.Fatalf("round trip: got %q, want %q", restored, original)
	}
}
