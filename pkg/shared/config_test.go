package shared

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

const testPrivateKey = "302e020100300506032b65700422042091132178e72057a1d7528025956fe39b0b847f200ab59b2fdd367017f3087137"

var operatorEnvKeys = []string{
	"HEDERA_NETWORK",
	"NETWORK",
	"HEDERA_ACCOUNT_ID",
	"HEDERA_OPERATOR_ID",
	"HEDERA_PRIVATE_KEY",
	"HEDERA_OPERATOR_KEY",
	"MAINNET_HEDERA_ACCOUNT_ID",
	"MAINNET_HEDERA_PRIVATE_KEY",
	"TESTNET_HEDERA_ACCOUNT_ID",
	"TESTNET_HEDERA_PRIVATE_KEY",
	TopicIDEnv,
}

func resetOperatorEnv(t *testing.T) {
	t.Helper()
	dotenvLoadOnce = sync.Once{}
	dotenvLoadOnce.Do(func() {})
	for _, key := range operatorEnvKeys {
		t.Setenv(key, "")
	}
}

func TestOperatorConfigFromEnvDefaults(t *testing.T) {
	resetOperatorEnv(t)
	t.Setenv("HEDERA_ACCOUNT_ID", "0.0.1001")
	t.Setenv("HEDERA_PRIVATE_KEY", testPrivateKey)
	t.Setenv(TopicIDEnv, "0.0.5005")

	config, err := OperatorConfigFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if config.Network != NetworkTestnet {
		t.Fatalf("expected testnet, got %q", config.Network)
	}
	if config.AccountID != "0.0.1001" || config.PrivateKey != testPrivateKey {
		t.Fatalf("unexpected operator: %+v", config)
	}
	if config.TopicID != "0.0.5005" {
		t.Fatalf("expected topic 0.0.5005, got %q", config.TopicID)
	}
}

func TestOperatorConfigFromEnvPrefersNetworkScopedValues(t *testing.T) {
	resetOperatorEnv(t)
	t.Setenv("HEDERA_NETWORK", "MainNet")
	t.Setenv("HEDERA_ACCOUNT_ID", "0.0.1001")
	t.Setenv("HEDERA_PRIVATE_KEY", "generic")
	t.Setenv("MAINNET_HEDERA_ACCOUNT_ID", "0.0.2002")
	t.Setenv("MAINNET_HEDERA_PRIVATE_KEY", testPrivateKey)

	config, err := OperatorConfigFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if config.Network != NetworkMainnet {
		t.Fatalf("expected mainnet, got %q", config.Network)
	}
	if config.AccountID != "0.0.2002" || config.PrivateKey != testPrivateKey {
		t.Fatalf("expected mainnet scoped operator, got %+v", config)
	}
}

func TestOperatorConfigFromEnvMissingValues(t *testing.T) {
	resetOperatorEnv(t)
	if _, err := OperatorConfigFromEnv(); err == nil {
		t.Fatal("expected error for missing account ID")
	}

	t.Setenv("HEDERA_ACCOUNT_ID", "0.0.1001")
	if _, err := OperatorConfigFromEnv(); err == nil {
		t.Fatal("expected error for missing private key")
	}

	t.Setenv("HEDERA_PRIVATE_KEY", testPrivateKey)
	t.Setenv("HEDERA_NETWORK", "devnet")
	if _, err := OperatorConfigFromEnv(); err == nil {
		t.Fatal("expected error for unsupported network")
	}
}

func TestLoadDotEnvFileKeepsExistingValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "# operator\n" +
		"export CERTANCHOR_TEST_A=\"quoted value\"\n" +
		"CERTANCHOR_TEST_B='single'\n" +
		"CERTANCHOR_TEST_C=from-file\n" +
		"1INVALID=x\n" +
		"no separator\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write .env: %v", err)
	}

	t.Setenv("CERTANCHOR_TEST_C", "from-process")
	t.Cleanup(func() {
		os.Unsetenv("CERTANCHOR_TEST_A")
		os.Unsetenv("CERTANCHOR_TEST_B")
	})

	if err := loadDotEnvFile(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := os.Getenv("CERTANCHOR_TEST_A"); got != "quoted value" {
		t.Fatalf("expected quoted value, got %q", got)
	}
	if got := os.Getenv("CERTANCHOR_TEST_B"); got != "single" {
		t.Fatalf("expected single, got %q", got)
	}
	if got := os.Getenv("CERTANCHOR_TEST_C"); got != "from-process" {
		t.Fatalf("expected process value to win, got %q", got)
	}
	if _, ok := os.LookupEnv("1INVALID"); ok {
		t.Fatal("invalid key must not be exported")
	}
}

func TestReadDotEnv(t *testing.T) {
	values, err := readDotEnv(strings.NewReader("A=1\nB=\"line\\nbreak\"\nA=2\n  # comment\nC=\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if values["A"] != "2" {
		t.Fatalf("expected later assignment to win, got %q", values["A"])
	}
	if values["B"] != "line\nbreak" {
		t.Fatalf("expected escape sequences in double quotes, got %q", values["B"])
	}
	if value, ok := values["C"]; !ok || value != "" {
		t.Fatalf("expected empty assignment, got %q (%t)", value, ok)
	}
}

func TestFindDotEnvWalksUp(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0o755); err != nil {
		t.Fatalf("failed to create dirs: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, ".env"), []byte("X=1\n"), 0o600); err != nil {
		t.Fatalf("failed to write .env: %v", err)
	}

	path, ok := findDotEnv(nested)
	if !ok || path != filepath.Join(root, ".env") {
		t.Fatalf("expected %s, got %q (%t)", filepath.Join(root, ".env"), path, ok)
	}
}

func TestIsValidEnvKey(t *testing.T) {
	for _, key := range []string{"A", "a_b", "HEDERA_NETWORK", "_LEADING", "A1"} {
		if !isValidEnvKey(key) {
			t.Fatalf("expected %q to be valid", key)
		}
	}
	for _, key := range []string{"", "1ABC", "A B", "A-B", "A.B"} {
		if isValidEnvKey(key) {
			t.Fatalf("expected %q to be invalid", key)
		}
	}
}

func TestParsePrivateKey(t *testing.T) {
	key, err := ParsePrivateKey("  " + testPrivateKey + "  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if key.PublicKey().String() == "" {
		t.Fatal("expected derived public key")
	}

	if _, err := ParsePrivateKey(""); err == nil {
		t.Fatal("expected error for empty key")
	}
	if _, err := ParsePrivateKey("0xinvalidhex"); err == nil {
		t.Fatal("expected error for invalid key")
	}
}
