package shared

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	hedera "github.com/hashgraph/hedera-sdk-go/v2"
)

const TopicIDEnv = "CERTANCHOR_TOPIC_ID"

type OperatorConfig struct {
	AccountID  string
	PrivateKey string
	Network    string
	// TopicID is the anchor topic; empty until one has been created.
	TopicID string
}

var dotenvLoadOnce sync.Once

// OperatorConfigFromEnv loads the operator credentials and anchor topic from
// the environment.
func OperatorConfigFromEnv() (OperatorConfig, error) {
	loadDotEnvIfPresent()

	network, err := NormalizeNetwork(firstNonEmptyEnv("HEDERA_NETWORK", "NETWORK"))
	if err != nil {
		return OperatorConfig{}, err
	}

	scoped := strings.ToUpper(network) + "_"
	accountID := firstNonEmptyEnv(scoped+"HEDERA_ACCOUNT_ID", "HEDERA_ACCOUNT_ID", "HEDERA_OPERATOR_ID")
	privateKey := firstNonEmptyEnv(scoped+"HEDERA_PRIVATE_KEY", "HEDERA_PRIVATE_KEY", "HEDERA_OPERATOR_KEY")

	if accountID == "" {
		return OperatorConfig{}, fmt.Errorf("HEDERA_ACCOUNT_ID is required")
	}
	if privateKey == "" {
		return OperatorConfig{}, fmt.Errorf("HEDERA_PRIVATE_KEY is required")
	}

	return OperatorConfig{
		AccountID:  accountID,
		PrivateKey: privateKey,
		Network:    network,
		TopicID:    firstNonEmptyEnv(TopicIDEnv),
	}, nil
}

func loadDotEnvIfPresent() {
	dotenvLoadOnce.Do(func() {
		workingDir, err := os.Getwd()
		if err != nil {
			return
		}
		if path, ok := findDotEnv(workingDir); ok {
			_ = loadDotEnvFile(path)
		}
	})
}

// findDotEnv returns the closest .env file at or above dir.
func findDotEnv(dir string) (string, bool) {
	for {
		candidate := filepath.Join(dir, ".env")
		if info, err := os.Stat(candidate); err == nil && info.Mode().IsRegular() {
			return candidate, true
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
		dir = parent
	}
}

// loadDotEnvFile exports the variables of path that the process does not
// already define.
func loadDotEnvFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	values, err := readDotEnv(file)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	for key, value := range values {
		if _, defined := os.LookupEnv(key); defined {
			continue
		}
		if err := os.Setenv(key, value); err != nil {
			return err
		}
	}
	return nil
}

// readDotEnv collects KEY=value assignments. Comments, blank lines and
// malformed lines are ignored; a later assignment overrides an earlier one.
func readDotEnv(reader io.Reader) (map[string]string, error) {
	values := make(map[string]string)
	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		if rest, ok := strings.CutPrefix(line, "export "); ok {
			line = strings.TrimSpace(rest)
		}

		key, value, ok := strings.Cut(line, "=")
		key = strings.TrimSpace(key)
		if !ok || !isValidEnvKey(key) {
			continue
		}
		values[key] = unquoteEnvValue(strings.TrimSpace(value))
	}
	return values, scanner.Err()
}

func unquoteEnvValue(value string) string {
	if len(value) < 2 {
		return value
	}
	switch {
	case value[0] == '"' && value[len(value)-1] == '"':
		if unquoted, err := strconv.Unquote(value); err == nil {
			return unquoted
		}
		return value[1 : len(value)-1]
	case value[0] == '\'' && value[len(value)-1] == '\'':
		return value[1 : len(value)-1]
	}
	return value
}

func isValidEnvKey(key string) bool {
	for index, character := range key {
		letter := character == '_' || (character|0x20 >= 'a' && character|0x20 <= 'z')
		digit := character >= '0' && character <= '9'
		if !letter && !(digit && index > 0) {
			return false
		}
	}
	return key != ""
}

func firstNonEmptyEnv(keys ...string) string {
	for _, key := range keys {
		if value := strings.TrimSpace(os.Getenv(key)); value != "" {
			return value
		}
	}
	return ""
}

// ParsePrivateKey parses a DER or raw hex private key, trying ED25519 first
// and ECDSA (secp256k1) second.
func ParsePrivateKey(raw string) (hedera.PrivateKey, error) {
	candidate := strings.TrimSpace(raw)
	if candidate == "" {
		return hedera.PrivateKey{}, fmt.Errorf("private key cannot be empty")
	}

	ed25519Key, edErr := hedera.PrivateKeyFromStringEd25519(candidate)
	if edErr == nil {
		return ed25519Key, nil
	}

	ecdsaKey, ecdsaErr := hedera.PrivateKeyFromStringECDSA(candidate)
	if ecdsaErr == nil {
		return ecdsaKey, nil
	}

	genericKey, genericErr := hedera.PrivateKeyFromString(candidate)
	if genericErr == nil {
		return genericKey, nil
	}

	return hedera.PrivateKey{}, fmt.Errorf(
		"failed to parse private key as ED25519 (%v), ECDSA (%v), or generic (%v)",
		edErr,
		ecdsaErr,
		genericErr,
	)
}
