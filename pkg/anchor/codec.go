package anchor

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/andybalholm/brotli"
	jsoniter "github.com/json-iterator/go"

	"github.com/hashgraph-online/certificate-sdk-go/pkg/certificate"
	"github.com/hashgraph-online/certificate-sdk-go/pkg/digest"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	dataURLPrefix    = "data:application/json;base64,"
	dataURLPartCount = 2
)

type wrappedPayload struct {
	Content string `json:"c"`
}

// EncodeMessage renders message for submission, compressing it when the
// plain form does not fit one chunk.
func EncodeMessage(message Message) ([]byte, error) {
	if err := validateMessage(message); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(message)
	if err != nil {
		return nil, fmt.Errorf("failed to encode anchor message: %w", err)
	}
	if len(payload) <= MaxMessageSize {
		return payload, nil
	}

	var compressed bytes.Buffer
	writer := brotli.NewWriterLevel(&compressed, brotli.BestCompression)
	if _, err := writer.Write(payload); err != nil {
		return nil, fmt.Errorf("failed to compress anchor message: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to compress anchor message: %w", err)
	}

	wrapped, err := json.Marshal(wrappedPayload{
		Content: dataURLPrefix + base64.StdEncoding.EncodeToString(compressed.Bytes()),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to wrap anchor message: %w", err)
	}
	if len(wrapped) > MaxMessageSize {
		return nil, fmt.Errorf(
			"%w: anchor message is %d bytes compressed, limit is %d",
			certificate.ErrInvalidInput,
			len(wrapped),
			MaxMessageSize,
		)
	}
	return wrapped, nil
}

// DecodeMessage parses a payload read back from the topic, unwrapping the
// compressed form when present.
func DecodeMessage(payload []byte) (Message, error) {
	normalized, err := normalizePayload(payload)
	if err != nil {
		return Message{}, err
	}

	var message Message
	if err := json.Unmarshal(normalized, &message); err != nil {
		return Message{}, fmt.Errorf("failed to decode anchor message: %w", err)
	}
	if err := validateMessage(message); err != nil {
		return Message{}, err
	}
	return message, nil
}

// CertificateHash returns the document hash of an issue message.
func (m Message) CertificateHash() (digest.Digest, error) {
	if m.Operation != OperationIssue {
		return digest.Digest{}, fmt.Errorf("anchor message is a %q operation, not %q", m.Operation, OperationIssue)
	}
	return digest.Parse(m.Hash)
}

// BatchRoot returns the Merkle root of a batch message.
func (m Message) BatchRoot() (digest.Digest, error) {
	if m.Operation != OperationBatch {
		return digest.Digest{}, fmt.Errorf("anchor message is a %q operation, not %q", m.Operation, OperationBatch)
	}
	return digest.Parse(m.Root)
}

func validateMessage(message Message) error {
	if message.Protocol != ProtocolID {
		return fmt.Errorf("%w: unexpected protocol %q", certificate.ErrInvalidInput, message.Protocol)
	}
	if len(message.Memo) > maxMessageMemo {
		return fmt.Errorf("%w: message memo must be at most %d characters", certificate.ErrInvalidInput, maxMessageMemo)
	}

	switch message.Operation {
	case OperationIssue:
		if strings.TrimSpace(message.HolderID) == "" {
			return fmt.Errorf("%w: issue message requires a holder ID", certificate.ErrInvalidInput)
		}
		if _, err := digest.Parse(message.Hash); err != nil {
			return fmt.Errorf("%w: issue message hash: %v", certificate.ErrInvalidInput, err)
		}
	case OperationBatch:
		if _, err := digest.Parse(message.Root); err != nil {
			return fmt.Errorf("%w: batch message root: %v", certificate.ErrInvalidInput, err)
		}
	default:
		return fmt.Errorf("%w: unknown operation %q", certificate.ErrInvalidInput, message.Operation)
	}
	return nil
}

func normalizePayload(payload []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || trimmed[0] != '{' || !bytes.Contains(trimmed, []byte(`"c"`)) {
		return trimmed, nil
	}

	var wrapped wrappedPayload
	if err := json.Unmarshal(trimmed, &wrapped); err != nil || strings.TrimSpace(wrapped.Content) == "" {
		return trimmed, nil
	}

	decoded, err := decodeDataURL(wrapped.Content)
	if err != nil {
		return nil, err
	}

	decompressed, err := io.ReadAll(brotli.NewReader(bytes.NewReader(decoded)))
	if err == nil && len(decompressed) > 0 {
		return decompressed, nil
	}
	return decoded, nil
}

func decodeDataURL(input string) ([]byte, error) {
	trimmed := strings.TrimSpace(input)
	if !strings.HasPrefix(trimmed, "data:") {
		return nil, fmt.Errorf("unsupported wrapped anchor payload format")
	}

	parts := strings.SplitN(trimmed, ",", dataURLPartCount)
	if len(parts) != dataURLPartCount {
		return nil, fmt.Errorf("invalid wrapped anchor data URL")
	}

	if strings.Contains(strings.ToLower(parts[0]), ";base64") {
		decoded, err := base64.StdEncoding.DecodeString(parts[1])
		if err != nil {
			return nil, fmt.Errorf("failed to decode wrapped anchor payload: %w", err)
		}
		return decoded, nil
	}

	unescaped, err := url.QueryUnescape(parts[1])
	if err != nil {
		return nil, fmt.Errorf("failed to decode wrapped anchor payload: %w", err)
	}
	return []byte(unescaped), nil
}
