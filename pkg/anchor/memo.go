package anchor

import (
	"fmt"
	"strconv"
	"strings"
)

// BuildTopicMemo renders the anchor topic memo for scope.
func BuildTopicMemo(scope string) string {
	scope = strings.TrimSpace(scope)
	if scope == "" {
		return fmt.Sprintf("%s:%d", ProtocolID, ProtocolVersion)
	}
	return fmt.Sprintf("%s:%d:%s", ProtocolID, ProtocolVersion, scope)
}

func ParseTopicMemo(memo string) (*TopicMemo, bool) {
	parts := strings.SplitN(strings.TrimSpace(memo), ":", 3)
	if len(parts) < 2 || parts[0] != ProtocolID {
		return nil, false
	}

	version, err := strconv.Atoi(parts[1])
	if err != nil || version <= 0 {
		return nil, false
	}

	parsed := &TopicMemo{Version: version}
	if len(parts) == 3 {
		parsed.Scope = parts[2]
	}
	return parsed, true
}

func BuildTransactionMemo(operation string) string {
	return fmt.Sprintf("%s:op:%s", ProtocolID, operation)
}
