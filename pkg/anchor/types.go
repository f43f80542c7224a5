package anchor

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const (
	ProtocolID       = "cert-anchor"
	ProtocolVersion  = 1
	OperationIssue   = "issue"
	OperationBatch   = "batch"
	MaxMessageSize   = 1024
	maxMessageMemo   = 100
	defaultCacheSize = 1024
)

type ClientConfig struct {
	OperatorAccountID  string
	OperatorPrivateKey string
	Network            string
	MirrorBaseURL      string
	MirrorAPIKey       string
	MirrorHTTPClient   *http.Client

	// TopicID is the anchor topic. It may be left empty when the client is
	// only used to create one.
	TopicID         string
	TransactionMemo string

	// CacheSize bounds the cache of confirmed certificates and batch roots.
	CacheSize int

	RetryBase     time.Duration
	RetryCap      time.Duration
	RetryAttempts uint64

	Logger zerolog.Logger
}

// Message is the payload submitted to the anchor topic.
type Message struct {
	Protocol  string `json:"p"`
	Operation string `json:"op"`
	HolderID  string `json:"id,omitempty"`
	Hash      string `json:"hash,omitempty"`
	Root      string `json:"root,omitempty"`
	Memo      string `json:"m,omitempty"`
}

type CreateTopicOptions struct {
	Scope               string
	UseOperatorAsAdmin  bool
	UseOperatorAsSubmit bool
	AdminKey            string
	SubmitKey           string
}

type TopicMemo struct {
	Version int
	Scope   string
}

// Submission is what the consensus service reported for one anchor message.
type Submission struct {
	TransactionID  string
	SequenceNumber uint64
}
