package anchor

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	hedera "github.com/hashgraph/hedera-sdk-go/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"

	"github.com/hashgraph-online/certificate-sdk-go/pkg/batchtree"
	"github.com/hashgraph-online/certificate-sdk-go/pkg/certificate"
	"github.com/hashgraph-online/certificate-sdk-go/pkg/digest"
	"github.com/hashgraph-online/certificate-sdk-go/pkg/mirror"
	"github.com/hashgraph-online/certificate-sdk-go/pkg/shared"
)

const (
	defaultRetryBase     = 250 * time.Millisecond
	defaultRetryCap      = 5 * time.Second
	defaultRetryAttempts = 5
)

type submitFunc func(ctx context.Context, payload []byte, transactionMemo string) (Submission, error)

// Client anchors certificates on a Hedera topic. It is safe for concurrent
// use; serializing writes per signer is left to the caller.
type Client struct {
	hederaClient *hedera.Client
	mirrorClient *mirror.Client
	operatorID   hedera.AccountID
	operatorKey  hedera.PrivateKey
	network      string
	log          zerolog.Logger

	mu      sync.RWMutex
	topicID string

	transactionMemo string
	certificates    *lru.Cache[uint64, certificate.LedgerCertificate]
	roots           *lru.Cache[uint64, digest.Digest]

	retryBase     time.Duration
	retryCap      time.Duration
	retryAttempts uint64

	submitOverride submitFunc
}

var _ certificate.LedgerGateway = (*Client)(nil)

// NewClient creates a new Client.
func NewClient(config ClientConfig) (*Client, error) {
	if strings.TrimSpace(config.OperatorAccountID) == "" {
		return nil, fmt.Errorf("operator account ID is required")
	}
	if strings.TrimSpace(config.OperatorPrivateKey) == "" {
		return nil, fmt.Errorf("operator private key is required")
	}

	network, err := shared.NormalizeNetwork(config.Network)
	if err != nil {
		return nil, err
	}

	topicID := strings.TrimSpace(config.TopicID)
	if topicID != "" {
		if _, err := hedera.TopicIDFromString(topicID); err != nil {
			return nil, fmt.Errorf("invalid topic ID %q: %w", topicID, err)
		}
	}

	hederaClient, operatorID, operatorKey, err := shared.NewOperatorClient(shared.OperatorConfig{
		AccountID:  config.OperatorAccountID,
		PrivateKey: config.OperatorPrivateKey,
		Network:    network,
	})
	if err != nil {
		return nil, err
	}

	mirrorClient, err := mirror.NewClient(mirror.Config{
		Network:    network,
		BaseURL:    config.MirrorBaseURL,
		APIKey:     config.MirrorAPIKey,
		HTTPClient: config.MirrorHTTPClient,
	})
	if err != nil {
		_ = hederaClient.Close()
		return nil, err
	}

	cacheSize := config.CacheSize
	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}
	certificates, err := lru.New[uint64, certificate.LedgerCertificate](cacheSize)
	if err != nil {
		_ = hederaClient.Close()
		return nil, fmt.Errorf("failed to create certificate cache: %w", err)
	}
	roots, err := lru.New[uint64, digest.Digest](cacheSize)
	if err != nil {
		_ = hederaClient.Close()
		return nil, fmt.Errorf("failed to create batch root cache: %w", err)
	}

	client := &Client{
		hederaClient:    hederaClient,
		mirrorClient:    mirrorClient,
		operatorID:      operatorID,
		operatorKey:     operatorKey,
		network:         network,
		log:             config.Logger.With().Str("component", "anchor").Logger(),
		topicID:         topicID,
		transactionMemo: strings.TrimSpace(config.TransactionMemo),
		certificates:    certificates,
		roots:           roots,
		retryBase:       config.RetryBase,
		retryCap:        config.RetryCap,
		retryAttempts:   config.RetryAttempts,
	}
	if client.retryBase <= 0 {
		client.retryBase = defaultRetryBase
	}
	if client.retryCap <= 0 {
		client.retryCap = defaultRetryCap
	}
	if client.retryAttempts == 0 {
		client.retryAttempts = defaultRetryAttempts
	}

	return client, nil
}

// MirrorClient returns the configured mirror node client.
func (c *Client) MirrorClient() *mirror.Client {
	return c.mirrorClient
}

// OperatorAccountID returns the account that signs anchor messages.
func (c *Client) OperatorAccountID() string {
	return c.operatorID.String()
}

func (c *Client) Network() string {
	return c.network
}

// TopicID returns the anchor topic, empty if none is configured yet.
func (c *Client) TopicID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.topicID
}

// Close releases the consensus node connections.
func (c *Client) Close() error {
	return c.hederaClient.Close()
}

// IssueSingle anchors hash for holderID. The returned CertID is the consensus
// sequence number of the anchor message.
func (c *Client) IssueSingle(
	ctx context.Context,
	holderID string,
	hash digest.Digest,
) (certificate.SingleReceipt, error) {
	holderID = strings.TrimSpace(holderID)
	if holderID == "" {
		return certificate.SingleReceipt{}, fmt.Errorf("%w: holder ID is required", certificate.ErrInvalidInput)
	}

	submission, err := c.publish(ctx, Message{
		Protocol:  ProtocolID,
		Operation: OperationIssue,
		HolderID:  holderID,
		Hash:      hash.PrefixedHex(),
	})
	if err != nil {
		return certificate.SingleReceipt{}, err
	}

	return certificate.SingleReceipt{
		TxRef:  submission.TransactionID,
		CertID: strconv.FormatUint(submission.SequenceNumber, 10),
	}, nil
}

// IssueBatch anchors a batch root. The returned BatchID is the consensus
// sequence number of the anchor message.
func (c *Client) IssueBatch(ctx context.Context, root digest.Digest) (certificate.BatchReceipt, error) {
	if root.IsZero() {
		return certificate.BatchReceipt{}, fmt.Errorf("%w: batch root is required", certificate.ErrInvalidInput)
	}

	submission, err := c.publish(ctx, Message{
		Protocol:  ProtocolID,
		Operation: OperationBatch,
		Root:      root.PrefixedHex(),
	})
	if err != nil {
		return certificate.BatchReceipt{}, err
	}

	c.roots.Add(submission.SequenceNumber, root)
	return certificate.BatchReceipt{
		TxRef:   submission.TransactionID,
		BatchID: strconv.FormatUint(submission.SequenceNumber, 10),
	}, nil
}

// GetCertificate reads the issue message certID back from the mirror node.
func (c *Client) GetCertificate(ctx context.Context, certID string) (certificate.LedgerCertificate, error) {
	sequence, err := parseSequence(certID)
	if err != nil {
		return certificate.LedgerCertificate{}, fmt.Errorf("%w: certificate %q: %v", certificate.ErrNotFound, certID, err)
	}
	if cached, ok := c.certificates.Get(sequence); ok {
		return cached, nil
	}

	message, anchor, err := c.fetchAnchor(ctx, sequence)
	if err != nil {
		return certificate.LedgerCertificate{}, err
	}

	hash, err := anchor.CertificateHash()
	if err != nil {
		return certificate.LedgerCertificate{}, fmt.Errorf("%w: certificate %s: %v", certificate.ErrNotFound, certID, err)
	}

	result := certificateFromMessage(sequence, message, anchor.HolderID, hash)
	c.certificates.Add(sequence, result)
	return result, nil
}

func certificateFromMessage(
	sequence uint64,
	message mirror.TopicMessage,
	holderID string,
	hash digest.Digest,
) certificate.LedgerCertificate {
	result := certificate.LedgerCertificate{
		ID:       strconv.FormatUint(sequence, 10),
		HolderID: holderID,
		Hash:     hash,
		Issuer:   message.PayerAccountID,
	}
	if issuedAt, err := mirror.ParseConsensusTimestamp(message.ConsensusTimestamp); err == nil {
		result.IssuedAt = issuedAt
	}
	return result
}

// VerifyBatchMembership folds proof over leaf and compares the result with the
// root anchored as batchID. It fails with certificate.ErrNotFound when the
// root is not visible on the topic.
func (c *Client) VerifyBatchMembership(
	ctx context.Context,
	leaf digest.Digest,
	batchID string,
	proof []digest.Digest,
) (bool, error) {
	root, err := c.GetBatchRoot(ctx, batchID)
	if err != nil {
		if errors.Is(err, certificate.ErrNotFound) {
			c.log.Warn().Str("batch_id", batchID).Err(err).Msg("batch root not anchored")
		}
		return false, err
	}

	return batchtree.Verify(leaf, proof, root), nil
}

// GetBatchRoot returns the root anchored as batchID.
func (c *Client) GetBatchRoot(ctx context.Context, batchID string) (digest.Digest, error) {
	sequence, err := parseSequence(batchID)
	if err != nil {
		return digest.Digest{}, fmt.Errorf("%w: batch %q: %v", certificate.ErrNotFound, batchID, err)
	}
	if cached, ok := c.roots.Get(sequence); ok {
		return cached, nil
	}

	_, anchor, err := c.fetchAnchor(ctx, sequence)
	if err != nil {
		return digest.Digest{}, err
	}

	root, err := anchor.BatchRoot()
	if err != nil {
		return digest.Digest{}, fmt.Errorf("%w: batch %s: %v", certificate.ErrNotFound, batchID, err)
	}

	c.roots.Add(sequence, root)
	return root, nil
}

// CreateAnchorTopic creates a new anchor topic and makes it the client's
// topic for subsequent writes.
func (c *Client) CreateAnchorTopic(ctx context.Context, options CreateTopicOptions) (string, string, error) {
	transaction := hedera.NewTopicCreateTransaction().SetTopicMemo(BuildTopicMemo(options.Scope))

	adminKey, err := c.resolvePublicKey(options.AdminKey, options.UseOperatorAsAdmin)
	if err != nil {
		return "", "", err
	}
	if adminKey != nil {
		transaction.SetAdminKey(*adminKey)
	}

	submitKey, err := c.resolvePublicKey(options.SubmitKey, options.UseOperatorAsSubmit)
	if err != nil {
		return "", "", err
	}
	if submitKey != nil {
		transaction.SetSubmitKey(*submitKey)
	}

	type created struct {
		topicID       string
		transactionID string
		err           error
	}
	done := make(chan created, 1)
	go func() {
		response, err := transaction.Execute(c.hederaClient)
		if err != nil {
			done <- created{err: classifyHederaError("create anchor topic", err)}
			return
		}
		receipt, err := response.GetReceipt(c.hederaClient)
		if err != nil {
			done <- created{err: classifyHederaError("create anchor topic receipt", err)}
			return
		}
		if receipt.TopicID == nil {
			done <- created{err: fmt.Errorf("create topic receipt did not include topic ID")}
			return
		}
		done <- created{topicID: receipt.TopicID.String(), transactionID: response.TransactionID.String()}
	}()

	select {
	case <-ctx.Done():
		return "", "", fmt.Errorf("%w: create anchor topic: %v", certificate.ErrLedgerUnavailable, ctx.Err())
	case result := <-done:
		if result.err != nil {
			return "", "", result.err
		}

		c.mu.Lock()
		c.topicID = result.topicID
		c.mu.Unlock()

		c.log.Info().
			Str("topic_id", result.topicID).
			Str("tx_id", result.transactionID).
			Msg("anchor topic created")
		return result.topicID, result.transactionID, nil
	}
}

// ValidateTopic checks through the mirror node that the configured topic
// carries an anchor memo, and returns the parsed memo.
func (c *Client) ValidateTopic(ctx context.Context) (*TopicMemo, error) {
	topicID, err := c.requireTopic()
	if err != nil {
		return nil, err
	}

	info, err := c.mirrorClient.GetTopicInfo(ctx, topicID)
	if err != nil {
		return nil, c.mirrorError(fmt.Sprintf("topic %s", topicID), err)
	}
	if info.Deleted {
		return nil, fmt.Errorf("%w: topic %s is deleted", certificate.ErrNotFound, topicID)
	}

	memo, ok := ParseTopicMemo(info.Memo)
	if !ok {
		return nil, fmt.Errorf("topic %s is not an anchor topic (memo %q)", topicID, info.Memo)
	}
	return memo, nil
}

func (c *Client) publish(ctx context.Context, message Message) (Submission, error) {
	payload, err := EncodeMessage(message)
	if err != nil {
		return Submission{}, err
	}

	transactionMemo := c.transactionMemo
	if transactionMemo == "" {
		transactionMemo = BuildTransactionMemo(message.Operation)
	}

	submit := c.submit
	if c.submitOverride != nil {
		submit = c.submitOverride
	}

	started := time.Now()
	submission, err := submit(ctx, payload, transactionMemo)
	if err != nil {
		c.log.Warn().
			Str("op", message.Operation).
			Err(err).
			Msg("anchor submission failed")
		return Submission{}, err
	}

	c.log.Info().
		Str("op", message.Operation).
		Str("tx_id", submission.TransactionID).
		Uint64("sequence", submission.SequenceNumber).
		Dur("took", time.Since(started)).
		Msg("anchor message confirmed")
	return submission, nil
}

// fetchAnchor loads and decodes the anchor message with the given sequence
// number, retrying temporary mirror failures.
func (c *Client) fetchAnchor(ctx context.Context, sequence uint64) (mirror.TopicMessage, Message, error) {
	topicID, err := c.requireTopic()
	if err != nil {
		return mirror.TopicMessage{}, Message{}, err
	}

	var found *mirror.TopicMessage
	err = retry.Do(ctx, c.backoff(), func(ctx context.Context) error {
		message, err := c.mirrorClient.GetTopicMessageBySequence(ctx, topicID, int64(sequence))
		if err != nil {
			if mirror.IsTemporary(err) {
				c.log.Debug().Uint64("sequence", sequence).Err(err).Msg("retrying mirror lookup")
				return retry.RetryableError(err)
			}
			return err
		}
		found = message
		return nil
	})
	if err != nil {
		return mirror.TopicMessage{}, Message{}, c.mirrorError(fmt.Sprintf("message %d on topic %s", sequence, topicID), err)
	}
	if found == nil {
		return mirror.TopicMessage{}, Message{}, fmt.Errorf("%w: no message %d on topic %s", certificate.ErrNotFound, sequence, topicID)
	}
	if found.Chunked() {
		return mirror.TopicMessage{}, Message{}, fmt.Errorf("%w: message %d on topic %s is chunked", certificate.ErrNotFound, sequence, topicID)
	}

	payload, err := mirror.DecodeMessageData(*found)
	if err != nil {
		return mirror.TopicMessage{}, Message{}, fmt.Errorf("%w: message %d: %v", certificate.ErrNotFound, sequence, err)
	}
	anchor, err := DecodeMessage(payload)
	if err != nil {
		return mirror.TopicMessage{}, Message{}, fmt.Errorf("%w: message %d is not an anchor: %v", certificate.ErrNotFound, sequence, err)
	}

	return *found, anchor, nil
}

func (c *Client) mirrorError(what string, err error) error {
	if mirror.IsNotFound(err) {
		return fmt.Errorf("%w: %s: %v", certificate.ErrNotFound, what, err)
	}
	return fmt.Errorf("%w: %s: %v", certificate.ErrLedgerUnavailable, what, err)
}

func (c *Client) requireTopic() (string, error) {
	topicID := c.TopicID()
	if topicID == "" {
		return "", fmt.Errorf("%w: anchor topic ID is not configured", certificate.ErrInvalidInput)
	}
	return topicID, nil
}

func (c *Client) backoff() retry.Backoff {
	backoff := retry.NewExponential(c.retryBase)
	backoff = retry.WithCappedDuration(c.retryCap, backoff)
	return retry.WithMaxRetries(c.retryAttempts, backoff)
}

func (c *Client) resolvePublicKey(rawKey string, useOperator bool) (*hedera.PublicKey, error) {
	if useOperator {
		publicKey := c.operatorKey.PublicKey()
		return &publicKey, nil
	}

	trimmed := strings.TrimSpace(rawKey)
	if trimmed == "" {
		return nil, nil
	}

	publicKey, publicErr := hedera.PublicKeyFromString(trimmed)
	if publicErr == nil {
		return &publicKey, nil
	}

	privateKey, privateErr := shared.ParsePrivateKey(trimmed)
	if privateErr != nil {
		return nil, fmt.Errorf("failed to parse key as public (%v) or private (%v)", publicErr, privateErr)
	}

	derivedKey := privateKey.PublicKey()
	return &derivedKey, nil
}

func parseSequence(id string) (uint64, error) {
	sequence, err := strconv.ParseUint(strings.TrimSpace(id), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("not a sequence number")
	}
	if sequence == 0 || sequence > uint64(1<<63-1) {
		return 0, fmt.Errorf("sequence number out of range")
	}
	return sequence, nil
}
