package anchor

import (
	"context"
	"errors"
	"fmt"

	hedera "github.com/hashgraph/hedera-sdk-go/v2"
	"github.com/sethvargo/go-retry"

	"github.com/hashgraph-online/certificate-sdk-go/pkg/certificate"
)

// submit sends payload to the anchor topic and waits for its receipt. The
// submit step is retried only on precheck statuses that guarantee the
// transaction never reached consensus; the receipt step is retried while the
// receipt is pending, so a message is never submitted twice.
func (c *Client) submit(ctx context.Context, payload []byte, transactionMemo string) (Submission, error) {
	topicID, err := c.requireTopic()
	if err != nil {
		return Submission{}, err
	}
	topic, err := hedera.TopicIDFromString(topicID)
	if err != nil {
		return Submission{}, fmt.Errorf("%w: invalid topic ID %q: %v", certificate.ErrInvalidInput, topicID, err)
	}

	var response hedera.TransactionResponse
	err = retry.Do(ctx, c.backoff(), func(ctx context.Context) error {
		result, err := callWithContext(ctx, func() (hedera.TransactionResponse, error) {
			return hedera.NewTopicMessageSubmitTransaction().
				SetTopicID(topic).
				SetMessage(payload).
				SetMaxChunks(1).
				SetTransactionMemo(transactionMemo).
				Execute(c.hederaClient)
		})
		if err != nil {
			if isPendingPrecheck(err) {
				c.log.Debug().Err(err).Msg("retrying anchor submission")
				return retry.RetryableError(err)
			}
			return err
		}
		response = result
		return nil
	})
	if err != nil {
		return Submission{}, classifyHederaError("submit anchor message", err)
	}

	var receipt hedera.TransactionReceipt
	err = retry.Do(ctx, c.backoff(), func(ctx context.Context) error {
		result, err := callWithContext(ctx, func() (hedera.TransactionReceipt, error) {
			return response.GetReceipt(c.hederaClient)
		})
		if err != nil {
			if isPendingReceipt(err) {
				c.log.Debug().Err(err).Msg("waiting for anchor receipt")
				return retry.RetryableError(err)
			}
			return err
		}
		receipt = result
		return nil
	})
	if err != nil {
		return Submission{}, classifyHederaError("anchor message receipt", err)
	}

	return Submission{
		TransactionID:  response.TransactionID.String(),
		SequenceNumber: receipt.TopicSequenceNumber,
	}, nil
}

// callWithContext runs call on its own goroutine and stops waiting once ctx
// is done. The SDK call itself is not interrupted.
func callWithContext[T any](ctx context.Context, call func() (T, error)) (T, error) {
	type result struct {
		value T
		err   error
	}
	done := make(chan result, 1)
	go func() {
		value, err := call()
		done <- result{value: value, err: err}
	}()

	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case outcome := <-done:
		return outcome.value, outcome.err
	}
}

func isPendingPrecheck(err error) bool {
	var precheck hedera.ErrHederaPreCheckStatus
	if !errors.As(err, &precheck) {
		return false
	}
	switch precheck.Status {
	case hedera.StatusBusy, hedera.StatusPlatformTransactionNotCreated, hedera.StatusPlatformNotActive:
		return true
	}
	return false
}

func isPendingReceipt(err error) bool {
	var receiptErr hedera.ErrHederaReceiptStatus
	if !errors.As(err, &receiptErr) {
		return false
	}
	return receiptErr.Status == hedera.StatusReceiptNotFound || receiptErr.Status == hedera.StatusUnknown
}

// classifyHederaError maps SDK failures onto the ledger error taxonomy.
// A definitive status from the network is a rejection; everything else,
// including exhausted retries on pending states, is unavailability.
func classifyHederaError(what string, err error) error {
	if isPendingPrecheck(err) || isPendingReceipt(err) {
		return fmt.Errorf("%w: %s: %v", certificate.ErrLedgerUnavailable, what, err)
	}

	var precheck hedera.ErrHederaPreCheckStatus
	var receiptErr hedera.ErrHederaReceiptStatus
	if errors.As(err, &precheck) || errors.As(err, &receiptErr) {
		return fmt.Errorf("%w: %s: %v", certificate.ErrLedgerRejected, what, err)
	}
	return fmt.Errorf("%w: %s: %v", certificate.ErrLedgerUnavailable, what, err)
}
