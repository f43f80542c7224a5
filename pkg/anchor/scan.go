package anchor

import (
	"context"
	"fmt"

	"github.com/hashgraph-online/certificate-sdk-go/pkg/mirror"
)

// TopicScan summarizes the messages found on the anchor topic.
type TopicScan struct {
	TopicID      string  `json:"topic_id"`
	Messages     int     `json:"messages"`
	Certificates int     `json:"certificates"`
	Batches      int     `json:"batches"`
	LastSequence int64   `json:"last_sequence"`
	Foreign      []int64 `json:"foreign,omitempty"`
}

// ScanTopic reads every message of the anchor topic from the mirror node and
// counts the anchors it holds. Messages that are not anchors are listed by
// sequence number. Decoded anchors are added to the lookup caches.
func (c *Client) ScanTopic(ctx context.Context) (TopicScan, error) {
	topicID, err := c.requireTopic()
	if err != nil {
		return TopicScan{}, err
	}

	messages, err := c.mirrorClient.GetTopicMessages(ctx, topicID, mirror.MessageQueryOptions{Order: "asc"})
	if err != nil {
		return TopicScan{}, c.mirrorError(fmt.Sprintf("messages of topic %s", topicID), err)
	}

	scan := TopicScan{TopicID: topicID, Messages: len(messages)}
	for _, message := range messages {
		if message.SequenceNumber > scan.LastSequence {
			scan.LastSequence = message.SequenceNumber
		}

		anchor, ok := decodeTopicMessage(message)
		if !ok {
			scan.Foreign = append(scan.Foreign, message.SequenceNumber)
			continue
		}
		sequence := uint64(message.SequenceNumber)
		switch anchor.Operation {
		case OperationIssue:
			scan.Certificates++
			if hash, err := anchor.CertificateHash(); err == nil {
				c.certificates.Add(sequence, certificateFromMessage(sequence, message, anchor.HolderID, hash))
			}
		case OperationBatch:
			scan.Batches++
			if root, err := anchor.BatchRoot(); err == nil {
				c.roots.Add(sequence, root)
			}
		}
	}

	c.log.Info().
		Str("topic_id", topicID).
		Int("messages", scan.Messages).
		Int("certificates", scan.Certificates).
		Int("batches", scan.Batches).
		Int("foreign", len(scan.Foreign)).
		Msg("anchor topic scanned")
	return scan, nil
}

func decodeTopicMessage(message mirror.TopicMessage) (Message, bool) {
	if message.Chunked() || message.SequenceNumber <= 0 {
		return Message{}, false
	}
	payload, err := mirror.DecodeMessageData(message)
	if err != nil {
		return Message{}, false
	}
	anchor, err := DecodeMessage(payload)
	if err != nil {
		return Message{}, false
	}
	return anchor, true
}
