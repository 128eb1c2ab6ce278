// Package records provides a NATS-backed persistence sink for conversion
// records.
package records

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/readaloud/synthesis-service/internal/core"
)

// NatsRecordSink appends conversion records to a JetStream key-value
// bucket, one record per UUID key.
type NatsRecordSink struct {
	keyValue nats.KeyValue
	bucket   string
}

// NewNatsRecordSink creates or binds the records bucket.
func NewNatsRecordSink(jetstreamContext nats.JetStreamContext, bucketName string) (*NatsRecordSink, error) {
	keyValue, err := jetstreamContext.CreateKeyValue(&nats.KeyValueConfig{
		Bucket:      bucketName,
		Description: fmt.Sprintf("Conversion records for the %s bucket.", bucketName),
	})
	if err != nil {
		// If the bucket already exists, bind to it.
		keyValue, err = jetstreamContext.KeyValue(bucketName)
		if err != nil {
			return nil, fmt.Errorf("failed to bind to records bucket '%s': %w", bucketName, err)
		}
	}

	return &NatsRecordSink{
		keyValue: keyValue,
		bucket:   bucketName,
	}, nil
}

// Record appends one conversion record under a fresh UUID key.
func (s *NatsRecordSink) Record(_ context.Context, record core.ConversionRecord) error {
	data, marshalErr := json.Marshal(record)
	if marshalErr != nil {
		return fmt.Errorf("failed to marshal conversion record: %w", marshalErr)
	}

	key := uuid.NewString()

	_, putErr := s.keyValue.Put(key, data)
	if putErr != nil {
		return fmt.Errorf("failed to put record '%s' to bucket '%s': %w", key, s.bucket, putErr)
	}

	return nil
}
