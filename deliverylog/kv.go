package deliverylog

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/extreme-creations/formie/errors"
	"github.com/extreme-creations/formie/pkg/retry"
)

// KVStore persists delivery results in a NATS JetStream KV bucket, keyed
// "submissionID.integrationHandle.attemptID". Create-only writes give the
// append-only guarantee: an existing attempt can never be overwritten.
type KVStore struct {
	bucket  jetstream.KeyValue
	timeout time.Duration
}

// NewKVStore wraps a JetStream KV bucket as a delivery log store.
func NewKVStore(bucket jetstream.KeyValue) *KVStore {
	return &KVStore{
		bucket:  bucket,
		timeout: 5 * time.Second,
	}
}

// Append implements Store. The write retries briefly on transient NATS
// errors so a log entry survives even when the pipeline is being torn down.
func (s *KVStore) Append(ctx context.Context, result Result) error {
	data, err := json.Marshal(result)
	if err != nil {
		return errors.WrapInvalid(err, "KVStore", "Append", "marshal result")
	}

	key := sanitizeKey(result.Key())

	err = retry.Do(ctx, retry.Quick(), func() error {
		opCtx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()

		_, createErr := s.bucket.Create(opCtx, key, data)
		if createErr == jetstream.ErrKeyExists {
			return retry.NonRetryable(createErr)
		}
		return createErr
	})
	if err != nil {
		return errors.WrapTransient(err, "KVStore", "Append", fmt.Sprintf("create %s", key))
	}

	return nil
}

// List implements Store.
func (s *KVStore) List(ctx context.Context, submissionID int64) ([]Result, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	lister, err := s.bucket.ListKeysFiltered(opCtx, strconv.FormatInt(submissionID, 10)+".>")
	if err != nil {
		return nil, errors.WrapTransient(err, "KVStore", "List", "list keys")
	}

	var out []Result
	for key := range lister.Keys() {
		entry, err := s.bucket.Get(opCtx, key)
		if err != nil {
			if err == jetstream.ErrKeyNotFound {
				continue
			}
			return nil, errors.WrapTransient(err, "KVStore", "List", fmt.Sprintf("get %s", key))
		}

		var result Result
		if err := json.Unmarshal(entry.Value(), &result); err != nil {
			return nil, errors.WrapInvalid(err, "KVStore", "List", fmt.Sprintf("unmarshal %s", key))
		}
		out = append(out, result)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})

	return out, nil
}

// sanitizeKey replaces characters NATS KV keys do not allow.
func sanitizeKey(key string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, key)
}
