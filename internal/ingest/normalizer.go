package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/oslocurrency/oslocrawler-ws/internal/domain"
)

// Envelope fields owned by the normalizer. Anything else in the payload is relayed as is.
var reservedFields = []string{"hash", "account", "amount", "block", "timestamp"}

// Normalize parses a raw ingest payload into a Notification stamped with receivedAt.
//
// The payload is a JSON object whose "block" field holds the block as a JSON-encoded string.
// A decoded block object is enriched with the envelope's account, hash and amount; any other
// non-null JSON value is relayed as decoded.
func Normalize(raw []byte, receivedAt time.Time) (domain.Notification, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return domain.Notification{}, fmt.Errorf("%w: payload: %w", domain.ErrMalformedBlock, err)
	}
	if fields == nil {
		return domain.Notification{}, fmt.Errorf("%w: payload is null", domain.ErrMalformedBlock)
	}

	hash, err := requiredString(fields, "hash")
	if err != nil {
		return domain.Notification{}, err
	}
	account, err := requiredString(fields, "account")
	if err != nil {
		return domain.Notification{}, err
	}
	amount, err := amountString(fields["amount"])
	if err != nil {
		return domain.Notification{}, err
	}
	block, err := decodeBlock(fields["block"])
	if err != nil {
		return domain.Notification{}, err
	}

	if obj, ok := block.(map[string]any); ok {
		obj["account"] = account
		obj["hash"] = hash
		obj["amount"] = amount
	}

	for _, name := range reservedFields {
		delete(fields, name)
	}
	if len(fields) == 0 {
		fields = nil
	}

	return domain.Notification{
		Hash:      hash,
		Account:   account,
		Amount:    amount,
		Block:     block,
		Timestamp: receivedAt.UnixMilli(),
		Extra:     fields,
	}, nil
}

func requiredString(fields map[string]json.RawMessage, name string) (string, error) {
	raw, ok := fields[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", domain.ErrMissingField, name)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil || s == "" {
		return "", fmt.Errorf("%w: %s must be a non-empty string", domain.ErrMissingField, name)
	}
	return s, nil
}

// amountString accepts the amount as a JSON string or number and returns its decimal text.
// Raw amounts exceed float64 precision, so numbers are kept verbatim.
func amountString(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}

	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&n); err != nil {
		return "", fmt.Errorf("%w: amount must be a string or number", domain.ErrMalformedBlock)
	}
	return n.String(), nil
}

func decodeBlock(raw json.RawMessage) (any, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: block", domain.ErrMissingField)
	}

	var encoded string
	if err := json.Unmarshal(raw, &encoded); err != nil {
		return nil, fmt.Errorf("%w: block must be a JSON-encoded string", domain.ErrMalformedBlock)
	}

	var block any
	dec := json.NewDecoder(bytes.NewReader([]byte(encoded)))
	dec.UseNumber()
	if err := dec.Decode(&block); err != nil {
		return nil, fmt.Errorf("%w: block: %w", domain.ErrMalformedBlock, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: block has trailing data", domain.ErrMalformedBlock)
	}
	if block == nil {
		return nil, fmt.Errorf("%w: block is null", domain.ErrMalformedBlock)
	}
	return block, nil
}
