package pagination

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidCursor = errors.New("invalid cursor")

// Cursor encodes a timestamp + ULID for stable keyset ordering. Lists order by
// (created_at, ulid) so ties on the timestamp break deterministically.
type Cursor struct {
	Timestamp time.Time
	ULID      string
}

// Encode encodes the cursor as base64(ts_unix_nano:ULID).
func Encode(timestamp time.Time, ulid string) string {
	value := fmt.Sprintf("%d:%s", timestamp.UTC().UnixNano(), strings.ToUpper(strings.TrimSpace(ulid)))
	return base64.RawURLEncoding.EncodeToString([]byte(value))
}

// Decode decodes base64(ts_unix_nano:ULID) into a Cursor.
func Decode(cursor string) (Cursor, error) {
	cursor = strings.TrimSpace(cursor)
	if cursor == "" {
		return Cursor{}, ErrInvalidCursor
	}
	decoded, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return Cursor{}, ErrInvalidCursor
	}
	parts := strings.SplitN(string(decoded), ":", 2)
	if len(parts) != 2 {
		return Cursor{}, ErrInvalidCursor
	}
	unixNano, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return Cursor{}, ErrInvalidCursor
	}
	if strings.TrimSpace(parts[1]) == "" {
		return Cursor{}, ErrInvalidCursor
	}
	return Cursor{Timestamp: time.Unix(0, unixNano).UTC(), ULID: strings.ToUpper(strings.TrimSpace(parts[1]))}, nil
}

// EncodeSequence encodes a BIGSERIAL sequence number, used by the append-only
// moderation log feed.
func EncodeSequence(sequence int64) string {
	value := fmt.Sprintf("seq_%d", sequence)
	return base64.RawURLEncoding.EncodeToString([]byte(value))
}

// DecodeSequence decodes base64(seq_<number>) into a sequence number.
func DecodeSequence(cursor string) (int64, error) {
	cursor = strings.TrimSpace(cursor)
	if cursor == "" {
		return 0, ErrInvalidCursor
	}
	decoded, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return 0, ErrInvalidCursor
	}
	value := string(decoded)
	if !strings.HasPrefix(value, "seq_") {
		return 0, ErrInvalidCursor
	}
	seq, err := strconv.ParseInt(strings.TrimPrefix(value, "seq_"), 10, 64)
	if err != nil || seq < 0 {
		return 0, ErrInvalidCursor
	}
	return seq, nil
}
