package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"
)

// ValkeyOptions configures the Valkey-backed store.
type ValkeyOptions struct {
	Address   string
	Username  string
	Password  string
	SelectDB  int
	KeyPrefix string
	// DisableCache turns off client-side caching; required against servers
	// without RESP3 invalidation support (miniredis in tests).
	DisableCache bool
}

// ValkeyStore persists sessions as JSON values in Valkey. Expiry is delegated
// to the server via per-key TTLs derived from ExpiresAt, so no sweep is
// needed for this backend.
type ValkeyStore struct {
	client valkey.Client
	prefix string
}

// NewValkeyStore connects to Valkey and returns a store.
func NewValkeyStore(opts ValkeyOptions) (*ValkeyStore, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress:  []string{opts.Address},
		Username:     opts.Username,
		Password:     opts.Password,
		SelectDB:     opts.SelectDB,
		DisableCache: opts.DisableCache,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to valkey: %w", err)
	}

	prefix := opts.KeyPrefix
	if prefix == "" {
		prefix = "hermod"
	}
	return &ValkeyStore{client: client, prefix: prefix}, nil
}

func (v *ValkeyStore) key(userID, channelID string) string {
	return fmt.Sprintf("%s:sess:%s:%s", v.prefix, userID, channelID)
}

func (v *ValkeyStore) Get(ctx context.Context, userID, channelID string) (*Session, error) {
	raw, err := v.client.Do(ctx, v.client.B().Get().Key(v.key(userID, channelID)).Build()).ToString()
	if err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal([]byte(raw), &sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if sess.Expired(time.Now()) {
		return nil, nil
	}
	return &sess, nil
}

func (v *ValkeyStore) Set(ctx context.Context, userID, channelID string, s *Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	key := v.key(userID, channelID)
	builder := v.client.B().Set().Key(key).Value(string(raw))

	var cmd valkey.Completed
	if s.ExpiresAt != nil {
		ttl := time.Until(*s.ExpiresAt)
		if ttl <= 0 {
			return v.Delete(ctx, userID, channelID)
		}
		cmd = builder.Ex(ttl).Build()
	} else {
		cmd = builder.Build()
	}

	if err := v.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("set session: %w", err)
	}
	return nil
}

func (v *ValkeyStore) Delete(ctx context.Context, userID, channelID string) error {
	cmd := v.client.B().Del().Key(v.key(userID, channelID)).Build()
	if err := v.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (v *ValkeyStore) Clear(ctx context.Context, userID string) error {
	pattern := fmt.Sprintf("%s:sess:%s:*", v.prefix, userID)

	var cursor uint64
	for {
		resp := v.client.Do(ctx, v.client.B().Scan().Cursor(cursor).Match(pattern).Count(100).Build())
		entry, err := resp.AsScanEntry()
		if err != nil {
			return fmt.Errorf("scan sessions: %w", err)
		}
		if len(entry.Elements) > 0 {
			cmd := v.client.B().Del().Key(entry.Elements...).Build()
			if err := v.client.Do(ctx, cmd).Error(); err != nil {
				return fmt.Errorf("clear sessions: %w", err)
			}
		}
		cursor = entry.Cursor
		if cursor == 0 {
			return nil
		}
	}
}

// Close releases the client connection.
func (v *ValkeyStore) Close() { v.client.Close() }

var _ Store = (*ValkeyStore)(nil)
