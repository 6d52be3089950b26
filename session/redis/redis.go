package redis

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/zlnvch/notesync/models"
	"github.com/zlnvch/notesync/session"
)

// RedisSessionPersister keeps one session per profile in a Redis hash.
type RedisSessionPersister struct {
	client redis.UniversalClient
	key    string
}

func NewRedisSessionPersister(ctx context.Context, devMode bool, redisEndpoint string, profile string) (*RedisSessionPersister, error) {
	var client redis.UniversalClient
	if devMode {
		client = redis.NewClient(&redis.Options{
			Addr: redisEndpoint,
		})
	} else {
		client = redis.NewClient(&redis.Options{
			Addr: redisEndpoint,
			// Managed Redis endpoints require TLS
			TLSConfig: &tls.Config{},
		})
	}

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return NewRedisSessionPersisterFromClient(client, profile), nil
}

func NewRedisSessionPersisterFromClient(client redis.UniversalClient, profile string) *RedisSessionPersister {
	return &RedisSessionPersister{client: client, key: buildSessionKey(profile)}
}

func buildSessionKey(profile string) string {
	return "session:{" + profile + "}"
}

const (
	fieldAccessToken  = "access_token"
	fieldRefreshToken = "refresh_token"
	fieldUser         = "user"
)

func (p *RedisSessionPersister) Load(ctx context.Context) (models.Session, error) {
	fields, err := p.client.HGetAll(ctx, p.key).Result()
	if err != nil {
		return models.Session{}, err
	}
	if len(fields) == 0 {
		return models.Session{}, session.ErrNoSession
	}

	sess := models.Session{
		AccessToken:  fields[fieldAccessToken],
		RefreshToken: fields[fieldRefreshToken],
	}
	if raw := fields[fieldUser]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &sess.User); err != nil {
			return models.Session{}, fmt.Errorf("decode cached user: %w", err)
		}
	}
	return sess, nil
}

// Save rewrites the whole hash in one MULTI so readers never see a token pair
// from two different sessions.
func (p *RedisSessionPersister) Save(ctx context.Context, sess models.Session) error {
	userBytes, err := json.Marshal(sess.User)
	if err != nil {
		return err
	}

	pipe := p.client.TxPipeline()
	pipe.Del(ctx, p.key)
	pipe.HSet(ctx, p.key,
		fieldAccessToken, sess.AccessToken,
		fieldRefreshToken, sess.RefreshToken,
		fieldUser, userBytes,
	)
	_, err = pipe.Exec(ctx)
	return err
}

func (p *RedisSessionPersister) Clear(ctx context.Context) error {
	return p.client.Del(ctx, p.key).Err()
}
