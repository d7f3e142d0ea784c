package middleware

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/marketplace-backend/internal/config"
	"github.com/iliyamo/marketplace-backend/internal/metrics"
)

// captureWriter copies the response body while forwarding it to the client.
type captureWriter struct {
	http.ResponseWriter
	status int
	buf    bytes.Buffer
	size   int64
	limit  int64
}

func (cw *captureWriter) WriteHeader(code int) {
	cw.status = code
	cw.ResponseWriter.WriteHeader(code)
}

func (cw *captureWriter) Write(b []byte) (int, error) {
	if cw.limit <= 0 {
		cw.buf.Write(b)
	} else if remain := cw.limit - cw.size; remain > 0 {
		if int64(len(b)) <= remain {
			cw.buf.Write(b)
		} else {
			cw.buf.Write(b[:remain])
		}
	}
	cw.size += int64(len(b))
	return cw.ResponseWriter.Write(b)
}

// cacheKey builds a stable key from the parts selected by KeyStrategy.
// gen is the catalogue generation; bumping it orphans every older entry.
func cacheKey(cfg config.CacheConfig, c echo.Context, gen int64) string {
	r := c.Request()
	route := c.Path()
	query := r.URL.RawQuery

	var parts []string
	switch strings.ToLower(cfg.KeyStrategy) {
	case "route":
		parts = []string{"route", route}
	case "method_route":
		parts = []string{"method", r.Method, "route", route}
	case "method_route_query":
		parts = []string{"method", r.Method, "route", route, "q", query}
	default: // route_query
		parts = []string{"route", route, "q", query}
	}
	// Path parameters are part of the route template only, so add the
	// concrete path when it differs.
	if r.URL.Path != route {
		parts = append(parts, "p", r.URL.Path)
	}
	sum := sha1.Sum([]byte(strings.Join(parts, ":")))
	return fmt.Sprintf("%s:%d:%x", cfg.Prefix, gen, sum[:])
}

// encodePayload packs [4 bytes status][4 bytes header length][header JSON][body].
func encodePayload(status int, header http.Header, body []byte) ([]byte, error) {
	hdrJSON, err := json.Marshal(header)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 8+len(hdrJSON)+len(body))
	binary.BigEndian.PutUint32(out[0:4], uint32(status))
	binary.BigEndian.PutUint32(out[4:8], uint32(len(hdrJSON)))
	copy(out[8:], hdrJSON)
	copy(out[8+len(hdrJSON):], body)
	return out, nil
}

func decodePayload(bs []byte) (status int, header http.Header, body []byte, ok bool) {
	if len(bs) < 8 {
		return 0, nil, nil, false
	}
	status = int(binary.BigEndian.Uint32(bs[0:4]))
	hlen := int(binary.BigEndian.Uint32(bs[4:8]))
	if hlen < 0 || 8+hlen > len(bs) {
		return 0, nil, nil, false
	}
	header = make(http.Header)
	if hlen > 0 {
		if err := json.Unmarshal(bs[8:8+hlen], &header); err != nil {
			return 0, nil, nil, false
		}
	}
	return status, header, bs[8+hlen:], true
}

// cacheStore is the part of Redis the response cache needs.  Get
// reports a miss as redis.Nil.
type cacheStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetEx(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Incr(ctx context.Context, key string) error
}

type redisStore struct{ rdb *redis.Client }

func (r redisStore) Get(ctx context.Context, key string) ([]byte, error) {
	return r.rdb.Get(ctx, key).Bytes()
}

func (r redisStore) SetEx(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.rdb.SetEx(ctx, key, value, ttl).Err()
}

func (r redisStore) Incr(ctx context.Context, key string) error {
	return r.rdb.Incr(ctx, key).Err()
}

// ResponseCache caches successful responses of the public catalogue in
// Redis, headers included, so a hit is byte-identical to the original.
// Every entry is keyed under the current catalogue generation, and
// Invalidate bumps the generation after a successful write, so a product
// that is rejected, sent back to pending or deleted stops being served
// from the cache on the very next request.  When the generation cannot be
// read the request bypasses the cache.
type ResponseCache struct {
	cfg     config.CacheConfig
	store   cacheStore
	log     *logrus.Logger
	ttl     time.Duration
	maxBody int64
}

// NewResponseCache returns a cache that is a no-op when caching is
// disabled or Redis is unavailable.
func NewResponseCache(cfg config.CacheConfig, rdb *redis.Client, log *logrus.Logger) *ResponseCache {
	var store cacheStore
	if cfg.Enabled && rdb != nil {
		store = redisStore{rdb: rdb}
	}
	return newResponseCache(cfg, store, log)
}

func newResponseCache(cfg config.CacheConfig, store cacheStore, log *logrus.Logger) *ResponseCache {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &ResponseCache{cfg: cfg, store: store, log: log, ttl: ttl, maxBody: int64(cfg.MaxBodyBytes)}
}

func (rc *ResponseCache) genKey() string { return rc.cfg.Prefix + ":gen" }

// generation returns the current catalogue generation.  A missing counter
// is generation 0.
func (rc *ResponseCache) generation(ctx context.Context) (int64, error) {
	bs, err := rc.store.Get(ctx, rc.genKey())
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(string(bs), 10, 64)
}

// Bump starts a new catalogue generation.
func (rc *ResponseCache) Bump(ctx context.Context) error {
	if rc.store == nil {
		return nil
	}
	return rc.store.Incr(ctx, rc.genKey())
}

// Invalidate bumps the catalogue generation once the wrapped write has
// succeeded.  Failed writes leave the cache alone.
func (rc *ResponseCache) Invalidate() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if rc.store == nil {
			return next
		}
		return func(c echo.Context) error {
			if err := next(c); err != nil {
				return err
			}
			if c.Response().Status >= http.StatusBadRequest {
				return nil
			}
			if err := rc.Bump(context.WithoutCancel(c.Request().Context())); err != nil {
				rc.log.WithError(err).WithField("path", c.Path()).Warn("cache: invalidation failed")
			}
			return nil
		}
	}
}

// Serve answers cacheable requests from the cache and stores successful
// responses.
func (rc *ResponseCache) Serve() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if rc.store == nil {
			return next
		}
		return func(c echo.Context) error {
			if !rc.cfg.Allows(c.Request().Method) {
				return next(c)
			}
			ctx := c.Request().Context()
			gen, err := rc.generation(ctx)
			if err != nil {
				return next(c)
			}
			key := cacheKey(rc.cfg, c, gen)

			if bs, err := rc.store.Get(ctx, key); err == nil {
				if status, hdr, body, ok := decodePayload(bs); ok {
					metrics.CacheLookup(true)
					for k, vals := range hdr {
						if strings.EqualFold(k, echo.HeaderContentLength) {
							continue
						}
						for _, v := range vals {
							c.Response().Header().Add(k, v)
						}
					}
					c.Response().Header().Set("X-Cache", "HIT")
					c.Response().WriteHeader(status)
					if len(body) > 0 {
						_, _ = c.Response().Write(body)
					}
					return nil
				}
			}
			metrics.CacheLookup(false)

			cw := &captureWriter{ResponseWriter: c.Response().Writer, status: http.StatusOK, limit: rc.maxBody}
			c.Response().Writer = cw
			c.Response().Header().Set("X-Cache", "MISS")

			if err := next(c); err != nil {
				return err
			}
			if cw.status != http.StatusOK || (rc.maxBody > 0 && cw.size > rc.maxBody) {
				return nil
			}
			hdr := c.Response().Header().Clone()
			hdr.Del("X-Cache")
			if payload, err := encodePayload(cw.status, hdr, cw.buf.Bytes()); err == nil {
				_ = rc.store.SetEx(context.WithoutCancel(ctx), key, payload, rc.ttl)
			}
			return nil
		}
	}
}
