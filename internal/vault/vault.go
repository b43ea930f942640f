// internal/vault/vault.go
//
// Vault client wrapper for secret references in config.
//
// Context
// -------
//   - Config values may be literal or a reference of the form
//     `vault:mount/path#key`.  Resolve returns literals unchanged and reads
//     references from KV-v2 through the HashiCorp Vault Go SDK.
//   - Reads are cached per path#key for a TTL, and a background loop keeps
//     the token alive for long-running binaries.
//
// Public workflow
// ---------------
//  1. cli, err := vault.New(ctx, log)              // during boot.
//  2. pw,  err := cli.Resolve(ctx, cfg.Password)   // literal or reference.
package vault

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	vaultapi "github.com/hashicorp/vault/api"
	"go.uber.org/zap"
)

const refPrefix = "vault:"

// DefaultTTL is how long Resolve caches a secret.
const DefaultTTL = 10 * time.Minute

// ErrNotRef is returned by ParseRef for values without the vault: prefix.
var ErrNotRef = errors.New("vault: not a secret reference")

//
// SECTION 1.  References
//

// Ref addresses one key inside a KV-v2 secret.
type Ref struct {
	Mount string
	Path  string
	Key   string
}

func (r Ref) String() string { return refPrefix + r.Mount + "/" + r.Path + "#" + r.Key }

// IsRef reports whether s uses the vault: prefix.
func IsRef(s string) bool { return strings.HasPrefix(s, refPrefix) }

// ParseRef splits "vault:mount/path#key".
func ParseRef(s string) (Ref, error) {
	if !IsRef(s) {
		return Ref{}, ErrNotRef
	}
	body := strings.TrimPrefix(s, refPrefix)
	loc, key, ok := strings.Cut(body, "#")
	if !ok || key == "" {
		return Ref{}, fmt.Errorf("vault ref %q: missing #key", s)
	}
	mount, path, ok := strings.Cut(loc, "/")
	if !ok || mount == "" || path == "" {
		return Ref{}, fmt.Errorf("vault ref %q: want mount/path", s)
	}
	return Ref{Mount: mount, Path: path, Key: key}, nil
}

//
// SECTION 2.  Client
//

// Client is safe for concurrent use.  Zero value is invalid.
type Client struct {
	api *vaultapi.Client
	log *zap.SugaredLogger
	now func() time.Time

	cacheMu sync.RWMutex
	cache   map[Ref]cached
}

type cached struct {
	val string
	exp time.Time
}

// New reads VAULT_ADDR, VAULT_TOKEN, and friends from the environment.
func New(ctx context.Context, log *zap.SugaredLogger) (*Client, error) {
	cfg := vaultapi.DefaultConfig()
	if err := cfg.ReadEnvironment(); err != nil {
		return nil, fmt.Errorf("vault env cfg: %w", err)
	}
	return NewWithConfig(ctx, cfg, log)
}

// NewWithConfig builds a client from an explicit SDK config and starts the
// token-renewal loop, which stops with ctx.
func NewWithConfig(ctx context.Context, cfg *vaultapi.Config, log *zap.SugaredLogger) (*Client, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	api, err := vaultapi.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("vault api: %w", err)
	}
	c := &Client{
		api:   api,
		log:   log,
		now:   time.Now,
		cache: make(map[Ref]cached),
	}
	go c.renewLoop(ctx)
	return c, nil
}

// SetToken overrides the token read from the environment.
func (c *Client) SetToken(tok string) { c.api.SetToken(tok) }

// Resolve returns v unchanged unless it is a vault: reference, in which case
// the referenced secret value is returned.
func (c *Client) Resolve(ctx context.Context, v string) (string, error) {
	if !IsRef(v) {
		return v, nil
	}
	ref, err := ParseRef(v)
	if err != nil {
		return "", err
	}
	return c.GetKV(ctx, ref, DefaultTTL)
}

// GetKV fetches ref from KV-v2.  If ttl > 0 the result is cached.
func (c *Client) GetKV(ctx context.Context, ref Ref, ttl time.Duration) (string, error) {
	if ttl > 0 {
		c.cacheMu.RLock()
		cv, ok := c.cache[ref]
		c.cacheMu.RUnlock()
		if ok && c.now().Before(cv.exp) {
			return cv.val, nil
		}
	}

	sec, err := c.api.KVv2(ref.Mount).Get(ctx, ref.Path)
	if err != nil {
		return "", fmt.Errorf("vault get %s/%s: %w", ref.Mount, ref.Path, err)
	}
	raw, ok := sec.Data[ref.Key]
	if !ok {
		return "", fmt.Errorf("key %q not found in %s/%s", ref.Key, ref.Mount, ref.Path)
	}
	sval, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("value at %s is not a string", ref)
	}

	if ttl > 0 {
		c.cacheMu.Lock()
		c.cache[ref] = cached{val: sval, exp: c.now().Add(ttl)}
		c.cacheMu.Unlock()
	}
	return sval, nil
}

//
// SECTION 3.  Background token renewal
//

func (c *Client) renewLoop(ctx context.Context) {
	for ctx.Err() == nil {
		sec, err := c.api.Auth().Token().RenewSelfWithContext(ctx, 0)
		if err != nil {
			c.log.Debugw("vault token renew failed", "err", err)
			backoff(ctx, 30*time.Second)
			continue
		}
		if sec == nil || sec.Auth == nil || !sec.Auth.Renewable {
			c.log.Infow("vault token not renewable")
			backoff(ctx, time.Hour)
			continue
		}

		w, err := c.api.NewLifetimeWatcher(&vaultapi.LifetimeWatcherInput{Secret: sec})
		if err != nil {
			c.log.Warnw("vault watcher init failed", "err", err)
			backoff(ctx, 30*time.Second)
			continue
		}
		go w.Start()
		c.watch(ctx, w)
		w.Stop()
		backoff(ctx, 15*time.Second)
	}
}

func (c *Client) watch(ctx context.Context, w *vaultapi.LifetimeWatcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-w.DoneCh():
			if err != nil {
				c.log.Warnw("vault token renewal stopped", "err", err)
			}
			return
		case ev := <-w.RenewCh():
			if ev != nil && ev.Secret != nil && ev.Secret.Auth != nil {
				c.log.Debugw("vault token renewed", "ttl_s", ev.Secret.Auth.LeaseDuration)
			}
		}
	}
}

func backoff(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
