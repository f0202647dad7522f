// Package quota enforces the daily budget of model-backed analyses.
package quota

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"yukti-backend/store"
)

// Field is the name reported to clients for the consumed bucket.
const Field = "analyses"

// HeaderRemaining carries the budget left after the current request.
const HeaderRemaining = "X-Quota-Remaining"

var ErrExhausted = errors.New("quota exhausted")

type counter struct {
	Used int `json:"used"`
}

// Validator counts analyses per UTC day in the store.
type Validator struct {
	kv     store.KV
	limit  int
	logger *zap.Logger

	mu  sync.Mutex
	now func() time.Time
}

// NewValidator returns a validator allowing limit analyses per day. A limit of 0 or
// less allows everything.
func NewValidator(kv store.KV, limit int, logger *zap.Logger) *Validator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Validator{kv: kv, limit: limit, logger: logger, now: time.Now}
}

func (v *Validator) Enabled() bool { return v.limit > 0 }

func (v *Validator) key() string { return store.QuotaKey(v.now().UTC().Format("2006-01-02")) }

func (v *Validator) load(ctx context.Context, key string) (counter, error) {
	var c counter
	b, err := v.kv.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return c, nil
	}
	if err != nil {
		return c, err
	}
	if err := json.Unmarshal(b, &c); err != nil {
		v.logger.Warn("quota counter unreadable, starting over", zap.String("key", key), zap.Error(err))
		return counter{}, nil
	}
	return c, nil
}

// Remaining reports the budget left today, or -1 when the quota is disabled.
func (v *Validator) Remaining(ctx context.Context) (int, error) {
	if !v.Enabled() {
		return -1, nil
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	c, err := v.load(ctx, v.key())
	if err != nil {
		return 0, err
	}
	return max(v.limit-c.Used, 0), nil
}

// Consume takes one unit from today's budget and returns what is left.
func (v *Validator) Consume(ctx context.Context) (int, error) {
	_, remaining, err := v.consume(ctx)
	return remaining, err
}

func (v *Validator) consume(ctx context.Context) (string, int, error) {
	if !v.Enabled() {
		return "", -1, nil
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	key := v.key()
	c, err := v.load(ctx, key)
	if err != nil {
		return key, 0, err
	}
	if c.Used >= v.limit {
		v.logger.Info("quota exhausted", zap.String("field", Field), zap.Int("limit", v.limit))
		return key, 0, ErrExhausted
	}
	c.Used++
	b, _ := json.Marshal(c)
	if err := v.kv.Set(ctx, key, b); err != nil {
		return key, 0, err
	}
	remaining := v.limit - c.Used
	v.logger.Debug("quota consumed", zap.String("field", Field), zap.Int("remaining", remaining))
	return key, remaining, nil
}

// refund returns one unit to the counter stored under key.
func (v *Validator) refund(ctx context.Context, key string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	c, err := v.load(ctx, key)
	if err != nil || c.Used == 0 {
		return err
	}
	c.Used--
	b, _ := json.Marshal(c)
	return v.kv.Set(ctx, key, b)
}

// Middleware consumes one unit before the wrapped handler runs. A request the handler
// rejects as a client error gets its unit back, since no model was called.
func (v *Validator) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key, remaining, err := v.consume(c.Request.Context())
		switch {
		case errors.Is(err, ErrExhausted):
			c.Header(HeaderRemaining, "0")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": err.Error(), "field": Field})
			return
		case err != nil:
			v.logger.Error("quota check failed", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if remaining >= 0 {
			c.Header(HeaderRemaining, strconv.Itoa(remaining))
		}
		c.Next()

		if key == "" {
			return
		}
		if status := c.Writer.Status(); status >= 400 && status < 500 {
			if err := v.refund(context.WithoutCancel(c.Request.Context()), key); err != nil {
				v.logger.Error("quota refund failed", zap.Error(err))
			}
		}
	}
}
