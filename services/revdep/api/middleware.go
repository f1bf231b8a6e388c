// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package api

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

// RequestIDHeader carries the request ID in both directions.
const RequestIDHeader = "X-Request-ID"

const requestIDKey = "revdep.request_id"

// defaultLimiterClients bounds how many per-client limiters are retained.
const defaultLimiterClients = 4096

// RequestID assigns every request an ID, reusing the caller's
// X-Request-ID when present, and echoes it in the response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		getOrCreateRequestID(c)
		c.Next()
	}
}

// AccessLog logs one line per request after it completes.
func AccessLog(logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		level := slog.LevelDebug
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		logger.Log(c.Request.Context(), level, "request",
			slog.String("request_id", c.GetString(requestIDKey)),
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("duration", time.Since(start)),
		)
	}
}

// RateLimiter is a per-client token bucket limiter keyed by client IP.
//
// Description:
//
//	Each client gets its own rate.Limiter, created on first use. The set
//	of limiters is an LRU so a stream of distinct addresses cannot grow
//	memory without bound; an evicted client simply starts with a full
//	bucket again.
//
// Thread Safety: Safe for concurrent use.
type RateLimiter struct {
	limit rate.Limit
	burst int

	mu       sync.Mutex
	limiters *lru.Cache[string, *rate.Limiter]
}

// NewRateLimiter allows rps sustained requests per second per client with
// bursts up to burst. rps <= 0 returns nil, which disables limiting.
func NewRateLimiter(rps float64, burst int) *RateLimiter {
	if rps <= 0 {
		return nil
	}
	if burst < 1 {
		burst = 1
	}
	limiters, err := lru.New[string, *rate.Limiter](defaultLimiterClients)
	if err != nil {
		// Only returned for a non-positive size.
		panic(err)
	}
	return &RateLimiter{limit: rate.Limit(rps), burst: burst, limiters: limiters}
}

// Allow reports whether client may make a request now.
func (l *RateLimiter) Allow(client string) bool {
	return l.limiter(client).Allow()
}

func (l *RateLimiter) limiter(client string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if lim, ok := l.limiters.Get(client); ok {
		return lim
	}
	lim := rate.NewLimiter(l.limit, l.burst)
	l.limiters.Add(client, lim)
	return lim
}

// Middleware rejects requests over the limit with 429 and a Retry-After
// header. A nil limiter passes every request through.
func (l *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if l == nil || l.Allow(c.ClientIP()) {
			c.Next()
			return
		}
		retry := int(math.Ceil(1 / float64(l.limit)))
		c.Header("Retry-After", strconv.Itoa(max(retry, 1)))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{
			Error: "rate limit exceeded",
			Code:  "RATE_LIMITED",
		})
	}
}
