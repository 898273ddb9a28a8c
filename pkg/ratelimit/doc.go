// Package ratelimit throttles requests per key with token buckets. trustd
// uses it to slow down password guessing on the login endpoint.
package ratelimit
