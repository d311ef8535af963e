// Package cache defines the storage used by the client to keep the last
// fetched list responses per UPS until a forced refresh.
package cache

import (
	"context"
	"strings"
)

// Kind identifies which list or value a cache entry holds
type Kind string

const (
	KindUPS    Kind = "UPS"
	KindVar    Kind = "VAR"
	KindRW     Kind = "RW"
	KindCmd    Kind = "CMD"
	KindEnum   Kind = "ENUM"
	KindRange  Kind = "RANGE"
	KindClient Kind = "CLIENT"
)

// Key addresses one cached response
type Key struct {
	Server string // server address the rows came from
	UPS    string
	Kind   Kind
	Param  string // variable name for ENUM and RANGE
}

// String returns the key as "server/ups/kind/param"
func (k Key) String() string {
	return strings.Join([]string{k.Server, k.UPS, string(k.Kind), k.Param}, "/")
}

// Rows are tokenized response lines
type Rows [][]string

// Clone returns a deep copy of the rows
func (r Rows) Clone() Rows {
	if r == nil {
		return nil
	}
	out := make(Rows, len(r))
	for i, row := range r {
		out[i] = append([]string(nil), row...)
	}
	return out
}

// Store is a key-value store for cached rows. A missing entry is reported
// with ok == false and a nil error.
type Store interface {
	Get(ctx context.Context, key Key) (rows Rows, ok bool, err error)
	Set(ctx context.Context, key Key, rows Rows) error
	Delete(ctx context.Context, key Key) error
	Close() error
}
