package supabase

import (
	"context"
	"sync"

	"github.com/Daskott/relief/store"
)

// Lazy is a store.Store whose Client is built on first use and reused after,
// so a missing or broken configuration only fails the calls that need it.
type Lazy struct {
	factory func() (*Client, error)

	once   sync.Once
	client *Client
	err    error
}

func NewLazy(factory func() (*Client, error)) *Lazy {
	return &Lazy{factory: factory}
}

// Client builds the client on the first call and returns the memoized result
// (or error) on every later one.
func (l *Lazy) Client() (*Client, error) {
	l.once.Do(func() {
		l.client, l.err = l.factory()
		if l.err != nil {
			logg.Errorf("failed to create supabase client: %v", l.err)
		}
	})
	return l.client, l.err
}

func (l *Lazy) Insert(ctx context.Context, table string, row interface{}, out interface{}) error {
	c, err := l.Client()
	if err != nil {
		return err
	}
	return c.Insert(ctx, table, row, out)
}

func (l *Lazy) Update(ctx context.Context, table string, filters []store.Filter, patch map[string]interface{}, out interface{}) error {
	c, err := l.Client()
	if err != nil {
		return err
	}
	return c.Update(ctx, table, filters, patch, out)
}

func (l *Lazy) Delete(ctx context.Context, table string, filters []store.Filter) error {
	c, err := l.Client()
	if err != nil {
		return err
	}
	return c.Delete(ctx, table, filters)
}

func (l *Lazy) Select(ctx context.Context, table string, query store.Query, out interface{}) (int64, error) {
	c, err := l.Client()
	if err != nil {
		return 0, err
	}
	return c.Select(ctx, table, query, out)
}

func (l *Lazy) SelectOne(ctx context.Context, table string, filters []store.Filter, out interface{}) error {
	c, err := l.Client()
	if err != nil {
		return err
	}
	return c.SelectOne(ctx, table, filters, out)
}
