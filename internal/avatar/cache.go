package avatar

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/autorecord/autorecord/internal/httpx"
)

// Dispatcher runs fn on the rendering loop. Dispatch may block until the
// loop accepts fn; the cache only calls it from its own goroutines.
type Dispatcher interface {
	Dispatch(fn func())
}

// DispatchFunc adapts a function to the Dispatcher interface.
type DispatchFunc func(fn func())

// Dispatch calls f(fn).
func (f DispatchFunc) Dispatch(fn func()) { f(fn) }

// Cache holds processed profile pictures keyed by source URL.
// All exported methods are safe for concurrent use.
type Cache struct {
	client   *http.Client
	size     int
	dispatch Dispatcher

	mu      sync.RWMutex
	entries map[string]*image.NRGBA

	group    singleflight.Group
	wg       sync.WaitGroup
	fetches  atomic.Uint64
	failures atomic.Uint64
}

// New creates a Cache that downloads with client, fits images to size x size
// pixels and delivers results through d.
func New(client *http.Client, size int, d Dispatcher) *Cache {
	return &Cache{
		client:   client,
		size:     size,
		dispatch: d,
		entries:  make(map[string]*image.NRGBA),
	}
}

// Size returns the square bound processed images are fit to.
func (c *Cache) Size() int { return c.size }

// Get returns the cached image for url, if any.
func (c *Cache) Get(url string) (*image.NRGBA, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	img, ok := c.entries[url]
	return img, ok
}

// Len returns the number of cached images.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Fetches returns how many downloads were attempted.
func (c *Cache) Fetches() uint64 { return c.fetches.Load() }

// Failures returns how many downloads or decodes failed.
func (c *Cache) Failures() uint64 { return c.failures.Load() }

// Fetch resolves url to a processed image and delivers it to onReady through
// the Dispatcher. An empty url is ignored.
func (c *Cache) Fetch(url string, onReady func(*image.NRGBA)) {
	if url == "" || onReady == nil {
		return
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		if img, ok := c.Get(url); ok {
			c.dispatch.Dispatch(func() { onReady(img) })
			return
		}

		v, err, _ := c.group.Do(url, func() (any, error) {
			if img, ok := c.Get(url); ok {
				return img, nil
			}
			img, err := c.load(url)
			if err != nil {
				return nil, err
			}
			c.mu.Lock()
			c.entries[url] = img
			c.mu.Unlock()
			return img, nil
		})
		if err != nil {
			slog.Warn("avatar: fetch failed", "url", url, "err", err)
			return
		}

		img := v.(*image.NRGBA)
		c.dispatch.Dispatch(func() { onReady(img) })
	}()
}

// Wait blocks until every in-flight Fetch goroutine has finished.
func (c *Cache) Wait() { c.wg.Wait() }

// load downloads and processes one picture.
func (c *Cache) load(url string) (*image.NRGBA, error) {
	c.fetches.Add(1)

	body, err := httpx.GetBytes(context.Background(), c.client, url)
	if err != nil {
		c.failures.Add(1)
		return nil, fmt.Errorf("download: %w", err)
	}

	src, format, err := image.Decode(bytes.NewReader(body))
	if err != nil {
		c.failures.Add(1)
		return nil, fmt.Errorf("decode: %w", err)
	}

	slog.Debug("avatar: fetched", "url", url, "format", format, "bounds", src.Bounds().String())
	return Process(src, c.size), nil
}
