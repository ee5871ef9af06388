package kadi

import "sync"

// Provider holds the client built from the current settings. It is rebuilt
// whenever the settings are saved; Current returns nil while the connection
// is not configured.
type Provider struct {
	mu     sync.RWMutex
	client *Client
	err    error
}

// NewProvider builds the first client from opts.
func NewProvider(opts Options) *Provider {
	p := &Provider{}
	p.Reconfigure(opts)
	return p
}

// Reconfigure replaces the client. The previous client stays usable by
// requests already in flight.
func (p *Provider) Reconfigure(opts Options) {
	c, err := New(opts)
	p.mu.Lock()
	p.client, p.err = c, err
	p.mu.Unlock()
}

// Current returns the configured client, or nil and the reason it is missing.
func (p *Provider) Current() (*Client, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.client, p.err
}
