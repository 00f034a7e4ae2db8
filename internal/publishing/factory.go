package publishing

import (
	"sort"
	"sync"

	"github.com/jonathan/autopublisher/internal/config"
	"github.com/jonathan/autopublisher/internal/types"
)

// Constructor builds a Publisher from the platform credentials.
type Constructor func(cfg config.Platforms, opts ...Option) (Publisher, error)

// defaultConstructors is the static registry. Adding a platform means adding
// a Publisher implementation and one entry here.
var defaultConstructors = map[types.PlatformType]Constructor{
	types.PlatformWordPress: func(cfg config.Platforms, opts ...Option) (Publisher, error) {
		return NewWordPressPublisher(cfg.WordPress, opts...)
	},
	types.PlatformInstagram: func(cfg config.Platforms, opts ...Option) (Publisher, error) {
		return NewInstagramPublisher(cfg.Instagram, opts...)
	},
}

// Factory maps platforms to publisher constructors.
type Factory struct {
	mu           sync.RWMutex
	constructors map[types.PlatformType]Constructor
	opts         []Option
}

// NewFactory returns a factory seeded with the built-in publishers. The
// options are passed to every constructor.
func NewFactory(opts ...Option) *Factory {
	constructors := make(map[types.PlatformType]Constructor, len(defaultConstructors))
	for platform, c := range defaultConstructors {
		constructors[platform] = c
	}
	return &Factory{constructors: constructors, opts: opts}
}

// Register adds or replaces the constructor for platform.
func (f *Factory) Register(platform types.PlatformType, c Constructor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.constructors[platform] = c
}

// Create builds the publisher for platform. It returns (nil, nil) when no
// constructor is registered and passes construction errors through.
func (f *Factory) Create(platform types.PlatformType, cfg config.Platforms) (Publisher, error) {
	f.mu.RLock()
	c, ok := f.constructors[platform]
	f.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return c(cfg, f.opts...)
}

// SupportedPlatforms lists the registered platforms in sorted order.
func (f *Factory) SupportedPlatforms() []types.PlatformType {
	f.mu.RLock()
	defer f.mu.RUnlock()

	platforms := make([]types.PlatformType, 0, len(f.constructors))
	for p := range f.constructors {
		platforms = append(platforms, p)
	}
	sort.Slice(platforms, func(i, j int) bool { return platforms[i] < platforms[j] })
	return platforms
}

// IsSupported reports whether a constructor is registered for platform.
func (f *Factory) IsSupported(platform types.PlatformType) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.constructors[platform]
	return ok
}
