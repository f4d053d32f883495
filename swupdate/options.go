package swupdate

import (
	log "github.com/inconshreveable/log15"

	"github.com/weftnet/weft/types"
)

// DefaultServiceAddress is the well-known address updates are fetched from.
const DefaultServiceAddress types.Address = 0xb1d366e81f

// DefaultMessageType is the user-message type carrying update traffic.
const DefaultMessageType uint64 = 100

const (
	defaultCheckPeriod int64 = 60 * 60 * 1000 // one hour, in milliseconds
	defaultChunkSize         = 1380
	defaultMaxSize           = 1 << 28
	defaultChannel           = "release"
)

type config struct {
	home           string
	channel        string
	version        [4]int
	platform       int
	architecture   int
	vendor         int
	serviceAddress types.Address
	authority      string // hex public key of the signing authority
	messageType    uint64
	checkPeriod    int64
	chunkSize      int
	maxSize        int
	logger         log.Logger
}

type Option func(*config)

func configDefaults() Option {
	return func(c *config) {
		c.channel = defaultChannel
		c.serviceAddress = DefaultServiceAddress
		c.messageType = DefaultMessageType
		c.checkPeriod = defaultCheckPeriod
		c.chunkSize = defaultChunkSize
		c.maxSize = defaultMaxSize
		c.logger = log.New()
		c.logger.SetHandler(log.DiscardHandler())
	}
}

// WithHome sets the directory updates are staged in. Without a home the
// updater can distribute but never stage.
func WithHome(dir string) Option {
	return func(c *config) {
		c.home = dir
	}
}

// WithChannel sets the release channel to follow.
func WithChannel(channel string) Option {
	return func(c *config) {
		c.channel = channel
	}
}

// WithVersion sets this build's version tuple.
func WithVersion(major, minor, revision, build int) Option {
	return func(c *config) {
		c.version = [4]int{major, minor, revision, build}
	}
}

// WithPlatform sets this build's platform code.
func WithPlatform(platform int) Option {
	return func(c *config) {
		c.platform = platform
	}
}

// WithArchitecture sets this build's architecture code.
func WithArchitecture(arch int) Option {
	return func(c *config) {
		c.architecture = arch
	}
}

// WithVendor sets this build's vendor code.
func WithVendor(vendor int) Option {
	return func(c *config) {
		c.vendor = vendor
	}
}

// WithServiceAddress overrides the well-known update service address.
func WithServiceAddress(addr types.Address) Option {
	return func(c *config) {
		c.serviceAddress = addr
	}
}

// WithAuthority sets the hex-encoded public key updates must be signed by.
func WithAuthority(hexPublicKey string) Option {
	return func(c *config) {
		c.authority = hexPublicKey
	}
}

// WithMessageType overrides the user-message type constant.
func WithMessageType(messageType uint64) Option {
	return func(c *config) {
		c.messageType = messageType
	}
}

// WithCheckPeriod sets how often Check emits a GET_LATEST, in milliseconds.
func WithCheckPeriod(period int64) Option {
	return func(c *config) {
		c.checkPeriod = period
	}
}

// WithChunkSize sets the DATA chunk size in bytes.
func WithChunkSize(size int) Option {
	return func(c *config) {
		c.chunkSize = size
	}
}

// WithMaxSize caps the size of an update image this node will download.
func WithMaxSize(size int) Option {
	return func(c *config) {
		c.maxSize = size
	}
}

// WithLogger sets the logger for distribution and verification events.
func WithLogger(logger log.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}
