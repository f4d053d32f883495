// Command weft-example wires two update endpoints together over an
// in-memory message bus and runs a complete signed update exchange: the
// distributor advertises an image, the receiver discovers, downloads,
// verifies and stages it.
package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sync"
	"time"

	log "github.com/inconshreveable/log15"

	"github.com/weftnet/weft/swupdate"
	"github.com/weftnet/weft/types"
)

var imageSize = flag.Int("size", 1<<20, "size of the demo update image in bytes")
var chunkSize = flag.Int("chunk", 1380, "DATA chunk size in bytes")

const serviceAddr types.Address = 0xb1d366e81f
const receiverAddr types.Address = 0x1122334455

// bus is a toy user-message transport connecting the two endpoints.
type bus struct {
	mutex    sync.Mutex
	handlers map[types.Address]func(types.Address, uint64, []byte)
}

type endpoint struct {
	addr types.Address
	bus  *bus
}

func (e *endpoint) SendUserMessage(dest types.Address, messageType uint64, data []byte) bool {
	e.bus.mutex.Lock()
	handler := e.bus.handlers[dest]
	e.bus.mutex.Unlock()
	if handler == nil {
		return false
	}
	go handler(e.addr, messageType, data)
	return true
}

func main() {
	flag.Parse()
	logger := log.New()

	// The signing authority stands in for the compiled-in release key.
	authPub, authPriv, err := ed25519.GenerateKey(nil)
	if err != nil {
		panic(err)
	}
	authority := hex.EncodeToString(authPub)

	image := make([]byte, *imageSize)
	if _, err := rand.Read(image); err != nil {
		panic(err)
	}
	digest := sha512.Sum512(image)
	meta := swupdate.Meta{
		VersionMajor:   2,
		Channel:        "release",
		UpdateHash:     hex.EncodeToString(digest[:]),
		UpdateSig:      hex.EncodeToString(ed25519.Sign(authPriv, image)),
		UpdateSignedBy: authority,
	}
	metaJSON, err := json.Marshal(&meta)
	if err != nil {
		panic(err)
	}

	home, err := os.MkdirTemp("", "weft-example")
	if err != nil {
		panic(err)
	}
	defer os.RemoveAll(home)

	b := &bus{handlers: make(map[types.Address]func(types.Address, uint64, []byte))}

	dist := swupdate.New(&endpoint{addr: serviceAddr, bus: b},
		swupdate.WithServiceAddress(serviceAddr),
		swupdate.WithAuthority(authority),
		swupdate.WithChunkSize(*chunkSize),
		swupdate.WithLogger(logger.New("side", "dist")),
	)
	if err := dist.AddUpdate(metaJSON, image); err != nil {
		panic(err)
	}

	recv := swupdate.New(&endpoint{addr: receiverAddr, bus: b},
		swupdate.WithHome(home),
		swupdate.WithServiceAddress(serviceAddr),
		swupdate.WithAuthority(authority),
		swupdate.WithVersion(1, 9, 0, 0),
		swupdate.WithLogger(logger.New("side", "recv")),
	)

	b.mutex.Lock()
	b.handlers[serviceAddr] = dist.HandleUserMessage
	b.handlers[receiverAddr] = recv.HandleUserMessage
	b.mutex.Unlock()

	start := time.Now()
	for {
		now := time.Now().UnixMilli()
		if recv.Check(now) {
			break
		}
		if time.Since(start) > 30*time.Second {
			logger.Crit("update did not stage in time")
			os.Exit(1)
		}
		time.Sleep(10 * time.Millisecond)
	}
	fmt.Printf("staged %d byte update in %s at %s\n", *imageSize, time.Since(start), home)
}
