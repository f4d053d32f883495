// Package swupdate implements the signed software update protocol spoken
// over the overlay's user-message channel. A node can distribute update
// images, fetch them in chunks from the well-known update service, verify
// them against a signing authority, and stage them for installation.
package swupdate

import (
	"bytes"
	"crypto/ed25519"
	"crypto/sha512"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/Arceliar/phony"
	log "github.com/inconshreveable/log15"

	"github.com/weftnet/weft/types"
)

// Node sends opaque user messages into the overlay on the updater's
// behalf. It reports false if the message could not be queued.
type Node interface {
	SendUserMessage(dest types.Address, messageType uint64, data []byte) bool
}

type distEntry struct {
	meta     *Meta
	metaJSON []byte
	bin      []byte
}

// Updater is both sides of the update protocol: it advertises any images
// added for distribution, and it tracks, downloads, verifies and stages
// the latest image for this node. All state is owned by an internal actor;
// every exported method is safe for concurrent use.
type Updater struct {
	phony.Inbox
	node Node
	cfg  config
	log  log.Logger

	dist map[[hashPrefixSize]byte]distEntry

	lastCheck      int64
	latestMeta     *Meta
	latestMetaJSON []byte
	latestValid    bool
	applied        bool

	download       []byte
	downloadPrefix [hashPrefixSize]byte
	downloadLength uint64
}

// New returns an Updater. If a home directory is configured and holds a
// previously staged update that is still newer than this build, it is
// revalidated and kept; anything stale or damaged is deleted.
func New(node Node, opts ...Option) *Updater {
	u := &Updater{
		node: node,
		dist: make(map[[hashPrefixSize]byte]distEntry),
	}
	configDefaults()(&u.cfg)
	for _, opt := range opts {
		opt(&u.cfg)
	}
	u.log = u.cfg.logger
	u.recoverStage()
	return u
}

func (u *Updater) recoverStage() {
	if len(u.cfg.home) == 0 {
		return
	}
	raw, err := os.ReadFile(u.metaPath())
	if err == nil {
		if meta, merr := parseMeta(raw); merr == nil {
			if compareVersion(meta.versionTuple(), u.cfg.version) > 0 {
				if bin, berr := os.ReadFile(u.binPath()); berr == nil && uint64(len(bin)) == meta.UpdateSize {
					u.latestMeta = meta
					u.latestMetaJSON = raw
					u.latestValid = true
					return
				}
			}
		}
	}
	u.wipeStage()
}

// AddUpdate registers an image for distribution. The meta's hash must
// match the binary; its size field is overwritten with the true length.
func (u *Updater) AddUpdate(metaJSON, bin []byte) error {
	meta, err := parseMeta(metaJSON)
	if err != nil {
		return err
	}
	hash, err := hex.DecodeString(meta.UpdateHash)
	if err != nil || len(hash) != sha512.Size {
		return types.ErrDecode
	}
	digest := sha512.Sum512(bin)
	if !bytes.Equal(digest[:], hash) {
		return errors.New("image does not match meta hash")
	}
	meta.UpdateSize = uint64(len(bin))
	canonical := meta.canonical()
	var prefix [hashPrefixSize]byte
	copy(prefix[:], digest[:hashPrefixSize])
	phony.Block(u, func() {
		u.dist[prefix] = distEntry{meta: meta, metaJSON: canonical, bin: bin}
	})
	u.log.Info("distributing update",
		"version", meta.versionTuple(), "bytes", len(bin), "hash", meta.UpdateHash[:32])
	return nil
}

// LoadDistribution scans dir for "*.json" meta files with companion
// binaries (foo.exe.json describes foo.exe) and registers each one.
// Entries that fail to parse or hash are logged and skipped.
func (u *Updater) LoadDistribution(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		metaJSON, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			u.log.Warn("skipping unreadable update meta", "file", name, "err", err)
			continue
		}
		bin, err := os.ReadFile(filepath.Join(dir, strings.TrimSuffix(name, ".json")))
		if err != nil {
			u.log.Warn("skipping update with no image", "file", name, "err", err)
			continue
		}
		if err := u.AddUpdate(metaJSON, bin); err != nil {
			u.log.Warn("skipping bad update", "file", name, "err", err)
		}
	}
	return nil
}

// ClearDistribution stops advertising all images.
func (u *Updater) ClearDistribution() {
	phony.Block(u, func() {
		u.dist = make(map[[hashPrefixSize]byte]distEntry)
	})
}

// HandleUserMessage is the node's callback for inbound user messages.
// Messages of other types are ignored.
func (u *Updater) HandleUserMessage(origin types.Address, messageType uint64, data []byte) {
	if messageType != u.cfg.messageType || len(data) == 0 {
		return
	}
	msg := append([]byte(nil), data...)
	u.Act(nil, func() {
		u._handleMessage(origin, msg)
	})
}

func (u *Updater) _handleMessage(origin types.Address, data []byte) {
	switch Verb(data[0]) {
	case VerbGetLatest:
		req, err := parseMeta(data[1:])
		if err != nil {
			u.log.Warn("bad GET_LATEST", "origin", origin, "len", len(data))
			return
		}
		u._handleGetLatest(origin, req)
	case VerbLatest:
		meta, err := parseMeta(data[1:])
		if err != nil {
			u.log.Warn("bad LATEST", "origin", origin, "len", len(data))
			return
		}
		u._handleLatest(origin, meta, data[1:])
	case VerbGetData:
		u._handleGetData(origin, data)
	case VerbData:
		u._handleData(origin, data)
	default:
		u.log.Warn("unrecognized update message verb", "origin", origin, "verb", data[0], "len", len(data))
	}
}

func (u *Updater) _handleGetLatest(origin types.Address, req *Meta) {
	if len(u.dist) == 0 {
		return // nothing to distribute, no reply
	}
	best := req.versionTuple()
	var latest *distEntry
	for prefix := range u.dist {
		d := u.dist[prefix]
		if d.meta.Platform != req.Platform ||
			d.meta.Architecture != req.Architecture ||
			d.meta.Vendor != req.Vendor ||
			d.meta.Channel != req.Channel ||
			d.meta.UpdateSignedBy != req.ExpectedSigner {
			continue
		}
		if compareVersion(d.meta.versionTuple(), best) > 0 {
			best = d.meta.versionTuple()
			latest = &d
		}
	}
	if latest != nil {
		msg := make([]byte, 0, 1+len(latest.metaJSON))
		msg = append(msg, byte(VerbLatest))
		msg = append(msg, latest.metaJSON...)
		u.node.SendUserMessage(origin, u.cfg.messageType, msg)
		u.log.Info("GET_LATEST answered",
			"origin", origin, "requested", req.versionTuple(), "offered", best)
	}
}

func (u *Updater) _handleLatest(origin types.Address, meta *Meta, raw []byte) {
	if origin != u.cfg.serviceAddress {
		return
	}
	if compareVersion(meta.versionTuple(), u.cfg.version) <= 0 {
		return
	}
	if meta.UpdateSignedBy != u.cfg.authority {
		u.log.Warn("LATEST signed by unexpected authority", "signedBy", meta.UpdateSignedBy)
		return
	}
	hash, err := hex.DecodeString(meta.UpdateHash)
	if err != nil || len(hash) < hashPrefixSize {
		return
	}
	if meta.UpdateSize > uint64(u.cfg.maxSize) {
		return
	}
	if !bytes.Equal(meta.canonical(), u.latestMeta.canonical()) {
		u.latestMeta = meta
		u.latestMetaJSON = append([]byte(nil), raw...)
		u.latestValid = false
		u.applied = false
		u.wipeStage()
		u.download = nil
		copy(u.downloadPrefix[:], hash[:hashPrefixSize])
		u.downloadLength = meta.UpdateSize
	}
	if u.downloadLength > 0 && uint64(len(u.download)) < u.downloadLength {
		u._sendGetData()
	}
}

func (u *Updater) _handleGetData(origin types.Address, data []byte) {
	if len(data) < 21 || len(u.dist) == 0 {
		return
	}
	var prefix [hashPrefixSize]byte
	copy(prefix[:], data[1:1+hashPrefixSize])
	idx := binary.BigEndian.Uint32(data[1+hashPrefixSize:])
	d, ok := u.dist[prefix]
	if !ok || uint64(idx) >= uint64(len(d.bin)) {
		return
	}
	end := int(idx) + u.cfg.chunkSize
	if end > len(d.bin) {
		end = len(d.bin)
	}
	msg := make([]byte, 0, 21+end-int(idx))
	msg = append(msg, byte(VerbData))
	msg = append(msg, prefix[:]...)
	var off [4]byte
	binary.BigEndian.PutUint32(off[:], idx)
	msg = append(msg, off[:]...)
	msg = append(msg, d.bin[idx:end]...)
	u.node.SendUserMessage(origin, u.cfg.messageType, msg)
	u.log.Debug("DATA served", "origin", origin, "offset", idx, "bytes", end-int(idx))
}

func (u *Updater) _handleData(origin types.Address, data []byte) {
	if len(data) < 21 || u.downloadLength == 0 {
		return
	}
	if !bytes.Equal(u.downloadPrefix[:], data[1:1+hashPrefixSize]) {
		return
	}
	idx := binary.BigEndian.Uint32(data[1+hashPrefixSize:])
	if uint64(idx) != uint64(len(u.download)) {
		return // out of order, drop; the periodic re-request recovers
	}
	u.download = append(u.download, data[21:]...)
	if uint64(len(u.download)) < u.downloadLength {
		u._sendGetData()
	}
}

func (u *Updater) _sendGetData() {
	msg := make([]byte, 0, 21)
	msg = append(msg, byte(VerbGetData))
	msg = append(msg, u.downloadPrefix[:]...)
	var off [4]byte
	binary.BigEndian.PutUint32(off[:], uint32(len(u.download)))
	msg = append(msg, off[:]...)
	u.node.SendUserMessage(u.cfg.serviceAddress, u.cfg.messageType, msg)
}

// Check drives the receive side: every check period it asks the service
// for the latest image, and while a download is stalled it re-requests the
// next chunk. It returns true if a verified update is staged locally.
func (u *Updater) Check(now int64) bool {
	var ret bool
	phony.Block(u, func() {
		ret = u._check(now)
	})
	return ret
}

func (u *Updater) _check(now int64) bool {
	if now-u.lastCheck >= u.cfg.checkPeriod {
		u.lastCheck = now
		req := Meta{
			VersionMajor:   u.cfg.version[0],
			VersionMinor:   u.cfg.version[1],
			VersionRev:     u.cfg.version[2],
			VersionBuild:   u.cfg.version[3],
			Platform:       u.cfg.platform,
			Architecture:   u.cfg.architecture,
			Vendor:         u.cfg.vendor,
			Channel:        u.cfg.channel,
			ExpectedSigner: u.cfg.authority,
		}
		msg := append([]byte{byte(VerbGetLatest)}, req.canonical()...)
		u.node.SendUserMessage(u.cfg.serviceAddress, u.cfg.messageType, msg)
	}

	if u.latestValid {
		return true
	}

	if u.downloadLength > 0 {
		if uint64(len(u.download)) >= u.downloadLength {
			if u._verifyAndStage() {
				return true
			}
			// Verification failed: wipe everything and wait for the next
			// LATEST to start over.
			u.wipeStage()
			u.latestMeta = nil
			u.latestMetaJSON = nil
			u.latestValid = false
			u.download = nil
			u.downloadLength = 0
		} else {
			u._sendGetData()
		}
	}

	return false
}

// _verifyAndStage is the part that makes sure a downloaded image doesn't
// have cooties: the SHA-512 must match the meta, the signature must verify
// under the configured authority, and both files must land on disk.
func (u *Updater) _verifyAndStage() bool {
	digest := sha512.Sum512(u.download)
	if hex.EncodeToString(digest[:]) != u.latestMeta.UpdateHash {
		u.log.Warn("update image hash mismatch", "expected", u.latestMeta.UpdateHash[:32])
		return false
	}
	sig, err := hex.DecodeString(u.latestMeta.UpdateSig)
	if err != nil {
		return false
	}
	authority, err := hex.DecodeString(u.cfg.authority)
	if err != nil || len(authority) != ed25519.PublicKeySize {
		return false
	}
	if !ed25519.Verify(ed25519.PublicKey(authority), u.download, sig) {
		u.log.Warn("update image signature invalid")
		return false
	}
	if len(u.cfg.home) == 0 {
		return false
	}
	if err := writeFileAtomic(u.metaPath(), u.latestMetaJSON, 0400); err != nil {
		return false
	}
	if err := writeFileAtomic(u.binPath(), u.download, 0400); err != nil {
		os.Remove(u.metaPath())
		return false
	}
	u.latestValid = true
	u.download = nil
	u.downloadLength = 0
	u.log.Info("update staged", "version", u.latestMeta.versionTuple(), "path", u.binPath())
	return true
}

// Apply launches the staged update binary with its meta-supplied
// arguments. The caller is expected to exit afterwards so the new binary
// can take over; Apply never launches the same stage twice.
func (u *Updater) Apply() error {
	var meta *Meta
	var ok bool
	phony.Block(u, func() {
		if u.latestValid && !u.applied {
			meta = u.latestMeta
			u.applied = true
			ok = true
		}
	})
	if !ok {
		return errors.New("no staged update")
	}
	bin := u.binPath()
	if _, err := os.Stat(bin); err != nil {
		return err
	}
	if err := os.Chmod(bin, 0700); err != nil {
		return err
	}
	cmd := exec.Command(bin, splitArgs(meta.UpdateExecArgs)...)
	if err := cmd.Start(); err != nil {
		return err
	}
	u.log.Info("update launched", "path", bin, "pid", cmd.Process.Pid)
	return nil
}
