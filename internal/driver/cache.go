package driver

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"silt/internal/diag"
	"silt/internal/report"
)

// cacheSchema versions Payload. Bump it whenever the payload layout or the
// report wire format changes so stale entries read as misses.
const cacheSchema uint16 = 1

// Digest is a sha256 content key.
type Digest [sha256.Size]byte

// HashBytes keys cache entries by input content. Source text and binary
// chunks hash the same way; editing either invalidates its entry.
func HashBytes(data []byte) Digest {
	return sha256.Sum256(data)
}

// Cache persists finished reports on disk, one msgpack file per input
// digest. Safe for concurrent use.
type Cache struct {
	mu  sync.RWMutex
	dir string
}

// OpenCache initializes the cache under XDG_CACHE_HOME (or ~/.cache when
// unset) for the given application name.
func OpenCache(app string) (*Cache, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		base = filepath.Join(home, ".cache")
	}
	dir := filepath.Join(base, app)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Cache{dir: dir}, nil
}

// Dir returns the cache root.
func (c *Cache) Dir() string {
	if c == nil {
		return ""
	}
	return c.dir
}

// PayloadDiag is one degradation preserved with a cached report so hits
// replay exactly what a fresh run would emit.
type PayloadDiag struct {
	Severity uint8
	Code     uint16
	Chunk    string
	Line     int
	PC       int
	Message  string
}

// Payload is the record stored per input digest.
type Payload struct {
	Schema     uint16
	LuaVersion string
	Path       string
	Report     []byte
	Diags      []PayloadDiag
}

// NewPayload captures a finished report and the degradation warnings its
// run produced.
func NewPayload(path string, reportJSON []byte, bag *diag.Bag) *Payload {
	p := &Payload{
		Schema:     cacheSchema,
		LuaVersion: report.LuaVersion,
		Path:       path,
		Report:     reportJSON,
	}
	if bag == nil {
		return p
	}
	items := bag.Items()
	for i := range items {
		d := &items[i]
		p.Diags = append(p.Diags, PayloadDiag{
			Severity: uint8(d.Severity),
			Code:     uint16(d.Code),
			Chunk:    d.Pos.Chunk,
			Line:     d.Pos.Line,
			PC:       d.Pos.PC,
			Message:  d.Message,
		})
	}
	return p
}

// Usable reports whether a decoded payload matches the running analyzer.
// Entries written by another schema or bytecode dialect count as misses.
func (p *Payload) Usable() bool {
	return p != nil && p.Schema == cacheSchema && p.LuaVersion == report.LuaVersion && len(p.Report) > 0
}

// Replay adds the preserved warnings back into a bag.
func (p *Payload) Replay(bag *diag.Bag) {
	if p == nil || bag == nil {
		return
	}
	for _, d := range p.Diags {
		bag.Add(diag.New(diag.Severity(d.Severity), diag.Code(d.Code),
			diag.Pos{Chunk: d.Chunk, Line: d.Line, PC: d.PC}, d.Message))
	}
}

func (c *Cache) pathFor(key Digest) string {
	return filepath.Join(c.dir, "reports", hex.EncodeToString(key[:])+".mp")
}

// Put writes a payload atomically: temp file next to the target, then
// rename.
func (c *Cache) Put(key Digest, payload *Payload) error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(p), "tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(f.Name())

	if err := msgpack.NewEncoder(f).Encode(payload); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), p)
}

// Get decodes the payload stored for key. A missing entry is (false, nil).
func (c *Cache) Get(key Digest, out *Payload) (bool, error) {
	if c == nil {
		return false, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	f, err := os.Open(c.pathFor(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	defer f.Close()
	if err := msgpack.NewDecoder(f).Decode(out); err != nil {
		return false, err
	}
	return true, nil
}

// DropAll removes every cache entry. Renaming the directory aside first
// keeps concurrent readers from observing a half-deleted tree.
func (c *Cache) DropAll() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	old := c.dir + ".old-" + time.Now().Format("20060102150405")
	if err := os.Rename(c.dir, old); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	return os.RemoveAll(old)
}
