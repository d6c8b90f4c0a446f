package filestore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/hic/errs"
	"github.com/grailbio/hic/schema"
	"github.com/grailbio/hic/tablestore"
	"github.com/minio/highwayhash"
)

// metaFile is the sidecar path storing /meta_information's
// attributes, per spec.md §6.
const metaFile = "meta_information.json"

// highwayKey is a fixed 32-byte key for the /meta_information
// checksum. It need not be secret: highwayhash is used here purely
// for fast, well-distributed integrity checking, not authentication.
var highwayKey = make([]byte, 32)

// Store is the reference tablestore.Store: a plain directory of
// recordio files, opened through github.com/grailbio/base/file so
// that any scheme file.Open/Create supports (including s3:// once a
// caller imports github.com/grailbio/base/file/s3file) works
// transparently.
type Store struct {
	ctx    context.Context
	dir    string
	root   *node
	tables map[string]*table
}

type node struct {
	attrs map[string]interface{}
}

func (n *node) Attrs() map[string]interface{} { return n.attrs }
func (n *node) SetAttr(key string, value interface{}) error {
	n.attrs[key] = value
	return nil
}

// Create initializes a new store rooted at dir. It fails if
// /meta_information already exists there.
func Create(dir string) (*Store, error) {
	ctx := vcontext.Background()
	s := &Store{ctx: ctx, dir: dir, root: &node{attrs: map[string]interface{}{"_classid": "hic.Store"}}, tables: map[string]*table{}}
	if _, err := file.Stat(ctx, s.metaPath()); err == nil {
		return nil, fmt.Errorf("filestore: %s already exists", s.metaPath())
	}
	if err := s.writeMeta(); err != nil {
		return nil, err
	}
	return s, nil
}

// Open reopens a store previously created with Create, reading back
// /meta_information and verifying its highwayhash checksum.
func Open(dir string) (*Store, error) {
	ctx := vcontext.Background()
	s := &Store{ctx: ctx, dir: dir, tables: map[string]*table{}}
	attrs, err := s.readMeta()
	if err != nil {
		return nil, err
	}
	s.root = &node{attrs: attrs}
	return s, nil
}

func (s *Store) metaPath() string { return fmt.Sprintf("%s/%s", s.dir, metaFile) }

type metaEnvelope struct {
	Attrs    json.RawMessage `json:"attrs"`
	Checksum uint64          `json:"checksum"`
}

func (s *Store) writeMeta() error {
	raw, err := json.Marshal(s.root.attrs)
	if err != nil {
		return err
	}
	sum := highwayhash.Sum64(raw, highwayKey)
	env, err := json.Marshal(metaEnvelope{Attrs: raw, Checksum: sum})
	if err != nil {
		return err
	}
	out, err := file.Create(s.ctx, s.metaPath())
	if err != nil {
		return errs.IOError("filestore.writeMeta", s.metaPath(), err)
	}
	var ferr error
	defer file.CloseAndReport(s.ctx, out, &ferr)
	if _, err := out.Writer(s.ctx).Write(env); err != nil {
		ferr = err
		return errs.IOError("filestore.writeMeta.Write", s.metaPath(), err)
	}
	return nil
}

func (s *Store) readMeta() (map[string]interface{}, error) {
	in, err := file.Open(s.ctx, s.metaPath())
	if err != nil {
		return nil, errs.IOError("filestore.readMeta.Open", s.metaPath(), err)
	}
	var ferr error
	defer file.CloseAndReport(s.ctx, in, &ferr)

	var buf []byte
	r := in.Reader(s.ctx)
	tmp := make([]byte, 4096)
	for {
		n, err := r.Read(tmp)
		buf = append(buf, tmp[:n]...)
		if err != nil {
			break
		}
	}
	var env metaEnvelope
	if err := json.Unmarshal(buf, &env); err != nil {
		return nil, errs.Wrap(errs.ErrCorruptStore, "filestore.readMeta", err)
	}
	if got := highwayhash.Sum64(env.Attrs, highwayKey); got != env.Checksum {
		return nil, errs.Wrap(errs.ErrCorruptStore, "filestore.readMeta", "meta_information checksum mismatch")
	}
	var attrs map[string]interface{}
	if err := json.Unmarshal(env.Attrs, &attrs); err != nil {
		return nil, errs.Wrap(errs.ErrCorruptStore, "filestore.readMeta", err)
	}
	return attrs, nil
}

// Root implements tablestore.Store.
func (s *Store) Root() tablestore.Node { return s.root }

// CreateGroup implements tablestore.Store. The reference
// implementation is a flat directory, so groups are purely logical
// (a path prefix); this is a no-op beyond bookkeeping.
func (s *Store) CreateGroup(name string) error { return nil }

// GetNode implements tablestore.Store.
func (s *Store) GetNode(path string) (tablestore.Node, error) {
	if path == "" || path == "/" || path == "/meta_information" {
		return s.root, nil
	}
	if t, ok := s.tables[path]; ok {
		return t, nil
	}
	return nil, fmt.Errorf("filestore: no such node %q", path)
}

// CreateTable implements tablestore.Store.
func (s *Store) CreateTable(parent, name string, sch schema.Schema) (tablestore.Table, error) {
	key := parent + "/" + name
	if t, ok := s.tables[key]; ok {
		return t, nil
	}
	path := fmt.Sprintf("%s/%s_%s.rio", s.dir, sanitize(parent), name)
	t := newTable(s.ctx, path, sch, map[string]interface{}{})
	s.tables[key] = t
	return t, nil
}

// Close implements tablestore.Store. It persists /meta_information
// attributes one final time.
func (s *Store) Close() error {
	return s.writeMeta()
}

func sanitize(p string) string {
	out := make([]byte, 0, len(p))
	for i := 0; i < len(p); i++ {
		if p[i] == '/' {
			out = append(out, '_')
		} else {
			out = append(out, p[i])
		}
	}
	return string(out)
}
