// Package bundle moves CAS objects between stores as a deterministic tar
// archive, optionally zstd-compressed:
//
//	blocks/<cid>   one entry per object, sorted by CID
//	index.json     optional, non-authoritative names for CIDs
package bundle

import (
	"archive/tar"
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/ipfs/go-cid"
	"github.com/klauspost/compress/zstd"

	"besedarium.dev/mpst/cidutil"
	"besedarium.dev/mpst/storage"
)

// FormatVersion is the current bundle index schema version.
const FormatVersion = 1

// epoch0 is the modification time of every entry.
var epoch0 = time.Unix(0, 0).UTC()

var zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}

// ExportOptions controls bundle export behavior.
type ExportOptions struct {
	// Labels are names for CIDs, written to index.json.
	Labels map[string]cid.Cid
	// IncludeIndex controls whether index.json is written.
	IncludeIndex bool
	// Compress wraps the tar stream in zstd. The output stays deterministic.
	Compress bool
}

// Export writes the objects ids to w. Entry order and tar headers are fixed,
// so the same objects always produce the same bytes. Every object is checked
// against its CID on the way out.
func Export(w io.Writer, cas storage.CAS, ids []cid.Cid, opts ExportOptions) error {
	if cas == nil {
		return fmt.Errorf("bundle: nil CAS")
	}
	if opts.Compress {
		zw, err := zstd.NewWriter(w, zstd.WithEncoderConcurrency(1))
		if err != nil {
			return err
		}
		if err := export(zw, cas, ids, opts); err != nil {
			_ = zw.Close()
			return err
		}
		return zw.Close()
	}
	return export(w, cas, ids, opts)
}

func export(w io.Writer, cas storage.CAS, ids []cid.Cid, opts ExportOptions) (err error) {
	sorted, err := uniqueSorted(ids)
	if err != nil {
		return err
	}
	tw := tar.NewWriter(w)
	defer func() {
		if cerr := tw.Close(); err == nil {
			err = cerr
		}
	}()

	blocks := make([]indexBlock, 0, len(sorted))
	for _, id := range sorted {
		b, err := cas.Get(id)
		if err != nil {
			return fmt.Errorf("bundle: %s: %w", id, err)
		}
		got, err := cidutil.CIDv1RawSHA256CID(b)
		if err != nil {
			return err
		}
		if got != id {
			return storage.ErrCIDMismatch
		}
		if err := writeFile(tw, "blocks/"+id.String(), b); err != nil {
			return err
		}
		blocks = append(blocks, indexBlock{CID: id.String(), Size: len(b)})
	}
	if !opts.IncludeIndex {
		return nil
	}

	idx := indexJSON{Version: FormatVersion, CIDCodec: "raw", Multihash: "sha2-256", Blocks: blocks}
	names := make([]string, 0, len(opts.Labels))
	for k := range opts.Labels {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		v := opts.Labels[k]
		if k == "" {
			return fmt.Errorf("bundle: empty label key")
		}
		if !v.Defined() {
			return storage.ErrInvalidCID
		}
		idx.Labels = append(idx.Labels, indexLabel{Name: k, CID: v.String()})
	}
	b, err := marshalCanonicalIndexJSON(idx)
	if err != nil {
		return err
	}
	return writeFile(tw, "index.json", b)
}

func uniqueSorted(ids []cid.Cid) ([]cid.Cid, error) {
	seen := make(map[cid.Cid]bool, len(ids))
	out := make([]cid.Cid, 0, len(ids))
	for _, id := range ids {
		if !id.Defined() {
			return nil, storage.ErrInvalidCID
		}
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out, nil
}

// ImportOptions controls bundle import behavior.
type ImportOptions struct {
	// IgnoreUnknown skips unknown entries instead of failing.
	IgnoreUnknown bool
}

// Import reads a bundle, compressed or not, into cas. Unknown entries are
// errors.
func Import(r io.Reader, cas storage.CAS) ([]cid.Cid, error) {
	return ImportWithOptions(r, cas, ImportOptions{})
}

// ImportWithOptions reads a bundle into cas and returns the imported CIDs in
// archive order. Each block must match both its entry name and its content
// hash.
func ImportWithOptions(r io.Reader, cas storage.CAS, opts ImportOptions) ([]cid.Cid, error) {
	if cas == nil {
		return nil, fmt.Errorf("bundle: nil CAS")
	}
	br := bufio.NewReader(r)
	if head, _ := br.Peek(len(zstdMagic)); bytes.Equal(head, zstdMagic) {
		zr, err := zstd.NewReader(br)
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		return importTar(zr, cas, opts)
	}
	return importTar(br, cas, opts)
}

func importTar(r io.Reader, cas storage.CAS, opts ImportOptions) ([]cid.Cid, error) {
	tr := tar.NewReader(r)
	seen := map[cid.Cid]bool{}
	var imported []cid.Cid

	for {
		h, err := tr.Next()
		if err == io.EOF {
			return imported, nil
		}
		if err != nil {
			return imported, err
		}
		name := cleanTarPath(h.Name)
		if name == "" {
			return imported, fmt.Errorf("bundle: invalid entry path: %q", h.Name)
		}
		if h.Typeflag != tar.TypeReg {
			if opts.IgnoreUnknown {
				continue
			}
			return imported, fmt.Errorf("bundle: unexpected tar entry type: %v (%s)", h.Typeflag, name)
		}
		if name == "index.json" {
			continue
		}
		cidStr, ok := strings.CutPrefix(name, "blocks/")
		if !ok {
			if opts.IgnoreUnknown {
				continue
			}
			return imported, fmt.Errorf("bundle: unknown entry: %s", name)
		}

		id, err := cid.Decode(cidStr)
		if err != nil || !id.Defined() {
			return imported, storage.ErrInvalidCID
		}
		if seen[id] {
			return imported, fmt.Errorf("bundle: duplicate block entry: %s", id)
		}
		seen[id] = true

		payload, err := io.ReadAll(tr)
		if err != nil {
			return imported, err
		}
		got, err := cidutil.CIDv1RawSHA256CID(payload)
		if err != nil {
			return imported, err
		}
		if got != id {
			return imported, storage.ErrCIDMismatch
		}
		putID, err := cas.Put(payload)
		if err != nil {
			return imported, err
		}
		if putID != id {
			return imported, storage.ErrCIDMismatch
		}
		imported = append(imported, id)
	}
}

// ReadIndex returns the names recorded in a bundle's index.json, or nil when
// the bundle has no index.
func ReadIndex(r io.Reader) (map[string]cid.Cid, error) {
	br := bufio.NewReader(r)
	var src io.Reader = br
	if head, _ := br.Peek(len(zstdMagic)); bytes.Equal(head, zstdMagic) {
		zr, err := zstd.NewReader(br)
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		src = zr
	}
	tr := tar.NewReader(src)
	for {
		h, err := tr.Next()
		if err == io.EOF {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		if cleanTarPath(h.Name) != "index.json" {
			continue
		}
		var idx indexJSON
		if err := json.NewDecoder(tr).Decode(&idx); err != nil {
			return nil, fmt.Errorf("bundle: index.json: %w", err)
		}
		out := make(map[string]cid.Cid, len(idx.Labels))
		for _, l := range idx.Labels {
			id, err := cid.Decode(l.CID)
			if err != nil {
				return nil, fmt.Errorf("bundle: index.json: %s: %w", l.Name, err)
			}
			out[l.Name] = id
		}
		return out, nil
	}
}

type indexJSON struct {
	Version   int          `json:"version"`
	CIDCodec  string       `json:"cidCodec"`
	Multihash string       `json:"multihash"`
	Blocks    []indexBlock `json:"blocks"`
	Labels    []indexLabel `json:"labels,omitempty"`
}

type indexBlock struct {
	CID  string `json:"cid"`
	Size int    `json:"size"`
}

type indexLabel struct {
	Name string `json:"name"`
	CID  string `json:"cid"`
}

// marshalCanonicalIndexJSON relies on indexJSON holding only structs and
// slices, which encoding/json writes in a fixed order.
func marshalCanonicalIndexJSON(idx indexJSON) ([]byte, error) {
	b, err := json.Marshal(idx)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

func writeFile(tw *tar.Writer, name string, content []byte) error {
	hdr := &tar.Header{
		Name:     name,
		Mode:     0o644,
		Size:     int64(len(content)),
		ModTime:  epoch0,
		Format:   tar.FormatUSTAR,
		Typeflag: tar.TypeReg,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err := tw.Write(content)
	return err
}

// cleanTarPath normalizes an entry name and returns "" for anything that
// could escape the archive root.
func cleanTarPath(name string) string {
	name = strings.ReplaceAll(strings.TrimSpace(name), "\\", "/")
	name = strings.TrimPrefix(strings.TrimPrefix(name, "./"), "/")
	if name == "" {
		return ""
	}
	for _, part := range strings.Split(name, "/") {
		if part == "" || part == "." || part == ".." {
			return ""
		}
	}
	return name
}
