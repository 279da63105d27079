package vectorstore

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
)

// File names of the two companion artifacts.
const (
	IndexFileName   = "index.bin"
	MappingFileName = "index_ids.json"
)

var indexMagic = [4]byte{'B', 'S', 'V', 'I'}

const indexVersion uint32 = 1

// errCorrupt marks artifacts that exist but cannot be used together.
var errCorrupt = errors.New("vector index artifacts are corrupt or inconsistent")

type mappingFile struct {
	Generation uint64  `json:"generation"`
	Dimension  int     `json:"dimension"`
	IDs        []int64 `json:"ids"`
}

// snapshot is an immutable copy of the index written to disk.
type snapshot struct {
	generation uint64
	dim        int
	vectors    []float32
	ids        []int64
}

// writeSnapshot writes the index file first and the mapping second; each via rename.
// A generation number shared by both lets the loader detect a torn pair.
func writeSnapshot(dir string, s snapshot) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	if err := writeAtomic(filepath.Join(dir, IndexFileName), func(w io.Writer) error {
		return encodeIndex(w, s)
	}); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	if err := writeAtomic(filepath.Join(dir, MappingFileName), func(w io.Writer) error {
		return json.NewEncoder(w).Encode(mappingFile{Generation: s.generation, Dimension: s.dim, IDs: s.ids})
	}); err != nil {
		return fmt.Errorf("write id mapping: %w", err)
	}
	return nil
}

// readSnapshot loads both artifacts. os.ErrNotExist is returned when either is missing.
func readSnapshot(dir string, dim int) (snapshot, error) {
	mf, err := os.Open(filepath.Join(dir, MappingFileName))
	if err != nil {
		return snapshot{}, fmt.Errorf("open id mapping: %w", err)
	}
	defer mf.Close()
	var m mappingFile
	if err := json.NewDecoder(mf).Decode(&m); err != nil {
		return snapshot{}, fmt.Errorf("decode id mapping: %w: %w", errCorrupt, err)
	}

	f, err := os.Open(filepath.Join(dir, IndexFileName))
	if err != nil {
		return snapshot{}, fmt.Errorf("open index: %w", err)
	}
	defer f.Close()
	if m.Dimension != dim {
		return snapshot{}, fmt.Errorf("%w: mapping dimension %d, want %d", errCorrupt, m.Dimension, dim)
	}
	s, err := decodeIndex(bufio.NewReader(f), dim, len(m.IDs))
	if err != nil {
		return snapshot{}, fmt.Errorf("decode index: %w: %w", errCorrupt, err)
	}
	if m.Generation != s.generation {
		return snapshot{}, fmt.Errorf("%w: generation %d vs %d", errCorrupt, m.Generation, s.generation)
	}
	s.ids = m.IDs
	return s, nil
}

// Index file layout (little-endian):
// magic[4] version:u32 dim:u32 count:u32 generation:u64 vectors:f32[count*dim]
func encodeIndex(w io.Writer, s snapshot) error {
	bw := bufio.NewWriter(w)
	hdr := make([]byte, 0, 24)
	hdr = append(hdr, indexMagic[:]...)
	hdr = binary.LittleEndian.AppendUint32(hdr, indexVersion)
	hdr = binary.LittleEndian.AppendUint32(hdr, uint32(s.dim))
	hdr = binary.LittleEndian.AppendUint32(hdr, uint32(len(s.ids)))
	hdr = binary.LittleEndian.AppendUint64(hdr, s.generation)
	if _, err := bw.Write(hdr); err != nil {
		return err //nolint:wrapcheck // wrapped by writeSnapshot
	}
	var buf [4]byte
	for _, f := range s.vectors {
		binary.LittleEndian.PutUint32(buf[:], math.Float32bits(f))
		if _, err := bw.Write(buf[:]); err != nil {
			return err //nolint:wrapcheck // wrapped by writeSnapshot
		}
	}
	return bw.Flush() //nolint:wrapcheck // wrapped by writeSnapshot
}

// maxIndexFloats caps the vector payload a header may declare (4 GiB of float32).
const maxIndexFloats = 1 << 30

// decodeIndex reads an index file holding count vectors of size dim. The header
// is checked against both before the payload is allocated.
func decodeIndex(r io.Reader, dim, count int) (snapshot, error) {
	var hdr [24]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return snapshot{}, fmt.Errorf("read header: %w", err)
	}
	if [4]byte(hdr[:4]) != indexMagic {
		return snapshot{}, fmt.Errorf("bad magic %q", hdr[:4])
	}
	if v := binary.LittleEndian.Uint32(hdr[4:]); v != indexVersion {
		return snapshot{}, fmt.Errorf("unsupported version %d", v)
	}
	s := snapshot{
		dim:        int(binary.LittleEndian.Uint32(hdr[8:])),
		generation: binary.LittleEndian.Uint64(hdr[16:]),
	}
	hdrCount := uint64(binary.LittleEndian.Uint32(hdr[12:]))
	switch {
	case dim <= 0:
		return snapshot{}, fmt.Errorf("invalid expected dimension %d", dim)
	case s.dim != dim:
		return snapshot{}, fmt.Errorf("index dimension %d, want %d", s.dim, dim)
	case hdrCount != uint64(count):
		return snapshot{}, fmt.Errorf("index holds %d vectors, mapping has %d ids", hdrCount, count)
	case hdrCount*uint64(dim) > maxIndexFloats:
		return snapshot{}, fmt.Errorf("index declares %d vectors of dimension %d", hdrCount, dim)
	}
	data := make([]byte, count*dim*4)
	if _, err := io.ReadFull(r, data); err != nil {
		return snapshot{}, fmt.Errorf("read vectors: %w", err)
	}
	if n, _ := r.Read(make([]byte, 1)); n != 0 {
		return snapshot{}, errors.New("trailing data")
	}
	s.vectors = make([]float32, count*dim)
	for i := range s.vectors {
		s.vectors[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return s, nil
}

func writeAtomic(path string, write func(io.Writer) error) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after rename

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}
