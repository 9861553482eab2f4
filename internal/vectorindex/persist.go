package vectorindex

import (
	"bufio"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
)

const (
	indexFile   = "index.bin"
	mappingFile = "mapping.json"

	indexMagic    = "TMVI"
	formatVersion = uint32(1)
)

// index.bin layout, little endian:
//
//	magic   [4]byte "TMVI"
//	version uint32
//	dim     uint32
//	count   uint32
//	rows    count*dim float32
type state struct {
	dim     int
	vectors [][]float32
	docs    []string
}

type mapping struct {
	NextID int               `json:"next_id"`
	Docs   map[string]string `json:"docs"`
}

func loadState(dir string) (state, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return state{}, fmt.Errorf("failed to create index directory: %w", err)
	}
	idxPath := filepath.Join(dir, indexFile)
	mapPath := filepath.Join(dir, mappingFile)

	idxExists, err := fileExists(idxPath)
	if err != nil {
		return state{}, err
	}
	mapExists, err := fileExists(mapPath)
	if err != nil {
		return state{}, err
	}

	switch {
	case !idxExists && !mapExists:
		return state{}, nil
	case idxExists != mapExists:
		return state{}, fmt.Errorf("%w: only one of %s and %s exists in %s", ErrCorruptIndex, indexFile, mappingFile, dir)
	}

	dim, vectors, err := readIndex(idxPath)
	if err != nil {
		return state{}, err
	}
	docs, err := readMapping(mapPath)
	if err != nil {
		return state{}, err
	}
	if len(vectors) != len(docs) {
		return state{}, fmt.Errorf("%w: %d vectors but %d mapped texts", ErrCorruptIndex, len(vectors), len(docs))
	}
	return state{dim: dim, vectors: vectors, docs: docs}, nil
}

func readIndex(path string) (int, [][]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to open index: %w", err)
	}
	defer f.Close()
	r := bufio.NewReader(f)

	var header [16]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return 0, nil, fmt.Errorf("%w: short header: %v", ErrCorruptIndex, err)
	}
	if string(header[:4]) != indexMagic {
		return 0, nil, fmt.Errorf("%w: bad magic", ErrCorruptIndex)
	}
	if v := binary.LittleEndian.Uint32(header[4:8]); v != formatVersion {
		return 0, nil, fmt.Errorf("%w: unsupported version %d", ErrCorruptIndex, v)
	}
	dim := int(binary.LittleEndian.Uint32(header[8:12]))
	count := int(binary.LittleEndian.Uint32(header[12:16]))
	if count > 0 && dim == 0 {
		return 0, nil, fmt.Errorf("%w: %d entries with zero dimension", ErrCorruptIndex, count)
	}

	vectors := make([][]float32, count)
	for i := range vectors {
		row := make([]float32, dim)
		if err := binary.Read(r, binary.LittleEndian, row); err != nil {
			return 0, nil, fmt.Errorf("%w: truncated at row %d: %v", ErrCorruptIndex, i, err)
		}
		vectors[i] = row
	}
	if _, err := r.ReadByte(); err != io.EOF {
		return 0, nil, fmt.Errorf("%w: trailing data after %d rows", ErrCorruptIndex, count)
	}
	return dim, vectors, nil
}

func readMapping(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read mapping: %w", err)
	}
	var m mapping
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: mapping: %v", ErrCorruptIndex, err)
	}
	if m.NextID != len(m.Docs) {
		return nil, fmt.Errorf("%w: next_id %d but %d texts", ErrCorruptIndex, m.NextID, len(m.Docs))
	}
	docs := make([]string, m.NextID)
	for i := range docs {
		text, ok := m.Docs[strconv.Itoa(i)]
		if !ok {
			return nil, fmt.Errorf("%w: mapping has no id %d", ErrCorruptIndex, i)
		}
		docs[i] = text
	}
	return docs, nil
}

// saveState writes both artifacts to temp files, then renames the index
// followed by the mapping.
func saveState(dir string, st state) error {
	idxTmp, err := writeTemp(dir, indexFile, func(w io.Writer) error {
		var header [16]byte
		copy(header[:4], indexMagic)
		binary.LittleEndian.PutUint32(header[4:8], formatVersion)
		binary.LittleEndian.PutUint32(header[8:12], uint32(st.dim))
		binary.LittleEndian.PutUint32(header[12:16], uint32(len(st.vectors)))
		if _, err := w.Write(header[:]); err != nil {
			return err
		}
		for _, row := range st.vectors {
			if err := binary.Write(w, binary.LittleEndian, row); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write index: %w", err)
	}

	mapTmp, err := writeTemp(dir, mappingFile, func(w io.Writer) error {
		m := mapping{NextID: len(st.docs), Docs: make(map[string]string, len(st.docs))}
		for i, text := range st.docs {
			m.Docs[strconv.Itoa(i)] = text
		}
		return json.NewEncoder(w).Encode(m)
	})
	if err != nil {
		os.Remove(idxTmp)
		return fmt.Errorf("failed to write mapping: %w", err)
	}

	if err := os.Rename(idxTmp, filepath.Join(dir, indexFile)); err != nil {
		os.Remove(idxTmp)
		os.Remove(mapTmp)
		return fmt.Errorf("failed to replace index: %w", err)
	}
	if err := os.Rename(mapTmp, filepath.Join(dir, mappingFile)); err != nil {
		os.Remove(mapTmp)
		return fmt.Errorf("failed to replace mapping: %w", err)
	}
	return nil
}

func writeTemp(dir, name string, write func(io.Writer) error) (string, error) {
	f, err := os.CreateTemp(dir, name+".tmp-*")
	if err != nil {
		return "", err
	}
	w := bufio.NewWriter(f)
	if err := write(w); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := w.Flush(); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

func removeState(dir string) error {
	for _, name := range []string{indexFile, mappingFile} {
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

func fileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("failed to stat %s: %w", path, err)
}
