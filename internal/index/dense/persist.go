package dense

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
)

// ErrChecksumMismatch is returned when a saved index was built from another
// corpus snapshot.
var ErrChecksumMismatch = errors.New("index does not match corpus snapshot")

var fileMagic = [4]byte{'H', 'P', 'D', 'X'}

const fileVersion uint32 = 1

// Save writes the index together with the corpus checksum it was built from.
func (x *Index) Save(w io.Writer, checksum string) error {
	payload, err := x.ann.MarshalBinary()
	if err != nil {
		return fmt.Errorf("encoding %s index: %w", x.opts.Kind, err)
	}

	bw := bufio.NewWriter(w)
	if err := binary.Write(bw, binary.LittleEndian, fileMagic); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, fileVersion); err != nil {
		return err
	}
	for _, s := range []string{x.opts.Kind, x.enc.Model(), checksum} {
		if err := writeString(bw, s); err != nil {
			return err
		}
	}
	if err := binary.Write(bw, binary.LittleEndian, uint32(x.ann.Len())); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint64(len(payload))); err != nil {
		return err
	}
	if _, err := bw.Write(payload); err != nil {
		return err
	}

	return bw.Flush()
}

// Load restores an index saved by Save. The saved kind, encoder model and
// checksum must match.
func (x *Index) Load(r io.Reader, checksum string) error {
	br := bufio.NewReader(r)

	var m [4]byte
	if err := binary.Read(br, binary.LittleEndian, &m); err != nil {
		return fmt.Errorf("reading magic: %w", err)
	}
	if m != fileMagic {
		return errors.New("not a dense index file")
	}

	var version uint32
	if err := binary.Read(br, binary.LittleEndian, &version); err != nil {
		return fmt.Errorf("reading version: %w", err)
	}
	if version != fileVersion {
		return fmt.Errorf("unsupported index file version %d", version)
	}

	fields := make([]string, 3)
	for i := range fields {
		s, err := readString(br)
		if err != nil {
			return fmt.Errorf("reading header: %w", err)
		}
		fields[i] = s
	}
	kind, model, saved := fields[0], fields[1], fields[2]

	if kind != x.opts.Kind {
		return fmt.Errorf("index file holds a %s index, configured %s", kind, x.opts.Kind)
	}
	if model != x.enc.Model() {
		return fmt.Errorf("index file was embedded with %q, configured %q", model, x.enc.Model())
	}
	if saved != checksum {
		return fmt.Errorf("%w: saved %s, current %s", ErrChecksumMismatch, saved, checksum)
	}

	var count uint32
	if err := binary.Read(br, binary.LittleEndian, &count); err != nil {
		return fmt.Errorf("reading count: %w", err)
	}
	var size uint64
	if err := binary.Read(br, binary.LittleEndian, &size); err != nil {
		return fmt.Errorf("reading payload size: %w", err)
	}

	// The buffer grows with the bytes actually present, not with the header.
	payload, err := io.ReadAll(io.LimitReader(br, int64(min(size, math.MaxInt64-1))+1))
	if err != nil {
		return fmt.Errorf("reading payload: %w", err)
	}
	if uint64(len(payload)) != size {
		return fmt.Errorf("index file holds %d payload bytes, header says %d", len(payload), size)
	}

	a, err := newANN(x.opts)
	if err != nil {
		return err
	}
	if err := a.UnmarshalBinary(payload); err != nil {
		return err
	}
	if a.Len() != int(count) {
		return fmt.Errorf("index file holds %d vectors, header says %d", a.Len(), count)
	}

	x.ann = a
	return nil
}

// SaveFile writes the index to path atomically.
func (x *Index) SaveFile(path, checksum string) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("creating index file: %w", err)
	}

	if err := x.Save(f, checksum); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}

	return os.Rename(tmp, path)
}

// LoadFile restores the index from path.
func (x *Index) LoadFile(path, checksum string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening index file: %w", err)
	}
	defer f.Close()

	return x.Load(f, checksum)
}

func writeString(w io.Writer, s string) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readString(r io.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	if n > 1<<16 {
		return "", fmt.Errorf("string of %d bytes is too long", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
