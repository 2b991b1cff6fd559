package calib

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
)

// Kind selects which tracking table is generated.
type Kind int

const (
	// RangeGate tables hold the ideal receive gate delay in milliseconds.
	RangeGate Kind = iota
	// Doppler tables hold the commanded Doppler correction in Hz.
	Doppler
)

func (k Kind) String() string {
	switch k {
	case RangeGate:
		return "rgc"
	case Doppler:
		return "dtc"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind accepts the names returned by Kind.String.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "rgc", "range":
		return RangeGate, nil
	case "dtc", "doppler":
		return Doppler, nil
	}
	return 0, fmt.Errorf("unknown table kind %q", s)
}

var (
	// ErrBin is returned for an orbit-phase bin outside the table.
	ErrBin = errors.New("orbit-phase bin out of range")
	// ErrTableFile is returned for files that are not a whole number of
	// entries.
	ErrTableFile = errors.New("malformed table file")
)

const entrySize = 3 * 8

// Table is the tracking table of one beam, one entry per orbit-phase bin.
type Table struct {
	Kind    Kind
	Beam    int
	Entries []Entry
}

// Bins returns the number of orbit-phase bins.
func (t *Table) Bins() int { return len(t.Entries) }

// BinFor maps a fraction of an orbit since the ascending node to its bin.
func (t *Table) BinFor(orbitFraction float64) int {
	n := len(t.Entries)
	if n == 0 {
		return 0
	}
	f := orbitFraction - math.Floor(orbitFraction)
	return int(f*float64(n)) % n
}

// Evaluate returns the tracking value for bin at antenna azimuth.
func (t *Table) Evaluate(bin int, azimuth float64) (float64, error) {
	if bin < 0 || bin >= len(t.Entries) {
		return 0, fmt.Errorf("%w: %d not in [0, %d)", ErrBin, bin, len(t.Entries))
	}
	return t.Entries[bin].Evaluate(azimuth), nil
}

// FileName returns the per-beam file name for base. Beams are numbered
// from one on disk.
func FileName(base string, beam int) string {
	return fmt.Sprintf("%s.%d", base, beam+1)
}

// MarshalBinary encodes the entries as little-endian float64 triples.
func (t *Table) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(len(t.Entries) * entrySize)
	for _, e := range t.Entries {
		if err := binary.Write(&buf, binary.LittleEndian, [3]float64{e.Amplitude, e.Phase, e.Bias}); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary decodes entries written by MarshalBinary.
func (t *Table) UnmarshalBinary(data []byte) error {
	if len(data)%entrySize != 0 {
		return fmt.Errorf("%w: %d bytes is not a multiple of %d", ErrTableFile, len(data), entrySize)
	}
	entries := make([]Entry, len(data)/entrySize)
	r := bytes.NewReader(data)
	for i := range entries {
		var rec [3]float64
		if err := binary.Read(r, binary.LittleEndian, &rec); err != nil {
			return fmt.Errorf("%w: entry %d: %v", ErrTableFile, i, err)
		}
		entries[i] = Entry{Amplitude: rec[0], Phase: rec[1], Bias: rec[2]}
	}
	t.Entries = entries
	return nil
}

// WriteFile writes the table to path. The file is replaced atomically so
// a failed write never leaves a partial table behind.
func (t *Table) WriteFile(path string) error {
	data, err := t.MarshalBinary()
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("write table %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write table %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write table %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write table %s: %w", path, err)
	}
	return nil
}

// ReadFile loads a table written by WriteFile.
func ReadFile(path string, kind Kind, beam int) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read table %s: %w", path, err)
	}
	t := &Table{Kind: kind, Beam: beam}
	if err := t.UnmarshalBinary(data); err != nil {
		return nil, fmt.Errorf("read table %s: %w", path, err)
	}
	return t, nil
}

// Quantized is a table stored as 16-bit terms with a per-term offset and
// scale, the form loaded into the tracking hardware.
type Quantized struct {
	Min   [3]float64
	Scale [3]float64
	Terms [][3]uint16
}

// Quantize scales each term across the table's range onto 0..65535.
func (t *Table) Quantize() Quantized {
	q := Quantized{Terms: make([][3]uint16, len(t.Entries))}
	if len(t.Entries) == 0 {
		return q
	}
	lo := entryTerms(t.Entries[0])
	hi := lo
	for _, e := range t.Entries[1:] {
		v := entryTerms(e)
		for k := range v {
			lo[k] = math.Min(lo[k], v[k])
			hi[k] = math.Max(hi[k], v[k])
		}
	}
	for k := range lo {
		q.Min[k] = lo[k]
		q.Scale[k] = (hi[k] - lo[k]) / math.MaxUint16
	}
	for i, e := range t.Entries {
		v := entryTerms(e)
		for k := range v {
			if q.Scale[k] == 0 {
				continue
			}
			q.Terms[i][k] = uint16((v[k]-q.Min[k])/q.Scale[k] + 0.5)
		}
	}
	return q
}

// Dequantize expands the terms back into a table.
func (q Quantized) Dequantize(kind Kind, beam int) *Table {
	t := &Table{Kind: kind, Beam: beam, Entries: make([]Entry, len(q.Terms))}
	for i, term := range q.Terms {
		var v [3]float64
		for k := range v {
			v[k] = q.Min[k] + float64(term[k])*q.Scale[k]
		}
		t.Entries[i] = Entry{Amplitude: v[0], Phase: v[1], Bias: v[2]}
	}
	return t
}

func entryTerms(e Entry) [3]float64 {
	return [3]float64{e.Amplitude, e.Phase, e.Bias}
}
