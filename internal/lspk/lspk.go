// Package lspk reads file metadata and contents out of LSPK v18 package
// archives without needing any external packaging tool.
package lspk

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pierrec/lz4/v4"
)

const (
	signature  = 0x4B50534C // "LSPK" little-endian
	version    = 18
	headerSize = 40
	entrySize  = 272
)

// CompressionMethod is the low nibble of a file record's flags byte.
type CompressionMethod byte

const (
	CompressionNone CompressionMethod = 0
	CompressionZlib CompressionMethod = 1
	CompressionLZ4  CompressionMethod = 2
)

// ErrBadFormat is returned for a signature mismatch, wrong version, or a
// header/file-list that is too short to parse.
var ErrBadFormat = fmt.Errorf("lspk: bad format")

// ErrUnsupportedCompression is returned for a compression-method nibble
// other than none/zlib/lz4.
var ErrUnsupportedCompression = fmt.Errorf("lspk: unsupported compression method")

// Header is the 40-byte LSPK v18 archive header.
type Header struct {
	Version         uint32
	FileListOffset  uint64
	FileListSize    uint32
	Flags           byte
	Priority        byte
	MD5             [16]byte
	NumParts        uint16
}

// Record is one 272-byte file-list entry.
type Record struct {
	Name             string
	Offset           uint64
	ArchivePart      byte
	Flags            byte
	SizeOnDisk       uint32
	UncompressedSize uint32
}

// Method returns the record's compression method (the low nibble of Flags).
func (r Record) Method() CompressionMethod {
	return CompressionMethod(r.Flags & 0x0F)
}

// Archive is an opened LSPK v18 package, ready for ReadRecords/ExtractNamed.
type Archive struct {
	f      *os.File
	Header Header
}

// Open parses the header at the start of path. The file is kept open until
// Close is called.
func Open(path string) (*Archive, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	hdr, err := parseHeader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &Archive{f: f, Header: hdr}, nil
}

// Close releases the underlying file handle.
func (a *Archive) Close() error { return a.f.Close() }

func parseHeader(r io.Reader) (Header, error) {
	buf := make([]byte, headerSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Header{}, fmt.Errorf("%w: header too short: %v", ErrBadFormat, err)
	}
	sig := binary.LittleEndian.Uint32(buf[0:4])
	if sig != signature {
		return Header{}, fmt.Errorf("%w: bad signature 0x%08X", ErrBadFormat, sig)
	}
	ver := binary.LittleEndian.Uint32(buf[4:8])
	if ver != version {
		return Header{}, fmt.Errorf("%w: unsupported version %d (want %d)", ErrBadFormat, ver, version)
	}
	h := Header{
		Version:        ver,
		FileListOffset: binary.LittleEndian.Uint64(buf[8:16]),
		FileListSize:   binary.LittleEndian.Uint32(buf[16:20]),
		Flags:          buf[20],
		Priority:       buf[21],
		NumParts:       binary.LittleEndian.Uint16(buf[38:40]),
	}
	copy(h.MD5[:], buf[22:38])
	return h, nil
}

// ReadRecords seeks to the file list and returns every file record it
// contains.
func (a *Archive) ReadRecords() ([]Record, error) {
	if _, err := a.f.Seek(int64(a.Header.FileListOffset), io.SeekStart); err != nil {
		return nil, err
	}
	var countBuf [8]byte
	if _, err := io.ReadFull(a.f, countBuf[:]); err != nil {
		return nil, fmt.Errorf("%w: truncated file-list header: %v", ErrBadFormat, err)
	}
	numFiles := binary.LittleEndian.Uint32(countBuf[0:4])
	compressedSize := binary.LittleEndian.Uint32(countBuf[4:8])

	compressed := make([]byte, compressedSize)
	if _, err := io.ReadFull(a.f, compressed); err != nil {
		return nil, fmt.Errorf("%w: truncated file-list body: %v", ErrBadFormat, err)
	}

	uncompressedSize := int(numFiles) * entrySize
	raw := make([]byte, uncompressedSize)
	n, err := lz4.UncompressBlock(compressed, raw)
	if err != nil {
		return nil, fmt.Errorf("lspk: decompressing file list: %w", err)
	}
	if n != uncompressedSize {
		return nil, fmt.Errorf("%w: file-list size mismatch after decompression", ErrBadFormat)
	}

	records := make([]Record, numFiles)
	for i := 0; i < int(numFiles); i++ {
		base := i * entrySize
		entry := raw[base : base+entrySize]

		nameBytes := entry[0:256]
		nul := bytes.IndexByte(nameBytes, 0)
		var name string
		if nul >= 0 {
			name = string(nameBytes[:nul])
		} else {
			name = string(nameBytes)
		}

		offsetLow := binary.LittleEndian.Uint32(entry[256:260])
		offsetHigh := binary.LittleEndian.Uint16(entry[260:262])

		records[i] = Record{
			Name:             name,
			Offset:           uint64(offsetLow) | (uint64(offsetHigh) << 32),
			ArchivePart:      entry[262],
			Flags:            entry[263],
			SizeOnDisk:       binary.LittleEndian.Uint32(entry[264:268]),
			UncompressedSize: binary.LittleEndian.Uint32(entry[268:272]),
		}
	}
	return records, nil
}

// ExtractNamed scans the file list for the first record whose name ends
// with suffix, seeks to it, and returns its decompressed bytes. It returns
// (nil, nil) if no record matches.
func (a *Archive) ExtractNamed(suffix string) ([]byte, error) {
	records, err := a.ReadRecords()
	if err != nil {
		return nil, err
	}
	for _, rec := range records {
		if !hasSuffix(rec.Name, suffix) {
			continue
		}
		return a.extractRecord(rec)
	}
	return nil, nil
}

func hasSuffix(name, suffix string) bool {
	return len(name) >= len(suffix) && name[len(name)-len(suffix):] == suffix
}

func (a *Archive) extractRecord(rec Record) ([]byte, error) {
	if _, err := a.f.Seek(int64(rec.Offset), io.SeekStart); err != nil {
		return nil, err
	}
	raw := make([]byte, rec.SizeOnDisk)
	if _, err := io.ReadFull(a.f, raw); err != nil {
		return nil, fmt.Errorf("%w: truncated record body for %s: %v", ErrBadFormat, rec.Name, err)
	}
	return decompress(raw, rec.Method(), int(rec.UncompressedSize))
}

func decompress(data []byte, method CompressionMethod, uncompressedSize int) ([]byte, error) {
	switch method {
	case CompressionNone:
		return data, nil
	case CompressionZlib:
		r, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("lspk: zlib: %w", err)
		}
		defer r.Close()
		return io.ReadAll(r)
	case CompressionLZ4:
		out := make([]byte, uncompressedSize)
		n, err := lz4.UncompressBlock(data, out)
		if err != nil {
			return nil, fmt.Errorf("lspk: lz4: %w", err)
		}
		return out[:n], nil
	default:
		return nil, fmt.Errorf("%w: method %d", ErrUnsupportedCompression, method)
	}
}

// ExtractAll decompresses every record into destDir, recreating each
// record's relative path (with backslashes normalized to the host
// separator) and returns the number of files written.
func (a *Archive) ExtractAll(destDir string) (int, error) {
	records, err := a.ReadRecords()
	if err != nil {
		return 0, err
	}
	for _, rec := range records {
		data, err := a.extractRecord(rec)
		if err != nil {
			return 0, fmt.Errorf("lspk: extracting %s: %w", rec.Name, err)
		}
		rel := filepath.FromSlash(strings.ReplaceAll(rec.Name, "\\", "/"))
		dest := filepath.Join(destDir, rel)
		if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
			return 0, err
		}
		if err := os.WriteFile(dest, data, 0o644); err != nil {
			return 0, err
		}
	}
	return len(records), nil
}

// ExtractNamedFromFile opens path, extracts the first record ending with
// suffix, and closes the archive: a convenience wrapper for callers who
// only need one file out of the archive.
func ExtractNamedFromFile(path, suffix string) ([]byte, error) {
	a, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer a.Close()
	return a.ExtractNamed(suffix)
}
