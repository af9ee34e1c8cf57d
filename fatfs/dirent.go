package fatfs

import (
	"bytes"
	"encoding/binary"
	"strings"
	"time"

	"github.com/noxer/bytewriter"
)

// DirentSize is the size, in bytes, of a single on-disk directory record.
const DirentSize = 32

// Name/extension field widths, in bytes, on disk.
const (
	NameFieldSize      = 8
	ExtensionFieldSize = 3
	MaxNameLength      = NameFieldSize
	MaxExtensionLength = ExtensionFieldSize
)

// Attrs is the 8-bit attribute bitmap carried by every directory entry.
type Attrs uint8

const (
	// AttrReadOnly marks an entry read-only (set) vs. read-write (clear).
	AttrReadOnly Attrs = 1 << 0
	// AttrHidden marks an entry hidden (set) vs. visible (clear).
	AttrHidden Attrs = 1 << 1
	// AttrFile marks an entry as a file (set) vs. a directory (clear). This
	// bit is immutable after creation.
	AttrFile Attrs = 1 << 2
)

func (a Attrs) IsReadOnly() bool { return a&AttrReadOnly != 0 }
func (a Attrs) IsHidden() bool   { return a&AttrHidden != 0 }
func (a Attrs) IsFile() bool     { return a&AttrFile != 0 }
func (a Attrs) IsDir() bool      { return !a.IsFile() }

// AttrToken is a symbolic instruction consumed by set_attributes. Only
// ReadOnly/ReadWrite/Hidden/Visible toggle bits; any other value is ignored.
type AttrToken int

const (
	TokenReadOnly AttrToken = iota
	TokenReadWrite
	TokenHidden
	TokenVisible
)

// Apply returns the attribute bitmap that results from applying token to
// current. Bit2 (the file/directory bit) is never touched. Unknown tokens
// are a no-op, which makes repeated application of the same token
// idempotent by construction.
func (tok AttrToken) Apply(current Attrs) Attrs {
	switch tok {
	case TokenReadOnly:
		return current | AttrReadOnly
	case TokenReadWrite:
		return current &^ AttrReadOnly
	case TokenHidden:
		return current | AttrHidden
	case TokenVisible:
		return current &^ AttrHidden
	default:
		return current
	}
}

// DirEntry is the friendly, already-unpacked form of a 32-byte directory
// record: dates and times are time.Time, not packed 16-bit words.
type DirEntry struct {
	Name         string
	Extension    string
	Size         uint32
	FirstCluster uint16
	Attributes   Attrs
	ModTime      time.Time
}

// rawDirEntry mirrors the on-disk layout exactly, field for field, so it can
// be serialized with a single sequential write and deserialized with a
// single sequential read.
type rawDirEntry struct {
	Name         [NameFieldSize]byte
	Extension    [ExtensionFieldSize]byte
	Size         uint32
	FirstCluster uint16
	Attributes   uint8
	Time         uint16
	Date         uint16
	Reserved     [10]byte
}

// PackDate encodes a civil date into the DOS-style packed representation
// described in the spec: (year-1980)<<9 | month<<5 | day. Year must be in
// [1980, 2107].
func PackDate(t time.Time) uint16 {
	return uint16((t.Year()-1980)<<9) | uint16(t.Month())<<5 | uint16(t.Day())
}

// PackTime encodes a time-of-day into the packed representation, with
// 2-second resolution: hour<<11 | minute<<5 | (second/2).
func PackTime(t time.Time) uint16 {
	return uint16(t.Hour())<<11 | uint16(t.Minute())<<5 | uint16(t.Second()/2)
}

// UnpackDateTime reconstructs a time.Time from packed date/time words.
func UnpackDateTime(date, timeWord uint16) time.Time {
	year := 1980 + int(date>>9)
	month := time.Month((date >> 5) & 0x0F)
	day := int(date & 0x1F)

	hour := int(timeWord >> 11)
	minute := int((timeWord >> 5) & 0x3F)
	second := int(timeWord&0x1F) * 2

	return time.Date(year, month, day, hour, minute, second, 0, time.UTC)
}

func padField(s string, width int) []byte {
	out := make([]byte, width)
	copy(out, s)
	return out
}

func trimField(data []byte) string {
	return strings.TrimRight(string(data), "\x00")
}

// Encode serializes a directory record to its 32-byte on-disk form. Name and
// extension are right-padded with 0x00; the reserved tail is always zero.
func (d DirEntry) Encode() []byte {
	raw := rawDirEntry{
		Size:         d.Size,
		FirstCluster: d.FirstCluster,
		Attributes:   uint8(d.Attributes),
		Time:         PackTime(d.ModTime),
		Date:         PackDate(d.ModTime),
	}
	copy(raw.Name[:], padField(d.Name, NameFieldSize))
	copy(raw.Extension[:], padField(d.Extension, ExtensionFieldSize))

	buf := make([]byte, DirentSize)
	_ = binary.Write(bytewriter.New(buf), binary.BigEndian, &raw)
	return buf
}

// IsEmptySlot reports whether a raw 32-byte record is an empty root/directory
// slot: its leading root_entry_cell_size/2 bytes are all zero, which in
// particular means its first name byte is zero.
func IsEmptySlot(data []byte) bool {
	half := DirentSize / 2
	for _, b := range data[:half] {
		if b != 0 {
			return false
		}
	}
	return true
}

// DecodeDirEntry deserializes a 32-byte on-disk record. Trailing 0x00 bytes
// are trimmed from name/extension. The caller should check IsEmptySlot
// first; decoding an empty slot yields the zero-value DirEntry (including a
// zero ModTime).
func DecodeDirEntry(data []byte) DirEntry {
	if IsEmptySlot(data) {
		return DirEntry{}
	}

	var raw rawDirEntry
	_ = binary.Read(bytes.NewReader(data[:DirentSize]), binary.BigEndian, &raw)

	return DirEntry{
		Name:         trimField(raw.Name[:]),
		Extension:    trimField(raw.Extension[:]),
		Size:         raw.Size,
		FirstCluster: raw.FirstCluster,
		Attributes:   Attrs(raw.Attributes),
		ModTime:      UnpackDateTime(raw.Date, raw.Time),
	}
}
