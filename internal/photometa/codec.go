// Package photometa reads and writes the custom metadata payload stored
// in a JPEG's EXIF ImageDescription tag, leaving every other tag intact.
package photometa

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	exif "github.com/dsoprea/go-exif/v3"
	jpegstructure "github.com/dsoprea/go-jpeg-image-structure/v2"

	"github.com/starford/metaedit/internal/models"
	"github.com/starford/metaedit/internal/parser"
	"github.com/starford/metaedit/internal/pathlock"
	"github.com/starford/metaedit/internal/storage"
)

// descriptionTag is the IFD0 tag repurposed to hold the payload.
const descriptionTag = "ImageDescription"

// soi is the JPEG start-of-image marker.
var soi = []byte{0xff, jpegstructure.MARKER_SOI}

var errTruncated = errors.New("jpeg ends before the end-of-image marker")

// Intent tells Encode why it is being called.
type Intent int

const (
	// UserEdit is a user-initiated change and is written to the file.
	UserEdit Intent = iota
	// Reload is a programmatic refresh of displayed fields. Nothing is
	// written.
	Reload
)

func (i Intent) String() string {
	if i == Reload {
		return "reload"
	}
	return "user_edit"
}

// Codec decodes and encodes photo metadata. Calls for the same path are
// serialized; calls for different paths run concurrently.
type Codec struct {
	logger *slog.Logger
	locks  *pathlock.Table
}

// NewCodec creates a Codec that logs recoverable problems to logger.
func NewCodec(logger *slog.Logger) *Codec {
	if logger == nil {
		logger = slog.Default()
	}
	return &Codec{logger: logger, locks: pathlock.New()}
}

// Decode returns the record stored in the JPEG at path. A missing or
// malformed description yields an empty record; only an unreadable or
// non-JPEG file is an error (*DecodeError).
func (c *Codec) Decode(path string) (*models.Record, error) {
	unlock := c.locks.Lock(path)
	defer unlock()

	p, err := c.load(path)
	if err != nil {
		var de *DecodeError
		if errors.As(err, &de) && de.Kind == MalformedPayload {
			c.logger.Warn("photometa: description is not a metadata payload, using empty record",
				slog.String("path", path), slog.String("error", err.Error()))
			return &models.Record{}, nil
		}
		return nil, err
	}
	if len(p.Skipped) > 0 {
		c.logger.Warn("photometa: ignored fields with unusable values",
			slog.String("path", path), slog.Any("fields", p.Skipped))
	}
	return p.Record, nil
}

// Encode writes r into the description tag of the JPEG at path. With
// intent Reload it does nothing. Keys in an existing payload that r does
// not model are kept. The file is replaced atomically; on error the
// original is untouched and an *EncodeError is returned.
func (c *Codec) Encode(path string, r *models.Record, intent Intent) error {
	if intent == Reload {
		return nil
	}

	unlock := c.locks.Lock(path)
	defer unlock()

	fail := func(err error) error {
		return &EncodeError{Kind: ExifWriteFailed, Path: path, Err: err}
	}

	info, err := os.Stat(path)
	if err != nil {
		return fail(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fail(err)
	}
	sl, err := parseJPEG(data)
	if err != nil {
		return fail(err)
	}

	var extra map[string]json.RawMessage
	if desc, ok, err := description(sl); err == nil && ok {
		if p, perr := parser.Parse(desc); perr == nil {
			extra = p.Extra
		} else {
			c.logger.Warn("photometa: replacing legacy description",
				slog.String("path", path), slog.String("description", desc))
		}
	}

	payload, err := parser.Render(r, extra)
	if err != nil {
		return fail(err)
	}

	rootIb, err := sl.ConstructExifBuilder()
	if err != nil {
		return fail(fmt.Errorf("build exif: %w", err))
	}
	if err := rootIb.SetStandardWithName(descriptionTag, payload); err != nil {
		return fail(fmt.Errorf("set %s: %w", descriptionTag, err))
	}
	if err := sl.SetExif(rootIb); err != nil {
		return fail(fmt.Errorf("set exif: %w", err))
	}

	var buf bytes.Buffer
	if err := sl.Write(&buf); err != nil {
		return fail(fmt.Errorf("serialize jpeg: %w", err))
	}
	if err := storage.WriteFileAtomic(path, buf.Bytes(), info.Mode().Perm()); err != nil {
		return fail(err)
	}

	c.logger.Debug("photometa: encoded", slog.String("path", path), slog.String("payload", payload))
	return nil
}

// load reads path and parses its payload, reporting every failure as a
// *DecodeError, including MalformedPayload.
func (c *Codec) load(path string) (*parser.Payload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &DecodeError{Kind: FileUnreadable, Path: path, Err: err}
	}
	if !bytes.HasPrefix(data, soi) {
		return nil, &DecodeError{Kind: UnsupportedFormat, Path: path}
	}
	if !jpegstructure.NewJpegMediaParser().LooksLikeFormat(data) {
		return nil, &DecodeError{Kind: FileUnreadable, Path: path, Err: errTruncated}
	}
	sl, err := parseJPEG(data)
	if err != nil {
		return nil, &DecodeError{Kind: FileUnreadable, Path: path, Err: err}
	}
	desc, ok, err := description(sl)
	if err != nil {
		return nil, &DecodeError{Kind: FileUnreadable, Path: path, Err: err}
	}
	if !ok {
		return &parser.Payload{Record: &models.Record{}}, nil
	}
	p, err := parser.Parse(desc)
	if err != nil {
		return nil, &DecodeError{Kind: MalformedPayload, Path: path, Err: err}
	}
	return p, nil
}

func parseJPEG(data []byte) (*jpegstructure.SegmentList, error) {
	mc, err := jpegstructure.NewJpegMediaParser().ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("parse jpeg: %w", err)
	}
	sl, ok := mc.(*jpegstructure.SegmentList)
	if !ok {
		return nil, fmt.Errorf("parse jpeg: unexpected media context %T", mc)
	}
	return sl, nil
}

// description returns the ImageDescription text and whether it exists.
func description(sl *jpegstructure.SegmentList) (string, bool, error) {
	if _, _, err := sl.FindExif(); err != nil {
		if errors.Is(err, exif.ErrNoExif) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("find exif: %w", err)
	}
	rootIfd, _, err := sl.Exif()
	if err != nil {
		return "", false, fmt.Errorf("read exif: %w", err)
	}
	results, err := rootIfd.FindTagWithName(descriptionTag)
	if err != nil || len(results) == 0 {
		// Tag not present.
		return "", false, nil
	}
	v, err := results[0].Value()
	if err != nil {
		return "", false, fmt.Errorf("read %s: %w", descriptionTag, err)
	}
	switch s := v.(type) {
	case string:
		return s, true, nil
	case []byte:
		return string(bytes.TrimRight(s, "\x00")), true, nil
	default:
		return fmt.Sprint(v), true, nil
	}
}
