package createdat

import (
	"encoding/json"
	"errors"
	"regexp"
	"strconv"
	"time"
)

// Source describes where a CreatedAt timestamp was derived from.
//
// The priority order is:
//  1. exif
//  2. filename
//
// An unresolved Result has an empty Source.
type Source string

const (
	SourceEXIF     Source = "exif"
	SourceFilename Source = "filename"
)

// ISOLayout is the layout used for resolved timestamps. Timestamps carry no zone.
const ISOLayout = "2006-01-02T15:04:05"

// ErrNoTimestamp is returned by Determine when no source yielded a valid timestamp.
var ErrNoTimestamp = errors.New("createdat: no timestamp found")

// Result contains a best-effort creation timestamp and its source.
type Result struct {
	Filename  string
	CreatedAt time.Time
	Source    Source
}

// Found reports whether a timestamp was resolved.
func (r Result) Found() bool {
	return r.Source != ""
}

// DateTime returns the timestamp formatted as ISO-8601 without zone, or "" when unresolved.
func (r Result) DateTime() string {
	if !r.Found() {
		return ""
	}
	return r.CreatedAt.Format(ISOLayout)
}

type resultJSON struct {
	Filename       string  `json:"filename"`
	DateTime       *string `json:"datetime"`
	DateTimeSource *Source `json:"datetime_source"`
}

// MarshalJSON encodes unresolved results with null datetime and datetime_source.
func (r Result) MarshalJSON() ([]byte, error) {
	out := resultJSON{Filename: r.Filename}
	if r.Found() {
		dt := r.DateTime()
		src := r.Source
		out.DateTime = &dt
		out.DateTimeSource = &src
	}
	return json.Marshal(out)
}

// DetailedResult contains every candidate timestamp that was considered.
type DetailedResult struct {
	// Best is the chosen timestamp using priority: exif > filename
	Best Result

	// EXIF is the timestamp extracted from embedded metadata; valid when EXIFFound.
	EXIF      time.Time
	EXIFFound bool

	// Filename is the timestamp parsed from the filename; valid when FilenameFound.
	Filename      time.Time
	FilenameFound bool
}

// MetadataExtractor extracts an embedded creation timestamp from raw image bytes.
//
// Implementations should return (t, true, nil) when a timestamp is found.
// If no timestamp exists, return (time.Time{}, false, nil).
// Errors and panics are treated as best-effort failures by the Resolver.
type MetadataExtractor interface {
	CreatedAt(data []byte) (time.Time, bool, error)
}

// Resolver runs the attribution chain. The zero value uses the EXIF extractor.
type Resolver struct {
	Metadata MetadataExtractor
}

// Resolve returns the best-effort created-at timestamp for an uploaded file.
func Resolve(filename string, data []byte) Result {
	return Resolver{}.Resolve(filename, data)
}

// Determine is Resolve with ErrNoTimestamp reported when nothing matched.
func Determine(filename string, data []byte) (Result, error) {
	return Resolver{}.Determine(filename, data)
}

// DetermineDetailed returns all considered timestamps for an uploaded file.
func DetermineDetailed(filename string, data []byte) DetailedResult {
	return Resolver{}.DetermineDetailed(filename, data)
}

// attempt is one link of the chain. Attempts never fail loudly; ok=false moves to the next link.
type attempt func(filename string, data []byte) (time.Time, bool)

type step struct {
	source Source
	try    attempt
}

func (r Resolver) chain() []step {
	return []step{
		{SourceEXIF, r.fromMetadata},
		{SourceFilename, fromDashedName},
		{SourceFilename, fromCompactName},
	}
}

// Resolve returns the first timestamp found along the chain.
func (r Resolver) Resolve(filename string, data []byte) Result {
	res, _ := r.Determine(filename, data)
	return res
}

// Determine returns the first timestamp found along the chain, or ErrNoTimestamp.
func (r Resolver) Determine(filename string, data []byte) (Result, error) {
	for _, step := range r.chain() {
		if t, ok := step.try(filename, data); ok {
			return Result{Filename: filename, CreatedAt: t, Source: step.source}, nil
		}
	}
	return Result{Filename: filename}, ErrNoTimestamp
}

// DetermineDetailed evaluates every source without short-circuiting.
func (r Resolver) DetermineDetailed(filename string, data []byte) DetailedResult {
	result := DetailedResult{Best: Result{Filename: filename}}

	exifTime, exifOK := r.fromMetadata(filename, data)
	if exifOK {
		result.EXIF, result.EXIFFound = exifTime, true
	}
	nameTime, nameOK := fromFilename(filename)
	if nameOK {
		result.Filename, result.FilenameFound = nameTime, true
	}

	switch {
	case exifOK:
		result.Best.CreatedAt, result.Best.Source = exifTime, SourceEXIF
	case nameOK:
		result.Best.CreatedAt, result.Best.Source = nameTime, SourceFilename
	}

	return result
}

func (r Resolver) fromMetadata(_ string, data []byte) (t time.Time, ok bool) {
	metadata := r.Metadata
	if metadata == nil {
		metadata = exifExtractor{}
	}

	defer func() {
		if recover() != nil {
			t, ok = time.Time{}, false
		}
	}()

	createdAt, found, err := metadata.CreatedAt(data)
	if err != nil || !found {
		return time.Time{}, false
	}
	return createdAt, true
}

var (
	// Screenshot 2024-01-15 at 10.30.45.png
	reDashedDots = regexp.MustCompile(`(\d{4})-(\d{2})-(\d{2}).*?(\d{1,2})\.(\d{2})\.(\d{2})`)
	// IMG_20240115_103045.jpg
	reCompact = regexp.MustCompile(`(\d{4})(\d{2})(\d{2})_(\d{2})(\d{2})(\d{2})`)
)

func fromFilename(filename string) (time.Time, bool) {
	if t, ok := fromDashedName(filename, nil); ok {
		return t, true
	}
	return fromCompactName(filename, nil)
}

func fromDashedName(filename string, _ []byte) (time.Time, bool) {
	return dateFromMatch(reDashedDots.FindStringSubmatch(filename))
}

func fromCompactName(filename string, _ []byte) (time.Time, bool) {
	return dateFromMatch(reCompact.FindStringSubmatch(filename))
}

// dateFromMatch builds a timestamp from year, month, day, hour, minute, second groups.
func dateFromMatch(m []string) (time.Time, bool) {
	if len(m) != 7 {
		return time.Time{}, false
	}
	var parts [6]int
	for i := range parts {
		n, ok := atoi(m[i+1])
		if !ok {
			return time.Time{}, false
		}
		parts[i] = n
	}
	return civil(parts[0], parts[1], parts[2], parts[3], parts[4], parts[5])
}

// civil validates the fields as a calendar date-time. time.Date normalizes overflow,
// so any field that does not round-trip is out of range.
func civil(y, mo, d, h, mi, s int) (time.Time, bool) {
	if y < 1 || y > 9999 {
		return time.Time{}, false
	}
	t := time.Date(y, time.Month(mo), d, h, mi, s, 0, time.UTC)
	if t.Year() != y || int(t.Month()) != mo || t.Day() != d ||
		t.Hour() != h || t.Minute() != mi || t.Second() != s {
		return time.Time{}, false
	}
	return t, true
}

func atoi(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}
