package catalog

import (
	"bytes"
	"errors"
	"fmt"

	"songrec/internal/models"

	"github.com/goccy/go-json"
)

// Shape is the layout of a songs artifact.
type Shape int

const (
	ShapeUnknown Shape = iota
	// ShapePaired is [records, matrix] or {"songs": records, "features": matrix}.
	ShapePaired
	// ShapeRecords is [{"song", "tags", "features"}, ...].
	ShapeRecords
	// ShapeTable is column oriented: {"song": [...], "tags": [...], "features": [[...]]}.
	ShapeTable
)

func (s Shape) String() string {
	switch s {
	case ShapePaired:
		return "paired"
	case ShapeRecords:
		return "records"
	case ShapeTable:
		return "table"
	}
	return "unknown"
}

var errUnknownShape = errors.New("unrecognised songs layout")

// Table is a decoded songs artifact: Songs[i] is described by Features[i].
type Table struct {
	Songs    []models.Song
	Features [][]float32
}

type record struct {
	Song     string    `json:"song"`
	Tags     tagText   `json:"tags"`
	Features []float32 `json:"features"`
}

type columns struct {
	Song     []string    `json:"song"`
	Tags     []tagText   `json:"tags"`
	Features [][]float32 `json:"features"`
}

// tagText is a tags cell. Exports carry numbers or nulls where a row had no tags; any
// value that is not a JSON string reads as "".
type tagText string

func (t *tagText) UnmarshalJSON(b []byte) error {
	if firstByte(b) != '"' {
		*t = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*t = tagText(s)
	return nil
}

// DetectShape inspects the top level of data without decoding the rows.
func DetectShape(data []byte) (Shape, error) {
	switch firstByte(data) {
	case '[':
		var elems []json.RawMessage
		if err := json.Unmarshal(data, &elems); err != nil {
			return ShapeUnknown, err
		}
		if len(elems) == 2 && firstByte(elems[1]) == '[' && (firstByte(elems[0]) == '[' || firstByte(elems[0]) == '{') {
			// [records, matrix]; records may themselves be columns.
			if firstByte(elems[0]) == '[' || hasKeys(elems[0], "song") {
				return ShapePaired, nil
			}
		}
		if len(elems) > 0 && firstByte(elems[0]) == '{' {
			return ShapeRecords, nil
		}
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(data, &obj); err != nil {
			return ShapeUnknown, err
		}
		if _, ok := obj["features"]; ok {
			if _, ok := obj["songs"]; ok {
				return ShapePaired, nil
			}
			if _, ok := obj["song"]; ok {
				return ShapeTable, nil
			}
		}
	}
	return ShapeUnknown, errUnknownShape
}

// Decode dispatches data to the decoder for its shape.
func Decode(data []byte) (*Table, Shape, error) {
	shape, err := DetectShape(data)
	if err != nil {
		return nil, shape, err
	}

	var t *Table
	switch shape {
	case ShapePaired:
		t, err = decodePaired(data)
	case ShapeRecords:
		t, err = decodeRecords(data)
	case ShapeTable:
		t, err = decodeTable(data)
	}
	if err != nil {
		return nil, shape, err
	}
	if len(t.Songs) == 0 {
		return nil, shape, errors.New("no songs")
	}
	if len(t.Songs) != len(t.Features) {
		return nil, shape, fmt.Errorf("%d songs but %d feature rows", len(t.Songs), len(t.Features))
	}
	return t, shape, nil
}

func decodePaired(data []byte) (*Table, error) {
	var songsRaw, featRaw json.RawMessage
	if firstByte(data) == '[' {
		var pair []json.RawMessage
		if err := json.Unmarshal(data, &pair); err != nil {
			return nil, err
		}
		songsRaw, featRaw = pair[0], pair[1]
	} else {
		var obj struct {
			Songs    json.RawMessage `json:"songs"`
			Features json.RawMessage `json:"features"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return nil, err
		}
		songsRaw, featRaw = obj.Songs, obj.Features
	}

	var t Table
	if err := json.Unmarshal(featRaw, &t.Features); err != nil {
		return nil, fmt.Errorf("features: %w", err)
	}

	if firstByte(songsRaw) == '{' {
		var cols columns
		if err := json.Unmarshal(songsRaw, &cols); err != nil {
			return nil, fmt.Errorf("songs: %w", err)
		}
		songs, err := zipColumns(cols.Song, cols.Tags)
		if err != nil {
			return nil, err
		}
		t.Songs = songs
		return &t, nil
	}

	var recs []record
	if err := json.Unmarshal(songsRaw, &recs); err != nil {
		return nil, fmt.Errorf("songs: %w", err)
	}
	t.Songs = make([]models.Song, len(recs))
	for i, r := range recs {
		t.Songs[i] = models.Song{Name: r.Song, Tags: string(r.Tags)}
	}
	return &t, nil
}

func decodeRecords(data []byte) (*Table, error) {
	var recs []record
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, err
	}
	t := Table{
		Songs:    make([]models.Song, len(recs)),
		Features: make([][]float32, len(recs)),
	}
	for i, r := range recs {
		if r.Features == nil {
			return nil, fmt.Errorf("record %d (%q) has no features", i, r.Song)
		}
		t.Songs[i] = models.Song{Name: r.Song, Tags: string(r.Tags)}
		t.Features[i] = r.Features
	}
	return &t, nil
}

func decodeTable(data []byte) (*Table, error) {
	var cols columns
	if err := json.Unmarshal(data, &cols); err != nil {
		return nil, err
	}
	songs, err := zipColumns(cols.Song, cols.Tags)
	if err != nil {
		return nil, err
	}
	return &Table{Songs: songs, Features: cols.Features}, nil
}

// zipColumns pairs the song and tags columns. A missing tags column means no tags.
func zipColumns(names []string, tags []tagText) ([]models.Song, error) {
	if tags != nil && len(tags) != len(names) {
		return nil, fmt.Errorf("%d song names but %d tags", len(names), len(tags))
	}
	songs := make([]models.Song, len(names))
	for i, n := range names {
		songs[i].Name = n
		if tags != nil {
			songs[i].Tags = string(tags[i])
		}
	}
	return songs, nil
}

func hasKeys(obj json.RawMessage, keys ...string) bool {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(obj, &m); err != nil {
		return false
	}
	for _, k := range keys {
		if _, ok := m[k]; !ok {
			return false
		}
	}
	return true
}

func firstByte(b []byte) byte {
	b = bytes.TrimLeft(b, " \t\r\n")
	if len(b) == 0 {
		return 0
	}
	return b[0]
}
