package models

import (
	"encoding/json"
	"fmt"
	"reflect"
)

type ContentType string

const (
	ContentTypeText      ContentType = "text"
	ContentTypePhoto     ContentType = "photo"
	ContentTypeVideo     ContentType = "video"
	ContentTypeDocument  ContentType = "document"
	ContentTypeSticker   ContentType = "sticker"
	ContentTypeVideoNote ContentType = "video_note"
	ContentTypeVoice     ContentType = "voice"
)

func (t ContentType) IsValid() bool {
	switch t {
	case ContentTypeText, ContentTypePhoto, ContentTypeVideo, ContentTypeDocument,
		ContentTypeSticker, ContentTypeVideoNote, ContentTypeVoice:
		return true
	}
	return false
}

// Segment is one captured message unit. A single item has one content type and
// at most one data id (none for text); a media group has one entry per item in
// both slices, aligned by position.
type Segment struct {
	DataIDs      []string
	ContentTypes []ContentType
	IsMediaGroup bool
	Text         string
}

func NewTextSegment(text string) Segment {
	return Segment{ContentTypes: []ContentType{ContentTypeText}, Text: text}
}

func NewMediaSegment(contentType ContentType, dataID, caption string) Segment {
	return Segment{
		DataIDs:      []string{dataID},
		ContentTypes: []ContentType{contentType},
		Text:         caption,
	}
}

func NewMediaGroupSegment(contentTypes []ContentType, dataIDs []string, caption string) Segment {
	return Segment{
		DataIDs:      append([]string(nil), dataIDs...),
		ContentTypes: append([]ContentType(nil), contentTypes...),
		IsMediaGroup: true,
		Text:         caption,
	}
}

// ContentType returns the tag of a single-item segment.
func (s Segment) ContentType() ContentType {
	if len(s.ContentTypes) == 0 {
		return ""
	}
	return s.ContentTypes[0]
}

// DataID returns the payload reference of a single-item segment.
func (s Segment) DataID() string {
	if len(s.DataIDs) == 0 {
		return ""
	}
	return s.DataIDs[0]
}

func (s Segment) Validate() error {
	if len(s.ContentTypes) == 0 {
		return fmt.Errorf("segment has no content type")
	}
	for _, t := range s.ContentTypes {
		if !t.IsValid() {
			return fmt.Errorf("unknown content type %q", t)
		}
	}
	if s.IsMediaGroup {
		if len(s.ContentTypes) != len(s.DataIDs) {
			return fmt.Errorf("media group has %d types for %d data ids", len(s.ContentTypes), len(s.DataIDs))
		}
		return nil
	}
	if len(s.ContentTypes) != 1 {
		return fmt.Errorf("single segment has %d content types", len(s.ContentTypes))
	}
	if s.ContentType() == ContentTypeText && len(s.DataIDs) != 0 {
		return fmt.Errorf("text segment carries a data id")
	}
	if s.ContentType() != ContentTypeText && s.DataID() == "" {
		return fmt.Errorf("%s segment has no data id", s.ContentType())
	}
	return nil
}

func (s Segment) Clone() Segment {
	s.DataIDs = append([]string(nil), s.DataIDs...)
	s.ContentTypes = append([]ContentType(nil), s.ContentTypes...)
	return s
}

func CloneSegments(segments []Segment) []Segment {
	if segments == nil {
		return nil
	}
	out := make([]Segment, len(segments))
	for i, s := range segments {
		out[i] = s.Clone()
	}
	return out
}

// SegmentRecord is the logical wire form shared by every storage backend:
// data_id and content_type are scalars for single items and lists for media groups.
type SegmentRecord struct {
	DataID       any     `json:"data_id" bson:"data_id"`
	IsMediaGroup bool    `json:"is_media_group" bson:"is_media_group"`
	ContentType  any     `json:"content_type" bson:"content_type"`
	Text         *string `json:"text" bson:"text"`
}

func (s Segment) Record() SegmentRecord {
	rec := SegmentRecord{IsMediaGroup: s.IsMediaGroup}
	if s.Text != "" {
		text := s.Text
		rec.Text = &text
	}
	if s.IsMediaGroup {
		ids := append([]string{}, s.DataIDs...)
		types := make([]string, len(s.ContentTypes))
		for i, t := range s.ContentTypes {
			types[i] = string(t)
		}
		rec.DataID = ids
		rec.ContentType = types
		return rec
	}
	if len(s.DataIDs) > 0 {
		rec.DataID = s.DataIDs[0]
	}
	rec.ContentType = string(s.ContentType())
	return rec
}

// Segment converts a decoded record back. Lists may arrive as []string or as
// generic slices depending on the decoder.
func (r SegmentRecord) Segment() (Segment, error) {
	seg := Segment{IsMediaGroup: r.IsMediaGroup}
	if r.Text != nil {
		seg.Text = *r.Text
	}
	ids, err := stringList(r.DataID)
	if err != nil {
		return Segment{}, fmt.Errorf("data_id: %w", err)
	}
	seg.DataIDs = ids
	types, err := stringList(r.ContentType)
	if err != nil {
		return Segment{}, fmt.Errorf("content_type: %w", err)
	}
	for _, t := range types {
		seg.ContentTypes = append(seg.ContentTypes, ContentType(t))
	}
	return seg, nil
}

func stringList(v any) ([]string, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case string:
		return []string{val}, nil
	case []string:
		return append([]string(nil), val...), nil
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("unexpected element %T", item)
			}
			out = append(out, s)
		}
		return out, nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		return nil, fmt.Errorf("unexpected value %T", v)
	}
	out := make([]string, 0, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		s, ok := rv.Index(i).Interface().(string)
		if !ok {
			return nil, fmt.Errorf("unexpected element %T", rv.Index(i).Interface())
		}
		out = append(out, s)
	}
	return out, nil
}

func (s Segment) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Record())
}

func (s *Segment) UnmarshalJSON(data []byte) error {
	var rec SegmentRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return err
	}
	seg, err := rec.Segment()
	if err != nil {
		return err
	}
	*s = seg
	return nil
}
