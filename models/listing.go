package models

import (
	"encoding/json"
	"maps"
	"strconv"
	"strings"
)

// Field names used by the listing service.
const (
	FieldID            = "ID"
	FieldStatus        = "Status"
	FieldIsRental      = "IsRental"
	FieldImageURL      = "ImageURL"
	FieldLargePhotoURL = "LargePhotoURL"
	FieldPhotoURL      = "PhotoUrl"
	FieldPhotos        = "Photos"
	FieldPhotoURI      = "Uri"
	FieldAddress       = "Address"
	FieldCity          = "City"
	FieldPrice         = "Price"
)

var bannerFields = []string{"Banner", "BannerText", "Label"}

// Listing is a listing record exactly as the service returned it. Only the
// fields the pipeline needs are read; everything else passes through to the
// output untouched.
type Listing map[string]any

// Clone returns a shallow copy.
func (l Listing) Clone() Listing {
	return maps.Clone(l)
}

func (l Listing) String(field string) string {
	switch v := l[field].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

func (l Listing) Status() string {
	return strings.TrimSpace(l.String(FieldStatus))
}

func (l Listing) IsRental() bool {
	switch v := l[FieldIsRental].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(strings.TrimSpace(v))
		return b
	case json.Number:
		return v.String() == "1"
	default:
		return false
	}
}

// ID returns the identifying number as text, or "" when the record has none.
func (l Listing) ID() string {
	switch v := l[FieldID].(type) {
	case json.Number:
		return v.String()
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return ""
	}
}

func (l Listing) Banner() string {
	for _, f := range bannerFields {
		if s := strings.TrimSpace(l.String(f)); s != "" {
			return s
		}
	}
	return ""
}

// FirstPhotoURI returns Photos[0].Uri, or "" when there is no photo list.
func (l Listing) FirstPhotoURI() string {
	photos, ok := l[FieldPhotos].([]any)
	if !ok || len(photos) == 0 {
		return ""
	}
	first, ok := photos[0].(map[string]any)
	if !ok {
		return ""
	}
	s, _ := first[FieldPhotoURI].(string)
	return s
}

// Feed is the concatenated pages of one feed category.
type Feed struct {
	Name     string    `json:"name"`
	RT       string    `json:"rt"`
	Optional bool      `json:"optional"`
	Failed   bool      `json:"failed,omitempty"`
	Items    []Listing `json:"items"`
}
