package measure

import (
	"fmt"
	"strconv"
	"strings"
)

// Field names a canonical measurement attribute.
type Field string

const (
	FieldTimestamp  Field = "timestamp"
	FieldRSRP       Field = "rsrp"
	FieldRSRQ       Field = "rsrq"
	FieldSINR       Field = "sinr"
	FieldTechnology Field = "technology"
	FieldLocation   Field = "location"
	FieldThroughput Field = "throughput"
	FieldLatitude   Field = "latitude"
	FieldLongitude  Field = "longitude"

	// Derived, not mappable from source columns.
	FieldHour  Field = "hour"
	FieldDay   Field = "day"
	FieldDate  Field = "date"
	FieldClass Field = "signalClass"
)

// MappableFields are the fields a source column can be mapped to, in canonical order.
var MappableFields = []Field{
	FieldTimestamp, FieldRSRP, FieldRSRQ, FieldSINR, FieldTechnology,
	FieldLocation, FieldThroughput, FieldLatitude, FieldLongitude,
}

// ParseField resolves a field name case-insensitively, accepting a few aliases.
func ParseField(s string) (Field, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "timestamp", "time":
		return FieldTimestamp, nil
	case "rsrp":
		return FieldRSRP, nil
	case "rsrq":
		return FieldRSRQ, nil
	case "sinr", "snr":
		return FieldSINR, nil
	case "technology", "tech":
		return FieldTechnology, nil
	case "location", "sector":
		return FieldLocation, nil
	case "throughput":
		return FieldThroughput, nil
	case "latitude", "lat":
		return FieldLatitude, nil
	case "longitude", "lon":
		return FieldLongitude, nil
	case "hour":
		return FieldHour, nil
	case "day":
		return FieldDay, nil
	case "date":
		return FieldDate, nil
	case "signalclass", "class":
		return FieldClass, nil
	}
	return "", fmt.Errorf("unknown field: %q", s)
}

// Value returns the numeric value of f for r. ok is false for non-numeric fields.
func (f Field) Value(r Record) (float64, bool) {
	switch f {
	case FieldRSRP:
		return r.RSRP, true
	case FieldRSRQ:
		return r.RSRQ, true
	case FieldSINR:
		return r.SINR, true
	case FieldThroughput:
		return r.Throughput, true
	case FieldLatitude:
		return r.Lat, true
	case FieldLongitude:
		return r.Lon, true
	case FieldHour:
		return float64(r.Hour), true
	case FieldDay:
		return float64(r.Day), true
	case FieldClass:
		return float64(r.SignalClass), true
	}
	return 0, false
}

// Label returns the category label of f for r, used for group-bys.
func (f Field) Label(r Record) string {
	switch f {
	case FieldTechnology:
		return string(r.Technology)
	case FieldLocation:
		return r.Location
	case FieldDate:
		return r.Date
	case FieldHour:
		return strconv.Itoa(r.Hour)
	case FieldDay:
		return strconv.Itoa(r.Day)
	case FieldClass:
		return strconv.Itoa(r.SignalClass)
	case FieldTimestamp:
		return r.Timestamp.Format("2006-01-02T15:04:05Z07:00")
	}
	if v, ok := f.Value(r); ok {
		return strconv.FormatFloat(v, 'f', 1, 64)
	}
	return ""
}
