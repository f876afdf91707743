package sensor

import (
	"encoding/json"
	"math"
	"net/url"
	"strconv"
	"strings"
)

// Extract reads every field of the profile from a single line.
// Each field is matched on its own, so a line may yield any subset of the
// profile, including nothing at all.
func (p Profile) Extract(line string) Record {
	record := Record{}

	for _, spec := range p.Fields {
		if match := spec.Pattern.FindStringSubmatch(line); match != nil {
			if value, ok := spec.parse(match[1]); ok {
				record[spec.Field] = Value{Number: value, Valid: true}
				continue
			}
		}

		if spec.NAToken != "" && strings.Contains(line, spec.NAToken) {
			record[spec.Field] = Value{}
		}
	}

	return record
}

func (s FieldSpec) parse(raw string) (float64, bool) {
	if s.Integer {
		value, err := strconv.Atoi(raw)
		if err != nil {
			return 0, false
		}
		return float64(value), true
	}

	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return value, true
}

func (s FieldSpec) format(value float64) string {
	if s.Integer {
		return strconv.FormatFloat(value, 'f', 0, 64)
	}
	// Keep one decimal on whole numbers so 25.0 is not sent as 25
	if value == math.Trunc(value) {
		return strconv.FormatFloat(value, 'f', 1, 64)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}

// Eligible reports whether the upload policy allows sending this record.
func (p Profile) Eligible(record Record) bool {
	switch p.Policy {
	case PolicyAllPresent:
		return len(p.Missing(record)) == 0
	default:
		return len(record) > 0
	}
}

// Missing lists the profile fields that carry no number in the record.
func (p Profile) Missing(record Record) []Field {
	var missing []Field
	for _, spec := range p.Fields {
		if value, exists := record[spec.Field]; !exists || !value.Valid {
			missing = append(missing, spec.Field)
		}
	}
	return missing
}

// Payload maps the record onto ThingSpeak field parameters.
// Null and absent fields are left out.
func (p Profile) Payload(record Record) url.Values {
	params := url.Values{}
	for _, spec := range p.Fields {
		if value, exists := record[spec.Field]; exists && value.Valid {
			params.Set(spec.Param, spec.format(value.Number))
		}
	}
	return params
}

// Summary renders the record for log output, e.g. Temp=25.0°C | Water=NA
func (p Profile) Summary(record Record) string {
	parts := make([]string, 0, len(p.Fields))
	for _, spec := range p.Fields {
		if value, exists := record[spec.Field]; exists && value.Valid {
			parts = append(parts, spec.Label+"="+spec.format(value.Number)+spec.Unit)
		} else {
			parts = append(parts, spec.Label+"=NA")
		}
	}
	return strings.Join(parts, " | ")
}

func (r Record) Empty() bool {
	return len(r) == 0
}

func (r Record) Clone() Record {
	clone := make(Record, len(r))
	for field, value := range r {
		clone[field] = value
	}
	return clone
}

// Null values are encoded as JSON null, absent fields are not encoded.
func (r Record) MarshalJSON() ([]byte, error) {
	out := make(map[Field]*float64, len(r))
	for field, value := range r {
		if value.Valid {
			number := value.Number
			out[field] = &number
		} else {
			out[field] = nil
		}
	}
	return json.Marshal(out)
}

func (r *Record) UnmarshalJSON(data []byte) error {
	var in map[Field]*float64
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	record := make(Record, len(in))
	for field, number := range in {
		if number == nil {
			record[field] = Value{}
		} else {
			record[field] = Value{Number: *number, Valid: true}
		}
	}
	*r = record
	return nil
}
