package sensor

import "regexp"

type Field string

const (
	WaterTemp  Field = "water_temp"
	EC         Field = "ec"
	WaterLevel Field = "water_level"
	Sound      Field = "sound"
	Light      Field = "light"
)

// Value is a single extracted reading.
// Valid is false when the device explicitly reported the field as not available.
type Value struct {
	Number float64
	Valid  bool
}

// Record maps each field found on a line to its value.
// Fields that were not mentioned at all are absent from the map.
type Record map[Field]Value

type Policy string

const (
	// Upload when at least one field is present, nulls included.
	PolicyAnyPresent Policy = "any"
	// Upload only when every field of the profile carries a number.
	PolicyAllPresent Policy = "all"
)

type FieldSpec struct {
	Field Field
	// ThingSpeak parameter slot, field1 to field8
	Param   string
	Label   string
	Unit    string
	Integer bool
	Pattern *regexp.Regexp
	// Empty when the firmware has no "not available" marker for this field
	NAToken string
}

// Profile describes one firmware output format and how its readings are uploaded.
type Profile struct {
	Name   string
	Fields []FieldSpec
	Policy Policy
}
