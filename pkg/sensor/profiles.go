package sensor

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
)

var ErrUnknownProfile = errors.New("unknown sensor profile")

const (
	ProfileBasic = "basic"
	ProfileEC    = "ec"
)

// Output format: Temp: 25.0C | Water: 50% | Sound: 45% | Light: 123 lux
// Any field may be reported as NA when its sensor is disconnected.
func basicProfile() Profile {
	return Profile{
		Name:   ProfileBasic,
		Policy: PolicyAnyPresent,
		Fields: []FieldSpec{
			{
				Field:   WaterTemp,
				Param:   "field1",
				Label:   "Temp",
				Unit:    "°C",
				Pattern: regexp.MustCompile(`Temp: ([\d.]+)C`),
				NAToken: "Temp: NA",
			},
			{
				Field:   WaterLevel,
				Param:   "field2",
				Label:   "Water",
				Unit:    "%",
				Integer: true,
				Pattern: regexp.MustCompile(`Water: (\d+)%`),
				NAToken: "Water: NA",
			},
			{
				Field:   Light,
				Param:   "field3",
				Label:   "Light",
				Unit:    " lux",
				Integer: true,
				Pattern: regexp.MustCompile(`Light: (\d+) lux`),
				NAToken: "Light: NA",
			},
			{
				Field:   Sound,
				Param:   "field4",
				Label:   "Sound",
				Unit:    "%",
				Integer: true,
				Pattern: regexp.MustCompile(`Sound: (\d+)%`),
				NAToken: "Sound: NA",
			},
		},
	}
}

// Output format: Temp: 25.0C | EC: 1.25 uS/cm | Water: 50% | Sound: 45.2 dB | Light: 123 lux
// The conductivity firmware never emits NA, a missing sensor drops the field from the line.
func ecProfile() Profile {
	return Profile{
		Name:   ProfileEC,
		Policy: PolicyAllPresent,
		Fields: []FieldSpec{
			{
				Field:   WaterTemp,
				Param:   "field1",
				Label:   "Temp",
				Unit:    "°C",
				Pattern: regexp.MustCompile(`Temp: ([\d.]+)C`),
			},
			{
				Field:   EC,
				Param:   "field2",
				Label:   "EC",
				Unit:    " uS/cm",
				Pattern: regexp.MustCompile(`EC: ([\d.]+) uS/cm`),
			},
			{
				Field:   WaterLevel,
				Param:   "field3",
				Label:   "Water",
				Unit:    "%",
				Integer: true,
				Pattern: regexp.MustCompile(`Water: (\d+)%`),
			},
			{
				Field:   Sound,
				Param:   "field4",
				Label:   "Sound",
				Unit:    " dB",
				Pattern: regexp.MustCompile(`Sound: ([\d.]+) ?dB`),
			},
			{
				Field:   Light,
				Param:   "field5",
				Label:   "Light",
				Unit:    " lux",
				Integer: true,
				Pattern: regexp.MustCompile(`Light: (\d+) lux`),
			},
		},
	}
}

var profiles = map[string]func() Profile{
	ProfileBasic: basicProfile,
	ProfileEC:    ecProfile,
}

// Look up a profile by its configuration name.
func GetProfile(name string) (Profile, error) {
	build, exists := profiles[name]
	if !exists {
		return Profile{}, fmt.Errorf("%w: %q", ErrUnknownProfile, name)
	}
	return build(), nil
}

func ProfileNames() []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
