package patient

import (
	"fmt"
	"strings"
)

// Model field names, in the order the raw record is assembled.
const (
	FieldAge              = "age"
	FieldSex              = "sex"
	FieldChestPain        = "cp"
	FieldRestingBP        = "trestbps"
	FieldCholesterol      = "chol"
	FieldFastingSugar     = "fbs"
	FieldRestingECG       = "restecg"
	FieldMaxHeartRate     = "thalach"
	FieldExerciseAngina   = "exang"
	FieldOldpeak          = "oldpeak"
	FieldSlope            = "slope"
	FieldMajorVessels     = "ca"
	FieldThal             = "thal"
	FieldHeartRateReserve = "heart_rate_reserve"
)

// FieldOrder is the fixed order of the raw record handed to a transform.
var FieldOrder = []string{
	FieldAge,
	FieldSex,
	FieldChestPain,
	FieldRestingBP,
	FieldCholesterol,
	FieldFastingSugar,
	FieldRestingECG,
	FieldMaxHeartRate,
	FieldExerciseAngina,
	FieldOldpeak,
	FieldSlope,
	FieldMajorVessels,
	FieldThal,
	FieldHeartRateReserve,
}

var categorical = map[string]bool{
	FieldChestPain:    true,
	FieldRestingECG:   true,
	FieldSlope:        true,
	FieldMajorVessels: true,
	FieldThal:         true,
}

// Categorical reports whether the named model field holds a category level.
func Categorical(name string) bool {
	return categorical[name]
}

// Known reports whether name is a model field.
func Known(name string) bool {
	for _, f := range FieldOrder {
		if f == name {
			return true
		}
	}
	return false
}

// Record is one form submission. It is built once per request and never mutated.
type Record struct {
	Age               int     `json:"age"`
	Sex               int     `json:"sex"`
	RestingBP         int     `json:"trestbps"`
	Cholesterol       int     `json:"chol"`
	MaxHeartRate      int     `json:"thalach"`
	RestingHeartRate  int     `json:"resting_hr"`
	FastingBloodSugar int     `json:"fbs"`
	ChestPain         int     `json:"cp"`
	ExerciseAngina    int     `json:"exang"`
	RestingECG        int     `json:"restecg"`
	Oldpeak           float64 `json:"oldpeak"`
	Slope             int     `json:"slope"`
	MajorVessels      int     `json:"ca"`
	Thal              int     `json:"thal"`
}

// HeartRateReserve is max heart rate minus resting heart rate. The value is
// passed through as is, including when it is negative.
func (r Record) HeartRateReserve() int {
	return r.MaxHeartRate - r.RestingHeartRate
}

// Field is a named model input value.
type Field struct {
	Name  string
	Value float64
}

// Fields returns the model fields in FieldOrder, skipping any name in exclude.
func (r Record) Fields(exclude []string) []Field {
	skip := make(map[string]bool, len(exclude))
	for _, e := range exclude {
		skip[e] = true
	}

	out := make([]Field, 0, len(FieldOrder))
	for _, name := range FieldOrder {
		if skip[name] {
			continue
		}
		out = append(out, Field{Name: name, Value: r.value(name)})
	}
	return out
}

func (r Record) value(name string) float64 {
	switch name {
	case FieldAge:
		return float64(r.Age)
	case FieldSex:
		return float64(r.Sex)
	case FieldChestPain:
		return float64(r.ChestPain)
	case FieldRestingBP:
		return float64(r.RestingBP)
	case FieldCholesterol:
		return float64(r.Cholesterol)
	case FieldFastingSugar:
		return float64(r.FastingBloodSugar)
	case FieldRestingECG:
		return float64(r.RestingECG)
	case FieldMaxHeartRate:
		return float64(r.MaxHeartRate)
	case FieldExerciseAngina:
		return float64(r.ExerciseAngina)
	case FieldOldpeak:
		return r.Oldpeak
	case FieldSlope:
		return float64(r.Slope)
	case FieldMajorVessels:
		return float64(r.MajorVessels)
	case FieldThal:
		return float64(r.Thal)
	case FieldHeartRateReserve:
		return float64(r.HeartRateReserve())
	}
	return 0
}

type intRange struct {
	name     string
	val      int
	min, max int
}

// Validate checks the declared input domains. Form layers call it before
// handing a record to the screening core; the core itself trusts its input.
func (r Record) Validate() error {
	checks := []intRange{
		{"age", r.Age, 18, 100},
		{"sex", r.Sex, 0, 1},
		{"trestbps", r.RestingBP, 90, 200},
		{"chol", r.Cholesterol, 100, 600},
		{"thalach", r.MaxHeartRate, 60, 220},
		{"resting_hr", r.RestingHeartRate, 40, 120},
		{"fbs", r.FastingBloodSugar, 0, 1},
		{"cp", r.ChestPain, 0, 3},
		{"exang", r.ExerciseAngina, 0, 1},
		{"restecg", r.RestingECG, 0, 2},
		{"slope", r.Slope, 0, 2},
		{"ca", r.MajorVessels, 0, 4},
		{"thal", r.Thal, 0, 2},
	}

	var problems []string
	for _, c := range checks {
		if c.val < c.min || c.val > c.max {
			problems = append(problems, fmt.Sprintf("%s must be between %d and %d, got %d", c.name, c.min, c.max, c.val))
		}
	}
	if r.Oldpeak < 0 || r.Oldpeak > 10 {
		problems = append(problems, fmt.Sprintf("oldpeak must be between 0.0 and 10.0, got %.1f", r.Oldpeak))
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid record: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Default returns the form's initial values.
func Default() Record {
	return Record{
		Age:              55,
		Sex:              1,
		RestingBP:        130,
		Cholesterol:      240,
		MaxHeartRate:     150,
		RestingHeartRate: 70,
		Oldpeak:          1.0,
	}
}
