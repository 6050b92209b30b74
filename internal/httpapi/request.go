package httpapi

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/Skufu/cardioscreen/internal/patient"
	"github.com/Skufu/cardioscreen/internal/presentation"
	"github.com/Skufu/cardioscreen/internal/screening"
)

// screeningRequest is the web form body. Pointers let a submitted 0 pass the
// required check while a missing field fails it.
type screeningRequest struct {
	Age               *int     `json:"age" binding:"required,min=18,max=100"`
	Sex               *int     `json:"sex" binding:"required,oneof=0 1"`
	RestingBP         *int     `json:"trestbps" binding:"required,min=90,max=200"`
	Cholesterol       *int     `json:"chol" binding:"required,min=100,max=600"`
	MaxHeartRate      *int     `json:"thalach" binding:"required,min=60,max=220"`
	RestingHeartRate  *int     `json:"resting_hr" binding:"required,min=40,max=120"`
	FastingBloodSugar *int     `json:"fbs" binding:"required,oneof=0 1"`
	ChestPain         *int     `json:"cp" binding:"required,oneof=0 1 2 3"`
	ExerciseAngina    *int     `json:"exang" binding:"required,oneof=0 1"`
	RestingECG        *int     `json:"restecg" binding:"required,oneof=0 1 2"`
	Oldpeak           *float64 `json:"oldpeak" binding:"required,min=0,max=10"`
	Slope             *int     `json:"slope" binding:"required,oneof=0 1 2"`
	MajorVessels      *int     `json:"ca" binding:"required,oneof=0 1 2 3 4"`
	Thal              *int     `json:"thal" binding:"required,oneof=0 1 2"`
}

// record is only called after binding succeeded, so every pointer is set.
func (r screeningRequest) record() patient.Record {
	return patient.Record{
		Age:               *r.Age,
		Sex:               *r.Sex,
		RestingBP:         *r.RestingBP,
		Cholesterol:       *r.Cholesterol,
		MaxHeartRate:      *r.MaxHeartRate,
		RestingHeartRate:  *r.RestingHeartRate,
		FastingBloodSugar: *r.FastingBloodSugar,
		ChestPain:         *r.ChestPain,
		ExerciseAngina:    *r.ExerciseAngina,
		RestingECG:        *r.RestingECG,
		Oldpeak:           *r.Oldpeak,
		Slope:             *r.Slope,
		MajorVessels:      *r.MajorVessels,
		Thal:              *r.Thal,
	}
}

type screeningResponse struct {
	presentation.Payload
	HeartRateReserve int        `json:"heartRateReserve"`
	Variant          string     `json:"variant"`
	Threshold        float64    `json:"threshold"`
	Debug            *debugView `json:"debug,omitempty"`
}

// debugView shows the raw record and the vector handed to the classifier.
type debugView struct {
	Raw    map[string]float64 `json:"raw"`
	Vector vectorView         `json:"vector"`
}

type vectorView struct {
	Columns []string  `json:"columns"`
	Values  []float64 `json:"values"`
}

func newDebugView(r screening.Result) *debugView {
	raw := make(map[string]float64, len(r.Raw))
	for _, f := range r.Raw {
		raw[f.Name] = f.Value
	}
	return &debugView{
		Raw:    raw,
		Vector: vectorView{Columns: r.Vector.Columns.Names(), Values: r.Vector.Values},
	}
}

var tagNames sync.Once

// registerJSONFieldNames makes validation errors report json field names.
func registerJSONFieldNames() {
	tagNames.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
}

func validationFields(err error) (map[string]string, bool) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil, false
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = describe(fe)
	}
	return fields, true
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return "must be at least " + fe.Param()
	case "max":
		return "must be at most " + fe.Param()
	case "oneof":
		return "must be one of " + fe.Param()
	default:
		return "failed " + fe.Tag()
	}
}
