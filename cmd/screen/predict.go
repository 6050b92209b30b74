package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Skufu/cardioscreen/internal/features"
	"github.com/Skufu/cardioscreen/internal/patient"
	"github.com/Skufu/cardioscreen/internal/presentation"
	"github.com/Skufu/cardioscreen/internal/screening"
)

// recordFlags are the per-field flags of the predict command, named after the
// record's json keys.
var recordFlags = []string{
	"age", "sex", "trestbps", "chol", "thalach", "resting_hr", "fbs",
	"cp", "exang", "restecg", "oldpeak", "slope", "ca", "thal",
}

func newPredictCmd() *cobra.Command {
	rec := patient.Default()

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Screen one patient record",
		Long: `Screen one patient record and print the verdict.

Fields come from flags (defaulting to the form's initial values) or from a
JSON file given with --input. The two cannot be mixed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := resolveRecord(cmd, rec)
			if err != nil {
				return err
			}
			if err := r.Validate(); err != nil {
				return err
			}

			app, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			result, err := app.Service.Screen(r)
			if err != nil {
				var terr *features.TransformError
				if errors.As(err, &terr) {
					return fmt.Errorf("error processing the data: %w", terr)
				}
				return err
			}

			format, _ := cmd.Flags().GetString("output")
			debug, _ := cmd.Flags().GetBool("debug")
			return render(cmd.OutOrStdout(), format, result, debug)
		},
	}

	f := cmd.Flags()
	f.IntVar(&rec.Age, "age", rec.Age, "Age in years (18-100)")
	f.IntVar(&rec.Sex, "sex", rec.Sex, "Sex: 0 female, 1 male")
	f.IntVar(&rec.RestingBP, "trestbps", rec.RestingBP, "Resting blood pressure in mmHg (90-200)")
	f.IntVar(&rec.Cholesterol, "chol", rec.Cholesterol, "Serum cholesterol in mg/dl (100-600)")
	f.IntVar(&rec.MaxHeartRate, "thalach", rec.MaxHeartRate, "Maximum heart rate achieved (60-220)")
	f.IntVar(&rec.RestingHeartRate, "resting_hr", rec.RestingHeartRate, "Resting heart rate (40-120)")
	f.IntVar(&rec.FastingBloodSugar, "fbs", rec.FastingBloodSugar, "Fasting blood sugar > 120 mg/dl: 0 or 1")
	f.IntVar(&rec.ChestPain, "cp", rec.ChestPain, "Chest pain type (0-3)")
	f.IntVar(&rec.ExerciseAngina, "exang", rec.ExerciseAngina, "Exercise induced angina: 0 or 1")
	f.IntVar(&rec.RestingECG, "restecg", rec.RestingECG, "Resting ECG result (0-2)")
	f.Float64Var(&rec.Oldpeak, "oldpeak", rec.Oldpeak, "ST depression induced by exercise (0.0-10.0)")
	f.IntVar(&rec.Slope, "slope", rec.Slope, "Slope of the peak exercise ST segment (0-2)")
	f.IntVar(&rec.MajorVessels, "ca", rec.MajorVessels, "Major vessels colored by fluoroscopy (0-4)")
	f.IntVar(&rec.Thal, "thal", rec.Thal, "Thalassemia (0-2)")

	f.String("input", "", "Read the record from a JSON file (- for stdin)")
	f.StringP("output", "o", "text", "Output format: text or json")
	f.Bool("debug", false, "Include the aligned feature vector")
	return cmd
}

// resolveRecord returns the flag-built record, or the one decoded from
// --input when that flag is set.
func resolveRecord(cmd *cobra.Command, fromFlags patient.Record) (patient.Record, error) {
	path, _ := cmd.Flags().GetString("input")
	if path == "" {
		return fromFlags, nil
	}

	var changed []string
	for _, name := range recordFlags {
		if cmd.Flags().Changed(name) {
			changed = append(changed, "--"+name)
		}
	}
	if len(changed) > 0 {
		return patient.Record{}, fmt.Errorf("--input cannot be combined with %s", strings.Join(changed, ", "))
	}

	var in io.Reader = cmd.InOrStdin()
	if path != "-" {
		file, err := os.Open(path)
		if err != nil {
			return patient.Record{}, err
		}
		defer file.Close()
		in = file
	}
	return decodeRecord(in)
}

// decodeRecord reads a JSON record. Omitted fields keep the form defaults and
// unknown keys are rejected.
func decodeRecord(r io.Reader) (patient.Record, error) {
	rec := patient.Default()
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&rec); err != nil {
		return patient.Record{}, fmt.Errorf("decode record: %w", err)
	}
	return rec, nil
}

type predictOutput struct {
	presentation.Payload
	HeartRateReserve int                `json:"heartRateReserve"`
	Vector           map[string]float64 `json:"vector,omitempty"`
}

func render(w io.Writer, format string, r screening.Result, debug bool) error {
	p := r.Payload
	switch format {
	case "json":
		out := predictOutput{Payload: p, HeartRateReserve: r.HeartRateReserve}
		if debug {
			out.Vector = r.Vector.Map()
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	case "text":
		fmt.Fprintf(w, "%s: %s\n", p.Verdict, p.Headline)
		fmt.Fprintf(w, "Probability: %s\n", p.ProbabilityPercent)
		fmt.Fprintf(w, "Heart rate reserve: %d\n", r.HeartRateReserve)
		fmt.Fprintln(w, p.Message)
		fmt.Fprintln(w, p.Recommendation)
		if debug {
			fmt.Fprintln(w)
			names := r.Vector.Columns.Names()
			for i, name := range names {
				fmt.Fprintf(w, "  %-24s %g\n", name, r.Vector.Values[i])
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown output format %q (want text or json)", format)
	}
}
