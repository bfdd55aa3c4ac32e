// Package wizard collects the answers for a new .crediblend.yaml.
package wizard

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/template"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"github.com/crediblend/crediblend/internal/blend"
	"github.com/crediblend/crediblend/internal/metrics"
	"github.com/crediblend/crediblend/internal/projectconfig"
	"github.com/crediblend/crediblend/internal/timeslice"
)

// Answers holds all fields collected during the init wizard.
type Answers struct {
	OOFDir    string
	SubDir    string
	Out       string
	Metric    string
	Methods   []string
	TimeCol   string
	Frequency string
	Seed      int64
}

// DefaultAnswers returns the answers used by non-interactive init.
func DefaultAnswers() *Answers {
	cfg := projectconfig.New()
	return &Answers{
		OOFDir:    "oof/",
		SubDir:    "sub/",
		Out:       cfg.Paths.Out,
		Metric:    cfg.Metric,
		Methods:   cfg.Methods,
		Frequency: cfg.TimeSlice.Frequency,
		Seed:      cfg.Search.Seed,
	}
}

const configTemplate = `# crediblend project configuration
metric: {{ .Metric }}
methods:
{{- range .Methods }}
  - {{ . }}
{{- end }}

paths:
  oof_dir: {{ quote .OOFDir }}
{{- if .SubDir }}
  sub_dir: {{ quote .SubDir }}
{{- end }}
  out: {{ quote .Out }}
{{ if .TimeCol }}
columns:
  time: {{ quote .TimeCol }}
{{ end }}
search:
  seed: {{ .Seed }}

timeslice:
  frequency: {{ .Frequency }}
`

// Run asks for the project settings with a huh form, starting from
// defaults. Non-terminal input switches the form to accessible mode.
func Run(in io.Reader, out io.Writer, defaults *Answers) (*Answers, error) {
	a := *defaults
	a.Methods = append([]string(nil), defaults.Methods...)

	methodOptions := make([]huh.Option[string], len(blend.DefaultKinds))
	for i, k := range blend.DefaultKinds {
		methodOptions[i] = huh.NewOption(string(k), string(k))
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("OOF directory").
				Description("Directory holding the oof_<model>.csv files").
				Value(&a.OOFDir).
				Validate(required("OOF directory")),
			huh.NewInput().
				Title("Submission directory").
				Description("Directory holding the sub_<model>.csv files; leave empty to skip").
				Value(&a.SubDir),
			huh.NewInput().
				Title("Output directory").
				Value(&a.Out).
				Validate(required("output directory")),
			huh.NewSelect[string]().
				Title("Metric").
				Options(
					huh.NewOption("ROC AUC", string(metrics.AUC)),
					huh.NewOption("mean squared error", string(metrics.MSE)),
					huh.NewOption("mean absolute error", string(metrics.MAE)),
				).
				Value(&a.Metric),
			huh.NewMultiSelect[string]().
				Title("Blend methods").
				Options(methodOptions...).
				Value(&a.Methods).
				Validate(func(s []string) error {
					if len(s) == 0 {
						return fmt.Errorf("select at least one method")
					}
					return nil
				}),
			huh.NewInput().
				Title("Time column").
				Description("Column with row timestamps for time-sliced diagnostics; leave empty to skip").
				Value(&a.TimeCol),
			huh.NewSelect[string]().
				Title("Time window").
				Options(
					huh.NewOption("daily", string(timeslice.Daily)),
					huh.NewOption("weekly", string(timeslice.Weekly)),
					huh.NewOption("monthly", string(timeslice.Monthly)),
				).
				Value(&a.Frequency),
		),
	).
		WithInput(in).
		WithOutput(out)

	// Use accessible mode for non-TTY input (e.g., tests, piped input).
	if f, ok := in.(*os.File); !ok || !term.IsTerminal(int(f.Fd())) {
		form = form.WithAccessible(true)
	}

	if err := form.Run(); err != nil {
		return nil, fmt.Errorf("wizard failed: %w", err)
	}

	a.OOFDir = strings.TrimSpace(a.OOFDir)
	a.SubDir = strings.TrimSpace(a.SubDir)
	a.Out = strings.TrimSpace(a.Out)
	a.TimeCol = strings.TrimSpace(a.TimeCol)
	return &a, nil
}

// GenerateConfig renders a .crediblend.yaml from the given answers.
func GenerateConfig(a *Answers) (string, error) {
	if _, err := metrics.ParseMetric(a.Metric); err != nil {
		return "", err
	}
	if _, err := blend.ParseKinds(a.Methods); err != nil {
		return "", err
	}
	if _, err := timeslice.ParseFrequency(a.Frequency); err != nil {
		return "", err
	}

	tmpl, err := template.New("config").Funcs(template.FuncMap{"quote": quote}).Parse(configTemplate)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf strings.Builder
	if err := tmpl.Execute(&buf, a); err != nil {
		return "", fmt.Errorf("failed to render template: %w", err)
	}
	return buf.String(), nil
}

func required(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

func quote(s string) string {
	return fmt.Sprintf("%q", s)
}
