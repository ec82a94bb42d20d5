package metrics

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var (
	meter = otel.Meter("recipewizard/business")

	// Wizard metrics
	WizardStepsTotal metric.Int64Counter
	RecipeSavesTotal metric.Int64Counter
	RecipeLookups    metric.Int64Counter

	// External API metrics
	ExternalAPICallsTotal metric.Int64Counter
	ExternalAPIDuration   metric.Float64Histogram

	// Generation metrics
	GenerationDuration metric.Float64Histogram

	// Artifact metrics
	ArtifactBytes metric.Int64Histogram
)

// The global meter delegates to whatever provider is installed later, so the
// instruments are usable before telemetry.InitMetrics runs.
func init() {
	if err := Init(); err != nil {
		panic(err)
	}
}

func Init() error {
	var err error

	WizardStepsTotal, err = meter.Int64Counter(
		"wizard.steps.total",
		metric.WithDescription("Total number of wizard actions by stage and outcome"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return err
	}

	RecipeSavesTotal, err = meter.Int64Counter(
		"recipe.saves.total",
		metric.WithDescription("Total number of saved recipes"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return err
	}

	RecipeLookups, err = meter.Int64Counter(
		"recipe.lookups.total",
		metric.WithDescription("Total number of recipe lookups by outcome"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return err
	}

	ExternalAPICallsTotal, err = meter.Int64Counter(
		"external.api.calls.total",
		metric.WithDescription("Total number of external API calls"),
		metric.WithUnit("1"),
	)
	if err != nil {
		return err
	}

	ExternalAPIDuration, err = meter.Float64Histogram(
		"external.api.duration",
		metric.WithDescription("Duration of external API calls"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.05, 0.1, 0.5, 1, 2, 5, 10, 30),
	)
	if err != nil {
		return err
	}

	GenerationDuration, err = meter.Float64Histogram(
		"ai.generation.duration",
		metric.WithDescription("Duration of gateway text generation"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.5, 1, 2, 5, 10, 30, 60),
	)
	if err != nil {
		return err
	}

	ArtifactBytes, err = meter.Int64Histogram(
		"artifact.size",
		metric.WithDescription("Size of rendered recipe documents"),
		metric.WithUnit("By"),
		metric.WithExplicitBucketBoundaries(4096, 16384, 65536, 262144, 1048576),
	)
	if err != nil {
		return err
	}

	return nil
}
