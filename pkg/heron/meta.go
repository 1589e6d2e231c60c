package heron

// DefaultStatsMetricsMeta returns the naming metadata for every statistic a
// case may request. The map is freshly built on each call.
func DefaultStatsMetricsMeta() map[string]StatMeta {
	return map[string]StatMeta{
		"expectedValue":        {Prefix: "mean"},
		"minimum":              {Prefix: "min"},
		"maximum":              {Prefix: "max"},
		"median":               {Prefix: "med"},
		"variance":             {Prefix: "var"},
		"sigma":                {Prefix: "std"},
		"percentile":           {Prefix: "perc", Percent: []string{"5", "95"}},
		"variationCoefficient": {Prefix: "varCoeff"},
		"skewness":             {Prefix: "skew"},
		"kurtosis":             {Prefix: "kurt"},
		"samples":              {Prefix: "samp"},
		"sharpeRatio":          {Prefix: "sharpe"},
		"sortinoRatio":         {Prefix: "sortino", Threshold: []string{"median"}},
		"gainLossRatio":        {Prefix: "glr", Threshold: []string{"median"}},
		"expectedShortfall":    {Prefix: "es", Threshold: []string{"0.05"}},
		"valueAtRisk":          {Prefix: "VaR", Threshold: []string{"0.05"}},
	}
}

// DefaultEconomicMetricsMeta returns the metadata of the supported economic
// metrics.
func DefaultEconomicMetricsMeta() map[string]EconMeta {
	return map[string]EconMeta{
		"NPV": {OutputName: "NPV"},
		"PI":  {OutputName: "PI"},
		"IRR": {OutputName: "IRR"},
		"LC":  {OutputName: "LC"},
	}
}
