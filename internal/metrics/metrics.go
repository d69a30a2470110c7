package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var SubstitutionsApplied = promauto.NewCounter(prometheus.CounterOpts{
	Name: "isolated_regex_substitutions_applied_total",
	Help: "Number of completed substitution passes",
})

var MessagesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "isolated_regex_messages_processed_total",
	Help: "Number of messages seen by the message hook, by role and outcome",
}, []string{"role", "outcome"})

var PatternErrors = promauto.NewCounter(prometheus.CounterOpts{
	Name: "isolated_regex_pattern_errors_total",
	Help: "Number of substitution passes that failed and fell back to the input text",
})

var PatternCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
	Name: "isolated_regex_pattern_cache_misses_total",
	Help: "Number of pattern compilations",
})

var RuleWrites = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "isolated_regex_rule_writes_total",
	Help: "Number of rule store mutations, by operation",
}, []string{"op"})

var SettingsSaves = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "isolated_regex_settings_saves_total",
	Help: "Number of settings persistence attempts, by outcome",
}, []string{"outcome"})

var RateLimited = promauto.NewCounter(prometheus.CounterOpts{
	Name: "isolated_regex_api_rate_limited_total",
	Help: "Number of API requests rejected by the rate limiter",
})
