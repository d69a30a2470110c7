package substitute

import (
	"fmt"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/dlclark/regexp2"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/raaihank/isolated-regex/internal/metrics"
	"github.com/raaihank/isolated-regex/internal/rule"
)

// Config contains executor configuration
type Config struct {
	CacheSize    int           `yaml:"cache_size" mapstructure:"cache_size"`
	MatchTimeout time.Duration `yaml:"match_timeout" mapstructure:"match_timeout"`
}

// DefaultConfig returns the executor defaults
func DefaultConfig() Config {
	return Config{
		CacheSize:    256,
		MatchTimeout: 250 * time.Millisecond,
	}
}

// ErrorHandler receives every pattern error after it has been logged
type ErrorHandler func(*PatternError)

// Executor applies a character's rule to message text. It is safe for
// concurrent use.
type Executor struct {
	cache   *lru.Cache[patternKey, *compiled]
	timeout atomic.Int64
	logger  *zap.Logger
	onError atomic.Pointer[ErrorHandler]
}

type patternKey struct {
	pattern string
	flags   string
}

// New creates a new executor
func New(cfg Config, logger *zap.Logger) (*Executor, error) {
	if cfg.CacheSize <= 0 {
		return nil, fmt.Errorf("invalid cache size: %d", cfg.CacheSize)
	}

	cache, err := lru.New[patternKey, *compiled](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create pattern cache: %w", err)
	}

	e := &Executor{
		cache:  cache,
		logger: logger,
	}
	e.timeout.Store(int64(cfg.MatchTimeout))

	return e, nil
}

// SetErrorHandler registers fn to be called for every pattern error
func (e *Executor) SetErrorHandler(fn ErrorHandler) {
	e.onError.Store(&fn)
}

// SetMatchTimeout changes the evaluation budget of subsequent passes. A
// zero or negative timeout disables the budget.
func (e *Executor) SetMatchTimeout(d time.Duration) {
	if time.Duration(e.timeout.Swap(int64(d))) != d {
		e.cache.Purge()
		e.logger.Info("Match timeout changed", zap.Duration("match_timeout", d))
	}
}

// Apply runs one substitution pass of r over text. Text is returned
// unchanged when the rule is absent, disabled or has no pattern, and when
// the pass fails for any reason.
func (e *Executor) Apply(text string, r *rule.Rule) string {
	if !r.Active() {
		return text
	}

	out, err := e.apply(text, r)
	if err != nil {
		e.report(err)
		return text
	}

	metrics.SubstitutionsApplied.Inc()
	e.logger.Debug("Substitution applied",
		zap.Int("input_length", utf8.RuneCountInString(text)),
		zap.Int("output_length", utf8.RuneCountInString(out)),
	)
	return out
}

// Check compiles pattern with flags and returns the error Apply would
// report, without reporting it
func (e *Executor) Check(pattern, flags string) error {
	if c := e.compile(pattern, flags); c.err != nil {
		return c.err
	}
	return nil
}

func (e *Executor) apply(text string, r *rule.Rule) (out string, err *PatternError) {
	defer func() {
		if rec := recover(); rec != nil {
			err = &PatternError{
				Pattern: r.Pattern,
				Flags:   r.Flags,
				Err:     fmt.Errorf("substitution panicked: %v", rec),
			}
		}
	}()

	c := e.compile(r.Pattern, r.Flags)
	if c.err != nil {
		return "", c.err
	}

	out, runErr := c.replace(text, r.Replacement)
	if runErr != nil {
		return "", &PatternError{Pattern: r.Pattern, Flags: r.Flags, Err: runErr}
	}
	return out, nil
}

// compile returns the cached program for pattern and flags, compiling it
// on a miss. Failures are cached too.
func (e *Executor) compile(pattern, flags string) *compiled {
	key := patternKey{pattern: pattern, flags: flags}
	if c, ok := e.cache.Get(key); ok {
		return c
	}

	metrics.PatternCacheMisses.Inc()
	c := compilePattern(pattern, flags, time.Duration(e.timeout.Load()))
	e.cache.Add(key, c)
	return c
}

// report logs a pattern error and forwards it to the error handler
func (e *Executor) report(err *PatternError) {
	metrics.PatternErrors.Inc()
	e.logger.Warn("Pattern failed, text left unchanged",
		zap.String("pattern", err.Pattern),
		zap.String("flags", err.Flags),
		zap.Error(err.Err),
	)

	if fn := e.onError.Load(); fn != nil && *fn != nil {
		(*fn)(err)
	}
}

// compiled is a pattern ready for substitution, or the error compiling it
type compiled struct {
	re     *regexp2.Regexp
	flags  flagSet
	groups int
	named  bool
	err    *PatternError
}

func compilePattern(pattern, flags string, timeout time.Duration) *compiled {
	fail := func(err error) *compiled {
		return &compiled{err: &PatternError{Pattern: pattern, Flags: flags, Err: err}}
	}

	fs, err := parseFlags(flags)
	if err != nil {
		return fail(err)
	}

	re, err := regexp2.Compile(pattern, fs.options)
	if err != nil {
		return fail(err)
	}

	if fs.sticky {
		// \G pins every match to the end of the previous one
		re, err = regexp2.Compile(`\G(?:`+pattern+`)`, fs.options)
		if err != nil {
			return fail(err)
		}
	}

	if timeout > 0 {
		re.MatchTimeout = timeout
	}

	c := &compiled{
		re:     re,
		flags:  fs,
		groups: len(re.GetGroupNumbers()) - 1,
	}
	for _, name := range re.GetGroupNames() {
		if !isNumeric(name) {
			c.named = true
			break
		}
	}

	return c
}

func isNumeric(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}
