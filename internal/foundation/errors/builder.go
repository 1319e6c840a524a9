package errors

// ErrorBuilder assembles a ClassifiedError.
type ErrorBuilder struct {
	err ClassifiedError
}

// NewError starts an error-severity ClassifiedError.
func NewError(category ErrorCategory, message string) *ErrorBuilder {
	return &ErrorBuilder{err: ClassifiedError{
		category: category,
		severity: SeverityError,
		message:  message,
		context:  make(ErrorContext),
	}}
}

// WrapError starts a ClassifiedError whose cause is err.
func WrapError(err error, category ErrorCategory, message string) *ErrorBuilder {
	b := NewError(category, message)
	b.err.cause = err
	return b
}

// WithContext adds a context key-value pair.
func (b *ErrorBuilder) WithContext(key string, value any) *ErrorBuilder {
	b.err.context[key] = value
	return b
}

func (b *ErrorBuilder) Fatal() *ErrorBuilder {
	b.err.severity = SeverityFatal
	return b
}

func (b *ErrorBuilder) Warning() *ErrorBuilder {
	b.err.severity = SeverityWarning
	return b
}

// UserAction marks the error as fixable by editing configuration or content.
func (b *ErrorBuilder) UserAction() *ErrorBuilder {
	b.err.userFixable = true
	return b
}

// Build returns the finished error. The builder may be reused afterwards
// without affecting it.
func (b *ErrorBuilder) Build() *ClassifiedError {
	e := b.err
	e.context = make(ErrorContext, len(b.err.context))
	for k, v := range b.err.context {
		e.context[k] = v
	}
	return &e
}

// ConfigError is a fatal configuration problem.
func ConfigError(message string) *ErrorBuilder {
	return NewError(CategoryConfig, message).Fatal().UserAction()
}

// ValidationError rejects a request, such as an unknown topic filter.
func ValidationError(message string) *ErrorBuilder {
	return NewError(CategoryValidation, message).Fatal().UserAction()
}

// NotFoundError reports that nothing matched the request.
func NotFoundError(message string) *ErrorBuilder {
	return NewError(CategoryNotFound, message).UserAction()
}

// ParseError reports a content file that could not be decoded.
func ParseError(message string) *ErrorBuilder {
	return NewError(CategoryParse, message).UserAction()
}

func BuildError(message string) *ErrorBuilder {
	return NewError(CategoryBuild, message)
}

// CacheError reports a build cache problem. The cache degrades to cold, so
// these are warnings.
func CacheError(message string) *ErrorBuilder {
	return NewError(CategoryCache, message).Warning()
}

func InternalError(message string) *ErrorBuilder {
	return NewError(CategoryInternal, message).Fatal()
}
