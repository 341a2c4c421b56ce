package response

// AppError 统一错误包装
type AppError struct {
	Code    int
	Message string
	Kind    string
	Reason  string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WrapError 包装错误
func WrapError(code int, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// WithKind 附加错误类别与细分原因
func (e *AppError) WithKind(kind, reason string) *AppError {
	e.Kind = kind
	e.Reason = reason
	return e
}
