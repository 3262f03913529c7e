package config

// NewModels builds a Models config bound to a table path, for testing
func NewModels(path string) *Models {
	return &Models{tablePath: path}
}

// NewLogger builds a Logger config from raw values, for testing
func NewLogger(level, format, output string) *Logger {
	return &Logger{level: level, format: format, output: output}
}
