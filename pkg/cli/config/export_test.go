package config

import "time"

// NewLoggerForTest creates a Logger config for testing purposes
func NewLoggerForTest(level, format, output string) *Logger {
	return &Logger{level: level, format: format, output: output}
}

// NewCacheForTest creates a Cache config for testing purposes
func NewCacheForTest(backend string, ttl time.Duration, redisAddr string) *Cache {
	return &Cache{backend: backend, ttl: ttl, redisAddr: redisAddr}
}

// NewRepositoryForTest creates a Repository config for testing purposes
func NewRepositoryForTest(backend string) *Repository {
	return &Repository{backend: backend}
}

// NewAppForTest creates an App config for testing purposes
func NewAppForTest(path string) *App {
	return &App{path: path}
}
