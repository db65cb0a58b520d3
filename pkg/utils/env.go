package utils

import (
	"errors"
	"io/fs"

	"github.com/joho/godotenv"

	"sprout/pkg/logger"
)

// LoadEnv reads .env (and .env.local when present) into the process
// environment. Values already exported win.
func LoadEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env.local", ".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			logger.LogWarn("Could not load %s: %v", f, err)
			continue
		}
		logger.LogDebug("Loaded environment from %s", f)
	}
}
