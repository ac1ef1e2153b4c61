package confkit

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/joho/godotenv"
)

var dotenvOnce sync.Once

// LoadDotenvOnce loads .env files once per process: ENV_FILE when set,
// otherwise every .env between this package and the module root, then ./.env.
// Existing variables win unless DOTENV_OVERLOAD=1; NO_DOTENV=1 disables loading.
func LoadDotenvOnce() {
	dotenvOnce.Do(loadDotenv)
}

func loadDotenv() {
	if os.Getenv("NO_DOTENV") == "1" {
		return
	}
	load := godotenv.Load
	if os.Getenv("DOTENV_OVERLOAD") == "1" {
		load = godotenv.Overload
	}
	try := func(path string) {
		if exists(path) {
			_ = load(path)
		}
	}

	if envFile := os.Getenv("ENV_FILE"); envFile != "" {
		try(envFile)
		return
	}
	if _, ok := walkToRoot(func(dir string) { try(filepath.Join(dir, ".env")) }); ok {
		return
	}
	try(".env")
}
