package env

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

var envFiles = []string{
	".env",          // current directory
	"../../.env",    // from cmd/<binary> to project root
	"../../../.env", // deeper nesting
}

// SetupEnvFile loads the first .env file found and exports its values into
// the process environment without overriding variables that are already set.
// Containers usually inject the environment directly, so a missing file only
// logs a warning.
func SetupEnvFile() {
	for _, envFile := range envFiles {
		values, err := godotenv.Read(envFile)
		if err != nil {
			continue
		}
		for key, val := range values {
			if _, set := os.LookupEnv(key); !set {
				_ = os.Setenv(key, val)
			}
		}
		return
	}

	log.Printf("Warning: no .env file found, using process environment only")
}
