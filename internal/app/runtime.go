package app

import (
	"log"
	"mime"
	"os"
	"strconv"
	"sync"
)

// TestModeEnv makes both binaries return before dialing Redis, the
// backend or Gotenberg.
const TestModeEnv = "POS_TEST_MODE"

var testMode = sync.OnceValue(func() bool {
	on, _ := strconv.ParseBool(os.Getenv(TestModeEnv))
	return on
})

// InTestMode reports whether TestModeEnv was set when first asked.
func InTestMode() bool {
	return testMode()
}

// Embedded assets are served by extension; minimal container images lack
// /etc/mime.types.
var assetTypes = map[string]string{
	".css": "text/css; charset=utf-8",
	".js":  "text/javascript; charset=utf-8",
	".svg": "image/svg+xml",
	".csv": "text/csv; charset=utf-8",
	".pdf": "application/pdf",
}

func init() {
	for ext, typ := range assetTypes {
		if mime.TypeByExtension(ext) != "" {
			continue
		}
		if err := mime.AddExtensionType(ext, typ); err != nil {
			log.Printf("app: register MIME type for %s: %v", ext, err)
		}
	}
}
