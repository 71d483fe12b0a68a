package app

import (
	"os"
	"sync"
)

const testModeEnv = "ODYSSEY_TEST_MODE"

// InTestMode reports whether ODYSSEY_TEST_MODE=1 was set when first asked.
// Binaries exit before touching Postgres or Redis in that mode.
var InTestMode = sync.OnceValue(func() bool {
	return os.Getenv(testModeEnv) == "1"
})
