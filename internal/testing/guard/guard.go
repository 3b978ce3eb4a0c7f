// Package guard switches the process into test mode when imported for side effects.
package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("P2P_TEST_MODE") == "" {
			_ = os.Setenv("P2P_TEST_MODE", "1")
		}
	})
}
