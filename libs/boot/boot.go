// Package boot handles process startup concerns shared by all services:
// flag parsing with environment variable fallback and clean shutdown on
// termination signals.
package boot

import (
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/quickscribe/backend/libs/golog"
)

// ParseFlags parses command line flags, filling in any flag not set on the
// command line from the environment. The environment variable for a flag is
// the prefix plus the flag name upper cased with punctuation replaced by
// underscores (e.g. prefix "TRANSCRIPTION_" and flag "db_host" reads
// TRANSCRIPTION_DB_HOST).
func ParseFlags(prefix string) {
	flag.Parse()

	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) {
		set[f.Name] = true
	})
	flag.VisitAll(func(f *flag.Flag) {
		if set[f.Name] {
			return
		}
		key := prefix + strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(f.Name))
		if v, ok := os.LookupEnv(key); ok {
			if err := f.Value.Set(v); err != nil {
				golog.Fatalf("Invalid value %q for %s: %s", v, key, err)
			}
		}
	})
}

// WaitForTermination blocks until the process receives SIGINT or SIGTERM.
func WaitForTermination() {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	sig := <-ch
	golog.Infof("Received signal %s, shutting down", sig)
}
