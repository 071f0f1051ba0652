//go:build !unix

package narration

import "os"

// Processes cannot be suspended here; pausing lets the narration run on.
func suspend(*os.Process) {}

func resume(*os.Process) {}
