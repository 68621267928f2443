package status

import "os"

func processID() int {
	return os.Getpid()
}
