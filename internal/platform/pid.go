package platform

import "os"

func processPID() int {
	return os.Getpid()
}
